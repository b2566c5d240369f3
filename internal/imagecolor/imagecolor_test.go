package imagecolor

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func fill(img interface {
	Set(x, y int, c color.Color)
	Bounds() image.Rectangle
}, fn func(x, y int) color.Color) {
	b := img.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			img.Set(x, y, fn(x, y))
		}
	}
}

func greyGradient() *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, 120, 80))
	fill(img, func(x, y int) color.Color {
		v := uint8(x * 2)
		return color.RGBA{R: v, G: v, B: v, A: 255}
	})
	return img
}

func saturated() *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, 120, 80))
	fill(img, func(x, y int) color.Color {
		if x < 60 {
			return color.RGBA{R: 230, G: 20, B: 20, A: 255}
		}
		return color.RGBA{R: 20, G: 40, B: 220, A: 255}
	})
	return img
}

func TestIsColor(t *testing.T) {
	c := NewClassifier()

	require.False(t, c.IsColor(greyGradient()))
	require.True(t, c.IsColor(saturated()))

	// a uniform tint is discounted by the bias correction
	sepia := image.NewNRGBA(image.Rect(0, 0, 64, 64))
	fill(sepia, func(x, y int) color.Color {
		v := uint8(x * 3)
		return color.NRGBA{R: v + 40, G: v + 20, B: v, A: 255}
	})
	require.False(t, c.IsColor(sepia))

	noBias := c
	noBias.AdjustBias = false
	require.True(t, noBias.MSE(sepia) > c.MSE(sepia))
}

func TestIsColorLayouts(t *testing.T) {
	c := NewClassifier()

	gray := image.NewGray(image.Rect(0, 0, 10, 10))
	require.Equal(t, LayoutSingle, LayoutOf(gray))
	require.False(t, c.IsColor(gray))

	palette := image.NewPaletted(image.Rect(0, 0, 10, 10), color.Palette{
		color.RGBA{R: 255, A: 255},
		color.RGBA{B: 255, A: 255},
	})
	require.Equal(t, LayoutSingle, LayoutOf(palette))
	require.False(t, c.IsColor(palette))

	cmyk := image.NewCMYK(image.Rect(0, 0, 10, 10))
	fill(cmyk, func(x, y int) color.Color {
		return color.CMYK{C: 255, M: 0, Y: 0, K: 0}
	})
	require.Equal(t, LayoutOther, LayoutOf(cmyk))
	require.False(t, c.IsColor(cmyk))
}

func TestIsColorBytes(t *testing.T) {
	c := NewClassifier()

	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, saturated()))
	isColor, err := c.IsColorBytes(buf.Bytes())
	require.NoError(t, err)
	require.True(t, isColor)

	buf.Reset()
	require.NoError(t, jpeg.Encode(&buf, greyGradient(), &jpeg.Options{Quality: 90}))
	isColor, err = c.IsColorBytes(buf.Bytes())
	require.NoError(t, err)
	require.False(t, isColor)

	_, err = c.IsColorBytes([]byte("not an image"))
	require.Error(t, err)
}

func TestIsColorFile(t *testing.T) {
	c := NewClassifier()

	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, saturated()))
	path := filepath.Join(t.TempDir(), "label.png")
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0600))

	isColor, err := c.IsColorFile(path)
	require.NoError(t, err)
	require.True(t, isColor)

	_, err = c.IsColorFile(filepath.Join(t.TempDir(), "missing.png"))
	require.ErrorIs(t, err, os.ErrNotExist)
}
