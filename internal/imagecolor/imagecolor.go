// Package imagecolor decides whether label artwork is printed in color or in greys.
package imagecolor

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"os"

	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

const (
	DefaultThumbSize = 40
	DefaultMSECutoff = 22
)

// Classifier measures how far each pixel strays from its own grey level. Artwork whose
// mean squared deviation is at or below MSECutoff is greyscale.
type Classifier struct {
	ThumbSize int
	MSECutoff float64
	// AdjustBias discounts a tint shared by the whole image, a sepia print is still grey.
	AdjustBias bool
}

func NewClassifier() Classifier {
	return Classifier{
		ThumbSize:  DefaultThumbSize,
		MSECutoff:  DefaultMSECutoff,
		AdjustBias: true,
	}
}

// Layout is the channel layout of a decoded image.
type Layout int

const (
	LayoutOther Layout = iota
	// LayoutSingle is one channel, greys or palette indices.
	LayoutSingle
	// LayoutRGB is three color channels with or without alpha.
	LayoutRGB
)

// LayoutOf reports the channel layout of img by its concrete type.
func LayoutOf(img image.Image) Layout {
	switch img.(type) {
	case *image.Gray, *image.Gray16, *image.Alpha, *image.Alpha16, *image.Paletted:
		return LayoutSingle
	case *image.RGBA, *image.RGBA64, *image.NRGBA, *image.NRGBA64, *image.YCbCr, *image.NYCbCrA:
		return LayoutRGB
	default:
		return LayoutOther
	}
}

// MSE returns the mean squared deviation of the thumbnail of img from grey.
func (c Classifier) MSE(img image.Image) float64 {
	size := c.ThumbSize
	if size <= 0 {
		size = DefaultThumbSize
	}

	thumb := image.NewNRGBA(image.Rect(0, 0, size, size))
	draw.CatmullRom.Scale(thumb, thumb.Bounds(), img, img.Bounds(), draw.Src, nil)

	pixels := size * size
	channels := make([][3]float64, 0, pixels)
	for i := 0; i < len(thumb.Pix); i += 4 {
		channels = append(channels, [3]float64{
			float64(thumb.Pix[i]),
			float64(thumb.Pix[i+1]),
			float64(thumb.Pix[i+2]),
		})
	}

	var bias [3]float64
	if c.AdjustBias {
		var mean [3]float64
		for _, px := range channels {
			for i := range px {
				mean[i] += px[i]
			}
		}
		for i := range mean {
			mean[i] /= float64(pixels)
		}
		overall := (mean[0] + mean[1] + mean[2]) / 3
		for i := range bias {
			bias[i] = mean[i] - overall
		}
	}

	var sse float64
	for _, px := range channels {
		mu := (px[0] + px[1] + px[2]) / 3
		for i := range px {
			d := px[i] - mu - bias[i]
			sse += d * d
		}
	}
	return sse / float64(pixels)
}

// IsColor classifies a decoded image. Single channel images are never color and neither
// is any layout other than RGB, those are not classified at all.
func (c Classifier) IsColor(img image.Image) bool {
	if LayoutOf(img) != LayoutRGB {
		return false
	}
	cutoff := c.MSECutoff
	if cutoff == 0 {
		cutoff = DefaultMSECutoff
	}
	return c.MSE(img) > cutoff
}

func (c Classifier) IsColorBytes(data []byte) (bool, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return false, fmt.Errorf("decode image: %w", err)
	}
	return c.IsColor(img), nil
}

func (c Classifier) IsColorFile(path string) (bool, error) {
	f, err := os.Open(path)
	if err != nil {
		return false, err
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return false, fmt.Errorf("decode %s: %w", path, err)
	}
	return c.IsColor(img), nil
}
