package registry

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestExtractDetail(t *testing.T) {
	base, err := url.Parse(DefaultBaseUrl)
	require.NoError(t, err)

	const artworkUrl = "https://www.ttbonline.gov/colasonline/publicViewAttachment.do?filename=acme_ipa_front.jpg&filetype=l"

	testCases := []struct {
		fixture  string
		expected Detail
	}{
		{
			fixture: "detail.html",
			expected: Detail{
				Company:       "Acme Brewing",
				ImageFilename: "acme_ipa_front.jpg",
				ImageUrl:      artworkUrl,
				IsSquare:      false,
			},
		},
		{
			fixture: "detail_square.html",
			expected: Detail{
				Company:       "Acme Brewing",
				ImageFilename: "acme_ipa_front.jpg",
				ImageUrl:      artworkUrl,
				IsSquare:      true,
			},
		},
		{
			// the dimensions inside the script tag are not page text
			fixture: "detail_nodimensions.html",
			expected: Detail{
				Company:       "Acme Brewing",
				ImageFilename: "acme_ipa_front.jpg",
				ImageUrl:      artworkUrl,
				IsSquare:      false,
			},
		},
	}

	for _, test := range testCases {
		t.Run(test.fixture, func(t *testing.T) {
			detail, err := ExtractDetail(string(readFixture(t, test.fixture)), base)
			require.NoError(t, err)
			require.Equal(t, test.expected, detail)
		})
	}
}

func TestExtractDetailSquareIsTextual(t *testing.T) {
	page := `<html><body>
<img src="/seal.gif">
<div class="data">1</div><div class="data">2</div><div class="data">3</div>
<div class="data">4</div><div class="data">5</div><div class="data">6</div>
<div class="data">Hopworks</div>
<p>Actual Dimensions: 4.5 inches W X 4.50 inches H</p>
<img src="/attachment.do?filename=a.png&filetype=l">
</body></html>`

	base, _ := url.Parse(DefaultBaseUrl)
	detail, err := ExtractDetail(page, base)
	require.NoError(t, err)
	require.False(t, detail.IsSquare)
	require.Equal(t, "Hopworks", detail.Company)
	require.Equal(t, "a.png", detail.ImageFilename)
}

func TestExtractDetailUnexpectedLayout(t *testing.T) {
	base, _ := url.Parse(DefaultBaseUrl)

	_, err := ExtractDetail(string(readFixture(t, "detail_broken.html")), base)
	require.ErrorIs(t, err, ErrUnexpectedLayout)

	blocks := `<div class="data">1</div><div class="data">2</div><div class="data">3</div>
<div class="data">4</div><div class="data">5</div><div class="data">6</div>`

	pages := map[string]string{
		"empty company": `<html><body><img src="/seal.gif">` + blocks +
			`<div class="data">  </div><img src="/a.do?filename=a.png&x=1"></body></html>`,
		"comma company": `<html><body><img src="/seal.gif">` + blocks +
			`<div class="data">, LLC</div><img src="/a.do?filename=a.png&x=1"></body></html>`,
		"one image": `<html><body><img src="/seal.gif">` + blocks +
			`<div class="data">Acme</div></body></html>`,
		"no filename": `<html><body><img src="/seal.gif">` + blocks +
			`<div class="data">Acme</div><img src="/a.do?id=1"></body></html>`,
		"no src": `<html><body><img src="/seal.gif">` + blocks +
			`<div class="data">Acme</div><img alt="label"></body></html>`,
	}
	for name, page := range pages {
		_, err := ExtractDetail(page, base)
		require.ErrorIs(t, err, ErrUnexpectedLayout, name)
	}
}
