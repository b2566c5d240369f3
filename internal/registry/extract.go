package registry

// extract.go holds every assumption about the layout of a detail page, nothing
// else in the package looks inside detail page markup.

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"labelbot/pkg/htmlutil"

	"github.com/PuerkitoBio/goquery"
)

const (
	// the applicant block is the 7th data block on the form
	companyBlockIndex = 6
	// the first image is the agency seal, the second is the label artwork
	artworkImageIndex = 1
)

var (
	dimensionsRegex = regexp.MustCompile(`^Actual Dimensions: ([0-9.]+) inches W X ([0-9.]+) inches H`)
	filenameRegex   = regexp.MustCompile(`filename=([^&]+)&`)
)

// Detail is what a detail page contributes to an EnrichedRecord.
type Detail struct {
	Company       string
	ImageFilename string
	ImageUrl      string
	IsSquare      bool
}

// ExtractDetail extracts a Detail from detail page markup, relative urls are resolved against base.
// Any missing element is an ErrUnexpectedLayout.
func ExtractDetail(page string, base *url.URL) (Detail, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(page))
	if err != nil {
		return Detail{}, fmt.Errorf("parse detail page: %w", err)
	}

	company, err := extractCompany(doc)
	if err != nil {
		return Detail{}, err
	}
	filename, imageUrl, err := extractArtwork(doc, base)
	if err != nil {
		return Detail{}, err
	}

	return Detail{
		Company:       company,
		ImageFilename: filename,
		ImageUrl:      imageUrl,
		IsSquare:      extractIsSquare(doc),
	}, nil
}

func extractCompany(doc *goquery.Document) (string, error) {
	blocks := doc.Find("div.data")
	if blocks.Length() <= companyBlockIndex {
		return "", fmt.Errorf(
			"%w: expected at least %d data blocks, found %d",
			ErrUnexpectedLayout, companyBlockIndex+1, blocks.Length(),
		)
	}

	company, ok := htmlutil.FirstText(blocks.Nodes[companyBlockIndex])
	if !ok {
		return "", fmt.Errorf("%w: company block has no text", ErrUnexpectedLayout)
	}
	// drops suffixes like ", LLC" and the rest of the address line
	company, _, _ = strings.Cut(company, ",")
	company = htmlutil.Normalize(company)
	if company == "" {
		return "", fmt.Errorf("%w: company block starts with a comma", ErrUnexpectedLayout)
	}
	return company, nil
}

// extractIsSquare compares the matched dimension tokens as strings, "4.5" and "4.50" differ.
func extractIsSquare(doc *goquery.Document) bool {
	for _, text := range htmlutil.StrippedStrings(doc.Selection) {
		groups := dimensionsRegex.FindStringSubmatch(text)
		if groups != nil && groups[1] == groups[2] {
			return true
		}
	}
	return false
}

func extractArtwork(doc *goquery.Document, base *url.URL) (string, string, error) {
	images := doc.Find("img")
	if images.Length() <= artworkImageIndex {
		return "", "", fmt.Errorf(
			"%w: expected at least %d images, found %d",
			ErrUnexpectedLayout, artworkImageIndex+1, images.Length(),
		)
	}
	artwork := images.Eq(artworkImageIndex)

	src, exists := artwork.Attr("src")
	if !exists {
		return "", "", fmt.Errorf("%w: artwork image has no src", ErrUnexpectedLayout)
	}
	groups := filenameRegex.FindStringSubmatch(src)
	if groups == nil {
		return "", "", fmt.Errorf("%w: artwork src %q has no filename", ErrUnexpectedLayout, src)
	}

	resolved, ok := htmlutil.ResolveAttr(base, artwork, "src")
	if !ok {
		return "", "", fmt.Errorf("%w: artwork src %q is not a url", ErrUnexpectedLayout, src)
	}
	return groups[1], resolved.String(), nil
}
