package registry

import (
	"context"
	"fmt"
	"net/http"

	"labelbot/internal/components/assert"
	"labelbot/internal/components/telemetry"
)

const report_image_fetcher_fetch = "image-fetcher.fetch"

// ImageFetcher downloads label artwork with a plain client, reusing the cookies of
// the session that loaded the detail pages.
type ImageFetcher struct {
	client *Client
	sink   ExportSink
	tel    telemetry.API
}

func NewImageFetcher(client *Client, sink ExportSink, tel telemetry.API) *ImageFetcher {
	assert.NotNil(client)
	assert.NotNil(sink)
	assert.NotNil(tel)

	return &ImageFetcher{
		client: client,
		sink:   sink,
		tel:    telemetry.NewScopedAPI("images", tel),
	}
}

// ImportCookies copies session cookies into the fetcher's jar, scoped to the registry host.
func (f *ImageFetcher) ImportCookies(cookies []*http.Cookie) {
	imported := make([]*http.Cookie, 0, len(cookies))
	for _, c := range cookies {
		copied := *c
		// the jar rejects a domain that does not match the url it is set against exactly,
		// a host-only cookie on the base url covers every request the fetcher makes
		copied.Domain = ""
		imported = append(imported, &copied)
	}
	f.client.Jar.SetCookies(f.client.Base, imported)
	f.tel.ReportDebug("imported cookies", len(imported))
}

// Fetch downloads the artwork of record and saves it under its image filename,
// returning the contents and the saved path.
func (f *ImageFetcher) Fetch(ctx context.Context, record EnrichedRecord) ([]byte, string, error) {
	if record.ImageUrl == "" {
		return nil, "", fmt.Errorf("cola %s: no artwork url", record.ID)
	}

	res, err := f.client.Http.R().
		SetContext(ctx).
		Get(record.ImageUrl)
	err = checkResponse(res, err)
	if err != nil {
		f.tel.ReportBroken(report_image_fetcher_fetch, err, record.ID)
		return nil, "", fmt.Errorf("cola %s: download artwork: %w", record.ID, err)
	}

	contents := res.Body()
	path, err := f.sink.WriteFile(record.ImageFilename, contents)
	if err != nil {
		f.tel.ReportBroken(report_image_fetcher_fetch, fmt.Errorf("save: %w", err), record.ID)
		return nil, "", fmt.Errorf("cola %s: save artwork: %w", record.ID, err)
	}
	f.tel.ReportDebug("downloaded artwork", record.ID, path, len(contents))
	return contents, path, nil
}
