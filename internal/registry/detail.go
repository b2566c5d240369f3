package registry

import (
	"context"
	"fmt"
	"net/url"

	"labelbot/internal/components/assert"
	"labelbot/internal/components/telemetry"
)

const report_detail_enricher_enrich = "detail-enricher.enrich"

type DetailEnricher struct {
	session Session
	base    *url.URL
	tel     telemetry.API
}

// NewDetailEnricher creates a DetailEnricher, artwork urls are resolved against base.
func NewDetailEnricher(session Session, base *url.URL, tel telemetry.API) *DetailEnricher {
	assert.NotNil(session)
	assert.NotNil(base)
	assert.NotNil(tel)

	return &DetailEnricher{
		session: session,
		base:    base,
		tel:     telemetry.NewScopedAPI("detail", tel),
	}
}

func (e *DetailEnricher) Enrich(ctx context.Context, record CandidateRecord) (EnrichedRecord, error) {
	e.tel.ReportDebug("getting cola", record.ID)

	page, err := e.session.DetailPage(ctx, record.ID)
	if err != nil {
		e.tel.ReportBroken(report_detail_enricher_enrich, fmt.Errorf("load: %w", err), record.ID)
		return EnrichedRecord{}, fmt.Errorf("cola %s: %w", record.ID, err)
	}

	detail, err := ExtractDetail(page, e.base)
	if err != nil {
		e.tel.ReportBroken(report_detail_enricher_enrich, fmt.Errorf("extract: %w", err), record.ID)
		return EnrichedRecord{}, fmt.Errorf("cola %s: %w", record.ID, err)
	}

	return EnrichedRecord{
		CandidateRecord: record,
		Company:         detail.Company,
		ImageFilename:   detail.ImageFilename,
		ImageUrl:        detail.ImageUrl,
		IsSquare:        detail.IsSquare,
	}, nil
}
