package registry

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"strings"

	"labelbot/internal/components/assert"
	"labelbot/internal/components/telemetry"

	"github.com/PuerkitoBio/goquery"
)

const (
	report_direct_session_search = "direct-session.search"
	report_direct_session_detail = "direct-session.detail"
)

// DirectSession implements Session with plain HTTP requests. It does not run the
// page scripts a browser would, so it only works while the registry serves static markup.
type DirectSession struct {
	client *Client
	tel    telemetry.API
}

func NewDirectSession(client *Client, tel telemetry.API) *DirectSession {
	assert.NotNil(client)
	assert.NotNil(tel)

	return &DirectSession{
		client: client,
		tel:    telemetry.NewScopedAPI("direct", tel),
	}
}

func (s *DirectSession) SearchExport(ctx context.Context, query SearchQuery) ([]byte, error) {
	// the form page hands out the session cookie the search is bound to
	res, err := s.client.Http.R().
		SetContext(ctx).
		Get(s.client.SearchForm())
	err = checkResponse(res, err)
	if err != nil {
		s.tel.ReportBroken(report_direct_session_search, fmt.Errorf("search form: %w", err))
		return nil, err
	}

	res, err = s.client.Http.R().
		SetContext(ctx).
		SetFormData(query.FormData()).
		Post(s.client.SearchProcess())
	err = checkResponse(res, err)
	if err != nil {
		s.tel.ReportBroken(report_direct_session_search, fmt.Errorf("submit: %w", err), query.ClassType.String())
		return nil, err
	}

	res, err = s.client.Http.R().
		SetContext(ctx).
		Get(s.client.Export())
	err = checkResponse(res, err)
	if err != nil {
		s.tel.ReportBroken(report_direct_session_search, fmt.Errorf("export: %w", err), query.ClassType.String())
		return nil, err
	}

	// with no results the export link redirects back to the search page
	if strings.Contains(res.Header().Get("content-type"), "html") {
		return nil, nil
	}
	return res.Body(), nil
}

func (s *DirectSession) DetailPage(ctx context.Context, id string) (string, error) {
	res, err := s.client.Http.R().
		SetContext(ctx).
		Get(s.client.Detail(id))
	err = checkResponse(res, err)
	if err != nil {
		s.tel.ReportBroken(report_direct_session_detail, err, id)
		return "", err
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(res.Body()))
	if err != nil {
		return "", err
	}
	title := strings.TrimSpace(doc.Find("title").First().Text())
	if title != DetailPageTitle {
		s.tel.ReportWarning(report_direct_session_detail, "unexpected title", id, title)
		return "", fmt.Errorf("%w: title is %q", ErrDetailNotLoaded, title)
	}
	return string(res.Body()), nil
}

func (s *DirectSession) Cookies(ctx context.Context) ([]*http.Cookie, error) {
	return s.client.Jar.Cookies(s.client.Base), nil
}

func (s *DirectSession) Close() error {
	return nil
}
