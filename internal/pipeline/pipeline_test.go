package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"net/http"
	"testing"
	"time"

	"labelbot/internal/components/telemetry"
	"labelbot/internal/compose"
	"labelbot/internal/imagecolor"
	"labelbot/internal/publish"
	"labelbot/internal/registry"
	"labelbot/internal/workdir"

	"github.com/stretchr/testify/require"
)

type fakeSession struct {
	closed  int
	cookies []*http.Cookie
}

func (s *fakeSession) SearchExport(ctx context.Context, query registry.SearchQuery) ([]byte, error) {
	return nil, nil
}

func (s *fakeSession) DetailPage(ctx context.Context, id string) (string, error) {
	return "", nil
}

func (s *fakeSession) Cookies(ctx context.Context) ([]*http.Cookie, error) {
	return s.cookies, nil
}

func (s *fakeSession) Close() error {
	s.closed++
	return nil
}

type fakeQuerier struct {
	records []registry.CandidateRecord
	err     error
}

func (q fakeQuerier) QueryAll(ctx context.Context, from, to time.Time, ranges []registry.ClassTypeRange) ([]registry.CandidateRecord, error) {
	return q.records, q.err
}

type fakeEnricher struct {
	details  map[string]registry.EnrichedRecord
	enriched []string
}

func (e *fakeEnricher) Enrich(ctx context.Context, record registry.CandidateRecord) (registry.EnrichedRecord, error) {
	e.enriched = append(e.enriched, record.ID)
	detail, ok := e.details[record.ID]
	if !ok {
		return registry.EnrichedRecord{}, fmt.Errorf("cola %s: %w", record.ID, registry.ErrUnexpectedLayout)
	}
	detail.CandidateRecord = record
	return detail, nil
}

type fakeFetcher struct {
	dir      workdir.Dir
	artwork  map[string][]byte
	cookies  []*http.Cookie
	imported bool
	fetched  []string
}

func (f *fakeFetcher) ImportCookies(cookies []*http.Cookie) {
	f.cookies = cookies
	f.imported = true
}

func (f *fakeFetcher) Fetch(ctx context.Context, record registry.EnrichedRecord) ([]byte, string, error) {
	if !f.imported {
		return nil, "", errors.New("cookies were not imported")
	}
	f.fetched = append(f.fetched, record.ID)
	contents := f.artwork[record.ID]
	path, err := f.dir.WriteFile(record.ImageFilename, contents)
	return contents, path, err
}

type fakePoster struct {
	uploads []string
	posts   []string
}

func (p *fakePoster) UploadMedia(ctx context.Context, filename string, media io.Reader) (string, error) {
	p.uploads = append(p.uploads, filename)
	return "media-" + filename, nil
}

func (p *fakePoster) CreatePost(ctx context.Context, text string, mediaIds []string) (string, error) {
	p.posts = append(p.posts, text)
	return fmt.Sprintf("%d", len(p.posts)), nil
}

func encodePng(t *testing.T, c color.Color) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 50, 50))
	for y := 0; y < 50; y++ {
		for x := 0; x < 50; x++ {
			if x < 25 {
				img.Set(x, y, c)
			} else {
				img.Set(x, y, color.RGBA{R: 255, G: 255, B: 255, A: 255})
			}
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

type harness struct {
	session  *fakeSession
	enricher *fakeEnricher
	fetcher  *fakeFetcher
	poster   *fakePoster
	tel      *telemetry.Recorder
	pipeline *Pipeline
}

func newHarness(t *testing.T, querier fakeQuerier, details map[string]registry.EnrichedRecord, artwork map[string][]byte) harness {
	dir := workdir.New(t.TempDir())
	require.NoError(t, dir.Reset())

	h := harness{
		session:  &fakeSession{cookies: []*http.Cookie{{Name: "JSESSIONID", Value: "abc"}}},
		enricher: &fakeEnricher{details: details},
		fetcher:  &fakeFetcher{dir: dir, artwork: artwork},
		poster:   &fakePoster{},
		tel:      &telemetry.Recorder{},
	}
	h.pipeline = New(Stages{
		Session:    h.session,
		Query:      querier,
		Enricher:   h.enricher,
		Fetcher:    h.fetcher,
		Classifier: imagecolor.NewClassifier(),
		Composer:   compose.Composer{Hashtags: map[string]string{"USA": "CraftBeer"}},
		Publisher:  publish.NewPublisher(h.poster, dir, h.tel),
		Shuffle:    func(records []registry.CandidateRecord) {},
	}, h.tel)
	return h
}

func ptr(s string) *string {
	return &s
}

var testDay = time.Date(2026, 10, 12, 0, 0, 0, 0, time.UTC)

func TestRunEndToEnd(t *testing.T) {
	h := newHarness(t,
		fakeQuerier{records: []registry.CandidateRecord{{
			ID:            "25001",
			BrandName:     "Acme IPA",
			ClassTypeCode: "905",
			ClassType:     ptr("ale"),
			Origin:        "USA",
		}}},
		map[string]registry.EnrichedRecord{
			"25001": {Company: "Acme Brewing", ImageFilename: "acme.png", IsSquare: false},
		},
		map[string][]byte{
			"25001": encodePng(t, color.RGBA{R: 220, G: 30, B: 30, A: 255}),
		},
	)

	result, err := h.pipeline.Run(context.Background(), Options{
		Day:        testDay,
		Ranges:     []registry.ClassTypeRange{{From: "901", To: "906"}},
		OmitSquare: true,
		OmitGrey:   true,
	})
	require.NoError(t, err)

	require.Equal(t, Result{Candidates: 1, Composed: 1, Published: 1}, result)
	require.Equal(t, []string{
		"Acme Brewing was approved for Acme IPA, an ale. #CraftBeer More: " + registry.DetailUrl("25001"),
	}, h.poster.posts)
	require.Equal(t, []string{"acme.png"}, h.poster.uploads)
	require.Equal(t, 1, h.session.closed)
	require.Equal(t, h.session.cookies, h.fetcher.cookies)
}

func TestRunSquareIsNeverDownloaded(t *testing.T) {
	h := newHarness(t,
		fakeQuerier{records: []registry.CandidateRecord{
			{ID: "1", BrandName: "Keg Tag"},
			{ID: "2", BrandName: "Bottle"},
		}},
		map[string]registry.EnrichedRecord{
			"1": {Company: "Acme", ImageFilename: "keg.png", IsSquare: true},
			"2": {Company: "Acme", ImageFilename: "bottle.png"},
		},
		map[string][]byte{
			"1": encodePng(t, color.RGBA{R: 220, A: 255}),
			"2": encodePng(t, color.RGBA{R: 220, A: 255}),
		},
	)

	result, err := h.pipeline.Run(context.Background(), Options{Day: testDay, OmitSquare: true, Test: true})
	require.NoError(t, err)
	require.Equal(t, []string{"2"}, h.fetcher.fetched)
	require.Equal(t, 1, result.SkippedSquare)
	require.Equal(t, 1, result.Composed)
	require.Equal(t, 1, result.Published)
	require.Empty(t, h.poster.posts)

	// without the filter square labels go through
	h = newHarness(t,
		fakeQuerier{records: []registry.CandidateRecord{{ID: "1", BrandName: "Keg Tag"}}},
		map[string]registry.EnrichedRecord{"1": {Company: "Acme", ImageFilename: "keg.png", IsSquare: true}},
		map[string][]byte{"1": encodePng(t, color.RGBA{R: 220, A: 255})},
	)
	result, err = h.pipeline.Run(context.Background(), Options{Day: testDay, Test: true})
	require.NoError(t, err)
	require.Equal(t, 1, result.Composed)
}

func TestRunOmitGrey(t *testing.T) {
	h := newHarness(t,
		fakeQuerier{records: []registry.CandidateRecord{
			{ID: "1", BrandName: "Grey"},
			{ID: "2", BrandName: "Red"},
		}},
		map[string]registry.EnrichedRecord{
			"1": {Company: "Acme", ImageFilename: "grey.png"},
			"2": {Company: "Acme", ImageFilename: "red.png"},
		},
		map[string][]byte{
			"1": encodePng(t, color.RGBA{R: 90, G: 90, B: 90, A: 255}),
			"2": encodePng(t, color.RGBA{R: 220, G: 20, B: 20, A: 255}),
		},
	)

	result, err := h.pipeline.Run(context.Background(), Options{Day: testDay, OmitGrey: true})
	require.NoError(t, err)
	require.Equal(t, []string{"1", "2"}, h.fetcher.fetched)
	require.Equal(t, 1, result.SkippedGrey)
	require.Equal(t, []string{"red.png"}, h.poster.uploads)
}

func TestRunStopsEnrichingAtLimit(t *testing.T) {
	var records []registry.CandidateRecord
	details := map[string]registry.EnrichedRecord{}
	artwork := map[string][]byte{}
	for i := 0; i < 10; i++ {
		id := fmt.Sprintf("%d", i)
		records = append(records, registry.CandidateRecord{ID: id, BrandName: "Brand " + id})
		details[id] = registry.EnrichedRecord{Company: "Acme", ImageFilename: id + ".png"}
		artwork[id] = encodePng(t, color.RGBA{B: 200, A: 255})
	}
	h := newHarness(t, fakeQuerier{records: records}, details, artwork)

	result, err := h.pipeline.Run(context.Background(), Options{Day: testDay, Limit: 3})
	require.NoError(t, err)
	require.Equal(t, 3, result.Published)
	require.Len(t, h.poster.posts, 3)
	require.Equal(t, []string{"0", "1", "2"}, h.enricher.enriched)
}

func TestRunBrokenRecord(t *testing.T) {
	records := []registry.CandidateRecord{
		{ID: "missing", BrandName: "Broken"},
		{ID: "2", BrandName: "Fine"},
	}
	details := map[string]registry.EnrichedRecord{
		"2": {Company: "Acme", ImageFilename: "fine.png"},
	}
	artwork := map[string][]byte{"2": encodePng(t, color.RGBA{G: 200, A: 255})}

	h := newHarness(t, fakeQuerier{records: records}, details, artwork)
	_, err := h.pipeline.Run(context.Background(), Options{Day: testDay})
	require.ErrorIs(t, err, registry.ErrUnexpectedLayout)
	require.Empty(t, h.poster.posts)
	require.Equal(t, 1, h.session.closed)
	require.True(t, h.tel.Has("broken", "pipeline: pipeline.collect"))

	h = newHarness(t, fakeQuerier{records: records}, details, artwork)
	result, err := h.pipeline.Run(context.Background(), Options{Day: testDay, SkipBroken: true})
	require.NoError(t, err)
	require.Equal(t, 1, result.SkippedBroken)
	require.Equal(t, 1, result.Published)
	require.True(t, h.tel.Has("warning", "pipeline: pipeline.skip"))
}

func TestRunNoResults(t *testing.T) {
	h := newHarness(t, fakeQuerier{}, nil, nil)
	result, err := h.pipeline.Run(context.Background(), Options{Day: testDay})
	require.NoError(t, err)
	require.Equal(t, Result{}, result)
	require.Equal(t, 1, h.session.closed)
	require.True(t, h.tel.Has("info", "publish: no posts"))

	h = newHarness(t, fakeQuerier{err: errors.New("registry down")}, nil, nil)
	_, err = h.pipeline.Run(context.Background(), Options{Day: testDay})
	require.Error(t, err)
	require.Equal(t, 1, h.session.closed)
}

func TestDefaultShuffleKeepsRecords(t *testing.T) {
	p := New(Stages{
		Session:    &fakeSession{},
		Query:      fakeQuerier{},
		Enricher:   &fakeEnricher{},
		Fetcher:    &fakeFetcher{},
		Classifier: imagecolor.NewClassifier(),
		Publisher:  publish.NewPublisher(nil, workdir.New(t.TempDir()), &telemetry.Recorder{}),
	}, &telemetry.Recorder{})

	records := []registry.CandidateRecord{{ID: "1"}, {ID: "2"}, {ID: "3"}, {ID: "4"}}
	p.stages.Shuffle(records)
	require.ElementsMatch(t, []registry.CandidateRecord{{ID: "1"}, {ID: "2"}, {ID: "3"}, {ID: "4"}}, records)
}
