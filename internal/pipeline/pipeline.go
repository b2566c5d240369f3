// Package pipeline runs one batch: query the registry, enrich and filter the
// candidates, compose announcements and publish them.
package pipeline

import (
	"context"
	"fmt"
	"math/rand"
	"net/http"
	"time"

	"labelbot/internal/components/assert"
	"labelbot/internal/components/chrono"
	"labelbot/internal/components/telemetry"
	"labelbot/internal/compose"
	"labelbot/internal/publish"
	"labelbot/internal/registry"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const (
	report_pipeline_collect = "pipeline.collect"
	report_pipeline_skip    = "pipeline.skip"
)

var tracer = otel.Tracer("labelbot/pipeline")
var meter = otel.Meter("labelbot/pipeline")

var (
	queriedCounter, _   = meter.Int64Counter("labelbot.records.queried")
	composedCounter, _  = meter.Int64Counter("labelbot.posts.composed")
	publishedCounter, _ = meter.Int64Counter("labelbot.posts.published")
)

type Querier interface {
	QueryAll(ctx context.Context, from, to time.Time, ranges []registry.ClassTypeRange) ([]registry.CandidateRecord, error)
}

type Enricher interface {
	Enrich(ctx context.Context, record registry.CandidateRecord) (registry.EnrichedRecord, error)
}

type Fetcher interface {
	ImportCookies(cookies []*http.Cookie)
	Fetch(ctx context.Context, record registry.EnrichedRecord) ([]byte, string, error)
}

type Classifier interface {
	IsColorBytes(data []byte) (bool, error)
}

type Publisher interface {
	Publish(ctx context.Context, posts []compose.Post, opts publish.Options) (int, error)
}

// Stages are the collaborators of a run. Session is closed by Run once every
// detail page has been read.
type Stages struct {
	Session    registry.Session
	Query      Querier
	Enricher   Enricher
	Fetcher    Fetcher
	Classifier Classifier
	Composer   compose.Composer
	Publisher  Publisher
	// Shuffle reorders the candidates in place, defaults to a uniform shuffle.
	Shuffle func(records []registry.CandidateRecord)
}

type Options struct {
	Day        time.Time
	Ranges     []registry.ClassTypeRange
	Limit      int
	Delay      time.Duration
	OmitSquare bool
	OmitGrey   bool
	Test       bool
	// SkipBroken logs and skips a record whose detail page, artwork or
	// classification fails instead of aborting the run.
	SkipBroken bool
}

// Result counts what happened to the candidates of a run.
type Result struct {
	Candidates    int
	SkippedSquare int
	SkippedGrey   int
	SkippedBroken int
	Composed      int
	Published     int
}

type Pipeline struct {
	stages Stages
	tel    telemetry.API
}

func New(stages Stages, tel telemetry.API) *Pipeline {
	assert.NotNil(stages.Session)
	assert.NotNil(stages.Query)
	assert.NotNil(stages.Enricher)
	assert.NotNil(stages.Fetcher)
	assert.NotNil(stages.Classifier)
	assert.NotNil(stages.Publisher)
	assert.NotNil(tel)

	if stages.Shuffle == nil {
		stages.Shuffle = func(records []registry.CandidateRecord) {
			rand.Shuffle(len(records), func(i, j int) {
				records[i], records[j] = records[j], records[i]
			})
		}
	}
	return &Pipeline{
		stages: stages,
		tel:    telemetry.NewScopedAPI("pipeline", tel),
	}
}

func (p *Pipeline) Run(ctx context.Context, opts Options) (Result, error) {
	ctx, span := tracer.Start(ctx, "Run")
	defer span.End()
	span.SetAttributes(
		attribute.String("day", chrono.FormatDay(opts.Day)),
		attribute.Int("limit", opts.Limit),
		attribute.Bool("test", opts.Test),
	)

	posts, result, err := p.collect(ctx, opts)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return result, err
	}

	published, err := p.stages.Publisher.Publish(ctx, posts, publish.Options{
		Delay: opts.Delay,
		Limit: opts.Limit,
		Test:  opts.Test,
		Label: chrono.FormatDay(opts.Day),
	})
	result.Published = published
	publishedCounter.Add(ctx, int64(published))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return result, fmt.Errorf("publish: %w", err)
	}
	return result, nil
}

// collect holds the session for its whole duration and releases it on every path.
func (p *Pipeline) collect(ctx context.Context, opts Options) (posts []compose.Post, result Result, err error) {
	ctx, span := tracer.Start(ctx, "Collect")
	defer span.End()

	defer func() {
		closeErr := p.stages.Session.Close()
		if closeErr != nil {
			p.tel.ReportWarning(report_pipeline_collect, fmt.Errorf("close session: %w", closeErr))
		}
	}()

	candidates, err := p.stages.Query.QueryAll(ctx, opts.Day, opts.Day, opts.Ranges)
	if err != nil {
		return nil, result, fmt.Errorf("query: %w", err)
	}
	result.Candidates = len(candidates)
	queriedCounter.Add(ctx, int64(len(candidates)))
	span.SetAttributes(attribute.Int("candidates", len(candidates)))
	if len(candidates) == 0 {
		return nil, result, nil
	}

	p.stages.Shuffle(candidates)

	cookies, err := p.stages.Session.Cookies(ctx)
	if err != nil {
		return nil, result, fmt.Errorf("export session cookies: %w", err)
	}
	p.stages.Fetcher.ImportCookies(cookies)

	for _, candidate := range candidates {
		if opts.Limit > 0 && len(posts) >= opts.Limit {
			break
		}
		if err := ctx.Err(); err != nil {
			return nil, result, err
		}

		post, keep, err := p.process(ctx, candidate, opts, &result)
		if err != nil {
			if !opts.SkipBroken {
				p.tel.ReportBroken(report_pipeline_collect, err, candidate.ID)
				return nil, result, err
			}
			p.tel.ReportWarning(report_pipeline_skip, err, candidate.ID)
			result.SkippedBroken++
			continue
		}
		if !keep {
			continue
		}

		posts = append(posts, post)
		result.Composed++
		composedCounter.Add(ctx, 1)
	}

	p.tel.ReportCount("composed", int64(len(posts)))
	return posts, result, nil
}

// process runs one candidate through the filters, keep is false when a filter dropped it.
func (p *Pipeline) process(ctx context.Context, candidate registry.CandidateRecord, opts Options, result *Result) (compose.Post, bool, error) {
	ctx, span := tracer.Start(ctx, "Process")
	defer span.End()
	span.SetAttributes(attribute.String("ttb_id", candidate.ID))

	record, err := p.stages.Enricher.Enrich(ctx, candidate)
	if err != nil {
		return compose.Post{}, false, err
	}
	if opts.OmitSquare && record.IsSquare {
		p.tel.ReportDebug("omitting square label", record.ID)
		result.SkippedSquare++
		return compose.Post{}, false, nil
	}

	artwork, _, err := p.stages.Fetcher.Fetch(ctx, record)
	if err != nil {
		return compose.Post{}, false, err
	}

	if opts.OmitGrey {
		record.IsColor, err = p.stages.Classifier.IsColorBytes(artwork)
		if err != nil {
			return compose.Post{}, false, fmt.Errorf("cola %s: classify artwork: %w", record.ID, err)
		}
		if !record.IsColor {
			p.tel.ReportDebug("omitting greyscale label", record.ID)
			result.SkippedGrey++
			return compose.Post{}, false, nil
		}
	}

	return p.stages.Composer.Compose(record), true, nil
}
