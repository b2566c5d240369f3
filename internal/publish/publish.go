// Package publish posts composed announcements one at a time, paced by a minimum delay.
package publish

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"labelbot/internal/components/assert"
	"labelbot/internal/components/telemetry"
	"labelbot/internal/compose"

	"golang.org/x/time/rate"
)

const report_publisher_publish = "publisher.publish"

var ErrNoPoster = errors.New("no poster configured")

// Poster is the publishing API.
type Poster interface {
	// UploadMedia uploads an attachment and returns its media id.
	UploadMedia(ctx context.Context, filename string, media io.Reader) (string, error)
	// CreatePost publishes text with the given media attached and returns the post id.
	CreatePost(ctx context.Context, text string, mediaIds []string) (string, error)
}

// MediaSource opens the artwork a post attaches, implemented by the working directory.
type MediaSource interface {
	Open(name string) (*os.File, error)
}

type Options struct {
	// Delay is the minimum time between two posts, the first post is not delayed.
	Delay time.Duration
	// Limit caps the number of posts, 0 is unbounded.
	Limit int
	// Test logs each post instead of publishing it.
	Test bool
	// Label prefixes log lines, usually the day the labels were approved.
	Label string
}

type Publisher struct {
	poster Poster
	media  MediaSource
	tel    telemetry.API
}

// NewPublisher creates a Publisher, poster may be nil when only test runs are made.
func NewPublisher(poster Poster, media MediaSource, tel telemetry.API) *Publisher {
	assert.NotNil(media)
	assert.NotNil(tel)

	return &Publisher{
		poster: poster,
		media:  media,
		tel:    telemetry.NewScopedAPI("publish", tel),
	}
}

// Publish posts in order and returns how many were posted (or logged in test mode).
// The first failure stops the run.
func (p *Publisher) Publish(ctx context.Context, posts []compose.Post, opts Options) (int, error) {
	if len(posts) == 0 {
		p.tel.ReportInfo("no posts", opts.Label)
		return 0, nil
	}
	if !opts.Test && p.poster == nil {
		return 0, ErrNoPoster
	}
	if opts.Limit > 0 && len(posts) > opts.Limit {
		posts = posts[:opts.Limit]
	}

	// rate.Every(0) is rate.Inf, a zero delay never waits
	pacer := rate.NewLimiter(rate.Every(opts.Delay), 1)

	published := 0
	for _, post := range posts {
		if opts.Test {
			p.tel.ReportInfo("test posted", opts.Label, post.Text)
			published++
			continue
		}

		err := pacer.Wait(ctx)
		if err != nil {
			return published, err
		}

		id, err := p.publishOne(ctx, post)
		if err != nil {
			p.tel.ReportBroken(report_publisher_publish, err, post.ImageFilename)
			return published, err
		}
		p.tel.ReportInfo("posted", opts.Label, id, post.Text)
		published++
	}
	p.tel.ReportCount("published", int64(published))
	return published, nil
}

func (p *Publisher) publishOne(ctx context.Context, post compose.Post) (string, error) {
	f, err := p.media.Open(post.ImageFilename)
	if err != nil {
		return "", fmt.Errorf("open media %s: %w", post.ImageFilename, err)
	}
	defer f.Close()

	mediaId, err := p.poster.UploadMedia(ctx, post.ImageFilename, f)
	if err != nil {
		return "", fmt.Errorf("upload media %s: %w", post.ImageFilename, err)
	}
	id, err := p.poster.CreatePost(ctx, post.Text, []string{mediaId})
	if err != nil {
		return "", fmt.Errorf("create post: %w", err)
	}
	return id, nil
}
