// Package twitter is the publishing API client, v1.1 media upload and v2 post creation.
package twitter

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"labelbot/internal/components/assert"
	"labelbot/internal/components/telemetry"

	"github.com/dghubble/oauth1"
	"github.com/go-resty/resty/v2"
)

const (
	DefaultUploadUrl = "https://upload.twitter.com/1.1/media/upload.json"
	DefaultPostUrl   = "https://api.twitter.com/2/tweets"
)

const (
	report_client_upload = "client.upload-media"
	report_client_post   = "client.create-post"
)

// Credentials is the OAuth 1.0a bundle of a user context app.
type Credentials struct {
	ConsumerKey       string `json:"consumer_key"`
	ConsumerSecret    string `json:"consumer_secret"`
	AccessToken       string `json:"access_token"`
	AccessTokenSecret string `json:"access_token_secret"`
}

func (c Credentials) Complete() bool {
	return c.ConsumerKey != "" &&
		c.ConsumerSecret != "" &&
		c.AccessToken != "" &&
		c.AccessTokenSecret != ""
}

type Options struct {
	// UploadUrl and PostUrl default to the live api.
	UploadUrl string
	PostUrl   string
	Timeout   time.Duration
}

type Client struct {
	http      *resty.Client
	uploadUrl string
	postUrl   string
	tel       telemetry.API
}

func NewClient(creds Credentials, opts Options, tel telemetry.API) (*Client, error) {
	assert.NotNil(tel)
	if !creds.Complete() {
		return nil, fmt.Errorf("incomplete twitter credentials")
	}
	if opts.UploadUrl == "" {
		opts.UploadUrl = DefaultUploadUrl
	}
	if opts.PostUrl == "" {
		opts.PostUrl = DefaultPostUrl
	}
	if opts.Timeout == 0 {
		opts.Timeout = time.Second * 60
	}

	config := oauth1.NewConfig(creds.ConsumerKey, creds.ConsumerSecret)
	token := oauth1.NewToken(creds.AccessToken, creds.AccessTokenSecret)

	client := resty.NewWithClient(config.Client(context.Background(), token))
	client.SetTimeout(opts.Timeout)
	telemetry.InstrumentResty(client, tel)

	return &Client{
		http:      client,
		uploadUrl: opts.UploadUrl,
		postUrl:   opts.PostUrl,
		tel:       telemetry.NewScopedAPI("twitter", tel),
	}, nil
}

// apiError covers both the v1.1 and the v2 error bodies.
type apiError struct {
	Title  string `json:"title"`
	Detail string `json:"detail"`
	Errors []struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"errors"`
}

func (e *apiError) String() string {
	var parts []string
	if e.Title != "" {
		parts = append(parts, e.Title)
	}
	if e.Detail != "" {
		parts = append(parts, e.Detail)
	}
	for _, item := range e.Errors {
		parts = append(parts, fmt.Sprintf("%d %s", item.Code, item.Message))
	}
	return strings.Join(parts, "; ")
}

func responseError(res *resty.Response, err error) error {
	if err != nil {
		return err
	}
	if !res.IsError() {
		return nil
	}
	detail := ""
	if apiErr, ok := res.Error().(*apiError); ok {
		detail = apiErr.String()
	}
	if detail == "" {
		detail = strings.TrimSpace(string(res.Body()))
	}
	return fmt.Errorf("%s %s: %s: %s", res.Request.Method, res.Request.URL, res.Status(), detail)
}

type uploadResponse struct {
	MediaIdString string `json:"media_id_string"`
}

func (c *Client) UploadMedia(ctx context.Context, filename string, media io.Reader) (string, error) {
	var out uploadResponse
	res, err := c.http.R().
		SetContext(ctx).
		SetFileReader("media", filename, media).
		SetResult(&out).
		SetError(&apiError{}).
		Post(c.uploadUrl)
	err = responseError(res, err)
	if err != nil {
		c.tel.ReportBroken(report_client_upload, err, filename)
		return "", err
	}
	if out.MediaIdString == "" {
		err := fmt.Errorf("upload %s: response has no media id", filename)
		c.tel.ReportBroken(report_client_upload, err, filename)
		return "", err
	}
	return out.MediaIdString, nil
}

type postMedia struct {
	MediaIds []string `json:"media_ids"`
}

type postRequest struct {
	Text  string     `json:"text"`
	Media *postMedia `json:"media,omitempty"`
}

type postResponse struct {
	Data struct {
		Id   string `json:"id"`
		Text string `json:"text"`
	} `json:"data"`
}

func (c *Client) CreatePost(ctx context.Context, text string, mediaIds []string) (string, error) {
	body := postRequest{Text: text}
	if len(mediaIds) > 0 {
		body.Media = &postMedia{MediaIds: mediaIds}
	}

	var out postResponse
	res, err := c.http.R().
		SetContext(ctx).
		SetBody(body).
		SetResult(&out).
		SetError(&apiError{}).
		Post(c.postUrl)
	err = responseError(res, err)
	if err != nil {
		c.tel.ReportBroken(report_client_post, err)
		return "", err
	}
	return out.Data.Id, nil
}
