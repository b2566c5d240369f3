package registry

import (
	"net/http/cookiejar"
	"time"

	"labelbot/internal/components/assert"
	"labelbot/internal/components/telemetry"

	cloudflarebp "github.com/DaRealFreak/cloudflare-bp-go"
	"github.com/go-resty/resty/v2"
	"golang.org/x/time/rate"
)

const UserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123.0.0.0 Safari/537.36"

type ClientOptions struct {
	// BaseUrl defaults to DefaultBaseUrl.
	BaseUrl string
	// RequestsPerSecond caps the request rate, 0 disables the cap.
	RequestsPerSecond float64
	// CloudflareBypass wraps the transport with cloudflare-bp.
	CloudflareBypass bool
	// Timeout defaults to 30 seconds.
	Timeout time.Duration
}

// Client is a plain HTTP client for the registry with its own cookie jar.
type Client struct {
	Endpoints
	Http *resty.Client
	Jar  *cookiejar.Jar

	tel telemetry.API
}

func NewClient(opts ClientOptions, tel telemetry.API) (*Client, error) {
	assert.NotNil(tel)

	if opts.BaseUrl == "" {
		opts.BaseUrl = DefaultBaseUrl
	}
	if opts.Timeout == 0 {
		opts.Timeout = time.Second * 30
	}

	endpoints, err := NewEndpoints(opts.BaseUrl)
	if err != nil {
		return nil, err
	}

	httpClient := resty.New()
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}
	httpClient.SetCookieJar(jar)
	if opts.CloudflareBypass {
		httpClient.GetClient().Transport = cloudflarebp.AddCloudFlareByPass(httpClient.GetClient().Transport)
	}

	httpClient.SetHeader("user-agent", UserAgent)
	httpClient.SetRedirectPolicy(resty.DomainCheckRedirectPolicy(endpoints.Base.Hostname()))
	httpClient.SetTimeout(opts.Timeout)

	if opts.RequestsPerSecond > 0 {
		// max burst >= 1 just means that no requests will be dropped
		rateLimiter := rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), 1)
		httpClient.OnBeforeRequest(func(_ *resty.Client, req *resty.Request) error {
			return rateLimiter.Wait(req.Context())
		})
	}

	telemetry.InstrumentResty(httpClient, tel)

	return &Client{
		Endpoints: endpoints,
		Http:      httpClient,
		Jar:       jar,
		tel:       tel,
	}, nil
}

// checkResponse turns transport errors and non-success statuses into errors.
func checkResponse(res *resty.Response, err error) error {
	if err != nil {
		return err
	}
	if res.IsError() || res.StatusCode() < 200 || res.StatusCode() > 299 {
		return StatusError{
			Method: res.Request.Method,
			Url:    res.Request.URL,
			Status: res.StatusCode(),
		}
	}
	return nil
}
