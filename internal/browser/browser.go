// Package browser drives a real Chromium through the registry's search and detail pages.
package browser

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"labelbot/internal/components/assert"
	"labelbot/internal/components/telemetry"
	"labelbot/internal/registry"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
)

const (
	report_session_search = "session.search"
	report_session_detail = "session.detail"
)

type Options struct {
	Headless bool
	// Bin is the browser executable, empty lets the launcher find or download one.
	Bin string
	// Stealth patches the page so it does not announce automation.
	Stealth bool
	// NavigationTimeout defaults to 30 seconds.
	NavigationTimeout time.Duration
	// LoadTimeout bounds the wait for a detail page title, defaults to 10 seconds.
	LoadTimeout time.Duration
}

// Session is a registry.Session backed by a single browser tab.
type Session struct {
	launcher  *launcher.Launcher
	browser   *rod.Browser
	page      *rod.Page
	endpoints registry.Endpoints
	opts      Options
	tel       telemetry.API
}

var _ registry.Session = (*Session)(nil)

// Launch starts a browser and opens the tab every request of the session goes through.
func Launch(endpoints registry.Endpoints, opts Options, tel telemetry.API) (*Session, error) {
	assert.NotEmptyStr(endpoints.Base.Host)
	assert.NotNil(tel)

	if opts.NavigationTimeout == 0 {
		opts.NavigationTimeout = time.Second * 30
	}
	if opts.LoadTimeout == 0 {
		opts.LoadTimeout = time.Second * 10
	}

	l := launcher.New().
		Headless(opts.Headless).
		Set("no-sandbox").
		Set("disable-dev-shm-usage")
	if opts.Bin != "" {
		l = l.Bin(opts.Bin)
	}
	u, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("launch browser: %w", err)
	}

	browser := rod.New().ControlURL(u)
	if err := browser.Connect(); err != nil {
		l.Cleanup()
		return nil, fmt.Errorf("connect to browser: %w", err)
	}

	var page *rod.Page
	if opts.Stealth {
		page, err = stealth.Page(browser)
	} else {
		page, err = browser.Page(proto.TargetCreateTarget{})
	}
	if err != nil {
		browser.Close()
		l.Cleanup()
		return nil, fmt.Errorf("create tab: %w", err)
	}

	return &Session{
		launcher:  l,
		browser:   browser,
		page:      page,
		endpoints: endpoints,
		opts:      opts,
		tel:       telemetry.NewScopedAPI("browser", tel),
	}, nil
}

func (s *Session) navigate(ctx context.Context, url string) (*rod.Page, error) {
	page := s.page.Context(ctx)
	err := page.Timeout(s.opts.NavigationTimeout).Navigate(url)
	if err != nil {
		return nil, fmt.Errorf("navigate to %s: %w", url, err)
	}
	err = page.Timeout(s.opts.NavigationTimeout).WaitLoad()
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", url, err)
	}
	return page, nil
}

// fields are filled in the order a person would fill them
var searchFieldOrder = []string{
	registry.FieldDateFrom,
	registry.FieldDateTo,
	registry.FieldClassTypeFrom,
	registry.FieldClassTypeTo,
}

// exportScript downloads the export of the search the tab just ran with the tab's own cookies.
const exportScript = `async (url) => {
	const res = await fetch(url, { credentials: "include" });
	return {
		status: res.status,
		type: res.headers.get("content-type") || "",
		body: await res.text(),
	};
}`

func (s *Session) SearchExport(ctx context.Context, query registry.SearchQuery) ([]byte, error) {
	page, err := s.navigate(ctx, s.endpoints.SearchForm())
	if err != nil {
		s.tel.ReportBroken(report_session_search, err)
		return nil, err
	}

	form := query.FormData()
	for _, name := range searchFieldOrder {
		el, err := page.Timeout(s.opts.NavigationTimeout).Element(fmt.Sprintf(`[name="%s"]`, name))
		if err != nil {
			s.tel.ReportBroken(report_session_search, fmt.Errorf("find field: %w", err), name)
			return nil, fmt.Errorf("%w: search field %s: %v", registry.ErrUnexpectedLayout, name, err)
		}
		if err := el.Input(form[name]); err != nil {
			return nil, fmt.Errorf("fill %s: %w", name, err)
		}
	}

	submit, err := page.Timeout(s.opts.NavigationTimeout).Element(`input[value="Search"]`)
	if err != nil {
		s.tel.ReportBroken(report_session_search, fmt.Errorf("find submit: %w", err))
		return nil, fmt.Errorf("%w: search button: %v", registry.ErrUnexpectedLayout, err)
	}
	wait := page.Timeout(s.opts.NavigationTimeout).WaitNavigation(proto.PageLifecycleEventNameLoad)
	if err := submit.Click(proto.InputMouseButtonLeft, 1); err != nil {
		return nil, fmt.Errorf("submit search: %w", err)
	}
	wait()

	res, err := page.Timeout(s.opts.NavigationTimeout).Evaluate(
		rod.Eval(exportScript, s.endpoints.Export()).ByPromise(),
	)
	if err != nil {
		s.tel.ReportBroken(report_session_search, fmt.Errorf("export: %w", err), query.ClassType.String())
		return nil, fmt.Errorf("export: %w", err)
	}

	status := res.Value.Get("status").Int()
	if status < 200 || status > 299 {
		err := registry.StatusError{Method: http.MethodGet, Url: s.endpoints.Export(), Status: status}
		s.tel.ReportBroken(report_session_search, err, query.ClassType.String())
		return nil, err
	}
	// with no results the export link lands back on the search page
	if strings.Contains(res.Value.Get("type").Str(), "html") {
		return nil, nil
	}
	return []byte(res.Value.Get("body").Str()), nil
}

// loadedScript reports whether the page has reached its final title.
const loadedScript = `(title) => document.title === title`

func (s *Session) DetailPage(ctx context.Context, id string) (string, error) {
	page, err := s.navigate(ctx, s.endpoints.Detail(id))
	if err != nil {
		s.tel.ReportBroken(report_session_detail, err, id)
		return "", err
	}

	err = page.Timeout(s.opts.LoadTimeout).Wait(rod.Eval(loadedScript, registry.DetailPageTitle))
	if errors.Is(err, context.DeadlineExceeded) {
		s.tel.ReportWarning(report_session_detail, "title wait timed out", id)
		return "", fmt.Errorf("cola %s: %w", id, registry.ErrDetailNotLoaded)
	}
	if err != nil {
		s.tel.ReportBroken(report_session_detail, err, id)
		return "", err
	}

	html, err := page.HTML()
	if err != nil {
		return "", fmt.Errorf("read detail page: %w", err)
	}
	return html, nil
}

func (s *Session) Cookies(ctx context.Context) ([]*http.Cookie, error) {
	cookies, err := s.page.Context(ctx).Cookies([]string{s.endpoints.Base.String()})
	if err != nil {
		return nil, fmt.Errorf("read cookies: %w", err)
	}
	return ToHttpCookies(cookies), nil
}

// ToHttpCookies converts browser cookies into cookies a cookiejar accepts.
func ToHttpCookies(cookies []*proto.NetworkCookie) []*http.Cookie {
	out := make([]*http.Cookie, 0, len(cookies))
	for _, c := range cookies {
		out = append(out, &http.Cookie{
			Name:     c.Name,
			Value:    c.Value,
			Path:     c.Path,
			Domain:   strings.TrimPrefix(c.Domain, "."),
			Secure:   c.Secure,
			HttpOnly: c.HTTPOnly,
		})
	}
	return out
}

func (s *Session) Close() error {
	err := s.browser.Close()
	s.launcher.Cleanup()
	return err
}
