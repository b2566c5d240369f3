// Package registry scrapes the TTB public COLA registry: ranged searches exported as CSV,
// class/type code lookups, per-record detail pages and label artwork.
package registry

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"labelbot/internal/components/chrono"
)

const DefaultBaseUrl = "https://www.ttbonline.gov"

const (
	SearchFormPath      = "/colasonline/publicSearchColasBasic.do"
	SearchProcessPath   = "/colasonline/publicSearchColasBasicProcess.do"
	ExportPath          = "/colasonline/publicSaveSearchResultsToFile.do"
	DetailPath          = "/colasonline/viewColaDetails.do"
	ClassTypeLookupPath = "/colasonline/lookupProductClassTypeCode.do"

	// DetailPageTitle is the document title of a fully loaded detail page.
	DetailPageTitle = "OMB No. 1513-0020"
)

// form field names of the basic search form
const (
	FieldDateFrom      = "searchCriteria.dateCompletedFrom"
	FieldDateTo        = "searchCriteria.dateCompletedTo"
	FieldClassTypeFrom = "searchCriteria.classTypeFrom"
	FieldClassTypeTo   = "searchCriteria.classTypeTo"
	FieldClassTypeCode = "searchCriteria.classTypeCode"
)

var (
	// ErrUnexpectedLayout is returned when a page does not have the structure the extractors expect.
	ErrUnexpectedLayout = errors.New("unexpected page layout")
	// ErrDetailNotLoaded is returned when a detail page never reaches its loaded state.
	ErrDetailNotLoaded = errors.New("detail page did not finish loading")
)

// StatusError is returned for any non-success HTTP status.
type StatusError struct {
	Method string
	Url    string
	Status int
}

func (e StatusError) Error() string {
	return fmt.Sprintf("%s %s: unexpected status %d", e.Method, e.Url, e.Status)
}

// Endpoints builds absolute registry urls from a base origin.
type Endpoints struct {
	Base *url.URL
}

func NewEndpoints(baseUrl string) (Endpoints, error) {
	parsed, err := url.Parse(strings.TrimSuffix(baseUrl, "/"))
	if err != nil {
		return Endpoints{}, err
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return Endpoints{}, fmt.Errorf("base url %q must be absolute", baseUrl)
	}
	return Endpoints{Base: parsed}, nil
}

func (e Endpoints) resolve(path string, query url.Values) string {
	u := *e.Base
	u.Path = path
	u.RawQuery = query.Encode()
	return u.String()
}

func (e Endpoints) SearchForm() string {
	return e.resolve(SearchFormPath, nil)
}

func (e Endpoints) SearchProcess() string {
	return e.resolve(SearchProcessPath, url.Values{"action": {"search"}})
}

func (e Endpoints) Export() string {
	// the path parameter is sent unescaped by the site itself
	return e.resolve(ExportPath, nil) + "?path=/publicSearchColasBasicProcess"
}

func (e Endpoints) ClassTypeLookup() string {
	return e.resolve(ClassTypeLookupPath, url.Values{"action": {"search"}})
}

func (e Endpoints) Detail(id string) string {
	return e.resolve(DetailPath, nil) + "?action=publicFormDisplay&ttbid=" + url.QueryEscape(id)
}

var canonical, _ = NewEndpoints(DefaultBaseUrl)

// DetailUrl returns the public detail page url of a COLA on the live registry.
func DetailUrl(id string) string {
	return canonical.Detail(id)
}

// ClassTypeRange is an inclusive range of class/type codes.
type ClassTypeRange struct {
	From string
	To   string
}

func (r ClassTypeRange) String() string {
	return r.From + "-" + r.To
}

// ParseClassTypeRange parses "LOW-HIGH", a single code is a range of one.
func ParseClassTypeRange(value string) (ClassTypeRange, error) {
	value = strings.TrimSpace(value)
	from, to, found := strings.Cut(value, "-")
	if !found {
		to = from
	}
	from = strings.TrimSpace(from)
	to = strings.TrimSpace(to)
	if from == "" || to == "" {
		return ClassTypeRange{}, fmt.Errorf("invalid class type range %q, expected LOW-HIGH", value)
	}
	for _, code := range []string{from, to} {
		for _, c := range code {
			if c < '0' || c > '9' {
				return ClassTypeRange{}, fmt.Errorf("invalid class type code %q in range %q", code, value)
			}
		}
	}
	return ClassTypeRange{From: from, To: to}, nil
}

// SearchQuery is one ranged search of the registry, dates are inclusive.
type SearchQuery struct {
	DateFrom  time.Time
	DateTo    time.Time
	ClassType ClassTypeRange
}

// FormData returns the search form fields for the query.
func (q SearchQuery) FormData() map[string]string {
	return map[string]string{
		FieldDateFrom:      chrono.FormatDay(q.DateFrom),
		FieldDateTo:        chrono.FormatDay(q.DateTo),
		FieldClassTypeFrom: q.ClassType.From,
		FieldClassTypeTo:   q.ClassType.To,
	}
}

// Session is a logged in view of the registry, either a driven browser or a plain HTTP client.
type Session interface {
	// SearchExport performs the search and returns the CSV export of its results,
	// nil when the search has no results.
	SearchExport(ctx context.Context, query SearchQuery) ([]byte, error)
	// DetailPage returns the markup of a detail page once its title reads DetailPageTitle.
	DetailPage(ctx context.Context, id string) (string, error)
	// Cookies exports the session cookies so a plain client can reuse them.
	Cookies(ctx context.Context) ([]*http.Cookie, error)
	Close() error
}
