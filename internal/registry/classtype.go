package registry

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"labelbot/internal/components/assert"
	"labelbot/internal/components/telemetry"
	"labelbot/pkg/htmlutil"

	"github.com/PuerkitoBio/goquery"
)

const report_class_type_resolve = "class-type.resolve"

// ClassTypeCache maps a class/type code to its description. A present key with a nil
// value means the code was looked up and has no description, it is never looked up again.
type ClassTypeCache map[string]*string

// ClassTypeResolver memoizes class/type code lookups for the lifetime of one run.
type ClassTypeResolver struct {
	client *Client
	cache  ClassTypeCache
	tel    telemetry.API
}

func NewClassTypeResolver(client *Client, tel telemetry.API) *ClassTypeResolver {
	assert.NotNil(client)
	assert.NotNil(tel)

	return &ClassTypeResolver{
		client: client,
		cache:  ClassTypeCache{},
		tel:    telemetry.NewScopedAPI("class_type", tel),
	}
}

// Cached returns the cached description of code and whether code was looked up at all.
func (r *ClassTypeResolver) Cached(code string) (*string, bool) {
	description, ok := r.cache[code]
	return description, ok
}

// Resolve returns the lowercase description of code, nil when the registry has none.
func (r *ClassTypeResolver) Resolve(ctx context.Context, code string) (*string, error) {
	if description, ok := r.cache[code]; ok {
		return description, nil
	}

	res, err := r.client.Http.R().
		SetContext(ctx).
		SetFormData(map[string]string{
			FieldClassTypeCode: code,
		}).
		Post(r.client.ClassTypeLookup())
	err = checkResponse(res, err)
	if err != nil {
		r.tel.ReportBroken(report_class_type_resolve, fmt.Errorf("fetch: %w", err), code)
		return nil, fmt.Errorf("class type lookup %q: %w", code, err)
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewBuffer(res.Body()))
	if err != nil {
		r.tel.ReportBroken(report_class_type_resolve, fmt.Errorf("parse: %w", err), code)
		return nil, fmt.Errorf("class type lookup %q: %w", code, err)
	}

	description := parseClassTypeDescription(doc)
	if description == nil {
		r.tel.ReportWarning(report_class_type_resolve, "no description", code)
	}
	r.cache[code] = description
	return description, nil
}

// the lookup result is the only cell with this exact geometry
const classTypeCellSelector = `td[width="77%"][height="22"]`

func parseClassTypeDescription(doc *goquery.Document) *string {
	cell := doc.Find(classTypeCellSelector).First()
	if cell.Length() == 0 {
		return nil
	}
	text := strings.ToLower(htmlutil.Normalize(htmlutil.GetText(cell.Nodes[0])))
	if text == "" {
		return nil
	}
	return &text
}
