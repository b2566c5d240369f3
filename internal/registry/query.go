package registry

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"labelbot/internal/components/assert"
	"labelbot/internal/components/chrono"
	"labelbot/internal/components/telemetry"
)

const (
	report_query_service_query = "query-service.query"
)

// export column headers
const (
	ColumnId           = "TTB ID"
	ColumnFancifulName = "Fanciful Name"
	ColumnBrandName    = "Brand Name"
	ColumnClassType    = "Class/Type"
	ColumnOrigin       = "Origin"
)

var requiredColumns = []string{
	ColumnId,
	ColumnFancifulName,
	ColumnBrandName,
	ColumnClassType,
	ColumnOrigin,
}

// ExportSink keeps a copy of every raw export, implemented by the working directory.
type ExportSink interface {
	WriteFile(name string, contents []byte) (string, error)
}

// ResolveFunc resolves a class/type code, see ClassTypeResolver.Resolve.
type ResolveFunc func(ctx context.Context, code string) (*string, error)

type QueryService struct {
	session Session
	resolve ResolveFunc
	sink    ExportSink
	tel     telemetry.API
}

// NewQueryService creates a QueryService, sink may be nil.
func NewQueryService(session Session, resolver *ClassTypeResolver, sink ExportSink, tel telemetry.API) *QueryService {
	assert.NotNil(session)
	assert.NotNil(resolver)
	assert.NotNil(tel)

	return &QueryService{
		session: session,
		resolve: resolver.Resolve,
		sink:    sink,
		tel:     telemetry.NewScopedAPI("query", tel),
	}
}

// Query runs one ranged search, no results is an empty slice and a nil error.
func (s *QueryService) Query(ctx context.Context, query SearchQuery) ([]CandidateRecord, error) {
	s.tel.ReportInfo(
		"getting labels",
		chrono.FormatDay(query.DateFrom),
		chrono.FormatDay(query.DateTo),
		query.ClassType.String(),
	)

	export, err := s.session.SearchExport(ctx, query)
	if err != nil {
		s.tel.ReportBroken(report_query_service_query, fmt.Errorf("search: %w", err), query.ClassType.String())
		return nil, fmt.Errorf("search %s: %w", query.ClassType, err)
	}
	if len(bytes.TrimSpace(export)) == 0 {
		s.tel.ReportInfo("no results", query.ClassType.String())
		return nil, nil
	}

	if s.sink != nil {
		name := fmt.Sprintf("SearchResultsFile-%s.csv", query.ClassType)
		if _, err := s.sink.WriteFile(name, export); err != nil {
			s.tel.ReportWarning(report_query_service_query, fmt.Errorf("keep export: %w", err), name)
		}
	}

	records, err := ParseExport(ctx, export, s.resolve)
	if err != nil {
		s.tel.ReportBroken(report_query_service_query, fmt.Errorf("parse export: %w", err), query.ClassType.String())
		return nil, fmt.Errorf("parse export %s: %w", query.ClassType, err)
	}
	if len(records) == 0 {
		s.tel.ReportInfo("no results", query.ClassType.String())
	}
	s.tel.ReportCount("records", int64(len(records)))
	return records, nil
}

// QueryAll runs one query per range over the same dates and concatenates the results.
func (s *QueryService) QueryAll(ctx context.Context, from, to time.Time, ranges []ClassTypeRange) ([]CandidateRecord, error) {
	var all []CandidateRecord
	for _, r := range ranges {
		records, err := s.Query(ctx, SearchQuery{
			DateFrom:  from,
			DateTo:    to,
			ClassType: r,
		})
		if err != nil {
			return nil, err
		}
		all = append(all, records...)
	}
	return all, nil
}

var utf8Bom = []byte{0xEF, 0xBB, 0xBF}

// ParseExport parses the CSV export of a search, resolving the class/type column through resolve.
func ParseExport(ctx context.Context, export []byte, resolve ResolveFunc) ([]CandidateRecord, error) {
	reader := csv.NewReader(bytes.NewReader(bytes.TrimPrefix(export, utf8Bom)))
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}

	columns := map[string]int{}
	for i, name := range header {
		columns[strings.TrimSpace(name)] = i
	}
	for _, name := range requiredColumns {
		if _, ok := columns[name]; !ok {
			return nil, fmt.Errorf("%w: export has no %q column", ErrUnexpectedLayout, name)
		}
	}

	field := func(row []string, name string) string {
		i := columns[name]
		if i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	var records []CandidateRecord
	for {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read row: %w", err)
		}
		if len(row) == 1 && strings.TrimSpace(row[0]) == "" {
			continue
		}

		code := field(row, ColumnClassType)
		classType, err := resolve(ctx, code)
		if err != nil {
			return nil, err
		}

		records = append(records, CandidateRecord{
			ID:            strings.Trim(field(row, ColumnId), "'"),
			FancifulName:  field(row, ColumnFancifulName),
			BrandName:     field(row, ColumnBrandName),
			ClassTypeCode: code,
			ClassType:     classType,
			Origin:        field(row, ColumnOrigin),
		})
	}
	return records, nil
}
