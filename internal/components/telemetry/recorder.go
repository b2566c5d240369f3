package telemetry

import "sync"

// Report is a single call captured by Recorder.
type Report struct {
	Kind   string
	Id     string
	Params []any
}

// Recorder is an API that keeps every report in memory, it is meant for
// tests that need to assert a component reported something.
type Recorder struct {
	mu      sync.Mutex
	Reports []Report
}

func (r *Recorder) add(kind, id string, params []any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Reports = append(r.Reports, Report{Kind: kind, Id: id, Params: params})
}

func (r *Recorder) ReportBroken(id string, params ...any)  { r.add("broken", id, params) }
func (r *Recorder) ReportWarning(id string, params ...any) { r.add("warning", id, params) }
func (r *Recorder) ReportDebug(msg string, params ...any)  { r.add("debug", msg, params) }
func (r *Recorder) ReportInfo(msg string, params ...any)   { r.add("info", msg, params) }
func (r *Recorder) ReportCount(id string, count int64)     { r.add("count", id, []any{count}) }

// Has returns true if a report of the given kind and id was recorded.
func (r *Recorder) Has(kind, id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, rep := range r.Reports {
		if rep.Kind == kind && rep.Id == id {
			return true
		}
	}
	return false
}
