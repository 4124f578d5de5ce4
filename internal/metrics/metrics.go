// Package metrics is a backend-agnostic facade for pipeline and
// recommendation metrics.
//
// Core code calls the package-level helpers; cmd/ picks a backend with
// SetBackend. Until then a no-op backend swallows everything, so tests and
// library callers never need metrics configured.
package metrics

import (
	"sync"
	"time"
)

// Metric names. Backends switch on these and ignore anything else.
const (
	StepTotal         = "etl_step_total"             // labels: step, status
	RecordsTotal      = "etl_records_total"          // labels: kind
	StepDuration      = "etl_step_duration_seconds"  // labels: step, status
	RecommendRequests = "recommend_requests_total"   // labels: path, status
	RecommendDuration = "recommend_duration_seconds" // labels: path
)

// Labels are metric dimensions.
type Labels map[string]string

// Backend receives metric events.
type Backend interface {
	IncCounter(name string, delta float64, labels Labels)
	ObserveHistogram(name string, value float64, labels Labels)
}

// Flusher is implemented by backends that buffer.
type Flusher interface {
	Flush() error
}

type nopBackend struct{}

func (nopBackend) IncCounter(string, float64, Labels)       {}
func (nopBackend) ObserveHistogram(string, float64, Labels) {}

var (
	mu      sync.RWMutex
	backend Backend = nopBackend{}
)

// SetBackend installs b. A nil b restores the no-op backend.
func SetBackend(b Backend) {
	mu.Lock()
	defer mu.Unlock()
	if b == nil {
		b = nopBackend{}
	}
	backend = b
}

func current() Backend {
	mu.RLock()
	defer mu.RUnlock()
	return backend
}

// IncCounter adds delta to a counter.
func IncCounter(name string, delta float64, labels Labels) {
	current().IncCounter(name, delta, labels)
}

// ObserveHistogram records one sample.
func ObserveHistogram(name string, value float64, labels Labels) {
	current().ObserveHistogram(name, value, labels)
}

// Flush pushes buffered metrics if the backend buffers.
func Flush() error {
	if f, ok := current().(Flusher); ok {
		return f.Flush()
	}
	return nil
}

// RecordStep counts one pipeline step and observes its duration.
// status is "ok" when err is nil and "error" otherwise.
func RecordStep(step string, start time.Time, err error) {
	l := Labels{"step": step, "status": statusOf(err)}
	IncCounter(StepTotal, 1, l)
	ObserveHistogram(StepDuration, time.Since(start).Seconds(), l)
}

// RecordRecords counts rows by kind ("inserted", "skipped", "extracted", ...).
func RecordRecords(kind string, n int64) {
	if n <= 0 {
		return
	}
	IncCounter(RecordsTotal, float64(n), Labels{"kind": kind})
}

// RecordRecommend counts one recommendation request on path
// ("content" or "profile").
func RecordRecommend(path string, start time.Time, err error) {
	IncCounter(RecommendRequests, 1, Labels{"path": path, "status": statusOf(err)})
	ObserveHistogram(RecommendDuration, time.Since(start).Seconds(), Labels{"path": path})
}

func statusOf(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
