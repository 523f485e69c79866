// Package metrics counts repository operations per entity and backend and
// exposes them in Prometheus text format.
package metrics

import (
	"fmt"
	"io"
	"strings"
	"time"

	vm "github.com/VictoriaMetrics/metrics"
	"github.com/varubogu/flequit-sub003/internal/storeerr"
)

// Backend names used as label values.
const (
	BackendDocument   = "document"
	BackendRelational = "relational"
)

// Recorder is a private metrics set. A nil *Recorder records nothing.
type Recorder struct {
	set *vm.Set
}

// New returns an empty recorder.
func New() *Recorder {
	return &Recorder{set: vm.NewSet()}
}

// Observe records one backend call that started at start.
func (r *Recorder) Observe(op, entity, backend string, start time.Time, err error) {
	if r == nil {
		return
	}
	r.set.GetOrCreateCounter(fmt.Sprintf(`flequit_store_ops_total{op=%q,entity=%q,backend=%q,outcome=%q}`,
		op, entity, backend, Outcome(err))).Inc()
	r.set.GetOrCreateHistogram(fmt.Sprintf(`flequit_store_op_duration_seconds{op=%q,backend=%q}`,
		op, backend)).Update(time.Since(start).Seconds())
}

// Fallback records a read served by the document backend after the
// relational backend missed or failed.
func (r *Recorder) Fallback(entity string) {
	if r == nil {
		return
	}
	r.set.GetOrCreateCounter(fmt.Sprintf(`flequit_store_read_fallback_total{entity=%q}`, entity)).Inc()
}

// Divergence records a relational write that failed after the document
// write succeeded.
func (r *Recorder) Divergence(entity string) {
	if r == nil {
		return
	}
	r.set.GetOrCreateCounter(fmt.Sprintf(`flequit_store_divergence_total{entity=%q}`, entity)).Inc()
}

// Count returns the current value of a counter, 0 if it was never touched.
func (r *Recorder) Count(name string) uint64 {
	if r == nil {
		return 0
	}
	return r.set.GetOrCreateCounter(name).Get()
}

// WritePrometheus writes every metric in Prometheus text format.
func (r *Recorder) WritePrometheus(w io.Writer) {
	if r == nil {
		return
	}
	r.set.WritePrometheus(w)
}

// Outcome turns an error into a label value.
func Outcome(err error) string {
	if err == nil {
		return "ok"
	}
	return strings.ReplaceAll(storeerr.KindOf(err).String(), " ", "_")
}
