package metrics

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/varubogu/flequit-sub003/internal/storeerr"
)

func TestRecorder_Observe(t *testing.T) {
	r := New()
	start := time.Now()

	r.Observe("save", "task", BackendDocument, start, nil)
	r.Observe("save", "task", BackendDocument, start, nil)
	r.Observe("save", "task", BackendRelational, start, storeerr.New(storeerr.KindConstraint, "save", errors.New("unique")))
	r.Fallback("task")

	if got := r.Count(`flequit_store_ops_total{op="save",entity="task",backend="document",outcome="ok"}`); got != 2 {
		t.Errorf("ok count = %d, want 2", got)
	}
	if got := r.Count(`flequit_store_read_fallback_total{entity="task"}`); got != 1 {
		t.Errorf("fallback count = %d, want 1", got)
	}

	var buf bytes.Buffer
	r.WritePrometheus(&buf)
	out := buf.String()
	for _, want := range []string{
		`outcome="constraint_violation"`,
		`flequit_store_op_duration_seconds_bucket`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %s:\n%s", want, out)
		}
	}
}

func TestRecorder_Nil(t *testing.T) {
	var r *Recorder
	r.Observe("get", "tag", BackendDocument, time.Now(), nil)
	r.Fallback("tag")
	r.Divergence("tag")
	if r.Count("x") != 0 {
		t.Error("nil recorder counted")
	}
}

func TestOutcome(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{nil, "ok"},
		{storeerr.NotFound("get", "task", "t1"), "not_found"},
		{errors.New("plain"), "unknown_error"},
	}
	for _, tt := range tests {
		if got := Outcome(tt.err); got != tt.want {
			t.Errorf("Outcome(%v) = %q, want %q", tt.err, got, tt.want)
		}
	}
}
