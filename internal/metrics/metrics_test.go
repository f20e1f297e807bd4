package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestObserveRequest(t *testing.T) {
	s := New()
	s.ObserveRequest("structure", "ok", 120*time.Millisecond)
	s.ObserveRequest("structure", "ok", 80*time.Millisecond)
	s.ObserveRequest("structure", "timed_out", 2*time.Second)

	if got := testutil.ToFloat64(s.requests.WithLabelValues("structure", "ok")); got != 2 {
		t.Errorf("ok count = %v, want 2", got)
	}
	if got := testutil.ToFloat64(s.requests.WithLabelValues("structure", "timed_out")); got != 1 {
		t.Errorf("timed_out count = %v, want 1", got)
	}
}

func TestObserveProcessRun(t *testing.T) {
	s := New()
	s.ObserveProcessRun("nfdump", "ok")
	s.ObserveProcessRun("nfdump", "error")
	s.ObserveProcessRun("nfdump", "ok")

	if got := testutil.ToFloat64(s.processRuns.WithLabelValues("nfdump", "ok")); got != 2 {
		t.Errorf("ok count = %v, want 2", got)
	}
}

func TestIsolatedRegistries(t *testing.T) {
	a, b := New(), New()
	a.ObserveProcessRun("nfdump", "ok")
	if got := testutil.ToFloat64(b.processRuns.WithLabelValues("nfdump", "ok")); got != 0 {
		t.Errorf("registry b saw %v observations from a", got)
	}
	families, err := a.Registry().Gather()
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}
	if len(families) == 0 {
		t.Fatal("expected at least one metric family")
	}
}
