package observ

import (
	"strings"
	"testing"
	"time"
)

func TestTimerPhases(t *testing.T) {
	tm := NewTimer()
	idx := tm.Begin("resolve")
	time.Sleep(time.Millisecond)
	tm.End(idx, "2 units")

	report := tm.Report()
	if len(report.Phases) != 1 {
		t.Fatalf("phases = %d", len(report.Phases))
	}
	p := report.Phases[0]
	if p.Name != "resolve" || p.Note != "2 units" || p.DurationMS <= 0 {
		t.Fatalf("phase = %+v", p)
	}
	if report.TotalMS < p.DurationMS {
		t.Fatalf("total %f < phase %f", report.TotalMS, p.DurationMS)
	}
}

func TestTimerEndOutOfRange(t *testing.T) {
	tm := NewTimer()
	tm.End(3, "ignored")
	if got := tm.Report(); len(got.Phases) != 0 {
		t.Fatalf("report = %+v", got)
	}
}

func TestSummaryRendersAllPhases(t *testing.T) {
	tm := NewTimer()
	tm.End(tm.Begin("parse"), "")
	tm.End(tm.Begin("verify"), "")
	s := tm.Summary()
	for _, want := range []string{"parse", "verify", "total"} {
		if !strings.Contains(s, want) {
			t.Fatalf("summary missing %q:\n%s", want, s)
		}
	}
}
