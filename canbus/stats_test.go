package canbus

import (
	"strings"
	"testing"
	"time"
)

func TestStats_CountsPerID(t *testing.T) {
	s := NewStats()
	now := time.Now()

	s.Observe(0x181, now)
	s.Observe(0x181, now)
	s.Observe(0x201, now)

	if s.Total() != 3 {
		t.Errorf("total: expected 3, got %d", s.Total())
	}
	if s.Count(0x181) != 2 {
		t.Errorf("0x181: expected 2, got %d", s.Count(0x181))
	}
	if s.Count(0x201) != 1 {
		t.Errorf("0x201: expected 1, got %d", s.Count(0x201))
	}
	if s.Count(0x7E0) != 0 {
		t.Errorf("unseen id: expected 0, got %d", s.Count(0x7E0))
	}
}

func TestStats_TrackingCap(t *testing.T) {
	s := NewStats()
	now := time.Now()

	for id := uint32(0); id < MaxTrackedIDs+5; id++ {
		s.Observe(id, now)
	}

	// All frames count, but only the first MaxTrackedIDs ids are tracked.
	if s.Total() != MaxTrackedIDs+5 {
		t.Errorf("total: expected %d, got %d", MaxTrackedIDs+5, s.Total())
	}
	if s.Count(MaxTrackedIDs+1) != 0 {
		t.Error("ids past the cap should not be tracked")
	}
	if s.Count(0) != 1 {
		t.Error("ids within the cap should stay tracked")
	}
}

func TestStats_SilenceLatches(t *testing.T) {
	s := NewStats()
	start := time.Now()

	// No traffic yet: never silent.
	if s.Silent(start.Add(time.Minute)) {
		t.Error("empty bus should not report silence")
	}

	s.Observe(0x181, start)
	quiet := start.Add(SilenceTimeout + time.Second)

	if !s.Silent(quiet) {
		t.Error("expected silence after timeout")
	}
	// Latched: reported once only.
	if s.Silent(quiet.Add(time.Second)) {
		t.Error("silence should latch until traffic resumes")
	}

	// Traffic resumes, then stops again.
	s.Observe(0x181, quiet.Add(2*time.Second))
	if !s.Silent(quiet.Add(2 * time.Second).Add(SilenceTimeout + time.Second)) {
		t.Error("expected silence to re-arm after traffic")
	}
}

func TestStats_Print(t *testing.T) {
	s := NewStats()
	now := time.Now()
	s.Observe(0x181, now)
	s.Observe(0x181, now)
	s.Observe(0x201, now)
	s.ObserveError()

	var b strings.Builder
	s.Print(&b, now)
	out := b.String()

	if !strings.Contains(out, "3 frames, 1 errors") {
		t.Errorf("summary line missing: %q", out)
	}
	// Sorted by count: 0x181 before 0x201.
	if strings.Index(out, "0x181") > strings.Index(out, "0x201") {
		t.Errorf("expected 0x181 listed first: %q", out)
	}
}
