package logic

import (
	"math"
	"testing"
	"time"
)

func TestDriftAdd(t *testing.T) {
	var d Drift
	d = d.Add(2 * time.Second)
	d = d.Add(4 * time.Second)
	d = d.Add(-3 * time.Second)

	if d.Count != 3 {
		t.Errorf("expected count 3, got %d", d.Count)
	}
	if math.Abs(d.Average-1) > 1e-9 {
		t.Errorf("expected average 1s, got %v", d.Average)
	}
}

func TestDriftAddDoesNotMutate(t *testing.T) {
	d := Drift{Average: 1.5, Count: 2}
	_ = d.Add(time.Second)
	if d.Count != 2 || d.Average != 1.5 {
		t.Errorf("expected receiver unchanged, got %+v", d)
	}
}

func TestSyncStamp(t *testing.T) {
	var zero SyncStamp
	if got := zero.String(); got != "--:--" {
		t.Errorf("expected --:-- before first sync, got %q", got)
	}

	s := StampOf(time.Date(2026, 3, 14, 14, 3, 0, 0, time.UTC))
	if s.Hour != 14 || s.Minute != 3 || !s.Valid {
		t.Errorf("unexpected stamp %+v", s)
	}
	if got := s.String(); got != "14:03" {
		t.Errorf("expected 14:03, got %q", got)
	}
}
