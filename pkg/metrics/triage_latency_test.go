package metrics

import (
	"testing"
	"time"
)

func TestLatencyTrackerStats(t *testing.T) {
	lt := NewLatencyTracker(100)

	for i := 1; i <= 100; i++ {
		lt.Record(time.Duration(i) * time.Millisecond)
	}

	stats := lt.Stats()

	if stats.Count != 100 {
		t.Errorf("Count = %d, want 100", stats.Count)
	}
	if stats.Min != 1*time.Millisecond {
		t.Errorf("Min = %v, want 1ms", stats.Min)
	}
	if stats.Max != 100*time.Millisecond {
		t.Errorf("Max = %v, want 100ms", stats.Max)
	}
	if stats.P50 < 45*time.Millisecond || stats.P50 > 55*time.Millisecond {
		t.Errorf("P50 = %v, want ~50ms", stats.P50)
	}
	if stats.P95 < 90*time.Millisecond || stats.P95 > 100*time.Millisecond {
		t.Errorf("P95 = %v, want ~95ms", stats.P95)
	}
}

func TestLatencyTrackerEmpty(t *testing.T) {
	lt := NewLatencyTracker(10)
	stats := lt.Stats()
	if stats.Count != 0 || stats.Min != 0 || stats.Max != 0 {
		t.Errorf("empty tracker stats = %+v", stats)
	}
}

func TestLatencyTrackerWindowEviction(t *testing.T) {
	lt := NewLatencyTracker(10)

	for i := 0; i < 25; i++ {
		lt.Record(time.Millisecond)
	}

	if stats := lt.Stats(); stats.Count > 10 {
		t.Errorf("Count = %d, want <= 10", stats.Count)
	}
}

func TestLatencyTrackerReset(t *testing.T) {
	lt := NewLatencyTracker(10)
	lt.Record(time.Millisecond)
	lt.Reset()

	if stats := lt.Stats(); stats.Count != 0 {
		t.Errorf("Count after reset = %d, want 0", stats.Count)
	}
}
