package monitoring

import (
	"math"
	"testing"
	"time"
)

func TestCycleStatsEmpty(t *testing.T) {
	c := NewCycleStats(8)
	s := c.Summary()
	if s.Cycles != 0 || s.Window != 0 {
		t.Errorf("empty summary = %+v, want zero cycles and window", s)
	}
}

func TestCycleStatsSingleSample(t *testing.T) {
	c := NewCycleStats(8)
	c.Observe(10 * time.Millisecond)
	s := c.Summary()
	if s.Cycles != 1 {
		t.Errorf("cycles = %d, want 1", s.Cycles)
	}
	if math.Abs(s.Mean-0.010) > 1e-9 {
		t.Errorf("mean = %v, want 0.010", s.Mean)
	}
	if s.StdDev != 0 {
		t.Errorf("stddev = %v, want 0 for a single sample", s.StdDev)
	}
}

func TestCycleStatsWindowWraps(t *testing.T) {
	c := NewCycleStats(4)
	// first fill with slow cycles, then overwrite with fast ones
	for i := 0; i < 4; i++ {
		c.Observe(time.Second)
	}
	for i := 0; i < 4; i++ {
		c.Observe(time.Millisecond)
	}
	s := c.Summary()
	if s.Cycles != 8 {
		t.Errorf("cycles = %d, want 8", s.Cycles)
	}
	if s.Window != 4 {
		t.Errorf("window = %d, want 4", s.Window)
	}
	if math.Abs(s.Mean-0.001) > 1e-9 {
		t.Errorf("mean = %v, want 0.001 after wrap", s.Mean)
	}
}

func TestCycleStatsQuantilesOrdered(t *testing.T) {
	c := NewCycleStats(16)
	for i := 1; i <= 10; i++ {
		c.Observe(time.Duration(i) * time.Millisecond)
	}
	s := c.Summary()
	if s.P50 > s.P95 {
		t.Errorf("p50 %v > p95 %v", s.P50, s.P95)
	}
	if s.P95 > 0.010+1e-9 {
		t.Errorf("p95 = %v, want <= max sample 0.010", s.P95)
	}
}
