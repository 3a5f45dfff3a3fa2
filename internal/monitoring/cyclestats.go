package monitoring

import (
	"sort"
	"sync"
	"time"

	"gonum.org/v1/gonum/stat"
)

// DefaultCycleWindow is the number of recent scan-cycle durations retained
// for summary statistics.
const DefaultCycleWindow = 512

// CycleStats keeps a bounded window of recent scan-cycle durations so the
// admin debug surface can report how fast the hub is actually scanning.
// It is safe for one writer (the scan loop) and concurrent readers.
type CycleStats struct {
	mu      sync.Mutex
	window  int
	samples []float64 // seconds, ring buffer
	next    int
	filled  bool
	total   uint64
}

// NewCycleStats returns a CycleStats retaining up to window samples. A
// window of zero or less uses DefaultCycleWindow.
func NewCycleStats(window int) *CycleStats {
	if window <= 0 {
		window = DefaultCycleWindow
	}
	return &CycleStats{
		window:  window,
		samples: make([]float64, window),
	}
}

// Observe records the duration of one completed scan cycle.
func (c *CycleStats) Observe(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.samples[c.next] = d.Seconds()
	c.next++
	if c.next == c.window {
		c.next = 0
		c.filled = true
	}
	c.total++
}

// TotalCycles returns the number of cycles observed since creation.
func (c *CycleStats) TotalCycles() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.total
}

// CycleSummary describes the recent scan-cycle timing distribution. All
// durations are in seconds.
type CycleSummary struct {
	Cycles uint64  `json:"cycles"`
	Window int     `json:"window"`
	Mean   float64 `json:"mean_seconds"`
	StdDev float64 `json:"stddev_seconds"`
	P50    float64 `json:"p50_seconds"`
	P95    float64 `json:"p95_seconds"`
}

// Summary computes mean, standard deviation, and quantiles over the current
// window. With no samples it returns a zero summary.
func (c *CycleStats) Summary() CycleSummary {
	c.mu.Lock()
	n := c.next
	if c.filled {
		n = c.window
	}
	buf := make([]float64, n)
	copy(buf, c.samples[:n])
	total := c.total
	c.mu.Unlock()

	s := CycleSummary{Cycles: total, Window: n}
	if n == 0 {
		return s
	}

	s.Mean, s.StdDev = stat.MeanStdDev(buf, nil)
	if n == 1 {
		// MeanStdDev reports NaN for a single sample
		s.StdDev = 0
	}
	// stat.Quantile requires sorted input
	sorted := make([]float64, n)
	copy(sorted, buf)
	sort.Float64s(sorted)
	s.P50 = stat.Quantile(0.5, stat.Empirical, sorted, nil)
	s.P95 = stat.Quantile(0.95, stat.Empirical, sorted, nil)
	return s
}
