package capsense

import (
	"encoding/binary"
	"fmt"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"github.com/chewxy/math32"
)

// SimConfig controls the simulated engine.
type SimConfig struct {
	// Sensors is the fixed sensor count N. Must be at least 1.
	Sensors int `yaml:"sensors"`

	// ScanPeriod is how long a simulated scan stays busy.
	ScanPeriod time.Duration `yaml:"scan_period"`

	// Noise is the peak-to-peak raw-count noise added to each measurement.
	Noise float32 `yaml:"noise"`

	// DriftAmplitude is the slow sinusoidal drift applied to raw counts,
	// imitating thermal drift of the untouched sensors.
	DriftAmplitude float32 `yaml:"drift_amplitude"`

	// Seed makes the simulation deterministic when non-zero.
	Seed int64 `yaml:"seed"`
}

// DefaultSimConfig returns the simulation defaults used in dev mode: three
// sensors, matching the reference sensor board.
func DefaultSimConfig() SimConfig {
	return SimConfig{
		Sensors:        3,
		ScanPeriod:     2 * time.Millisecond,
		Noise:          4,
		DriftAmplitude: 12,
	}
}

// simDiagMagic marks the head of the simulated diagnostic structure.
const simDiagMagic = 0x43534842 // "CSHB"

// baselineShift sets the IIR baseline tracking rate: the baseline moves
// toward the raw count by raw-bsln >> baselineShift per processed scan.
const baselineShift = 3

// SimEngine is a software stand-in for the capacitive scan hardware. A
// scan started with StartScan completes asynchronously: a timer goroutine
// clears the busy flag after ScanPeriod, playing the role of the scan
// interrupt. The measurement itself is latched at StartScan time, so the
// result set is stable from completion until the next StartScan.
type SimEngine struct {
	cfg SimConfig

	enabled atomic.Bool
	busy    atomic.Bool

	mu      sync.Mutex
	rng     *rand.Rand
	scans   uint32
	base    []float32 // idle raw level per sensor
	bsln    []float32 // tracked baseline per sensor
	pending []float32 // raw counts latched by the scan in flight
	results []SensorContext
	touch   []float32 // externally injected touch delta per sensor

	timerMu sync.Mutex
	timer   *time.Timer
}

// NewSimEngine builds a simulated engine for cfg.Sensors sensors.
func NewSimEngine(cfg SimConfig) (*SimEngine, error) {
	if cfg.Sensors < 1 {
		return nil, fmt.Errorf("sim engine: sensor count %d, need at least 1", cfg.Sensors)
	}
	if cfg.ScanPeriod <= 0 {
		cfg.ScanPeriod = DefaultSimConfig().ScanPeriod
	}
	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	e := &SimEngine{
		cfg:     cfg,
		rng:     rand.New(rand.NewSource(seed)),
		base:    make([]float32, cfg.Sensors),
		bsln:    make([]float32, cfg.Sensors),
		pending: make([]float32, cfg.Sensors),
		results: make([]SensorContext, cfg.Sensors),
		touch:   make([]float32, cfg.Sensors),
	}
	for i := range e.base {
		// idle raw levels staggered per sensor, like differently sized pads
		e.base[i] = 5000 + 500*float32(i)
		e.bsln[i] = e.base[i]
	}
	return e, nil
}

// Enable arms the engine. An engine that is never enabled reports busy
// forever, reproducing the silent stall of a failed hardware bring-up.
func (e *SimEngine) Enable() error {
	e.enabled.Store(true)
	return nil
}

// NumSensors returns the configured sensor count.
func (e *SimEngine) NumSensors() int { return e.cfg.Sensors }

// IsBusy reports whether a scan is in flight. A disabled engine is always
// busy.
func (e *SimEngine) IsBusy() bool {
	if !e.enabled.Load() {
		return true
	}
	return e.busy.Load()
}

// StartScan latches a fresh measurement for every sensor and arms the
// completion timer.
func (e *SimEngine) StartScan() error {
	if !e.enabled.Load() {
		return fmt.Errorf("sim engine: not enabled")
	}
	if !e.busy.CompareAndSwap(false, true) {
		return fmt.Errorf("sim engine: scan already in progress")
	}

	e.mu.Lock()
	e.scans++
	phase := float32(e.scans) / 1024
	for i := range e.pending {
		drift := e.cfg.DriftAmplitude * math32.Sin(2*math32.Pi*phase+float32(i))
		noise := e.cfg.Noise * (e.rng.Float32() - 0.5)
		e.pending[i] = e.base[i] + drift + noise + e.touch[i]
	}
	e.mu.Unlock()

	e.timerMu.Lock()
	e.timer = time.AfterFunc(e.cfg.ScanPeriod, func() {
		// interrupt context: only the busy flag is touched here
		e.busy.Store(false)
	})
	e.timerMu.Unlock()
	return nil
}

// ProcessResults converts the latched measurement into the per-sensor
// result set, tracking the baseline as a slow IIR follower of the raw
// count.
func (e *SimEngine) ProcessResults() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	for i := range e.results {
		raw := e.pending[i]
		e.bsln[i] += (raw - e.bsln[i]) / (1 << baselineShift)
		diff := raw - e.bsln[i]
		if diff < 0 {
			diff = 0
		}
		e.results[i] = SensorContext{
			Raw:  clampU16(raw),
			Diff: clampU16(diff),
			Bsln: clampU16(e.bsln[i]),
		}
	}
	return nil
}

// Results returns the engine-owned result set. Stable between scan
// completion and the next StartScan.
func (e *SimEngine) Results() []SensorContext {
	return e.results
}

// Touch injects a touch delta on one sensor: subsequent scans read delta
// raw counts above the idle level until Release is called. Used by dev
// mode and tests to exercise the diff path.
func (e *SimEngine) Touch(sensor int, delta uint16) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if sensor >= 0 && sensor < len(e.touch) {
		e.touch[sensor] = float32(delta)
	}
}

// Release clears an injected touch.
func (e *SimEngine) Release(sensor int) {
	e.Touch(sensor, 0)
}

// Diagnostics renders the engine's internal state as the opaque diagnostic
// structure mirrored into the tuning buffer: a small header followed by a
// per-sensor block of raw, baseline, diff, and idle level.
func (e *SimEngine) Diagnostics() []byte {
	e.mu.Lock()
	defer e.mu.Unlock()
	buf := make([]byte, 12+8*len(e.results))
	binary.LittleEndian.PutUint32(buf[0:], simDiagMagic)
	binary.LittleEndian.PutUint32(buf[4:], e.scans)
	binary.LittleEndian.PutUint16(buf[8:], uint16(len(e.results)))
	binary.LittleEndian.PutUint16(buf[10:], uint16(baselineShift))
	for i, r := range e.results {
		off := 12 + 8*i
		binary.LittleEndian.PutUint16(buf[off:], r.Raw)
		binary.LittleEndian.PutUint16(buf[off+2:], r.Bsln)
		binary.LittleEndian.PutUint16(buf[off+4:], r.Diff)
		binary.LittleEndian.PutUint16(buf[off+6:], clampU16(e.base[i]))
	}
	return buf
}

// Close stops any pending completion timer.
func (e *SimEngine) Close() error {
	e.timerMu.Lock()
	defer e.timerMu.Unlock()
	if e.timer != nil {
		e.timer.Stop()
	}
	return nil
}

func clampU16(v float32) uint16 {
	switch {
	case v <= 0:
		return 0
	case v >= 65535:
		return 65535
	}
	return uint16(math32.Round(v))
}
