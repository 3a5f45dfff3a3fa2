// Package capsense defines the interface to the capacitive scan engine and
// a simulated engine for development and tests.
//
// The real scan-and-convert hardware is a black box: the hub only ever
// starts a scan, polls the busy flag, asks for result processing, and reads
// the per-sensor result set. Scan completion is signalled asynchronously
// (an interrupt on hardware, a timer goroutine in the simulator), so IsBusy
// must be safe to call from the scan loop while completion fires elsewhere.
package capsense

// SensorContext is the engine's per-sensor result record: the raw
// capacitive count, the difference from the tracked baseline, and the
// baseline itself. All values are 16-bit counts.
type SensorContext struct {
	Raw  uint16
	Diff uint16
	Bsln uint16
}

// Engine is the minimal surface the scan loop needs from a capacitive scan
// engine.
//
// The result set returned by Results is stable between the moment IsBusy
// first reports false and the next call to StartScan. Callers must finish
// copying results before restarting the scan.
type Engine interface {
	// Enable arms the engine. Scanning never completes on an engine that
	// was not enabled.
	Enable() error

	// StartScan triggers one full scan of all sensors. It returns
	// immediately; completion is reported through IsBusy.
	StartScan() error

	// IsBusy reports whether a scan is still in flight. It never blocks.
	IsBusy() bool

	// ProcessResults converts the completed scan into the per-sensor
	// result set. Call only when IsBusy reports false.
	ProcessResults() error

	// Results returns the engine's current per-sensor result set. The
	// returned slice is owned by the engine; see the stability contract
	// above.
	Results() []SensorContext

	// Diagnostics returns the engine's full internal diagnostic structure
	// as an opaque byte blob, for external tuning tools.
	Diagnostics() []byte

	// NumSensors returns the fixed sensor count N.
	NumSensors() int

	// Close releases engine resources.
	Close() error
}

// Ensure the simulated engine satisfies the interface.
var _ Engine = (*SimEngine)(nil)
