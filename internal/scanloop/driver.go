// Package scanloop runs the hub's main control loop: trigger a scan, poll
// for completion, process and aggregate the results, republish them, and
// restart the scan.
package scanloop

import (
	"context"
	"fmt"
	"runtime"
	"time"

	"github.com/banshee-data/capsense.hub/internal/capsense"
	"github.com/banshee-data/capsense.hub/internal/mirror"
	"github.com/banshee-data/capsense.hub/internal/monitoring"
	"github.com/banshee-data/capsense.hub/internal/pubbuf"
	"github.com/banshee-data/capsense.hub/internal/reading"
)

// DebugMirrorEvery is how many completed scan cycles pass between debug
// console dumps.
const DebugMirrorEvery = 100

// Driver orchestrates scan cycles. It is the single producer for both
// publication buffers: nothing else writes them once the driver runs.
type Driver struct {
	engine  capsense.Engine
	diag    *pubbuf.Buffer
	compact *pubbuf.Buffer
	mirror  *mirror.Mirror
	stats   *monitoring.CycleStats

	record     reading.Record
	wire       []byte // scratch buffer reused for the compact encode
	cycles     uint32 // debug-mirror pacing counter, reset at DebugMirrorEvery
	lastFinish time.Time
}

// New builds a driver for the given engine and buffers. The compact buffer
// must be sized for exactly one published record and the diagnostic buffer
// for the engine's diagnostic structure; a fixed wire layout is the whole
// point of the compact region, so mismatches are rejected here rather than
// discovered on the bus.
func New(engine capsense.Engine, diag, compact *pubbuf.Buffer, m *mirror.Mirror, stats *monitoring.CycleStats) (*Driver, error) {
	n := engine.NumSensors()
	if n < 1 {
		return nil, fmt.Errorf("scanloop: engine reports %d sensors", n)
	}
	rec := reading.NewRecord(n)
	if compact.Size() != rec.WireSize() {
		return nil, fmt.Errorf("scanloop: compact buffer is %d bytes, record needs %d", compact.Size(), rec.WireSize())
	}
	if diagLen := len(engine.Diagnostics()); diag.Size() != diagLen {
		return nil, fmt.Errorf("scanloop: diagnostic buffer is %d bytes, engine structure is %d", diag.Size(), diagLen)
	}
	return &Driver{
		engine:  engine,
		diag:    diag,
		compact: compact,
		mirror:  m,
		stats:   stats,
		record:  rec,
		wire:    make([]byte, 0, rec.WireSize()),
	}, nil
}

// Record returns the driver-owned published record. Only valid between
// cycles; exposed for the entrypoint's status logging and for tests.
func (d *Driver) Record() reading.Record {
	return d.record
}

// Run executes scan cycles until ctx is cancelled. The only suspension
// point is a cooperative yield while the engine is busy: the loop never
// sleeps and never blocks on the bus. A scan that never completes leaves
// the loop yielding forever; there is no watchdog.
func (d *Driver) Run(ctx context.Context) error {
	// a failed first scan is not fatal: the engine stays busy and the loop
	// idles, publishing nothing, like firmware whose interrupts never armed
	if err := d.engine.StartScan(); err != nil {
		monitoring.Logf("initial scan failed, loop will idle: %v", err)
	}
	monitoring.Logf("scan loop started: %d sensors, mirror every %d cycles", len(d.record), DebugMirrorEvery)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if d.engine.IsBusy() {
			runtime.Gosched()
			continue
		}

		if err := d.cycle(); err != nil {
			return err
		}
	}
}

// cycle runs the completed-scan half of one cycle: process, aggregate,
// publish, restart, then the decimated debug mirror.
func (d *Driver) cycle() error {
	if err := d.engine.ProcessResults(); err != nil {
		return fmt.Errorf("scanloop: process results: %w", err)
	}
	if err := reading.Aggregate(d.record, d.engine.Results()); err != nil {
		return fmt.Errorf("scanloop: %w", err)
	}

	// publish: whole-buffer replaces, compact first so the record a tuning
	// tool correlates against is never newer than the compact region
	d.wire = d.record.AppendBinary(d.wire[:0])
	if err := d.compact.Replace(d.wire); err != nil {
		return fmt.Errorf("scanloop: publish compact: %w", err)
	}
	if err := d.diag.Replace(d.engine.Diagnostics()); err != nil {
		return fmt.Errorf("scanloop: publish diagnostic: %w", err)
	}

	// the engine's result set has been copied out; safe to restart
	if err := d.engine.StartScan(); err != nil {
		return fmt.Errorf("scanloop: restart scan: %w", err)
	}

	now := time.Now()
	if d.stats != nil {
		if !d.lastFinish.IsZero() {
			d.stats.Observe(now.Sub(d.lastFinish))
		}
		d.lastFinish = now
	}

	d.cycles++
	if d.cycles >= DebugMirrorEvery {
		d.cycles = 0
		if d.mirror != nil {
			d.mirror.Dump(d.record)
		}
	}
	return nil
}
