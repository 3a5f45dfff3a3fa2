// Package reading defines the published per-sensor reading record and the
// aggregation step that fills it from the scan engine's result set.
//
// The record's wire form is what external bus masters see in the compact
// publication buffer: N consecutive little-endian (raw, diff, baseline)
// triples, 6 bytes per sensor.
package reading

import (
	"encoding/binary"
	"fmt"

	"github.com/banshee-data/capsense.hub/internal/capsense"
)

// BytesPerSensor is the wire size of one sensor's triple.
const BytesPerSensor = 6

// Reading is one sensor's published triple.
type Reading struct {
	Raw      uint16
	Diff     uint16
	Baseline uint16
}

// Record is the published record: one Reading per sensor in fixed index
// order. It is allocated once and overwritten in place every scan cycle.
type Record []Reading

// NewRecord allocates a zero record for n sensors.
func NewRecord(n int) Record {
	return make(Record, n)
}

// Aggregate copies the engine's per-sensor results into the record, triple
// by triple in index order. The record and result set must be the same
// length.
func Aggregate(dst Record, results []capsense.SensorContext) error {
	if len(dst) != len(results) {
		return fmt.Errorf("aggregate: record holds %d sensors, engine reports %d", len(dst), len(results))
	}
	for i, r := range results {
		dst[i] = Reading{Raw: r.Raw, Diff: r.Diff, Baseline: r.Bsln}
	}
	return nil
}

// WireSize returns the encoded size of the record in bytes.
func (r Record) WireSize() int { return BytesPerSensor * len(r) }

// AppendBinary appends the record's wire form to b.
func (r Record) AppendBinary(b []byte) []byte {
	for _, s := range r {
		b = binary.LittleEndian.AppendUint16(b, s.Raw)
		b = binary.LittleEndian.AppendUint16(b, s.Diff)
		b = binary.LittleEndian.AppendUint16(b, s.Baseline)
	}
	return b
}

// MarshalBinary encodes the record as N little-endian triples.
func (r Record) MarshalBinary() ([]byte, error) {
	return r.AppendBinary(make([]byte, 0, r.WireSize())), nil
}

// DecodeRecord parses a compact-buffer payload back into a record. This is
// the bus-master side of the wire layout and exists for tooling and tests.
func DecodeRecord(b []byte) (Record, error) {
	if len(b)%BytesPerSensor != 0 {
		return nil, fmt.Errorf("decode record: %d bytes is not a whole number of triples", len(b))
	}
	rec := NewRecord(len(b) / BytesPerSensor)
	for i := range rec {
		off := i * BytesPerSensor
		rec[i] = Reading{
			Raw:      binary.LittleEndian.Uint16(b[off:]),
			Diff:     binary.LittleEndian.Uint16(b[off+2:]),
			Baseline: binary.LittleEndian.Uint16(b[off+4:]),
		}
	}
	return rec, nil
}
