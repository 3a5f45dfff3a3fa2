// Package mirror writes the periodic human-readable dump of the published
// record to a debug console.
package mirror

import (
	"fmt"
	"io"
	"sync"

	"github.com/banshee-data/capsense.hub/internal/monitoring"
	"github.com/banshee-data/capsense.hub/internal/reading"
)

// Separator is the fixed line emitted after each record dump.
const Separator = "---\r\n"

// Mirror dumps published records to a console writer, one line per sensor
// followed by a separator line. Output is best effort: write errors are
// logged and dropped, never surfaced to the scan loop.
type Mirror struct {
	mu sync.Mutex
	w  io.Writer
}

// New returns a Mirror writing to w.
func New(w io.Writer) *Mirror {
	return &Mirror{w: w}
}

// Dump writes one line per sensor of rec followed by the separator.
func (m *Mirror) Dump(rec reading.Record) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, r := range rec {
		line := fmt.Sprintf("RAWcount_[%d] content: %d | Diffcount_[%d] content: %d\r\n", i, r.Raw, i, r.Diff)
		if _, err := io.WriteString(m.w, line); err != nil {
			monitoring.Logf("debug mirror write failed: %v", err)
			return
		}
	}
	if _, err := io.WriteString(m.w, Separator); err != nil {
		monitoring.Logf("debug mirror write failed: %v", err)
	}
}
