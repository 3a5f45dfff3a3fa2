package mirror

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/banshee-data/capsense.hub/internal/monitoring"
	"github.com/banshee-data/capsense.hub/internal/reading"
)

func TestDumpFormat(t *testing.T) {
	var buf bytes.Buffer
	m := New(&buf)
	m.Dump(reading.Record{
		{Raw: 100, Diff: 5, Baseline: 95},
		{Raw: 200, Diff: 0, Baseline: 203},
	})

	want := "RAWcount_[0] content: 100 | Diffcount_[0] content: 5\r\n" +
		"RAWcount_[1] content: 200 | Diffcount_[1] content: 0\r\n" +
		"---\r\n"
	if got := buf.String(); got != want {
		t.Errorf("dump output:\n%q\nwant:\n%q", got, want)
	}
}

func TestDumpEmptyRecordStillSeparates(t *testing.T) {
	var buf bytes.Buffer
	New(&buf).Dump(reading.Record{})
	if got := buf.String(); got != Separator {
		t.Errorf("output = %q, want bare separator", got)
	}
}

type failWriter struct{}

func (failWriter) Write([]byte) (int, error) { return 0, errors.New("console gone") }

func TestDumpDropsWriteErrors(t *testing.T) {
	var logged strings.Builder
	orig := monitoring.Logf
	monitoring.SetLogger(func(format string, v ...interface{}) {
		logged.WriteString(format)
	})
	defer monitoring.SetLogger(orig)

	// must not panic or return an error path to the caller
	New(failWriter{}).Dump(reading.Record{{Raw: 1}})
	if !strings.Contains(logged.String(), "mirror") {
		t.Errorf("expected a logged mirror failure, got %q", logged.String())
	}
}
