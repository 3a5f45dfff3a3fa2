package ezi2c

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/banshee-data/capsense.hub/internal/pubbuf"
	"github.com/banshee-data/capsense.hub/internal/testutil"
)

// startSlave wires a slave to a mock port with both buffers attached and
// Monitor running. The returned master function performs one full
// request/response exchange.
func startSlave(t *testing.T, diag, compact *pubbuf.Buffer) (*Slave[*MockPort], func(ReadRequest) (Status, []byte)) {
	t.Helper()
	port := NewMockPort()
	s := NewSlave(port)
	s.SetBuffer1(diag)
	s.SetBuffer2(compact)
	testutil.AssertNoError(t, s.Enable())

	ctx, cancel := context.WithCancel(context.Background())
	monitorDone := make(chan error, 1)
	go func() { monitorDone <- s.Monitor(ctx) }()
	t.Cleanup(func() {
		cancel()
		s.Close()
		<-monitorDone
	})

	master := func(req ReadRequest) (Status, []byte) {
		t.Helper()
		if _, err := port.MasterWrite(AppendRequest(nil, req)); err != nil {
			t.Fatalf("master write: %v", err)
		}
		// header: SOF, status, count u16
		header := make([]byte, 4)
		if _, err := io.ReadFull(masterReader{port}, header); err != nil {
			t.Fatalf("master read header: %v", err)
		}
		n := int(header[2]) | int(header[3])<<8
		rest := make([]byte, n+1)
		if _, err := io.ReadFull(masterReader{port}, rest); err != nil {
			t.Fatalf("master read payload: %v", err)
		}
		status, payload, err := ParseResponse(append(header, rest...))
		if err != nil {
			t.Fatalf("parse response: %v", err)
		}
		return status, payload
	}
	return s, master
}

// masterReader adapts the mock port's master side to io.Reader.
type masterReader struct{ p *MockPort }

func (r masterReader) Read(b []byte) (int, error) { return r.p.MasterRead(b) }

func newBuffers(t *testing.T) (*pubbuf.Buffer, *pubbuf.Buffer) {
	t.Helper()
	diag, err := pubbuf.New(16)
	testutil.AssertNoError(t, err)
	compact, err := pubbuf.New(18)
	testutil.AssertNoError(t, err)
	return diag, compact
}

func TestEnableRequiresBothBuffers(t *testing.T) {
	s := NewSlave(NewMockPort())
	testutil.AssertError(t, s.Enable())

	diag, compact := newBuffers(t)
	s.SetBuffer1(diag)
	testutil.AssertError(t, s.Enable())
	s.SetBuffer2(compact)
	testutil.AssertNoError(t, s.Enable())
}

func TestMonitorRefusesDisabledSlave(t *testing.T) {
	s := NewSlave(NewMockPort())
	if err := s.Monitor(context.Background()); err == nil {
		t.Fatal("Monitor on a disabled slave should fail")
	}
}

func TestServeWholeCompactBuffer(t *testing.T) {
	diag, compact := newBuffers(t)
	record := bytes.Repeat([]byte{0x11, 0x22, 0x33}, 6)
	testutil.AssertNoError(t, compact.Replace(record))

	_, master := startSlave(t, diag, compact)
	status, payload := master(ReadRequest{Addr: CompactAddr, Offset: 0, Count: 18})
	if status != StatusOK {
		t.Fatalf("status = %v, want ok", status)
	}
	if !bytes.Equal(payload, record) {
		t.Errorf("payload = % x, want % x", payload, record)
	}
}

func TestServeSubRange(t *testing.T) {
	diag, compact := newBuffers(t)
	diagData := []byte{0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15}
	testutil.AssertNoError(t, diag.Replace(diagData))

	_, master := startSlave(t, diag, compact)
	status, payload := master(ReadRequest{Addr: DiagnosticAddr, Offset: 4, Count: 3})
	if status != StatusOK {
		t.Fatalf("status = %v, want ok", status)
	}
	if !bytes.Equal(payload, []byte{4, 5, 6}) {
		t.Errorf("payload = % x, want 04 05 06", payload)
	}
}

func TestServeBadAddress(t *testing.T) {
	diag, compact := newBuffers(t)
	_, master := startSlave(t, diag, compact)
	status, payload := master(ReadRequest{Addr: 0x42, Count: 1})
	if status != StatusBadAddress {
		t.Errorf("status = %v, want bad address", status)
	}
	if len(payload) != 0 {
		t.Errorf("payload should be empty, got % x", payload)
	}
}

func TestServeBadRange(t *testing.T) {
	diag, compact := newBuffers(t)
	_, master := startSlave(t, diag, compact)
	status, _ := master(ReadRequest{Addr: CompactAddr, Offset: 10, Count: 200})
	if status != StatusBadRange {
		t.Errorf("status = %v, want bad range", status)
	}
}

func TestServeBadChecksum(t *testing.T) {
	diag, compact := newBuffers(t)
	s, _ := startSlave(t, diag, compact)

	port := s.port
	frame := AppendRequest(nil, ReadRequest{Addr: CompactAddr, Count: 2})
	frame[len(frame)-1] ^= 0xFF
	if _, err := port.MasterWrite(frame); err != nil {
		t.Fatalf("master write: %v", err)
	}
	header := make([]byte, 4)
	if _, err := io.ReadFull(masterReader{port}, header); err != nil {
		t.Fatalf("master read: %v", err)
	}
	if Status(header[1]) != StatusBadChecksum {
		t.Errorf("status = %v, want bad checksum", Status(header[1]))
	}
	// drain trailing checksum byte
	io.ReadFull(masterReader{port}, make([]byte, 1))
}

func TestReadsObserveLatestReplace(t *testing.T) {
	diag, compact := newBuffers(t)
	_, master := startSlave(t, diag, compact)

	first := bytes.Repeat([]byte{0x01}, 18)
	second := bytes.Repeat([]byte{0x02}, 18)

	testutil.AssertNoError(t, compact.Replace(first))
	_, p1 := master(ReadRequest{Addr: CompactAddr, Count: 18})
	testutil.AssertNoError(t, compact.Replace(second))
	_, p2 := master(ReadRequest{Addr: CompactAddr, Count: 18})

	if !bytes.Equal(p1, first) || !bytes.Equal(p2, second) {
		t.Errorf("reads did not track replaces: % x / % x", p1, p2)
	}
}

func TestTransactionLogBounded(t *testing.T) {
	diag, compact := newBuffers(t)
	s, master := startSlave(t, diag, compact)

	for i := 0; i < transactionLogSize+10; i++ {
		master(ReadRequest{Addr: CompactAddr, Count: 1})
	}
	txs := s.Transactions()
	if len(txs) != transactionLogSize {
		t.Errorf("log holds %d transactions, want %d", len(txs), transactionLogSize)
	}
	for _, tx := range txs {
		if tx.ID == "" || tx.Status != "ok" {
			t.Errorf("unexpected transaction %+v", tx)
		}
	}
}

func TestAdminRoutes(t *testing.T) {
	diag, compact := newBuffers(t)
	s, master := startSlave(t, diag, compact)
	master(ReadRequest{Addr: CompactAddr, Count: 4})

	mux := http.NewServeMux()
	s.AttachAdminRoutes(mux)

	for _, path := range []string{
		"/debug/bus-transactions",
		"/debug/buffer-diagnostic",
		"/debug/buffer-compact",
	} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		req.RemoteAddr = "127.0.0.1:12345"
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Errorf("%s returned %d", path, rec.Code)
		}
	}
}

func TestMonitorStopsOnContextCancel(t *testing.T) {
	diag, compact := newBuffers(t)
	port := NewMockPort()
	s := NewSlave(port)
	s.SetBuffer1(diag)
	s.SetBuffer2(compact)
	testutil.AssertNoError(t, s.Enable())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Monitor(ctx) }()

	cancel()
	select {
	case err := <-done:
		if err != context.Canceled {
			t.Errorf("Monitor returned %v, want context.Canceled", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Monitor did not stop on cancellation")
	}
	s.Close()
}
