// Package ezi2c implements the bus-exposure slave: a register-style serial
// peripheral serving the hub's two publication buffers to external bus
// masters.
//
// The slave owns a serial port and answers read requests against two
// addressable regions, the way an EZI2C block exposes two buffers at two
// slave addresses. Reads are served from buffer snapshots; the scan loop
// is never blocked by bus traffic.
package ezi2c

import (
	"bufio"
	"context"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/banshee-data/capsense.hub/internal/monitoring"
	"github.com/banshee-data/capsense.hub/internal/pubbuf"
)

// maxReadCount caps a single read to keep response frames bounded.
const maxReadCount = 4096

// transactionLogSize is how many recently served reads are retained for
// the admin debug surface.
const transactionLogSize = 64

// Transaction records one served bus read for debugging.
type Transaction struct {
	ID     string    `json:"id"`
	Time   time.Time `json:"time"`
	Addr   uint8     `json:"addr"`
	Offset uint16    `json:"offset"`
	Count  uint16    `json:"count"`
	Status string    `json:"status"`
}

// SlaveInterface defines the surface the hub entrypoint needs from a bus
// slave.
type SlaveInterface interface {
	// SetBuffer1 attaches the diagnostic region served at DiagnosticAddr.
	SetBuffer1(*pubbuf.Buffer)
	// SetBuffer2 attaches the compact region served at CompactAddr.
	SetBuffer2(*pubbuf.Buffer)
	// Enable arms the slave. Both buffers must be attached first.
	Enable() error
	// Monitor serves bus reads until the context is cancelled.
	Monitor(context.Context) error
	// Close shuts the underlying port.
	Close() error
	// AttachAdminRoutes mounts debug endpoints under /debug/. These routes
	// are accessible only over localhost/via Tailscale and are not publicly
	// accessible.
	AttachAdminRoutes(*http.ServeMux)
}

// Slave serves publication-buffer reads over a serial port.
type Slave[T SerialPorter] struct {
	port    T
	buf1    *pubbuf.Buffer // diagnostic region
	buf2    *pubbuf.Buffer // compact region
	enabled atomic.Bool

	writeMu sync.Mutex

	txMu  sync.Mutex
	txLog []Transaction

	closing   bool
	closingMu sync.Mutex
}

// NewSlave creates a Slave backed by the given port. Buffers are attached
// with SetBuffer1/SetBuffer2 and the slave armed with Enable before
// Monitor is started.
func NewSlave[T SerialPorter](port T) *Slave[T] {
	return &Slave[T]{port: port}
}

// SetBuffer1 attaches the diagnostic buffer served at DiagnosticAddr.
func (s *Slave[T]) SetBuffer1(b *pubbuf.Buffer) { s.buf1 = b }

// SetBuffer2 attaches the compact buffer served at CompactAddr.
func (s *Slave[T]) SetBuffer2(b *pubbuf.Buffer) { s.buf2 = b }

// Enable arms the slave. It fails when either buffer is missing, since an
// enabled slave with nothing to serve would expose the bus to undefined
// reads.
func (s *Slave[T]) Enable() error {
	if s.buf1 == nil || s.buf2 == nil {
		return fmt.Errorf("ezi2c: enable requires both buffers to be set")
	}
	s.enabled.Store(true)
	return nil
}

// Monitor reads request frames from the port and answers them until ctx is
// cancelled or the port fails. It refuses to run on a slave that was not
// enabled.
func (s *Slave[T]) Monitor(ctx context.Context) error {
	if !s.enabled.Load() {
		return fmt.Errorf("ezi2c: monitor on disabled slave")
	}

	br := bufio.NewReader(s.port)

	type framed struct {
		req   ReadRequest
		valid bool
	}
	reqChan := make(chan framed)
	errChan := make(chan error, 1)

	// reader goroutine: the blocking frame reads never interfere with the
	// outer loop awaiting context cancellation
	go func() {
		defer close(reqChan)
		for {
			req, ok, err := readRequest(br)
			if err != nil {
				select {
				case errChan <- err:
				case <-ctx.Done():
				}
				return
			}
			select {
			case reqChan <- framed{req: req, valid: ok}:
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case err := <-errChan:
			return err

		case f, ok := <-reqChan:
			if !ok {
				return nil
			}
			s.closingMu.Lock()
			if s.closing {
				s.closingMu.Unlock()
				return nil
			}
			s.closingMu.Unlock()

			if err := s.serve(f.req, f.valid); err != nil {
				return err
			}
		}
	}
}

// serve answers a single read request.
func (s *Slave[T]) serve(req ReadRequest, checksumOK bool) error {
	status := StatusOK
	var payload []byte

	switch {
	case !checksumOK:
		status = StatusBadChecksum
	case req.Count > maxReadCount:
		status = StatusBadRange
	default:
		var buf *pubbuf.Buffer
		switch req.Addr {
		case DiagnosticAddr:
			buf = s.buf1
		case CompactAddr:
			buf = s.buf2
		default:
			status = StatusBadAddress
		}
		if status == StatusOK {
			b, err := buf.ReadAt(int(req.Offset), int(req.Count))
			if err != nil {
				status = StatusBadRange
			} else {
				payload = b
			}
		}
	}

	s.record(req, status)

	resp := AppendResponse(nil, status, payload)
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	n, err := s.port.Write(resp)
	if err != nil {
		return fmt.Errorf("ezi2c: response write: %w", err)
	}
	if n != len(resp) {
		return fmt.Errorf("ezi2c: short response write: %d of %d bytes", n, len(resp))
	}
	return nil
}

// record appends a transaction to the bounded debug log.
func (s *Slave[T]) record(req ReadRequest, status Status) {
	tx := Transaction{
		ID:     uuid.NewString(),
		Time:   time.Now(),
		Addr:   req.Addr,
		Offset: req.Offset,
		Count:  req.Count,
		Status: status.String(),
	}
	s.txMu.Lock()
	s.txLog = append(s.txLog, tx)
	if len(s.txLog) > transactionLogSize {
		s.txLog = s.txLog[len(s.txLog)-transactionLogSize:]
	}
	s.txMu.Unlock()
	if status != StatusOK {
		monitoring.Logf("bus read %s: addr=%#x offset=%d count=%d -> %s", tx.ID, req.Addr, req.Offset, req.Count, status)
	}
}

// Transactions returns a snapshot of the recent-transaction log, newest
// last.
func (s *Slave[T]) Transactions() []Transaction {
	s.txMu.Lock()
	defer s.txMu.Unlock()
	out := make([]Transaction, len(s.txLog))
	copy(out, s.txLog)
	return out
}

// Close stops serving and closes the port.
func (s *Slave[T]) Close() error {
	s.closingMu.Lock()
	s.closing = true
	s.closingMu.Unlock()
	return s.port.Close()
}
