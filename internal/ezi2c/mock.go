package ezi2c

import (
	"io"
	"time"

	"github.com/banshee-data/capsense.hub/internal/monitoring"
)

// Ensure the mock-backed slave satisfies the hub-facing interface.
var _ SlaveInterface = (*Slave[*MockPort])(nil)

// MockPort implements SerialPorter as an in-memory duplex link: the slave
// reads what the master wrote and vice versa. It backs dev mode and tests.
type MockPort struct {
	slaveIn   *io.PipeReader // master -> slave
	masterOut *io.PipeWriter
	masterIn  *io.PipeReader // slave -> master
	slaveOut  *io.PipeWriter
}

// NewMockPort returns a connected mock port.
func NewMockPort() *MockPort {
	slaveIn, masterOut := io.Pipe()
	masterIn, slaveOut := io.Pipe()
	return &MockPort{
		slaveIn:   slaveIn,
		masterOut: masterOut,
		masterIn:  masterIn,
		slaveOut:  slaveOut,
	}
}

func (m *MockPort) Read(p []byte) (int, error)  { return m.slaveIn.Read(p) }
func (m *MockPort) Write(p []byte) (int, error) { return m.slaveOut.Write(p) }

// Close tears down both directions; blocked reads return ErrClosedPipe.
func (m *MockPort) Close() error {
	m.masterOut.Close()
	m.slaveOut.Close()
	m.slaveIn.Close()
	m.masterIn.Close()
	return nil
}

// MasterWrite injects bytes as if a bus master sent them.
func (m *MockPort) MasterWrite(p []byte) (int, error) { return m.masterOut.Write(p) }

// MasterRead reads bytes the slave sent back to the master.
func (m *MockPort) MasterRead(p []byte) (int, error) { return m.masterIn.Read(p) }

// NewMockSlave creates a Slave on a mock port with a self-driving bus
// master that polls the compact region every pollEvery and discards the
// responses. Used in dev mode to exercise the serve path without bus
// hardware.
func NewMockSlave(compactSize int, pollEvery time.Duration) *Slave[*MockPort] {
	port := NewMockPort()
	s := NewSlave(port)

	go func() {
		ticker := time.NewTicker(pollEvery)
		defer ticker.Stop()
		for range ticker.C {
			req := AppendRequest(nil, ReadRequest{Addr: CompactAddr, Offset: 0, Count: uint16(compactSize)})
			if _, err := port.MasterWrite(req); err != nil {
				return
			}
		}
	}()

	// drain responses so the poller never wedges the slave's writes
	go func() {
		buf := make([]byte, 4096)
		for {
			if _, err := port.MasterRead(buf); err != nil {
				monitoring.Logf("mock bus master drain stopped: %v", err)
				return
			}
		}
	}()

	return s
}
