package ezi2c

import (
	"fmt"

	"go.bug.st/serial"
)

// NewRealSlave creates a Slave backed by a real serial port at the given
// path.
func NewRealSlave(path string, mode *PortMode) (*Slave[serial.Port], error) {
	if mode == nil {
		mode = DefaultPortMode()
	}
	sm, err := serialMode(mode)
	if err != nil {
		return nil, err
	}
	port, err := serial.Open(path, sm)
	if err != nil {
		return nil, err
	}
	return NewSlave[serial.Port](port), nil
}

// serialMode translates a PortMode into the go.bug.st/serial mode.
func serialMode(m *PortMode) (*serial.Mode, error) {
	mode := &serial.Mode{
		BaudRate: m.BaudRate,
		DataBits: m.DataBits,
	}
	switch m.Parity {
	case NoParity:
		mode.Parity = serial.NoParity
	case OddParity:
		mode.Parity = serial.OddParity
	case EvenParity:
		mode.Parity = serial.EvenParity
	default:
		return nil, fmt.Errorf("ezi2c: unknown parity %d", m.Parity)
	}
	switch m.StopBits {
	case OneStopBit:
		mode.StopBits = serial.OneStopBit
	case TwoStopBits:
		mode.StopBits = serial.TwoStopBits
	default:
		return nil, fmt.Errorf("ezi2c: unknown stop bits %d", m.StopBits)
	}
	return mode, nil
}
