package ezi2c

import (
	"encoding/binary"
	"fmt"
	"io"
)

// Buffer addresses on the bus. Address 0x08 serves the engine's diagnostic
// structure for tuning tools; 0x09 serves the compact published record for
// a second, independent master.
const (
	DiagnosticAddr = 0x08
	CompactAddr    = 0x09
)

// Frame markers for the register-read protocol carried over the serial
// link. A master sends a fixed-size read request and receives a status
// byte, the payload length, and the payload.
const (
	RequestSOF  = 0xA5
	ResponseSOF = 0x5A
)

// requestLen is the size of a read-request frame:
// SOF, addr, offset u16 LE, count u16 LE, checksum.
const requestLen = 7

// Status codes returned in a response frame.
type Status uint8

const (
	StatusOK Status = iota
	StatusBadAddress
	StatusBadRange
	StatusBadChecksum
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusBadAddress:
		return "bad address"
	case StatusBadRange:
		return "bad range"
	case StatusBadChecksum:
		return "bad checksum"
	}
	return fmt.Sprintf("status(%d)", uint8(s))
}

// ReadRequest is a master's read of count bytes at offset within the
// buffer exposed at addr.
type ReadRequest struct {
	Addr   uint8
	Offset uint16
	Count  uint16
}

// checksum is a simple XOR over the frame body, matching what a small
// microcontroller master can compute on the fly.
func checksum(b []byte) byte {
	var c byte
	for _, v := range b {
		c ^= v
	}
	return c
}

// AppendRequest appends the wire form of r to b. This is the master-side
// encoder; the hub uses it in tests and tooling.
func AppendRequest(b []byte, r ReadRequest) []byte {
	b = append(b, RequestSOF, r.Addr)
	b = binary.LittleEndian.AppendUint16(b, r.Offset)
	b = binary.LittleEndian.AppendUint16(b, r.Count)
	return append(b, checksum(b[len(b)-5:]))
}

// readRequest reads one request frame from r. It hunts for the SOF byte,
// so a master can recover from line noise by re-sending. A checksum
// mismatch is reported alongside the parsed frame so the slave can answer
// with StatusBadChecksum.
func readRequest(r io.ByteReader) (ReadRequest, bool, error) {
	for {
		sof, err := r.ReadByte()
		if err != nil {
			return ReadRequest{}, false, err
		}
		if sof != RequestSOF {
			continue
		}
		var body [requestLen - 1]byte
		for i := range body {
			b, err := r.ReadByte()
			if err != nil {
				return ReadRequest{}, false, err
			}
			body[i] = b
		}
		req := ReadRequest{
			Addr:   body[0],
			Offset: binary.LittleEndian.Uint16(body[1:3]),
			Count:  binary.LittleEndian.Uint16(body[3:5]),
		}
		ok := checksum(body[:5]) == body[5]
		return req, ok, nil
	}
}

// AppendResponse appends a response frame carrying status and payload.
func AppendResponse(b []byte, status Status, payload []byte) []byte {
	start := len(b)
	b = append(b, ResponseSOF, byte(status))
	b = binary.LittleEndian.AppendUint16(b, uint16(len(payload)))
	b = append(b, payload...)
	return append(b, checksum(b[start+1:]))
}

// ParseResponse decodes a response frame produced by AppendResponse. This
// is the master-side decoder, used by tests and by the capsense-read tool.
func ParseResponse(b []byte) (Status, []byte, error) {
	if len(b) < 5 {
		return 0, nil, fmt.Errorf("response too short: %d bytes", len(b))
	}
	if b[0] != ResponseSOF {
		return 0, nil, fmt.Errorf("bad response SOF %#x", b[0])
	}
	n := int(binary.LittleEndian.Uint16(b[2:4]))
	if len(b) != 5+n {
		return 0, nil, fmt.Errorf("response length %d, want %d for %d-byte payload", len(b), 5+n, n)
	}
	if checksum(b[1:len(b)-1]) != b[len(b)-1] {
		return 0, nil, fmt.Errorf("response checksum mismatch")
	}
	return Status(b[1]), b[4 : 4+n], nil
}
