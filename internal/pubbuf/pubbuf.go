// Package pubbuf implements the publication buffers shared between the
// scan loop and the bus slave.
//
// A Buffer is a fixed-size byte region with whole-contents replacement:
// the scan loop is the single writer, bus reads snapshot under a read lock,
// so one read never observes a half-written record. Consecutive reads may
// still straddle two publishes; that is the documented baseline contract.
package pubbuf

import (
	"fmt"
	"sync"
)

// Buffer is one addressable publication region. The zero value is not
// usable; create buffers with New.
type Buffer struct {
	mu   sync.RWMutex
	data []byte
	gen  uint64
}

// New returns a zero-filled buffer of the given fixed size.
func New(size int) (*Buffer, error) {
	if size <= 0 {
		return nil, fmt.Errorf("pubbuf: size %d, need at least 1 byte", size)
	}
	return &Buffer{data: make([]byte, size)}, nil
}

// Size returns the fixed buffer size in bytes.
func (b *Buffer) Size() int {
	return len(b.data)
}

// Replace overwrites the buffer's entire contents. The payload must match
// the buffer size exactly: partial updates are not part of the contract.
func (b *Buffer) Replace(p []byte) error {
	if len(p) != len(b.data) {
		return fmt.Errorf("pubbuf: replace with %d bytes into %d-byte buffer", len(p), len(b.data))
	}
	b.mu.Lock()
	copy(b.data, p)
	b.gen++
	b.mu.Unlock()
	return nil
}

// ReadAt copies n bytes starting at off into a fresh slice. The range must
// lie entirely inside the buffer.
func (b *Buffer) ReadAt(off, n int) ([]byte, error) {
	if off < 0 || n < 0 || off+n > len(b.data) {
		return nil, fmt.Errorf("pubbuf: read [%d, %d) outside %d-byte buffer", off, off+n, len(b.data))
	}
	out := make([]byte, n)
	b.mu.RLock()
	copy(out, b.data[off:off+n])
	b.mu.RUnlock()
	return out, nil
}

// Bytes returns a snapshot of the whole buffer.
func (b *Buffer) Bytes() []byte {
	out := make([]byte, len(b.data))
	b.mu.RLock()
	copy(out, b.data)
	b.mu.RUnlock()
	return out
}

// Generation returns the number of completed replaces. It is local pacing
// and test state, never exposed on the bus.
func (b *Buffer) Generation() uint64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.gen
}
