package mmap

import (
	"sync/atomic"
)

// Mapping represents a memory-mapped region of a file.
// It owns the underlying byte slice and is responsible for unmapping it.
type Mapping struct {
	// data is the requested region; a sub-slice of full when the offset
	// needed alignment.
	data     []byte
	full     []byte
	offset   int64
	writable bool
	closed   atomic.Bool
}

// Map maps length bytes of the file identified by fd, starting at offset.
// When writable is true the mapping is shared read-write: stores become
// visible to readers of the file and reach the file itself on Sync.
//
// The offset does not need to be aligned; alignment to the OS mapping
// granularity is handled internally.
func Map(fd uintptr, offset int64, length int, writable bool) (*Mapping, error) {
	if offset < 0 {
		return nil, ErrInvalidOffset
	}
	if length <= 0 {
		return nil, ErrInvalidSize
	}

	data, full, err := osMap(fd, offset, length, writable)
	if err != nil {
		return nil, err
	}

	return &Mapping{
		data:     data,
		full:     full,
		offset:   offset,
		writable: writable,
	}, nil
}

// Close unmaps the region. It is idempotent.
func (m *Mapping) Close() error {
	if m.closed.Swap(true) {
		return nil // Already closed
	}
	data := m.full
	m.data, m.full = nil, nil
	return osUnmap(data)
}

// Bytes returns the mapped region.
// Warning: The slice is valid only until Close() is called.
// Accessing the slice after Close() results in undefined behavior (likely a crash).
func (m *Mapping) Bytes() []byte {
	if m.closed.Load() {
		return nil
	}
	return m.data
}

// Offset returns the file offset the region starts at.
func (m *Mapping) Offset() int64 {
	return m.offset
}

// Size returns the size of the region in bytes.
func (m *Mapping) Size() int {
	return len(m.data)
}

// Sync flushes modified pages of a writable mapping back to the file.
// It is a no-op for read-only or closed mappings.
func (m *Mapping) Sync() error {
	if m.closed.Load() || !m.writable {
		return nil
	}
	return osSync(m.full)
}

// Advise provides hints to the kernel about how the memory will be accessed.
func (m *Mapping) Advise(pattern AccessPattern) error {
	if m.closed.Load() {
		return ErrClosed
	}
	if m.full == nil {
		return nil
	}
	return osAdvise(m.full, pattern)
}
