package windowpool

import (
	"errors"
	"fmt"
)

var (
	// ErrClosed is returned by Acquire on a closed pool.
	ErrClosed = errors.New("windowpool: closed")

	// ErrReadOnly is returned when a write operation reaches a read-only pool.
	ErrReadOnly = errors.New("windowpool: pool is read-only")

	// ErrInvalidPageSize is returned when a pool is constructed with a page
	// size below one byte.
	ErrInvalidPageSize = errors.New("windowpool: page size must be at least 1")
)

// ErrMapping indicates that the OS refused to memory-map a brick range.
// Allocation falls back to row access; the error is reported through the
// monitor rather than surfaced to Acquire callers.
type ErrMapping struct {
	Position int64
	Size     int
	cause    error
}

func (e *ErrMapping) Error() string {
	return fmt.Sprintf("unable to memory map %d bytes at position %d", e.Size, e.Position)
}

func (e *ErrMapping) Unwrap() error { return e.cause }
