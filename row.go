package windowpool

import (
	"errors"
	"fmt"
	"io"
)

// PersistenceRow is a single-record heap window, created on demand for
// positions whose brick carries no mapped window. Rows are short-lived: they
// are published in the pool's active row map, shared by concurrent acquirers
// of the same position, and written out and destroyed on release once the
// last holder lets go.
type PersistenceRow struct {
	windowState

	position   int64
	recordSize int
	buf        []byte
	channel    StoreChannel

	// dirty is guarded by windowState.mu.
	dirty bool
}

// newPersistenceRow reads the record at position into a fresh row buffer.
// Reading past the end of the channel yields a zero-filled tail, matching a
// store that has grown logically but not yet physically.
//
// The creating thread holds the initial in-use mark.
func newPersistenceRow(position int64, recordSize int, channel StoreChannel) (*PersistenceRow, error) {
	r := &PersistenceRow{
		position:   position,
		recordSize: recordSize,
		buf:        make([]byte, recordSize),
		channel:    channel,
	}
	r.usage = 1

	if _, err := channel.ReadAt(r.buf, position*int64(recordSize)); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("windowpool: read record at position %d: %w", position, err)
	}
	return r, nil
}

// Position returns the record position this row covers.
func (r *PersistenceRow) Position() int64 { return r.position }

// Size returns the record size in bytes.
func (r *PersistenceRow) Size() int { return r.recordSize }

// Record returns the row buffer when position matches, nil otherwise.
func (r *PersistenceRow) Record(position int64) []byte {
	if position != r.position {
		return nil
	}
	return r.buf
}

// Force writes the buffer back to the channel if it is dirty.
func (r *PersistenceRow) Force() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.writeOutLocked()
}

func (r *PersistenceRow) lock(opType OperationType) {
	r.windowState.lock(opType)
	if opType == OpWrite {
		r.mu.Lock()
		r.dirty = true
		r.mu.Unlock()
	}
}

func (r *PersistenceRow) isDirty() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.dirty
}

// reset clears the dirty flag after the contents have been handed over or
// written out, keeping the row alive for a holder that marked it in use.
func (r *PersistenceRow) reset() {
	r.mu.Lock()
	r.dirty = false
	r.mu.Unlock()
}

// writeOutAndCloseIfFree drops the caller's in-use mark, persists dirty
// bytes, and closes the row if no other thread still holds it. It reports
// whether the row was closed, in which case the caller must remove it from
// the active row map.
func (r *PersistenceRow) writeOutAndCloseIfFree(readOnly bool) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.usage--

	if !readOnly {
		if err := r.writeOutLocked(); err != nil {
			// Keep the row dirty and open so a remaining holder (or a retried
			// release) can attempt the write again.
			return false, err
		}
	}

	if r.usage == 0 {
		r.closed = true
		return true, nil
	}
	return false, nil
}

func (r *PersistenceRow) writeOutLocked() error {
	if !r.dirty {
		return nil
	}
	if _, err := r.channel.WriteAt(r.buf, r.position*int64(r.recordSize)); err != nil {
		return fmt.Errorf("windowpool: write out record at position %d: %w", r.position, err)
	}
	r.dirty = false
	return nil
}

// close discards a row that lost the publication race and was never visible
// to other threads.
func (r *PersistenceRow) close() {
	r.mu.Lock()
	r.usage--
	if r.usage == 0 {
		r.closed = true
	}
	r.mu.Unlock()
}
