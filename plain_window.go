package windowpool

import (
	"errors"
	"fmt"
	"io"
)

// PlainPersistenceWindow is a heap-resident window covering a whole brick.
// The brick range is read eagerly on allocation; writes are staged in the
// buffer and written back on force, eviction and close. It is the window
// variant used when the pool is configured with WithPlainWindows.
type PlainPersistenceWindow struct {
	windowState

	position   int64
	recordSize int
	buf        []byte
	channel    StoreChannel

	// dirty is guarded by windowState.mu.
	dirty bool
}

func newPlainPersistenceWindow(position int64, recordSize, totalSize int, channel StoreChannel) *PlainPersistenceWindow {
	return &PlainPersistenceWindow{
		position:   position,
		recordSize: recordSize,
		buf:        make([]byte, totalSize),
		channel:    channel,
	}
}

// readFullWindow loads the brick range from the channel. A short read leaves
// the tail zero-filled; the brick may extend past the current end of file
// after expansion.
func (w *PlainPersistenceWindow) readFullWindow() error {
	if _, err := w.channel.ReadAt(w.buf, w.position*int64(w.recordSize)); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("windowpool: read window at position %d: %w", w.position, err)
	}
	return nil
}

// Position returns the first record position the window covers.
func (w *PlainPersistenceWindow) Position() int64 { return w.position }

// Size returns the number of bytes the window covers.
func (w *PlainPersistenceWindow) Size() int { return len(w.buf) }

// Record returns the bytes of the record at position, or nil when the window
// does not cover it.
func (w *PlainPersistenceWindow) Record(position int64) []byte {
	return recordSlice(w.buf, w.position, position, w.recordSize)
}

// Force writes the staged buffer back to the channel if it is dirty.
func (w *PlainPersistenceWindow) Force() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.writeOutLocked()
}

func (w *PlainPersistenceWindow) lock(opType OperationType) {
	w.windowState.lock(opType)
	if opType == OpWrite {
		w.mu.Lock()
		w.dirty = true
		w.mu.Unlock()
	}
}

// acceptContents copies a released row's bytes into the window at the record
// offset. The caller must hold the window's WRITE lock.
func (w *PlainPersistenceWindow) acceptContents(row *PersistenceRow) {
	w.mu.Lock()
	defer w.mu.Unlock()

	dst := recordSlice(w.buf, w.position, row.position, w.recordSize)
	if dst == nil {
		return
	}
	copy(dst, row.buf)
	w.dirty = true
}

// writeOutAndCloseIfFree evicts the window unless some thread still holds its
// in-use marker. Dirty contents are written back first.
func (w *PlainPersistenceWindow) writeOutAndCloseIfFree(readOnly bool) (bool, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return true, nil
	}
	if w.usage > 0 {
		return false, nil
	}
	if !readOnly {
		if err := w.writeOutLocked(); err != nil {
			return false, err
		}
	}
	w.closed = true
	return true, nil
}

func (w *PlainPersistenceWindow) writeOutLocked() error {
	if !w.dirty {
		return nil
	}
	if _, err := w.channel.WriteAt(w.buf, w.position*int64(w.recordSize)); err != nil {
		return fmt.Errorf("windowpool: write out window at position %d: %w", w.position, err)
	}
	w.dirty = false
	return nil
}

// close flushes and closes the window unconditionally; used by Pool.Close
// after quiescence.
func (w *PlainPersistenceWindow) close(readOnly bool) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil
	}
	if !readOnly {
		if err := w.writeOutLocked(); err != nil {
			return err
		}
	}
	w.closed = true
	return nil
}
