package windowpool

import (
	"fmt"

	"github.com/hupe1980/windowpool/internal/mmap"
)

// MappedPersistenceWindow is a window backed by an OS memory mapping of the
// brick's file region. Reads and writes go straight through the mapping, so
// a released row covering the same region needs no content hand-off; Force
// msyncs the region.
type MappedPersistenceWindow struct {
	windowState

	position   int64
	recordSize int
	readOnly   bool
	mapping    *mmap.Mapping
}

// newMappedPersistenceWindow maps the brick range [position*recordSize,
// position*recordSize+totalSize) of the channel. In read-write mode the
// channel is grown first when the range reaches beyond the current end,
// mirroring the growth semantics of mapping a file region for writing.
func newMappedPersistenceWindow(position int64, recordSize, totalSize int, channel StoreChannel, readOnly bool) (*MappedPersistenceWindow, error) {
	fder, ok := channel.(Fder)
	if !ok {
		return nil, &ErrMapping{Position: position, Size: totalSize, cause: fmt.Errorf("channel %T exposes no file descriptor", channel)}
	}

	byteOffset := position * int64(recordSize)

	size, err := channel.Size()
	if err != nil {
		return nil, &ErrMapping{Position: position, Size: totalSize, cause: err}
	}
	if size < byteOffset+int64(totalSize) {
		if readOnly {
			return nil, &ErrMapping{Position: position, Size: totalSize, cause: fmt.Errorf("region ends at %d beyond end of read-only channel (%d)", byteOffset+int64(totalSize), size)}
		}
		if err := channel.Truncate(byteOffset + int64(totalSize)); err != nil {
			return nil, &ErrMapping{Position: position, Size: totalSize, cause: err}
		}
	}

	m, err := mmap.Map(fder.Fd(), byteOffset, totalSize, !readOnly)
	if err != nil {
		return nil, &ErrMapping{Position: position, Size: totalSize, cause: err}
	}

	// Brick access is record-granular and scattered.
	_ = m.Advise(mmap.AccessRandom)

	return &MappedPersistenceWindow{
		position:   position,
		recordSize: recordSize,
		readOnly:   readOnly,
		mapping:    m,
	}, nil
}

// Position returns the first record position the window covers.
func (w *MappedPersistenceWindow) Position() int64 { return w.position }

// Size returns the number of bytes the window covers.
func (w *MappedPersistenceWindow) Size() int { return w.mapping.Size() }

// Record returns the bytes of the record at position, or nil when the window
// does not cover it.
func (w *MappedPersistenceWindow) Record(position int64) []byte {
	return recordSlice(w.mapping.Bytes(), w.position, position, w.recordSize)
}

// Force msyncs the mapped region.
func (w *MappedPersistenceWindow) Force() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil
	}
	return w.mapping.Sync()
}

// writeOutAndCloseIfFree evicts the window unless some thread still holds its
// in-use marker. The region is synced before unmapping in read-write mode.
func (w *MappedPersistenceWindow) writeOutAndCloseIfFree(readOnly bool) (bool, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return true, nil
	}
	if w.usage > 0 {
		return false, nil
	}
	if !readOnly {
		if err := w.mapping.Sync(); err != nil {
			return false, err
		}
	}
	if err := w.mapping.Close(); err != nil {
		return false, err
	}
	w.closed = true
	return true, nil
}

// close flushes and unmaps the window unconditionally; used by Pool.Close
// after quiescence.
func (w *MappedPersistenceWindow) close(readOnly bool) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil
	}
	if !readOnly {
		if err := w.mapping.Sync(); err != nil {
			return err
		}
	}
	w.closed = true
	return w.mapping.Close()
}
