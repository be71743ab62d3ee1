package windowpool

import (
	"sync"
	"sync/atomic"
)

// brickWindow is a window installed on a brick: mapped or plain.
type brickWindow interface {
	lockableWindow

	writeOutAndCloseIfFree(readOnly bool) (bool, error)
	close(readOnly bool) error
}

// BrickElement is one slot of the pool's brick array. It carries the brick's
// optional window, its demand counter and the count of in-flight row accesses
// that block window installation.
type BrickElement struct {
	index int

	// hitCount is bumped on every acquire over the brick, whether its window
	// serves it or a row does, and frozen into hitCountSnapshot for sorting
	// during a refresh pass.
	hitCount         atomic.Int64
	hitCountSnapshot int64

	// lockCount tracks acquisitions in flight over this brick. A window may
	// only be installed while it is zero, so that no row can be created for a
	// region that is just being mapped.
	lockCount atomic.Int32

	// mu guards window installation and removal. The lock-count check and the
	// installation of a new window form one atomic decision under it.
	mu     sync.Mutex
	window brickWindow
}

// BrickElementFactory creates the brick elements of a pool. It is injectable
// so callers can pre-warm or instrument brick creation.
type BrickElementFactory func(index int) *BrickElement

// NewBrickElement is the default BrickElementFactory.
func NewBrickElement(index int) *BrickElement {
	return &BrickElement{index: index}
}

// Index returns the brick's position in the brick array.
func (b *BrickElement) Index() int { return b.index }

// Hit returns the demand observed since the last refresh.
func (b *BrickElement) Hit() int64 { return b.hitCount.Load() }

// lock blocks window installation on this brick until unLock.
func (b *BrickElement) lock() {
	b.lockCount.Add(1)
}

func (b *BrickElement) unLock() {
	b.lockCount.Add(-1)
}

// getAndMarkWindow takes the brick lock and attempts to mark the brick's
// window in use. On success the window is returned with both the brick lock
// and the window mark held; on failure the brick lock is retained as well, so
// that the caller's fallback row keeps the brick from being mapped until the
// row is released.
//
// Demand is counted for every request over the brick, not just window hits;
// that is what lets the refresh pass discover hot unmapped bricks.
func (b *BrickElement) getAndMarkWindow() brickWindow {
	b.lock()
	b.hitCount.Add(1)

	b.mu.Lock()
	w := b.window
	b.mu.Unlock()

	if w != nil && w.markAsInUse() {
		return w
	}
	return nil
}

func (b *BrickElement) getWindow() brickWindow {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.window
}

func (b *BrickElement) setWindow(w brickWindow) {
	b.mu.Lock()
	b.window = w
	b.mu.Unlock()
}

// snapshotHitCount freezes the demand counter for refresh sorting.
func (b *BrickElement) snapshotHitCount() {
	b.hitCountSnapshot = b.hitCount.Load()
}

// refresh resets the demand counter for the next observation period.
func (b *BrickElement) refresh() {
	b.hitCount.Store(0)
}
