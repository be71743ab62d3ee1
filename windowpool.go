package windowpool

import (
	"cmp"
	"context"
	"fmt"
	"runtime"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/windowpool/resource"
)

const (
	// MaxBrickCount caps the number of bricks a pool partitions its file
	// into.
	MaxBrickCount = 100_000

	// RefreshBrickCount is the number of observed brick misses that triggers
	// a refresh pass.
	RefreshBrickCount = 50_000

	maxWindowMappingAttempts = 5
)

// Pool manages persistence windows for a fixed-record-size store file. Each
// store configures how much memory it has for brick windows; the pool makes
// the most efficient use of it by keeping windows over the most frequently
// requested regions of the file and serving the remainder through transient
// single-record rows.
type Pool struct {
	storeName string
	pageSize  int
	channel   StoreChannel

	useMemoryMapped bool
	readOnly        bool

	activeRowWindows RowMap
	brickFactory     BrickElementFactory
	monitor          Monitor
	logger           *Logger
	controller       *resource.Controller

	// bricks holds the current brick array; replaced wholesale on expansion
	// so the hot path reads it without locks.
	bricks atomic.Pointer[[]*BrickElement]

	// mu guards the structural state below: brick sizing, memory accounting
	// and brick array replacement. Refresh and expansion serialize on it.
	mu           sync.Mutex
	availableMem int64
	memUsed      int64
	brickCount   int
	brickSize    int

	closed atomic.Bool

	// Access counters. Readers tolerate slightly stale values.
	hit       atomic.Int64
	miss      atomic.Int64
	switches  atomic.Int64
	ooe       atomic.Int64
	brickMiss atomic.Int64

	refreshing       atomic.Bool
	refreshes        atomic.Int64
	avertedRefreshes atomic.Int64
	refreshTime      atomic.Int64 // milliseconds
}

// New creates a pool for a store. pageSize is the record size in bytes; all
// Acquire positions address records of that size inside channel. Brick sizing
// happens here, based on the channel size and the configured mapped memory.
func New(storeName string, pageSize int, channel StoreChannel, optFns ...Option) (*Pool, error) {
	if pageSize < 1 {
		return nil, ErrInvalidPageSize
	}

	o := applyOptions(optFns)

	p := &Pool{
		storeName:        storeName,
		pageSize:         pageSize,
		channel:          channel,
		useMemoryMapped:  o.useMemoryMapped,
		readOnly:         o.readOnly,
		activeRowWindows: o.rowMap,
		brickFactory:     o.brickFactory,
		monitor:          o.monitor,
		logger:           o.logger.WithStore(storeName),
		controller:       o.controller,
		availableMem:     o.mappedMem,
	}

	empty := make([]*BrickElement, 0)
	p.bricks.Store(&empty)

	if err := p.setupBricks(); err != nil {
		return nil, err
	}
	if err := p.dumpStatus(); err != nil {
		return nil, err
	}
	return p, nil
}

// Acquire returns a window encapsulating position, locked for opType so other
// threads cannot use it conflictingly. It blocks while another thread holds
// the same window exclusively. Every acquired window must be given back
// through Release on all exit paths.
func (p *Pool) Acquire(position int64, opType OperationType) (PersistenceWindow, error) {
	if p.closed.Load() {
		return nil, ErrClosed
	}
	if opType == OpWrite && p.readOnly {
		return nil, ErrReadOnly
	}

	if p.brickMiss.Load() >= RefreshBrickCount {
		if err := p.refreshBricks(); err != nil {
			return nil, err
		}
	}

	var window lockableWindow
	var theBrick *BrickElement
	counted := false

	for window == nil {
		if p.brickSize > 0 {
			brickIndex := p.positionToBrickIndex(position)
			if brickIndex >= len(*p.bricks.Load()) {
				if err := p.expandBricks(brickIndex + 1); err != nil {
					return nil, err
				}
			}
			theBrick = (*p.bricks.Load())[brickIndex]
			if w := theBrick.getAndMarkWindow(); w != nil {
				if !counted {
					p.hit.Add(1)
					counted = true
				}
				window = w
				break
			}
		}

		// There was no usable window for this brick; go for an active row
		// instead. Count the miss once per call, not per CAS retry.
		if !counted {
			p.miss.Add(1)
			p.brickMiss.Add(1)
			counted = true
		}

		// Lock-free instantiation of an active row for this position. See if
		// there's already one we can mark as in use.
		if dpw := p.activeRowWindows.Get(position); dpw != nil && dpw.markAsInUse() {
			window = dpw
			break
		}

		// Either there was no active row for this position or it got closed
		// right before we managed to mark it as in use. Either way
		// instantiate a new one.
		dpw, err := newPersistenceRow(position, p.pageSize, p.channel)
		if err != nil {
			if theBrick != nil {
				theBrick.unLock()
			}
			return nil, err
		}
		if existing := p.activeRowWindows.PutIfAbsent(position, dpw); existing == nil {
			window = dpw
		} else {
			// Someone else put a row there before us. Close the one we
			// unnecessarily opened; the next go in this loop will get the
			// winning one instead.
			dpw.close()
			if theBrick != nil {
				// theBrick may be nil here if brick size is 0.
				theBrick.unLock()
			}
		}
	}

	window.lock(opType)
	return window, nil
}

// Release gives a window back to the pool and unlocks it so other threads may
// use it. Dirty rows are written out or handed over to a brick window that
// appeared in the meantime.
func (p *Pool) Release(window PersistenceWindow) error {
	switch w := window.(type) {
	case *PersistenceRow:
		return p.releaseRow(w)
	case brickWindow:
		if p.brickSize > 0 {
			p.unlockBrick(w.Position())
		}
		w.unref()
		w.unLock()
		return nil
	default:
		return fmt.Errorf("windowpool: release of foreign window %T", window)
	}
}

func (p *Pool) releaseRow(dpw *PersistenceRow) error {
	// If a brick window has been instantiated while we had this active row
	// we need to hand the changes over, unless the window is memory mapped:
	// those are backed by the same file region the row writes out to.
	if p.brickSize > 0 && dpw.isDirty() {
		p.applyChangesToWindowIfNecessary(dpw)
	}

	closed, err := dpw.writeOutAndCloseIfFree(p.readOnly)
	if closed {
		p.activeRowWindows.Remove(dpw.Position(), dpw)
	} else if err == nil {
		dpw.reset()
	}

	if p.brickSize > 0 {
		p.unlockBrick(dpw.Position())
	}
	dpw.unLock()
	return err
}

func (p *Pool) unlockBrick(position int64) {
	brickIndex := p.positionToBrickIndex(position)
	if bricks := *p.bricks.Load(); brickIndex < len(bricks) {
		bricks[brickIndex].unLock()
	}
}

func (p *Pool) applyChangesToWindowIfNecessary(dpw *PersistenceRow) {
	brickIndex := p.positionToBrickIndex(dpw.Position())
	bricks := *p.bricks.Load()
	if brickIndex >= len(bricks) {
		return
	}

	pw, ok := bricks[brickIndex].getWindow().(*PlainPersistenceWindow)
	if !ok || !pw.markAsInUse() {
		return
	}
	// There is a non-mapped brick window here; let it know about the
	// changes before the row goes away.
	pw.lock(OpWrite)
	pw.acceptContents(dpw)
	pw.unLock()
	pw.unref()
}

// FlushAll forces every brick window and then the channel itself. It is a
// no-op for read-only pools.
func (p *Pool) FlushAll() error {
	if p.readOnly {
		return nil
	}

	bricks := *p.bricks.Load()
	g := new(errgroup.Group)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for _, be := range bricks {
		w := be.getWindow()
		if w == nil {
			continue
		}
		g.Go(func() error {
			if p.controller != nil {
				if err := p.controller.AcquireIO(context.Background(), w.Size()); err != nil {
					return err
				}
			}
			return w.Force()
		})
	}
	if err := g.Wait(); err != nil {
		return fmt.Errorf("windowpool: failed to flush %s: %w", p.storeName, err)
	}

	if err := p.channel.Sync(); err != nil {
		return fmt.Errorf("windowpool: failed to force channel %s: %w", p.storeName, err)
	}
	return nil
}

// Close flushes and closes every brick window, clears the active row map and
// emits final statistics. The channel itself stays open; it belongs to the
// caller. Close is idempotent; acquiring from a closed pool fails with
// ErrClosed.
func (p *Pool) Close() error {
	if p.closed.Swap(true) {
		return nil
	}

	if err := p.FlushAll(); err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	var firstErr error
	for _, be := range *p.bricks.Load() {
		if w := be.getWindow(); w != nil {
			if err := w.close(p.readOnly); err != nil && firstErr == nil {
				firstErr = err
			}
			be.setWindow(nil)
			p.memUsed -= int64(p.brickSize)
		}
	}
	p.activeRowWindows.Clear()

	p.dumpStatistics()
	p.logger.LogClose(p.hit.Load(), p.miss.Load(), p.switches.Load(), p.ooe.Load())
	return firstErr
}

func (p *Pool) positionToBrickIndex(position int64) int {
	return int(position * int64(p.pageSize) / int64(p.brickSize))
}

func (p *Pool) brickIndexToPosition(brickIndex int) int64 {
	return int64(brickIndex) * int64(p.brickSize) / int64(p.pageSize)
}

// setupBricks performs the initial partitioning of the channel based on its
// size and the memory available for windows.
func (p *Pool) setupBricks() error {
	fileSize, err := p.channel.Size()
	if err != nil {
		return fmt.Errorf("windowpool: unable to get file size for %s: %w", p.storeName, err)
	}

	// If we can't fit even 10 records in available memory don't even try to
	// use it for window mapping.
	if p.availableMem > 0 && p.availableMem < int64(p.pageSize)*10 {
		p.disableMapping(int64(p.pageSize) * 10)
		return nil
	}

	if p.availableMem > 0 && fileSize > 0 {
		ratio := float64(p.availableMem) / float64(fileSize)
		if ratio >= 1 {
			// The whole file fits; aim for ~1000 equally sized bricks for
			// coarse, cheap bookkeeping.
			p.brickSize = int(p.availableMem / 1000)
			p.brickSize = (p.brickSize / p.pageSize) * p.pageSize
			if p.brickSize == 0 {
				p.brickSize = p.pageSize
			}
			p.brickCount = int(fileSize / int64(p.brickSize))
		} else {
			// Memory is scarce; aim for ~1000 bricks worth of memory so
			// eviction stays fine-grained.
			p.brickCount = int(1000.0 / ratio)
			if p.brickCount > MaxBrickCount {
				p.brickCount = MaxBrickCount
			}
			if fileSize/int64(p.brickCount) > p.availableMem {
				p.disableMapping(fileSize / int64(p.brickCount))
				return nil
			}
			p.brickSize = int(fileSize / int64(p.brickCount))
			if p.brickSize < p.pageSize {
				p.brickSize = p.pageSize
			} else {
				p.brickSize = (p.brickSize / p.pageSize) * p.pageSize
			}
		}
	} else if p.availableMem > 0 {
		// Empty file, only memory given; brick count grows on demand.
		p.brickSize = int(p.availableMem / 100)
		p.brickSize = (p.brickSize / p.pageSize) * p.pageSize
	}

	bricks := make([]*BrickElement, p.brickCount)
	for i := range bricks {
		bricks[i] = p.brickFactory(i)
	}
	p.bricks.Store(&bricks)
	return nil
}

func (p *Pool) disableMapping(wanted int64) {
	p.monitor.InsufficientMemoryForMapping(p.availableMem, wanted)
	p.logger.LogMappingDisabled(p.availableMem, wanted)
	p.availableMem = 0
	p.brickCount = 0
	p.brickSize = 0
}

// refreshBricks goes through the bricks and checks whether they are optimally
// placed, changing the mapping set accordingly. Only one thread executes the
// pass; concurrent triggers are counted as averted and proceed without
// refreshing.
func (p *Pool) refreshBricks() error {
	if p.brickMiss.Load() < RefreshBrickCount || p.brickSize <= 0 {
		return nil
	}

	if !p.refreshing.CompareAndSwap(false, true) {
		// Another thread is refreshing right now; trust it to refresh the
		// bricks and just go about our business.
		p.avertedRefreshes.Add(1)
		return nil
	}
	defer p.refreshing.Store(false)

	start := time.Now()
	p.mu.Lock()
	err := p.doRefreshBricks()
	memUsed := p.memUsed
	p.mu.Unlock()
	took := time.Since(start)

	p.refreshes.Add(1)
	p.refreshTime.Add(took.Milliseconds())
	p.logger.LogRefresh(p.switches.Load(), memUsed, took)
	return err
}

// doRefreshBricks runs under p.mu.
func (p *Pool) doRefreshBricks() error {
	p.brickMiss.Store(0)

	bricks := *p.bricks.Load()
	var mapped, unmapped []*BrickElement
	for _, be := range bricks {
		be.snapshotHitCount()
		if be.getWindow() != nil {
			mapped = append(mapped, be)
		} else {
			unmapped = append(unmapped, be)
		}
		be.refresh()
	}
	slices.SortFunc(mapped, compareBySnapshot)
	slices.SortFunc(unmapped, compareBySnapshot)

	// Fill up unused memory: map unmapped bricks as much as the budget and
	// the request pattern allow, starting from the end of the list where the
	// bricks with the highest hit ratio are.
	unmappedIndex := len(unmapped) - 1
	for p.memUsed+int64(p.brickSize) <= p.availableMem && unmappedIndex >= 0 {
		ub := unmapped[unmappedIndex]
		unmappedIndex--
		if ub.hitCountSnapshot == 0 {
			// More memory is available, but no more windows have actually
			// been requested; don't map unused random bricks.
			return nil
		}
		if _, err := p.allocateNewWindow(ub); err != nil {
			return err
		}
	}

	// Switch bad mappings: iterate mapped bricks from the beginning (lowest
	// hit ratio) against the unmapped bricks left over above (highest hit
	// ratio still unmapped).
	mappedIndex := 0
	for unmappedIndex >= 0 && mappedIndex < len(mapped) {
		mb := mapped[mappedIndex]
		ub := unmapped[unmappedIndex]
		mappedIndex++
		unmappedIndex--
		if mb.hitCountSnapshot >= ub.hitCountSnapshot {
			// No unmapped brick with a higher hit ratio than the coldest
			// mapped brick remains; done.
			break
		}

		closed, err := mb.getWindow().writeOutAndCloseIfFree(p.readOnly)
		if err != nil {
			return err
		}
		if closed {
			mb.setWindow(nil)
			p.memUsed -= int64(p.brickSize)
			ok, err := p.allocateNewWindow(ub)
			if err != nil {
				return err
			}
			if ok {
				p.switches.Add(1)
			}
		}
	}
	return nil
}

func compareBySnapshot(a, b *BrickElement) int {
	return cmp.Compare(a.hitCountSnapshot, b.hitCountSnapshot)
}

// freeWindows evicts the nr coldest mapped bricks. Used while expanding when
// memory is already spoken for. Runs under p.mu.
func (p *Pool) freeWindows(nr int) error {
	if p.brickSize <= 0 {
		return nil
	}

	var mapped []*BrickElement
	for _, be := range *p.bricks.Load() {
		if be.getWindow() != nil {
			be.snapshotHitCount()
			mapped = append(mapped, be)
		}
	}
	slices.SortFunc(mapped, compareBySnapshot)

	for i := 0; i < nr && i < len(mapped); i++ {
		be := mapped[i]
		closed, err := be.getWindow().writeOutAndCloseIfFree(p.readOnly)
		if err != nil {
			return err
		}
		if closed {
			be.setWindow(nil)
			p.memUsed -= int64(p.brickSize)
		}
	}
	return nil
}

// expandBricks grows the brick array to newBrickCount. Called every time a
// request addresses a brick beyond the current count, which happens as the
// underlying channel grows.
func (p *Pool) expandBricks(newBrickCount int) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if newBrickCount <= p.brickCount {
		return nil
	}

	cur := *p.bricks.Load()
	tmp := make([]*BrickElement, newBrickCount)
	copy(tmp, cur)

	if p.memUsed+int64(p.brickSize) >= p.availableMem {
		if err := p.freeWindows(1); err != nil {
			return err
		}
	}
	for i := len(cur); i < newBrickCount; i++ {
		be := p.brickFactory(i)
		tmp[i] = be
		if p.memUsed+int64(p.brickSize) <= p.availableMem {
			if _, err := p.allocateNewWindow(be); err != nil {
				return err
			}
		}
	}

	p.bricks.Store(&tmp)
	p.brickCount = newBrickCount
	return nil
}

// allocateNewWindow installs a window on brick. A refused memory mapping is
// recovered locally: the error is counted and reported and the brick stays
// unmapped, falling back on rows until the next refresh. Errors loading a
// plain window are returned. Runs under p.mu.
func (p *Pool) allocateNewWindow(brick *BrickElement) (bool, error) {
	for attempt := 0; attempt < maxWindowMappingAttempts; attempt++ {
		// Lock the brick so no new rows can be mapped over it, then wait for
		// every row already over it to be released (releasing does not take
		// this lock). A thread that was waiting here will discover the
		// window in place and never allocate a row.
		brick.mu.Lock()
		if brick.lockCount.Load() == 0 {
			ok, err := p.installWindowLocked(brick)
			brick.mu.Unlock()
			return ok, err
		}
		brick.mu.Unlock()

		// Locks are still held on this brick; give the holders some
		// breathing space to release them.
		runtime.Gosched()
	}
	return false, nil
}

// installWindowLocked runs with brick.mu held and lockCount at zero.
func (p *Pool) installWindowLocked(brick *BrickElement) (bool, error) {
	position := p.brickIndexToPosition(brick.index)

	if p.useMemoryMapped {
		w, err := newMappedPersistenceWindow(position, p.pageSize, p.brickSize, p.channel, p.readOnly)
		if err != nil {
			p.ooe.Add(1)
			p.monitor.AllocationError(p.storeName, err, "unable to memory map")
			p.logger.LogAllocationError(brick.index, "unable to memory map", err)
			return false, nil
		}
		brick.window = w
	} else {
		if p.controller != nil {
			ctx := context.Background()
			if err := p.controller.AcquireLoad(ctx); err != nil {
				return false, err
			}
			defer p.controller.ReleaseLoad()
			if err := p.controller.AcquireIO(ctx, p.brickSize); err != nil {
				return false, err
			}
		}
		w := newPlainPersistenceWindow(position, p.pageSize, p.brickSize, p.channel)
		if err := w.readFullWindow(); err != nil {
			return false, err
		}
		brick.window = w
	}

	p.memUsed += int64(p.brickSize)
	return true, nil
}

func (p *Pool) dumpStatistics() {
	p.monitor.RecordStatistics(p.storeName, p.hit.Load(), p.miss.Load(), p.switches.Load(), p.ooe.Load())
}

func (p *Pool) dumpStatus() error {
	size, err := p.channel.Size()
	if err != nil {
		return fmt.Errorf("windowpool: unable to get file size for %s: %w", p.storeName, err)
	}
	p.monitor.RecordStatus(p.storeName, p.brickCount, p.brickSize, p.availableMem, size)
	p.logger.LogSetup(p.brickCount, p.brickSize, p.availableMem, size)
	return nil
}
