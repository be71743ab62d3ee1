package windowpool

import "time"

// PoolStats is a point-in-time snapshot of the pool's counters. Each hot-path
// counter is updated atomically, but the snapshot is not taken atomically
// across counters; at quiescence Hit+Miss counts each Acquire call that
// reached the brick lookup once.
type PoolStats struct {
	StoreName string

	// Sizing.
	BrickCount   int
	BrickSize    int
	AvailableMem int64
	MemUsed      int64

	// Access counters.
	Hit      int64
	Miss     int64
	Switches int64
	Ooe      int64

	// Refresh counters.
	Refreshes        int64
	AvertedRefreshes int64
	AvgRefreshTime   time.Duration
}

// Stats returns a snapshot of the pool's counters.
func (p *Pool) Stats() PoolStats {
	refreshes := p.refreshes.Load()
	var avg time.Duration
	if refreshes > 0 {
		avg = time.Duration(p.refreshTime.Load()/refreshes) * time.Millisecond
	}

	p.mu.Lock()
	brickCount, brickSize := p.brickCount, p.brickSize
	availableMem, memUsed := p.availableMem, p.memUsed
	p.mu.Unlock()

	return PoolStats{
		StoreName:        p.storeName,
		BrickCount:       brickCount,
		BrickSize:        brickSize,
		AvailableMem:     availableMem,
		MemUsed:          memUsed,
		Hit:              p.hit.Load(),
		Miss:             p.miss.Load(),
		Switches:         p.switches.Load(),
		Ooe:              p.ooe.Load(),
		Refreshes:        refreshes,
		AvertedRefreshes: p.avertedRefreshes.Load(),
		AvgRefreshTime:   avg,
	}
}
