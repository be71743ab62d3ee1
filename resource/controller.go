// Package resource provides throttling for the pool's bulk IO: brick-sized
// plain-window loads and window flushes. Record-granular row traffic is never
// throttled.
package resource

import (
	"context"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

// Config holds resource limits.
type Config struct {
	// MaxConcurrentLoads is the maximum number of load slots (AcquireLoad)
	// held at once; the pool takes one per plain-window load. If 0, defaults
	// to 1.
	MaxConcurrentLoads int64

	// IOLimitBytesPerSec is the maximum IO throughput for brick-sized
	// transfers. If 0, unlimited.
	IOLimitBytesPerSec int64
}

// Controller manages bulk-IO concurrency and throughput.
type Controller struct {
	cfg Config

	loadSem *semaphore.Weighted

	ioLimiter *rate.Limiter
}

// NewController creates a new resource controller.
func NewController(cfg Config) *Controller {
	if cfg.MaxConcurrentLoads <= 0 {
		cfg.MaxConcurrentLoads = 1
	}

	c := &Controller{
		cfg:     cfg,
		loadSem: semaphore.NewWeighted(cfg.MaxConcurrentLoads),
	}

	if cfg.IOLimitBytesPerSec > 0 {
		c.ioLimiter = rate.NewLimiter(rate.Limit(cfg.IOLimitBytesPerSec), int(cfg.IOLimitBytesPerSec))
	}

	return c
}

// AcquireLoad reserves a bulk-transfer slot. Blocks while all slots are busy.
func (c *Controller) AcquireLoad(ctx context.Context) error {
	if c == nil {
		return nil
	}
	return c.loadSem.Acquire(ctx, 1)
}

// ReleaseLoad releases a bulk-transfer slot.
func (c *Controller) ReleaseLoad() {
	if c == nil {
		return
	}
	c.loadSem.Release(1)
}

// AcquireIO waits until the IO limit allows the specified number of bytes.
func (c *Controller) AcquireIO(ctx context.Context, bytes int) error {
	if c == nil || c.ioLimiter == nil {
		return nil
	}
	// WaitN cannot wait for more than the burst size in one call.
	for bytes > 0 {
		n := bytes
		if burst := c.ioLimiter.Burst(); n > burst {
			n = burst
		}
		if err := c.ioLimiter.WaitN(ctx, n); err != nil {
			return err
		}
		bytes -= n
	}
	return nil
}
