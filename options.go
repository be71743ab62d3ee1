package windowpool

import (
	"log/slog"

	"github.com/hupe1980/windowpool/resource"
)

type options struct {
	mappedMem       int64
	useMemoryMapped bool
	readOnly        bool
	rowMap          RowMap
	brickFactory    BrickElementFactory
	monitor         Monitor
	logger          *Logger
	controller      *resource.Controller
}

// Option configures pool construction behavior.
type Option func(*options)

// WithMappedMemory sets the number of bytes available for brick windows.
// Zero (the default) disables mapping entirely; every acquire is then served
// through a row window.
func WithMappedMemory(bytes int64) Option {
	return func(o *options) {
		o.mappedMem = bytes
	}
}

// WithPlainWindows makes the pool stage brick windows in heap buffers instead
// of OS memory mappings. Plain windows read the whole brick range on
// allocation and write it back on force and eviction.
func WithPlainWindows() Option {
	return func(o *options) {
		o.useMemoryMapped = false
	}
}

// WithReadOnly disables all writes: windows are mapped read-only, rows never
// write back, and FlushAll is a no-op.
func WithReadOnly() Option {
	return func(o *options) {
		o.readOnly = true
	}
}

// WithRowMap injects the concurrent map holding active row windows.
// Pass a shared or instrumented implementation; if nil, the default is used.
func WithRowMap(m RowMap) Option {
	return func(o *options) {
		if m != nil {
			o.rowMap = m
		}
	}
}

// WithBrickFactory injects the factory creating brick elements.
// Pass nil to keep the default.
func WithBrickFactory(f BrickElementFactory) Option {
	return func(o *options) {
		if f != nil {
			o.brickFactory = f
		}
	}
}

// WithMonitor configures an observer for statistics, status and allocation
// errors. Pass nil to disable monitoring.
func WithMonitor(m Monitor) Option {
	return func(o *options) {
		if m != nil {
			o.monitor = m
		}
	}
}

// WithLogger configures structured logging for pool operations.
// Pass nil to disable logging.
func WithLogger(logger *Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithLogLevel creates a text logger with the specified level and sets it.
// Convenience wrapper for WithLogger(NewTextLogger(level)).
func WithLogLevel(level slog.Level) Option {
	return func(o *options) {
		o.logger = NewTextLogger(level)
	}
}

// WithResourceController throttles plain-window loads and the window forces
// of FlushAll through the given controller. Eviction write-outs during refresh
// and expansion, and row traffic, are not throttled.
func WithResourceController(c *resource.Controller) Option {
	return func(o *options) {
		o.controller = c
	}
}

func applyOptions(optFns []Option) options {
	o := options{
		useMemoryMapped: true,
		monitor:         NoopMonitor{},
		logger:          NoopLogger(),
	}
	for _, fn := range optFns {
		if fn != nil {
			fn(&o)
		}
	}
	if o.rowMap == nil {
		o.rowMap = NewRowMap()
	}
	if o.brickFactory == nil {
		o.brickFactory = NewBrickElement
	}
	return o
}
