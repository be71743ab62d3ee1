// Package windowpool provides an adaptive caching layer over fixed-record-size
// store files.
//
// A pool partitions its backing file into equally sized bricks, maps the most
// frequently requested bricks into memory as persistence windows and serves
// the remainder through short-lived single-record rows. Concurrent callers
// get locked, position-addressed access to record bytes; the pool tracks
// per-brick demand and periodically reorganizes the mapping set so memory is
// dedicated to the hottest regions of the file.
//
// # Quick Start
//
//	f, _ := os.OpenFile("nodes.store", os.O_RDWR|os.O_CREATE, 0o644)
//	defer f.Close()
//
//	pool, _ := windowpool.New("nodes.store", 16, windowpool.NewFileChannel(f),
//	    windowpool.WithMappedMemory(64<<20),
//	)
//	defer pool.Close()
//
//	w, _ := pool.Acquire(42, windowpool.OpWrite)
//	copy(w.Record(42), record)
//	_ = pool.Release(w)
//
// Every acquired window must be released on all exit paths; abandoning one
// leaks the brick's lock count and keeps that brick from ever being remapped.
//
// # Memory model
//
// The pool provides no ordering between concurrent operations on the same
// position; callers impose their own. Within one goroutine an Acquire
// happens-before its Release, and a later Acquire of the same position
// observes all bytes written before that Release.
//
// Counters exposed by Stats are updated with lock-free atomic adds on the hot
// path; a snapshot taken while operations are in flight may show the counters
// out of step with each other.
package windowpool
