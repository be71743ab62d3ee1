package windowpool_test

import (
	"bytes"
	"fmt"
	"os"

	"github.com/hupe1980/windowpool"
)

func Example() {
	f, err := os.CreateTemp("", "example.store")
	if err != nil {
		panic(err)
	}
	defer os.Remove(f.Name())
	defer f.Close()

	pool, err := windowpool.New("example.store", 16, windowpool.NewFileChannel(f))
	if err != nil {
		panic(err)
	}
	defer pool.Close()

	w, err := pool.Acquire(0, windowpool.OpWrite)
	if err != nil {
		panic(err)
	}
	copy(w.Record(0), "hello, records!")
	if err := pool.Release(w); err != nil {
		panic(err)
	}

	r, err := pool.Acquire(0, windowpool.OpRead)
	if err != nil {
		panic(err)
	}
	fmt.Printf("%s\n", bytes.TrimRight(r.Record(0), "\x00"))
	if err := pool.Release(r); err != nil {
		panic(err)
	}

	stats := pool.Stats()
	fmt.Printf("hit=%d miss=%d\n", stats.Hit, stats.Miss)
	// Output:
	// hello, records!
	// hit=0 miss=2
}
