package windowpool

import (
	"io"
	"os"
)

// StoreChannel is the backing file of a pool: a seekable, sized, force-able
// sequence of bytes. The pool is a transparent cache over it and defines no
// on-disk format of its own.
type StoreChannel interface {
	io.ReaderAt
	io.WriterAt

	// Size returns the current length of the channel in bytes.
	Size() (int64, error)

	// Sync forces buffered writes to stable storage.
	Sync() error

	// Truncate changes the length of the channel. Memory-mapped windows use
	// it to grow the file when a brick range reaches beyond the current end.
	Truncate(size int64) error
}

// Fder is implemented by channels that expose an OS file descriptor.
// Memory-mapped windows require it; with a channel that lacks it every mapping
// attempt fails as an allocation error, bricks stay unmapped and all access
// goes through rows.
type Fder interface {
	Fd() uintptr
}

// FileChannel adapts an *os.File to the StoreChannel interface.
type FileChannel struct {
	*os.File
}

// NewFileChannel wraps f as a StoreChannel. The pool does not take ownership;
// closing the file after Pool.Close is the caller's responsibility.
func NewFileChannel(f *os.File) *FileChannel {
	return &FileChannel{File: f}
}

// Size returns the current file length.
func (c *FileChannel) Size() (int64, error) {
	fi, err := c.Stat()
	if err != nil {
		return 0, err
	}
	return fi.Size(), nil
}
