// Package mmap provides memory-mapped views of file regions.
//
// Unlike whole-file read-only mappings, the mappings here cover an arbitrary
// byte range of an open file, may be writable, and can be flushed back to the
// file with Sync. Offsets are aligned down to the OS mapping granularity
// internally; Bytes always returns exactly the requested region.
package mmap
