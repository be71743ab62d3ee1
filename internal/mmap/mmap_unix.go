//go:build unix || linux || darwin || freebsd || openbsd || netbsd

package mmap

import (
	"golang.org/x/sys/unix"
)

func osMap(fd uintptr, offset int64, length int, writable bool) (data, full []byte, err error) {
	prot := unix.PROT_READ
	if writable {
		prot |= unix.PROT_WRITE
	}

	// mmap requires a page-aligned offset; map from the containing page and
	// expose only the requested region.
	align := offset % int64(unix.Getpagesize())

	full, err = unix.Mmap(int(fd), offset-align, length+int(align), prot, unix.MAP_SHARED)
	if err != nil {
		return nil, nil, err
	}

	return full[align : align+int64(length)], full, nil
}

func osUnmap(full []byte) error {
	if full == nil {
		return nil
	}
	return unix.Munmap(full)
}

func osSync(full []byte) error {
	return unix.Msync(full, unix.MS_SYNC)
}

func osAdvise(data []byte, pattern AccessPattern) error {
	if len(data) == 0 {
		return nil
	}

	var advice int
	switch pattern {
	case AccessSequential:
		advice = unix.MADV_SEQUENTIAL
	case AccessRandom:
		advice = unix.MADV_RANDOM
	case AccessWillNeed:
		advice = unix.MADV_WILLNEED
	case AccessDontNeed:
		advice = unix.MADV_DONTNEED
	default:
		advice = unix.MADV_NORMAL
	}

	// On Linux, madvise requires page-aligned addresses.
	// If the slice isn't page-aligned, we silently succeed since
	// the hint is advisory and non-critical.
	err := unix.Madvise(data, advice)
	if err == unix.EINVAL {
		return nil
	}
	return err
}
