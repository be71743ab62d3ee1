//go:build windows

package mmap

import (
	"unsafe"

	"golang.org/x/sys/windows"
)

// Windows maps views at 64KB allocation granularity.
const allocationGranularity = 64 * 1024

func osMap(fd uintptr, offset int64, length int, writable bool) (data, full []byte, err error) {
	protect := uint32(windows.PAGE_READONLY)
	access := uint32(windows.FILE_MAP_READ)
	if writable {
		protect = windows.PAGE_READWRITE
		access = windows.FILE_MAP_WRITE
	}

	// MapViewOfFile requires the offset to be aligned to the allocation
	// granularity; map from the containing boundary and expose only the
	// requested region.
	align := offset % allocationGranularity
	mapOff := offset - align
	mapLen := int64(length) + align

	end := uint64(mapOff) + uint64(mapLen)
	h, err := windows.CreateFileMapping(windows.Handle(fd), nil, protect,
		uint32(end>>32), uint32(end&0xffffffff), nil)
	if err != nil {
		return nil, nil, err
	}
	// The view holds a reference; the handle can be closed immediately.
	defer windows.CloseHandle(h)

	addr, err := windows.MapViewOfFile(h, access,
		uint32(uint64(mapOff)>>32), uint32(uint64(mapOff)&0xffffffff), uintptr(mapLen))
	if err != nil {
		return nil, nil, err
	}

	full = unsafe.Slice((*byte)(unsafe.Pointer(addr)), mapLen)
	return full[align : align+int64(length)], full, nil
}

func osUnmap(full []byte) error {
	if len(full) == 0 {
		return nil
	}
	return windows.UnmapViewOfFile(uintptr(unsafe.Pointer(&full[0])))
}

func osSync(full []byte) error {
	if len(full) == 0 {
		return nil
	}
	return windows.FlushViewOfFile(uintptr(unsafe.Pointer(&full[0])), uintptr(len(full)))
}

func osAdvise(data []byte, pattern AccessPattern) error {
	// Windows does not have a direct equivalent to madvise.
	_ = data
	_ = pattern
	return nil
}
