package mem

import "unsafe"

// uintptrOf returns the address of a byte slice's backing array. Used only
// to derive a stable physical-address space from an mmap'd region; the
// slice itself remains the actual storage accessed via FrameBytes.
func uintptrOf(b []byte) uintptr {
	if len(b) == 0 {
		return 0
	}
	return uintptr(unsafe.Pointer(&b[0]))
}
