package mem

import (
	"sync"

	"gos/internal/bitmap"
)

// VaddrBitmap_t reserves virtual address space one page at a time. One
// instance covers the kernel heap region; each process owns its own
// instance covering its user image (spec.md §3 "Virtual-address
// reservation"). A reserved bit does NOT imply a mapped page — page-table
// entries are created lazily by PageTable_t.Add (spec.md §4.1).
type VaddrBitmap_t struct {
	mu   sync.Mutex
	bm   *bitmap.Bitmap_t
	base uintptr
}

// NewVaddrBitmap creates a VA bitmap covering npages pages starting at
// base.
func NewVaddrBitmap(base uintptr, npages int) *VaddrBitmap_t {
	return &VaddrBitmap_t{bm: bitmap.New(npages), base: base}
}

// Base returns the lowest virtual address this bitmap can reserve.
func (v *VaddrBitmap_t) Base() uintptr { return v.base }

// Clone copies another VA bitmap's reserved bits verbatim — used by fork,
// which must duplicate the parent's VA bitmap before establishing any of
// the child's mappings (spec.md §4.4 step 2).
func (v *VaddrBitmap_t) Clone() *VaddrBitmap_t {
	v.mu.Lock()
	defer v.mu.Unlock()
	nb := bitmap.New(v.bm.Len())
	copy(nb.Bytes(), v.bm.Bytes())
	return &VaddrBitmap_t{bm: nb, base: v.base}
}

// Alloc reserves n contiguous pages and returns the starting virtual
// address, or ok=false if no run of n free pages exists.
func (v *VaddrBitmap_t) Alloc(n int) (uintptr, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	idx := v.bm.ScanAndSet(n)
	if idx < 0 {
		return 0, false
	}
	return v.base + uintptr(idx*PGSIZE), true
}

// Free releases n pages starting at virtual address va.
func (v *VaddrBitmap_t) Free(va uintptr, n int) {
	v.mu.Lock()
	defer v.mu.Unlock()
	idx := int((va - v.base) / uintptr(PGSIZE))
	v.bm.ClearRange(idx, n)
}

// Reserve marks n pages starting at va as in-use without having gone
// through Alloc's scan — used to bind a specific address (get_a_page,
// spec.md §4.1) rather than letting the allocator pick one.
func (v *VaddrBitmap_t) Reserve(va uintptr, n int) {
	v.mu.Lock()
	defer v.mu.Unlock()
	idx := int((va - v.base) / uintptr(PGSIZE))
	v.bm.SetRange(idx, n)
}
