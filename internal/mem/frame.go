// Package mem implements physical/virtual memory management: the two
// physical frame pools (kernel, user), per-address-space virtual-address
// reservation bitmaps, manual two-level page-table construction modeling
// IA-32 paging, and the page-granularity allocator layered on top
// (spec.md §4.1).
//
// Grounded on biscuit's mem.Physmem_t (mem/mem.go: pool-mutex-guarded
// free lists, Refaddr/Dmap-style frame addressing) and mem/dmap.go's
// page-table-bit arithmetic (pgbits/mkpg/caddr, the VREC/VDIRECT
// recursive- and direct-map slot constants). Because a hosted Go process
// cannot program real IA-32 page tables or issue invlpg, physical frames
// are backed by golang.org/x/sys/unix anonymous mmap regions (so frame
// addresses are real mapped-memory addresses, matching biscuit's own
// preference for mmap-backed physical memory over a plain Go slice) and
// the page table is a two-level array-of-arrays mirroring the IA-32
// directory/table split (1024 PDEs x 1024 PTEs, 4KiB pages), with
// invlpg modeled as a no-op (spec.md §1 places raw interrupt
// stubs and hardware setup out of scope; the paging *structure* is in
// scope, the instruction that flushes a hardware TLB is not).
package mem

import (
	"fmt"
	"sync"

	"golang.org/x/sys/unix"

	"gos/internal/bitmap"
)

// Pa_t is a physical address.
type Pa_t uintptr

const (
	PGSHIFT uint  = 12
	PGSIZE  int   = 1 << PGSHIFT
	PGOFFSET Pa_t = 0xfff
	PGMASK   Pa_t = ^PGOFFSET
)

// PoolKind selects which frame pool (and, by extension, which per-process
// or kernel virtual-address bitmap and heap descriptor set) an allocation
// should draw from — spec.md §9's replacement for the "forbidden pattern"
// of swapping pgdir to force kernel-pool selection.
type PoolKind int

const (
	KernelPool PoolKind = iota
	UserPool
)

// FramePool_t is a contiguous physical region, a bitmap over its 4KiB
// frames, and the mutex serializing allocation (spec.md §3 "Frame pool").
// Invariant: a frame bit is 1 iff the frame is owned by a live mapping or
// a pending allocation.
type FramePool_t struct {
	mu     sync.Mutex
	bm     *bitmap.Bitmap_t
	region []byte
	base   Pa_t
	npages int
	oom    chan Oommsg_t
}

// NewFramePool mmaps an anonymous region of npages*PGSIZE bytes and
// returns a pool whose frames are addressed starting at the region's
// actual mapped address.
func NewFramePool(npages int) (*FramePool_t, error) {
	if npages <= 0 {
		panic("mem: non-positive pool size")
	}
	region, err := unix.Mmap(-1, 0, npages*PGSIZE,
		unix.PROT_READ|unix.PROT_WRITE,
		unix.MAP_ANON|unix.MAP_PRIVATE)
	if err != nil {
		return nil, fmt.Errorf("mem: mmap frame pool: %w", err)
	}
	base := Pa_t(uintptrOf(region))
	return &FramePool_t{
		bm:     bitmap.New(npages),
		region: region,
		base:   base,
		npages: npages,
		oom:    make(chan Oommsg_t, 1),
	}, nil
}

// Close releases the pool's backing mapping.
func (fp *FramePool_t) Close() error {
	return unix.Munmap(fp.region)
}

// Base returns the physical address of frame 0.
func (fp *FramePool_t) Base() Pa_t { return fp.base }

// Npages reports the pool's capacity in frames.
func (fp *FramePool_t) Npages() int { return fp.npages }

// Contains reports whether p falls within this pool's region.
func (fp *FramePool_t) Contains(p Pa_t) bool {
	return p >= fp.base && p < fp.base+Pa_t(fp.npages*PGSIZE)
}

// Palloc scans the pool bitmap for one zero bit, sets it, and returns the
// frame's physical address (spec.md §4.1).
func (fp *FramePool_t) Palloc() (Pa_t, bool) {
	fp.mu.Lock()
	defer fp.mu.Unlock()
	idx := fp.bm.ScanAndSet(1)
	if idx < 0 {
		fp.notifyOom(1)
		return 0, false
	}
	return fp.base + Pa_t(idx*PGSIZE), true
}

// Pfree clears the frame's bitmap bit, returning it to the free pool.
func (fp *FramePool_t) Pfree(p Pa_t) {
	fp.mu.Lock()
	defer fp.mu.Unlock()
	idx := fp.frameIndex(p)
	if !fp.bm.Test(idx) {
		panic("mem: double free of frame")
	}
	fp.bm.Clear(idx)
}

// FrameBytes returns the 4KiB backing slice for the frame at p.
func (fp *FramePool_t) FrameBytes(p Pa_t) []byte {
	idx := fp.frameIndex(p)
	off := idx * PGSIZE
	return fp.region[off : off+PGSIZE]
}

// Free reports the number of unallocated frames.
func (fp *FramePool_t) Free() int {
	fp.mu.Lock()
	defer fp.mu.Unlock()
	n := 0
	for i := 0; i < fp.npages; i++ {
		if !fp.bm.Test(i) {
			n++
		}
	}
	return n
}

func (fp *FramePool_t) frameIndex(p Pa_t) int {
	if !fp.Contains(p) {
		panic("mem: frame address outside pool")
	}
	return int((p - fp.base) / Pa_t(PGSIZE))
}
