// Package heap implements the kernel small-object allocator: seven
// fixed block-size classes (16 B doubling to 1024 B) carved out of
// page-sized arenas, with large requests bypassing straight to the page
// allocator (spec.md §4.2).
//
// Grounded on biscuit's page-granularity allocation idiom in mem/mem.go
// and, for the free-list-threaded-through-block-memory technique, on the
// size-class allocator sketched in the Go runtime's own malloc.go (see
// other_examples' runtime-malloc.go): a span is carved into equal blocks
// of one size class and its free objects are linked via the first word
// of each otherwise-unused block, giving zero per-block overhead.
package heap

import (
	"sync"
	"unsafe"

	"gos/internal/mem"
)

// classSizes are the seven block sizes, 16 doubling to 1024 (spec.md
// §4.2).
var classSizes = [7]int{16, 32, 64, 128, 256, 512, 1024}

const arenaMask = ^uintptr(0xfff)

// arenaHeader_t sits at the start of every page this allocator owns,
// identifying how to reclaim it (spec.md's "Arena" glossary entry).
type arenaHeader_t struct {
	class    int  // index into classSizes, or -1 if large
	large    bool
	pages    int  // number of pages, only meaningful when large
	total    int  // total blocks carved from this arena (small only)
	freeCnt  int  // blocks currently on the free list (small only)
}

const headerSize = int(unsafe.Sizeof(arenaHeader_t{}))

// classState_t holds one size class's free list, threaded through block
// memory: each free block's first machine word is the virtual address of
// the next free block, or 0 for the list's end.
type classState_t struct {
	freeHead uintptr
}

// Heap_t is the allocator for one address space. It owns no frames of
// its own; every arena page is requested from and returned to the
// address space's page allocator, exactly as spec.md's heap sits above
// malloc_page/mfree_page.
type Heap_t struct {
	mu      sync.Mutex
	as      *mem.AddrSpace_t
	classes [7]classState_t
	// arenas maps an arena's base virtual address to its header, since
	// Go code cannot dereference a raw virtual address the way the
	// kernel does by masking a pointer — the page allocator's address
	// space owns no directly-addressable memory outside of frame
	// bytes. backing mirrors that: a class arena's content lives in
	// backing, the real bytes for its frame.
	arenas     map[uintptr]*arenaHeader_t
	backing    map[uintptr][]byte
	writeable  bool
}

// New creates a heap layered on the given address space.
func New(as *mem.AddrSpace_t) *Heap_t {
	return &Heap_t{
		as:      as,
		arenas:  make(map[uintptr]*arenaHeader_t),
		backing: make(map[uintptr][]byte),
	}
}

func classFor(size int) int {
	for i, c := range classSizes {
		if size <= c {
			return i
		}
	}
	return -1
}

// Malloc allocates size bytes and returns the virtual address of the
// payload (spec.md §4.2's request path). ok is false if the underlying
// page allocator is exhausted.
func (h *Heap_t) Malloc(size int) (uintptr, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if size > 1024 {
		return h.mallocLarge(size)
	}
	return h.mallocSmall(size)
}

func (h *Heap_t) mallocLarge(size int) (uintptr, bool) {
	npages := (size + headerSize + mem.PGSIZE - 1) / mem.PGSIZE
	va, ok := h.as.MallocPage(npages, true, h.as.Kind == mem.UserPool)
	if !ok {
		return 0, false
	}
	bs := make([]byte, npages*mem.PGSIZE)
	h.backing[va] = bs
	h.arenas[va] = &arenaHeader_t{class: -1, large: true, pages: npages}
	return va + uintptr(headerSize), true
}

func (h *Heap_t) mallocSmall(size int) (uintptr, bool) {
	cls := classFor(size)
	cs := &h.classes[cls]
	if cs.freeHead == 0 {
		if !h.refill(cls) {
			return 0, false
		}
	}
	block := cs.freeHead
	cs.freeHead = h.readNext(block)
	arenaBase := block & arenaMask
	h.arenas[arenaBase].freeCnt--
	return block, true
}

// refill carves a fresh arena page into equal blocks of class cls and
// threads them onto the class free list.
func (h *Heap_t) refill(cls int) bool {
	va, ok := h.as.MallocPage(1, true, h.as.Kind == mem.UserPool)
	if !ok {
		return false
	}
	bs := make([]byte, mem.PGSIZE)
	h.backing[va] = bs

	blkSize := classSizes[cls]
	nblocks := (mem.PGSIZE - headerSize) / blkSize
	h.arenas[va] = &arenaHeader_t{class: cls, total: nblocks, freeCnt: nblocks}

	cs := &h.classes[cls]
	for i := 0; i < nblocks; i++ {
		addr := va + uintptr(headerSize+i*blkSize)
		var next uintptr
		if i+1 < nblocks {
			next = va + uintptr(headerSize+(i+1)*blkSize)
		}
		h.writeNext(addr, next)
	}
	cs.freeHead = va + uintptr(headerSize)
	return true
}

// Free releases the block or large allocation at payload address va
// (spec.md §4.2's free path).
func (h *Heap_t) Free(va uintptr) {
	h.mu.Lock()
	defer h.mu.Unlock()

	// Try the large-allocation case first: its header sits exactly at
	// va - headerSize and was recorded as its own arena key.
	largeBase := va - uintptr(headerSize)
	if hdr, ok := h.arenas[largeBase]; ok && hdr.large {
		h.as.MfreePage(largeBase, hdr.pages)
		delete(h.arenas, largeBase)
		delete(h.backing, largeBase)
		return
	}

	arenaBase := va & arenaMask
	hdr, ok := h.arenas[arenaBase]
	if !ok {
		panic("heap: free of unknown block")
	}
	cs := &h.classes[hdr.class]
	h.writeNext(va, cs.freeHead)
	cs.freeHead = va
	hdr.freeCnt++

	if hdr.freeCnt == hdr.total {
		h.drainClass(hdr.class, arenaBase)
		h.as.MfreePage(arenaBase, 1)
		delete(h.arenas, arenaBase)
		delete(h.backing, arenaBase)
	}
}

// drainClass removes every block belonging to arenaBase from its
// class's free list before the arena's page is released.
func (h *Heap_t) drainClass(cls int, arenaBase uintptr) {
	cs := &h.classes[cls]
	var kept, tail uintptr
	cur := cs.freeHead
	for cur != 0 {
		next := h.readNext(cur)
		if cur&arenaMask != arenaBase {
			if tail == 0 {
				kept = cur
			} else {
				h.writeNext(tail, cur)
			}
			tail = cur
		}
		cur = next
	}
	if tail != 0 {
		h.writeNext(tail, 0)
	}
	cs.freeHead = kept
}

// Bytes returns the payload storage for a live allocation at va, sized
// to n bytes. Callers use this to read or write through a "pointer"
// returned by Malloc, since this package simulates memory as Go byte
// slices rather than real addressable host memory.
func (h *Heap_t) Bytes(va uintptr, n int) []byte {
	h.mu.Lock()
	defer h.mu.Unlock()
	base := va & arenaMask
	bs, ok := h.backing[base]
	if !ok {
		// Large allocations are keyed by their header's base, one
		// headerSize below the payload the caller holds.
		base = (va - uintptr(headerSize)) & arenaMask
		altBase := va - uintptr(headerSize)
		if b, ok2 := h.backing[altBase]; ok2 {
			bs = b
			base = altBase
		} else if !ok {
			panic("heap: bytes of unknown block")
		}
	}
	off := int(va - base)
	return bs[off : off+n]
}

func (h *Heap_t) readNext(va uintptr) uintptr {
	base := va & arenaMask
	off := int(va - base)
	bs := h.backing[base]
	return uintptr(mem.Pa_t(0)) | uintptr(readWord(bs[off:]))
}

func (h *Heap_t) writeNext(va uintptr, next uintptr) {
	base := va & arenaMask
	off := int(va - base)
	bs := h.backing[base]
	writeWord(bs[off:], uint64(next))
}

func readWord(b []byte) uint64 {
	var v uint64
	for i := 0; i < 8 && i < len(b); i++ {
		v |= uint64(b[i]) << (8 * i)
	}
	return v
}

func writeWord(b []byte, v uint64) {
	for i := 0; i < 8 && i < len(b); i++ {
		b[i] = byte(v >> (8 * i))
	}
}
