package mem

// Kernel virtual address space layout. The kernel heap begins well above
// any plausible user image address so KernelPool and UserPool allocations
// can never collide in a shared page table during testing (spec.md §3).
const (
	KernelVaBase uintptr = 0xc0000000
	UserVaBase   uintptr = 0x08000000
)

// AddrSpace_t bundles a page table with the virtual-address bitmap that
// governs it, and records which physical pool backs its allocations
// (spec.md §4.1's pairing of "pgdir" with a pool selector, replacing the
// bug-prone pattern of swapping pgdir to pick a pool).
type AddrSpace_t struct {
	Kind  PoolKind
	PT    *PageTable_t
	Vaddr *VaddrBitmap_t
	pool  *FramePool_t
}

// NewAddrSpace creates an address space backed by pool, with VA
// reservations starting at base and covering npages pages.
func NewAddrSpace(kind PoolKind, pool *FramePool_t, base uintptr, npages int) *AddrSpace_t {
	return &AddrSpace_t{
		Kind:  kind,
		PT:    NewPageTable(),
		Vaddr: NewVaddrBitmap(base, npages),
		pool:  pool,
	}
}

// MallocPage reserves n fresh virtual pages, backs each with a newly
// allocated physical frame, and installs the mappings (spec.md §4.1
// "malloc_page"). It returns the starting virtual address. ok is false
// if either the VA bitmap or the frame pool is exhausted partway
// through; frames already allocated and mapped before the failing step
// are deliberately left in place — a known, documented leak carried
// over unchanged from spec.md §4.1, not one of the REDESIGN FLAGS
// fixes.
func (as *AddrSpace_t) MallocPage(n int, write, user bool) (uintptr, bool) {
	va, ok := as.Vaddr.Alloc(n)
	if !ok {
		return 0, false
	}
	for i := 0; i < n; i++ {
		pa, ok := as.pool.Palloc()
		if !ok {
			return 0, false
		}
		v := va + uintptr(i*PGSIZE)
		as.PT.Add(v, pa, write, user)
		Invlpg(v)
	}
	return va, true
}

// MfreePage releases n pages starting at virtual address va: unmaps
// each, frees its backing frame, and releases the VA reservation
// (spec.md §4.1 "mfree_page").
func (as *AddrSpace_t) MfreePage(va uintptr, n int) {
	for i := 0; i < n; i++ {
		v := va + uintptr(i*PGSIZE)
		e, ok := as.PT.Walk(v)
		if !ok {
			panic("mem: mfree of unmapped page")
		}
		as.pool.Pfree(e.frame)
		as.PT.Remove(v)
		Invlpg(v)
	}
	as.Vaddr.Free(va, n)
}

// GetAPage allocates one page at a specific, caller-chosen virtual
// address rather than letting the VA bitmap pick one — spec.md §4.1's
// "get_a_page", used to establish fixed mappings such as a process's
// first user page before the general-purpose allocator is consulted.
func (as *AddrSpace_t) GetAPage(va uintptr, write, user bool) bool {
	pa, ok := as.pool.Palloc()
	if !ok {
		return false
	}
	as.Vaddr.Reserve(va, 1)
	as.PT.Add(va, pa, write, user)
	Invlpg(va)
	return true
}

// GetOnePageWithoutOperateVaddrBitmap allocates and maps one physical
// frame at va without touching the VA bitmap at all (spec.md §4.1) — the
// case fork uses when copying the parent's already-reserved pages into
// the child's freshly cloned VA bitmap, so the reservation bit is
// already correct and must not be double-set.
func (as *AddrSpace_t) GetOnePageWithoutOperateVaddrBitmap(va uintptr, write, user bool) bool {
	pa, ok := as.pool.Palloc()
	if !ok {
		return false
	}
	as.PT.Add(va, pa, write, user)
	Invlpg(va)
	return true
}
