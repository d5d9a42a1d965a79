package mem

import "fmt"

// IA-32 paging constants: 1024 entries per directory/table, 4KiB pages,
// giving a 10/10/12 virtual address split.
const (
	PDSHIFT  uint = 22
	PTSHIFT  uint = 12
	PDXMASK  uintptr = 0x3ff
	PTXMASK  uintptr = 0x3ff
	Entries       = 1024
)

// pte_t is a page-table entry: present bit, writable bit, user bit, and
// the backing physical frame. Real IA-32 packs these into one 32-bit
// word (spec.md §4.1's PTE_P/PTE_W/PTE_U bits); here they are broken out
// as fields since nothing in this module ever needs the packed encoding.
type pte_t struct {
	present bool
	write   bool
	user    bool
	frame   Pa_t
}

// PageTable_t is a two-level page table: a directory of 1024 slots, each
// either empty or pointing at a 1024-entry page table. It models the
// IA-32 directory/table split without a "self-referencing page
// directory" recursive slot, because nothing in this module ever reads
// its own page-table pages via their own mapping — Go code already has
// direct access to pte_t (spec.md §9's replacement for the trick: walk
// the struct directly instead of mapping the page directory into itself
// to edit it through virtual addresses).
type PageTable_t struct {
	dir [Entries]*[Entries]pte_t
}

// NewPageTable returns an empty page table (spec.md §4.1 "page directory
// allocation").
func NewPageTable() *PageTable_t {
	return &PageTable_t{}
}

func split(v uintptr) (pdx, ptx int, off uintptr) {
	pdx = int((v >> PDSHIFT) & PDXMASK)
	ptx = int((v >> PTSHIFT) & PTXMASK)
	off = v & uintptr(PGOFFSET)
	return
}

// Add installs a mapping from virtual page v to physical frame p,
// auto-vivifying the inner page table on first use in that directory
// slot (spec.md §4.1 "page_table_add"). p must be page-aligned.
func (pt *PageTable_t) Add(v uintptr, p Pa_t, write, user bool) {
	if p&Pa_t(PGOFFSET) != 0 {
		panic("mem: unaligned physical frame in page table add")
	}
	pdx, ptx, _ := split(v)
	if pt.dir[pdx] == nil {
		pt.dir[pdx] = new([Entries]pte_t)
	}
	pt.dir[pdx][ptx] = pte_t{present: true, write: write, user: user, frame: p}
}

// Remove clears the mapping for virtual page v, if any.
func (pt *PageTable_t) Remove(v uintptr) {
	pdx, ptx, _ := split(v)
	if pt.dir[pdx] == nil {
		return
	}
	pt.dir[pdx][ptx] = pte_t{}
}

// Walk reports the PTE for v and whether it is present, without
// allocating an inner table if one is missing.
func (pt *PageTable_t) Walk(v uintptr) (entry pte_t, ok bool) {
	pdx, ptx, _ := split(v)
	if pt.dir[pdx] == nil {
		return pte_t{}, false
	}
	e := pt.dir[pdx][ptx]
	return e, e.present
}

// AddrV2p translates virtual address v to its physical address, per
// spec.md §4.1 "addr_v2p". ok is false if v is unmapped.
func (pt *PageTable_t) AddrV2p(v uintptr) (Pa_t, bool) {
	_, _, off := split(v)
	e, ok := pt.Walk(v)
	if !ok {
		return 0, false
	}
	return e.frame + Pa_t(off), true
}

// Writable reports whether v is present and mapped writable.
func (pt *PageTable_t) Writable(v uintptr) bool {
	e, ok := pt.Walk(v)
	return ok && e.write
}

// Invlpg models the IA-32 TLB-invalidation instruction. A hosted Go
// process has no hardware TLB of its own to flush; every lookup already
// walks the live table, so the single-address invalidation spec.md's
// page-table update sequence calls for after each Add/Remove is a no-op
// here. Kept as an explicit call site (rather than omitted entirely) so
// the call sequence in proc/fork and mem's mapping code matches the
// original ordering precisely.
func Invlpg(v uintptr) {}

func (e pte_t) String() string {
	if !e.present {
		return "<not present>"
	}
	return fmt.Sprintf("frame=%#x write=%v user=%v", e.frame, e.write, e.user)
}
