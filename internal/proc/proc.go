// Package proc implements process creation and fork (spec.md §4.4).
// Processes differ from bare kernel threads only by owning a non-nil
// address space and a distinct VA bitmap; everything else (scheduling,
// accounting) is inherited from ksync.Tcb_t.
//
// Grounded on biscuit's fd.Fd_t/fd.Cwd_t (fd/fd.go: the per-process open
// file table and working-directory shape) and tinfo.Tnote_t for the
// general "per-task bookkeeping struct" pattern. Table_t additionally
// enforces a system-wide process-count ceiling via internal/limits,
// adapted from biscuit's own limits.Syslimit_t.Sysprocs budget.
package proc

import (
	"sync"

	"gos/internal/defs"
	"gos/internal/heap"
	"gos/internal/ksync"
	"gos/internal/limits"
	"gos/internal/mem"
)

// Pid_t identifies a process.
type Pid_t int

// OpenFile_i is the operations a process's file descriptor table entry
// forwards to (implemented by internal/fs inode handles). Read and
// Write take the calling task's Tcb_t because the underlying disk I/O
// blocks on the IDE channel's completion semaphore, which needs to know
// which task to park.
type OpenFile_i interface {
	Read(self *ksync.Tcb_t, buf []byte, off int) (int, defs.Err_t)
	Write(self *ksync.Tcb_t, buf []byte, off int) (int, defs.Err_t)
	Close(self *ksync.Tcb_t) defs.Err_t
	IncRef()
}

// Fd_t is one open file descriptor slot (spec.md §4.8; grounded on
// biscuit's fd.Fd_t).
type Fd_t struct {
	File  OpenFile_i
	Perms int
}

// Cwd_t tracks a process's working directory (grounded on biscuit's
// fd.Cwd_t).
type Cwd_t struct {
	mu   sync.Mutex
	Path string
}

func (c *Cwd_t) Get() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.Path
}

func (c *Cwd_t) Set(p string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Path = p
}

// Proc_t is a process: a task control block plus the state a kernel
// thread lacks (spec.md §4.4).
type Proc_t struct {
	Pid    Pid_t
	Tcb    *ksync.Tcb_t
	As     *mem.AddrSpace_t
	Heap   *heap.Heap_t
	Cwd    *Cwd_t
	mu     sync.Mutex
	Fds    [defs.NFdPerProc]*Fd_t
	Parent *Proc_t
}

// Table_t is the global process table, indexed by pid (stands in for
// spec.md's proc_t array / sibling list).
type Table_t struct {
	mu      sync.Mutex
	procs   map[Pid_t]*Proc_t
	nextpid Pid_t
	limit   *limits.Syslimit_t
}

func NewTable() *Table_t {
	return &Table_t{procs: make(map[Pid_t]*Proc_t), limit: limits.Default()}
}

func (t *Table_t) allocPid() Pid_t {
	t.nextpid++
	return t.nextpid
}

// Create allocates a new process's TCB, address space, and run state and
// enqueues it on sched (spec.md §4.4, "Process creation"). The process
// starts at priority quantum prio; entry is run as the process's initial
// task body, matching spec.md's start_process/interrupt-return framing
// minus real interrupt-frame construction (out of scope — this is a
// hosted simulation, not a bare-metal trampoline). Create fails with
// EAGAIN once the system-wide process budget (internal/limits) is
// exhausted.
func (t *Table_t) Create(sched *ksync.Scheduler_t, pool *mem.FramePool_t, prio int, entry func(self *ksync.Tcb_t, p *Proc_t)) (*Proc_t, error) {
	if !t.limit.Sysprocs.Take() {
		return nil, defs.EAGAIN
	}
	t.mu.Lock()
	pid := t.allocPid()
	t.mu.Unlock()

	as := mem.NewAddrSpace(mem.UserPool, pool, mem.UserVaBase, 256)
	p := &Proc_t{
		Pid:  pid,
		As:   as,
		Heap: heap.New(as),
		Cwd:  &Cwd_t{Path: "/"},
	}
	_, tcb := sched.Spawn(prio, func(self *ksync.Tcb_t) { entry(self, p) })
	p.Tcb = tcb

	t.mu.Lock()
	t.procs[pid] = p
	t.mu.Unlock()
	return p, nil
}

// Get looks up a process by pid.
func (t *Table_t) Get(pid Pid_t) (*Proc_t, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	p, ok := t.procs[pid]
	return p, ok
}

// Remove deletes a process from the table (on exit), returning its
// process-count budget to the table's limit.
func (t *Table_t) Remove(pid Pid_t) {
	t.mu.Lock()
	_, existed := t.procs[pid]
	delete(t.procs, pid)
	t.mu.Unlock()
	if existed {
		t.limit.Sysprocs.Give()
	}
}

// All returns a snapshot of every live process, for ps.
func (t *Table_t) All() []*Proc_t {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]*Proc_t, 0, len(t.procs))
	for _, p := range t.procs {
		out = append(out, p)
	}
	return out
}

// Fork implements spec.md §4.4's six-step fork algorithm:
//  1. allocate the child's process/TCB state, assign a new pid;
//  2. clone the parent's VA bitmap;
//  3. create a fresh child address space (page table + pool);
//  4. for every page reserved in the parent, copy through a kernel
//     bounce buffer into the same virtual address in the child;
//  5. (in this hosted model, the child task's entry closure itself
//     plays the role of "return 0 from the syscall", since there is no
//     real saved register frame to patch);
//  6. bump the refcount on every inode referenced by the parent's open
//     file table.
//
// Fork is not copy-on-write: every reserved page is copied eagerly.
// Fork fails with EAGAIN once the system-wide process budget
// (internal/limits) is exhausted, the same ceiling Create enforces.
func (t *Table_t) Fork(sched *ksync.Scheduler_t, pool *mem.FramePool_t, parent *Proc_t, prio int) (*Proc_t, error) {
	if !t.limit.Sysprocs.Take() {
		return nil, defs.EAGAIN
	}
	t.mu.Lock()
	pid := t.allocPid()
	t.mu.Unlock()

	childVaddr := parent.As.Vaddr.Clone()
	childAs := mem.NewAddrSpace(mem.UserPool, pool, parent.As.Vaddr.Base(), 256)
	childAs.Vaddr = childVaddr

	bounce := make([]byte, mem.PGSIZE)
	for va := parent.As.Vaddr.Base(); va < parent.As.Vaddr.Base()+uintptr(256*mem.PGSIZE); va += uintptr(mem.PGSIZE) {
		pa, ok := parent.As.PT.AddrV2p(va)
		if !ok {
			continue
		}
		copy(bounce, parentFrameBytes(pool, pa))
		if !childAs.GetOnePageWithoutOperateVaddrBitmap(va, parent.As.PT.Writable(va), true) {
			panic("proc: fork out of physical memory")
		}
		cpa, _ := childAs.PT.AddrV2p(va)
		copy(parentFrameBytes(pool, cpa), bounce)
	}

	child := &Proc_t{
		Pid:    pid,
		As:     childAs,
		Heap:   heap.New(childAs),
		Cwd:    &Cwd_t{Path: parent.Cwd.Get()},
		Parent: parent,
	}
	for i, f := range parent.Fds {
		if f != nil {
			f.File.IncRef()
			child.Fds[i] = &Fd_t{File: f.File, Perms: f.Perms}
		}
	}

	_, tcb := sched.Spawn(prio, func(self *ksync.Tcb_t) {
		// The child's "syscall return value" is 0 per spec.md §4.4
		// step 5; callers of Fork observe this by checking which
		// Proc_t they hold, since there is no shared register frame
		// to patch in a hosted simulation.
	})
	child.Tcb = tcb

	t.mu.Lock()
	t.procs[pid] = child
	t.mu.Unlock()
	return child, nil
}

func parentFrameBytes(pool *mem.FramePool_t, pa mem.Pa_t) []byte {
	return pool.FrameBytes(pa)
}
