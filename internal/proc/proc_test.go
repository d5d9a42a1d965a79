package proc

import (
	"testing"

	"gos/internal/ksync"
	"gos/internal/mem"
)

func newPool(t *testing.T, npages int) *mem.FramePool_t {
	t.Helper()
	pool, err := mem.NewFramePool(npages)
	if err != nil {
		t.Fatalf("NewFramePool: %v", err)
	}
	t.Cleanup(func() { pool.Close() })
	return pool
}

func TestCreateAssignsDistinctPids(t *testing.T) {
	sched := ksync.New()
	pool := newPool(t, 64)
	procs := NewTable()

	a, err := procs.Create(sched, pool, 3, func(self *ksync.Tcb_t, p *Proc_t) {})
	if err != nil {
		t.Fatalf("Create a: %v", err)
	}
	b, err := procs.Create(sched, pool, 3, func(self *ksync.Tcb_t, p *Proc_t) {})
	if err != nil {
		t.Fatalf("Create b: %v", err)
	}
	if a.Pid == b.Pid {
		t.Fatalf("Create assigned duplicate pid %d", a.Pid)
	}
	if _, ok := procs.Get(a.Pid); !ok {
		t.Fatal("Get could not find created process")
	}
}

func TestRemoveReturnsProcessBudget(t *testing.T) {
	sched := ksync.New()
	pool := newPool(t, 64)
	procs := NewTable()
	// Drain the process budget to zero, then return exactly one slot,
	// so Create's failure path and Remove's give-back are both
	// exercised without spinning up thousands of real processes.
	for procs.limit.Sysprocs.Take() {
	}
	procs.limit.Sysprocs.Give()

	a, err := procs.Create(sched, pool, 3, func(self *ksync.Tcb_t, p *Proc_t) {})
	if err != nil {
		t.Fatalf("Create within budget: %v", err)
	}
	if _, err := procs.Create(sched, pool, 3, func(self *ksync.Tcb_t, p *Proc_t) {}); err == nil {
		t.Fatal("Create should have failed once the process budget was exhausted")
	}

	procs.Remove(a.Pid)
	if _, err := procs.Create(sched, pool, 3, func(self *ksync.Tcb_t, p *Proc_t) {}); err != nil {
		t.Fatalf("Create after Remove should succeed, got: %v", err)
	}
}
