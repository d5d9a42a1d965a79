package mem

import "testing"

func newTestSpace(t *testing.T, npages int) *AddrSpace_t {
	t.Helper()
	pool, err := NewFramePool(npages)
	if err != nil {
		t.Fatalf("NewFramePool: %v", err)
	}
	t.Cleanup(func() { pool.Close() })
	return NewAddrSpace(KernelPool, pool, KernelVaBase, npages)
}

func TestAddrV2pRoundTrip(t *testing.T) {
	as := newTestSpace(t, 8)
	va, ok := as.MallocPage(3, true, false)
	if !ok {
		t.Fatal("MallocPage failed")
	}
	for o := 0; o < 3*PGSIZE; o += 511 {
		pa, ok := as.PT.AddrV2p(va + uintptr(o))
		if !ok {
			t.Fatalf("AddrV2p unmapped at offset %d", o)
		}
		if !as.pool.Contains(pa) {
			t.Fatalf("AddrV2p(%d) = %#x not in pool", o, pa)
		}
	}
}

func TestMfreePageReleasesFrames(t *testing.T) {
	as := newTestSpace(t, 4)
	before := as.pool.Free()
	va, ok := as.MallocPage(2, true, false)
	if !ok {
		t.Fatal("MallocPage failed")
	}
	if as.pool.Free() != before-2 {
		t.Fatalf("Free() = %d, want %d", as.pool.Free(), before-2)
	}
	as.MfreePage(va, 2)
	if as.pool.Free() != before {
		t.Fatalf("Free() after MfreePage = %d, want %d", as.pool.Free(), before)
	}
	if _, ok := as.PT.Walk(va); ok {
		t.Fatal("page table entry should be cleared after MfreePage")
	}
}

func TestMallocPageExhaustion(t *testing.T) {
	as := newTestSpace(t, 2)
	if _, ok := as.MallocPage(3, true, false); ok {
		t.Fatal("MallocPage should fail when request exceeds pool size")
	}
}

func TestPallocDoubleFreePanics(t *testing.T) {
	pool, err := NewFramePool(1)
	if err != nil {
		t.Fatalf("NewFramePool: %v", err)
	}
	defer pool.Close()
	pa, ok := pool.Palloc()
	if !ok {
		t.Fatal("Palloc failed")
	}
	pool.Pfree(pa)
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic on double free")
		}
	}()
	pool.Pfree(pa)
}

func TestPallocNotifiesOomOnExhaustion(t *testing.T) {
	pool, err := NewFramePool(1)
	if err != nil {
		t.Fatalf("NewFramePool: %v", err)
	}
	defer pool.Close()

	if _, ok := pool.Palloc(); !ok {
		t.Fatal("first Palloc should succeed")
	}
	if _, ok := pool.Palloc(); ok {
		t.Fatal("second Palloc should fail, pool has one frame")
	}

	select {
	case msg := <-pool.OomCh():
		if msg.Need != 1 {
			t.Fatalf("Need = %d, want 1", msg.Need)
		}
	default:
		t.Fatal("exhausted Palloc should have notified OomCh")
	}
}

func TestVaddrBitmapCloneIsIndependent(t *testing.T) {
	v := NewVaddrBitmap(UserVaBase, 4)
	va, ok := v.Alloc(1)
	if !ok {
		t.Fatal("Alloc failed")
	}
	clone := v.Clone()
	clone.Free(va, 1)
	if va2, ok := v.Alloc(1); ok && va2 == va {
		t.Fatal("original bitmap should still consider the page reserved")
	}
}
