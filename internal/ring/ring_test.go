package ring

import (
	"testing"

	"gos/internal/ksync"
)

func TestPushPopFIFO(t *testing.T) {
	sched := ksync.New()
	r := New(sched)
	self := &ksync.Tcb_t{}

	for _, b := range []byte("hi") {
		r.Push(self, b)
	}
	if got := r.Pop(self); got != 'h' {
		t.Fatalf("Pop = %q, want 'h'", got)
	}
	if got := r.Pop(self); got != 'i' {
		t.Fatalf("Pop = %q, want 'i'", got)
	}
}

func TestEmptyAndFullBoundaries(t *testing.T) {
	sched := ksync.New()
	r := New(sched)
	if !r.Empty() {
		t.Fatal("new ring should be empty")
	}
	self := &ksync.Tcb_t{}
	for i := 0; i < size-1; i++ {
		r.Push(self, byte(i))
	}
	if !r.Full() {
		t.Fatal("ring should be full after size-1 pushes (one slot always unused)")
	}
	if r.Empty() {
		t.Fatal("full ring should not report empty")
	}
}

func TestReadDrainsQueuedBytes(t *testing.T) {
	sched := ksync.New()
	r := New(sched)
	self := &ksync.Tcb_t{}
	for _, b := range []byte("abc") {
		r.Push(self, b)
	}
	buf := make([]byte, 10)
	n := r.Read(self, buf)
	if n != 3 || string(buf[:n]) != "abc" {
		t.Fatalf("Read = %d %q, want 3 %q", n, buf[:n], "abc")
	}
}
