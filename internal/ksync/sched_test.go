package ksync

import (
	"sync"
	"testing"
	"time"
)

func TestSpawnAllRunToCompletion(t *testing.T) {
	s := New()
	const n = 5
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		s.Spawn(3, func(self *Tcb_t) { wg.Done() })
	}
	done := make(chan struct{})
	go func() { wg.Wait(); close(done) }()

	// One kickoff is enough: each task's completion path calls Schedule
	// itself to hand off to the next queued task, chaining through all n
	// tasks without further driving.
	s.Schedule()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("not all spawned tasks ran")
	}
}

func TestSemaFIFOOrder(t *testing.T) {
	s := New()
	sema := NewSema(s, 0)
	order := make(chan int, 3)

	for i := 0; i < 3; i++ {
		i := i
		s.Spawn(1, func(self *Tcb_t) {
			sema.Down(self)
			order <- i
		})
	}

	// A single Schedule() kicks off task 0; each task parks on its own
	// resume channel as soon as it blocks in Down, and ThreadBlock's own
	// call to Schedule() hands off to the next queued task in turn, so
	// the three tasks enqueue onto the semaphore strictly one at a time
	// in spawn order — no further driving needed from the test.
	s.Schedule()
	waitForWaiters(t, sema, 3)
	for i := 0; i < 3; i++ {
		sema.Up()
		s.Schedule()
		if got := <-order; got != i {
			t.Fatalf("wakeup order = %d, want %d (strict FIFO)", got, i)
		}
	}
}

func waitForWaiters(t *testing.T, sema *Sema_t, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		sema.mu.Lock()
		cur := len(sema.wait)
		sema.mu.Unlock()
		if cur >= n {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("timed out waiting for %d semaphore waiters", n)
}

func TestRecursiveMutexReentrant(t *testing.T) {
	s := New()
	m := NewRecursiveMutex(s)
	self := &Tcb_t{Tid: 99, resume: make(chan struct{}, 1)}
	m.Acquire(self)
	m.Acquire(self)
	m.Release(self)
	m.Release(self)
	if m.holder != nil {
		t.Fatal("mutex should be fully released")
	}
}

func TestRecursiveMutexReleaseByNonHolderPanics(t *testing.T) {
	s := New()
	m := NewRecursiveMutex(s)
	a := &Tcb_t{Tid: 1, resume: make(chan struct{}, 1)}
	b := &Tcb_t{Tid: 2, resume: make(chan struct{}, 1)}
	m.Acquire(a)
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic releasing a mutex held by another task")
		}
	}()
	m.Release(b)
}
