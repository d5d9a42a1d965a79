package ksync

import "sync"

// Sema_t is a counting semaphore with strict FIFO wakeup order and no
// priority inheritance or cancellation (spec.md §4.3 "Semaphore").
type Sema_t struct {
	mu    sync.Mutex
	value int
	sched *Scheduler_t
	wait  []*Tcb_t
}

// NewSema creates a semaphore with the given initial value, parked on
// sched for blocking/waking.
func NewSema(sched *Scheduler_t, value int) *Sema_t {
	return &Sema_t{value: value, sched: sched}
}

// Down blocks self until the semaphore's value is nonzero, then
// decrements it.
func (s *Sema_t) Down(self *Tcb_t) {
	for {
		s.mu.Lock()
		if s.value > 0 {
			s.value--
			s.mu.Unlock()
			return
		}
		s.wait = append(s.wait, self)
		s.mu.Unlock()
		s.sched.ThreadBlock(self)
	}
}

// Up wakes the longest-waiting blocked task, if any, then increments
// the value.
func (s *Sema_t) Up() {
	s.mu.Lock()
	var woken *Tcb_t
	if len(s.wait) > 0 {
		woken = s.wait[0]
		s.wait = s.wait[1:]
	}
	s.value++
	s.mu.Unlock()
	if woken != nil {
		s.sched.ThreadUnblock(woken)
	}
}

// RecursiveMutex_t is a mutex a holder may reacquire without deadlocking
// itself, tracked via a repeat count over an inner semaphore (spec.md
// §4.3 "Recursive mutex").
type RecursiveMutex_t struct {
	mu     sync.Mutex
	inner  *Sema_t
	holder *Tcb_t
	repeat int
}

// NewRecursiveMutex creates an unheld recursive mutex.
func NewRecursiveMutex(sched *Scheduler_t) *RecursiveMutex_t {
	return &RecursiveMutex_t{inner: NewSema(sched, 1)}
}

// Acquire takes the mutex on behalf of self, recursing if self already
// holds it.
func (m *RecursiveMutex_t) Acquire(self *Tcb_t) {
	m.mu.Lock()
	if m.holder == self {
		m.repeat++
		m.mu.Unlock()
		return
	}
	m.mu.Unlock()

	m.inner.Down(self)

	m.mu.Lock()
	m.holder = self
	m.repeat = 1
	m.mu.Unlock()
}

// Release gives up one level of recursion, fully releasing the mutex
// once the repeat count reaches zero. Release by a non-holder is a
// programmer error and panics.
func (m *RecursiveMutex_t) Release(self *Tcb_t) {
	m.mu.Lock()
	if m.holder != self {
		m.mu.Unlock()
		panic("ksync: release of recursive mutex by non-holder")
	}
	if m.repeat > 1 {
		m.repeat--
		m.mu.Unlock()
		return
	}
	m.holder = nil
	m.repeat = 0
	m.mu.Unlock()
	m.inner.Up()
}
