// Package ring implements the 64-byte keyboard IO ring (spec.md §4.7):
// a single-producer/single-consumer bounded buffer with exactly one
// sleep slot per side. Spec.md requires accessors to be "entered with
// interrupts disabled"; this simulation has no interrupts to mask, so
// the ring's own mutex stands in for that discipline the same way
// internal/ksync's scheduler mutex does for the run queue.
//
// Grounded on biscuit's circbuf.Circbuf_t (circbuf/circbuf.go): the
// same head/tail modular-arithmetic wraparound the keyboard ring
// specifies, generalized here from a page-backed arbitrary-size buffer
// down to a fixed 64-byte buffer with the "next(head) == tail ⇒ full"
// convention spec.md names instead of circbuf's head-minus-tail
// capacity test.
package ring

import "gos/internal/ksync"

const size = 64

// Ring_t is the fixed keyboard IO ring.
type Ring_t struct {
	mu       *ksync.RecursiveMutex_t
	notEmpty *ksync.Sema_t // signals a sleeping consumer
	notFull  *ksync.Sema_t // signals a sleeping producer

	buf        [size]byte
	head, tail int
	producer   *ksync.Tcb_t // the one task allowed to sleep on "full"
	consumer   *ksync.Tcb_t // the one task allowed to sleep on "empty"
}

// New creates an empty ring.
func New(sched *ksync.Scheduler_t) *Ring_t {
	return &Ring_t{
		mu:       ksync.NewRecursiveMutex(sched),
		notEmpty: ksync.NewSema(sched, 0),
		notFull:  ksync.NewSema(sched, 0),
	}
}

func next(i int) int { return (i + 1) % size }

// Full reports whether the ring cannot accept another byte (spec.md
// §4.7: "next(head) == tail").
func (r *Ring_t) Full() bool {
	return next(r.head) == r.tail
}

// Empty reports whether the ring holds no bytes (spec.md §4.7:
// "head == tail").
func (r *Ring_t) Empty() bool {
	return r.head == r.tail
}

// Push is the interrupt handler's side: it pushes one already-decoded
// byte, sleeping if the ring is full (spec.md §4.7).
func (r *Ring_t) Push(self *ksync.Tcb_t, b byte) {
	r.mu.Acquire(self)
	for r.Full() {
		if r.producer != nil && r.producer != self {
			panic("ring: a second producer tried to sleep")
		}
		r.producer = self
		r.mu.Release(self)
		r.notFull.Down(self)
		r.mu.Acquire(self)
		r.producer = nil
	}
	r.buf[r.head] = b
	r.head = next(r.head)
	r.mu.Release(self)
	r.notEmpty.Up()
}

// Pop is a reading task's side: it blocks until a byte is available
// and returns it (spec.md §4.7).
func (r *Ring_t) Pop(self *ksync.Tcb_t) byte {
	r.mu.Acquire(self)
	for r.Empty() {
		if r.consumer != nil && r.consumer != self {
			panic("ring: a second consumer tried to sleep")
		}
		r.consumer = self
		r.mu.Release(self)
		r.notEmpty.Down(self)
		r.mu.Acquire(self)
		r.consumer = nil
	}
	b := r.buf[r.tail]
	r.tail = next(r.tail)
	r.mu.Release(self)
	r.notFull.Up()
	return b
}

// Read drains up to len(p) available bytes without blocking past the
// first one; a TTY read(2) blocks for at least one byte, then returns
// whatever else is already queued.
func (r *Ring_t) Read(self *ksync.Tcb_t, p []byte) int {
	if len(p) == 0 {
		return 0
	}
	p[0] = r.Pop(self)
	n := 1
	for n < len(p) {
		r.mu.Acquire(self)
		empty := r.Empty()
		if empty {
			r.mu.Release(self)
			break
		}
		p[n] = r.buf[r.tail]
		r.tail = next(r.tail)
		r.mu.Release(self)
		r.notFull.Up()
		n++
	}
	return n
}
