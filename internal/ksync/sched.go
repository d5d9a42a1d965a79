// Package ksync implements the scheduler, task control blocks, and the
// synchronization primitives layered on top of it: counting semaphores
// and recursive mutexes (spec.md §4.3). Named ksync, not sync, so it
// sits alongside the standard library's sync package without shadowing
// it in import lists.
//
// Single-CPU, preemptive, priority-as-quantum: every task is issued
// Priority ticks; Tick() decrements the running task's remaining ticks
// and calls Schedule() at zero. A goroutine stands in for a kernel
// thread's execution context (Go already multiplexes goroutines the way
// a kernel multiplexes threads); Schedule() parks the previous task's
// goroutine on a channel and unparks the next one, which is the
// closest a hosted process can come to switch_to's register-context
// swap without real assembly.
//
// Grounded on biscuit's tinfo.Tnote_t/Threadinfo_t (thread bookkeeping
// shape, sans the forked-runtime Gptr/Setgptr mechanism, which has no
// counterpart in a hosted Go process) and accnt.Accnt_t (per-task
// accounting fields and Fetch/rusage encoding, reused here for ps).
package ksync

import (
	"sync"
	"time"

	"gos/internal/list"
)

// Tid_t identifies a task.
type Tid_t int

// State_t is a task's scheduling state.
type State_t int

const (
	StRunnable State_t = iota
	StRunning
	StBlocked
	StDead
)

// Accnt_t accumulates per-task accounting, mirroring biscuit's
// accnt.Accnt_t fields and nanosecond-resolution bookkeeping.
type Accnt_t struct {
	mu     sync.Mutex
	Userns int64
	Sysns  int64
}

func (a *Accnt_t) Systadd(delta time.Duration) {
	a.mu.Lock()
	a.Sysns += int64(delta)
	a.mu.Unlock()
}

func (a *Accnt_t) Utadd(delta time.Duration) {
	a.mu.Lock()
	a.Userns += int64(delta)
	a.mu.Unlock()
}

// Fetch returns a consistent snapshot (user ns, sys ns).
func (a *Accnt_t) Fetch() (int64, int64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.Userns, a.Sysns
}

// Tcb_t is a task control block: one kernel thread or process, carrying
// the priority-as-quantum scheduling fields spec.md §4.3 describes.
type Tcb_t struct {
	Tid      Tid_t
	Priority int
	ticksLeft int
	state    State_t
	Accnt    Accnt_t
	resume   chan struct{}
	runq     *list.Handle[*Tcb_t]
	idle     bool
}

func newTCB(tid Tid_t, priority int, idle bool) *Tcb_t {
	return &Tcb_t{
		Tid:      tid,
		Priority: priority,
		ticksLeft: priority,
		state:    StRunnable,
		resume:   make(chan struct{}),
		idle:     idle,
	}
}

// Scheduler_t is the single run queue plus the idle task, guarded by a
// mutex that stands in for spec.md's "interrupts disabled" discipline —
// a hosted process has no interrupt flag to clear, so every public
// entry point here takes the same lock real code would mask interrupts
// for (spec.md §4.3 "Interrupt discipline").
type Scheduler_t struct {
	mu      sync.Mutex
	runq    *list.List_t[*Tcb_t]
	all     map[Tid_t]*Tcb_t
	nexttid Tid_t
	idle    *Tcb_t
	cur     *Tcb_t
	started bool
}

// New creates a scheduler and its idle task (spec.md §4.3 "Idle task").
func New() *Scheduler_t {
	s := &Scheduler_t{
		runq: list.New[*Tcb_t](),
		all:  make(map[Tid_t]*Tcb_t),
	}
	s.idle = newTCB(s.allocTid(), 0, true)
	s.all[s.idle.Tid] = s.idle
	go s.idleLoop()
	return s
}

func (s *Scheduler_t) allocTid() Tid_t {
	s.nexttid++
	return s.nexttid
}

// Spawn creates a new runnable task with the given priority (quantum in
// ticks) and starts fn running on it; fn receives the task's own Tcb_t,
// which it must pass to ThreadBlock/ThreadYield/Sema_t.Down/etc. for any
// blocking operation it performs. Spawn returns the new task's Tid and
// the Tcb_t itself, so the caller can also refer to it before fn starts
// (e.g. to hand it to another task for waking).
func (s *Scheduler_t) Spawn(priority int, fn func(self *Tcb_t)) (Tid_t, *Tcb_t) {
	s.mu.Lock()
	t := newTCB(s.allocTid(), priority, false)
	s.all[t.Tid] = t
	t.runq = s.runq.PushBack(t)
	s.mu.Unlock()

	go func() {
		<-t.resume
		fn(t)
		s.mu.Lock()
		t.state = StDead
		delete(s.all, t.Tid)
		s.mu.Unlock()
		s.Schedule()
	}()
	return t.Tid, t
}

// Tick is invoked by the 100Hz timer; it decrements the current task's
// remaining ticks and schedules when they're exhausted (spec.md §4.3).
func (s *Scheduler_t) Tick() {
	s.mu.Lock()
	cur := s.cur
	if cur == nil || cur.idle {
		s.mu.Unlock()
		return
	}
	cur.ticksLeft--
	expired := cur.ticksLeft <= 0
	s.mu.Unlock()
	if expired {
		s.Schedule()
	}
}

// Schedule requires no caller-held lock (ksync takes the role interrupt
// masking plays in spec.md): it requeues the current task if still
// runnable, unblocks idle if the run queue is empty, pops the head of
// the run queue, and resumes it (spec.md §4.3).
func (s *Scheduler_t) Schedule() {
	s.mu.Lock()
	prev := s.cur
	if prev != nil && prev.state == StRunning {
		prev.state = StRunnable
		prev.ticksLeft = prev.Priority
		prev.runq = s.runq.PushBack(prev)
	}
	if s.runq.Empty() {
		s.unblockIdle()
	}
	next, ok := s.runq.PopFront()
	if !ok {
		panic("ksync: schedule found no runnable task")
	}
	next.runq = nil
	next.state = StRunning
	s.cur = next
	s.mu.Unlock()

	next.resume <- struct{}{}
}

func (s *Scheduler_t) unblockIdle() {
	if s.idle.state == StBlocked {
		s.idle.state = StRunnable
		s.idle.runq = s.runq.PushBack(s.idle)
	}
}

func (s *Scheduler_t) idleLoop() {
	for {
		s.mu.Lock()
		s.idle.state = StBlocked
		s.mu.Unlock()
		<-s.idle.resume
		// sti; hlt: nothing to execute until unblocked again.
	}
}

// Current returns the currently running task, or nil before the
// scheduler has dispatched anything.
func (s *Scheduler_t) Current() *Tcb_t {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cur
}

// ThreadBlock removes t from the run queue and marks it blocked; the
// caller is responsible for waking it later via ThreadUnblock (spec.md
// §4.3 "thread_block").
func (s *Scheduler_t) ThreadBlock(t *Tcb_t) {
	s.mu.Lock()
	t.state = StBlocked
	if t.runq != nil {
		s.runq.Remove(t.runq)
		t.runq = nil
	}
	s.mu.Unlock()
	s.Schedule()
	<-t.resume
}

// ThreadUnblock moves a blocked task back onto the run queue (spec.md
// §4.3 "thread_unblock").
func (s *Scheduler_t) ThreadUnblock(t *Tcb_t) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t.state != StBlocked {
		return
	}
	t.state = StRunnable
	t.runq = s.runq.PushBack(t)
}

// ThreadYield cooperatively gives up the remainder of the current
// task's quantum (spec.md §4.3 "thread_yield").
func (s *Scheduler_t) ThreadYield() {
	s.mu.Lock()
	if s.cur != nil {
		s.cur.ticksLeft = 0
	}
	s.mu.Unlock()
	s.Schedule()
}

// Tasks returns a snapshot of all live task ids and priorities, for ps.
func (s *Scheduler_t) Tasks() []*Tcb_t {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*Tcb_t, 0, len(s.all))
	for _, t := range s.all {
		if t != s.idle {
			out = append(out, t)
		}
	}
	return out
}
