// Package limits implements system-wide resource budgets: atomically
// adjusted counters that fail a Take instead of blocking once
// exhausted (spec.md doesn't name a resource-limiting module directly,
// but §4.4's process table and §4.8's per-process fd table are both
// finite system resources a real kernel caps).
//
// Grounded on biscuit's limits.Sysatomic_t (limits/limits.go): an
// int64 decremented via sync/atomic, restored on release if the taker
// gives it back, with Taken/Given as the generic N-unit operations and
// Take/Give as their single-unit shorthand. Reimplemented over a named
// struct field instead of an unsafe.Pointer cast of the receiver
// itself, since the original's `_aptr` trick exists only to give
// sync/atomic a *int64 without adding a separate field — a plain named
// field serves the same purpose without unsafe.
package limits

import "sync/atomic"

// Sysatomic_t is an atomically adjusted resource budget.
type Sysatomic_t struct {
	v int64
}

// NewSysatomic creates a budget starting at n units.
func NewSysatomic(n int64) *Sysatomic_t {
	return &Sysatomic_t{v: n}
}

// Taken tries to decrement the budget by n, reporting whether there
// was enough left; on failure the budget is left unchanged.
func (s *Sysatomic_t) Taken(n uint) bool {
	if atomic.AddInt64(&s.v, -int64(n)) >= 0 {
		return true
	}
	atomic.AddInt64(&s.v, int64(n))
	return false
}

// Given returns n units to the budget.
func (s *Sysatomic_t) Given(n uint) {
	atomic.AddInt64(&s.v, int64(n))
}

// Take is Taken(1).
func (s *Sysatomic_t) Take() bool { return s.Taken(1) }

// Give is Given(1).
func (s *Sysatomic_t) Give() { s.Given(1) }

// Syslimit_t bundles the system-wide resource ceilings this kernel
// enforces. Biscuit's own Syslimit_t additionally tracks vnodes,
// futexes, routes, and socket/TCP-segment budgets that have no
// counterpart in this kernel's scope; Sysprocs is the one this kernel
// actually gates process creation on (spec.md §4.4).
type Syslimit_t struct {
	Sysprocs *Sysatomic_t
}

// Default mirrors biscuit's MkSysLimit default of 1e4 concurrent
// processes.
func Default() *Syslimit_t {
	return &Syslimit_t{Sysprocs: NewSysatomic(1e4)}
}
