// Package paniclog implements the Fatal error-handling policy (spec.md
// §7: "disable interrupts, print the file/line/function/condition,
// halt forever") for failed asserts, busy_wait/cmd_out timeouts, and
// other conditions the kernel cannot recover from.
//
// Supplementing spec.md: the dump additionally prints the Go call
// stack (internal/caller) and disassembles the last
// few instruction-byte snippets recorded for the faulting task, so a
// Fatal crash report reads like a real ud2/GPF dump with an
// instruction trace rather than a bare message. A hosted Go
// simulation has no real IA-32 instruction stream to sample, so
// callers feed Ring_t whatever bytes stand in for "the code that was
// running" (e.g. a disk driver command byte sequence, or a syscall's
// raw opcode-shaped argument encoding) — this is a supplemented
// diagnostic, not a faithful trap-frame capture.
package paniclog

import (
	"fmt"
	"io"

	"golang.org/x/arch/x86/x86asm"

	"gos/internal/caller"
)

const ringCap = 8

// Ring_t retains the last few byte snippets a task handed to Record,
// oldest dropped first.
type Ring_t struct {
	snippets [][]byte
}

// NewRing returns an empty instruction-snippet ring.
func NewRing() *Ring_t {
	return &Ring_t{}
}

// Record appends b, evicting the oldest snippet once the ring is full.
func (r *Ring_t) Record(b []byte) {
	cp := make([]byte, len(b))
	copy(cp, b)
	r.snippets = append(r.snippets, cp)
	if len(r.snippets) > ringCap {
		r.snippets = r.snippets[1:]
	}
}

// Recent returns the retained snippets, oldest first.
func (r *Ring_t) Recent() [][]byte {
	return r.snippets
}

// Disassemble decodes b as a sequence of 32-bit x86 instructions,
// returning one line per decoded instruction. A snippet that runs out
// before a full instruction decodes is reported as a trailing
// "(truncated)" line rather than an error, since panic-time snippets
// are opportunistic, not guaranteed instruction-aligned.
func Disassemble(b []byte) []string {
	var lines []string
	for len(b) > 0 {
		inst, err := x86asm.Decode(b, 32)
		if err != nil {
			lines = append(lines, "(truncated)")
			break
		}
		lines = append(lines, inst.String())
		b = b[inst.Len:]
	}
	return lines
}

// Fatal implements spec.md §7's Fatal policy: print file/line/function/
// condition plus a disassembly of ring's recorded snippets, then block
// forever (the hosted stand-in for "halt forever" — there are no
// interrupts to disable in a goroutine-based simulation, so nothing
// else is done to mask them).
func Fatal(w io.Writer, file string, line int, fn string, cond string, ring *Ring_t) {
	fmt.Fprintf(w, "FATAL: %s:%d: %s: %s\n", file, line, fn, cond)
	fmt.Fprintln(w, "call stack:")
	caller.Dump(w, 2)
	if ring != nil {
		fmt.Fprintln(w, "last recorded instruction bytes:")
		for i, snip := range ring.Recent() {
			fmt.Fprintf(w, "  [%d]", i)
			for _, l := range Disassemble(snip) {
				fmt.Fprintf(w, " %s;", l)
			}
			fmt.Fprintln(w)
		}
	}
	select {}
}
