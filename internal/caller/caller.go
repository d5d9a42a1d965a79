// Package caller prints the Go call stack at a crash site, the hosted
// counterpart to walking saved frame pointers on a real panic.
//
// Grounded on biscuit/src/caller/caller.go's Callerdump: the same
// runtime.Caller loop building one "file:line" entry per frame,
// arrow-joined. biscuit's Distinct_caller_t (a seen-before cache for
// suppressing repeat call-chain dumps, used to rate-limit diagnostic
// noise from a hot path) has no caller in this kernel — nothing here
// dumps the same call chain often enough to need deduplication — and
// is not carried forward.
package caller

import (
	"fmt"
	"io"
	"runtime"
)

// Dump writes the call stack to w, one "file:line" entry per line joined
// by "<-". skip counts from Dump's own frame: 0 starts at Dump itself,
// 1 at its caller.
func Dump(w io.Writer, skip int) {
	i := skip
	s := ""
	for {
		_, f, l, ok := runtime.Caller(i)
		if !ok {
			break
		}
		i++
		if s == "" {
			s = fmt.Sprintf("%s:%d\n", f, l)
		} else {
			s += fmt.Sprintf("\t<-%s:%d\n", f, l)
		}
	}
	fmt.Fprint(w, s)
}
