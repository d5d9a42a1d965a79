// Package profile backs the D_PROF device and the ps syscall's
// accounting data with a real pprof profile (spec.md §6 reserves the
// D_PROF device id without specifying a payload; original Gos's ps is
// a plain printf dump with no profiling device at all). Each live
// task becomes one pprof sample, so `go tool pprof` can be pointed
// directly at a running kernel's scheduler accounting.
//
// Grounded on nothing in the teacher's own code (biscuit never profiles
// itself this way) — built directly against
// github.com/google/pprof/profile's public Profile/Sample/Location/
// Function types, which is the whole point of wiring the teacher's
// google/pprof dependency into a concrete component.
package profile

import (
	"io"

	"github.com/google/pprof/profile"

	"gos/internal/ksync"
)

// Recorder_t turns a scheduler's live task set into pprof samples on
// demand.
type Recorder_t struct {
	sched *ksync.Scheduler_t
}

// New returns a recorder over sched.
func New(sched *ksync.Scheduler_t) *Recorder_t {
	return &Recorder_t{sched: sched}
}

// Snapshot builds a profile.Profile with one sample per live task: its
// accumulated system-time and user-time nanoseconds, labeled by tid.
func (r *Recorder_t) Snapshot() *profile.Profile {
	p := &profile.Profile{
		SampleType: []*profile.ValueType{
			{Type: "sys", Unit: "nanoseconds"},
			{Type: "user", Unit: "nanoseconds"},
		},
		PeriodType: &profile.ValueType{Type: "cpu", Unit: "nanoseconds"},
		Period:     1,
	}

	for i, t := range r.sched.Tasks() {
		id := uint64(i + 1)
		fn := &profile.Function{
			ID:   id,
			Name: taskName(t),
		}
		loc := &profile.Location{
			ID:   id,
			Line: []profile.Line{{Function: fn, Line: int64(t.Priority)}},
		}
		utns, sysns := t.Accnt.Fetch()
		p.Function = append(p.Function, fn)
		p.Location = append(p.Location, loc)
		p.Sample = append(p.Sample, &profile.Sample{
			Location: []*profile.Location{loc},
			Value:    []int64{sysns, utns},
			Label:    map[string][]string{"tid": {tidString(t.Tid)}},
		})
	}
	return p
}

// WriteTo serializes a fresh snapshot to w in pprof's gzip-compressed
// protobuf format.
func (r *Recorder_t) WriteTo(w io.Writer) error {
	return r.Snapshot().Write(w)
}

func taskName(t *ksync.Tcb_t) string {
	return "tid-" + tidString(t.Tid)
}

func tidString(tid ksync.Tid_t) string {
	if tid == 0 {
		return "0"
	}
	neg := tid < 0
	if neg {
		tid = -tid
	}
	var buf [20]byte
	i := len(buf)
	for tid > 0 {
		i--
		buf[i] = byte('0' + tid%10)
		tid /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}
