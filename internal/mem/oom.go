package mem

// Oommsg_t is sent on a FramePool_t's OOM channel when Palloc fails
// because the pool is exhausted.
//
// Grounded on biscuit/src/oommsg/oommsg.go's Oommsg_t/OomCh: the same
// Need/Resume shape, narrowed to be a per-pool channel rather than one
// process-wide var, so each FramePool_t (and tests constructing their
// own) can be notified independently. spec.md §4.1 has no reclaim path,
// so nothing ever sends on Resume here — it is carried for a listener
// that wants to acknowledge the notification, not to unblock Palloc.
type Oommsg_t struct {
	Need   int
	Resume chan bool
}

// OomCh returns the channel Palloc notifies on exhaustion. Notifications
// are best-effort: a send that would block (no listener keeping up) is
// dropped rather than stalling the allocating task.
func (fp *FramePool_t) OomCh() <-chan Oommsg_t {
	return fp.oom
}

func (fp *FramePool_t) notifyOom(need int) {
	select {
	case fp.oom <- Oommsg_t{Need: need, Resume: make(chan bool, 1)}:
	default:
	}
}
