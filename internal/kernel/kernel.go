// Package kernel wires together every subsystem spec.md names — the
// scheduler, process table, frame pool, disk partition, keyboard ring,
// crash-dump ring, and profile recorder — into one bootable Kernel_t,
// the way biscuit's own main.go assembles its kernel before handing
// off to init. Nothing here has a one-to-one teacher file: biscuit's
// boot sequence runs in assembly and main.go, and this package is its
// nearest Go-idiomatic analogue, constructing the same subsystem graph
// Dispatch (internal/ksyscall) and the shell (internal/shell) expect.
package kernel

import (
	"fmt"
	"io"
	"time"

	"gos/internal/fs"
	"gos/internal/idedisk"
	"gos/internal/ksync"
	"gos/internal/ksyscall"
	"gos/internal/mem"
	"gos/internal/paniclog"
	"gos/internal/proc"
	"gos/internal/profile"
	"gos/internal/ring"
)

// Config bundles Boot's tunables: where the disk image lives, whether
// it needs formatting first, how many frames the physical pool holds,
// and the host streams standing in for the console and keyboard.
type Config struct {
	DiskPath     string
	TotalSectors uint32
	FormatDisk   bool
	FramePages   int
	Console      io.Writer
	Keyboard     io.Reader
}

// Kernel_t is a fully wired, runnable kernel: ksyscall.Kernel_t plus
// the resources Dispatch doesn't need a handle to directly (the disk
// channel, for shutdown, and the crash-dump ring).
type Kernel_t struct {
	*ksyscall.Kernel_t
	Crash *paniclog.Ring_t

	ch *idedisk.Channel_t
}

// Boot assembles every subsystem and mounts the disk at cfg.DiskPath,
// formatting it first if requested (spec.md §4.6 "mkfs", run in-place
// rather than as a separate offline step when the image doesn't exist
// yet).
func Boot(cfg Config) (*Kernel_t, error) {
	sched := ksync.New()

	ch, err := idedisk.NewChannel(sched, cfg.DiskPath)
	if err != nil {
		return nil, err
	}

	boot := &ksync.Tcb_t{}
	if cfg.FormatDisk {
		if err := fs.Format(boot, ch, 0, cfg.TotalSectors); err != nil {
			ch.Close()
			return nil, err
		}
	}
	part, err := fs.Mount(boot, ch, 0)
	if err != nil {
		ch.Close()
		return nil, err
	}

	pool, err := mem.NewFramePool(cfg.FramePages)
	if err != nil {
		ch.Close()
		return nil, err
	}

	procs := proc.NewTable()
	kbd := ring.New(sched)

	if cfg.Console != nil {
		watchOom(pool, cfg.Console)
	}

	k := &Kernel_t{
		Kernel_t: &ksyscall.Kernel_t{
			Sched:   sched,
			Procs:   procs,
			Pool:    pool,
			FS:      part,
			Kbd:     kbd,
			Console: cfg.Console,
			Profile: profile.New(sched),
		},
		Crash: paniclog.NewRing(),
		ch:    ch,
	}

	if cfg.Keyboard != nil {
		feedKeyboard(sched, kbd, cfg.Keyboard)
	}
	return k, nil
}

// feedKeyboard spawns the task that copies bytes from the host input
// stream into the keyboard ring (spec.md §4.7), standing in for the
// keyboard interrupt handler's Push calls.
func feedKeyboard(sched *ksync.Scheduler_t, kbd *ring.Ring_t, in io.Reader) {
	sched.Spawn(1, func(self *ksync.Tcb_t) {
		buf := make([]byte, 1)
		for {
			n, err := in.Read(buf)
			if n > 0 {
				kbd.Push(self, buf[0])
			}
			if err != nil {
				return
			}
		}
	})
}

// watchOom logs the frame pool's OOM notifications to w (spec.md §4.1
// has no reclaim path, so this is diagnostic only: a host-side goroutine,
// not a kernel task, since it never touches the scheduler).
func watchOom(pool *mem.FramePool_t, w io.Writer) {
	go func() {
		for msg := range pool.OomCh() {
			fmt.Fprintf(w, "out of memory: %d frame(s) requested, none free\n", msg.Need)
		}
	}()
}

// Spawn starts a new process at priority quantum prio, running entry
// as its body (spec.md §4.4 "Process creation"). It fails with EAGAIN
// once the system-wide process budget (internal/limits) is exhausted.
func (k *Kernel_t) Spawn(prio int, entry func(self *ksync.Tcb_t, p *proc.Proc_t)) (*proc.Proc_t, error) {
	return k.Procs.Create(k.Sched, k.Pool, prio, entry)
}

// Run kicks off the scheduler (spec.md §4.3: the first Schedule() call
// dispatches whichever task was spawned first) and drives its 100Hz
// timer tick until stop is closed.
func (k *Kernel_t) Run(stop <-chan struct{}) {
	k.Sched.Schedule()
	t := time.NewTicker(10 * time.Millisecond)
	defer t.Stop()
	for {
		select {
		case <-t.C:
			k.Sched.Tick()
		case <-stop:
			return
		}
	}
}

// Close releases the underlying disk channel.
func (k *Kernel_t) Close() error {
	return k.ch.Close()
}
