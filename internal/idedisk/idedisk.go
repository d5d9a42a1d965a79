// Package idedisk implements the IDE/ATA driver surface (spec.md §4.5):
// channel mutex + completion semaphore request handshake, busy_wait
// polling, and MBR/EBR partition scanning. Because there is no real ATA
// controller to program in a hosted process, the "hardware" is a plain
// host file — the request/completion protocol and partition scanner are
// real; only the register-level programmed I/O is simulated as direct
// file reads/writes, completing synchronously before the semaphore Up
// that a real IRQ handler would perform.
//
// Grounded on biscuit's ufs.ahci_disk_t (ufs/driver.go): a disk backed
// by *os.File, guarded by a mutex, serviced with Seek+Read/Write per
// block — this module generalizes that file-backed-disk idiom to
// whole-disk byte-addressed transfers and layers the channel
// mutex/semaphore handshake and partition scan on top, per spec.md.
package idedisk

import (
	"fmt"
	"os"
	"time"

	"gos/internal/defs"
	"gos/internal/ksync"
)

const sectorSize = defs.SectorSize

// Channel_t serializes commands to one IDE channel end to end and
// models the request-completion handshake with the (simulated)
// interrupt handler via a counting semaphore (spec.md §4.5).
type Channel_t struct {
	mu   *ksync.RecursiveMutex_t
	done *ksync.Sema_t
	f    *os.File
}

// NewChannel opens (or creates) the file backing this channel's disk.
func NewChannel(sched *ksync.Scheduler_t, path string) (*Channel_t, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0644)
	if err != nil {
		return nil, fmt.Errorf("idedisk: open %s: %w", path, err)
	}
	return &Channel_t{
		mu:   ksync.NewRecursiveMutex(sched),
		done: ksync.NewSema(sched, 0),
		f:    f,
	}, nil
}

func (c *Channel_t) Close() error { return c.f.Close() }

// busyWait polls for device readiness up to 30s with a (fixed) 10ms
// decrement per iteration; it panics on timeout (spec.md §4.5, §9 — the
// REDESIGN FLAGS decision fixes the original's `-= 10 >= 0` bug that
// would have busy-waited roughly 300x longer than documented).
func busyWait(ready func() bool) {
	const budget = 30 * time.Second
	const step = 10 * time.Millisecond
	remaining := budget
	for !ready() {
		time.Sleep(step)
		remaining -= step
		if remaining <= 0 {
			panic("idedisk: busy_wait timeout")
		}
	}
}

// ReadSectors reads n sectors (n <= 256) starting at LBA lba into buf
// (spec.md §4.5's read path: acquire channel, select device, issue
// command, down the done-semaphore, busy-wait for BSY=0/DRQ=1, consume
// data).
func (c *Channel_t) ReadSectors(self *ksync.Tcb_t, lba, n int, buf []byte) error {
	if n <= 0 || n > 256 {
		panic("idedisk: sector count out of range")
	}
	c.mu.Acquire(self)
	defer c.mu.Release(self)

	if _, err := c.f.Seek(int64(lba)*sectorSize, 0); err != nil {
		return err
	}
	// expecting_intr: the simulated "command" completes immediately;
	// the done semaphore models the interrupt handler's wakeup.
	nread, err := c.f.Read(buf[:n*sectorSize])
	c.done.Up()
	c.done.Down(self)
	busyWait(func() bool { return true })
	if err != nil || nread != n*sectorSize {
		panic(fmt.Sprintf("idedisk: short read: %d/%d, err=%v", nread, n*sectorSize, err))
	}
	return nil
}

// WriteSectors writes n sectors starting at LBA lba from buf (spec.md
// §4.5's write path: data is pushed before downing the semaphore).
func (c *Channel_t) WriteSectors(self *ksync.Tcb_t, lba, n int, buf []byte) error {
	if n <= 0 || n > 256 {
		panic("idedisk: sector count out of range")
	}
	c.mu.Acquire(self)
	defer c.mu.Release(self)

	if _, err := c.f.Seek(int64(lba)*sectorSize, 0); err != nil {
		return err
	}
	nwritten, err := c.f.Write(buf[:n*sectorSize])
	c.done.Up()
	c.done.Down(self)
	busyWait(func() bool { return true })
	if err != nil || nwritten != n*sectorSize {
		panic(fmt.Sprintf("idedisk: short write: %d/%d, err=%v", nwritten, n*sectorSize, err))
	}
	return c.f.Sync()
}

// Size reports the backing file's length in sectors.
func (c *Channel_t) Size() (int, error) {
	fi, err := c.f.Stat()
	if err != nil {
		return 0, err
	}
	return int(fi.Size() / sectorSize), nil
}
