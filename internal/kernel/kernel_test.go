package kernel

import (
	"bytes"
	"path/filepath"
	"testing"
	"time"

	"gos/internal/defs"
	"gos/internal/ksync"
	"gos/internal/ksyscall"
	"gos/internal/proc"
)

func bootTest(t *testing.T) (*Kernel_t, *bytes.Buffer) {
	t.Helper()
	var console bytes.Buffer
	k, err := Boot(Config{
		DiskPath:     filepath.Join(t.TempDir(), "disk.img"),
		TotalSectors: 600,
		FormatDisk:   true,
		FramePages:   64,
		Console:      &console,
	})
	if err != nil {
		t.Fatalf("Boot: %v", err)
	}
	t.Cleanup(func() { k.Close() })
	return k, &console
}

func TestBootWiresEverySubsystem(t *testing.T) {
	k, _ := bootTest(t)
	if k.Sched == nil || k.Pool == nil || k.FS == nil || k.Kbd == nil || k.Profile == nil {
		t.Fatal("Boot left a subsystem unwired")
	}
}

func TestSpawnAndRunExecutesProcess(t *testing.T) {
	k, console := bootTest(t)

	done := make(chan struct{})
	if _, err := k.Spawn(10, func(self *ksync.Tcb_t, p *proc.Proc_t) {
		_, errt := ksyscall.Dispatch(k.Kernel_t, self, p, defs.SYS_WRITE, ksyscall.Args_t{
			Int0: defs.FD_STDOUT,
			Buf:  []byte("hello\n"),
		})
		if errt != 0 {
			t.Errorf("write: %v", errt)
		}
		close(done)
	}); err != nil {
		t.Fatalf("Spawn: %v", err)
	}

	stop := make(chan struct{})
	go k.Run(stop)
	defer close(stop)

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("spawned process never ran")
	}
	if console.String() != "hello\n" {
		t.Fatalf("console = %q, want %q", console.String(), "hello\n")
	}
}
