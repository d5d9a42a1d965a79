package shell

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"

	"gos/internal/fs"
	"gos/internal/idedisk"
	"gos/internal/ksync"
	"gos/internal/ksyscall"
	"gos/internal/mem"
	"gos/internal/proc"
	"gos/internal/profile"
	"gos/internal/ring"
)

const testTotalSectors = 600

func newTestShell(t *testing.T) (*Shell_t, *ksync.Scheduler_t, *ring.Ring_t) {
	t.Helper()
	sched := ksync.New()
	ch, err := idedisk.NewChannel(sched, filepath.Join(t.TempDir(), "disk.img"))
	if err != nil {
		t.Fatalf("NewChannel: %v", err)
	}
	t.Cleanup(func() { ch.Close() })

	self := &ksync.Tcb_t{}
	if err := fs.Format(self, ch, 0, testTotalSectors); err != nil {
		t.Fatalf("Format: %v", err)
	}
	part, err := fs.Mount(self, ch, 0)
	if err != nil {
		t.Fatalf("Mount: %v", err)
	}

	pool, err := mem.NewFramePool(64)
	if err != nil {
		t.Fatalf("NewFramePool: %v", err)
	}
	t.Cleanup(func() { pool.Close() })

	procs := proc.NewTable()
	p, err := procs.Create(sched, pool, 10, func(self *ksync.Tcb_t, p *proc.Proc_t) {})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	kbd := ring.New(sched)
	var out bytes.Buffer
	k := &ksyscall.Kernel_t{Sched: sched, Procs: procs, Pool: pool, FS: part, Kbd: kbd, Console: &out, Profile: profile.New(sched)}
	sh := New(k, p.Tcb, p, &out)
	return sh, sched, kbd
}

func feed(kbd *ring.Ring_t, self *ksync.Tcb_t, s string) {
	for i := 0; i < len(s); i++ {
		kbd.Push(self, s[i])
	}
}

func TestMkdirLsCommand(t *testing.T) {
	sh, _, kbd := newTestShell(t)
	out := sh.Out.(*bytes.Buffer)

	feed(kbd, sh.Self, "mkdir sub\n")
	line, ok := sh.readline()
	if !ok {
		t.Fatal("readline failed")
	}
	sh.dispatch(strings.Fields(line))

	out.Reset()
	feed(kbd, sh.Self, "ls\n")
	line, ok = sh.readline()
	if !ok {
		t.Fatal("readline failed")
	}
	sh.dispatch(strings.Fields(line))
	if !strings.Contains(out.String(), "sub") {
		t.Fatalf("ls output %q does not mention sub", out.String())
	}
}

func TestMkfileRmCommand(t *testing.T) {
	sh, _, kbd := newTestShell(t)

	feed(kbd, sh.Self, "mkfile f.txt\n")
	line, ok := sh.readline()
	if !ok {
		t.Fatal("readline failed")
	}
	sh.dispatch(strings.Fields(line))

	feed(kbd, sh.Self, "rm f.txt\n")
	line, ok = sh.readline()
	if !ok {
		t.Fatal("readline failed")
	}
	sh.dispatch(strings.Fields(line))
}

func TestPwdCdCommand(t *testing.T) {
	sh, _, kbd := newTestShell(t)
	out := sh.Out.(*bytes.Buffer)

	feed(kbd, sh.Self, "mkdir home\n")
	line, _ := sh.readline()
	sh.dispatch(strings.Fields(line))

	feed(kbd, sh.Self, "cd home\n")
	line, _ = sh.readline()
	sh.dispatch(strings.Fields(line))

	feed(kbd, sh.Self, "pwd\n")
	line, _ = sh.readline()
	// readline echoes the typed line to the console; drop it so only
	// pwd's own output is compared.
	out.Reset()
	sh.dispatch(strings.Fields(line))
	if strings.TrimSpace(out.String()) != "/home" {
		t.Fatalf("pwd output %q, want /home", out.String())
	}
}
