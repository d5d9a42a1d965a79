package fs

import (
	"bytes"
	"path/filepath"
	"testing"

	"gos/internal/defs"
	"gos/internal/idedisk"
	"gos/internal/ksync"
)

const testTotalSectors = 600

func newTestPartition(t *testing.T) (*Partition_t, *ksync.Tcb_t) {
	t.Helper()
	sched := ksync.New()
	ch, err := idedisk.NewChannel(sched, filepath.Join(t.TempDir(), "disk.img"))
	if err != nil {
		t.Fatalf("NewChannel: %v", err)
	}
	t.Cleanup(func() { ch.Close() })
	self := &ksync.Tcb_t{}

	if err := Format(self, ch, 0, testTotalSectors); err != nil {
		t.Fatalf("Format: %v", err)
	}
	p, err := Mount(self, ch, 0)
	if err != nil {
		t.Fatalf("Mount: %v", err)
	}
	return p, self
}

func TestFormatMountRoundTrip(t *testing.T) {
	p, self := newTestPartition(t)
	res, err := p.Resolve(self, "/")
	if err != nil {
		t.Fatalf("Resolve(/): %v", err)
	}
	if !res.Found || res.FileType != defs.FT_DIRECTORY || res.InodeNo != 0 {
		t.Fatalf("root resolution wrong: %+v", res)
	}
}

func TestCreateWriteReadFile(t *testing.T) {
	p, self := newTestPartition(t)

	ino, err := p.Open(self, "/hello.txt", defs.O_CREAT|defs.O_RDWR)
	if err != nil {
		t.Fatalf("Open create: %v", err)
	}
	want := bytes.Repeat([]byte("abcdefgh"), 200) // spans multiple blocks
	n, err := p.FileWrite(self, ino, 0, want)
	if err != nil || n != len(want) {
		t.Fatalf("FileWrite: n=%d err=%v", n, err)
	}

	got := make([]byte, len(want))
	n, err = p.FileRead(self, ino, 0, got)
	if err != nil || n != len(want) {
		t.Fatalf("FileRead: n=%d err=%v", n, err)
	}
	if !bytes.Equal(got, want) {
		t.Fatal("read back data does not match what was written")
	}

	res, ok, err := p.DirSearch(self, mustRootIno(t, p, self), "hello.txt")
	if err != nil || !ok {
		t.Fatalf("DirSearch: ok=%v err=%v", ok, err)
	}
	if res.InodeNo != ino.No || res.FileType != defs.FT_REGULAR {
		t.Fatalf("directory entry wrong: %+v", res)
	}
}

func TestWriteAtOffsetLeavesPriorBytesIntact(t *testing.T) {
	p, self := newTestPartition(t)
	ino, err := p.Open(self, "/a", defs.O_CREAT|defs.O_RDWR)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if _, err := p.FileWrite(self, ino, 0, []byte("0123456789")); err != nil {
		t.Fatalf("FileWrite: %v", err)
	}
	if _, err := p.FileWrite(self, ino, 5, []byte("XXXXX")); err != nil {
		t.Fatalf("FileWrite: %v", err)
	}
	got := make([]byte, 10)
	if _, err := p.FileRead(self, ino, 0, got); err != nil {
		t.Fatalf("FileRead: %v", err)
	}
	if string(got) != "01234XXXXX" {
		t.Fatalf("got %q, want %q", got, "01234XXXXX")
	}
}

// TestFileWriteRejectsPastMaxFileSize is scenario S4: an 80KiB write
// (160 sectors worth) against the 140-block/71680-byte ceiling must be
// rejected outright, not truncated, and must leave the file's size
// unchanged.
func TestFileWriteRejectsPastMaxFileSize(t *testing.T) {
	p, self := newTestPartition(t)
	ino, err := p.Open(self, "/big", defs.O_CREAT|defs.O_RDWR)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	buf := bytes.Repeat([]byte("x"), 80*1024)
	n, err := p.FileWrite(self, ino, 0, buf)
	if n != -1 {
		t.Fatalf("FileWrite returned n=%d, want -1", n)
	}
	if err != defs.EFBIG {
		t.Fatalf("FileWrite err = %v, want defs.EFBIG", err)
	}
	const want = "exceed max file size: 71680 Bytes"
	if err.Error() != want {
		t.Fatalf("FileWrite err message = %q, want %q", err.Error(), want)
	}
	if ino.Size != 0 {
		t.Fatalf("ino.Size = %d after rejected write, want 0", ino.Size)
	}
}

func TestOpenExclusiveWriteDeny(t *testing.T) {
	p, self := newTestPartition(t)
	if _, err := p.Open(self, "/f", defs.O_CREAT|defs.O_RDWR); err != nil {
		t.Fatalf("Open create: %v", err)
	}
	if _, err := p.Open(self, "/f", defs.O_RDWR); err != defs.EBUSY {
		t.Fatalf("second write-mode open: err=%v, want EBUSY", err)
	}
	if _, err := p.Open(self, "/f", defs.O_RDONLY); err != nil {
		t.Fatalf("read-only open should not be denied: %v", err)
	}
}

func TestOpenExistingWithCreateFails(t *testing.T) {
	p, self := newTestPartition(t)
	if _, err := p.Open(self, "/f", defs.O_CREAT|defs.O_RDWR); err != nil {
		t.Fatalf("Open create: %v", err)
	}
	if _, err := p.Open(self, "/f", defs.O_CREAT|defs.O_RDWR); err != defs.EEXIST {
		t.Fatalf("err=%v, want EEXIST", err)
	}
}

func TestMkdirAndNestedFile(t *testing.T) {
	p, self := newTestPartition(t)
	if err := p.Mkdir(self, "/sub"); err != nil {
		t.Fatalf("Mkdir: %v", err)
	}
	if _, err := p.Open(self, "/sub/f.txt", defs.O_CREAT|defs.O_RDWR); err != nil {
		t.Fatalf("Open nested: %v", err)
	}
	res, err := p.Resolve(self, "/sub/f.txt")
	if err != nil || !res.Found || res.FileType != defs.FT_REGULAR {
		t.Fatalf("Resolve nested: %+v err=%v", res, err)
	}
}

func TestMkdirMissingParentFails(t *testing.T) {
	p, self := newTestPartition(t)
	if err := p.Mkdir(self, "/missing/sub"); err != defs.ENOENT {
		t.Fatalf("err=%v, want ENOENT", err)
	}
}

func TestRmdirRejectsNonEmpty(t *testing.T) {
	p, self := newTestPartition(t)
	if err := p.Mkdir(self, "/sub"); err != nil {
		t.Fatalf("Mkdir: %v", err)
	}
	fino, err := p.Open(self, "/sub/f", defs.O_CREAT|defs.O_RDWR)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	p.InodeClose(fino) // drop the fd so Unlink sees it as unreferenced
	if err := p.Rmdir(self, "/sub"); err != defs.ENOTEMPTY {
		t.Fatalf("err=%v, want ENOTEMPTY", err)
	}
	if err := p.Unlink(self, "/sub/f"); err != nil {
		t.Fatalf("Unlink: %v", err)
	}
	if err := p.Rmdir(self, "/sub"); err != nil {
		t.Fatalf("Rmdir after empty: %v", err)
	}
	res, err := p.Resolve(self, "/sub")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if res.Found {
		t.Fatal("/sub should no longer resolve after rmdir")
	}
}

func TestUnlinkRemovesEntry(t *testing.T) {
	p, self := newTestPartition(t)
	ino, err := p.Open(self, "/f", defs.O_CREAT|defs.O_RDWR)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	p.InodeClose(ino) // drop the fd so Unlink sees it as unreferenced
	if err := p.Unlink(self, "/f"); err != nil {
		t.Fatalf("Unlink: %v", err)
	}
	res, err := p.Resolve(self, "/f")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if res.Found {
		t.Fatal("/f should no longer resolve after unlink")
	}
}

func TestUnlinkDirectoryRejected(t *testing.T) {
	p, self := newTestPartition(t)
	if err := p.Mkdir(self, "/sub"); err != nil {
		t.Fatalf("Mkdir: %v", err)
	}
	if err := p.Unlink(self, "/sub"); err != defs.EISDIR {
		t.Fatalf("err=%v, want EISDIR", err)
	}
}

func TestManySmallFilesForceIndirectGrowth(t *testing.T) {
	p, self := newTestPartition(t)
	// Force the directory past its 12 direct blocks (>12*entriesPerBlock
	// entries) to exercise the indirect-block crossover in DirAdd.
	names := make([]string, 0, entriesPerBlock*13)
	for i := 0; i < entriesPerBlock*13; i++ {
		name := "f" + itoa(i)
		if _, err := p.Open(self, "/"+name, defs.O_CREAT|defs.O_RDWR); err != nil {
			t.Fatalf("Open %s: %v", name, err)
		}
		names = append(names, name)
	}
	for _, name := range names {
		res, err := p.Resolve(self, "/"+name)
		if err != nil || !res.Found {
			t.Fatalf("Resolve %s: found=%v err=%v", name, res.Found, err)
		}
	}
}

func mustRootIno(t *testing.T, p *Partition_t, self *ksync.Tcb_t) *Inode_t {
	t.Helper()
	ino, err := p.InodeOpen(self, p.sb.RootInodeNo)
	if err != nil {
		t.Fatalf("InodeOpen(root): %v", err)
	}
	return ino
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	var b [20]byte
	i := len(b)
	for n > 0 {
		i--
		b[i] = byte('0' + n%10)
		n /= 10
	}
	return string(b[i:])
}
