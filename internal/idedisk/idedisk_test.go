package idedisk

import (
	"bytes"
	"path/filepath"
	"testing"

	"gos/internal/ksync"
)

func TestReadWriteRoundTrip(t *testing.T) {
	sched := ksync.New()
	path := filepath.Join(t.TempDir(), "disk.img")
	c, err := NewChannel(sched, path)
	if err != nil {
		t.Fatalf("NewChannel: %v", err)
	}
	defer c.Close()

	self := &ksync.Tcb_t{}
	want := bytes.Repeat([]byte{0xAB}, sectorSize*2)
	if err := c.WriteSectors(self, 5, 2, want); err != nil {
		t.Fatalf("WriteSectors: %v", err)
	}
	got := make([]byte, sectorSize*2)
	if err := c.ReadSectors(self, 5, 2, got); err != nil {
		t.Fatalf("ReadSectors: %v", err)
	}
	if !bytes.Equal(got, want) {
		t.Fatal("read back data does not match what was written")
	}
}

func TestSectorCountOutOfRangePanics(t *testing.T) {
	sched := ksync.New()
	path := filepath.Join(t.TempDir(), "disk.img")
	c, err := NewChannel(sched, path)
	if err != nil {
		t.Fatalf("NewChannel: %v", err)
	}
	defer c.Close()

	defer func() {
		if recover() == nil {
			t.Fatal("expected panic for out-of-range sector count")
		}
	}()
	c.ReadSectors(&ksync.Tcb_t{}, 0, 300, make([]byte, 300*sectorSize))
}
