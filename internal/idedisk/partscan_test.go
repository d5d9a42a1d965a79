package idedisk

import (
	"testing"

	"gos/internal/defs"
)

type fakeDisk struct {
	sectors map[int][]byte
}

func (f *fakeDisk) readRaw(lba int, buf []byte) error {
	s, ok := f.sectors[lba]
	if !ok {
		s = make([]byte, sectorSize)
	}
	copy(buf, s)
	return nil
}

func mbrSector(entries ...mbrEntry_t) []byte {
	b := make([]byte, sectorSize)
	for i, e := range entries {
		off := defs.MBRPartTableOffset + i*16
		b[off] = e.boot
		b[off+4] = e.ptype
		putLE32(b[off+8:], e.startLBA)
		putLE32(b[off+12:], e.numSects)
	}
	b[510] = 0x55
	b[511] = 0xAA
	return b
}

func putLE32(b []byte, v uint32) {
	b[0] = byte(v)
	b[1] = byte(v >> 8)
	b[2] = byte(v >> 16)
	b[3] = byte(v >> 24)
}

func TestScanDiskPrimaryOnly(t *testing.T) {
	d := &fakeDisk{sectors: map[int][]byte{
		0: mbrSector(
			mbrEntry_t{ptype: 0x83, startLBA: 2048, numSects: 1000},
			mbrEntry_t{ptype: 0x07, startLBA: 3048, numSects: 2000},
		),
	}}
	parts, err := scanDisk(d, "sda")
	if err != nil {
		t.Fatalf("scanDisk: %v", err)
	}
	if len(parts) != 2 {
		t.Fatalf("got %d partitions, want 2", len(parts))
	}
	if parts[0].Name != "sda0" || parts[0].StartLBA != 2048 {
		t.Fatalf("partition 0 = %+v", parts[0])
	}
	if parts[1].Name != "sda1" || parts[1].StartLBA != 3048 {
		t.Fatalf("partition 1 = %+v", parts[1])
	}
}

func TestScanDiskMissingSignature(t *testing.T) {
	d := &fakeDisk{sectors: map[int][]byte{0: make([]byte, sectorSize)}}
	if _, err := scanDisk(d, "sda"); err == nil {
		t.Fatal("expected error for missing MBR signature")
	}
}

func TestScanDiskExtendedChain(t *testing.T) {
	extBase := uint32(100)
	d := &fakeDisk{sectors: map[int][]byte{
		0: mbrSector(mbrEntry_t{ptype: defs.PartTypeExtended, startLBA: extBase, numSects: 500}),
		100: mbrSector(
			mbrEntry_t{ptype: 0x83, startLBA: 2, numSects: 100},
			mbrEntry_t{ptype: defs.PartTypeExtended, startLBA: 150, numSects: 200},
		),
		250: mbrSector(
			mbrEntry_t{ptype: 0x83, startLBA: 2, numSects: 50},
		),
	}}
	parts, err := scanDisk(d, "sdb")
	if err != nil {
		t.Fatalf("scanDisk: %v", err)
	}
	if len(parts) != 2 {
		t.Fatalf("got %d logical partitions, want 2: %+v", len(parts), parts)
	}
	if !parts[0].Logical || parts[0].Name != "sdb4" {
		t.Fatalf("first logical partition = %+v", parts[0])
	}
	if !parts[1].Logical || parts[1].Name != "sdb5" {
		t.Fatalf("second logical partition = %+v", parts[1])
	}
}
