package idedisk

import (
	"fmt"

	"gos/internal/defs"
)

// Partition_t is one scanned partition entry (spec.md §4.5 "Partition
// scan").
type Partition_t struct {
	Name      string
	Type      byte
	StartLBA  uint32
	NumSects  uint32
	Logical   bool
}

type mbrEntry_t struct {
	boot     byte
	ptype    byte
	startLBA uint32
	numSects uint32
}

func parseEntry(b []byte) mbrEntry_t {
	return mbrEntry_t{
		boot:     b[0],
		ptype:    b[4],
		startLBA: le32(b[8:12]),
		numSects: le32(b[12:16]),
	}
}

func le32(b []byte) uint32 {
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
}

// diskReader is the minimal surface partition scanning needs from a
// Channel_t, named separately so tests can supply an in-memory fake
// without opening a real file.
type diskReader interface {
	readRaw(lba int, buf []byte) error
}

func (c *Channel_t) readRaw(lba int, buf []byte) error {
	if _, err := c.f.Seek(int64(lba)*sectorSize, 0); err != nil {
		return err
	}
	_, err := c.f.Read(buf)
	return err
}

// ScanDisk reads the MBR (and any extended partition chain) from c and
// returns the disk's partitions, named "<diskName><index>" (spec.md
// §4.5).
func ScanDisk(c *Channel_t, diskName string) ([]Partition_t, error) {
	return scanDisk(c, diskName)
}

func scanDisk(d diskReader, diskName string) ([]Partition_t, error) {
	var out []Partition_t
	sector := make([]byte, sectorSize)
	if err := d.readRaw(0, sector); err != nil {
		return nil, fmt.Errorf("idedisk: read MBR: %w", err)
	}
	if sector[defs.MBRPartTableOffset+64] != byte(defs.MBRSignature&0xff) ||
		sector[defs.MBRPartTableOffset+65] != byte(defs.MBRSignature>>8) {
		return nil, fmt.Errorf("idedisk: missing MBR signature")
	}

	primaryIdx, logicalIdx := 0, 0
	for i := 0; i < 4; i++ {
		off := defs.MBRPartTableOffset + i*16
		e := parseEntry(sector[off : off+16])
		if e.ptype == 0 {
			continue
		}
		if e.ptype == defs.PartTypeExtended {
			logs, err := scanExtended(d, e.startLBA, e.startLBA, diskName, &logicalIdx)
			if err != nil {
				return nil, err
			}
			out = append(out, logs...)
			continue
		}
		if primaryIdx >= defs.MaxPrimaryParts {
			continue
		}
		out = append(out, Partition_t{
			Name:     fmt.Sprintf("%s%d", diskName, primaryIdx),
			Type:     e.ptype,
			StartLBA: e.startLBA,
			NumSects: e.numSects,
		})
		primaryIdx++
	}
	return out, nil
}

// scanExtended walks one EBR chain. base is the first extended
// partition's LBA (the anchor every subsequent EBR's relative offsets
// are measured from); ebrLBA is the LBA of the EBR currently being read.
func scanExtended(d diskReader, base, ebrLBA uint32, diskName string, logicalIdx *int) ([]Partition_t, error) {
	var out []Partition_t
	for {
		sector := make([]byte, sectorSize)
		if err := d.readRaw(int(ebrLBA), sector); err != nil {
			return nil, fmt.Errorf("idedisk: read EBR at %d: %w", ebrLBA, err)
		}
		off := defs.MBRPartTableOffset
		e0 := parseEntry(sector[off : off+16])
		e1 := parseEntry(sector[off+16 : off+32])

		if e0.ptype != 0 && *logicalIdx < defs.MaxLogicalParts {
			out = append(out, Partition_t{
				Name:     fmt.Sprintf("%s%d", diskName, defs.MaxPrimaryParts+*logicalIdx),
				Type:     e0.ptype,
				StartLBA: ebrLBA + e0.startLBA,
				NumSects: e0.numSects,
				Logical:  true,
			})
			*logicalIdx++
		}
		if e1.ptype == 0 || *logicalIdx >= defs.MaxLogicalParts {
			return out, nil
		}
		ebrLBA = base + e1.startLBA
	}
}
