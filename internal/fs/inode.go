package fs

import (
	"gos/internal/defs"
	"gos/internal/ksync"
)

// locate computes the sector and in-sector offset of inode no, and
// whether its record crosses a sector boundary (spec.md §4.6 "Inode
// locate").
func (p *Partition_t) locate(no uint32) (sector uint32, off int, crosses bool) {
	byteOff := int(no) * inodeDiskSize
	sector = p.sb.InodeTableLBA + uint32(byteOff/defs.SectorSize)
	off = byteOff % defs.SectorSize
	crosses = (defs.SectorSize - off) < inodeDiskSize
	return
}

// InodeOpen returns the in-memory inode for no, consulting the open
// cache first (spec.md §4.6 "Inode open").
func (p *Partition_t) InodeOpen(self *ksync.Tcb_t, no uint32) (*Inode_t, error) {
	p.mu.Lock()
	if ino, ok := p.open[no]; ok {
		ino.mu.Lock()
		ino.OpenCnt++
		ino.mu.Unlock()
		p.mu.Unlock()
		return ino, nil
	}
	p.mu.Unlock()

	sector, off, crosses := p.locate(no)
	nsec := 1
	if crosses {
		nsec = 2
	}
	buf := make([]byte, nsec*defs.SectorSize)
	if err := p.readSectors(self, sector, nsec, buf); err != nil {
		return nil, err
	}
	ino := decodeInode(buf[off : off+inodeDiskSize])
	ino.OpenCnt = 1

	p.mu.Lock()
	p.open[no] = ino
	p.mu.Unlock()
	return ino, nil
}

// InodeClose drops one reference; it does not evict the inode from the
// open cache (spec.md does not specify eviction, only open-count
// tracking used by Unlink's "referenced by any global file-table entry"
// check).
func (p *Partition_t) InodeClose(ino *Inode_t) {
	ino.mu.Lock()
	defer ino.mu.Unlock()
	if ino.OpenCnt > 0 {
		ino.OpenCnt--
	}
}

// InodeSync writes ino's persisted fields back to the inode table
// (spec.md §4.6 "Inode sync": the runtime fields — open count,
// write_deny — are never part of the on-disk record, so there is
// nothing to zero beyond what encode() already omits).
func (p *Partition_t) InodeSync(self *ksync.Tcb_t, ino *Inode_t) error {
	sector, off, crosses := p.locate(ino.No)
	nsec := 1
	if crosses {
		nsec = 2
	}
	buf := make([]byte, nsec*defs.SectorSize)
	if err := p.readSectors(self, sector, nsec, buf); err != nil {
		return err
	}
	copy(buf[off:off+inodeDiskSize], ino.encode())
	return p.writeSectors(self, sector, nsec, buf)
}

// allBlocks builds the 140-entry block-number array for ino: direct
// pointers 0..11 verbatim, plus the indirect block's 128 entries if
// sectors[12] is nonzero (spec.md §4.6 "Block collection").
func (p *Partition_t) allBlocks(self *ksync.Tcb_t, ino *Inode_t) ([defs.MaxFileBlocks]uint32, error) {
	var all [defs.MaxFileBlocks]uint32
	for i := 0; i < defs.MaxDirectBlocks; i++ {
		all[i] = ino.Sectors[i]
	}
	if ino.Sectors[12] != 0 {
		buf := make([]byte, defs.SectorSize)
		if err := p.readSectors(self, ino.Sectors[12], 1, buf); err != nil {
			return all, err
		}
		for i := 0; i < defs.MaxFileBlocks-defs.MaxDirectBlocks; i++ {
			all[defs.MaxDirectBlocks+i] = uint32(leAt(buf, i))
		}
	}
	return all, nil
}

func leAt(buf []byte, idx int) uint32 {
	o := idx * 4
	return uint32(buf[o]) | uint32(buf[o+1])<<8 | uint32(buf[o+2])<<16 | uint32(buf[o+3])<<24
}

func putLeAt(buf []byte, idx int, v uint32) {
	o := idx * 4
	buf[o] = byte(v)
	buf[o+1] = byte(v >> 8)
	buf[o+2] = byte(v >> 16)
	buf[o+3] = byte(v >> 24)
}

// writeIndirect writes the 128-entry indirect block back from all[12:].
func (p *Partition_t) writeIndirect(self *ksync.Tcb_t, ino *Inode_t, all [defs.MaxFileBlocks]uint32) error {
	buf := make([]byte, defs.SectorSize)
	for i := 0; i < defs.MaxFileBlocks-defs.MaxDirectBlocks; i++ {
		putLeAt(buf, i, all[defs.MaxDirectBlocks+i])
	}
	return p.writeSectors(self, ino.Sectors[12], 1, buf)
}

// allocBlock claims one free block from the block bitmap and syncs it
// to disk.
func (p *Partition_t) allocBlock(self *ksync.Tcb_t) (uint32, error) {
	p.mu.Lock()
	idx := p.blockBm.ScanAndSet(1)
	p.mu.Unlock()
	if idx < 0 {
		return 0, defs.ENOSPC
	}
	if err := p.syncBlockBitmap(self); err != nil {
		p.mu.Lock()
		p.blockBm.Clear(idx)
		p.mu.Unlock()
		return 0, err
	}
	return p.sb.DataStartLBA + uint32(idx), nil
}

func (p *Partition_t) freeBlock(self *ksync.Tcb_t, block uint32) error {
	idx := int(block - p.sb.DataStartLBA)
	p.mu.Lock()
	p.blockBm.Clear(idx)
	p.mu.Unlock()
	return p.syncBlockBitmap(self)
}
