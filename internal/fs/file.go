package fs

import (
	"gos/internal/defs"
	"gos/internal/ksync"
	"gos/internal/kutil"
)

const maxFileSize = defs.MaxFileBlocks * defs.BlockSize

// ensureBlocks grows ino so that all_blocks[0..needBlocks) are backed by
// real data blocks, allocating as needed and handling the three
// sub-cases spec.md §4.6 names: purely direct growth, direct-to-indirect
// crossover, and purely indirect growth.
func (p *Partition_t) ensureBlocks(self *ksync.Tcb_t, ino *Inode_t, needBlocks int) ([defs.MaxFileBlocks]uint32, error) {
	all, err := p.allBlocks(self, ino)
	if err != nil {
		return all, err
	}
	indirectDirty := false
	for i := 0; i < needBlocks; i++ {
		if all[i] != 0 {
			continue
		}
		nb, err := p.allocBlock(self)
		if err != nil {
			return all, err
		}
		switch {
		case i < defs.MaxDirectBlocks:
			ino.Sectors[i] = nb
			all[i] = nb
		case i == defs.MaxDirectBlocks:
			if ino.Sectors[12] == 0 {
				indirect, err := p.allocBlock(self)
				if err != nil {
					p.freeBlock(self, nb)
					return all, err
				}
				ino.Sectors[12] = indirect
			}
			all[i] = nb
			indirectDirty = true
		default:
			all[i] = nb
			indirectDirty = true
		}
	}
	if indirectDirty {
		if err := p.writeIndirect(self, ino, all); err != nil {
			return all, err
		}
	}
	return all, nil
}

// FileWrite writes buf to ino at byte offset off. A write that would
// grow the file past the 140-block maximum file size is rejected in
// full rather than truncated (spec.md §4.6/§7, scenario S4): ino is
// left untouched and the write returns -1 with defs.EFBIG.
func (p *Partition_t) FileWrite(self *ksync.Tcb_t, ino *Inode_t, off int, buf []byte) (int, error) {
	end := off + len(buf)
	if end > maxFileSize {
		return -1, defs.EFBIG
	}
	if len(buf) == 0 {
		return 0, nil
	}

	willUseBlocks := kutil.DivRoundup(end, defs.BlockSize)
	all, err := p.ensureBlocks(self, ino, willUseBlocks)
	if err != nil {
		return 0, err
	}

	written := 0
	blkbuf := make([]byte, defs.BlockSize)
	for pos := off; pos < end; {
		blkIdx := pos / defs.BlockSize
		blkOff := pos % defs.BlockSize
		n := defs.BlockSize - blkOff
		if pos+n > end {
			n = end - pos
		}
		if blkOff != 0 {
			if err := p.readSectors(self, all[blkIdx], 1, blkbuf); err != nil {
				return written, err
			}
		}
		copy(blkbuf[blkOff:blkOff+n], buf[written:written+n])
		if err := p.writeSectors(self, all[blkIdx], 1, blkbuf); err != nil {
			return written, err
		}
		written += n
		pos += n
	}

	if uint32(end) > ino.Size {
		ino.Size = uint32(end)
	}
	if err := p.InodeSync(self, ino); err != nil {
		return written, err
	}
	return written, nil
}

// FileRead reads up to len(buf) bytes from ino at offset off, clamped so
// off+count <= inode size (spec.md §4.6 "File read").
func (p *Partition_t) FileRead(self *ksync.Tcb_t, ino *Inode_t, off int, buf []byte) (int, error) {
	if off >= int(ino.Size) {
		return 0, nil
	}
	count := len(buf)
	if off+count > int(ino.Size) {
		count = int(ino.Size) - off
	}
	if count <= 0 {
		return 0, nil
	}

	all, err := p.allBlocks(self, ino)
	if err != nil {
		return 0, err
	}
	readn := 0
	blkbuf := make([]byte, defs.BlockSize)
	end := off + count
	for pos := off; pos < end; {
		blkIdx := pos / defs.BlockSize
		blkOff := pos % defs.BlockSize
		n := defs.BlockSize - blkOff
		if pos+n > end {
			n = end - pos
		}
		if all[blkIdx] == 0 {
			// A hole in an otherwise-valid span; zero-fill rather
			// than fail, since inode size alone governs validity.
			for i := range buf[readn : readn+n] {
				buf[readn+i] = 0
			}
		} else {
			if err := p.readSectors(self, all[blkIdx], 1, blkbuf); err != nil {
				return readn, err
			}
			copy(buf[readn:readn+n], blkbuf[blkOff:blkOff+n])
		}
		readn += n
		pos += n
	}
	return readn, nil
}
