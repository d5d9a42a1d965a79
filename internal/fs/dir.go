package fs

import (
	"gos/internal/defs"
	"gos/internal/fsutil"
	"gos/internal/ksync"
)

const entriesPerBlock = defs.SectorSize / dirEntrySize

// DirSearch looks up name within the directory inode dirIno (spec.md
// §4.6 "Directory entry search").
func (p *Partition_t) DirSearch(self *ksync.Tcb_t, dirIno *Inode_t, name string) (DirEntry_t, bool, error) {
	name = fsutil.NormalizeName(name)
	all, err := p.allBlocks(self, dirIno)
	if err != nil {
		return DirEntry_t{}, false, err
	}
	buf := make([]byte, defs.SectorSize)
	for _, blk := range all {
		if blk == 0 {
			continue
		}
		if err := p.readSectors(self, blk, 1, buf); err != nil {
			return DirEntry_t{}, false, err
		}
		for i := 0; i < entriesPerBlock; i++ {
			e := decodeDirEntry(buf[i*dirEntrySize : (i+1)*dirEntrySize])
			if e.FileType != defs.FT_UNKNOWN && e.Name == name {
				return e, true, nil
			}
		}
	}
	return DirEntry_t{}, false, nil
}

// DirAdd writes a new entry into dirIno, growing it with a fresh data
// block if every present block is full (spec.md §4.6 "Directory entry
// add (sync)").
func (p *Partition_t) DirAdd(self *ksync.Tcb_t, dirIno *Inode_t, entry DirEntry_t) error {
	all, err := p.allBlocks(self, dirIno)
	if err != nil {
		return err
	}
	buf := make([]byte, defs.SectorSize)
	for _, blk := range all {
		if blk == 0 {
			continue
		}
		if err := p.readSectors(self, blk, 1, buf); err != nil {
			return err
		}
		for i := 0; i < entriesPerBlock; i++ {
			off := i * dirEntrySize
			e := decodeDirEntry(buf[off : off+dirEntrySize])
			if e.FileType == defs.FT_UNKNOWN {
				copy(buf[off:off+dirEntrySize], encodeDirEntry(entry))
				if err := p.writeSectors(self, blk, 1, buf); err != nil {
					return err
				}
				dirIno.Size += dirEntrySize
				return p.InodeSync(self, dirIno)
			}
		}
	}

	// Every present block is full: find the first unused slot in
	// all_blocks and allocate a fresh data block for it.
	k := -1
	for i, blk := range all {
		if blk == 0 {
			k = i
			break
		}
	}
	if k < 0 {
		return defs.ENOSPC
	}
	newBlock, err := p.allocBlock(self)
	if err != nil {
		return err
	}
	switch {
	case k < defs.MaxDirectBlocks:
		dirIno.Sectors[k] = newBlock
	case k == defs.MaxDirectBlocks:
		indirect, err := p.allocBlock(self)
		if err != nil {
			p.freeBlock(self, newBlock)
			return err
		}
		dirIno.Sectors[12] = indirect
		all[12] = newBlock
		if err := p.writeIndirect(self, dirIno, all); err != nil {
			p.freeBlock(self, newBlock)
			p.freeBlock(self, indirect)
			return err
		}
	default:
		all[k] = newBlock
		if err := p.writeIndirect(self, dirIno, all); err != nil {
			p.freeBlock(self, newBlock)
			return err
		}
	}

	newBuf := make([]byte, defs.SectorSize)
	copy(newBuf[0:dirEntrySize], encodeDirEntry(entry))
	if err := p.writeSectors(self, newBlock, 1, newBuf); err != nil {
		return err
	}
	dirIno.Size += dirEntrySize
	return p.InodeSync(self, dirIno)
}

// DirDelete removes the entry whose inode number is childNo from
// dirIno (spec.md §4.6 "Directory entry delete").
func (p *Partition_t) DirDelete(self *ksync.Tcb_t, dirIno *Inode_t, childNo uint32) error {
	all, err := p.allBlocks(self, dirIno)
	if err != nil {
		return err
	}
	buf := make([]byte, defs.SectorSize)
	for bi, blk := range all {
		if blk == 0 {
			continue
		}
		if err := p.readSectors(self, blk, 1, buf); err != nil {
			return err
		}
		nonEmpty := 0
		isFirstBlock := false
		foundOff := -1
		for i := 0; i < entriesPerBlock; i++ {
			off := i * dirEntrySize
			e := decodeDirEntry(buf[off : off+dirEntrySize])
			if e.FileType == defs.FT_UNKNOWN {
				continue
			}
			nonEmpty++
			if e.Name == "." {
				isFirstBlock = true
			}
			if e.InodeNo == childNo {
				foundOff = off
			}
		}
		if foundOff < 0 {
			continue
		}
		if nonEmpty == 1 && !isFirstBlock {
			if err := p.freeBlock(self, blk); err != nil {
				return err
			}
			if bi < defs.MaxDirectBlocks {
				dirIno.Sectors[bi] = 0
			} else {
				all[bi] = 0
				if err := p.writeIndirect(self, dirIno, all); err != nil {
					return err
				}
				stillUsed := false
				for i := defs.MaxDirectBlocks; i < defs.MaxFileBlocks; i++ {
					if all[i] != 0 {
						stillUsed = true
						break
					}
				}
				if !stillUsed {
					indirect := dirIno.Sectors[12]
					dirIno.Sectors[12] = 0
					if err := p.freeBlock(self, indirect); err != nil {
						return err
					}
				}
			}
		} else {
			clear := make([]byte, dirEntrySize)
			copy(buf[foundOff:foundOff+dirEntrySize], clear)
			if err := p.writeSectors(self, blk, 1, buf); err != nil {
				return err
			}
		}
		dirIno.Size -= dirEntrySize
		return p.InodeSync(self, dirIno)
	}
	return defs.ENOENT
}

// ListEntries returns every live (non-FT_UNKNOWN) entry of dirIno in
// on-disk block order, for opendir/readdir.
func (p *Partition_t) ListEntries(self *ksync.Tcb_t, dirIno *Inode_t) ([]DirEntry_t, error) {
	all, err := p.allBlocks(self, dirIno)
	if err != nil {
		return nil, err
	}
	var out []DirEntry_t
	buf := make([]byte, defs.SectorSize)
	for _, blk := range all {
		if blk == 0 {
			continue
		}
		if err := p.readSectors(self, blk, 1, buf); err != nil {
			return nil, err
		}
		for i := 0; i < entriesPerBlock; i++ {
			off := i * dirEntrySize
			e := decodeDirEntry(buf[off : off+dirEntrySize])
			if e.FileType != defs.FT_UNKNOWN {
				out = append(out, e)
			}
		}
	}
	return out, nil
}

// DirIsEmpty reports whether dirIno holds only "." and ".." (spec.md
// §4.6 "rmdir": size check plus sectors[1..12] all zero).
func (p *Partition_t) DirIsEmpty(ino *Inode_t) bool {
	if ino.Size > 2*dirEntrySize {
		return false
	}
	for i := 1; i <= 12; i++ {
		if ino.Sectors[i] != 0 {
			return false
		}
	}
	return true
}
