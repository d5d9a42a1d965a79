// Package fs implements the on-disk filesystem: superblock, block/inode
// bitmaps, a 12-direct-plus-1-indirect inode, directory entries, file
// read/write, path resolution, and the open/unlink/mkdir/rmdir
// operations (spec.md §4.6).
//
// The on-disk layout (superblock fields, inode fields, dir_entry
// fields, MAX_FILES_PER_PART, BITS_PER_SECTOR, MAX_PATH_LEN,
// MAX_FILE_NAME_LEN) is grounded on original_source/Gos/fs/{super_block.h,
// inode.h,dir.h} — biscuit's own filesystem is log-structured and uses a
// different on-disk layout than spec.md describes, so the *semantics*
// here follow the original C headers while the Go *idiom* (block-list
// plumbing, Readn/Writen field access, bdev request style) follows
// biscuit's fs/blk.go and fs/super.go.
package fs

import (
	"fmt"
	"sync"

	"gos/internal/bitmap"
	"gos/internal/defs"
	"gos/internal/idedisk"
	"gos/internal/ksync"
	"gos/internal/kutil"
)

const (
	dirEntrySize   = 4 + 4 + defs.MaxFileNameLen // inode_no + file_type + filename
	inodeDiskSize  = 4 + 4 + 13*4                 // inode_no + inode_size + 13 block pointers
	sbPaddedSize   = defs.SectorSize
)

// superblock_t mirrors original_source/Gos/fs/super_block.h field for
// field (sans the 460-byte pad, which this encoding recomputes instead
// of storing explicitly).
type superblock_t struct {
	Magic           uint32
	SecCnt          uint32
	InodeCnt        uint32
	PartLBABase     uint32
	BlockBitmapLBA  uint32
	BlockBitmapSects uint32
	InodeBitmapLBA  uint32
	InodeBitmapSects uint32
	InodeTableLBA   uint32
	InodeTableSects uint32
	DataStartLBA    uint32
	RootInodeNo     uint32
	DirEntrySize    uint32
}

func (sb *superblock_t) encode() []byte {
	b := make([]byte, sbPaddedSize)
	fields := []uint32{
		sb.Magic, sb.SecCnt, sb.InodeCnt, sb.PartLBABase,
		sb.BlockBitmapLBA, sb.BlockBitmapSects,
		sb.InodeBitmapLBA, sb.InodeBitmapSects,
		sb.InodeTableLBA, sb.InodeTableSects,
		sb.DataStartLBA, sb.RootInodeNo, sb.DirEntrySize,
	}
	for i, v := range fields {
		kutil.Writen(b, 4, i*4, int(v))
	}
	return b
}

func decodeSuperblock(b []byte) *superblock_t {
	sb := &superblock_t{}
	vals := make([]uint32, 13)
	for i := range vals {
		vals[i] = uint32(kutil.Readn(b, 4, i*4))
	}
	sb.Magic = vals[0]
	sb.SecCnt = vals[1]
	sb.InodeCnt = vals[2]
	sb.PartLBABase = vals[3]
	sb.BlockBitmapLBA = vals[4]
	sb.BlockBitmapSects = vals[5]
	sb.InodeBitmapLBA = vals[6]
	sb.InodeBitmapSects = vals[7]
	sb.InodeTableLBA = vals[8]
	sb.InodeTableSects = vals[9]
	sb.DataStartLBA = vals[10]
	sb.RootInodeNo = vals[11]
	sb.DirEntrySize = vals[12]
	return sb
}

// Inode_t is the in-memory form of an on-disk inode, with the runtime
// fields (open count, write_deny, the open-inode list hook) layered on
// top of the persisted record (spec.md §4.6 "Inode locate/open/sync").
type Inode_t struct {
	mu        sync.Mutex
	No        uint32
	Size      uint32
	Sectors   [13]uint32
	OpenCnt   int
	WriteDeny bool
}

func (ino *Inode_t) encode() []byte {
	b := make([]byte, inodeDiskSize)
	kutil.Writen(b, 4, 0, int(ino.No))
	kutil.Writen(b, 4, 4, int(ino.Size))
	for i, s := range ino.Sectors {
		kutil.Writen(b, 4, 8+i*4, int(s))
	}
	return b
}

func decodeInode(b []byte) *Inode_t {
	ino := &Inode_t{}
	ino.No = uint32(kutil.Readn(b, 4, 0))
	ino.Size = uint32(kutil.Readn(b, 4, 4))
	for i := range ino.Sectors {
		ino.Sectors[i] = uint32(kutil.Readn(b, 4, 8+i*4))
	}
	return ino
}

// DirEntry_t is one directory slot (grounded on dir.h's dir_entry).
type DirEntry_t struct {
	Name     string
	InodeNo  uint32
	FileType defs.FileType_t
}

func encodeDirEntry(e DirEntry_t) []byte {
	b := make([]byte, dirEntrySize)
	var name [defs.MaxFileNameLen]byte
	copy(name[:], e.Name)
	copy(b[0:defs.MaxFileNameLen], name[:])
	kutil.Writen(b, 4, defs.MaxFileNameLen, int(e.InodeNo))
	kutil.Writen(b, 4, defs.MaxFileNameLen+4, int(e.FileType))
	return b
}

// EncodeDirEntry and DecodeDirEntry expose the on-disk directory entry
// wire format to callers outside the package (internal/ksyscall's
// readdir handler marshals entries the same way they sit on disk, so
// a caller reading them back needs the matching decoder).
func EncodeDirEntry(e DirEntry_t) []byte { return encodeDirEntry(e) }
func DecodeDirEntry(b []byte) DirEntry_t { return decodeDirEntry(b) }

func decodeDirEntry(b []byte) DirEntry_t {
	nameEnd := 0
	for nameEnd < defs.MaxFileNameLen && b[nameEnd] != 0 {
		nameEnd++
	}
	return DirEntry_t{
		Name:     string(b[0:nameEnd]),
		InodeNo:  uint32(kutil.Readn(b, 4, defs.MaxFileNameLen)),
		FileType: defs.FileType_t(kutil.Readn(b, 4, defs.MaxFileNameLen+4)),
	}
}

// Partition_t is a mounted filesystem: the disk channel it sits on, its
// LBA offset within the disk, its superblock, the two in-memory
// bitmaps, and the open-inodes cache (spec.md §4.6 "Mount").
type Partition_t struct {
	ch       *idedisk.Channel_t
	baseLBA  uint32
	sb       *superblock_t
	blockBm  *bitmap.Bitmap_t
	inodeBm  *bitmap.Bitmap_t

	mu    sync.Mutex
	open  map[uint32]*Inode_t
}

func (p *Partition_t) readSectors(self *ksync.Tcb_t, rel uint32, n int, buf []byte) error {
	return chunkedIO(self, p.ch.ReadSectors, int(p.baseLBA+rel), n, buf)
}

func (p *Partition_t) writeSectors(self *ksync.Tcb_t, rel uint32, n int, buf []byte) error {
	return chunkedIO(self, p.ch.WriteSectors, int(p.baseLBA+rel), n, buf)
}

// maxSectorsPerRequest mirrors idedisk's 8-bit sector-count register
// limit; the bitmap and inode-table regions can span more sectors than
// that on a large partition, so every multi-sector transfer is split
// here rather than left to panic inside the driver.
const maxSectorsPerRequest = 256

func chunkedIO(self *ksync.Tcb_t, do func(*ksync.Tcb_t, int, int, []byte) error, lba, n int, buf []byte) error {
	off := 0
	for n > 0 {
		c := n
		if c > maxSectorsPerRequest {
			c = maxSectorsPerRequest
		}
		if err := do(self, lba, c, buf[off:off+c*defs.SectorSize]); err != nil {
			return err
		}
		lba += c
		off += c * defs.SectorSize
		n -= c
	}
	return nil
}

// Format lays out a fresh filesystem on ch starting at baseLBA, covering
// totalSectors sectors, per spec.md §4.6 "Format".
func Format(self *ksync.Tcb_t, ch *idedisk.Channel_t, baseLBA uint32, totalSectors uint32) error {
	inodeBitmapSects := uint32(kutil.DivRoundup(defs.MaxFilesPerPart, defs.BitsPerSector))
	inodeTableSects := uint32(kutil.DivRoundup(defs.MaxFilesPerPart*inodeDiskSize, defs.SectorSize))

	// Block-bitmap sectors are derived iteratively: each candidate size
	// must cover the data region that remains after subtracting the
	// bitmap's own footprint (spec.md §4.6).
	fixedSects := uint32(2) + inodeBitmapSects + inodeTableSects // boot(0 is part of totalSectors) + superblock(1)
	blockBitmapSects := uint32(1)
	for {
		dataSects := totalSectors - fixedSects - blockBitmapSects
		maxBlocksCovered := blockBitmapSects * defs.SectorSize * 8
		if maxBlocksCovered >= dataSects {
			break
		}
		blockBitmapSects++
	}

	sb := &superblock_t{
		Magic:            defs.SuperblockMagic,
		SecCnt:           totalSectors,
		InodeCnt:         defs.MaxFilesPerPart,
		PartLBABase:      baseLBA,
		BlockBitmapLBA:   2,
		BlockBitmapSects: blockBitmapSects,
		InodeBitmapLBA:   2 + blockBitmapSects,
		InodeBitmapSects: inodeBitmapSects,
		InodeTableLBA:    2 + blockBitmapSects + inodeBitmapSects,
		InodeTableSects:  inodeTableSects,
		DataStartLBA:     2 + blockBitmapSects + inodeBitmapSects + inodeTableSects,
		RootInodeNo:      0,
		DirEntrySize:     dirEntrySize,
	}

	sbBuf := sb.encode()
	if err := chunkedIO(self, ch.WriteSectors, int(baseLBA+1), 1, sbBuf); err != nil {
		return fmt.Errorf("fs: write superblock: %w", err)
	}

	dataBlocks := (totalSectors - sb.DataStartLBA)
	blockBm := bitmap.New(int(sb.BlockBitmapSects * defs.SectorSize * 8))
	blockBm.Set(0) // root directory's first block
	for i := int(dataBlocks); i < blockBm.Len(); i++ {
		blockBm.Set(i) // padding bits beyond the real data region
	}
	if err := chunkedIO(self, ch.WriteSectors, int(baseLBA+sb.BlockBitmapLBA), int(sb.BlockBitmapSects), blockBm.Bytes()); err != nil {
		return fmt.Errorf("fs: write block bitmap: %w", err)
	}

	inodeBm := bitmap.New(int(sb.InodeBitmapSects * defs.SectorSize * 8))
	inodeBm.Set(0)
	if err := chunkedIO(self, ch.WriteSectors, int(baseLBA+sb.InodeBitmapLBA), int(sb.InodeBitmapSects), inodeBm.Bytes()); err != nil {
		return fmt.Errorf("fs: write inode bitmap: %w", err)
	}

	root := &Inode_t{No: 0, Size: 2 * dirEntrySize}
	root.Sectors[0] = sb.DataStartLBA
	tableBuf := make([]byte, sb.InodeTableSects*defs.SectorSize)
	copy(tableBuf, root.encode())
	if err := chunkedIO(self, ch.WriteSectors, int(baseLBA+sb.InodeTableLBA), int(sb.InodeTableSects), tableBuf); err != nil {
		return fmt.Errorf("fs: write inode table: %w", err)
	}

	dataBuf := make([]byte, defs.SectorSize)
	copy(dataBuf[0:dirEntrySize], encodeDirEntry(DirEntry_t{Name: ".", InodeNo: 0, FileType: defs.FT_DIRECTORY}))
	copy(dataBuf[dirEntrySize:2*dirEntrySize], encodeDirEntry(DirEntry_t{Name: "..", InodeNo: 0, FileType: defs.FT_DIRECTORY}))
	if err := chunkedIO(self, ch.WriteSectors, int(baseLBA+sb.DataStartLBA), 1, dataBuf); err != nil {
		return fmt.Errorf("fs: write root data block: %w", err)
	}
	return nil
}

// Mount reads the superblock and both bitmaps into memory (spec.md
// §4.6 "Mount").
func Mount(self *ksync.Tcb_t, ch *idedisk.Channel_t, baseLBA uint32) (*Partition_t, error) {
	sbBuf := make([]byte, defs.SectorSize)
	if err := chunkedIO(self, ch.ReadSectors, int(baseLBA+1), 1, sbBuf); err != nil {
		return nil, fmt.Errorf("fs: read superblock: %w", err)
	}
	sb := decodeSuperblock(sbBuf)
	if sb.Magic != defs.SuperblockMagic {
		return nil, fmt.Errorf("fs: bad superblock magic %#x", sb.Magic)
	}

	blockBmBuf := make([]byte, sb.BlockBitmapSects*defs.SectorSize)
	if err := chunkedIO(self, ch.ReadSectors, int(baseLBA+sb.BlockBitmapLBA), int(sb.BlockBitmapSects), blockBmBuf); err != nil {
		return nil, fmt.Errorf("fs: read block bitmap: %w", err)
	}
	inodeBmBuf := make([]byte, sb.InodeBitmapSects*defs.SectorSize)
	if err := chunkedIO(self, ch.ReadSectors, int(baseLBA+sb.InodeBitmapLBA), int(sb.InodeBitmapSects), inodeBmBuf); err != nil {
		return nil, fmt.Errorf("fs: read inode bitmap: %w", err)
	}

	return &Partition_t{
		ch:      ch,
		baseLBA: baseLBA,
		sb:      sb,
		blockBm: bitmap.FromBytes(blockBmBuf, len(blockBmBuf)*8),
		inodeBm: bitmap.FromBytes(inodeBmBuf, len(inodeBmBuf)*8),
		open:    make(map[uint32]*Inode_t),
	}, nil
}

func (p *Partition_t) syncBlockBitmap(self *ksync.Tcb_t) error {
	return p.writeSectors(self, p.sb.BlockBitmapLBA, int(p.sb.BlockBitmapSects), p.blockBm.Bytes())
}

func (p *Partition_t) syncInodeBitmap(self *ksync.Tcb_t) error {
	return p.writeSectors(self, p.sb.InodeBitmapLBA, int(p.sb.InodeBitmapSects), p.inodeBm.Bytes())
}
