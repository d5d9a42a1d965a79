package fs

import (
	"sync"

	"gos/internal/defs"
	"gos/internal/ksync"
)

// DirHandle_t is an opendir/readdir/rewinddir/closedir cursor: a
// snapshot of the directory's entries taken at open time, walked
// sequentially. It satisfies proc.OpenFile_i so it can sit in the same
// per-process fd table as a regular file handle.
type DirHandle_t struct {
	mu      sync.Mutex
	p       *Partition_t
	ino     *Inode_t
	entries []DirEntry_t
	idx     int
}

// OpenDir snapshots dirIno's entries for sequential reading.
func (p *Partition_t) OpenDir(self *ksync.Tcb_t, dirIno *Inode_t) (*DirHandle_t, error) {
	entries, err := p.ListEntries(self, dirIno)
	if err != nil {
		return nil, err
	}
	return &DirHandle_t{p: p, ino: dirIno, entries: entries}, nil
}

// Next returns the next entry and advances the cursor, or ok=false
// once every entry has been read.
func (d *DirHandle_t) Next() (DirEntry_t, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.idx >= len(d.entries) {
		return DirEntry_t{}, false
	}
	e := d.entries[d.idx]
	d.idx++
	return e, true
}

// Rewind resets the cursor to the first entry (spec.md §4.6 rewinddir).
func (d *DirHandle_t) Rewind() {
	d.mu.Lock()
	d.idx = 0
	d.mu.Unlock()
}

// Read implements proc.OpenFile_i by encoding the next entry into buf,
// ignoring off since directory reads are cursor-sequential only.
func (d *DirHandle_t) Read(self *ksync.Tcb_t, buf []byte, off int) (int, defs.Err_t) {
	e, ok := d.Next()
	if !ok {
		return 0, 0
	}
	return copy(buf, encodeDirEntry(e)), 0
}

func (d *DirHandle_t) Write(self *ksync.Tcb_t, buf []byte, off int) (int, defs.Err_t) {
	return 0, defs.EISDIR
}

func (d *DirHandle_t) Close(self *ksync.Tcb_t) defs.Err_t {
	d.p.InodeClose(d.ino)
	return 0
}

func (d *DirHandle_t) IncRef() {}
