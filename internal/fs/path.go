package fs

import (
	"strings"

	"gos/internal/defs"
	"gos/internal/fsutil"
	"gos/internal/ksync"
)

// ResolveResult_t is the outcome of path resolution (spec.md §4.6 "Path
// resolution").
type ResolveResult_t struct {
	Found        bool
	InodeNo      uint32
	FileType     defs.FileType_t
	ParentIno    *Inode_t
	SearchedPath string // prefix reached, valid only when !Found
}

// Resolve walks path from the root directory, token by token (spec.md
// §4.6 "Path resolution").
func (p *Partition_t) Resolve(self *ksync.Tcb_t, path string) (ResolveResult_t, error) {
	if len(path) > defs.MaxPathLen {
		return ResolveResult_t{}, defs.ENAMETOOLONG
	}
	tokens := splitPath(path)

	parent, err := p.InodeOpen(self, p.sb.RootInodeNo)
	if err != nil {
		return ResolveResult_t{}, err
	}
	if len(tokens) == 0 {
		return ResolveResult_t{Found: true, InodeNo: p.sb.RootInodeNo, FileType: defs.FT_DIRECTORY, ParentIno: parent}, nil
	}

	searched := ""
	for i, tok := range tokens {
		entry, ok, err := p.DirSearch(self, parent, tok)
		if err != nil {
			return ResolveResult_t{}, err
		}
		if !ok {
			return ResolveResult_t{Found: false, SearchedPath: searched, ParentIno: parent}, nil
		}
		searched += "/" + tok
		last := i == len(tokens)-1

		if entry.FileType != defs.FT_DIRECTORY {
			// Regular file: must be the final token.
			return ResolveResult_t{Found: true, InodeNo: entry.InodeNo, FileType: defs.FT_REGULAR, ParentIno: parent}, nil
		}
		if last {
			return ResolveResult_t{Found: true, InodeNo: entry.InodeNo, FileType: defs.FT_DIRECTORY, ParentIno: parent}, nil
		}
		next, err := p.InodeOpen(self, entry.InodeNo)
		if err != nil {
			return ResolveResult_t{}, err
		}
		p.InodeClose(parent)
		parent = next
	}
	panic("fs: unreachable")
}

func splitPath(path string) []string {
	var out []string
	for _, tok := range strings.Split(path, "/") {
		if tok != "" {
			out = append(out, tok)
		}
	}
	return out
}

func lastComponent(path string) (dir, name string) {
	path = strings.TrimRight(path, "/")
	idx := strings.LastIndex(path, "/")
	if idx < 0 {
		return "", path
	}
	if idx == 0 {
		return "/", path[1:]
	}
	return path[:idx], path[idx+1:]
}

// Open implements spec.md §4.6 "Open": path resolution, O_CREAT
// handling, directory rejection, and the write_deny exclusion.
func (p *Partition_t) Open(self *ksync.Tcb_t, path string, flags int) (*Inode_t, error) {
	if strings.HasSuffix(path, "/") && path != "/" {
		return nil, defs.EINVAL
	}
	res, err := p.Resolve(self, path)
	if err != nil {
		return nil, err
	}
	if res.Found && res.FileType == defs.FT_DIRECTORY && path != "/" {
		return nil, defs.EISDIR
	}

	var ino *Inode_t
	if !res.Found {
		if flags&defs.O_CREAT == 0 {
			return nil, defs.ENOENT
		}
		dirPath, name := lastComponent(path)
		if dirPath != res.SearchedPath && !(dirPath == "/" && res.SearchedPath == "") {
			// an intermediate component besides the final one was
			// missing, not just the file itself
			return nil, defs.ENOENT
		}
		ino, err = p.createFile(self, res.ParentIno, name)
		if err != nil {
			return nil, err
		}
	} else {
		if flags&defs.O_CREAT != 0 {
			return nil, defs.EEXIST
		}
		ino, err = p.InodeOpen(self, res.InodeNo)
		if err != nil {
			return nil, err
		}
	}

	if res.ParentIno != nil && res.ParentIno != ino {
		p.InodeClose(res.ParentIno)
	}

	if flags&(defs.O_WRONLY|defs.O_RDWR) != 0 {
		ino.mu.Lock()
		denied := ino.WriteDeny
		if !denied {
			ino.WriteDeny = true
		}
		ino.mu.Unlock()
		if denied {
			p.InodeClose(ino)
			return nil, defs.EBUSY
		}
	}
	return ino, nil
}

func (p *Partition_t) allocInode(self *ksync.Tcb_t) (uint32, error) {
	p.mu.Lock()
	idx := p.inodeBm.ScanAndSet(1)
	p.mu.Unlock()
	if idx < 0 {
		return 0, defs.ENOSPC
	}
	if err := p.syncInodeBitmap(self); err != nil {
		p.mu.Lock()
		p.inodeBm.Clear(idx)
		p.mu.Unlock()
		return 0, err
	}
	return uint32(idx), nil
}

// freeInode unwinds an allocated-but-not-yet-linked inode: the caller
// is responsible for unwinding resources it acquired after the inode
// (spec.md §7: "at each successful step the failure label increments;
// on failure, the switch falls through freeing the highest-resource
// first"), so this only clears the inode's own bitmap bit and on-disk
// slot.
func (p *Partition_t) freeInode(self *ksync.Tcb_t, no uint32) {
	p.mu.Lock()
	delete(p.open, no)
	p.inodeBm.Clear(int(no))
	p.mu.Unlock()
	p.syncInodeBitmap(self)
	zero := &Inode_t{No: no}
	p.InodeSync(self, zero)
}

func (p *Partition_t) createFile(self *ksync.Tcb_t, parent *Inode_t, name string) (*Inode_t, error) {
	no, err := p.allocInode(self)
	if err != nil {
		return nil, err
	}
	ino := &Inode_t{No: no, OpenCnt: 1}
	if err := p.InodeSync(self, ino); err != nil {
		p.freeInode(self, no)
		return nil, err
	}
	p.mu.Lock()
	p.open[no] = ino
	p.mu.Unlock()
	if err := p.DirAdd(self, parent, DirEntry_t{Name: fsutil.NormalizeName(name), InodeNo: no, FileType: defs.FT_REGULAR}); err != nil {
		p.freeInode(self, no)
		return nil, err
	}
	return ino, nil
}

// Unlink implements spec.md §4.6 "Unlink".
func (p *Partition_t) Unlink(self *ksync.Tcb_t, path string) error {
	res, err := p.Resolve(self, path)
	if err != nil {
		return err
	}
	if !res.Found {
		return defs.ENOENT
	}
	if res.FileType == defs.FT_DIRECTORY {
		return defs.EISDIR
	}
	ino, err := p.InodeOpen(self, res.InodeNo)
	if err != nil {
		return err
	}
	defer p.InodeClose(ino)
	if res.ParentIno != nil {
		defer p.InodeClose(res.ParentIno)
	}
	ino.mu.Lock()
	refd := ino.OpenCnt > 1 // the InodeOpen above added one reference
	ino.mu.Unlock()
	if refd {
		return defs.EBUSY
	}
	if err := p.DirDelete(self, res.ParentIno, res.InodeNo); err != nil {
		return err
	}
	return p.releaseInode(self, ino)
}

func (p *Partition_t) releaseInode(self *ksync.Tcb_t, ino *Inode_t) error {
	all, err := p.allBlocks(self, ino)
	if err != nil {
		return err
	}
	for i := 0; i < defs.MaxDirectBlocks; i++ {
		if all[i] != 0 {
			if err := p.freeBlock(self, all[i]); err != nil {
				return err
			}
		}
	}
	if ino.Sectors[12] != 0 {
		if err := p.freeBlock(self, ino.Sectors[12]); err != nil {
			return err
		}
	}
	p.mu.Lock()
	no := ino.No
	p.inodeBm.Clear(int(no))
	delete(p.open, no)
	p.mu.Unlock()
	if err := p.syncInodeBitmap(self); err != nil {
		return err
	}
	*ino = Inode_t{No: no}
	return p.InodeSync(self, ino)
}

// Mkdir implements spec.md §4.6 "mkdir": the path must not exist, all
// intermediate components must.
func (p *Partition_t) Mkdir(self *ksync.Tcb_t, path string) error {
	res, err := p.Resolve(self, path)
	if err != nil {
		return err
	}
	if res.Found {
		return defs.EEXIST
	}
	dirPath, name := lastComponent(path)
	if dirPath != res.SearchedPath && !(dirPath == "/" && res.SearchedPath == "") {
		return defs.ENOENT
	}
	no, err := p.allocInode(self)
	if err != nil {
		return err
	}
	block, err := p.allocBlock(self)
	if err != nil {
		p.freeInode(self, no)
		return err
	}
	ino := &Inode_t{No: no, Size: 2 * dirEntrySize}
	ino.Sectors[0] = block
	if err := p.InodeSync(self, ino); err != nil {
		p.freeBlock(self, block)
		p.freeInode(self, no)
		return err
	}

	buf := make([]byte, defs.SectorSize)
	copy(buf[0:dirEntrySize], encodeDirEntry(DirEntry_t{Name: ".", InodeNo: no, FileType: defs.FT_DIRECTORY}))
	copy(buf[dirEntrySize:2*dirEntrySize], encodeDirEntry(DirEntry_t{Name: "..", InodeNo: res.ParentIno.No, FileType: defs.FT_DIRECTORY}))
	if err := p.writeSectors(self, block, 1, buf); err != nil {
		p.freeBlock(self, block)
		p.freeInode(self, no)
		return err
	}
	if res.ParentIno != nil {
		defer p.InodeClose(res.ParentIno)
	}
	if err := p.DirAdd(self, res.ParentIno, DirEntry_t{Name: fsutil.NormalizeName(name), InodeNo: no, FileType: defs.FT_DIRECTORY}); err != nil {
		p.freeBlock(self, block)
		p.freeInode(self, no)
		return err
	}
	return nil
}

// Rmdir implements spec.md §4.6 "rmdir".
func (p *Partition_t) Rmdir(self *ksync.Tcb_t, path string) error {
	res, err := p.Resolve(self, path)
	if err != nil {
		return err
	}
	if !res.Found {
		return defs.ENOENT
	}
	if res.FileType != defs.FT_DIRECTORY {
		return defs.ENOTDIR
	}
	ino, err := p.InodeOpen(self, res.InodeNo)
	if err != nil {
		return err
	}
	defer p.InodeClose(ino)
	if res.ParentIno != nil {
		defer p.InodeClose(res.ParentIno)
	}
	if !p.DirIsEmpty(ino) {
		return defs.ENOTEMPTY
	}
	if err := p.DirDelete(self, res.ParentIno, res.InodeNo); err != nil {
		return err
	}
	return p.releaseInode(self, ino)
}
