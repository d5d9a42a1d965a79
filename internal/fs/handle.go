package fs

import (
	"sync"

	"gos/internal/defs"
	"gos/internal/ksync"
)

// FileHandle_t adapts an open Inode_t to proc.OpenFile_i so it can sit
// in a process's file descriptor table. refs counts the descriptors
// sharing this handle (bumped by IncRef when a fork duplicates a file
// descriptor); only the last Close releases the inode and, if this
// handle holds it, the write_deny flag.
type FileHandle_t struct {
	mu        sync.Mutex
	p         *Partition_t
	ino       *Inode_t
	pos       int
	refs      int
	writeMode bool
}

// NewFileHandle wraps ino (already opened via p.Open) as a file
// descriptor's backing handle.
func NewFileHandle(p *Partition_t, ino *Inode_t, writeMode bool) *FileHandle_t {
	return &FileHandle_t{p: p, ino: ino, refs: 1, writeMode: writeMode}
}

func (h *FileHandle_t) Read(self *ksync.Tcb_t, buf []byte, off int) (int, defs.Err_t) {
	n, err := h.p.FileRead(self, h.ino, off, buf)
	return n, toErrt(err)
}

func (h *FileHandle_t) Write(self *ksync.Tcb_t, buf []byte, off int) (int, defs.Err_t) {
	n, err := h.p.FileWrite(self, h.ino, off, buf)
	return n, toErrt(err)
}

// Pos and SetPos back lseek; the fd's current offset lives on the
// handle rather than the shared inode.
func (h *FileHandle_t) Pos() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.pos
}

func (h *FileHandle_t) SetPos(p int) {
	h.mu.Lock()
	h.pos = p
	h.mu.Unlock()
}

// Size returns the file's current byte length, for lseek's SEEK_END.
func (h *FileHandle_t) Size() int {
	h.ino.mu.Lock()
	defer h.ino.mu.Unlock()
	return int(h.ino.Size)
}

func (h *FileHandle_t) IncRef() {
	h.mu.Lock()
	h.refs++
	h.mu.Unlock()
}

func (h *FileHandle_t) Close(self *ksync.Tcb_t) defs.Err_t {
	h.mu.Lock()
	h.refs--
	last := h.refs <= 0
	h.mu.Unlock()
	if !last {
		return 0
	}
	if h.writeMode {
		h.ino.mu.Lock()
		h.ino.WriteDeny = false
		h.ino.mu.Unlock()
	}
	h.p.InodeClose(h.ino)
	return 0
}

func toErrt(err error) defs.Err_t {
	if err == nil {
		return 0
	}
	if e, ok := err.(defs.Err_t); ok {
		return e
	}
	return defs.EINVAL
}
