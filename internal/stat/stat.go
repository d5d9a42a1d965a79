// Package stat mirrors a file's stat information as a fixed-width record
// that can be copied byte-for-byte across the syscall boundary.
//
// Grounded on biscuit/src/stat/stat.go's Stat_t: the same private-field
// struct with Wxxx setters and an unsafe.Pointer-backed Bytes method,
// trimmed to the fields SYS_STAT actually reports (inode number, size,
// file type) rather than the teacher's full dev/rdev/uid/mtime set,
// since this kernel has no multi-device namespace or file ownership.
package stat

import "unsafe"

// Stat_t is the record SYS_STAT copies into the caller's buffer.
type Stat_t struct {
	ino      uint32
	size     uint32
	fileType uint32
}

// Wino stores the inode number.
func (st *Stat_t) Wino(v uint32) { st.ino = v }

// Wsize stores the file size in bytes.
func (st *Stat_t) Wsize(v uint32) { st.size = v }

// Wtype stores the file type (defs.FileType_t).
func (st *Stat_t) Wtype(v uint32) { st.fileType = v }

// Ino returns the stored inode number.
func (st *Stat_t) Ino() uint32 { return st.ino }

// Size returns the stored size.
func (st *Stat_t) Size() uint32 { return st.size }

// Type returns the stored file type.
func (st *Stat_t) Type() uint32 { return st.fileType }

// Bytes exposes the record's raw, native-endian byte layout.
func (st *Stat_t) Bytes() []byte {
	const sz = unsafe.Sizeof(*st)
	sl := (*[sz]byte)(unsafe.Pointer(st))
	return sl[:]
}
