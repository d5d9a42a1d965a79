// Package ksyscall implements the syscall dispatch table (spec.md
// §4.8/§6): getpid, malloc, free, write, fork, read, putchar, clear,
// getcwd, open, close, lseek, unlink, mkdir, opendir, closedir, rmdir,
// readdir, rewinddir, stat, chdir, ps.
//
// Named ksyscall, not syscall, so it sits alongside the standard
// library's syscall package without shadowing it in import lists —
// the same convention internal/ksync uses relative to sync.
//
// Grounded on biscuit's device-id range table (defs/device.go's
// D_FIRST/D_LAST pattern: a small integer indexes a fixed array of
// handlers) generalized here to a syscall-number range table. A real
// dispatcher reads the syscall index and three argument registers out
// of the trap frame and copies user buffers in/out before and after
// the call; since there is no trap frame or user/kernel address space
// boundary to cross in a hosted process, Args_t carries the
// already-marshalled equivalents (raw ints plus any buffer/path
// payload) instead of raw register values — the hosted stand-in for
// copyin/copyout, not a faithful copy of it.
package ksyscall

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"gos/internal/defs"
	"gos/internal/fs"
	"gos/internal/ksync"
	"gos/internal/mem"
	"gos/internal/proc"
	"gos/internal/profile"
	"gos/internal/ring"
	"gos/internal/stat"
)

// Args_t is the hosted stand-in for a syscall's saved argument
// registers plus any buffer/path payload those registers would
// ultimately point at.
type Args_t struct {
	Int0, Int1, Int2 int
	Buf              []byte
	Path             string
}

// Kernel_t bundles the subsystems a syscall handler needs: the
// scheduler, process table, physical frame pool (for fork), mounted
// filesystem, keyboard ring, and console sink.
type Kernel_t struct {
	Sched   *ksync.Scheduler_t
	Procs   *proc.Table_t
	Pool    *mem.FramePool_t
	FS      *fs.Partition_t
	Kbd     *ring.Ring_t
	Console io.Writer
	Profile *profile.Recorder_t
}

type handler_f func(k *Kernel_t, self *ksync.Tcb_t, p *proc.Proc_t, a Args_t) (int, defs.Err_t)

var table [defs.NSyscalls]handler_f

func init() {
	table[defs.SYS_GETPID] = sysGetpid
	table[defs.SYS_MALLOC] = sysMalloc
	table[defs.SYS_FREE] = sysFree
	table[defs.SYS_WRITE] = sysWrite
	table[defs.SYS_FORK] = sysFork
	table[defs.SYS_READ] = sysRead
	table[defs.SYS_PUTCHAR] = sysPutchar
	table[defs.SYS_CLEAR] = sysClear
	table[defs.SYS_GETCWD] = sysGetcwd
	table[defs.SYS_OPEN] = sysOpen
	table[defs.SYS_CLOSE] = sysClose
	table[defs.SYS_LSEEK] = sysLseek
	table[defs.SYS_UNLINK] = sysUnlink
	table[defs.SYS_MKDIR] = sysMkdir
	table[defs.SYS_OPENDIR] = sysOpendir
	table[defs.SYS_CLOSEDIR] = sysClose // closedir is just close on a dir fd
	table[defs.SYS_RMDIR] = sysRmdir
	table[defs.SYS_READDIR] = sysReaddir
	table[defs.SYS_REWINDDIR] = sysRewinddir
	table[defs.SYS_STAT] = sysStat
	table[defs.SYS_CHDIR] = sysChdir
	table[defs.SYS_PS] = sysPs
}

// Dispatch reads the handler for sysno out of the table and invokes
// it, mirroring the real dispatcher's "index table, call handler,
// store result in EAX" shape (spec.md §4.8).
func Dispatch(k *Kernel_t, self *ksync.Tcb_t, p *proc.Proc_t, sysno defs.Sysno_t, a Args_t) (int, defs.Err_t) {
	if sysno < 0 || int(sysno) >= defs.NSyscalls || table[sysno] == nil {
		return 0, defs.EINVAL
	}
	return table[sysno](k, self, p, a)
}

func sysGetpid(k *Kernel_t, self *ksync.Tcb_t, p *proc.Proc_t, a Args_t) (int, defs.Err_t) {
	return int(p.Pid), 0
}

func sysMalloc(k *Kernel_t, self *ksync.Tcb_t, p *proc.Proc_t, a Args_t) (int, defs.Err_t) {
	va, ok := p.Heap.Malloc(a.Int0)
	if !ok {
		return 0, defs.ENOMEM
	}
	return int(va), 0
}

func sysFree(k *Kernel_t, self *ksync.Tcb_t, p *proc.Proc_t, a Args_t) (int, defs.Err_t) {
	p.Heap.Free(uintptr(a.Int0))
	return 0, 0
}

// resolveFd returns the open file descriptor (not 0/1/2, which are
// handled by their reserved devices directly) and fd_t bad-fd errors.
func resolveFd(p *proc.Proc_t, fd int) (*proc.Fd_t, defs.Err_t) {
	if fd < 0 || fd >= defs.NFdPerProc || p.Fds[fd] == nil {
		return nil, defs.EBADF
	}
	return p.Fds[fd], 0
}

func sysWrite(k *Kernel_t, self *ksync.Tcb_t, p *proc.Proc_t, a Args_t) (int, defs.Err_t) {
	fd := a.Int0
	if fd == defs.FD_STDOUT || fd == defs.FD_STDERR {
		n, _ := k.Console.Write(a.Buf)
		return n, 0
	}
	fdent, err := resolveFd(p, fd)
	if err != 0 {
		return 0, err
	}
	fh, ok := fdent.File.(*fs.FileHandle_t)
	if !ok {
		return 0, defs.EISDIR
	}
	n, werr := fh.Write(self, a.Buf, fh.Pos())
	if werr != 0 {
		return 0, werr
	}
	fh.SetPos(fh.Pos() + n)
	return n, 0
}

func sysFork(k *Kernel_t, self *ksync.Tcb_t, p *proc.Proc_t, a Args_t) (int, defs.Err_t) {
	child, err := k.Procs.Fork(k.Sched, k.Pool, p, p.Tcb.Priority)
	if err != nil {
		return 0, toErrt(err)
	}
	return int(child.Pid), 0
}

func sysRead(k *Kernel_t, self *ksync.Tcb_t, p *proc.Proc_t, a Args_t) (int, defs.Err_t) {
	fd := a.Int0
	if fd == defs.FD_STDIN {
		return k.Kbd.Read(self, a.Buf), 0
	}
	if fd == defs.D_PROF {
		// The profile device has no open cursor (spec.md reserves the
		// device id without specifying a payload): each read returns a
		// fresh pprof snapshot truncated to the caller's buffer, rather
		// than a multi-read byte stream.
		if k.Profile == nil {
			return 0, defs.ENOENT
		}
		var buf bytes.Buffer
		if err := k.Profile.WriteTo(&buf); err != nil {
			return 0, defs.EINVAL
		}
		return copy(a.Buf, buf.Bytes()), 0
	}
	fdent, err := resolveFd(p, fd)
	if err != 0 {
		return 0, err
	}
	switch fh := fdent.File.(type) {
	case *fs.FileHandle_t:
		n, rerr := fh.Read(self, a.Buf, fh.Pos())
		if rerr != 0 {
			return 0, rerr
		}
		fh.SetPos(fh.Pos() + n)
		return n, 0
	default:
		n, rerr := fdent.File.Read(self, a.Buf, 0)
		return n, rerr
	}
}

func sysPutchar(k *Kernel_t, self *ksync.Tcb_t, p *proc.Proc_t, a Args_t) (int, defs.Err_t) {
	k.Console.Write([]byte{byte(a.Int0)})
	return 0, 0
}

func sysClear(k *Kernel_t, self *ksync.Tcb_t, p *proc.Proc_t, a Args_t) (int, defs.Err_t) {
	io.WriteString(k.Console, "\x1b[2J\x1b[H")
	return 0, 0
}

func sysGetcwd(k *Kernel_t, self *ksync.Tcb_t, p *proc.Proc_t, a Args_t) (int, defs.Err_t) {
	return copy(a.Buf, p.Cwd.Get()), 0
}

// resolveAbs turns a shell-relative path into the absolute form
// fs.Resolve expects by joining cwd and path with '/'; repeated slashes
// are not collapsed here (spec.md §6: leading '/' is
// absolute, otherwise prepend cwd; '.'/'..' are left as literal
// tokens, which fs.Resolve already handles via ordinary directory
// entry lookups).
func resolveAbs(p *proc.Proc_t, path string) string {
	if strings.HasPrefix(path, "/") {
		return path
	}
	return p.Cwd.Get() + "/" + path
}

func openFlags(flags int) (write bool) {
	return flags&(defs.O_WRONLY|defs.O_RDWR) != 0
}

func allocFd(p *proc.Proc_t, f *proc.Fd_t) (int, defs.Err_t) {
	for i := defs.FD_STDERR + 1; i < defs.NFdPerProc; i++ {
		if p.Fds[i] == nil {
			p.Fds[i] = f
			return i, 0
		}
	}
	return 0, defs.EMFILE
}

func sysOpen(k *Kernel_t, self *ksync.Tcb_t, p *proc.Proc_t, a Args_t) (int, defs.Err_t) {
	ino, err := k.FS.Open(self, resolveAbs(p, a.Path), a.Int0)
	if err != nil {
		return 0, toErrt(err)
	}
	fh := fs.NewFileHandle(k.FS, ino, openFlags(a.Int0))
	return allocFd(p, &proc.Fd_t{File: fh, Perms: a.Int0})
}

func sysClose(k *Kernel_t, self *ksync.Tcb_t, p *proc.Proc_t, a Args_t) (int, defs.Err_t) {
	fd := a.Int0
	fdent, err := resolveFd(p, fd)
	if err != 0 {
		return 0, err
	}
	cerr := fdent.File.Close(self)
	p.Fds[fd] = nil
	return 0, cerr
}

func sysLseek(k *Kernel_t, self *ksync.Tcb_t, p *proc.Proc_t, a Args_t) (int, defs.Err_t) {
	fdent, err := resolveFd(p, a.Int0)
	if err != 0 {
		return 0, err
	}
	fh, ok := fdent.File.(*fs.FileHandle_t)
	if !ok {
		return 0, defs.EISDIR
	}
	offset, whence := a.Int1, a.Int2
	var newpos int
	switch whence {
	case defs.SEEK_START:
		newpos = offset
	case defs.SEEK_CUR:
		newpos = fh.Pos() + offset
	case defs.SEEK_END:
		newpos = fh.Size() + offset
	default:
		return 0, defs.EINVAL
	}
	if newpos < 0 {
		return 0, defs.EINVAL
	}
	fh.SetPos(newpos)
	return newpos, 0
}

func sysUnlink(k *Kernel_t, self *ksync.Tcb_t, p *proc.Proc_t, a Args_t) (int, defs.Err_t) {
	return 0, toErrt(k.FS.Unlink(self, resolveAbs(p, a.Path)))
}

func sysMkdir(k *Kernel_t, self *ksync.Tcb_t, p *proc.Proc_t, a Args_t) (int, defs.Err_t) {
	return 0, toErrt(k.FS.Mkdir(self, resolveAbs(p, a.Path)))
}

func sysRmdir(k *Kernel_t, self *ksync.Tcb_t, p *proc.Proc_t, a Args_t) (int, defs.Err_t) {
	return 0, toErrt(k.FS.Rmdir(self, resolveAbs(p, a.Path)))
}

func sysOpendir(k *Kernel_t, self *ksync.Tcb_t, p *proc.Proc_t, a Args_t) (int, defs.Err_t) {
	res, err := k.FS.Resolve(self, resolveAbs(p, a.Path))
	if err != nil {
		return 0, toErrt(err)
	}
	if !res.Found {
		return 0, defs.ENOENT
	}
	if res.FileType != defs.FT_DIRECTORY {
		return 0, defs.ENOTDIR
	}
	ino, oerr := k.FS.InodeOpen(self, res.InodeNo)
	if oerr != nil {
		return 0, toErrt(oerr)
	}
	dh, derr := k.FS.OpenDir(self, ino)
	if derr != nil {
		k.FS.InodeClose(ino)
		return 0, toErrt(derr)
	}
	return allocFd(p, &proc.Fd_t{File: dh})
}

// sysReaddir marshals the next directory entry into a.Buf using the
// same wire format as the on-disk directory slot (fs.EncodeDirEntry),
// returning 0 once the directory is exhausted.
func sysReaddir(k *Kernel_t, self *ksync.Tcb_t, p *proc.Proc_t, a Args_t) (int, defs.Err_t) {
	fdent, err := resolveFd(p, a.Int0)
	if err != 0 {
		return 0, err
	}
	dh, ok := fdent.File.(*fs.DirHandle_t)
	if !ok {
		return 0, defs.ENOTDIR
	}
	e, has := dh.Next()
	if !has {
		return 0, 0
	}
	return copy(a.Buf, fs.EncodeDirEntry(e)), 0
}

func sysRewinddir(k *Kernel_t, self *ksync.Tcb_t, p *proc.Proc_t, a Args_t) (int, defs.Err_t) {
	fdent, err := resolveFd(p, a.Int0)
	if err != 0 {
		return 0, err
	}
	dh, ok := fdent.File.(*fs.DirHandle_t)
	if !ok {
		return 0, defs.ENOTDIR
	}
	dh.Rewind()
	return 0, 0
}

func sysStat(k *Kernel_t, self *ksync.Tcb_t, p *proc.Proc_t, a Args_t) (int, defs.Err_t) {
	res, err := k.FS.Resolve(self, resolveAbs(p, a.Path))
	if err != nil {
		return 0, toErrt(err)
	}
	if !res.Found {
		return 0, defs.ENOENT
	}
	ino, oerr := k.FS.InodeOpen(self, res.InodeNo)
	if oerr != nil {
		return 0, toErrt(oerr)
	}
	defer k.FS.InodeClose(ino)

	var st stat.Stat_t
	st.Wino(res.InodeNo)
	st.Wsize(ino.Size)
	st.Wtype(uint32(res.FileType))
	b := st.Bytes()
	if len(a.Buf) < len(b) {
		return 0, defs.EINVAL
	}
	copy(a.Buf, b)
	return len(b), 0
}

func sysChdir(k *Kernel_t, self *ksync.Tcb_t, p *proc.Proc_t, a Args_t) (int, defs.Err_t) {
	abs := resolveAbs(p, a.Path)
	res, err := k.FS.Resolve(self, abs)
	if err != nil {
		return 0, toErrt(err)
	}
	if !res.Found {
		return 0, defs.ENOENT
	}
	if res.FileType != defs.FT_DIRECTORY {
		return 0, defs.ENOTDIR
	}
	p.Cwd.Set(abs)
	return 0, 0
}

// sysPs prints one line per live task, sourced from the same pprof
// snapshot the D_PROF device serializes (spec.md's original ps is a
// plain printf dump; here its backing data is the pprof profile, per
// SPEC_FULL.md's profile module).
func sysPs(k *Kernel_t, self *ksync.Tcb_t, p *proc.Proc_t, a Args_t) (int, defs.Err_t) {
	n := 0
	if k.Profile == nil {
		return 0, 0
	}
	snap := k.Profile.Snapshot()
	for _, s := range snap.Sample {
		tid := "?"
		if ids, ok := s.Label["tid"]; ok && len(ids) > 0 {
			tid = ids[0]
		}
		var sysns, utns int64
		if len(s.Value) == 2 {
			sysns, utns = s.Value[0], s.Value[1]
		}
		line := fmt.Sprintf("%s\t%d\t%d\n", tid, sysns, utns)
		n += copy(a.Buf[n:], line)
		if n >= len(a.Buf) {
			break
		}
	}
	return n, 0
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
