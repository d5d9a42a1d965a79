// Package shell implements the line-oriented command shell (spec.md
// §6): pwd, cd, ls, ps, clear, mkdir, rmdir, mkfile, rm, each built
// directly on internal/ksyscall's dispatch table rather than on any
// host OS facility.
//
// Grounded on original_source/Gos/shell/{shell.c,in_cmd.c}: the
// readline-with-backspace-and-clear-screen input loop, the space-
// token command parser, and the one-handler-per-command dispatch all
// follow that file's shape, reimplemented in the teacher's
// dependency-light main-package CLI style (biscuit/src/mkfs/mkfs.go:
// plain argument slices, fmt.Printf for user-facing errors, no flag
// parsing library) rather than translated from C.
package shell

import (
	"fmt"
	"io"
	"strings"

	"gos/internal/defs"
	"gos/internal/fs"
	"gos/internal/ksync"
	"gos/internal/ksyscall"
	"gos/internal/proc"
)

// Shell_t is one running shell instance, bound to a process and its
// kernel thread.
type Shell_t struct {
	K    *ksyscall.Kernel_t
	Self *ksync.Tcb_t
	P    *proc.Proc_t
	Out  io.Writer

	line []byte
}

// New returns a shell ready to Run on behalf of p.
func New(k *ksyscall.Kernel_t, self *ksync.Tcb_t, p *proc.Proc_t, out io.Writer) *Shell_t {
	return &Shell_t{K: k, Self: self, P: p, Out: out}
}

func (s *Shell_t) prompt() {
	cwd := make([]byte, defs.MaxPathLen)
	n, _ := ksyscall.Dispatch(s.K, s.Self, s.P, defs.SYS_GETCWD, ksyscall.Args_t{Buf: cwd})
	fmt.Fprintf(s.Out, "(Gos)[ik@localhost %s]$ ", cwd[:n])
}

// readline reads one line from the keyboard ring a byte at a time,
// honoring backspace (erase the previous rune) and Ctrl-L (clear the
// screen and redraw the prompt plus what's typed so far), matching
// shell.c's readline loop.
func (s *Shell_t) readline() (string, bool) {
	s.line = s.line[:0]
	buf := make([]byte, 1)
	for {
		n, err := ksyscall.Dispatch(s.K, s.Self, s.P, defs.SYS_READ, ksyscall.Args_t{Int0: defs.FD_STDIN, Buf: buf})
		if err != 0 || n == 0 {
			return "", false
		}
		b := buf[0]
		switch b {
		case '\n', '\r':
			ksyscall.Dispatch(s.K, s.Self, s.P, defs.SYS_PUTCHAR, ksyscall.Args_t{Int0: int('\n')})
			return string(s.line), true
		case '\b':
			if len(s.line) > 0 {
				s.line = s.line[:len(s.line)-1]
				ksyscall.Dispatch(s.K, s.Self, s.P, defs.SYS_PUTCHAR, ksyscall.Args_t{Int0: int('\b')})
			}
		case 'l' - 'a':
			s.line = s.line[:0]
			ksyscall.Dispatch(s.K, s.Self, s.P, defs.SYS_CLEAR, ksyscall.Args_t{})
			s.prompt()
		case 'u' - 'a':
			for len(s.line) > 0 {
				s.line = s.line[:len(s.line)-1]
				ksyscall.Dispatch(s.K, s.Self, s.P, defs.SYS_PUTCHAR, ksyscall.Args_t{Int0: int('\b')})
			}
		default:
			s.line = append(s.line, b)
			ksyscall.Dispatch(s.K, s.Self, s.P, defs.SYS_PUTCHAR, ksyscall.Args_t{Int0: int(b)})
		}
	}
}

// Run prints prompts and dispatches commands until the keyboard ring
// closes (read returns an error/0), mirroring shell.c's my_shell loop.
func (s *Shell_t) Run() {
	for {
		s.prompt()
		line, ok := s.readline()
		if !ok {
			return
		}
		args := strings.Fields(line)
		if len(args) == 0 {
			continue
		}
		s.dispatch(args)
	}
}

func (s *Shell_t) dispatch(args []string) {
	switch args[0] {
	case "pwd":
		s.cmdPwd(args)
	case "cd":
		s.cmdCd(args)
	case "ls":
		s.cmdLs(args)
	case "ps":
		s.cmdPs(args)
	case "clear":
		ksyscall.Dispatch(s.K, s.Self, s.P, defs.SYS_CLEAR, ksyscall.Args_t{})
	case "mkdir":
		s.cmdMkdir(args)
	case "rmdir":
		s.cmdRmdir(args)
	case "mkfile":
		s.cmdMkfile(args)
	case "rm":
		s.cmdRm(args)
	default:
		fmt.Fprintf(s.Out, "(Gos)%s: command not found\n", args[0])
	}
}

// resolveArgPath turns a shell argument into an absolute path the way
// make_clear_abs_path does: relative paths are joined onto cwd, and
// '.'/'..'/doubled-slash components are left for fs.Resolve to walk
// as ordinary directory entries rather than washed here.
func (s *Shell_t) resolveArgPath(arg string) string {
	if strings.HasPrefix(arg, "/") {
		return arg
	}
	cwd := make([]byte, defs.MaxPathLen)
	n, _ := ksyscall.Dispatch(s.K, s.Self, s.P, defs.SYS_GETCWD, ksyscall.Args_t{Buf: cwd})
	base := string(cwd[:n])
	if base == "/" {
		return "/" + arg
	}
	return base + "/" + arg
}

func (s *Shell_t) cmdPwd(args []string) {
	if len(args) != 1 {
		fmt.Fprintln(s.Out, "(Gos)pwd: no argument!")
		return
	}
	buf := make([]byte, defs.MaxPathLen)
	n, err := ksyscall.Dispatch(s.K, s.Self, s.P, defs.SYS_GETCWD, ksyscall.Args_t{Buf: buf})
	if err != 0 {
		fmt.Fprintln(s.Out, "(Gos)pwd: get current path error!")
		return
	}
	fmt.Fprintf(s.Out, "%s\n", buf[:n])
}

func (s *Shell_t) cmdCd(args []string) {
	if len(args) > 2 {
		fmt.Fprintln(s.Out, "(Gos)cd: cd command limit 2 argument!")
		return
	}
	target := "/"
	if len(args) == 2 {
		target = s.resolveArgPath(args[1])
	}
	if _, err := ksyscall.Dispatch(s.K, s.Self, s.P, defs.SYS_CHDIR, ksyscall.Args_t{Path: target}); err != 0 {
		fmt.Fprintf(s.Out, "(Gos)cd: no such dir: %s\n", target)
	}
}

func (s *Shell_t) cmdPs(args []string) {
	if len(args) != 1 {
		fmt.Fprintln(s.Out, "(Gos)ps: too many arguments!")
		return
	}
	buf := make([]byte, 4096)
	n, err := ksyscall.Dispatch(s.K, s.Self, s.P, defs.SYS_PS, ksyscall.Args_t{Buf: buf})
	if err != 0 {
		fmt.Fprintln(s.Out, "(Gos)ps: failed!")
		return
	}
	fmt.Fprintf(s.Out, "TID\tSYS_NS\tUSER_NS\n%s", buf[:n])
}

func (s *Shell_t) cmdMkdir(args []string) {
	if len(args) != 2 {
		fmt.Fprintln(s.Out, "(Gos)mkdir: mkdir need one argument!")
		return
	}
	path := s.resolveArgPath(args[1])
	if path == "/" {
		return
	}
	if _, err := ksyscall.Dispatch(s.K, s.Self, s.P, defs.SYS_MKDIR, ksyscall.Args_t{Path: path}); err != 0 {
		fmt.Fprintf(s.Out, "(Gos)mkdir: create dir %s failed!\n", path)
	}
}

func (s *Shell_t) cmdRmdir(args []string) {
	if len(args) != 2 {
		fmt.Fprintln(s.Out, "(Gos)rmdir: rmdir need one argument!")
		return
	}
	path := s.resolveArgPath(args[1])
	if path == "/" {
		return
	}
	if _, err := ksyscall.Dispatch(s.K, s.Self, s.P, defs.SYS_RMDIR, ksyscall.Args_t{Path: path}); err != 0 {
		fmt.Fprintf(s.Out, "(Gos)rmdir: remove dir %s failed!\n", path)
	}
}

func (s *Shell_t) cmdMkfile(args []string) {
	if len(args) != 2 {
		fmt.Fprintln(s.Out, "(Gos)mkfile: mkfile need one argument!")
		return
	}
	path := s.resolveArgPath(args[1])
	fd, err := ksyscall.Dispatch(s.K, s.Self, s.P, defs.SYS_OPEN, ksyscall.Args_t{Path: path, Int0: defs.O_CREAT | defs.O_RDWR})
	if err != 0 {
		fmt.Fprintf(s.Out, "(Gos)mkfile: create file %s failed!\n", path)
		return
	}
	ksyscall.Dispatch(s.K, s.Self, s.P, defs.SYS_CLOSE, ksyscall.Args_t{Int0: fd})
}

func (s *Shell_t) cmdRm(args []string) {
	if len(args) != 2 {
		fmt.Fprintln(s.Out, "(Gos)rm: rm need one argument!")
		return
	}
	path := s.resolveArgPath(args[1])
	if _, err := ksyscall.Dispatch(s.K, s.Self, s.P, defs.SYS_UNLINK, ksyscall.Args_t{Path: path}); err != 0 {
		fmt.Fprintf(s.Out, "(Gos)rm: remove file %s failed!\n", path)
	}
}

// cmdLs implements ls [-l] [path], matching in_cmd.c's in_ls: no path
// means the current directory; -l adds inode number and size columns.
func (s *Shell_t) cmdLs(args []string) {
	longInfo := false
	pathArg := ""
	for _, a := range args[1:] {
		switch {
		case a == "-l":
			longInfo = true
		case a == "-h":
			fmt.Fprintln(s.Out, "(Gos)ls: use -l show all information")
			fmt.Fprintln(s.Out, "(Gos)ls: use -h for help")
			return
		case strings.HasPrefix(a, "-"):
			fmt.Fprintln(s.Out, "(Gos)ls: unsupported option")
			return
		case pathArg == "":
			pathArg = a
		default:
			fmt.Fprintln(s.Out, "(Gos)ls: only support one argument now!")
			return
		}
	}

	var path string
	if pathArg == "" {
		buf := make([]byte, defs.MaxPathLen)
		n, _ := ksyscall.Dispatch(s.K, s.Self, s.P, defs.SYS_GETCWD, ksyscall.Args_t{Buf: buf})
		path = string(buf[:n])
	} else {
		path = s.resolveArgPath(pathArg)
	}

	statbuf := make([]byte, 12)
	if _, err := ksyscall.Dispatch(s.K, s.Self, s.P, defs.SYS_STAT, ksyscall.Args_t{Path: path, Buf: statbuf}); err != 0 {
		fmt.Fprintf(s.Out, "(Gos)ls: can't get file %s information\n", path)
		return
	}
	ft := defs.FileType_t(leUint32(statbuf[8:12]))

	if ft != defs.FT_DIRECTORY {
		sz := leUint32(statbuf[4:8])
		if longInfo {
			fmt.Fprintf(s.Out, "f   %d   %s\n", sz, path)
		} else {
			fmt.Fprintln(s.Out, path)
		}
		return
	}

	dfd, err := ksyscall.Dispatch(s.K, s.Self, s.P, defs.SYS_OPENDIR, ksyscall.Args_t{Path: path})
	if err != 0 {
		fmt.Fprintf(s.Out, "(Gos)ls: can't open dir %s\n", path)
		return
	}
	defer ksyscall.Dispatch(s.K, s.Self, s.P, defs.SYS_CLOSEDIR, ksyscall.Args_t{Int0: dfd})

	base := strings.TrimSuffix(path, "/")
	entbuf := make([]byte, 32)
	if longInfo {
		fmt.Fprintln(s.Out, "FileType   Inode   FileSize   FileName")
	}
	for {
		n, err := ksyscall.Dispatch(s.K, s.Self, s.P, defs.SYS_READDIR, ksyscall.Args_t{Int0: dfd, Buf: entbuf})
		if err != 0 || n == 0 {
			break
		}
		e := fs.DecodeDirEntry(entbuf)
		if !longInfo {
			fmt.Fprintf(s.Out, "%s ", e.Name)
			continue
		}
		childStat := make([]byte, 12)
		ksyscall.Dispatch(s.K, s.Self, s.P, defs.SYS_STAT, ksyscall.Args_t{Path: base + "/" + e.Name, Buf: childStat})
		typ := byte('d')
		if e.FileType == defs.FT_REGULAR {
			typ = 'f'
		}
		fmt.Fprintf(s.Out, "%c          %d       %d          %s\n", typ, e.InodeNo, leUint32(childStat[4:8]), e.Name)
	}
	if !longInfo {
		fmt.Fprintln(s.Out)
	}
}

func leUint32(b []byte) uint32 {
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
}
