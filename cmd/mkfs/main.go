// Command mkfs builds a disk image formatted with the filesystem
// spec.md §4.6 describes, optionally copying in a host directory
// tree's contents.
//
// Grounded on biscuit/src/mkfs/mkfs.go's addfiles/copydata walk, ported
// from ufs.Ufs_t's log-structured API (MkDir/MkFile/Append) onto
// internal/fs's block-bitmap Partition_t (Mkdir/Open/FileWrite).
package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gos/internal/defs"
	"gos/internal/fs"
	"gos/internal/idedisk"
	"gos/internal/ksync"
)

func usage(me string) {
	fmt.Printf("%s <output image> <sector count> [skel dir]\n\nCreate a disk image with a fresh filesystem, optionally copying skel dir's contents in.\n", me)
	os.Exit(1)
}

func copydata(self *ksync.Tcb_t, part *fs.Partition_t, src, dst string) error {
	srcFile, err := os.Open(src)
	if err != nil {
		return err
	}
	defer srcFile.Close()

	ino, err := part.Open(self, dst, defs.O_CREAT|defs.O_RDWR)
	if err != nil {
		return err
	}
	defer part.InodeClose(ino)

	buf := make([]byte, defs.SectorSize*8)
	off := 0
	for {
		n, readErr := srcFile.Read(buf)
		if n > 0 {
			if _, err := part.FileWrite(self, ino, off, buf[:n]); err != nil {
				return err
			}
			off += n
		}
		if readErr == io.EOF {
			return nil
		}
		if readErr != nil {
			return readErr
		}
	}
}

func addfiles(self *ksync.Tcb_t, part *fs.Partition_t, skeldir string) {
	err := filepath.WalkDir(skeldir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			fmt.Printf("failed to access %q: %v\n", path, err)
			return err
		}
		rel := strings.TrimPrefix(path, skeldir)
		if rel == "" {
			return nil
		}
		rel = filepath.ToSlash(rel)

		if d.IsDir() {
			if err := part.Mkdir(self, rel); err != nil {
				fmt.Printf("failed to create dir %v: %v\n", rel, err)
			}
			return nil
		}
		if err := copydata(self, part, path, rel); err != nil {
			fmt.Printf("failed to copy %v: %v\n", rel, err)
		}
		return nil
	})
	if err != nil {
		fmt.Printf("error walking %q: %v\n", skeldir, err)
		os.Exit(1)
	}
}

func main() {
	if len(os.Args) < 3 {
		usage(os.Args[0])
	}
	image := os.Args[1]
	sectors, err := strconv.ParseUint(os.Args[2], 10, 32)
	if err != nil {
		fmt.Printf("bad sector count %q: %v\n", os.Args[2], err)
		os.Exit(1)
	}

	sched := ksync.New()
	ch, err := idedisk.NewChannel(sched, image)
	if err != nil {
		fmt.Printf("failed to create image: %v\n", err)
		os.Exit(1)
	}
	defer ch.Close()

	self := &ksync.Tcb_t{}
	if err := fs.Format(self, ch, 0, uint32(sectors)); err != nil {
		fmt.Printf("format failed: %v\n", err)
		os.Exit(1)
	}

	if len(os.Args) > 3 {
		part, err := fs.Mount(self, ch, 0)
		if err != nil {
			fmt.Printf("mount failed: %v\n", err)
			os.Exit(1)
		}
		addfiles(self, part, os.Args[3])
	}
}
