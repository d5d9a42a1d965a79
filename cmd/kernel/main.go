// Command kernel boots a disk image and drops into the interactive
// shell (spec.md §6), the hosted analogue of biscuit's own boot path
// from bootloader into init.
package main

import (
	"fmt"
	"os"

	"gos/internal/kernel"
	"gos/internal/ksync"
	"gos/internal/proc"
	"gos/internal/shell"
)

const defaultTotalSectors = 8192

func usage(me string) {
	fmt.Printf("%s <disk image> [-format]\n\nBoot <disk image> and run the shell. -format creates a fresh filesystem first.\n", me)
	os.Exit(1)
}

func main() {
	if len(os.Args) < 2 {
		usage(os.Args[0])
	}
	image := os.Args[1]
	format := false
	if len(os.Args) > 2 && os.Args[2] == "-format" {
		format = true
	}
	if !format {
		if _, err := os.Stat(image); err != nil {
			format = true
		}
	}

	k, err := kernel.Boot(kernel.Config{
		DiskPath:     image,
		TotalSectors: defaultTotalSectors,
		FormatDisk:   format,
		FramePages:   4096,
		Console:      os.Stdout,
		Keyboard:     os.Stdin,
	})
	if err != nil {
		fmt.Printf("boot failed: %v\n", err)
		os.Exit(1)
	}
	defer k.Close()

	done := make(chan struct{})
	if _, err := k.Spawn(100, func(self *ksync.Tcb_t, p *proc.Proc_t) {
		defer close(done)
		shell.New(k.Kernel_t, self, p, os.Stdout).Run()
	}); err != nil {
		fmt.Printf("spawning initial process failed: %v\n", err)
		os.Exit(1)
	}

	stop := make(chan struct{})
	go k.Run(stop)
	<-done
	close(stop)
}
