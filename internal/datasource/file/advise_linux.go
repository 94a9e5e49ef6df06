//go:build linux

package file

import (
	"os"

	"golang.org/x/sys/unix"
)

// advise hints the kernel that f will be read sequentially, front to back.
// Best effort; failures are ignored.
func advise(f *os.File) {
	_ = unix.Fadvise(int(f.Fd()), 0, 0, unix.FADV_SEQUENTIAL)
}
