//go:build !linux

package file

import "os"

func advise(*os.File) {}
