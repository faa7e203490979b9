//go:build linux

package threadlocal

import "golang.org/x/sys/unix"

func currentTID() int32 {
	return int32(unix.Gettid())
}
