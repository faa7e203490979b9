//go:build freebsd

package threadlocal

import (
	"unsafe"

	"golang.org/x/sys/unix"
)

func currentTID() int32 {
	var id int64
	unix.Syscall(unix.SYS_THR_SELF, uintptr(unsafe.Pointer(&id)), 0, 0)
	return int32(id)
}
