//go:build linux

package fault

// linuxSiginfo overlays the leading, architecture-independent fields of
// glibc's siginfo_t. si_addr sits inside a union past si_code, at a fixed
// offset regardless of host arch (the Go compiler's own alignment rules
// reproduce the compiler-inserted padding glibc's layout relies on).
type linuxSiginfo struct {
	siSignof int32
	siErrno  int32
	siCode   int32
	_pad     int32
	siAddr   uint64
}

// linuxStackt mirrors glibc's stack_t, shared by the amd64 and arm64
// ucontext overlays.
type linuxStackt struct {
	ssSp    uintptr
	ssFlags int32
	_pad    [4]byte
	ssSize  uintptr
}
