//go:build freebsd

package fault

// freebsdSiginfo overlays the leading fields of FreeBSD's siginfo_t, which
// are laid out identically on amd64 and arm64. si_addr lives at a fixed
// offset past si_status on both.
type freebsdSiginfo struct {
	siSignof int32
	siErrno  int32
	siCode   int32
	siPid    int32
	siUid    uint32
	siStatus int32
	siAddr   uint64
}
