//go:build darwin && amd64

package fault

import "unsafe"

// Mirrors Darwin's <mach/i386/_structs.h>/<sys/_types/_ucontext64.h> for
// x86_64.

type darwinExceptionState struct {
	trapno     uint16
	cpu        uint16
	err        uint32
	faultvaddr uint64
}

type darwinRegs struct {
	rax    uint64
	rbx    uint64
	rcx    uint64
	rdx    uint64
	rdi    uint64
	rsi    uint64
	rbp    uint64
	rsp    uint64
	r8     uint64
	r9     uint64
	r10    uint64
	r11    uint64
	r12    uint64
	r13    uint64
	r14    uint64
	r15    uint64
	rip    uint64
	rflags uint64
	cs     uint64
	fs     uint64
	gs     uint64
}

type darwinFpstate struct {
	_cwd      uint16
	_swd      uint16
	_ftw      uint16
	_fop      uint16
	_rip      uint64
	_rdp      uint64
	_mxcsr    uint32
	_mxcrMask uint32
	_st       [8][8]uint16
	xmm       [16][2]uint64
	_padding  [24]uint32
}

type darwinMcontext struct {
	es darwinExceptionState
	ss darwinRegs
	fs darwinFpstate
}

type darwinUcontext struct {
	ucOnstack  uint32
	ucSigmask  uint32
	ucStack    [24]byte // stack_t: sp, size, flags
	ucLink     *darwinUcontext
	ucMcsize   uint64
	ucMcontext *darwinMcontext
}

type darwinSiginfo struct {
	siSignof int32
	siErrno  int32
	siCode   int32
	siPid    int32
	siUid    uint32
	siStatus int32
	siAddr   uint64
}

// decodeFaultContext builds a FaultInfo from the (siginfo_t*, ucontext_t*)
// pair an SA_SIGINFO handler receives on darwin/amd64.
func decodeFaultContext(siginfo, ucontextPtr unsafe.Pointer) *FaultInfo {
	info := (*darwinSiginfo)(siginfo)
	uc := (*darwinUcontext)(ucontextPtr)
	ss := &uc.ucMcontext.ss
	fs := &uc.ucMcontext.fs

	var known [numRegisters]*uint64
	known[RegR15] = &ss.r15
	known[RegR14] = &ss.r14
	known[RegR13] = &ss.r13
	known[RegR12] = &ss.r12
	known[RegR11] = &ss.r11
	known[RegR10] = &ss.r10
	known[RegR9] = &ss.r9
	known[RegR8] = &ss.r8
	known[RegRSI] = &ss.rsi
	known[RegRDI] = &ss.rdi
	known[RegRDX] = &ss.rdx
	known[RegRCX] = &ss.rcx
	known[RegRBX] = &ss.rbx
	known[RegRAX] = &ss.rax
	known[RegRBP] = &ss.rbp
	known[RegRSP] = &ss.rsp

	for i := 0; i < 16; i++ {
		known[RegXMM0+Register(i)] = &fs.xmm[i][0]
	}

	return &FaultInfo{
		FaultingAddr:   uintptr(info.siAddr),
		IP:             newIPCell(&ss.rip),
		KnownRegisters: known,
	}
}
