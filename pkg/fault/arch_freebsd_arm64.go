//go:build freebsd && arm64

package fault

import "unsafe"

// Mirrors FreeBSD's <machine/ucontext.h> for arm64.

type freebsdArm64Gpregs struct {
	gpX    [30]uint64
	gpLr   uint64
	gpSp   uint64
	gpElr  uint64
	gpSpsr uint64
	_gpPad int32
}

type freebsdArm64Fpregs struct {
	fpQ     [32][16]byte
	fpSr    uint32
	fpCr    uint32
	_fpFlag int32
	_fpPad  int32
}

type freebsdArm64Mcontext struct {
	mcGpregs freebsdArm64Gpregs
	mcFpregs freebsdArm64Fpregs
	mcFlags  int32
	_mcPad   int32
	mcSpare  [8]uint64
}

type freebsdArm64Ucontext struct {
	ucSigmask  [4]uint32
	ucMcontext freebsdArm64Mcontext
}

// decodeFaultContext builds a FaultInfo from the (siginfo_t*, ucontext_t*)
// pair an SA_SIGINFO handler receives on freebsd/arm64.
//
// As on linux/arm64, the X-registers are remapped onto the canonical x86_64
// Register slots the code generator assigns them.
func decodeFaultContext(siginfo, ucontextPtr unsafe.Pointer) *FaultInfo {
	info := (*freebsdSiginfo)(siginfo)
	uc := (*freebsdArm64Ucontext)(ucontextPtr)
	gregs := &uc.ucMcontext.mcGpregs

	var known [numRegisters]*uint64
	known[RegR15] = &gregs.gpX[15]
	known[RegR14] = &gregs.gpX[14]
	known[RegR13] = &gregs.gpX[13]
	known[RegR12] = &gregs.gpX[12]
	known[RegR11] = &gregs.gpX[11]
	known[RegR10] = &gregs.gpX[10]
	known[RegR9] = &gregs.gpX[9]
	known[RegR8] = &gregs.gpX[8]
	known[RegRSI] = &gregs.gpX[6]
	known[RegRDI] = &gregs.gpX[7]
	known[RegRDX] = &gregs.gpX[2]
	known[RegRCX] = &gregs.gpX[1]
	known[RegRBX] = &gregs.gpX[3]
	known[RegRAX] = &gregs.gpX[0]
	known[RegRBP] = &gregs.gpX[5]
	known[RegRSP] = &gregs.gpX[28]

	return &FaultInfo{
		FaultingAddr:   uintptr(info.siAddr),
		IP:             newIPCell(&gregs.gpElr),
		KnownRegisters: known,
	}
}
