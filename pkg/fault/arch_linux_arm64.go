//go:build linux && arm64

package fault

import "unsafe"

// Mirrors glibc's <bits/sigcontext.h> for linux/arm64, matching
// runtime/defs_linux_arm64.go's local sigcontext/ucontext definitions.

type linuxArm64Sigcontext struct {
	faultAddress uint64
	regs         [31]uint64
	sp           uint64
	pc           uint64
	pstate       uint64
	// _pad and __reserved follow; unused by this decoder.
}

type linuxArm64Ucontext struct {
	ucFlags    uint64
	ucLink     *linuxArm64Ucontext
	ucStack    linuxStackt
	ucSigmask  uint64
	_pad       [(1024 - 64) / 8]byte
	_pad2      [8]byte
	ucMcontext linuxArm64Sigcontext
}

// decodeFaultContext builds a FaultInfo from the (siginfo_t*, ucontext_t*)
// pair an SA_SIGINFO handler receives on linux/arm64.
//
// The AArch64 X-registers are remapped onto the canonical x86_64 Register
// slots the code generator assigns them (X0 to RegRAX, X28 to RegRSP, and
// so on), so the stack walker reads the same slots on either host.
func decodeFaultContext(siginfo, ucontextPtr unsafe.Pointer) *FaultInfo {
	info := (*linuxSiginfo)(siginfo)
	uc := (*linuxArm64Ucontext)(ucontextPtr)
	gregs := &uc.ucMcontext.regs

	var known [numRegisters]*uint64
	known[RegR15] = &gregs[15]
	known[RegR14] = &gregs[14]
	known[RegR13] = &gregs[13]
	known[RegR12] = &gregs[12]
	known[RegR11] = &gregs[11]
	known[RegR10] = &gregs[10]
	known[RegR9] = &gregs[9]
	known[RegR8] = &gregs[8]
	known[RegRSI] = &gregs[6]
	known[RegRDI] = &gregs[7]
	known[RegRDX] = &gregs[2]
	known[RegRCX] = &gregs[1]
	known[RegRBX] = &gregs[3]
	known[RegRAX] = &gregs[0]
	known[RegRBP] = &gregs[5]
	known[RegRSP] = &gregs[28]

	return &FaultInfo{
		FaultingAddr:   uintptr(info.siAddr),
		IP:             newIPCell(&uc.ucMcontext.pc),
		KnownRegisters: known,
	}
}
