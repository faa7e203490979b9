//go:build freebsd && amd64

package fault

import "unsafe"

// Mirrors FreeBSD's <machine/ucontext.h>/<machine/_ucontext.h> for amd64,
// hand-defined rather than trusting external bindings to keep the fp-state
// offsets visible.

type freebsdSavefpu struct {
	// sv_env plus the eight 80-bit x87 slots; unused by this decoder, kept
	// only to get sv_xmm's offset right.
	_svEnv  [32]byte
	_svFpT  [8 * 16]byte
	svXmm   [16]freebsdXmmacc
	_svPad  [96]byte
}

type freebsdXmmacc struct {
	element [4]uint32
}

type freebsdMcontext struct {
	mcOnstack uint64
	mcRdi     uint64
	mcRsi     uint64
	mcRdx     uint64
	mcRcx     uint64
	mcR8      uint64
	mcR9      uint64
	mcRax     uint64
	mcRbx     uint64
	mcRbp     uint64
	mcR10     uint64
	mcR11     uint64
	mcR12     uint64
	mcR13     uint64
	mcR14     uint64
	mcR15     uint64
	mcTrapno  uint32
	mcFs      uint16
	mcGs      uint16
	mcAddr    uint64
	mcFlags   uint32
	mcEs      uint16
	mcDs      uint16
	mcErr     uint64
	mcRip     uint64
	mcCs      uint64
	mcRflags  uint64
	mcRsp     uint64
	mcSs      uint64
	mcLen     int64

	mcFpformat int64
	mcOwnedfp  int64
	mcSavefpu  *freebsdSavefpu
	mcFpstate  [63]int64

	mcFsbase uint64
	mcGsbase uint64

	mcXfpustate    uint64
	mcXfpustateLen uint64

	mcSpare [4]int64
}

type freebsdUcontext struct {
	ucSigmask  [4]uint32 // sigset_t
	ucMcontext freebsdMcontext
	// uc_link, uc_stack, uc_flags, __spare__ follow; unused here.
}

const mcHasfpxstate = 0x4

// decodeFaultContext builds a FaultInfo from the (siginfo_t*, ucontext_t*)
// pair an SA_SIGINFO handler receives on freebsd/amd64.
func decodeFaultContext(siginfo, ucontextPtr unsafe.Pointer) *FaultInfo {
	info := (*freebsdSiginfo)(siginfo)
	uc := (*freebsdUcontext)(ucontextPtr)
	gregs := &uc.ucMcontext

	var known [numRegisters]*uint64
	known[RegR15] = &gregs.mcR15
	known[RegR14] = &gregs.mcR14
	known[RegR13] = &gregs.mcR13
	known[RegR12] = &gregs.mcR12
	known[RegR11] = &gregs.mcR11
	known[RegR10] = &gregs.mcR10
	known[RegR9] = &gregs.mcR9
	known[RegR8] = &gregs.mcR8
	known[RegRSI] = &gregs.mcRsi
	known[RegRDI] = &gregs.mcRdi
	known[RegRDX] = &gregs.mcRdx
	known[RegRCX] = &gregs.mcRcx
	known[RegRBX] = &gregs.mcRbx
	known[RegRAX] = &gregs.mcRax
	known[RegRBP] = &gregs.mcRbp
	known[RegRSP] = &gregs.mcRsp

	// See https://lists.freebsd.org/pipermail/freebsd-arch/2011-December/012077.html
	if gregs.mcFlags&mcHasfpxstate == 0 && gregs.mcSavefpu != nil {
		fpregs := gregs.mcSavefpu
		for i := 0; i < 16; i++ {
			xmm := &fpregs.svXmm[i]
			v := uint64(xmm.element[0]) | uint64(xmm.element[1])<<32
			known[RegXMM0+Register(i)] = &v
		}
	}

	return &FaultInfo{
		FaultingAddr:   uintptr(info.siAddr),
		IP:             newIPCell(&gregs.mcRip),
		KnownRegisters: known,
	}
}
