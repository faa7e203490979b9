// Package fault implements the fault-and-interrupt core of a WebAssembly
// execution runtime: it intercepts hardware signals raised by JIT-compiled
// native code, classifies them into traps, breakpoints, cooperative
// suspensions, or external interrupts, and either resumes, snapshots, or
// unwinds.
package fault

// Register is the canonical register enumeration used to index
// FaultInfo.KnownRegisters. Indexing uses this numbering even when the host
// is aarch64, so that the stack walker can stay architecture-agnostic.
type Register int

// General-purpose register slots, followed by the XMM slots. 32 entries
// total.
const (
	RegRAX Register = iota
	RegRCX
	RegRDX
	RegRBX
	RegRSP
	RegRBP
	RegRSI
	RegRDI
	RegR8
	RegR9
	RegR10
	RegR11
	RegR12
	RegR13
	RegR14
	RegR15
	RegXMM0
	RegXMM1
	RegXMM2
	RegXMM3
	RegXMM4
	RegXMM5
	RegXMM6
	RegXMM7
	RegXMM8
	RegXMM9
	RegXMM10
	RegXMM11
	RegXMM12
	RegXMM13
	RegXMM14
	RegXMM15

	numRegisters
)

// IPCell is a mutable cell aliasing the program-counter slot inside an
// OS-delivered signal context. Writing through it mutates the delivered
// context in place, so that when the handler returns, execution resumes at
// the newly written address.
//
// IPCell is only valid for the dynamic scope of the signal handler
// invocation that produced it: the memory it points to is owned by the
// kernel's ucontext and may be reused or invalidated once the handler
// returns.
type IPCell struct {
	slot *uint64
}

// newIPCell wraps a pointer to a context's PC slot. Architecture decoders
// are the only callers.
func newIPCell(slot *uint64) IPCell {
	return IPCell{slot: slot}
}

// Get returns the current value of the aliased PC slot.
func (c IPCell) Get() uint64 {
	return *c.slot
}

// Set writes through to the aliased PC slot. The kernel resumes execution
// at v when the handler returns.
func (c IPCell) Set(v uint64) {
	*c.slot = v
}

// FaultInfo is the uniform description of a hardware fault produced by a
// per-(OS, arch) register context decoder.
type FaultInfo struct {
	// FaultingAddr is the value of the fault address (page-fault target or
	// equivalent) taken from the signal info structure.
	FaultingAddr uintptr

	// IP aliases the program counter of the faulting instruction.
	IP IPCell

	// KnownRegisters holds the 64-bit values of registers the decoder was
	// able to extract from the context, indexed by Register. An entry is
	// nil if the OS context did not capture that register (for example,
	// XMM registers are absent on musl libc).
	KnownRegisters [numRegisters]*uint64
}

// register returns the known value of r, or ok=false if it was not
// captured.
func (f *FaultInfo) register(r Register) (uint64, bool) {
	v := f.KnownRegisters[r]
	if v == nil {
		return 0, false
	}
	return *v, true
}

// StackPointer returns the known RSP value, used to start the stack walk.
func (f *FaultInfo) StackPointer() (uint64, bool) {
	return f.register(RegRSP)
}
