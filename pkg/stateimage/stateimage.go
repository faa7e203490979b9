// Package stateimage defines the structured snapshot types produced by the
// stack walker and consumed by the fault dispatcher when it needs to hand a
// resumable image back to the embedder.
//
// The stack walker itself belongs to the embedder: this package only
// defines the shapes it hands back, plus the narrow interface the
// dispatcher invokes it through.
package stateimage

import (
	"fmt"
	"io"
)

// Frame is one reconstructed guest call frame.
type Frame struct {
	// FunctionIndex identifies the guest function this frame belongs to.
	FunctionIndex uint32
	// IP is the program counter within the frame, relative to the code
	// version's base address.
	IP uint64
	// Locals holds the reconstructed local variable values for this frame,
	// opaque 64-bit lanes the same way the register file is opaque.
	Locals []uint64
	// Stack holds the reconstructed operand stack values live at this frame.
	Stack []uint64
}

// ExecutionStateImage is a structured snapshot of guest frames, locals, and
// stack values, as produced by the (out-of-scope) stack walker from a raw
// register file and stack.
type ExecutionStateImage struct {
	Frames []Frame
}

// PrintBacktraceIfNeeded writes a human-readable backtrace to w when the
// image has at least one frame, as the dispatcher does on unclassified
// traps.
func (s *ExecutionStateImage) PrintBacktraceIfNeeded(w io.Writer) {
	if s == nil || len(s.Frames) == 0 {
		return
	}
	fmt.Fprintln(w, "\nruntime encountered a trap while running guest code.")
	for i, f := range s.Frames {
		fmt.Fprintf(w, "  #%d function=%d ip=%#x\n", i, f.FunctionIndex, f.IP)
	}
}

// InstanceImage is an ExecutionStateImage plus enough guest memory, table,
// and global contents to resume execution from where it was suspended.
type InstanceImage struct {
	State ExecutionStateImage

	// Memories holds a snapshot of each guest linear memory at the moment of
	// suspension, indexed by memory index.
	Memories [][]byte

	// Globals holds a snapshot of each guest global value, indexed by
	// global index.
	Globals []uint64

	// Tables holds a snapshot of each guest table's element addresses,
	// indexed by table index.
	Tables [][]uint64
}

// Ctx is the narrow view of the embedder's instance context this package
// needs: a pointer to the interrupt sentinel copy used for single-instance
// interruption, and whatever the stack walker needs to compose a full
// InstanceImage. The full instance representation belongs to the embedder;
// this interface is the only seam it is consumed through.
type Ctx interface {
	// InterruptSignalMem returns this instance's private copy of the
	// sentinel page address, used by arm_via_ctx to interrupt a single
	// instance rather than the whole process.
	InterruptSignalMem() uintptr
}

// StackWalker reconstructs an ExecutionStateImage from a raw register file
// and the currently active code versions, and composes a full InstanceImage
// from a Ctx plus an already-built ExecutionStateImage. Both operations are
// invoked by the dispatcher but implemented by the embedder; this core only
// depends on the interface.
type StackWalker interface {
	// ReadStack builds an ExecutionStateImage starting from rsp, given the
	// known register values at the fault and the faulting instruction
	// pointer. maxDepth limits the number of frames walked; zero means
	// unlimited.
	ReadStack(rsp uintptr, knownRegisters [32]*uint64, ip uint64, maxDepth int) (*ExecutionStateImage, error)

	// BuildInstanceImage composes a full resumable InstanceImage from the
	// embedder's context and an already-reconstructed execution state.
	BuildInstanceImage(ctx Ctx, state *ExecutionStateImage) *InstanceImage
}
