//go:build amd64

package fault

import "unsafe"

const haveStackSwitch = true

// numSavedRegisters is the saved-register count the image-loader assembly
// of the code generator expects in a prepared resumption frame. Our invoke
// thunk only needs a single argument slot, but the constant is kept here,
// unused beyond documentation, so the frame layout this package builds
// never silently drifts out of step with that contract.
const numSavedRegisters = 31

// runOnAlternativeStack is implemented in trampoline_amd64.s. It switches
// RSP into [stackBegin, stackEnd), calls invokeThunk with the context
// pointer stored at *stackBegin, and restores the original stack before
// returning.
func runOnAlternativeStack(stackEnd, stackBegin *uint64)

// registerPreservationTrampoline is the entry point the JIT jumps through
// into a backend at an unknown save layout; consumers of the symbol only
// need it to exist in the binary.
func registerPreservationTrampoline()

// runOnStack prepares the given stack and transfers control onto it. The
// stack is caller-owned and reusable; nothing here allocates beyond the
// boxed closure context.
func runOnStack[R any](stack []uint64, f func() R) R {
	ctx := &stackContext{fn: func() any { return f() }}

	stack[0] = uint64(uintptr(unsafe.Pointer(ctx)))

	runOnAlternativeStack(&stack[len(stack)-1], &stack[0])

	ret, _ := ctx.ret.(R)
	return ret
}
