package fault

import "github.com/wasmrt/rtfault/internal/threadlocal"

// TrapStackSize is the size of the stack the fault dispatcher migrates onto
// for heavy work (stack walking, image building), off the small
// kernel-provided signal-alternate stack.
const TrapStackSize = 1 << 20 // 1 MiB

// stackContext carries a boxed closure and its eventual result across the
// alternate-stack transfer. Go closures cannot be called from hand-written
// assembly through their native ABIInternal calling convention without
// depending on unstable compiler internals, so the assembly only ever calls
// the fixed, ABI0-addressable invokeThunk below; the actual user closure is
// invoked from ordinary Go code running on the new stack.
type stackContext struct {
	fn  func() any
	ret any
}

// invokeThunk is the landing function the alternate-stack assembly transfers
// control to. It is called through its ABI0 symbol
// (CALL ·invokeThunk(SB)) so the calling convention is the stack-based one
// hand-written assembly can address directly.
func invokeThunk(ctx *stackContext) {
	ctx.ret = ctx.fn()
}

// reservedStack is a thread's pre-allocated fault-dispatch stack. inUse
// guards against a nested fault reusing the stack while the dispatcher is
// already running on it; only the owning thread touches it.
type reservedStack struct {
	words []uint64
	inUse bool
}

var trapStacks = threadlocal.NewMap[*reservedStack]()

// reserveTrapStack pre-allocates the calling thread's fault-dispatch stack.
// CatchUnsafeUnwind calls it before guest code can fault, so the handler
// itself never has to allocate one.
func reserveTrapStack() {
	if !haveStackSwitch {
		return
	}
	if _, ok := trapStacks.Get(); !ok {
		trapStacks.Set(&reservedStack{words: make([]uint64, TrapStackSize/8)})
	}
}

// runOnTrapStack runs f on the calling thread's reserved dispatch stack.
// It falls back to a freshly allocated stack only when no reservation
// exists (a fault outside any catch scope) or the reserved stack is already
// in use (a fault raised by code running on it).
func runOnTrapStack[R any](f func() R) R {
	if !haveStackSwitch {
		return f()
	}
	rs, ok := trapStacks.Get()
	if !ok || rs.inUse {
		return AllocateAndRun(TrapStackSize, f)
	}
	rs.inUse = true
	defer func() { rs.inUse = false }()
	return runOnStack(rs.words, f)
}

// AllocateAndRun allocates a size-byte stack and runs f on it, returning
// f's result unchanged.
//
// size must be 16-byte aligned and at least 4096 bytes.
func AllocateAndRun[R any](size int, f func() R) R {
	if size%16 != 0 {
		panic("fault: AllocateAndRun size must be a multiple of 16")
	}
	if size < 4096 {
		panic("fault: AllocateAndRun size must be at least 4096 bytes")
	}
	if !haveStackSwitch {
		return f()
	}
	return runOnStack(make([]uint64, size/8), f)
}
