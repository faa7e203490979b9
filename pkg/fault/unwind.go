package fault

import (
	"runtime"

	"github.com/wasmrt/rtfault/internal/rtlog"
	"github.com/wasmrt/rtfault/internal/threadlocal"
)

// BreakpointInfo is passed to a registered breakpoint callback.
type BreakpointInfo struct {
	// Fault is the FaultInfo describing the trap that triggered the
	// breakpoint, non-nil whenever a callback runs.
	Fault *FaultInfo
}

// BreakpointCallback is invoked when execution traps at a registered
// address. Returning nil means "resume past the breakpoint"; returning a
// non-nil error means "unwind now" with that error.
type BreakpointCallback func(BreakpointInfo) error

// BreakpointMap maps a code address to the callback registered for it.
type BreakpointMap map[uint64]BreakpointCallback

// unwindFrame is a scoped non-local-return target: at most one active per
// thread, stack-linked so the previous frame can be restored when this one
// exits.
type unwindFrame struct {
	buf         jmpBuf
	breakpoints BreakpointMap
	payload     error
}

// frames holds the current unwind frame per OS thread. An entry exists if
// and only if that thread is inside a CatchUnsafeUnwind dynamic scope.
var frames = threadlocal.NewMap[*unwindFrame]()

// CatchUnsafeUnwind pushes a fresh unwind frame, runs f, and pops the frame
// back off.
//
// If f returns normally, CatchUnsafeUnwind returns its result and a nil
// error. If a signal handler running on this thread calls BeginUnsafeUnwind
// while f is on the stack (directly, or via the fault dispatcher deciding
// to unwind), control resumes here instead, and CatchUnsafeUnwind returns
// the zero value of R along with the error that was passed to
// BeginUnsafeUnwind.
//
// The calling goroutine is pinned to its OS thread for the duration of the
// call: the unwind frame, like all per-entry state this core keeps, is
// thread-local, and a signal raised by f runs on this same OS thread.
func CatchUnsafeUnwind[R any](f func() (R, error), breakpoints BreakpointMap) (R, error) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	// Reserve the fault-dispatch stack while allocating is still allowed;
	// the signal handler that may fire inside f cannot.
	reserveTrapStack()

	prev, hadPrev := frames.Get()
	frame := &unwindFrame{breakpoints: breakpoints}
	frames.Set(frame)
	defer func() {
		if hadPrev {
			frames.Set(prev)
		} else {
			frames.Delete()
		}
	}()

	if archSetjmp(&frame.buf) != 0 {
		err := frame.payload
		frame.payload = nil
		var zero R
		return zero, err
	}

	return f()
}

// BeginUnsafeUnwind moves e into the current thread's unwind payload and
// performs the non-local jump back to the point CatchUnsafeUnwind recorded.
// It never returns.
//
// Calling BeginUnsafeUnwind outside an active CatchUnsafeUnwind scope is a
// programmer error and is fatal: it logs and aborts the process rather than
// dereferencing a nil frame.
func BeginUnsafeUnwind(e error) {
	frame, ok := frames.Get()
	if !ok {
		rtlog.Fatalf("fault: begin_unsafe_unwind called with no active catch_unsafe_unwind scope")
	}
	frame.payload = e
	archLongjmp(&frame.buf, 1)
}

// currentBreakpoints returns the breakpoint map registered for the calling
// thread's active unwind scope, or nil if there is none or it registered no
// breakpoints.
func currentBreakpoints() BreakpointMap {
	frame, ok := frames.Get()
	if !ok {
		return nil
	}
	return frame.breakpoints
}
