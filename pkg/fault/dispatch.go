package fault

import (
	"fmt"
	"os"
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/wasmrt/rtfault/internal/rtlog"
	"github.com/wasmrt/rtfault/pkg/codeversion"
	"github.com/wasmrt/rtfault/pkg/rterror"
	"github.com/wasmrt/rtfault/pkg/stateimage"
)

// DispatchFault is the fault handler's entry point, invoked from the
// cgo-installed SA_SIGINFO handler for SIGFPE, SIGILL, SIGSEGV, SIGBUS, and
// SIGTRAP. It decodes the fault context, then runs the three dispatcher
// phases, unwinding via BeginUnsafeUnwind if any phase decides the fault
// cannot be resumed in place.
func DispatchFault(sig int, siginfo, ucontext unsafe.Pointer) {
	fault := decodeFaultContext(siginfo, ucontext)

	// Phase 1: inline breakpoint probe. Runs off the signal-alternate stack
	// since it may call into an arbitrary embedder breakpoint callback. The
	// dispatch stack was reserved by CatchUnsafeUnwind; nothing on this
	// path may allocate or take a lock.
	phase1 := runOnTrapStack(func() dispatchOutcome {
		handled, shouldUnwind, err := probeInlineBreakpoint(fault, hostArch)
		return dispatchOutcome{handled: handled, shouldUnwind: shouldUnwind, err: err}
	})
	if phase1.shouldUnwind {
		BeginUnsafeUnwind(unwindErrOrDefault(phase1.err))
	}
	if phase1.handled {
		return
	}

	// Phase 2 + 3: signal-specific handling, then classify-and-unwind.
	phase2 := runOnTrapStack(func() dispatchOutcome {
		shouldUnwind, err := dispatchSignalAndUnwind(sig, fault)
		return dispatchOutcome{shouldUnwind: shouldUnwind, err: err}
	})
	if phase2.shouldUnwind {
		BeginUnsafeUnwind(unwindErrOrDefault(phase2.err))
	}
}

// dispatchOutcome is the boxed result type passed back across
// AllocateAndRun's stack switch, since its generic parameter is a single
// type rather than a tuple.
type dispatchOutcome struct {
	handled      bool
	shouldUnwind bool
	err          error
}

func unwindErrOrDefault(err error) error {
	if err != nil {
		return err
	}
	return &rterror.FailedWithNoError{}
}

// probeInlineBreakpoint walks the active CodeVersions looking for one whose
// module recognizes an inline breakpoint at the fault's instruction
// pointer.
//
// Finding a CodeVersion whose range contains the IP ends the search either
// way: either the module decodes a breakpoint there and the fault is
// handled, or it doesn't and scanning stops without falling through to
// check other, unrelated CodeVersions.
func probeInlineBreakpoint(fault *FaultInfo, arch codeversion.Arch) (handled, shouldUnwind bool, unwindErr error) {
	ip := fault.IP.Get()
	versions := codeversion.Active()
	for i := len(versions) - 1; i >= 0; i-- {
		v := versions[i]
		if !v.Contains(ip) {
			continue
		}
		size, ok := v.Module.InlineBreakpointSize(arch)
		if !ok || ip+size > v.Base+v.TotalSize {
			break
		}
		bytes := unsafe.Slice((*byte)(unsafe.Pointer(uintptr(ip))), size)
		bp, ok := v.Module.DecodeInlineBreakpoint(arch, bytes)
		if !ok {
			break
		}
		if bp.Type == codeversion.InlineBreakpointMiddleware {
			if cb := currentBreakpoints()[ip]; cb != nil {
				if err := cb(BreakpointInfo{Fault: fault}); err != nil {
					shouldUnwind = true
					unwindErr = err
				}
			}
		}
		fault.IP.Set(ip + size)
		return true, shouldUnwind, unwindErr
	}
	return false, false, nil
}

// dispatchSignalAndUnwind handles the signal-specific cases (SIGTRAP
// breakpoints, sentinel suspension), then classifies whatever remains
// against the exception tables and decides the unwind payload.
func dispatchSignalAndUnwind(sig int, fault *FaultInfo) (shouldUnwind bool, unwindErr error) {
	isSuspendSignal := false
	clearSigintObserved()

	switch sig {
	case int(unix.SIGTRAP):
		if cb := currentBreakpoints()[fault.IP.Get()]; cb != nil {
			if err := cb(BreakpointInfo{Fault: fault}); err != nil {
				return true, err
			}
			return false, nil
		}
	case int(unix.SIGSEGV), int(unix.SIGBUS):
		if fault.FaultingAddr == Sentinel() {
			isSuspendSignal = true
			Disarm()
			if consumeInterrupt() {
				markSigintObserved()
			}
		}
	}

	esImage, err := readStack(fault)
	if err != nil {
		rtlog.Fatalf("fault: stack walk failed on a trap with no resumable state: %v", err)
	}

	if isSuspendSignal {
		image := walker.BuildInstanceImage(currentCtx(), esImage)
		return true, &rterror.InstanceImageError{Image: image}
	}

	esImage.PrintBacktraceIfNeeded(os.Stderr)

	if code, ok := lookupExceptionCode(fault.IP.Get()); ok {
		return true, &rterror.TrapCodeError{Code: rterror.TrapCode(code)}
	}

	return true, &rterror.FailedWithNoError{}
}

// readStack delegates to the registered StackWalker, fataling if none was
// registered: that is a setup error, not guest misbehavior.
func readStack(fault *FaultInfo) (*stateimage.ExecutionStateImage, error) {
	if walker == nil {
		rtlog.Fatalf("fault: no StackWalker registered; call SetStackWalker before entering guest code")
	}
	rsp, ok := fault.StackPointer()
	if !ok {
		return nil, fmt.Errorf("fault: no stack pointer captured in fault context")
	}
	return walker.ReadStack(uintptr(rsp), fault.KnownRegisters, fault.IP.Get(), 0)
}

// lookupExceptionCode searches the active CodeVersions' exception tables for
// an entry covering ip, most-recently-entered first.
func lookupExceptionCode(ip uint64) (uint32, bool) {
	versions := codeversion.Active()
	for i := len(versions) - 1; i >= 0; i-- {
		v := versions[i]
		table := v.Module.ExceptionTable()
		if table == nil || ip < v.Base || ip >= v.Base+v.TotalSize {
			continue
		}
		if code, ok := table[ip-v.Base]; ok {
			return code, true
		}
	}
	return 0, false
}
