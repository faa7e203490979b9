package fault

import (
	"errors"
	"runtime"
	"testing"
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/wasmrt/rtfault/pkg/codeversion"
	"github.com/wasmrt/rtfault/pkg/rterror"
	"github.com/wasmrt/rtfault/pkg/stateimage"
)

type testModule struct {
	table codeversion.ExceptionTable
}

func (testModule) InlineBreakpointSize(codeversion.Arch) (uint64, bool) { return 0, false }

func (testModule) DecodeInlineBreakpoint(codeversion.Arch, []byte) (codeversion.InlineBreakpoint, bool) {
	return codeversion.InlineBreakpoint{}, false
}

func (m testModule) ExceptionTable() codeversion.ExceptionTable { return m.table }

type testWalker struct{}

func (testWalker) ReadStack(rsp uintptr, known [32]*uint64, ip uint64, maxDepth int) (*stateimage.ExecutionStateImage, error) {
	return &stateimage.ExecutionStateImage{}, nil
}

func (testWalker) BuildInstanceImage(ctx stateimage.Ctx, state *stateimage.ExecutionStateImage) *stateimage.InstanceImage {
	return &stateimage.InstanceImage{State: *state}
}

type testCtx struct {
	sentinel uintptr
}

func (c testCtx) InterruptSignalMem() uintptr { return c.sentinel }

// TestLookupExceptionCodeClassifiesByOffset exercises the dispatcher's
// classification lookup directly against a registered CodeVersion, since
// producing a live fault at a chosen instruction pointer would require an
// actual JIT.
func TestLookupExceptionCodeClassifiesByOffset(t *testing.T) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	codeversion.Push(codeversion.CodeVersion{
		Base:      0x10000,
		TotalSize: 0x1000,
		Module: testModule{table: codeversion.ExceptionTable{
			0x10: uint32(rterror.TrapIntegerDivisionByZero),
		}},
	})
	defer codeversion.Pop()

	code, ok := lookupExceptionCode(0x10000 + 0x10)
	if !ok || rterror.TrapCode(code) != rterror.TrapIntegerDivisionByZero {
		t.Fatalf("lookupExceptionCode = (%v, %v), want (TrapIntegerDivisionByZero, true)", code, ok)
	}

	if _, ok := lookupExceptionCode(0x10000 + 0x20); ok {
		t.Fatalf("lookupExceptionCode matched an offset with no table entry")
	}

	if _, ok := lookupExceptionCode(0x20000); ok {
		t.Fatalf("lookupExceptionCode matched an ip outside the registered range")
	}
}

// inlineBPModule recognizes a fixed-size inline breakpoint everywhere in
// its range, or nowhere, depending on decodes.
type inlineBPModule struct {
	size      uint64
	decodes   bool
	consulted *bool
}

func (m inlineBPModule) InlineBreakpointSize(codeversion.Arch) (uint64, bool) {
	return m.size, true
}

func (m inlineBPModule) DecodeInlineBreakpoint(_ codeversion.Arch, b []byte) (codeversion.InlineBreakpoint, bool) {
	if m.consulted != nil {
		*m.consulted = true
	}
	if !m.decodes || uint64(len(b)) != m.size {
		return codeversion.InlineBreakpoint{}, false
	}
	return codeversion.InlineBreakpoint{Type: codeversion.InlineBreakpointMiddleware}, true
}

func (inlineBPModule) ExceptionTable() codeversion.ExceptionTable { return nil }

// fakeCode registers a byte slice as a CodeVersion so the inline breakpoint
// probe has real memory to decode from, and returns its base address.
func fakeCode(t *testing.T, size int, m codeversion.RunnableModule) (uint64, func()) {
	t.Helper()
	code := make([]byte, size)
	base := uint64(uintptr(unsafe.Pointer(&code[0])))
	codeversion.Push(codeversion.CodeVersion{Base: base, TotalSize: uint64(size), Module: m})
	cleanup := func() {
		codeversion.Pop()
		runtime.KeepAlive(code)
	}
	return base, cleanup
}

// TestProbeInlineBreakpointAdvancesIP covers the resume path: a decoded
// inline breakpoint whose callback succeeds leaves IP advanced past the
// breakpoint bytes and the fault handled in place.
func TestProbeInlineBreakpointAdvancesIP(t *testing.T) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	base, cleanup := fakeCode(t, 64, inlineBPModule{size: 5, decodes: true})
	defer cleanup()

	called := false
	frames.Set(&unwindFrame{breakpoints: BreakpointMap{
		base: func(info BreakpointInfo) error {
			called = true
			if info.Fault == nil {
				t.Errorf("BreakpointInfo.Fault is nil")
			}
			return nil
		},
	}})
	defer frames.Delete()

	ipSlot := base
	fault := &FaultInfo{IP: newIPCell(&ipSlot)}

	handled, shouldUnwind, err := probeInlineBreakpoint(fault, hostArch)
	if !handled || shouldUnwind || err != nil {
		t.Fatalf("probe = (%v, %v, %v), want (true, false, nil)", handled, shouldUnwind, err)
	}
	if !called {
		t.Fatalf("breakpoint callback was not invoked")
	}
	if ipSlot != base+5 {
		t.Fatalf("IP = %#x, want base+5 = %#x", ipSlot, base+5)
	}
}

// TestProbeInlineBreakpointCallbackError covers promotion to unwind: the
// callback's error becomes the unwind payload.
func TestProbeInlineBreakpointCallbackError(t *testing.T) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	base, cleanup := fakeCode(t, 64, inlineBPModule{size: 5, decodes: true})
	defer cleanup()

	cbErr := errors.New("middleware rejected")
	frames.Set(&unwindFrame{breakpoints: BreakpointMap{
		base: func(BreakpointInfo) error { return cbErr },
	}})
	defer frames.Delete()

	ipSlot := base
	fault := &FaultInfo{IP: newIPCell(&ipSlot)}

	handled, shouldUnwind, err := probeInlineBreakpoint(fault, hostArch)
	if !handled || !shouldUnwind || !errors.Is(err, cbErr) {
		t.Fatalf("probe = (%v, %v, %v), want (true, true, %v)", handled, shouldUnwind, err, cbErr)
	}
}

// TestProbeInlineBreakpointStopsScanning pins the scan-termination rule:
// once a CodeVersion's range contains the IP, a failed decode ends the
// scan instead of falling through to other versions.
func TestProbeInlineBreakpointStopsScanning(t *testing.T) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	deeperConsulted := false
	code := make([]byte, 64)
	base := uint64(uintptr(unsafe.Pointer(&code[0])))

	// Deeper entry would decode, but must never be consulted.
	codeversion.Push(codeversion.CodeVersion{
		Base: base, TotalSize: 64,
		Module: inlineBPModule{size: 5, decodes: true, consulted: &deeperConsulted},
	})
	// Top of stack contains the IP and refuses to decode.
	codeversion.Push(codeversion.CodeVersion{
		Base: base, TotalSize: 64,
		Module: inlineBPModule{size: 5, decodes: false},
	})
	defer func() {
		codeversion.Pop()
		codeversion.Pop()
		runtime.KeepAlive(code)
	}()

	ipSlot := base
	fault := &FaultInfo{IP: newIPCell(&ipSlot)}

	handled, shouldUnwind, err := probeInlineBreakpoint(fault, hostArch)
	if handled || shouldUnwind || err != nil {
		t.Fatalf("probe = (%v, %v, %v), want (false, false, nil)", handled, shouldUnwind, err)
	}
	if deeperConsulted {
		t.Fatalf("scan fell through to a deeper CodeVersion after a failed decode")
	}
	if ipSlot != base {
		t.Fatalf("IP moved to %#x on an unhandled probe", ipSlot)
	}
}

// TestDispatchSigtrapBreakpointResume checks that a SIGTRAP at a
// registered breakpoint address whose callback succeeds resumes at the
// same IP without unwinding.
func TestDispatchSigtrapBreakpointResume(t *testing.T) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	var ipSlot uint64 = 0xbeef00
	called := false
	frames.Set(&unwindFrame{breakpoints: BreakpointMap{
		ipSlot: func(BreakpointInfo) error {
			called = true
			return nil
		},
	}})
	defer frames.Delete()

	fault := &FaultInfo{IP: newIPCell(&ipSlot)}
	shouldUnwind, err := dispatchSignalAndUnwind(int(unix.SIGTRAP), fault)
	if shouldUnwind || err != nil {
		t.Fatalf("dispatch = (%v, %v), want (false, nil)", shouldUnwind, err)
	}
	if !called {
		t.Fatalf("SIGTRAP breakpoint callback was not invoked")
	}
	if ipSlot != 0xbeef00 {
		t.Fatalf("IP = %#x, want unchanged 0xbeef00", ipSlot)
	}
}

// TestDispatchSigtrapBreakpointError checks the SIGTRAP path when the
// callback fails: its error is the unwind payload.
func TestDispatchSigtrapBreakpointError(t *testing.T) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	var ipSlot uint64 = 0xbeef08
	cbErr := errors.New("patching failed")
	frames.Set(&unwindFrame{breakpoints: BreakpointMap{
		ipSlot: func(BreakpointInfo) error { return cbErr },
	}})
	defer frames.Delete()

	fault := &FaultInfo{IP: newIPCell(&ipSlot)}
	shouldUnwind, err := dispatchSignalAndUnwind(int(unix.SIGTRAP), fault)
	if !shouldUnwind || !errors.Is(err, cbErr) {
		t.Fatalf("dispatch = (%v, %v), want (true, %v)", shouldUnwind, err, cbErr)
	}
}
