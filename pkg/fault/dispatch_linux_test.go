//go:build linux && cgo

package fault

import (
	"runtime"
	"sync"
	"testing"
	"time"
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/wasmrt/rtfault/pkg/rterror"
)

var setupHandlerOnce sync.Once

func setupTestHandler(t *testing.T) {
	t.Helper()
	setupHandlerOnce.Do(func() {
		EnsureSighandler()
		SetStackWalker(testWalker{})
	})
}

// TestDispatchUnclassifiedSegv drives a real SIGSEGV through the installed
// cgo signal handler and DispatchFault, with no CodeVersion active, and
// checks that CatchUnsafeUnwind surfaces the unclassified-trap error.
func TestDispatchUnclassifiedSegv(t *testing.T) {
	setupTestHandler(t)
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	_, err := CatchUnsafeUnwind(func() (struct{}, error) {
		var p *int
		*p = 1
		return struct{}{}, nil
	}, nil)

	if _, ok := err.(*rterror.FailedWithNoError); !ok {
		t.Fatalf("err = %v (%T), want *rterror.FailedWithNoError", err, err)
	}
}

// TestDispatchSentinelSuspend arms the process sentinel via a Ctx whose
// InterruptSignalMem aliases the global sentinel page, raises SIGINT from a
// second goroutine pinned to its own OS thread, and checks that the
// resulting fault on the armed page is classified as a cooperative
// suspension and surfaced as an *rterror.InstanceImageError, with
// WasSigintTriggeredFault reporting true.
func TestDispatchSentinelSuspend(t *testing.T) {
	setupTestHandler(t)
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	ctx := testCtx{sentinel: Sentinel()}
	SetCurrentCtx(ctx)
	defer ClearCurrentCtx()

	tid := unix.Gettid()
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		time.Sleep(10 * time.Millisecond)
		if err := unix.Tgkill(unix.Getpid(), tid, unix.SIGINT); err != nil {
			t.Errorf("tgkill failed: %v", err)
		}
	}()

	ArmCtx(ctx.InterruptSignalMem())

	_, err := CatchUnsafeUnwind(func() (struct{}, error) {
		mem := (*byte)(unsafe.Pointer(ctx.InterruptSignalMem()))
		for i := 0; i < 1000; i++ {
			_ = *mem
		}
		return struct{}{}, nil
	}, nil)
	wg.Wait()

	imgErr, ok := err.(*rterror.InstanceImageError)
	if !ok {
		t.Fatalf("err = %v (%T), want *rterror.InstanceImageError", err, err)
	}
	if imgErr.Image == nil {
		t.Fatalf("InstanceImageError.Image is nil")
	}
	if !WasSigintTriggeredFault() {
		t.Fatalf("WasSigintTriggeredFault() = false after a sentinel-attributed suspend")
	}
}
