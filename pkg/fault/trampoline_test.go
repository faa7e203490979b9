package fault

import (
	"runtime"
	"testing"
)

func TestAllocateAndRunReturnsValueAcrossSizes(t *testing.T) {
	for size := 4096; size <= 1<<20; size *= 2 {
		got := AllocateAndRun(size, func() int { return 42 })
		if got != 42 {
			t.Fatalf("AllocateAndRun(%d) = %d, want 42", size, got)
		}
	}
}

func TestAllocateAndRunStructResult(t *testing.T) {
	type pair struct {
		a uint64
		b string
	}
	got := AllocateAndRun(TrapStackSize, func() pair {
		return pair{a: 7, b: "seven"}
	})
	if got.a != 7 || got.b != "seven" {
		t.Fatalf("AllocateAndRun returned %+v, want {7 seven}", got)
	}
}

func TestAllocateAndRunNested(t *testing.T) {
	got := AllocateAndRun(1<<20, func() int {
		return AllocateAndRun(8192, func() int { return 99 })
	})
	if got != 99 {
		t.Fatalf("nested AllocateAndRun = %d, want 99", got)
	}
}

func TestAllocateAndRunRejectsBadSizes(t *testing.T) {
	mustPanic := func(name string, f func()) {
		defer func() {
			if recover() == nil {
				t.Errorf("%s did not panic", name)
			}
		}()
		f()
	}
	mustPanic("unaligned size", func() {
		AllocateAndRun(4097, func() int { return 0 })
	})
	mustPanic("undersized stack", func() {
		AllocateAndRun(1024, func() int { return 0 })
	})
}

func TestRunOnTrapStackReusesReservation(t *testing.T) {
	if !haveStackSwitch {
		t.Skip("no stack switch on this architecture")
	}
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	reserveTrapStack()
	rs1, ok := trapStacks.Get()
	if !ok {
		t.Fatalf("reserveTrapStack left no reservation")
	}
	reserveTrapStack()
	rs2, _ := trapStacks.Get()
	if rs1 != rs2 {
		t.Fatalf("reserveTrapStack reallocated an existing reservation")
	}

	for i := 0; i < 3; i++ {
		if got := runOnTrapStack(func() int { return 11 + i }); got != 11+i {
			t.Fatalf("runOnTrapStack = %d, want %d", got, 11+i)
		}
	}
	if rs1.inUse {
		t.Fatalf("reserved stack still marked in use after runOnTrapStack returned")
	}
}

func TestRunOnTrapStackNestedFallsBack(t *testing.T) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	reserveTrapStack()
	got := runOnTrapStack(func() int {
		return runOnTrapStack(func() int { return 23 })
	})
	if got != 23 {
		t.Fatalf("nested runOnTrapStack = %d, want 23", got)
	}
}
