package codeversion

import (
	"runtime"
	"testing"
)

type stubModule struct {
	bpSize uint64
	bpOK   bool
	table  ExceptionTable
}

func (m stubModule) InlineBreakpointSize(Arch) (uint64, bool) { return m.bpSize, m.bpOK }
func (m stubModule) DecodeInlineBreakpoint(Arch, []byte) (InlineBreakpoint, bool) {
	return InlineBreakpoint{}, false
}
func (m stubModule) ExceptionTable() ExceptionTable { return m.table }

func TestContains(t *testing.T) {
	v := CodeVersion{Base: 0x1000, TotalSize: 0x100}
	tests := []struct {
		ip   uint64
		want bool
	}{
		{0x0fff, false},
		{0x1000, true},
		{0x10ff, true},
		{0x1100, false},
	}
	for _, tt := range tests {
		if got := v.Contains(tt.ip); got != tt.want {
			t.Errorf("Contains(%#x) = %v, want %v", tt.ip, got, tt.want)
		}
	}
}

func TestPushPopActiveLIFOOrder(t *testing.T) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	if _, ok := Pop(); ok {
		t.Fatalf("Pop on an empty stack returned ok=true")
	}

	first := CodeVersion{Base: 0x1000, TotalSize: 0x100, Module: stubModule{}}
	second := CodeVersion{Base: 0x2000, TotalSize: 0x200, Module: stubModule{}}

	Push(first)
	Push(second)

	active := Active()
	if len(active) != 2 {
		t.Fatalf("len(Active()) = %d, want 2", len(active))
	}
	if active[0].Base != first.Base || active[1].Base != second.Base {
		t.Fatalf("Active() = %+v, want push order with the most recent entry last", active)
	}

	popped, ok := Pop()
	if !ok || popped.Base != second.Base {
		t.Fatalf("Pop() = (%+v, %v), want (second, true)", popped, ok)
	}
	popped, ok = Pop()
	if !ok || popped.Base != first.Base {
		t.Fatalf("Pop() = (%+v, %v), want (first, true)", popped, ok)
	}
	if _, ok := Pop(); ok {
		t.Fatalf("Pop after draining the stack returned ok=true")
	}
}

func TestActiveIsPerThread(t *testing.T) {
	done := make(chan []CodeVersion)
	go func() {
		runtime.LockOSThread()
		defer runtime.UnlockOSThread()
		Push(CodeVersion{Base: 0x9000, TotalSize: 0x10, Module: stubModule{}})
		done <- Active()
		Pop()
	}()
	otherThreadActive := <-done
	if len(otherThreadActive) != 1 || otherThreadActive[0].Base != 0x9000 {
		t.Fatalf("unexpected Active() on other thread: %+v", otherThreadActive)
	}

	runtime.LockOSThread()
	defer runtime.UnlockOSThread()
	if active := Active(); len(active) != 0 {
		t.Fatalf("Active() on this thread should be unaffected by another thread's Push, got %+v", active)
	}
}
