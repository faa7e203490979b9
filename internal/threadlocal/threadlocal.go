// Package threadlocal provides per-OS-thread keyed storage that is safe to
// read and write from a signal handler.
//
// Go exposes no user-level thread-local storage: goroutines are not pinned
// to OS threads unless the goroutine itself calls runtime.LockOSThread, and
// even then the only stable per-thread identifier available is the kernel
// thread id. Callers pin goroutines to OS threads with runtime.LockOSThread
// before touching the signal-handler-adjacent state this core keeps per
// thread (the active unwind frame, the current code version stack, the
// SIGINT-observed flag, the boundary register save area, and the reserved
// fault-dispatch stack).
//
// A Map is a fixed-size open-addressed table whose slots are claimed with a
// CAS on the kernel thread id and never released. Lookups are a linear
// probe over atomic loads: no lock is taken and nothing is allocated, so a
// handler interrupting an arbitrary thread can read its own entries without
// risking a deadlock against the thread it preempted. The value fields of a
// slot are only ever touched by the thread that claimed it, so they need no
// atomics of their own.
package threadlocal

import (
	"fmt"
	"sync/atomic"
)

// numSlots bounds the number of distinct kernel thread ids that can ever
// hold a value in one Map. Slots are never released once claimed, so the
// probe sequence for a tid stays stable for the life of the process; a
// recycled tid lands back on the slot its predecessor claimed. Must be a
// power of two.
const numSlots = 1024

type slot[V any] struct {
	// tid is 0 while the slot is unclaimed. Claiming is the only
	// cross-thread transition; everything below it is owner-only.
	tid atomic.Int32

	present bool
	val     V
}

// Map is a lock-free, OS-thread-keyed store of values of type V.
//
// Callers must hold the OS thread locked (runtime.LockOSThread) for the
// duration of any sequence of operations that must observe a consistent
// per-thread value, since the key is derived from the kernel thread id of
// the calling goroutine at the moment of the call.
type Map[V any] struct {
	slots [numSlots]slot[V]
}

// NewMap returns an empty thread-local map.
func NewMap[V any]() *Map[V] {
	return &Map[V]{}
}

// CurrentTID returns the kernel thread id of the calling OS thread; the
// per-OS lookup lives in tid_*.go.
//
// The caller must have called runtime.LockOSThread first; otherwise the
// goroutine may be rescheduled onto a different OS thread between this call
// and any subsequent use of the returned id.
func CurrentTID() int32 {
	return currentTID()
}

func hashTID(tid int32) uint32 {
	// Knuth multiplicative hash; tids are small and sequential.
	return uint32(tid) * 2654435761
}

// findSlot probes for the slot claimed by tid. With claim set, an unclaimed
// slot encountered on the way is CAS-claimed for tid; without it, reaching
// an unclaimed slot means tid holds nothing (slots are never released, so
// probe chains never break).
func (m *Map[V]) findSlot(tid int32, claim bool) *slot[V] {
	h := hashTID(tid)
	for i := uint32(0); i < numSlots; i++ {
		s := &m.slots[(h+i)&(numSlots-1)]
		switch s.tid.Load() {
		case tid:
			return s
		case 0:
			if !claim {
				return nil
			}
			if s.tid.CompareAndSwap(0, tid) || s.tid.Load() == tid {
				return s
			}
			// Lost the claim race to another thread; keep probing.
		}
	}
	if claim {
		panic(fmt.Sprintf("threadlocal: slot table exhausted claiming tid %d", tid))
	}
	return nil
}

// Get returns the value stored for the current thread, if any.
func (m *Map[V]) Get() (V, bool) {
	return m.GetTID(currentTID())
}

// GetTID returns the value stored for the given thread id, if any. Reading
// another live thread's entry is racy; it exists for tests and for
// inspecting a thread's own id obtained earlier.
func (m *Map[V]) GetTID(tid int32) (V, bool) {
	var zero V
	s := m.findSlot(tid, false)
	if s == nil || !s.present {
		return zero, false
	}
	return s.val, true
}

// Set stores a value for the current thread.
func (m *Map[V]) Set(v V) {
	s := m.findSlot(currentTID(), true)
	s.val = v
	s.present = true
}

// Delete removes any value stored for the current thread. The slot claim is
// kept, so a later Set from the same thread (or a recycled tid) reuses it.
func (m *Map[V]) Delete() {
	s := m.findSlot(currentTID(), false)
	if s == nil {
		return
	}
	var zero V
	s.val = zero
	s.present = false
}
