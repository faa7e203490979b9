package fault

import "github.com/wasmrt/rtfault/internal/threadlocal"

// BoundaryRegisterPreservation holds the callee-saved registers as they
// were at the most recent host-to-guest boundary, per thread. It is five
// packed u64s in the order r15, r14, r13, r12, rbx, matched exactly by the
// generated-code ABI that reads it through GetBoundaryRegisterPreservation.
type BoundaryRegisterPreservation struct {
	R15 uint64
	R14 uint64
	R13 uint64
	R12 uint64
	RBX uint64
}

var boundaryAreas = threadlocal.NewMap[*BoundaryRegisterPreservation]()

// GetBoundaryRegisterPreservation returns the thread-local preservation area
// so generated code can save and restore callee-saved registers across the
// host/guest boundary.
//
// The returned pointer is stable across calls within a thread and distinct
// across threads: the same *BoundaryRegisterPreservation is handed back
// every time this is called from the same OS thread.
func GetBoundaryRegisterPreservation() *BoundaryRegisterPreservation {
	if area, ok := boundaryAreas.Get(); ok {
		return area
	}
	area := &BoundaryRegisterPreservation{}
	boundaryAreas.Set(area)
	return area
}
