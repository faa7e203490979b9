package fault

import (
	"sync/atomic"

	"github.com/wasmrt/rtfault/internal/rtlog"
	"github.com/wasmrt/rtfault/internal/threadlocal"
)

// interruptDelivered is the global "idle to delivered" flag in the SIGINT
// state machine. It is sequentially consistent: an Arm on the sentinel
// happens-before any subsequent guest memory access on any thread, so the
// flag's ordering is what linearizes the SIGINT, sentinel-arm,
// next-safepoint-fault chain.
var interruptDelivered atomic.Bool

// sigintObserved is the thread-local "was the most recent fault attributable
// to an external interrupt" flag.
var sigintObserved = threadlocal.NewMap[bool]()

// WasSigintTriggeredFault reports whether the most recent fault on the
// calling thread was attributable to an external interrupt: after
// CatchUnsafeUnwind returns a non-nil error, this is true iff that error is
// an *rterror.InstanceImageError produced via the SIGINT path.
func WasSigintTriggeredFault() bool {
	v, _ := sigintObserved.Get()
	return v
}

func clearSigintObserved() {
	sigintObserved.Set(false)
}

func markSigintObserved() {
	sigintObserved.Set(true)
}

// deliverInterrupt implements the SIGINT handler's half of the state
// machine: idle to delivered. A second delivery before the first is
// consumed by a sentinel fault (a second SIGINT arriving before the guest
// tripped the sentinel) means the guest is stuck and not reaching
// safepoints; it logs and aborts the process.
func deliverInterrupt() {
	if interruptDelivered.Swap(true) {
		rtlog.Fatalf("fault: received a second SIGINT before the first was observed by the guest; aborting")
	}
	Arm()
}

// consumeInterrupt implements the "delivered → observed" transition: called
// when the sentinel fault that the interrupt caused is itself observed. It
// reports whether the interrupt flag was set, and clears it either way.
func consumeInterrupt() bool {
	return interruptDelivered.Swap(false)
}
