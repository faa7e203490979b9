package fault

import (
	"sync"
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/wasmrt/rtfault/internal/rtlog"
)

// sentinelSize is the size of the interrupt sentinel page.
const sentinelSize = 4096

var (
	sentinelOnce sync.Once
	sentinelMem  []byte
)

// sentinel returns the process-global interrupt sentinel page address,
// allocating it on first use. The page is never released and its bytes are
// never read for value: only its protection state carries meaning.
func sentinel() uintptr {
	sentinelOnce.Do(func() {
		mem, err := unix.Mmap(-1, 0, sentinelSize, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_PRIVATE|unix.MAP_ANON)
		if err != nil {
			rtlog.Fatalf("fault: cannot allocate interrupt sentinel page: %v", err)
		}
		sentinelMem = mem
	})
	if sentinelMem == nil {
		return 0
	}
	return uintptr(unsafe.Pointer(&sentinelMem[0]))
}

// Sentinel returns the process-global interrupt sentinel page address. The
// JIT emits a load or store from this page at each safepoint.
func Sentinel() uintptr {
	return sentinel()
}

// Arm sets the process-global sentinel page to PROT_NONE, so that the next
// guest read or write at a safepoint raises a fault the dispatcher
// classifies as a cooperative suspension request.
//
// Arm aborts the process on mprotect failure; a sentinel that cannot be
// armed means interrupts can never be delivered, which is not recoverable.
func Arm() {
	armAddr(sentinel())
}

// Disarm restores the process-global sentinel page to PROT_READ|PROT_WRITE.
// Disarming twice, or disarming an already-disarmed page, is idempotent and
// safe: the page carries no value, only a protection state.
func Disarm() {
	disarmAddr(sentinel())
}

// ArmCtx sets to PROT_NONE the sentinel page address recorded in a single
// instance's context, used to interrupt one specific instance rather than
// the whole process.
func ArmCtx(addr uintptr) {
	armAddr(addr)
}

// addrToSlice builds a []byte view over size bytes of memory at addr, for
// passing to unix.Mprotect. addr may name memory this package did not
// allocate (a per-instance copy of the sentinel address); the caller is
// trusted to pass a valid, page-sized, page-aligned address, the same
// contract libc's mprotect(2) has.
func addrToSlice(addr uintptr) []byte {
	if addr == 0 {
		return nil
	}
	return unsafe.Slice((*byte)(unsafe.Pointer(addr)), sentinelSize)
}

func armAddr(addr uintptr) {
	if err := unix.Mprotect(addrToSlice(addr), unix.PROT_NONE); err != nil {
		rtlog.Fatalf("fault: mprotect(PROT_NONE) failed on interrupt sentinel: %v", err)
	}
}

func disarmAddr(addr uintptr) {
	if err := unix.Mprotect(addrToSlice(addr), unix.PROT_READ|unix.PROT_WRITE); err != nil {
		rtlog.Fatalf("fault: mprotect(PROT_READ|PROT_WRITE) failed on interrupt sentinel: %v", err)
	}
}
