//go:build linux || freebsd || darwin

package fault

/*
#include <signal.h>

int rtfault_install_trap_handler(int sig);
int rtfault_install_sigint_handler(struct sigaction *old);
int rtfault_handler_is_dfl(struct sigaction *act);
int rtfault_handler_is_ign(struct sigaction *act);
void rtfault_invoke_prev_handler(struct sigaction *act, int sig, siginfo_t *info, void *ucontext);
int rtfault_raise_default(int sig);
*/
import "C"

import (
	"sync"
	"unsafe"

	"github.com/wasmrt/rtfault/internal/rtlog"
)

var installOnce sync.Once

// prevSigintAction records whatever SIGINT disposition was installed before
// EnsureSighandler ran, so goSigintHandler can chain to it.
var prevSigintAction C.struct_sigaction

// EnsureSighandler installs this core's signal handlers exactly once per
// process. Repeated calls are no-ops; no handler is ever uninstalled.
func EnsureSighandler() {
	installOnce.Do(installSighandler)
}

func installSighandler() {
	for _, sig := range []C.int{C.SIGFPE, C.SIGILL, C.SIGSEGV, C.SIGBUS, C.SIGTRAP} {
		if C.rtfault_install_trap_handler(sig) != 0 {
			rtlog.Fatalf("fault: sigaction failed installing trap handler for signal %d", int(sig))
		}
	}
	if C.rtfault_install_sigint_handler(&prevSigintAction) != 0 {
		rtlog.Fatalf("fault: sigaction failed installing SIGINT handler")
	}
}

//export goFaultTrapHandler
func goFaultTrapHandler(sig C.int, info *C.siginfo_t, ucontext unsafe.Pointer) {
	DispatchFault(int(sig), unsafe.Pointer(info), ucontext)
}

// goSigintHandler implements the SIGINT side of the state machine: mark the
// interrupt delivered and arm the sentinel, then chain to whatever handler
// was previously installed so existing application SIGINT behavior is
// preserved.
//
//export goSigintHandler
func goSigintHandler(sig C.int, info *C.siginfo_t, ucontext unsafe.Pointer) {
	deliverInterrupt()

	switch {
	case C.rtfault_handler_is_dfl(&prevSigintAction) != 0:
		C.rtfault_raise_default(sig)
	case C.rtfault_handler_is_ign(&prevSigintAction) != 0:
		// SigIgn: nothing to chain to.
	default:
		C.rtfault_invoke_prev_handler(&prevSigintAction, sig, info, ucontext)
	}
}
