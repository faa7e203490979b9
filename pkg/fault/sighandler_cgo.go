//go:build linux || freebsd || darwin

package fault

// The C helper definitions live here rather than in sighandler.go because
// cgo forbids definitions in the preamble of a file carrying //export
// directives; sighandler.go declares these as extern.

/*
#include <signal.h>

extern void goFaultTrapHandler(int sig, siginfo_t *info, void *ucontext);
extern void goSigintHandler(int sig, siginfo_t *info, void *ucontext);

int rtfault_install_trap_handler(int sig) {
	struct sigaction sa;
	sa.sa_sigaction = goFaultTrapHandler;
	sa.sa_flags = SA_SIGINFO | SA_ONSTACK;
	sigemptyset(&sa.sa_mask);
	return sigaction(sig, &sa, NULL);
}

int rtfault_install_sigint_handler(struct sigaction *old) {
	struct sigaction sa;
	sa.sa_sigaction = goSigintHandler;
	sa.sa_flags = SA_SIGINFO | SA_ONSTACK;
	sigemptyset(&sa.sa_mask);
	return sigaction(SIGINT, &sa, old);
}

int rtfault_handler_is_dfl(struct sigaction *act) {
	return !(act->sa_flags & SA_SIGINFO) && act->sa_handler == SIG_DFL;
}

int rtfault_handler_is_ign(struct sigaction *act) {
	return !(act->sa_flags & SA_SIGINFO) && act->sa_handler == SIG_IGN;
}

void rtfault_invoke_prev_handler(struct sigaction *act, int sig, siginfo_t *info, void *ucontext) {
	if (act->sa_flags & SA_SIGINFO) {
		if (act->sa_sigaction != NULL) {
			act->sa_sigaction(sig, info, ucontext);
		}
	} else if (act->sa_handler != NULL) {
		act->sa_handler(sig);
	}
}

// Reinstalls the platform default disposition and re-raises, the same
// two-step SIG_DFL re-delivery every signal-chaining library uses: a
// default handler can't be called directly, only triggered by raising the
// signal again with the default action back in place.
int rtfault_raise_default(int sig) {
	struct sigaction sa;
	sa.sa_handler = SIG_DFL;
	sa.sa_flags = 0;
	sigemptyset(&sa.sa_mask);
	if (sigaction(sig, &sa, NULL) != 0) {
		return -1;
	}
	return raise(sig);
}
*/
import "C"
