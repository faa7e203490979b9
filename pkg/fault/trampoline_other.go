//go:build !amd64

package fault

const haveStackSwitch = false

// runOnStack runs f directly. The alternate-stack trampoline is
// x86_64-only; on other hosts there is no hand-written assembly stack
// switch, so this degenerates to an ordinary call.
func runOnStack[R any](_ []uint64, f func() R) R {
	return f()
}
