package fault

// archSetjmp records a non-local return point into buf and returns 0.
// When archLongjmp is later called with the same buf, execution resumes at
// this call site as if archSetjmp had returned a second time, with the
// value passed to archLongjmp.
//
// Implemented in jmp_amd64.s / jmp_arm64.s because Go's panic/recover
// cannot cross an alternate-stack signal-handler invocation with zero
// Go-runtime bookkeeping in between.
func archSetjmp(buf *jmpBuf) int32

// archLongjmp performs the non-local jump back to the point recorded by
// archSetjmp into the same buf, making that earlier call return val
// instead of 0. It does not return.
func archLongjmp(buf *jmpBuf, val int32)
