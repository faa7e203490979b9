package fault

// jmpBuf is the opaque non-local-return buffer populated by archSetjmp and
// consumed by archLongjmp. It must survive being jumped out of and back
// across native frames; no Go-level deferred calls run on that path, the
// same contract libc's jmp_buf carries.
//
// Layout (amd64): saved SP, saved return PC, then the callee-saved GPRs
// (BX, BP, R12-R15). Layout (arm64): saved SP, saved return PC (LR), then
// X19-X28 (X28 is the g register) and the frame pointer X29. Both fit
// within the fixed-size array; unused trailing slots are simply not
// written.
type jmpBuf [16]uint64
