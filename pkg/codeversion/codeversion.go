// Package codeversion tracks the set of JIT-compiled modules currently
// entered on the calling thread.
//
// The code generator itself (the compiler that produces the machine code,
// the machine-state map, and the optional exception and inline-breakpoint
// tables) lives elsewhere. This package only holds the narrow capability
// surface the fault dispatcher needs from a compiled module, plus the
// thread-local, LIFO-ordered stack of currently active modules that
// Push/Pop bracket each entry into compiled code.
package codeversion

import (
	"github.com/wasmrt/rtfault/internal/threadlocal"
)

// Arch identifies a host CPU architecture, used to select the inline
// breakpoint encoding a RunnableModule understands.
type Arch int

const (
	ArchX64 Arch = iota
	ArchAarch64
)

// InlineBreakpointType is the kind of inline breakpoint a RunnableModule
// decoded. Middleware is the only variant a module can currently produce.
type InlineBreakpointType int

const (
	InlineBreakpointMiddleware InlineBreakpointType = iota
)

// InlineBreakpoint is a decoded inline breakpoint: a short byte sequence
// emitted by the JIT that traps when executed.
type InlineBreakpoint struct {
	Type InlineBreakpointType
}

// ExceptionTable maps a code offset (relative to a CodeVersion's base) to
// the trap code that should be reported when a fault's instruction pointer
// lands there.
type ExceptionTable map[uint64]uint32

// RunnableModule is the capability surface the fault dispatcher needs from a
// compiled module: enough to recognize and decode an inline breakpoint, and
// to classify a fault address against an exception table. Everything else
// about the module (its actual machine code, its linkage, its source
// mapping) belongs to the out-of-scope code generator.
type RunnableModule interface {
	// InlineBreakpointSize returns the byte length of an inline breakpoint
	// encoding for the given architecture, or ok=false if this module does
	// not support inline breakpoints on that architecture.
	InlineBreakpointSize(arch Arch) (size uint64, ok bool)

	// DecodeInlineBreakpoint attempts to decode an inline breakpoint from
	// the given bytes (of length InlineBreakpointSize(arch)) at the given
	// architecture. It returns ok=false if the bytes do not encode one.
	DecodeInlineBreakpoint(arch Arch, bytes []byte) (bp InlineBreakpoint, ok bool)

	// ExceptionTable returns this module's offset→trap-code table, or nil
	// if it does not carry one.
	ExceptionTable() ExceptionTable
}

// CodeVersion is one compiled module currently entered on this thread.
type CodeVersion struct {
	// Base is the module's code base address.
	Base uint64
	// TotalSize is the module's code size in bytes.
	TotalSize uint64
	// Module offers the capability queries the dispatcher needs.
	Module RunnableModule
}

// Contains reports whether ip falls within this version's code range.
func (v CodeVersion) Contains(ip uint64) bool {
	return ip >= v.Base && ip < v.Base+v.TotalSize
}

// stack is the thread-local, LIFO sequence of CodeVersions currently
// entered on each thread; Push and Pop bracket every entry into compiled
// code.
var stack = threadlocal.NewMap[[]CodeVersion]()

// Push registers a CodeVersion as entered on the calling thread. The
// embedder calls this immediately before entering the corresponding
// compiled code.
func Push(v CodeVersion) {
	versions, _ := stack.Get()
	stack.Set(append(versions, v))
}

// Pop removes and returns the most recently pushed CodeVersion for the
// calling thread, or the zero value and false if none is active.
func Pop() (CodeVersion, bool) {
	versions, ok := stack.Get()
	if !ok || len(versions) == 0 {
		return CodeVersion{}, false
	}
	last := versions[len(versions)-1]
	stack.Set(versions[:len(versions)-1])
	return last, true
}

// Active returns the currently active CodeVersions for the calling thread
// in push order, sharing the stack's live backing array rather than
// copying it: the fault dispatcher calls this with no room to allocate.
// Callers that need the most-recently-entered-first search order iterate
// from the end.
func Active() []CodeVersion {
	versions, _ := stack.Get()
	return versions
}
