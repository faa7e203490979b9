package fault

import (
	"github.com/wasmrt/rtfault/internal/threadlocal"
	"github.com/wasmrt/rtfault/pkg/stateimage"
)

// walker is the embedder-supplied stack walker the dispatcher invokes to
// reconstruct an ExecutionStateImage and to build a full InstanceImage on
// suspension.
var walker stateimage.StackWalker

// SetStackWalker registers the stack walker the fault dispatcher uses. It
// must be called once during startup, before any guest code that can trap
// runs; the dispatcher fatals if it has to read a stack with none
// registered.
func SetStackWalker(w stateimage.StackWalker) {
	walker = w
}

// currentCtxs holds the calling thread's current instance context, set by
// the embedder around entry into compiled code.
var currentCtxs = threadlocal.NewMap[stateimage.Ctx]()

// SetCurrentCtx records ctx as the calling thread's active instance
// context. An embedder calls this immediately before entering compiled
// code, alongside codeversion.Push.
func SetCurrentCtx(ctx stateimage.Ctx) {
	currentCtxs.Set(ctx)
}

// ClearCurrentCtx removes the calling thread's active instance context,
// mirroring codeversion.Pop at the matching exit point.
func ClearCurrentCtx() {
	currentCtxs.Delete()
}

func currentCtx() stateimage.Ctx {
	ctx, _ := currentCtxs.Get()
	return ctx
}
