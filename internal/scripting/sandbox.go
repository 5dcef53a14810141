// Package scripting hosts the sandboxed GopherLua runtime that skill
// effects run in. Scripts never touch game state directly; everything they
// can do goes through the engine.* modules, which delegate to callbacks
// injected by the host. The sandbox strips the dangerous standard
// libraries and bounds execution with an opcode budget so a misbehaving
// script cannot wedge the tick loop.
package scripting

import (
	"context"
	"sync/atomic"

	lua "github.com/yuin/gopher-lua"
)

// DefaultInstructionLimit is the maximum number of Lua opcodes a single
// execution may spend when no limit is configured.
const DefaultInstructionLimit = 100_000

// countingContext is a context.Context that cancels itself after Done()
// has been called limit times. GopherLua's mainLoopWithContext calls
// Done() once per opcode, making this an exact instruction-count limit.
type countingContext struct {
	context.Context
	cancel    context.CancelFunc
	remaining *atomic.Int64
}

// Done returns the underlying cancellation channel. Each call decrements
// the remaining counter; when it reaches zero the cancel function fires,
// terminating the Lua VM on the next opcode boundary.
func (c *countingContext) Done() <-chan struct{} {
	if c.remaining.Add(-1) <= 0 {
		c.cancel()
	}
	return c.Context.Done()
}

// newBudgetContext returns a context that cancels after limit calls to
// Done(). The Engine attaches a fresh one per hook call so every
// invocation gets the full budget.
//
// Precondition: limit > 0.
func newBudgetContext(limit int) (context.Context, context.CancelFunc) {
	base, cancel := context.WithCancel(context.Background())
	rem := &atomic.Int64{}
	rem.Store(int64(limit))
	return &countingContext{
		Context:   base,
		cancel:    cancel,
		remaining: rem,
	}, cancel
}

// NewSandboxedState creates a GopherLua LState with:
//   - Only safe stdlib loaded: base, table, string, math
//   - Dangerous globals removed: dofile, loadfile, load, loadstring,
//     collectgarbage, require
//   - Execution limited to at most instLimit Lua opcodes
//
// instLimit <= 0 selects DefaultInstructionLimit. The limit covers the
// state's initial load phase; callers running repeated hook calls attach
// a fresh budget context per call. The returned cancel func releases the
// load-phase context and must be invoked before closing the state.
func NewSandboxedState(instLimit int) (*lua.LState, context.CancelFunc) {
	limit := instLimit
	if limit <= 0 {
		limit = DefaultInstructionLimit
	}

	L := lua.NewState(lua.Options{SkipOpenLibs: true})

	// Open only safe standard libraries.
	for _, open := range []struct {
		name string
		fn   lua.LGFunction
	}{
		{lua.BaseLibName, lua.OpenBase},
		{lua.TabLibName, lua.OpenTable},
		{lua.StringLibName, lua.OpenString},
		{lua.MathLibName, lua.OpenMath},
	} {
		L.Push(L.NewFunction(open.fn))
		L.Push(lua.LString(open.name))
		L.Call(1, 0)
	}

	// Strip dangerous globals left by OpenBase.
	for _, name := range []string{"dofile", "loadfile", "load", "loadstring", "collectgarbage", "require"} {
		L.SetGlobal(name, lua.LNil)
	}

	ctx, cancel := newBudgetContext(limit)
	L.SetContext(ctx)
	return L, cancel
}
