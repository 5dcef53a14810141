package scripting

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"

	"github.com/cory-johannsen/grimoire/internal/game/dice"
)

// ActorInfo is the snapshot of a world actor handed to Lua. Scripts only
// ever see copies; mutation goes back through the callback funcs.
type ActorInfo struct {
	UID       string
	Name      string
	Team      string
	X         float64
	Y         float64
	Health    float64
	MaxHealth float64
	Alive     bool
	Statuses  []string
}

// Engine owns the shared Lua VM that all skill scripts load into and
// dispatches hook calls by global name. The host wires the exported
// callback fields after construction; any left nil turns the matching
// engine.* module functions into no-ops, which keeps scripts loadable in
// tests and tools that have no world behind them.
//
// All VM access is serialized by the mutex. Scripts are cheap; holding the
// lock across a hook call is fine.
type Engine struct {
	mu     sync.Mutex
	state  *lua.LState
	cancel context.CancelFunc
	limit  int

	roller *dice.Roller
	log    *zap.Logger

	// Host callbacks, wired by the server before Load.
	GetActor    func(uid string) *ActorInfo
	Damage      func(uid string, amount float64) (dealt float64, died bool)
	Heal        func(uid string, amount float64) (healed float64)
	ApplyStatus  func(uid, statusID string, stacks int, seconds float64) bool
	RemoveStatus func(uid, statusID string) bool
	Broadcast    func(uid, msg string)
	GiveMana     func(uid string, amount float64) (granted float64)
}

// NewEngine builds an Engine with no scripts loaded.
//
// Precondition: roller and log must be non-nil.
func NewEngine(roller *dice.Roller, log *zap.Logger) *Engine {
	if roller == nil {
		panic("scripting: NewEngine with nil roller")
	}
	if log == nil {
		panic("scripting: NewEngine with nil logger")
	}
	return &Engine{roller: roller, log: log}
}

// Load reads every .lua file under dir (sorted by name, so load order is
// deterministic) into a fresh sandboxed state and swaps it in. On error
// the previous state, if any, stays live.
func (e *Engine) Load(dir string, instLimit int) error {
	if instLimit <= 0 {
		instLimit = DefaultInstructionLimit
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("read script dir: %w", err)
	}
	var files []string
	for _, ent := range entries {
		if ent.IsDir() || !strings.HasSuffix(ent.Name(), ".lua") {
			continue
		}
		files = append(files, ent.Name())
	}
	sort.Strings(files)

	L, cancel := NewSandboxedState(instLimit)
	e.registerModules(L)
	for _, name := range files {
		path := filepath.Join(dir, name)
		if err := L.DoFile(path); err != nil {
			cancel()
			L.Close()
			return fmt.Errorf("load %s: %w", name, err)
		}
		e.log.Debug("loaded skill script", zap.String("file", name))
	}

	e.mu.Lock()
	old, oldCancel := e.state, e.cancel
	e.state, e.cancel, e.limit = L, cancel, instLimit
	e.mu.Unlock()

	if old != nil {
		oldCancel()
		old.Close()
	}
	e.log.Info("skill scripts loaded", zap.Int("files", len(files)), zap.String("dir", dir))
	return nil
}

// Close tears the VM down. The Engine is unusable afterwards except for
// HasHook and CallHook, which report no hooks.
func (e *Engine) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state == nil {
		return
	}
	e.cancel()
	e.state.Close()
	e.state, e.cancel = nil, nil
}

// HasHook reports whether a global function with the given name is
// defined in the loaded scripts.
func (e *Engine) HasHook(name string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state == nil {
		return false
	}
	return e.state.GetGlobal(name) != lua.LNil
}

// CallHook invokes the named global with args and returns its first
// result. A missing hook or unloaded VM yields (LNil, nil). Every call
// runs under a fresh opcode budget. Lua runtime errors are logged at warn
// and returned so the caller can fail the surrounding action.
func (e *Engine) CallHook(hook string, args ...lua.LValue) (lua.LValue, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state == nil {
		return lua.LNil, nil
	}
	fn := e.state.GetGlobal(hook)
	if fn == lua.LNil {
		return lua.LNil, nil
	}

	ctx, cancel := newBudgetContext(e.limit)
	e.state.SetContext(ctx)
	err := e.state.CallByParam(lua.P{Fn: fn, NRet: 1, Protect: true}, args...)
	cancel()
	if err != nil {
		e.log.Warn("lua hook failed", zap.String("hook", hook), zap.Error(err))
		return lua.LNil, fmt.Errorf("hook %s: %w", hook, err)
	}
	ret := e.state.Get(-1)
	e.state.Pop(1)
	return ret, nil
}
