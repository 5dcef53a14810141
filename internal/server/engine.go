package server

import (
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// taskQueueDepth bounds how many submitted tasks can wait before Do blocks.
const taskQueueDepth = 256

// Engine is the single goroutine that owns all account and actor mutation.
// Other goroutines never touch game state directly; they submit closures via
// Do or DoSync, and periodic work (cooldowns, regeneration, status expiry,
// autosave) runs as named ticks on the same goroutine. Serializing everything
// here is what lets the progress and world types stay lock-free on their hot
// paths.
//
// Invariant: tasks and ticks never run concurrently with each other.
// Invariant: each tick fires at most once per its interval.
type Engine struct {
	logger *zap.Logger
	base   time.Duration
	tasks  chan func()

	mu    sync.Mutex
	ticks []*namedTick

	started  atomic.Bool
	quit     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
	doneOnce sync.Once
}

// namedTick is a periodic callback with its own firing interval. The loop
// polls at the engine's base interval and fires each tick whose elapsed time
// has reached its interval, passing the actual elapsed time so callbacks can
// decay durations accurately even when the loop runs late.
type namedTick struct {
	name     string
	interval time.Duration
	fn       func(elapsed time.Duration)
	last     time.Time
}

// NewEngine returns an engine whose loop polls every base interval.
//
// Precondition: base must be > 0 and logger must not be nil.
func NewEngine(base time.Duration, logger *zap.Logger) *Engine {
	if base <= 0 {
		panic("server.NewEngine: base interval must be > 0")
	}
	if logger == nil {
		panic("server.NewEngine: logger must not be nil")
	}
	return &Engine{
		logger: logger,
		base:   base,
		tasks:  make(chan func(), taskQueueDepth),
		quit:   make(chan struct{}),
		done:   make(chan struct{}),
	}
}

// Base returns the loop's polling interval.
func (e *Engine) Base() time.Duration { return e.base }

// RegisterTick adds a periodic callback. Ticks fire in registration order, so
// register cooldown decay before anything that reads cooldown state. A tick's
// interval may be longer than the engine's base interval but never shorter;
// shorter intervals still fire once per base interval.
//
// Precondition: name must be non-empty, interval > 0, fn non-nil.
func (e *Engine) RegisterTick(name string, interval time.Duration, fn func(elapsed time.Duration)) {
	if name == "" {
		panic("server.Engine: RegisterTick with empty name")
	}
	if interval <= 0 {
		panic("server.Engine: RegisterTick with non-positive interval")
	}
	if fn == nil {
		panic("server.Engine: RegisterTick with nil fn")
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.ticks = append(e.ticks, &namedTick{
		name:     name,
		interval: interval,
		fn:       fn,
		last:     time.Now(),
	})
}

// Do submits a task to run on the engine goroutine and returns without
// waiting for it. Tasks submitted after Stop are dropped with a warning.
//
// Precondition: task must not be nil.
func (e *Engine) Do(task func()) {
	if task == nil {
		panic("server.Engine: Do with nil task")
	}
	select {
	case <-e.quit:
		e.logger.Warn("engine task dropped after stop")
		return
	default:
	}
	select {
	case e.tasks <- task:
	case <-e.quit:
		e.logger.Warn("engine task dropped after stop")
	}
}

// DoSync submits a task and blocks until the engine goroutine has run it.
// Callers use it when they need a result out of game state; the closure
// writes into captured variables, which is safe because DoSync establishes
// the ordering.
//
// Precondition: task must not be nil. Must not be called from the engine
// goroutine itself; a task that calls DoSync deadlocks.
func (e *Engine) DoSync(task func()) {
	if task == nil {
		panic("server.Engine: DoSync with nil task")
	}
	ran := make(chan struct{})
	e.Do(func() {
		defer close(ran)
		task()
	})
	select {
	case <-ran:
	case <-e.done:
		// Engine exited without reaching the task; the caller sees
		// whatever zero values its closure left behind.
	}
}

// Start runs the engine loop until Stop is called. It satisfies the Service
// contract: it blocks for the lifetime of the loop and always returns nil.
//
// Postcondition: on return, all queued tasks have either run or been drained.
func (e *Engine) Start() error {
	e.started.Store(true)
	defer e.doneOnce.Do(func() { close(e.done) })

	e.mu.Lock()
	count := len(e.ticks)
	e.mu.Unlock()
	e.logger.Info("engine loop started",
		zap.Duration("base_interval", e.base),
		zap.Int("ticks", count),
	)

	ticker := time.NewTicker(e.base)
	defer ticker.Stop()
	for {
		select {
		case <-e.quit:
			e.drain()
			e.logger.Info("engine loop stopped")
			return nil
		case task := <-e.tasks:
			e.runTask(task)
		case now := <-ticker.C:
			e.runTicks(now)
		}
	}
}

// Stop signals the loop to exit and waits for it to finish draining.
// Safe to call more than once, and before Start.
func (e *Engine) Stop() {
	e.stopOnce.Do(func() { close(e.quit) })
	if !e.started.Load() {
		e.doneOnce.Do(func() { close(e.done) })
	}
	<-e.done
}

// drain runs whatever tasks were queued when Stop fired, so callers blocked
// in DoSync are released before the loop exits.
func (e *Engine) drain() {
	for {
		select {
		case task := <-e.tasks:
			e.runTask(task)
		default:
			return
		}
	}
}

func (e *Engine) runTicks(now time.Time) {
	e.mu.Lock()
	ticks := make([]*namedTick, len(e.ticks))
	copy(ticks, e.ticks)
	e.mu.Unlock()
	for _, tk := range ticks {
		elapsed := now.Sub(tk.last)
		if elapsed < tk.interval {
			continue
		}
		tk.last = now
		e.runTick(tk, elapsed)
	}
}

// runTick fires one callback. A panicking tick is logged and survived; one
// bad script or content file must not take the whole loop down.
func (e *Engine) runTick(tk *namedTick, elapsed time.Duration) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("engine tick panicked",
				zap.String("tick", tk.name),
				zap.Any("panic", r),
			)
		}
	}()
	tk.fn(elapsed)
}

func (e *Engine) runTask(task func()) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("engine task panicked", zap.Any("panic", r))
		}
	}()
	task()
}
