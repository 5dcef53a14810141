package server

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/cory-johannsen/grimoire/internal/game/cast"
	"github.com/cory-johannsen/grimoire/internal/game/message"
	"github.com/cory-johannsen/grimoire/internal/game/progress"
	"github.com/cory-johannsen/grimoire/internal/game/status"
	"github.com/cory-johannsen/grimoire/internal/game/world"
	"github.com/cory-johannsen/grimoire/internal/scripting"
)

// defaultSaveTimeout bounds one persistence pass when the config does not say.
const defaultSaveTimeout = 5 * time.Second

// SnapshotStore persists whole-account progression snapshots.
// *postgres.ProgressRepository satisfies it.
type SnapshotStore interface {
	Save(ctx context.Context, snap *progress.Snapshot) error
	Load(ctx context.Context, playerID string) (*progress.Snapshot, error)
}

// RuntimeConfig carries the runtime's collaborators and timings.
type RuntimeConfig struct {
	Engine   *Engine
	Roster   *progress.Roster
	World    *world.World
	Pipeline *cast.Pipeline
	// Scripts, when non-nil, gets its world callbacks bound to this runtime.
	Scripts *scripting.Engine
	// Statuses resolves definitions for script-applied statuses and expiry
	// feedback. Nil makes engine.world.apply_status always report failure.
	Statuses *status.Registry
	// Store persists snapshots. Nil disables hydration and autosave; every
	// login is then a fresh account.
	Store SnapshotStore
	// Messages delivers tick feedback: skill ready, status faded. Nil is silent.
	Messages cast.Feedback
	Log      *zap.Logger

	// RegenInterval is the period between mana regeneration passes.
	RegenInterval time.Duration
	// AutosaveInterval is the period between persistence passes. 0 disables autosave.
	AutosaveInterval time.Duration
	// SaveTimeout bounds each persistence pass. 0 means 5s.
	SaveTimeout time.Duration
	// BroadcastRadius is the range of script-driven broadcasts.
	BroadcastRadius float64
}

// Validate checks that the required collaborators and timings are set.
//
// Postcondition: Returns nil if the config is usable, or an error naming the
// first problem.
func (c *RuntimeConfig) Validate() error {
	if c.Engine == nil {
		return fmt.Errorf("runtime config: engine is required")
	}
	if c.Roster == nil {
		return fmt.Errorf("runtime config: roster is required")
	}
	if c.World == nil {
		return fmt.Errorf("runtime config: world is required")
	}
	if c.Pipeline == nil {
		return fmt.Errorf("runtime config: cast pipeline is required")
	}
	if c.Log == nil {
		return fmt.Errorf("runtime config: logger is required")
	}
	if c.Roster.Settings().ManaEnabled && c.RegenInterval <= 0 {
		return fmt.Errorf("runtime config: regen interval must be positive when mana is enabled, got %s", c.RegenInterval)
	}
	if c.AutosaveInterval < 0 {
		return fmt.Errorf("runtime config: autosave interval must be >= 0, got %s", c.AutosaveInterval)
	}
	return nil
}

// Runtime binds the progression stack onto the engine goroutine. It owns the
// handoff discipline: storage I/O runs on the caller's goroutine, every state
// mutation runs as an engine task, and the periodic ticks it registers
// (cooldowns, regeneration, status expiry, autosave) run there too.
type Runtime struct {
	engine      *Engine
	roster      *progress.Roster
	world       *world.World
	pipeline    *cast.Pipeline
	statuses    *status.Registry
	store       SnapshotStore
	messages    cast.Feedback
	log         *zap.Logger
	saveTimeout time.Duration
	radius      float64
}

// NewRuntime validates cfg, binds script callbacks, and registers the
// periodic ticks on the engine.
//
// Postcondition: Returns a ready Runtime or the validation error.
func NewRuntime(cfg *RuntimeConfig) (*Runtime, error) {
	if cfg == nil {
		return nil, fmt.Errorf("runtime config: must not be nil")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	r := &Runtime{
		engine:      cfg.Engine,
		roster:      cfg.Roster,
		world:       cfg.World,
		pipeline:    cfg.Pipeline,
		statuses:    cfg.Statuses,
		store:       cfg.Store,
		messages:    cfg.Messages,
		log:         cfg.Log,
		saveTimeout: cfg.SaveTimeout,
		radius:      cfg.BroadcastRadius,
	}
	if r.saveTimeout <= 0 {
		r.saveTimeout = defaultSaveTimeout
	}
	if cfg.Scripts != nil {
		r.bindScripts(cfg.Scripts)
	}
	r.registerTicks(cfg)
	return r, nil
}

// Login hydrates the player's account and brings their avatar into the world.
// The snapshot fetch runs on the caller's goroutine; all state mutation runs
// on the engine goroutine. A player with no saved professions is admitted as
// a fresh bootstrapped account.
//
// Precondition: playerID and name must be non-empty.
func (r *Runtime) Login(ctx context.Context, playerID, name string, sink world.Sink) (*progress.Account, error) {
	if playerID == "" {
		panic("server: Login with empty player id")
	}
	var snap *progress.Snapshot
	if r.store != nil {
		loaded, err := r.store.Load(ctx, playerID)
		if err != nil {
			return nil, fmt.Errorf("loading snapshot for %s: %w", playerID, err)
		}
		if len(loaded.Classes) > 0 {
			snap = loaded
		}
	}
	var (
		acct *progress.Account
		err  error
	)
	r.engine.DoSync(func() {
		acct, err = r.admit(playerID, name, sink, snap)
	})
	if err != nil {
		return nil, err
	}
	if acct == nil {
		return nil, fmt.Errorf("admitting %s: engine not running", playerID)
	}
	return acct, nil
}

// admit runs on the engine goroutine.
func (r *Runtime) admit(playerID, name string, sink world.Sink, snap *progress.Snapshot) (*progress.Account, error) {
	var (
		acct *progress.Account
		err  error
	)
	if snap != nil {
		acct, err = r.roster.Load(playerID, snap)
	} else {
		acct, err = r.roster.Create(playerID)
	}
	if err != nil {
		return nil, err
	}
	actor := world.NewActor(playerID, name, acct.MaxHealth())
	actor.Sink = sink
	if addErr := r.world.Add(actor); addErr != nil {
		_ = r.roster.Remove(playerID)
		return nil, addErr
	}
	acct.Attach(actor)
	acct.StartPassives()
	r.log.Info("player admitted",
		zap.String("player_id", playerID),
		zap.Bool("fresh", snap == nil),
	)
	return acct, nil
}

// Logout stops the player's passives, saves their state, and removes both the
// avatar and the account. Logging out an absent player is a no-op.
func (r *Runtime) Logout(ctx context.Context, playerID string) error {
	var snap *progress.Snapshot
	r.engine.DoSync(func() {
		acct, ok := r.roster.Get(playerID)
		if !ok {
			return
		}
		acct.StopPassives()
		snap = acct.Snapshot()
		acct.Detach()
		r.world.Remove(playerID)
		_ = r.roster.Remove(playerID)
	})
	if snap == nil || r.store == nil {
		return nil
	}
	if err := r.store.Save(ctx, snap); err != nil {
		return fmt.Errorf("saving snapshot for %s: %w", playerID, err)
	}
	r.log.Info("player departed", zap.String("player_id", playerID))
	return nil
}

// Cast requests a skill use by skill ID and reports whether it went through.
// Unknown players and unheld skills refuse silently, like a rank-0 skill.
func (r *Runtime) Cast(playerID, skillID string) bool {
	var ok bool
	r.engine.DoSync(func() {
		acct, found := r.roster.Get(playerID)
		if !found {
			return
		}
		sp, found := acct.Skill(skillID)
		if !found {
			return
		}
		ok = r.pipeline.Cast(acct, sp)
	})
	return ok
}

// CastSlot requests a skill use through an action-slot binding.
func (r *Runtime) CastSlot(playerID string, slot int) bool {
	var ok bool
	r.engine.DoSync(func() {
		acct, found := r.roster.Get(playerID)
		if !found {
			return
		}
		sp, found := acct.Binding(slot)
		if !found {
			return
		}
		ok = r.pipeline.Cast(acct, sp)
	})
	return ok
}

// SaveAll snapshots every resident account on the engine goroutine and
// persists the snapshots on the caller's goroutine. Used at shutdown;
// autosave does the same on its own tick.
func (r *Runtime) SaveAll(reason string) error {
	if r.store == nil {
		return nil
	}
	var snaps []*progress.Snapshot
	r.engine.DoSync(func() {
		snaps = r.snapshotAll()
	})
	return r.saveSnapshots(snaps, reason)
}

func (r *Runtime) registerTicks(cfg *RuntimeConfig) {
	base := r.engine.Base()
	r.engine.RegisterTick("cooldowns", base, r.tickCooldowns)
	r.engine.RegisterTick("statuses", base, r.tickStatuses)
	if r.roster.Settings().ManaEnabled {
		r.engine.RegisterTick("regen", cfg.RegenInterval, r.tickRegen)
	}
	if r.store != nil && cfg.AutosaveInterval > 0 {
		r.engine.RegisterTick("autosave", cfg.AutosaveInterval, r.tickAutosave)
	}
}

func (r *Runtime) tickCooldowns(elapsed time.Duration) {
	for _, acct := range r.roster.All() {
		for _, skillID := range acct.TickCooldowns(elapsed) {
			r.notifyReady(acct, skillID)
		}
	}
}

func (r *Runtime) tickRegen(time.Duration) {
	for _, acct := range r.roster.All() {
		acct.RegenMana()
	}
}

func (r *Runtime) tickStatuses(elapsed time.Duration) {
	for actorID, expired := range r.world.TickStatuses(elapsed) {
		for _, statusID := range expired {
			r.notifyFaded(actorID, statusID)
		}
	}
}

// tickAutosave snapshots on the engine goroutine and hands the copies to a
// separate goroutine for persistence, so database latency never stalls the
// loop.
func (r *Runtime) tickAutosave(time.Duration) {
	snaps := r.snapshotAll()
	if len(snaps) == 0 {
		return
	}
	go func() {
		_ = r.saveSnapshots(snaps, "autosave")
	}()
}

func (r *Runtime) snapshotAll() []*progress.Snapshot {
	accts := r.roster.All()
	snaps := make([]*progress.Snapshot, 0, len(accts))
	for _, acct := range accts {
		snaps = append(snaps, acct.Snapshot())
	}
	return snaps
}

// saveSnapshots persists the given snapshots under one timeout. Individual
// failures are logged and counted rather than aborting the pass.
func (r *Runtime) saveSnapshots(snaps []*progress.Snapshot, reason string) error {
	if len(snaps) == 0 {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), r.saveTimeout)
	defer cancel()
	var failed int
	for _, snap := range snaps {
		if err := r.store.Save(ctx, snap); err != nil {
			failed++
			r.log.Error("saving account snapshot",
				zap.String("player_id", snap.PlayerID),
				zap.String("reason", reason),
				zap.Error(err),
			)
		}
	}
	if failed > 0 {
		return fmt.Errorf("%s: %d of %d account saves failed", reason, failed, len(snaps))
	}
	r.log.Debug("accounts saved", zap.Int("count", len(snaps)), zap.String("reason", reason))
	return nil
}

func (r *Runtime) notifyReady(acct *progress.Account, skillID string) {
	if r.messages == nil {
		return
	}
	name := skillID
	if def, ok := r.roster.Settings().Registry.Skill(skillID); ok {
		name = def.Name
	}
	r.messages.To(acct.PlayerID(), message.KeySkillReady, map[string]string{"skill": name})
}

func (r *Runtime) notifyFaded(actorID, statusID string) {
	if r.messages == nil {
		return
	}
	name := statusID
	if r.statuses != nil {
		if def, ok := r.statuses.Get(statusID); ok {
			name = def.Name
		}
	}
	r.messages.To(actorID, message.KeyStatusFaded, map[string]string{"status": name})
}

// bindScripts points the scripting engine's world callbacks at this runtime.
// Lua only ever runs on the engine goroutine, during casts and ticks, so the
// callbacks read and mutate world state directly.
func (r *Runtime) bindScripts(eng *scripting.Engine) {
	eng.GetActor = func(uid string) *scripting.ActorInfo {
		a, ok := r.world.Get(uid)
		if !ok {
			return nil
		}
		return actorInfo(a)
	}
	eng.Damage = func(uid string, amount float64) (float64, bool) {
		a, ok := r.world.Get(uid)
		if !ok {
			return 0, false
		}
		return r.world.Damage(a, amount)
	}
	eng.Heal = func(uid string, amount float64) float64 {
		a, ok := r.world.Get(uid)
		if !ok {
			return 0
		}
		return r.world.Heal(a, amount)
	}
	eng.ApplyStatus = func(uid, statusID string, stacks int, seconds float64) bool {
		if r.statuses == nil {
			return false
		}
		def, ok := r.statuses.Get(statusID)
		if !ok {
			return false
		}
		a, ok := r.world.Get(uid)
		if !ok {
			return false
		}
		// Scripts are untrusted; clamp instead of panicking.
		if stacks < 1 {
			stacks = 1
		}
		a.Statuses.Apply(def, stacks, time.Duration(seconds*float64(time.Second)))
		return true
	}
	eng.RemoveStatus = func(uid, statusID string) bool {
		a, ok := r.world.Get(uid)
		if !ok || !a.Statuses.Has(statusID) {
			return false
		}
		a.Statuses.Remove(statusID)
		return true
	}
	eng.Broadcast = func(uid, msg string) {
		a, ok := r.world.Get(uid)
		if !ok {
			return
		}
		r.world.Broadcast(a, r.radius, msg)
	}
	eng.GiveMana = func(uid string, amount float64) float64 {
		if amount <= 0 {
			return 0
		}
		acct, ok := r.roster.Get(uid)
		if !ok {
			return 0
		}
		return acct.GiveMana(amount, "script")
	}
}

func actorInfo(a *world.Actor) *scripting.ActorInfo {
	info := &scripting.ActorInfo{
		UID:       a.ID,
		Name:      a.Name,
		Team:      a.Team,
		X:         a.X,
		Y:         a.Y,
		Health:    a.Health,
		MaxHealth: a.MaxHealth,
		Alive:     a.Alive(),
	}
	for _, st := range a.Statuses.All() {
		info.Statuses = append(info.Statuses, st.Def.ID)
	}
	return info
}
