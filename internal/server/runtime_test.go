package server

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/cory-johannsen/grimoire/internal/game/cast"
	"github.com/cory-johannsen/grimoire/internal/game/dice"
	"github.com/cory-johannsen/grimoire/internal/game/effect"
	"github.com/cory-johannsen/grimoire/internal/game/message"
	"github.com/cory-johannsen/grimoire/internal/game/progress"
	"github.com/cory-johannsen/grimoire/internal/game/ruleset"
	"github.com/cory-johannsen/grimoire/internal/game/status"
	"github.com/cory-johannsen/grimoire/internal/game/world"
	"github.com/cory-johannsen/grimoire/internal/scripting"
)

// memStore is an in-memory SnapshotStore with failure injection.
type memStore struct {
	mu    sync.Mutex
	snaps map[string]*progress.Snapshot
	saves int
	fail  bool
}

func newMemStore() *memStore {
	return &memStore{snaps: make(map[string]*progress.Snapshot)}
}

func (m *memStore) Save(_ context.Context, snap *progress.Snapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail {
		return fmt.Errorf("store offline")
	}
	m.snaps[snap.PlayerID] = snap
	m.saves++
	return nil
}

func (m *memStore) Load(_ context.Context, playerID string) (*progress.Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if snap, ok := m.snaps[playerID]; ok {
		return snap, nil
	}
	// A player with nothing saved yet loads as an empty snapshot.
	return &progress.Snapshot{PlayerID: playerID}, nil
}

func (m *memStore) saved(playerID string) (*progress.Snapshot, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	snap, ok := m.snaps[playerID]
	return snap, ok
}

func (m *memStore) saveCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saves
}

func (m *memStore) setFail(v bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fail = v
}

// msgRecorder is a thread-safe cast.Feedback capturing direct messages.
type msgRecorder struct {
	mu   sync.Mutex
	sent []sentFeedback
}

type sentFeedback struct {
	actorID string
	key     string
	vars    map[string]string
}

func (m *msgRecorder) To(actorID, key string, vars map[string]string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, sentFeedback{actorID, key, vars})
}

func (m *msgRecorder) Nearby(string, string, map[string]string) {}

func (m *msgRecorder) find(actorID, key string) (sentFeedback, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.sent {
		if s.actorID == actorID && s.key == key {
			return s, true
		}
	}
	return sentFeedback{}, false
}

// castLog records which actors an effect ran for.
type castLog struct {
	mu      sync.Mutex
	casters []string
}

func (c *castLog) add(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.casters = append(c.casters, id)
}

func (c *castLog) all() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.casters))
	copy(out, c.casters)
	return out
}

// runtimeRules builds a minimal rule set: one group, one class with mana
// regeneration, a short-cooldown immediate skill, and a passive.
func runtimeRules(t testing.TB) *ruleset.Registry {
	t.Helper()
	reg := ruleset.NewRegistry()
	reg.RegisterGroup(&ruleset.Group{ID: "class", Default: "adept"})
	reg.RegisterClass(&ruleset.Class{
		ID:             "adept",
		Name:           "Adept",
		Group:          "class",
		MaxLevel:       5,
		PointsPerLevel: 2,
		Health:         ruleset.Scale{Base: 20},
		Mana:           ruleset.Scale{Base: 30},
		ManaRegen:      5,
		ExpCurve:       ruleset.ExpCurve{Base: 10},
		Skills:         []string{"bolt", "aura"},
	})
	reg.RegisterSkill(&ruleset.Skill{
		ID:           "bolt",
		Name:         "Bolt",
		MaxLevel:     2,
		Capabilities: []string{ruleset.CapImmediate},
		Cost:         ruleset.Scale{Base: 1},
		LevelReq:     ruleset.Scale{Base: 1},
		ManaCost:     ruleset.Scale{Base: 5},
		Cooldown:     ruleset.Scale{Base: 0.05},
	})
	reg.RegisterSkill(&ruleset.Skill{
		ID:           "aura",
		Name:         "Aura",
		MaxLevel:     1,
		Capabilities: []string{ruleset.CapPassive},
		Cost:         ruleset.Scale{Base: 1},
		LevelReq:     ruleset.Scale{Base: 1},
	})
	require.NoError(t, reg.Validate())
	return reg
}

type runtimeFixture struct {
	t      *testing.T
	eng    *Engine
	rt     *Runtime
	roster *progress.Roster
	world  *world.World
	store  *memStore
	msgs   *msgRecorder
	casts  *castLog
	status *status.Registry
}

// newRuntimeFixture assembles a full runtime on a 10ms engine loop. opts may
// adjust the config before construction.
func newRuntimeFixture(t *testing.T, opts func(*RuntimeConfig)) *runtimeFixture {
	t.Helper()
	log := zaptest.NewLogger(t)
	reg := runtimeRules(t)

	casts := &castLog{}
	effects := effect.Funcs{
		Immediates: map[string]effect.Immediate{
			"bolt": effect.ImmediateFunc(func(actor effect.Actor, _ int) (bool, error) {
				casts.add(actor.UID())
				return true, nil
			}),
		},
		Passives: map[string]effect.Passive{
			"aura": effect.PassiveHooks{},
		},
	}

	roster, err := progress.NewRoster(&progress.Settings{
		Registry:      reg,
		Effects:       effects,
		Log:           log,
		ManaEnabled:   true,
		DefaultHealth: 20,
		MinHealth:     1,
		MainGroup:     "class",
	})
	require.NoError(t, err)

	w := world.New()
	msgs := &msgRecorder{}
	pipe, err := cast.NewPipeline(&cast.Config{
		Targets:  NewTargetResolver(w),
		Effects:  effects,
		Messages: msgs,
		Log:      log,
	})
	require.NoError(t, err)

	statuses := status.NewRegistry()
	statuses.Register(&status.Definition{ID: "burning", Name: "Burning"})

	eng := NewEngine(10*time.Millisecond, log)
	store := newMemStore()
	cfg := &RuntimeConfig{
		Engine:          eng,
		Roster:          roster,
		World:           w,
		Pipeline:        pipe,
		Statuses:        statuses,
		Store:           store,
		Messages:        msgs,
		Log:             log,
		RegenInterval:   10 * time.Millisecond,
		BroadcastRadius: 10,
	}
	if opts != nil {
		opts(cfg)
	}
	rt, err := NewRuntime(cfg)
	require.NoError(t, err)

	go func() { _ = eng.Start() }()
	t.Cleanup(eng.Stop)

	return &runtimeFixture{
		t:      t,
		eng:    eng,
		rt:     rt,
		roster: roster,
		world:  w,
		store:  store,
		msgs:   msgs,
		casts:  casts,
		status: statuses,
	}
}

func (fx *runtimeFixture) login(playerID, name string) *progress.Account {
	fx.t.Helper()
	acct, err := fx.rt.Login(context.Background(), playerID, name, nil)
	require.NoError(fx.t, err)
	return acct
}

// sync runs fn on the engine goroutine and waits. All account and actor reads
// in these tests go through it; assertions stay on the test goroutine.
func (fx *runtimeFixture) sync(fn func()) {
	fx.t.Helper()
	fx.eng.DoSync(fn)
}

// learn buys rank 1 of each named skill for a resident player.
func (fx *runtimeFixture) learn(playerID string, skills ...string) {
	fx.t.Helper()
	var err error
	fx.sync(func() {
		acct, ok := fx.roster.Get(playerID)
		if !ok {
			err = fmt.Errorf("player %s not resident", playerID)
			return
		}
		acct.GivePoints(len(skills), "test")
		for _, id := range skills {
			if upErr := acct.UpgradeSkill(id); upErr != nil {
				err = upErr
				return
			}
		}
	})
	require.NoError(fx.t, err)
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for !cond() {
		select {
		case <-deadline:
			t.Fatalf("timed out waiting for %s", what)
		default:
			time.Sleep(5 * time.Millisecond)
		}
	}
}

func TestRuntimeConfigValidate(t *testing.T) {
	log := zaptest.NewLogger(t)
	reg := runtimeRules(t)
	roster, err := progress.NewRoster(&progress.Settings{
		Registry: reg, Log: log, ManaEnabled: true,
		DefaultHealth: 20, MinHealth: 1, MainGroup: "class",
	})
	require.NoError(t, err)
	w := world.New()
	pipe, err := cast.NewPipeline(&cast.Config{Effects: effect.None, Log: log})
	require.NoError(t, err)
	eng := NewEngine(time.Second, log)

	_, err = NewRuntime(nil)
	assert.Error(t, err)

	valid := func() *RuntimeConfig {
		return &RuntimeConfig{
			Engine: eng, Roster: roster, World: w, Pipeline: pipe,
			Log: log, RegenInterval: time.Second,
		}
	}

	cfg := valid()
	cfg.Engine = nil
	_, err = NewRuntime(cfg)
	assert.ErrorContains(t, err, "engine")

	cfg = valid()
	cfg.Roster = nil
	_, err = NewRuntime(cfg)
	assert.ErrorContains(t, err, "roster")

	cfg = valid()
	cfg.World = nil
	_, err = NewRuntime(cfg)
	assert.ErrorContains(t, err, "world")

	cfg = valid()
	cfg.Pipeline = nil
	_, err = NewRuntime(cfg)
	assert.ErrorContains(t, err, "pipeline")

	cfg = valid()
	cfg.Log = nil
	_, err = NewRuntime(cfg)
	assert.ErrorContains(t, err, "logger")

	cfg = valid()
	cfg.RegenInterval = 0
	_, err = NewRuntime(cfg)
	assert.ErrorContains(t, err, "regen")

	cfg = valid()
	cfg.AutosaveInterval = -time.Second
	_, err = NewRuntime(cfg)
	assert.ErrorContains(t, err, "autosave")
}

func TestRuntimeLoginBootstrapsFreshPlayer(t *testing.T) {
	fx := newRuntimeFixture(t, nil)

	acct := fx.login("p1", "Hero")
	assert.Equal(t, "p1", acct.PlayerID())

	var (
		classID   string
		maxHealth float64
		attached  bool
	)
	fx.sync(func() {
		if main, ok := acct.MainClass(); ok {
			classID = main.Definition().ID
		}
		maxHealth = acct.MaxHealth()
		attached = acct.Actor() != nil
	})
	assert.Equal(t, "adept", classID)
	assert.Equal(t, 20.0, maxHealth)
	assert.True(t, attached)

	actor, ok := fx.world.Get("p1")
	require.True(t, ok)
	assert.Equal(t, "Hero", actor.Name)
	assert.Equal(t, 20.0, actor.MaxHealth)
}

func TestRuntimeLoginTwiceFails(t *testing.T) {
	fx := newRuntimeFixture(t, nil)
	fx.login("p1", "Hero")

	_, err := fx.rt.Login(context.Background(), "p1", "Hero", nil)
	assert.Error(t, err)
}

func TestRuntimeLogoutPersistsAndLoginRestores(t *testing.T) {
	fx := newRuntimeFixture(t, nil)
	fx.login("p1", "Hero")
	fx.learn("p1", "bolt")

	require.NoError(t, fx.rt.Logout(context.Background(), "p1"))

	_, inWorld := fx.world.Get("p1")
	assert.False(t, inWorld)
	assert.Equal(t, 0, fx.roster.Count())

	snap, ok := fx.store.saved("p1")
	require.True(t, ok)
	require.Len(t, snap.Classes, 1)
	assert.Equal(t, "adept", snap.Classes[0].ClassID)

	acct := fx.login("p1", "Hero")
	var boltLevel int
	fx.sync(func() {
		if sp, ok := acct.Skill("bolt"); ok {
			boltLevel = sp.Level()
		}
	})
	assert.Equal(t, 1, boltLevel)
}

func TestRuntimeLogoutAbsentPlayerIsNoOp(t *testing.T) {
	fx := newRuntimeFixture(t, nil)

	assert.NoError(t, fx.rt.Logout(context.Background(), "ghost"))
	assert.Equal(t, 0, fx.store.saveCount())
}

func TestRuntimeCastRunsEffect(t *testing.T) {
	fx := newRuntimeFixture(t, nil)
	fx.login("p1", "Hero")
	fx.learn("p1", "bolt")

	assert.True(t, fx.rt.Cast("p1", "bolt"))
	assert.Equal(t, []string{"p1"}, fx.casts.all())

	assert.False(t, fx.rt.Cast("ghost", "bolt"), "unknown player")
	assert.False(t, fx.rt.Cast("p1", "missing"), "unheld skill")
}

func TestRuntimeCastSlotUsesBinding(t *testing.T) {
	fx := newRuntimeFixture(t, nil)
	fx.login("p1", "Hero")
	fx.learn("p1", "bolt")

	var bindErr error
	fx.sync(func() {
		acct, _ := fx.roster.Get("p1")
		bindErr = acct.Bind(0, "bolt")
	})
	require.NoError(t, bindErr)

	assert.True(t, fx.rt.CastSlot("p1", 0))
	assert.False(t, fx.rt.CastSlot("p1", 3), "empty slot")
	assert.False(t, fx.rt.CastSlot("ghost", 0), "unknown player")
}

func TestRuntimeCooldownTickSendsReadyFeedback(t *testing.T) {
	fx := newRuntimeFixture(t, nil)
	fx.login("p1", "Hero")
	fx.learn("p1", "bolt")

	require.True(t, fx.rt.Cast("p1", "bolt"))

	waitFor(t, "skill ready feedback", func() bool {
		_, ok := fx.msgs.find("p1", message.KeySkillReady)
		return ok
	})
	sent, _ := fx.msgs.find("p1", message.KeySkillReady)
	assert.Equal(t, "Bolt", sent.vars["skill"])
}

func TestRuntimeRegenTickRestoresMana(t *testing.T) {
	fx := newRuntimeFixture(t, nil)
	acct := fx.login("p1", "Hero")

	var before float64
	fx.sync(func() {
		acct.UseMana(20, "test")
		before = acct.Mana().Current()
	})

	waitFor(t, "mana regeneration", func() bool {
		var current float64
		fx.sync(func() { current = acct.Mana().Current() })
		return current > before
	})
}

func TestRuntimeStatusTickSendsFadedFeedback(t *testing.T) {
	fx := newRuntimeFixture(t, nil)
	fx.login("p1", "Hero")

	def, ok := fx.status.Get("burning")
	require.True(t, ok)
	fx.sync(func() {
		actor, _ := fx.world.Get("p1")
		actor.Statuses.Apply(def, 1, 30*time.Millisecond)
	})

	waitFor(t, "status faded feedback", func() bool {
		_, ok := fx.msgs.find("p1", message.KeyStatusFaded)
		return ok
	})
	sent, _ := fx.msgs.find("p1", message.KeyStatusFaded)
	assert.Equal(t, "Burning", sent.vars["status"])
}

func TestRuntimeAutosaveTickPersistsRoster(t *testing.T) {
	fx := newRuntimeFixture(t, func(cfg *RuntimeConfig) {
		cfg.AutosaveInterval = 30 * time.Millisecond
	})
	fx.login("p1", "Hero")

	waitFor(t, "autosave", func() bool {
		return fx.store.saveCount() >= 1
	})
	snap, ok := fx.store.saved("p1")
	require.True(t, ok)
	assert.Len(t, snap.Classes, 1)
}

func TestRuntimeSaveAllPersistsResidents(t *testing.T) {
	fx := newRuntimeFixture(t, nil)
	fx.login("p1", "Hero")
	fx.login("p2", "Mage")

	require.NoError(t, fx.rt.SaveAll("shutdown"))
	_, ok1 := fx.store.saved("p1")
	_, ok2 := fx.store.saved("p2")
	assert.True(t, ok1)
	assert.True(t, ok2)

	fx.store.setFail(true)
	err := fx.rt.SaveAll("shutdown")
	assert.ErrorContains(t, err, "account saves failed")
}

func TestRuntimeBindsScriptCallbacks(t *testing.T) {
	log := zaptest.NewLogger(t)
	sc := scripting.NewEngine(dice.NewLoggedRoller(dice.NewCryptoSource(), log), log)
	t.Cleanup(sc.Close)

	fx := newRuntimeFixture(t, func(cfg *RuntimeConfig) {
		cfg.Scripts = sc
	})
	acct := fx.login("p1", "Hero")

	var (
		info, missing  *scripting.ActorInfo
		dealt, healed  float64
		died, applied  bool
		badStatus      bool
		removedAbsent  bool
		removed        bool
		granted, ghost float64
		burning        bool
	)
	// The callbacks normally run from Lua on the engine goroutine; drive them
	// from there directly.
	fx.sync(func() {
		info = sc.GetActor("p1")
		missing = sc.GetActor("nope")
		dealt, died = sc.Damage("p1", 5)
		healed = sc.Heal("p1", 3)
		applied = sc.ApplyStatus("p1", "burning", 1, 30)
		badStatus = sc.ApplyStatus("p1", "unknown", 1, 30)
		removedAbsent = sc.RemoveStatus("p1", "unknown")
		acct.UseMana(10, "test")
		granted = sc.GiveMana("p1", 4)
		ghost = sc.GiveMana("ghost", 4)
		if after := sc.GetActor("p1"); after != nil {
			for _, id := range after.Statuses {
				if id == "burning" {
					burning = true
				}
			}
		}
		removed = sc.RemoveStatus("p1", "burning")
	})

	require.NotNil(t, info)
	assert.Equal(t, "p1", info.UID)
	assert.Equal(t, "Hero", info.Name)
	assert.Equal(t, 20.0, info.MaxHealth)
	assert.True(t, info.Alive)
	assert.Nil(t, missing)

	assert.Equal(t, 5.0, dealt)
	assert.False(t, died)
	assert.Equal(t, 3.0, healed)
	assert.True(t, applied)
	assert.False(t, badStatus)
	assert.False(t, removedAbsent)
	assert.True(t, burning)
	assert.True(t, removed)
	assert.Equal(t, 4.0, granted)
	assert.Equal(t, 0.0, ghost)
}
