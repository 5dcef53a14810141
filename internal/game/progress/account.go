package progress

import (
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/cory-johannsen/grimoire/internal/game/effect"
	"github.com/cory-johannsen/grimoire/internal/game/event"
	"github.com/cory-johannsen/grimoire/internal/game/ruleset"
)

// Account is the progression state for one player identity: professions keyed
// by group, owned skills keyed by id, the mana pool, and action-slot
// bindings. It persists across sessions and is keyed by the stable player id,
// never by a connection handle.
//
// An Account is owned by one logical player and is never mutated from two
// call sites concurrently; the engine loop serialises all access.
type Account struct {
	playerID string
	settings *Settings

	classes  map[string]*ClassProgress // keyed by group id
	skills   map[string]*SkillProgress // keyed by lower-cased skill id
	bindings map[int]*SkillProgress

	mana        *ManaPool
	healthBonus float64
	maxHealth   float64

	// initializing suppresses event publication while persisted state is
	// hydrated; EndInit clears it.
	initializing bool

	actor effect.Actor // nil while the player is offline
}

// NewAccount creates an account in the initializing state. Fresh accounts
// follow with Bootstrap, loaded accounts with Restore; both finish with
// EndInit.
//
// Precondition: playerID must be non-empty and settings must be validated.
func NewAccount(playerID string, settings *Settings) *Account {
	if playerID == "" {
		panic("progress: NewAccount with empty player id")
	}
	if settings == nil || settings.Registry == nil || settings.Log == nil {
		panic("progress: NewAccount with incomplete settings")
	}
	return &Account{
		playerID:     playerID,
		settings:     settings,
		classes:      make(map[string]*ClassProgress),
		skills:       make(map[string]*SkillProgress),
		bindings:     make(map[int]*SkillProgress),
		mana:         NewManaPool(),
		initializing: true,
	}
}

// PlayerID returns the stable identity this account belongs to.
func (a *Account) PlayerID() string { return a.playerID }

// Settings returns the shared progression settings.
func (a *Account) Settings() *Settings { return a.settings }

// Initializing reports whether the account is still hydrating.
func (a *Account) Initializing() bool { return a.initializing }

// EndInit ends hydration: events publish again and a stats notification
// brings display observers up to date. Calling it twice is a no-op.
func (a *Account) EndInit() {
	if !a.initializing {
		return
	}
	a.initializing = false
	a.recompute()
}

// Attach connects the account to its world presence and starts passives for
// every unlocked passive-capability skill.
func (a *Account) Attach(actor effect.Actor) {
	a.actor = actor
	a.StartPassives()
}

// Detach stops all running passives and disconnects the world presence.
func (a *Account) Detach() {
	a.StopPassives()
	a.actor = nil
}

// Actor returns the attached world presence, or nil while offline.
func (a *Account) Actor() effect.Actor { return a.actor }

// StartPassives initializes the passive effect of every unlocked
// passive-capability skill. No-op while offline.
func (a *Account) StartPassives() {
	if a.actor == nil {
		return
	}
	for _, sp := range a.Skills() {
		if sp.Unlocked() {
			a.startPassive(sp)
		}
	}
}

// StopPassives stops the passive effect of every unlocked passive-capability
// skill. No-op while offline.
func (a *Account) StopPassives() {
	if a.actor == nil {
		return
	}
	for _, sp := range a.Skills() {
		if sp.Unlocked() {
			a.stopPassive(sp, sp.Level())
		}
	}
}

// Mana returns the account's mana pool.
func (a *Account) Mana() *ManaPool { return a.mana }

// MaxHealth returns the derived max health.
func (a *Account) MaxHealth() float64 { return a.maxHealth }

// HealthBonus returns the permanent max-health offset.
func (a *Account) HealthBonus() float64 { return a.healthBonus }

// Class returns the profession held in the given group.
//
// Postcondition: Returns (progress, true) if the group is professed, or (nil, false) otherwise.
func (a *Account) Class(group string) (*ClassProgress, bool) {
	cp, ok := a.classes[group]
	return cp, ok
}

// MainClass returns the profession in the configured main group.
func (a *Account) MainClass() (*ClassProgress, bool) {
	return a.Class(a.settings.MainGroup)
}

// Classes returns all held professions sorted by group.
func (a *Account) Classes() []*ClassProgress {
	out := make([]*ClassProgress, 0, len(a.classes))
	for _, cp := range a.classes {
		out = append(out, cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Group() < out[j].Group() })
	return out
}

// Skill returns the owned skill with the given id, matched case-insensitively.
//
// Postcondition: Returns (progress, true) if owned, or (nil, false) otherwise.
func (a *Account) Skill(id string) (*SkillProgress, bool) {
	sp, ok := a.skills[strings.ToLower(id)]
	return sp, ok
}

// Skills returns all owned skills sorted by id.
func (a *Account) Skills() []*SkillProgress {
	out := make([]*SkillProgress, 0, len(a.skills))
	for _, sp := range a.skills {
		out = append(out, sp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].def.ID < out[j].def.ID })
	return out
}

// GiveExp distributes experience to every held class that accepts the source tag.
//
// Precondition: amount must be >= 0.
func (a *Account) GiveExp(amount int, source string) {
	for _, cp := range a.Classes() {
		if cp.def.ReceivesExp(source) {
			cp.GiveExp(amount, source)
		}
	}
}

// LoseExp removes banked experience from every held class. Levels never drop.
//
// Precondition: amount must be >= 0.
func (a *Account) LoseExp(amount int) {
	for _, cp := range a.Classes() {
		cp.LoseExp(amount)
	}
}

// GiveLevels grants whole levels to every class accepting the source tag by
// converting them to the exact experience the curve requires from the class's
// current level forward. Level-ups then fire through the normal experience
// path, keeping every level-up side effect.
//
// Precondition: levels must be >= 0.
func (a *Account) GiveLevels(levels int, source string) {
	if levels < 0 {
		panic("progress: GiveLevels with negative levels")
	}
	for _, cp := range a.Classes() {
		if !cp.def.ReceivesExp(source) {
			continue
		}
		amount := 0
		for i := 0; i < levels && cp.level+i < cp.def.MaxLevel; i++ {
			amount += cp.def.RequiredExp(cp.level + i)
		}
		if amount > 0 {
			cp.GiveExp(amount, source)
		}
	}
}

// GivePoints adds skill points to every class accepting the source tag.
//
// Precondition: amount must be >= 0.
func (a *Account) GivePoints(amount int, source string) {
	for _, cp := range a.Classes() {
		if cp.def.ReceivesExp(source) {
			cp.GivePoints(amount)
		}
	}
}

// ApplyDeathPenalty removes a group-configured fraction of each class's
// next-level experience requirement. A mastered class banks no experience,
// so it loses nothing.
func (a *Account) ApplyDeathPenalty() {
	for _, cp := range a.Classes() {
		g, ok := a.settings.Registry.Group(cp.Group())
		if !ok || g.DeathPenalty <= 0 {
			continue
		}
		loss := int(float64(cp.def.RequiredExp(cp.level)) * g.DeathPenalty)
		cp.LoseExp(loss)
	}
}

// GiveMana adds mana to the pool and returns the amount actually gained.
// Observers may veto or adjust it.
//
// Precondition: amount must be >= 0.
func (a *Account) GiveMana(amount float64, source string) float64 {
	if amount < 0 {
		panic("progress: GiveMana with negative amount")
	}
	if amount == 0 {
		return 0
	}
	ev := event.NewManaGain(a.playerID, source, amount)
	a.publish(ev)
	if ev.Cancelled() {
		return 0
	}
	return a.mana.Add(ev.Amount())
}

// UseMana deducts mana from the pool, clamped at 0, and reports whether the
// deduction went through. Observers may veto or adjust it.
//
// Precondition: amount must be >= 0.
func (a *Account) UseMana(amount float64, source string) bool {
	if amount < 0 {
		panic("progress: UseMana with negative amount")
	}
	if amount == 0 {
		return true
	}
	ev := event.NewManaLoss(a.playerID, source, amount)
	a.publish(ev)
	if ev.Cancelled() {
		return false
	}
	a.mana.Use(ev.Amount())
	return true
}

// RegenMana applies one regeneration tick: the sum of every held class's
// regen rate, routed through GiveMana so observers see it. It returns the
// mana actually gained.
func (a *Account) RegenMana() float64 {
	var rate float64
	for _, cp := range a.Classes() {
		rate += cp.def.ManaRegen
	}
	if rate <= 0 || a.mana.Full() {
		return 0
	}
	return a.GiveMana(rate, "regen")
}

// AddMaxMana shifts the pool's permanent capacity bonus by delta and
// recomputes derived stats.
func (a *Account) AddMaxMana(delta float64) {
	a.mana.AddBonus(delta)
	a.recompute()
}

// AddMaxHealth shifts the permanent max-health bonus by delta and recomputes
// derived stats.
func (a *Account) AddMaxHealth(delta float64) {
	a.healthBonus += delta
	a.recompute()
}

// TickCooldowns advances every skill cooldown by elapsed and returns the ids
// of skills that became ready this tick, sorted.
//
// Precondition: elapsed must be >= 0.
func (a *Account) TickCooldowns(elapsed time.Duration) []string {
	var ready []string
	for _, sp := range a.Skills() {
		if sp.TickCooldown(elapsed) {
			ready = append(ready, sp.def.ID)
		}
	}
	return ready
}

// recompute rederives max health and max mana from the held classes plus the
// permanent bonuses and, outside hydration, notifies display observers.
func (a *Account) recompute() {
	var health float64
	mana := make([]float64, 0, len(a.classes))
	for _, cp := range a.classes {
		health += cp.def.HealthAt(cp.level)
		mana = append(mana, cp.def.ManaAt(cp.level))
	}
	if health <= 0 {
		health = a.settings.DefaultHealth
	}
	health += a.healthBonus
	if health < a.settings.MinHealth {
		health = a.settings.MinHealth
	}
	a.maxHealth = health
	a.mana.Recompute(mana...)

	a.publish(&event.StatsUpdated{
		PlayerID:  a.playerID,
		MaxHealth: a.maxHealth,
		MaxMana:   a.mana.Max(),
	})
}

// publish sends ev to the bus unless the account is hydrating. Hydration is
// silent: no observer may veto or react to state that is merely being restored.
func (a *Account) publish(ev event.Event) {
	if a.initializing {
		return
	}
	a.settings.Events.Publish(ev)
}

func (a *Account) startPassive(sp *SkillProgress) {
	if a.actor == nil || !sp.def.Has(ruleset.CapPassive) {
		return
	}
	p, ok := a.settings.effects().Passive(sp.def.ID)
	if !ok {
		return
	}
	a.guardPassive(sp.def.ID, func() { p.Initialize(a.actor, sp.level) })
}

func (a *Account) updatePassive(sp *SkillProgress, oldLevel int) {
	if a.actor == nil || !sp.def.Has(ruleset.CapPassive) {
		return
	}
	p, ok := a.settings.effects().Passive(sp.def.ID)
	if !ok {
		return
	}
	a.guardPassive(sp.def.ID, func() { p.Update(a.actor, oldLevel, sp.level) })
}

func (a *Account) stopPassive(sp *SkillProgress, level int) {
	if a.actor == nil || !sp.def.Has(ruleset.CapPassive) {
		return
	}
	p, ok := a.settings.effects().Passive(sp.def.ID)
	if !ok {
		return
	}
	a.guardPassive(sp.def.ID, func() { p.Stop(a.actor, level) })
}

// guardPassive runs an externally supplied passive hook and absorbs any
// panic, so a faulty effect cannot corrupt a rank transition.
func (a *Account) guardPassive(skillID string, hook func()) {
	defer func() {
		if r := recover(); r != nil {
			a.settings.Log.Error("passive effect hook panicked",
				zap.String("player", a.playerID),
				zap.String("skill", skillID),
				zap.Any("panic", r))
		}
	}()
	hook()
}
