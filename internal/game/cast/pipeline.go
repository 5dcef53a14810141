// Package cast implements the skill-use state machine: eligibility gates
// evaluated in strict order, dispatch on the skill's declared capability,
// and a mutation sequence that runs only after the effect reports success.
// Effect code is untrusted; its faults stop at this boundary.
package cast

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/cory-johannsen/grimoire/internal/game/effect"
	"github.com/cory-johannsen/grimoire/internal/game/event"
	"github.com/cory-johannsen/grimoire/internal/game/message"
	"github.com/cory-johannsen/grimoire/internal/game/progress"
	"github.com/cory-johannsen/grimoire/internal/game/ruleset"
)

// TargetResolver finds a victim for a targeted cast.
type TargetResolver interface {
	// LivingTarget resolves the nearest living target within rng of the
	// caster, the caster excluded. ally reports whether caster and target
	// share a team; ok is false when nothing is in range.
	LivingTarget(from effect.Actor, rng float64) (target effect.Actor, ally bool, ok bool)
}

// Feedback delivers rendered feedback messages to players.
// *message.Messenger satisfies it.
type Feedback interface {
	To(actorID, key string, vars map[string]string)
	Nearby(actorID, key string, vars map[string]string)
}

// Config carries the pipeline's collaborators.
type Config struct {
	// Events receives the cancellable pre-cast event. Nil means no observers.
	Events *event.Bus
	// Targets resolves victims for targeted skills. Nil makes every targeted
	// cast miss.
	Targets TargetResolver
	// Effects resolves the capability implementation to invoke per skill.
	Effects effect.Resolver
	// Messages delivers cast feedback. Nil casts silently.
	Messages Feedback
	// Log receives effect faults and content problems.
	Log *zap.Logger
}

// Validate checks that the required collaborators are set.
//
// Postcondition: Returns nil if the Config is usable, or an error naming the
// first problem.
func (c *Config) Validate() error {
	if c.Effects == nil {
		return fmt.Errorf("cast config: effect resolver is required")
	}
	if c.Log == nil {
		return fmt.Errorf("cast config: logger is required")
	}
	return nil
}

// Pipeline decides whether a requested skill use proceeds and runs it.
type Pipeline struct {
	cfg Config
}

// NewPipeline creates a Pipeline from a validated Config.
//
// Postcondition: Returns a ready Pipeline or the validation error.
func NewPipeline(cfg *Config) (*Pipeline, error) {
	if cfg == nil {
		return nil, fmt.Errorf("cast config: must not be nil")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Pipeline{cfg: *cfg}, nil
}

// Cast runs the gates in strict order, first refusal wins:
//
//	rank 0           -> false, silently
//	cooldown running -> false, cooldown feedback, nothing mutated
//	mana short       -> false, mana feedback, nothing mutated (mana system on)
//
// then dispatches on the skill's capability. Cooldown start, the cast
// announcement, and the mana deduction happen only after the effect reports
// success, so a buggy effect can never spend resources for a cast that did
// not happen. A pure passive fails the dispatch and returns false.
//
// Precondition: acct and sp must not be nil; sp must belong to acct.
func (p *Pipeline) Cast(acct *progress.Account, sp *progress.SkillProgress) bool {
	if acct == nil {
		panic("cast: Cast with nil account")
	}
	if sp == nil {
		panic("cast: Cast with nil skill")
	}
	if sp.Level() <= 0 {
		return false
	}

	def := sp.Definition()
	if sp.OnCooldown() {
		p.send(acct, message.KeyOnCooldown, map[string]string{
			"skill":     def.Name,
			"remaining": fmt.Sprintf("%.1f", sp.Cooldown().Seconds()),
		})
		return false
	}
	if acct.Settings().ManaEnabled {
		if cost := def.ManaCostAt(sp.Level()); cost > acct.Mana().Current() {
			p.send(acct, message.KeyMissingMana, map[string]string{
				"skill":     def.Name,
				"cost":      fmt.Sprintf("%.0f", cost),
				"shortfall": fmt.Sprintf("%.0f", cost-acct.Mana().Current()),
			})
			return false
		}
	}

	actor := acct.Actor()
	if actor == nil {
		p.cfg.Log.Debug("cast without world presence",
			zap.String("player", acct.PlayerID()),
			zap.String("skill", def.ID))
		return false
	}

	switch {
	case def.Has(ruleset.CapImmediate):
		return p.castImmediate(acct, sp, actor)
	case def.Has(ruleset.CapTarget):
		return p.castTargeted(acct, sp, actor)
	}
	return false
}

func (p *Pipeline) castImmediate(acct *progress.Account, sp *progress.SkillProgress, actor effect.Actor) bool {
	def := sp.Definition()
	impl, ok := p.cfg.Effects.Immediate(def.ID)
	if !ok {
		p.cfg.Log.Warn("immediate skill resolves no effect", zap.String("skill", def.ID))
		return false
	}

	ev := &event.PreCast{PlayerID: acct.PlayerID(), SkillID: def.ID, Level: sp.Level()}
	p.publish(ev)
	if ev.Cancelled() {
		return false
	}

	success, err := p.runImmediate(impl, actor, sp.Level())
	if err != nil {
		p.fault(acct, def, err)
		return false
	}
	if !success {
		p.send(acct, message.KeySkillFailed, map[string]string{"skill": def.Name})
		return false
	}
	p.conclude(acct, sp, actor, nil)
	return true
}

func (p *Pipeline) castTargeted(acct *progress.Account, sp *progress.SkillProgress, actor effect.Actor) bool {
	def := sp.Definition()
	impl, ok := p.cfg.Effects.Targeted(def.ID)
	if !ok {
		p.cfg.Log.Warn("targeted skill resolves no effect", zap.String("skill", def.ID))
		return false
	}
	if p.cfg.Targets == nil {
		return false
	}
	target, ally, ok := p.cfg.Targets.LivingTarget(actor, def.RangeAt(sp.Level()))
	if !ok {
		return false
	}

	ev := &event.PreCast{
		PlayerID:  acct.PlayerID(),
		SkillID:   def.ID,
		Level:     sp.Level(),
		TargetUID: target.UID(),
	}
	p.publish(ev)
	if ev.Cancelled() {
		return false
	}

	success, err := p.runTargeted(impl, actor, target, sp.Level(), ally)
	if err != nil {
		p.fault(acct, def, err)
		return false
	}
	if !success {
		p.send(acct, message.KeySkillFailed, map[string]string{"skill": def.Name})
		return false
	}
	p.conclude(acct, sp, actor, target)
	return true
}

// conclude runs the success-only mutation sequence: cooldown start, cast
// announcement, mana deduction.
func (p *Pipeline) conclude(acct *progress.Account, sp *progress.SkillProgress, actor, target effect.Actor) {
	def := sp.Definition()
	sp.StartCooldown()

	if p.cfg.Messages != nil {
		key := def.Message
		vars := map[string]string{
			"caster": actor.DisplayName(),
			"skill":  def.Name,
		}
		if target != nil {
			vars["target"] = target.DisplayName()
			if key == "" {
				key = message.KeySkillCastTarget
			}
		} else if key == "" {
			key = message.KeySkillCast
		}
		p.cfg.Messages.Nearby(actor.UID(), key, vars)
	}

	if acct.Settings().ManaEnabled {
		if cost := def.ManaCostAt(sp.Level()); cost > 0 {
			acct.UseMana(cost, "cast")
		}
	}
}

// runImmediate invokes untrusted effect code behind a recovery boundary.
func (p *Pipeline) runImmediate(impl effect.Immediate, actor effect.Actor, level int) (ok bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			ok, err = false, fmt.Errorf("effect panic: %v", r)
		}
	}()
	return impl.Cast(actor, level)
}

// runTargeted invokes untrusted effect code behind a recovery boundary.
func (p *Pipeline) runTargeted(impl effect.Targeted, actor, target effect.Actor, level int, ally bool) (ok bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			ok, err = false, fmt.Errorf("effect panic: %v", r)
		}
	}()
	return impl.Cast(actor, target, level, ally)
}

func (p *Pipeline) fault(acct *progress.Account, def *ruleset.Skill, err error) {
	p.cfg.Log.Error("skill effect failed",
		zap.String("player", acct.PlayerID()),
		zap.String("skill", def.ID),
		zap.Error(err))
	p.send(acct, message.KeySkillFailed, map[string]string{"skill": def.Name})
}

func (p *Pipeline) send(acct *progress.Account, key string, vars map[string]string) {
	if p.cfg.Messages == nil {
		return
	}
	p.cfg.Messages.To(acct.PlayerID(), key, vars)
}

func (p *Pipeline) publish(ev event.Event) {
	if p.cfg.Events == nil {
		return
	}
	p.cfg.Events.Publish(ev)
}
