package scripting

import (
	lua "github.com/yuin/gopher-lua"

	"github.com/cory-johannsen/grimoire/internal/game/effect"
	"github.com/cory-johannsen/grimoire/internal/game/ruleset"
)

// Effects maps skill capabilities onto Lua hooks by naming convention:
//
//	<skill_id>_cast(uid, level)                          immediate
//	<skill_id>_target(uid, target_uid, level, ally)      targeted
//	<skill_id>_passive_start(uid, level)                 passive
//	<skill_id>_passive_update(uid, old_level, new_level) passive
//	<skill_id>_passive_stop(uid, level)                  passive
//
// The capability list declared in the skill definition is authoritative: a
// hook for a capability the skill does not declare is never looked up, and
// a declared capability with no hook resolves to nothing.
type Effects struct {
	eng *Engine
	reg *ruleset.Registry
}

var _ effect.Resolver = (*Effects)(nil)

// NewEffects builds a resolver over eng for the skills in reg.
//
// Precondition: eng and reg must be non-nil.
func NewEffects(eng *Engine, reg *ruleset.Registry) *Effects {
	if eng == nil {
		panic("scripting: NewEffects with nil engine")
	}
	if reg == nil {
		panic("scripting: NewEffects with nil registry")
	}
	return &Effects{eng: eng, reg: reg}
}

func (e *Effects) Immediate(skillID string) (effect.Immediate, bool) {
	def, ok := e.reg.Skill(skillID)
	if !ok || !def.Has(ruleset.CapImmediate) {
		return nil, false
	}
	hook := def.ID + "_cast"
	if !e.eng.HasHook(hook) {
		return nil, false
	}
	return &luaImmediate{eng: e.eng, hook: hook}, true
}

func (e *Effects) Targeted(skillID string) (effect.Targeted, bool) {
	def, ok := e.reg.Skill(skillID)
	if !ok || !def.Has(ruleset.CapTarget) {
		return nil, false
	}
	hook := def.ID + "_target"
	if !e.eng.HasHook(hook) {
		return nil, false
	}
	return &luaTargeted{eng: e.eng, hook: hook}, true
}

func (e *Effects) Passive(skillID string) (effect.Passive, bool) {
	def, ok := e.reg.Skill(skillID)
	if !ok || !def.Has(ruleset.CapPassive) {
		return nil, false
	}
	base := def.ID + "_passive_"
	if !e.eng.HasHook(base+"start") && !e.eng.HasHook(base+"update") && !e.eng.HasHook(base+"stop") {
		return nil, false
	}
	return &luaPassive{eng: e.eng, base: base}, true
}

type luaImmediate struct {
	eng  *Engine
	hook string
}

func (l *luaImmediate) Cast(actor effect.Actor, level int) (bool, error) {
	ret, err := l.eng.CallHook(l.hook, lua.LString(actor.UID()), lua.LNumber(level))
	if err != nil {
		return false, err
	}
	return lua.LVAsBool(ret), nil
}

type luaTargeted struct {
	eng  *Engine
	hook string
}

func (l *luaTargeted) Cast(actor, target effect.Actor, level int, ally bool) (bool, error) {
	ret, err := l.eng.CallHook(l.hook,
		lua.LString(actor.UID()), lua.LString(target.UID()), lua.LNumber(level), lua.LBool(ally))
	if err != nil {
		return false, err
	}
	return lua.LVAsBool(ret), nil
}

// luaPassive fans the three lifecycle notifications out to the matching
// hooks. Errors are already logged by CallHook; passives have no failure
// channel to report into, so they are dropped here.
type luaPassive struct {
	eng  *Engine
	base string
}

func (l *luaPassive) Initialize(actor effect.Actor, level int) {
	_, _ = l.eng.CallHook(l.base+"start", lua.LString(actor.UID()), lua.LNumber(level))
}

func (l *luaPassive) Update(actor effect.Actor, oldLevel, newLevel int) {
	_, _ = l.eng.CallHook(l.base+"update",
		lua.LString(actor.UID()), lua.LNumber(oldLevel), lua.LNumber(newLevel))
}

func (l *luaPassive) Stop(actor effect.Actor, level int) {
	_, _ = l.eng.CallHook(l.base+"stop", lua.LString(actor.UID()), lua.LNumber(level))
}
