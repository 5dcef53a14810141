package progress

import (
	"strings"

	"github.com/cory-johannsen/grimoire/internal/game/event"
)

// UpgradeSkill buys the next rank of the skill with the given id. The owning
// class pays the rank's point cost; the rank rises by exactly 1. Rank 1 also
// fires an unlock notification and starts the skill's passive effect.
//
// Postcondition: Returns nil on success; on any ineligibility outcome nothing
// is mutated.
func (a *Account) UpgradeSkill(id string) error {
	sp, ok := a.Skill(id)
	if !ok {
		return ErrUnknownSkill
	}
	if sp.Maxed() {
		return ErrSkillMaxed
	}
	cp := sp.class
	if cp == nil {
		return ErrNoOwningClass
	}
	if cp.level < sp.def.LevelReqAt(sp.level) {
		return ErrClassLevelTooLow
	}
	cost := sp.def.CostAt(sp.level)
	if cp.points < cost {
		return ErrNotEnoughPoints
	}
	if sp.def.ReqSkill != "" {
		pre, ok := a.Skill(sp.def.ReqSkill)
		if !ok || pre.level < sp.def.ReqSkillLevel {
			return ErrPrereqUnmet
		}
	}

	ev := &event.SkillUpgrade{
		PlayerID: a.playerID,
		SkillID:  sp.def.ID,
		Level:    sp.level + 1,
		Cost:     cost,
	}
	a.publish(ev)
	if ev.Cancelled() {
		return ErrVetoed
	}

	cp.UsePoints(cost)
	a.raiseSkill(sp)
	return nil
}

// DowngradeSkill gives up the skill's top rank, refunding exactly the points
// that rank cost. The refusal when an unlocked skill still requires this one
// compares against the pre-decrement rank, so a prerequisite is released one
// rank before it would strictly need to be.
//
// Postcondition: Returns nil on success; on any ineligibility outcome nothing
// is mutated. Dropping to rank 0 stops the passive effect and clears the
// action-slot binding.
func (a *Account) DowngradeSkill(id string) error {
	sp, ok := a.Skill(id)
	if !ok {
		return ErrUnknownSkill
	}
	if sp.level <= 0 {
		return ErrSkillLocked
	}
	for _, other := range a.skills {
		if other == sp || !other.Unlocked() {
			continue
		}
		if strings.EqualFold(other.def.ReqSkill, sp.def.ID) && sp.level <= other.def.ReqSkillLevel {
			return ErrPrereqDependent
		}
	}

	refund := sp.def.CostAt(sp.level - 1)
	ev := &event.SkillDowngrade{
		PlayerID: a.playerID,
		SkillID:  sp.def.ID,
		Level:    sp.level,
		Refund:   refund,
	}
	a.publish(ev)
	if ev.Cancelled() {
		return ErrVetoed
	}

	if sp.class != nil {
		sp.class.GivePoints(refund)
	}
	prev := sp.level
	sp.level--
	if sp.level == 0 {
		a.stopPassive(sp, prev)
		a.unbindSkill(sp)
	} else {
		a.updatePassive(sp, prev)
	}
	return nil
}

// GiveSkill grants the skill with the given id outside any class tree, then
// climbs the zero-cost ladder: the rank rises while the next rank's point
// cost is exactly zero, stopping at the first nonzero cost or the rank cap.
// Granting an already-owned skill re-runs the ladder. The iteration is
// bounded by the rank cap, so a zero-cost curve cannot loop forever.
//
// Postcondition: Returns nil if the skill exists in the rules, ErrUnknownSkill otherwise.
func (a *Account) GiveSkill(id string) error {
	def, ok := a.settings.Registry.Skill(id)
	if !ok {
		return ErrUnknownSkill
	}
	key := strings.ToLower(def.ID)
	sp, owned := a.skills[key]
	if !owned {
		sp = newSkillProgress(a, def, nil)
		a.skills[key] = sp
	}
	for sp.level < sp.def.MaxLevel && sp.def.CostAt(sp.level) == 0 {
		a.raiseSkill(sp)
	}
	return nil
}

// raiseSkill increments the rank and runs the rank-transition side effects:
// an unlock notification plus passive initialization at rank 1, a passive
// update on every later rank.
func (a *Account) raiseSkill(sp *SkillProgress) {
	prev := sp.level
	sp.level++
	if sp.level == 1 {
		a.publish(&event.SkillUnlock{PlayerID: a.playerID, SkillID: sp.def.ID})
		a.startPassive(sp)
	} else {
		a.updatePassive(sp, prev)
	}
}

// Bind assigns the skill with the given id to an action slot. A skill holds
// at most one slot and a slot holds at most one skill: binding moves the
// skill off any previous slot and evicts any previous occupant.
//
// Precondition: slot must be >= 0.
// Postcondition: Returns nil on success, ErrUnknownSkill or ErrSkillLocked otherwise.
func (a *Account) Bind(slot int, id string) error {
	if slot < 0 {
		panic("progress: Bind with negative slot")
	}
	sp, ok := a.Skill(id)
	if !ok {
		return ErrUnknownSkill
	}
	if !sp.Unlocked() {
		return ErrSkillLocked
	}
	if occupant, taken := a.bindings[slot]; taken && occupant != sp {
		occupant.slot = unbound
	}
	if sp.slot != unbound && sp.slot != slot {
		delete(a.bindings, sp.slot)
	}
	sp.slot = slot
	a.bindings[slot] = sp
	return nil
}

// Unbind clears the given action slot. It reports whether a binding existed.
func (a *Account) Unbind(slot int) bool {
	sp, ok := a.bindings[slot]
	if !ok {
		return false
	}
	sp.slot = unbound
	delete(a.bindings, slot)
	return true
}

// Binding returns the skill bound to the given slot.
//
// Postcondition: Returns (progress, true) if the slot is bound, or (nil, false) otherwise.
func (a *Account) Binding(slot int) (*SkillProgress, bool) {
	sp, ok := a.bindings[slot]
	return sp, ok
}

// Bindings returns a copy of the slot table.
func (a *Account) Bindings() map[int]*SkillProgress {
	out := make(map[int]*SkillProgress, len(a.bindings))
	for slot, sp := range a.bindings {
		out[slot] = sp
	}
	return out
}

// unbindSkill clears the skill's binding, if any.
func (a *Account) unbindSkill(sp *SkillProgress) {
	if sp.slot == unbound {
		return
	}
	delete(a.bindings, sp.slot)
	sp.slot = unbound
}
