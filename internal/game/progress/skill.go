package progress

import (
	"time"

	"github.com/cory-johannsen/grimoire/internal/game/ruleset"
)

// unbound marks a SkillProgress with no action-slot binding.
const unbound = -1

// SkillProgress is one skill owned by an account: its current rank, cooldown
// timer, and action-slot binding. Rank 0 means the skill is locked. The rank
// changes only through Account.UpgradeSkill, Account.DowngradeSkill, and
// Account.GiveSkill, which move skill points on the owning class in step.
type SkillProgress struct {
	owner *Account
	def   *ruleset.Skill
	class *ClassProgress // nil for skills granted outside any class tree
	level int
	cd    time.Duration
	slot  int
}

func newSkillProgress(owner *Account, def *ruleset.Skill, class *ClassProgress) *SkillProgress {
	return &SkillProgress{owner: owner, def: def, class: class, slot: unbound}
}

// Definition returns the skill this progress tracks.
func (sp *SkillProgress) Definition() *ruleset.Skill { return sp.def }

// Class returns the owning class progress, or nil for directly granted skills.
func (sp *SkillProgress) Class() *ClassProgress { return sp.class }

// Level returns the current rank; 0 means locked.
func (sp *SkillProgress) Level() int { return sp.level }

// Unlocked reports whether the skill has at least rank 1.
func (sp *SkillProgress) Unlocked() bool { return sp.level > 0 }

// Maxed reports whether the skill is at its rank cap.
func (sp *SkillProgress) Maxed() bool { return sp.level >= sp.def.MaxLevel }

// Cooldown returns the time remaining until the skill may be cast again.
func (sp *SkillProgress) Cooldown() time.Duration { return sp.cd }

// OnCooldown reports whether any cooldown remains, regardless of rank.
func (sp *SkillProgress) OnCooldown() bool { return sp.cd > 0 }

// StartCooldown arms the cooldown with the duration scaled to the current rank.
func (sp *SkillProgress) StartCooldown() {
	sp.cd = sp.def.CooldownAt(sp.level)
}

// TickCooldown advances the cooldown timer by elapsed, clamping at 0, and
// reports whether this tick finished the cooldown.
//
// Precondition: elapsed must be >= 0.
func (sp *SkillProgress) TickCooldown(elapsed time.Duration) bool {
	if elapsed < 0 {
		panic("progress: TickCooldown with negative elapsed")
	}
	if sp.cd <= 0 {
		return false
	}
	sp.cd -= elapsed
	if sp.cd <= 0 {
		sp.cd = 0
		return true
	}
	return false
}

// BoundSlot returns the action slot this skill occupies.
//
// Postcondition: Returns (slot, true) if bound, or (0, false) otherwise.
func (sp *SkillProgress) BoundSlot() (int, bool) {
	if sp.slot == unbound {
		return 0, false
	}
	return sp.slot, true
}
