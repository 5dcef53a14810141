package progress

import (
	"strings"

	"go.uber.org/zap"

	"github.com/cory-johannsen/grimoire/internal/game/event"
	"github.com/cory-johannsen/grimoire/internal/game/ruleset"
)

// Bootstrap professes the account into every group's default class, mirroring
// initial-account setup, and fills the mana pool. Defaults gated by a
// permission are skipped. Groups already professed are left alone.
func (a *Account) Bootstrap() {
	for _, g := range a.settings.Registry.Groups() {
		if g.Default == "" || g.Permission != "" {
			continue
		}
		if _, held := a.classes[g.ID]; held {
			continue
		}
		def, ok := a.settings.Registry.Class(g.Default)
		if !ok || def.Permission != "" {
			continue
		}
		if err := a.Profess(def); err != nil {
			a.settings.Log.Warn("bootstrap profession failed",
				zap.String("player", a.playerID),
				zap.String("class", g.Default),
				zap.Error(err))
		}
	}
	a.mana.SetCurrent(a.mana.Max())
}

// CanProfess checks whether the account may profess into def. Professing is
// allowed in exactly two cases: the group is empty and def declares no
// parent, or the group's current class is def's parent and has been mastered.
// Permission gates on the group and the class must both pass.
//
// Precondition: def must not be nil.
// Postcondition: Returns nil if allowed, or the ineligibility outcome.
func (a *Account) CanProfess(def *ruleset.Class) error {
	if def == nil {
		panic("progress: CanProfess with nil class")
	}
	if g, ok := a.settings.Registry.Group(def.Group); ok {
		if !a.settings.authorized(a.playerID, g.Permission) {
			return ErrPermissionDenied
		}
	}
	if !a.settings.authorized(a.playerID, def.Permission) {
		return ErrPermissionDenied
	}

	current, held := a.classes[def.Group]
	if !held {
		if def.HasParent() {
			return ErrParentRequired
		}
		return nil
	}
	if !strings.EqualFold(current.def.ID, def.Parent) {
		return ErrParentMismatch
	}
	if !current.Mastered() {
		return ErrParentNotMastered
	}
	return nil
}

// Profess assigns def to its group. When the group's policy is to reset on
// profession the old class and its skills are wiped first; otherwise the
// existing progress is retargeted in place, carrying level, experience, and
// points. Skills in def's tree not already owned are granted locked at rank 0.
//
// Precondition: def must not be nil.
// Postcondition: Returns nil and fires a class-change notification on
// success, or the CanProfess outcome with nothing mutated.
func (a *Account) Profess(def *ruleset.Class) error {
	if err := a.CanProfess(def); err != nil {
		return err
	}

	prevID := ""
	cp, held := a.classes[def.Group]
	switch {
	case held && a.resetOnProfess(def.Group):
		prevID = cp.def.ID
		a.removeGroup(def.Group)
		cp = newClassProgress(a, def)
		a.classes[def.Group] = cp
	case held:
		prevID = cp.def.ID
		cp.retarget(def)
	default:
		cp = newClassProgress(a, def)
		a.classes[def.Group] = cp
	}

	for _, sk := range a.settings.Registry.ClassSkills(def) {
		key := strings.ToLower(sk.ID)
		if _, owned := a.skills[key]; !owned {
			a.skills[key] = newSkillProgress(a, sk, cp)
		}
	}

	a.recompute()
	a.publish(&event.ClassChange{
		PlayerID:   a.playerID,
		Group:      def.Group,
		PreviousID: prevID,
		CurrentID:  def.ID,
	})
	return nil
}

// Reset removes the group's profession and every skill that belonged to it,
// then re-professes into the group's default class when one exists and needs
// no permission. It reports whether a profession was removed.
func (a *Account) Reset(group string) bool {
	prevID, ok := a.removeGroup(group)
	if !ok {
		return false
	}
	a.recompute()
	a.publish(&event.ClassChange{
		PlayerID:   a.playerID,
		Group:      group,
		PreviousID: prevID,
		CurrentID:  "",
	})

	if g, ok := a.settings.Registry.Group(group); ok && g.Default != "" && g.Permission == "" {
		if def, ok := a.settings.Registry.Class(g.Default); ok && def.Permission == "" {
			if err := a.Profess(def); err != nil {
				a.settings.Log.Warn("default re-profession failed",
					zap.String("player", a.playerID),
					zap.String("class", g.Default),
					zap.Error(err))
			}
		}
	}
	return true
}

// ResetAll resets every held group. The group set is snapshotted first
// because Reset mutates the live map.
func (a *Account) ResetAll() {
	groups := make([]string, 0, len(a.classes))
	for g := range a.classes {
		groups = append(groups, g)
	}
	for _, g := range groups {
		a.Reset(g)
	}
}

// removeGroup silently drops the group's class progress and every skill it
// owns, stopping passives and clearing bindings on the way out.
func (a *Account) removeGroup(group string) (prevID string, ok bool) {
	cp, held := a.classes[group]
	if !held {
		return "", false
	}
	for key, sp := range a.skills {
		if sp.class != cp {
			continue
		}
		if sp.Unlocked() {
			a.stopPassive(sp, sp.level)
		}
		a.unbindSkill(sp)
		delete(a.skills, key)
	}
	delete(a.classes, group)
	return cp.def.ID, true
}

func (a *Account) resetOnProfess(group string) bool {
	g, ok := a.settings.Registry.Group(group)
	return ok && g.ResetOnProfess
}
