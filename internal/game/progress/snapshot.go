package progress

import (
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
)

// ClassState is the persisted form of one profession.
type ClassState struct {
	Group      string
	ClassID    string
	Level      int
	Experience int
	Points     int
}

// SkillState is the persisted form of one owned skill. Group names the
// owning class's group, empty for directly granted skills. Slot is the bound
// action slot, -1 when unbound.
type SkillState struct {
	SkillID  string
	Group    string
	Level    int
	Cooldown time.Duration
	Slot     int
}

// Snapshot is everything needed to round-trip an account through storage.
type Snapshot struct {
	PlayerID    string
	Classes     []ClassState
	Skills      []SkillState
	ManaCurrent float64
	ManaBonus   float64
	HealthBonus float64
}

// Snapshot captures the account's persistent state. Classes and skills come
// out sorted so the result is deterministic.
func (a *Account) Snapshot() *Snapshot {
	snap := &Snapshot{
		PlayerID:    a.playerID,
		Classes:     make([]ClassState, 0, len(a.classes)),
		Skills:      make([]SkillState, 0, len(a.skills)),
		ManaCurrent: a.mana.Current(),
		ManaBonus:   a.mana.Bonus(),
		HealthBonus: a.healthBonus,
	}
	for _, cp := range a.Classes() {
		snap.Classes = append(snap.Classes, ClassState{
			Group:      cp.Group(),
			ClassID:    cp.def.ID,
			Level:      cp.level,
			Experience: cp.experience,
			Points:     cp.points,
		})
	}
	for _, sp := range a.Skills() {
		group := ""
		if sp.class != nil {
			group = sp.class.Group()
		}
		snap.Skills = append(snap.Skills, SkillState{
			SkillID:  sp.def.ID,
			Group:    group,
			Level:    sp.level,
			Cooldown: sp.cd,
			Slot:     sp.slot,
		})
	}
	return snap
}

// Restore hydrates the account from a snapshot. Classes resolve strictly: an
// unknown class id fails the whole restore, because the account is unusable
// without its professions. Skills resolve leniently: entries whose definition
// or owning group is gone are skipped with a warning, so removing content
// never strands an account.
//
// Precondition: the account must still be initializing.
func (a *Account) Restore(snap *Snapshot) error {
	if !a.initializing {
		panic("progress: Restore after hydration ended")
	}
	if snap == nil {
		panic("progress: Restore with nil snapshot")
	}

	for _, cs := range snap.Classes {
		def, ok := a.settings.Registry.Class(cs.ClassID)
		if !ok {
			return fmt.Errorf("restore %s: unknown class %q", a.playerID, cs.ClassID)
		}
		if def.Group != cs.Group {
			return fmt.Errorf("restore %s: class %q moved from group %q to %q",
				a.playerID, cs.ClassID, cs.Group, def.Group)
		}
		cp := newClassProgress(a, def)
		cp.restore(cs.Level, cs.Experience, cs.Points)
		a.classes[def.Group] = cp
	}

	for _, ss := range snap.Skills {
		def, ok := a.settings.Registry.Skill(ss.SkillID)
		if !ok {
			a.settings.Log.Warn("dropping skill with no definition",
				zap.String("player", a.playerID),
				zap.String("skill", ss.SkillID))
			continue
		}
		var owner *ClassProgress
		if ss.Group != "" {
			owner, ok = a.classes[ss.Group]
			if !ok {
				a.settings.Log.Warn("dropping skill of unrestored group",
					zap.String("player", a.playerID),
					zap.String("skill", ss.SkillID),
					zap.String("group", ss.Group))
				continue
			}
		}
		sp := newSkillProgress(a, def, owner)
		sp.level = clampInt(ss.Level, 0, def.MaxLevel)
		if ss.Cooldown > 0 {
			sp.cd = ss.Cooldown
		}
		a.skills[strings.ToLower(def.ID)] = sp
		if ss.Slot >= 0 && sp.Unlocked() {
			if _, taken := a.bindings[ss.Slot]; taken {
				a.settings.Log.Warn("dropping colliding slot binding",
					zap.String("player", a.playerID),
					zap.String("skill", ss.SkillID),
					zap.Int("slot", ss.Slot))
				continue
			}
			sp.slot = ss.Slot
			a.bindings[ss.Slot] = sp
		}
	}

	a.mana.AddBonus(snap.ManaBonus)
	a.healthBonus = snap.HealthBonus
	a.recompute()
	a.mana.SetCurrent(snap.ManaCurrent)
	return nil
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
