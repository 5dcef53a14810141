package progress

import (
	"github.com/cory-johannsen/grimoire/internal/game/event"
	"github.com/cory-johannsen/grimoire/internal/game/ruleset"
)

// ClassProgress is one profession held by an account: a class definition plus
// the level, banked experience, and skill-point balance earned under it. At
// most one ClassProgress exists per group.
type ClassProgress struct {
	owner      *Account
	def        *ruleset.Class
	level      int
	experience int
	points     int
}

func newClassProgress(owner *Account, def *ruleset.Class) *ClassProgress {
	return &ClassProgress{owner: owner, def: def, level: 1}
}

// Definition returns the class this progress tracks.
func (cp *ClassProgress) Definition() *ruleset.Class { return cp.def }

// Group returns the group this profession occupies.
func (cp *ClassProgress) Group() string { return cp.def.Group }

// Level returns the current class level, always >= 1.
func (cp *ClassProgress) Level() int { return cp.level }

// Experience returns the banked experience toward the next level.
func (cp *ClassProgress) Experience() int { return cp.experience }

// Points returns the unspent skill-point balance.
func (cp *ClassProgress) Points() int { return cp.points }

// Mastered reports whether the class has reached its max level.
func (cp *ClassProgress) Mastered() bool { return cp.level >= cp.def.MaxLevel }

// GiveExp adds experience from the given source and levels up as many times
// as the curve allows, granting skill points per level gained. Observers may
// veto or adjust the amount. A mastered class saturates: further experience
// is discarded.
//
// Precondition: amount must be >= 0.
func (cp *ClassProgress) GiveExp(amount int, source string) {
	if amount < 0 {
		panic("progress: GiveExp with negative amount")
	}
	if amount == 0 || cp.Mastered() {
		return
	}
	ev := event.NewExpGain(cp.owner.playerID, cp.def.Group, cp.def.ID, source, float64(amount))
	cp.owner.publish(ev)
	if ev.Cancelled() {
		return
	}
	gained := int(ev.Amount())
	if gained <= 0 {
		return
	}
	cp.experience += gained

	// The curve is an arbitrary per-level function, so levels are consumed
	// iteratively rather than solved in closed form.
	levels := 0
	for cp.level < cp.def.MaxLevel && cp.experience >= cp.def.RequiredExp(cp.level) {
		cp.experience -= cp.def.RequiredExp(cp.level)
		cp.level++
		cp.points += cp.def.PointsPerLevel
		levels++
	}
	if cp.Mastered() {
		cp.experience = 0
	}
	if levels > 0 {
		cp.owner.publish(&event.LevelUp{
			PlayerID: cp.owner.playerID,
			Group:    cp.def.Group,
			ClassID:  cp.def.ID,
			Level:    cp.level,
			Levels:   levels,
		})
		cp.owner.recompute()
	}
}

// LoseExp removes banked experience, clamped to 0. The level never drops.
//
// Precondition: amount must be >= 0.
func (cp *ClassProgress) LoseExp(amount int) {
	if amount < 0 {
		panic("progress: LoseExp with negative amount")
	}
	cp.experience -= amount
	if cp.experience < 0 {
		cp.experience = 0
	}
}

// GivePoints adds skill points to the balance.
//
// Precondition: amount must be >= 0.
func (cp *ClassProgress) GivePoints(amount int) {
	if amount < 0 {
		panic("progress: GivePoints with negative amount")
	}
	cp.points += amount
}

// UsePoints spends skill points.
//
// Precondition: the balance must cover amount; callers check before spending.
func (cp *ClassProgress) UsePoints(amount int) {
	if amount < 0 {
		panic("progress: UsePoints with negative amount")
	}
	if amount > cp.points {
		panic("progress: UsePoints exceeding balance")
	}
	cp.points -= amount
}

// retarget swaps the definition in place, carrying level, experience, and
// points into the new class. The level clamps to the new cap.
func (cp *ClassProgress) retarget(def *ruleset.Class) {
	cp.def = def
	if cp.level > def.MaxLevel {
		cp.level = def.MaxLevel
	}
	if cp.Mastered() {
		cp.experience = 0
	}
}

// restore overwrites the progression fields from persisted state, clamping
// each into its legal range. Only hydration calls this.
func (cp *ClassProgress) restore(level, experience, points int) {
	if level < 1 {
		level = 1
	}
	if level > cp.def.MaxLevel {
		level = cp.def.MaxLevel
	}
	cp.level = level
	cp.experience = max(0, experience)
	cp.points = max(0, points)
	if cp.Mastered() {
		cp.experience = 0
	}
}
