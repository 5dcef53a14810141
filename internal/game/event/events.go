package event

// Vetoable is embedded by events an observer may cancel before the publisher
// mutates any state. The zero value is not cancelled.
type Vetoable struct {
	cancelled bool
}

// Cancel vetoes the pending operation.
func (v *Vetoable) Cancel() { v.cancelled = true }

// Cancelled reports whether any observer vetoed the operation.
func (v *Vetoable) Cancelled() bool { return v.cancelled }

// Adjustable is embedded by events whose effective amount observers may
// modify before the publisher applies it.
type Adjustable struct {
	amount float64
}

// Amount returns the effective amount.
func (a *Adjustable) Amount() float64 { return a.amount }

// SetAmount replaces the effective amount. Negative values clamp to 0; a
// gain or loss never flips sign through observer adjustment.
func (a *Adjustable) SetAmount(v float64) {
	if v < 0 {
		v = 0
	}
	a.amount = v
}

// SkillUpgrade fires before a skill rank purchase. Level is the rank about
// to be reached; Cost is the point cost about to be spent.
type SkillUpgrade struct {
	Vetoable
	PlayerID string
	SkillID  string
	Level    int
	Cost     int
}

// Topic implements Event.
func (*SkillUpgrade) Topic() Topic { return TopicSkillUpgrade }

// SkillDowngrade fires before a skill rank refund. Level is the rank being
// vacated; Refund is the point refund about to be granted.
type SkillDowngrade struct {
	Vetoable
	PlayerID string
	SkillID  string
	Level    int
	Refund   int
}

// Topic implements Event.
func (*SkillDowngrade) Topic() Topic { return TopicSkillDowngrade }

// SkillUnlock fires after a skill reaches rank 1 for the first time.
type SkillUnlock struct {
	PlayerID string
	SkillID  string
}

// Topic implements Event.
func (*SkillUnlock) Topic() Topic { return TopicSkillUnlock }

// ClassChange fires after a profession or reset. PreviousID is empty for a
// first profession; CurrentID is empty after a reset that restored nothing.
type ClassChange struct {
	PlayerID   string
	Group      string
	PreviousID string
	CurrentID  string
}

// Topic implements Event.
func (*ClassChange) Topic() Topic { return TopicClassChange }

// ExpGain fires before experience is applied to one class. Observers may
// veto or adjust the amount.
type ExpGain struct {
	Vetoable
	Adjustable
	PlayerID string
	Group    string
	ClassID  string
	Source   string
}

// Topic implements Event.
func (*ExpGain) Topic() Topic { return TopicExpGain }

// LevelUp fires after a class gains one or more levels. Level is the new
// level; Levels is how many were gained in this pass.
type LevelUp struct {
	PlayerID string
	Group    string
	ClassID  string
	Level    int
	Levels   int
}

// Topic implements Event.
func (*LevelUp) Topic() Topic { return TopicLevelUp }

// ManaGain fires before mana is added to the pool. Observers may veto or
// adjust the amount.
type ManaGain struct {
	Vetoable
	Adjustable
	PlayerID string
	Source   string
}

// Topic implements Event.
func (*ManaGain) Topic() Topic { return TopicManaGain }

// ManaLoss fires before mana is deducted from the pool. Observers may veto
// or adjust the amount.
type ManaLoss struct {
	Vetoable
	Adjustable
	PlayerID string
	Source   string
}

// Topic implements Event.
func (*ManaLoss) Topic() Topic { return TopicManaLoss }

// PreCast fires after all eligibility gates pass and before the skill effect
// runs. TargetUID is empty for untargeted casts.
type PreCast struct {
	Vetoable
	PlayerID  string
	SkillID   string
	Level     int
	TargetUID string
}

// Topic implements Event.
func (*PreCast) Topic() Topic { return TopicPreCast }

// StatsUpdated fires after health/mana recomputation while the account is
// not hydrating; display layers refresh from it.
type StatsUpdated struct {
	PlayerID  string
	MaxHealth float64
	MaxMana   float64
}

// Topic implements Event.
func (*StatsUpdated) Topic() Topic { return TopicStatsUpdated }

// NewExpGain builds an ExpGain carrying the initial amount.
func NewExpGain(playerID, group, classID, source string, amount float64) *ExpGain {
	ev := &ExpGain{PlayerID: playerID, Group: group, ClassID: classID, Source: source}
	ev.SetAmount(amount)
	return ev
}

// NewManaGain builds a ManaGain carrying the initial amount.
func NewManaGain(playerID, source string, amount float64) *ManaGain {
	ev := &ManaGain{PlayerID: playerID, Source: source}
	ev.SetAmount(amount)
	return ev
}

// NewManaLoss builds a ManaLoss carrying the initial amount.
func NewManaLoss(playerID, source string, amount float64) *ManaLoss {
	ev := &ManaLoss{PlayerID: playerID, Source: source}
	ev.SetAmount(amount)
	return ev
}
