package progress

import "errors"

// Ineligibility outcomes. These are expected, frequent, player-facing
// conditions; operations report them as error values so the transport layer
// can map each to feedback text. None of them indicates a bug.
var (
	// ErrUnknownSkill means the account owns no skill with the given id.
	ErrUnknownSkill = errors.New("skill not owned")
	// ErrSkillMaxed means the skill is already at its rank cap.
	ErrSkillMaxed = errors.New("skill already at max rank")
	// ErrSkillLocked means the skill is still at rank 0.
	ErrSkillLocked = errors.New("skill not unlocked")
	// ErrNoOwningClass means the skill was granted outside any class tree and
	// has no point balance to buy ranks from.
	ErrNoOwningClass = errors.New("skill has no owning class")
	// ErrClassLevelTooLow means the owning class is below the rank's level requirement.
	ErrClassLevelTooLow = errors.New("class level below requirement")
	// ErrNotEnoughPoints means the owning class cannot cover the rank's point cost.
	ErrNotEnoughPoints = errors.New("not enough skill points")
	// ErrPrereqUnmet means the skill's prerequisite is below its required rank.
	ErrPrereqUnmet = errors.New("prerequisite skill rank not met")
	// ErrPrereqDependent means an unlocked skill still depends on the rank
	// being given up.
	ErrPrereqDependent = errors.New("another skill depends on this rank")
	// ErrParentRequired means the class declares a parent but the group holds
	// no profession to advance from.
	ErrParentRequired = errors.New("class requires mastering its parent first")
	// ErrParentMismatch means the group's current class is not the target's parent.
	ErrParentMismatch = errors.New("current class is not the parent of the target class")
	// ErrParentNotMastered means the parent class has not reached its max level.
	ErrParentNotMastered = errors.New("parent class not yet mastered")
	// ErrPermissionDenied means the authorizer rejected a gated profession.
	ErrPermissionDenied = errors.New("permission denied")
	// ErrVetoed means an event observer cancelled the operation.
	ErrVetoed = errors.New("operation vetoed by observer")
)
