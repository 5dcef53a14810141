package status

import (
	"sort"
	"time"
)

// Active is one status currently applied to an actor.
type Active struct {
	Def       *Definition
	Stacks    int
	Remaining time.Duration // <= 0 means permanent until removed
}

// Permanent reports whether the status does not expire on its own.
func (a *Active) Permanent() bool {
	return a.Remaining <= 0
}

// Set holds the statuses active on a single actor.
// A Set is not safe for concurrent use; the caller must serialise access.
type Set struct {
	active map[string]*Active
}

// NewSet creates an empty Set.
func NewSet() *Set {
	return &Set{active: make(map[string]*Active)}
}

// Apply applies stacks of def for the given duration. If the status is already
// active, stacks accumulate up to def.MaxStacks (a MaxStacks of 0 means the
// status does not stack) and the remaining duration is extended to whichever
// is longer. A duration <= 0 makes the status permanent until removed.
// Precondition: def must not be nil and stacks must be >= 1.
// Postcondition: Has(def.ID) returns true.
func (s *Set) Apply(def *Definition, stacks int, duration time.Duration) {
	if def == nil {
		panic("status: Apply with nil definition")
	}
	if stacks < 1 {
		panic("status: Apply with stacks < 1")
	}
	limit := def.MaxStacks
	if limit < 1 {
		limit = 1
	}
	cur, ok := s.active[def.ID]
	if !ok {
		if stacks > limit {
			stacks = limit
		}
		s.active[def.ID] = &Active{Def: def, Stacks: stacks, Remaining: duration}
		return
	}
	cur.Stacks += stacks
	if cur.Stacks > limit {
		cur.Stacks = limit
	}
	// A permanent application wins; otherwise keep the longer timer.
	if duration <= 0 || cur.Remaining <= 0 {
		cur.Remaining = 0
	} else if duration > cur.Remaining {
		cur.Remaining = duration
	}
}

// Remove clears the status with the given id. Removing an absent status is a no-op.
func (s *Set) Remove(id string) {
	delete(s.active, id)
}

// Has reports whether the status with the given id is active.
func (s *Set) Has(id string) bool {
	_, ok := s.active[id]
	return ok
}

// Stacks returns the current stack count for id, or 0 if not active.
func (s *Set) Stacks(id string) int {
	if a, ok := s.active[id]; ok {
		return a.Stacks
	}
	return 0
}

// Get returns the Active entry for id, or (nil, false) if not active.
func (s *Set) Get(id string) (*Active, bool) {
	a, ok := s.active[id]
	return a, ok
}

// All returns the active statuses sorted by id.
func (s *Set) All() []*Active {
	out := make([]*Active, 0, len(s.active))
	for _, a := range s.active {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Def.ID < out[j].Def.ID })
	return out
}

// Tick advances every timed status by elapsed and removes those that expire.
// It returns the ids of expired statuses in sorted order. Permanent statuses
// are untouched.
// Precondition: elapsed must be >= 0.
func (s *Set) Tick(elapsed time.Duration) []string {
	if elapsed < 0 {
		panic("status: Tick with negative elapsed")
	}
	var expired []string
	for id, a := range s.active {
		if a.Permanent() {
			continue
		}
		a.Remaining -= elapsed
		if a.Remaining <= 0 {
			expired = append(expired, id)
		}
	}
	for _, id := range expired {
		delete(s.active, id)
	}
	sort.Strings(expired)
	return expired
}
