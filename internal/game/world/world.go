package world

import (
	"fmt"
	"sort"
	"sync"
	"time"
)

// World provides thread-safe access to all live actors. It is the surface
// skill effects resolve targets against.
type World struct {
	mu     sync.RWMutex
	actors map[string]*Actor
}

// New creates an empty World.
func New() *World {
	return &World{actors: make(map[string]*Actor)}
}

// Add registers an actor.
//
// Postcondition: Returns an error if an actor with the same ID is already present.
func (w *World) Add(a *Actor) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, exists := w.actors[a.ID]; exists {
		return fmt.Errorf("duplicate actor ID: %q", a.ID)
	}
	w.actors[a.ID] = a
	return nil
}

// Remove unregisters the actor with the given ID. Removing an absent actor is a no-op.
func (w *World) Remove(id string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	delete(w.actors, id)
}

// Get returns the actor with the given ID.
//
// Postcondition: Returns (actor, true) if found, or (nil, false) otherwise.
func (w *World) Get(id string) (*Actor, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	a, ok := w.actors[id]
	return a, ok
}

// Count returns the number of registered actors.
func (w *World) Count() int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return len(w.actors)
}

// Actors returns all registered actors sorted by ID.
//
// Postcondition: Returns a non-nil slice; may be empty.
func (w *World) Actors() []*Actor {
	w.mu.RLock()
	defer w.mu.RUnlock()
	out := make([]*Actor, 0, len(w.actors))
	for _, a := range w.actors {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Allied reports whether two actors share a non-empty team.
func Allied(a, b *Actor) bool {
	return a.Team != "" && a.Team == b.Team
}

// LivingTarget returns the nearest living actor to from within rng, excluding
// from itself. Ties break by actor ID so target selection is deterministic.
//
// Postcondition: Returns (actor, true) if a living actor is in range, or (nil, false) otherwise.
func (w *World) LivingTarget(from *Actor, rng float64) (*Actor, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	var best *Actor
	bestDist := rng
	for _, a := range w.actors {
		if a.ID == from.ID || !a.Alive() {
			continue
		}
		d := from.DistanceTo(a)
		if d > rng {
			continue
		}
		if best == nil || d < bestDist || (d == bestDist && a.ID < best.ID) {
			best = a
			bestDist = d
		}
	}
	return best, best != nil
}

// Damage reduces the target's health by amount, clamping at 0. It returns the
// health actually removed and whether this damage killed the target.
//
// Precondition: amount must be >= 0.
func (w *World) Damage(target *Actor, amount float64) (dealt float64, died bool) {
	if amount < 0 {
		panic("world: Damage with negative amount")
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if !target.Alive() {
		return 0, false
	}
	dealt = amount
	if dealt > target.Health {
		dealt = target.Health
	}
	target.Health -= dealt
	return dealt, target.Health <= 0
}

// Heal raises the target's health by amount, clamping at MaxHealth. Dead
// actors cannot be healed. It returns the health actually restored.
//
// Precondition: amount must be >= 0.
func (w *World) Heal(target *Actor, amount float64) float64 {
	if amount < 0 {
		panic("world: Heal with negative amount")
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if !target.Alive() {
		return 0
	}
	healed := amount
	if target.Health+healed > target.MaxHealth {
		healed = target.MaxHealth - target.Health
	}
	target.Health += healed
	return healed
}

// Broadcast delivers msg to every actor within radius of from, including from
// itself. Actors without a sink are skipped.
func (w *World) Broadcast(from *Actor, radius float64, msg string) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	for _, a := range w.actors {
		if from.DistanceTo(a) <= radius {
			a.Send(msg)
		}
	}
}

// TickStatuses advances every actor's status timers by elapsed and returns the
// expired status ids keyed by actor ID. Actors with no expiries are absent
// from the result.
func (w *World) TickStatuses(elapsed time.Duration) map[string][]string {
	w.mu.Lock()
	defer w.mu.Unlock()
	expired := make(map[string][]string)
	for id, a := range w.actors {
		if gone := a.Statuses.Tick(elapsed); len(gone) > 0 {
			expired[id] = gone
		}
	}
	return expired
}
