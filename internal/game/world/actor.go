// Package world provides the runtime actor registry skill effects act on:
// positioned actors with health, teams, and active statuses.
package world

import (
	"math"

	"github.com/cory-johannsen/grimoire/internal/game/status"
)

// Sink receives text lines addressed to a single actor. Player sessions attach
// their connection here; NPC actors usually leave it nil.
type Sink interface {
	Send(msg string)
}

// Actor is a living entity in the world: a player avatar or an NPC.
type Actor struct {
	// ID uniquely identifies this actor for the lifetime of the world.
	ID string
	// Name is the display name used in messages and logs.
	Name string
	// Team groups allied actors. Empty means unaffiliated.
	Team string
	// X, Y is the actor's position on the world plane.
	X, Y float64
	// Health is the current health. 0 means dead.
	Health float64
	// MaxHealth is the health ceiling Heal clamps to.
	MaxHealth float64
	// Statuses holds the timed statuses currently affecting this actor.
	Statuses *status.Set
	// Sink, when non-nil, receives messages addressed to this actor.
	Sink Sink
}

// NewActor creates a live actor at the given position with full health.
// Precondition: id must not be empty and maxHealth must be > 0.
func NewActor(id, name string, maxHealth float64) *Actor {
	if id == "" {
		panic("world: NewActor with empty id")
	}
	if maxHealth <= 0 {
		panic("world: NewActor with non-positive maxHealth")
	}
	return &Actor{
		ID:        id,
		Name:      name,
		Health:    maxHealth,
		MaxHealth: maxHealth,
		Statuses:  status.NewSet(),
	}
}

// UID returns the actor's unique ID.
func (a *Actor) UID() string { return a.ID }

// DisplayName returns the actor's display name.
func (a *Actor) DisplayName() string { return a.Name }

// Alive reports whether the actor has health remaining.
func (a *Actor) Alive() bool { return a.Health > 0 }

// DistanceTo returns the Euclidean distance to other.
func (a *Actor) DistanceTo(other *Actor) float64 {
	dx := a.X - other.X
	dy := a.Y - other.Y
	return math.Sqrt(dx*dx + dy*dy)
}

// MoveTo places the actor at x, y.
func (a *Actor) MoveTo(x, y float64) {
	a.X = x
	a.Y = y
}

// Send delivers msg to the actor's sink, if one is attached.
func (a *Actor) Send(msg string) {
	if a.Sink != nil {
		a.Sink.Send(msg)
	}
}
