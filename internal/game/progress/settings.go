// Package progress holds the per-account progression state machine: class
// professions keyed by group, skill ranks and cooldowns, the shared mana
// pool, and action-slot bindings. All mutation goes through Account methods;
// the engine loop serialises access, so none of these types lock.
package progress

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/cory-johannsen/grimoire/internal/game/effect"
	"github.com/cory-johannsen/grimoire/internal/game/event"
	"github.com/cory-johannsen/grimoire/internal/game/ruleset"
)

// Authorizer answers permission checks for gated professions.
type Authorizer interface {
	// Allowed reports whether the player holds the named permission.
	Allowed(playerID, permission string) bool
}

// AuthorizerFunc adapts a function to the Authorizer interface.
type AuthorizerFunc func(playerID, permission string) bool

// Allowed implements Authorizer.
func (f AuthorizerFunc) Allowed(playerID, permission string) bool {
	return f(playerID, permission)
}

// AllowAll grants every permission. Useful for tests and trusted setups.
var AllowAll Authorizer = AuthorizerFunc(func(string, string) bool { return true })

// Settings carries the collaborators and tunables every Account operation
// needs. One Settings is shared by all accounts; nothing ambient or global
// is consulted anywhere in this package.
type Settings struct {
	// Registry holds the validated class, skill, and group definitions.
	Registry *ruleset.Registry
	// Events receives domain events. Nil means no observers.
	Events *event.Bus
	// Effects resolves skill capability implementations. Nil resolves nothing,
	// so rank transitions never invoke effects.
	Effects effect.Resolver
	// Authorizer answers permission checks. Nil denies every permission-gated
	// profession.
	Authorizer Authorizer
	// Log is the structured logger shared by all accounts.
	Log *zap.Logger
	// ManaEnabled gates the mana-cost check in the cast pipeline. The pool
	// itself keeps working either way.
	ManaEnabled bool
	// DefaultHealth is the max-health baseline when no held class contributes any.
	DefaultHealth float64
	// MinHealth is the absolute max-health floor.
	MinHealth float64
	// MainGroup names the group whose class is the account's primary
	// profession for display purposes.
	MainGroup string
}

// Validate checks that the required collaborators and tunables are set.
//
// Postcondition: Returns nil if the Settings are usable, or an error naming
// the first problem.
func (s *Settings) Validate() error {
	if s.Registry == nil {
		return fmt.Errorf("progress settings: registry is required")
	}
	if s.Log == nil {
		return fmt.Errorf("progress settings: logger is required")
	}
	if s.MinHealth <= 0 {
		return fmt.Errorf("progress settings: min health must be positive, got %v", s.MinHealth)
	}
	if s.DefaultHealth < s.MinHealth {
		return fmt.Errorf("progress settings: default health %v below min health %v", s.DefaultHealth, s.MinHealth)
	}
	return nil
}

func (s *Settings) effects() effect.Resolver {
	if s.Effects == nil {
		return effect.None
	}
	return s.Effects
}

func (s *Settings) authorized(playerID, permission string) bool {
	if permission == "" {
		return true
	}
	if s.Authorizer == nil {
		return false
	}
	return s.Authorizer.Allowed(playerID, permission)
}
