package server

import (
	"github.com/cory-johannsen/grimoire/internal/game/cast"
	"github.com/cory-johannsen/grimoire/internal/game/effect"
	"github.com/cory-johannsen/grimoire/internal/game/world"
)

// worldTargets adapts the world's proximity search to the cast pipeline's
// resolver contract.
type worldTargets struct {
	w *world.World
}

// NewTargetResolver returns a cast.TargetResolver backed by w.
//
// Precondition: w must not be nil.
func NewTargetResolver(w *world.World) cast.TargetResolver {
	if w == nil {
		panic("server.NewTargetResolver: world must not be nil")
	}
	return worldTargets{w: w}
}

// LivingTarget resolves the nearest living actor to the caster. A caster that
// is not itself in the world resolves nothing.
func (t worldTargets) LivingTarget(from effect.Actor, rng float64) (effect.Actor, bool, bool) {
	caster, ok := t.w.Get(from.UID())
	if !ok {
		return nil, false, false
	}
	target, ok := t.w.LivingTarget(caster, rng)
	if !ok {
		return nil, false, false
	}
	return target, world.Allied(caster, target), true
}
