package message

import (
	"github.com/cory-johannsen/grimoire/internal/game/world"
)

// Messenger delivers rendered catalog messages to actors, directly or as a
// proximity broadcast. The zero radius disables broadcasts entirely.
type Messenger struct {
	catalog *Catalog
	world   *world.World
	radius  float64
}

// NewMessenger creates a Messenger broadcasting within radius of the source actor.
// Precondition: catalog and w must not be nil.
func NewMessenger(catalog *Catalog, w *world.World, radius float64) *Messenger {
	if catalog == nil {
		panic("message: NewMessenger with nil catalog")
	}
	if w == nil {
		panic("message: NewMessenger with nil world")
	}
	return &Messenger{catalog: catalog, world: w, radius: radius}
}

// To renders key and sends it to the actor with the given id. Unknown actors
// are skipped.
func (m *Messenger) To(actorID, key string, vars map[string]string) {
	a, ok := m.world.Get(actorID)
	if !ok {
		return
	}
	a.Send(m.catalog.Render(key, vars))
}

// Nearby renders key and broadcasts it to every actor within the configured
// radius of the actor with the given id, the source included.
func (m *Messenger) Nearby(actorID, key string, vars map[string]string) {
	if m.radius <= 0 {
		return
	}
	from, ok := m.world.Get(actorID)
	if !ok {
		return
	}
	m.world.Broadcast(from, m.radius, m.catalog.Render(key, vars))
}
