// Package event provides the synchronous domain event bus for progression
// state changes. Publishing runs every handler inline on the caller's
// goroutine and returns only when all handlers have run, so a publisher can
// inspect an event for veto or amount adjustments before mutating any state.
//
// The bus is not safe for concurrent use; the engine goroutine owns it.
package event

// Topic identifies a category of domain event.
type Topic string

const (
	TopicSkillUpgrade   Topic = "skill.upgrade"
	TopicSkillDowngrade Topic = "skill.downgrade"
	TopicSkillUnlock    Topic = "skill.unlock"
	TopicClassChange    Topic = "class.change"
	TopicLevelUp        Topic = "class.levelup"
	TopicExpGain        Topic = "class.exp"
	TopicManaGain       Topic = "mana.gain"
	TopicManaLoss       Topic = "mana.loss"
	TopicPreCast        Topic = "cast.pre"
	TopicStatsUpdated   Topic = "account.stats"
)

// Event is implemented by every domain event.
type Event interface {
	Topic() Topic
}

// Handler consumes a published event. Handlers may mutate the event (veto,
// amount adjustment) but must not publish from within a handler.
type Handler func(Event)

// Bus dispatches events to subscribed handlers in subscription order.
// A nil *Bus is valid: Publish on it is a no-op, for detached accounts.
type Bus struct {
	handlers map[Topic][]Handler
}

// NewBus returns an empty Bus.
//
// Postcondition: Returns a non-nil *Bus ready to accept subscriptions.
func NewBus() *Bus {
	return &Bus{handlers: make(map[Topic][]Handler)}
}

// Subscribe registers h for the given topic. Handlers for a topic run in the
// order they were subscribed.
//
// Precondition: b and h must be non-nil.
func (b *Bus) Subscribe(topic Topic, h Handler) {
	if b == nil {
		panic("event.Bus.Subscribe: precondition violated: bus must be non-nil")
	}
	if h == nil {
		panic("event.Bus.Subscribe: precondition violated: handler must be non-nil")
	}
	b.handlers[topic] = append(b.handlers[topic], h)
}

// Publish dispatches ev to every handler subscribed to its topic, inline,
// then returns. Publishing on a nil bus or a topic with no handlers is a
// no-op.
//
// Precondition: ev must be non-nil.
func (b *Bus) Publish(ev Event) {
	if b == nil {
		return
	}
	for _, h := range b.handlers[ev.Topic()] {
		h(ev)
	}
}
