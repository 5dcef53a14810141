package world_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/cory-johannsen/grimoire/internal/game/status"
	"github.com/cory-johannsen/grimoire/internal/game/world"
)

type captureSink struct {
	msgs []string
}

func (c *captureSink) Send(msg string) { c.msgs = append(c.msgs, msg) }

func actorAt(id string, x, y float64) *world.Actor {
	a := world.NewActor(id, id, 20)
	a.MoveTo(x, y)
	return a
}

func TestWorld_AddGetRemove(t *testing.T) {
	w := world.New()
	a := world.NewActor("hero", "Hero", 20)
	require.NoError(t, w.Add(a))

	got, ok := w.Get("hero")
	require.True(t, ok)
	assert.Equal(t, a, got)

	w.Remove("hero")
	_, ok = w.Get("hero")
	assert.False(t, ok)
}

func TestWorld_Add_DuplicateID(t *testing.T) {
	w := world.New()
	require.NoError(t, w.Add(world.NewActor("hero", "Hero", 20)))
	err := w.Add(world.NewActor("hero", "Other", 20))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate actor ID")
}

func TestWorld_Actors_SortedByID(t *testing.T) {
	w := world.New()
	require.NoError(t, w.Add(world.NewActor("c", "C", 20)))
	require.NoError(t, w.Add(world.NewActor("a", "A", 20)))
	require.NoError(t, w.Add(world.NewActor("b", "B", 20)))
	all := w.Actors()
	require.Len(t, all, 3)
	assert.Equal(t, "a", all[0].ID)
	assert.Equal(t, "b", all[1].ID)
	assert.Equal(t, "c", all[2].ID)
}

func TestAllied(t *testing.T) {
	a := world.NewActor("a", "A", 20)
	b := world.NewActor("b", "B", 20)
	assert.False(t, world.Allied(a, b), "empty teams are never allied")

	a.Team = "red"
	b.Team = "red"
	assert.True(t, world.Allied(a, b))

	b.Team = "blue"
	assert.False(t, world.Allied(a, b))
}

func TestWorld_LivingTarget_Nearest(t *testing.T) {
	w := world.New()
	caster := actorAt("caster", 0, 0)
	near := actorAt("near", 3, 4) // distance 5
	far := actorAt("far", 6, 8)   // distance 10
	require.NoError(t, w.Add(caster))
	require.NoError(t, w.Add(near))
	require.NoError(t, w.Add(far))

	got, ok := w.LivingTarget(caster, 15)
	require.True(t, ok)
	assert.Equal(t, "near", got.ID)
}

func TestWorld_LivingTarget_ExcludesSelf(t *testing.T) {
	w := world.New()
	caster := actorAt("caster", 0, 0)
	require.NoError(t, w.Add(caster))

	_, ok := w.LivingTarget(caster, 100)
	assert.False(t, ok)
}

func TestWorld_LivingTarget_ExcludesDead(t *testing.T) {
	w := world.New()
	caster := actorAt("caster", 0, 0)
	corpse := actorAt("corpse", 1, 0)
	corpse.Health = 0
	live := actorAt("live", 5, 0)
	require.NoError(t, w.Add(caster))
	require.NoError(t, w.Add(corpse))
	require.NoError(t, w.Add(live))

	got, ok := w.LivingTarget(caster, 10)
	require.True(t, ok)
	assert.Equal(t, "live", got.ID)
}

func TestWorld_LivingTarget_OutOfRange(t *testing.T) {
	w := world.New()
	caster := actorAt("caster", 0, 0)
	far := actorAt("far", 50, 0)
	require.NoError(t, w.Add(caster))
	require.NoError(t, w.Add(far))

	_, ok := w.LivingTarget(caster, 10)
	assert.False(t, ok)
}

func TestWorld_Damage_ClampsAtZero(t *testing.T) {
	w := world.New()
	a := world.NewActor("a", "A", 20)
	require.NoError(t, w.Add(a))

	dealt, died := w.Damage(a, 50)
	assert.Equal(t, 20.0, dealt)
	assert.True(t, died)
	assert.Equal(t, 0.0, a.Health)
}

func TestWorld_Damage_DeadActorUntouched(t *testing.T) {
	w := world.New()
	a := world.NewActor("a", "A", 20)
	a.Health = 0
	require.NoError(t, w.Add(a))

	dealt, died := w.Damage(a, 5)
	assert.Equal(t, 0.0, dealt)
	assert.False(t, died)
}

func TestWorld_Heal_ClampsAtMax(t *testing.T) {
	w := world.New()
	a := world.NewActor("a", "A", 20)
	a.Health = 15
	require.NoError(t, w.Add(a))

	healed := w.Heal(a, 50)
	assert.Equal(t, 5.0, healed)
	assert.Equal(t, 20.0, a.Health)
}

func TestWorld_Heal_DeadActorNotHealed(t *testing.T) {
	w := world.New()
	a := world.NewActor("a", "A", 20)
	a.Health = 0
	require.NoError(t, w.Add(a))

	assert.Equal(t, 0.0, w.Heal(a, 10))
	assert.False(t, a.Alive())
}

func TestWorld_Broadcast_RadiusAndSinks(t *testing.T) {
	w := world.New()
	from := actorAt("from", 0, 0)
	fromSink := &captureSink{}
	from.Sink = fromSink

	near := actorAt("near", 3, 0)
	nearSink := &captureSink{}
	near.Sink = nearSink

	far := actorAt("far", 30, 0)
	farSink := &captureSink{}
	far.Sink = farSink

	noSink := actorAt("nosink", 1, 0) // must not panic

	require.NoError(t, w.Add(from))
	require.NoError(t, w.Add(near))
	require.NoError(t, w.Add(far))
	require.NoError(t, w.Add(noSink))

	w.Broadcast(from, 10, "Hero casts Fireball!")

	assert.Equal(t, []string{"Hero casts Fireball!"}, fromSink.msgs, "sender hears its own broadcast")
	assert.Equal(t, []string{"Hero casts Fireball!"}, nearSink.msgs)
	assert.Empty(t, farSink.msgs)
}

func TestWorld_TickStatuses(t *testing.T) {
	w := world.New()
	a := world.NewActor("a", "A", 20)
	b := world.NewActor("b", "B", 20)
	require.NoError(t, w.Add(a))
	require.NoError(t, w.Add(b))

	a.Statuses.Apply(&status.Definition{ID: "burning", MaxStacks: 3}, 1, time.Second)
	b.Statuses.Apply(&status.Definition{ID: "warded"}, 1, time.Minute)

	expired := w.TickStatuses(time.Second)
	assert.Equal(t, map[string][]string{"a": {"burning"}}, expired)
	assert.False(t, a.Statuses.Has("burning"))
	assert.True(t, b.Statuses.Has("warded"))
}

func TestPropertyWorld_DamageNeverNegativeHealth(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		maxHealth := rapid.Float64Range(1, 100).Draw(t, "max_health")
		amount := rapid.Float64Range(0, 200).Draw(t, "amount")
		w := world.New()
		a := world.NewActor("a", "A", maxHealth)
		require.NoError(t, w.Add(a))
		w.Damage(a, amount)
		assert.GreaterOrEqual(t, a.Health, 0.0,
			"health must never go negative")
	})
}

func TestPropertyWorld_HealNeverExceedsMax(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		maxHealth := rapid.Float64Range(1, 100).Draw(t, "max_health")
		dmg := rapid.Float64Range(0, 100).Draw(t, "dmg")
		heal := rapid.Float64Range(0, 200).Draw(t, "heal")
		w := world.New()
		a := world.NewActor("a", "A", maxHealth)
		require.NoError(t, w.Add(a))
		w.Damage(a, dmg)
		w.Heal(a, heal)
		assert.LessOrEqual(t, a.Health, a.MaxHealth,
			"health must never exceed MaxHealth")
	})
}
