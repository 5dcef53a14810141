package progress_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cory-johannsen/grimoire/internal/game/progress"
)

func newRoster(t *testing.T) *progress.Roster {
	t.Helper()
	r, err := progress.NewRoster(testSettings(t, nil))
	require.NoError(t, err)
	return r
}

func TestNewRoster_ValidatesSettings(t *testing.T) {
	_, err := progress.NewRoster(&progress.Settings{})
	assert.Error(t, err)
}

func TestRoster_CreateBootstrapsAndPublishes(t *testing.T) {
	r := newRoster(t)

	acct, err := r.Create("alice")
	require.NoError(t, err)

	cp, ok := acct.MainClass()
	require.True(t, ok)
	assert.Equal(t, "novice", cp.Definition().ID)
	assert.False(t, acct.Initializing())
	assert.True(t, acct.Mana().Full(), "fresh accounts spawn with full mana")

	got, ok := r.Get("alice")
	require.True(t, ok)
	assert.Same(t, acct, got)
	assert.Equal(t, 1, r.Count())
}

func TestRoster_CreateDuplicate(t *testing.T) {
	r := newRoster(t)
	_, err := r.Create("alice")
	require.NoError(t, err)

	_, err = r.Create("alice")
	assert.ErrorContains(t, err, "already live")
	assert.Equal(t, 1, r.Count())
}

func TestRoster_LoadRestoresSnapshot(t *testing.T) {
	r := newRoster(t)
	snap := seasonedAccount(t).Snapshot()

	acct, err := r.Load("p1", snap)
	require.NoError(t, err)

	cp, _ := acct.MainClass()
	assert.Equal(t, 5, cp.Level())
	strike, _ := acct.Skill("strike")
	assert.Equal(t, 2, strike.Level())
	assert.False(t, acct.Initializing())
}

func TestRoster_LoadBadSnapshotAddsNothing(t *testing.T) {
	r := newRoster(t)

	_, err := r.Load("bob", &progress.Snapshot{
		PlayerID: "bob",
		Classes: []progress.ClassState{
			{Group: "class", ClassID: "phantom", Level: 1},
		},
	})

	assert.Error(t, err)
	assert.Equal(t, 0, r.Count())
}

func TestRoster_RemoveDetaches(t *testing.T) {
	r := newRoster(t)
	acct, err := r.Create("alice")
	require.NoError(t, err)
	acct.Attach(&stubActor{id: "alice", name: "Alice"})

	require.NoError(t, r.Remove("alice"))

	assert.Nil(t, acct.Actor(), "removal takes the account out of the world")
	assert.Equal(t, 0, r.Count())
	assert.ErrorContains(t, r.Remove("alice"), "not found")
}

func TestRoster_AllSortedByPlayer(t *testing.T) {
	r := newRoster(t)
	for _, id := range []string{"carol", "alice", "bob"} {
		_, err := r.Create(id)
		require.NoError(t, err)
	}

	var ids []string
	for _, acct := range r.All() {
		ids = append(ids, acct.PlayerID())
	}
	assert.Equal(t, []string{"alice", "bob", "carol"}, ids)
}
