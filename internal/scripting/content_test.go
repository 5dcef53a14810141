package scripting_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/cory-johannsen/grimoire/internal/game/message"
	"github.com/cory-johannsen/grimoire/internal/game/ruleset"
	"github.com/cory-johannsen/grimoire/internal/game/status"
	"github.com/cory-johannsen/grimoire/internal/scripting"
)

func loadRepoContent(t *testing.T) *ruleset.Registry {
	t.Helper()
	reg, err := ruleset.Load("../../content/classes", "../../content/skills", "../../content/groups")
	require.NoError(t, err, "repo content should load and validate")
	return reg
}

func TestContent_RulesetLoadsAndValidates(t *testing.T) {
	reg := loadRepoContent(t)

	for _, id := range []string{"novice", "warrior", "mage", "warlock", "smith"} {
		_, ok := reg.Class(id)
		assert.True(t, ok, "class %q must be present", id)
	}
	for _, id := range []string{"strike", "recover", "bash", "warcry", "toughness",
		"fireball", "frostbolt", "focus", "soulburn", "temper"} {
		_, ok := reg.Skill(id)
		assert.True(t, ok, "skill %q must be present", id)
	}

	g, ok := reg.Group("class")
	require.True(t, ok)
	assert.Equal(t, "novice", g.Default, "the class group must bootstrap novices")
}

func TestContent_StatusesLoad(t *testing.T) {
	defs, err := status.LoadDirectory("../../content/statuses")
	require.NoError(t, err)
	for _, id := range []string{"burning", "slowed", "stunned", "rallied", "fortified", "keen_edge"} {
		_, ok := defs.Get(id)
		assert.True(t, ok, "status %q must be present", id)
	}
}

// TestContent_EveryCapabilityHasAHook resolves every shipped skill through the
// same effect lookup the cast pipeline uses. A declared capability with no
// hook behind it would make every cast of that shape fizzle silently.
func TestContent_EveryCapabilityHasAHook(t *testing.T) {
	reg := loadRepoContent(t)
	eng, _ := newTestEngine(t)
	require.NoError(t, eng.Load("../../content/scripts/skills", 0))
	effects := scripting.NewEffects(eng, reg)

	for _, def := range reg.Skills() {
		if def.Has(ruleset.CapImmediate) {
			_, ok := effects.Immediate(def.ID)
			assert.True(t, ok, "skill %q declares immediate but has no %s_cast hook", def.ID, def.ID)
		}
		if def.Has(ruleset.CapTarget) {
			_, ok := effects.Targeted(def.ID)
			assert.True(t, ok, "skill %q declares target but has no %s_target hook", def.ID, def.ID)
		}
		if def.Has(ruleset.CapPassive) {
			_, ok := effects.Passive(def.ID)
			assert.True(t, ok, "skill %q declares passive but has no passive hooks", def.ID)
		}
	}
}

// TestContent_SkillMessagesResolve verifies every custom cast-message key a
// skill names exists in the shipped catalog.
func TestContent_SkillMessagesResolve(t *testing.T) {
	reg := loadRepoContent(t)
	catalog := message.NewCatalog(zap.NewNop())
	require.NoError(t, catalog.Load("../../content/messages.yaml"))

	for _, def := range reg.Skills() {
		if def.Message != "" {
			assert.True(t, catalog.Has(def.Message),
				"skill %q names message key %q missing from the catalog", def.ID, def.Message)
		}
	}
}
