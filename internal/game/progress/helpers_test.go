package progress_test

import (
	"testing"

	"go.uber.org/zap/zaptest"

	"github.com/cory-johannsen/grimoire/internal/game/event"
	"github.com/cory-johannsen/grimoire/internal/game/progress"
	"github.com/cory-johannsen/grimoire/internal/game/ruleset"
)

// testRegistry builds a small rule set:
//
//	group "class" (default novice) holds novice -> mage
//	group "craft" (reset on profess, death penalty) holds smith
//	novice tree: strike (immediate), fireball (target, needs strike 2),
//	             toughness (passive)
//	smith tree:  smelt (immediate)
//	tree-less:   gift (free first rank), blessing (free ladder to cap)
func testRegistry(t testing.TB) *ruleset.Registry {
	t.Helper()
	reg := ruleset.NewRegistry()

	reg.RegisterGroup(&ruleset.Group{ID: "class", Default: "novice"})
	reg.RegisterGroup(&ruleset.Group{ID: "craft", ResetOnProfess: true, DeathPenalty: 0.5})

	reg.RegisterClass(&ruleset.Class{
		ID:             "novice",
		Name:           "Novice",
		Group:          "class",
		MaxLevel:       5,
		PointsPerLevel: 1,
		Health:         ruleset.Scale{Base: 20, PerLevel: 2},
		Mana:           ruleset.Scale{Base: 50, PerLevel: 10},
		ManaRegen:      2,
		ExpCurve:       ruleset.ExpCurve{Base: 10},
		Skills:         []string{"strike", "fireball", "toughness"},
	})
	reg.RegisterClass(&ruleset.Class{
		ID:             "mage",
		Name:           "Mage",
		Group:          "class",
		Parent:         "novice",
		MaxLevel:       10,
		PointsPerLevel: 2,
		Health:         ruleset.Scale{Base: 24, PerLevel: 3},
		Mana:           ruleset.Scale{Base: 80, PerLevel: 15},
		ManaRegen:      4,
		ExpCurve:       ruleset.ExpCurve{Base: 20},
		Skills:         []string{"strike", "fireball", "toughness"},
	})
	reg.RegisterClass(&ruleset.Class{
		ID:             "warlock",
		Name:           "Warlock",
		Group:          "class",
		Parent:         "novice",
		MaxLevel:       10,
		PointsPerLevel: 2,
		Health:         ruleset.Scale{Base: 22, PerLevel: 2},
		Mana:           ruleset.Scale{Base: 90, PerLevel: 20},
		ExpCurve:       ruleset.ExpCurve{Base: 20},
		Permission:     "grimoire.class.warlock",
	})
	reg.RegisterClass(&ruleset.Class{
		ID:             "smith",
		Name:           "Smith",
		Group:          "craft",
		MaxLevel:       3,
		PointsPerLevel: 1,
		ExpCurve:       ruleset.ExpCurve{Base: 10},
		ExpSources:     []string{"craft"},
		Skills:         []string{"smelt"},
	})
	reg.RegisterClass(&ruleset.Class{
		ID:             "alchemist",
		Name:           "Alchemist",
		Group:          "craft",
		Parent:         "smith",
		MaxLevel:       3,
		PointsPerLevel: 1,
		ExpCurve:       ruleset.ExpCurve{Base: 10},
		ExpSources:     []string{"craft"},
		Skills:         []string{"smelt"},
	})

	reg.RegisterSkill(&ruleset.Skill{
		ID:           "strike",
		Name:         "Strike",
		MaxLevel:     3,
		Capabilities: []string{ruleset.CapImmediate},
		Cost:         ruleset.Scale{Base: 1},
		LevelReq:     ruleset.Scale{Base: 1, PerLevel: 1},
		ManaCost:     ruleset.Scale{Base: 5},
		Cooldown:     ruleset.Scale{Base: 2},
	})
	reg.RegisterSkill(&ruleset.Skill{
		ID:            "fireball",
		Name:          "Fireball",
		MaxLevel:      2,
		Capabilities:  []string{ruleset.CapTarget},
		Cost:          ruleset.Scale{Base: 2},
		LevelReq:      ruleset.Scale{Base: 2, PerLevel: 1},
		ManaCost:      ruleset.Scale{Base: 20, PerLevel: 5},
		Cooldown:      ruleset.Scale{Base: 6},
		Range:         ruleset.Scale{Base: 10, PerLevel: 2},
		ReqSkill:      "strike",
		ReqSkillLevel: 2,
	})
	reg.RegisterSkill(&ruleset.Skill{
		ID:           "toughness",
		Name:         "Toughness",
		MaxLevel:     2,
		Capabilities: []string{ruleset.CapPassive},
		Cost:         ruleset.Scale{Base: 1},
		LevelReq:     ruleset.Scale{Base: 1},
	})
	reg.RegisterSkill(&ruleset.Skill{
		ID:           "smelt",
		Name:         "Smelt",
		MaxLevel:     2,
		Capabilities: []string{ruleset.CapImmediate},
		Cost:         ruleset.Scale{Base: 1},
		LevelReq:     ruleset.Scale{Base: 1},
	})
	reg.RegisterSkill(&ruleset.Skill{
		ID:           "gift",
		Name:         "Gift",
		MaxLevel:     3,
		Capabilities: []string{ruleset.CapImmediate},
		Cost:         ruleset.Scale{Base: 0, PerLevel: 1},
		LevelReq:     ruleset.Scale{Base: 1},
	})
	reg.RegisterSkill(&ruleset.Skill{
		ID:           "blessing",
		Name:         "Blessing",
		MaxLevel:     2,
		Capabilities: []string{ruleset.CapPassive},
		LevelReq:     ruleset.Scale{Base: 1},
	})

	return reg
}

func testSettings(t testing.TB, bus *event.Bus) *progress.Settings {
	t.Helper()
	return &progress.Settings{
		Registry:      testRegistry(t),
		Events:        bus,
		Log:           zaptest.NewLogger(t),
		ManaEnabled:   true,
		DefaultHealth: 20,
		MinHealth:     1,
		MainGroup:     "class",
	}
}

// newAccount returns a live account bootstrapped into the default novice class.
func newAccount(t testing.TB, bus *event.Bus) *progress.Account {
	t.Helper()
	acct := progress.NewAccount("p1", testSettings(t, bus))
	acct.Bootstrap()
	acct.EndInit()
	return acct
}

// levelUp grants enough experience for exactly n novice level-ups (10 exp each).
func levelUp(t testing.TB, acct *progress.Account, n int) {
	t.Helper()
	acct.GiveExp(n*10, "quest")
}
