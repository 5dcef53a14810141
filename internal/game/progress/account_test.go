package progress_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cory-johannsen/grimoire/internal/game/effect"
	"github.com/cory-johannsen/grimoire/internal/game/event"
	"github.com/cory-johannsen/grimoire/internal/game/progress"
)

type stubActor struct {
	id   string
	name string
}

func (s *stubActor) UID() string         { return s.id }
func (s *stubActor) DisplayName() string { return s.name }

func TestAccount_Bootstrap_DefaultProfession(t *testing.T) {
	acct := newAccount(t, nil)

	cp, ok := acct.MainClass()
	require.True(t, ok)
	assert.Equal(t, "novice", cp.Definition().ID)

	strike, ok := acct.Skill("strike")
	require.True(t, ok)
	assert.Equal(t, 0, strike.Level(), "tree skills start locked")
	assert.Len(t, acct.Skills(), 3)
}

func TestAccount_SkillLookupIsCaseInsensitive(t *testing.T) {
	acct := newAccount(t, nil)
	_, ok := acct.Skill("StRiKe")
	assert.True(t, ok)
}

func TestAccount_CanProfess_ParentRules(t *testing.T) {
	settings := testSettings(t, nil)
	acct := progress.NewAccount("p1", settings)
	acct.EndInit() // no bootstrap: every group empty

	mage, _ := settings.Registry.Class("mage")
	novice, _ := settings.Registry.Class("novice")

	assert.ErrorIs(t, acct.CanProfess(mage), progress.ErrParentRequired,
		"a parented class needs an existing profession to advance from")
	require.NoError(t, acct.Profess(novice))

	assert.ErrorIs(t, acct.CanProfess(novice), progress.ErrParentMismatch,
		"re-professing the held class is rejected")
	assert.ErrorIs(t, acct.CanProfess(mage), progress.ErrParentNotMastered)

	acct.GiveExp(1000, "quest")
	assert.NoError(t, acct.CanProfess(mage))
}

func TestAccount_Profess_RetargetCarriesProgress(t *testing.T) {
	acct := newAccount(t, nil)
	cp := mainClass(t, acct)
	acct.GiveExp(1000, "quest") // master novice: level 5, 4 points banked
	pointsBefore := cp.Points()

	mage := mustClass(t, acct, "mage")
	require.NoError(t, acct.Profess(mage))

	after := mainClass(t, acct)
	assert.Same(t, cp, after, "the progress is retargeted in place")
	assert.Equal(t, "mage", after.Definition().ID)
	assert.Equal(t, 5, after.Level(), "level carries into the advanced class")
	assert.Equal(t, pointsBefore, after.Points())
	assert.False(t, after.Mastered(), "mage caps at 10, so 5 is no longer mastery")
}

func TestAccount_Profess_PermissionGate(t *testing.T) {
	acct := newAccount(t, nil)
	acct.GiveExp(1000, "quest")
	warlock := mustClass(t, acct, "warlock")

	assert.ErrorIs(t, acct.Profess(warlock), progress.ErrPermissionDenied,
		"no authorizer denies gated professions")

	acct.Settings().Authorizer = progress.AllowAll
	assert.NoError(t, acct.Profess(warlock))
}

func TestAccount_Profess_ResetOnProfessWipesGroup(t *testing.T) {
	acct := newAccount(t, nil)
	smith := mustClass(t, acct, "smith")
	require.NoError(t, acct.Profess(smith))

	cp, _ := acct.Class("craft")
	cp.GiveExp(1000, "craft") // master smith, bank points
	require.NoError(t, acct.UpgradeSkill("smelt"))

	alchemist := mustClass(t, acct, "alchemist")
	require.NoError(t, acct.Profess(alchemist))

	after, ok := acct.Class("craft")
	require.True(t, ok)
	assert.Equal(t, "alchemist", after.Definition().ID)
	assert.Equal(t, 1, after.Level(), "reset-on-profess starts the new class fresh")
	assert.Equal(t, 0, after.Points())

	smelt, ok := acct.Skill("smelt")
	require.True(t, ok, "alchemist re-grants its tree")
	assert.Equal(t, 0, smelt.Level(), "the upgraded rank did not survive the reset")
}

func TestAccount_Profess_FiresClassChange(t *testing.T) {
	bus := event.NewBus()
	var changes []*event.ClassChange
	bus.Subscribe(event.TopicClassChange, func(ev event.Event) {
		changes = append(changes, ev.(*event.ClassChange))
	})
	acct := newAccount(t, bus)
	require.Empty(t, changes, "bootstrap professions are silent")

	acct.GiveExp(1000, "quest")
	require.NoError(t, acct.Profess(mustClass(t, acct, "mage")))
	require.Len(t, changes, 1)
	assert.Equal(t, "novice", changes[0].PreviousID)
	assert.Equal(t, "mage", changes[0].CurrentID)
	assert.Equal(t, "class", changes[0].Group)
}

func TestAccount_Reset_RestoresDefaultProfession(t *testing.T) {
	bus := event.NewBus()
	var changes []*event.ClassChange
	bus.Subscribe(event.TopicClassChange, func(ev event.Event) {
		changes = append(changes, ev.(*event.ClassChange))
	})
	acct := newAccount(t, bus)
	acct.GiveExp(25, "quest")
	require.NoError(t, acct.UpgradeSkill("strike"))

	require.True(t, acct.Reset("class"))

	cp, ok := acct.MainClass()
	require.True(t, ok, "the class group re-professes its default")
	assert.Equal(t, "novice", cp.Definition().ID)
	assert.Equal(t, 1, cp.Level())
	strike, _ := acct.Skill("strike")
	assert.Equal(t, 0, strike.Level())

	require.Len(t, changes, 2, "one removal notification, one re-profession")
	assert.Equal(t, "", changes[0].CurrentID)
	assert.Equal(t, "novice", changes[1].CurrentID)
}

func TestAccount_Reset_GroupWithoutDefaultStaysEmpty(t *testing.T) {
	acct := newAccount(t, nil)
	require.NoError(t, acct.Profess(mustClass(t, acct, "smith")))

	require.True(t, acct.Reset("craft"))
	_, ok := acct.Class("craft")
	assert.False(t, ok)
	_, ok = acct.Skill("smelt")
	assert.False(t, ok, "the group's skills leave with it")
}

func TestAccount_Reset_UnheldGroup(t *testing.T) {
	acct := newAccount(t, nil)
	assert.False(t, acct.Reset("craft"))
}

func TestAccount_ResetAll(t *testing.T) {
	acct := newAccount(t, nil)
	require.NoError(t, acct.Profess(mustClass(t, acct, "smith")))
	acct.GiveExp(1000, "quest")

	acct.ResetAll()

	cp, ok := acct.MainClass()
	require.True(t, ok)
	assert.Equal(t, 1, cp.Level(), "default profession came back fresh")
	_, ok = acct.Class("craft")
	assert.False(t, ok, "craft has no default and stays empty")
}

func TestAccount_Recompute_DerivedStats(t *testing.T) {
	acct := newAccount(t, nil)
	// novice level 1: health 20, mana 50
	assert.Equal(t, 20.0, acct.MaxHealth())
	assert.Equal(t, 50.0, acct.Mana().Max())

	levelUp(t, acct, 2) // level 3: health 20+2*2, mana 50+10*2
	assert.Equal(t, 24.0, acct.MaxHealth())
	assert.Equal(t, 70.0, acct.Mana().Max())
}

func TestAccount_Recompute_DefaultHealthWithNoClasses(t *testing.T) {
	acct := progress.NewAccount("p1", testSettings(t, nil))
	acct.EndInit()
	assert.Equal(t, 20.0, acct.MaxHealth(), "the configured baseline applies")
}

func TestAccount_BonusesSurviveProfessionChange(t *testing.T) {
	acct := newAccount(t, nil)
	acct.AddMaxMana(15)
	acct.AddMaxHealth(10)
	assert.Equal(t, 65.0, acct.Mana().Max())
	assert.Equal(t, 30.0, acct.MaxHealth())

	acct.GiveExp(1000, "quest")
	require.NoError(t, acct.Profess(mustClass(t, acct, "mage")))

	// mage level 5: mana 80+15*4=140, health 24+3*4=36, plus bonuses
	assert.Equal(t, 155.0, acct.Mana().Max())
	assert.Equal(t, 46.0, acct.MaxHealth())
}

func TestAccount_GiveMana_VetoAndAdjust(t *testing.T) {
	bus := event.NewBus()
	acct := newAccount(t, bus)
	acct.Mana().Use(40)

	bus.Subscribe(event.TopicManaGain, func(ev event.Event) {
		ev.(*event.ManaGain).SetAmount(5)
	})
	assert.Equal(t, 5.0, acct.GiveMana(30, "potion"))

	bus.Subscribe(event.TopicManaGain, func(ev event.Event) {
		ev.(*event.ManaGain).Cancel()
	})
	assert.Equal(t, 0.0, acct.GiveMana(30, "potion"))
	assert.Equal(t, 15.0, acct.Mana().Current())
}

func TestAccount_UseMana_Veto(t *testing.T) {
	bus := event.NewBus()
	acct := newAccount(t, bus)
	bus.Subscribe(event.TopicManaLoss, func(ev event.Event) {
		ev.(*event.ManaLoss).Cancel()
	})
	assert.False(t, acct.UseMana(10, "cast"))
	assert.Equal(t, 50.0, acct.Mana().Current())
}

func TestAccount_RegenMana(t *testing.T) {
	acct := newAccount(t, nil)
	assert.Equal(t, 0.0, acct.RegenMana(), "a full pool regenerates nothing")

	acct.Mana().Use(10)
	assert.Equal(t, 2.0, acct.RegenMana(), "novice regenerates its class rate")
	assert.Equal(t, 42.0, acct.Mana().Current())
}

func TestAccount_StatsUpdated_SuppressedDuringInit(t *testing.T) {
	bus := event.NewBus()
	var stats []*event.StatsUpdated
	bus.Subscribe(event.TopicStatsUpdated, func(ev event.Event) {
		stats = append(stats, ev.(*event.StatsUpdated))
	})

	acct := progress.NewAccount("p1", testSettings(t, bus))
	acct.Bootstrap()
	assert.Empty(t, stats, "hydration publishes nothing")

	acct.EndInit()
	require.Len(t, stats, 1)
	assert.Equal(t, 20.0, stats[0].MaxHealth)
	assert.Equal(t, 50.0, stats[0].MaxMana)
}

func TestAccount_TickCooldowns(t *testing.T) {
	acct := newAccount(t, nil)
	levelUp(t, acct, 1)
	require.NoError(t, acct.UpgradeSkill("strike"))
	strike, _ := acct.Skill("strike")
	strike.StartCooldown()
	require.True(t, strike.OnCooldown())

	assert.Empty(t, acct.TickCooldowns(time.Second))
	assert.Equal(t, []string{"strike"}, acct.TickCooldowns(time.Second))
	assert.False(t, strike.OnCooldown())
	assert.Empty(t, acct.TickCooldowns(time.Second), "a finished cooldown reports once")
}

func TestAccount_PassiveLifecycle(t *testing.T) {
	var calls []string
	resolver := effect.Funcs{Passives: map[string]effect.Passive{
		"toughness": effect.PassiveHooks{
			OnInitialize: func(_ effect.Actor, level int) {
				calls = append(calls, "init")
			},
			OnUpdate: func(_ effect.Actor, oldLevel, newLevel int) {
				calls = append(calls, "update")
			},
			OnStop: func(_ effect.Actor, level int) {
				calls = append(calls, "stop")
			},
		},
	}}
	settings := testSettings(t, nil)
	settings.Effects = resolver
	acct := progress.NewAccount("p1", settings)
	acct.Bootstrap()
	acct.EndInit()
	acct.Attach(&stubActor{id: "p1", name: "Hero"})

	levelUp(t, acct, 2)
	require.NoError(t, acct.UpgradeSkill("toughness"))
	assert.Equal(t, []string{"init"}, calls, "rank 1 initializes the passive")

	require.NoError(t, acct.UpgradeSkill("toughness"))
	assert.Equal(t, []string{"init", "update"}, calls)

	require.NoError(t, acct.DowngradeSkill("toughness"))
	assert.Equal(t, []string{"init", "update", "update"}, calls)

	require.NoError(t, acct.DowngradeSkill("toughness"))
	assert.Equal(t, []string{"init", "update", "update", "stop"}, calls,
		"rank 0 stops the passive")
}

func TestAccount_AttachStartsPassives_DetachStops(t *testing.T) {
	var calls []string
	resolver := effect.Funcs{Passives: map[string]effect.Passive{
		"toughness": effect.PassiveHooks{
			OnInitialize: func(_ effect.Actor, level int) { calls = append(calls, "init") },
			OnStop:       func(_ effect.Actor, level int) { calls = append(calls, "stop") },
		},
	}}
	settings := testSettings(t, nil)
	settings.Effects = resolver
	acct := progress.NewAccount("p1", settings)
	acct.Bootstrap()
	acct.EndInit()

	levelUp(t, acct, 1)
	require.NoError(t, acct.UpgradeSkill("toughness"))
	assert.Empty(t, calls, "offline rank transitions skip effect hooks")

	acct.Attach(&stubActor{id: "p1", name: "Hero"})
	assert.Equal(t, []string{"init"}, calls)

	acct.Detach()
	assert.Equal(t, []string{"init", "stop"}, calls)
}

func TestAccount_PassivePanicAbsorbed(t *testing.T) {
	resolver := effect.Funcs{Passives: map[string]effect.Passive{
		"toughness": effect.PassiveHooks{
			OnInitialize: func(effect.Actor, int) { panic("bad effect") },
		},
	}}
	settings := testSettings(t, nil)
	settings.Effects = resolver
	acct := progress.NewAccount("p1", settings)
	acct.Bootstrap()
	acct.EndInit()
	acct.Attach(&stubActor{id: "p1", name: "Hero"})

	levelUp(t, acct, 1)
	require.NoError(t, acct.UpgradeSkill("toughness"), "a faulty hook cannot fail the upgrade")
	tough, _ := acct.Skill("toughness")
	assert.Equal(t, 1, tough.Level())
}
