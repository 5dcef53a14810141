// Package main provides a content linter: it loads every content directory
// the server would load and reports cross-reference problems, without
// touching a database. CI runs it against the repo content.
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/cory-johannsen/grimoire/internal/config"
	"github.com/cory-johannsen/grimoire/internal/game/dice"
	"github.com/cory-johannsen/grimoire/internal/game/message"
	"github.com/cory-johannsen/grimoire/internal/game/ruleset"
	"github.com/cory-johannsen/grimoire/internal/game/status"
	"github.com/cory-johannsen/grimoire/internal/scripting"
)

func main() {
	configPath := flag.String("config", "configs/dev.yaml", "path to configuration file")
	flag.Parse()

	start := time.Now()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	registry, err := ruleset.Load(cfg.Content.ClassesDir, cfg.Content.SkillsDir, cfg.Content.GroupsDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: loading rule set: %v\n", err)
		os.Exit(1)
	}

	statuses, err := status.LoadDirectory(cfg.Content.StatusesDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: loading status definitions: %v\n", err)
		os.Exit(1)
	}

	nop := zap.NewNop()
	catalog := message.NewCatalog(nop)
	if cfg.Content.MessageFile != "" {
		if err := catalog.Load(cfg.Content.MessageFile); err != nil {
			fmt.Fprintf(os.Stderr, "error: loading message catalog: %v\n", err)
			os.Exit(1)
		}
	}

	scripts := scripting.NewEngine(dice.NewLoggedRoller(dice.NewCryptoSource(), nop), nop)
	defer scripts.Close()
	if err := scripts.Load(cfg.Content.ScriptsDir, cfg.Content.ScriptInstructionLimit); err != nil {
		fmt.Fprintf(os.Stderr, "error: loading skill scripts: %v\n", err)
		os.Exit(1)
	}

	// Every declared capability needs a hook behind it, or casts of that
	// shape will always fizzle.
	var problems []string
	for _, def := range registry.Skills() {
		if def.Has(ruleset.CapImmediate) && !scripts.HasHook(def.ID+"_cast") {
			problems = append(problems, fmt.Sprintf("skill %s: declares %s but no %s_cast hook", def.ID, ruleset.CapImmediate, def.ID))
		}
		if def.Has(ruleset.CapTarget) && !scripts.HasHook(def.ID+"_target") {
			problems = append(problems, fmt.Sprintf("skill %s: declares %s but no %s_target hook", def.ID, ruleset.CapTarget, def.ID))
		}
		if def.Has(ruleset.CapPassive) {
			base := def.ID + "_passive_"
			if !scripts.HasHook(base+"start") && !scripts.HasHook(base+"update") && !scripts.HasHook(base+"stop") {
				problems = append(problems, fmt.Sprintf("skill %s: declares %s but no %s{start,update,stop} hook", def.ID, ruleset.CapPassive, base))
			}
		}
		if def.Message != "" && !catalog.Has(def.Message) {
			problems = append(problems, fmt.Sprintf("skill %s: message key %q not in catalog", def.ID, def.Message))
		}
	}

	fmt.Printf("checked %d classes, %d skills, %d groups, %d statuses in %s\n",
		len(registry.Classes()), len(registry.Skills()), len(registry.Groups()),
		len(statuses.All()), time.Since(start).Round(time.Millisecond))

	if len(problems) > 0 {
		for _, p := range problems {
			fmt.Fprintf(os.Stderr, "problem: %s\n", p)
		}
		fmt.Fprintf(os.Stderr, "%d problems found\n", len(problems))
		os.Exit(1)
	}
	fmt.Println("content is consistent")
}
