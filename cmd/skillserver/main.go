// Package main provides the skill server binary: it loads the rule set and
// scripted effects, connects PostgreSQL persistence, and runs the engine
// loop that owns all progression state.
package main

import (
	"context"
	"flag"
	"log"
	"time"

	"go.uber.org/zap"

	"github.com/cory-johannsen/grimoire/internal/config"
	"github.com/cory-johannsen/grimoire/internal/game/cast"
	"github.com/cory-johannsen/grimoire/internal/game/dice"
	"github.com/cory-johannsen/grimoire/internal/game/event"
	"github.com/cory-johannsen/grimoire/internal/game/message"
	"github.com/cory-johannsen/grimoire/internal/game/progress"
	"github.com/cory-johannsen/grimoire/internal/game/ruleset"
	"github.com/cory-johannsen/grimoire/internal/game/status"
	"github.com/cory-johannsen/grimoire/internal/game/world"
	"github.com/cory-johannsen/grimoire/internal/observability"
	"github.com/cory-johannsen/grimoire/internal/scripting"
	"github.com/cory-johannsen/grimoire/internal/server"
	"github.com/cory-johannsen/grimoire/internal/storage/postgres"
)

// directOnly passes personal feedback through and drops area announcements.
// Wired when game.skill_messages is off.
type directOnly struct {
	inner cast.Feedback
}

func (d directOnly) To(actorID, key string, vars map[string]string) {
	d.inner.To(actorID, key, vars)
}

func (d directOnly) Nearby(string, string, map[string]string) {}

func main() {
	start := time.Now()

	configPath := flag.String("config", "configs/dev.yaml", "path to configuration file")
	flag.Parse()

	ctx := context.Background()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logging)
	if err != nil {
		log.Fatalf("initializing logger: %v", err)
	}
	defer logger.Sync()

	logger.Info("starting skill server",
		zap.Duration("tick_interval", cfg.Server.TickInterval),
	)

	// Load the rule set.
	rulesStart := time.Now()
	registry, err := ruleset.Load(cfg.Content.ClassesDir, cfg.Content.SkillsDir, cfg.Content.GroupsDir)
	if err != nil {
		logger.Fatal("loading rule set", zap.Error(err))
	}
	logger.Info("rule set loaded",
		zap.Int("classes", len(registry.Classes())),
		zap.Int("skills", len(registry.Skills())),
		zap.Int("groups", len(registry.Groups())),
		zap.Duration("elapsed", time.Since(rulesStart)),
	)

	// Load status definitions.
	statuses, err := status.LoadDirectory(cfg.Content.StatusesDir)
	if err != nil {
		logger.Fatal("loading status definitions", zap.Error(err))
	}
	logger.Info("status definitions loaded", zap.Int("count", len(statuses.All())))

	// Load the message catalog.
	catalog := message.NewCatalog(logger)
	if cfg.Content.MessageFile != "" {
		if err := catalog.Load(cfg.Content.MessageFile); err != nil {
			logger.Fatal("loading message catalog",
				zap.String("file", cfg.Content.MessageFile),
				zap.Error(err),
			)
		}
	}

	// Connect to PostgreSQL for identity and progression persistence.
	dbStart := time.Now()
	pool, err := postgres.NewPool(ctx, cfg.Database)
	if err != nil {
		logger.Fatal("connecting to database", zap.Error(err))
	}
	logger.Info("database connected",
		zap.String("host", cfg.Database.Host),
		zap.Duration("elapsed", time.Since(dbStart)),
	)
	players := postgres.NewPlayerRepository(pool.DB())
	progressRepo := postgres.NewProgressRepository(pool.DB())

	// Initialise the scripting engine and load the skill effect scripts.
	roller := dice.NewLoggedRoller(dice.NewCryptoSource(), logger)
	scripts := scripting.NewEngine(roller, logger)
	defer scripts.Close()
	scriptStart := time.Now()
	if err := scripts.Load(cfg.Content.ScriptsDir, cfg.Content.ScriptInstructionLimit); err != nil {
		logger.Fatal("loading skill scripts",
			zap.String("dir", cfg.Content.ScriptsDir),
			zap.Error(err),
		)
	}
	logger.Info("skill scripts loaded",
		zap.String("dir", cfg.Content.ScriptsDir),
		zap.Duration("elapsed", time.Since(scriptStart)),
	)
	effects := scripting.NewEffects(scripts, registry)

	// Assemble the game state.
	bus := event.NewBus()
	w := world.New()

	// Gated professions check the players table for the required permission.
	authorizer := progress.AuthorizerFunc(func(playerID, permission string) bool {
		allowed, err := players.HasPermission(ctx, playerID, permission)
		if err != nil {
			logger.Warn("permission check failed",
				zap.String("player_id", playerID),
				zap.String("permission", permission),
				zap.Error(err),
			)
			return false
		}
		return allowed
	})

	roster, err := progress.NewRoster(&progress.Settings{
		Registry:      registry,
		Events:        bus,
		Effects:       effects,
		Authorizer:    authorizer,
		Log:           logger,
		ManaEnabled:   cfg.Game.ManaEnabled,
		DefaultHealth: cfg.Game.DefaultHealth,
		MinHealth:     cfg.Game.MinHealth,
		MainGroup:     cfg.Game.MainGroup,
	})
	if err != nil {
		logger.Fatal("creating roster", zap.Error(err))
	}

	var feedback cast.Feedback = message.NewMessenger(catalog, w, cfg.Game.MessageRadius)
	if !cfg.Game.SkillMessages {
		feedback = directOnly{inner: feedback}
	}

	pipeline, err := cast.NewPipeline(&cast.Config{
		Events:   bus,
		Targets:  server.NewTargetResolver(w),
		Effects:  effects,
		Messages: feedback,
		Log:      logger,
	})
	if err != nil {
		logger.Fatal("creating cast pipeline", zap.Error(err))
	}

	engine := server.NewEngine(cfg.Server.TickInterval, logger)
	runtime, err := server.NewRuntime(&server.RuntimeConfig{
		Engine:           engine,
		Roster:           roster,
		World:            w,
		Pipeline:         pipeline,
		Scripts:          scripts,
		Statuses:         statuses,
		Store:            progressRepo,
		Messages:         feedback,
		Log:              logger,
		RegenInterval:    cfg.Server.RegenInterval,
		AutosaveInterval: cfg.Server.AutosaveInterval,
		SaveTimeout:      cfg.Server.ShutdownTimeout,
		BroadcastRadius:  cfg.Game.MessageRadius,
	})
	if err != nil {
		logger.Fatal("creating runtime", zap.Error(err))
	}

	// Wire lifecycle. Stop order is the reverse of add order: the final save
	// runs while the engine still serves tasks, and the pool closes last.
	lifecycle := server.NewLifecycle(logger, cfg.Server.ShutdownTimeout)

	watchCtx, stopWatch := context.WithCancel(ctx)
	lifecycle.Add("postgres", &server.FuncService{
		StartFn: func() error {
			return pool.Watch(watchCtx, 30*time.Second, logger)
		},
		StopFn: func() {
			stopWatch()
			pool.Close()
		},
	})

	lifecycle.Add("engine", engine)

	saveDone := make(chan struct{})
	lifecycle.Add("final-save", &server.FuncService{
		StartFn: func() error {
			<-saveDone
			return nil
		},
		StopFn: func() {
			if err := runtime.SaveAll("shutdown"); err != nil {
				logger.Error("final save failed", zap.Error(err))
			}
			close(saveDone)
		},
	})

	logger.Info("skill server initialized",
		zap.Duration("startup", time.Since(start)),
	)

	if err := lifecycle.Run(ctx); err != nil {
		logger.Fatal("server error", zap.Error(err))
	}
}
