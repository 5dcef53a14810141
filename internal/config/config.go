// Package config provides Viper-based configuration loading for the skill server.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// ServerConfig holds engine loop timing settings.
type ServerConfig struct {
	// TickInterval is the period of the engine tick driving cooldowns and status expiry.
	TickInterval time.Duration `mapstructure:"tick_interval"`
	// RegenInterval is the period between mana regeneration passes.
	RegenInterval time.Duration `mapstructure:"regen_interval"`
	// AutosaveInterval is the period between roster persistence passes. 0 disables autosave.
	AutosaveInterval time.Duration `mapstructure:"autosave_interval"`
	// ShutdownTimeout bounds graceful shutdown of all services.
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// DatabaseConfig holds PostgreSQL connection settings.
type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	Name            string        `mapstructure:"name"`
	SSLMode         string        `mapstructure:"sslmode"`
	MaxConns        int32         `mapstructure:"max_conns"`
	MinConns        int32         `mapstructure:"min_conns"`
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
}

// DSN returns the PostgreSQL connection string.
//
// Precondition: Host, Port, User, and Name must be non-empty.
// Postcondition: Returns a valid PostgreSQL DSN string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.Name, d.SSLMode,
	)
}

// LoggingConfig holds structured logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: "debug", "info", "warn", "error".
	Level string `mapstructure:"level"`
	// Format is the log output format: "json" or "console".
	Format string `mapstructure:"format"`
	// OutputPaths lists zap output sinks; empty means stdout.
	OutputPaths []string `mapstructure:"output_paths"`
}

// GameConfig holds gameplay rules that are deployment policy rather than content.
type GameConfig struct {
	// ManaEnabled gates the entire mana system; when false casts never check or spend mana.
	ManaEnabled bool `mapstructure:"mana_enabled"`
	// SkillMessages enables cast message broadcasts around the caster.
	SkillMessages bool `mapstructure:"skill_messages"`
	// MessageRadius is the broadcast radius for cast messages.
	MessageRadius float64 `mapstructure:"message_radius"`
	// DefaultHealth is the max health applied when no class contributes any.
	DefaultHealth float64 `mapstructure:"default_health"`
	// MinHealth is the absolute floor for computed max health.
	MinHealth float64 `mapstructure:"min_health"`
	// MainGroup names the class group used for display-facing level lookups.
	MainGroup string `mapstructure:"main_group"`
}

// ContentConfig holds filesystem locations of game content.
type ContentConfig struct {
	ClassesDir  string `mapstructure:"classes_dir"`
	SkillsDir   string `mapstructure:"skills_dir"`
	GroupsDir   string `mapstructure:"groups_dir"`
	StatusesDir string `mapstructure:"statuses_dir"`
	ScriptsDir  string `mapstructure:"scripts_dir"`
	MessageFile string `mapstructure:"message_file"`
	// ScriptInstructionLimit caps Lua opcodes per effect invocation. 0 uses the engine default.
	ScriptInstructionLimit int `mapstructure:"script_instruction_limit"`
}

// Config is the top-level application configuration.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Game     GameConfig     `mapstructure:"game"`
	Content  ContentConfig  `mapstructure:"content"`
}

// Validate checks all configuration invariants.
//
// Postcondition: Returns nil if configuration is valid, or an error describing all violations.
func (c Config) Validate() error {
	var errs []string

	if err := validateServer(c.Server); err != nil {
		errs = append(errs, err.Error())
	}
	if err := validateDatabase(c.Database); err != nil {
		errs = append(errs, err.Error())
	}
	if err := validateLogging(c.Logging); err != nil {
		errs = append(errs, err.Error())
	}
	if err := validateGame(c.Game); err != nil {
		errs = append(errs, err.Error())
	}
	if err := validateContent(c.Content); err != nil {
		errs = append(errs, err.Error())
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

func validateServer(s ServerConfig) error {
	var errs []string
	if s.TickInterval <= 0 {
		errs = append(errs, fmt.Sprintf("server.tick_interval must be positive, got %s", s.TickInterval))
	}
	if s.RegenInterval <= 0 {
		errs = append(errs, fmt.Sprintf("server.regen_interval must be positive, got %s", s.RegenInterval))
	}
	if s.AutosaveInterval < 0 {
		errs = append(errs, "server.autosave_interval must not be negative")
	}
	if s.ShutdownTimeout <= 0 {
		errs = append(errs, fmt.Sprintf("server.shutdown_timeout must be positive, got %s", s.ShutdownTimeout))
	}
	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

func validateDatabase(d DatabaseConfig) error {
	var errs []string
	if d.Host == "" {
		errs = append(errs, "database.host must not be empty")
	}
	if d.Port < 1 || d.Port > 65535 {
		errs = append(errs, fmt.Sprintf("database.port must be 1-65535, got %d", d.Port))
	}
	if d.User == "" {
		errs = append(errs, "database.user must not be empty")
	}
	if d.Name == "" {
		errs = append(errs, "database.name must not be empty")
	}
	validSSL := map[string]bool{"disable": true, "require": true, "verify-ca": true, "verify-full": true}
	if !validSSL[d.SSLMode] {
		errs = append(errs, fmt.Sprintf("database.sslmode must be one of [disable, require, verify-ca, verify-full], got %q", d.SSLMode))
	}
	if d.MaxConns < 1 {
		errs = append(errs, fmt.Sprintf("database.max_conns must be >= 1, got %d", d.MaxConns))
	}
	if d.MinConns < 0 {
		errs = append(errs, fmt.Sprintf("database.min_conns must be >= 0, got %d", d.MinConns))
	}
	if d.MinConns > d.MaxConns {
		errs = append(errs, "database.min_conns must not exceed database.max_conns")
	}
	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

func validateLogging(l LoggingConfig) error {
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[l.Level] {
		return fmt.Errorf("logging.level must be one of [debug, info, warn, error], got %q", l.Level)
	}
	validFormats := map[string]bool{"json": true, "console": true}
	if !validFormats[l.Format] {
		return fmt.Errorf("logging.format must be one of [json, console], got %q", l.Format)
	}
	return nil
}

func validateGame(g GameConfig) error {
	var errs []string
	if g.MessageRadius < 0 {
		errs = append(errs, "game.message_radius must not be negative")
	}
	if g.DefaultHealth <= 0 {
		errs = append(errs, fmt.Sprintf("game.default_health must be positive, got %g", g.DefaultHealth))
	}
	if g.MinHealth <= 0 {
		errs = append(errs, fmt.Sprintf("game.min_health must be positive, got %g", g.MinHealth))
	}
	if g.MinHealth > g.DefaultHealth {
		errs = append(errs, "game.min_health must not exceed game.default_health")
	}
	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

func validateContent(c ContentConfig) error {
	var errs []string
	if c.ClassesDir == "" {
		errs = append(errs, "content.classes_dir must not be empty")
	}
	if c.SkillsDir == "" {
		errs = append(errs, "content.skills_dir must not be empty")
	}
	if c.GroupsDir == "" {
		errs = append(errs, "content.groups_dir must not be empty")
	}
	if c.StatusesDir == "" {
		errs = append(errs, "content.statuses_dir must not be empty")
	}
	if c.ScriptsDir == "" {
		errs = append(errs, "content.scripts_dir must not be empty")
	}
	if c.MessageFile == "" {
		errs = append(errs, "content.message_file must not be empty")
	}
	if c.ScriptInstructionLimit < 0 {
		errs = append(errs, fmt.Sprintf("content.script_instruction_limit must be >= 0, got %d", c.ScriptInstructionLimit))
	}
	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

// Load reads configuration from the given file path, applies environment variable
// overrides, and validates the result.
//
// Precondition: path must be a valid file path to a YAML configuration file.
// Postcondition: Returns a valid Config or a non-nil error.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetConfigFile(path)

	// Environment variable overrides with GRIMOIRE_ prefix
	v.SetEnvPrefix("GRIMOIRE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return Config{}, fmt.Errorf("reading config file: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshalling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// LoadFromViper builds a Config from an already-configured Viper instance.
//
// Precondition: v must be non-nil and have configuration values set.
// Postcondition: Returns a valid Config or a non-nil error.
func LoadFromViper(v *viper.Viper) (Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshalling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.tick_interval", "100ms")
	v.SetDefault("server.regen_interval", "1s")
	v.SetDefault("server.autosave_interval", "5m")
	v.SetDefault("server.shutdown_timeout", "15s")

	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "grimoire")
	v.SetDefault("database.password", "grimoire")
	v.SetDefault("database.name", "grimoire")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_conns", 10)
	v.SetDefault("database.min_conns", 2)
	v.SetDefault("database.max_conn_lifetime", "1h")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.output_paths", []string{"stdout"})

	v.SetDefault("game.mana_enabled", true)
	v.SetDefault("game.skill_messages", true)
	v.SetDefault("game.message_radius", 20.0)
	v.SetDefault("game.default_health", 20.0)
	v.SetDefault("game.min_health", 1.0)
	v.SetDefault("game.main_group", "class")

	v.SetDefault("content.classes_dir", "content/classes")
	v.SetDefault("content.skills_dir", "content/skills")
	v.SetDefault("content.groups_dir", "content/groups")
	v.SetDefault("content.statuses_dir", "content/statuses")
	v.SetDefault("content.scripts_dir", "content/scripts/skills")
	v.SetDefault("content.message_file", "content/messages.yaml")
	v.SetDefault("content.script_instruction_limit", 0)
}
