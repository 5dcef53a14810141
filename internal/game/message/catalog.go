// Package message renders player-facing feedback text from a YAML template
// catalog. Templates use {name} placeholders filled at render time.
package message

import (
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// Keys the engine renders itself. Content may override any of them in
// messages.yaml and may add its own keys for per-skill cast announcements.
const (
	KeySkillCast       = "skill_cast"
	KeySkillCastTarget = "skill_cast_target"
	KeyOnCooldown      = "on_cooldown"
	KeyMissingMana     = "missing_mana"
	KeySkillFailed     = "skill_failed"
	KeySkillUnlocked   = "skill_unlocked"
	KeySkillUpgraded   = "skill_upgraded"
	KeyLevelUp         = "level_up"
	KeyClassMastered   = "class_mastered"
	KeyProfessed       = "professed"
	KeyManaRestored    = "mana_restored"
	KeySkillReady      = "skill_ready"
	KeyStatusFaded     = "status_faded"
)

// Defaults are the built-in templates used for any key the catalog file does
// not override. The engine stays usable with no messages.yaml at all.
var Defaults = map[string]string{
	KeySkillCast:       "{caster} uses {skill}!",
	KeySkillCastTarget: "{caster} uses {skill} on {target}!",
	KeyOnCooldown:      "{skill} is not ready yet.",
	KeyMissingMana:     "Not enough mana to use {skill}.",
	KeySkillFailed:     "{skill} fizzles.",
	KeySkillUnlocked:   "You have learned {skill}.",
	KeySkillUpgraded:   "{skill} is now rank {level}.",
	KeyLevelUp:         "You are now a level {level} {class}.",
	KeyClassMastered:   "You have mastered {class}.",
	KeyProfessed:       "You are now a {class}.",
	KeyManaRestored:    "You feel your power returning.",
	KeySkillReady:      "{skill} is ready again.",
	KeyStatusFaded:     "{status} fades.",
}

// Catalog maps template keys to templates. Rendering an unknown key returns
// the key itself and logs a single warning for it.
type Catalog struct {
	templates map[string]string
	log       *zap.Logger
	warned    map[string]struct{}
}

// NewCatalog creates a Catalog holding only the built-in defaults.
// Precondition: log must not be nil.
func NewCatalog(log *zap.Logger) *Catalog {
	if log == nil {
		panic("message: NewCatalog with nil logger")
	}
	c := &Catalog{
		templates: make(map[string]string, len(Defaults)),
		log:       log,
		warned:    make(map[string]struct{}),
	}
	for k, v := range Defaults {
		c.templates[k] = v
	}
	return c
}

// Load overlays templates from the YAML file at path onto the defaults. A
// missing file is not an error; the defaults stand.
//
// Postcondition: Returns an error only if the file exists and fails to parse.
func (c *Catalog) Load(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			c.log.Info("no message catalog file, using defaults", zap.String("path", path))
			return nil
		}
		return fmt.Errorf("reading message catalog %q: %w", path, err)
	}
	overlay := make(map[string]string)
	if err := yaml.Unmarshal(data, &overlay); err != nil {
		return fmt.Errorf("parsing message catalog %q: %w", path, err)
	}
	for k, v := range overlay {
		c.templates[k] = v
	}
	c.log.Info("loaded message catalog", zap.String("path", path), zap.Int("overrides", len(overlay)))
	return nil
}

// Render fills the template for key with vars. Placeholders with no matching
// var are left intact. An unknown key renders as the key itself.
func (c *Catalog) Render(key string, vars map[string]string) string {
	tmpl, ok := c.templates[key]
	if !ok {
		if _, seen := c.warned[key]; !seen {
			c.warned[key] = struct{}{}
			c.log.Warn("unknown message key", zap.String("key", key))
		}
		return key
	}
	if len(vars) == 0 {
		return tmpl
	}
	pairs := make([]string, 0, len(vars)*2)
	for k, v := range vars {
		pairs = append(pairs, "{"+k+"}", v)
	}
	return strings.NewReplacer(pairs...).Replace(tmpl)
}

// Has reports whether the catalog contains a template for key.
func (c *Catalog) Has(key string) bool {
	_, ok := c.templates[key]
	return ok
}
