package ruleset

import (
	"fmt"
	"math"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Skill capability tags. A skill declares zero or more; the cast pipeline and
// the passive bookkeeping branch on which are present, not on any type
// hierarchy. Tags also select which script hooks are resolved for the skill.
const (
	CapImmediate = "immediate"
	CapTarget    = "target"
	CapPassive   = "passive"
)

// Capabilities lists every valid capability tag.
var Capabilities = []string{CapImmediate, CapTarget, CapPassive}

// Skill defines one learnable skill: its rank cap, capability set, scaled
// attribute curves, and optional prerequisite on a sibling skill.
//
// Cost and LevelReq are keyed by the skill's CURRENT rank counting from 0:
// buying the first rank of a locked skill pays CostAt(0) and requires class
// level LevelReqAt(0). Mana cost, cooldown, and range are keyed by the
// attained rank counting from 1.
//
// Precondition: ID and Name must be non-empty after loading.
type Skill struct {
	ID            string   `yaml:"id"`
	Name          string   `yaml:"name"`
	Description   string   `yaml:"description"`
	MaxLevel      int      `yaml:"max_level"`
	Capabilities  []string `yaml:"capabilities"`
	Cost          Scale    `yaml:"cost"`
	LevelReq      Scale    `yaml:"level_req"`
	ManaCost      Scale    `yaml:"mana_cost"`
	Cooldown      Scale    `yaml:"cooldown"`
	Range         Scale    `yaml:"range"`
	ReqSkill      string   `yaml:"req_skill"`
	ReqSkillLevel int      `yaml:"req_skill_level"`
	Message       string   `yaml:"message"`
}

// Has reports whether the skill declares the given capability tag.
func (s *Skill) Has(capability string) bool {
	for _, c := range s.Capabilities {
		if c == capability {
			return true
		}
	}
	return false
}

// CostAt returns the skill-point cost to buy the next rank from the given
// current rank (0 = locked).
//
// Postcondition: Returns a value >= 0.
func (s *Skill) CostAt(current int) int {
	cost := int(math.Round(s.Cost.Next(current)))
	if cost < 0 {
		return 0
	}
	return cost
}

// LevelReqAt returns the owning-class level required to buy the next rank
// from the given current rank (0 = locked).
//
// Postcondition: Returns a value >= 1.
func (s *Skill) LevelReqAt(current int) int {
	req := int(math.Round(s.LevelReq.Next(current)))
	if req < 1 {
		return 1
	}
	return req
}

// ManaCostAt returns the mana cost of casting at the given attained rank.
//
// Postcondition: Returns a value >= 0.
func (s *Skill) ManaCostAt(level int) float64 {
	return math.Max(0, s.ManaCost.At(level))
}

// CooldownAt returns the cooldown started after a successful cast at the
// given attained rank. The curve values are seconds.
//
// Postcondition: Returns a non-negative duration.
func (s *Skill) CooldownAt(level int) time.Duration {
	secs := s.Cooldown.At(level)
	if secs <= 0 {
		return 0
	}
	return time.Duration(secs * float64(time.Second))
}

// RangeAt returns the targeting range at the given attained rank.
//
// Postcondition: Returns a value >= 0.
func (s *Skill) RangeAt(level int) float64 {
	return math.Max(0, s.Range.At(level))
}

// LoadSkills reads all .yaml files in dir and parses each as a Skill.
//
// Precondition: dir must be a readable directory path.
// Postcondition: Returns all parsed skills (may be empty slice) or a non-nil error.
func LoadSkills(dir string) ([]*Skill, error) {
	files, err := yamlFiles(dir)
	if err != nil {
		return nil, err
	}
	skills := make([]*Skill, 0, len(files))
	for _, path := range files {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", path, err)
		}
		var s Skill
		if err := yaml.Unmarshal(data, &s); err != nil {
			return nil, fmt.Errorf("parsing skill file %s: %w", path, err)
		}
		skills = append(skills, &s)
	}
	return skills, nil
}
