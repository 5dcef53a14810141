package ruleset

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Class defines a playable class profession. A class belongs to exactly one
// group; an account holds at most one class per group. Parent, when set,
// names the class that must be mastered before professing into this one.
//
// Precondition: ID, Name, and Group must be non-empty after loading.
type Class struct {
	ID             string   `yaml:"id"`
	Name           string   `yaml:"name"`
	Description    string   `yaml:"description"`
	Group          string   `yaml:"group"`
	Parent         string   `yaml:"parent"`
	MaxLevel       int      `yaml:"max_level"`
	PointsPerLevel int      `yaml:"points_per_level"`
	Health         Scale    `yaml:"health"`
	Mana           Scale    `yaml:"mana"`
	ManaRegen      float64  `yaml:"mana_regen"`
	ExpCurve       ExpCurve `yaml:"exp_curve"`
	ExpSources     []string `yaml:"exp_sources"`
	Permission     string   `yaml:"permission"`
	Skills         []string `yaml:"skills"`
}

// HasParent reports whether this class requires mastering another class first.
func (c *Class) HasParent() bool {
	return c.Parent != ""
}

// HealthAt returns the max-health contribution of this class at the given level.
func (c *Class) HealthAt(level int) float64 {
	return c.Health.At(level)
}

// ManaAt returns the max-mana contribution of this class at the given level.
func (c *Class) ManaAt(level int) float64 {
	return c.Mana.At(level)
}

// RequiredExp returns the experience needed to advance out of the given level,
// falling back to DefaultExpCurve when the class declares none.
//
// Postcondition: Returns a value >= 1.
func (c *Class) RequiredExp(level int) int {
	if c.ExpCurve.IsZero() {
		return DefaultExpCurve.Required(level)
	}
	return c.ExpCurve.Required(level)
}

// ReceivesExp reports whether this class accepts experience from the given
// source tag. An empty ExpSources list accepts every source.
func (c *Class) ReceivesExp(source string) bool {
	if len(c.ExpSources) == 0 {
		return true
	}
	for _, s := range c.ExpSources {
		if s == source {
			return true
		}
	}
	return false
}

// LoadClasses reads all .yaml files in dir and parses each as a Class.
//
// Precondition: dir must be a readable directory path.
// Postcondition: Returns all parsed classes (may be empty slice) or a non-nil error.
func LoadClasses(dir string) ([]*Class, error) {
	files, err := yamlFiles(dir)
	if err != nil {
		return nil, err
	}
	classes := make([]*Class, 0, len(files))
	for _, path := range files {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", path, err)
		}
		var c Class
		if err := yaml.Unmarshal(data, &c); err != nil {
			return nil, fmt.Errorf("parsing class file %s: %w", path, err)
		}
		classes = append(classes, &c)
	}
	return classes, nil
}

func yamlFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading directory %s: %w", dir, err)
	}
	var paths []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if strings.HasSuffix(name, ".yaml") || strings.HasSuffix(name, ".yml") {
			paths = append(paths, filepath.Join(dir, name))
		}
	}
	return paths, nil
}
