package ruleset

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Group defines one profession slot: an account holds at most one class per
// group. Default, when set, is the class granted to fresh accounts and
// re-granted after a reset (only when the default needs no permission).
//
// Precondition: ID must be non-empty after loading.
type Group struct {
	ID string `yaml:"id"`
	// Default is the class professed automatically on account creation and
	// after Reset; empty means the group starts unprofessed.
	Default string `yaml:"default"`
	// ResetOnProfess wipes the group before professing into a new class
	// instead of carrying level, experience, and points over.
	ResetOnProfess bool `yaml:"reset_on_profess"`
	// Permission gates professing into any class of this group; empty means
	// no permission is required.
	Permission string `yaml:"permission"`
	// DeathPenalty is the fraction of the next-level experience requirement
	// lost on death, per class held in this group.
	DeathPenalty float64 `yaml:"death_penalty"`
}

// LoadGroups reads all .yaml files in dir and parses each as a Group.
//
// Precondition: dir must be a readable directory path.
// Postcondition: Returns all parsed groups (may be empty slice) or a non-nil error.
func LoadGroups(dir string) ([]*Group, error) {
	files, err := yamlFiles(dir)
	if err != nil {
		return nil, err
	}
	groups := make([]*Group, 0, len(files))
	for _, path := range files {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", path, err)
		}
		var g Group
		if err := yaml.Unmarshal(data, &g); err != nil {
			return nil, fmt.Errorf("parsing group file %s: %w", path, err)
		}
		groups = append(groups, &g)
	}
	return groups, nil
}
