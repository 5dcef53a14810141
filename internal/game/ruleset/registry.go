package ruleset

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// idPattern constrains definition IDs: they become case-insensitive map keys
// and script hook prefixes, so only lowercase identifier characters are legal.
var idPattern = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)

// Registry holds every loaded class, skill, and group definition and resolves
// the cross-references between them. Skill lookup is case-insensitive.
type Registry struct {
	classes map[string]*Class
	skills  map[string]*Skill
	groups  map[string]*Group
}

// NewRegistry returns an empty Registry.
//
// Postcondition: Returns a non-nil *Registry ready to accept registrations.
func NewRegistry() *Registry {
	return &Registry{
		classes: make(map[string]*Class),
		skills:  make(map[string]*Skill),
		groups:  make(map[string]*Group),
	}
}

// RegisterClass adds a Class to the registry.
//
// Precondition: c must be non-nil with a non-empty ID.
// Postcondition: c is retrievable via Class using c.ID; the last registration
// for an ID wins.
func (r *Registry) RegisterClass(c *Class) {
	if c == nil {
		panic("Registry.RegisterClass: precondition violated: class must be non-nil")
	}
	if c.ID == "" {
		panic("Registry.RegisterClass: precondition violated: class ID must be non-empty")
	}
	r.classes[c.ID] = c
}

// RegisterSkill adds a Skill to the registry.
//
// Precondition: s must be non-nil with a non-empty ID.
// Postcondition: s is retrievable via Skill using any casing of s.ID.
func (r *Registry) RegisterSkill(s *Skill) {
	if s == nil {
		panic("Registry.RegisterSkill: precondition violated: skill must be non-nil")
	}
	if s.ID == "" {
		panic("Registry.RegisterSkill: precondition violated: skill ID must be non-empty")
	}
	r.skills[strings.ToLower(s.ID)] = s
}

// RegisterGroup adds a Group to the registry.
//
// Precondition: g must be non-nil with a non-empty ID.
func (r *Registry) RegisterGroup(g *Group) {
	if g == nil {
		panic("Registry.RegisterGroup: precondition violated: group must be non-nil")
	}
	if g.ID == "" {
		panic("Registry.RegisterGroup: precondition violated: group ID must be non-empty")
	}
	r.groups[g.ID] = g
}

// Class returns the class for the given ID, if registered.
func (r *Registry) Class(id string) (*Class, bool) {
	c, ok := r.classes[id]
	return c, ok
}

// Skill returns the skill for the given ID, if registered. Lookup is
// case-insensitive.
func (r *Registry) Skill(id string) (*Skill, bool) {
	s, ok := r.skills[strings.ToLower(id)]
	return s, ok
}

// Group returns the group for the given ID, if registered.
func (r *Registry) Group(id string) (*Group, bool) {
	g, ok := r.groups[id]
	return g, ok
}

// Classes returns all registered classes sorted by ID.
func (r *Registry) Classes() []*Class {
	out := make([]*Class, 0, len(r.classes))
	for _, c := range r.classes {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Skills returns all registered skills sorted by ID.
func (r *Registry) Skills() []*Skill {
	out := make([]*Skill, 0, len(r.skills))
	for _, s := range r.skills {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Groups returns all registered groups sorted by ID.
func (r *Registry) Groups() []*Group {
	out := make([]*Group, 0, len(r.groups))
	for _, g := range r.groups {
		out = append(out, g)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// ClassSkills resolves the skill tree of a class in declaration order.
//
// Precondition: c must be non-nil and Validate must have passed (every skill
// ID resolves).
func (r *Registry) ClassSkills(c *Class) []*Skill {
	if c == nil {
		panic("Registry.ClassSkills: precondition violated: class must be non-nil")
	}
	out := make([]*Skill, 0, len(c.Skills))
	for _, id := range c.Skills {
		if s, ok := r.Skill(id); ok {
			out = append(out, s)
		}
	}
	return out
}

// Validate checks every cross-reference and range invariant across the
// registered definitions.
//
// Postcondition: Returns nil if the content is consistent, or an error
// describing all violations.
func (r *Registry) Validate() error {
	var errs []string

	for _, c := range r.Classes() {
		errs = append(errs, validateClass(r, c)...)
	}
	for _, s := range r.Skills() {
		errs = append(errs, validateSkill(r, s)...)
	}
	for _, g := range r.Groups() {
		errs = append(errs, validateGroup(r, g)...)
	}

	if len(errs) > 0 {
		return fmt.Errorf("ruleset validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

func validateClass(r *Registry, c *Class) []string {
	var errs []string
	if !idPattern.MatchString(c.ID) {
		errs = append(errs, fmt.Sprintf("class %q: id must match %s", c.ID, idPattern))
	}
	if c.Name == "" {
		errs = append(errs, fmt.Sprintf("class %q: name must not be empty", c.ID))
	}
	if c.MaxLevel < 1 {
		errs = append(errs, fmt.Sprintf("class %q: max_level must be >= 1, got %d", c.ID, c.MaxLevel))
	}
	if c.PointsPerLevel < 0 {
		errs = append(errs, fmt.Sprintf("class %q: points_per_level must be >= 0, got %d", c.ID, c.PointsPerLevel))
	}
	if c.ManaRegen < 0 {
		errs = append(errs, fmt.Sprintf("class %q: mana_regen must be >= 0, got %g", c.ID, c.ManaRegen))
	}
	if _, ok := r.Group(c.Group); !ok {
		errs = append(errs, fmt.Sprintf("class %q: unknown group %q", c.ID, c.Group))
	}
	if c.HasParent() {
		parent, ok := r.Class(c.Parent)
		switch {
		case !ok:
			errs = append(errs, fmt.Sprintf("class %q: unknown parent %q", c.ID, c.Parent))
		case c.Parent == c.ID:
			errs = append(errs, fmt.Sprintf("class %q: parent must not be itself", c.ID))
		case parent.Group != c.Group:
			errs = append(errs, fmt.Sprintf("class %q: parent %q belongs to group %q, want %q",
				c.ID, c.Parent, parent.Group, c.Group))
		}
	}
	for _, id := range c.Skills {
		if _, ok := r.Skill(id); !ok {
			errs = append(errs, fmt.Sprintf("class %q: unknown skill %q", c.ID, id))
		}
	}
	return errs
}

func validateSkill(r *Registry, s *Skill) []string {
	var errs []string
	if !idPattern.MatchString(s.ID) {
		errs = append(errs, fmt.Sprintf("skill %q: id must match %s", s.ID, idPattern))
	}
	if s.Name == "" {
		errs = append(errs, fmt.Sprintf("skill %q: name must not be empty", s.ID))
	}
	if s.MaxLevel < 1 {
		errs = append(errs, fmt.Sprintf("skill %q: max_level must be >= 1, got %d", s.ID, s.MaxLevel))
	}
	for _, tag := range s.Capabilities {
		known := false
		for _, k := range Capabilities {
			if tag == k {
				known = true
				break
			}
		}
		if !known {
			errs = append(errs, fmt.Sprintf("skill %q: unknown capability %q", s.ID, tag))
		}
	}
	if s.Has(CapTarget) && s.Range.Base <= 0 {
		errs = append(errs, fmt.Sprintf("skill %q: targeted skill needs a positive base range", s.ID))
	}
	if s.ReqSkill != "" {
		if _, ok := r.Skill(s.ReqSkill); !ok {
			errs = append(errs, fmt.Sprintf("skill %q: unknown prerequisite %q", s.ID, s.ReqSkill))
		}
		if strings.EqualFold(s.ReqSkill, s.ID) {
			errs = append(errs, fmt.Sprintf("skill %q: prerequisite must not be itself", s.ID))
		}
		if s.ReqSkillLevel < 1 {
			errs = append(errs, fmt.Sprintf("skill %q: req_skill_level must be >= 1, got %d", s.ID, s.ReqSkillLevel))
		}
	}
	return errs
}

func validateGroup(r *Registry, g *Group) []string {
	var errs []string
	if !idPattern.MatchString(g.ID) {
		errs = append(errs, fmt.Sprintf("group %q: id must match %s", g.ID, idPattern))
	}
	if g.DeathPenalty < 0 || g.DeathPenalty > 1 {
		errs = append(errs, fmt.Sprintf("group %q: death_penalty must be in [0, 1], got %g", g.ID, g.DeathPenalty))
	}
	if g.Default != "" {
		def, ok := r.Class(g.Default)
		switch {
		case !ok:
			errs = append(errs, fmt.Sprintf("group %q: unknown default class %q", g.ID, g.Default))
		case def.Group != g.ID:
			errs = append(errs, fmt.Sprintf("group %q: default class %q belongs to group %q",
				g.ID, g.Default, def.Group))
		case def.HasParent():
			errs = append(errs, fmt.Sprintf("group %q: default class %q must not require a parent", g.ID, g.Default))
		}
	}
	return errs
}

// Load reads classes, skills, and groups from the given directories, registers
// everything, and validates the result.
//
// Precondition: all three paths must be readable directories.
// Postcondition: Returns a validated Registry or a non-nil error.
func Load(classesDir, skillsDir, groupsDir string) (*Registry, error) {
	classes, err := LoadClasses(classesDir)
	if err != nil {
		return nil, fmt.Errorf("loading classes: %w", err)
	}
	skills, err := LoadSkills(skillsDir)
	if err != nil {
		return nil, fmt.Errorf("loading skills: %w", err)
	}
	groups, err := LoadGroups(groupsDir)
	if err != nil {
		return nil, fmt.Errorf("loading groups: %w", err)
	}

	r := NewRegistry()
	for _, s := range skills {
		r.RegisterSkill(s)
	}
	for _, c := range classes {
		r.RegisterClass(c)
	}
	for _, g := range groups {
		r.RegisterGroup(g)
	}

	if err := r.Validate(); err != nil {
		return nil, err
	}
	return r, nil
}
