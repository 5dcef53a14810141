// Package ruleset defines the class, skill, and group content model for the
// progression engine: level-scaled attribute curves, experience requirements,
// YAML loaders, and the cross-referenced definition registry.
package ruleset

import "math"

// Scale is a linear level-scaled attribute: the value at an attained level L
// is Base + PerLevel*(L-1). PerLevel may be negative for attributes that
// improve with rank (e.g. cooldowns).
type Scale struct {
	Base     float64 `yaml:"base"`
	PerLevel float64 `yaml:"per_level"`
}

// At returns the attribute value at an attained level.
//
// Postcondition: At(1) == Base; levels below 1 clamp to Base.
func (s Scale) At(level int) float64 {
	if level <= 1 {
		return s.Base
	}
	return s.Base + s.PerLevel*float64(level-1)
}

// Next returns the attribute value for advancing out of the given current
// level, where current counts from 0 (a locked skill buying its first rank
// pays Next(0) == Base).
//
// Postcondition: Next(0) == Base; levels below 0 clamp to Base.
func (s Scale) Next(current int) float64 {
	if current <= 0 {
		return s.Base
	}
	return s.Base + s.PerLevel*float64(current)
}

// ExpCurve is the experience-to-level requirement polynomial:
// Required(L) = Base + PerLevel*L + Quadratic*L^2.
type ExpCurve struct {
	Base      float64 `yaml:"base"`
	PerLevel  float64 `yaml:"per_level"`
	Quadratic float64 `yaml:"quadratic"`
}

// DefaultExpCurve is used by classes that do not declare their own curve.
var DefaultExpCurve = ExpCurve{Base: 40, PerLevel: 5, Quadratic: 3}

// IsZero reports whether the curve is entirely unset.
func (c ExpCurve) IsZero() bool {
	return c.Base == 0 && c.PerLevel == 0 && c.Quadratic == 0
}

// Required returns the experience needed to advance out of the given level.
// The result is floored at 1 so the level-up loop always consumes progress.
//
// Postcondition: Required(level) >= 1 for any level.
func (c ExpCurve) Required(level int) int {
	l := float64(level)
	req := int(math.Floor(c.Base + c.PerLevel*l + c.Quadratic*l*l))
	if req < 1 {
		return 1
	}
	return req
}
