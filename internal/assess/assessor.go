// Package assess implements the independent criterion assessors consumed by
// the clause scorer. Every assessor maps (text, clause type) to a score in
// [0,1] where higher means less risky text.
package assess

import (
	"fmt"

	"github.com/ppiankov/clausewatch/internal/criteria"
	"github.com/ppiankov/clausewatch/internal/model"
)

// Assessment is the outcome of one assessor call. A degraded assessment carries
// score 0 and the reason its signal was unavailable; it is a value, not an error.
type Assessment struct {
	Score    float64 `json:"score"`
	Degraded bool    `json:"degraded,omitempty"`
	Reason   string  `json:"reason,omitempty"`
}

// Scored returns a genuine assessment clamped to [0,1]
func Scored(score float64) Assessment {
	return Assessment{Score: model.Clamp01(score)}
}

// Degrade returns a degraded assessment with a formatted reason
func Degrade(format string, args ...any) Assessment {
	return Assessment{Score: 0, Degraded: true, Reason: fmt.Sprintf(format, args...)}
}

// Assessor scores text on one criterion. Implementations must be safe for
// concurrent use and must not panic on any string input.
type Assessor interface {
	Criterion() model.Criterion
	Assess(text, clauseType string) Assessment
}

// Registry maps each criterion to its assessor
type Registry map[model.Criterion]Assessor

// Register adds or replaces the assessor for its criterion
func (r Registry) Register(a Assessor) {
	r[a.Criterion()] = a
}

// NewRegistry builds the four built-in assessors from a criteria snapshot.
// A nil snapshot or provider yields assessors that report degraded results.
func NewRegistry(c *criteria.Criteria, readability ReadabilityProvider) Registry {
	var restrictive, privacy []string
	var rules func(string) []criteria.FairnessRule
	if c != nil {
		restrictive = c.RestrictiveTerms
		privacy = c.PrivacyTerms
		if c.FairnessRules != nil {
			rules = c.RulesFor
		}
	}

	r := Registry{}
	r.Register(NewRestrictiveness(restrictive))
	r.Register(NewClarity(readability))
	r.Register(NewFairness(rules))
	r.Register(NewPrivacyImpact(privacy))
	return r
}
