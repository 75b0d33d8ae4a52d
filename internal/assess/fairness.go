package assess

import (
	"strings"

	"github.com/ppiankov/clausewatch/internal/criteria"
	"github.com/ppiankov/clausewatch/internal/model"
)

// RuleSource returns the fairness rules applicable to a clause type
type RuleSource func(clauseType string) []criteria.FairnessRule

type fairnessAssessor struct {
	rules RuleSource
}

// NewFairness scores the fraction of applicable fairness rules a clause passes.
// Clause types with no applicable rules score 1.
func NewFairness(rules RuleSource) Assessor {
	return &fairnessAssessor{rules: rules}
}

func (a *fairnessAssessor) Criterion() model.Criterion {
	return model.CriterionFairness
}

func (a *fairnessAssessor) Assess(text, clauseType string) Assessment {
	if a.rules == nil {
		return Degrade("no fairness rules configured")
	}

	rules := a.rules(clauseType)
	if len(rules) == 0 {
		return Scored(1.0)
	}

	folded := fold(text)
	passed := 0
	for _, rule := range rules {
		if RulePasses(folded, rule) {
			passed++
		}
	}

	return Scored(float64(passed) / float64(len(rules)))
}

// RulePasses reports whether folded text satisfies rule: some required phrase
// is present (or none are required) and no forbidden phrase is present.
func RulePasses(folded string, rule criteria.FairnessRule) bool {
	for _, phrase := range rule.Forbid {
		if p := fold(strings.TrimSpace(phrase)); p != "" && strings.Contains(folded, p) {
			return false
		}
	}

	if len(rule.Require) == 0 {
		return true
	}
	for _, phrase := range rule.Require {
		if p := fold(strings.TrimSpace(phrase)); p != "" && strings.Contains(folded, p) {
			return true
		}
	}
	return false
}
