package model

import (
	"fmt"
	"math"
	"sort"
)

// Criterion names one independent risk dimension
type Criterion string

const (
	CriterionRestrictiveness Criterion = "restrictiveness"
	CriterionClarity         Criterion = "clarity"
	CriterionFairness        Criterion = "fairness"
	CriterionPrivacyImpact   Criterion = "privacy_impact"
)

// canonicalOrder fixes suggestion and iteration order for the built-in criteria
var canonicalOrder = []Criterion{
	CriterionRestrictiveness,
	CriterionClarity,
	CriterionFairness,
	CriterionPrivacyImpact,
}

// weightSumTolerance is the floating point slack allowed when checking that weights sum to 1
const weightSumTolerance = 1e-9

// Weights maps each criterion to its share of the total score
type Weights map[Criterion]float64

// DefaultWeights returns the standard criterion weights
func DefaultWeights() Weights {
	return Weights{
		CriterionRestrictiveness: 0.3,
		CriterionClarity:         0.2,
		CriterionFairness:        0.3,
		CriterionPrivacyImpact:   0.2,
	}
}

// WeightsFromMap converts a string-keyed map (as decoded from config) into Weights
func WeightsFromMap(m map[string]float64) Weights {
	w := make(Weights, len(m))
	for k, v := range m {
		w[Criterion(k)] = v
	}
	return w
}

// Validate checks that every weight is within [0,1] and that they sum to 1
func (w Weights) Validate() error {
	if len(w) == 0 {
		return &ConfigError{Field: "scoring.weights", Reason: "no weights configured"}
	}

	sum := 0.0
	for c, v := range w {
		if math.IsNaN(v) || v < 0 || v > 1 {
			return &ConfigError{Field: "scoring.weights." + string(c), Reason: fmt.Sprintf("weight %v outside [0,1]", v)}
		}
		sum += v
	}

	if math.Abs(sum-1.0) > weightSumTolerance {
		return &ConfigError{Field: "scoring.weights", Reason: fmt.Sprintf("weights sum to %v, want 1.0", sum)}
	}

	return nil
}

// Order returns the weighted criteria: built-in criteria first in their fixed
// order, then any additional criteria alphabetically.
func (w Weights) Order() []Criterion {
	order := make([]Criterion, 0, len(w))
	seen := make(map[Criterion]bool, len(w))

	for _, c := range canonicalOrder {
		if _, ok := w[c]; ok {
			order = append(order, c)
			seen[c] = true
		}
	}

	var extra []Criterion
	for c := range w {
		if !seen[c] {
			extra = append(extra, c)
		}
	}
	sort.Slice(extra, func(i, j int) bool { return extra[i] < extra[j] })

	return append(order, extra...)
}

// ClauseScore is the weighted risk assessment of one clause.
// Higher scores mean less risky text.
type ClauseScore struct {
	ClauseType      string                `json:"clause_type"`
	ContentHash     string                `json:"content_hash"`
	ComponentScores map[Criterion]float64 `json:"component_scores"`
	TotalScore      float64               `json:"total_score"`
	Flags           []string              `json:"flags"`
	Suggestions     []string              `json:"suggestions"`
	Degraded        []Criterion           `json:"degraded,omitempty"` // criteria scored from a missing signal
}

// Round2 rounds v to two decimal places
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// Clamp01 limits v to [0,1]; NaN maps to 0
func Clamp01(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
