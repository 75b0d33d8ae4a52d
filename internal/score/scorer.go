package score

import (
	"fmt"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/ppiankov/clausewatch/internal/assess"
	"github.com/ppiankov/clausewatch/internal/criteria"
	"github.com/ppiankov/clausewatch/internal/fingerprint"
	"github.com/ppiankov/clausewatch/internal/model"
)

// DefaultSuggestionThreshold is the component score below which a criterion yields a suggestion
const DefaultSuggestionThreshold = 0.5

var suggestionText = map[model.Criterion]string{
	model.CriterionRestrictiveness: "Reduce restrictive language such as waivers and non-refundable terms.",
	model.CriterionClarity:         "Simplify the wording with shorter sentences and plainer vocabulary.",
	model.CriterionFairness:        "Rebalance obligations so users keep cancellation and refund rights.",
	model.CriterionPrivacyImpact:   "Limit sharing of personal data with third parties.",
}

// ClauseScorer combines criterion assessments into a weighted clause score.
// It is immutable after construction and safe for concurrent use.
type ClauseScorer struct {
	weights             model.Weights
	order               []model.Criterion
	assessors           assess.Registry
	redFlags            []*regexp.Regexp
	suggestionThreshold float64
	logger              *zap.Logger
}

// Option configures a ClauseScorer
type Option func(*ClauseScorer)

// WithLogger sets the logger used for degraded assessments
func WithLogger(l *zap.Logger) Option {
	return func(s *ClauseScorer) { s.logger = l }
}

// WithRedFlags sets the patterns scanned for flags
func WithRedFlags(patterns []*regexp.Regexp) Option {
	return func(s *ClauseScorer) { s.redFlags = patterns }
}

// WithSuggestionThreshold overrides the suggestion threshold
func WithSuggestionThreshold(threshold float64) Option {
	return func(s *ClauseScorer) { s.suggestionThreshold = threshold }
}

// NewClauseScorer validates the weights and checks every weighted criterion
// has an assessor. Problems are returned as *model.ConfigError.
func NewClauseScorer(weights model.Weights, assessors assess.Registry, opts ...Option) (*ClauseScorer, error) {
	if err := weights.Validate(); err != nil {
		return nil, err
	}

	w := make(model.Weights, len(weights))
	for c, v := range weights {
		if _, ok := assessors[c]; !ok {
			return nil, &model.ConfigError{
				Field:  "scoring.weights." + string(c),
				Reason: "no assessor registered for weighted criterion",
			}
		}
		w[c] = v
	}

	reg := make(assess.Registry, len(assessors))
	for c, a := range assessors {
		reg[c] = a
	}

	s := &ClauseScorer{
		weights:             w,
		order:               w.Order(),
		assessors:           reg,
		suggestionThreshold: DefaultSuggestionThreshold,
		logger:              zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.suggestionThreshold < 0 || s.suggestionThreshold > 1 {
		return nil, &model.ConfigError{
			Field:  "scoring.suggestion_threshold",
			Reason: fmt.Sprintf("%v outside [0,1]", s.suggestionThreshold),
		}
	}

	return s, nil
}

// FromCriteria builds the built-in assessors and red flags from a criteria snapshot
func FromCriteria(weights model.Weights, c *criteria.Criteria, readability assess.ReadabilityProvider, opts ...Option) (*ClauseScorer, error) {
	if c == nil {
		return nil, &model.ConfigError{Field: "criteria", Reason: "no criteria loaded"}
	}

	opts = append([]Option{WithRedFlags(c.RedFlags())}, opts...)
	return NewClauseScorer(weights, assess.NewRegistry(c, readability), opts...)
}

// Weights returns a copy of the configured weights
func (s *ClauseScorer) Weights() model.Weights {
	w := make(model.Weights, len(s.weights))
	for c, v := range s.weights {
		w[c] = v
	}
	return w
}

// ScoreClause scores one clause. Empty or whitespace-only text is rejected
// with an *model.InputError wrapping model.ErrEmptyText. Unknown clause types
// are accepted.
func (s *ClauseScorer) ScoreClause(text, clauseType string) (model.ClauseScore, error) {
	if strings.TrimSpace(text) == "" {
		return model.ClauseScore{}, &model.InputError{Reason: "score clause", Err: model.ErrEmptyText}
	}

	components := make(map[model.Criterion]float64, len(s.order))
	degraded := []model.Criterion{}
	total := 0.0

	for _, c := range s.order {
		a := s.assessors[c].Assess(text, clauseType)
		if a.Degraded {
			s.logger.Warn("degraded assessment",
				zap.String("criterion", string(c)),
				zap.String("clause_type", clauseType),
				zap.String("reason", a.Reason))
			degraded = append(degraded, c)
		}

		score := model.Clamp01(a.Score)
		components[c] = score
		total += score * s.weights[c]
	}

	result := model.ClauseScore{
		ClauseType:      clauseType,
		ContentHash:     fingerprint.Hash(text),
		ComponentScores: components,
		TotalScore:      model.Clamp01(model.Round2(total)),
		Flags:           s.flags(text),
		Suggestions:     s.suggestions(components),
	}
	if len(degraded) > 0 {
		result.Degraded = degraded
	}

	return result, nil
}

// flags returns every red-flag match, lowercased and deduplicated, in
// pattern order and then position order
func (s *ClauseScorer) flags(text string) []string {
	flags := []string{}
	seen := make(map[string]bool)

	for _, re := range s.redFlags {
		for _, match := range re.FindAllString(text, -1) {
			m := strings.ToLower(strings.TrimSpace(match))
			if m == "" || seen[m] {
				continue
			}
			seen[m] = true
			flags = append(flags, m)
		}
	}

	return flags
}

// suggestions yields one hint per criterion below the threshold, in criterion order
func (s *ClauseScorer) suggestions(components map[model.Criterion]float64) []string {
	suggestions := []string{}

	for _, c := range s.order {
		if components[c] >= s.suggestionThreshold {
			continue
		}
		text, ok := suggestionText[c]
		if !ok {
			text = fmt.Sprintf("Improve %s.", strings.ReplaceAll(string(c), "_", " "))
		}
		suggestions = append(suggestions, text)
	}

	return suggestions
}
