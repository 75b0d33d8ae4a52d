package assess

import (
	"strings"

	"golang.org/x/text/cases"

	"github.com/ppiankov/clausewatch/internal/model"
)

// TermCap is the number of term hits at which a term-count score reaches 0
const TermCap = 10

// folder is stateless and safe for concurrent use
var folder = cases.Fold()

// fold applies Unicode case folding for case-insensitive matching
func fold(s string) string {
	return folder.String(s)
}

// termAssessor scores text by how often configured terms occur in it
type termAssessor struct {
	criterion model.Criterion
	terms     []string // folded
}

// NewRestrictiveness scores 1 - min(hits, 10)/10 over restrictive terms
func NewRestrictiveness(terms []string) Assessor {
	return newTermAssessor(model.CriterionRestrictiveness, terms)
}

// NewPrivacyImpact scores 1 - min(hits, 10)/10 over privacy-sensitive terms
func NewPrivacyImpact(terms []string) Assessor {
	return newTermAssessor(model.CriterionPrivacyImpact, terms)
}

func newTermAssessor(c model.Criterion, terms []string) *termAssessor {
	folded := make([]string, 0, len(terms))
	for _, term := range terms {
		if t := fold(strings.TrimSpace(term)); t != "" {
			folded = append(folded, t)
		}
	}
	return &termAssessor{criterion: c, terms: folded}
}

func (a *termAssessor) Criterion() model.Criterion {
	return a.criterion
}

func (a *termAssessor) Assess(text, _ string) Assessment {
	if len(a.terms) == 0 {
		return Degrade("no %s terms configured", a.criterion)
	}

	hits := CountTerms(fold(text), a.terms)
	return Scored(TermScore(hits))
}

// CountTerms counts non-overlapping occurrences of every term in text.
// Both sides must already be folded.
func CountTerms(text string, terms []string) int {
	total := 0
	for _, term := range terms {
		total += strings.Count(text, term)
	}
	return total
}

// TermScore maps a hit count to 1 - min(hits, TermCap)/TermCap
func TermScore(hits int) float64 {
	if hits < 0 {
		hits = 0
	}
	return 1.0 - float64(min(hits, TermCap))/float64(TermCap)
}
