package assess

import (
	"github.com/ppiankov/clausewatch/internal/model"
)

// Readability holds the raw metrics supplied by a text-statistics collaborator
type Readability struct {
	ReadingEase float64 `json:"reading_ease"`
	GradeLevel  float64 `json:"grade_level"`
	Syllables   int     `json:"syllables"`
	Words       int     `json:"words"`
	Sentences   int     `json:"sentences"`
}

// ReadabilityProvider computes readability metrics for a text
type ReadabilityProvider interface {
	Readability(text string) (Readability, error)
}

type clarityAssessor struct {
	provider ReadabilityProvider
}

// NewClarity scores text from its Flesch reading ease
func NewClarity(provider ReadabilityProvider) Assessor {
	return &clarityAssessor{provider: provider}
}

func (a *clarityAssessor) Criterion() model.Criterion {
	return model.CriterionClarity
}

func (a *clarityAssessor) Assess(text, _ string) Assessment {
	if a.provider == nil {
		return Degrade("no readability provider configured")
	}

	r, err := a.provider.Readability(text)
	if err != nil {
		return Degrade("readability unavailable: %v", err)
	}

	return Scored(ReadingEaseToClarity(r.ReadingEase))
}

// ReadingEaseToClarity maps a Flesch reading ease score linearly onto [0,1]:
// 0 (or below) is 0, 100 (or above) is 1. The mapping is non-decreasing.
func ReadingEaseToClarity(readingEase float64) float64 {
	return model.Clamp01(readingEase / 100)
}
