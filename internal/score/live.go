package score

import (
	"sync/atomic"

	"github.com/ppiankov/clausewatch/internal/assess"
	"github.com/ppiankov/clausewatch/internal/criteria"
	"github.com/ppiankov/clausewatch/internal/model"
)

// Live holds the active ClauseScorer and lets a criteria reload replace it
// as a whole. In-flight calls finish on the scorer they started with.
type Live struct {
	current atomic.Pointer[ClauseScorer]
}

// NewLive wraps s
func NewLive(s *ClauseScorer) *Live {
	l := &Live{}
	l.current.Store(s)
	return l
}

// Current returns the active scorer
func (l *Live) Current() *ClauseScorer {
	return l.current.Load()
}

// Swap installs s. A nil s is ignored.
func (l *Live) Swap(s *ClauseScorer) {
	if s != nil {
		l.current.Store(s)
	}
}

// Rebuild builds a scorer from a new criteria snapshot and installs it.
// On error the active scorer is kept.
func (l *Live) Rebuild(weights model.Weights, c *criteria.Criteria, readability assess.ReadabilityProvider, opts ...Option) error {
	s, err := FromCriteria(weights, c, readability, opts...)
	if err != nil {
		return err
	}
	l.Swap(s)
	return nil
}

// ScoreClause scores with the active scorer
func (l *Live) ScoreClause(text, clauseType string) (model.ClauseScore, error) {
	return l.Current().ScoreClause(text, clauseType)
}
