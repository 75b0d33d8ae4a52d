// Package change combines the diff engine and the clause scorer to decide
// whether an edit materially increased risk.
package change

import (
	"context"
	"fmt"
	"slices"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ppiankov/clausewatch/internal/diff"
	"github.com/ppiankov/clausewatch/internal/extract"
	"github.com/ppiankov/clausewatch/internal/fingerprint"
	"github.com/ppiankov/clausewatch/internal/metrics"
	"github.com/ppiankov/clausewatch/internal/model"
)

// DefaultThreshold is the score drop beyond which a change is a regression
const DefaultThreshold = 0.05

// DefaultWorkers bounds parallel clause scoring in AssessDocument
const DefaultWorkers = 8

// Scorer scores one clause
type Scorer interface {
	ScoreClause(text, clauseType string) (model.ClauseScore, error)
}

// Differ compares two texts
type Differ interface {
	DetectChanges(oldText, newText string) model.ChangeSet
}

// Analyzer is stateless and safe for concurrent use
type Analyzer struct {
	scorer    Scorer
	differ    Differ
	threshold float64
	workers   int
	split     func(string) []model.Clause
}

// Option configures an Analyzer
type Option func(*Analyzer)

// WithThreshold sets the regression threshold, a positive magnitude
func WithThreshold(threshold float64) Option {
	return func(a *Analyzer) { a.threshold = threshold }
}

// WithWorkers bounds how many clauses AssessDocument scores at once
func WithWorkers(n int) Option {
	return func(a *Analyzer) { a.workers = n }
}

// WithSplitter replaces the clause splitter used by AssessDocument
func WithSplitter(split func(string) []model.Clause) Option {
	return func(a *Analyzer) { a.split = split }
}

// NewAnalyzer creates an analyzer. A nil differ uses the default diff engine.
func NewAnalyzer(scorer Scorer, differ Differ, opts ...Option) (*Analyzer, error) {
	if scorer == nil {
		return nil, &model.ConfigError{Field: "scorer", Reason: "scorer is required"}
	}
	if differ == nil {
		differ = diff.NewEngine()
	}

	a := &Analyzer{
		scorer:    scorer,
		differ:    differ,
		threshold: DefaultThreshold,
		workers:   DefaultWorkers,
		split:     extract.SplitClauses,
	}
	for _, opt := range opts {
		opt(a)
	}

	if a.threshold < 0 || a.threshold > 1 {
		return nil, &model.ConfigError{
			Field:  "scoring.regression_threshold",
			Reason: fmt.Sprintf("%v outside [0,1]", a.threshold),
		}
	}
	if a.workers < 1 {
		a.workers = 1
	}

	return a, nil
}

// Threshold returns the regression threshold
func (a *Analyzer) Threshold() float64 {
	return a.threshold
}

// AssessChange diffs two versions of a clause and scores both.
// Scorer input errors (such as empty text) are returned unchanged.
func (a *Analyzer) AssessChange(oldText, newText, clauseType string) (model.ChangeAssessment, error) {
	cs := a.differ.DetectChanges(oldText, newText)

	oldScore, err := a.scoreClause(oldText, clauseType)
	if err != nil {
		return model.ChangeAssessment{}, fmt.Errorf("score old version: %w", err)
	}

	newScore, err := a.scoreClause(newText, clauseType)
	if err != nil {
		return model.ChangeAssessment{}, fmt.Errorf("score new version: %w", err)
	}

	return a.assessment(cs, oldScore, newScore, clauseType), nil
}

// scoreClause scores through the scorer and records the result's metrics
func (a *Analyzer) scoreClause(text, clauseType string) (model.ClauseScore, error) {
	s, err := a.scorer.ScoreClause(text, clauseType)
	if err != nil {
		return s, err
	}
	metrics.RecordClauseScore(s)
	return s, nil
}

func (a *Analyzer) assessment(cs model.ChangeSet, oldScore, newScore model.ClauseScore, clauseType string) model.ChangeAssessment {
	delta := model.Round2(newScore.TotalScore - oldScore.TotalScore)
	return model.ChangeAssessment{
		ClauseType:   clauseType,
		ChangeSet:    cs,
		OldScore:     oldScore,
		NewScore:     newScore,
		ScoreDelta:   delta,
		IsRegression: a.isRegression(delta, cs.Similarity),
	}
}

// isRegression requires a real textual change: identical texts never regress
func (a *Analyzer) isRegression(delta, similarity float64) bool {
	return delta < -a.threshold && similarity < 1.0
}

// AssessDocument splits both versions into clauses, aligns them by content
// and scores every clause. Unchanged clauses are counted, edited clauses are
// assessed pairwise, and clauses present in one version only are reported as
// added or removed.
func (a *Analyzer) AssessDocument(ctx context.Context, oldText, newText string) (model.DocumentReport, error) {
	oldClauses := a.split(oldText)
	newClauses := a.split(newText)

	oldScores, err := a.scoreAll(ctx, oldClauses)
	if err != nil {
		return model.DocumentReport{}, fmt.Errorf("score old version: %w", err)
	}
	newScores, err := a.scoreAll(ctx, newClauses)
	if err != nil {
		return model.DocumentReport{}, fmt.Errorf("score new version: %w", err)
	}

	start := time.Now()
	docChanges := a.differ.DetectChanges(oldText, newText)
	metrics.ObserveSince(metrics.DiffDuration, start)
	metrics.DocumentSimilarity.Observe(docChanges.Similarity)

	report := model.DocumentReport{
		ChangeSet:      docChanges,
		OldClauseCount: len(oldClauses),
		NewClauseCount: len(newClauses),
		Modified:       []model.ClauseChange{},
		Added:          []model.ScoredClause{},
		Removed:        []model.ScoredClause{},
		OldMeanScore:   meanScore(oldScores),
		NewMeanScore:   meanScore(newScores),
	}

	removed := func(i int) {
		report.Removed = append(report.Removed, model.ScoredClause{Index: i, Text: oldClauses[i].Text, Score: oldScores[i]})
	}
	added := func(j int) {
		report.Added = append(report.Added, model.ScoredClause{Index: j, Text: newClauses[j].Text, Score: newScores[j]})
	}

	for _, op := range diff.AlignSequences(clauseKeys(oldClauses), clauseKeys(newClauses)) {
		switch op.Tag {
		case model.OpEqual:
			report.Unchanged += op.OldEnd - op.OldStart
		case model.OpDelete:
			for i := op.OldStart; i < op.OldEnd; i++ {
				removed(i)
			}
		case model.OpInsert:
			for j := op.NewStart; j < op.NewEnd; j++ {
				added(j)
			}
		case model.OpReplace:
			// pair edited clauses by position within the block; a pair is
			// judged under the old clause's type so both sides face the same rules
			i, j := op.OldStart, op.NewStart
			for ; i < op.OldEnd && j < op.NewEnd; i, j = i+1, j+1 {
				clauseType := oldClauses[i].Type
				newScore := newScores[j]
				if newClauses[j].Type != clauseType {
					if newScore, err = a.scoreClause(newClauses[j].Text, clauseType); err != nil {
						return model.DocumentReport{}, fmt.Errorf("rescore clause %d: %w", j, err)
					}
				}
				cs := a.differ.DetectChanges(oldClauses[i].Text, newClauses[j].Text)
				ca := a.assessment(cs, oldScores[i], newScore, clauseType)
				if ca.IsRegression {
					report.Regressions++
					metrics.ClauseRegressions.WithLabelValues(clauseType).Inc()
				}
				report.Modified = append(report.Modified, model.ClauseChange{OldIndex: i, NewIndex: j, Assessment: ca})
			}
			for ; i < op.OldEnd; i++ {
				removed(i)
			}
			for ; j < op.NewEnd; j++ {
				added(j)
			}
		}
	}

	report.ScoreDelta = model.Round2(report.NewMeanScore - report.OldMeanScore)
	report.IsRegression = report.ChangeSet.Similarity < 1.0 &&
		(report.Regressions > 0 || report.ScoreDelta < -a.threshold)

	return report, nil
}

// AnalyzeVersion scores every clause of a single version and aggregates the
// scores into mean totals per criterion. Degraded criteria and red flags are
// collected across clauses, deduplicated and sorted.
func (a *Analyzer) AnalyzeVersion(ctx context.Context, text string) (model.VersionAnalysis, error) {
	clauses := a.split(text)
	scores, err := a.scoreAll(ctx, clauses)
	if err != nil {
		return model.VersionAnalysis{}, fmt.Errorf("score version: %w", err)
	}

	analysis := model.VersionAnalysis{
		ClauseCount:     len(clauses),
		MeanScore:       meanScore(scores),
		ComponentScores: map[model.Criterion]float64{},
	}

	sums := map[model.Criterion]float64{}
	for _, s := range scores {
		for c, v := range s.ComponentScores {
			sums[c] += v
		}
		for _, c := range s.Degraded {
			if !slices.Contains(analysis.Degraded, c) {
				analysis.Degraded = append(analysis.Degraded, c)
			}
		}
		for _, f := range s.Flags {
			if !slices.Contains(analysis.Flags, f) {
				analysis.Flags = append(analysis.Flags, f)
			}
		}
	}
	for c, sum := range sums {
		analysis.ComponentScores[c] = model.Round2(sum / float64(len(scores)))
	}
	slices.Sort(analysis.Degraded)
	slices.Sort(analysis.Flags)

	return analysis, nil
}

// scoreAll scores clauses concurrently, keeping input order
func (a *Analyzer) scoreAll(ctx context.Context, clauses []model.Clause) ([]model.ClauseScore, error) {
	scores := make([]model.ClauseScore, len(clauses))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(a.workers)

	for i, c := range clauses {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			s, err := a.scoreClause(c.Text, c.Type)
			if err != nil {
				return fmt.Errorf("clause %d: %w", c.Index, err)
			}
			scores[i] = s
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return scores, nil
}

func clauseKeys(clauses []model.Clause) []string {
	keys := make([]string, len(clauses))
	for i, c := range clauses {
		keys[i] = fingerprint.Hash(c.Text)
	}
	return keys
}

func meanScore(scores []model.ClauseScore) float64 {
	if len(scores) == 0 {
		return 0
	}
	sum := 0.0
	for _, s := range scores {
		sum += s.TotalScore
	}
	return model.Round2(sum / float64(len(scores)))
}
