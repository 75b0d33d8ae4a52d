package model

import (
	"strings"
	"time"
)

// OpTag classifies an aligned region between two texts
type OpTag string

const (
	OpEqual   OpTag = "equal"
	OpInsert  OpTag = "insert"
	OpDelete  OpTag = "delete"
	OpReplace OpTag = "replace"
)

// Op is one aligned region. Offsets are rune indexes, end exclusive.
type Op struct {
	Tag      OpTag  `json:"tag"`
	OldStart int    `json:"old_start"`
	OldEnd   int    `json:"old_end"`
	NewStart int    `json:"new_start"`
	NewEnd   int    `json:"new_end"`
	Old      string `json:"-"` // span of the old text covered by this op
	New      string `json:"-"` // span of the new text covered by this op
}

// Modification pairs a replaced span of the old text with its replacement
type Modification struct {
	Old string `json:"old"`
	New string `json:"new"`
}

// ChangeSummary describes both inputs of a comparison
type ChangeSummary struct {
	OldLength      int       `json:"old_length"`      // rune count
	NewLength      int       `json:"new_length"`      // rune count
	LengthDelta    int       `json:"length_delta"`    // new - old
	OldFingerprint string    `json:"old_fingerprint"` // sha-256 hex
	NewFingerprint string    `json:"new_fingerprint"` // sha-256 hex
	ComputedAt     time.Time `json:"computed_at"`
}

// ChangeSet is the immutable result of comparing two texts
type ChangeSet struct {
	Additions     []string       `json:"additions"`
	Deletions     []string       `json:"deletions"`
	Modifications []Modification `json:"modifications"`
	Similarity    float64        `json:"similarity"` // 1.0 identical, 0.0 nothing in common
	Summary       ChangeSummary  `json:"summary"`
	Ops           []Op           `json:"ops"`
}

// Identical reports whether the two compared texts had the same content
func (c ChangeSet) Identical() bool {
	return c.Summary.OldFingerprint == c.Summary.NewFingerprint
}

// ReconstructOld rebuilds the old text from unchanged spans, deletions and
// the old halves of modifications, in document order.
func (c ChangeSet) ReconstructOld() string {
	var b strings.Builder
	for _, op := range c.Ops {
		if op.Tag != OpInsert {
			b.WriteString(op.Old)
		}
	}
	return b.String()
}

// ReconstructNew rebuilds the new text from unchanged spans, additions and
// the new halves of modifications, in document order.
func (c ChangeSet) ReconstructNew() string {
	var b strings.Builder
	for _, op := range c.Ops {
		if op.Tag != OpDelete {
			b.WriteString(op.New)
		}
	}
	return b.String()
}

// ChangeAssessment answers "what changed, and did it get worse" for one clause pair
type ChangeAssessment struct {
	ClauseType   string      `json:"clause_type"`
	ChangeSet    ChangeSet   `json:"change_set"`
	OldScore     ClauseScore `json:"old_score"`
	NewScore     ClauseScore `json:"new_score"`
	ScoreDelta   float64     `json:"score_delta"`   // new total - old total
	IsRegression bool        `json:"is_regression"` // delta below -threshold on a real change
}

// ClauseChange is a modified clause located in both document versions
type ClauseChange struct {
	OldIndex   int              `json:"old_index"`
	NewIndex   int              `json:"new_index"`
	Assessment ChangeAssessment `json:"assessment"`
}

// ScoredClause is a clause present in only one document version
type ScoredClause struct {
	Index int         `json:"index"`
	Text  string      `json:"text"`
	Score ClauseScore `json:"score"`
}

// DocumentReport is the clause-level comparison of two document versions
type DocumentReport struct {
	ChangeSet      ChangeSet      `json:"change_set"`
	OldClauseCount int            `json:"old_clause_count"`
	NewClauseCount int            `json:"new_clause_count"`
	Unchanged      int            `json:"unchanged"`
	Modified       []ClauseChange `json:"modified"`
	Added          []ScoredClause `json:"added"`
	Removed        []ScoredClause `json:"removed"`
	OldMeanScore   float64        `json:"old_mean_score"`
	NewMeanScore   float64        `json:"new_mean_score"`
	ScoreDelta     float64        `json:"score_delta"`
	Regressions    int            `json:"regressions"` // modified clauses flagged as regressions
	IsRegression   bool           `json:"is_regression"`
}
