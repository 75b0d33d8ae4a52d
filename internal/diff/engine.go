// Package diff detects insertions, deletions and modifications between two
// versions of a text.
//
// Alignment is computed over runes by a longest-matching-block sequence
// matcher. Matching is close to linear on near-duplicate documents, which is
// the common case for successive versions of a policy, but degrades to
// quadratic time on wholly dissimilar inputs. Callers comparing untrusted or
// unrelated texts of large size should bound the call with their own timeout.
//
// AutoJunk is off by default. When enabled, runes that make up more than 1%
// of a new text of at least 200 runes cannot start a match. Every rune of a
// short repetitive text crosses that bar, so its similarity collapses towards
// zero; enable it only to speed up long comparisons. The round-trip property
// holds either way.
package diff

import (
	"time"
	"unicode/utf8"

	"github.com/pmezard/go-difflib/difflib"

	"github.com/ppiankov/clausewatch/internal/fingerprint"
	"github.com/ppiankov/clausewatch/internal/model"
)

// Engine computes ChangeSets. It holds no mutable state and is safe for
// concurrent use.
type Engine struct {
	autoJunk bool
	now      func() time.Time
}

// Option configures an Engine
type Option func(*Engine)

// WithAutoJunk toggles the popular-element heuristic of the sequence matcher
func WithAutoJunk(enabled bool) Option {
	return func(e *Engine) { e.autoJunk = enabled }
}

// WithClock sets the clock used for ChangeSummary.ComputedAt
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// NewEngine creates a diff engine
func NewEngine(opts ...Option) *Engine {
	e := &Engine{
		now: func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// DetectChanges aligns oldText against newText and summarizes the differences.
// It never fails on string input.
func (e *Engine) DetectChanges(oldText, newText string) model.ChangeSet {
	at := e.now()
	oldFP := fingerprint.ComputeAt(oldText, at)
	newFP := fingerprint.ComputeAt(newText, at)

	cs := model.ChangeSet{
		Additions:     []string{},
		Deletions:     []string{},
		Modifications: []model.Modification{},
		Ops:           []model.Op{},
		Summary: model.ChangeSummary{
			OldLength:      oldFP.Length,
			NewLength:      newFP.Length,
			LengthDelta:    newFP.Length - oldFP.Length,
			OldFingerprint: oldFP.ContentHash,
			NewFingerprint: newFP.ContentHash,
			ComputedAt:     at,
		},
	}

	switch {
	case oldText == newText:
		// Includes the both-empty case: identical inputs are similarity 1.0 by convention.
		cs.Similarity = 1.0
		if oldFP.Length > 0 {
			cs.Ops = append(cs.Ops, model.Op{
				Tag: model.OpEqual, OldEnd: oldFP.Length, NewEnd: newFP.Length,
				Old: oldText, New: newText,
			})
		}
		return cs

	case oldFP.Length == 0:
		cs.Similarity = 0.0
		cs.Additions = append(cs.Additions, newText)
		cs.Ops = append(cs.Ops, model.Op{Tag: model.OpInsert, NewEnd: newFP.Length, New: newText})
		return cs

	case newFP.Length == 0:
		cs.Similarity = 0.0
		cs.Deletions = append(cs.Deletions, oldText)
		cs.Ops = append(cs.Ops, model.Op{Tag: model.OpDelete, OldEnd: oldFP.Length, Old: oldText})
		return cs
	}

	oldSeq, oldOffsets := splitRunes(oldText)
	newSeq, newOffsets := splitRunes(newText)

	matcher := difflib.NewMatcherWithJunk(oldSeq, newSeq, e.autoJunk, nil)

	matched := 0
	for _, block := range matcher.GetMatchingBlocks() {
		matched += block.Size
	}
	cs.Similarity = 2.0 * float64(matched) / float64(len(oldSeq)+len(newSeq))

	for _, oc := range matcher.GetOpCodes() {
		op := model.Op{
			Tag:      tagName(oc.Tag),
			OldStart: oc.I1,
			OldEnd:   oc.I2,
			NewStart: oc.J1,
			NewEnd:   oc.J2,
			Old:      oldText[oldOffsets[oc.I1]:oldOffsets[oc.I2]],
			New:      newText[newOffsets[oc.J1]:newOffsets[oc.J2]],
		}

		switch op.Tag {
		case model.OpInsert:
			cs.Additions = append(cs.Additions, op.New)
		case model.OpDelete:
			cs.Deletions = append(cs.Deletions, op.Old)
		case model.OpReplace:
			cs.Modifications = append(cs.Modifications, model.Modification{Old: op.Old, New: op.New})
		}

		cs.Ops = append(cs.Ops, op)
	}

	return cs
}

// splitRunes returns text as one element per rune plus the byte offset of
// every rune boundary (len(seq)+1 entries), so spans can be sliced from the
// original string without copying.
func splitRunes(text string) ([]string, []int) {
	seq := make([]string, 0, utf8.RuneCountInString(text))
	offsets := make([]int, 0, cap(seq)+1)

	for i, r := range text {
		offsets = append(offsets, i)
		if r == utf8.RuneError {
			// Invalid bytes decode to RuneError; keep the raw bytes so
			// distinct invalid sequences still compare by content.
			_, size := utf8.DecodeRuneInString(text[i:])
			seq = append(seq, text[i:i+size])
			continue
		}
		seq = append(seq, string(r))
	}
	offsets = append(offsets, len(text))

	return seq, offsets
}
