package diff

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppiankov/clausewatch/internal/model"
)

var fixedTime = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestEngine(opts ...Option) *Engine {
	return NewEngine(append([]Option{WithClock(func() time.Time { return fixedTime })}, opts...)...)
}

func TestDetectChanges_Identical(t *testing.T) {
	e := newTestEngine()

	for _, text := range []string{"", "Users may cancel at any time.", "Données personnelles"} {
		cs := e.DetectChanges(text, text)

		assert.Equal(t, 1.0, cs.Similarity, "text %q", text)
		assert.Empty(t, cs.Additions)
		assert.Empty(t, cs.Deletions)
		assert.Empty(t, cs.Modifications)
		assert.True(t, cs.Identical())
		assert.Equal(t, text, cs.ReconstructOld())
		assert.Equal(t, text, cs.ReconstructNew())
	}
}

func TestDetectChanges_BothEmptyIsFullySimilar(t *testing.T) {
	cs := newTestEngine().DetectChanges("", "")

	assert.Equal(t, 1.0, cs.Similarity)
	assert.Empty(t, cs.Ops)
	assert.Equal(t, 0, cs.Summary.OldLength)
	assert.Equal(t, 0, cs.Summary.NewLength)
}

func TestDetectChanges_OneSideEmpty(t *testing.T) {
	e := newTestEngine()

	added := e.DetectChanges("", "New clause.")
	assert.Equal(t, 0.0, added.Similarity)
	assert.Equal(t, []string{"New clause."}, added.Additions)
	assert.Empty(t, added.Deletions)
	assert.Equal(t, "New clause.", added.ReconstructNew())
	assert.Equal(t, "", added.ReconstructOld())

	removed := e.DetectChanges("Old clause.", "")
	assert.Equal(t, 0.0, removed.Similarity)
	assert.Equal(t, []string{"Old clause."}, removed.Deletions)
	assert.Empty(t, removed.Additions)
	assert.Equal(t, 11, removed.Summary.OldLength)
	assert.Equal(t, -11, removed.Summary.LengthDelta)
}

func TestDetectChanges_AppendedClause(t *testing.T) {
	oldText := "Users may cancel at any time."
	newText := "Users may cancel at any time, subject to a 30-day notice period and non-refundable fees."

	cs := newTestEngine().DetectChanges(oldText, newText)

	assert.Greater(t, cs.Similarity, 0.0)
	assert.Less(t, cs.Similarity, 1.0)
	require.NotEmpty(t, append(cs.Additions, modifiedNew(cs)...))

	joined := strings.Join(append(cs.Additions, modifiedNew(cs)...), "")
	assert.Contains(t, joined, "non-refundable fees")

	assert.Equal(t, oldText, cs.ReconstructOld())
	assert.Equal(t, newText, cs.ReconstructNew())
	assert.Equal(t, len([]rune(newText))-len([]rune(oldText)), cs.Summary.LengthDelta)
	assert.NotEqual(t, cs.Summary.OldFingerprint, cs.Summary.NewFingerprint)
}

func TestDetectChanges_Replacement(t *testing.T) {
	cs := newTestEngine().DetectChanges("Fees are refundable.", "Fees are final.")

	require.NotEmpty(t, cs.Ops)
	assert.Equal(t, model.OpEqual, cs.Ops[0].Tag)
	assert.Equal(t, "Fees are ", cs.Ops[0].Old)
	assert.NotEmpty(t, append(cs.Deletions, modifiedOld(cs)...))
	assert.Equal(t, "Fees are refundable.", cs.ReconstructOld())
	assert.Equal(t, "Fees are final.", cs.ReconstructNew())
}

func TestDetectChanges_OffsetsAreRuneIndexes(t *testing.T) {
	cs := newTestEngine().DetectChanges("Données: oui", "Données: non")

	for _, op := range cs.Ops {
		assert.Equal(t, op.OldEnd-op.OldStart, len([]rune(op.Old)))
		assert.Equal(t, op.NewEnd-op.NewStart, len([]rune(op.New)))
	}
	assert.Equal(t, 12, cs.Summary.OldLength)
}

func TestDetectChanges_Deterministic(t *testing.T) {
	oldText := strings.Repeat("The licensor may terminate this agreement. ", 20)
	newText := strings.Repeat("The licensor may suspend this agreement at will. ", 20)

	e := newTestEngine()
	first := e.DetectChanges(oldText, newText)
	second := e.DetectChanges(oldText, newText)

	assert.Equal(t, first, second)
}

func TestDetectChanges_SimilarityRatio(t *testing.T) {
	// "abcd" vs "abxd": 3 matched runes of 8 total
	cs := newTestEngine().DetectChanges("abcd", "abxd")
	assert.InDelta(t, 0.75, cs.Similarity, 1e-9)

	none := newTestEngine().DetectChanges("aaaa", "bbbb")
	assert.Equal(t, 0.0, none.Similarity)
	assert.Len(t, none.Modifications, 1)
}

func TestDetectChanges_AutoJunkKeepsRoundTrip(t *testing.T) {
	oldText := strings.Repeat("e ", 300) + "end"
	newText := strings.Repeat("e ", 299) + "x end"

	for _, autoJunk := range []bool{true, false} {
		cs := newTestEngine(WithAutoJunk(autoJunk)).DetectChanges(oldText, newText)
		assert.Equal(t, oldText, cs.ReconstructOld())
		assert.Equal(t, newText, cs.ReconstructNew())
	}
}

func TestDetectChanges_RepetitiveTextKeepsSimilarity(t *testing.T) {
	oldText := strings.Repeat("the quick brown fox. ", 20)
	newText := strings.Repeat("the quick brown cat. ", 20)

	cs := newTestEngine().DetectChanges(oldText, newText)
	assert.Greater(t, cs.Similarity, 0.8, "default engine matches 18 of every 21 runes")
	assert.Equal(t, oldText, cs.ReconstructOld())
	assert.Equal(t, newText, cs.ReconstructNew())

	junked := newTestEngine(WithAutoJunk(true)).DetectChanges(oldText, newText)
	assert.Less(t, junked.Similarity, 0.5, "every rune is popular above 200 runes")
}

func TestDetectChanges_InvalidUTF8(t *testing.T) {
	oldText := "ok\xffok"
	newText := "ok\xfeok"

	cs := newTestEngine().DetectChanges(oldText, newText)
	assert.Less(t, cs.Similarity, 1.0)
	assert.Equal(t, oldText, cs.ReconstructOld())
	assert.Equal(t, newText, cs.ReconstructNew())
}

func TestAlignSequences(t *testing.T) {
	ops := AlignSequences([]string{"a", "b", "c"}, []string{"a", "x", "c", "d"})

	require.Len(t, ops, 4)
	assert.Equal(t, model.OpEqual, ops[0].Tag)
	assert.Equal(t, model.OpReplace, ops[1].Tag)
	assert.Equal(t, model.OpEqual, ops[2].Tag)
	assert.Equal(t, model.OpInsert, ops[3].Tag)
	assert.Equal(t, 3, ops[3].NewStart)

	assert.Empty(t, AlignSequences(nil, nil))
}

func modifiedNew(cs model.ChangeSet) []string {
	var out []string
	for _, m := range cs.Modifications {
		out = append(out, m.New)
	}
	return out
}

func modifiedOld(cs model.ChangeSet) []string {
	var out []string
	for _, m := range cs.Modifications {
		out = append(out, m.Old)
	}
	return out
}
