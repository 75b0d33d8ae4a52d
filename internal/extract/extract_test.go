package extract

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppiankov/clausewatch/internal/model"
)

const termsHTML = `<!DOCTYPE html>
<html>
<head><title>Terms</title><style>p { color: red; }</style></head>
<body>
  <nav><a href="/">Home</a> <a href="/privacy">Privacy</a></nav>
  <main>
    <h2>1. Termination</h2>
    <p>Users may cancel
       at any time.</p>
    <h2>2. Fees</h2>
    <p>All fees are <b>non-refundable</b>.</p>
    <script>var tracking = "third party";</script>
  </main>
  <footer>Copyright 2024</footer>
</body>
</html>`

func TestHTMLText(t *testing.T) {
	text, err := HTMLText(termsHTML)
	require.NoError(t, err)

	assert.Equal(t, "1. Termination\n\nUsers may cancel at any time.\n\n2. Fees\n\nAll fees are non-refundable.", text)
	assert.NotContains(t, text, "tracking")
	assert.NotContains(t, text, "Home")
	assert.NotContains(t, text, "Copyright")
	assert.NotContains(t, text, "color")
}

func TestNormalize(t *testing.T) {
	assert.Equal(t, "a b\n\nc", Normalize("  a \r\n  b  \n\n\n\n  c \n"))
	assert.Equal(t, "", Normalize(" \n\t\n"))
}

func TestPlainText(t *testing.T) {
	assert.Equal(t, "1. Terms\n2. Fees", PlainText([]byte("1. Terms  \r\n2. Fees\n\n")))
	assert.Equal(t, "bad � byte", PlainText([]byte("bad \xff byte")))
}

func TestFromContentType(t *testing.T) {
	text, err := FromContentType("text/html; charset=utf-8", []byte(termsHTML))
	require.NoError(t, err)
	assert.Contains(t, text, "Users may cancel at any time.")

	text, err = FromContentType("", []byte("Plain terms."))
	require.NoError(t, err)
	assert.Equal(t, "Plain terms.", text)

	_, err = FromContentType("text/html", []byte("<html><script>x()</script></html>"))
	require.Error(t, err)
	assert.True(t, model.IsInputError(err))
	assert.ErrorIs(t, err, model.ErrEmptyText)
}

func TestFromContentType_MissingOrMalformedHeader(t *testing.T) {
	tests := []struct {
		contentType string
		body        string
		want        string
	}{
		{"", "Users may cancel at any time.", "Users may cancel at any time."},
		{"text/plain; charset", "Users may cancel at any time.", "Users may cancel at any time."},
		{"application/octet-stream", "Users may cancel at any time.", "Users may cancel at any time."},
		{"text/html;;", "<p>Users may cancel at any time.</p>", "Users may cancel at any time."},
		{"TEXT/HTML; =broken", "<p>All fees are non-refundable.</p>", "All fees are non-refundable."},
	}

	for _, tt := range tests {
		t.Run(tt.contentType, func(t *testing.T) {
			text, err := FromContentType(tt.contentType, []byte(tt.body))
			require.NoError(t, err)
			assert.Equal(t, tt.want, text)
		})
	}
}

func TestFromContentType_InvalidPDF(t *testing.T) {
	_, err := FromContentType(ContentPDF, []byte("not a pdf"))
	assert.Error(t, err)
}

func TestContentTypeForPath(t *testing.T) {
	assert.Equal(t, ContentHTML, ContentTypeForPath("terms.HTML"))
	assert.Equal(t, ContentHTML, ContentTypeForPath("/a/b/eula.htm"))
	assert.Equal(t, ContentPDF, ContentTypeForPath("policy.pdf"))
	assert.Equal(t, ContentPlain, ContentTypeForPath("policy.txt"))
	assert.Equal(t, ContentPlain, ContentTypeForPath("policy"))
}

func TestFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "terms.html")
	require.NoError(t, os.WriteFile(path, []byte(termsHTML), 0o644))

	text, err := FromFile(path)
	require.NoError(t, err)
	assert.Contains(t, text, "All fees are non-refundable.")

	_, err = FromFile(filepath.Join(dir, "missing.txt"))
	assert.Error(t, err)
}

func TestSplitClauses(t *testing.T) {
	text := "1. Termination\n\nUsers may cancel at any time.\n\n2. Fees\n\nAll fees are non-refundable.\n\nWe may share personal data with third parties."

	clauses := SplitClauses(text)
	require.Len(t, clauses, 3)

	assert.Equal(t, model.Clause{Index: 0, Type: model.ClauseTermination, Text: "1. Termination Users may cancel at any time."}, clauses[0])
	assert.Equal(t, model.Clause{Index: 1, Type: model.ClausePayment, Text: "2. Fees All fees are non-refundable."}, clauses[1])
	assert.Equal(t, model.ClausePrivacy, clauses[2].Type)
}

func TestSplitClauses_NumberedLinesWithoutBlankLines(t *testing.T) {
	text := "Preamble text applies to everyone.\n1. You may cancel at any time.\n2. Disputes go to binding arbitration.\n   The seat is London.\n3) We may modify these terms."

	clauses := SplitClauses(text)
	require.Len(t, clauses, 4)

	assert.Equal(t, "Preamble text applies to everyone.", clauses[0].Text)
	assert.Equal(t, "2. Disputes go to binding arbitration. The seat is London.", clauses[2].Text)
	assert.Equal(t, model.ClauseDisputeResolution, clauses[2].Type)
	assert.Equal(t, model.ClauseModification, clauses[3].Type)
}

func TestSplitClauses_TrailingTitleAndEmpty(t *testing.T) {
	assert.Empty(t, SplitClauses(""))
	assert.Empty(t, SplitClauses("\n \n"))

	clauses := SplitClauses("Some clause text.\n\nAppendix A")
	require.Len(t, clauses, 2)
	assert.Equal(t, "Appendix A", clauses[1].Text)
}

func TestClassifyClause(t *testing.T) {
	tests := []struct {
		text string
		want string
	}{
		{"Users may cancel at any time.", model.ClauseTermination},
		{"Subscription fees are billed monthly.", model.ClausePayment},
		{"We collect cookies and personal information.", model.ClausePrivacy},
		{"The service is provided as is without warranty.", model.ClauseLiability},
		{"Any dispute is settled by arbitration.", model.ClauseDisputeResolution},
		{"We grant you a limited licence to use the software.", model.ClauseLicense},
		{"We may amend this document.", model.ClauseModification},
		{"Welcome to our service.", model.ClauseGeneral},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, ClassifyClause(tt.text))
		})
	}
}
