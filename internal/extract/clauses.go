package extract

import (
	"regexp"
	"strings"

	"github.com/ppiankov/clausewatch/internal/model"
)

// headingLine matches lines that open a new numbered clause
var headingLine = regexp.MustCompile(`(?i)^\s*(\d+(\.\d+)*[.)]?|\(?[a-z]\)|section\s+\d+|article\s+[0-9ivxlc]+)\s+\S`)

// maxHeadingWords bounds how long a title-only paragraph can be
const maxHeadingWords = 8

// clauseKeywords drives ClassifyClause. Ties resolve in this order.
var clauseKeywords = []struct {
	clauseType string
	keywords   []string
}{
	{model.ClauseTermination, []string{"terminat", "cancel", "suspend", "close your account", "end this agreement"}},
	{model.ClausePayment, []string{"fee", "payment", "price", "billing", "refund", "subscription", "charge"}},
	{model.ClausePrivacy, []string{"personal data", "personal information", "privacy", "cookie", "collect", "third part"}},
	{model.ClauseLiability, []string{"liab", "warrant", "indemn", "damages", "as is", "as-is"}},
	{model.ClauseDisputeResolution, []string{"arbitrat", "dispute", "governing law", "jurisdiction", "court", "class action"}},
	{model.ClauseLicense, []string{"licen", "intellectual property", "copyright", "trademark"}},
	{model.ClauseModification, []string{"modify", "amend", "changes to these terms", "update these terms", "revise"}},
}

// SplitClauses segments a document into clauses. Paragraphs end at blank
// lines and at numbered headings; a short title-only paragraph is merged into
// the clause it introduces. Each clause is typed by ClassifyClause.
func SplitClauses(text string) []model.Clause {
	paragraphs := splitParagraphs(text)

	var merged []string
	pendingTitle := ""
	for _, p := range paragraphs {
		if isTitle(p) {
			if pendingTitle != "" {
				merged = append(merged, pendingTitle)
			}
			pendingTitle = p
			continue
		}
		if pendingTitle != "" {
			p = pendingTitle + " " + p
			pendingTitle = ""
		}
		merged = append(merged, p)
	}
	if pendingTitle != "" {
		merged = append(merged, pendingTitle)
	}

	clauses := make([]model.Clause, 0, len(merged))
	for i, p := range merged {
		clauses = append(clauses, model.Clause{Index: i, Type: ClassifyClause(p), Text: p})
	}
	return clauses
}

func splitParagraphs(text string) []string {
	text = strings.ReplaceAll(text, "\r\n", "\n")

	var paragraphs []string
	var current []string

	flush := func() {
		if len(current) > 0 {
			paragraphs = append(paragraphs, strings.Join(current, " "))
			current = nil
		}
	}

	for _, line := range strings.Split(text, "\n") {
		fields := strings.Fields(line)
		if len(fields) == 0 {
			flush()
			continue
		}
		if headingLine.MatchString(line) {
			flush()
		}
		current = append(current, strings.Join(fields, " "))
	}
	flush()

	return paragraphs
}

// isTitle reports whether a paragraph is a short heading with no sentence ending
func isTitle(p string) bool {
	if len(strings.Fields(p)) > maxHeadingWords {
		return false
	}
	last := p[len(p)-1]
	return !strings.ContainsRune(".!?;,", rune(last))
}

// ClassifyClause assigns a clause type by counting keyword hits per type.
// Text with no hits is general.
func ClassifyClause(text string) string {
	lower := strings.ToLower(text)

	best, bestHits := model.ClauseGeneral, 0
	for _, entry := range clauseKeywords {
		hits := 0
		for _, kw := range entry.keywords {
			hits += strings.Count(lower, kw)
		}
		if hits > bestHits {
			best, bestHits = entry.clauseType, hits
		}
	}
	return best
}
