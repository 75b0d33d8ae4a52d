// Package llm produces optional plain-language summaries of document changes.
// Summaries are generated after scoring and never influence scores.
package llm

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/ppiankov/clausewatch/internal/model"
)

// Provider defines the interface for LLM providers
type Provider interface {
	// Name returns the provider name
	Name() string

	// Summarize generates a summary of a change report
	Summarize(ctx context.Context, req SummarizeRequest) (*SummarizeResponse, error)

	// IsAvailable checks if the provider is configured and reachable
	IsAvailable(ctx context.Context) bool
}

// SummarizeRequest contains the input for summarization
type SummarizeRequest struct {
	Company      string
	DocumentType string
	Report       *model.DocumentReport

	// SourceURLs is the allowlist of URLs the summary may cite
	SourceURLs []string

	// Prompt overrides the default prompt when set
	Prompt string

	// Model overrides the configured model when set
	Model string

	MaxTokens int
}

// SummarizeResponse contains the provider output
type SummarizeResponse struct {
	Summary    string
	CitedURLs  []string
	Model      string
	TokensUsed int
}

// Config holds LLM provider configuration
type Config struct {
	// Provider name: "openai", "ollama", or "" for disabled
	Provider string
	Model    string
	APIKey   string
	BaseURL  string
	Timeout  int // seconds

	// StrictSources rejects summaries citing URLs outside the request allowlist
	StrictSources bool

	MaxTokens int

	HTTPProxy  string
	HTTPSProxy string

	// Logger receives availability diagnostics; nil discards them
	Logger *zap.Logger
}

func (c Config) logger() *zap.Logger {
	if c.Logger == nil {
		return zap.NewNop()
	}
	return c.Logger
}

// DefaultConfig returns the disabled default
func DefaultConfig() Config {
	return Config{
		Timeout:       30,
		StrictSources: true,
		MaxTokens:     600,
	}
}

const systemPrompt = "You explain changes between two versions of a legal document to a non-lawyer. " +
	"You only describe the changes you are given and never give legal advice."

// maxPromptClauses bounds how many clauses of each kind reach the prompt
const maxPromptClauses = 5

// BuildPrompt constructs the default summarization prompt
func BuildPrompt(req SummarizeRequest) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Summarize what changed in the %s of %s.\n\n", displayType(req.DocumentType), displayCompany(req.Company))
	b.WriteString("RULES:\n")
	b.WriteString("1. Only describe the changes listed below. Do not speculate about intent.\n")
	b.WriteString("2. You may only cite these URLs:")
	b.WriteString(joinURLs(req.SourceURLs))
	b.WriteString("\n3. Scores are computed independently. Do not restate them as verdicts.\n")
	b.WriteString("4. Answer in 3-5 sentences of Markdown.\n\n")

	r := req.Report
	if r == nil {
		b.WriteString("No change report is available.\n")
		return b.String()
	}

	fmt.Fprintf(&b, "Clauses: %d before, %d after (%d unchanged).\n", r.OldClauseCount, r.NewClauseCount, r.Unchanged)
	fmt.Fprintf(&b, "Mean clause score: %.2f before, %.2f after (delta %+.2f).\n", r.OldMeanScore, r.NewMeanScore, r.ScoreDelta)
	fmt.Fprintf(&b, "Regressions: %d. Overall regression: %t.\n", r.Regressions, r.IsRegression)

	if len(r.Modified) > 0 {
		b.WriteString("\nModified clauses:\n")
		for i, m := range r.Modified {
			if i >= maxPromptClauses {
				fmt.Fprintf(&b, "... and %d more\n", len(r.Modified)-maxPromptClauses)
				break
			}
			a := m.Assessment
			fmt.Fprintf(&b, "- [%s] score %.2f -> %.2f", a.ClauseType, a.OldScore.TotalScore, a.NewScore.TotalScore)
			if len(a.NewScore.Flags) > 0 {
				fmt.Fprintf(&b, ", flags: %s", strings.Join(a.NewScore.Flags, ", "))
			}
			for _, mod := range a.ChangeSet.Modifications {
				fmt.Fprintf(&b, "\n  was: %q\n  now: %q", truncate(mod.Old), truncate(mod.New))
			}
			for _, add := range a.ChangeSet.Additions {
				fmt.Fprintf(&b, "\n  added: %q", truncate(add))
			}
			b.WriteString("\n")
		}
	}

	writeScored(&b, "Added clauses", r.Added)
	writeScored(&b, "Removed clauses", r.Removed)

	return b.String()
}

func writeScored(b *strings.Builder, title string, clauses []model.ScoredClause) {
	if len(clauses) == 0 {
		return
	}
	fmt.Fprintf(b, "\n%s:\n", title)
	for i, c := range clauses {
		if i >= maxPromptClauses {
			fmt.Fprintf(b, "... and %d more\n", len(clauses)-maxPromptClauses)
			return
		}
		fmt.Fprintf(b, "- [%s] %q", c.Score.ClauseType, truncate(c.Text))
		if len(c.Score.Flags) > 0 {
			fmt.Fprintf(b, " flags: %s", strings.Join(c.Score.Flags, ", "))
		}
		b.WriteString("\n")
	}
}

const maxQuoteRunes = 300

func truncate(s string) string {
	r := []rune(s)
	if len(r) <= maxQuoteRunes {
		return s
	}
	return string(r[:maxQuoteRunes]) + "..."
}

func displayType(docType string) string {
	if docType == "" {
		return "document"
	}
	return strings.ReplaceAll(docType, "_", " ")
}

func displayCompany(company string) string {
	if company == "" {
		return "an unnamed company"
	}
	return company
}

func joinURLs(urls []string) string {
	if len(urls) == 0 {
		return " (none)"
	}
	var b strings.Builder
	for _, u := range urls {
		b.WriteString("\n   - ")
		b.WriteString(u)
	}
	return b.String()
}

var urlPattern = regexp.MustCompile(`https?://[^\s\)\]>"]+`)

// extractURLs returns the distinct URLs cited in text
func extractURLs(text string) []string {
	seen := make(map[string]bool)
	var unique []string
	for _, u := range urlPattern.FindAllString(text, -1) {
		u = strings.TrimRight(u, ".,;:!?")
		if !seen[u] {
			seen[u] = true
			unique = append(unique, u)
		}
	}
	return unique
}

// checkCitations returns an error naming the first cited URL outside allowed
func checkCitations(cited, allowed []string) error {
	for _, u := range cited {
		if !contains(allowed, u) {
			return fmt.Errorf("summary cited URL outside the allowlist: %s", u)
		}
	}
	return nil
}

func contains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}
