package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ppiankov/clausewatch/internal/model"
)

// Summarizer wraps a provider with graceful degradation: provider failures
// become warnings on the returned summary instead of errors
type Summarizer struct {
	provider Provider
	config   Config
	now      func() time.Time
}

// NewSummarizer creates a summarizer. An empty provider name yields a
// disabled summarizer.
func NewSummarizer(config Config) (*Summarizer, error) {
	provider, err := NewProvider(config)
	if err != nil {
		return nil, err
	}
	return newSummarizer(provider, config), nil
}

// NewSummarizerWithProvider creates a summarizer around an existing provider
func NewSummarizerWithProvider(provider Provider, config Config) *Summarizer {
	return newSummarizer(provider, config)
}

func newSummarizer(provider Provider, config Config) *Summarizer {
	return &Summarizer{
		provider: provider,
		config:   config,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// IsEnabled reports whether a provider is configured
func (s *Summarizer) IsEnabled() bool {
	return s != nil && s.provider != nil
}

// ProviderName returns the provider name, or "" when disabled
func (s *Summarizer) ProviderName() string {
	if !s.IsEnabled() {
		return ""
	}
	return s.provider.Name()
}

// GenerateSummary summarizes a change report. It returns nil, nil when disabled.
func (s *Summarizer) GenerateSummary(ctx context.Context, req SummarizeRequest) (*model.LLMSummary, error) {
	if !s.IsEnabled() {
		return nil, nil
	}

	summary := &model.LLMSummary{
		Enabled:   true,
		Provider:  s.provider.Name(),
		Model:     s.config.Model,
		CreatedAt: s.now(),
	}

	if !s.provider.IsAvailable(ctx) {
		summary.Enabled = false
		summary.Warnings = append(summary.Warnings,
			fmt.Sprintf("LLM provider %s is not available", s.provider.Name()))
		return summary, nil
	}

	resp, err := s.provider.Summarize(ctx, req)
	if err != nil {
		summary.Warnings = append(summary.Warnings, fmt.Sprintf("Summary generation failed: %v", err))
		return summary, nil
	}

	summary.SummaryMD = resp.Summary
	if resp.Model != "" {
		summary.Model = resp.Model
	}
	if resp.TokensUsed > 0 {
		summary.Warnings = append(summary.Warnings, fmt.Sprintf("Tokens used: %d", resp.TokensUsed))
	}
	if s.config.StrictSources && len(resp.CitedURLs) > 0 {
		summary.Warnings = append(summary.Warnings,
			fmt.Sprintf("Verified %d citations against the source allowlist", len(resp.CitedURLs)))
	}

	return summary, nil
}

// RenderMarkdown renders a summary as a standalone Markdown document.
// Disabled or nil summaries render as "".
func RenderMarkdown(summary *model.LLMSummary) string {
	if summary == nil || !summary.Enabled {
		return ""
	}

	var b strings.Builder
	b.WriteString("# Change Summary\n\n")
	b.WriteString("> GENERATED CONTENT. Clause scores and regression flags are computed ")
	b.WriteString("independently of this text and are not affected by it.\n\n")

	fmt.Fprintf(&b, "- **Provider:** %s\n", summary.Provider)
	if summary.Model != "" {
		fmt.Fprintf(&b, "- **Model:** %s\n", summary.Model)
	}
	fmt.Fprintf(&b, "- **Generated:** %s\n\n", summary.CreatedAt.Format(time.RFC3339))

	if summary.SummaryMD == "" {
		b.WriteString("_No summary generated._\n")
	} else {
		b.WriteString(summary.SummaryMD)
		b.WriteString("\n")
	}

	if len(summary.Warnings) > 0 {
		b.WriteString("\n## Notes\n\n")
		for _, w := range summary.Warnings {
			fmt.Fprintf(&b, "- %s\n", w)
		}
	}

	return b.String()
}
