package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/ppiankov/clausewatch/internal/extract"
	"github.com/ppiankov/clausewatch/internal/llm"
	"github.com/ppiankov/clausewatch/internal/model"
)

var (
	clauseType  string
	splitScore  bool
	summaryOut  string
	compareType string
)

var diffCmd = &cobra.Command{
	Use:   "diff <old> <new>",
	Short: "Show character-level changes between two documents",
	Long: `Diff extracts text from two documents (HTML, PDF or plain text) and
reports additions, deletions and modifications with a similarity ratio.

Example:
  clausewatch diff terms-2023.html terms-2024.html`,
	Args: cobra.ExactArgs(2),
	RunE: runDiff,
}

var scoreCmd = &cobra.Command{
	Use:   "score <file>",
	Short: "Score a clause for user-facing risk",
	Long: `Score rates clause text on restrictiveness, clarity, fairness and
privacy impact, combined into a weighted total in [0,1] (higher is more
user-friendly), with red flags and suggestions.

Without --type the clause type is inferred from its wording. With --split
every clause of the document is scored separately.

Example:
  clausewatch score clause.txt --type termination
  clausewatch score privacy.html --split`,
	Args: cobra.ExactArgs(1),
	RunE: runScore,
}

var compareCmd = &cobra.Command{
	Use:   "compare <old> <new>",
	Short: "Assess whether a change increased risk",
	Long: `Compare diffs and scores two versions. With --type both files are
treated as one clause of that type; otherwise the documents are split into
clauses, aligned, and assessed clause by clause.

When an LLM provider is configured a plain-language summary can be written
with --summary-out. Summaries never affect scores.

Example:
  clausewatch compare old.txt new.txt --type termination
  clausewatch compare tos-v1.html tos-v2.html --summary-out summary.md`,
	Args: cobra.ExactArgs(2),
	RunE: runCompare,
}

func init() {
	rootCmd.AddCommand(diffCmd, scoreCmd, compareCmd)

	scoreCmd.Flags().StringVar(&clauseType, "type", "", "clause type (inferred when empty)")
	scoreCmd.Flags().BoolVar(&splitScore, "split", false, "split the document and score every clause")

	compareCmd.Flags().StringVar(&compareType, "type", "", "compare as a single clause of this type")
	compareCmd.Flags().StringVar(&summaryOut, "summary-out", "", "write an LLM change summary as Markdown (document mode only)")
}

func runDiff(cmd *cobra.Command, args []string) error {
	svc, err := newServices()
	if err != nil {
		return err
	}
	defer svc.close()

	oldText, newText, err := readPair(args[0], args[1])
	if err != nil {
		return err
	}

	return writeJSON(cmd.OutOrStdout(), svc.differ.DetectChanges(oldText, newText))
}

func runScore(cmd *cobra.Command, args []string) error {
	svc, err := newServices()
	if err != nil {
		return err
	}
	defer svc.close()

	text, err := extract.FromFile(args[0])
	if err != nil {
		return err
	}

	if splitScore {
		clauses := extract.SplitClauses(text)
		scored := make([]model.ScoredClause, 0, len(clauses))
		for _, c := range clauses {
			t := c.Type
			if clauseType != "" {
				t = clauseType
			}
			s, err := svc.scorer.ScoreClause(c.Text, t)
			if err != nil {
				return fmt.Errorf("clause %d: %w", c.Index, err)
			}
			scored = append(scored, model.ScoredClause{Index: c.Index, Text: c.Text, Score: s})
		}
		return writeJSON(cmd.OutOrStdout(), scored)
	}

	t := clauseType
	if t == "" {
		t = extract.ClassifyClause(text)
	}
	s, err := svc.scorer.ScoreClause(text, t)
	if err != nil {
		return err
	}
	return writeJSON(cmd.OutOrStdout(), s)
}

func runCompare(cmd *cobra.Command, args []string) error {
	svc, err := newServices()
	if err != nil {
		return err
	}
	defer svc.close()

	oldText, newText, err := readPair(args[0], args[1])
	if err != nil {
		return err
	}

	if compareType != "" {
		assessment, err := svc.analyzer.AssessChange(oldText, newText, compareType)
		if err != nil {
			return err
		}
		return writeJSON(cmd.OutOrStdout(), assessment)
	}

	ctx := commandContext(cmd)

	report, err := svc.analyzer.AssessDocument(ctx, oldText, newText)
	if err != nil {
		return err
	}

	if summaryOut != "" {
		summarizer, err := svc.summarizer()
		if err != nil {
			return err
		}
		if !summarizer.IsEnabled() {
			return &model.ConfigError{Field: "llm.provider", Reason: "--summary-out needs an LLM provider"}
		}
		summary, err := summarizer.GenerateSummary(ctx, llm.SummarizeRequest{Report: &report})
		if err != nil {
			return err
		}
		if err := os.WriteFile(summaryOut, []byte(llm.RenderMarkdown(summary)), 0o644); err != nil {
			return fmt.Errorf("write summary: %w", err)
		}
		fmt.Fprintf(os.Stderr, "✓ Summary written to %s\n", summaryOut)
	}

	return writeJSON(cmd.OutOrStdout(), report)
}

func readPair(oldPath, newPath string) (string, string, error) {
	oldText, err := extract.FromFile(oldPath)
	if err != nil {
		return "", "", err
	}
	newText, err := extract.FromFile(newPath)
	if err != nil {
		return "", "", err
	}
	return oldText, newText, nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
