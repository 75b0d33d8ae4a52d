package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ppiankov/clausewatch/internal/metrics"
	"github.com/ppiankov/clausewatch/internal/model"
	"github.com/ppiankov/clausewatch/internal/worker"
)

var (
	concurrency  int
	batchTimeout time.Duration
	metricsAddr  string
)

// batchCmd represents the batch command
var batchCmd = &cobra.Command{
	Use:   "batch <manifest>",
	Short: "Ingest every document listed in a manifest",
	Long: `Batch ingests the targets of a YAML manifest concurrently, with
per-domain rate limiting and robots.txt compliance.

Manifest format:
  targets:
    - company: Acme
      document_type: terms_of_service
      url: https://acme.com/terms
    - company: Globex
      document_type: privacy_policy
      path: ./globex-privacy.pdf

Example:
  clausewatch batch manifest.yaml
  clausewatch batch manifest.yaml --concurrency 8 --metrics-addr :9090`,
	Args: cobra.ExactArgs(1),
	RunE: runBatch,
}

func init() {
	rootCmd.AddCommand(batchCmd)

	batchCmd.Flags().IntVar(&concurrency, "concurrency", 0, "number of concurrent workers (default from config)")
	batchCmd.Flags().DurationVar(&batchTimeout, "timeout", 30*time.Minute, "total timeout for batch processing")
	batchCmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address while running")
	batchCmd.Flags().BoolVar(&noCache, "no-cache", false, "disable cache (force fresh fetch)")
}

// batchSummary is the batch command's output
type batchSummary struct {
	Total       int                   `json:"total"`
	NewVersions int                   `json:"new_versions"`
	Unchanged   int                   `json:"unchanged"`
	Regressions int                   `json:"regressions"`
	Failures    int                   `json:"failures"`
	Results     []*batchTargetOutcome `json:"results"`
}

type batchTargetOutcome struct {
	Target model.Target        `json:"target"`
	Result *model.IngestResult `json:"result,omitempty"`
	Error  string              `json:"error,omitempty"`
}

func runBatch(cmd *cobra.Command, args []string) error {
	svc, err := newServices()
	if err != nil {
		return err
	}
	defer svc.close()
	if noCache {
		svc.cfg.Cache.Enabled = false
	}

	targets, err := worker.ReadManifest(args[0])
	if err != nil {
		return err
	}

	workers := concurrency
	if workers <= 0 {
		workers = svc.cfg.Concurrency.Workers
	}

	ctx, cancel := context.WithTimeout(commandContext(cmd), batchTimeout)
	defer cancel()

	svc.watchCriteria(ctx)

	addr := metricsAddr
	if addr == "" {
		addr = svc.cfg.Metrics.Addr
	}
	if addr != "" {
		go func() {
			if err := metrics.Serve(ctx, addr, svc.logger); err != nil {
				svc.logger.Warn("metrics server failed", zap.String("addr", addr), zap.Error(err))
			}
		}()
	}

	p, st, err := svc.pipeline()
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()

	fmt.Fprintf(os.Stderr, "⚙️  Ingesting %d targets with %d workers...\n", len(targets), workers)

	results := p.Batch(ctx, targets, workers)

	summary := summarizeBatch(results)
	if err := writeJSON(cmd.OutOrStdout(), summary); err != nil {
		return err
	}

	fmt.Fprintf(os.Stderr, "✓ %d new, %d unchanged, %d regressions, %d failures\n",
		summary.NewVersions, summary.Unchanged, summary.Regressions, summary.Failures)

	if summary.Failures > 0 {
		return fmt.Errorf("%d of %d targets failed", summary.Failures, summary.Total)
	}
	return nil
}

func summarizeBatch(results []*worker.TargetResult) batchSummary {
	summary := batchSummary{
		Total:   len(results),
		Results: make([]*batchTargetOutcome, 0, len(results)),
	}

	for _, r := range results {
		outcome := &batchTargetOutcome{Target: r.Target, Result: r.Result}
		switch {
		case r.Error != nil:
			summary.Failures++
			outcome.Error = r.Error.Error()
		case r.Result.Created:
			summary.NewVersions++
			if r.Result.Assessment != nil && r.Result.Assessment.IsRegression {
				summary.Regressions++
			}
		default:
			summary.Unchanged++
		}
		summary.Results = append(summary.Results, outcome)
	}
	return summary
}
