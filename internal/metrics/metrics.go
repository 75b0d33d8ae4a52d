// Package metrics exposes Prometheus instrumentation for scoring, diffing
// and ingestion.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/ppiankov/clausewatch/internal/model"
)

var (
	DiffDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "clausewatch_diff_duration_seconds",
		Help:    "Duration of document diff computations",
		Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
	})

	DocumentSimilarity = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "clausewatch_document_similarity",
		Help:    "Similarity ratio between compared document versions",
		Buckets: []float64{0, 0.5, 0.8, 0.9, 0.95, 0.99, 1},
	})

	ClausesScored = promauto.NewCounter(prometheus.CounterOpts{
		Name: "clausewatch_clauses_scored_total",
		Help: "Total clauses scored",
	})

	DegradedAssessments = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "clausewatch_degraded_assessments_total",
		Help: "Criterion assessments that fell back to a degraded score",
	}, []string{"criterion"})

	ClauseRegressions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "clausewatch_clause_regressions_total",
		Help: "Modified clauses flagged as regressions, by clause type",
	}, []string{"clause_type"})

	IngestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "clausewatch_ingests_total",
		Help: "Ingest runs by result (new_version, unchanged, error)",
	}, []string{"result"})

	FetchDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "clausewatch_fetch_duration_seconds",
		Help:    "Duration of document fetches, including cache hits",
		Buckets: prometheus.DefBuckets,
	})

	DocumentRegressions = promauto.NewCounter(prometheus.CounterOpts{
		Name: "clausewatch_document_regressions_total",
		Help: "Stored document versions assessed as regressions",
	})
)

// Ingest results
const (
	ResultNewVersion = "new_version"
	ResultUnchanged  = "unchanged"
	ResultError      = "error"
)

// RecordClauseScore counts one scored clause and each criterion it
// scored in degraded mode
func RecordClauseScore(s model.ClauseScore) {
	ClausesScored.Inc()
	for _, c := range s.Degraded {
		DegradedAssessments.WithLabelValues(string(c)).Inc()
	}
}

// ObserveSince records the time elapsed since start on h
func ObserveSince(h prometheus.Observer, start time.Time) {
	h.Observe(time.Since(start).Seconds())
}

// Serve exposes /metrics on addr until ctx is done
func Serve(ctx context.Context, addr string, logger *zap.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("metrics server listening", zap.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
