package cli

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/ppiankov/clausewatch/internal/cache"
	"github.com/ppiankov/clausewatch/internal/change"
	"github.com/ppiankov/clausewatch/internal/criteria"
	"github.com/ppiankov/clausewatch/internal/diff"
	"github.com/ppiankov/clausewatch/internal/fetch"
	"github.com/ppiankov/clausewatch/internal/llm"
	"github.com/ppiankov/clausewatch/internal/logging"
	"github.com/ppiankov/clausewatch/internal/model"
	"github.com/ppiankov/clausewatch/internal/pipeline"
	"github.com/ppiankov/clausewatch/internal/score"
	"github.com/ppiankov/clausewatch/internal/store"
	"github.com/ppiankov/clausewatch/internal/textstat"
	"github.com/ppiankov/clausewatch/internal/worker"
)

// services holds the collaborators commands are built from
type services struct {
	cfg      *model.Config
	logger   *zap.Logger
	criteria *criteria.Store
	scorer   *score.Live
	differ   *diff.Engine
	analyzer *change.Analyzer
}

// newServices loads configuration and builds the scoring stack. Any
// configuration problem surfaces here, before anything is scored.
func newServices() (*services, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	logger, err := logging.New(cfg.Log.Level, cfg.Log.Development)
	if err != nil {
		return nil, &model.ConfigError{Field: "log.level", Err: err}
	}

	crit := criteria.Default()
	if cfg.Scoring.CriteriaPath != "" {
		if crit, err = criteria.Load(cfg.Scoring.CriteriaPath); err != nil {
			return nil, err
		}
	}

	s := &services{
		cfg:      cfg,
		logger:   logger,
		criteria: criteria.NewStore(crit),
		differ:   diff.NewEngine(diff.WithAutoJunk(cfg.Diff.AutoJunk)),
	}

	scorer, err := score.FromCriteria(cfg.Weights(), crit, textstat.Analyzer{}, s.scorerOptions()...)
	if err != nil {
		return nil, err
	}
	s.scorer = score.NewLive(scorer)

	s.analyzer, err = change.NewAnalyzer(s.scorer, s.differ,
		change.WithThreshold(cfg.Scoring.RegressionThreshold),
		change.WithWorkers(cfg.Concurrency.ClauseWorkers))
	if err != nil {
		return nil, err
	}

	return s, nil
}

func (s *services) scorerOptions() []score.Option {
	return []score.Option{
		score.WithLogger(s.logger),
		score.WithSuggestionThreshold(s.cfg.Scoring.SuggestionThreshold),
	}
}

// watchCriteria reloads the criteria file into the live scorer until ctx
// is done. It is a no-op unless a criteria path is configured with watching on.
func (s *services) watchCriteria(ctx context.Context) {
	if s.cfg.Scoring.CriteriaPath == "" || !s.cfg.Scoring.WatchCriteria {
		return
	}

	w := criteria.NewWatcher(s.cfg.Scoring.CriteriaPath, s.criteria,
		criteria.WithWatchLogger(s.logger),
		criteria.WithOnReload(func(c *criteria.Criteria) {
			if err := s.scorer.Rebuild(s.cfg.Weights(), c, textstat.Analyzer{}, s.scorerOptions()...); err != nil {
				s.logger.Warn("scorer rebuild failed, keeping previous scorer", zap.Error(err))
			}
		}))

	go func() {
		if err := w.Run(ctx); err != nil {
			s.logger.Warn("criteria watcher stopped", zap.Error(err))
		}
	}()
}

// summarizer returns nil when no provider is configured
func (s *services) summarizer() (*llm.Summarizer, error) {
	if s.cfg.LLM.Provider == "" {
		return nil, nil
	}
	llmCfg := llm.ConfigFromModel(s.cfg.LLM, s.cfg.HTTP)
	llmCfg.Logger = s.logger
	summarizer, err := llm.NewSummarizer(llmCfg)
	if err != nil {
		return nil, &model.ConfigError{Field: "llm.provider", Err: err}
	}
	return summarizer, nil
}

func (s *services) fetcher() *fetch.Fetcher {
	opts := []fetch.Option{
		fetch.WithLogger(s.logger),
		fetch.WithLimiter(worker.NewLimiterFromConfig(s.cfg.RateLimiting)),
	}
	if s.cfg.HTTP.RespectRobots {
		opts = append(opts, fetch.WithRobots(fetch.NewRobotsChecker(s.cfg.HTTP.UserAgent, s.cfg.HTTP.Timeout, s.logger)))
	}
	if s.cfg.Cache.Enabled {
		c := cache.NewLayeredCache(s.cfg.Cache.MemoryTTL, s.cfg.Cache.Dir, s.cfg.Cache.DiskTTL)
		opts = append(opts, fetch.WithCache(c, s.cfg.Cache.DiskTTL))
	}
	return fetch.NewFetcher(s.cfg.HTTP, opts...)
}

func (s *services) openStore() (*store.SQLiteStore, error) {
	st, err := store.Open(s.cfg.Storage.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	return st, nil
}

// pipeline builds the ingestion pipeline; the caller closes the store
func (s *services) pipeline() (*pipeline.Pipeline, *store.SQLiteStore, error) {
	st, err := s.openStore()
	if err != nil {
		return nil, nil, err
	}

	opts := []pipeline.Option{
		pipeline.WithFetcher(s.fetcher()),
		pipeline.WithLogger(s.logger),
	}

	summarizer, err := s.summarizer()
	if err != nil {
		_ = st.Close()
		return nil, nil, err
	}
	if summarizer.IsEnabled() {
		opts = append(opts, pipeline.WithSummarizer(summarizer))
	}

	return pipeline.New(st, s.analyzer, opts...), st, nil
}

func (s *services) close() {
	_ = s.logger.Sync()
}
