// Package pipeline ingests legal documents: it fetches or reads a target,
// stores a new version when the text changed, scores that version, and
// assesses the change against the previous version.
package pipeline

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ppiankov/clausewatch/internal/extract"
	"github.com/ppiankov/clausewatch/internal/fetch"
	"github.com/ppiankov/clausewatch/internal/llm"
	"github.com/ppiankov/clausewatch/internal/metrics"
	"github.com/ppiankov/clausewatch/internal/model"
	"github.com/ppiankov/clausewatch/internal/worker"
)

// Store persists companies, documents, versions and assessments
type Store interface {
	EnsureCompany(ctx context.Context, name, domain string) (*model.Company, error)
	EnsureDocument(ctx context.Context, companyID, docType, sourceURL string) (*model.Document, error)
	AddVersion(ctx context.Context, documentID, content string) (*model.Version, bool, error)
	VersionByNumber(ctx context.Context, documentID string, number int) (*model.Version, error)
	SaveVersionAnalysis(ctx context.Context, a *model.VersionAnalysis) error
	SaveAssessment(ctx context.Context, a *model.StoredAssessment) error
}

// Fetcher retrieves a document over HTTP
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string) (*fetch.Result, error)
}

// DocumentAnalyzer scores a document version and compares two versions
type DocumentAnalyzer interface {
	AnalyzeVersion(ctx context.Context, text string) (model.VersionAnalysis, error)
	AssessDocument(ctx context.Context, oldText, newText string) (model.DocumentReport, error)
}

// Summarizer produces an optional plain-language summary of a change
type Summarizer interface {
	GenerateSummary(ctx context.Context, req llm.SummarizeRequest) (*model.LLMSummary, error)
}

// Pipeline orchestrates ingestion. It is safe for concurrent use when its
// collaborators are.
type Pipeline struct {
	store      Store
	fetcher    Fetcher
	analyzer   DocumentAnalyzer
	summarizer Summarizer
	logger     *zap.Logger
}

// Option configures a Pipeline
type Option func(*Pipeline)

// WithFetcher enables URL targets
func WithFetcher(f Fetcher) Option {
	return func(p *Pipeline) { p.fetcher = f }
}

// WithSummarizer attaches LLM summaries to stored assessments
func WithSummarizer(s Summarizer) Option {
	return func(p *Pipeline) { p.summarizer = s }
}

// WithLogger sets the logger
func WithLogger(l *zap.Logger) Option {
	return func(p *Pipeline) { p.logger = l }
}

// New creates a pipeline
func New(store Store, analyzer DocumentAnalyzer, opts ...Option) *Pipeline {
	p := &Pipeline{
		store:    store,
		analyzer: analyzer,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Ingest reads a target and stores its text as a new version when it differs
// from the latest one. Every new version, the first included, gets a stored
// analysis; later versions are also assessed against the version they replaced.
func (p *Pipeline) Ingest(ctx context.Context, target model.Target) (result *model.IngestResult, err error) {
	defer func() {
		switch {
		case err != nil:
			metrics.IngestsTotal.WithLabelValues(metrics.ResultError).Inc()
		case result.Created:
			metrics.IngestsTotal.WithLabelValues(metrics.ResultNewVersion).Inc()
		default:
			metrics.IngestsTotal.WithLabelValues(metrics.ResultUnchanged).Inc()
		}
	}()

	log := p.logger.With(
		zap.String("company", target.Company),
		zap.String("document_type", target.DocumentType),
		zap.String("source", target.Source()))

	text, err := p.readText(ctx, target)
	if err != nil {
		return nil, err
	}

	company, err := p.store.EnsureCompany(ctx, target.Company, companyDomain(target))
	if err != nil {
		return nil, fmt.Errorf("store company: %w", err)
	}
	doc, err := p.store.EnsureDocument(ctx, company.ID, target.DocumentType, target.URL)
	if err != nil {
		return nil, fmt.Errorf("store document: %w", err)
	}

	version, created, err := p.store.AddVersion(ctx, doc.ID, text)
	if err != nil {
		return nil, fmt.Errorf("store version: %w", err)
	}

	result = &model.IngestResult{
		Target:     target,
		DocumentID: doc.ID,
		Version:    version,
		Created:    created,
	}

	if !created {
		log.Info("document unchanged", zap.Int("version", version.VersionNumber))
		return result, nil
	}

	analysis, err := p.analyze(ctx, doc, version)
	if err != nil {
		return nil, err
	}
	result.Analysis = analysis

	if version.VersionNumber == 1 {
		log.Info("first version stored",
			zap.Int("words", version.WordCount),
			zap.Float64("mean_score", analysis.MeanScore))
		return result, nil
	}

	previous, err := p.store.VersionByNumber(ctx, doc.ID, version.VersionNumber-1)
	if err != nil {
		return nil, fmt.Errorf("load previous version: %w", err)
	}

	assessment, err := p.assess(ctx, target, doc, previous, version)
	if err != nil {
		return nil, err
	}
	result.Assessment = assessment

	log.Info("new version assessed",
		zap.Int("version", version.VersionNumber),
		zap.Float64("score_delta", assessment.ScoreDelta),
		zap.Bool("regression", assessment.IsRegression))

	return result, nil
}

func (p *Pipeline) analyze(ctx context.Context, doc *model.Document, version *model.Version) (*model.VersionAnalysis, error) {
	analysis, err := p.analyzer.AnalyzeVersion(ctx, version.Content)
	if err != nil {
		return nil, fmt.Errorf("analyze version %d: %w", version.VersionNumber, err)
	}
	analysis.DocumentID = doc.ID
	analysis.VersionID = version.ID

	if err := p.store.SaveVersionAnalysis(ctx, &analysis); err != nil {
		return nil, fmt.Errorf("store version analysis: %w", err)
	}
	return &analysis, nil
}

func (p *Pipeline) assess(ctx context.Context, target model.Target, doc *model.Document, previous, current *model.Version) (*model.StoredAssessment, error) {
	report, err := p.analyzer.AssessDocument(ctx, previous.Content, current.Content)
	if err != nil {
		return nil, fmt.Errorf("assess change: %w", err)
	}

	stored := &model.StoredAssessment{
		DocumentID:    doc.ID,
		FromVersionID: previous.ID,
		ToVersionID:   current.ID,
		ScoreDelta:    report.ScoreDelta,
		IsRegression:  report.IsRegression,
		Report:        &report,
	}

	// summaries are produced after scoring and never change it
	if p.summarizer != nil {
		req := llm.SummarizeRequest{
			Company:      target.Company,
			DocumentType: target.DocumentType,
			Report:       &report,
		}
		if doc.SourceURL != "" {
			req.SourceURLs = []string{doc.SourceURL}
		}
		summary, err := p.summarizer.GenerateSummary(ctx, req)
		if err != nil {
			p.logger.Warn("summary generation failed", zap.String("document_id", doc.ID), zap.Error(err))
		} else {
			stored.Summary = summary
		}
	}

	if err := p.store.SaveAssessment(ctx, stored); err != nil {
		return nil, fmt.Errorf("store assessment: %w", err)
	}
	if stored.IsRegression {
		metrics.DocumentRegressions.Inc()
	}
	return stored, nil
}

func (p *Pipeline) readText(ctx context.Context, target model.Target) (string, error) {
	if target.URL == "" {
		if target.Path == "" {
			return "", &model.InputError{Reason: "target has neither url nor path"}
		}
		text, err := extract.FromFile(target.Path)
		if err != nil {
			return "", fmt.Errorf("read %s: %w", target.Path, err)
		}
		return text, nil
	}

	if p.fetcher == nil {
		return "", &model.ConfigError{Field: "http", Reason: "URL target without a fetcher"}
	}

	start := time.Now()
	res, err := p.fetcher.Fetch(ctx, target.URL)
	metrics.ObserveSince(metrics.FetchDuration, start)
	if err != nil {
		return "", fmt.Errorf("fetch: %w", err)
	}

	contentType := res.ContentType
	if contentType == "" {
		contentType = extract.ContentTypeForPath(res.FinalURL)
	}
	text, err := extract.FromContentType(contentType, res.Body)
	if err != nil {
		return "", fmt.Errorf("extract %s: %w", target.URL, err)
	}
	return text, nil
}

// companyDomain prefers the declared domain and falls back to the URL host
func companyDomain(target model.Target) string {
	if target.Domain != "" {
		return target.Domain
	}
	if target.URL == "" {
		return ""
	}
	u, err := url.Parse(target.URL)
	if err != nil {
		return ""
	}
	return strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
}

// Batch ingests targets with bounded concurrency. Per-domain pacing is the
// fetcher's job. Failed targets are reported in their result, not returned.
func (p *Pipeline) Batch(ctx context.Context, targets []model.Target, concurrency int) []*worker.TargetResult {
	results := worker.NewBatchProcessor(p, concurrency).ProcessTargets(ctx, targets)

	var failed int
	for _, r := range results {
		if r.Error != nil {
			failed++
			p.logger.Warn("ingest failed",
				zap.String("company", r.Target.Company),
				zap.String("source", r.Target.Source()),
				zap.Error(r.Error))
		}
	}
	p.logger.Info("batch complete", zap.Int("targets", len(targets)), zap.Int("failed", failed))

	return results
}
