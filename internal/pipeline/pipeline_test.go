package pipeline

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppiankov/clausewatch/internal/change"
	"github.com/ppiankov/clausewatch/internal/criteria"
	"github.com/ppiankov/clausewatch/internal/fetch"
	"github.com/ppiankov/clausewatch/internal/llm"
	"github.com/ppiankov/clausewatch/internal/model"
	"github.com/ppiankov/clausewatch/internal/score"
	"github.com/ppiankov/clausewatch/internal/store"
	"github.com/ppiankov/clausewatch/internal/textstat"
)

const (
	lenientTerms     = "1. Termination\n\nUsers may cancel at any time."
	restrictiveTerms = "1. Termination\n\nUsers may cancel at any time, subject to a 30-day notice period and non-refundable fees."
)

type fakeSummarizer struct {
	mu       sync.Mutex
	requests []llm.SummarizeRequest
	err      error
}

func (f *fakeSummarizer) GenerateSummary(_ context.Context, req llm.SummarizeRequest) (*model.LLMSummary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	if f.err != nil {
		return nil, f.err
	}
	return &model.LLMSummary{Enabled: true, Provider: "fake", SummaryMD: "Cancellation now costs money."}, nil
}

func newTestPipeline(t *testing.T, opts ...Option) (*Pipeline, *store.SQLiteStore) {
	t.Helper()

	s, err := store.Open(filepath.Join(t.TempDir(), "clausewatch.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	scorer, err := score.FromCriteria(model.DefaultWeights(), criteria.Default(), textstat.Analyzer{})
	require.NoError(t, err)
	analyzer, err := change.NewAnalyzer(scorer, nil, change.WithWorkers(2))
	require.NoError(t, err)

	return New(s, analyzer, opts...), s
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestIngest_FileTargetLifecycle(t *testing.T) {
	summarizer := &fakeSummarizer{}
	p, s := newTestPipeline(t, WithSummarizer(summarizer))
	ctx := context.Background()

	path := filepath.Join(t.TempDir(), "terms.txt")
	target := model.Target{Company: "Acme Corp", DocumentType: model.DocTermsOfService, Path: path}

	writeFile(t, path, lenientTerms)
	first, err := p.Ingest(ctx, target)
	require.NoError(t, err)
	assert.True(t, first.Created)
	assert.Equal(t, 1, first.Version.VersionNumber)
	assert.Nil(t, first.Assessment, "first version has nothing to compare against")
	require.NotNil(t, first.Analysis)
	assert.Equal(t, first.Version.ID, first.Analysis.VersionID)

	again, err := p.Ingest(ctx, target)
	require.NoError(t, err)
	assert.False(t, again.Created)
	assert.Equal(t, first.Version.ID, again.Version.ID)
	assert.Nil(t, again.Assessment)
	assert.Nil(t, again.Analysis)

	writeFile(t, path, restrictiveTerms)
	changed, err := p.Ingest(ctx, target)
	require.NoError(t, err)
	require.True(t, changed.Created)
	assert.Equal(t, 2, changed.Version.VersionNumber)
	require.NotNil(t, changed.Analysis)
	assert.Less(t, changed.Analysis.MeanScore, first.Analysis.MeanScore)

	a := changed.Assessment
	require.NotNil(t, a)
	assert.NotEmpty(t, a.ID)
	assert.Equal(t, first.Version.ID, a.FromVersionID)
	assert.Equal(t, changed.Version.ID, a.ToVersionID)
	assert.True(t, a.IsRegression)
	assert.Less(t, a.ScoreDelta, 0.0)
	require.NotNil(t, a.Summary)
	assert.Equal(t, "fake", a.Summary.Provider)

	require.Len(t, summarizer.requests, 1)
	req := summarizer.requests[0]
	assert.Equal(t, "Acme Corp", req.Company)
	assert.Empty(t, req.SourceURLs, "file targets have no citable source")
	assert.Same(t, a.Report, req.Report)

	stored, err := s.ListAssessments(ctx, changed.DocumentID)
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, a.ID, stored[0].ID)
	assert.True(t, stored[0].IsRegression)

	analyses, err := s.ListVersionAnalyses(ctx, changed.DocumentID)
	require.NoError(t, err)
	require.Len(t, analyses, 2)
	assert.Equal(t, first.Version.ID, analyses[0].VersionID)
	assert.Equal(t, changed.Version.ID, analyses[1].VersionID)
}

func TestIngest_FirstVersionIsAnalyzed(t *testing.T) {
	p, s := newTestPipeline(t)
	ctx := context.Background()

	path := filepath.Join(t.TempDir(), "terms.txt")
	writeFile(t, path, restrictiveTerms)

	got, err := p.Ingest(ctx, model.Target{Company: "Acme", DocumentType: model.DocTermsOfService, Path: path})
	require.NoError(t, err)
	require.True(t, got.Created)
	require.Equal(t, 1, got.Version.VersionNumber)

	analyses, err := s.ListVersionAnalyses(ctx, got.DocumentID)
	require.NoError(t, err)
	require.Len(t, analyses, 1)

	row := analyses[0]
	assert.Equal(t, got.Version.ID, row.VersionID)
	assert.Equal(t, got.DocumentID, row.DocumentID)
	assert.NotEmpty(t, row.ID)
	assert.Positive(t, row.ClauseCount)
	assert.Equal(t, got.Analysis.MeanScore, row.MeanScore)
	assert.Greater(t, row.MeanScore, 0.0)
	assert.Len(t, row.ComponentScores, len(model.DefaultWeights()))
	assert.Contains(t, row.Flags, "non-refundable")
}

func TestIngest_URLTarget(t *testing.T) {
	var mu sync.Mutex
	body := "<html><body><main><h2>1. Termination</h2><p>Users may cancel at any time.</p></main></body></html>"

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		defer mu.Unlock()
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(body))
	}))
	defer srv.Close()

	summarizer := &fakeSummarizer{}
	p, s := newTestPipeline(t,
		WithFetcher(fetch.NewFetcher(model.DefaultConfig().HTTP)),
		WithSummarizer(summarizer))
	ctx := context.Background()

	target := model.Target{Company: "Acme", DocumentType: model.DocPrivacyPolicy, URL: srv.URL + "/privacy"}

	first, err := p.Ingest(ctx, target)
	require.NoError(t, err)
	assert.True(t, first.Created)
	assert.Contains(t, first.Version.Content, "Users may cancel at any time.")
	assert.NotContains(t, first.Version.Content, "<p>")

	mu.Lock()
	body = "<html><body><main><h2>1. Termination</h2><p>Users may cancel at any time, subject to non-refundable fees.</p></main></body></html>"
	mu.Unlock()

	second, err := p.Ingest(ctx, target)
	require.NoError(t, err)
	require.NotNil(t, second.Assessment)

	require.Len(t, summarizer.requests, 1)
	assert.Equal(t, []string{srv.URL + "/privacy"}, summarizer.requests[0].SourceURLs)

	company, err := s.CompanyBySlug(ctx, "acme")
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1", company.Domain)
}

func TestIngest_SummaryFailureStillStoresAssessment(t *testing.T) {
	p, s := newTestPipeline(t, WithSummarizer(&fakeSummarizer{err: errors.New("provider down")}))
	ctx := context.Background()

	path := filepath.Join(t.TempDir(), "eula.txt")
	target := model.Target{Company: "Acme", DocumentType: model.DocEULA, Path: path}

	writeFile(t, path, lenientTerms)
	_, err := p.Ingest(ctx, target)
	require.NoError(t, err)

	writeFile(t, path, restrictiveTerms)
	res, err := p.Ingest(ctx, target)
	require.NoError(t, err)
	require.NotNil(t, res.Assessment)
	assert.Nil(t, res.Assessment.Summary)

	stored, err := s.ListAssessments(ctx, res.DocumentID)
	require.NoError(t, err)
	assert.Len(t, stored, 1)
}

func TestIngest_Errors(t *testing.T) {
	p, _ := newTestPipeline(t)
	ctx := context.Background()

	_, err := p.Ingest(ctx, model.Target{Company: "Acme", DocumentType: model.DocEULA, URL: "https://example.com/eula"})
	assert.True(t, model.IsConfigError(err), "URL target needs a fetcher")

	_, err = p.Ingest(ctx, model.Target{Company: "Acme", DocumentType: model.DocEULA})
	assert.True(t, model.IsInputError(err))

	_, err = p.Ingest(ctx, model.Target{Company: "Acme", DocumentType: model.DocEULA, Path: filepath.Join(t.TempDir(), "missing.txt")})
	assert.Error(t, err)

	empty := filepath.Join(t.TempDir(), "empty.txt")
	writeFile(t, empty, "   \n")
	_, err = p.Ingest(ctx, model.Target{Company: "Acme", DocumentType: model.DocEULA, Path: empty})
	assert.ErrorIs(t, err, model.ErrEmptyText)
}

func TestBatch(t *testing.T) {
	p, _ := newTestPipeline(t)
	dir := t.TempDir()

	good := filepath.Join(dir, "terms.txt")
	writeFile(t, good, lenientTerms)

	targets := []model.Target{
		{Company: "Acme", DocumentType: model.DocTermsOfService, Path: good},
		{Company: "Globex", DocumentType: model.DocTermsOfService, Path: filepath.Join(dir, "missing.txt")},
		{Company: "Initech", DocumentType: model.DocTermsOfService, Path: good},
	}

	results := p.Batch(context.Background(), targets, 2)
	require.Len(t, results, 3)

	assert.NoError(t, results[0].Error)
	assert.Equal(t, "Acme", results[0].Target.Company)
	assert.True(t, results[0].Result.Created)

	assert.Error(t, results[1].Error)
	assert.Equal(t, "Globex", results[1].Target.Company)

	assert.NoError(t, results[2].Error)
	assert.NotEqual(t, results[0].Result.DocumentID, results[2].Result.DocumentID)
}

func TestCompanyDomain(t *testing.T) {
	tests := []struct {
		target model.Target
		want   string
	}{
		{model.Target{Domain: "acme.com", URL: "https://other.com/x"}, "acme.com"},
		{model.Target{URL: "https://WWW.Acme.com/terms"}, "acme.com"},
		{model.Target{URL: "https://legal.acme.com:8443/terms"}, "legal.acme.com"},
		{model.Target{Path: "terms.txt"}, ""},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, companyDomain(tt.target), tt.target.Source())
	}
}
