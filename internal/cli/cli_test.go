package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppiankov/clausewatch/internal/model"
	"github.com/ppiankov/clausewatch/internal/worker"
)

const (
	lenientClause     = "Users may cancel at any time."
	restrictiveClause = "Users may cancel at any time, subject to a 30-day notice period and non-refundable fees."
)

// testEnv writes a config file that keeps every side effect inside a temp dir
func testEnv(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	cfg := "log:\n  level: error\n" +
		"storage:\n  database_path: " + filepath.Join(dir, "clausewatch.db") + "\n" +
		"cache:\n  enabled: false\n" +
		"http:\n  respect_robots: false\n"
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(cfg), 0o644))
	return path
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()

	clauseType, splitScore, summaryOut, compareType = "", false, "", ""
	ingestCompany, ingestDomain, ingestDocType, ingestURL, ingestFile = "", "", "", "", ""
	noCache, verbose, initPath, metricsAddr, concurrency = false, false, "", "", 0

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(io.Discard)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func writeTemp(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestVersionCommand(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Equal(t, "clausewatch "+Version+"\n", out)
}

func TestScoreCommand(t *testing.T) {
	cfg := testEnv(t)
	file := writeTemp(t, "clause.txt", restrictiveClause)

	out, err := execute(t, "--config", cfg, "score", file, "--type", model.ClauseTermination)
	require.NoError(t, err)

	var got model.ClauseScore
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, model.ClauseTermination, got.ClauseType)
	assert.GreaterOrEqual(t, got.TotalScore, 0.0)
	assert.LessOrEqual(t, got.TotalScore, 1.0)
	assert.Contains(t, got.Flags, "non-refundable")
}

func TestScoreCommand_Split(t *testing.T) {
	cfg := testEnv(t)
	file := writeTemp(t, "terms.txt", "1. Termination\n\n"+lenientClause+"\n\n2. Fees\n\nAll fees are non-refundable.")

	out, err := execute(t, "--config", cfg, "score", file, "--split")
	require.NoError(t, err)

	var got []model.ScoredClause
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	require.Len(t, got, 2)
	assert.Equal(t, model.ClauseTermination, got[0].Score.ClauseType)
	assert.Equal(t, model.ClausePayment, got[1].Score.ClauseType)
}

func TestDiffCommand(t *testing.T) {
	cfg := testEnv(t)
	oldFile := writeTemp(t, "old.txt", lenientClause)
	newFile := writeTemp(t, "new.txt", restrictiveClause)

	out, err := execute(t, "--config", cfg, "diff", oldFile, newFile)
	require.NoError(t, err)

	var got model.ChangeSet
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Greater(t, got.Similarity, 0.0)
	assert.Less(t, got.Similarity, 1.0)
}

func TestCompareCommand(t *testing.T) {
	cfg := testEnv(t)
	oldFile := writeTemp(t, "old.txt", lenientClause)
	newFile := writeTemp(t, "new.txt", restrictiveClause)

	out, err := execute(t, "--config", cfg, "compare", oldFile, newFile, "--type", model.ClauseTermination)
	require.NoError(t, err)

	var clause model.ChangeAssessment
	require.NoError(t, json.Unmarshal([]byte(out), &clause))
	assert.True(t, clause.IsRegression)
	assert.Less(t, clause.ScoreDelta, 0.0)

	out, err = execute(t, "--config", cfg, "compare", oldFile, newFile)
	require.NoError(t, err)

	var report model.DocumentReport
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	assert.Equal(t, 1, report.OldClauseCount)
	assert.Len(t, report.Modified, 1)
	assert.True(t, report.IsRegression)
}

func TestCompareCommand_SummaryNeedsProvider(t *testing.T) {
	cfg := testEnv(t)
	oldFile := writeTemp(t, "old.txt", lenientClause)
	newFile := writeTemp(t, "new.txt", restrictiveClause)

	_, err := execute(t, "--config", cfg, "compare", oldFile, newFile, "--summary-out", filepath.Join(t.TempDir(), "s.md"))
	assert.True(t, model.IsConfigError(err))
}

func TestIngestAndHistory(t *testing.T) {
	cfg := testEnv(t)
	doc := writeTemp(t, "terms.txt", "1. Termination\n\n"+lenientClause)

	_, err := execute(t, "--config", cfg, "ingest", "--company", "Acme Corp", "--doc-type", model.DocTermsOfService, "--file", doc)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(doc, []byte("1. Termination\n\n"+restrictiveClause), 0o644))
	out, err := execute(t, "--config", cfg, "ingest", "--company", "Acme Corp", "--doc-type", model.DocTermsOfService, "--file", doc)
	require.NoError(t, err)

	var result model.IngestResult
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	assert.True(t, result.Created)
	assert.Equal(t, 2, result.Version.VersionNumber)
	require.NotNil(t, result.Assessment)
	assert.True(t, result.Assessment.IsRegression)

	out, err = execute(t, "--config", cfg, "history", "--company", "acme corp", "--doc-type", model.DocTermsOfService)
	require.NoError(t, err)

	var history documentHistory
	require.NoError(t, json.Unmarshal([]byte(out), &history))
	assert.Equal(t, "acme-corp", history.Company.Slug)
	assert.Len(t, history.Versions, 2)
	require.Len(t, history.Analyses, 2)
	assert.Equal(t, history.Versions[0].ID, history.Analyses[0].VersionID)
	assert.Len(t, history.Assessments, 1)

	_, err = execute(t, "--config", cfg, "history", "--company", "Globex", "--doc-type", model.DocTermsOfService)
	assert.True(t, model.IsInputError(err))
}

func TestIngestCommand_InvalidTarget(t *testing.T) {
	cfg := testEnv(t)
	doc := writeTemp(t, "terms.txt", lenientClause)

	_, err := execute(t, "--config", cfg, "ingest", "--company", "Acme", "--doc-type", "cookie_banner", "--file", doc)
	assert.True(t, model.IsInputError(err))
}

func TestBatchCommand(t *testing.T) {
	cfg := testEnv(t)
	doc := writeTemp(t, "terms.txt", lenientClause)
	manifest := writeTemp(t, "manifest.yaml", "targets:\n"+
		"  - company: Acme\n    document_type: terms_of_service\n    path: "+doc+"\n"+
		"  - company: Globex\n    document_type: eula\n    path: "+filepath.Join(t.TempDir(), "missing.txt")+"\n")

	out, err := execute(t, "--config", cfg, "batch", manifest, "--concurrency", "2")
	require.Error(t, err, "a failed target fails the run")

	var summary batchSummary
	require.NoError(t, json.Unmarshal([]byte(out), &summary))
	assert.Equal(t, 2, summary.Total)
	assert.Equal(t, 1, summary.NewVersions)
	assert.Equal(t, 1, summary.Failures)
	assert.NotEmpty(t, summary.Results[1].Error)
}

func TestSummarizeBatch(t *testing.T) {
	results := []*worker.TargetResult{
		{Result: &model.IngestResult{Created: true, Assessment: &model.StoredAssessment{IsRegression: true}}},
		{Result: &model.IngestResult{Created: true}},
		{Result: &model.IngestResult{Created: false}},
		{Error: errors.New("fetch: unexpected status: 404 404 Not Found")},
	}

	got := summarizeBatch(results)
	assert.Equal(t, 4, got.Total)
	assert.Equal(t, 2, got.NewVersions)
	assert.Equal(t, 1, got.Unchanged)
	assert.Equal(t, 1, got.Regressions)
	assert.Equal(t, 1, got.Failures)
	assert.Equal(t, "fetch: unexpected status: 404 404 Not Found", got.Results[3].Error)
}

func TestInvalidConfigIsConfigError(t *testing.T) {
	cfg := writeTemp(t, "config.yaml", "log:\n  level: error\nscoring:\n  weights:\n    restrictiveness: 0.9\n")
	file := writeTemp(t, "clause.txt", lenientClause)

	_, err := execute(t, "--config", cfg, "score", file)
	assert.True(t, model.IsConfigError(err))
}

func TestConfigInit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	_, err := execute(t, "config", "init", "--path", path)
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "regression_threshold: 0.05")
	assert.NotContains(t, string(data), "api_key:")

	_, err = execute(t, "config", "init", "--path", path)
	assert.Error(t, err, "existing config must not be overwritten")
}

func TestConfigShow(t *testing.T) {
	cfg := testEnv(t)

	out, err := execute(t, "--config", cfg, "config", "show")
	require.NoError(t, err)
	assert.Contains(t, out, "level: error")
	assert.Contains(t, out, "respect_robots: false")
}
