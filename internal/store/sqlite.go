// Package store persists companies, documents, document versions, version
// analyses and change assessments in SQLite.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/ppiankov/clausewatch/internal/fingerprint"
	"github.com/ppiankov/clausewatch/internal/model"
)

// SQLiteStore implements version storage on SQLite
type SQLiteStore struct {
	db  *sql.DB
	now func() time.Time
}

// Open opens or creates the database at dbPath and initializes the schema.
// Parent directories are created if they do not exist.
func Open(dbPath string) (*SQLiteStore, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// one connection serializes writers and keeps AddVersion atomic
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enable WAL: %w", err)
	}

	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	return &SQLiteStore{db: db, now: func() time.Time { return time.Now().UTC() }}, nil
}

func initSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS companies (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		slug TEXT NOT NULL UNIQUE,
		domain TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMP NOT NULL
	);

	CREATE TABLE IF NOT EXISTS documents (
		id TEXT PRIMARY KEY,
		company_id TEXT NOT NULL,
		document_type TEXT NOT NULL,
		source_url TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMP NOT NULL,
		UNIQUE (company_id, document_type),
		FOREIGN KEY (company_id) REFERENCES companies(id) ON DELETE CASCADE
	);

	CREATE TABLE IF NOT EXISTS document_versions (
		id TEXT PRIMARY KEY,
		document_id TEXT NOT NULL,
		version_number INTEGER NOT NULL,
		content TEXT NOT NULL,
		content_hash TEXT NOT NULL,
		word_count INTEGER NOT NULL,
		character_count INTEGER NOT NULL,
		extracted_at TIMESTAMP NOT NULL,
		UNIQUE (document_id, version_number),
		FOREIGN KEY (document_id) REFERENCES documents(id) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_versions_hash ON document_versions(document_id, content_hash);

	CREATE TABLE IF NOT EXISTS change_assessments (
		id TEXT PRIMARY KEY,
		document_id TEXT NOT NULL,
		from_version_id TEXT NOT NULL,
		to_version_id TEXT NOT NULL,
		score_delta REAL NOT NULL,
		is_regression INTEGER NOT NULL,
		report TEXT,
		summary TEXT,
		created_at TIMESTAMP NOT NULL,
		FOREIGN KEY (document_id) REFERENCES documents(id) ON DELETE CASCADE,
		FOREIGN KEY (from_version_id) REFERENCES document_versions(id),
		FOREIGN KEY (to_version_id) REFERENCES document_versions(id)
	);

	CREATE INDEX IF NOT EXISTS idx_assessments_document ON change_assessments(document_id, created_at);

	CREATE TABLE IF NOT EXISTS version_analyses (
		id TEXT PRIMARY KEY,
		document_id TEXT NOT NULL,
		version_id TEXT NOT NULL UNIQUE,
		clause_count INTEGER NOT NULL,
		mean_score REAL NOT NULL,
		component_scores TEXT NOT NULL,
		degraded TEXT NOT NULL,
		flags TEXT NOT NULL,
		created_at TIMESTAMP NOT NULL,
		FOREIGN KEY (document_id) REFERENCES documents(id) ON DELETE CASCADE,
		FOREIGN KEY (version_id) REFERENCES document_versions(id) ON DELETE CASCADE
	);
	`
	_, err := db.Exec(schema)
	return err
}

// Close closes the database
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// EnsureCompany returns the company with name's slug, creating it if needed.
// An existing company keeps its stored domain unless it had none.
func (s *SQLiteStore) EnsureCompany(ctx context.Context, name, domain string) (*model.Company, error) {
	slug := Slugify(name)
	if slug == "" {
		return nil, &model.InputError{Reason: fmt.Sprintf("company name %q has no usable characters", name)}
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO companies (id, name, slug, domain, created_at) VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(slug) DO UPDATE SET domain = excluded.domain WHERE companies.domain = ''`,
		uuid.NewString(), strings.TrimSpace(name), slug, domain, s.now(),
	)
	if err != nil {
		return nil, fmt.Errorf("upsert company: %w", err)
	}

	return s.CompanyBySlug(ctx, slug)
}

// CompanyBySlug returns a company by slug
func (s *SQLiteStore) CompanyBySlug(ctx context.Context, slug string) (*model.Company, error) {
	var c model.Company
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, slug, domain, created_at FROM companies WHERE slug = ?`, slug,
	).Scan(&c.ID, &c.Name, &c.Slug, &c.Domain, &c.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("company %s: %w", slug, model.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get company: %w", err)
	}
	return &c, nil
}

// EnsureDocument returns the company's document of docType, creating it if needed.
// A non-empty sourceURL replaces the stored one.
func (s *SQLiteStore) EnsureDocument(ctx context.Context, companyID, docType, sourceURL string) (*model.Document, error) {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO documents (id, company_id, document_type, source_url, created_at) VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(company_id, document_type) DO UPDATE SET source_url = excluded.source_url
		 WHERE excluded.source_url != ''`,
		uuid.NewString(), companyID, docType, sourceURL, s.now(),
	)
	if err != nil {
		return nil, fmt.Errorf("upsert document: %w", err)
	}

	return s.FindDocument(ctx, companyID, docType)
}

// FindDocument returns the company's document of docType
func (s *SQLiteStore) FindDocument(ctx context.Context, companyID, docType string) (*model.Document, error) {
	var d model.Document
	err := s.db.QueryRowContext(ctx,
		`SELECT id, company_id, document_type, source_url, created_at
		 FROM documents WHERE company_id = ? AND document_type = ?`, companyID, docType,
	).Scan(&d.ID, &d.CompanyID, &d.DocumentType, &d.SourceURL, &d.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("document %s: %w", docType, model.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get document: %w", err)
	}
	return &d, nil
}

// AddVersion stores content as the document's next version. When content
// matches the latest version byte for byte, that version is returned and
// created is false.
func (s *SQLiteStore) AddVersion(ctx context.Context, documentID, content string) (v *model.Version, created bool, err error) {
	fp := fingerprint.ComputeAt(content, s.now())

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, false, fmt.Errorf("begin: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	latest, err := scanVersion(tx.QueryRowContext(ctx, latestVersionQuery, documentID))
	switch {
	case errors.Is(err, sql.ErrNoRows):
		latest = nil
	case err != nil:
		return nil, false, fmt.Errorf("latest version: %w", err)
	}

	if latest != nil && latest.ContentHash == fp.ContentHash {
		return latest, false, tx.Commit()
	}

	v = &model.Version{
		ID:             uuid.NewString(),
		DocumentID:     documentID,
		VersionNumber:  1,
		Content:        content,
		ContentHash:    fp.ContentHash,
		WordCount:      fingerprint.WordCount(content),
		CharacterCount: fp.Length,
		ExtractedAt:    fp.CreatedAt,
	}
	if latest != nil {
		v.VersionNumber = latest.VersionNumber + 1
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO document_versions
		 (id, document_id, version_number, content, content_hash, word_count, character_count, extracted_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		v.ID, v.DocumentID, v.VersionNumber, v.Content, v.ContentHash, v.WordCount, v.CharacterCount, v.ExtractedAt,
	)
	if err != nil {
		return nil, false, fmt.Errorf("insert version: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return nil, false, fmt.Errorf("commit: %w", err)
	}
	return v, true, nil
}

const versionColumns = `id, document_id, version_number, content, content_hash, word_count, character_count, extracted_at`

const latestVersionQuery = `SELECT ` + versionColumns + ` FROM document_versions
	WHERE document_id = ? ORDER BY version_number DESC LIMIT 1`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanVersion(row rowScanner) (*model.Version, error) {
	var v model.Version
	err := row.Scan(&v.ID, &v.DocumentID, &v.VersionNumber, &v.Content, &v.ContentHash,
		&v.WordCount, &v.CharacterCount, &v.ExtractedAt)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

// LatestVersion returns the highest numbered version of a document
func (s *SQLiteStore) LatestVersion(ctx context.Context, documentID string) (*model.Version, error) {
	v, err := scanVersion(s.db.QueryRowContext(ctx, latestVersionQuery, documentID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("latest version of %s: %w", documentID, model.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("latest version: %w", err)
	}
	return v, nil
}

// GetVersion returns a version by ID
func (s *SQLiteStore) GetVersion(ctx context.Context, id string) (*model.Version, error) {
	v, err := scanVersion(s.db.QueryRowContext(ctx,
		`SELECT `+versionColumns+` FROM document_versions WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("version %s: %w", id, model.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get version: %w", err)
	}
	return v, nil
}

// VersionByNumber returns a document's version with the given number
func (s *SQLiteStore) VersionByNumber(ctx context.Context, documentID string, number int) (*model.Version, error) {
	v, err := scanVersion(s.db.QueryRowContext(ctx,
		`SELECT `+versionColumns+` FROM document_versions
		 WHERE document_id = ? AND version_number = ?`, documentID, number))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("version %d of %s: %w", number, documentID, model.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get version: %w", err)
	}
	return v, nil
}

// ListVersions returns all versions of a document, oldest first
func (s *SQLiteStore) ListVersions(ctx context.Context, documentID string) ([]*model.Version, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+versionColumns+` FROM document_versions
		 WHERE document_id = ? ORDER BY version_number ASC`, documentID)
	if err != nil {
		return nil, fmt.Errorf("list versions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var versions []*model.Version
	for rows.Next() {
		v, err := scanVersion(rows)
		if err != nil {
			return nil, fmt.Errorf("scan version: %w", err)
		}
		versions = append(versions, v)
	}
	return versions, rows.Err()
}

// SaveAssessment persists an assessment, assigning its ID and creation time
// when unset
func (s *SQLiteStore) SaveAssessment(ctx context.Context, a *model.StoredAssessment) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = s.now()
	}

	report, err := nullableJSON(a.Report)
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}
	summary, err := nullableJSON(a.Summary)
	if err != nil {
		return fmt.Errorf("marshal summary: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO change_assessments
		 (id, document_id, from_version_id, to_version_id, score_delta, is_regression, report, summary, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.DocumentID, a.FromVersionID, a.ToVersionID, a.ScoreDelta, a.IsRegression, report, summary, a.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert assessment: %w", err)
	}
	return nil
}

// ListAssessments returns a document's assessments, oldest first
func (s *SQLiteStore) ListAssessments(ctx context.Context, documentID string) ([]*model.StoredAssessment, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, document_id, from_version_id, to_version_id, score_delta, is_regression, report, summary, created_at
		 FROM change_assessments WHERE document_id = ? ORDER BY created_at ASC, rowid ASC`, documentID)
	if err != nil {
		return nil, fmt.Errorf("list assessments: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []*model.StoredAssessment
	for rows.Next() {
		var a model.StoredAssessment
		var report, summary sql.NullString
		if err := rows.Scan(&a.ID, &a.DocumentID, &a.FromVersionID, &a.ToVersionID,
			&a.ScoreDelta, &a.IsRegression, &report, &summary, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan assessment: %w", err)
		}
		if report.Valid {
			a.Report = &model.DocumentReport{}
			if err := json.Unmarshal([]byte(report.String), a.Report); err != nil {
				return nil, fmt.Errorf("unmarshal report: %w", err)
			}
		}
		if summary.Valid {
			a.Summary = &model.LLMSummary{}
			if err := json.Unmarshal([]byte(summary.String), a.Summary); err != nil {
				return nil, fmt.Errorf("unmarshal summary: %w", err)
			}
		}
		out = append(out, &a)
	}
	return out, rows.Err()
}

// SaveVersionAnalysis persists the analysis of one version, assigning its ID
// and creation time when unset. A version holds at most one analysis.
func (s *SQLiteStore) SaveVersionAnalysis(ctx context.Context, a *model.VersionAnalysis) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = s.now()
	}

	components, err := json.Marshal(a.ComponentScores)
	if err != nil {
		return fmt.Errorf("marshal component scores: %w", err)
	}
	degraded, err := json.Marshal(a.Degraded)
	if err != nil {
		return fmt.Errorf("marshal degraded criteria: %w", err)
	}
	flags, err := json.Marshal(a.Flags)
	if err != nil {
		return fmt.Errorf("marshal flags: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO version_analyses
		 (id, document_id, version_id, clause_count, mean_score, component_scores, degraded, flags, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.DocumentID, a.VersionID, a.ClauseCount, a.MeanScore,
		string(components), string(degraded), string(flags), a.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert version analysis: %w", err)
	}
	return nil
}

// ListVersionAnalyses returns a document's version analyses in version order
func (s *SQLiteStore) ListVersionAnalyses(ctx context.Context, documentID string) ([]*model.VersionAnalysis, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT a.id, a.document_id, a.version_id, a.clause_count, a.mean_score,
		        a.component_scores, a.degraded, a.flags, a.created_at
		 FROM version_analyses a JOIN document_versions v ON v.id = a.version_id
		 WHERE a.document_id = ? ORDER BY v.version_number ASC`, documentID)
	if err != nil {
		return nil, fmt.Errorf("list version analyses: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []*model.VersionAnalysis
	for rows.Next() {
		var a model.VersionAnalysis
		var components, degraded, flags string
		if err := rows.Scan(&a.ID, &a.DocumentID, &a.VersionID, &a.ClauseCount, &a.MeanScore,
			&components, &degraded, &flags, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan version analysis: %w", err)
		}
		if err := json.Unmarshal([]byte(components), &a.ComponentScores); err != nil {
			return nil, fmt.Errorf("unmarshal component scores: %w", err)
		}
		if err := json.Unmarshal([]byte(degraded), &a.Degraded); err != nil {
			return nil, fmt.Errorf("unmarshal degraded criteria: %w", err)
		}
		if err := json.Unmarshal([]byte(flags), &a.Flags); err != nil {
			return nil, fmt.Errorf("unmarshal flags: %w", err)
		}
		out = append(out, &a)
	}
	return out, rows.Err()
}

func nullableJSON[T any](v *T) (sql.NullString, error) {
	if v == nil {
		return sql.NullString{}, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return sql.NullString{}, err
	}
	return sql.NullString{String: string(data), Valid: true}, nil
}

// Slugify lowercases name and joins its letter and digit runs with hyphens
func Slugify(name string) string {
	var b strings.Builder
	pendingDash := false
	for _, r := range strings.ToLower(name) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			if pendingDash && b.Len() > 0 {
				b.WriteByte('-')
			}
			pendingDash = false
			b.WriteRune(r)
			continue
		}
		pendingDash = true
	}
	return b.String()
}
