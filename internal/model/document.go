package model

import "time"

// Clause types recognised by the clause splitter. Unknown types are accepted
// everywhere and simply match no type-specific fairness rules.
const (
	ClauseGeneral           = "general"
	ClauseTermination       = "termination"
	ClausePayment           = "payment"
	ClausePrivacy           = "privacy"
	ClauseLiability         = "liability"
	ClauseDisputeResolution = "dispute_resolution"
	ClauseLicense           = "license"
	ClauseModification      = "modification"
)

// Document types tracked per company
const (
	DocPrivacyPolicy       = "privacy_policy"
	DocTermsOfService      = "terms_of_service"
	DocEULA                = "eula"
	DocDataProcessing      = "data_processing_agreement"
	DocAcceptableUsePolicy = "acceptable_use_policy"
)

// Clause is a self-contained segment of a legal document
type Clause struct {
	Index int    `json:"index"`
	Type  string `json:"type"`
	Text  string `json:"text"`
}

// Company owns one or more tracked documents
type Company struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Slug      string    `json:"slug"`
	Domain    string    `json:"domain"`
	CreatedAt time.Time `json:"created_at"`
}

// Document is one legal document of a company, tracked across versions
type Document struct {
	ID           string    `json:"id"`
	CompanyID    string    `json:"company_id"`
	DocumentType string    `json:"document_type"`
	SourceURL    string    `json:"source_url,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// Version is one stored snapshot of a document's extracted text
type Version struct {
	ID             string    `json:"id"`
	DocumentID     string    `json:"document_id"`
	VersionNumber  int       `json:"version_number"`
	Content        string    `json:"-"`
	ContentHash    string    `json:"content_hash"`
	WordCount      int       `json:"word_count"`
	CharacterCount int       `json:"character_count"`
	ExtractedAt    time.Time `json:"extracted_at"`
}

// StoredAssessment is a persisted comparison between two versions
type StoredAssessment struct {
	ID            string          `json:"id"`
	DocumentID    string          `json:"document_id"`
	FromVersionID string          `json:"from_version_id"`
	ToVersionID   string          `json:"to_version_id"`
	ScoreDelta    float64         `json:"score_delta"`
	IsRegression  bool            `json:"is_regression"`
	Report        *DocumentReport `json:"report,omitempty"`
	Summary       *LLMSummary     `json:"summary,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
}

// VersionAnalysis is the clause scoring of a single stored version, kept so
// every version has a baseline whether or not it has a predecessor
type VersionAnalysis struct {
	ID              string                `json:"id"`
	DocumentID      string                `json:"document_id"`
	VersionID       string                `json:"version_id"`
	ClauseCount     int                   `json:"clause_count"`
	MeanScore       float64               `json:"mean_score"`
	ComponentScores map[Criterion]float64 `json:"component_scores"` // per-criterion mean over clauses
	Degraded        []Criterion           `json:"degraded,omitempty"`
	Flags           []string              `json:"flags,omitempty"`
	CreatedAt       time.Time             `json:"created_at"`
}

// Target describes one document to ingest, either from a URL or a local file
type Target struct {
	Company      string `yaml:"company" json:"company" validate:"required"`
	Domain       string `yaml:"domain" json:"domain,omitempty" validate:"omitempty,hostname"`
	DocumentType string `yaml:"document_type" json:"document_type" validate:"required,oneof=privacy_policy terms_of_service eula data_processing_agreement acceptable_use_policy"`
	URL          string `yaml:"url" json:"url,omitempty" validate:"omitempty,http_url"`
	Path         string `yaml:"path" json:"path,omitempty" validate:"required_without=URL"`
}

// Source returns the URL or path the target is read from
func (t Target) Source() string {
	if t.URL != "" {
		return t.URL
	}
	return t.Path
}

// IngestResult reports what one ingest run stored and found
type IngestResult struct {
	Target     Target            `json:"target"`
	DocumentID string            `json:"document_id"`
	Version    *Version          `json:"version"`
	Created    bool              `json:"created"` // false when content matched the latest version
	Analysis   *VersionAnalysis  `json:"analysis,omitempty"`
	Assessment *StoredAssessment `json:"assessment,omitempty"`
}

// LLMSummary contains an optional plain-language summary of a document change.
// It never affects scoring.
type LLMSummary struct {
	Enabled   bool      `json:"enabled"` // false when the provider was unreachable
	Provider  string    `json:"provider"`
	Model     string    `json:"model,omitempty"`
	SummaryMD string    `json:"summary_md"`
	Warnings  []string  `json:"warnings,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
