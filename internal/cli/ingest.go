package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ppiankov/clausewatch/internal/model"
	"github.com/ppiankov/clausewatch/internal/store"
	"github.com/ppiankov/clausewatch/internal/worker"
)

var (
	ingestCompany string
	ingestDomain  string
	ingestDocType string
	ingestURL     string
	ingestFile    string
	noCache       bool
)

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Store a new version of a document and assess the change",
	Long: `Ingest fetches a URL (or reads a file), extracts its text and stores
it as a new version when it differs from the latest stored version. The
change against the previous version is assessed and saved.

Example:
  clausewatch ingest --company Acme --doc-type terms_of_service --url https://acme.com/terms
  clausewatch ingest --company Acme --doc-type privacy_policy --file privacy.pdf`,
	Args: cobra.NoArgs,
	RunE: runIngest,
}

var historyCmd = &cobra.Command{
	Use:     "history",
	Short:   "List stored versions and assessments of a document",
	Example: `  clausewatch history --company Acme --doc-type terms_of_service`,
	Args:    cobra.NoArgs,
	RunE:    runHistory,
}

func init() {
	rootCmd.AddCommand(ingestCmd, historyCmd)

	ingestCmd.Flags().StringVar(&ingestCompany, "company", "", "company name")
	ingestCmd.Flags().StringVar(&ingestDomain, "domain", "", "company domain (defaults to the URL host)")
	ingestCmd.Flags().StringVar(&ingestDocType, "doc-type", "", "document type (privacy_policy, terms_of_service, eula, data_processing_agreement, acceptable_use_policy)")
	ingestCmd.Flags().StringVar(&ingestURL, "url", "", "document URL")
	ingestCmd.Flags().StringVar(&ingestFile, "file", "", "local document (HTML, PDF or text)")
	ingestCmd.Flags().BoolVar(&noCache, "no-cache", false, "disable cache (force fresh fetch)")
	_ = ingestCmd.MarkFlagRequired("company")
	_ = ingestCmd.MarkFlagRequired("doc-type")
	ingestCmd.MarkFlagsMutuallyExclusive("url", "file")
	ingestCmd.MarkFlagsOneRequired("url", "file")

	historyCmd.Flags().StringVar(&ingestCompany, "company", "", "company name")
	historyCmd.Flags().StringVar(&ingestDocType, "doc-type", "", "document type")
	_ = historyCmd.MarkFlagRequired("company")
	_ = historyCmd.MarkFlagRequired("doc-type")
}

func runIngest(cmd *cobra.Command, args []string) error {
	svc, err := newServices()
	if err != nil {
		return err
	}
	defer svc.close()
	if noCache {
		svc.cfg.Cache.Enabled = false
	}

	target := model.Target{
		Company:      ingestCompany,
		Domain:       ingestDomain,
		DocumentType: ingestDocType,
		URL:          ingestURL,
		Path:         ingestFile,
	}
	if _, err := worker.ValidateTargets([]model.Target{target}); err != nil {
		return err
	}

	p, st, err := svc.pipeline()
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()

	result, err := p.Ingest(commandContext(cmd), target)
	if err != nil {
		return fmt.Errorf("ingest failed: %w", err)
	}
	return writeJSON(cmd.OutOrStdout(), result)
}

// documentHistory is the history command's output
type documentHistory struct {
	Company     *model.Company            `json:"company"`
	Document    *model.Document           `json:"document"`
	Versions    []*model.Version          `json:"versions"`
	Analyses    []*model.VersionAnalysis  `json:"analyses"`
	Assessments []*model.StoredAssessment `json:"assessments"`
}

func runHistory(cmd *cobra.Command, args []string) error {
	svc, err := newServices()
	if err != nil {
		return err
	}
	defer svc.close()

	st, err := svc.openStore()
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()

	ctx := commandContext(cmd)

	company, err := st.CompanyBySlug(ctx, store.Slugify(ingestCompany))
	if errors.Is(err, model.ErrNotFound) {
		return &model.InputError{Reason: fmt.Sprintf("no company %q has been ingested", ingestCompany), Err: err}
	}
	if err != nil {
		return err
	}
	doc, err := st.FindDocument(ctx, company.ID, ingestDocType)
	if errors.Is(err, model.ErrNotFound) {
		return &model.InputError{Reason: fmt.Sprintf("%s has no %s", company.Name, ingestDocType), Err: err}
	}
	if err != nil {
		return err
	}

	versions, err := st.ListVersions(ctx, doc.ID)
	if err != nil {
		return err
	}
	analyses, err := st.ListVersionAnalyses(ctx, doc.ID)
	if err != nil {
		return err
	}
	assessments, err := st.ListAssessments(ctx, doc.ID)
	if err != nil {
		return err
	}

	return writeJSON(cmd.OutOrStdout(), documentHistory{
		Company:     company,
		Document:    doc,
		Versions:    versions,
		Analyses:    analyses,
		Assessments: assessments,
	})
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
