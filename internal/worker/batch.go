package worker

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/ppiankov/clausewatch/internal/model"
)

// Ingester ingests one target
type Ingester interface {
	Ingest(ctx context.Context, target model.Target) (*model.IngestResult, error)
}

// IngestJob ingests a single target
type IngestJob struct {
	Target   model.Target
	Ingester Ingester
}

// Execute executes the ingest job
func (j *IngestJob) Execute(ctx context.Context) Result {
	if err := ctx.Err(); err != nil {
		return &TargetResult{Target: j.Target, Error: err}
	}
	result, err := j.Ingester.Ingest(ctx, j.Target)
	return &TargetResult{Target: j.Target, Result: result, Error: err}
}

// TargetResult is the outcome of one ingest job
type TargetResult struct {
	Target model.Target
	Result *model.IngestResult
	Error  error
}

// GetError returns the error from the ingest
func (r *TargetResult) GetError() error {
	return r.Error
}

// BatchProcessor ingests many targets concurrently
type BatchProcessor struct {
	ingester Ingester
	pool     *Pool
}

// NewBatchProcessor creates a new batch processor
func NewBatchProcessor(ingester Ingester, concurrency int) *BatchProcessor {
	return &BatchProcessor{
		ingester: ingester,
		pool:     NewPool(concurrency),
	}
}

// ProcessTargets ingests targets and returns one result per target, in order
func (b *BatchProcessor) ProcessTargets(ctx context.Context, targets []model.Target) []*TargetResult {
	jobs := make([]Job, len(targets))
	for i, target := range targets {
		jobs[i] = &IngestJob{Target: target, Ingester: b.ingester}
	}

	results := b.pool.Run(ctx, jobs)

	out := make([]*TargetResult, len(results))
	for i, r := range results {
		out[i] = r.(*TargetResult)
	}
	return out
}

// ProcessFile reads a manifest and ingests its targets
func (b *BatchProcessor) ProcessFile(ctx context.Context, path string) ([]*TargetResult, error) {
	targets, err := ReadManifest(path)
	if err != nil {
		return nil, err
	}
	return b.ProcessTargets(ctx, targets), nil
}

// Manifest lists the documents a batch run tracks
type Manifest struct {
	Targets []model.Target `yaml:"targets" validate:"required,min=1,dive"`
}

// ReadManifest loads and validates a YAML manifest. Duplicate targets
// (same company, document type and source) are dropped.
func ReadManifest(path string) ([]model.Target, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	return ParseManifest(data)
}

// ParseManifest parses and validates manifest YAML
func ParseManifest(data []byte) ([]model.Target, error) {
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, &model.InputError{Reason: "parse manifest", Err: err}
	}
	if len(m.Targets) == 0 {
		return nil, &model.InputError{Reason: "manifest lists no targets"}
	}
	return ValidateTargets(m.Targets)
}

// ValidateTargets checks each target's constraints and drops duplicates
// (same company, document type and source). Failures are *model.InputError.
func ValidateTargets(targets []model.Target) ([]model.Target, error) {
	v := validator.New(validator.WithRequiredStructEnabled())
	if err := v.Struct(Manifest{Targets: targets}); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return nil, &model.InputError{
				Reason: fmt.Sprintf("target field %s failed %q constraint", fe.Namespace(), fe.Tag()),
			}
		}
		return nil, &model.InputError{Reason: "validate targets", Err: err}
	}

	seen := make(map[string]bool)
	out := make([]model.Target, 0, len(targets))
	for _, t := range targets {
		key := t.Company + "\x00" + t.DocumentType + "\x00" + t.Source()
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, t)
	}
	return out, nil
}
