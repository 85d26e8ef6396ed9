// Package pipeline runs the three generation stages in fixed order:
// extraction, test-case generation, dataset generation. Progress is encoded
// entirely in which artifact files exist and what they contain; each stage
// checks its own "already complete" predicate at entry, so re-running after
// a crash regenerates only what is missing.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"evalgen/internal/config"
	"evalgen/internal/contract"
	"evalgen/internal/gateway"
	"evalgen/internal/store"
)

// Summary reports the record counts of a completed run.
type Summary struct {
	UseCases  int
	Policies  int
	TestCases int
	Examples  int
	OutDir    string
}

// Runner orchestrates the pipeline over one output directory.
type Runner struct {
	cfg     *config.Config
	gen     gateway.Generator
	store   *store.Store
	log     *zap.Logger
	repairs *RepairLog
}

// NewRunner creates a pipeline runner.
func NewRunner(cfg *config.Config, gen gateway.Generator, st *store.Store, log *zap.Logger) *Runner {
	if log == nil {
		log = zap.NewNop()
	}
	return &Runner{
		cfg:     cfg,
		gen:     gen,
		store:   st,
		log:     log,
		repairs: NewRepairLog(log),
	}
}

// Repairs exposes the run's repair log.
func (r *Runner) Repairs() *RepairLog {
	return r.repairs
}

// Run writes the manifest and executes the stages sequentially. A terminal
// gateway failure is fatal for the run; completed artifacts and completed
// test-case batches survive for the next invocation.
func (r *Runner) Run(ctx context.Context) (*Summary, error) {
	if err := r.writeManifest(); err != nil {
		return nil, err
	}

	extractor := NewExtractor(r.cfg, r.gen, r.store, r.log, r.repairs)
	useCases, policies, err := extractor.Run(ctx)
	if err != nil {
		return nil, fmt.Errorf("extraction stage: %w", err)
	}

	tcGen := NewTestCaseGenerator(r.cfg, r.gen, r.store, r.log, r.repairs)
	testCases, err := tcGen.Run(ctx, useCases, policies)
	if err != nil {
		return nil, fmt.Errorf("test case stage: %w", err)
	}

	dsGen := NewDatasetGenerator(r.cfg, r.gen, r.store, r.log, r.repairs)
	examples, err := dsGen.Run(ctx, useCases, policies, testCases)
	if err != nil {
		return nil, fmt.Errorf("dataset stage: %w", err)
	}

	return &Summary{
		UseCases:  len(useCases),
		Policies:  len(policies),
		TestCases: len(testCases),
		Examples:  len(examples),
		OutDir:    r.store.Dir(),
	}, nil
}

func (r *Runner) writeManifest() error {
	manifest := contract.RunManifest{
		RunID:            uuid.NewString(),
		InputPath:        r.cfg.InputPath,
		OutPath:          r.cfg.OutPath,
		Seed:             r.cfg.Seed,
		Timestamp:        time.Now().UTC().Format(time.RFC3339),
		GeneratorVersion: config.Version,
		LLM: contract.LLMInfo{
			Provider:    "google",
			Model:       r.cfg.Model,
			Temperature: r.cfg.Temperature,
		},
	}
	if err := r.store.SaveObject(store.ManifestFile, manifest); err != nil {
		return fmt.Errorf("failed to write run manifest: %w", err)
	}
	r.log.Info("run manifest written", zap.String("run_id", manifest.RunID))
	return nil
}
