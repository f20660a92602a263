// Package pipeline runs one extract-clean-transform-load cycle over a single batch.
// Flow: clean → transform/classify → store → export
package pipeline

import (
	"context"
	"time"

	"cryptoetl/internal/crypto/export"
	"cryptoetl/internal/crypto/market"
	"cryptoetl/internal/crypto/snapshot"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Store persists a batch in one writer transaction.
type Store interface {
	EnsureSchema(ctx context.Context) error
	Load(ctx context.Context, batch market.Batch) error
}

// Exporter writes a batch to flat files.
type Exporter interface {
	Export(batch market.Batch, outputDir string) (*export.Files, error)
}

// Extractor produces the raw records of a run.
type Extractor interface {
	Extract(ctx context.Context) snapshot.ExtractResult
}

// Invalidator is told when committed state changed.
type Invalidator interface {
	Invalidate(ctx context.Context) error
}

// Options for creating Orchestrator.
type Options struct {
	Store     Store
	Exporter  Exporter
	OutputDir string

	Extractor   Extractor   // required by RunOnce only
	Invalidator Invalidator // optional
	Clock       func() time.Time
	Logger      *zap.Logger
}

// Orchestrator coordinates the run. It holds no per-run state and is safe for concurrent use;
// concurrent runs serialize in the store.
type Orchestrator struct {
	store       Store
	exporter    Exporter
	outputDir   string
	extractor   Extractor
	invalidator Invalidator
	clock       func() time.Time
	logger      *zap.Logger
}

// New creates a new Orchestrator.
func New(opts Options) *Orchestrator {
	o := &Orchestrator{
		store:       opts.Store,
		exporter:    opts.Exporter,
		outputDir:   opts.OutputDir,
		extractor:   opts.Extractor,
		invalidator: opts.Invalidator,
		clock:       opts.Clock,
		logger:      opts.Logger,
	}
	if o.clock == nil {
		o.clock = time.Now
	}
	if o.logger == nil {
		o.logger = zap.NewNop()
	}
	return o
}

// Report describes one run.
type Report struct {
	RunID            string        `json:"run_id"`
	CapturedAt       time.Time     `json:"captured_at"`
	ExtractionFailed bool          `json:"extraction_failed"`
	Raw              int           `json:"raw"`
	Clean            int           `json:"clean"`
	Loaded           int           `json:"loaded"`
	Files            *export.Files `json:"files,omitempty"`
	State            State         `json:"-"`
	Trail            []State       `json:"-"`
}

func (r *Report) advance(s State) {
	r.State = s
	r.Trail = append(r.Trail, s)
}

// RunOnce extracts from the configured extractor and runs the pipeline on the result.
func (o *Orchestrator) RunOnce(ctx context.Context) (*Report, error) {
	return o.Run(ctx, o.extractor.Extract(ctx))
}

// Run takes the extraction result through every stage.
// A failed extraction is processed as an empty batch and flagged in the report.
// Once cleaning starts the run is not cancelled by ctx.
func (o *Orchestrator) Run(ctx context.Context, in snapshot.ExtractResult) (*Report, error) {
	report := &Report{RunID: uuid.NewString(), State: Idle, Trail: []State{Idle}}
	log := o.logger.With(zap.String("run_id", report.RunID))

	raw := in.Records
	if in.Failed() {
		report.ExtractionFailed = true
		raw = nil
		log.Warn("extraction failed, processing an empty batch", zap.Error(in.Err))
	}
	report.Raw = len(raw)

	ctx = context.WithoutCancel(ctx)

	cleaned := market.Clean(raw)
	report.Clean = len(cleaned)
	report.advance(Cleaned)
	if dropped := report.Raw - report.Clean; dropped > 0 {
		log.Debug("dropped invalid records", zap.Int("dropped", dropped))
	}

	batch := market.Transform(cleaned, o.clock())
	report.CapturedAt = batch.CapturedAt
	report.advance(Transformed)

	if err := o.persist(ctx, batch); err != nil {
		report.advance(Failed)
		log.Error("persist failed, export skipped", zap.Error(err))
		return report, &StageError{Stage: StagePersist, Err: err}
	}
	report.Loaded = batch.Len()
	report.advance(Persisted)

	if o.invalidator != nil {
		if err := o.invalidator.Invalidate(ctx); err != nil {
			log.Warn("failed to invalidate query cache", zap.Error(err))
		}
	}

	files, err := o.exporter.Export(batch, o.outputDir)
	if err != nil {
		report.advance(Failed)
		log.Error("export failed, store writes kept", zap.Error(err))
		return report, &StageError{Stage: StageExport, Err: err}
	}
	report.Files = files
	report.advance(Exported)
	report.advance(Done)

	log.Info("pipeline run finished",
		zap.Time("captured_at", report.CapturedAt),
		zap.Int("raw", report.Raw),
		zap.Int("clean", report.Clean),
		zap.Bool("extraction_failed", report.ExtractionFailed),
		zap.String("csv", files.CSV),
		zap.String("columnar", files.Columnar),
	)
	return report, nil
}

func (o *Orchestrator) persist(ctx context.Context, batch market.Batch) error {
	if err := o.store.EnsureSchema(ctx); err != nil {
		return err
	}
	return o.store.Load(ctx, batch)
}
