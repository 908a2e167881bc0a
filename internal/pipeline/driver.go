// Package pipeline drives a dedupe run: load the inputs, score candidate
// pairs, review them, merge, and report.
package pipeline

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/vcf-dupe/internal/config"
	"github.com/sells-group/vcf-dupe/internal/contact"
	"github.com/sells-group/vcf-dupe/internal/cost"
	"github.com/sells-group/vcf-dupe/internal/external"
	"github.com/sells-group/vcf-dupe/internal/output"
	"github.com/sells-group/vcf-dupe/internal/report"
	"github.com/sells-group/vcf-dupe/internal/similarity"
	"github.com/sells-group/vcf-dupe/internal/store"
)

// Options configures a Driver. Only Config is required.
type Options struct {
	Config config.Config
	DryRun bool

	// Confirmer decides possible duplicates. Nil leaves them unresolved.
	Confirmer Confirmer

	// Backend adds the external signal. Nil disables it.
	Backend external.Backend

	// Store receives the run history. Nil disables it.
	Store store.Store

	// Usage collects the token spend of remote model calls for the report.
	Usage *cost.Tracker
}

// MergedRecord is one merge produced by the run.
type MergedRecord struct {
	Record  *contact.Record
	Sources []*contact.Record
	Score   float64
	Outcome report.Outcome
}

// Result is everything a run produced.
type Result struct {
	Report  *report.Report
	Records []*contact.Record
	Merged  []MergedRecord
	Outputs output.Result
}

// Driver runs the dedupe state machine. A Driver runs once.
type Driver struct {
	cfg        config.Config
	dryRun     bool
	confirmer  Confirmer
	backend    external.Backend
	store      store.Store
	usage      *cost.Tracker
	scorer     *similarity.Scorer
	classifier *similarity.Classifier
	blocker    *similarity.Blocker
	writer     *output.Writer

	state   State
	entered time.Time
	report  *report.Report
	log     *zap.Logger
	now     func() time.Time
}

// New validates the thresholds and wires the run's components. Workers
// below 1 run with a single worker.
func New(opts Options) (*Driver, error) {
	classifier, err := similarity.NewClassifier(opts.Config)
	if err != nil {
		return nil, err
	}
	opts.Config.Workers = max(opts.Config.Workers, 1)

	var ext similarity.ExternalScorer
	if opts.Backend != nil {
		ext = opts.Backend
	}

	runID := uuid.NewString()
	return &Driver{
		cfg:        opts.Config,
		dryRun:     opts.DryRun,
		confirmer:  opts.Confirmer,
		backend:    opts.Backend,
		store:      opts.Store,
		usage:      opts.Usage,
		scorer:     similarity.NewScorer(ext),
		classifier: classifier,
		blocker:    similarity.NewBlocker(opts.Config.Blocking),
		writer:     output.NewWriter(opts.Config, opts.DryRun),
		report:     &report.Report{RunID: runID, DryRun: opts.DryRun},
		log:        zap.L().With(zap.String("run_id", runID)),
		now:        time.Now,
	}, nil
}

// State returns the current state.
func (d *Driver) State() State { return d.state }

// Run processes the given files and directories. Malformed files are
// reported and skipped; only configuration problems, confirmer errors,
// cancellation and output failures abort the run.
func (d *Driver) Run(ctx context.Context, paths []string) (*Result, error) {
	if !d.report.StartedAt.IsZero() {
		return nil, eris.New("pipeline: driver already ran")
	}
	d.report.StartedAt = d.now().UTC()
	if d.backend != nil {
		d.report.Backend = d.backend.Name()
	}
	d.log.Info("pipeline: starting run", zap.Strings("paths", paths), zap.Bool("dry_run", d.dryRun))

	d.enter(StateLoading)
	batch, err := d.load(ctx, paths)
	if err != nil {
		return nil, err
	}

	d.enter(StateScoring)
	scored, err := d.score(ctx, batch.records)
	if err != nil {
		return nil, err
	}

	d.enter(StateReviewing)
	plans, err := d.review(ctx, batch.records, scored)
	if err != nil {
		return nil, err
	}

	d.enter(StateMerging)
	merged, outputs, err := d.apply(batch, plans)
	if err != nil {
		return nil, err
	}

	d.enter(StateReporting)
	if err := d.finish(ctx, outputs); err != nil {
		return nil, err
	}

	d.log.Info("pipeline: run complete",
		zap.Int("records", d.report.Records),
		zap.Int("compared", d.report.Counts.Compared),
		zap.Int("merged", d.report.MergeCount()),
		zap.Int("unresolved", d.report.Counts.Unresolved),
	)

	return &Result{Report: d.report, Records: batch.records, Merged: merged, Outputs: outputs}, nil
}

// enter moves to state s, logging how long the previous state took.
func (d *Driver) enter(s State) {
	now := d.now()
	if !d.entered.IsZero() {
		d.log.Info("pipeline: phase complete",
			zap.String("phase", d.state.String()),
			zap.Int64("duration_ms", now.Sub(d.entered).Milliseconds()),
		)
	}
	d.state = s
	d.entered = now
	d.report.State = s.String()
	d.report.Transitions = append(d.report.Transitions, report.Transition{State: s.String(), At: now.UTC()})
}
