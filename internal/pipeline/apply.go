package pipeline

import (
	"context"
	"encoding/json"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/vcf-dupe/internal/contact"
	"github.com/sells-group/vcf-dupe/internal/merge"
	"github.com/sells-group/vcf-dupe/internal/output"
	"github.com/sells-group/vcf-dupe/internal/report"
	"github.com/sells-group/vcf-dupe/internal/store"
)

// apply runs the accepted merges in review order and writes the output
// files. It is the only writer of merge results.
func (d *Driver) apply(b *batch, plans []plan) ([]MergedRecord, output.Result, error) {
	merged := make([]MergedRecord, 0, len(plans))
	files := make([]output.Merged, 0, len(plans))

	for _, p := range plans {
		a, other := b.records[p.i], b.records[p.j]
		rec := merge.MergeWith(a, other, p.prefs)
		merged = append(merged, MergedRecord{
			Record:  rec,
			Sources: []*contact.Record{a, other},
			Score:   p.score,
			Outcome: p.outcome,
		})
		files = append(files, output.Merged{Record: rec, SourcePath: a.Source().Path})

		for _, idx := range []int{p.i, p.j} {
			loc := b.origin[idx]
			b.inputs[loc.input].Consumed[loc.index] = true
		}
	}

	outputs, err := d.writer.Write(files, b.inputs)
	if err != nil {
		return nil, outputs, eris.Wrap(err, "pipeline: write output")
	}

	for n, m := range merged {
		entry := report.Merge{
			UID:     m.Record.UID(),
			Name:    m.Record.FormattedName(),
			Score:   m.Score,
			Outcome: m.Outcome,
		}
		for _, src := range m.Sources {
			entry.Sources = append(entry.Sources, ref(src))
		}
		if n < len(outputs.Merged) {
			entry.Output = outputs.Merged[n]
		}
		d.report.Merges = append(d.report.Merges, entry)
	}

	d.log.Info("pipeline: merged records",
		zap.Int("merges", len(merged)),
		zap.Bool("keep_originals", d.cfg.KeepOriginals),
		zap.Int("rewritten", len(outputs.Rewritten)),
		zap.Int("removed", len(outputs.Removed)),
	)
	return merged, outputs, nil
}

// finish completes the report, moves to Done, writes the report file and
// records the run in the state store.
func (d *Driver) finish(ctx context.Context, outputs output.Result) error {
	r := d.report
	r.FinishedAt = d.now().UTC()
	r.Outputs = append(append(append([]string{}, outputs.Merged...), outputs.Rewritten...), outputs.BackedUp...)
	r.Usage = d.usage.Lines()

	// The written report describes the finished run.
	d.enter(StateDone)

	if d.cfg.ReportFile != "" {
		if err := report.WriteFile(d.cfg.ReportFile, d.cfg.ResolveReportFormat(), r); err != nil {
			return err
		}
		d.log.Info("pipeline: report written", zap.String("path", d.cfg.ReportFile))
	}

	if d.store != nil {
		if err := d.save(ctx); err != nil {
			d.log.Warn("pipeline: failed to record run in state db", zap.Error(err))
		}
	}
	return nil
}

func (d *Driver) save(ctx context.Context) error {
	r := d.report
	body, err := json.Marshal(r)
	if err != nil {
		return eris.Wrap(err, "pipeline: encode report")
	}

	var decisions []store.PairDecision
	for _, list := range [][]report.Pair{r.Reviewed, r.Unresolved} {
		for _, p := range list {
			decisions = append(decisions, store.PairDecision{
				RunID:          r.RunID,
				UIDA:           p.A.UID,
				UIDB:           p.B.UID,
				Score:          p.Score,
				Classification: p.Classification,
				Outcome:        string(p.Outcome),
			})
		}
	}

	return d.store.SaveRun(ctx, store.Run{
		ID:         r.RunID,
		StartedAt:  r.StartedAt,
		FinishedAt: r.FinishedAt,
		State:      r.State,
		Inputs:     len(r.Inputs),
		Records:    r.Records,
		Merges:     r.MergeCount(),
		DryRun:     r.DryRun,
		Report:     body,
	}, decisions)
}
