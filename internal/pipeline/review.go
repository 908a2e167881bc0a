package pipeline

import (
	"context"
	"sort"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/vcf-dupe/internal/contact"
	"github.com/sells-group/vcf-dupe/internal/merge"
	"github.com/sells-group/vcf-dupe/internal/report"
	"github.com/sells-group/vcf-dupe/internal/similarity"
)

// scoredPair is a candidate pair after scoring. i < j index the loaded
// records.
type scoredPair struct {
	i, j   int
	result similarity.Result
	class  similarity.Classification
}

// plan is a merge the review accepted.
type plan struct {
	i, j    int
	score   float64
	outcome report.Outcome
	prefs   merge.Preferences
}

// score compares the candidate pairs on a bounded worker pool and returns
// them by descending score, ties in load order.
func (d *Driver) score(ctx context.Context, records []*contact.Record) ([]scoredPair, error) {
	candidates := d.blocker.Pairs(records)

	pairs := make([]similarity.Pair, 0, len(candidates))
	sameUID := 0
	for _, p := range candidates {
		if records[p.I].UID() == records[p.J].UID() {
			sameUID++
			continue
		}
		pairs = append(pairs, p)
	}
	if sameUID > 0 {
		d.log.Info("pipeline: skipped pairs sharing a uid", zap.Int("pairs", sameUID))
	}

	scored := make([]scoredPair, len(pairs))
	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(d.cfg.Workers)
	for n, p := range pairs {
		g.Go(func() error {
			if err := gCtx.Err(); err != nil {
				return err
			}
			res := d.scorer.Score(gCtx, records[p.I], records[p.J])
			scored[n] = scoredPair{i: p.I, j: p.J, result: res, class: d.classifier.Classify(res.Score)}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, eris.Wrap(err, "pipeline: scoring")
	}
	// Scoring swallows backend cancellation, so check the parent as well.
	if err := ctx.Err(); err != nil {
		return nil, eris.Wrap(err, "pipeline: scoring")
	}

	sort.SliceStable(scored, func(a, b int) bool {
		if scored[a].result.Score != scored[b].result.Score {
			return scored[a].result.Score > scored[b].result.Score
		}
		if scored[a].i != scored[b].i {
			return scored[a].i < scored[b].i
		}
		return scored[a].j < scored[b].j
	})

	d.report.Counts.Compared = len(scored)
	d.log.Info("pipeline: scored pairs",
		zap.Int("candidates", len(candidates)),
		zap.Int("compared", len(scored)),
		zap.String("blocking", d.cfg.Blocking),
	)
	return scored, nil
}

// review walks the scored pairs once, best first. A record joins at most one
// merge: once claimed, later pairs touching it are superseded.
func (d *Driver) review(ctx context.Context, records []*contact.Record, scored []scoredPair) ([]plan, error) {
	claimed := make(map[int]bool)
	var plans []plan

	for _, sp := range scored {
		entry := d.pairEntry(records, sp)
		var prefs merge.Preferences

		switch {
		case sp.class == similarity.Distinct:
			d.report.Counts.Add(report.OutcomeDistinct)
			continue
		case claimed[sp.i] || claimed[sp.j]:
			entry.Outcome = report.OutcomeSuperseded
		case sp.class == similarity.AutoMergeCandidate:
			entry.Outcome = report.OutcomeAutoMerged
		case d.confirmer == nil:
			entry.Outcome = report.OutcomeUnresolved
		default:
			verdict, err := d.confirmer.Confirm(ctx, Candidate{A: records[sp.i], B: records[sp.j], Result: sp.result})
			if err != nil {
				return nil, eris.Wrap(err, "pipeline: confirm")
			}
			entry.Note = verdict.Note
			switch verdict.Decision {
			case Accept:
				entry.Outcome = report.OutcomeUserMerged
				prefs = verdict.Preferences
			case Reject:
				entry.Outcome = report.OutcomeRejected
			default:
				entry.Outcome = report.OutcomeSkipped
			}
		}

		if entry.Outcome.Merged() {
			plans = append(plans, plan{i: sp.i, j: sp.j, score: sp.result.Score, outcome: entry.Outcome, prefs: prefs})
			claimed[sp.i], claimed[sp.j] = true, true
		}

		d.report.Counts.Add(entry.Outcome)
		if entry.Outcome == report.OutcomeUnresolved {
			d.report.Unresolved = append(d.report.Unresolved, entry)
		} else {
			d.report.Reviewed = append(d.report.Reviewed, entry)
		}
		d.log.Debug("pipeline: reviewed pair",
			zap.Stringer("a", records[sp.i]),
			zap.Stringer("b", records[sp.j]),
			zap.Float64("score", sp.result.Score),
			zap.String("outcome", string(entry.Outcome)),
		)
	}
	return plans, nil
}

func (d *Driver) pairEntry(records []*contact.Record, sp scoredPair) report.Pair {
	components := make(map[string]float64, len(sp.result.Components))
	for s, v := range sp.result.Components {
		components[string(s)] = v
	}
	return report.Pair{
		A:              ref(records[sp.i]),
		B:              ref(records[sp.j]),
		Score:          sp.result.Score,
		Components:     components,
		Classification: sp.class.String(),
	}
}

func ref(r *contact.Record) report.RecordRef {
	src := r.Source()
	return report.RecordRef{UID: r.UID(), Name: r.FormattedName(), Path: src.Path, Index: src.Index}
}
