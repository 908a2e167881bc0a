package pipeline

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/vcf-dupe/internal/contact"
	"github.com/sells-group/vcf-dupe/internal/external"
	"github.com/sells-group/vcf-dupe/internal/output"
	"github.com/sells-group/vcf-dupe/internal/report"
	"github.com/sells-group/vcf-dupe/internal/vcf"
)

// batch is the loaded corpus. records is in load order; origin[i] locates
// records[i] within inputs.
type batch struct {
	inputs  []output.Input
	records []*contact.Record
	origin  []location
}

type location struct {
	input, index int
}

// load decodes every input file in parallel, keeping file order.
func (d *Driver) load(ctx context.Context, paths []string) (*batch, error) {
	files, err := vcf.Expand(paths)
	if err != nil {
		return nil, err
	}
	d.report.Inputs = files

	decoded := make([][]*contact.Record, len(files))
	failures := make([]error, len(files))

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(d.cfg.Workers)
	for i, path := range files {
		g.Go(func() error {
			if err := gCtx.Err(); err != nil {
				return err
			}
			records, err := vcf.ReadFile(path)
			if err != nil {
				var pe *vcf.ParseError
				if !errors.As(err, &pe) {
					return err
				}
				failures[i] = pe
				return nil
			}
			decoded[i] = records
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	b := &batch{}
	for i, path := range files {
		if failures[i] != nil {
			d.log.Warn("pipeline: skipping unreadable file", zap.String("path", path), zap.Error(failures[i]))
			d.report.ParseErrors = append(d.report.ParseErrors, report.ParseError{Path: path, Error: failures[i].Error()})
			continue
		}

		in := output.Input{Path: path, Records: decoded[i], Consumed: make(map[int]bool)}
		for j, r := range decoded[i] {
			if r.UID() == "" {
				r.SetUID(uuid.NewString())
				d.log.Debug("pipeline: assigned uid", zap.String("path", path), zap.Int("index", j), zap.String("uid", r.UID()))
			}
			b.records = append(b.records, r)
			b.origin = append(b.origin, location{input: len(b.inputs), index: j})
		}
		b.inputs = append(b.inputs, in)
	}
	d.report.Records = len(b.records)

	if p, ok := d.backend.(external.Preparer); ok {
		p.Prepare(b.records)
	}

	d.log.Info("pipeline: loaded inputs",
		zap.Int("files", len(files)),
		zap.Int("unreadable", len(d.report.ParseErrors)),
		zap.Int("records", len(b.records)),
	)
	return b, nil
}
