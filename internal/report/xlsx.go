package report

import (
	"fmt"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/vcf-dupe/internal/cost"
)

// Workbook sheet names.
const (
	SheetSummary     = "Summary"
	SheetMerges      = "Merges"
	SheetPairs       = "Pairs"
	SheetParseErrors = "Parse Errors"
)

// WriteXLSX saves r as a workbook with summary, merge, pair and parse error
// sheets.
func WriteXLSX(path string, r *Report) error {
	f := xlsx.NewFile()

	summary, err := f.AddSheet(SheetSummary)
	if err != nil {
		return eris.Wrap(err, "xlsx: add summary sheet")
	}
	for _, kv := range [][2]any{
		{"Run", r.RunID},
		{"State", r.State},
		{"Started", r.StartedAt.Format("2006-01-02 15:04:05")},
		{"Finished", r.FinishedAt.Format("2006-01-02 15:04:05")},
		{"Dry run", r.DryRun},
		{"Files", len(r.Inputs)},
		{"Records", r.Records},
		{"Pairs compared", r.Counts.Compared},
		{"Auto-merged", r.Counts.AutoMerged},
		{"User-merged", r.Counts.UserMerged},
		{"Rejected", r.Counts.Rejected},
		{"Skipped", r.Counts.Skipped},
		{"Superseded", r.Counts.Superseded},
		{"Unresolved", r.Counts.Unresolved},
		{"Estimated API cost (USD)", cost.Total(r.Usage)},
	} {
		row := summary.AddRow()
		row.AddCell().SetString(kv[0].(string))
		setCell(row.AddCell(), kv[1])
	}

	merges, err := f.AddSheet(SheetMerges)
	if err != nil {
		return eris.Wrap(err, "xlsx: add merges sheet")
	}
	addHeader(merges, "UID", "Name", "Score", "Outcome", "Sources", "Output")
	for _, m := range r.Merges {
		row := merges.AddRow()
		row.AddCell().SetString(m.UID)
		row.AddCell().SetString(m.Name)
		row.AddCell().SetFloat(m.Score)
		row.AddCell().SetString(string(m.Outcome))
		row.AddCell().SetString(joinRefs(m.Sources))
		row.AddCell().SetString(m.Output)
	}

	pairs, err := f.AddSheet(SheetPairs)
	if err != nil {
		return eris.Wrap(err, "xlsx: add pairs sheet")
	}
	addHeader(pairs, "A", "B", "Score", "Classification", "Outcome", "Note")
	for _, list := range [][]Pair{r.Reviewed, r.Unresolved} {
		for _, p := range list {
			row := pairs.AddRow()
			row.AddCell().SetString(refLabel(p.A))
			row.AddCell().SetString(refLabel(p.B))
			row.AddCell().SetFloat(p.Score)
			row.AddCell().SetString(p.Classification)
			row.AddCell().SetString(string(p.Outcome))
			row.AddCell().SetString(p.Note)
		}
	}

	parseErrs, err := f.AddSheet(SheetParseErrors)
	if err != nil {
		return eris.Wrap(err, "xlsx: add parse errors sheet")
	}
	addHeader(parseErrs, "Path", "Error")
	for _, pe := range r.ParseErrors {
		row := parseErrs.AddRow()
		row.AddCell().SetString(pe.Path)
		row.AddCell().SetString(pe.Error)
	}

	return eris.Wrapf(f.Save(path), "xlsx: save %s", path)
}

func addHeader(sheet *xlsx.Sheet, titles ...string) {
	row := sheet.AddRow()
	for _, t := range titles {
		row.AddCell().SetString(t)
	}
}

func setCell(cell *xlsx.Cell, v any) {
	switch v := v.(type) {
	case int:
		cell.SetInt(v)
	case float64:
		cell.SetFloat(v)
	case bool:
		if v {
			cell.SetString("yes")
		} else {
			cell.SetString("no")
		}
	default:
		cell.SetString(fmt.Sprint(v))
	}
}
