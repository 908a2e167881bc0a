package report

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/vcf-dupe/internal/config"
	"github.com/sells-group/vcf-dupe/internal/cost"
)

func sampleReport() *Report {
	start := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	a := RecordRef{UID: "uid-a", Name: "John Smith", Path: "a.vcf", Index: 0}
	b := RecordRef{UID: "uid-b", Name: "John Smith", Path: "b.vcf", Index: 2}
	c := RecordRef{UID: "uid-c", Name: "Jon Smyth", Path: "b.vcf", Index: 3}

	r := &Report{
		RunID:      "run-1",
		StartedAt:  start,
		FinishedAt: start.Add(1500 * time.Millisecond),
		State:      "done",
		Inputs:     []string{"a.vcf", "b.vcf", "bad.vcf"},
		Records:    5,
		ParseErrors: []ParseError{
			{Path: "bad.vcf", Error: "vcard: invalid line"},
		},
		Merges: []Merge{
			{UID: "uid-a", Name: "John Smith", Sources: []RecordRef{a, b}, Score: 1, Outcome: OutcomeAutoMerged, Output: "merged/merged_a.vcf"},
		},
		Unresolved: []Pair{
			{A: a, B: c, Score: 0.82, Classification: "possible_duplicate", Outcome: OutcomeUnresolved},
		},
		Reviewed: []Pair{
			{A: a, B: b, Score: 1, Classification: "auto_merge_candidate", Outcome: OutcomeAutoMerged},
		},
	}
	r.Counts.Compared = 4
	r.Counts.Add(OutcomeAutoMerged)
	r.Counts.Add(OutcomeUnresolved)
	r.Counts.Add(OutcomeDistinct)
	r.Counts.Add(OutcomeDistinct)
	return r
}

func TestCounts_Add(t *testing.T) {
	var c Counts
	for _, o := range []Outcome{
		OutcomeAutoMerged, OutcomeUserMerged, OutcomeUserMerged, OutcomeRejected,
		OutcomeSkipped, OutcomeSuperseded, OutcomeUnresolved, OutcomeDistinct,
	} {
		c.Add(o)
	}
	assert.Equal(t, Counts{AutoMerged: 1, UserMerged: 2, Rejected: 1, Skipped: 1, Superseded: 1, Unresolved: 1, Distinct: 1}, c)
}

func TestOutcome_Merged(t *testing.T) {
	assert.True(t, OutcomeAutoMerged.Merged())
	assert.True(t, OutcomeUserMerged.Merged())
	assert.False(t, OutcomeRejected.Merged())
	assert.False(t, OutcomeSuperseded.Merged())
}

func TestWriteText(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, config.FormatText, sampleReport()))

	out := buf.String()
	assert.Contains(t, out, "run-1")
	assert.Contains(t, out, "Auto-merged:")
	assert.Regexp(t, `Files:\s+3 \(1 unreadable\)`, out)
	assert.Contains(t, out, "a.vcf#0, b.vcf#2")
	assert.Contains(t, out, "Jon Smyth (b.vcf#3)")
	assert.Contains(t, out, "bad.vcf")
	assert.Contains(t, out, "1.5s")
}

func TestWriteText_Usage(t *testing.T) {
	r := sampleReport()
	r.Usage = []cost.Line{
		{Provider: "anthropic", Model: "claude-haiku-4-5-20251001", Calls: 3, InputTokens: 900, OutputTokens: 120, CostUSD: 0.0012},
		{Provider: "openai", Model: "text-embedding-3-small", Calls: 1, InputTokens: 40, CostUSD: 0.0001},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteText(&buf, r))

	out := buf.String()
	assert.Contains(t, out, "API USAGE")
	assert.Contains(t, out, "claude-haiku-4-5-20251001")
	assert.Contains(t, out, "$0.0012")
	assert.Regexp(t, `Estimated API cost:\s+\$0\.0013`, out)
}

func TestWriteText_NoUsage(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteText(&buf, sampleReport()))
	assert.NotContains(t, buf.String(), "API USAGE")
	assert.NotContains(t, buf.String(), "Estimated API cost")
}

func TestWriteJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, config.FormatJSON, sampleReport()))

	var got Report
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	assert.Equal(t, "run-1", got.RunID)
	assert.Equal(t, 1, got.Counts.AutoMerged)
	assert.Equal(t, 2, got.Counts.Distinct)
	require.Len(t, got.Merges, 1)
	assert.Len(t, got.Merges[0].Sources, 2)
	assert.Contains(t, buf.String(), `"outcome": "auto_merged"`)
}

func TestWriteYAML(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, config.FormatYAML, sampleReport()))

	var got map[string]any
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &got))
	assert.Equal(t, "run-1", got["run_id"])
	counts := got["counts"].(map[string]any)
	assert.Equal(t, 1, counts["unresolved"])
}

func TestWrite_UnknownFormat(t *testing.T) {
	assert.Error(t, Write(&bytes.Buffer{}, "csv", sampleReport()))
}

func TestWriteFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report.json")
	require.NoError(t, WriteFile(path, config.FormatJSON, sampleReport()))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, json.Valid(data))
}

func TestWriteXLSX(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report.xlsx")
	require.NoError(t, WriteFile(path, config.FormatXLSX, sampleReport()))

	f, err := xlsx.OpenFile(path)
	require.NoError(t, err)

	summary, ok := f.Sheet[SheetSummary]
	require.True(t, ok)
	assert.Equal(t, "Run", summary.Rows[0].Cells[0].String())
	assert.Equal(t, "run-1", summary.Rows[0].Cells[1].String())

	merges := f.Sheet[SheetMerges]
	require.Len(t, merges.Rows, 2)
	assert.Equal(t, "uid-a", merges.Rows[1].Cells[0].String())

	pairs := f.Sheet[SheetPairs]
	require.Len(t, pairs.Rows, 3)
	assert.Equal(t, "unresolved", pairs.Rows[2].Cells[4].String())

	parseErrs := f.Sheet[SheetParseErrors]
	require.Len(t, parseErrs.Rows, 2)
	assert.Equal(t, "bad.vcf", parseErrs.Rows[1].Cells[0].String())
}
