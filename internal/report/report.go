// Package report describes the outcome of a dedupe run and renders it as
// text, JSON, YAML or an XLSX workbook.
package report

import (
	"time"

	"github.com/sells-group/vcf-dupe/internal/cost"
)

// Outcome is what happened to one candidate pair.
type Outcome string

// Pair outcomes.
const (
	OutcomeAutoMerged Outcome = "auto_merged"
	OutcomeUserMerged Outcome = "user_merged"
	OutcomeRejected   Outcome = "rejected"
	OutcomeSkipped    Outcome = "skipped"
	OutcomeUnresolved Outcome = "unresolved"
	OutcomeSuperseded Outcome = "superseded"
	OutcomeDistinct   Outcome = "distinct"
)

// Merged reports whether the outcome produced a merged record.
func (o Outcome) Merged() bool {
	return o == OutcomeAutoMerged || o == OutcomeUserMerged
}

// Counts tallies pair outcomes. Compared is the number of pairs scored.
type Counts struct {
	Compared   int `json:"compared" yaml:"compared"`
	AutoMerged int `json:"auto_merged" yaml:"auto_merged"`
	UserMerged int `json:"user_merged" yaml:"user_merged"`
	Rejected   int `json:"rejected" yaml:"rejected"`
	Skipped    int `json:"skipped" yaml:"skipped"`
	Superseded int `json:"superseded" yaml:"superseded"`
	Unresolved int `json:"unresolved" yaml:"unresolved"`
	Distinct   int `json:"distinct" yaml:"distinct"`
}

// Add counts one outcome.
func (c *Counts) Add(o Outcome) {
	switch o {
	case OutcomeAutoMerged:
		c.AutoMerged++
	case OutcomeUserMerged:
		c.UserMerged++
	case OutcomeRejected:
		c.Rejected++
	case OutcomeSkipped:
		c.Skipped++
	case OutcomeSuperseded:
		c.Superseded++
	case OutcomeUnresolved:
		c.Unresolved++
	case OutcomeDistinct:
		c.Distinct++
	}
}

// RecordRef identifies a contact in the inputs.
type RecordRef struct {
	UID   string `json:"uid" yaml:"uid"`
	Name  string `json:"name,omitempty" yaml:"name,omitempty"`
	Path  string `json:"path,omitempty" yaml:"path,omitempty"`
	Index int    `json:"index" yaml:"index"`
}

// Pair is one scored candidate pair and what became of it.
type Pair struct {
	A              RecordRef          `json:"a" yaml:"a"`
	B              RecordRef          `json:"b" yaml:"b"`
	Score          float64            `json:"score" yaml:"score"`
	Components     map[string]float64 `json:"components,omitempty" yaml:"components,omitempty"`
	Classification string             `json:"classification" yaml:"classification"`
	Outcome        Outcome            `json:"outcome" yaml:"outcome"`
	Note           string             `json:"note,omitempty" yaml:"note,omitempty"`
}

// Merge is one merged record.
type Merge struct {
	UID     string      `json:"uid" yaml:"uid"`
	Name    string      `json:"name,omitempty" yaml:"name,omitempty"`
	Sources []RecordRef `json:"sources" yaml:"sources"`
	Score   float64     `json:"score" yaml:"score"`
	Outcome Outcome     `json:"outcome" yaml:"outcome"`
	Output  string      `json:"output,omitempty" yaml:"output,omitempty"`
}

// ParseError is an input file that could not be decoded.
type ParseError struct {
	Path  string `json:"path" yaml:"path"`
	Error string `json:"error" yaml:"error"`
}

// Transition records when the run entered a state.
type Transition struct {
	State string    `json:"state" yaml:"state"`
	At    time.Time `json:"at" yaml:"at"`
}

// Report is the full account of one run.
type Report struct {
	RunID       string       `json:"run_id" yaml:"run_id"`
	StartedAt   time.Time    `json:"started_at" yaml:"started_at"`
	FinishedAt  time.Time    `json:"finished_at" yaml:"finished_at"`
	State       string       `json:"state" yaml:"state"`
	DryRun      bool         `json:"dry_run" yaml:"dry_run"`
	Backend     string       `json:"backend,omitempty" yaml:"backend,omitempty"`
	Inputs      []string     `json:"inputs" yaml:"inputs"`
	Records     int          `json:"records" yaml:"records"`
	Counts      Counts       `json:"counts" yaml:"counts"`
	ParseErrors []ParseError `json:"parse_errors,omitempty" yaml:"parse_errors,omitempty"`
	Merges      []Merge      `json:"merges,omitempty" yaml:"merges,omitempty"`
	Unresolved  []Pair       `json:"unresolved,omitempty" yaml:"unresolved,omitempty"`
	Reviewed    []Pair       `json:"reviewed,omitempty" yaml:"reviewed,omitempty"`
	Outputs     []string     `json:"outputs,omitempty" yaml:"outputs,omitempty"`
	Usage       []cost.Line  `json:"usage,omitempty" yaml:"usage,omitempty"`
	Transitions []Transition `json:"transitions" yaml:"transitions"`
}

// MergeCount is the number of merged records produced.
func (r *Report) MergeCount() int {
	return r.Counts.AutoMerged + r.Counts.UserMerged
}
