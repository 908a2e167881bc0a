package report

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/vcf-dupe/internal/config"
	"github.com/sells-group/vcf-dupe/internal/cost"
)

// WriteFile writes r to path in the given format (see config.Format*).
func WriteFile(path, format string, r *Report) error {
	if format == config.FormatXLSX {
		return WriteXLSX(path, r)
	}

	f, err := os.Create(path)
	if err != nil {
		return eris.Wrapf(err, "report: create %s", path)
	}
	if err := Write(f, format, r); err != nil {
		_ = f.Close()
		return err
	}
	return eris.Wrapf(f.Close(), "report: close %s", path)
}

// Write renders r to w. XLSX needs a file; use WriteFile.
func Write(w io.Writer, format string, r *Report) error {
	switch format {
	case config.FormatJSON:
		return WriteJSON(w, r)
	case config.FormatYAML:
		return WriteYAML(w, r)
	case config.FormatText, "":
		return WriteText(w, r)
	default:
		return eris.Errorf("report: unsupported format %q", format)
	}
}

// WriteJSON renders r as indented JSON.
func WriteJSON(w io.Writer, r *Report) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return eris.Wrap(enc.Encode(r), "report: encode json")
}

// WriteYAML renders r as YAML.
func WriteYAML(w io.Writer, r *Report) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(r); err != nil {
		return eris.Wrap(err, "report: encode yaml")
	}
	return eris.Wrap(enc.Close(), "report: encode yaml")
}

// WriteText renders the summary followed by the merge and pair tables.
func WriteText(out io.Writer, r *Report) error {
	if err := WriteSummary(out, r); err != nil {
		return err
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	if len(r.Merges) > 0 {
		_, _ = fmt.Fprintln(w, "\nMERGED\tNAME\tSCORE\tOUTCOME\tSOURCES")
		for _, m := range r.Merges {
			_, _ = fmt.Fprintf(w, "%s\t%s\t%.3f\t%s\t%s\n",
				m.UID, m.Name, m.Score, m.Outcome, joinRefs(m.Sources))
		}
	}
	if len(r.Unresolved) > 0 {
		_, _ = fmt.Fprintln(w, "\nUNRESOLVED\t\tSCORE\tCLASS")
		for _, p := range r.Unresolved {
			_, _ = fmt.Fprintf(w, "%s\t%s\t%.3f\t%s\n", refLabel(p.A), refLabel(p.B), p.Score, p.Classification)
		}
	}
	if len(r.Usage) > 0 {
		_, _ = fmt.Fprintln(w, "\nAPI USAGE\tMODEL\tCALLS\tTOKENS IN\tTOKENS OUT\tCOST")
		for _, u := range r.Usage {
			_, _ = fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%d\t$%.4f\n",
				u.Provider, u.Model, u.Calls, u.InputTokens, u.OutputTokens, u.CostUSD)
		}
	}
	if len(r.ParseErrors) > 0 {
		_, _ = fmt.Fprintln(w, "\nPARSE ERROR\tREASON")
		for _, pe := range r.ParseErrors {
			_, _ = fmt.Fprintf(w, "%s\t%s\n", pe.Path, pe.Error)
		}
	}
	return eris.Wrap(w.Flush(), "report: write text")
}

// WriteSummary writes the run counts.
func WriteSummary(out io.Writer, r *Report) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintf(w, "Run:\t%s\n", r.RunID)
	_, _ = fmt.Fprintf(w, "State:\t%s\n", r.State)
	if r.DryRun {
		_, _ = fmt.Fprintln(w, "Dry run:\tyes")
	}
	if !r.FinishedAt.IsZero() {
		_, _ = fmt.Fprintf(w, "Duration:\t%s\n", r.FinishedAt.Sub(r.StartedAt).Round(time.Millisecond))
	}
	_, _ = fmt.Fprintf(w, "Files:\t%d (%d unreadable)\n", len(r.Inputs), len(r.ParseErrors))
	_, _ = fmt.Fprintf(w, "Records:\t%d\n", r.Records)
	_, _ = fmt.Fprintf(w, "Pairs compared:\t%d\n", r.Counts.Compared)
	_, _ = fmt.Fprintf(w, "Auto-merged:\t%d\n", r.Counts.AutoMerged)
	_, _ = fmt.Fprintf(w, "User-merged:\t%d\n", r.Counts.UserMerged)
	_, _ = fmt.Fprintf(w, "Rejected:\t%d\n", r.Counts.Rejected)
	_, _ = fmt.Fprintf(w, "Skipped:\t%d\n", r.Counts.Skipped)
	_, _ = fmt.Fprintf(w, "Superseded:\t%d\n", r.Counts.Superseded)
	_, _ = fmt.Fprintf(w, "Unresolved:\t%d\n", r.Counts.Unresolved)
	if len(r.Usage) > 0 {
		_, _ = fmt.Fprintf(w, "Estimated API cost:\t$%.4f\n", cost.Total(r.Usage))
	}
	return eris.Wrap(w.Flush(), "report: write summary")
}

func refLabel(ref RecordRef) string {
	label := ref.Name
	if label == "" {
		label = ref.UID
	}
	if ref.Path != "" {
		label += fmt.Sprintf(" (%s#%d)", ref.Path, ref.Index)
	}
	return label
}

func joinRefs(refs []RecordRef) string {
	parts := make([]string, len(refs))
	for i, ref := range refs {
		parts[i] = fmt.Sprintf("%s#%d", ref.Path, ref.Index)
	}
	return strings.Join(parts, ", ")
}
