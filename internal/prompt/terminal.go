// Package prompt asks the user on a terminal whether possible duplicates
// should be merged.
package prompt

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"
	"text/tabwriter"

	"github.com/fatih/color"
	"github.com/rotisserie/eris"

	"github.com/sells-group/vcf-dupe/internal/contact"
	"github.com/sells-group/vcf-dupe/internal/pipeline"
	"github.com/sells-group/vcf-dupe/internal/similarity"
)

// hidden fields are not worth showing side by side.
var hidden = []string{contact.FieldVersion, contact.FieldProductID, contact.FieldRevision, "PHOTO", "LOGO", "SOUND", "KEY"}

// Terminal is an interactive pipeline.Confirmer. Answers: y merges, n keeps
// both, s skips, a accepts every remaining pair, q skips every remaining
// pair. End of input counts as q.
type Terminal struct {
	in  *bufio.Reader
	out io.Writer

	sticky *pipeline.Decision
	asked  int
}

// NewTerminal reads answers from in and writes prompts to out.
func NewTerminal(in io.Reader, out io.Writer) *Terminal {
	return &Terminal{in: bufio.NewReader(in), out: out}
}

// Confirm implements pipeline.Confirmer.
func (t *Terminal) Confirm(ctx context.Context, c pipeline.Candidate) (pipeline.Verdict, error) {
	if err := ctx.Err(); err != nil {
		return pipeline.Verdict{}, err
	}
	if t.sticky != nil {
		return pipeline.Verdict{Decision: *t.sticky, Note: "answered for all"}, nil
	}

	t.asked++
	t.show(c)

	for {
		fmt.Fprint(t.out, color.CyanString("Merge these contacts? [y]es/[n]o/[s]kip/[a]ll/[q]uit: "))
		line, err := t.in.ReadString('\n')
		answer := strings.ToLower(strings.TrimSpace(line))
		if err != nil && !errors.Is(err, io.EOF) {
			return pipeline.Verdict{}, eris.Wrap(err, "prompt: read answer")
		}
		if answer == "" && err != nil {
			fmt.Fprintln(t.out)
			return t.stick(pipeline.Skip, "input closed"), nil
		}

		switch answer {
		case "y", "yes":
			return pipeline.Verdict{Decision: pipeline.Accept, Note: "user"}, nil
		case "n", "no":
			return pipeline.Verdict{Decision: pipeline.Reject, Note: "user"}, nil
		case "s", "skip":
			return pipeline.Verdict{Decision: pipeline.Skip, Note: "user"}, nil
		case "a", "all":
			return t.stick(pipeline.Accept, "user accepted all"), nil
		case "q", "quit":
			return t.stick(pipeline.Skip, "user quit"), nil
		}
		if err != nil {
			return t.stick(pipeline.Skip, "input closed"), nil
		}
		fmt.Fprintln(t.out, color.RedString("Please answer y, n, s, a or q."))
	}
}

func (t *Terminal) stick(d pipeline.Decision, note string) pipeline.Verdict {
	t.sticky = &d
	return pipeline.Verdict{Decision: d, Note: note}
}

// show prints the two records side by side, marking fields that differ.
func (t *Terminal) show(c pipeline.Candidate) {
	bold := color.New(color.Bold).SprintFunc()
	diff := color.New(color.FgYellow).SprintFunc()

	fmt.Fprintf(t.out, "\n%s %s\n", bold(fmt.Sprintf("Possible duplicate #%d", t.asked)),
		color.YellowString("score %.2f (%s)", c.Result.Score, components(c.Result)))

	w := tabwriter.NewWriter(t.out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "%s\t%s\t%s\n", bold("FIELD"), bold(label(c.A)), bold(label(c.B)))
	for _, field := range fields(c.A, c.B) {
		va, vb := strings.Join(c.A.Values(field), "; "), strings.Join(c.B.Values(field), "; ")
		name := field
		if va != vb {
			name = diff(field)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\n", name, va, vb)
	}
	_ = w.Flush()
}

func label(r *contact.Record) string {
	src := r.Source()
	if src.Path == "" {
		return "record"
	}
	return fmt.Sprintf("%s#%d", src.Path, src.Index)
}

// fields lists the keys of either record, FN first, hidden ones dropped.
func fields(a, b *contact.Record) []string {
	var out []string
	for _, k := range append(a.Keys(), b.Keys()...) {
		if !slices.Contains(out, k) && !slices.Contains(hidden, k) {
			out = append(out, k)
		}
	}
	slices.SortStableFunc(out, func(x, y string) int {
		switch {
		case x == contact.FieldFormattedName:
			return -1
		case y == contact.FieldFormattedName:
			return 1
		default:
			return strings.Compare(x, y)
		}
	})
	return out
}

func components(r similarity.Result) string {
	var parts []string
	for _, s := range []similarity.Signal{similarity.SignalName, similarity.SignalEmail, similarity.SignalPhone, similarity.SignalExternal} {
		if v, ok := r.Components[s]; ok {
			parts = append(parts, fmt.Sprintf("%s %.2f", s, v))
		}
	}
	if len(parts) == 0 {
		return "no signals"
	}
	return strings.Join(parts, ", ")
}
