package main

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/vcf-dupe/internal/contact"
	"github.com/sells-group/vcf-dupe/internal/external"
	"github.com/sells-group/vcf-dupe/internal/similarity"
	"github.com/sells-group/vcf-dupe/internal/vcf"
)

var scoreCmd = &cobra.Command{
	Use:   "score <a.vcf> <b.vcf>",
	Short: "Score the first contact of two vCard files",
	Long: `Compares the first card of each file and prints every signal that took part in
the score, the fused score and its classification.

Examples:
  score alice.vcf alice-work.vcf

  # Include the TF-IDF signal
  score --backend tfidf a.vcf b.vcf`,
	Args: cobra.ExactArgs(2),
	RunE: runScore,
}

func init() {
	scoreCmd.Flags().String("backend", "", "external similarity backend (overrides config)")
	rootCmd.AddCommand(scoreCmd)
}

func runScore(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	c := *cfg
	if cmd.Flags().Changed("backend") {
		c.External.Backend, _ = cmd.Flags().GetString("backend")
	}
	classifier, err := similarity.NewClassifier(c)
	if err != nil {
		return err
	}

	a, err := firstCard(args[0])
	if err != nil {
		return err
	}
	b, err := firstCard(args[1])
	if err != nil {
		return err
	}

	backend, err := external.NewBackend(c, nil)
	if err != nil {
		return err
	}
	var ext similarity.ExternalScorer
	if backend != nil {
		if p, ok := backend.(external.Preparer); ok {
			p.Prepare([]*contact.Record{a, b})
		}
		ext = backend
	}

	res := similarity.NewScorer(ext).Score(ctx, a, b)
	return printScore(os.Stdout, a, b, res, classifier.Classify(res.Score))
}

func firstCard(path string) (*contact.Record, error) {
	records, err := vcf.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, eris.Errorf("%s contains no vCards", path)
	}
	return records[0], nil
}

// printScore writes the signal breakdown for one pair.
func printScore(out io.Writer, a, b *contact.Record, res similarity.Result, class similarity.Classification) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintf(w, "A:\t%s\n", a)
	_, _ = fmt.Fprintf(w, "B:\t%s\n", b)
	for _, sig := range []similarity.Signal{
		similarity.SignalName,
		similarity.SignalEmail,
		similarity.SignalPhone,
		similarity.SignalExternal,
	} {
		if v, ok := res.Components[sig]; ok {
			_, _ = fmt.Fprintf(w, "%s:\t%.3f\n", sig, v)
		} else {
			_, _ = fmt.Fprintf(w, "%s:\t-\n", sig)
		}
	}
	_, _ = fmt.Fprintf(w, "score:\t%.3f\n", res.Score)
	_, _ = fmt.Fprintf(w, "classification:\t%s\n", class)
	return eris.Wrap(w.Flush(), "write score")
}
