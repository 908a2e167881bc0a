package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/sells-group/vcf-dupe/internal/config"
	"github.com/sells-group/vcf-dupe/internal/cost"
	"github.com/sells-group/vcf-dupe/internal/external"
	"github.com/sells-group/vcf-dupe/internal/pipeline"
	"github.com/sells-group/vcf-dupe/internal/prompt"
	"github.com/sells-group/vcf-dupe/internal/report"
)

var dedupeCmd = &cobra.Command{
	Use:   "dedupe [paths...]",
	Short: "Find and merge duplicate contacts",
	Long: `Loads every .vcf file under the given files and directories, scores candidate
pairs and merges duplicates.

Without a path argument the command asks for a directory on stdin.

Examples:
  # Review possible duplicates interactively
  dedupe ~/contacts

  # Preview what would be merged without touching any file
  dedupe --dry-run --non-interactive ~/contacts

  # Merge everything in the possible-duplicate band
  dedupe --policy accept a.vcf b.vcf

  # Let an LLM decide possible duplicates and write an XLSX report
  dedupe --advisor --report run.xlsx ~/contacts`,
	RunE: runDedupe,
}

func init() {
	addDedupeFlags(dedupeCmd.Flags())
	rootCmd.AddCommand(dedupeCmd)
}

func addDedupeFlags(f *pflag.FlagSet) {
	f.Bool("dry-run", false, "score and review without writing any file")
	f.Bool("non-interactive", false, "never prompt; possible duplicates stay unresolved unless --policy or --advisor is set")
	f.String("policy", "", "answer every possible duplicate: accept, reject or skip")
	f.Bool("advisor", false, "ask an LLM to decide possible duplicates")
	f.String("backend", "", "external similarity backend: none, tfidf, anthropic or openai (overrides config)")
	f.Bool("keep-originals", false, "leave input files untouched (overrides config)")
	f.String("merged-dir", "", "directory for merged cards (overrides config)")
	f.String("report", "", "write the run report to this file (overrides config)")
	f.String("report-format", "", "report format: text, json, yaml or xlsx (default from --report extension)")
	f.String("blocking", "", "candidate pair blocking: none, initial or phonetic (overrides config)")
	f.Int("workers", 0, "concurrent scoring workers (overrides config)")
}

func runDedupe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	c := *cfg
	if err := applyDedupeFlags(cmd.Flags(), &c); err != nil {
		return err
	}
	if err := c.Validate(); err != nil {
		return err
	}
	dryRun, _ := cmd.Flags().GetBool("dry-run")

	in := bufio.NewReader(os.Stdin)
	paths := args
	if len(paths) == 0 {
		dir, err := askDirectory(in, os.Stdout)
		if err != nil {
			return err
		}
		paths = []string{dir}
	}

	st, err := openStateStore(ctx, c.StateDB)
	if err != nil {
		return err
	}
	if st != nil {
		defer st.Close() //nolint:errcheck
	}

	usage := cost.NewTracker(cost.NewCalculator(cost.DefaultRates()))
	backend, err := external.NewBackend(c, st, external.WithUsage(usage))
	if err != nil {
		return err
	}

	confirmer, closeConfirmer, err := newConfirmer(cmd.Flags(), c, usage, in, os.Stdout)
	if err != nil {
		return err
	}
	defer closeConfirmer()

	driver, err := pipeline.New(pipeline.Options{
		Config:    c,
		DryRun:    dryRun,
		Confirmer: confirmer,
		Backend:   backend,
		Store:     st,
		Usage:     usage,
	})
	if err != nil {
		return err
	}

	res, err := driver.Run(ctx, paths)
	if err != nil {
		zap.L().Error("dedupe: run failed", zap.String("state", driver.State().String()), zap.Error(err))
		return err
	}

	fmt.Fprintln(os.Stdout)
	return report.WriteText(os.Stdout, res.Report)
}

// applyDedupeFlags copies explicitly set flags over the loaded config.
func applyDedupeFlags(f *pflag.FlagSet, c *config.Config) error {
	if f.Changed("backend") {
		c.External.Backend, _ = f.GetString("backend")
	}
	if f.Changed("keep-originals") {
		c.KeepOriginals, _ = f.GetBool("keep-originals")
	}
	if f.Changed("merged-dir") {
		c.MergedDir, _ = f.GetString("merged-dir")
	}
	if f.Changed("report") {
		c.ReportFile, _ = f.GetString("report")
		if !f.Changed("report-format") {
			c.ReportFormat = ""
		}
	}
	if f.Changed("report-format") {
		c.ReportFormat, _ = f.GetString("report-format")
	}
	c.ReportFormat = c.ResolveReportFormat()
	if f.Changed("blocking") {
		c.Blocking, _ = f.GetString("blocking")
	}
	if f.Changed("workers") {
		c.Workers, _ = f.GetInt("workers")
	}

	policy, _ := f.GetString("policy")
	advisor, _ := f.GetBool("advisor")
	if policy != "" {
		if _, ok := pipeline.ParseDecision(policy); !ok {
			return eris.Errorf("invalid --policy %q: must be accept, reject or skip", policy)
		}
		if advisor {
			return eris.New("--policy and --advisor cannot be combined")
		}
	}
	return nil
}

// newConfirmer picks how possible duplicates are decided. The returned
// function releases whatever the confirmer holds open.
func newConfirmer(f *pflag.FlagSet, c config.Config, usage *cost.Tracker, in io.Reader, out io.Writer) (pipeline.Confirmer, func(), error) {
	noop := func() {}

	if policy, _ := f.GetString("policy"); policy != "" {
		d, _ := pipeline.ParseDecision(policy)
		return pipeline.PolicyConfirmer(d), noop, nil
	}

	if advisor, _ := f.GetBool("advisor"); advisor {
		adv, err := external.NewAdvisor(c, external.WithUsage(usage))
		if err != nil {
			return nil, noop, err
		}
		log, err := external.OpenDecisionLog(c.External.DecisionLog)
		if err != nil {
			return nil, noop, eris.Wrap(err, "open decision log")
		}
		zap.L().Info("dedupe: possible duplicates decided by advisor",
			zap.String("advisor", adv.Name()),
			zap.String("decision_log", c.External.DecisionLog),
		)
		return pipeline.NewAdvisorConfirmer(adv, log), func() { _ = log.Close() }, nil
	}

	if nonInteractive, _ := f.GetBool("non-interactive"); nonInteractive {
		return nil, noop, nil
	}
	return prompt.NewTerminal(in, out), noop, nil
}

// askDirectory prompts for the directory to scan.
func askDirectory(in *bufio.Reader, out io.Writer) (string, error) {
	fmt.Fprint(out, "Enter the directory containing vCard files: ")
	line, err := in.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", eris.Wrap(err, "read directory")
	}
	dir := strings.TrimSpace(line)
	if dir == "" {
		return "", eris.New("no directory given")
	}
	info, err := os.Stat(dir)
	if err != nil {
		return "", eris.Wrapf(err, "directory %s", dir)
	}
	if !info.IsDir() {
		return "", eris.Errorf("%s is not a directory", dir)
	}
	return dir, nil
}
