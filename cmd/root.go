package main

import (
	"os"

	"github.com/joho/godotenv"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/vcf-dupe/internal/config"
)

var (
	cfg        *config.Config
	configPath string
)

var rootCmd = &cobra.Command{
	Use:   "vcf-dupe",
	Short: "Find and merge duplicate contacts in vCard files",
	Long: `Scans .vcf files for contacts that describe the same person, scores every
candidate pair and merges duplicates without losing data. Pairs above the
auto-merge threshold are merged automatically; pairs in the possible-duplicate
band are confirmed interactively, by policy, or by an LLM advisor.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// API keys may live in a local .env file.
		_ = godotenv.Load()

		c, err := config.Load(configPath)
		if err != nil {
			return eris.Wrap(err, "load config")
		}
		cfg = c
		if err := config.InitLogger(*cfg); err != nil {
			return eris.Wrap(err, "init logger")
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "",
		"config file (default ./"+config.DefaultFileName+".yaml)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
