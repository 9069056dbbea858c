package main

import (
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/mdtools/linkrefresh/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "linkrefresh",
	Short: "Find and propose replacements for stale YouTube links in markdown trees",
	Long:  "Scans a directory of markdown documents for YouTube video and playlist links, checks publication recency against the Data API, searches for modern replacements, and writes a per-run report of proposed substitutions. Source documents are never modified.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return eris.Wrap(err, "load config")
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return eris.Wrap(err, "init logger")
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
