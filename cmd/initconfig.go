package main

import (
	"os"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/mdtools/linkrefresh/internal/config"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a starter config.yaml in the current directory",
	RunE: func(cmd *cobra.Command, args []string) error {
		const path = "config.yaml"

		if _, err := os.Stat(path); err == nil {
			return eris.Errorf("%s already exists, refusing to overwrite", path)
		}

		starter := config.Config{
			YouTube: config.YouTubeConfig{
				Key:     "",
				BaseURL: "https://www.googleapis.com/youtube/v3",
			},
			Scan: config.ScanConfig{
				Extension:   ".md",
				ExcludeDirs: []string{"projects", "project", "assignment", "assignments"},
			},
			Staleness: config.StalenessConfig{MaxAgeYears: 3},
			Search: config.SearchConfig{
				MaxResults:      50,
				MinDuration:     5 * time.Minute,
				FuzzyThreshold:  70,
				KeywordCoverage: 0.7,
				Concurrency:     8,
			},
			Report: config.ReportConfig{Dir: "."},
			Log:    config.LogConfig{Level: "info", Format: "json"},
		}

		out, err := yaml.Marshal(starter)
		if err != nil {
			return eris.Wrap(err, "marshal starter config")
		}
		if err := os.WriteFile(path, out, 0o644); err != nil {
			return eris.Wrapf(err, "write %s", path)
		}

		zap.L().Info("starter config written", zap.String("path", path))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(initCmd)
}
