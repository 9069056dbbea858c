package main

import (
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/mdtools/linkrefresh/internal/model"
	"github.com/mdtools/linkrefresh/internal/pipeline"
	"github.com/mdtools/linkrefresh/internal/report"
	"github.com/mdtools/linkrefresh/internal/scan"
	"github.com/mdtools/linkrefresh/internal/search"
	"github.com/mdtools/linkrefresh/internal/staleness"
	"github.com/mdtools/linkrefresh/pkg/youtube"
)

var (
	scanDryRun   bool
	scanNoReport bool
)

var scanCmd = &cobra.Command{
	Use:   "scan [path]",
	Short: "Scan a directory tree for stale YouTube links",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		root := "."
		if len(args) == 1 {
			root = args[0]
		}
		info, err := os.Stat(root)
		if err != nil || !info.IsDir() {
			return eris.Errorf("no such directory: %s", root)
		}

		if cfg.YouTube.Key == "" {
			return eris.New("youtube.key is not configured (set LINKREFRESH_YOUTUBE_KEY)")
		}

		fsys := afero.NewOsFs()

		paths, err := scan.Find(fsys, root, cfg.Scan.Extension, cfg.Scan.ExcludeDirs)
		if err != nil {
			return err
		}

		runID := uuid.NewString()
		mode := model.ModeApply
		if scanDryRun {
			mode = model.ModeDryRun
		}

		log := zap.L().With(zap.String("run_id", runID))
		log.Info("scan: starting",
			zap.String("root", root),
			zap.Int("documents", len(paths)),
			zap.String("mode", string(mode)),
		)

		client := youtube.NewClient(cfg.YouTube.Key,
			youtube.WithBaseURL(cfg.YouTube.BaseURL))

		oracle := staleness.NewOracle(client, cfg.Staleness.MaxAgeYears)
		finder := search.NewFinder(client, search.Config{
			MaxResults:      cfg.Search.MaxResults,
			LookbackYears:   cfg.Staleness.MaxAgeYears,
			MinDuration:     cfg.Search.MinDuration,
			FuzzyThreshold:  cfg.Search.FuzzyThreshold,
			KeywordCoverage: cfg.Search.KeywordCoverage,
		})

		var writer *report.Writer
		if !scanNoReport {
			rep, err := report.NewWriter(fsys, cfg.Report.Dir, mode, time.Now(), runID)
			if err != nil {
				return err
			}
			writer = rep
			log.Info("scan: report file created", zap.String("path", writer.Path()))
		}

		p := pipeline.New(fsys, oracle, finder, writer, runID, mode, cfg.Search.Concurrency)

		result, err := p.Run(ctx, paths)
		if err != nil {
			return eris.Wrap(err, "scan")
		}

		log.Info("scan: complete",
			zap.Int("documents_scanned", len(paths)),
			zap.Int("documents_with_updates", len(result.Documents)),
		)
		return nil
	},
}

func init() {
	scanCmd.Flags().BoolVar(&scanDryRun, "dry-run", false, "report proposed changes without marking the run as an update")
	scanCmd.Flags().BoolVar(&scanNoReport, "no-report", false, "disable report file output")
	rootCmd.AddCommand(scanCmd)
}
