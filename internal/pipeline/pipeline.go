// Package pipeline orchestrates the scan: extract links, classify
// staleness, search for replacements, and assemble the run report.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/afero"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/mdtools/linkrefresh/internal/extract"
	"github.com/mdtools/linkrefresh/internal/model"
	"github.com/mdtools/linkrefresh/internal/report"
	"github.com/mdtools/linkrefresh/internal/search"
	"github.com/mdtools/linkrefresh/internal/staleness"
	"github.com/mdtools/linkrefresh/pkg/youtube"
)

// StatusUpdated marks an update for which a replacement was selected.
const StatusUpdated = "updated successfully"

// StatusFetchFailed marks an update whose replacement search failed for a
// reason other than an empty pipeline stage.
const StatusFetchFailed = "failed to fetch data"

// Pipeline owns the per-run collaborators. The staleness oracle's cache is
// shared across all documents of the run and dies with the pipeline.
type Pipeline struct {
	fs          afero.Fs
	oracle      *staleness.Oracle
	finder      *search.Finder
	writer      *report.Writer
	runID       string
	mode        model.Mode
	concurrency int
}

// New creates a Pipeline. writer may be nil to disable report output.
func New(fsys afero.Fs, oracle *staleness.Oracle, finder *search.Finder, writer *report.Writer, runID string, mode model.Mode, concurrency int) *Pipeline {
	if concurrency <= 0 {
		concurrency = 8
	}
	return &Pipeline{
		fs:          fsys,
		oracle:      oracle,
		finder:      finder,
		writer:      writer,
		runID:       runID,
		mode:        mode,
		concurrency: concurrency,
	}
}

// Run processes the documents strictly in input order and returns the run
// report. Documents without stale links are omitted from the report
// entirely: absence of an entry means nothing to update, not not scanned.
// A quota/authorization error from the metadata service aborts the run
// immediately; report content already written for prior documents stays on
// disk.
func (p *Pipeline) Run(ctx context.Context, paths []string) (*model.Report, error) {
	rep := &model.Report{
		RunID: p.runID,
		Mode:  p.mode,
		Date:  time.Now(),
	}

	for _, path := range paths {
		doc, err := p.processDocument(ctx, path)
		if err != nil {
			return rep, err
		}
		if doc == nil {
			continue
		}

		if err := p.writer.WriteDocument(*doc); err != nil {
			zap.L().Warn("pipeline: report write failed",
				zap.String("path", path),
				zap.Error(err),
			)
		}
		rep.Documents = append(rep.Documents, *doc)
	}

	return rep, nil
}

// processDocument runs one document through extract → classify → search.
// Returns nil when the document yields no update results.
func (p *Pipeline) processDocument(ctx context.Context, path string) (*model.DocumentResult, error) {
	log := zap.L().With(zap.String("path", path))

	text, err := afero.ReadFile(p.fs, path)
	if err != nil {
		log.Warn("pipeline: unreadable document, skipping", zap.Error(err))
		return nil, nil
	}

	records := extract.Extract(string(text))
	if len(records) == 0 {
		return nil, nil
	}

	stale, err := p.staleLinks(ctx, records)
	if err != nil {
		return nil, err
	}
	if len(stale) == 0 {
		log.Debug("pipeline: no stale links", zap.Int("links", len(records)))
		return nil, nil
	}

	log.Info("pipeline: searching replacements",
		zap.Int("links", len(records)),
		zap.Int("stale", len(stale)),
	)

	updates, err := p.searchAll(ctx, stale)
	if err != nil {
		return nil, err
	}

	return &model.DocumentResult{
		Path:    path,
		Folder:  filepath.Dir(path),
		Updates: updates,
	}, nil
}

// staleLinks partitions the extracted records, keeping only stale ones in
// extraction order. One batched oracle call is issued per kind present.
func (p *Pipeline) staleLinks(ctx context.Context, records []model.LinkRecord) ([]model.LinkRecord, error) {
	byKind := make(map[model.Kind][]string)
	for _, rec := range records {
		byKind[rec.Kind] = append(byKind[rec.Kind], rec.ResourceID)
	}

	verdicts := make(map[string]bool)
	for kind, ids := range byKind {
		batch, err := p.oracle.ClassifyBatch(ctx, ids, kind)
		if err != nil {
			return nil, eris.Wrap(err, "pipeline: classify staleness")
		}
		for id, stale := range batch {
			verdicts[id] = stale
		}
	}

	var stale []model.LinkRecord
	for _, rec := range records {
		if verdicts[rec.ResourceID] {
			stale = append(stale, rec)
		}
	}
	return stale, nil
}

// searchAll dispatches one replacement search per stale link concurrently
// and zips results back positionally, so update order always matches
// extraction order regardless of completion order. Quota errors cancel the
// group and abort the run; everything else degrades to a status line.
func (p *Pipeline) searchAll(ctx context.Context, stale []model.LinkRecord) ([]model.UpdateResult, error) {
	updates := make([]model.UpdateResult, len(stale))

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(p.concurrency)

	for i, rec := range stale {
		g.Go(func() error {
			cand, err := p.finder.FindBest(gCtx, rec.Name, rec.Kind)
			if err != nil && errors.Is(err, youtube.ErrQuotaExceeded) {
				return err
			}
			updates[i] = buildUpdate(rec, cand, err)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, eris.Wrap(err, "pipeline: replacement search")
	}
	return updates, nil
}

// buildUpdate synthesizes the UpdateResult for one stale link.
func buildUpdate(rec model.LinkRecord, cand *search.Candidate, err error) model.UpdateResult {
	u := model.UpdateResult{
		OldName: rec.Name,
		Kind:    rec.Kind,
		OldURL:  rec.URL,
	}

	switch {
	case err == nil:
		u.NewName = cand.Title
		u.NewURL = cand.URL
		u.Duration = cand.Duration
		u.Status = StatusUpdated
	default:
		var noCand *search.NoCandidateError
		if errors.As(err, &noCand) {
			u.Status = fmt.Sprintf("%s for '%s'", noCand.Reason, rec.Name)
		} else {
			zap.L().Warn("pipeline: replacement search failed",
				zap.String("title", rec.Name),
				zap.Error(err),
			)
			u.Status = StatusFetchFailed
		}
	}
	return u
}
