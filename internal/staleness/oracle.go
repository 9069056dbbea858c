// Package staleness classifies YouTube resources as stale or fresh by
// publication recency.
package staleness

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/mdtools/linkrefresh/internal/model"
	"github.com/mdtools/linkrefresh/pkg/youtube"
)

// Oracle batch-classifies resource ids against the metadata service and
// memoizes verdicts for the lifetime of the run. The cache guarantees at
// most one upstream lookup per distinct id per run; it is owned by the
// oracle and discarded with it.
type Oracle struct {
	client      youtube.Client
	maxAgeYears int
	now         func() time.Time
	cache       map[string]bool
}

// Option configures an Oracle.
type Option func(*Oracle)

// WithClock overrides the wall clock (for tests).
func WithClock(now func() time.Time) Option {
	return func(o *Oracle) { o.now = now }
}

// NewOracle creates an Oracle. A resource is stale when the calendar-year
// difference between now and its publication date is at least maxAgeYears.
func NewOracle(client youtube.Client, maxAgeYears int, opts ...Option) *Oracle {
	o := &Oracle{
		client:      client,
		maxAgeYears: maxAgeYears,
		now:         time.Now,
		cache:       make(map[string]bool),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// ClassifyBatch returns a stale verdict for every id in the batch.
//
// Ids already cached are answered without an upstream call; if nothing
// remains after the cache pass, no call is issued at all. Ids absent from
// the upstream response (deleted or private content) are fresh: absence is
// not evidence of staleness. A transport failure downgrades the whole
// remaining batch to fresh with a warning, so a network blip never
// triggers an unwanted replacement search. Quota or authorization errors
// propagate and must abort the run.
func (o *Oracle) ClassifyBatch(ctx context.Context, ids []string, kind model.Kind) (map[string]bool, error) {
	verdicts := make(map[string]bool, len(ids))

	var missing []string
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if stale, ok := o.cache[id]; ok {
			verdicts[id] = stale
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		missing = append(missing, id)
	}

	if len(missing) == 0 {
		return verdicts, nil
	}

	published, err := o.lookup(ctx, missing, kind)
	if err != nil {
		if errors.Is(err, youtube.ErrQuotaExceeded) {
			return nil, err
		}
		zap.L().Warn("staleness: lookup unreachable, treating batch as fresh",
			zap.Int("ids", len(missing)),
			zap.String("kind", string(kind)),
			zap.Error(err),
		)
		for _, id := range missing {
			o.cache[id] = false
			verdicts[id] = false
		}
		return verdicts, nil
	}

	currentYear := o.now().Year()
	for _, id := range missing {
		stale := false
		if at, ok := published[id]; ok {
			stale = currentYear-at.Year() >= o.maxAgeYears
		}
		o.cache[id] = stale
		verdicts[id] = stale
	}

	return verdicts, nil
}

// lookup fetches publication dates for the batch, keyed by id.
func (o *Oracle) lookup(ctx context.Context, ids []string, kind model.Kind) (map[string]time.Time, error) {
	published := make(map[string]time.Time, len(ids))

	if kind == model.KindPlaylist {
		playlists, err := o.client.Playlists(ctx, ids)
		if err != nil {
			return nil, err
		}
		for _, p := range playlists {
			published[p.ID] = p.PublishedAt
		}
		return published, nil
	}

	videos, err := o.client.Videos(ctx, ids, "snippet")
	if err != nil {
		return nil, err
	}
	for _, v := range videos {
		published[v.ID] = v.PublishedAt
	}
	return published, nil
}
