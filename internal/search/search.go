// Package search locates replacement candidates for stale YouTube links.
package search

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/forPelevin/gomoji"
	fuzzy "github.com/paul-mannino/go-fuzzywuzzy"
	"github.com/rotisserie/eris"
	isoduration "github.com/sosodev/duration"
	"go.uber.org/zap"

	"github.com/mdtools/linkrefresh/internal/model"
	"github.com/mdtools/linkrefresh/pkg/youtube"
)

// Candidate is the selected replacement for a stale link. Duration is the
// raw ISO-8601 string and is empty for playlists.
type Candidate struct {
	ID         string
	Title      string
	URL        string
	Duration   string
	Popularity uint64
}

// NoCandidateError reports that the search pipeline produced no survivor.
// It is recoverable: the pipeline turns it into a degraded report entry.
type NoCandidateError struct {
	Reason string
}

func (e *NoCandidateError) Error() string {
	return "search: " + e.Reason
}

// laughingFace marks meme-style titles excluded by the relevance filter.
const laughingFace = "face with tears of joy"

// shortFormMarkers exclude shorts and meme content by title.
var shortFormMarkers = []string{"#shorts", "#meme"}

// Config tunes the search pipeline. Zero values are replaced by defaults
// matching the documented behavior.
type Config struct {
	MaxResults      int           // search.list cap (default 50)
	LookbackYears   int           // publishedAfter window (default 3)
	MinDuration     time.Duration // video duration floor (default 5m)
	FuzzyThreshold  int           // partial-ratio floor, 0-100 (default 70)
	KeywordCoverage float64       // required keyword share (default 0.7)
}

func (c Config) withDefaults() Config {
	if c.MaxResults <= 0 {
		c.MaxResults = 50
	}
	if c.LookbackYears <= 0 {
		c.LookbackYears = 3
	}
	if c.MinDuration <= 0 {
		c.MinDuration = 5 * time.Minute
	}
	if c.FuzzyThreshold <= 0 {
		c.FuzzyThreshold = 70
	}
	if c.KeywordCoverage <= 0 {
		c.KeywordCoverage = 0.7
	}
	return c
}

// Finder runs the five-stage replacement pipeline: search, keyword
// extraction, relevance filter, duration filter (videos), best-of
// selection.
type Finder struct {
	client youtube.Client
	cfg    Config
	now    func() time.Time
}

// Option configures a Finder.
type Option func(*Finder)

// WithClock overrides the wall clock (for tests).
func WithClock(now func() time.Time) Option {
	return func(f *Finder) { f.now = now }
}

// NewFinder creates a Finder backed by the given client.
func NewFinder(client youtube.Client, cfg Config, opts ...Option) *Finder {
	f := &Finder{
		client: client,
		cfg:    cfg.withDefaults(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// FindBest returns the single best replacement candidate for the given
// title, or a *NoCandidateError when any stage leaves no survivor. Stages
// short-circuit: a failed relevance filter issues no metadata call.
func (f *Finder) FindBest(ctx context.Context, title string, kind model.Kind) (*Candidate, error) {
	resultType := "video"
	if kind == model.KindPlaylist {
		resultType = "playlist"
	}

	// Stage 1: search, restricted to the lookback window.
	publishedAfter := f.now().AddDate(-f.cfg.LookbackYears, 0, 0)
	items, err := f.client.Search(ctx, RewriteQuery(title),
		youtube.WithType(resultType),
		youtube.WithOrder("relevance"),
		youtube.WithMaxResults(f.cfg.MaxResults),
		youtube.WithPublishedAfter(publishedAfter),
	)
	if err != nil {
		return nil, eris.Wrapf(err, "search %q", title)
	}
	if len(items) == 0 {
		return nil, &NoCandidateError{Reason: "no search result"}
	}

	// Stages 2-3: keyword extraction and relevance filter.
	keywords := Keywords(title)
	relevant := f.filterRelevant(items, keywords)
	if len(relevant) == 0 {
		return nil, &NoCandidateError{Reason: "no relevant search"}
	}

	if kind == model.KindPlaylist {
		// Playlists carry no duration or statistics; the first relevant
		// result wins.
		best := relevant[0]
		return &Candidate{
			ID:    best.ID,
			Title: best.Title,
			URL:   youtube.PlaylistURL(best.ID),
		}, nil
	}

	// Stage 4: duration filter over full metadata.
	survivors, err := f.filterDuration(ctx, relevant)
	if err != nil {
		return nil, eris.Wrapf(err, "fetch metadata for %q", title)
	}
	if len(survivors) == 0 {
		reason := fmt.Sprintf("no relevant video content that is >= %d mins",
			int(f.cfg.MinDuration.Minutes()))
		return nil, &NoCandidateError{Reason: reason}
	}

	// Stage 5: best-of by popularity, first maximum wins.
	best := survivors[0]
	for _, v := range survivors[1:] {
		if v.popularity() > best.popularity() {
			best = v
		}
	}
	return &Candidate{
		ID:         best.ID,
		Title:      best.Title,
		URL:        youtube.WatchURL(best.ID),
		Duration:   best.Duration,
		Popularity: best.popularity(),
	}, nil
}

type scoredVideo struct {
	youtube.Video
}

func (v scoredVideo) popularity() uint64 {
	return v.ViewCount + v.LikeCount
}

// filterRelevant drops emoji/short-form titles and keeps candidates whose
// titles fuzzy-match enough of the keywords. Encounter order is preserved.
func (f *Finder) filterRelevant(items []youtube.SearchItem, keywords []string) []youtube.SearchItem {
	required := 1
	if n := int(math.Ceil(f.cfg.KeywordCoverage * float64(len(keywords)))); n > required {
		required = n
	}

	var kept []youtube.SearchItem
	for _, item := range items {
		if isShortForm(item.Title) {
			continue
		}
		lower := strings.ToLower(item.Title)
		matched := 0
		for _, kw := range keywords {
			if fuzzy.PartialRatio(kw, lower) >= f.cfg.FuzzyThreshold {
				matched++
			}
		}
		if matched >= required {
			kept = append(kept, item)
		}
	}
	return kept
}

// isShortForm reports whether a title carries meme or shorts markers: the
// laughing-face emoji or a #shorts/#meme tag.
func isShortForm(title string) bool {
	lower := strings.ToLower(title)
	for _, marker := range shortFormMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	for _, e := range gomoji.CollectAll(title) {
		if e.Slug == "face-with-tears-of-joy" || strings.EqualFold(e.UnicodeName, laughingFace) {
			return true
		}
	}
	return false
}

// filterDuration fetches full metadata for the relevant videos and keeps
// those at or above the duration floor, in search encounter order. Items
// with missing or unparseable durations are skipped with a log line rather
// than failing the whole lookup.
func (f *Finder) filterDuration(ctx context.Context, items []youtube.SearchItem) ([]scoredVideo, error) {
	ids := make([]string, len(items))
	for i, item := range items {
		ids[i] = item.ID
	}

	videos, err := f.client.Videos(ctx, ids, "snippet", "contentDetails", "statistics")
	if err != nil {
		return nil, err
	}

	byID := make(map[string]youtube.Video, len(videos))
	for _, v := range videos {
		byID[v.ID] = v
	}

	var survivors []scoredVideo
	for _, id := range ids {
		v, ok := byID[id]
		if !ok {
			continue
		}
		if v.Duration == "" {
			zap.L().Warn("search: video metadata missing duration, skipping",
				zap.String("id", v.ID))
			continue
		}
		d, err := isoduration.Parse(v.Duration)
		if err != nil {
			zap.L().Warn("search: unparseable video duration, skipping",
				zap.String("id", v.ID),
				zap.String("duration", v.Duration),
				zap.Error(err),
			)
			continue
		}
		if d.ToTimeDuration() >= f.cfg.MinDuration {
			survivors = append(survivors, scoredVideo{Video: v})
		}
	}
	return survivors, nil
}
