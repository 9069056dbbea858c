// Package youtube provides a client for the YouTube Data API v3.
package youtube

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/mdtools/linkrefresh/internal/retry"
)

// Client defines the Data API operations consumed by the scan pipeline.
type Client interface {
	// Search performs a search.list call and returns result snippets.
	Search(ctx context.Context, query string, opts ...SearchOption) ([]SearchItem, error)
	// Videos performs a videos.list call for the given ids with the given
	// parts (snippet, contentDetails, statistics).
	Videos(ctx context.Context, ids []string, parts ...string) ([]Video, error)
	// Playlists performs a playlists.list call for the given ids.
	Playlists(ctx context.Context, ids []string) ([]Playlist, error)
}

// SearchItem is one search.list result.
type SearchItem struct {
	ID          string
	Kind        string // "youtube#video" or "youtube#playlist"
	Title       string
	PublishedAt time.Time
}

// Video is one videos.list result. Duration is the raw ISO-8601 string;
// ViewCount and LikeCount are zero when the API omits them.
type Video struct {
	ID          string
	Title       string
	PublishedAt time.Time
	Duration    string
	ViewCount   uint64
	LikeCount   uint64
}

// Playlist is one playlists.list result.
type Playlist struct {
	ID          string
	Title       string
	PublishedAt time.Time
}

// SearchOption configures a search.list call.
type SearchOption func(*searchOpts)

type searchOpts struct {
	resultType     string
	order          string
	maxResults     int
	publishedAfter time.Time
}

// WithType restricts results to "video" or "playlist".
func WithType(t string) SearchOption {
	return func(o *searchOpts) { o.resultType = t }
}

// WithOrder sets the result ordering (default "relevance").
func WithOrder(order string) SearchOption {
	return func(o *searchOpts) { o.order = order }
}

// WithMaxResults caps the number of results (API maximum 50).
func WithMaxResults(n int) SearchOption {
	return func(o *searchOpts) { o.maxResults = n }
}

// WithPublishedAfter restricts results to content published after t.
func WithPublishedAfter(t time.Time) SearchOption {
	return func(o *searchOpts) { o.publishedAfter = t }
}

// Option configures the client.
type Option func(*httpClient)

// WithBaseURL sets a custom API base URL (for testing).
func WithBaseURL(base string) Option {
	return func(c *httpClient) { c.baseURL = strings.TrimRight(base, "/") }
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) { c.http = hc }
}

// WithRateLimit overrides the default request rate limiter.
func WithRateLimit(limit rate.Limit, burst int) Option {
	return func(c *httpClient) { c.limiter = rate.NewLimiter(limit, burst) }
}

type httpClient struct {
	apiKey  string
	baseURL string
	http    *http.Client
	limiter *rate.Limiter
}

// NewClient creates a Data API client authenticated with the given key.
func NewClient(apiKey string, opts ...Option) Client {
	c := &httpClient{
		apiKey:  apiKey,
		baseURL: "https://www.googleapis.com/youtube/v3",
		http: &http.Client{
			Timeout: 30 * time.Second,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		limiter: rate.NewLimiter(10, 10),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// retryable reports whether the call should be retried. Quota errors are
// excluded: they never resolve within a run.
func retryable(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return retry.TransientStatus(apiErr.StatusCode) && !errors.Is(err, ErrQuotaExceeded)
	}
	return retry.Transient(err)
}

// get issues a rate-limited GET with exponential backoff on transient
// failures and decodes the API error envelope on non-2xx responses.
func (c *httpClient) get(ctx context.Context, resource string, params url.Values) ([]byte, error) {
	params.Set("key", c.apiKey)
	reqURL := c.baseURL + "/" + resource + "?" + params.Encode()

	cfg := retry.DefaultConfig()
	cfg.ShouldRetry = retryable
	cfg.OnRetry = func(attempt int, err error) {
		zap.L().Warn("retrying request",
			zap.String("resource", resource),
			zap.Int("attempt", attempt),
			zap.Error(err))
	}

	return retry.Do(ctx, cfg, func(ctx context.Context) ([]byte, error) {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, eris.Wrap(err, "youtube: rate limiter wait")
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
		if err != nil {
			return nil, eris.Wrap(err, "youtube: create request")
		}
		req.Header.Set("Accept", "application/json")

		resp, err := c.http.Do(req)
		if err != nil {
			return nil, eris.Wrapf(err, "youtube: %s request", resource)
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, eris.Wrapf(err, "youtube: read %s response", resource)
		}

		if resp.StatusCode != http.StatusOK {
			if apiErr := decodeAPIError(resp.StatusCode, body); apiErr != nil {
				return nil, apiErr
			}
			return nil, eris.Errorf("youtube: %s unexpected status %d: %s", resource, resp.StatusCode, string(body))
		}

		return body, nil
	})
}

// --- wire types ---

type searchResponse struct {
	Items []struct {
		ID struct {
			Kind       string `json:"kind"`
			VideoID    string `json:"videoId"`
			PlaylistID string `json:"playlistId"`
		} `json:"id"`
		Snippet snippet `json:"snippet"`
	} `json:"items"`
}

type snippet struct {
	Title       string    `json:"title"`
	PublishedAt time.Time `json:"publishedAt"`
}

type videoListResponse struct {
	Items []struct {
		ID             string  `json:"id"`
		Snippet        snippet `json:"snippet"`
		ContentDetails struct {
			Duration string `json:"duration"`
		} `json:"contentDetails"`
		Statistics struct {
			ViewCount string `json:"viewCount"`
			LikeCount string `json:"likeCount"`
		} `json:"statistics"`
	} `json:"items"`
}

type playlistListResponse struct {
	Items []struct {
		ID      string  `json:"id"`
		Snippet snippet `json:"snippet"`
	} `json:"items"`
}

func (c *httpClient) Search(ctx context.Context, query string, opts ...SearchOption) ([]SearchItem, error) {
	so := &searchOpts{
		order:      "relevance",
		maxResults: 50,
	}
	for _, opt := range opts {
		opt(so)
	}

	params := url.Values{}
	params.Set("part", "snippet")
	params.Set("q", query)
	params.Set("order", so.order)
	params.Set("maxResults", strconv.Itoa(so.maxResults))
	if so.resultType != "" {
		params.Set("type", so.resultType)
	}
	if !so.publishedAfter.IsZero() {
		params.Set("publishedAfter", so.publishedAfter.UTC().Format(time.RFC3339))
	}

	body, err := c.get(ctx, "search", params)
	if err != nil {
		return nil, err
	}

	var result searchResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, eris.Wrap(err, "youtube: unmarshal search response")
	}

	items := make([]SearchItem, 0, len(result.Items))
	for _, item := range result.Items {
		id := item.ID.VideoID
		if id == "" {
			id = item.ID.PlaylistID
		}
		if id == "" {
			continue
		}
		items = append(items, SearchItem{
			ID:          id,
			Kind:        item.ID.Kind,
			Title:       item.Snippet.Title,
			PublishedAt: item.Snippet.PublishedAt,
		})
	}
	return items, nil
}

func (c *httpClient) Videos(ctx context.Context, ids []string, parts ...string) ([]Video, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	if len(parts) == 0 {
		parts = []string{"snippet"}
	}

	params := url.Values{}
	params.Set("part", strings.Join(parts, ","))
	params.Set("id", strings.Join(ids, ","))
	params.Set("maxResults", strconv.Itoa(len(ids)))

	body, err := c.get(ctx, "videos", params)
	if err != nil {
		return nil, err
	}

	var result videoListResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, eris.Wrap(err, "youtube: unmarshal videos response")
	}

	videos := make([]Video, 0, len(result.Items))
	for _, item := range result.Items {
		videos = append(videos, Video{
			ID:          item.ID,
			Title:       item.Snippet.Title,
			PublishedAt: item.Snippet.PublishedAt,
			Duration:    item.ContentDetails.Duration,
			ViewCount:   parseCount(item.Statistics.ViewCount),
			LikeCount:   parseCount(item.Statistics.LikeCount),
		})
	}
	return videos, nil
}

func (c *httpClient) Playlists(ctx context.Context, ids []string) ([]Playlist, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	params := url.Values{}
	params.Set("part", "snippet")
	params.Set("id", strings.Join(ids, ","))
	params.Set("maxResults", strconv.Itoa(len(ids)))

	body, err := c.get(ctx, "playlists", params)
	if err != nil {
		return nil, err
	}

	var result playlistListResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, eris.Wrap(err, "youtube: unmarshal playlists response")
	}

	playlists := make([]Playlist, 0, len(result.Items))
	for _, item := range result.Items {
		playlists = append(playlists, Playlist{
			ID:          item.ID,
			Title:       item.Snippet.Title,
			PublishedAt: item.Snippet.PublishedAt,
		})
	}
	return playlists, nil
}

// parseCount converts a statistics value to uint64, treating absent or
// unparseable values as zero.
func parseCount(s string) uint64 {
	if s == "" {
		return 0
	}
	n, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0
	}
	return n
}

// WatchURL returns the canonical watch URL for a video id.
func WatchURL(id string) string {
	return "https://www.youtube.com/watch?v=" + id
}

// PlaylistURL returns the canonical playlist URL for a playlist id.
func PlaylistURL(id string) string {
	return "https://www.youtube.com/playlist?list=" + id
}
