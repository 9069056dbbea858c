package staleness

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mdtools/linkrefresh/internal/model"
	"github.com/mdtools/linkrefresh/pkg/youtube"
)

// fakeClient implements youtube.Client for oracle tests.
type fakeClient struct {
	videos        map[string]youtube.Video
	playlists     map[string]youtube.Playlist
	videosErr     error
	videoCalls    int
	playlistCalls int
	lastVideoIDs  []string
}

func (f *fakeClient) Search(ctx context.Context, query string, opts ...youtube.SearchOption) ([]youtube.SearchItem, error) {
	return nil, nil
}

func (f *fakeClient) Videos(ctx context.Context, ids []string, parts ...string) ([]youtube.Video, error) {
	f.videoCalls++
	f.lastVideoIDs = ids
	if f.videosErr != nil {
		return nil, f.videosErr
	}
	var out []youtube.Video
	for _, id := range ids {
		if v, ok := f.videos[id]; ok {
			out = append(out, v)
		}
	}
	return out, nil
}

func (f *fakeClient) Playlists(ctx context.Context, ids []string) ([]youtube.Playlist, error) {
	f.playlistCalls++
	var out []youtube.Playlist
	for _, id := range ids {
		if p, ok := f.playlists[id]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

func fixedClock(year int) func() time.Time {
	return func() time.Time {
		return time.Date(year, time.June, 15, 0, 0, 0, 0, time.UTC)
	}
}

func published(year int) time.Time {
	return time.Date(year, time.March, 1, 0, 0, 0, 0, time.UTC)
}

func TestClassifyBatchYearThreshold(t *testing.T) {
	client := &fakeClient{videos: map[string]youtube.Video{
		"old":      {ID: "old", PublishedAt: published(2019)},
		"boundary": {ID: "boundary", PublishedAt: published(2021)},
		"fresh":    {ID: "fresh", PublishedAt: published(2023)},
	}}
	oracle := NewOracle(client, 3, WithClock(fixedClock(2024)))

	verdicts, err := oracle.ClassifyBatch(context.Background(), []string{"old", "boundary", "fresh"}, model.KindVideo)
	require.NoError(t, err)

	assert.True(t, verdicts["old"], "2019 vs 2024 is 5 >= 3")
	assert.True(t, verdicts["boundary"], "2021 vs 2024 is exactly 3")
	assert.False(t, verdicts["fresh"], "2023 vs 2024 is 1")
}

func TestClassifyBatchAbsentIDIsFresh(t *testing.T) {
	client := &fakeClient{videos: map[string]youtube.Video{}}
	oracle := NewOracle(client, 3, WithClock(fixedClock(2024)))

	verdicts, err := oracle.ClassifyBatch(context.Background(), []string{"deleted"}, model.KindVideo)
	require.NoError(t, err)
	assert.False(t, verdicts["deleted"], "absence is not evidence of staleness")
}

func TestClassifyBatchCachesAcrossCalls(t *testing.T) {
	client := &fakeClient{videos: map[string]youtube.Video{
		"a": {ID: "a", PublishedAt: published(2018)},
		"b": {ID: "b", PublishedAt: published(2024)},
	}}
	oracle := NewOracle(client, 3, WithClock(fixedClock(2024)))

	_, err := oracle.ClassifyBatch(context.Background(), []string{"a", "b"}, model.KindVideo)
	require.NoError(t, err)
	require.Equal(t, 1, client.videoCalls)

	// Second batch: one cached id, one new. Only the new id goes upstream.
	verdicts, err := oracle.ClassifyBatch(context.Background(), []string{"a", "b"}, model.KindVideo)
	require.NoError(t, err)
	assert.Equal(t, 1, client.videoCalls, "fully cached batch must skip the upstream call")
	assert.True(t, verdicts["a"])
	assert.False(t, verdicts["b"])

	client.videos["c"] = youtube.Video{ID: "c", PublishedAt: published(2017)}
	_, err = oracle.ClassifyBatch(context.Background(), []string{"a", "c"}, model.KindVideo)
	require.NoError(t, err)
	assert.Equal(t, 2, client.videoCalls)
	assert.Equal(t, []string{"c"}, client.lastVideoIDs, "cached ids are removed from the outgoing batch")
}

func TestClassifyBatchDeduplicatesWithinBatch(t *testing.T) {
	client := &fakeClient{videos: map[string]youtube.Video{
		"a": {ID: "a", PublishedAt: published(2018)},
	}}
	oracle := NewOracle(client, 3, WithClock(fixedClock(2024)))

	_, err := oracle.ClassifyBatch(context.Background(), []string{"a", "a", "a"}, model.KindVideo)
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, client.lastVideoIDs)
}

func TestClassifyBatchUnreachableDefaultsFresh(t *testing.T) {
	client := &fakeClient{videosErr: errors.New("dial tcp: connection refused")}
	oracle := NewOracle(client, 3, WithClock(fixedClock(2024)))

	verdicts, err := oracle.ClassifyBatch(context.Background(), []string{"a", "b"}, model.KindVideo)
	require.NoError(t, err, "transport failure must not abort the run")
	assert.False(t, verdicts["a"])
	assert.False(t, verdicts["b"])

	// The fresh verdicts are cached, so recovery of the network does not
	// re-trigger a lookup within the same run.
	client.videosErr = nil
	_, err = oracle.ClassifyBatch(context.Background(), []string{"a"}, model.KindVideo)
	require.NoError(t, err)
	assert.Equal(t, 1, client.videoCalls)
}

func TestClassifyBatchQuotaErrorIsFatal(t *testing.T) {
	client := &fakeClient{videosErr: &youtube.APIError{StatusCode: 403, Code: 403, Message: "quotaExceeded", Reasons: []string{"quotaExceeded"}}}
	oracle := NewOracle(client, 3, WithClock(fixedClock(2024)))

	_, err := oracle.ClassifyBatch(context.Background(), []string{"a"}, model.KindVideo)
	require.Error(t, err)
	assert.ErrorIs(t, err, youtube.ErrQuotaExceeded)
}

func TestClassifyBatchPlaylists(t *testing.T) {
	client := &fakeClient{playlists: map[string]youtube.Playlist{
		"PLold": {ID: "PLold", PublishedAt: published(2019)},
	}}
	oracle := NewOracle(client, 3, WithClock(fixedClock(2024)))

	verdicts, err := oracle.ClassifyBatch(context.Background(), []string{"PLold"}, model.KindPlaylist)
	require.NoError(t, err)
	assert.True(t, verdicts["PLold"])
	assert.Equal(t, 1, client.playlistCalls)
	assert.Zero(t, client.videoCalls)
}
