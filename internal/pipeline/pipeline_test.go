package pipeline

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mdtools/linkrefresh/internal/model"
	"github.com/mdtools/linkrefresh/internal/report"
	"github.com/mdtools/linkrefresh/internal/search"
	"github.com/mdtools/linkrefresh/internal/staleness"
	"github.com/mdtools/linkrefresh/pkg/youtube"
)

// fakeClient implements youtube.Client for pipeline tests. The snippet-only
// Videos call serves the staleness path; the full-parts call serves search
// metadata. Safe for concurrent use.
type fakeClient struct {
	mu            sync.Mutex
	pubByID       map[string]time.Time
	metaByID      map[string]youtube.Video
	searchByQuery map[string][]youtube.SearchItem
	snippetCalls  int
	snippetErrIDs map[string]error
}

func (f *fakeClient) Search(ctx context.Context, query string, opts ...youtube.SearchOption) ([]youtube.SearchItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.searchByQuery[query], nil
}

func (f *fakeClient) Videos(ctx context.Context, ids []string, parts ...string) ([]youtube.Video, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if len(parts) == 1 && parts[0] == "snippet" {
		f.snippetCalls++
		var out []youtube.Video
		for _, id := range ids {
			if err, bad := f.snippetErrIDs[id]; bad {
				return nil, err
			}
			if at, ok := f.pubByID[id]; ok {
				out = append(out, youtube.Video{ID: id, PublishedAt: at})
			}
		}
		return out, nil
	}

	var out []youtube.Video
	for _, id := range ids {
		if v, ok := f.metaByID[id]; ok {
			out = append(out, v)
		}
	}
	return out, nil
}

func (f *fakeClient) Playlists(ctx context.Context, ids []string) ([]youtube.Playlist, error) {
	return nil, nil
}

func clock2024() time.Time {
	return time.Date(2024, time.June, 15, 0, 0, 0, 0, time.UTC)
}

func newTestPipeline(t *testing.T, fsys afero.Fs, client youtube.Client, writer *report.Writer) *Pipeline {
	t.Helper()
	oracle := staleness.NewOracle(client, 3, staleness.WithClock(clock2024))
	finder := search.NewFinder(client, search.Config{}, search.WithClock(clock2024))
	return New(fsys, oracle, finder, writer, "test-run", model.ModeDryRun, 4)
}

func writeDoc(t *testing.T, fsys afero.Fs, path, text string) {
	t.Helper()
	require.NoError(t, afero.WriteFile(fsys, path, []byte(text), 0o644))
}

func TestRunScenarioStaleLinkUpdated(t *testing.T) {
	fsys := afero.NewMemMapFs()
	writeDoc(t, fsys, "notes/lesson.md",
		"# Lesson\n[Intro](https://www.youtube.com/watch?v=abc123)\n")

	client := &fakeClient{
		pubByID: map[string]time.Time{
			"abc123": time.Date(2019, time.July, 10, 0, 0, 0, 0, time.UTC),
		},
		searchByQuery: map[string][]youtube.SearchItem{
			"Intro": {{ID: "xyz987", Title: "Intro Tutorial"}},
		},
		metaByID: map[string]youtube.Video{
			"xyz987": {ID: "xyz987", Title: "Intro Tutorial", Duration: "PT12M30S", ViewCount: 500},
		},
	}

	p := newTestPipeline(t, fsys, client, nil)
	rep, err := p.Run(context.Background(), []string{"notes/lesson.md"})
	require.NoError(t, err)

	require.Len(t, rep.Documents, 1)
	doc := rep.Documents[0]
	assert.Equal(t, "notes/lesson.md", doc.Path)
	assert.Equal(t, "notes", doc.Folder)

	require.Len(t, doc.Updates, 1)
	u := doc.Updates[0]
	assert.Equal(t, "Intro", u.OldName)
	assert.Equal(t, "Intro Tutorial", u.NewName)
	assert.Equal(t, "https://www.youtube.com/watch?v=xyz987", u.NewURL)
	assert.Equal(t, "PT12M30S", u.Duration)
	assert.Equal(t, StatusUpdated, u.Status)
}

func TestRunNoSearchResultStatus(t *testing.T) {
	fsys := afero.NewMemMapFs()
	writeDoc(t, fsys, "doc.md", "[Intro](https://www.youtube.com/watch?v=abc123)\n")

	client := &fakeClient{
		pubByID: map[string]time.Time{
			"abc123": time.Date(2019, time.July, 10, 0, 0, 0, 0, time.UTC),
		},
		searchByQuery: map[string][]youtube.SearchItem{},
	}

	p := newTestPipeline(t, fsys, client, nil)
	rep, err := p.Run(context.Background(), []string{"doc.md"})
	require.NoError(t, err)

	require.Len(t, rep.Documents, 1)
	u := rep.Documents[0].Updates[0]
	assert.Empty(t, u.NewURL)
	assert.Empty(t, u.NewName)
	assert.Equal(t, "no search result for 'Intro'", u.Status)
}

func TestRunOmitsDocumentsWithoutStaleLinks(t *testing.T) {
	fsys := afero.NewMemMapFs()
	writeDoc(t, fsys, "nolinks.md", "just prose, no references\n")
	writeDoc(t, fsys, "fresh.md", "[New](https://www.youtube.com/watch?v=new001)\n")

	client := &fakeClient{
		pubByID: map[string]time.Time{
			"new001": time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC),
		},
	}

	p := newTestPipeline(t, fsys, client, nil)
	rep, err := p.Run(context.Background(), []string{"nolinks.md", "fresh.md"})
	require.NoError(t, err)
	assert.Empty(t, rep.Documents)
}

func TestRunCacheSharedAcrossDocuments(t *testing.T) {
	fsys := afero.NewMemMapFs()
	writeDoc(t, fsys, "a.md", "[New](https://www.youtube.com/watch?v=shared1)\n")
	writeDoc(t, fsys, "b.md", "[New again](https://www.youtube.com/watch?v=shared1)\n")

	client := &fakeClient{
		pubByID: map[string]time.Time{
			"shared1": time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC),
		},
	}

	p := newTestPipeline(t, fsys, client, nil)
	_, err := p.Run(context.Background(), []string{"a.md", "b.md"})
	require.NoError(t, err)
	assert.Equal(t, 1, client.snippetCalls, "second document must hit the cache")
}

func TestRunPreservesExtractionOrder(t *testing.T) {
	fsys := afero.NewMemMapFs()
	writeDoc(t, fsys, "doc.md",
		"[Alpha Lesson](https://www.youtube.com/watch?v=a1)\n"+
			"[Beta Lesson](https://www.youtube.com/watch?v=b1)\n"+
			"[Gamma Lesson](https://www.youtube.com/watch?v=c1)\n")

	old := time.Date(2018, time.March, 1, 0, 0, 0, 0, time.UTC)
	client := &fakeClient{
		pubByID: map[string]time.Time{"a1": old, "b1": old, "c1": old},
		searchByQuery: map[string][]youtube.SearchItem{
			"Alpha Lesson": {{ID: "na", Title: "Alpha Lesson Updated"}},
			"Beta Lesson":  {{ID: "nb", Title: "Beta Lesson Updated"}},
			"Gamma Lesson": {{ID: "nc", Title: "Gamma Lesson Updated"}},
		},
		metaByID: map[string]youtube.Video{
			"na": {ID: "na", Title: "Alpha Lesson Updated", Duration: "PT10M"},
			"nb": {ID: "nb", Title: "Beta Lesson Updated", Duration: "PT10M"},
			"nc": {ID: "nc", Title: "Gamma Lesson Updated", Duration: "PT10M"},
		},
	}

	p := newTestPipeline(t, fsys, client, nil)
	rep, err := p.Run(context.Background(), []string{"doc.md"})
	require.NoError(t, err)

	require.Len(t, rep.Documents, 1)
	updates := rep.Documents[0].Updates
	require.Len(t, updates, 3)
	assert.Equal(t, "Alpha Lesson", updates[0].OldName)
	assert.Equal(t, "Beta Lesson", updates[1].OldName)
	assert.Equal(t, "Gamma Lesson", updates[2].OldName)
}

func TestRunQuotaErrorAbortsButKeepsPriorReport(t *testing.T) {
	fsys := afero.NewMemMapFs()
	writeDoc(t, fsys, "first.md", "[Old A](https://www.youtube.com/watch?v=a1)\n")
	writeDoc(t, fsys, "second.md", "[Old B](https://www.youtube.com/watch?v=b1)\n")

	client := &fakeClient{
		pubByID: map[string]time.Time{
			"a1": time.Date(2018, time.March, 1, 0, 0, 0, 0, time.UTC),
		},
		searchByQuery: map[string][]youtube.SearchItem{
			"Old A": {{ID: "na", Title: "Old A Revisited"}},
		},
		metaByID: map[string]youtube.Video{
			"na": {ID: "na", Title: "Old A Revisited", Duration: "PT8M"},
		},
		snippetErrIDs: map[string]error{
			"b1": &youtube.APIError{StatusCode: 403, Code: 403, Message: "quota exceeded", Reasons: []string{"quotaExceeded"}},
		},
	}

	writer, err := report.NewWriter(fsys, ".", model.ModeDryRun,
		time.Date(2024, time.June, 15, 0, 0, 0, 0, time.UTC), "test-run")
	require.NoError(t, err)

	p := newTestPipeline(t, fsys, client, writer)

	rep, runErr := p.Run(context.Background(), []string{"first.md", "second.md"})
	require.Error(t, runErr)
	assert.ErrorIs(t, runErr, youtube.ErrQuotaExceeded)
	require.NotNil(t, rep)
	require.Len(t, rep.Documents, 1, "only the document processed before the abort")

	// The first document's block is already on disk.
	content, err := afero.ReadFile(fsys, writer.Path())
	require.NoError(t, err)
	assert.Contains(t, string(content), "first.md")
	assert.Contains(t, string(content), "Old A Revisited")
	assert.NotContains(t, string(content), "second.md")
}

func TestRunUnreadableDocumentSkipped(t *testing.T) {
	fsys := afero.NewMemMapFs()
	writeDoc(t, fsys, "ok.md", "plain text\n")

	client := &fakeClient{}
	p := newTestPipeline(t, fsys, client, nil)

	rep, err := p.Run(context.Background(), []string{"missing.md", "ok.md"})
	require.NoError(t, err)
	assert.Empty(t, rep.Documents)
}
