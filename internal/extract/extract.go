// Package extract parses markdown text for YouTube video and playlist
// references.
package extract

import (
	"bufio"
	"net/url"
	"regexp"
	"strings"

	"github.com/mdtools/linkrefresh/internal/model"
)

// linkPattern matches a markdown [label](url) reference whose URL is a
// YouTube watch, playlist, or youtu.be short link.
var linkPattern = regexp.MustCompile(
	`\[([^\]]+)\]\((https?://(?:www\.)?(?:youtube\.com/watch\?[^)]+|youtube\.com/playlist\?[^)]+|youtu\.be/[^)]+))\)`,
)

// indexParam matches the playlist position parameter appended to watch
// URLs; it is stripped so duplicate references normalize to the same URL.
var indexParam = regexp.MustCompile(`&index=\d+`)

// Extract scans document text line by line and returns one LinkRecord per
// matched reference, in first-occurrence order. At most one reference per
// line is recognized; additional references packed onto the same line are
// dropped. References whose URL yields no resource id are skipped.
func Extract(text string) []model.LinkRecord {
	var records []model.LinkRecord

	scanner := bufio.NewScanner(strings.NewReader(text))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		m := linkPattern.FindStringSubmatch(scanner.Text())
		if m == nil {
			continue
		}
		rawURL := indexParam.ReplaceAllString(m[2], "")

		kind := model.KindVideo
		if strings.Contains(rawURL, "/playlist") {
			kind = model.KindPlaylist
		}

		id := resourceID(rawURL, kind)
		if id == "" {
			continue
		}

		records = append(records, model.LinkRecord{
			Name:       m[1],
			Kind:       kind,
			URL:        rawURL,
			ResourceID: id,
		})
	}

	return records
}

// resourceID extracts the video or playlist identifier from a matched URL:
// the v query parameter for watch links, the list parameter for playlist
// links, and the path segment for youtu.be short links.
func resourceID(rawURL string, kind model.Kind) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}

	if strings.HasSuffix(u.Host, "youtu.be") {
		return strings.Trim(u.Path, "/")
	}

	switch kind {
	case model.KindPlaylist:
		return u.Query().Get("list")
	default:
		return u.Query().Get("v")
	}
}
