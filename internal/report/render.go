// Package report renders and writes the per-run update report.
package report

import (
	"fmt"
	"strings"

	isoduration "github.com/sosodev/duration"

	"github.com/mdtools/linkrefresh/internal/model"
)

// Render formats one document's updates as a report block. Pure function
// of its inputs: old name and URL always appear, new name/URL/duration
// only when a replacement was found, and the status line is always
// present, with one blank line between updates.
func Render(doc model.DocumentResult) string {
	var b strings.Builder

	fmt.Fprintf(&b, "File: %s\n\n", doc.Path)
	for _, u := range doc.Updates {
		fmt.Fprintf(&b, "[OLD] %s (%s)\n", u.OldName, u.OldURL)
		if u.Found() {
			fmt.Fprintf(&b, "[NEW] %s (%s)\n", u.NewName, u.NewURL)
			if u.Duration != "" {
				fmt.Fprintf(&b, "Duration: %s\n", formatDuration(u.Duration))
			}
		}
		fmt.Fprintf(&b, "Status: %s\n\n", u.Status)
	}

	return b.String()
}

// formatDuration converts a raw ISO-8601 duration to a readable form,
// falling back to the raw string when it does not parse.
func formatDuration(raw string) string {
	d, err := isoduration.Parse(raw)
	if err != nil {
		return raw
	}
	return d.ToTimeDuration().String()
}
