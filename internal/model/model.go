// Package model holds the data types shared across the scan pipeline.
package model

import "time"

// Kind classifies a YouTube resource reference.
type Kind string

const (
	KindVideo    Kind = "video"
	KindPlaylist Kind = "playlist"
)

// Mode selects the run mode. It affects only the report filename and
// header; source documents are never modified in either mode.
type Mode string

const (
	ModeDryRun Mode = "dry_run"
	ModeApply  Mode = "apply"
)

// Header returns the mode label used in the report header.
func (m Mode) Header() string {
	if m == ModeApply {
		return "ACTUAL UPDATE"
	}
	return "DRY RUN"
}

// FilePrefix returns the report filename prefix for the mode.
func (m Mode) FilePrefix() string {
	if m == ModeApply {
		return "update_log"
	}
	return "dry_run"
}

// LinkRecord is one YouTube reference extracted from a document.
// Records keep first-occurrence-in-file order; duplicates are permitted.
type LinkRecord struct {
	Name       string
	Kind       Kind
	URL        string
	ResourceID string
}

// UpdateResult is the outcome of processing one stale link. New fields and
// Duration are empty when no replacement was found; Status always explains
// what happened.
type UpdateResult struct {
	OldName  string
	Kind     Kind
	OldURL   string
	NewName  string
	NewURL   string
	Duration string
	Status   string
}

// Found reports whether a replacement link was selected.
func (u UpdateResult) Found() bool {
	return u.NewURL != ""
}

// DocumentResult groups the update results for one scanned document.
type DocumentResult struct {
	Path    string
	Folder  string
	Updates []UpdateResult
}

// Report is the per-run collection of document results, in processing
// order. Only documents with at least one update appear.
type Report struct {
	RunID     string
	Mode      Mode
	Date      time.Time
	Documents []DocumentResult
}
