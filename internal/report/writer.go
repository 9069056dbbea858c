package report

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/afero"

	"github.com/mdtools/linkrefresh/internal/model"
)

const appendFlags = os.O_APPEND | os.O_WRONLY

// Writer appends rendered document blocks to the per-run report file as
// the scan progresses, so content for completed documents survives a
// mid-run fatal abort. A nil *Writer is a no-op sink (--no-report).
type Writer struct {
	fs         afero.Fs
	path       string
	lastFolder string
}

// NewWriter creates the report file for the run and writes the fixed
// header. The filename carries the run mode and date:
// dry_run_<date>.log or update_log_<date>.log.
func NewWriter(fsys afero.Fs, dir string, mode model.Mode, date time.Time, runID string) (*Writer, error) {
	name := fmt.Sprintf("%s_%s.log", mode.FilePrefix(), date.Format("2006-01-02"))
	path := filepath.Join(dir, name)

	header := fmt.Sprintf(
		"=== YouTube Markdown Link Refresher Log ===\nDate: %s\nMode: %s\nRun: %s\n\n",
		date.Format("2006-01-02"), mode.Header(), runID,
	)
	if err := afero.WriteFile(fsys, path, []byte(header), 0o644); err != nil {
		return nil, eris.Wrapf(err, "report: create %s", path)
	}

	return &Writer{fs: fsys, path: path}, nil
}

// Path returns the report file location.
func (w *Writer) Path() string {
	if w == nil {
		return ""
	}
	return w.path
}

// WriteDocument appends one document block, emitting a folder separator
// when the parent folder changes between consecutive documents.
func (w *Writer) WriteDocument(doc model.DocumentResult) error {
	if w == nil {
		return nil
	}

	var block string
	if doc.Folder != w.lastFolder {
		block = fmt.Sprintf("--- %s ---\n\n", doc.Folder)
		w.lastFolder = doc.Folder
	}
	block += Render(doc)

	return w.append(block)
}

func (w *Writer) append(text string) error {
	f, err := w.fs.OpenFile(w.path, appendFlags, 0o644)
	if err != nil {
		return eris.Wrapf(err, "report: open %s", w.path)
	}
	defer f.Close() //nolint:errcheck

	if _, err := f.WriteString(text); err != nil {
		return eris.Wrapf(err, "report: append to %s", w.path)
	}
	return nil
}
