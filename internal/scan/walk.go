// Package scan enumerates candidate documents under a root directory.
package scan

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/afero"
)

// Find recursively collects files under root carrying the given extension,
// skipping any directory whose name is listed in excludeDirs
// (case-insensitive). The walk is lexical, so the returned order is
// deterministic for an unchanged tree.
func Find(fsys afero.Fs, root, ext string, excludeDirs []string) ([]string, error) {
	excluded := make(map[string]struct{}, len(excludeDirs))
	for _, d := range excludeDirs {
		excluded[strings.ToLower(d)] = struct{}{}
	}

	var paths []string
	err := afero.Walk(fsys, root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			if _, skip := excluded[strings.ToLower(info.Name())]; skip && path != root {
				return filepath.SkipDir
			}
			return nil
		}
		if strings.EqualFold(filepath.Ext(path), ext) {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, eris.Wrapf(err, "scan: walk %s", root)
	}
	return paths, nil
}
