// Package file reads local input files for the extraction pipeline:
// recursive discovery of line-delimited JSON dumps and sequential streaming
// opens with transparent gunzip.
package file

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/bmatcuk/doublestar/v4"
)

// patterns lists the input shapes a task directory may contain.
var patterns = []string{"**/*.jsonl", "**/*.jsonl.gz"}

// Discover returns the input files under dir, recursively, sorted by path.
// Order across files is not observable downstream; sorting just keeps logs
// and scheduling reproducible.
func Discover(dir string) ([]string, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("input dir: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("input dir %s is not a directory", dir)
	}

	fsys := os.DirFS(dir)
	var out []string
	for _, pat := range patterns {
		matches, err := doublestar.Glob(fsys, pat, doublestar.WithFilesOnly())
		if err != nil {
			return nil, fmt.Errorf("glob %s under %s: %w", pat, dir, err)
		}
		for _, m := range matches {
			out = append(out, filepath.Join(dir, filepath.FromSlash(m)))
		}
	}
	sort.Strings(out)
	return out, nil
}
