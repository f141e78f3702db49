package observers

import (
	"errors"
	"os"
	"path/filepath"
	"time"
)

// PurgeArtifacts removes files older than maxAge from each of the given
// artifact directories (timeline traces, usage summaries). Missing
// directories are skipped. Returns the number of files deleted.
func PurgeArtifacts(maxAge time.Duration, dirs ...string) (int, error) {
	if maxAge <= 0 {
		return 0, nil
	}
	var removed int
	var errs error
	cutoff := time.Now().Add(-maxAge)
	for _, dir := range dirs {
		if dir == "" {
			continue
		}
		entries, err := os.ReadDir(dir)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			errs = errors.Join(errs, err)
			continue
		}
		for _, entry := range entries {
			if entry.IsDir() {
				continue
			}
			info, err := entry.Info()
			if err != nil {
				errs = errors.Join(errs, err)
				continue
			}
			if info.ModTime().After(cutoff) {
				continue
			}
			path := filepath.Join(dir, entry.Name())
			if err := os.Remove(path); err != nil {
				errs = errors.Join(errs, err)
				continue
			}
			removed++
		}
	}
	return removed, errs
}
