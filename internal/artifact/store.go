// Package artifact keeps uploaded files on disk for the lifetime of
// their job. The cleanup sweeper removes a job's artifact when the job
// is reclaimed, and PruneToSize caps total disk usage between sweeps.
package artifact

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/google/uuid"
)

// Store writes one file per job id under a single directory.
type Store struct {
	dir      string
	maxTotal int64
}

// NewStore creates the artifact directory if needed.
func NewStore(dir string, maxTotal int64) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create artifact dir: %w", err)
	}
	return &Store{dir: dir, maxTotal: maxTotal}, nil
}

// Save persists data for jobID, keeping the original extension.
func (s *Store) Save(jobID uuid.UUID, filename string, data []byte) (string, error) {
	ext := filepath.Ext(filename)
	if ext == "" || len(ext) > 8 || strings.ContainsAny(ext, "/\\") {
		ext = ".bin"
	}
	path := filepath.Join(s.dir, jobID.String()+ext)
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return "", fmt.Errorf("write artifact: %w", err)
	}
	return path, nil
}

// Remove deletes jobID's artifact. Removing an id that has no artifact
// is a no-op, so sweep retries stay idempotent.
func (s *Store) Remove(jobID uuid.UUID) error {
	matches, err := filepath.Glob(filepath.Join(s.dir, jobID.String()+".*"))
	if err != nil {
		return err
	}
	for _, m := range matches {
		if err := os.Remove(m); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("remove artifact: %w", err)
		}
	}
	return nil
}

// PruneToSize deletes the oldest artifacts first until the directory is
// within the configured byte cap. Returns the number of files deleted.
func (s *Store) PruneToSize() (int, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return 0, fmt.Errorf("read artifact dir: %w", err)
	}

	type file struct {
		path  string
		size  int64
		mtime int64
	}
	var (
		files []file
		total int64
	)
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		files = append(files, file{
			path:  filepath.Join(s.dir, e.Name()),
			size:  info.Size(),
			mtime: info.ModTime().UnixNano(),
		})
		total += info.Size()
	}
	if total <= s.maxTotal {
		return 0, nil
	}

	sort.Slice(files, func(i, j int) bool { return files[i].mtime < files[j].mtime })

	deleted := 0
	for _, f := range files {
		if total <= s.maxTotal {
			break
		}
		if err := os.Remove(f.path); err != nil && !os.IsNotExist(err) {
			continue
		}
		total -= f.size
		deleted++
	}
	return deleted, nil
}
