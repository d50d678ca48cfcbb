package report

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
)

// DiskStore writes each RunResult as an indented JSON file.
type DiskStore struct {
	mu  sync.Mutex
	dir string
}

// NewDiskStore stores results in dir. When dir is empty a temporary
// directory is created on first use.
func NewDiskStore(dir string) *DiskStore {
	return &DiskStore{dir: dir}
}

// Dir returns the directory results are written to, creating it if needed.
func (s *DiskStore) Dir() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.dir == "" {
		dir, err := os.MkdirTemp("", "barnhunt-runs-*")
		if err != nil {
			return "", fmt.Errorf("creating result directory: %w", err)
		}
		s.dir = dir
		return dir, nil
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return "", fmt.Errorf("creating result directory: %w", err)
	}
	return s.dir, nil
}

// Save writes result to <dir>/<id>.json.
func (s *DiskStore) Save(result *RunResult) error {
	dir, err := s.Dir()
	if err != nil {
		return err
	}
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("marshalling result %s: %w", result.ID, err)
	}
	if err := os.WriteFile(filepath.Join(dir, result.ID+".json"), data, 0o644); err != nil {
		return fmt.Errorf("writing result %s: %w", result.ID, err)
	}
	return nil
}

// Load reads the result saved under runID.
func (s *DiskStore) Load(runID string) (*RunResult, error) {
	if runID == "" || filepath.Base(runID) != runID {
		return nil, fmt.Errorf("invalid run id %q", runID)
	}
	dir, err := s.Dir()
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(filepath.Join(dir, runID+".json"))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("run %s: %w", runID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("reading result %s: %w", runID, err)
	}
	var result RunResult
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("unmarshalling result %s: %w", runID, err)
	}
	return &result, nil
}
