package store

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
)

// FSStore implements the Store interface on the filesystem.
// Results are stored as <baseDir>/results/<id>/result.json.
//
// Writes go through a temp file and a rename, so concurrent readers never see
// a partially written result.
type FSStore struct {
	baseDir string
}

// NewFSStore creates a new filesystem-based store.
// The baseDir will be created if it doesn't exist.
func NewFSStore(baseDir string) (*FSStore, error) {
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create base directory: %w", err)
	}

	return &FSStore{
		baseDir: baseDir,
	}, nil
}

func (fs *FSStore) resultDir(id string) string {
	return filepath.Join(fs.baseDir, "results", id)
}

func (fs *FSStore) resultPath(id string) string {
	return filepath.Join(fs.resultDir(id), "result.json")
}

// SaveResult atomically saves a result.
func (fs *FSStore) SaveResult(id string, result *Result) error {
	if id == "" {
		return fmt.Errorf("id cannot be empty")
	}
	if result == nil {
		return fmt.Errorf("result cannot be nil")
	}
	if result.ID != id {
		return fmt.Errorf("result id %q does not match %q", result.ID, id)
	}
	if err := result.Validate(); err != nil {
		return fmt.Errorf("invalid result: %w", err)
	}

	dir := fs.resultDir(id)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create result directory: %w", err)
	}

	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to serialize result: %w", err)
	}

	tempPath := fs.resultPath(id) + ".tmp"
	if err := os.WriteFile(tempPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write temp result file: %w", err)
	}

	finalPath := fs.resultPath(id)
	if err := os.Rename(tempPath, finalPath); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to rename result file: %w", err)
	}

	slog.Debug("Result saved", "id", id, "path", finalPath)
	return nil
}

// LoadResult retrieves a saved result.
func (fs *FSStore) LoadResult(id string) (*Result, error) {
	if id == "" {
		return nil, fmt.Errorf("id cannot be empty")
	}

	path := fs.resultPath(id)
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, &NotFoundError{ID: id}
	} else if err != nil {
		return nil, fmt.Errorf("failed to read result file: %w", err)
	}

	var result Result
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("failed to deserialize result: %w", err)
	}

	slog.Debug("Result loaded", "id", id, "path", path)
	return &result, nil
}

// ListResults returns metadata for all saved results, oldest first.
// Unreadable entries are skipped with a warning.
func (fs *FSStore) ListResults() ([]ResultInfo, error) {
	resultsDir := filepath.Join(fs.baseDir, "results")

	entries, err := os.ReadDir(resultsDir)
	if os.IsNotExist(err) {
		return []ResultInfo{}, nil
	} else if err != nil {
		return nil, fmt.Errorf("failed to read results directory: %w", err)
	}

	infos := []ResultInfo{}
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}

		id := entry.Name()
		if _, err := os.Stat(fs.resultPath(id)); os.IsNotExist(err) {
			continue
		}

		result, err := fs.LoadResult(id)
		if err != nil {
			slog.Warn("Failed to load result for listing", "id", id, "error", err)
			continue
		}
		infos = append(infos, result.ToInfo())
	}

	sort.Slice(infos, func(i, j int) bool {
		return infos[i].Timestamp.Before(infos[j].Timestamp)
	})

	slog.Debug("Listed results", "count", len(infos))
	return infos, nil
}

// DeleteResult removes a saved result and its directory.
func (fs *FSStore) DeleteResult(id string) error {
	if id == "" {
		return fmt.Errorf("id cannot be empty")
	}

	dir := fs.resultDir(id)
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return &NotFoundError{ID: id}
	} else if err != nil {
		return fmt.Errorf("failed to stat result directory: %w", err)
	}

	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("failed to remove result directory: %w", err)
	}

	slog.Debug("Result deleted", "id", id, "path", dir)
	return nil
}
