package store

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// FSStore implements the Store interface using filesystem-based persistence.
// Runs are stored in a directory structure: <baseDir>/runs/<id>/
//
// Thread-safety: writes go through a temp file and rename, so concurrent
// readers never see a partial run.json.
type FSStore struct {
	baseDir string // Root directory for all run data (e.g., "./results")
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

// BaseDir returns the root directory of the store
func (fs *FSStore) BaseDir() string {
	return fs.baseDir
}

// runDir returns the directory path for a given run ID.
func (fs *FSStore) runDir(id string) string {
	return runDir(fs.baseDir, id)
}

func runDir(baseDir, id string) string {
	return filepath.Join(baseDir, "runs", id)
}

// runPath returns the path to the run.json file for a run.
func (fs *FSStore) runPath(id string) string {
	return filepath.Join(fs.runDir(id), "run.json")
}

// checkID rejects IDs that would escape the runs directory
func checkID(id string) error {
	if id == "" {
		return fmt.Errorf("run ID cannot be empty")
	}
	if id == "." || id == ".." || strings.ContainsAny(id, `/\`) {
		return fmt.Errorf("invalid run ID %q", id)
	}
	return nil
}

// SaveRun atomically saves a run using the temp file + rename pattern.
func (fs *FSStore) SaveRun(run *Run) error {
	if run == nil {
		return fmt.Errorf("run cannot be nil")
	}
	if err := checkID(run.ID); err != nil {
		return err
	}
	if err := run.Validate(); err != nil {
		return err
	}

	dir := fs.runDir(run.ID)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create run directory: %w", err)
	}

	data, err := encodeRun(run)
	if err != nil {
		return err
	}

	finalPath := fs.runPath(run.ID)
	tempPath := finalPath + ".tmp"
	if err := os.WriteFile(tempPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write temp run file: %w", err)
	}

	if err := os.Rename(tempPath, finalPath); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to rename run file: %w", err)
	}

	slog.Debug("Run saved", "id", run.ID, "path", finalPath)
	return nil
}

// LoadRun retrieves the run with the given ID.
func (fs *FSStore) LoadRun(id string) (*Run, error) {
	if err := checkID(id); err != nil {
		return nil, err
	}

	path := fs.runPath(id)
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, &NotFoundError{ID: id}
	} else if err != nil {
		return nil, fmt.Errorf("failed to read run file: %w", err)
	}

	run, err := decodeRun(data)
	if err != nil {
		return nil, err
	}

	slog.Debug("Run loaded", "id", id, "path", path)
	return run, nil
}

// ListRuns returns metadata for all stored runs, newest first. Unreadable
// runs are logged and skipped.
func (fs *FSStore) ListRuns() ([]RunInfo, error) {
	runsDir := filepath.Join(fs.baseDir, "runs")

	entries, err := os.ReadDir(runsDir)
	if os.IsNotExist(err) {
		return []RunInfo{}, nil
	} else if err != nil {
		return nil, fmt.Errorf("failed to read runs directory: %w", err)
	}

	infos := []RunInfo{}
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}

		id := entry.Name()
		if _, err := os.Stat(fs.runPath(id)); os.IsNotExist(err) {
			continue // a trace without a finished run
		}

		run, err := fs.LoadRun(id)
		if err != nil {
			slog.Warn("Failed to load run for listing", "id", id, "error", err)
			continue
		}
		infos = append(infos, run.ToInfo())
	}
	sortInfos(infos)

	slog.Debug("Listed runs", "count", len(infos))
	return infos, nil
}

// DeleteRun removes the run directory including its trace.
func (fs *FSStore) DeleteRun(id string) error {
	if err := checkID(id); err != nil {
		return err
	}

	dir := fs.runDir(id)
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return &NotFoundError{ID: id}
	} else if err != nil {
		return fmt.Errorf("failed to stat run directory: %w", err)
	}

	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("failed to remove run directory: %w", err)
	}

	slog.Debug("Run deleted", "id", id, "path", dir)
	return nil
}
