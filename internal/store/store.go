// Package store is the filesystem-backed persistence layer: one directory
// per project holding full-file JSON documents plus an append-only JSONL
// log stream, and a shared claude-logs directory holding verbatim raw
// child-process transcripts.
package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/kilnworks/autodev/internal/common/logger"
)

// Store owns the data directory and per-project write serialization.
// Each project gets its own mutex so writes to different projects never
// block each other; writes within a project are full-file rewrites and
// must not interleave.
type Store struct {
	dataDir string
	logger  *logger.Logger

	mu       sync.Mutex
	projMu   map[string]*sync.Mutex
}

// New creates a Store rooted at dataDir, creating the directory layout
// if it does not already exist.
func New(dataDir string, log *logger.Logger) (*Store, error) {
	if err := os.MkdirAll(filepath.Join(dataDir, "projects"), 0o755); err != nil {
		return nil, fmt.Errorf("store: create projects dir: %w", err)
	}
	if err := os.MkdirAll(filepath.Join(dataDir, "claude-logs"), 0o755); err != nil {
		return nil, fmt.Errorf("store: create claude-logs dir: %w", err)
	}
	return &Store{
		dataDir: dataDir,
		logger:  log,
		projMu:  make(map[string]*sync.Mutex),
	}, nil
}

// DataDir returns the root data directory.
func (s *Store) DataDir() string {
	return s.dataDir
}

// ClaudeLogsDir returns the directory holding raw per-session transcripts.
func (s *Store) ClaudeLogsDir() string {
	return filepath.Join(s.dataDir, "claude-logs")
}

// ProjectDir returns <dataDir>/projects/<projectID>.
func (s *Store) ProjectDir(projectID string) string {
	return filepath.Join(s.dataDir, "projects", projectID)
}

func (s *Store) lockFor(projectID string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.projMu[projectID]
	if !ok {
		m = &sync.Mutex{}
		s.projMu[projectID] = m
	}
	return m
}

// DeleteProject removes a project's entire directory and drops its lock.
func (s *Store) DeleteProject(projectID string) error {
	lock := s.lockFor(projectID)
	lock.Lock()
	defer lock.Unlock()

	if err := os.RemoveAll(s.ProjectDir(projectID)); err != nil {
		return fmt.Errorf("store: delete project %s: %w", projectID, err)
	}

	s.mu.Lock()
	delete(s.projMu, projectID)
	s.mu.Unlock()
	return nil
}

// ensureProjectDir makes sure <dataDir>/projects/<projectID> exists.
func (s *Store) ensureProjectDir(projectID string) error {
	return os.MkdirAll(s.ProjectDir(projectID), 0o755)
}

// writeJSON performs a full-file, pretty-printed, atomic rewrite of
// <dataDir>/projects/<projectID>/<name> via temp-file-then-rename so a
// crash mid-write never leaves a half-written document.
func (s *Store) writeJSON(projectID, name string, v any) error {
	if err := s.ensureProjectDir(projectID); err != nil {
		return err
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("store: marshal %s: %w", name, err)
	}

	dir := s.ProjectDir(projectID)
	final := filepath.Join(dir, name)

	tmp, err := os.CreateTemp(dir, "."+name+".tmp-*")
	if err != nil {
		return fmt.Errorf("store: create temp for %s: %w", name, err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath) // no-op once the rename below succeeds

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("store: write temp for %s: %w", name, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("store: sync temp for %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("store: close temp for %s: %w", name, err)
	}
	if err := os.Rename(tmpPath, final); err != nil {
		return fmt.Errorf("store: rename into %s: %w", name, err)
	}
	return nil
}

// readJSON loads <dataDir>/projects/<projectID>/<name> into v. A missing
// file is reported via os.IsNotExist on the returned error so callers can
// distinguish "not created yet" from corruption.
func (s *Store) readJSON(projectID, name string, v any) error {
	path := filepath.Join(s.ProjectDir(projectID), name)
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("store: unmarshal %s: %w", name, err)
	}
	return nil
}
