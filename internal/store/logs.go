package store

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/kilnworks/autodev/internal/model"
)

const (
	legacyLogsFile = "logs.json"
	logsFile       = "logs.jsonl"
)

// AppendLog appends one LogEntry as a single JSON line. Thinking entries
// (temporary=true) are never passed here; callers broadcast them directly
// without persisting, per the "temporary log" design note.
func (s *Store) AppendLog(projectID string, entry model.LogEntry) error {
	lock := s.lockFor(projectID)
	lock.Lock()
	defer lock.Unlock()

	if err := s.ensureProjectDir(projectID); err != nil {
		return err
	}
	if err := s.migrateLegacyLogsLocked(projectID); err != nil {
		return err
	}

	path := filepath.Join(s.ProjectDir(projectID), logsFile)
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("store: open %s: %w", logsFile, err)
	}
	defer f.Close()

	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("store: marshal log entry: %w", err)
	}
	if _, err := f.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("store: append log entry: %w", err)
	}
	return nil
}

// ReadLogs returns up to model.MaxLogLines entries, most-recent-last,
// silently skipping malformed lines. If the file holds more than the cap,
// it is opportunistically rewritten to just the last model.MaxLogLines
// entries (invariant 5).
func (s *Store) ReadLogs(projectID string) ([]model.LogEntry, error) {
	lock := s.lockFor(projectID)
	lock.Lock()
	defer lock.Unlock()

	if err := s.migrateLegacyLogsLocked(projectID); err != nil {
		return nil, err
	}

	path := filepath.Join(s.ProjectDir(projectID), logsFile)
	entries, overflowed, err := readLogLines(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	if overflowed {
		if err := rewriteLogLines(path, entries); err != nil {
			return nil, err
		}
	}
	return entries, nil
}

// readLogLines parses every well-formed line, then caps to the last
// model.MaxLogLines entries. overflowed reports whether the file held
// more lines than the cap (whether or not every line parsed).
func readLogLines(path string) ([]model.LogEntry, bool, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, false, err
	}
	defer f.Close()

	var entries []model.LogEntry
	lineCount := 0

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		lineCount++
		var e model.LogEntry
		if err := json.Unmarshal(line, &e); err != nil {
			continue // malformed lines from prior writers are silently skipped
		}
		entries = append(entries, e)
	}
	if err := scanner.Err(); err != nil {
		return nil, false, err
	}

	overflowed := lineCount > model.MaxLogLines
	if len(entries) > model.MaxLogLines {
		entries = entries[len(entries)-model.MaxLogLines:]
	}
	return entries, overflowed, nil
}

func rewriteLogLines(path string, entries []model.LogEntry) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".logs.jsonl.tmp-*")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	w := bufio.NewWriter(tmp)
	for _, e := range entries {
		data, err := json.Marshal(e)
		if err != nil {
			tmp.Close()
			return err
		}
		if _, err := w.Write(append(data, '\n')); err != nil {
			tmp.Close()
			return err
		}
	}
	if err := w.Flush(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpPath, path)
}

// migrateLegacyLogsLocked converts a pre-existing single-array logs.json
// into the append-only logs.jsonl form. Idempotent: once logs.jsonl
// exists, or there is no legacy file, it is a no-op. Both files never
// coexist afterward — the legacy file is removed on success.
func (s *Store) migrateLegacyLogsLocked(projectID string) error {
	dir := s.ProjectDir(projectID)
	legacyPath := filepath.Join(dir, legacyLogsFile)
	jsonlPath := filepath.Join(dir, logsFile)

	if _, err := os.Stat(jsonlPath); err == nil {
		return nil // already migrated
	}

	legacyData, err := os.ReadFile(legacyPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil // nothing to migrate
		}
		return err
	}
	if len(legacyData) == 0 {
		return os.Remove(legacyPath)
	}

	var entries []model.LogEntry
	if err := json.Unmarshal(legacyData, &entries); err != nil {
		return fmt.Errorf("store: legacy logs.json is malformed: %w", err)
	}

	if err := rewriteLogLines(jsonlPath, entries); err != nil {
		return err
	}
	return os.Remove(legacyPath)
}
