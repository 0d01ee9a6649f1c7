package store

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"
)

// RawLogTailBytes is how much of a raw session transcript is streamed
// back to a client requesting the session's raw log.
const RawLogTailBytes = 200 * 1024

// RawLogPath returns the path a session's verbatim transcript is written
// to: <dataDir>/claude-logs/<sessionID>.log.
func (s *Store) RawLogPath(sessionID string) string {
	return filepath.Join(s.ClaudeLogsDir(), sessionID+".log")
}

// RawLogWriter is an append-only handle onto one session's verbatim
// stdout/stderr transcript.
type RawLogWriter struct {
	f *os.File
}

// OpenRawLog creates (or truncates) the raw log file for a session and
// writes a header line.
func (s *Store) OpenRawLog(sessionID, provider string) (*RawLogWriter, error) {
	path := s.RawLogPath(sessionID)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("store: open raw log: %w", err)
	}
	header := fmt.Sprintf("=== session %s provider=%s started=%s ===\n",
		sessionID, provider, time.Now().UTC().Format(time.RFC3339))
	if _, err := f.WriteString(header); err != nil {
		f.Close()
		return nil, err
	}
	return &RawLogWriter{f: f}, nil
}

// WriteLine appends a line verbatim (newline added).
func (w *RawLogWriter) WriteLine(line string) error {
	_, err := w.f.WriteString(line + "\n")
	return err
}

// WriteStderrLine appends a stderr line prefixed "[STDERR] ".
func (w *RawLogWriter) WriteStderrLine(line string) error {
	_, err := w.f.WriteString("[STDERR] " + line + "\n")
	return err
}

// Close writes a footer and closes the underlying file.
func (w *RawLogWriter) Close(status string) error {
	footer := fmt.Sprintf("=== session ended status=%s ended=%s ===\n",
		status, time.Now().UTC().Format(time.RFC3339))
	_, werr := w.f.WriteString(footer)
	cerr := w.f.Close()
	if werr != nil {
		return werr
	}
	return cerr
}

// TailRawLog streams the last RawLogTailBytes of a session's raw log file.
// The caller must have already validated the path under
// ClaudeLogsDir() via pathsafe.
func (s *Store) TailRawLog(sessionID string) ([]byte, error) {
	path := s.RawLogPath(sessionID)
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, err
	}

	size := info.Size()
	offset := int64(0)
	if size > RawLogTailBytes {
		offset = size - RawLogTailBytes
	}
	if _, err := f.Seek(offset, io.SeekStart); err != nil {
		return nil, err
	}
	return io.ReadAll(f)
}
