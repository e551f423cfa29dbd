package session

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Log is the append-only record of one session's agent output and
// lifecycle events. Every line is timestamped; the file is opened per
// append so concurrent readers always see flushed content.
type Log struct {
	path string
}

// OpenLog ensures the log directory exists and returns a log bound to
// path.
func OpenLog(path string) (*Log, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create log dir: %w", err)
	}
	return &Log{path: path}, nil
}

// Path returns the log file path.
func (l *Log) Path() string {
	return l.path
}

// Append writes one timestamped line.
func (l *Log) Append(line string) error {
	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open log: %w", err)
	}
	defer f.Close()

	stamp := time.Now().UTC().Format("2006-01-02T15:04:05.000Z")
	if _, err := fmt.Fprintf(f, "[%s] %s\n", stamp, line); err != nil {
		return fmt.Errorf("append log: %w", err)
	}
	return nil
}

// Event records a lifecycle event, e.g. "session stopped by user".
func (l *Log) Event(format string, args ...any) error {
	return l.Append("=== " + fmt.Sprintf(format, args...) + " ===")
}

// Tail returns up to n trailing lines of the log file. A missing file
// yields no lines.
func (l *Log) Tail(n int) ([]string, error) {
	data, err := os.ReadFile(l.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read log: %w", err)
	}
	lines := splitLines(string(data))
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return lines, nil
}

func splitLines(s string) []string {
	var lines []string
	start := 0
	for i := 0; i < len(s); i++ {
		if s[i] == '\n' {
			lines = append(lines, s[start:i])
			start = i + 1
		}
	}
	if start < len(s) {
		lines = append(lines, s[start:])
	}
	return lines
}
