package search

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"
)

// TimestampLayout is the layout of the bracketed prefix on every log line.
const TimestampLayout = "2006-01-02 15:04:05"

// Log is the human-readable progress log of a connection search.
// It is append-only and safe for concurrent use; lines from one goroutine
// keep their relative order, interleaving between goroutines is arbitrary.
type Log struct {
	mu     sync.Mutex
	lines  []string
	now    func() time.Time
	logger *slog.Logger
}

// NewLog creates an empty log. Every appended line is mirrored to logger at
// info level; a nil logger disables mirroring.
func NewLog(logger *slog.Logger) *Log {
	return &Log{
		now:    time.Now,
		logger: logger,
	}
}

// Printf appends one timestamped line.
func (l *Log) Printf(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)

	l.mu.Lock()
	line := fmt.Sprintf("[%s] %s", l.now().Format(TimestampLayout), msg)
	l.lines = append(l.lines, line)
	l.mu.Unlock()

	if l.logger != nil {
		l.logger.Info(msg)
	}
}

// Lines returns a copy of the lines appended so far.
func (l *Log) Lines() []string {
	l.mu.Lock()
	defer l.mu.Unlock()

	lines := make([]string, len(l.lines))
	copy(lines, l.lines)
	return lines
}

// String joins the lines with newlines, without a trailing newline.
func (l *Log) String() string {
	return strings.Join(l.Lines(), "\n")
}

// WriteFile writes the log to path, replacing any existing content.
func (l *Log) WriteFile(path string) error {
	if err := os.WriteFile(path, []byte(l.String()), 0o644); err != nil {
		return fmt.Errorf("failed to write log file %s: %w", path, err)
	}
	return nil
}
