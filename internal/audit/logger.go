// Package audit implements the append-only JSONL audit trail shared by every
// pipeline component. One JSON object per line, append order = cycle order;
// the dashboard and alerting collaborators tail this stream.
package audit

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/alanyoungcy/arbot/internal/domain"
)

// Logger is a file-backed domain.AuditSink. Every append is flushed to disk
// before Log returns, so a record is durable before the next cycle starts.
type Logger struct {
	mu     sync.Mutex
	path   string
	file   *os.File
	logger *slog.Logger
}

// NewLogger opens (or creates) the audit log at path in append mode.
func NewLogger(path string, logger *slog.Logger) (*Logger, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("audit: create log dir: %w", err)
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("audit: open %s: %w", path, err)
	}
	return &Logger{
		path:   path,
		file:   f,
		logger: logger.With(slog.String("component", "audit")),
	}, nil
}

// Log appends one record with the current UTC timestamp and syncs the file.
func (l *Logger) Log(ctx context.Context, typ domain.AuditType, data map[string]any) error {
	rec := domain.AuditRecord{
		Timestamp: time.Now().UTC(),
		Type:      typ,
		Data:      data,
	}

	line, err := EncodeLine(rec)
	if err != nil {
		return fmt.Errorf("audit: encode %s record: %w", typ, err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.file == nil {
		return fmt.Errorf("audit: log file not open")
	}
	if _, err := l.file.Write(line); err != nil {
		return fmt.Errorf("audit: append %s record: %w", typ, err)
	}
	if err := l.file.Sync(); err != nil {
		return fmt.Errorf("audit: sync: %w", err)
	}
	return nil
}

// Rotate renames the current log file to a timestamped segment and reopens a
// fresh file at the original path. It returns the segment path, or "" when
// the log is empty and there is nothing to rotate. The archiver uploads
// rotated segments to cold storage.
func (l *Logger) Rotate() (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.file == nil {
		return "", fmt.Errorf("audit: log file not open")
	}

	info, err := l.file.Stat()
	if err != nil {
		return "", fmt.Errorf("audit: stat: %w", err)
	}
	if info.Size() == 0 {
		return "", nil
	}

	// From here on l.file must never be left pointing at a closed handle:
	// a failed rotation either restores an open handle on the original
	// path or leaves l.file nil so Log reports the log as unavailable.
	closeErr := l.file.Close()
	l.file = nil
	if closeErr != nil {
		return "", fmt.Errorf("audit: close before rotate: %w", closeErr)
	}

	segment := fmt.Sprintf("%s.%s", l.path, time.Now().UTC().Format("20060102T150405Z"))
	if err := os.Rename(l.path, segment); err != nil {
		if f, openErr := os.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644); openErr == nil {
			l.file = f
		}
		return "", fmt.Errorf("audit: rotate %s: %w", l.path, err)
	}

	f, err := os.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return "", fmt.Errorf("audit: reopen after rotate: %w", err)
	}
	l.file = f

	l.logger.Info("audit log rotated", slog.String("segment", segment))
	return segment, nil
}

// Path returns the active audit log path.
func (l *Logger) Path() string {
	return l.path
}

// Close flushes and closes the underlying file.
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.file == nil {
		return nil
	}
	err := l.file.Close()
	l.file = nil
	return err
}
