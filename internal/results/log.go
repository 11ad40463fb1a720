package results

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
)

// Log is the append-only JSONL result log. One Log is shared by all
// workers; appends are serialised by its lock.
type Log struct {
	mu     sync.Mutex
	f      *os.File
	path   string
	logger *slog.Logger
}

// Open opens or creates the result log. With resume true existing
// contents are preserved; otherwise the file is truncated for a fresh
// run. Parent directories are created as needed.
func Open(path string, resume bool, logger *slog.Logger) (*Log, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create result log directory: %w", err)
	}

	flags := os.O_CREATE | os.O_WRONLY | os.O_APPEND
	if !resume {
		flags |= os.O_TRUNC
	}
	f, err := os.OpenFile(path, flags, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open result log: %w", err)
	}

	logger.Debug("result log opened", "path", path, "resume", resume)
	return &Log{f: f, path: path, logger: logger}, nil
}

// Append writes rec as one JSON line. The line is built first and written
// with a single call under the lock, so concurrent appends never
// interleave.
func (l *Log) Append(rec *Record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal result record: %w", err)
	}
	data = append(data, '\n')

	l.mu.Lock()
	defer l.mu.Unlock()
	if _, err := l.f.Write(data); err != nil {
		return fmt.Errorf("append result record: %w", err)
	}
	return nil
}

// Path returns the log's file path.
func (l *Log) Path() string {
	return l.path
}

// Close closes the underlying file.
func (l *Log) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.f.Close()
}
