package main

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/joanet/controlplane/logger"
)

// fileSink writes every record it receives to a single rotation's log
// file, one line per record, matching setup_logger's FileHandler.
type fileSink struct {
	mu sync.Mutex
	f  *os.File
}

// newFileSink clears any log files left over from a previous run and
// opens a fresh one named after the current time, matching main.py's
// setup_logger: one log file per process start, old ones discarded.
func newFileSink(dir string) (*fileSink, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create log dir %q: %w", dir, err)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read log dir %q: %w", dir, err)
	}
	for _, e := range entries {
		os.Remove(filepath.Join(dir, e.Name()))
	}

	name := time.Now().Format("2006-01-02 15-04") + ".log"
	f, err := os.OpenFile(filepath.Join(dir, name), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	return &fileSink{f: f}, nil
}

// Write implements logger.Sink.
func (s *fileSink) Write(rec logger.Record) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fmt.Fprintf(s.f, "%s [%s] %s\n", rec.Time.Format("2006-01-02 15:04:05"), rec.Level, rec.Msg)
}

func (s *fileSink) Close() error {
	return s.f.Close()
}
