package shipper

import (
	"testing"
	"time"

	"github.com/joanet/controlplane/logger"
)

func TestWriteFiltersBelowMinLevel(t *testing.T) {
	s := New("127.0.0.1:1", time.Hour)
	s.Write(logger.Record{Level: logger.LevelInfo, Msg: "ignored"})
	s.Write(logger.Record{Level: logger.LevelDebug, Msg: "ignored"})

	s.mu.Lock()
	n := len(s.pending)
	s.mu.Unlock()
	if n != 0 {
		t.Fatalf("pending = %d, want 0", n)
	}
}

func TestWriteBuffersQualifyingRecords(t *testing.T) {
	s := New("127.0.0.1:1", time.Hour)
	s.Write(logger.Record{Level: logger.LevelWarn, Msg: "a"})
	s.Write(logger.Record{Level: logger.LevelError, Msg: "b"})

	s.mu.Lock()
	n := len(s.pending)
	s.mu.Unlock()
	if n != 2 {
		t.Fatalf("pending = %d, want 2", n)
	}
}

func TestFlushClearsPendingEvenOnSendFailure(t *testing.T) {
	s := New("127.0.0.1:1", time.Hour)
	s.Write(logger.Record{Level: logger.LevelError, Msg: "unreachable target"})

	s.flush()

	s.mu.Lock()
	n := len(s.pending)
	s.mu.Unlock()
	if n != 0 {
		t.Fatalf("pending after flush = %d, want 0 (flush should drop even on send failure)", n)
	}
}

func TestStopIsIdempotent(t *testing.T) {
	s := New("127.0.0.1:1", time.Millisecond)
	s.Start()
	s.Stop()
	s.Stop()
}
