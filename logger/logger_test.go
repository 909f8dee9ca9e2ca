package logger_test

import (
	"sync"
	"testing"

	"github.com/joanet/controlplane/logger"
)

type recordingSink struct {
	mu      sync.Mutex
	records []logger.Record
}

func (r *recordingSink) Write(rec logger.Record) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = append(r.records, rec)
}

func (r *recordingSink) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.records)
}

func TestSinkReceivesRecordsAtOrAboveLevel(t *testing.T) {
	log := logger.New(logger.LevelWarn)
	sink := &recordingSink{}
	log.AddSink(sink)

	log.Debug("ignored")
	log.Info("ignored too")
	log.Warn("seen")
	log.Error("also seen")

	if got := sink.count(); got != 2 {
		t.Fatalf("sink received %d records, want 2", got)
	}
}

func TestSetLevelChangesFiltering(t *testing.T) {
	log := logger.New(logger.LevelError)
	sink := &recordingSink{}
	log.AddSink(sink)

	log.Info("dropped")
	if sink.count() != 0 {
		t.Fatal("expected INFO dropped at ERROR level")
	}

	log.SetLevel(logger.LevelInfo)
	log.Info("kept")
	if sink.count() != 1 {
		t.Fatal("expected INFO kept after lowering level")
	}
}
