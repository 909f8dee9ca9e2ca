// Package shipper forwards WARNING+ log records to a remote peer's
// /log endpoint, batched and sent over SECURE. Grounded on
// original_source/plugins/bfunc/remote_log.py's receiving side: this
// package is the matching sender, since the original never shipped one
// (every node logged locally only).
package shipper

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/joanet/controlplane/httpcodec"
	"github.com/joanet/controlplane/logger"
)

// MinLevel is the lowest severity a Shipper forwards.
const MinLevel = logger.LevelWarn

// Shipper implements logger.Sink, batching qualifying records in memory
// and flushing them to addr's /log endpoint on a fixed interval. A
// failed send is dropped rather than retried or logged — logging the
// failure through the same Logger this Shipper is attached to would
// recurse.
type Shipper struct {
	addr          string
	flushInterval time.Duration

	mu      sync.Mutex
	pending []logger.Record

	stopCh chan struct{}
	once   sync.Once
}

// New builds a Shipper targeting addr ("host:port"), flushing its
// buffer every flushInterval.
func New(addr string, flushInterval time.Duration) *Shipper {
	return &Shipper{addr: addr, flushInterval: flushInterval, stopCh: make(chan struct{})}
}

// Write buffers rec if it meets MinLevel, implementing logger.Sink.
func (s *Shipper) Write(rec logger.Record) {
	if rec.Level < MinLevel {
		return
	}
	s.mu.Lock()
	s.pending = append(s.pending, rec)
	s.mu.Unlock()
}

// Start begins the background flush loop.
func (s *Shipper) Start() {
	go s.run()
}

// Stop ends the flush loop after one final flush.
func (s *Shipper) Stop() {
	s.once.Do(func() { close(s.stopCh) })
}

func (s *Shipper) run() {
	ticker := time.NewTicker(s.flushInterval)
	defer ticker.Stop()
	for {
		select {
		case <-s.stopCh:
			s.flush()
			return
		case <-ticker.C:
			s.flush()
		}
	}
}

func (s *Shipper) flush() {
	s.mu.Lock()
	batch := s.pending
	s.pending = nil
	s.mu.Unlock()

	for _, rec := range batch {
		s.send(rec)
	}
}

func (s *Shipper) send(rec logger.Record) {
	stream, err := httpcodec.DialSecure(s.addr)
	if err != nil {
		return
	}
	defer stream.Close()

	body, err := json.Marshal(map[string]any{
		"level":   rec.Level.String(),
		"message": rec.Msg,
	})
	if err != nil {
		return
	}

	h := httpcodec.NewHeader()
	h.Set("Content-Type", "application/json")
	req := &httpcodec.Request{Method: "POST", Path: "/log", Version: httpcodec.DefaultVersion, Headers: h, Body: body}
	if err := httpcodec.WriteRequest(stream, req); err != nil {
		return
	}
	_, _ = httpcodec.ReadClientResponse(stream)
}
