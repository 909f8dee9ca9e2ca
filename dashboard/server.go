// Package dashboard provides a real-time HTTP dashboard for a running
// backend.
//
// It exposes:
//   - GET  /api/metrics/stream     – SSE stream of live runtime counters
//   - GET  /api/logs/stream        – SSE stream of log records
//   - GET  /api/config             – current config document (JSON)
//   - POST /api/config             – set dotted-path config values (JSON body)
//   - GET  /api/devices            – logged-in device snapshot (JSON)
//   - POST /api/automations        – upload a new automation file
//
// All SSE endpoints set appropriate headers so browsers can use
// EventSource without any additional libraries. CORS is wide-open so a
// dashboard served from a different origin can reach the backend.
package dashboard

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/joanet/controlplane/automation"
	"github.com/joanet/controlplane/config"
	"github.com/joanet/controlplane/events"
	"github.com/joanet/controlplane/logger"
	"github.com/joanet/controlplane/metrics"
	"github.com/joanet/controlplane/router"
	"github.com/joanet/controlplane/scheduler"
)

// ─── Data Types ─────────────────────────────────────────────────────────

// DeviceStatus is one logged-in peer's entry in the /api/devices snapshot.
type DeviceStatus struct {
	IP         string  `json:"ip"`
	OS         string  `json:"os"`
	Version    float64 `json:"version"`
	Subdevices int     `json:"subdevices"`
}

// ─── Server ─────────────────────────────────────────────────────────────

const maxLogs = 10_000

// Server provides the HTTP endpoints a dashboard frontend consumes. It
// implements logger.Sink, so logger.Logger.AddSink(server) is enough to
// feed both the log ring buffer and every live /api/logs/stream
// subscriber.
type Server struct {
	router        *router.Router
	scheduler     *scheduler.Scheduler
	events        *events.Bus
	metrics       *metrics.Metrics
	config        *config.Store
	automationDir string
	log           *logger.Logger

	logMu   sync.Mutex
	logs    []logger.Record
	logSubs map[chan logger.Record]struct{}
	subMu   sync.Mutex

	metricsSubs  map[chan metrics.Snapshot]struct{}
	metricsSubMu sync.Mutex

	mux *http.ServeMux
}

// New creates a dashboard Server backed by the given backend subsystems.
// Call ListenAndServe to start accepting connections.
func New(r *router.Router, sched *scheduler.Scheduler, bus *events.Bus, m *metrics.Metrics, cfg *config.Store, automationDir string, log *logger.Logger) *Server {
	if log == nil {
		log = logger.New(logger.LevelInfo)
	}
	s := &Server{
		router:        r,
		scheduler:     sched,
		events:        bus,
		metrics:       m,
		config:        cfg,
		automationDir: automationDir,
		log:           log,
		logs:          make([]logger.Record, 0, 512),
		logSubs:       make(map[chan logger.Record]struct{}),
		metricsSubs:   make(map[chan metrics.Snapshot]struct{}),
		mux:           http.NewServeMux(),
	}
	s.registerRoutes()
	return s
}

// Write implements logger.Sink: it appends rec to the ring buffer and
// fans it out to every active /api/logs/stream subscriber.
func (s *Server) Write(rec logger.Record) {
	s.logMu.Lock()
	s.logs = append(s.logs, rec)
	if len(s.logs) > maxLogs {
		s.logs = s.logs[len(s.logs)-maxLogs:]
	}
	s.logMu.Unlock()

	s.subMu.Lock()
	for ch := range s.logSubs {
		select {
		case ch <- rec:
		default:
			// Slow subscriber — drop rather than block the logger.
		}
	}
	s.subMu.Unlock()
}

// ListenAndServe starts the HTTP server on addr (e.g. ":8090") and
// blocks until the process exits. It also starts the background
// goroutine that ticks metrics to SSE subscribers.
//
// Timeouts are intentionally generous: SSE streams are long-lived
// connections that must not be cut off by short write deadlines.
func (s *Server) ListenAndServe(addr string) error {
	go s.metricsTicker()
	s.log.Infof("dashboard: listening on %s", addr)
	srv := &http.Server{
		Addr:         addr,
		Handler:      s.mux,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0, // disabled — SSE streams are unbounded
		IdleTimeout:  120 * time.Second,
	}
	return srv.ListenAndServe()
}

// ─── Route registration ─────────────────────────────────────────────────

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("/api/metrics/stream", s.withCORS(s.handleMetricsStream))
	s.mux.HandleFunc("/api/logs/stream", s.withCORS(s.handleLogsStream))
	s.mux.HandleFunc("/api/config", s.withCORS(s.handleConfig))
	s.mux.HandleFunc("/api/devices", s.withCORS(s.handleDevices))
	s.mux.HandleFunc("/api/automations", s.withCORS(s.handleAutomationUpload))
}

func (s *Server) withCORS(h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		h(w, r)
	}
}

// ─── /api/metrics/stream ─────────────────────────────────────────────────

func (s *Server) metricsTicker() {
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()
	for range ticker.C {
		s.router.Metrics.SetDevicesRegistered(s.router.Devices.Len())
		s.router.Metrics.SetSchedulerExecutors(s.scheduler.Len())
		s.router.Metrics.SetEventQueueDepth(s.events.QueueDepth())

		snap := s.metrics.Snapshot()
		s.metricsSubMu.Lock()
		for ch := range s.metricsSubs {
			select {
			case ch <- snap:
			default:
			}
		}
		s.metricsSubMu.Unlock()
	}
}

func (s *Server) handleMetricsStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	ch := make(chan metrics.Snapshot, 16)
	s.metricsSubMu.Lock()
	s.metricsSubs[ch] = struct{}{}
	s.metricsSubMu.Unlock()

	defer func() {
		s.metricsSubMu.Lock()
		delete(s.metricsSubs, ch)
		s.metricsSubMu.Unlock()
	}()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case snap := <-ch:
			if err := sseWrite(w, snap); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

// ─── /api/logs/stream ────────────────────────────────────────────────────

type logEntryJSON struct {
	Timestamp int64  `json:"ts"`
	Level     string `json:"level"`
	Message   string `json:"message"`
}

func toLogEntryJSON(rec logger.Record) logEntryJSON {
	return logEntryJSON{Timestamp: rec.Time.UnixMilli(), Level: rec.Level.String(), Message: rec.Msg}
}

func (s *Server) handleLogsStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	s.logMu.Lock()
	history := make([]logger.Record, len(s.logs))
	copy(history, s.logs)
	s.logMu.Unlock()

	for _, rec := range history {
		if err := sseWrite(w, toLogEntryJSON(rec)); err != nil {
			return
		}
	}
	flusher.Flush()

	ch := make(chan logger.Record, 256)
	s.subMu.Lock()
	s.logSubs[ch] = struct{}{}
	s.subMu.Unlock()

	defer func() {
		s.subMu.Lock()
		delete(s.logSubs, ch)
		s.subMu.Unlock()
	}()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case rec := <-ch:
			if err := sseWrite(w, toLogEntryJSON(rec)); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

func sseWrite(w io.Writer, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "data: %s\n\n", data)
	return err
}

// ─── /api/config ───────────────────────────────────────────────────────

func (s *Server) handleConfig(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(s.config.Full()); err != nil {
			s.log.Errorf("dashboard: encode config: %v", err)
		}

	case http.MethodPost:
		var payload struct {
			Config map[string]any `json:"config"`
		}
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			http.Error(w, "invalid JSON", http.StatusBadRequest)
			return
		}
		for k, v := range payload.Config {
			if err := s.config.Set(k, v); err != nil {
				http.Error(w, fmt.Sprintf("set %q: %v", k, err), http.StatusInternalServerError)
				return
			}
		}
		s.log.Infof("dashboard: config updated: %d key(s)", len(payload.Config))
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"ok":true}`)

	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

// ─── /api/devices ────────────────────────────────────────────────────────

func (s *Server) handleDevices(w http.ResponseWriter, r *http.Request) {
	all := s.router.Devices.All()
	out := make([]DeviceStatus, 0, len(all))
	for _, d := range all {
		out = append(out, DeviceStatus{
			IP:         d.IP(),
			OS:         d.OS(),
			Version:    d.Version(),
			Subdevices: d.SubdeviceCount(),
		})
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(out); err != nil {
		s.log.Errorf("dashboard: encode devices: %v", err)
	}
}

// ─── /api/automations ────────────────────────────────────────────────────

const maxAutomationUploadSize = 1 << 20 // 1 MiB

// handleAutomationUpload writes an uploaded automation declaration
// into the backend's automation directory and reloads it immediately,
// so a new rule takes effect without restarting the process. Grounded
// on the original dashboard's hot file-upload pattern, re-pointed at
// this backend's own reload mechanism instead of a proxy-list file.
func (s *Server) handleAutomationUpload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxAutomationUploadSize)
	if err := r.ParseMultipartForm(maxAutomationUploadSize); err != nil {
		http.Error(w, "request too large or not multipart", http.StatusBadRequest)
		return
	}

	file, header, err := r.FormFile("automation")
	if err != nil {
		http.Error(w, "missing 'automation' field", http.StatusBadRequest)
		return
	}
	defer file.Close()

	name := filepath.Base(header.Filename)
	if filepath.Ext(name) != ".json" {
		name += ".json"
	}
	dest, err := os.Create(filepath.Join(s.automationDir, name))
	if err != nil {
		http.Error(w, "server error", http.StatusInternalServerError)
		return
	}
	defer dest.Close()

	n, err := io.Copy(dest, file)
	if err != nil {
		http.Error(w, "server error", http.StatusInternalServerError)
		return
	}

	if err := automation.LoadAll(s.automationDir, s.scheduler, s.router, s.log); err != nil {
		http.Error(w, fmt.Sprintf("reload: %v", err), http.StatusInternalServerError)
		return
	}

	s.log.Infof("dashboard: automation uploaded: file=%q size=%d bytes", name, n)
	w.Header().Set("Content-Type", "application/json")
	fmt.Fprintf(w, `{"ok":true,"file":%q,"bytes":%d}`, name, n)
}
