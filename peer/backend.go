// Package peer wires the already-built subsystems (discovery, device
// registry, router, scheduler, event bus, automation, webserver) into
// the two runnable roles the original implementation offers from its
// main entrypoint: the backend that owns the LAN's state, and the
// frontend that finds and attaches to one. Grounded on
// original_source/src/main.py's backend/frontend branches and
// src/frontend/frontend.py's FrontendRequest.
package peer

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"time"

	"github.com/joanet/controlplane/automation"
	"github.com/joanet/controlplane/builtin"
	"github.com/joanet/controlplane/config"
	"github.com/joanet/controlplane/dashboard"
	"github.com/joanet/controlplane/device"
	"github.com/joanet/controlplane/discovery"
	"github.com/joanet/controlplane/events"
	"github.com/joanet/controlplane/httpcodec"
	"github.com/joanet/controlplane/logger"
	"github.com/joanet/controlplane/metrics"
	"github.com/joanet/controlplane/plugins"
	"github.com/joanet/controlplane/router"
	"github.com/joanet/controlplane/scheduler"
	"github.com/joanet/controlplane/shipper"
	"github.com/joanet/controlplane/webserver"
)

// BackendConfig carries every path and address RunBackend needs.
type BackendConfig struct {
	Addr          string // e.g. "0.0.0.0:4001"
	PublicDir     string
	EventsDir     string
	AutomationDir string
	PluginDir     string // directory of dynamically loaded .so plugins, scanned in addition to the builtins
	KeyPath       string
	PubKeyPath    string
	ConfigPath    string
	RemoteLogAddr string // non-empty enables shipping WARNING+ records to a peer's /log endpoint
	DashboardAddr string // non-empty starts the dashboard HTTP server on this address
	Log           *logger.Logger
}

// Backend is a fully started backend process: its request router,
// scheduler, and event bus are reachable for tests or a dashboard to
// inspect, and Shutdown tears every piece down.
type Backend struct {
	Router    *router.Router
	Scheduler *scheduler.Scheduler
	Events    *events.Bus
	Metrics   *metrics.Metrics
	Config    *config.Store

	server     *webserver.Server
	dashboard  *dashboard.Server
	shipper    *shipper.Shipper
	stopEvents chan struct{}
	log        *logger.Logger
}

// RunBackend starts every backend subsystem and returns once its
// webserver is accepting connections.
func RunBackend(cfg BackendConfig) (*Backend, error) {
	log := cfg.Log
	if log == nil {
		log = logger.New(logger.LevelInfo)
	}

	key, err := discovery.LoadOrCreatePrivateKey(cfg.KeyPath, cfg.PubKeyPath)
	if err != nil {
		return nil, fmt.Errorf("peer: backend identity key: %w", err)
	}
	localIP, err := discovery.LocalIPv4()
	if err != nil {
		return nil, fmt.Errorf("peer: determine local address: %w", err)
	}

	discSrv := discovery.NewServer(key, localIP)
	go func() {
		if err := discSrv.Listen(); err != nil {
			log.Errorf("peer: discovery listener stopped: %v", err)
		}
	}()

	store, err := config.Load(cfg.ConfigPath)
	if err != nil {
		return nil, fmt.Errorf("peer: load config: %w", err)
	}
	if err := store.LoadEnviron(filepath.Dir(cfg.ConfigPath)); err != nil {
		log.Errorf("peer: load environ config: %v", err)
	}

	registry := device.NewRegistry()
	m := metrics.New()
	r := router.New(registry, log, m)

	sched := scheduler.New(log)
	sched.Start()

	stopEvents := make(chan struct{})
	bus := events.New(cfg.EventsDir, func(path string, body map[string]any) error {
		return r.ExecuteLocal(path, body)
	}, log)
	if err := bus.LoadAll(); err != nil {
		log.Errorf("peer: load events: %v", err)
	}
	if err := bus.Watch(); err != nil {
		log.Errorf("peer: watch events dir: %v", err)
	}
	go bus.Run(stopEvents)

	registerBuiltins(store, bus, log)
	builtin.NewSundownMaker(sched, bus, log, 0, 5, 0)
	if cfg.PluginDir != "" {
		if err := plugins.LoadDir(cfg.PluginDir, log); err != nil {
			log.Errorf("peer: load plugin dir: %v", err)
		}
	}

	var ship *shipper.Shipper
	if cfg.RemoteLogAddr != "" {
		ship = shipper.New(cfg.RemoteLogAddr, 30*time.Second)
		log.AddSink(ship)
		ship.Start()
	}

	if err := automation.LoadAll(cfg.AutomationDir, sched, r, log); err != nil {
		log.Errorf("peer: load automations: %v", err)
	}

	srv := webserver.New(cfg.Addr, cfg.PublicDir, func(req *httpcodec.Request, remoteIP string) *httpcodec.Response {
		return r.Handle(req.Path, mergeBody(req), remoteIP, req.Headers.Get("Authorization"))
	}, log)
	if err := srv.Start(); err != nil {
		return nil, fmt.Errorf("peer: start backend webserver: %w", err)
	}

	var dash *dashboard.Server
	if cfg.DashboardAddr != "" {
		dash = dashboard.New(r, sched, bus, m, store, cfg.AutomationDir, log)
		log.AddSink(dash)
		go func() {
			if err := dash.ListenAndServe(cfg.DashboardAddr); err != nil {
				log.Errorf("peer: dashboard stopped: %v", err)
			}
		}()
	}

	return &Backend{
		Router:     r,
		Scheduler:  sched,
		Events:     bus,
		Metrics:    m,
		Config:     store,
		server:     srv,
		dashboard:  dash,
		shipper:    ship,
		stopEvents: stopEvents,
		log:        log,
	}, nil
}

// registerBuiltins wires every in-tree API function and sensor into the
// registries a request or an automation tick can reach: wol/ntfy/config
// need the config store, evt needs the event bus, and plants is the
// hardware-I/O stub that reads its readings from config. The wttr sensor
// is not registered here; it registers itself from the builtin package's
// init func.
func registerBuiltins(store *config.Store, bus *events.Bus, log *logger.Logger) {
	builtin.NewWol(store, "wol")
	builtin.NewNtfy(store, "ntfy")
	builtin.NewConfigFunc(store, "config")
	builtin.NewEvt(bus, "evt")
	router.RegisterSensor("plants", builtin.NewPlantsSensorCtor(store))
	log.Debugf("peer: registered builtin functions: %v", plugins.Names())
}

// mergeBody folds a request's query-string arguments and JSON body into
// one map, matching webrequest.py's evaluate: GET args alone for a GET,
// GET args overlaid by the decoded body for a POST/PUT.
func mergeBody(req *httpcodec.Request) map[string]any {
	body := map[string]any{}
	for k, v := range req.Query {
		body[k] = v
	}
	if len(req.Body) == 0 {
		return body
	}
	var decoded map[string]any
	if err := json.Unmarshal(req.Body, &decoded); err != nil {
		return body
	}
	for k, v := range decoded {
		body[k] = v
	}
	return body
}

// Shutdown closes every registered device's connection, stops the
// scheduler and event bus, and closes the webserver's listener, in that
// order — remote peers are told first, then local state winds down.
func (b *Backend) Shutdown() {
	for _, d := range b.Router.Devices.All() {
		d.Close()
	}
	b.Scheduler.Stop()
	close(b.stopEvents)
	b.server.Stop()
	if b.shipper != nil {
		b.shipper.Stop()
	}
}

// discoverTimeout is how long a frontend waits for a backend to answer
// an M-SEARCH before giving up, matching the original's fixed socket
// timeout in multicast_cli.py.
const discoverTimeout = 5 * time.Second
