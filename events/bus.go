package events

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/joanet/controlplane/logger"
	"github.com/joanet/controlplane/worker"
)

// actionWorkers bounds how many of one fired event's actions run at
// once: most events have a handful of "then" actions, several of which
// may be blocking remote-proxy calls, so a small pool lets them run
// concurrently without one slow action serializing behind another.
const actionWorkers = 4

// ActionRunner executes one Action's path/body against the backend
// router, decoupling this package from router to avoid an import cycle
// (router itself triggers events through Bus.TriggerAll).
type ActionRunner func(path string, body map[string]any) error

// Bus loads Event declarations from a directory, watches it for
// changes, and dispatches triggered types to a worker goroutine.
type Bus struct {
	dir    string
	runner ActionRunner
	log    *logger.Logger
	pool   *worker.ActionPool

	mu     sync.Mutex
	events []*Event

	queue   []string
	trigger chan struct{}
}

// New constructs a Bus that loads declarations from dir and fires
// matched actions through runner.
func New(dir string, runner ActionRunner, log *logger.Logger) *Bus {
	if log == nil {
		log = logger.New(logger.LevelInfo)
	}
	pool := worker.NewActionPool(actionWorkers)
	pool.Start()
	return &Bus{
		dir:     dir,
		runner:  runner,
		log:     log,
		pool:    pool,
		trigger: make(chan struct{}, 1),
	}
}

// LoadAll reads every non-"_"-prefixed JSON file in the bus's directory,
// keeping only declarations marked "@type": "event", per event.py's
// load_all. Malformed or non-matching files are skipped and logged, not
// fatal.
func (b *Bus) LoadAll() error {
	entries, err := os.ReadDir(b.dir)
	if err != nil {
		return fmt.Errorf("events: read dir %q: %w", b.dir, err)
	}

	var loaded []*Event
	for _, entry := range entries {
		if entry.IsDir() || strings.HasPrefix(entry.Name(), "_") {
			continue
		}
		if !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		e, ok, err := loadEventFile(filepath.Join(b.dir, entry.Name()))
		if err != nil {
			b.log.Errorf("events: load %s: %v", entry.Name(), err)
			continue
		}
		if !ok {
			continue
		}
		b.log.Debugf("events: loaded %q", e.Title)
		loaded = append(loaded, e)
	}

	b.mu.Lock()
	b.events = loaded
	b.mu.Unlock()
	return nil
}

func loadEventFile(path string) (*Event, bool, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, false, err
	}
	var doc map[string]any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, false, err
	}
	if doc["@type"] != "event" {
		return nil, false, nil
	}

	e := &Event{
		Type:  toString(doc["event"]),
		Title: toString(doc["title"]),
	}
	if t, ok := doc["time"].(string); ok {
		e.Time = t
	}
	if then, ok := doc["then"].([]any); ok {
		for _, item := range then {
			actionDoc, ok := item.(map[string]any)
			if !ok {
				continue
			}
			body, _ := actionDoc["body"].(map[string]any)
			e.Then = append(e.Then, Action{
				Path: toString(actionDoc["path"]),
				Body: body,
			})
		}
	}
	return e, true, nil
}

func toString(v any) string {
	s, _ := v.(string)
	return s
}

// Watch starts an fsnotify watcher on the bus directory and reloads
// every declaration whenever a file is created, written, or removed.
// Hot reload is new relative to the original (which loads once at
// startup): event declarations can now be edited without a restart.
func (b *Bus) Watch() error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("events: create watcher: %w", err)
	}
	if err := watcher.Add(b.dir); err != nil {
		watcher.Close()
		return fmt.Errorf("events: watch %q: %w", b.dir, err)
	}

	go func() {
		defer watcher.Close()
		for {
			select {
			case ev, ok := <-watcher.Events:
				if !ok {
					return
				}
				if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) != 0 {
					if err := b.LoadAll(); err != nil {
						b.log.Errorf("events: reload after %s: %v", ev, err)
					}
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				b.log.Errorf("events: watcher error: %v", err)
			}
		}
	}()
	return nil
}

// TriggerAll enqueues tpe and wakes the worker goroutine, matching
// event.py's trigger_all.
func (b *Bus) TriggerAll(tpe string) {
	b.mu.Lock()
	b.queue = append(b.queue, tpe)
	b.mu.Unlock()

	select {
	case b.trigger <- struct{}{}:
	default:
	}
}

// QueueDepth reports how many queued trigger types are waiting to be
// drained, for the dashboard/metrics view.
func (b *Bus) QueueDepth() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.queue)
}

// Run blocks, draining triggered types and firing matching events, until
// stop is closed. Intended to run in its own goroutine (the "EventThread"
// in the original).
func (b *Bus) Run(stop <-chan struct{}) {
	defer b.pool.Stop()
	for {
		select {
		case <-stop:
			return
		case <-b.trigger:
			b.drain()
		}
	}
}

func (b *Bus) drain() {
	b.mu.Lock()
	queue := b.queue
	b.queue = nil
	events := b.events
	b.mu.Unlock()

	now := time.Now()
	nowSeconds := secondsOfDay(now.Hour(), now.Minute(), now.Second())

	for _, tpe := range queue {
		for _, e := range events {
			if e.Type != tpe {
				continue
			}
			ok, err := e.CheckTime(nowSeconds)
			if err != nil {
				b.log.Errorf("events: check time for %q: %v", e.Title, err)
				continue
			}
			if !ok {
				continue
			}
			b.fire(e)
		}
	}
}

func (b *Bus) fire(e *Event) {
	var wg sync.WaitGroup
	for _, action := range e.Then {
		if action.Path == "" {
			continue
		}
		action := action
		wg.Add(1)
		b.pool.Submit(func() {
			defer wg.Done()
			if err := b.runner(action.Path, action.Body); err != nil {
				b.log.Errorf("events: action %q for %q failed: %v", action.Path, e.Title, err)
			}
		})
	}
	wg.Wait()
}
