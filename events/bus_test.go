package events_test

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/joanet/controlplane/events"
)

func writeEventFile(t *testing.T, dir, name string, doc map[string]any) {
	t.Helper()
	raw, err := json.Marshal(doc)
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, name), raw, 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestLoadAllFiltersByType(t *testing.T) {
	dir := t.TempDir()
	writeEventFile(t, dir, "wake.json", map[string]any{
		"@type": "event",
		"event": "DEVICE_CONNECT",
		"title": "wake",
		"then":  []any{map[string]any{"path": "notify.send", "body": map[string]any{"msg": "hi"}}},
	})
	writeEventFile(t, dir, "not-an-event.json", map[string]any{
		"@type": "automation",
	})
	writeEventFile(t, dir, "_disabled.json", map[string]any{
		"@type": "event", "event": "DEVICE_CONNECT", "title": "disabled",
	})

	var firedPaths []string
	bus := events.New(dir, func(path string, body map[string]any) error {
		firedPaths = append(firedPaths, path)
		return nil
	}, nil)

	if err := bus.LoadAll(); err != nil {
		t.Fatalf("LoadAll: %v", err)
	}

	stop := make(chan struct{})
	go bus.Run(stop)
	defer close(stop)

	bus.TriggerAll("DEVICE_CONNECT")

	deadline := time.Now().Add(2 * time.Second)
	for len(firedPaths) == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}

	if len(firedPaths) != 1 || firedPaths[0] != "notify.send" {
		t.Fatalf("firedPaths = %v, want exactly [notify.send]", firedPaths)
	}
}

func TestFireRunsMultipleActionsConcurrently(t *testing.T) {
	dir := t.TempDir()
	writeEventFile(t, dir, "multi.json", map[string]any{
		"@type": "event",
		"event": "MULTI",
		"title": "multi",
		"then": []any{
			map[string]any{"path": "a"},
			map[string]any{"path": "b"},
			map[string]any{"path": "c"},
		},
	})

	start := make(chan struct{})
	var mu sync.Mutex
	inFlight, maxInFlight := 0, 0
	bus := events.New(dir, func(path string, body map[string]any) error {
		mu.Lock()
		inFlight++
		if inFlight > maxInFlight {
			maxInFlight = inFlight
		}
		mu.Unlock()

		<-start

		mu.Lock()
		inFlight--
		mu.Unlock()
		return nil
	}, nil)
	if err := bus.LoadAll(); err != nil {
		t.Fatal(err)
	}

	stop := make(chan struct{})
	go bus.Run(stop)
	defer close(stop)

	bus.TriggerAll("MULTI")
	time.Sleep(100 * time.Millisecond)
	close(start)
	time.Sleep(100 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	if maxInFlight < 2 {
		t.Fatalf("maxInFlight = %d, want at least 2 actions running concurrently", maxInFlight)
	}
}

func TestTriggerAllSkipsNonMatchingTimePredicate(t *testing.T) {
	dir := t.TempDir()
	writeEventFile(t, dir, "never.json", map[string]any{
		"@type": "event",
		"event": "ALWAYS_FALSE",
		"title": "never",
		"time":  "1 == 2",
		"then":  []any{map[string]any{"path": "should.not.fire"}},
	})

	fired := false
	bus := events.New(dir, func(path string, body map[string]any) error {
		fired = true
		return nil
	}, nil)
	if err := bus.LoadAll(); err != nil {
		t.Fatal(err)
	}

	stop := make(chan struct{})
	go bus.Run(stop)
	defer close(stop)

	bus.TriggerAll("ALWAYS_FALSE")
	time.Sleep(100 * time.Millisecond)

	if fired {
		t.Error("expected event with a false time predicate not to fire")
	}
}
