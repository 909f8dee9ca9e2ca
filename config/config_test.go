package config_test

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/joanet/controlplane/config"
)

func writeConfigFile(t *testing.T, doc map[string]any) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	raw, err := json.Marshal(doc)
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadMissingFileStartsEmpty(t *testing.T) {
	s, err := config.Load(filepath.Join(t.TempDir(), "nonexistent.json"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := s.Get("anything"); ok {
		t.Error("expected empty store to have no values")
	}
}

func TestGetDottedPath(t *testing.T) {
	path := writeConfigFile(t, map[string]any{
		"network": map[string]any{
			"port": float64(4001),
			"tls":  map[string]any{"enabled": false},
		},
	})

	s, err := config.Load(path)
	if err != nil {
		t.Fatal(err)
	}
	v, ok := s.Get("network.port")
	if !ok || v != float64(4001) {
		t.Errorf("network.port = %v, ok=%v", v, ok)
	}
	if _, ok := s.Get("network.missing.deeper"); ok {
		t.Error("expected missing nested path to fail")
	}
	if s.GetFloat("network.port", -1) != 4001 {
		t.Error("GetFloat mismatch")
	}
	if s.GetString("network.host", "fallback") != "fallback" {
		t.Error("GetString should fall back on missing key")
	}
}

func TestSetPersistsAndCreatesIntermediateObjects(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	s, err := config.Load(path)
	if err != nil {
		t.Fatal(err)
	}

	if err := s.Set("device.token_ttl", float64(3600)); err != nil {
		t.Fatalf("Set: %v", err)
	}

	reloaded, err := config.Load(path)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	v, ok := reloaded.Get("device.token_ttl")
	if !ok || v != float64(3600) {
		t.Errorf("device.token_ttl after reload = %v, ok=%v", v, ok)
	}
}

func TestLoadEnvironInjectsProcessEnv(t *testing.T) {
	path := writeConfigFile(t, map[string]any{
		"environ": map[string]any{
			"JOANET_TEST_VAR": "value123",
		},
	})
	s, err := config.Load(path)
	if err != nil {
		t.Fatal(err)
	}
	defer os.Unsetenv("JOANET_TEST_VAR")

	if err := s.LoadEnviron(filepath.Dir(path)); err != nil {
		t.Fatalf("LoadEnviron: %v", err)
	}
	if os.Getenv("JOANET_TEST_VAR") != "value123" {
		t.Errorf("JOANET_TEST_VAR = %q", os.Getenv("JOANET_TEST_VAR"))
	}
}
