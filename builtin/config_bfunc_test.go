package builtin

import (
	"testing"

	"github.com/joanet/controlplane/plugins"
)

func TestConfigFuncAPIDumpsFullDocument(t *testing.T) {
	cfg := loadTestConfig(t, `{"wol": {"tv": "AA:BB:CC:DD:EE:FF"}}`)
	c := &ConfigFunc{Config: cfg}
	res := c.API(&plugins.Context{})
	if !res.Success {
		t.Fatalf("expected success, got %+v", res)
	}
	obj, ok := res.JSON.(map[string]any)
	if !ok {
		t.Fatalf("JSON = %#v, want map", res.JSON)
	}
	if _, ok := obj["wol"]; !ok {
		t.Fatal("expected dumped document to include the wol key")
	}
}

func TestConfigFuncAPISetRequiresBody(t *testing.T) {
	cfg := loadTestConfig(t, `{}`)
	c := &ConfigFunc{Config: cfg}
	res := c.API(&plugins.Context{Args: []string{"set"}})
	if res.Success {
		t.Fatal("expected failure with no config in body")
	}
}

func TestConfigFuncAPISetWritesEachPath(t *testing.T) {
	cfg := loadTestConfig(t, `{}`)
	c := &ConfigFunc{Config: cfg}
	res := c.API(&plugins.Context{
		Args: []string{"set"},
		Body: map[string]any{"config": map[string]any{"ntfy.ip": "10.0.0.5"}},
	})
	if !res.Success {
		t.Fatalf("expected success, got %+v", res)
	}
	v, ok := cfg.Get("ntfy.ip")
	if !ok || v != "10.0.0.5" {
		t.Fatalf("ntfy.ip = %v, %v", v, ok)
	}
}

func TestConfigFuncAPIRejectsUnknownArg(t *testing.T) {
	cfg := loadTestConfig(t, `{}`)
	c := &ConfigFunc{Config: cfg}
	res := c.API(&plugins.Context{Args: []string{"frobnicate"}, Body: map[string]any{"config": map[string]any{}}})
	if res.Success {
		t.Fatal("expected failure for unrecognized argument")
	}
}
