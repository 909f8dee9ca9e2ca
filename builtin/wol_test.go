package builtin

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/joanet/controlplane/config"
	"github.com/joanet/controlplane/plugins"
)

func loadTestConfig(t *testing.T, json string) *config.Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte(json), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := config.Load(path)
	if err != nil {
		t.Fatal(err)
	}
	return cfg
}

func TestWolAPIRequiresArg(t *testing.T) {
	cfg := loadTestConfig(t, `{}`)
	w := &Wol{Config: cfg}
	res := w.API(&plugins.Context{Args: nil})
	if res.Success {
		t.Fatal("expected failure with no args")
	}
}

func TestWolAPIRejectsUnknownDevice(t *testing.T) {
	cfg := loadTestConfig(t, `{}`)
	w := &Wol{Config: cfg}
	res := w.API(&plugins.Context{Args: []string{"tv"}})
	if res.Success {
		t.Fatal("expected failure for device missing from config")
	}
}

func TestWolAPISendsForRegisteredDevice(t *testing.T) {
	cfg := loadTestConfig(t, `{"wol": {"tv": "AA:BB:CC:DD:EE:FF"}}`)
	w := &Wol{Config: cfg}
	res := w.API(&plugins.Context{Args: []string{"tv"}})
	if !res.Success {
		t.Fatalf("expected success, got %+v", res)
	}
}

func TestSendMagicPacketRejectsMalformedMAC(t *testing.T) {
	if err := sendMagicPacket("not-a-mac"); err == nil {
		t.Fatal("expected error for malformed MAC")
	}
}
