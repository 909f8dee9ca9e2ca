package device

import "testing"

func TestLoginWithoutKeyStillSucceeds(t *testing.T) {
	d := newDevice("10.0.0.1")
	res := d.Login(map[string]any{
		"funcs":   []any{"notify"},
		"os":      "linux",
		"version": 1.5,
	})
	if !res.Success {
		t.Fatal("expected login without a key to succeed")
	}
	if !d.HasLocalFunc("notify") {
		t.Error("expected funcs from login body to be registered")
	}
	if d.OS() != "linux" || d.Version() != 1.5 {
		t.Errorf("OS/Version = %q/%v", d.OS(), d.Version())
	}
}

func TestLoginBadKeyFails(t *testing.T) {
	d := newDevice("10.0.0.1")
	res := d.Login(map[string]any{"key": "not-valid-base64-gzip"})
	if res.Success {
		t.Error("expected malformed key to fail login")
	}
}

func TestLoginWithKeyReturnsEncryptedToken(t *testing.T) {
	d := newDevice("10.0.0.1")
	pubPEM, _ := testPublicKeyPEM(t)

	res := d.Login(map[string]any{"key": pubPEM})
	if !res.Success {
		t.Fatal("expected login to succeed")
	}
	obj, ok := res.JSON.(map[string]any)
	if !ok {
		t.Fatalf("unexpected JSON shape: %#v", res.JSON)
	}
	if tok, _ := obj["token"].(string); tok == "" {
		t.Error("expected a non-empty encrypted token once a key was supplied")
	}
}
