package device

import "testing"

func TestRegistryLoginGetRemove(t *testing.T) {
	r := NewRegistry()

	d := r.Login("192.168.1.10")
	if d.IP() != "192.168.1.10" {
		t.Fatalf("IP() = %q", d.IP())
	}

	got, ok := r.Get("192.168.1.10")
	if !ok || got != d {
		t.Fatal("expected Get to return the same device instance")
	}

	if r.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", r.Len())
	}

	r.Remove("192.168.1.10")
	if _, ok := r.Get("192.168.1.10"); ok {
		t.Error("expected device to be gone after Remove")
	}
	if r.Len() != 0 {
		t.Errorf("Len() = %d, want 0 after Remove", r.Len())
	}
}

func TestRegistryLoginReplacesExistingDevice(t *testing.T) {
	r := NewRegistry()
	first := r.Login("10.0.0.1")
	second := r.Login("10.0.0.1")

	if first == second {
		t.Error("expected a fresh Device on re-login")
	}
	got, _ := r.Get("10.0.0.1")
	if got != second {
		t.Error("expected registry to hold the latest login")
	}
}

func TestRegistryAll(t *testing.T) {
	r := NewRegistry()
	r.Login("10.0.0.1")
	r.Login("10.0.0.2")

	all := r.All()
	if len(all) != 2 {
		t.Fatalf("All() returned %d devices, want 2", len(all))
	}
}
