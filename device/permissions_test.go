package device

import "testing"

func TestPermissionLevels(t *testing.T) {
	d := newDevice("10.0.0.1")

	if lvl := Default(); lvl.IntLevel() != 0 || lvl.Device() != nil {
		t.Errorf("Default() = %+v", lvl)
	}
	if lvl := Subdev(d); lvl.IntLevel() != 50 || lvl.Device() != d {
		t.Errorf("Subdev() = %+v", lvl)
	}
	if lvl := Max(d); lvl.IntLevel() != 100 || lvl.Device() != d {
		t.Errorf("Max() = %+v", lvl)
	}
}
