package device

// PermissionLevel is the sum type of a resolved caller identity: no
// device (anonymous/default), a subdevice-scoped credential, or a full
// device owner. Grounded on original_source/src/device/permissions.py's
// DefaultPermissions/SubdevPermissions/MaxPermissions.
type PermissionLevel interface {
	IntLevel() int
	Device() *Device
}

type defaultPermissions struct{}

func (defaultPermissions) IntLevel() int   { return 0 }
func (defaultPermissions) Device() *Device { return nil }

type subdevPermissions struct{ device *Device }

func (p subdevPermissions) IntLevel() int   { return 50 }
func (p subdevPermissions) Device() *Device { return p.device }

type maxPermissions struct{ device *Device }

func (p maxPermissions) IntLevel() int   { return 100 }
func (p maxPermissions) Device() *Device { return p.device }

// Default is the anonymous, no-credential permission level.
func Default() PermissionLevel { return defaultPermissions{} }

// Subdev is the permission level granted to a request authenticated
// with one of d's subdevice tokens.
func Subdev(d *Device) PermissionLevel { return subdevPermissions{device: d} }

// Max is the permission level granted to a request authenticated with
// d's own device token.
func Max(d *Device) PermissionLevel { return maxPermissions{device: d} }
