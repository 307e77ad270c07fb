package aquamarine

// Session, SessionDevice and UdevDevice are the interfaces the core
// consumes from the session/seat collaborator (spec.md §6). The core
// never opens a device node itself; it always goes through these.

// UdevDevice is one enumerated device the session/seat layer found,
// e.g. by walking the "drm" subsystem.
type UdevDevice interface {
	// Sysname is the kernel device name, e.g. "card0".
	Sysname() string
	// Syspath is the sysfs path of the device.
	Syspath() string
	// Property looks up a udev property such as "ID_SEAT"; ok is false
	// if the property is absent.
	Property(name string) (value string, ok bool)
	// IsBootVGA reports whether the device's PCI parent carries
	// boot_vga=1.
	IsBootVGA() bool
	// DevNode is the device node path (e.g. "/dev/dri/card0"), or ""
	// if the device has none.
	DevNode() string
}

// SessionDeviceEvents are the events a SessionDevice can emit.
type SessionDeviceEvents struct {
	// Change fires when the device signals a state change (e.g.
	// hotplug); changeType identifies what changed.
	Change Signal[int]
	// Remove fires when the device is removed from the system.
	Remove Signal[struct{}]
}

// Change-event types carried on SessionDeviceEvents.Change.
const (
	ChangeHotplug = iota
	ChangeLease
)

// SessionDevice wraps an opened DRM device node on behalf of the core.
// The session/seat layer owns privilege negotiation (DRM master) and
// the underlying fd lifetime.
type SessionDevice interface {
	// FD is the open device file descriptor.
	FD() uintptr
	// Path is the device node path this handle was opened from.
	Path() string
	// Events exposes this device's hotplug/removal notifications.
	Events() *SessionDeviceEvents
}

// Session is the seat/session collaborator: it knows whether the
// compositor currently owns the seat (e.g. is the active VT) and can
// open device nodes on the core's behalf after a KMS probe.
type Session interface {
	// Active reports whether the session currently owns the seat.
	Active() bool
	// SeatName is the session's configured seat name. The core does not
	// call it: device discovery filters by the seat given to Attempt via
	// WithSeat ("seat0" by default).
	SeatName() string
	// OpenIfKMS opens devNode, probing that it actually supports KMS,
	// and returns a handle usable for mode-setting. Returns an error
	// if the probe fails.
	OpenIfKMS(devNode string) (SessionDevice, error)
	// Udev enumerates candidate devices in the "drm" subsystem.
	Udev() []UdevDevice
	// DispatchPendingEvents drains any queued session events (e.g.
	// changeActive) without blocking. Used by the bounded
	// activation-wait loop in device discovery.
	DispatchPendingEvents()
	// Events exposes session-wide notifications the core subscribes
	// to, notably ChangeActive.
	Events() *SessionEvents
}

// SessionEvents are session-wide (not per-device) notifications.
type SessionEvents struct {
	// ChangeActive fires when seat ownership changes; the bool payload
	// is the new active state.
	ChangeActive Signal[bool]
}
