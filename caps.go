package aquamarine

import "github.com/ziyao233/aquamarine/drm"

// DeviceCapabilities is read once at init and never mutated again
// (spec.md §3).
type DeviceCapabilities struct {
	CursorWidth, CursorHeight uint64
	SupportsAsyncCommit       bool
	SupportsAddFB2Modifiers   bool
}

const (
	defaultCursorWidth  = 64
	defaultCursorHeight = 64
)

// checkFeatures probes capabilities in the same fixed order the
// original backend does (cursor size, PRIME import, in-vblank-event,
// timestamp-monotonic, universal planes, then the soft capabilities),
// so the first failing required capability is the one reported.
// SPEC_FULL.md §5.
func checkFeatures(dev kmsDevice, log Logger) (DeviceCapabilities, error) {
	var caps DeviceCapabilities

	caps.CursorWidth = defaultCursorWidth
	if w, err := dev.GetCap(drm.CapCursorWidth); err == nil && w > 0 {
		caps.CursorWidth = w
	}
	caps.CursorHeight = defaultCursorHeight
	if h, err := dev.GetCap(drm.CapCursorHeight); err == nil && h > 0 {
		caps.CursorHeight = h
	}

	prime, err := dev.GetCap(drm.CapPrime)
	if err != nil || prime&drm.PrimeCapImport == 0 {
		return caps, ErrMissingCap
	}

	vblankEvent, err := dev.GetCap(drm.CapCrtcInVblankEvent)
	if err != nil || vblankEvent == 0 {
		return caps, ErrMissingCap
	}

	monotonic, err := dev.GetCap(drm.CapTimestampMonotonic)
	if err != nil || monotonic == 0 {
		return caps, ErrMissingCap
	}

	if err := dev.SetClientCap(drm.ClientCapUniversalPlanes, 1); err != nil {
		return caps, ErrMissingCap
	}

	// Atomic is not required (spec.md §1: only legacy KMS is required),
	// so the atomic client cap is left off (set to 0); errors are ignored.
	_ = dev.SetClientCap(drm.ClientCapAtomic, 0)

	if async, err := dev.GetCap(drm.CapAsyncPageFlip); err == nil && async != 0 {
		caps.SupportsAsyncCommit = true
	}
	if addfb2, err := dev.GetCap(drm.CapAddFB2Modifiers); err == nil && addfb2 != 0 {
		caps.SupportsAddFB2Modifiers = true
	}

	log.Debugf("device capabilities: cursor=%dx%d async=%v addfb2Modifiers=%v",
		caps.CursorWidth, caps.CursorHeight, caps.SupportsAsyncCommit, caps.SupportsAddFB2Modifiers)

	return caps, nil
}
