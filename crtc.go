package aquamarine

import "github.com/ziyao233/aquamarine/drm/mode"

// CRTC is a scan-out engine. Its plane references are weak (resolved by
// id through the Backend's flat collection) to avoid the cyclic
// ownership graph CRTC<->Plane<->Connector would otherwise form
// (spec.md §9).
type CRTC struct {
	ID uint32

	// PrimaryID/CursorID are 0 until a plane of that role is bound
	// during resource introspection (spec.md §4.B).
	PrimaryID uint32
	CursorID  uint32

	GammaSize int

	// ModeIDPropID/VRREnabledPropID are property ids discovered during
	// introspection; 0 if the property is absent on this CRTC.
	ModeIDPropID     uint32
	VRREnabledPropID uint32

	// Refresh is the CRTC's current refresh rate in milli-Hz, updated
	// after every successful mode commit (spec.md §4.F).
	Refresh int
}

func (b *Backend) primaryPlane(crtcID uint32) *Plane {
	c := b.crtc(crtcID)
	if c == nil || c.PrimaryID == 0 {
		return nil
	}
	return b.plane(c.PrimaryID)
}

func (b *Backend) cursorPlane(crtcID uint32) *Plane {
	c := b.crtc(crtcID)
	if c == nil || c.CursorID == 0 {
		return nil
	}
	return b.plane(c.CursorID)
}

func (b *Backend) crtc(id uint32) *CRTC {
	for i := range b.crtcs {
		if b.crtcs[i].ID == id {
			return &b.crtcs[i]
		}
	}
	return nil
}

// introspectCRTCs allocates a CRTC record for each id, reading its gamma
// size and property ids; any kernel error aborts init (spec.md §4.B).
func (b *Backend) introspectCRTCs(ids []uint32) error {
	if len(ids) > 32 {
		return ErrTooManyCRTCs
	}

	for _, id := range ids {
		gc, err := b.dev.GetCrtc(id)
		if err != nil {
			return err
		}

		c := CRTC{ID: id, GammaSize: gc.GammaSize}

		props, err := b.dev.ObjectProperties(id, mode.ObjectCRTC)
		if err != nil {
			return err
		}
		if p, ok := mode.FindProperty(props, "MODE_ID"); ok {
			c.ModeIDPropID = p.ID
		}
		if p, ok := mode.FindProperty(props, "VRR_ENABLED"); ok {
			c.VRREnabledPropID = p.ID
		}

		b.crtcs = append(b.crtcs, c)
	}

	return nil
}
