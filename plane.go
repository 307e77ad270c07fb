package aquamarine

import "github.com/ziyao233/aquamarine/drm/mode"

// Plane role classification (spec.md §3).
const (
	PlanePrimary = mode.PlaneTypePrimary
	PlaneCursor  = mode.PlaneTypeCursor
	PlaneOverlay = mode.PlaneTypeOverlay
)

// LINEAR and INVALID are the two modifier constants spec.md §6 names.
const (
	ModifierLinear  uint64 = 0
	ModifierInvalid uint64 = (1 << 56) - 1
)

// FormatEntry is one scanout-capable pixel format and the set of
// modifiers it may be presented with (spec.md §4.C).
type FormatEntry struct {
	Format    uint32
	Modifiers map[uint64]struct{}
}

// Plane models a DRM plane object. CRTCID is a weak reference resolved
// by id; FrontFB/BackFB track the last-committed scanout buffer and its
// predecessor for release-tracking (spec.md §3).
type Plane struct {
	ID            uint32
	Type          int
	PossibleCRTCs uint32

	Formats []FormatEntry

	CRTCID uint32

	FrontFB *Framebuffer
	BackFB  *Framebuffer

	inFormatsPropID uint32
}

func (p *Plane) supports(format uint32, modifier uint64) bool {
	for _, f := range p.Formats {
		if f.Format != format {
			continue
		}
		_, ok := f.Modifiers[modifier]
		return ok
	}
	return false
}

func (p *Plane) addModifier(format uint32, modifier uint64) {
	for i := range p.Formats {
		if p.Formats[i].Format == format {
			p.Formats[i].Modifiers[modifier] = struct{}{}
			return
		}
	}
	p.Formats = append(p.Formats, FormatEntry{
		Format:    format,
		Modifiers: map[uint64]struct{}{modifier: {}},
	})
}

func (b *Backend) plane(id uint32) *Plane {
	for i := range b.planes {
		if b.planes[i].ID == id {
			return &b.planes[i]
		}
	}
	return nil
}

// introspectPlanes allocates a Plane record for each id, reads its type
// and properties, seeds its format list, then assigns primary/cursor
// roles to CRTCs (spec.md §4.B, §4.C).
func (b *Backend) introspectPlanes(ids []uint32) error {
	for _, id := range ids {
		mp, err := b.dev.GetPlane(id)
		if err != nil {
			return err
		}

		props, err := b.dev.ObjectProperties(id, mode.ObjectPlane)
		if err != nil {
			return err
		}

		typ := PlaneOverlay
		if p, ok := mode.FindProperty(props, "type"); ok {
			typ = int(p.Value)
		}

		plane := Plane{
			ID:            id,
			Type:          typ,
			PossibleCRTCs: mp.PossibleCrtcs,
			CRTCID:        mp.CRTCID,
		}

		if p, ok := mode.FindProperty(props, "IN_FORMATS"); ok {
			plane.inFormatsPropID = p.ID
		}

		seedPlaneFormats(&plane, mp.Formats)

		if plane.inFormatsPropID != 0 && b.caps.SupportsAddFB2Modifiers {
			if err := b.applyFormatModifierBlob(&plane, props); err != nil {
				b.log.Errorf("plane %d: failed to read IN_FORMATS blob: %v", id, err)
			}
		}

		b.planes = append(b.planes, plane)
	}

	return assignPlaneRoles(b.crtcs, b.planes)
}

// seedPlaneFormats seeds each flat format from the plane's raw list:
// (format, {LINEAR, INVALID}) for non-cursor planes, (format, {LINEAR})
// for cursor planes (spec.md §4.C).
func seedPlaneFormats(p *Plane, formats []uint32) {
	for _, f := range formats {
		mods := map[uint64]struct{}{ModifierLinear: {}}
		if p.Type != PlaneCursor {
			mods[ModifierInvalid] = struct{}{}
		}
		p.Formats = append(p.Formats, FormatEntry{Format: f, Modifiers: mods})
	}
}

func (b *Backend) applyFormatModifierBlob(p *Plane, props []mode.Property) error {
	prop, ok := mode.FindProperty(props, "IN_FORMATS")
	if !ok {
		return nil
	}
	blob, err := b.dev.PropertyBlob(uint32(prop.Value))
	if err != nil {
		return err
	}
	pairs, err := mode.DecodeFormatModifierBlob(blob)
	if err != nil {
		return err
	}
	for _, pair := range pairs {
		p.addModifier(pair.Format, pair.Modifier)
	}
	return nil
}

// assignPlaneRoles binds each primary/cursor plane to the lowest-
// indexed CRTC whose possible-crtcs mask permits it and that does not
// yet have a plane of that role (spec.md §4.B). Overlay planes are
// recorded but never assigned a role.
func assignPlaneRoles(crtcs []CRTC, planes []Plane) error {
	for i := range planes {
		p := &planes[i]
		if p.Type != PlanePrimary && p.Type != PlaneCursor {
			continue
		}

		for ci := range crtcs {
			c := &crtcs[ci]
			if p.PossibleCRTCs&(1<<uint(ci)) == 0 {
				continue
			}
			if p.Type == PlanePrimary && c.PrimaryID == 0 {
				c.PrimaryID = p.ID
				break
			}
			if p.Type == PlaneCursor && c.CursorID == 0 {
				c.CursorID = p.ID
				break
			}
		}
	}
	return nil
}
