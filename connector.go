package aquamarine

import (
	"fmt"

	"github.com/ziyao233/aquamarine/drm/mode"
)

// Connector type names mirrored from linux/drm_mode.h's
// DRM_MODE_CONNECTOR_* enum, used to build the stable "<type>-<n>"
// name (spec.md §3), the same mapping libdrm's
// drmModeGetConnectorTypeName exposes (original_source/DRM.cpp).
var connectorTypeNames = map[uint32]string{
	0:  "Unknown",
	1:  "VGA",
	2:  "DVI-I",
	3:  "DVI-D",
	4:  "DVI-A",
	5:  "Composite",
	6:  "SVIDEO",
	7:  "LVDS",
	8:  "Component",
	9:  "DIN",
	10: "DP",
	11: "HDMI-A",
	12: "HDMI-B",
	13: "TV",
	14: "eDP",
	15: "Virtual",
	16: "DSI",
	17: "DPI",
	18: "Writeback",
	19: "SPI",
	20: "USB",
}

func connectorTypeName(typ uint32) string {
	if n, ok := connectorTypeNames[typ]; ok {
		return n
	}
	return "Unknown"
}

// Connector tracks one physical or virtual display output (spec.md
// §3). CRTCID is a weak reference resolved by id.
type Connector struct {
	ID            uint32
	Name          string
	Status        uint8 // mode.Connected / mode.Disconnected
	PossibleCRTCs uint32
	CRTCID        uint32

	Modes        []Mode
	FallbackMode *Mode

	VRRCapable bool
	MaxBPCMin  int
	MaxBPCMax  int
	EDID       []byte
	WidthMM    uint32
	HeightMM   uint32
	Subpixel   uint8
	NonDesktop bool

	Output *Output

	PageFlipPending bool

	crtcIDPropID     uint32
	vrrCapablePropID uint32
	maxBPCPropID     uint32
	nonDesktopPropID uint32
	edidPropID       uint32

	backend *Backend
}

// onPresent is a hook point called just before a completed page flip's
// Present event is emitted; the original backend's equivalent callback
// is a no-op (spec.md §4.G).
func (c *Connector) onPresent() {}

func (b *Backend) connector(id uint32) *Connector {
	for _, c := range b.connectors {
		if c.ID == id {
			return c
		}
	}
	return nil
}

// scanConnectors reuses or creates a Connector record for each id, then
// reconciles connect/disconnect transitions (spec.md §4.D).
func (b *Backend) scanConnectors(ids []uint32) error {
	for _, id := range ids {
		c := b.connector(id)
		if c == nil {
			c = &Connector{ID: id, Status: mode.Disconnected, backend: b}
			b.connectors = append(b.connectors, c)
		}

		kconn, err := b.dev.GetConnector(id)
		if err != nil {
			return err
		}

		props, err := b.dev.ObjectProperties(id, mode.ObjectConnector)
		if err != nil {
			return err
		}

		c.PossibleCRTCs = possibleCRTCsMask(b, kconn)
		c.Name = fmt.Sprintf("%s-%d", connectorTypeName(kconn.Type), kconn.TypeID)
		c.crtcIDPropID = propID(props, "CRTC_ID")
		c.vrrCapablePropID = propID(props, "vrr_capable")
		c.maxBPCPropID = propID(props, "max bpc")
		c.nonDesktopPropID = propID(props, "non-desktop")
		c.edidPropID = propID(props, "EDID")

		c.CRTCID = b.resolveCurrentCRTC(c, kconn, props)

		wasConnected := c.Status == mode.Connected
		nowConnected := kconn.Connection == mode.Connected

		switch {
		case !wasConnected && nowConnected:
			c.Status = mode.Connected
			if err := b.connect(c, kconn, props); err != nil {
				b.log.Errorf("connector %s: connect failed: %v", c.Name, err)
			}
		case wasConnected && !nowConnected:
			b.disconnect(c)
		}
	}

	return nil
}

func propID(props []mode.Property, name string) uint32 {
	if p, ok := mode.FindProperty(props, name); ok {
		return p.ID
	}
	return 0
}

func possibleCRTCsMask(b *Backend, kconn *mode.Connector) uint32 {
	var mask uint32
	for _, encID := range kconn.Encoders {
		enc, err := b.dev.GetEncoder(encID)
		if err != nil {
			continue
		}
		mask |= enc.PossibleCrtcs
	}
	return mask
}

// resolveCurrentCRTC prefers the kernel CRTC_ID property, falling back
// to the connector's current encoder's crtc_id (spec.md §4.D).
func (b *Backend) resolveCurrentCRTC(c *Connector, kconn *mode.Connector, props []mode.Property) uint32 {
	if p, ok := mode.FindProperty(props, "CRTC_ID"); ok && p.Value != 0 {
		return uint32(p.Value)
	}
	if kconn.EncoderID != 0 {
		if enc, err := b.dev.GetEncoder(kconn.EncoderID); err == nil {
			return enc.CrtcID
		}
	}
	return 0
}

// connect is idempotent: a no-op if an Output already exists (spec.md
// §4.D).
func (b *Backend) connect(c *Connector, kconn *mode.Connector, props []mode.Property) error {
	if c.Output != nil {
		return nil
	}

	c.Output = newOutput(c)

	var kernelCurrent *mode.Info
	if c.CRTCID != 0 {
		if gc, err := b.dev.GetCrtc(c.CRTCID); err == nil && gc.ModeValid != 0 {
			kernelCurrent = &gc.Mode
		}
	}

	for i, km := range kconn.Modes {
		if km.Flags&modeFlagInterlace != 0 {
			continue
		}

		m := Mode{
			Width:      int(km.Hdisplay),
			Height:     int(km.Vdisplay),
			RefreshMHz: calculateRefresh(km),
			Preferred:  km.Type&0x8 != 0, // DRM_MODE_TYPE_PREFERRED
			Timing:     &kconn.Modes[i],
		}
		c.Output.Modes = append(c.Output.Modes, m)

		if len(c.Output.Modes) == 2 {
			mm := c.Output.Modes[1]
			c.FallbackMode = &mm
		}

		if kernelCurrent != nil && timingsEqual(km, *kernelCurrent) {
			mm := m
			c.Output.State.Mode = &mm
			if crtc := b.crtc(c.CRTCID); crtc != nil {
				crtc.Refresh = m.RefreshMHz
			}
		}
	}

	c.WidthMM = kconn.Width
	c.HeightMM = kconn.Height
	c.Subpixel = kconn.Subpixel
	c.NonDesktop = nonDesktopValue(props)

	c.VRRCapable = connectorVRRCapable(c, props)

	if c.maxBPCPropID != 0 {
		if p, ok := mode.FindProperty(props, "max bpc"); ok {
			c.MaxBPCMax = int(p.Value)
		}
	}

	if c.edidPropID != 0 {
		if p, ok := mode.FindProperty(props, "EDID"); ok {
			if blob, err := b.dev.PropertyBlob(uint32(p.Value)); err == nil {
				c.EDID = blob
			}
		}
	}

	if b.ready {
		b.bringOutputReady(c)
	}

	return nil
}

func timingsEqual(a, b mode.Info) bool {
	return a.Clock == b.Clock && a.Htotal == b.Htotal && a.Vtotal == b.Vtotal &&
		a.Hdisplay == b.Hdisplay && a.Vdisplay == b.Vdisplay
}

func nonDesktopValue(props []mode.Property) bool {
	p, ok := mode.FindProperty(props, "non-desktop")
	return ok && p.Value != 0
}

// connectorVRRCapable requires both vrr_capable on the connector and
// vrr_enabled on its bound CRTC (spec.md §4.D).
func connectorVRRCapable(c *Connector, props []mode.Property) bool {
	p, ok := mode.FindProperty(props, "vrr_capable")
	if !ok || p.Value == 0 {
		return false
	}
	crtc := c.backend.crtc(c.CRTCID)
	return crtc != nil && crtc.VRREnabledPropID != 0
}

// disconnect is idempotent: emits destroy on the Output, releases the
// reference, and sets status DISCONNECTED. The underlying Connector
// record persists (spec.md §4.D).
func (b *Backend) disconnect(c *Connector) {
	if c.Output == nil {
		c.Status = mode.Disconnected
		return
	}

	c.Output.events.Destroy.Emit(struct{}{})
	c.Output = nil
	c.Status = mode.Disconnected
	c.PageFlipPending = false
}
