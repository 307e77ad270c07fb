package aquamarine

import "github.com/ziyao233/aquamarine/drm/mode"

// restoreAfterVT runs on session reactivation (spec.md §4.H): rescan
// connectors since hotplug state may have changed during the switch,
// then reset every lit CRTC before reissuing its modeset, in two
// separate passes (SPEC_FULL.md §5) rather than interleaved. Errors are
// logged per-CRTC and do not abort restore.
func (b *Backend) restoreAfterVT() {
	ids := make([]uint32, 0, len(b.connectors))
	for _, c := range b.connectors {
		ids = append(ids, c.ID)
	}
	if err := b.scanConnectors(ids); err != nil {
		b.log.Errorf("restoreAfterVT: rescan failed: %v", err)
	}

	var lit []*Connector
	for _, c := range b.connectors {
		if c.Status == mode.Connected && c.CRTCID != 0 {
			lit = append(lit, c)
		}
	}

	for _, c := range lit {
		if err := b.impl.Reset(c); err != nil {
			b.log.Errorf("restoreAfterVT: reset CRTC for %s failed: %v", c.Name, err)
		}
	}

	for _, c := range lit {
		if err := b.recommitAfterVT(c); err != nil {
			b.log.Errorf("restoreAfterVT: recommit for %s failed: %v", c.Name, err)
		}
	}
}

// recommitAfterVT reissues a blocking modeset using the connector's
// last-known mode (or CVT-derived timings for a custom mode).
func (b *Backend) recommitAfterVT(c *Connector) error {
	if c.Output == nil {
		return nil
	}

	st := &c.Output.State
	m := st.effectiveMode()
	if m == nil {
		return nil
	}

	var timing mode.Info
	if m.Timing != nil {
		timing = *m.Timing
	} else {
		timing = synthesizeMode(m.Width, m.Height, m.RefreshMHz)
	}

	var fbID uint32
	if p := b.primaryPlane(c.CRTCID); p != nil && p.FrontFB != nil {
		fbID = p.FrontFB.ID
	}

	data := &CommitData{
		ModeInfo: timing,
		Modeset:  true,
		Blocking: true,
	}
	if fbID != 0 && b.primaryPlane(c.CRTCID) != nil {
		data.MainFB = b.primaryPlane(c.CRTCID).FrontFB
	}

	ok, err := b.impl.Commit(c, data)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}

	if crtc := b.crtc(c.CRTCID); crtc != nil {
		crtc.Refresh = calculateRefresh(timing)
	}

	return nil
}
