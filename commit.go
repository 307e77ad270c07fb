package aquamarine

import (
	"github.com/ziyao233/aquamarine/drm/mode"
)

// Flags carried on CommitData, mirroring DRM_MODE_PAGE_FLIP_* (spec.md
// §4.F).
const (
	FlagPageFlipEvent = 1 << 0
	FlagPageFlipAsync = 1 << 1
)

// CommitData is constructed fresh for every commit attempt (spec.md
// §3).
type CommitData struct {
	MainFB   *Framebuffer
	CursorFB *Framebuffer
	ModeInfo mode.Info
	Flags    uint32
	Modeset  bool
	Blocking bool
	Test     bool
}

// Impl is the pluggable low-level commit executor (spec.md §9): only
// the legacy KMS backend is specified here, but the interface admits an
// atomic implementation too.
type Impl interface {
	Commit(c *Connector, data *CommitData) (bool, error)
	Reset(c *Connector) error
}

// commitState is the shared entry point for both Output.Commit and
// Output.Test (spec.md §4.F).
func (b *Backend) commitState(o *Output, onlyTest bool) (bool, error) {
	if b.removed {
		return false, ErrGPURemoved
	}

	c := o.connector
	st := &o.State

	// Pre-validation, in order (spec.md §4.F).
	if !b.session.Active() {
		return false, ErrSessionInactive
	}
	if c.CRTCID == 0 {
		return false, ErrNoCRTC
	}
	if st.CommittedFields&FieldEnabled != 0 && st.Enabled {
		if st.Mode == nil && st.CustomMode == nil {
			return false, ErrNoMode
		}
	}
	if st.CommittedFields&FieldAdaptiveSync != 0 && st.AdaptiveSync {
		if !c.VRRCapable {
			return false, ErrNotVRRCapable
		}
	}
	if st.CommittedFields&FieldPresentationMode != 0 && st.PresentationMode == PresentationImmediate {
		if !b.caps.SupportsAsyncCommit {
			return false, ErrNoAsyncCommit
		}
	}
	if st.CommittedFields&FieldBuffer != 0 && st.Buffer == nil {
		return false, ErrNoBuffer
	}

	// Classification.
	needsReconfig := st.CommittedFields&(FieldEnabled|FieldFormat|FieldMode) != 0
	blocking := needsReconfig || st.CommittedFields&FieldBuffer == 0
	m := st.effectiveMode()

	var flags uint32
	if !onlyTest {
		if st.Enabled {
			flags |= FlagPageFlipEvent
		}
		if st.PresentationMode == PresentationImmediate {
			flags |= FlagPageFlipAsync
		}
	}

	if !blocking && c.PageFlipPending {
		return false, ErrFlipPending
	}

	data := &CommitData{
		Flags:    flags,
		Modeset:  needsReconfig,
		Blocking: blocking,
		Test:     onlyTest,
	}

	if m != nil {
		if m.Timing != nil {
			data.ModeInfo = *m.Timing
		} else {
			data.ModeInfo = synthesizeMode(m.Width, m.Height, m.RefreshMHz)
		}
	}

	fresh := false
	if st.CommittedFields&FieldBuffer != 0 {
		fb, isFresh, err := b.acquireFB(c, st.Buffer)
		if err != nil {
			return false, err
		}
		data.MainFB = fb
		fresh = isFresh
		if onlyTest && fresh {
			defer fb.drop()
		}
	}

	ok, err := b.impl.Commit(c, data)
	if err != nil || !ok {
		if fresh && !onlyTest {
			data.MainFB.drop()
		}
		b.rollbackCommit(c, data)
		return false, err
	}

	if !onlyTest {
		b.applyCommit(c, data)
		if !blocking && data.Flags&FlagPageFlipEvent != 0 {
			c.PageFlipPending = true
		}
	}

	o.events.Commit.Emit(struct{}{})
	return true, nil
}

// acquireFB reuses the CRTC primary plane's front/back FB if it already
// wraps buf, otherwise imports buf fresh (spec.md §4.F). fresh reports
// whether a new kernel fb was created, so a test-only commit (which
// never runs applyCommit to adopt it into the plane) knows to drop it.
func (b *Backend) acquireFB(c *Connector, buf Buffer) (fb *Framebuffer, fresh bool, err error) {
	if p := b.primaryPlane(c.CRTCID); p != nil {
		if p.FrontFB != nil && p.FrontFB.Source == buf {
			return p.FrontFB, false, nil
		}
		if p.BackFB != nil && p.BackFB.Source == buf {
			return p.BackFB, false, nil
		}
	}
	fb, err = importFramebuffer(b.dev, b.caps, buf)
	return fb, err == nil, err
}

// applyCommit shifts plane front->back and the new FB into front, for
// primary and (if present) cursor; recomputes CRTC.refresh on a mode
// commit (spec.md §4.F).
func (b *Backend) applyCommit(c *Connector, data *CommitData) {
	if p := b.primaryPlane(c.CRTCID); p != nil && data.MainFB != nil {
		shiftFB(p, data.MainFB)
	}
	if p := b.cursorPlane(c.CRTCID); p != nil && data.CursorFB != nil {
		shiftFB(p, data.CursorFB)
	}

	if data.Modeset {
		if crtc := b.crtc(c.CRTCID); crtc != nil {
			crtc.Refresh = calculateRefresh(data.ModeInfo)
		}
	}
}

func shiftFB(p *Plane, newFB *Framebuffer) {
	if p.FrontFB == newFB {
		return
	}
	old := p.BackFB
	p.BackFB = p.FrontFB
	p.FrontFB = newFB
	if old != nil {
		old.drop()
	}
}

// rollbackCommit is a no-op placeholder (spec.md §4.F): a freshly
// imported FB that a test-only attempt never adopted into a plane is
// already dropped by commitState's defer, and one that a failed
// non-test commit never adopted is dropped by commitState before this
// runs; an FB reused from the plane's front/back stays with the plane.
func (b *Backend) rollbackCommit(c *Connector, data *CommitData) {}
