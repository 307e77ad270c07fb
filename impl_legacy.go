package aquamarine

import "github.com/ziyao233/aquamarine/drm/mode"

// legacyImpl is the only Impl the core ships (spec.md §1, §9): an
// atomic-KMS implementation is admitted by the interface but not
// provided.
type legacyImpl struct {
	backend *Backend
}

func newLegacyImpl(b *Backend) *legacyImpl {
	return &legacyImpl{backend: b}
}

// Commit executes data against connector c via the legacy SETCRTC/
// PAGE_FLIP ioctls: a modeset always goes through SETCRTC; a buffer-only
// commit is a page flip; a buffer-less, non-modeset commit (VRR/cursor
// property changes) has nothing further to submit at the legacy level.
func (l *legacyImpl) Commit(c *Connector, data *CommitData) (bool, error) {
	if data.Test {
		// The legacy uAPI has no dry-run verb; treat test commits as
		// always satisfiable once pre-validation above has passed.
		return true, nil
	}

	if data.Modeset {
		var fbID uint32
		if data.MainFB != nil {
			fbID = data.MainFB.ID
		}
		connIDs := []uint32{c.ID}
		if err := l.backend.dev.SetCrtc(c.CRTCID, fbID, 0, 0, connIDs, &data.ModeInfo); err != nil {
			return false, err
		}
		return true, nil
	}

	if data.MainFB != nil {
		var flags uint32
		if data.Flags&FlagPageFlipAsync != 0 {
			flags |= mode.PageFlipAsync
		}
		if err := l.backend.dev.PageFlip(c.CRTCID, data.MainFB.ID, flags, 0); err != nil {
			return false, err
		}
	}

	return true, nil
}

// Reset clears the CRTC's buffer and mode, used by VT restore before
// the connector's commit is reissued (spec.md §4.H).
func (l *legacyImpl) Reset(c *Connector) error {
	return l.backend.dev.SetCrtc(c.CRTCID, 0, 0, 0, nil, nil)
}
