package aquamarine

import (
	"fmt"

	"github.com/ziyao233/aquamarine/drm/mode"
)

// Framebuffer is a kernel fb id bound to a source Buffer, plus the GEM
// handles PRIME-imported for each plane (spec.md §3). Invariant: ID is
// nonzero iff the Framebuffer is live; drop is idempotent.
type Framebuffer struct {
	ID     uint32
	Source Buffer

	handles       [4]uint32
	dropped       bool
	handlesClosed bool

	dev kmsDevice
}

// importFramebuffer builds a Framebuffer from buf (spec.md §4.E). It
// returns (nil, err) if import fails. Only a failed submit (AddFB2, or
// the explicit-modifier mismatch rejected before it) marks the buffer
// UNIMPORTABLE so subsequent commits fail fast without retrying;
// transient dmabuf-query or PRIME-import failures do not poison the
// buffer, matching original_source's CDRMFB constructor.
func importFramebuffer(dev kmsDevice, caps DeviceCapabilities, buf Buffer) (*Framebuffer, error) {
	if buf.Attachments().Has(AttachmentUnimportable) {
		return nil, ErrBufferUnimportable
	}

	attrs := buf.DMABUF()
	if !attrs.Success {
		return nil, fmt.Errorf("%w: dmabuf query failed", ErrFBImport)
	}

	fb := &Framebuffer{Source: buf, dev: dev}

	params := mode.AddFB2Params{
		Width:  attrs.Width,
		Height: attrs.Height,
		Format: attrs.Format,
	}

	for i := 0; i < attrs.Planes; i++ {
		handle, err := dev.PrimeFDToHandle(attrs.FDs[i])
		if err != nil {
			fb.drop()
			return nil, fmt.Errorf("%w: prime import plane %d: %v", ErrFBImport, i, err)
		}
		fb.handles[i] = handle
		params.Handles[i] = handle
		params.Pitches[i] = attrs.Strides[i]
		params.Offsets[i] = attrs.Offsets[i]
		params.Modifiers[i] = attrs.Modifier
	}

	switch {
	case caps.SupportsAddFB2Modifiers && attrs.Modifier != ModifierInvalid:
		params.WithModifiers = true
	case attrs.Modifier != ModifierInvalid && attrs.Modifier != ModifierLinear:
		buf.Attachments().Add(AttachmentUnimportable)
		return nil, fmt.Errorf("%w: device cannot express explicit modifier %#x", ErrFBImport, attrs.Modifier)
	}

	id, err := dev.AddFB2(params)
	if err != nil {
		buf.Attachments().Add(AttachmentUnimportable)
		fb.drop()
		return nil, fmt.Errorf("%w: %v", ErrFBImport, err)
	}

	fb.ID = id
	return fb, nil
}

// drop releases the kernel fb id, preferring the newer close verb and
// falling back to remove on EINVAL (mode.CloseFB already does this).
// GEM handle closure is deliberately skipped: some drivers tear down
// the still-live framebuffer when its last GEM handle closes (spec.md
// §4.E, §9). drop is idempotent.
func (fb *Framebuffer) drop() error {
	if fb.dropped {
		return nil
	}
	fb.dropped = true

	if fb.ID == 0 {
		return nil
	}

	err := fb.dev.CloseFB(fb.ID)
	fb.ID = 0
	return err
}
