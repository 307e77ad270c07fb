package aquamarine

import (
	"testing"

	"github.com/ziyao233/aquamarine/drm/mode"
)

func commitTestBackend(t *testing.T) (*Backend, *Connector) {
	t.Helper()
	dev := newFakeKMSDevice()
	setupOneCRTCOnePrimaryPlane(dev)

	b, err := newTestBackend(dev, nil)
	if err != nil {
		t.Fatalf("newTestBackend: %v", err)
	}
	return b, b.connector(20)
}

func TestCommitBufferOnlyShufflesFrontBack(t *testing.T) {
	b, c := commitTestBackend(t)

	buf1 := newFakeBuffer(1920, 1080, 0x34325258)
	c.Output.State = OutputState{
		Enabled:         true,
		Mode:            &c.Output.Modes[0],
		Buffer:          buf1,
		CommittedFields: FieldEnabled | FieldMode | FieldBuffer,
	}
	if ok, err := c.Output.Commit(); err != nil || !ok {
		t.Fatalf("first commit: ok=%v err=%v", ok, err)
	}

	p := b.primaryPlane(c.CRTCID)
	if p == nil || p.FrontFB == nil || p.FrontFB.Source != buf1 {
		t.Fatalf("expected primary plane's front FB to wrap buf1, got %+v", p)
	}
	if p.BackFB != nil {
		t.Errorf("expected no back FB yet, got %+v", p.BackFB)
	}

	buf2 := newFakeBuffer(1920, 1080, 0x34325258)
	c.Output.State.Buffer = buf2
	c.Output.State.CommittedFields = FieldBuffer

	if ok, err := c.Output.Commit(); err != nil || !ok {
		t.Fatalf("second commit: ok=%v err=%v", ok, err)
	}

	if p.FrontFB.Source != buf2 {
		t.Errorf("expected front FB to now wrap buf2")
	}
	if p.BackFB == nil || p.BackFB.Source != buf1 {
		t.Errorf("expected back FB to wrap buf1, got %+v", p.BackFB)
	}
}

func TestCommitModesetUpdatesCRTCRefresh(t *testing.T) {
	b, c := commitTestBackend(t)

	c.Output.State = OutputState{
		Enabled:         true,
		Mode:            &c.Output.Modes[0],
		Buffer:          newFakeBuffer(1920, 1080, 0x34325258),
		CommittedFields: FieldEnabled | FieldMode | FieldBuffer,
	}
	if ok, err := c.Output.Commit(); err != nil || !ok {
		t.Fatalf("commit: ok=%v err=%v", ok, err)
	}

	crtc := b.crtc(c.CRTCID)
	want := calculateRefresh(*c.Output.Modes[0].Timing)
	if crtc.Refresh != want {
		t.Errorf("expected CRTC.Refresh %d, got %d", want, crtc.Refresh)
	}
}

func TestCommitSetsPageFlipPendingUntilDispatched(t *testing.T) {
	dev := newFakeKMSDevice()
	setupOneCRTCOnePrimaryPlane(dev)
	b, err := newTestBackend(dev, nil)
	if err != nil {
		t.Fatalf("newTestBackend: %v", err)
	}
	c := b.connector(20)

	c.Output.State = OutputState{
		Enabled:         true,
		Mode:            &c.Output.Modes[0],
		Buffer:          newFakeBuffer(1920, 1080, 0x34325258),
		CommittedFields: FieldEnabled | FieldMode | FieldBuffer,
	}
	// Initial modeset commit is blocking, so it never sets
	// PageFlipPending (spec.md §4.F).
	if ok, err := c.Output.Commit(); err != nil || !ok {
		t.Fatalf("modeset commit: ok=%v err=%v", ok, err)
	}
	if c.PageFlipPending {
		t.Fatalf("expected no pending flip after a blocking modeset commit")
	}

	// A buffer-only commit is non-blocking and carries PAGE_FLIP_EVENT.
	c.Output.State.Buffer = newFakeBuffer(1920, 1080, 0x34325258)
	c.Output.State.CommittedFields = FieldBuffer
	if ok, err := c.Output.Commit(); err != nil || !ok {
		t.Fatalf("buffer commit: ok=%v err=%v", ok, err)
	}
	if !c.PageFlipPending {
		t.Fatalf("expected PageFlipPending after a non-blocking flip-event commit")
	}

	// A further non-blocking buffer commit must be refused while the
	// flip is still outstanding (spec.md §4.F).
	c.Output.State.Buffer = newFakeBuffer(1920, 1080, 0x34325258)
	c.Output.State.CommittedFields = FieldBuffer
	if _, err := c.Output.Commit(); err != ErrFlipPending {
		t.Errorf("expected ErrFlipPending, got %v", err)
	}

	dev.pendingEvents = []mode.PageFlipEvent{{CRTCID: c.CRTCID, Sequence: 1}}
	b.DispatchEvents()

	if c.PageFlipPending {
		t.Errorf("expected PageFlipPending to clear after the flip event is dispatched")
	}

	if ok, err := c.Output.Commit(); err != nil || !ok {
		t.Errorf("expected the previously-refused commit to succeed once the flip completed: ok=%v err=%v", ok, err)
	}
}

func TestCommitRefusesWithoutCRTC(t *testing.T) {
	_, c := commitTestBackend(t)
	c.CRTCID = 0

	c.Output.State = OutputState{
		Enabled:         true,
		Mode:            &c.Output.Modes[0],
		Buffer:          newFakeBuffer(1920, 1080, 0x34325258),
		CommittedFields: FieldEnabled | FieldMode | FieldBuffer,
	}
	if _, err := c.Output.Commit(); err != ErrNoCRTC {
		t.Errorf("expected ErrNoCRTC, got %v", err)
	}
}

func TestCommitRefusesWhenSessionInactive(t *testing.T) {
	dev := newFakeKMSDevice()
	setupOneCRTCOnePrimaryPlane(dev)
	session := &fakeSession{active: false, seatName: "seat0"}
	b, err := newTestBackend(dev, session)
	if err != nil {
		t.Fatalf("newTestBackend: %v", err)
	}
	c := b.connector(20)

	c.Output.State = OutputState{
		Enabled:         true,
		Mode:            &c.Output.Modes[0],
		Buffer:          newFakeBuffer(1920, 1080, 0x34325258),
		CommittedFields: FieldEnabled | FieldMode | FieldBuffer,
	}
	if _, err := c.Output.Commit(); err != ErrSessionInactive {
		t.Errorf("expected ErrSessionInactive, got %v", err)
	}
}

// TestTestCommitDropsFreshlyImportedFB covers the fix for a leaked
// kernel fb id: Output.Test imports a fresh FB to validate a buffer
// commit but never adopts it into a plane, so commitState must drop it
// itself rather than relying on the no-op rollback.
func TestTestCommitDropsFreshlyImportedFB(t *testing.T) {
	b, c := commitTestBackend(t)

	c.Output.State = OutputState{
		Enabled:         true,
		Mode:            &c.Output.Modes[0],
		Buffer:          newFakeBuffer(1920, 1080, 0x34325258),
		CommittedFields: FieldEnabled | FieldMode | FieldBuffer,
	}
	if ok, err := c.Output.Test(); err != nil || !ok {
		t.Fatalf("test commit: ok=%v err=%v", ok, err)
	}

	dev := b.dev.(*fakeKMSDevice)
	if len(dev.closedFBs) != 1 {
		t.Errorf("expected the freshly imported fb to be dropped, got %d CloseFB calls", len(dev.closedFBs))
	}

	p := b.primaryPlane(c.CRTCID)
	if p.FrontFB != nil || p.BackFB != nil {
		t.Errorf("expected Test to leave the plane's FBs untouched, got front=%+v back=%+v", p.FrontFB, p.BackFB)
	}
}

func TestFramebufferDropIsIdempotent(t *testing.T) {
	dev := newFakeKMSDevice()
	caps := DeviceCapabilities{}
	buf := newFakeBuffer(1920, 1080, 0x34325258)

	fb, err := importFramebuffer(dev, caps, buf)
	if err != nil {
		t.Fatalf("importFramebuffer: %v", err)
	}

	if err := fb.drop(); err != nil {
		t.Fatalf("drop: %v", err)
	}
	if err := fb.drop(); err != nil {
		t.Fatalf("second drop: %v", err)
	}

	if len(dev.closedFBs) != 1 {
		t.Errorf("expected exactly 1 CloseFB call, got %d", len(dev.closedFBs))
	}
}

// TestImportFramebufferMarksUnimportableOnFailure covers the one case
// spec §4.E and original_source's CDRMFB constructor mark UNIMPORTABLE
// on: a submit the device cannot honor (here, an explicit modifier the
// device cannot express without AddFB2 modifier support), not a
// transient dmabuf-query or PRIME-import failure.
func TestImportFramebufferMarksUnimportableOnFailure(t *testing.T) {
	dev := newFakeKMSDevice()
	caps := DeviceCapabilities{SupportsAddFB2Modifiers: false}
	buf := newFakeBuffer(1920, 1080, 0x34325258)
	buf.attrs.Modifier = 0x0100000000000001 // non-linear, non-invalid

	if _, err := importFramebuffer(dev, caps, buf); err == nil {
		t.Fatalf("expected import to fail")
	}
	if !buf.Attachments().Has(AttachmentUnimportable) {
		t.Errorf("expected the buffer to be marked UNIMPORTABLE")
	}

	// A retry must fail fast without attempting PRIME import again.
	if _, err := importFramebuffer(dev, caps, buf); err != ErrBufferUnimportable {
		t.Errorf("expected ErrBufferUnimportable on retry, got %v", err)
	}
}

// TestImportFramebufferTransientFailureDoesNotPoisonBuffer covers the
// fix: a dmabuf-query failure must not permanently mark the buffer
// UNIMPORTABLE, since it may succeed on a later retry.
func TestImportFramebufferTransientFailureDoesNotPoisonBuffer(t *testing.T) {
	dev := newFakeKMSDevice()
	caps := DeviceCapabilities{}
	buf := newFakeBuffer(1920, 1080, 0x34325258)
	buf.attrs.Success = false

	if _, err := importFramebuffer(dev, caps, buf); err == nil {
		t.Fatalf("expected import to fail")
	}
	if buf.Attachments().Has(AttachmentUnimportable) {
		t.Errorf("transient dmabuf-query failure must not mark the buffer UNIMPORTABLE")
	}

	buf.attrs.Success = true
	if _, err := importFramebuffer(dev, caps, buf); err != nil {
		t.Errorf("expected retry to succeed once the dmabuf query succeeds, got %v", err)
	}
}
