package aquamarine

import (
	"errors"

	"github.com/ziyao233/aquamarine/drm/mode"
)

// fakeKMSDevice is a pure-Go stand-in for a real DRM device node, used
// across the core's test suite so resource introspection, connector
// lifecycle and the commit engine are exercised without hardware
// (SPEC_FULL.md §3).
type fakeKMSDevice struct {
	caps map[uint64]uint64

	crtcIDs      []uint32
	crtcData     map[uint32]*mode.Crtc
	planeIDs     []uint32
	planeData    map[uint32]*mode.Plane
	connectorIDs []uint32
	connectorData map[uint32]*mode.Connector
	encoderData  map[uint32]*mode.Encoder

	props map[uint32][]mode.Property
	blobs map[uint32][]byte

	nextFBID     uint32
	closedFBs    []uint32
	setCrtcCalls []fakeSetCrtcCall
	pageFlips    []fakePageFlipCall
	pendingEvents []mode.PageFlipEvent

	resourcesErr error
}

type fakeSetCrtcCall struct {
	crtcID, fbID uint32
	connectors   []uint32
	m            *mode.Info
}

type fakePageFlipCall struct {
	crtcID, fbID, flags uint32
}

func newFakeKMSDevice() *fakeKMSDevice {
	return &fakeKMSDevice{
		caps: map[uint64]uint64{
			5:    1, // CapPrime: import bit
			0x12: 1, // CapCrtcInVblankEvent
			6:    1, // CapTimestampMonotonic
			8:    64,
			9:    64,
		},
		crtcData:      map[uint32]*mode.Crtc{},
		planeData:     map[uint32]*mode.Plane{},
		connectorData: map[uint32]*mode.Connector{},
		encoderData:   map[uint32]*mode.Encoder{},
		props:         map[uint32][]mode.Property{},
		blobs:         map[uint32][]byte{},
		nextFBID:      1,
	}
}

func (d *fakeKMSDevice) FD() uintptr { return 42 }

func (d *fakeKMSDevice) DriverName() (string, error) { return "fake", nil }

func (d *fakeKMSDevice) GetCap(capID uint64) (uint64, error) {
	return d.caps[capID], nil
}

func (d *fakeKMSDevice) SetClientCap(capID, value uint64) error { return nil }

func (d *fakeKMSDevice) Resources() (*mode.Resources, error) {
	if d.resourcesErr != nil {
		return nil, d.resourcesErr
	}
	return &mode.Resources{Crtcs: d.crtcIDs, Connectors: d.connectorIDs}, nil
}

func (d *fakeKMSDevice) GetCrtc(id uint32) (*mode.Crtc, error) {
	c, ok := d.crtcData[id]
	if !ok {
		return nil, errors.New("no such crtc")
	}
	cp := *c
	return &cp, nil
}

func (d *fakeKMSDevice) SetCrtc(crtcID, fbID, x, y uint32, connectors []uint32, m *mode.Info) error {
	d.setCrtcCalls = append(d.setCrtcCalls, fakeSetCrtcCall{crtcID: crtcID, fbID: fbID, connectors: connectors, m: m})
	if c, ok := d.crtcData[crtcID]; ok {
		c.BufferID = fbID
		if m != nil {
			c.Mode = *m
			c.ModeValid = 1
		}
	}
	return nil
}

func (d *fakeKMSDevice) PlaneIDs() ([]uint32, error) { return d.planeIDs, nil }

func (d *fakeKMSDevice) GetPlane(id uint32) (*mode.Plane, error) {
	p, ok := d.planeData[id]
	if !ok {
		return nil, errors.New("no such plane")
	}
	cp := *p
	return &cp, nil
}

func (d *fakeKMSDevice) GetConnector(id uint32) (*mode.Connector, error) {
	c, ok := d.connectorData[id]
	if !ok {
		return nil, errors.New("no such connector")
	}
	cp := *c
	return &cp, nil
}

func (d *fakeKMSDevice) GetEncoder(id uint32) (*mode.Encoder, error) {
	e, ok := d.encoderData[id]
	if !ok {
		return nil, errors.New("no such encoder")
	}
	cp := *e
	return &cp, nil
}

func (d *fakeKMSDevice) ObjectProperties(objID, objType uint32) ([]mode.Property, error) {
	return d.props[objID], nil
}

func (d *fakeKMSDevice) PropertyBlob(blobID uint32) ([]byte, error) {
	return d.blobs[blobID], nil
}

func (d *fakeKMSDevice) AddFB2(p mode.AddFB2Params) (uint32, error) {
	id := d.nextFBID
	d.nextFBID++
	return id, nil
}

func (d *fakeKMSDevice) CloseFB(fbID uint32) error {
	d.closedFBs = append(d.closedFBs, fbID)
	return nil
}

func (d *fakeKMSDevice) PrimeFDToHandle(fd int) (uint32, error) {
	return uint32(fd) + 1000, nil
}

func (d *fakeKMSDevice) PageFlip(crtcID, fbID, flags uint32, userData uint64) error {
	d.pageFlips = append(d.pageFlips, fakePageFlipCall{crtcID: crtcID, fbID: fbID, flags: flags})
	return nil
}

func (d *fakeKMSDevice) ReadEvents() ([]mode.PageFlipEvent, error) {
	evs := d.pendingEvents
	d.pendingEvents = nil
	return evs, nil
}

func (d *fakeKMSDevice) Close() error { return nil }

// fakeSession / fakeSessionDevice / fakeUdevDevice satisfy the
// session/seat interfaces spec.md §6 names.
type fakeSession struct {
	active   bool
	seatName string
	udev     []UdevDevice
	events   SessionEvents

	openErr error
	opened  []string
}

func (s *fakeSession) Active() bool    { return s.active }
func (s *fakeSession) SeatName() string { return s.seatName }

func (s *fakeSession) OpenIfKMS(devNode string) (SessionDevice, error) {
	if s.openErr != nil {
		return nil, s.openErr
	}
	s.opened = append(s.opened, devNode)
	return &fakeSessionDevice{path: devNode}, nil
}

func (s *fakeSession) Udev() []UdevDevice { return s.udev }

func (s *fakeSession) DispatchPendingEvents() {}

func (s *fakeSession) Events() *SessionEvents { return &s.events }

type fakeSessionDevice struct {
	path   string
	events SessionDeviceEvents
}

func (d *fakeSessionDevice) FD() uintptr                     { return 7 }
func (d *fakeSessionDevice) Path() string                    { return d.path }
func (d *fakeSessionDevice) Events() *SessionDeviceEvents { return &d.events }

type fakeUdevDevice struct {
	sysname, syspath, devnode string
	props                     map[string]string
	bootVGA                   bool
}

func (d *fakeUdevDevice) Sysname() string { return d.sysname }
func (d *fakeUdevDevice) Syspath() string { return d.syspath }
func (d *fakeUdevDevice) Property(name string) (string, bool) {
	v, ok := d.props[name]
	return v, ok
}
func (d *fakeUdevDevice) IsBootVGA() bool { return d.bootVGA }
func (d *fakeUdevDevice) DevNode() string { return d.devnode }

// fakeBuffer / fakeAttachments satisfy the buffer collaborator
// interfaces spec.md §6 names.
type fakeAttachments struct {
	tags map[string]bool
}

func newFakeAttachments() *fakeAttachments { return &fakeAttachments{tags: map[string]bool{}} }

func (a *fakeAttachments) Has(name string) bool { return a.tags[name] }
func (a *fakeAttachments) Add(name string)      { a.tags[name] = true }

type fakeBuffer struct {
	attrs       DMABUFAttributes
	attachments *fakeAttachments
}

func newFakeBuffer(w, h uint32, format uint32) *fakeBuffer {
	return &fakeBuffer{
		attrs: DMABUFAttributes{
			Success: true,
			Planes:  1,
			FDs:     [4]int{10, 0, 0, 0},
			Strides: [4]uint32{w * 4, 0, 0, 0},
			Width:   w,
			Height:  h,
			Format:  format,
		},
		attachments: newFakeAttachments(),
	}
}

func (b *fakeBuffer) DMABUF() DMABUFAttributes  { return b.attrs }
func (b *fakeBuffer) Attachments() Attachments { return b.attachments }

// fakeImpl is a test double for the commit engine's Impl, recording
// every call instead of issuing real ioctls.
type fakeImpl struct {
	commits   []fakeImplCommit
	resets    []uint32
	order     []string
	forceFail bool
	commitErr error
}

type fakeImplCommit struct {
	connID uint32
	data   *CommitData
}

func (f *fakeImpl) Commit(c *Connector, data *CommitData) (bool, error) {
	f.commits = append(f.commits, fakeImplCommit{connID: c.ID, data: data})
	f.order = append(f.order, "commit")
	if f.commitErr != nil {
		return false, f.commitErr
	}
	return !f.forceFail, nil
}

func (f *fakeImpl) Reset(c *Connector) error {
	f.resets = append(f.resets, c.ID)
	f.order = append(f.order, "reset")
	return nil
}

// fakeAllocator / fakeSwapchain satisfy the allocator collaborator
// interfaces spec.md §6 names.
type fakeAllocator struct {
	newSwapchainErr error
}

func (a *fakeAllocator) NewSwapchain(gpuFD uintptr, width, height int, scanout bool) (Swapchain, error) {
	if a.newSwapchainErr != nil {
		return nil, a.newSwapchainErr
	}
	return &fakeSwapchain{}, nil
}

type fakeSwapchain struct{}

func (s *fakeSwapchain) Next() (Buffer, error) {
	return newFakeBuffer(1920, 1080, 0x34325258), nil
}
