package aquamarine

import (
	"os"

	"golang.org/x/sys/unix"

	"github.com/ziyao233/aquamarine/drm"
	"github.com/ziyao233/aquamarine/drm/mode"
)

// kmsDevice is every low-level KMS operation the core needs, abstracted
// behind an interface so the resource/connector/commit logic can be
// exercised in tests against a fakeKMSDevice instead of a real
// /dev/dri node. realKMSDevice is the only production implementation,
// a thin wrapper over the drm/drm-mode packages.
type kmsDevice interface {
	FD() uintptr
	DriverName() (string, error)

	GetCap(capID uint64) (uint64, error)
	SetClientCap(capID, value uint64) error

	Resources() (*mode.Resources, error)
	GetCrtc(id uint32) (*mode.Crtc, error)
	SetCrtc(crtcID, fbID, x, y uint32, connectors []uint32, m *mode.Info) error

	PlaneIDs() ([]uint32, error)
	GetPlane(id uint32) (*mode.Plane, error)

	GetConnector(id uint32) (*mode.Connector, error)
	GetEncoder(id uint32) (*mode.Encoder, error)

	ObjectProperties(objID, objType uint32) ([]mode.Property, error)
	PropertyBlob(blobID uint32) ([]byte, error)

	AddFB2(p mode.AddFB2Params) (uint32, error)
	CloseFB(fbID uint32) error
	PrimeFDToHandle(fd int) (uint32, error)

	PageFlip(crtcID, fbID, flags uint32, userData uint64) error
	ReadEvents() ([]mode.PageFlipEvent, error)

	Close() error
}

// realKMSDevice wraps an *os.File opened through the session collaborator
// (spec.md §4.A) with every KMS ioctl the core issues.
type realKMSDevice struct {
	file *os.File
}

func newRealKMSDevice(fd uintptr, path string) *realKMSDevice {
	return &realKMSDevice{file: drm.FromFd(fd, path)}
}

func (d *realKMSDevice) FD() uintptr { return d.file.Fd() }

func (d *realKMSDevice) DriverName() (string, error) {
	v, err := drm.GetVersion(d.file)
	if err != nil {
		return "", err
	}
	return v.Name, nil
}

func (d *realKMSDevice) GetCap(capID uint64) (uint64, error) {
	return drm.GetCap(d.file, capID)
}

func (d *realKMSDevice) SetClientCap(capID, value uint64) error {
	return drm.SetClientCap(d.file, capID, value)
}

func (d *realKMSDevice) Resources() (*mode.Resources, error) {
	return mode.GetResources(d.file)
}

func (d *realKMSDevice) GetCrtc(id uint32) (*mode.Crtc, error) {
	return mode.GetCrtc(d.file, id)
}

func (d *realKMSDevice) SetCrtc(crtcID, fbID, x, y uint32, connectors []uint32, m *mode.Info) error {
	var ptr *uint32
	if len(connectors) > 0 {
		ptr = &connectors[0]
	}
	return mode.SetCrtc(d.file, crtcID, fbID, x, y, ptr, len(connectors), m)
}

func (d *realKMSDevice) PlaneIDs() ([]uint32, error) {
	return mode.PlaneIDs(d.file)
}

func (d *realKMSDevice) GetPlane(id uint32) (*mode.Plane, error) {
	return mode.GetPlane(d.file, id)
}

func (d *realKMSDevice) GetConnector(id uint32) (*mode.Connector, error) {
	return mode.GetConnector(d.file, id)
}

func (d *realKMSDevice) GetEncoder(id uint32) (*mode.Encoder, error) {
	return mode.GetEncoder(d.file, id)
}

func (d *realKMSDevice) ObjectProperties(objID, objType uint32) ([]mode.Property, error) {
	return mode.ObjectProperties(d.file, objID, objType)
}

func (d *realKMSDevice) PropertyBlob(blobID uint32) ([]byte, error) {
	return mode.PropertyBlob(d.file, blobID)
}

func (d *realKMSDevice) AddFB2(p mode.AddFB2Params) (uint32, error) {
	return mode.AddFB2(d.file, p)
}

func (d *realKMSDevice) CloseFB(fbID uint32) error {
	return mode.CloseFB(d.file, fbID)
}

func (d *realKMSDevice) PrimeFDToHandle(fd int) (uint32, error) {
	return mode.PrimeFDToHandle(d.file, fd)
}

func (d *realKMSDevice) PageFlip(crtcID, fbID, flags uint32, userData uint64) error {
	return mode.PageFlip(d.file, crtcID, fbID, flags, userData)
}

func (d *realKMSDevice) ReadEvents() ([]mode.PageFlipEvent, error) {
	buf := make([]byte, 4096)
	n, err := unix.Read(int(d.file.Fd()), buf)
	if err != nil {
		return nil, err
	}
	return mode.ReadEvents(buf[:n])
}

func (d *realKMSDevice) Close() error {
	return d.file.Close()
}
