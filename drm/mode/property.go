package mode

import (
	"os"
	"unsafe"

	"github.com/ziyao233/aquamarine/drm"
	"github.com/ziyao233/aquamarine/drm/ioctl"
)

// Object types accepted by DRM_IOCTL_MODE_OBJ_GETPROPERTIES.
const (
	ObjectCRTC      = 0xcccccccc
	ObjectConnector = 0xc0c0c0c0
	ObjectPlane     = 0xeeeeeeee
)

type (
	sysObjGetProperties struct {
		propsPtr      uintptr
		propValuesPtr uintptr
		countProps    uint32
		objID         uint32
		objType       uint32
	}

	sysGetProperty struct {
		valuesPtr    uintptr
		enumBlobPtr  uintptr
		propID       uint32
		flags        uint32
		name         [PropNameLen]byte
		countValues  uint32
		countEnumBlobs uint32
	}

	sysGetBlob struct {
		blobID uint32
		length uint32
		data   uintptr
	}

	// Property is a single kernel property value attached to an object,
	// keyed by the property's name for lookup convenience.
	Property struct {
		ID    uint32
		Name  string
		Value uint64
	}
)

var (
	// DRM_IOWR(0xB9, struct drm_mode_obj_get_properties)
	IOCTLModeObjGetProperties = ioctl.NewCode(ioctl.Read|ioctl.Write,
		uint16(unsafe.Sizeof(sysObjGetProperties{})), drm.IOCTLBase, 0xB9)

	// DRM_IOWR(0xAA, struct drm_mode_get_property)
	IOCTLModeGetProperty = ioctl.NewCode(ioctl.Read|ioctl.Write,
		uint16(unsafe.Sizeof(sysGetProperty{})), drm.IOCTLBase, 0xAA)

	// DRM_IOWR(0xAC, struct drm_mode_get_blob)
	IOCTLModeGetPropBlob = ioctl.NewCode(ioctl.Read|ioctl.Write,
		uint16(unsafe.Sizeof(sysGetBlob{})), drm.IOCTLBase, 0xAC)
)

// ObjectProperties reads every property currently attached to a CRTC,
// connector or plane object, resolving each property id to its name so
// callers can look properties up by name (e.g. "IN_FORMATS", "CRTC_ID").
func ObjectProperties(file *os.File, objID, objType uint32) ([]Property, error) {
	req := &sysObjGetProperties{objID: objID, objType: objType}
	if err := ioctl.Do(uintptr(file.Fd()), uintptr(IOCTLModeObjGetProperties),
		uintptr(unsafe.Pointer(req))); err != nil {
		return nil, err
	}

	if req.countProps == 0 {
		return nil, nil
	}

	ids := make([]uint32, req.countProps)
	values := make([]uint64, req.countProps)
	req.propsPtr = uintptr(unsafe.Pointer(&ids[0]))
	req.propValuesPtr = uintptr(unsafe.Pointer(&values[0]))

	if err := ioctl.Do(uintptr(file.Fd()), uintptr(IOCTLModeObjGetProperties),
		uintptr(unsafe.Pointer(req))); err != nil {
		return nil, err
	}

	props := make([]Property, req.countProps)
	for i := range props {
		name, err := propertyName(file, ids[i])
		if err != nil {
			return nil, err
		}
		props[i] = Property{ID: ids[i], Name: name, Value: values[i]}
	}

	return props, nil
}

func propertyName(file *os.File, propID uint32) (string, error) {
	p := &sysGetProperty{propID: propID}
	if err := ioctl.Do(uintptr(file.Fd()), uintptr(IOCTLModeGetProperty),
		uintptr(unsafe.Pointer(p))); err != nil {
		return "", err
	}
	end := 0
	for end < len(p.name) && p.name[end] != 0 {
		end++
	}
	return string(p.name[:end]), nil
}

// PropertyBlob reads the raw bytes backing a blob-typed property value
// (e.g. EDID, mode_id, IN_FORMATS).
func PropertyBlob(file *os.File, blobID uint32) ([]byte, error) {
	b := &sysGetBlob{blobID: blobID}
	if err := ioctl.Do(uintptr(file.Fd()), uintptr(IOCTLModeGetPropBlob),
		uintptr(unsafe.Pointer(b))); err != nil {
		return nil, err
	}

	if b.length == 0 {
		return nil, nil
	}

	data := make([]byte, b.length)
	b.data = uintptr(unsafe.Pointer(&data[0]))

	if err := ioctl.Do(uintptr(file.Fd()), uintptr(IOCTLModeGetPropBlob),
		uintptr(unsafe.Pointer(b))); err != nil {
		return nil, err
	}

	return data, nil
}

// FindProperty returns the property named name, if present.
func FindProperty(props []Property, name string) (Property, bool) {
	for _, p := range props {
		if p.Name == name {
			return p, true
		}
	}
	return Property{}, false
}
