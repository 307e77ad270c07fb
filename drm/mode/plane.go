package mode

import (
	"os"
	"unsafe"

	"github.com/ziyao233/aquamarine/drm"
	"github.com/ziyao233/aquamarine/drm/ioctl"
)

// Plane types reported by the TYPE property, mirrored here so callers
// don't need to know the property's enum blob layout to classify a plane.
const (
	PlaneTypeOverlay = 0
	PlaneTypePrimary = 1
	PlaneTypeCursor  = 2
)

type (
	sysGetPlaneResources struct {
		planeIDPtr uintptr
		countPlanes uint32
		pad uint32
	}

	sysGetPlane struct {
		planeID       uint32
		crtcID        uint32
		fbID          uint32
		possibleCrtcs uint32
		gammaSize     uint32
		countFormats  uint32
		formatTypePtr uintptr
	}

	// Plane is a userspace view of a single DRM plane object: the raw
	// format list the kernel reports (no modifiers) plus whatever CRTC
	// it is currently bound to.
	Plane struct {
		ID            uint32
		CRTCID        uint32
		FBID          uint32
		PossibleCrtcs uint32
		GammaSize     uint32
		Formats       []uint32
	}
)

var (
	// DRM_IOWR(0xB5, struct drm_mode_get_plane_res)
	IOCTLModeGetPlaneResources = ioctl.NewCode(ioctl.Read|ioctl.Write,
		uint16(unsafe.Sizeof(sysGetPlaneResources{})), drm.IOCTLBase, 0xB5)

	// DRM_IOWR(0xB6, struct drm_mode_get_plane)
	IOCTLModeGetPlane = ioctl.NewCode(ioctl.Read|ioctl.Write,
		uint16(unsafe.Sizeof(sysGetPlane{})), drm.IOCTLBase, 0xB6)
)

// PlaneIDs lists every plane object the kernel knows about. The caller
// must have already enabled DRM_CLIENT_CAP_UNIVERSAL_PLANES, or only
// overlay planes will be reported.
func PlaneIDs(file *os.File) ([]uint32, error) {
	res := &sysGetPlaneResources{}
	if err := ioctl.Do(uintptr(file.Fd()), uintptr(IOCTLModeGetPlaneResources),
		uintptr(unsafe.Pointer(res))); err != nil {
		return nil, err
	}

	if res.countPlanes == 0 {
		return nil, nil
	}

	ids := make([]uint32, res.countPlanes)
	res.planeIDPtr = uintptr(unsafe.Pointer(&ids[0]))

	if err := ioctl.Do(uintptr(file.Fd()), uintptr(IOCTLModeGetPlaneResources),
		uintptr(unsafe.Pointer(res))); err != nil {
		return nil, err
	}

	return ids[:res.countPlanes], nil
}

// GetPlane reads a single plane's binding and its flat (no-modifier)
// format list.
func GetPlane(file *os.File, id uint32) (*Plane, error) {
	p := &sysGetPlane{planeID: id}
	if err := ioctl.Do(uintptr(file.Fd()), uintptr(IOCTLModeGetPlane),
		uintptr(unsafe.Pointer(p))); err != nil {
		return nil, err
	}

	var formats []uint32
	if p.countFormats > 0 {
		formats = make([]uint32, p.countFormats)
		p.formatTypePtr = uintptr(unsafe.Pointer(&formats[0]))

		if err := ioctl.Do(uintptr(file.Fd()), uintptr(IOCTLModeGetPlane),
			uintptr(unsafe.Pointer(p))); err != nil {
			return nil, err
		}
	}

	return &Plane{
		ID:            p.planeID,
		CRTCID:        p.crtcID,
		FBID:          p.fbID,
		PossibleCrtcs: p.possibleCrtcs,
		GammaSize:     p.gammaSize,
		Formats:       formats[:p.countFormats],
	}, nil
}

// FormatModifier pairs a FourCC pixel format with a tiling/compression
// modifier, decoded from an IN_FORMATS property blob.
type FormatModifier struct {
	Format   uint32
	Modifier uint64
}

// drmFormatModifierBlob mirrors struct drm_format_modifier_blob.
type drmFormatModifierBlob struct {
	version         uint32
	countFormats    uint32
	formatsOffset   uint32
	countModifiers  uint32
	modifiersOffset uint32
}

// drmFormatModifier mirrors struct drm_format_modifier: each entry
// applies to up to 64 formats, selected by a bitmask relative to the
// entry's Offset into the blob's format table.
type drmFormatModifier struct {
	formats  uint64
	offset   uint32
	pad      uint32
	modifier uint64
}

// DecodeFormatModifierBlob parses the raw bytes of an IN_FORMATS
// property blob (as returned by PropertyBlob) into (format, modifier)
// pairs, the same expansion libdrm's drmModeFormatModifierBlobIterNext
// performs.
func DecodeFormatModifierBlob(data []byte) ([]FormatModifier, error) {
	const headerSize = int(unsafe.Sizeof(drmFormatModifierBlob{}))
	if len(data) < headerSize {
		return nil, os.ErrInvalid
	}

	hdr := (*drmFormatModifierBlob)(unsafe.Pointer(&data[0]))

	formatsEnd := int(hdr.formatsOffset) + int(hdr.countFormats)*4
	if formatsEnd > len(data) {
		return nil, os.ErrInvalid
	}
	formats := make([]uint32, hdr.countFormats)
	for i := range formats {
		off := int(hdr.formatsOffset) + i*4
		formats[i] = *(*uint32)(unsafe.Pointer(&data[off]))
	}

	const modSize = int(unsafe.Sizeof(drmFormatModifier{}))
	modsEnd := int(hdr.modifiersOffset) + int(hdr.countModifiers)*modSize
	if modsEnd > len(data) {
		return nil, os.ErrInvalid
	}

	var out []FormatModifier
	for i := uint32(0); i < hdr.countModifiers; i++ {
		off := int(hdr.modifiersOffset) + int(i)*modSize
		m := (*drmFormatModifier)(unsafe.Pointer(&data[off]))
		for bit := 0; bit < 64; bit++ {
			if m.formats&(uint64(1)<<uint(bit)) == 0 {
				continue
			}
			idx := int(m.offset) + bit
			if idx >= len(formats) {
				continue
			}
			out = append(out, FormatModifier{Format: formats[idx], Modifier: m.modifier})
		}
	}

	return out, nil
}
