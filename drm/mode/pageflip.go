package mode

import (
	"encoding/binary"
	"os"
	"unsafe"

	"github.com/ziyao233/aquamarine/drm"
	"github.com/ziyao233/aquamarine/drm/ioctl"
)

// Flags for drm_mode_crtc_page_flip(2).flags.
const (
	PageFlipEventFlag = 1 << 0
	PageFlipAsync     = 1 << 1
)

type sysPageFlip struct {
	crtcID   uint32
	fbID     uint32
	flags    uint32
	reserved uint32
	userData uint64
}

var (
	// DRM_IOWR(0xB0, struct drm_mode_crtc_page_flip)
	IOCTLModePageFlip = ioctl.NewCode(ioctl.Read|ioctl.Write,
		uint16(unsafe.Sizeof(sysPageFlip{})), drm.IOCTLBase, 0xB0)
)

// PageFlip schedules fbID for display on crtcID at the next vblank.
// flags is OR'd with PageFlipEventFlag, which is always requested so the
// completion can be read back via ReadEvents; callers set PageFlipAsync
// in flags to request DRM_MODE_PAGE_FLIP_ASYNC. userData is returned
// unchanged in the resulting PageFlipEvent so the caller can correlate
// completions with the commit that issued them.
func PageFlip(file *os.File, crtcID, fbID uint32, flags uint32, userData uint64) error {
	req := &sysPageFlip{
		crtcID:   crtcID,
		fbID:     fbID,
		flags:    flags | PageFlipEventFlag,
		userData: userData,
	}
	return ioctl.Do(uintptr(file.Fd()), uintptr(IOCTLModePageFlip), uintptr(unsafe.Pointer(req)))
}

// Event types carried by drm_event.typ.
const (
	eventVBlank    = 0x01
	eventFlipComplete = 0x03
)

// PageFlipEvent is a decoded DRM_EVENT_FLIP_COMPLETE record read back
// from the device fd after a page flip completes. ReadEvents also
// decodes DRM_EVENT_VBLANK records into this type, with CRTCID left 0.
type PageFlipEvent struct {
	CRTCID   uint32
	Sequence uint32
	Sec      uint32
	USec     uint32
	UserData uint64
}

// drm_event header, 8 bytes: { u32 type; u32 length; }
const eventHeaderSize = 8

// drm_event_vblank body following the header, as written by the kernel
// for both DRM_EVENT_VBLANK and DRM_EVENT_FLIP_COMPLETE.
type drmEventVblank struct {
	userData        uint64
	tvSec           uint32
	tvUsec          uint32
	sequence        uint32
	crtcID          uint32 // only present on FLIP_COMPLETE; 0 otherwise
}

// ReadEvents parses one or more DRM event records out of a buffer read
// from the device fd (typically via a single blocking Read call made by
// the caller's event loop). Unrecognized event types are skipped.
func ReadEvents(buf []byte) ([]PageFlipEvent, error) {
	var events []PageFlipEvent

	for off := 0; off+eventHeaderSize <= len(buf); {
		typ := binary.LittleEndian.Uint32(buf[off : off+4])
		length := binary.LittleEndian.Uint32(buf[off+4 : off+8])
		if length < eventHeaderSize || off+int(length) > len(buf) {
			break
		}

		body := buf[off+eventHeaderSize : off+int(length)]
		if (typ == eventFlipComplete || typ == eventVBlank) && len(body) >= int(unsafe.Sizeof(drmEventVblank{}))-4 {
			v := (*drmEventVblank)(unsafe.Pointer(&body[0]))
			ev := PageFlipEvent{
				Sequence: v.sequence,
				Sec:      v.tvSec,
				USec:     v.tvUsec,
				UserData: v.userData,
			}
			if typ == eventFlipComplete && len(body) >= int(unsafe.Sizeof(drmEventVblank{})) {
				ev.CRTCID = v.crtcID
			}
			events = append(events, ev)
		}

		off += int(length)
	}

	return events, nil
}
