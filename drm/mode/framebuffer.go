package mode

import (
	"os"
	"syscall"
	"unsafe"

	"github.com/ziyao233/aquamarine/drm"
	"github.com/ziyao233/aquamarine/drm/ioctl"
)

// Flags for drm_mode_fb_cmd2.flags.
const (
	FBModifiers = 1 << 1
)

type (
	sysFBCmd2 struct {
		fbID      uint32
		width     uint32
		height    uint32
		format    uint32
		flags     uint32
		handles   [4]uint32
		pitches   [4]uint32
		offsets   [4]uint32
		modifiers [4]uint64
	}

	sysCloseFB struct {
		fbID uint32
	}

	sysPrimeHandle struct {
		handle uint32
		flags  uint32
		fd     int32
	}

	sysGemClose struct {
		handle uint32
		pad    uint32
	}
)

var (
	// DRM_IOWR(0xB8, struct drm_mode_fb_cmd2)
	IOCTLModeAddFB2 = ioctl.NewCode(ioctl.Read|ioctl.Write,
		uint16(unsafe.Sizeof(sysFBCmd2{})), drm.IOCTLBase, 0xB8)

	// DRM_IOWR(0xD0, struct drm_mode_closefb)
	IOCTLModeCloseFB = ioctl.NewCode(ioctl.Read|ioctl.Write,
		uint16(unsafe.Sizeof(sysCloseFB{})), drm.IOCTLBase, 0xD0)

	// DRM_IOWR(0x2e, struct drm_prime_handle)
	IOCTLPrimeFDToHandle = ioctl.NewCode(ioctl.Read|ioctl.Write,
		uint16(unsafe.Sizeof(sysPrimeHandle{})), drm.IOCTLBase, 0x2e)

	// DRM_IOW(0x09, struct drm_gem_close)
	IOCTLGemClose = ioctl.NewCode(ioctl.Write,
		uint16(unsafe.Sizeof(sysGemClose{})), drm.IOCTLBase, 0x09)
)

// AddFB2Params describes one scanout buffer submission; up to 4 planes,
// matching the kernel's drm_mode_fb_cmd2 layout.
type AddFB2Params struct {
	Width, Height uint32
	Format        uint32
	Handles       [4]uint32
	Pitches       [4]uint32
	Offsets       [4]uint32
	Modifiers     [4]uint64
	WithModifiers bool
}

// AddFB2 submits a multi-plane buffer to KMS as a framebuffer, using
// drmModeAddFB2WithModifiers semantics when WithModifiers is set and
// plain drmModeAddFB2 (no modifier array) otherwise.
func AddFB2(file *os.File, p AddFB2Params) (uint32, error) {
	cmd := &sysFBCmd2{
		width:   p.Width,
		height:  p.Height,
		format:  p.Format,
		handles: p.Handles,
		pitches: p.Pitches,
		offsets: p.Offsets,
	}
	if p.WithModifiers {
		cmd.flags |= FBModifiers
		cmd.modifiers = p.Modifiers
	}

	if err := ioctl.Do(uintptr(file.Fd()), uintptr(IOCTLModeAddFB2),
		uintptr(unsafe.Pointer(cmd))); err != nil {
		return 0, err
	}

	return cmd.fbID, nil
}

// CloseFB drops a framebuffer id created by AddFB/AddFB2, preferring the
// newer CLOSEFB ioctl and falling back to RMFB when the kernel doesn't
// support it (ENOTTY/EINVAL on older kernels).
func CloseFB(file *os.File, fbID uint32) error {
	req := &sysCloseFB{fbID: fbID}
	err := ioctl.Do(uintptr(file.Fd()), uintptr(IOCTLModeCloseFB), uintptr(unsafe.Pointer(req)))
	if err == nil {
		return nil
	}
	if errno, ok := err.(syscall.Errno); ok && (errno == syscall.EINVAL || errno == syscall.ENOTTY) {
		return RmFB(file, fbID)
	}
	return err
}

// PrimeFDToHandle converts a DMA-BUF file descriptor into a GEM handle
// local to this DRM device, the PRIME import step.
func PrimeFDToHandle(file *os.File, fd int) (uint32, error) {
	req := &sysPrimeHandle{fd: int32(fd)}
	if err := ioctl.Do(uintptr(file.Fd()), uintptr(IOCTLPrimeFDToHandle),
		uintptr(unsafe.Pointer(req))); err != nil {
		return 0, err
	}
	return req.handle, nil
}

// CloseBufferHandle releases a GEM handle obtained from PrimeFDToHandle.
// Most scanout-path callers should NOT call this: some drivers tear down
// the still-live framebuffer when its last GEM handle closes.
func CloseBufferHandle(file *os.File, handle uint32) error {
	req := &sysGemClose{handle: handle}
	return ioctl.Do(uintptr(file.Fd()), uintptr(IOCTLGemClose), uintptr(unsafe.Pointer(req)))
}
