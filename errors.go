package aquamarine

import "errors"

// Init-fatal errors: attempt() returns (nil, err) wrapping one of these.
var (
	ErrNoSession      = errors.New("aquamarine: session is not available")
	ErrSessionTimeout = errors.New("aquamarine: timed out waiting for session activation")
	ErrNoGPUs         = errors.New("aquamarine: no usable GPU device found")
	ErrMissingCap     = errors.New("aquamarine: device is missing a required capability")
	ErrTooManyCRTCs   = errors.New("aquamarine: device exposes more than 32 CRTCs")
	ErrResourceQuery  = errors.New("aquamarine: failed to query KMS resources")
)

// Commit-refused errors: commit()/test() return (false, err) wrapping one
// of these. Callers should errors.Is against these rather than matching
// log text.
var (
	ErrSessionInactive    = errors.New("aquamarine: session is inactive")
	ErrNoCRTC             = errors.New("aquamarine: connector has no bound CRTC")
	ErrNoMode             = errors.New("aquamarine: enabling output requires a mode")
	ErrNotVRRCapable      = errors.New("aquamarine: connector is not VRR-capable")
	ErrNoAsyncCommit      = errors.New("aquamarine: device does not support async page flips")
	ErrNoBuffer           = errors.New("aquamarine: committed fields require a buffer")
	ErrFlipPending        = errors.New("aquamarine: a non-blocking page flip is already pending")
	ErrFBImport           = errors.New("aquamarine: failed to import buffer as a framebuffer")
	ErrBufferUnimportable = errors.New("aquamarine: buffer is marked unimportable")
	ErrGPURemoved         = errors.New("aquamarine: GPU was removed")
)
