package aquamarine

// Allocator and Swapchain are the interfaces the surrounding library's
// buffer-producing collaborator implements. The core creates one
// Swapchain per connected Output once the library has called onReady();
// it does not call Next itself.

// Swapchain cycles client-visible scanout buffers for one Output.
type Swapchain interface {
	// Next returns the buffer the consumer should render into / commit
	// next.
	Next() (Buffer, error)
}

// Allocator creates a Swapchain for an Output once the consumer's
// renderer is ready to produce buffers (spec.md §6, onReady()).
type Allocator interface {
	// NewSwapchain creates a swapchain sized to (width, height) for
	// scanout on the given GPU fd. scanout is always true for the
	// core's use (spec.md §6).
	NewSwapchain(gpuFD uintptr, width, height int, scanout bool) (Swapchain, error)
}
