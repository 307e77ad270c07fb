package aquamarine

import "github.com/ziyao233/aquamarine/drm/mode"

// handleGPURemoved implements the behavior spec.md §9 specifies for an
// event the original backend leaves unhandled: emit destroy on every
// Output, flip every connector to Disconnected, and refuse all further
// commits with ErrGPURemoved (SPEC_FULL.md §5).
func (b *Backend) handleGPURemoved() {
	if b.removed {
		return
	}
	b.removed = true

	b.log.Criticalf("GPU removed")

	for _, c := range b.connectors {
		if c.Output != nil {
			c.Output.events.Destroy.Emit(struct{}{})
			c.Output = nil
		}
		c.Status = mode.Disconnected
		c.PageFlipPending = false
	}
}
