package aquamarine

import "github.com/ziyao233/aquamarine/drm/mode"

// Present-event flags (spec.md §4.G).
const (
	PresentVSync        = 1 << 0
	PresentHWClock      = 1 << 1
	PresentHWCompletion = 1 << 2
	PresentZeroCopy     = 1 << 3
)

// PresentEvent is emitted on an Output after its pending page flip
// completes (spec.md §4.G).
type PresentEvent struct {
	Presented     bool
	TVSec, TVUSec uint64
	Sequence      uint32
	RefreshNS     int64
	Flags         uint32
}

// DispatchEvents drains the GPU fd with a page-flip-v2 handler and
// returns false if the read itself failed (a non-fatal, logged
// condition per spec.md §7); it returns true otherwise, having
// processed zero or more events. After draining, queued idle callbacks
// run and are cleared (spec.md §4.G, §5).
func (b *Backend) DispatchEvents() bool {
	events, err := b.dev.ReadEvents()
	if err != nil {
		b.log.Errorf("dispatchEvents: failed to read GPU events: %v", err)
		return false
	}

	for _, ev := range events {
		b.handlePageFlip(ev)
	}

	b.idle.drain()
	return true
}

func (b *Backend) handlePageFlip(ev mode.PageFlipEvent) {
	c := b.connectorForFlip(ev.CRTCID)
	if c == nil {
		return
	}

	c.PageFlipPending = false

	if c.Status != mode.Connected || c.CRTCID == 0 || c.Output == nil {
		return
	}

	refreshMHz := 0
	if crtc := b.crtc(c.CRTCID); crtc != nil {
		refreshMHz = crtc.Refresh
	}
	var refreshNS int64
	if refreshMHz > 0 {
		refreshNS = 1_000_000_000_000 / int64(refreshMHz)
	}

	c.onPresent()

	c.Output.events.Present.Emit(PresentEvent{
		Presented: b.session.Active(),
		TVSec:     uint64(ev.Sec),
		TVUSec:    uint64(ev.USec) * 1000,
		Sequence:  ev.Sequence,
		RefreshNS: refreshNS,
		Flags:     PresentVSync | PresentHWClock | PresentHWCompletion | PresentZeroCopy,
	})

	if b.session.Active() {
		c.Output.events.Frame.Emit(struct{}{})
	}
}

func (b *Backend) connectorForFlip(crtcID uint32) *Connector {
	for _, c := range b.connectors {
		if c.PageFlipPending && c.CRTCID == crtcID {
			return c
		}
	}
	return nil
}
