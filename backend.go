package aquamarine

import (
	"fmt"
	"time"

	"github.com/ziyao233/aquamarine/drm/mode"
)

// Backend owns the three flat collections (crtcs, planes, connectors)
// that every other component resolves weak references against
// (spec.md §9). It is constructed once by Attempt and lives for the
// process lifetime.
type Backend struct {
	session Session
	gpu     SessionDevice
	dev     kmsDevice
	impl    Impl

	log Logger

	seatName string

	caps DeviceCapabilities

	crtcs      []CRTC
	planes     []Plane
	connectors []*Connector

	ready     bool
	allocator Allocator

	idle idleQueue

	removed bool

	events backendEvents
}

type backendEvents struct {
	NewOutput Signal[*Output]
}

// Attempt constructs a Backend against the first usable GPU the session
// exposes (spec.md §6, §4.A). It returns a wrapped sentinel error on any
// fatal init failure rather than panicking, matching spec.md §7's init-
// error policy.
func Attempt(session Session, opts ...Option) (*Backend, error) {
	cfg := defaultConfig()
	for _, o := range opts {
		o(&cfg)
	}

	if session == nil {
		return nil, ErrNoSession
	}

	if err := waitForSessionActive(session); err != nil {
		return nil, err
	}

	devices, err := discoverGPUs(session, cfg.seatName)
	if err != nil {
		return nil, err
	}
	if len(devices) == 0 {
		return nil, ErrNoGPUs
	}

	// Multi-GPU is a known limitation (spec.md §9): only the first
	// (boot-VGA-preferred) device is registered.
	gpu := devices[0]

	dev := newRealKMSDevice(gpu.FD(), gpu.Path())

	b := &Backend{
		session:  session,
		gpu:      gpu,
		dev:      dev,
		log:      cfg.logger,
		seatName: cfg.seatName,
	}
	b.impl = newLegacyImpl(b)

	caps, err := checkFeatures(dev, b.log)
	if err != nil {
		dev.Close()
		return nil, err
	}
	b.caps = caps

	if err := b.initResources(); err != nil {
		dev.Close()
		return nil, err
	}

	b.subscribeSessionEvents()
	b.gpu.Events().Remove.Listen(func(struct{}) { b.handleGPURemoved() })
	b.gpu.Events().Change.Listen(func(changeType int) {
		if changeType == ChangeHotplug {
			b.handleHotplug()
		}
	})

	return b, nil
}

// handleHotplug re-reads the resource connector list and reconciles it
// against the current Connector records, firing connect/disconnect
// transitions (spec.md §2, §4.D, §8 scenario 2).
func (b *Backend) handleHotplug() {
	res, err := b.dev.Resources()
	if err != nil {
		b.log.Errorf("hotplug: failed to query resources: %v", err)
		return
	}
	if err := b.scanConnectors(res.Connectors); err != nil {
		b.log.Errorf("hotplug: failed to rescan connectors: %v", err)
	}
}

// waitForSessionActive polls for up to 5 seconds at 250ms cadence,
// dispatching pending session events each tick, before declaring
// failure (spec.md §4.A).
func waitForSessionActive(session Session) error {
	if session.Active() {
		return nil
	}

	const (
		timeout = 5 * time.Second
		tick    = 250 * time.Millisecond
	)

	deadline := timeout
	for deadline > 0 {
		session.DispatchPendingEvents()
		if session.Active() {
			return nil
		}
		time.Sleep(tick)
		deadline -= tick
	}

	return ErrSessionTimeout
}

// initResources performs the full B/C introspection pass: CRTCs, then
// planes with role assignment, then an initial connector scan.
func (b *Backend) initResources() error {
	res, err := b.dev.Resources()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrResourceQuery, err)
	}

	if err := b.introspectCRTCs(res.Crtcs); err != nil {
		return fmt.Errorf("%w: %v", ErrResourceQuery, err)
	}

	planeIDs, err := b.dev.PlaneIDs()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrResourceQuery, err)
	}
	if err := b.introspectPlanes(planeIDs); err != nil {
		return fmt.Errorf("%w: %v", ErrResourceQuery, err)
	}

	if err := b.scanConnectors(res.Connectors); err != nil {
		return fmt.Errorf("%w: %v", ErrResourceQuery, err)
	}

	return nil
}

func (b *Backend) subscribeSessionEvents() {
	b.session.Events().ChangeActive.Listen(func(active bool) {
		if active {
			b.restoreAfterVT()
		}
	})
}

// PollFD returns the GPU file descriptor the surrounding library should
// register with its event loop (spec.md §6).
func (b *Backend) PollFD() uintptr { return b.dev.FD() }

// GetRenderFormats returns the first primary plane's format set
// (spec.md §6).
func (b *Backend) GetRenderFormats() []FormatEntry {
	for i := range b.planes {
		if b.planes[i].Type == PlanePrimary {
			return b.planes[i].Formats
		}
	}
	return nil
}

// GetCursorFormats returns the first cursor plane's format set
// (spec.md §6).
func (b *Backend) GetCursorFormats() []FormatEntry {
	for i := range b.planes {
		if b.planes[i].Type == PlaneCursor {
			return b.planes[i].Formats
		}
	}
	return nil
}

// MaxCursorSize returns the device's cursor plane dimensions.
func (b *Backend) MaxCursorSize() (width, height uint64) {
	return b.caps.CursorWidth, b.caps.CursorHeight
}

// OnReady is called by the surrounding library once its allocator is
// available. The core creates every connected Output's swapchain and
// emits newOutput for each (spec.md §6).
func (b *Backend) OnReady(allocator Allocator) {
	b.ready = true
	b.allocator = allocator

	for _, c := range b.connectors {
		if c.Status == mode.Connected && c.Output != nil {
			b.bringOutputReady(c)
		}
	}
}

func (b *Backend) bringOutputReady(c *Connector) {
	if c.Output == nil || b.allocator == nil {
		return
	}
	sc, err := b.allocator.NewSwapchain(b.dev.FD(), c.Output.widthPx(), c.Output.heightPx(), true)
	if err != nil {
		b.log.Errorf("connector %s: failed to create swapchain: %v", c.Name, err)
		return
	}
	c.Output.Swapchain = sc
	c.Output.NeedsFrame = true
	b.events.NewOutput.Emit(c.Output)
}

// NewOutputEvents exposes the newOutput notification spec.md §6 names.
func (b *Backend) NewOutputEvents() *Signal[*Output] { return &b.events.NewOutput }
