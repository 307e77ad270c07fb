package aquamarine

// Presentation modes an OutputState may request (spec.md §3).
const (
	PresentationVSync = iota
	PresentationImmediate
)

// Committed-fields bitmask values (spec.md §3, §4.F).
const (
	FieldEnabled = 1 << iota
	FieldMode
	FieldBuffer
	FieldFormat
	FieldAdaptiveSync
	FieldPresentationMode
)

// OutputState is the set of fields a commit or test call applies.
// CommittedFields names which of them are actually being changed.
type OutputState struct {
	Enabled          bool
	Mode             *Mode
	CustomMode       *Mode
	Buffer           Buffer
	AdaptiveSync     bool
	PresentationMode int

	CommittedFields uint32
}

func (s *OutputState) effectiveMode() *Mode {
	if s.Mode != nil {
		return s.Mode
	}
	return s.CustomMode
}

// Output is the consumer-facing facade for a connected display
// (spec.md §3). It is destroyed on disconnect; the underlying
// Connector persists.
type Output struct {
	Name string

	State OutputState

	Modes []Mode

	WidthMM, HeightMM uint32
	Subpixel          uint8
	Make, Model, Serial, Description string

	Swapchain Swapchain
	NeedsFrame bool

	connector *Connector

	events outputEvents
}

type outputEvents struct {
	Present Signal[PresentEvent]
	Frame   Signal[struct{}]
	Commit  Signal[struct{}]
	Destroy Signal[struct{}]
}

func newOutput(c *Connector) *Output {
	return &Output{
		Name:      c.Name,
		WidthMM:   c.WidthMM,
		HeightMM:  c.HeightMM,
		Subpixel:  c.Subpixel,
		connector: c,
	}
}

func (o *Output) widthPx() int {
	if m := o.State.effectiveMode(); m != nil {
		return m.Width
	}
	return 0
}

func (o *Output) heightPx() int {
	if m := o.State.effectiveMode(); m != nil {
		return m.Height
	}
	return 0
}

// Events exposes the present/frame/commit/destroy notifications
// spec.md §6 names per-Output.
func (o *Output) Events() *outputEvents { return &o.events }

// MaxCursorSize returns the device's cursor plane dimensions (spec.md
// §6); cursor rendering itself is unimplemented (spec.md §9).
func (o *Output) MaxCursorSize() (width, height uint64) {
	return o.connector.backend.MaxCursorSize()
}

// ScheduleFrame enqueues an idle callback that emits Frame, unless a
// page flip is already pending on this connector — a no-op in that
// case, carried from the original backend's early return
// (SPEC_FULL.md §5) rather than restated in spec.md §4.G.
func (o *Output) ScheduleFrame() {
	if o.connector.PageFlipPending {
		return
	}
	o.connector.backend.idle.add(func() {
		o.events.Frame.Emit(struct{}{})
	})
}

// Commit applies the Output's pending state (spec.md §4.F).
func (o *Output) Commit() (bool, error) {
	return o.connector.backend.commitState(o, false)
}

// Test dry-runs the Output's pending state without applying it
// (spec.md §4.F).
func (o *Output) Test() (bool, error) {
	return o.connector.backend.commitState(o, true)
}
