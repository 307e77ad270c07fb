package aquamarine

import (
	"errors"
	"strings"
	"testing"

	"github.com/ziyao233/aquamarine/drm/mode"
)

func TestRestoreAfterVTResetsThenRecommits(t *testing.T) {
	dev := newFakeKMSDevice()
	setupOneCRTCOnePrimaryPlane(dev)
	b, err := newTestBackend(dev, nil)
	if err != nil {
		t.Fatalf("newTestBackend: %v", err)
	}
	c := b.connector(20)
	c.Output.State.Mode = &c.Output.Modes[0]

	impl := &fakeImpl{}
	b.impl = impl

	b.restoreAfterVT()

	if len(impl.resets) != 1 || impl.resets[0] != c.ID {
		t.Fatalf("expected exactly one Reset for connector %d, got %+v", c.ID, impl.resets)
	}
	if len(impl.commits) != 1 || impl.commits[0].connID != c.ID {
		t.Fatalf("expected exactly one Commit for connector %d, got %+v", c.ID, impl.commits)
	}
	// Reset must run before recommit, not interleaved (SPEC_FULL.md §5).
	if len(impl.order) != 2 || impl.order[0] != "reset" || impl.order[1] != "commit" {
		t.Fatalf("expected reset-then-commit in two distinct passes, got %+v", impl.order)
	}

	crtc := b.crtc(c.CRTCID)
	want := calculateRefresh(*c.Output.Modes[0].Timing)
	if crtc.Refresh != want {
		t.Errorf("expected CRTC.Refresh to be updated after recommit: got %d want %d", crtc.Refresh, want)
	}
}

func TestRestoreAfterVTSkipsConnectorsWithoutOutput(t *testing.T) {
	dev := newFakeKMSDevice()
	setupOneCRTCOnePrimaryPlane(dev)
	dev.connectorData[20].Connection = mode.Disconnected
	b, err := newTestBackend(dev, nil)
	if err != nil {
		t.Fatalf("newTestBackend: %v", err)
	}

	impl := &fakeImpl{}
	b.impl = impl

	b.restoreAfterVT()

	if len(impl.resets) != 0 || len(impl.commits) != 0 {
		t.Errorf("expected no reset/commit calls for a disconnected connector, got resets=%+v commits=%+v", impl.resets, impl.commits)
	}
}

func TestRestoreAfterVTLogsNonFatalResetError(t *testing.T) {
	dev := newFakeKMSDevice()
	setupOneCRTCOnePrimaryPlane(dev)
	b, err := newTestBackend(dev, nil)
	if err != nil {
		t.Fatalf("newTestBackend: %v", err)
	}
	c := b.connector(20)
	c.Output.State.Mode = &c.Output.Modes[0]

	log := &testLogger{}
	b.log = log
	b.impl = &erroringResetImpl{err: errors.New("reset failed")}

	b.restoreAfterVT()

	found := false
	for _, line := range log.lines {
		if strings.Contains(line, "reset CRTC") {
			found = true
		}
	}
	if !found {
		t.Errorf("expected the reset failure to be logged")
	}
}

type erroringResetImpl struct {
	err error
}

func (e *erroringResetImpl) Commit(c *Connector, data *CommitData) (bool, error) { return true, nil }
func (e *erroringResetImpl) Reset(c *Connector) error                            { return e.err }
