package aquamarine

import "github.com/ziyao233/aquamarine/drm/mode"

// newTestBackend builds a Backend around dev without touching any real
// hardware or session negotiation, so the resource/connector/commit
// logic can be driven directly in tests.
func newTestBackend(dev *fakeKMSDevice, session *fakeSession) (*Backend, error) {
	if session == nil {
		session = &fakeSession{active: true, seatName: "seat0"}
	}

	b := &Backend{
		session:  session,
		log:      &testLogger{},
		seatName: session.seatName,
	}
	b.impl = newLegacyImpl(b)
	b.dev = dev

	caps, err := checkFeatures(dev, b.log)
	if err != nil {
		return nil, err
	}
	b.caps = caps

	if err := b.initResources(); err != nil {
		return nil, err
	}

	return b, nil
}

// newTestBackendWithGPU is like newTestBackend but also wires gpu as
// the Backend's SessionDevice and subscribes to its Remove/Change
// signals exactly as Attempt does, so tests can exercise the
// production hotplug/removal wiring by emitting on gpu.Events()
// instead of calling the internal handlers directly.
func newTestBackendWithGPU(dev *fakeKMSDevice, gpu *fakeSessionDevice) (*Backend, error) {
	session := &fakeSession{active: true, seatName: "seat0"}

	b := &Backend{
		session:  session,
		gpu:      gpu,
		log:      &testLogger{},
		seatName: session.seatName,
	}
	b.impl = newLegacyImpl(b)
	b.dev = dev

	caps, err := checkFeatures(dev, b.log)
	if err != nil {
		return nil, err
	}
	b.caps = caps

	if err := b.initResources(); err != nil {
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

// setupOneCRTCOnePrimaryPlane seeds dev with the single-GPU topology
// spec.md §8's scenario 1 describes: one CRTC, one primary plane, one
// connected connector with three modes.
func setupOneCRTCOnePrimaryPlane(dev *fakeKMSDevice) {
	dev.crtcIDs = []uint32{1}
	dev.crtcData[1] = &mode.Crtc{ID: 1}

	dev.planeIDs = []uint32{10}
	dev.planeData[10] = &mode.Plane{ID: 10, PossibleCrtcs: 1, Formats: []uint32{0x34325258}}
	dev.props[10] = []mode.Property{{ID: 100, Name: "type", Value: mode.PlaneTypePrimary}}

	preferred := mode.Info{Clock: 148500, Hdisplay: 1920, Htotal: 2080, Vdisplay: 1080, Vtotal: 1111, Vscan: 1, Type: 0x8}
	hd := mode.Info{Clock: 74250, Hdisplay: 1280, Htotal: 1650, Vdisplay: 720, Vtotal: 750, Vscan: 1}
	sd := mode.Info{Clock: 65000, Hdisplay: 1024, Htotal: 1344, Vdisplay: 768, Vtotal: 806, Vscan: 1}

	dev.connectorIDs = []uint32{20}
	dev.connectorData[20] = &mode.Connector{
		ID:         20,
		Type:       10, // DP
		TypeID:     1,
		Connection: mode.Connected,
		Modes:      []mode.Info{preferred, hd, sd},
		Encoders:   []uint32{30},
		EncoderID:  30,
	}
	dev.encoderData[30] = &mode.Encoder{ID: 30, CrtcID: 1, PossibleCrtcs: 1}
	dev.props[20] = []mode.Property{{ID: 200, Name: "CRTC_ID", Value: 1}}
}
