package services_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"beamcast/internal/core/domain"
	"beamcast/internal/core/ports"
	"beamcast/internal/core/services"
	"beamcast/internal/infrastructure/repositories/memory"
)

// Prometheus collectors register globally, so the test package shares one
// metrics service.
var testMetrics = services.NewMetricsService()

type fakeDevice struct {
	desc domain.DeviceDescriptor

	mu   sync.Mutex
	gain float64
}

func (d *fakeDevice) Descriptor() domain.DeviceDescriptor { return d.desc }

func (d *fakeDevice) SetGain(gain float64) {
	d.mu.Lock()
	d.gain = gain
	d.mu.Unlock()
}

func (d *fakeDevice) Gain() float64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.gain
}

// fakeSession completes device operations inline unless hold is set, in
// which case completions queue up until Release is called.
type fakeSession struct {
	events ports.SessionEvents

	mu            sync.Mutex
	hold          bool
	held          []func()
	devices       []*fakeDevice
	startErr      error
	starts        []string
	stops         int
	attachCount   map[string]int
	exchangeCount int
	probeCb       func(ports.ProbeUpdate)
}

func newFakeSession(events ports.SessionEvents) *fakeSession {
	return &fakeSession{
		events:      events,
		attachCount: make(map[string]int),
	}
}

func (s *fakeSession) complete(fn func()) {
	s.mu.Lock()
	if s.hold {
		s.held = append(s.held, fn)
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()
	fn()
}

// Hold queues subsequent completions instead of running them.
func (s *fakeSession) Hold() {
	s.mu.Lock()
	s.hold = true
	s.mu.Unlock()
}

// Release runs all queued completions and returns to inline mode.
func (s *fakeSession) Release() {
	s.mu.Lock()
	held := s.held
	s.held = nil
	s.hold = false
	s.mu.Unlock()
	for _, fn := range held {
		fn()
	}
}

func (s *fakeSession) Attach(desc domain.DeviceDescriptor, slotName string, cb ports.AttachCallback) {
	s.mu.Lock()
	s.attachCount[desc.URN]++
	s.mu.Unlock()
	s.complete(func() {
		dev := &fakeDevice{desc: desc, gain: 1.0}
		s.mu.Lock()
		s.devices = append(s.devices, dev)
		s.mu.Unlock()
		cb(dev, nil)
	})
}

func (s *fakeSession) AttachImageSource(name, slotName string, cb ports.AttachCallback) {
	s.Attach(domain.DeviceDescriptor{
		URN:  "image:" + name,
		Type: domain.DeviceTypeUserImage,
		Name: name,
	}, slotName, cb)
}

func (s *fakeSession) Exchange(old ports.Device, next domain.DeviceDescriptor, cb ports.AttachCallback) {
	s.mu.Lock()
	s.exchangeCount++
	s.mu.Unlock()
	s.complete(func() {
		s.removeDevice(old)
		dev := &fakeDevice{desc: next, gain: 1.0}
		s.mu.Lock()
		s.devices = append(s.devices, dev)
		s.mu.Unlock()
		cb(dev, nil)
	})
}

func (s *fakeSession) Detach(dev ports.Device, cb func(error)) {
	s.complete(func() {
		s.removeDevice(dev)
		cb(nil)
	})
}

func (s *fakeSession) removeDevice(dev ports.Device) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, d := range s.devices {
		if d == dev {
			s.devices = append(s.devices[:i], s.devices[i+1:]...)
			return
		}
	}
}

func (s *fakeSession) ListAttachedDevices() []ports.Device {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]ports.Device, len(s.devices))
	for i, d := range s.devices {
		out[i] = d
	}
	return out
}

func (s *fakeSession) Start(ingestURL, streamKey string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.startErr != nil {
		return s.startErr
	}
	s.starts = append(s.starts, ingestURL)
	return nil
}

func (s *fakeSession) Stop() {
	s.mu.Lock()
	s.stops++
	s.mu.Unlock()
}

func (s *fakeSession) RecommendedSettings(ingestURL, streamKey string, cb func(ports.ProbeUpdate)) {
	s.mu.Lock()
	s.probeCb = cb
	s.mu.Unlock()
}

func (s *fakeSession) emitState(st domain.SessionState) {
	s.events.OnStateChange(st)
}

func (s *fakeSession) emitError(err error) {
	s.events.OnError(err)
}

func (s *fakeSession) attachedURN(urn string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, d := range s.devices {
		if d.desc.URN == urn {
			return true
		}
	}
	return false
}

func (s *fakeSession) findDevice(urn string) *fakeDevice {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, d := range s.devices {
		if d.desc.URN == urn {
			return d
		}
	}
	return nil
}

type fakeEngine struct {
	mu      sync.Mutex
	devices []domain.DeviceDescriptor
	session *fakeSession
}

func (e *fakeEngine) ListDevices() []domain.DeviceDescriptor {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.devices
}

func (e *fakeEngine) CreateSession(cfg domain.SessionConfig, events ports.SessionEvents) (ports.Session, error) {
	sess := newFakeSession(events)
	e.mu.Lock()
	e.session = sess
	e.mu.Unlock()
	return sess, nil
}

func (e *fakeEngine) lastSession() *fakeSession {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.session
}

type fakeIdleGuard struct {
	mu       sync.Mutex
	disables int
	enables  int
}

func (g *fakeIdleGuard) Disable() {
	g.mu.Lock()
	g.disables++
	g.mu.Unlock()
}

func (g *fakeIdleGuard) Enable() {
	g.mu.Lock()
	g.enables++
	g.mu.Unlock()
}

func (g *fakeIdleGuard) counts() (int, int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.disables, g.enables
}

type sessionFixture struct {
	svc    *services.SessionService
	engine *fakeEngine
	config *services.ConfigService
	idle   *fakeIdleGuard
	repo   ports.SettingsRepository
}

func newSessionFixture(t *testing.T) *sessionFixture {
	t.Helper()
	logger := zaptest.NewLogger(t).Sugar()

	repo := memory.NewMemorySettingsRepository()
	cfg, err := services.NewConfigService(context.Background(), repo, logger)
	require.NoError(t, err)

	engine := &fakeEngine{devices: phoneDevices()}
	devices := services.NewDeviceService(engine, cfg, logger)
	idle := &fakeIdleGuard{}

	svc := services.NewSessionService(engine, cfg, devices, idle, testMetrics, 2.0, logger)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go svc.Run(ctx)

	return &sessionFixture{svc: svc, engine: engine, config: cfg, idle: idle, repo: repo}
}

func TestSessionService_InitializeAttachesDefaults(t *testing.T) {
	f := newSessionFixture(t)

	require.NoError(t, f.svc.Initialize())

	snap := f.svc.Snapshot()
	assert.Equal(t, domain.PhaseReady, snap.Phase)
	assert.True(t, snap.CameraOn)
	require.NotNil(t, snap.ActiveCamera)
	assert.Equal(t, "cam:front:a", snap.ActiveCamera.URN)

	sess := f.engine.lastSession()
	require.NotNil(t, sess)
	assert.Eventually(t, func() bool {
		return sess.attachedURN("cam:front:a") && sess.attachedURN("mic:0")
	}, time.Second, 5*time.Millisecond)
}

func TestSessionService_InitializeWhileRunningIsNoop(t *testing.T) {
	f := newSessionFixture(t)

	require.NoError(t, f.svc.Initialize())
	first := f.engine.lastSession()
	require.NoError(t, f.svc.Start("rtmps://ingest.example.com/live", "sk"))
	first.emitState(domain.StateConnected)

	require.NoError(t, f.svc.Initialize())
	assert.Same(t, first, f.engine.lastSession())
}

func TestSessionService_StartRejectsInvalidURL(t *testing.T) {
	f := newSessionFixture(t)

	err := f.svc.Start("not a url", "sk")
	assert.ErrorIs(t, err, domain.ErrInvalidIngestURL)

	err = f.svc.Start("", "sk")
	assert.ErrorIs(t, err, domain.ErrInvalidIngestURL)

	err = f.svc.Start("rtmps://ingest.example.com/live", "   ")
	assert.ErrorIs(t, err, domain.ErrInvalidIngestURL)

	// Nothing reached the engine.
	assert.Nil(t, f.engine.lastSession())
	snap := f.svc.Snapshot()
	assert.Equal(t, domain.PhaseNoSession, snap.Phase)
}

func TestSessionService_StartHappyPath(t *testing.T) {
	f := newSessionFixture(t)

	require.NoError(t, f.svc.Start("rtmps://ingest.example.com/live", "sk-1"))

	snap := f.svc.Snapshot()
	assert.Equal(t, domain.PhaseStarting, snap.Phase)
	assert.False(t, snap.Running)

	disables, _ := f.idle.counts()
	assert.Equal(t, 1, disables)

	// The endpoint is persisted on successful start.
	assert.Equal(t, "rtmps://ingest.example.com/live", f.config.IngestServer())
	assert.Equal(t, "sk-1", f.config.StreamKey())

	f.engine.lastSession().emitState(domain.StateConnected)
	assert.Eventually(t, func() bool {
		return f.svc.Snapshot().Running
	}, time.Second, 5*time.Millisecond)
}

func TestSessionService_StartEngineFailureKeepsIdleGuard(t *testing.T) {
	f := newSessionFixture(t)

	require.NoError(t, f.svc.Initialize())
	sess := f.engine.lastSession()
	sess.mu.Lock()
	sess.startErr = errors.New("transport refused")
	sess.mu.Unlock()

	err := f.svc.Start("rtmps://ingest.example.com/live", "sk")
	assert.Error(t, err)

	snap := f.svc.Snapshot()
	assert.Equal(t, domain.PhaseReady, snap.Phase)
	assert.Contains(t, snap.ErrorMessage, "transport refused")

	disables, enables := f.idle.counts()
	assert.Zero(t, disables)
	assert.Zero(t, enables)
}

func TestSessionService_StopTearsDownOnDisconnect(t *testing.T) {
	f := newSessionFixture(t)

	require.NoError(t, f.svc.Start("rtmps://ingest.example.com/live", "sk"))
	sess := f.engine.lastSession()
	sess.emitState(domain.StateConnected)

	f.svc.Stop()
	assert.Eventually(t, func() bool {
		return f.svc.Snapshot().Phase == domain.PhaseStopping
	}, time.Second, 5*time.Millisecond)

	_, enables := f.idle.counts()
	assert.Equal(t, 1, enables)

	// The engine confirms the stop; only then does the session go away.
	sess.emitState(domain.StateDisconnected)
	assert.Eventually(t, func() bool {
		return f.svc.Snapshot().Phase == domain.PhaseNoSession
	}, time.Second, 5*time.Millisecond)
}

func TestSessionService_ToggleCameraSwapsSources(t *testing.T) {
	f := newSessionFixture(t)
	require.NoError(t, f.svc.Initialize())
	sess := f.engine.lastSession()

	f.svc.ToggleCamera()
	assert.Eventually(t, func() bool {
		return !f.svc.Snapshot().CameraOn
	}, time.Second, 5*time.Millisecond)

	// Placeholder bound, camera gone.
	assert.Eventually(t, func() bool {
		return sess.attachedURN("image:camera_off") && !sess.attachedURN("cam:front:a")
	}, time.Second, 5*time.Millisecond)

	f.svc.ToggleCamera()
	assert.Eventually(t, func() bool {
		return f.svc.Snapshot().CameraOn
	}, time.Second, 5*time.Millisecond)
	assert.Eventually(t, func() bool {
		return sess.attachedURN("cam:front:a") && !sess.attachedURN("image:camera_off")
	}, time.Second, 5*time.Millisecond)
}

func TestSessionService_ToggleCameraDebounced(t *testing.T) {
	f := newSessionFixture(t)
	require.NoError(t, f.svc.Initialize())
	sess := f.engine.lastSession()

	sess.Hold()

	f.svc.ToggleCamera()
	f.svc.ToggleCamera()
	f.svc.ToggleCamera()

	// Barrier: all three toggles have been processed by the control loop.
	f.svc.Snapshot()

	sess.mu.Lock()
	imageAttaches := sess.attachCount["image:camera_off"]
	sess.mu.Unlock()
	assert.Equal(t, 1, imageAttaches, "repeat toggles while in flight are dropped")

	sess.Release()
	assert.Eventually(t, func() bool {
		return !f.svc.Snapshot().CameraOn
	}, time.Second, 5*time.Millisecond)

	// Completed operation re-arms the toggle.
	f.svc.ToggleCamera()
	assert.Eventually(t, func() bool {
		return f.svc.Snapshot().CameraOn
	}, time.Second, 5*time.Millisecond)
}

func TestSessionService_ToggleRecoversWhenCameraSlotBusy(t *testing.T) {
	f := newSessionFixture(t)
	require.NoError(t, f.svc.Initialize())
	sess := f.engine.lastSession()

	f.svc.ToggleCamera()
	require.Eventually(t, func() bool {
		return !f.svc.Snapshot().CameraOn
	}, time.Second, 5*time.Millisecond)

	// A flip occupies the camera slot; a toggle landing while its attach
	// is in flight is dropped but must re-arm the toggle.
	sess.Hold()
	f.svc.FlipCamera()
	f.svc.ToggleCamera()
	f.svc.Snapshot()
	sess.Release()

	assert.Eventually(t, func() bool {
		return f.svc.Snapshot().CameraOn
	}, time.Second, 5*time.Millisecond)

	f.svc.ToggleCamera()
	assert.Eventually(t, func() bool {
		return !f.svc.Snapshot().CameraOn
	}, time.Second, 5*time.Millisecond, "toggle stayed disabled after a busy-slot drop")
}

func TestSessionService_FlipCameraUsesAttachedPosition(t *testing.T) {
	f := newSessionFixture(t)
	require.NoError(t, f.svc.Initialize())
	sess := f.engine.lastSession()

	// Front is attached, so flip targets back and takes the last match.
	f.svc.FlipCamera()
	assert.Eventually(t, func() bool {
		snap := f.svc.Snapshot()
		return snap.ActiveCamera != nil && snap.ActiveCamera.URN == "cam:back:tele"
	}, time.Second, 5*time.Millisecond)
	assert.Eventually(t, func() bool {
		return sess.attachedURN("cam:back:tele") && !sess.attachedURN("cam:front:a")
	}, time.Second, 5*time.Millisecond)

	sess.mu.Lock()
	exchanges := sess.exchangeCount
	sess.mu.Unlock()
	assert.Equal(t, 1, exchanges, "flip exchanges atomically instead of detach+attach")

	// Flip again returns to the front camera.
	f.svc.FlipCamera()
	assert.Eventually(t, func() bool {
		snap := f.svc.Snapshot()
		return snap.ActiveCamera != nil && snap.ActiveCamera.URN == "cam:front:a"
	}, time.Second, 5*time.Millisecond)
}

func TestSessionService_ToggleMuteAppliesGain(t *testing.T) {
	f := newSessionFixture(t)
	require.NoError(t, f.svc.Initialize())
	sess := f.engine.lastSession()

	require.Eventually(t, func() bool {
		return sess.findDevice("mic:0") != nil
	}, time.Second, 5*time.Millisecond)
	mic := sess.findDevice("mic:0")

	f.svc.ToggleMute()
	assert.Eventually(t, func() bool {
		return f.svc.Snapshot().Muted && mic.Gain() == 0
	}, time.Second, 5*time.Millisecond)

	f.svc.ToggleMute()
	assert.Eventually(t, func() bool {
		return !f.svc.Snapshot().Muted && mic.Gain() == 2.0
	}, time.Second, 5*time.Millisecond)
}

func TestSessionService_ScreenShareStopsBroadcast(t *testing.T) {
	f := newSessionFixture(t)

	require.NoError(t, f.svc.Start("rtmps://ingest.example.com/live", "sk"))
	f.engine.lastSession().emitState(domain.StateConnected)

	f.svc.HandleScreenShareActive(true)
	assert.Eventually(t, func() bool {
		return f.svc.Snapshot().Phase == domain.PhaseStopping
	}, time.Second, 5*time.Millisecond)

	// The inactive edge does nothing.
	f2 := newSessionFixture(t)
	f2.svc.HandleScreenShareActive(false)
	assert.Equal(t, domain.PhaseNoSession, f2.svc.Snapshot().Phase)
}

func TestSessionService_SessionErrorReachesHandler(t *testing.T) {
	f := newSessionFixture(t)

	var mu sync.Mutex
	var got error
	f.svc.SetErrorHandler(func(err error) {
		mu.Lock()
		got = err
		mu.Unlock()
	})

	require.NoError(t, f.svc.Initialize())
	f.engine.lastSession().emitError(domain.NewSessionError(domain.CodeNetworkUnreachable, "down"))

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return got != nil
	}, time.Second, 5*time.Millisecond)

	var sessionErr *domain.SessionError
	mu.Lock()
	require.ErrorAs(t, got, &sessionErr)
	mu.Unlock()
	assert.Equal(t, domain.CodeNetworkUnreachable, sessionErr.Code)

	snap := f.svc.Snapshot()
	assert.Contains(t, snap.ErrorMessage, "down")
}

func TestSessionService_SubscribeReceivesSnapshots(t *testing.T) {
	f := newSessionFixture(t)

	ch, cancel := f.svc.Subscribe()
	defer cancel()

	require.NoError(t, f.svc.Initialize())

	select {
	case snap := <-ch:
		assert.NotEqual(t, domain.Phase(""), snap.Phase)
	case <-time.After(time.Second):
		t.Fatal("no snapshot published")
	}
}
