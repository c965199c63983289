package services

import (
	"context"
	"sync"
	"time"

	"beamcast/internal/core/domain"
	"beamcast/internal/core/ports"
	"beamcast/pkg/validation"

	"go.uber.org/zap"
)

// SessionService owns the broadcast session lifecycle. All mutation of
// session state happens on a single control goroutine; operations and
// engine callbacks are dispatched onto it, never run in place. Device
// operations against one mixer slot are serialized with in-flight flags.
type SessionService struct {
	sdk         ports.SDK
	config      *ConfigService
	devices     *DeviceService
	idle        ports.IdleGuard
	metrics     *MetricsService
	logger      *zap.SugaredLogger
	unmutedGain float64

	ops chan func()

	// Observers wired after construction; called from the control
	// goroutine and must not call back into the service synchronously.
	obsMu          sync.RWMutex
	onSessionError func(error)
	onStateChange  func(domain.SessionState)
	reconnecting   func() bool

	// Control-goroutine-owned state.
	session        ports.Session
	phase          domain.Phase
	state          domain.SessionState
	attachedCamera ports.Device
	imageSource    ports.Device
	activeCamera   *domain.DeviceDescriptor
	cameraOn       bool
	muted          bool
	canToggle      bool
	canFlip        bool
	slotBusy       map[string]bool
	startedAt      time.Time
	lastError      string

	subMu   sync.Mutex
	subs    map[int]chan domain.SessionSnapshot
	nextSub int
}

func NewSessionService(
	sdk ports.SDK,
	config *ConfigService,
	devices *DeviceService,
	idle ports.IdleGuard,
	metrics *MetricsService,
	unmutedGain float64,
	logger *zap.SugaredLogger,
) *SessionService {
	if unmutedGain <= 0 {
		unmutedGain = 2.0
	}
	return &SessionService{
		sdk:         sdk,
		config:      config,
		devices:     devices,
		idle:        idle,
		metrics:     metrics,
		logger:      logger,
		unmutedGain: unmutedGain,
		ops:         make(chan func(), 128),
		phase:       domain.PhaseNoSession,
		state:       domain.StateInvalid,
		cameraOn:    true,
		canToggle:   true,
		canFlip:     true,
		slotBusy:    make(map[string]bool),
		subs:        make(map[int]chan domain.SessionSnapshot),
	}
}

// Run drains the control queue until the context is cancelled. Callers
// start it once, before issuing operations.
func (s *SessionService) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case fn := <-s.ops:
			fn()
		}
	}
}

// dispatch enqueues fn for the control goroutine. The fallback goroutine
// keeps callbacks issued from inside the loop from deadlocking on a full
// queue.
func (s *SessionService) dispatch(fn func()) {
	select {
	case s.ops <- fn:
	default:
		go func() { s.ops <- fn }()
	}
}

// SetErrorHandler registers the session error observer (the reconnect
// supervisor). The handler must return without blocking.
func (s *SessionService) SetErrorHandler(fn func(error)) {
	s.obsMu.Lock()
	defer s.obsMu.Unlock()
	s.onSessionError = fn
}

func (s *SessionService) SetStateObserver(fn func(domain.SessionState)) {
	s.obsMu.Lock()
	defer s.obsMu.Unlock()
	s.onStateChange = fn
}

// SetReconnectingProbe supplies the reconnect state read for snapshots.
func (s *SessionService) SetReconnectingProbe(fn func() bool) {
	s.obsMu.Lock()
	defer s.obsMu.Unlock()
	s.reconnecting = fn
}

// Initialize creates a session bound to the current configuration and
// attaches the selected camera and microphone. A no-op while running.
func (s *SessionService) Initialize() error {
	errc := make(chan error, 1)
	s.dispatch(func() { errc <- s.initialize() })
	return <-errc
}

func (s *SessionService) initialize() error {
	if s.session != nil && s.phase == domain.PhaseRunning {
		return nil
	}

	if s.activeCamera == nil {
		if cam, ok := s.devices.SelectDefaultCamera(); ok {
			s.activeCamera = &cam
		}
	}

	s.phase = domain.PhaseInitializing
	sess, err := s.sdk.CreateSession(s.config.SessionConfig(), ports.SessionEvents{
		OnStateChange: func(st domain.SessionState) {
			s.dispatch(func() { s.handleStateChange(st) })
		},
		OnError: func(err error) {
			s.dispatch(func() { s.handleSessionError(err) })
		},
	})
	if err != nil {
		s.phase = domain.PhaseNoSession
		s.logger.Errorw("failed to create broadcast session", "error", err)
		return err
	}

	s.session = sess
	s.phase = domain.PhaseReady
	s.attachedCamera = nil
	s.imageSource = nil

	// Attach failures degrade the session, they do not abort it.
	s.attachCamera(nil)
	s.attachMicrophone()
	s.publish()
	return nil
}

// Start begins streaming to the ingest endpoint. A malformed URL or an
// empty stream key fails fast without touching the engine.
func (s *SessionService) Start(ingestURL, streamKey string) error {
	if err := validation.ValidateIngestURL(ingestURL); err != nil {
		return err
	}
	if err := validation.ValidateStreamKey(streamKey); err != nil {
		return err
	}

	errc := make(chan error, 1)
	s.dispatch(func() { errc <- s.start(ingestURL, streamKey) })
	return <-errc
}

func (s *SessionService) start(ingestURL, streamKey string) error {
	if s.session == nil {
		if err := s.initialize(); err != nil {
			return err
		}
	}

	s.phase = domain.PhaseStarting
	s.metrics.RecordSessionStart()

	if err := s.session.Start(ingestURL, streamKey); err != nil {
		// Idle guard is left untouched on failure.
		s.phase = domain.PhaseReady
		s.lastError = err.Error()
		s.logger.Errorw("failed to start broadcast session", "error", err)
		s.publish()
		return err
	}

	s.idle.Disable()
	s.startedAt = time.Now()
	s.lastError = ""

	ctx := context.Background()
	if err := s.config.SetIngestServer(ctx, ingestURL); err != nil {
		s.logger.Warnw("failed to persist ingest server", "error", err)
	}
	if err := s.config.SetStreamKey(ctx, streamKey); err != nil {
		s.logger.Warnw("failed to persist stream key", "error", err)
	}

	s.publish()
	return nil
}

// Stop signals the session to stop and re-enables the idle guard. The
// transition to no-session happens on the engine's state callback.
func (s *SessionService) Stop() {
	s.dispatch(func() {
		if s.session == nil {
			return
		}
		s.phase = domain.PhaseStopping
		s.session.Stop()
		s.idle.Enable()
		s.metrics.RecordSessionStop()
		s.publish()
	})
}

func (s *SessionService) handleStateChange(st domain.SessionState) {
	s.state = st
	s.metrics.RecordSessionState(st)
	s.logger.Infow("session state changed", "state", st)

	switch st {
	case domain.StateConnected:
		s.phase = domain.PhaseRunning
	case domain.StateDisconnected, domain.StateInvalid:
		if s.phase == domain.PhaseStopping {
			s.session = nil
			s.attachedCamera = nil
			s.imageSource = nil
			s.phase = domain.PhaseNoSession
			s.slotBusy = make(map[string]bool)
			s.canToggle = true
			s.canFlip = true
		} else if s.phase == domain.PhaseRunning {
			s.phase = domain.PhaseReady
		}
	}

	s.obsMu.RLock()
	observer := s.onStateChange
	s.obsMu.RUnlock()
	if observer != nil {
		observer(st)
	}
	s.publish()
}

func (s *SessionService) handleSessionError(err error) {
	s.lastError = err.Error()
	s.logger.Errorw("session emitted error", "error", err)

	s.obsMu.RLock()
	handler := s.onSessionError
	s.obsMu.RUnlock()
	if handler != nil {
		handler(err)
	}
	s.publish()
}

// ToggleCamera swaps the camera for the placeholder image source, or back.
// The two sources are never bound at the same time, and the toggle is a
// no-op while an exchange is in flight.
func (s *SessionService) ToggleCamera() {
	s.dispatch(func() {
		if !s.canToggle || s.session == nil {
			return
		}
		s.canToggle = false

		if s.cameraOn {
			s.attachCameraOffImage()
		} else {
			// Attach success flips cameraOn and clears the image source;
			// done only re-arms the toggle so a failed attach cannot
			// claim the camera is live.
			s.attachCamera(func() {
				s.canToggle = true
				s.publish()
			})
		}
	})
}

// FlipCamera exchanges the attached camera for one at the opposite
// physical position. The exchange is atomic, with no unbound gap.
func (s *SessionService) FlipCamera() {
	s.dispatch(func() {
		if !s.canFlip || s.session == nil {
			return
		}
		s.canFlip = false

		// The opposite of what is attached, not of the configured default.
		target := domain.PositionBack
		if s.attachedCamera != nil && s.attachedCamera.Descriptor().Position == domain.PositionBack {
			target = domain.PositionFront
		}

		cam, ok := s.devices.SelectCamera(target)
		if !ok {
			s.logger.Warnw("no camera available", "position", target)
			s.canFlip = true
			return
		}
		s.activeCamera = &cam
		s.attachCamera(func() {
			s.canFlip = true
			s.publish()
		})
	})
}

// attachCamera binds the active camera descriptor to the camera slot,
// exchanging atomically when one is already attached. done runs on the
// control goroutine once the request settles, even when no device ends
// up attached, so debounce flags held by the caller always recover.
func (s *SessionService) attachCamera(done func()) {
	if s.session == nil || s.activeCamera == nil {
		if done == nil {
			return
		}
		done()
		return
	}
	if s.slotBusy[domain.SlotCamera] {
		s.logger.Warnw("camera slot busy, dropping attach")
		if done != nil {
			done()
		}
		return
	}

	dev, ok := s.devices.FindByURN(s.activeCamera.URN)
	if !ok {
		s.logger.Warnw("active camera no longer available", "urn", s.activeCamera.URN)
		if done != nil {
			done()
		}
		return
	}

	if s.imageSource != nil {
		src := s.imageSource
		s.session.Detach(src, func(err error) {
			s.dispatch(func() {
				if err != nil {
					s.logger.Warnw("failed to detach image source", "error", err)
				}
				s.imageSource = nil
			})
		})
	}

	s.slotBusy[domain.SlotCamera] = true
	s.metrics.RecordDeviceExchange()

	complete := func(attached ports.Device, err error) {
		s.dispatch(func() {
			s.slotBusy[domain.SlotCamera] = false
			if err != nil {
				s.metrics.RecordDeviceFailure()
				s.logger.Errorw("failed to attach camera", "urn", dev.URN, "error", err)
			} else {
				s.attachedCamera = attached
				s.cameraOn = true
			}
			if done != nil {
				done()
			}
			s.publish()
		})
	}

	if s.attachedCamera != nil {
		s.session.Exchange(s.attachedCamera, dev, complete)
	} else {
		s.session.Attach(dev, domain.SlotCamera, complete)
	}
}

// attachCameraOffImage binds the placeholder image source and then
// detaches the camera, matching the slot exclusivity invariant.
func (s *SessionService) attachCameraOffImage() {
	if s.imageSource != nil {
		s.canToggle = true
		return
	}
	if s.slotBusy[domain.SlotCameraOff] {
		s.canToggle = true
		return
	}
	s.slotBusy[domain.SlotCameraOff] = true

	s.session.AttachImageSource(domain.SlotCameraOff, domain.SlotCameraOff, func(src ports.Device, err error) {
		s.dispatch(func() {
			s.slotBusy[domain.SlotCameraOff] = false
			if err != nil {
				s.metrics.RecordDeviceFailure()
				s.logger.Errorw("failed to attach camera-off image source", "error", err)
				s.canToggle = true
				return
			}
			s.imageSource = src
			s.cameraOn = false
			s.canToggle = true

			if s.attachedCamera != nil {
				cam := s.attachedCamera
				s.session.Detach(cam, func(err error) {
					s.dispatch(func() {
						if err != nil {
							s.logger.Warnw("failed to detach camera", "error", err)
						}
						s.attachedCamera = nil
					})
				})
			}
			s.publish()
		})
	})
}

func (s *SessionService) attachMicrophone() {
	mic, ok := s.devices.SelectMicrophone()
	if !ok {
		s.logger.Warnw("cannot attach microphone, no device of type microphone available")
		return
	}

	s.session.Attach(mic, domain.SlotCamera, func(_ ports.Device, err error) {
		s.dispatch(func() {
			if err != nil {
				s.metrics.RecordDeviceFailure()
				s.logger.Errorw("failed to attach microphone", "urn", mic.URN, "error", err)
			}
			s.applyMicGain()
		})
	})
}

// ToggleMute flips the mute state and applies the gain to every attached
// audio input device.
func (s *SessionService) ToggleMute() {
	s.dispatch(func() {
		s.muted = !s.muted
		s.applyMicGain()
		s.publish()
	})
}

func (s *SessionService) applyMicGain() {
	if s.session == nil {
		return
	}
	gain := s.unmutedGain
	if s.muted {
		gain = 0
	}
	for _, dev := range s.session.ListAttachedDevices() {
		if !dev.Descriptor().IsAudioInput() {
			continue
		}
		if audio, ok := dev.(ports.AudioDevice); ok {
			audio.SetGain(gain)
		}
	}
}

// Recommend runs the engine's network quality probe. The probe needs a
// constructed session object even though it does not stream.
func (s *SessionService) Recommend(ingestURL, streamKey string, cb func(ports.ProbeUpdate)) error {
	if err := validation.ValidateIngestURL(ingestURL); err != nil {
		return err
	}

	errc := make(chan error, 1)
	s.dispatch(func() {
		if s.session == nil {
			if err := s.initialize(); err != nil {
				errc <- err
				return
			}
		}
		s.session.RecommendedSettings(ingestURL, streamKey, cb)
		errc <- nil
	})
	return <-errc
}

// HandleScreenShareActive suspends the in-process session while the
// out-of-process screen share broadcasts.
func (s *SessionService) HandleScreenShareActive(active bool) {
	if !active {
		return
	}
	s.logger.Infow("screen share started, suspending own session")
	s.Stop()
}

func (s *SessionService) Snapshot() domain.SessionSnapshot {
	snapc := make(chan domain.SessionSnapshot, 1)
	s.dispatch(func() { snapc <- s.snapshot() })
	return <-snapc
}

func (s *SessionService) snapshot() domain.SessionSnapshot {
	snap := domain.SessionSnapshot{
		Phase:        s.phase,
		State:        s.state,
		Running:      s.phase == domain.PhaseRunning,
		CameraOn:     s.cameraOn,
		Muted:        s.muted,
		ActiveCamera: s.activeCamera,
		ErrorMessage: s.lastError,
	}

	s.obsMu.RLock()
	if s.reconnecting != nil {
		snap.Reconnecting = s.reconnecting()
	}
	s.obsMu.RUnlock()

	if snap.Running && !s.startedAt.IsZero() {
		snap.StartedAt = s.startedAt
		snap.Elapsed = time.Since(s.startedAt)
		bps := float64(s.config.Video().InitialBitrate)
		snap.DataUsedMB = bps * snap.Elapsed.Seconds() / 8 / 1e6
	}
	return snap
}

// Subscribe returns a snapshot feed and a cancel function. Slow consumers
// miss intermediate snapshots rather than blocking the control loop.
func (s *SessionService) Subscribe() (<-chan domain.SessionSnapshot, func()) {
	s.subMu.Lock()
	defer s.subMu.Unlock()

	id := s.nextSub
	s.nextSub++
	ch := make(chan domain.SessionSnapshot, 8)
	s.subs[id] = ch

	cancel := func() {
		s.subMu.Lock()
		defer s.subMu.Unlock()
		if _, ok := s.subs[id]; ok {
			delete(s.subs, id)
			close(ch)
		}
	}
	return ch, cancel
}

func (s *SessionService) publish() {
	snap := s.snapshot()
	s.subMu.Lock()
	defer s.subMu.Unlock()
	for _, ch := range s.subs {
		select {
		case ch <- snap:
		default:
		}
	}
}
