// Package loopback is an in-process media engine used for development and
// integration testing. It honors the full engine contract (asynchronous
// attach, exchange and detach, session state callbacks, the network
// quality probe) without touching any real capture hardware or network.
package loopback

import (
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"beamcast/internal/core/domain"
	"beamcast/internal/core/ports"
)

// Driver implements the engine boundary against no hardware at all.
type Driver struct {
	mu      sync.Mutex
	devices []domain.DeviceDescriptor
	logger  *zap.SugaredLogger

	// Fault injection knobs for tests and demos.
	createErr error
	startErr  error
	attachErr map[string]error

	// callbackDelay spaces out asynchronous completions to mimic real
	// engine latency. Zero means complete on the next goroutine tick.
	callbackDelay time.Duration
}

// Option configures the loopback driver.
type Option func(*Driver)

// WithDevices replaces the default simulated device list.
func WithDevices(devices []domain.DeviceDescriptor) Option {
	return func(d *Driver) { d.devices = devices }
}

// WithStartError makes every session Start fail with err.
func WithStartError(err error) Option {
	return func(d *Driver) { d.startErr = err }
}

// WithCreateError makes CreateSession fail with err.
func WithCreateError(err error) Option {
	return func(d *Driver) { d.createErr = err }
}

// WithAttachError makes attaching the device with the given URN fail.
func WithAttachError(urn string, err error) Option {
	return func(d *Driver) { d.attachErr[urn] = err }
}

// WithCallbackDelay delays asynchronous completions by delay.
func WithCallbackDelay(delay time.Duration) Option {
	return func(d *Driver) { d.callbackDelay = delay }
}

// NewDriver creates a loopback driver with a plausible phone-shaped
// device list: two cameras, one microphone and one app audio source.
func NewDriver(logger *zap.SugaredLogger, opts ...Option) *Driver {
	d := &Driver{
		devices: []domain.DeviceDescriptor{
			{URN: "loopback:camera:front", Type: domain.DeviceTypeCamera, Position: domain.PositionFront, Name: "Front Camera"},
			{URN: "loopback:camera:back", Type: domain.DeviceTypeCamera, Position: domain.PositionBack, Name: "Back Camera"},
			{URN: "loopback:microphone:0", Type: domain.DeviceTypeMicrophone, Position: domain.PositionUnknown, Name: "Microphone"},
			{URN: "loopback:useraudio:0", Type: domain.DeviceTypeUserAudio, Position: domain.PositionUnknown, Name: "App Audio"},
		},
		attachErr: make(map[string]error),
		logger:    logger,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

func (d *Driver) ListDevices() []domain.DeviceDescriptor {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]domain.DeviceDescriptor, len(d.devices))
	copy(out, d.devices)
	return out
}

func (d *Driver) CreateSession(cfg domain.SessionConfig, events ports.SessionEvents) (ports.Session, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.createErr != nil {
		return nil, d.createErr
	}

	d.logger.Infow("loopback session created",
		"width", cfg.Video.Width,
		"height", cfg.Video.Height,
		"framerate", cfg.Video.TargetFramerate,
		"slots", len(cfg.Slots),
	)

	return &session{
		driver:   d,
		cfg:      cfg,
		events:   events,
		bindings: make(map[string]*loopDevice),
		logger:   d.logger,
	}, nil
}

// loopDevice is an attached simulated device.
type loopDevice struct {
	desc domain.DeviceDescriptor
	slot string

	mu   sync.Mutex
	gain float64
}

// bindingKey identifies one binding within a slot. A slot carries an audio
// and a video binding at the same time; attaching a microphone must never
// evict the camera sharing its slot.
func bindingKey(slot string, desc domain.DeviceDescriptor) string {
	if desc.IsAudioInput() {
		return slot + "/audio"
	}
	return slot + "/video"
}

func (d *loopDevice) Descriptor() domain.DeviceDescriptor { return d.desc }

func (d *loopDevice) SetGain(gain float64) {
	d.mu.Lock()
	d.gain = gain
	d.mu.Unlock()
}

// Gain returns the last gain applied to this device.
func (d *loopDevice) Gain() float64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.gain
}

type session struct {
	driver *Driver
	cfg    domain.SessionConfig
	events ports.SessionEvents
	logger *zap.SugaredLogger

	mu       sync.Mutex
	bindings map[string]*loopDevice
	running  bool
}

var _ ports.Session = (*session)(nil)

func (s *session) async(fn func()) {
	delay := s.driver.callbackDelay
	go func() {
		if delay > 0 {
			time.Sleep(delay)
		}
		fn()
	}()
}

func (s *session) Attach(desc domain.DeviceDescriptor, slotName string, cb ports.AttachCallback) {
	s.async(func() {
		if err, ok := s.driver.attachErr[desc.URN]; ok && err != nil {
			cb(nil, err)
			return
		}
		dev := &loopDevice{desc: desc, slot: slotName, gain: 1.0}
		s.mu.Lock()
		s.bindings[bindingKey(slotName, desc)] = dev
		s.mu.Unlock()
		s.logger.Debugw("device attached", "urn", desc.URN, "slot", slotName)
		cb(dev, nil)
	})
}

func (s *session) AttachImageSource(name, slotName string, cb ports.AttachCallback) {
	desc := domain.DeviceDescriptor{
		URN:  "loopback:image:" + name,
		Type: domain.DeviceTypeUserImage,
		Name: name,
	}
	s.Attach(desc, slotName, cb)
}

func (s *session) Exchange(old ports.Device, next domain.DeviceDescriptor, cb ports.AttachCallback) {
	s.async(func() {
		if err, ok := s.driver.attachErr[next.URN]; ok && err != nil {
			cb(nil, err)
			return
		}
		prev, ok := old.(*loopDevice)
		if !ok {
			cb(nil, fmt.Errorf("device %s is not attached to this session", old.Descriptor().URN))
			return
		}
		dev := &loopDevice{desc: next, slot: prev.slot, gain: 1.0}
		s.mu.Lock()
		if s.bindings[bindingKey(prev.slot, prev.desc)] == prev {
			delete(s.bindings, bindingKey(prev.slot, prev.desc))
		}
		s.bindings[bindingKey(prev.slot, next)] = dev
		s.mu.Unlock()
		s.logger.Debugw("device exchanged",
			"old", prev.desc.URN,
			"new", next.URN,
			"slot", prev.slot,
		)
		cb(dev, nil)
	})
}

func (s *session) Detach(dev ports.Device, cb func(error)) {
	s.async(func() {
		ld, ok := dev.(*loopDevice)
		if !ok {
			cb(fmt.Errorf("device %s is not attached to this session", dev.Descriptor().URN))
			return
		}
		s.mu.Lock()
		if s.bindings[bindingKey(ld.slot, ld.desc)] == ld {
			delete(s.bindings, bindingKey(ld.slot, ld.desc))
		}
		s.mu.Unlock()
		s.logger.Debugw("device detached", "urn", ld.desc.URN, "slot", ld.slot)
		cb(nil)
	})
}

func (s *session) ListAttachedDevices() []ports.Device {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]ports.Device, 0, len(s.bindings))
	for _, dev := range s.bindings {
		out = append(out, dev)
	}
	return out
}

func (s *session) Start(ingestURL, streamKey string) error {
	if s.driver.startErr != nil {
		return s.driver.startErr
	}

	s.mu.Lock()
	s.running = true
	s.mu.Unlock()

	s.logger.Infow("loopback broadcast started", "ingest_url", ingestURL)

	s.emitState(domain.StateConnecting)
	s.async(func() { s.emitState(domain.StateConnected) })
	return nil
}

func (s *session) Stop() {
	s.mu.Lock()
	wasRunning := s.running
	s.running = false
	s.mu.Unlock()

	if !wasRunning {
		return
	}
	s.logger.Info("loopback broadcast stopped")
	s.async(func() { s.emitState(domain.StateDisconnected) })
}

// InjectError delivers an engine error to the session owner, as a real
// engine would on a transport failure.
func (s *session) InjectError(err error) {
	if s.events.OnError != nil {
		s.async(func() { s.events.OnError(err) })
	}
}

func (s *session) emitState(state domain.SessionState) {
	if s.events.OnStateChange != nil {
		s.events.OnStateChange(state)
	}
}

func (s *session) RecommendedSettings(ingestURL, streamKey string, cb func(ports.ProbeUpdate)) {
	s.async(func() {
		cb(ports.ProbeUpdate{Status: ports.ProbeConnecting})
		for _, p := range []float64{0.25, 0.5, 0.75} {
			if s.driver.callbackDelay > 0 {
				time.Sleep(s.driver.callbackDelay)
			}
			cb(ports.ProbeUpdate{Status: ports.ProbeTesting, Progress: p})
		}
		cb(ports.ProbeUpdate{
			Status:   ports.ProbeSuccess,
			Progress: 1,
			Recommendations: []domain.Recommendation{
				{
					InitialBitrate:  2_500_000,
					TargetFramerate: 30,
					Width:           1280,
					Height:          720,
				},
			},
		})
	})
}
