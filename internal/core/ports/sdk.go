package ports

import "beamcast/internal/core/domain"

// Device is a capture device attached to a running session.
type Device interface {
	Descriptor() domain.DeviceDescriptor
}

// AudioDevice is an attached device with an adjustable input gain.
type AudioDevice interface {
	Device
	SetGain(gain float64)
}

// AttachCallback completes an attach or exchange. Callbacks may fire on
// arbitrary goroutines; callers re-dispatch onto their control context.
type AttachCallback func(Device, error)

// SessionEvents receives engine callbacks for a single session.
type SessionEvents struct {
	OnStateChange func(domain.SessionState)
	OnError       func(error)
}

type ProbeStatus string

const (
	ProbeConnecting ProbeStatus = "connecting"
	ProbeTesting    ProbeStatus = "testing"
	ProbeSuccess    ProbeStatus = "success"
	ProbeError      ProbeStatus = "error"
)

// ProbeUpdate is a single progress or result report from the network
// quality probe. Progress is in [0,1].
type ProbeUpdate struct {
	Status          ProbeStatus
	Progress        float64
	Recommendations []domain.Recommendation
	Err             error
}

// Session is one broadcast session owned by the media engine. Attach,
// Exchange and Detach are asynchronous; no two operations may be issued
// concurrently against the same mixer slot.
type Session interface {
	Attach(desc domain.DeviceDescriptor, slotName string, cb AttachCallback)
	AttachImageSource(name, slotName string, cb AttachCallback)
	Exchange(old Device, next domain.DeviceDescriptor, cb AttachCallback)
	Detach(dev Device, cb func(error))
	ListAttachedDevices() []Device
	Start(ingestURL, streamKey string) error
	Stop()
	RecommendedSettings(ingestURL, streamKey string, cb func(ProbeUpdate))
}

// SDK is the boundary to the broadcast media engine. Capture, mixing,
// encoding and transport all live behind it.
type SDK interface {
	ListDevices() []domain.DeviceDescriptor
	CreateSession(cfg domain.SessionConfig, events SessionEvents) (Session, error)
}
