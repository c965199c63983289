package domain

import "time"

// SessionState mirrors the media engine's connection state. Transitions
// are driven exclusively by engine callbacks; disconnected and error both
// require an explicit restart.
type SessionState string

const (
	StateInvalid      SessionState = "invalid"
	StateConnecting   SessionState = "connecting"
	StateConnected    SessionState = "connected"
	StateDisconnected SessionState = "disconnected"
	StateError        SessionState = "error"
)

// Phase is the controller-side lifecycle, distinct from the engine's
// connection state.
type Phase string

const (
	PhaseNoSession    Phase = "no_session"
	PhaseInitializing Phase = "initializing"
	PhaseReady        Phase = "ready"
	PhaseStarting     Phase = "starting"
	PhaseRunning      Phase = "running"
	PhaseStopping     Phase = "stopping"
)

type ReconnectState string

const (
	ReconnectIdle       ReconnectState = "idle"
	ReconnectWaitingNet ReconnectState = "waiting_for_network"
	ReconnectRetrying   ReconnectState = "reconnecting"
	ReconnectCancelled  ReconnectState = "cancelled"
)

// SessionSnapshot is the observable surface of the session controller,
// published to subscribers on every state-affecting change.
type SessionSnapshot struct {
	Phase        Phase             `json:"phase"`
	State        SessionState      `json:"state"`
	Running      bool              `json:"running"`
	CameraOn     bool              `json:"camera_on"`
	Muted        bool              `json:"muted"`
	Reconnecting bool              `json:"reconnecting"`
	ActiveCamera *DeviceDescriptor `json:"active_camera,omitempty"`
	StartedAt    time.Time         `json:"started_at,omitempty"`
	Elapsed      time.Duration     `json:"elapsed"`
	DataUsedMB   float64           `json:"data_used_mb"`
	ErrorMessage string            `json:"error_message,omitempty"`
}
