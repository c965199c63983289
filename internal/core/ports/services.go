package ports

import (
	"context"

	"beamcast/internal/core/domain"
)

// SessionControl is the session controller surface used by the reconnect
// supervisor, the auto-configuration runner and the transport handlers.
type SessionControl interface {
	Initialize() error
	Start(ingestURL, streamKey string) error
	Stop()
	ToggleCamera()
	FlipCamera()
	ToggleMute()
	Snapshot() domain.SessionSnapshot
	Subscribe() (<-chan domain.SessionSnapshot, func())
	// Recommend runs the engine's network quality probe against the
	// ingest endpoint, creating a session first if none exists.
	Recommend(ingestURL, streamKey string, cb func(ProbeUpdate)) error
}

// NetworkWatcher delivers a one-shot notification when the network becomes
// reachable, then stops watching. Cancel via the context.
type NetworkWatcher interface {
	NotifyOnce(ctx context.Context, fn func())
}

// IdleGuard keeps the host from idling while a broadcast is live.
type IdleGuard interface {
	Disable()
	Enable()
}
