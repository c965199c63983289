package power

import (
	"sync"

	"go.uber.org/zap"
)

// LogIdleGuard tracks the host idle-timer state for the process. The
// counter is reference-style so overlapping broadcasts keep the timer
// disabled until the last one re-enables it.
type LogIdleGuard struct {
	mu       sync.Mutex
	disabled int
	logger   *zap.SugaredLogger
}

func NewLogIdleGuard(logger *zap.SugaredLogger) *LogIdleGuard {
	return &LogIdleGuard{logger: logger}
}

// Disable suppresses the host idle timer while a broadcast is live.
func (g *LogIdleGuard) Disable() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.disabled++
	if g.disabled == 1 {
		g.logger.Info("idle timer disabled")
	}
}

// Enable releases one suppression. The idle timer resumes when the
// count returns to zero.
func (g *LogIdleGuard) Enable() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.disabled == 0 {
		return
	}
	g.disabled--
	if g.disabled == 0 {
		g.logger.Info("idle timer enabled")
	}
}

// Disabled reports whether the idle timer is currently suppressed.
func (g *LogIdleGuard) Disabled() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.disabled > 0
}
