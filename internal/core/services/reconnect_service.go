package services

import (
	"context"
	"sync"
	"time"

	"beamcast/internal/core/domain"
	"beamcast/internal/core/ports"

	"go.uber.org/zap"
)

// ReconnectService decides whether and how to restart a failed session.
// Transient connectivity errors wait for a one-shot network-available
// signal; any other session error gets a single immediate retry. A user
// cancel clears the pending intent so late signals become no-ops.
type ReconnectService struct {
	session  ports.SessionControl
	settings ports.SettingsRepository
	watcher  ports.NetworkWatcher
	classify func(error) domain.ErrorClass
	metrics  *MetricsService
	logger   *zap.SugaredLogger

	mu          sync.Mutex
	state       domain.ReconnectState
	generation  int
	cancelWatch context.CancelFunc
}

func NewReconnectService(
	session ports.SessionControl,
	settings ports.SettingsRepository,
	watcher ports.NetworkWatcher,
	metrics *MetricsService,
	logger *zap.SugaredLogger,
) *ReconnectService {
	return &ReconnectService{
		session:  session,
		settings: settings,
		watcher:  watcher,
		classify: domain.ClassifyError,
		metrics:  metrics,
		logger:   logger,
		state:    domain.ReconnectIdle,
	}
}

// SetClassifier overrides the error classification, for engines whose
// error domain differs from the default mapping.
func (r *ReconnectService) SetClassifier(fn func(error) domain.ErrorClass) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.classify = fn
}

func (r *ReconnectService) State() domain.ReconnectState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

func (r *ReconnectService) Reconnecting() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state == domain.ReconnectWaitingNet || r.state == domain.ReconnectRetrying
}

// HandleSessionError reacts to an asynchronous session error. It never
// calls back into the session controller synchronously.
func (r *ReconnectService) HandleSessionError(err error) {
	switch r.classify(err) {
	case domain.ClassTransientNetwork:
		r.waitForNetwork()
	case domain.ClassGenericSession:
		r.retryNow()
	default:
		// Validation and device errors are surfaced, never retried.
	}
}

// HandleStateChange clears reconnect intent once a session comes back.
func (r *ReconnectService) HandleStateChange(state domain.SessionState) {
	if state != domain.StateConnected {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.state = domain.ReconnectIdle
	r.generation++
	if r.cancelWatch != nil {
		r.cancelWatch()
		r.cancelWatch = nil
	}
}

// Cancel stops a pending reconnect. Subsequent session errors start a new
// cycle.
func (r *ReconnectService) Cancel() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.logger.Infow("auto reconnect cancelled")
	r.state = domain.ReconnectCancelled
	r.generation++
	if r.cancelWatch != nil {
		r.cancelWatch()
		r.cancelWatch = nil
	}
}

func (r *ReconnectService) waitForNetwork() {
	r.mu.Lock()
	if r.state == domain.ReconnectWaitingNet {
		r.mu.Unlock()
		return
	}
	r.state = domain.ReconnectWaitingNet
	r.generation++
	gen := r.generation

	ctx, cancel := context.WithCancel(context.Background())
	if r.cancelWatch != nil {
		r.cancelWatch()
	}
	r.cancelWatch = cancel
	r.mu.Unlock()

	r.logger.Infow("network unreachable, waiting for connectivity before reconnect")
	r.metrics.RecordReconnectAttempt("wait_for_network")

	r.watcher.NotifyOnce(ctx, func() {
		r.mu.Lock()
		if r.generation != gen || r.state != domain.ReconnectWaitingNet {
			r.mu.Unlock()
			return
		}
		r.state = domain.ReconnectRetrying
		r.cancelWatch = nil
		r.mu.Unlock()

		go r.restart()
	})
}

func (r *ReconnectService) retryNow() {
	r.mu.Lock()
	if r.state == domain.ReconnectRetrying {
		r.mu.Unlock()
		return
	}
	r.state = domain.ReconnectRetrying
	r.generation++
	r.mu.Unlock()

	r.logger.Infow("session error, retrying immediately")
	r.metrics.RecordReconnectAttempt("immediate")
	go r.restart()
}

func (r *ReconnectService) restart() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	ingestURL, _, err := r.settings.GetString(ctx, ports.KeyIngestServer)
	if err != nil {
		r.logger.Errorw("failed to read last ingest server", "error", err)
		r.toIdle()
		return
	}
	streamKey, _, err := r.settings.GetString(ctx, ports.KeyStreamKey)
	if err != nil {
		r.logger.Errorw("failed to read last stream key", "error", err)
		r.toIdle()
		return
	}

	if err := r.session.Start(ingestURL, streamKey); err != nil {
		r.logger.Errorw("reconnect attempt failed", "error", err)
		r.toIdle()
	}
	// On success the connected state callback clears the intent.
}

func (r *ReconnectService) toIdle() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state == domain.ReconnectRetrying {
		r.state = domain.ReconnectIdle
	}
}
