package services

import (
	"context"
	"sync"
	"time"

	"beamcast/internal/core/domain"
	"beamcast/internal/core/ports"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// AutoConfigService runs the engine's one-shot network quality probe and
// applies the first recommended parameter set through the configuration
// store. One run at a time; a cancelled run's late completion is ignored
// because the engine cannot cancel a probe mid-flight.
type AutoConfigService struct {
	session ports.SessionControl
	config  *ConfigService
	metrics *MetricsService
	logger  *zap.SugaredLogger

	// Advisory only; the probe keeps running after the warning fires.
	slowAfter time.Duration

	mu        sync.Mutex
	activeRun string
	watchdog  *time.Timer
}

// RunCallbacks receives progress and completion for a probe run. OnSlow
// fires once if the probe outlives the advisory window.
type RunCallbacks struct {
	OnProgress func(float64)
	OnSlow     func()
	OnComplete func(error)
}

func NewAutoConfigService(
	session ports.SessionControl,
	config *ConfigService,
	metrics *MetricsService,
	slowAfter time.Duration,
	logger *zap.SugaredLogger,
) *AutoConfigService {
	if slowAfter <= 0 {
		slowAfter = 12 * time.Second
	}
	return &AutoConfigService{
		session:   session,
		config:    config,
		metrics:   metrics,
		slowAfter: slowAfter,
		logger:    logger,
	}
}

// Run starts a probe against the ingest endpoint and returns the run ID.
func (a *AutoConfigService) Run(ingestURL, streamKey string, cbs RunCallbacks) (string, error) {
	a.mu.Lock()
	if a.activeRun != "" {
		a.mu.Unlock()
		return "", domain.ErrProbeInProgress
	}
	runID := uuid.NewString()
	a.activeRun = runID
	a.watchdog = time.AfterFunc(a.slowAfter, func() {
		if a.isActive(runID) {
			a.logger.Warnw("auto configuration taking longer than usual", "run_id", runID)
			if cbs.OnSlow != nil {
				cbs.OnSlow()
			}
		}
	})
	a.mu.Unlock()

	started := time.Now()
	err := a.session.Recommend(ingestURL, streamKey, func(update ports.ProbeUpdate) {
		if !a.isActive(runID) {
			return
		}

		switch update.Status {
		case ports.ProbeConnecting, ports.ProbeTesting:
			if cbs.OnProgress != nil {
				cbs.OnProgress(update.Progress)
			}
		case ports.ProbeSuccess:
			a.finish(runID)
			a.applyRecommendations(update.Recommendations)
			a.metrics.RecordProbeRun("success", time.Since(started).Seconds())
			if cbs.OnComplete != nil {
				cbs.OnComplete(nil)
			}
		case ports.ProbeError:
			a.finish(runID)
			a.metrics.RecordProbeRun("error", time.Since(started).Seconds())
			a.logger.Errorw("auto configuration failed", "run_id", runID, "error", update.Err)
			if cbs.OnComplete != nil {
				cbs.OnComplete(update.Err)
			}
		}
	})
	if err != nil {
		a.finish(runID)
		a.metrics.RecordProbeRun("rejected", 0)
		return "", err
	}

	return runID, nil
}

// Cancel stops tracking the active run. The underlying probe keeps going;
// its completion becomes a no-op.
func (a *AutoConfigService) Cancel() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.activeRun == "" {
		return
	}
	a.logger.Infow("auto configuration cancelled", "run_id", a.activeRun)
	a.activeRun = ""
	if a.watchdog != nil {
		a.watchdog.Stop()
		a.watchdog = nil
	}
	a.metrics.RecordProbeRun("cancelled", 0)
}

func (a *AutoConfigService) Running() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.activeRun != ""
}

func (a *AutoConfigService) isActive(runID string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.activeRun == runID
}

func (a *AutoConfigService) finish(runID string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.activeRun != runID {
		return
	}
	a.activeRun = ""
	if a.watchdog != nil {
		a.watchdog.Stop()
		a.watchdog = nil
	}
}

// applyRecommendations applies the first recommendation field by field.
// Each setter call is independent; one rejected value does not abort the
// rest.
func (a *AutoConfigService) applyRecommendations(recs []domain.Recommendation) {
	if len(recs) == 0 {
		return
	}
	rec := recs[0]
	ctx := context.Background()

	if err := a.config.SetVideoBitrate(ctx, rec.InitialBitrate/1000); err != nil {
		a.logger.Warnw("recommended bitrate rejected", "bps", rec.InitialBitrate, "error", err)
	}
	if err := a.config.SetFramerate(ctx, rec.TargetFramerate); err != nil {
		a.logger.Warnw("recommended framerate rejected", "fps", rec.TargetFramerate, "error", err)
	}
	if err := a.config.SetResolution(ctx, rec.Width, rec.Height); err != nil {
		a.logger.Warnw("recommended resolution rejected", "width", rec.Width, "height", rec.Height, "error", err)
	}
}
