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

// probeControl captures the probe callback so tests drive the update
// sequence by hand.
type probeControl struct {
	stubControl

	mu           sync.Mutex
	probeCb      func(ports.ProbeUpdate)
	recommendErr error
}

func (c *probeControl) Recommend(ingestURL, streamKey string, cb func(ports.ProbeUpdate)) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.recommendErr != nil {
		return c.recommendErr
	}
	c.probeCb = cb
	return nil
}

func (c *probeControl) emit(update ports.ProbeUpdate) {
	c.mu.Lock()
	cb := c.probeCb
	c.mu.Unlock()
	if cb != nil {
		cb(update)
	}
}

type autoconfFixture struct {
	svc     *services.AutoConfigService
	control *probeControl
	config  *services.ConfigService
}

func newAutoConfFixture(t *testing.T, slowAfter time.Duration) *autoconfFixture {
	t.Helper()
	logger := zaptest.NewLogger(t).Sugar()
	repo := memory.NewMemorySettingsRepository()
	cfg, err := services.NewConfigService(context.Background(), repo, logger)
	require.NoError(t, err)

	control := &probeControl{}
	svc := services.NewAutoConfigService(control, cfg, testMetrics, slowAfter, logger)
	return &autoconfFixture{svc: svc, control: control, config: cfg}
}

func TestAutoConfigService_ForwardsProgress(t *testing.T) {
	f := newAutoConfFixture(t, 0)

	var mu sync.Mutex
	var progress []float64
	runID, err := f.svc.Run("rtmps://ingest.example.com/live", "sk", services.RunCallbacks{
		OnProgress: func(p float64) {
			mu.Lock()
			progress = append(progress, p)
			mu.Unlock()
		},
	})
	require.NoError(t, err)
	assert.NotEmpty(t, runID)
	assert.True(t, f.svc.Running())

	f.control.emit(ports.ProbeUpdate{Status: ports.ProbeConnecting, Progress: 0})
	f.control.emit(ports.ProbeUpdate{Status: ports.ProbeTesting, Progress: 0.5})
	f.control.emit(ports.ProbeUpdate{Status: ports.ProbeTesting, Progress: 0.9})

	mu.Lock()
	assert.Equal(t, []float64{0, 0.5, 0.9}, progress)
	mu.Unlock()
	assert.True(t, f.svc.Running(), "progress does not end the run")
}

func TestAutoConfigService_SuccessAppliesFirstRecommendation(t *testing.T) {
	f := newAutoConfFixture(t, 0)

	done := make(chan error, 1)
	_, err := f.svc.Run("rtmps://ingest.example.com/live", "sk", services.RunCallbacks{
		OnComplete: func(err error) { done <- err },
	})
	require.NoError(t, err)

	f.control.emit(ports.ProbeUpdate{
		Status: ports.ProbeSuccess,
		Recommendations: []domain.Recommendation{
			{InitialBitrate: 1_800_000, TargetFramerate: 24, Width: 960, Height: 540},
			{InitialBitrate: 900_000, TargetFramerate: 15, Width: 640, Height: 360},
		},
	})

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("completion not delivered")
	}
	assert.False(t, f.svc.Running())

	video := f.config.Video()
	assert.Equal(t, 1_800_000, video.InitialBitrate)
	assert.Equal(t, 24, video.TargetFramerate)
	assert.Equal(t, 960, video.Width)
	assert.Equal(t, 540, video.Height)
}

func TestAutoConfigService_RejectedFieldsAreSkippedIndependently(t *testing.T) {
	f := newAutoConfFixture(t, 0)

	_, err := f.svc.Run("rtmps://ingest.example.com/live", "sk", services.RunCallbacks{})
	require.NoError(t, err)

	// Bitrate below the floor and an oversized resolution are rejected;
	// the framerate in between still lands.
	f.control.emit(ports.ProbeUpdate{
		Status: ports.ProbeSuccess,
		Recommendations: []domain.Recommendation{
			{InitialBitrate: 10_000, TargetFramerate: 24, Width: 1920, Height: 1080},
		},
	})

	video := f.config.Video()
	assert.Equal(t, 2_500_000, video.InitialBitrate, "default survives a rejected bitrate")
	assert.Equal(t, 24, video.TargetFramerate)
	assert.Equal(t, 1280, video.Width, "default survives a rejected resolution")
}

func TestAutoConfigService_FailureReportsError(t *testing.T) {
	f := newAutoConfFixture(t, 0)

	done := make(chan error, 1)
	_, err := f.svc.Run("rtmps://ingest.example.com/live", "sk", services.RunCallbacks{
		OnComplete: func(err error) { done <- err },
	})
	require.NoError(t, err)

	probeErr := errors.New("probe transport failed")
	f.control.emit(ports.ProbeUpdate{Status: ports.ProbeError, Err: probeErr})

	select {
	case err := <-done:
		assert.ErrorIs(t, err, probeErr)
	case <-time.After(time.Second):
		t.Fatal("completion not delivered")
	}
	assert.False(t, f.svc.Running())
}

func TestAutoConfigService_SecondRunWhileActiveIsRejected(t *testing.T) {
	f := newAutoConfFixture(t, 0)

	_, err := f.svc.Run("rtmps://ingest.example.com/live", "sk", services.RunCallbacks{})
	require.NoError(t, err)

	_, err = f.svc.Run("rtmps://ingest.example.com/live", "sk", services.RunCallbacks{})
	assert.ErrorIs(t, err, domain.ErrProbeInProgress)
}

func TestAutoConfigService_RecommendFailureFreesTheSlot(t *testing.T) {
	f := newAutoConfFixture(t, 0)
	f.control.mu.Lock()
	f.control.recommendErr = errors.New("no session")
	f.control.mu.Unlock()

	_, err := f.svc.Run("rtmps://ingest.example.com/live", "sk", services.RunCallbacks{})
	assert.Error(t, err)
	assert.False(t, f.svc.Running())

	f.control.mu.Lock()
	f.control.recommendErr = nil
	f.control.mu.Unlock()

	_, err = f.svc.Run("rtmps://ingest.example.com/live", "sk", services.RunCallbacks{})
	assert.NoError(t, err)
}

func TestAutoConfigService_CancelMakesLateCompletionNoop(t *testing.T) {
	f := newAutoConfFixture(t, 0)

	completed := false
	_, err := f.svc.Run("rtmps://ingest.example.com/live", "sk", services.RunCallbacks{
		OnComplete: func(error) { completed = true },
	})
	require.NoError(t, err)

	f.svc.Cancel()
	assert.False(t, f.svc.Running())

	// The engine cannot abort a probe; its eventual completion must not
	// touch configuration or fire callbacks.
	f.control.emit(ports.ProbeUpdate{
		Status: ports.ProbeSuccess,
		Recommendations: []domain.Recommendation{
			{InitialBitrate: 1_000_000, TargetFramerate: 25, Width: 640, Height: 360},
		},
	})

	assert.False(t, completed)
	assert.Equal(t, 2_500_000, f.config.Video().InitialBitrate)
	assert.Equal(t, 1280, f.config.Video().Width)
}

func TestAutoConfigService_CancelWithoutRunIsNoop(t *testing.T) {
	f := newAutoConfFixture(t, 0)
	f.svc.Cancel()
	assert.False(t, f.svc.Running())
}

func TestAutoConfigService_SlowWatchdogFiresOnce(t *testing.T) {
	f := newAutoConfFixture(t, 20*time.Millisecond)

	slow := make(chan struct{}, 1)
	_, err := f.svc.Run("rtmps://ingest.example.com/live", "sk", services.RunCallbacks{
		OnSlow: func() { slow <- struct{}{} },
	})
	require.NoError(t, err)

	select {
	case <-slow:
	case <-time.After(time.Second):
		t.Fatal("slow warning not delivered")
	}
	assert.True(t, f.svc.Running(), "the warning is advisory, the probe keeps going")
}

func TestAutoConfigService_FinishBeforeWatchdogSuppressesWarning(t *testing.T) {
	f := newAutoConfFixture(t, 50*time.Millisecond)

	slow := make(chan struct{}, 1)
	_, err := f.svc.Run("rtmps://ingest.example.com/live", "sk", services.RunCallbacks{
		OnSlow: func() { slow <- struct{}{} },
	})
	require.NoError(t, err)

	f.control.emit(ports.ProbeUpdate{Status: ports.ProbeSuccess})

	select {
	case <-slow:
		t.Fatal("watchdog fired after completion")
	case <-time.After(120 * time.Millisecond):
	}
}
