package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"beamcast/internal/core/domain"
	"beamcast/internal/core/ports"
	"beamcast/internal/infrastructure/distributed"
	"beamcast/internal/infrastructure/repositories"
	"beamcast/internal/infrastructure/sdk/loopback"
	"beamcast/pkg/config"
	distlock "beamcast/pkg/distributed"
	"beamcast/pkg/logger"
)

// The screencast agent is a separate process that takes over the media
// engine for full-screen capture. It announces itself over the shared
// screen share channel so the broadcaster daemon releases its session.
func main() {
	configPaths := []string{
		"configs/config.yaml",
		"./configs/config.yaml",
		"/etc/beamcast/config.yaml",
		"config.yaml",
	}

	var cfg *config.Config
	var err error
	for _, path := range configPaths {
		cfg, err = config.Load(path)
		if err == nil {
			break
		}
	}
	if err != nil {
		cfg = config.DefaultConfig()
	}

	zapLogger := logger.New(cfg.Logging.Level)
	defer zapLogger.Sync()
	log := zapLogger.Sugar()

	repoFactory, err := repositories.NewRepositoryFactory(cfg, log)
	if err != nil {
		log.Fatalw("failed to create repository factory", "error", err)
	}
	defer repoFactory.Close()

	settingsRepo := repoFactory.CreateSettingsRepository()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ingestURL, _, err := settingsRepo.GetString(ctx, ports.KeyIngestServer)
	if err != nil {
		log.Fatalw("failed to read ingest server", "error", err)
	}
	if ingestURL == "" {
		ingestURL = cfg.Broadcast.IngestServer
	}
	streamKey, _, err := settingsRepo.GetString(ctx, ports.KeyStreamKey)
	if err != nil {
		log.Fatalw("failed to read stream key", "error", err)
	}
	if streamKey == "" {
		streamKey = cfg.Broadcast.StreamKey
	}
	if ingestURL == "" {
		log.Fatal("no ingest server configured")
	}

	var shareChannel *distributed.ScreenShareChannel
	if client := repoFactory.RedisClient(); client != nil {
		shareChannel = distributed.NewScreenShareChannel(client, settingsRepo, "screencast-agent", log)

		// One engine owner at a time across processes.
		lock := distlock.NewLock(client, "beamcast:engine:capture", 30*time.Second)
		lockCtx, lockCancel := context.WithTimeout(ctx, 10*time.Second)
		if err := lock.Acquire(lockCtx); err != nil {
			lockCancel()
			log.Fatalw("another capture session holds the engine", "error", err)
		}
		lockCancel()
		defer lock.Release(context.Background())
	}

	announce := func(active bool) {
		if shareChannel != nil {
			if err := shareChannel.Publish(ctx, active); err != nil {
				log.Warnw("failed to announce capture state", "active", active, "error", err)
			}
			return
		}
		// Without Redis the persisted flag is the only coordination path.
		if err := settingsRepo.SetBool(ctx, ports.KeyScreenShareActive, active); err != nil {
			log.Warnw("failed to persist capture flag", "active", active, "error", err)
		}
	}

	engine := loopback.NewDriver(log)
	session, err := engine.CreateSession(screenSessionConfig(), ports.SessionEvents{
		OnStateChange: func(state domain.SessionState) {
			log.Infow("capture session state changed", "state", state)
		},
		OnError: func(err error) {
			log.Errorw("capture session error", "error", err)
		},
	})
	if err != nil {
		log.Fatalw("failed to create capture session", "error", err)
	}

	attached := make(chan error, 1)
	session.AttachImageSource("screen", domain.SlotCamera, func(_ ports.Device, err error) {
		attached <- err
	})
	select {
	case err := <-attached:
		if err != nil {
			log.Fatalw("failed to attach screen source", "error", err)
		}
	case <-time.After(10 * time.Second):
		log.Fatal("timed out attaching screen source")
	}

	if err := session.Start(ingestURL, streamKey); err != nil {
		log.Fatalw("failed to start capture broadcast", "error", err)
	}
	announce(true)
	log.Infow("screen capture broadcast started", "ingest_url", ingestURL)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan
	log.Infow("received shutdown signal", "signal", sig)

	session.Stop()
	announce(false)
	log.Info("screen capture broadcast stopped")
}

func screenSessionConfig() domain.SessionConfig {
	return domain.SessionConfig{
		Video: domain.VideoConfig{
			Width:            1280,
			Height:           720,
			TargetFramerate:  30,
			InitialBitrate:   2_500_000,
			MinBitrate:       300_000,
			MaxBitrate:       8_500_000,
			KeyframeInterval: 2.0,
			UseAutoBitrate:   true,
		},
		Audio: domain.AudioConfig{
			Bitrate:  128_000,
			Channels: 2,
		},
		Slots: []domain.SlotConfig{
			{
				Name:           domain.SlotCamera,
				Aspect:         domain.AspectFit,
				ZIndex:         0,
				FullScreen:     true,
				PreferredVideo: domain.DeviceTypeUserImage,
				PreferredAudio: domain.DeviceTypeUserAudio,
			},
		},
	}
}
