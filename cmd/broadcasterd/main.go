package main

import (
	"context"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"beamcast/internal/core/services"
	httphandlers "beamcast/internal/handlers/http"
	wshandlers "beamcast/internal/handlers/ws"
	"beamcast/internal/infrastructure/distributed"
	"beamcast/internal/infrastructure/middleware"
	"beamcast/internal/infrastructure/netwatch"
	"beamcast/internal/infrastructure/power"
	"beamcast/internal/infrastructure/repositories"
	"beamcast/internal/infrastructure/sdk/loopback"
	"beamcast/pkg/backup"
	"beamcast/pkg/config"
	"beamcast/pkg/logger"
	"beamcast/pkg/utils"
)

func main() {
	startTime := time.Now()

	// Try multiple config paths
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
		// Fallback to defaults if config cannot be loaded
		cfg = config.DefaultConfig()
	}

	// Initialize logger
	zapLogger := logger.New(cfg.Logging.Level)
	defer zapLogger.Sync()

	log := zapLogger.Sugar()

	// Initialize repository factory
	repoFactory, err := repositories.NewRepositoryFactory(cfg, log)
	if err != nil {
		log.Fatalw("failed to create repository factory", "error", err)
	}
	defer repoFactory.Close()

	settingsRepo := repoFactory.CreateSettingsRepository()

	rootCtx, rootCancel := context.WithCancel(context.Background())
	defer rootCancel()

	// Initialize services
	configService, err := services.NewConfigService(rootCtx, settingsRepo, log)
	if err != nil {
		log.Fatalw("failed to load configuration store", "error", err)
	}
	if cfg.Broadcast.IngestServer != "" && configService.IngestServer() == "" {
		if err := configService.SetIngestServer(rootCtx, cfg.Broadcast.IngestServer); err != nil {
			log.Warnw("failed to seed ingest server", "error", err)
		}
	}
	if cfg.Broadcast.StreamKey != "" && configService.StreamKey() == "" {
		if err := configService.SetStreamKey(rootCtx, cfg.Broadcast.StreamKey); err != nil {
			log.Warnw("failed to seed stream key", "error", err)
		}
	}

	metricsService := services.NewMetricsService()

	engine := loopback.NewDriver(log)
	deviceService := services.NewDeviceService(engine, configService, log)

	idleGuard := power.NewLogIdleGuard(log)

	sessionService := services.NewSessionService(
		engine,
		configService,
		deviceService,
		idleGuard,
		metricsService,
		cfg.Broadcast.UnmutedGain,
		log,
	)
	go sessionService.Run(rootCtx)

	watcher := netwatch.NewDialWatcher(reachabilityAddress(cfg), log)
	reconnectService := services.NewReconnectService(
		sessionService,
		settingsRepo,
		watcher,
		metricsService,
		log,
	)
	sessionService.SetErrorHandler(reconnectService.HandleSessionError)
	sessionService.SetStateObserver(reconnectService.HandleStateChange)
	sessionService.SetReconnectingProbe(reconnectService.Reconnecting)

	autoConfigService := services.NewAutoConfigService(
		sessionService,
		configService,
		metricsService,
		cfg.Broadcast.ProbeSlowAfter,
		log,
	)

	authService := services.NewAuthService(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)

	// Stop an in-app broadcast when a screen capture session takes over
	// the engine.
	if client := repoFactory.RedisClient(); client != nil {
		shareChannel := distributed.NewScreenShareChannel(client, settingsRepo, "broadcasterd", log)
		go func() {
			err := shareChannel.Watch(rootCtx, sessionService.HandleScreenShareActive)
			if err != nil && rootCtx.Err() == nil {
				log.Errorw("screen share watch stopped", "error", err)
			}
		}()
	}

	// Settings snapshots live next to the config files.
	var backupService *backup.Service
	if storage, err := backup.NewFileStorage("backups"); err != nil {
		log.Warnw("settings backups disabled", "error", err)
	} else {
		backupService = backup.NewService(storage)
	}

	// Initialize HTTP handlers
	authHandler := httphandlers.NewAuthHandler(authService, cfg.Auth.JWTSecret)
	broadcastHandler := httphandlers.NewBroadcastHandler(sessionService, deviceService, configService, log)
	settingsHandler := httphandlers.NewSettingsHandler(configService, backupService, log)
	autoConfigHandler := httphandlers.NewAutoConfigHandler(autoConfigService, configService, log)
	eventsHandler := wshandlers.NewEventsHandler(sessionService, log)

	// Configure Gin
	if cfg.Logging.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Logger())
	router.Use(middleware.RecoveryMiddleware(log))
	router.Use(middleware.ErrorHandlerMiddleware(log))
	router.Use(middleware.NewHTTPRateLimitMiddleware(cfg))

	// Setup auth routes (public)
	authHandler.SetupRoutes(router)

	authMW := middleware.AuthMiddleware(authService)
	broadcastHandler.SetupRoutes(router, authMW)
	settingsHandler.SetupRoutes(router, authMW)
	autoConfigHandler.SetupRoutes(router, authMW)
	eventsHandler.SetupRoutes(router)

	// Health check endpoint
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status":    "healthy",
			"timestamp": time.Now(),
			"uptime":    utils.FormatDuration(time.Since(startTime)),
		})
	})

	// Readiness endpoint
	router.GET("/ready", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		if err := repoFactory.HealthCheck(ctx); err != nil {
			c.JSON(503, gin.H{
				"status":       "not_ready",
				"timestamp":    time.Now(),
				"dependencies": "unhealthy",
				"error":        err.Error(),
			})
			return
		}

		c.JSON(200, gin.H{
			"status":       "ready",
			"timestamp":    time.Now(),
			"dependencies": "ok",
		})
	})

	// Prometheus metrics endpoint
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Create HTTP server with timeouts
	srv := &http.Server{
		Addr:         cfg.Server.Address,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// Start server in goroutine
	serverErr := make(chan error, 1)
	go func() {
		log.Infof("Starting beamcast broadcaster daemon on %s", cfg.Server.Address)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	// Wait for shutdown signals or server error
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErr:
		log.Fatalw("Server failed", "error", err)
	case sig := <-sigChan:
		log.Infow("Received shutdown signal", "signal", sig)
	}

	log.Info("Shutting down beamcast broadcaster daemon...")

	// Stop an in-flight broadcast before tearing the process down.
	reconnectService.Cancel()
	sessionService.Stop()
	rootCancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Errorw("Error during server shutdown", "error", err)
		if closeErr := srv.Close(); closeErr != nil {
			log.Errorw("Error force closing server", "error", closeErr)
		}
	} else {
		log.Info("Server shutdown gracefully")
	}
}

// reachabilityAddress picks the host:port dialed by the network watcher.
// Falls back to the ingest host when not configured explicitly.
func reachabilityAddress(cfg *config.Config) string {
	if cfg.Broadcast.ReachabilityAddress != "" {
		return cfg.Broadcast.ReachabilityAddress
	}
	if u, err := url.Parse(cfg.Broadcast.IngestServer); err == nil && u.Host != "" {
		host := u.Hostname()
		port := u.Port()
		if port == "" {
			port = "443"
		}
		return host + ":" + port
	}
	return "one.one.one.one:443"
}
