package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"beamcast/internal/core/domain"
	"beamcast/internal/core/ports"
	"beamcast/internal/core/services"
	apperrors "beamcast/pkg/errors"
)

// BroadcastHandler exposes the session controller over HTTP.
type BroadcastHandler struct {
	session ports.SessionControl
	devices *services.DeviceService
	config  *services.ConfigService
	logger  *zap.SugaredLogger
}

func NewBroadcastHandler(
	session ports.SessionControl,
	devices *services.DeviceService,
	config *services.ConfigService,
	logger *zap.SugaredLogger,
) *BroadcastHandler {
	return &BroadcastHandler{
		session: session,
		devices: devices,
		config:  config,
		logger:  logger,
	}
}

func (h *BroadcastHandler) SetupRoutes(router *gin.Engine, authMiddleware gin.HandlerFunc) {
	api := router.Group("/api/v1")
	if authMiddleware != nil {
		api.Use(authMiddleware)
	}
	{
		api.GET("/session/status", h.Status)
		api.POST("/session/initialize", h.Initialize)
		api.POST("/session/start", h.StartBroadcast)
		api.POST("/session/stop", h.StopBroadcast)
		api.POST("/session/camera/toggle", h.ToggleCamera)
		api.POST("/session/camera/flip", h.FlipCamera)
		api.POST("/session/mute/toggle", h.ToggleMute)
		api.GET("/devices", h.ListDevices)
		api.POST("/devices/default-camera", h.SetDefaultCamera)
	}
}

func (h *BroadcastHandler) Status(c *gin.Context) {
	c.JSON(http.StatusOK, h.session.Snapshot())
}

func (h *BroadcastHandler) Initialize(c *gin.Context) {
	if err := h.session.Initialize(); err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, h.session.Snapshot())
}

type StartBroadcastRequest struct {
	IngestURL string `json:"ingest_url"`
	StreamKey string `json:"stream_key"`
}

func (h *BroadcastHandler) StartBroadcast(c *gin.Context) {
	var req StartBroadcastRequest
	if c.Request.ContentLength > 0 {
		if err := c.BindJSON(&req); err != nil {
			c.Error(apperrors.NewInvalidInputError("invalid request format"))
			return
		}
	}

	// Fall back to persisted endpoint when the request omits it.
	if req.IngestURL == "" {
		req.IngestURL = h.config.IngestServer()
	}
	if req.StreamKey == "" {
		req.StreamKey = h.config.StreamKey()
	}

	if err := h.session.Start(req.IngestURL, req.StreamKey); err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusAccepted, h.session.Snapshot())
}

func (h *BroadcastHandler) StopBroadcast(c *gin.Context) {
	h.session.Stop()
	c.JSON(http.StatusAccepted, h.session.Snapshot())
}

func (h *BroadcastHandler) ToggleCamera(c *gin.Context) {
	h.session.ToggleCamera()
	c.JSON(http.StatusAccepted, h.session.Snapshot())
}

func (h *BroadcastHandler) FlipCamera(c *gin.Context) {
	h.session.FlipCamera()
	c.JSON(http.StatusAccepted, h.session.Snapshot())
}

func (h *BroadcastHandler) ToggleMute(c *gin.Context) {
	h.session.ToggleMute()
	c.JSON(http.StatusOK, h.session.Snapshot())
}

func (h *BroadcastHandler) ListDevices(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"devices":        h.devices.ListDevices(),
		"default_camera": h.config.DefaultCameraURN(),
	})
}

type SetDefaultCameraRequest struct {
	URN string `json:"urn" binding:"required"`
}

func (h *BroadcastHandler) SetDefaultCamera(c *gin.Context) {
	var req SetDefaultCameraRequest
	if err := c.BindJSON(&req); err != nil {
		c.Error(apperrors.NewInvalidInputError("invalid request format"))
		return
	}

	desc, ok := h.devices.FindByURN(req.URN)
	if !ok || desc.Type != domain.DeviceTypeCamera {
		c.Error(apperrors.NewNotFoundError("camera"))
		return
	}

	if err := h.config.SetDefaultCameraURN(c.Request.Context(), req.URN); err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"default_camera": req.URN})
}
