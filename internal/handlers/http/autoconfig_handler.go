package http

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"beamcast/internal/core/services"
	apperrors "beamcast/pkg/errors"
)

// AutoConfigHandler drives probe runs over HTTP. Run completion is
// asynchronous; clients poll the status endpoint or watch the event feed.
type AutoConfigHandler struct {
	autocfg *services.AutoConfigService
	config  *services.ConfigService
	logger  *zap.SugaredLogger

	mu   sync.Mutex
	last RunStatus
}

// RunStatus is the externally visible state of the most recent probe run.
type RunStatus struct {
	RunID      string     `json:"run_id"`
	Running    bool       `json:"running"`
	Progress   float64    `json:"progress"`
	Slow       bool       `json:"slow"`
	Error      string     `json:"error,omitempty"`
	StartedAt  *time.Time `json:"started_at,omitempty"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

func NewAutoConfigHandler(
	autocfg *services.AutoConfigService,
	config *services.ConfigService,
	logger *zap.SugaredLogger,
) *AutoConfigHandler {
	return &AutoConfigHandler{
		autocfg: autocfg,
		config:  config,
		logger:  logger,
	}
}

func (h *AutoConfigHandler) SetupRoutes(router *gin.Engine, authMiddleware gin.HandlerFunc) {
	api := router.Group("/api/v1/autoconfig")
	if authMiddleware != nil {
		api.Use(authMiddleware)
	}
	{
		api.POST("/run", h.Run)
		api.POST("/cancel", h.Cancel)
		api.GET("/status", h.Status)
	}
}

type RunAutoConfigRequest struct {
	IngestURL string `json:"ingest_url"`
	StreamKey string `json:"stream_key"`
}

func (h *AutoConfigHandler) Run(c *gin.Context) {
	var req RunAutoConfigRequest
	if c.Request.ContentLength > 0 {
		if err := c.BindJSON(&req); err != nil {
			c.Error(apperrors.NewInvalidInputError("invalid request format"))
			return
		}
	}
	if req.IngestURL == "" {
		req.IngestURL = h.config.IngestServer()
	}
	if req.StreamKey == "" {
		req.StreamKey = h.config.StreamKey()
	}

	// Tracking state goes in before the run starts: probe callbacks can
	// fire before Run returns.
	now := time.Now()
	h.mu.Lock()
	if h.last.Running {
		h.mu.Unlock()
		c.Error(apperrors.NewConflictError("probe already running"))
		return
	}
	h.last = RunStatus{Running: true, StartedAt: &now}
	h.mu.Unlock()

	runID, err := h.autocfg.Run(req.IngestURL, req.StreamKey, services.RunCallbacks{
		OnProgress: func(p float64) {
			h.mu.Lock()
			if h.last.Running {
				h.last.Progress = p
			}
			h.mu.Unlock()
		},
		OnSlow: func() {
			h.mu.Lock()
			if h.last.Running {
				h.last.Slow = true
			}
			h.mu.Unlock()
		},
		OnComplete: func(err error) {
			now := time.Now()
			h.mu.Lock()
			h.last.Running = false
			h.last.FinishedAt = &now
			if err != nil {
				h.last.Error = err.Error()
			} else {
				h.last.Progress = 1
			}
			h.mu.Unlock()
		},
	})
	if err != nil {
		h.mu.Lock()
		h.last = RunStatus{}
		h.mu.Unlock()
		c.Error(err)
		return
	}

	h.mu.Lock()
	h.last.RunID = runID
	status := h.last
	h.mu.Unlock()

	c.JSON(http.StatusAccepted, status)
}

func (h *AutoConfigHandler) Cancel(c *gin.Context) {
	h.autocfg.Cancel()

	now := time.Now()
	h.mu.Lock()
	if h.last.Running {
		h.last.Running = false
		h.last.Error = "cancelled"
		h.last.FinishedAt = &now
	}
	status := h.last
	h.mu.Unlock()

	c.JSON(http.StatusOK, status)
}

func (h *AutoConfigHandler) Status(c *gin.Context) {
	h.mu.Lock()
	status := h.last
	h.mu.Unlock()
	c.JSON(http.StatusOK, status)
}
