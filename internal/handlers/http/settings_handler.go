package http

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"beamcast/internal/core/domain"
	"beamcast/internal/core/services"
	"beamcast/pkg/backup"
	apperrors "beamcast/pkg/errors"
)

// SettingsHandler exposes the persisted encoder configuration.
type SettingsHandler struct {
	config  *services.ConfigService
	backups *backup.Service
	logger  *zap.SugaredLogger
}

func NewSettingsHandler(config *services.ConfigService, backups *backup.Service, logger *zap.SugaredLogger) *SettingsHandler {
	return &SettingsHandler{
		config:  config,
		backups: backups,
		logger:  logger,
	}
}

func (h *SettingsHandler) SetupRoutes(router *gin.Engine, authMiddleware gin.HandlerFunc) {
	api := router.Group("/api/v1")
	if authMiddleware != nil {
		api.Use(authMiddleware)
	}
	{
		api.GET("/settings", h.GetSettings)
		api.PATCH("/settings", h.UpdateSettings)
	}
	if h.backups != nil {
		api.GET("/settings/backups", h.ListBackups)
		api.POST("/settings/backups", h.CreateBackup)
		api.POST("/settings/backups/restore", h.RestoreBackup)
		api.DELETE("/settings/backups/:name", h.DeleteBackup)
	}
}

// SettingsView is the external representation of the encoder
// configuration. All bitrates are in bps.
type SettingsView struct {
	IngestServer string `json:"ingest_server"`
	StreamKey    string `json:"stream_key"`
	PlaybackURL  string `json:"playback_url"`

	Orientation string `json:"orientation"`
	BaseWidth   int    `json:"base_width"`
	BaseHeight  int    `json:"base_height"`
	Width       int    `json:"width"`
	Height      int    `json:"height"`

	Framerate           int     `json:"framerate"`
	KeyframeInterval    float64 `json:"keyframe_interval"`
	VideoBitrate        int     `json:"video_bitrate"`
	MinVideoBitrate     int     `json:"min_video_bitrate"`
	MaxVideoBitrate     int     `json:"max_video_bitrate"`
	UseAutoBitrate      bool    `json:"use_auto_bitrate"`
	ManualBitrateLimits bool    `json:"manual_bitrate_limits"`
	UsesBFrames         bool    `json:"uses_b_frames"`
	EnableTransparency  bool    `json:"enable_transparency"`

	AudioBitrate  int `json:"audio_bitrate"`
	AudioChannels int `json:"audio_channels"`

	DefaultCamera string `json:"default_camera"`
}

func (h *SettingsHandler) view() SettingsView {
	video := h.config.Video()
	audio := h.config.Audio()
	baseW, baseH := h.config.BaseResolution()

	return SettingsView{
		IngestServer:        h.config.IngestServer(),
		StreamKey:           h.config.StreamKey(),
		PlaybackURL:         h.config.PlaybackURL(),
		Orientation:         string(h.config.Orientation()),
		BaseWidth:           baseW,
		BaseHeight:          baseH,
		Width:               video.Width,
		Height:              video.Height,
		Framerate:           video.TargetFramerate,
		KeyframeInterval:    video.KeyframeInterval,
		VideoBitrate:        video.InitialBitrate,
		MinVideoBitrate:     video.MinBitrate,
		MaxVideoBitrate:     video.MaxBitrate,
		UseAutoBitrate:      video.UseAutoBitrate,
		ManualBitrateLimits: h.config.ManualBitrateLimits(),
		UsesBFrames:         video.UsesBFrames,
		EnableTransparency:  video.EnableTransparency,
		AudioBitrate:        audio.Bitrate,
		AudioChannels:       audio.Channels,
		DefaultCamera:       h.config.DefaultCameraURN(),
	}
}

func (h *SettingsHandler) GetSettings(c *gin.Context) {
	c.JSON(http.StatusOK, h.view())
}

// UpdateSettingsRequest carries a partial settings update. Absent fields
// are left untouched.
type UpdateSettingsRequest struct {
	IngestServer *string `json:"ingest_server"`
	StreamKey    *string `json:"stream_key"`
	PlaybackURL  *string `json:"playback_url"`

	Orientation *string `json:"orientation"`
	Width       *int    `json:"width"`
	Height      *int    `json:"height"`

	Framerate           *int     `json:"framerate"`
	KeyframeInterval    *float64 `json:"keyframe_interval"`
	VideoBitrateKbps    *int     `json:"video_bitrate_kbps"`
	MinVideoBitrate     *int     `json:"min_video_bitrate"`
	MaxVideoBitrate     *int     `json:"max_video_bitrate"`
	UseAutoBitrate      *bool    `json:"use_auto_bitrate"`
	ManualBitrateLimits *bool    `json:"manual_bitrate_limits"`
	UsesBFrames         *bool    `json:"uses_b_frames"`
	EnableTransparency  *bool    `json:"enable_transparency"`

	AudioBitrate *int `json:"audio_bitrate"`
}

func (h *SettingsHandler) UpdateSettings(c *gin.Context) {
	var req UpdateSettingsRequest
	if err := c.BindJSON(&req); err != nil {
		c.Error(apperrors.NewInvalidInputError("invalid request format"))
		return
	}

	ctx := c.Request.Context()

	if req.IngestServer != nil {
		if err := h.config.SetIngestServer(ctx, *req.IngestServer); err != nil {
			c.Error(err)
			return
		}
	}
	if req.StreamKey != nil {
		if err := h.config.SetStreamKey(ctx, *req.StreamKey); err != nil {
			c.Error(err)
			return
		}
	}
	if req.PlaybackURL != nil {
		if err := h.config.SetPlaybackURL(ctx, *req.PlaybackURL); err != nil {
			c.Error(err)
			return
		}
	}

	if req.Orientation != nil {
		o, ok := domain.ParseOrientation(*req.Orientation)
		if !ok {
			c.Error(apperrors.NewInvalidInputError("unknown orientation"))
			return
		}
		if err := h.config.SetOrientation(ctx, o); err != nil {
			c.Error(err)
			return
		}
	}

	// The resolution pair is updated atomically so the pixel count check
	// sees both dimensions.
	if req.Width != nil || req.Height != nil {
		baseW, baseH := h.config.BaseResolution()
		if req.Width != nil {
			baseW = *req.Width
		}
		if req.Height != nil {
			baseH = *req.Height
		}
		if err := h.config.SetResolution(ctx, baseW, baseH); err != nil {
			c.Error(err)
			return
		}
	}

	if req.Framerate != nil {
		if err := h.config.SetFramerate(ctx, *req.Framerate); err != nil {
			c.Error(err)
			return
		}
	}
	if req.KeyframeInterval != nil {
		if err := h.config.SetKeyframeInterval(ctx, *req.KeyframeInterval); err != nil {
			c.Error(err)
			return
		}
	}
	if req.ManualBitrateLimits != nil {
		if err := h.config.SetManualBitrateLimits(ctx, *req.ManualBitrateLimits); err != nil {
			c.Error(err)
			return
		}
	}
	if req.MinVideoBitrate != nil {
		if err := h.config.SetMinVideoBitrate(ctx, *req.MinVideoBitrate); err != nil {
			c.Error(err)
			return
		}
	}
	if req.MaxVideoBitrate != nil {
		if err := h.config.SetMaxVideoBitrate(ctx, *req.MaxVideoBitrate); err != nil {
			c.Error(err)
			return
		}
	}
	if req.VideoBitrateKbps != nil {
		if err := h.config.SetVideoBitrate(ctx, *req.VideoBitrateKbps); err != nil {
			c.Error(err)
			return
		}
	}
	if req.UseAutoBitrate != nil {
		if err := h.config.SetUseAutoBitrate(ctx, *req.UseAutoBitrate); err != nil {
			c.Error(err)
			return
		}
	}
	if req.UsesBFrames != nil {
		if err := h.config.SetUsesBFrames(ctx, *req.UsesBFrames); err != nil {
			c.Error(err)
			return
		}
	}
	if req.EnableTransparency != nil {
		if err := h.config.SetEnableTransparency(ctx, *req.EnableTransparency); err != nil {
			c.Error(err)
			return
		}
	}
	if req.AudioBitrate != nil {
		if err := h.config.SetAudioBitrate(ctx, *req.AudioBitrate); err != nil {
			c.Error(err)
			return
		}
	}

	c.JSON(http.StatusOK, h.view())
}

func (h *SettingsHandler) ListBackups(c *gin.Context) {
	names, err := h.backups.List(c.Request.Context())
	if err != nil {
		c.Error(apperrors.NewInternalError(err.Error()))
		return
	}
	c.JSON(http.StatusOK, gin.H{"backups": names})
}

type BackupRequest struct {
	Name string `json:"name" binding:"required,min=1,max=100"`
}

func (h *SettingsHandler) CreateBackup(c *gin.Context) {
	var req BackupRequest
	if err := c.BindJSON(&req); err != nil {
		c.Error(apperrors.NewInvalidInputError("invalid request format"))
		return
	}

	if err := h.backups.Create(c.Request.Context(), req.Name, h.view()); err != nil {
		c.Error(apperrors.NewInternalError(err.Error()))
		return
	}
	c.JSON(http.StatusCreated, gin.H{"name": req.Name})
}

func (h *SettingsHandler) RestoreBackup(c *gin.Context) {
	var req BackupRequest
	if err := c.BindJSON(&req); err != nil {
		c.Error(apperrors.NewInvalidInputError("invalid request format"))
		return
	}

	var view SettingsView
	createdAt, err := h.backups.Restore(c.Request.Context(), req.Name, &view)
	if err != nil {
		c.Error(apperrors.NewNotFoundError("backup"))
		return
	}

	if err := h.applyView(c.Request.Context(), view); err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"name":       req.Name,
		"created_at": createdAt,
		"settings":   h.view(),
	})
}

func (h *SettingsHandler) DeleteBackup(c *gin.Context) {
	if err := h.backups.Delete(c.Request.Context(), c.Param("name")); err != nil {
		c.Error(apperrors.NewNotFoundError("backup"))
		return
	}
	c.Status(http.StatusNoContent)
}

// applyView replays a snapshot through the validated setters. Limit
// flags go first so the bitrate values are checked against the restored
// bounds, not the current ones.
func (h *SettingsHandler) applyView(ctx context.Context, v SettingsView) error {
	if err := h.config.SetIngestServer(ctx, v.IngestServer); err != nil {
		return err
	}
	if err := h.config.SetStreamKey(ctx, v.StreamKey); err != nil {
		return err
	}
	if err := h.config.SetPlaybackURL(ctx, v.PlaybackURL); err != nil {
		return err
	}

	if o, ok := domain.ParseOrientation(v.Orientation); ok {
		if err := h.config.SetOrientation(ctx, o); err != nil {
			return err
		}
	}
	if err := h.config.SetResolution(ctx, v.BaseWidth, v.BaseHeight); err != nil {
		return err
	}

	if err := h.config.SetManualBitrateLimits(ctx, v.ManualBitrateLimits); err != nil {
		return err
	}
	// The floor is dropped before moving both bounds so the restored pair
	// is never checked against the current one.
	if err := h.config.SetMinVideoBitrate(ctx, domain.MinVideoBitrate); err != nil {
		return err
	}
	if err := h.config.SetMaxVideoBitrate(ctx, v.MaxVideoBitrate); err != nil {
		return err
	}
	if err := h.config.SetMinVideoBitrate(ctx, v.MinVideoBitrate); err != nil {
		return err
	}
	if err := h.config.SetVideoBitrate(ctx, v.VideoBitrate/1000); err != nil {
		return err
	}
	if err := h.config.SetUseAutoBitrate(ctx, v.UseAutoBitrate); err != nil {
		return err
	}

	if err := h.config.SetFramerate(ctx, v.Framerate); err != nil {
		return err
	}
	if err := h.config.SetKeyframeInterval(ctx, v.KeyframeInterval); err != nil {
		return err
	}
	if err := h.config.SetUsesBFrames(ctx, v.UsesBFrames); err != nil {
		return err
	}
	if err := h.config.SetEnableTransparency(ctx, v.EnableTransparency); err != nil {
		return err
	}
	if err := h.config.SetAudioBitrate(ctx, v.AudioBitrate); err != nil {
		return err
	}

	if v.DefaultCamera != "" {
		if err := h.config.SetDefaultCameraURN(ctx, v.DefaultCamera); err != nil {
			return err
		}
	}
	return nil
}
