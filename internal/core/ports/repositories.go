package ports

import "context"

// Settings keys shared between the main daemon and the screen-share agent
// process. The Redis-backed repository makes them visible to both.
const (
	KeyWasLaunchedBefore   = "was_launched_before"
	KeyIngestServer        = "ingest_server"
	KeyStreamKey           = "stream_key"
	KeyPlaybackURL         = "playback_url"
	KeyManualBitrateLimits = "manual_bitrate_limits"
	KeyAudioBitrate        = "audio_configuration_bitrate"
	KeyOrientation         = "video_configuration_orientation"
	KeyVideoBitrate        = "video_configuration_bitrate"
	KeyKeyframeInterval    = "video_configuration_keyframe_interval"
	KeyMaxVideoBitrate     = "video_configuration_max_bitrate"
	KeyMinVideoBitrate     = "video_configuration_min_bitrate"
	KeySizeWidth           = "video_configuration_size_width"
	KeySizeHeight          = "video_configuration_size_height"
	KeyBaseWidth           = "video_configuration_base_width"
	KeyBaseHeight          = "video_configuration_base_height"
	KeyFramerate           = "video_configuration_framerate"
	KeyTransparency        = "video_configuration_transparency_enabled"
	KeyUsesBFrames         = "video_configuration_uses_b_frames"
	KeyUseAutoBitrate      = "video_configuration_use_auto_bitrate"
	KeyDefaultCamera       = "default_camera"
	KeyScreenShareActive   = "screen_share_session_active"
)

// SettingsRepository is durable key-value storage for tunables. The second
// return value of getters reports whether the key was present.
type SettingsRepository interface {
	GetString(ctx context.Context, key string) (string, bool, error)
	SetString(ctx context.Context, key, value string) error
	GetInt(ctx context.Context, key string) (int, bool, error)
	SetInt(ctx context.Context, key string, value int) error
	GetFloat(ctx context.Context, key string) (float64, bool, error)
	SetFloat(ctx context.Context, key string, value float64) error
	GetBool(ctx context.Context, key string) (bool, bool, error)
	SetBool(ctx context.Context, key string, value bool) error
}
