package services

import (
	"context"
	"fmt"
	"sync"

	"beamcast/internal/core/domain"
	"beamcast/internal/core/ports"
	"beamcast/pkg/validation"

	"go.uber.org/zap"
)

// Encoder defaults applied before persisted values are loaded.
const (
	defaultWidth            = 1280
	defaultHeight           = 720
	defaultFramerate        = 30
	defaultInitialBitrate   = 2_500_000
	defaultMinBitrate       = 300_000
	defaultMaxBitrate       = domain.MaxVideoBitrate
	defaultKeyframeInterval = 2.0
	defaultAudioBitrate     = 128_000
)

// ConfigService owns the live encoding configuration. Every successful
// mutation is persisted; a failed mutation leaves both the in-memory and
// the persisted state untouched.
type ConfigService struct {
	mu       sync.Mutex
	settings ports.SettingsRepository
	logger   *zap.SugaredLogger

	video       domain.VideoConfig
	audio       domain.AudioConfig
	orientation domain.Orientation

	// Base resolution as entered, before orientation derivation. Kept
	// separately so orientation changes round-trip exactly.
	baseWidth  int
	baseHeight int

	manualBitrateLimits bool

	ingestServer     string
	streamKey        string
	playbackURL      string
	defaultCameraURN string
}

func NewConfigService(ctx context.Context, settings ports.SettingsRepository, logger *zap.SugaredLogger) (*ConfigService, error) {
	c := &ConfigService{
		settings:    settings,
		logger:      logger,
		orientation: domain.OrientationAuto,
		baseWidth:   defaultWidth,
		baseHeight:  defaultHeight,
		video: domain.VideoConfig{
			TargetFramerate:  defaultFramerate,
			InitialBitrate:   defaultInitialBitrate,
			MinBitrate:       defaultMinBitrate,
			MaxBitrate:       defaultMaxBitrate,
			KeyframeInterval: defaultKeyframeInterval,
			UseAutoBitrate:   true,
		},
		audio: domain.AudioConfig{Bitrate: defaultAudioBitrate, Channels: 2},
	}

	if err := c.load(ctx); err != nil {
		return nil, fmt.Errorf("load persisted configuration: %w", err)
	}
	c.video.Width, c.video.Height = c.orientation.SizeFor(c.baseWidth, c.baseHeight)

	// Clean up if the previous run was torn down while the screen-share
	// extension was still marked active.
	if err := settings.SetBool(ctx, ports.KeyScreenShareActive, false); err != nil {
		logger.Warnw("failed to clear stale screen share flag", "error", err)
	}

	return c, nil
}

func (c *ConfigService) load(ctx context.Context) error {
	if s, ok, err := c.settings.GetString(ctx, ports.KeyOrientation); err != nil {
		return err
	} else if ok {
		if o, valid := domain.ParseOrientation(s); valid {
			c.orientation = o
		}
	}

	intFields := []struct {
		key string
		dst *int
	}{
		{ports.KeyVideoBitrate, &c.video.InitialBitrate},
		{ports.KeyMinVideoBitrate, &c.video.MinBitrate},
		{ports.KeyMaxVideoBitrate, &c.video.MaxBitrate},
		{ports.KeyFramerate, &c.video.TargetFramerate},
		{ports.KeyBaseWidth, &c.baseWidth},
		{ports.KeyBaseHeight, &c.baseHeight},
		{ports.KeyAudioBitrate, &c.audio.Bitrate},
	}
	for _, f := range intFields {
		if v, ok, err := c.settings.GetInt(ctx, f.key); err != nil {
			return err
		} else if ok && v != 0 {
			*f.dst = v
		}
	}

	if v, ok, err := c.settings.GetFloat(ctx, ports.KeyKeyframeInterval); err != nil {
		return err
	} else if ok && v != 0 {
		c.video.KeyframeInterval = v
	}

	boolFields := []struct {
		key string
		dst *bool
	}{
		{ports.KeyTransparency, &c.video.EnableTransparency},
		{ports.KeyUsesBFrames, &c.video.UsesBFrames},
		{ports.KeyUseAutoBitrate, &c.video.UseAutoBitrate},
		{ports.KeyManualBitrateLimits, &c.manualBitrateLimits},
	}
	for _, f := range boolFields {
		if v, ok, err := c.settings.GetBool(ctx, f.key); err != nil {
			return err
		} else if ok {
			*f.dst = v
		}
	}

	strFields := []struct {
		key string
		dst *string
	}{
		{ports.KeyIngestServer, &c.ingestServer},
		{ports.KeyStreamKey, &c.streamKey},
		{ports.KeyPlaybackURL, &c.playbackURL},
		{ports.KeyDefaultCamera, &c.defaultCameraURN},
	}
	for _, f := range strFields {
		if v, ok, err := c.settings.GetString(ctx, f.key); err != nil {
			return err
		} else if ok {
			*f.dst = v
		}
	}

	return nil
}

// updateAndSave persists the new value and only then applies it, so memory
// and storage cannot diverge. Equal values are a no-op with no write.
func updateAndSave[T comparable](ctx context.Context, settings ports.SettingsRepository, key string, oldVal, newVal T, save func(context.Context, string, T) error, apply func(T)) error {
	if newVal == oldVal {
		return nil
	}
	if err := save(ctx, key, newVal); err != nil {
		return fmt.Errorf("persist %s: %w", key, err)
	}
	apply(newVal)
	return nil
}

// SetVideoBitrate sets the initial video bitrate from a value in kbps;
// the engine and storage both use bps.
func (c *ConfigService) SetVideoBitrate(ctx context.Context, kbps int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	bps := kbps * 1000
	if bps == c.video.InitialBitrate {
		return nil
	}
	if err := validation.ValidateVideoBitrate(bps); err != nil {
		return err
	}
	if c.manualBitrateLimits && (bps < c.video.MinBitrate || bps > c.video.MaxBitrate) {
		return fmt.Errorf("bitrate %d outside manual limits %d-%d: %w",
			bps, c.video.MinBitrate, c.video.MaxBitrate, domain.ErrValueOutOfRange)
	}
	return updateAndSave(ctx, c.settings, ports.KeyVideoBitrate, c.video.InitialBitrate, bps,
		c.settings.SetInt, func(v int) { c.video.InitialBitrate = v })
}

func (c *ConfigService) SetMinVideoBitrate(ctx context.Context, bps int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if bps == c.video.MinBitrate {
		return nil
	}
	if err := validation.ValidateVideoBitrate(bps); err != nil {
		return err
	}
	if bps > c.video.MaxBitrate {
		return fmt.Errorf("min bitrate %d above max %d: %w", bps, c.video.MaxBitrate, domain.ErrValueOutOfRange)
	}
	return updateAndSave(ctx, c.settings, ports.KeyMinVideoBitrate, c.video.MinBitrate, bps,
		c.settings.SetInt, func(v int) { c.video.MinBitrate = v })
}

func (c *ConfigService) SetMaxVideoBitrate(ctx context.Context, bps int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if bps == c.video.MaxBitrate {
		return nil
	}
	if err := validation.ValidateVideoBitrate(bps); err != nil {
		return err
	}
	if bps < c.video.MinBitrate {
		return fmt.Errorf("max bitrate %d below min %d: %w", bps, c.video.MinBitrate, domain.ErrValueOutOfRange)
	}
	return updateAndSave(ctx, c.settings, ports.KeyMaxVideoBitrate, c.video.MaxBitrate, bps,
		c.settings.SetInt, func(v int) { c.video.MaxBitrate = v })
}

func (c *ConfigService) SetFramerate(ctx context.Context, fps int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if fps == c.video.TargetFramerate {
		return nil
	}
	if err := validation.ValidateFramerate(fps); err != nil {
		return err
	}
	return updateAndSave(ctx, c.settings, ports.KeyFramerate, c.video.TargetFramerate, fps,
		c.settings.SetInt, func(v int) { c.video.TargetFramerate = v })
}

func (c *ConfigService) SetKeyframeInterval(ctx context.Context, seconds float64) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if seconds == c.video.KeyframeInterval {
		return nil
	}
	if err := validation.ValidateKeyframeInterval(seconds); err != nil {
		return err
	}
	return updateAndSave(ctx, c.settings, ports.KeyKeyframeInterval, c.video.KeyframeInterval, seconds,
		c.settings.SetFloat, func(v float64) { c.video.KeyframeInterval = v })
}

func (c *ConfigService) SetAudioBitrate(ctx context.Context, bps int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if bps == c.audio.Bitrate {
		return nil
	}
	if err := validation.ValidateAudioBitrate(bps); err != nil {
		return err
	}
	return updateAndSave(ctx, c.settings, ports.KeyAudioBitrate, c.audio.Bitrate, bps,
		c.settings.SetInt, func(v int) { c.audio.Bitrate = v })
}

// SetResolution remembers the base resolution and applies the
// orientation-derived concrete dimensions.
func (c *ConfigService) SetResolution(ctx context.Context, a, b int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.setResolutionLocked(ctx, a, b)
}

func (c *ConfigService) setResolutionLocked(ctx context.Context, a, b int) error {
	width, height := c.orientation.SizeFor(a, b)
	if err := validation.ValidateResolution(width, height); err != nil {
		return err
	}

	if a != c.baseWidth {
		if err := c.settings.SetInt(ctx, ports.KeyBaseWidth, a); err != nil {
			return fmt.Errorf("persist %s: %w", ports.KeyBaseWidth, err)
		}
	}
	if b != c.baseHeight {
		if err := c.settings.SetInt(ctx, ports.KeyBaseHeight, b); err != nil {
			return fmt.Errorf("persist %s: %w", ports.KeyBaseHeight, err)
		}
	}
	if width != c.video.Width {
		if err := c.settings.SetInt(ctx, ports.KeySizeWidth, width); err != nil {
			return fmt.Errorf("persist %s: %w", ports.KeySizeWidth, err)
		}
	}
	if height != c.video.Height {
		if err := c.settings.SetInt(ctx, ports.KeySizeHeight, height); err != nil {
			return fmt.Errorf("persist %s: %w", ports.KeySizeHeight, err)
		}
	}

	c.baseWidth, c.baseHeight = a, b
	c.video.Width, c.video.Height = width, height
	return nil
}

// SetOrientation re-derives the concrete resolution from the remembered
// base pair, which may change width/height even though the user did not
// re-enter a value.
func (c *ConfigService) SetOrientation(ctx context.Context, o domain.Orientation) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if o == c.orientation {
		return nil
	}
	if _, valid := domain.ParseOrientation(string(o)); !valid {
		return fmt.Errorf("orientation %q: %w", o, domain.ErrValueOutOfRange)
	}
	if err := c.settings.SetString(ctx, ports.KeyOrientation, string(o)); err != nil {
		return fmt.Errorf("persist %s: %w", ports.KeyOrientation, err)
	}
	c.orientation = o
	return c.setResolutionLocked(ctx, c.baseWidth, c.baseHeight)
}

// DeviceOrientationChanged swaps the concrete dimensions to follow the
// physical device when orientation is auto. Returns whether the encoder
// resolution changed, in which case the session must be re-created.
func (c *ConfigService) DeviceOrientationChanged(ctx context.Context, toLandscape bool) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.orientation != domain.OrientationAuto {
		return false, nil
	}

	o := domain.OrientationLandscape
	if !toLandscape {
		o = domain.OrientationPortrait
	}
	width, height := o.SizeFor(c.video.Width, c.video.Height)
	if width == c.video.Width && height == c.video.Height {
		return false, nil
	}
	if err := c.settings.SetInt(ctx, ports.KeySizeWidth, width); err != nil {
		return false, fmt.Errorf("persist %s: %w", ports.KeySizeWidth, err)
	}
	if err := c.settings.SetInt(ctx, ports.KeySizeHeight, height); err != nil {
		return false, fmt.Errorf("persist %s: %w", ports.KeySizeHeight, err)
	}
	c.video.Width, c.video.Height = width, height
	return true, nil
}

func (c *ConfigService) SetUseAutoBitrate(ctx context.Context, v bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return updateAndSave(ctx, c.settings, ports.KeyUseAutoBitrate, c.video.UseAutoBitrate, v,
		c.settings.SetBool, func(b bool) { c.video.UseAutoBitrate = b })
}

func (c *ConfigService) SetUsesBFrames(ctx context.Context, v bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return updateAndSave(ctx, c.settings, ports.KeyUsesBFrames, c.video.UsesBFrames, v,
		c.settings.SetBool, func(b bool) { c.video.UsesBFrames = b })
}

func (c *ConfigService) SetEnableTransparency(ctx context.Context, v bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return updateAndSave(ctx, c.settings, ports.KeyTransparency, c.video.EnableTransparency, v,
		c.settings.SetBool, func(b bool) { c.video.EnableTransparency = b })
}

func (c *ConfigService) SetManualBitrateLimits(ctx context.Context, v bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return updateAndSave(ctx, c.settings, ports.KeyManualBitrateLimits, c.manualBitrateLimits, v,
		c.settings.SetBool, func(b bool) { c.manualBitrateLimits = b })
}

func (c *ConfigService) SetIngestServer(ctx context.Context, url string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return updateAndSave(ctx, c.settings, ports.KeyIngestServer, c.ingestServer, url,
		c.settings.SetString, func(v string) { c.ingestServer = v })
}

func (c *ConfigService) SetStreamKey(ctx context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return updateAndSave(ctx, c.settings, ports.KeyStreamKey, c.streamKey, key,
		c.settings.SetString, func(v string) { c.streamKey = v })
}

func (c *ConfigService) SetPlaybackURL(ctx context.Context, url string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return updateAndSave(ctx, c.settings, ports.KeyPlaybackURL, c.playbackURL, url,
		c.settings.SetString, func(v string) { c.playbackURL = v })
}

func (c *ConfigService) SetDefaultCameraURN(ctx context.Context, urn string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return updateAndSave(ctx, c.settings, ports.KeyDefaultCamera, c.defaultCameraURN, urn,
		c.settings.SetString, func(v string) { c.defaultCameraURN = v })
}

func (c *ConfigService) Video() domain.VideoConfig {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.video
}

func (c *ConfigService) Audio() domain.AudioConfig {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.audio
}

func (c *ConfigService) Orientation() domain.Orientation {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.orientation
}

func (c *ConfigService) BaseResolution() (int, int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.baseWidth, c.baseHeight
}

func (c *ConfigService) ManualBitrateLimits() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.manualBitrateLimits
}

func (c *ConfigService) IngestServer() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ingestServer
}

func (c *ConfigService) StreamKey() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.streamKey
}

func (c *ConfigService) PlaybackURL() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.playbackURL
}

func (c *ConfigService) DefaultCameraURN() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.defaultCameraURN
}

// SessionConfig builds the immutable snapshot a new session is created
// from, including the two mixer slots. The camera slot letterboxes when
// orientation is auto so rotated frames are not cropped.
func (c *ConfigService) SessionConfig() domain.SessionConfig {
	c.mu.Lock()
	defer c.mu.Unlock()

	cameraAspect := domain.AspectFill
	if c.orientation == domain.OrientationAuto {
		cameraAspect = domain.AspectFit
	}

	return domain.SessionConfig{
		Video: c.video,
		Audio: c.audio,
		Slots: []domain.SlotConfig{
			{
				Name:           domain.SlotCamera,
				Aspect:         cameraAspect,
				ZIndex:         0,
				PreferredVideo: domain.DeviceTypeCamera,
				PreferredAudio: domain.DeviceTypeMicrophone,
			},
			{
				Name:           domain.SlotCameraOff,
				Aspect:         domain.AspectFill,
				ZIndex:         1,
				FullScreen:     true,
				PreferredVideo: domain.DeviceTypeUserImage,
			},
		},
	}
}
