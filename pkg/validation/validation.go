package validation

import (
	"fmt"
	"net/url"
	"strings"

	"beamcast/internal/core/domain"
)

// ValidateIngestURL validates the ingest endpoint address.
func ValidateIngestURL(urlStr string) error {
	if strings.TrimSpace(urlStr) == "" {
		return domain.ErrInvalidIngestURL
	}
	u, err := url.Parse(urlStr)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrInvalidIngestURL, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("%w: missing scheme or host", domain.ErrInvalidIngestURL)
	}
	return nil
}

// ValidateStreamKey validates the ingest secret.
func ValidateStreamKey(key string) error {
	if strings.TrimSpace(key) == "" {
		return fmt.Errorf("%w: stream key is empty", domain.ErrInvalidIngestURL)
	}
	return nil
}

// ValidateVideoBitrate validates a video bitrate in bps.
func ValidateVideoBitrate(bps int) error {
	if bps < domain.MinVideoBitrate || bps > domain.MaxVideoBitrate {
		return fmt.Errorf("video bitrate %d bps outside %d-%d: %w",
			bps, domain.MinVideoBitrate, domain.MaxVideoBitrate, domain.ErrValueOutOfRange)
	}
	return nil
}

// ValidateAudioBitrate validates an audio bitrate in bps.
func ValidateAudioBitrate(bps int) error {
	if bps < domain.MinAudioBitrate || bps > domain.MaxAudioBitrate {
		return fmt.Errorf("audio bitrate %d bps outside %d-%d: %w",
			bps, domain.MinAudioBitrate, domain.MaxAudioBitrate, domain.ErrValueOutOfRange)
	}
	return nil
}

// ValidateFramerate validates a target framerate in fps.
func ValidateFramerate(fps int) error {
	if fps < domain.MinFramerate || fps > domain.MaxFramerate {
		return fmt.Errorf("framerate %d outside %d-%d: %w",
			fps, domain.MinFramerate, domain.MaxFramerate, domain.ErrValueOutOfRange)
	}
	return nil
}

// ValidateResolution validates concrete encoder dimensions. The pixel
// count ceiling comes from the engine's encoder limits.
func ValidateResolution(width, height int) error {
	if width < domain.MinDimension || width > domain.MaxDimension {
		return fmt.Errorf("width %d outside %d-%d: %w",
			width, domain.MinDimension, domain.MaxDimension, domain.ErrValueOutOfRange)
	}
	if height < domain.MinDimension || height > domain.MaxDimension {
		return fmt.Errorf("height %d outside %d-%d: %w",
			height, domain.MinDimension, domain.MaxDimension, domain.ErrValueOutOfRange)
	}
	if width*height >= domain.MaxPixelCount {
		return fmt.Errorf("resolution %dx%d exceeds %d pixels: %w",
			width, height, domain.MaxPixelCount, domain.ErrValueOutOfRange)
	}
	return nil
}

// ValidateKeyframeInterval validates a keyframe interval in seconds.
func ValidateKeyframeInterval(seconds float64) error {
	if seconds < domain.MinKeyframeInterval || seconds > domain.MaxKeyframeInterval {
		return fmt.Errorf("keyframe interval %.1f outside %.1f-%.1f: %w",
			seconds, domain.MinKeyframeInterval, domain.MaxKeyframeInterval, domain.ErrValueOutOfRange)
	}
	return nil
}
