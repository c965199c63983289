package validation_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"beamcast/internal/core/domain"
	"beamcast/pkg/validation"
)

func TestValidateIngestURL(t *testing.T) {
	tests := []struct {
		name    string
		url     string
		wantErr bool
	}{
		{"valid rtmps url", "rtmps://ingest.example.com/live", false},
		{"valid srt url", "srt://ingest.example.com:9000", false},
		{"empty", "", true},
		{"whitespace only", "   ", true},
		{"missing scheme", "ingest.example.com/live", true},
		{"missing host", "rtmps://", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validation.ValidateIngestURL(tt.url)
			if tt.wantErr {
				assert.ErrorIs(t, err, domain.ErrInvalidIngestURL)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateStreamKey(t *testing.T) {
	assert.NoError(t, validation.ValidateStreamKey("sk-123"))
	assert.Error(t, validation.ValidateStreamKey(""))
	assert.Error(t, validation.ValidateStreamKey("  "))
}

func TestValidateVideoBitrate(t *testing.T) {
	assert.NoError(t, validation.ValidateVideoBitrate(domain.MinVideoBitrate))
	assert.NoError(t, validation.ValidateVideoBitrate(domain.MaxVideoBitrate))
	assert.NoError(t, validation.ValidateVideoBitrate(2_500_000))

	assert.ErrorIs(t, validation.ValidateVideoBitrate(domain.MinVideoBitrate-1), domain.ErrValueOutOfRange)
	assert.ErrorIs(t, validation.ValidateVideoBitrate(domain.MaxVideoBitrate+1), domain.ErrValueOutOfRange)
}

func TestValidateAudioBitrate(t *testing.T) {
	assert.NoError(t, validation.ValidateAudioBitrate(128_000))
	assert.ErrorIs(t, validation.ValidateAudioBitrate(32_000), domain.ErrValueOutOfRange)
	assert.ErrorIs(t, validation.ValidateAudioBitrate(320_000), domain.ErrValueOutOfRange)
}

func TestValidateFramerate(t *testing.T) {
	assert.NoError(t, validation.ValidateFramerate(30))
	assert.ErrorIs(t, validation.ValidateFramerate(9), domain.ErrValueOutOfRange)
	assert.ErrorIs(t, validation.ValidateFramerate(61), domain.ErrValueOutOfRange)
}

func TestValidateResolution(t *testing.T) {
	assert.NoError(t, validation.ValidateResolution(1280, 720))
	assert.NoError(t, validation.ValidateResolution(domain.MinDimension, domain.MinDimension))

	// dimension bounds
	assert.ErrorIs(t, validation.ValidateResolution(100, 720), domain.ErrValueOutOfRange)
	assert.ErrorIs(t, validation.ValidateResolution(1280, 2000), domain.ErrValueOutOfRange)

	// pixel count ceiling kicks in even when both dimensions are legal
	err := validation.ValidateResolution(1920, 1080)
	assert.True(t, errors.Is(err, domain.ErrValueOutOfRange))
}

func TestValidateKeyframeInterval(t *testing.T) {
	assert.NoError(t, validation.ValidateKeyframeInterval(2.0))
	assert.ErrorIs(t, validation.ValidateKeyframeInterval(0.5), domain.ErrValueOutOfRange)
	assert.ErrorIs(t, validation.ValidateKeyframeInterval(10.5), domain.ErrValueOutOfRange)
}
