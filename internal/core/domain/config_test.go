package domain_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"beamcast/internal/core/domain"
)

func TestParseOrientation(t *testing.T) {
	tests := []struct {
		input string
		want  domain.Orientation
		ok    bool
	}{
		{"auto", domain.OrientationAuto, true},
		{"portrait", domain.OrientationPortrait, true},
		{"landscape", domain.OrientationLandscape, true},
		{"square", domain.OrientationSquare, true},
		{"", "", false},
		{"diagonal", "", false},
		{"Portrait", "", false},
	}

	for _, tt := range tests {
		got, ok := domain.ParseOrientation(tt.input)
		assert.Equal(t, tt.ok, ok, "input %q", tt.input)
		assert.Equal(t, tt.want, got, "input %q", tt.input)
	}
}

func TestSizeFor(t *testing.T) {
	tests := []struct {
		name        string
		orientation domain.Orientation
		a, b        int
		wantW       int
		wantH       int
	}{
		{"portrait puts smaller into width", domain.OrientationPortrait, 1280, 720, 720, 1280},
		{"portrait with swapped input", domain.OrientationPortrait, 720, 1280, 720, 1280},
		{"landscape puts larger into width", domain.OrientationLandscape, 720, 1280, 1280, 720},
		{"auto behaves like landscape", domain.OrientationAuto, 720, 1280, 1280, 720},
		{"square collapses to smaller", domain.OrientationSquare, 1280, 720, 720, 720},
		{"equal dimensions unchanged", domain.OrientationPortrait, 960, 960, 960, 960},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, h := tt.orientation.SizeFor(tt.a, tt.b)
			assert.Equal(t, tt.wantW, w)
			assert.Equal(t, tt.wantH, h)
		})
	}
}

// Switching orientation back and forth must return to the original
// dimensions when starting from the base pair.
func TestSizeFor_RoundTrip(t *testing.T) {
	baseA, baseB := 1280, 720

	w1, h1 := domain.OrientationLandscape.SizeFor(baseA, baseB)
	w2, h2 := domain.OrientationPortrait.SizeFor(baseA, baseB)
	w3, h3 := domain.OrientationLandscape.SizeFor(baseA, baseB)

	assert.Equal(t, w1, w3)
	assert.Equal(t, h1, h3)
	assert.Equal(t, w1, h2)
	assert.Equal(t, h1, w2)
}
