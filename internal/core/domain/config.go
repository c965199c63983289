package domain

// Encoder limits enforced before any value reaches the media engine.
const (
	MinDimension  = 160
	MaxDimension  = 1920
	MaxPixelCount = 2072600

	MinFramerate = 10
	MaxFramerate = 60

	MinVideoBitrate = 100_000   // bps
	MaxVideoBitrate = 8_500_000 // bps

	MinAudioBitrate = 64_000  // bps
	MaxAudioBitrate = 160_000 // bps

	MinKeyframeInterval = 1.0
	MaxKeyframeInterval = 10.0
)

type Orientation string

const (
	OrientationAuto      Orientation = "auto"
	OrientationPortrait  Orientation = "portrait"
	OrientationLandscape Orientation = "landscape"
	OrientationSquare    Orientation = "square"
)

func ParseOrientation(s string) (Orientation, bool) {
	switch Orientation(s) {
	case OrientationAuto, OrientationPortrait, OrientationLandscape, OrientationSquare:
		return Orientation(s), true
	}
	return "", false
}

// SizeFor maps a base resolution pair onto concrete encoder dimensions.
// Portrait puts the smaller dimension into width, landscape the larger;
// auto is treated as landscape until a device orientation signal arrives.
// Square collapses both dimensions to the smaller value.
func (o Orientation) SizeFor(a, b int) (width, height int) {
	switch o {
	case OrientationPortrait:
		return minInt(a, b), maxInt(a, b)
	case OrientationSquare:
		s := minInt(a, b)
		return s, s
	default: // auto, landscape
		return maxInt(a, b), minInt(a, b)
	}
}

// VideoConfig is the live video encoder configuration. Bitrates are in bps.
type VideoConfig struct {
	Width              int
	Height             int
	TargetFramerate    int
	InitialBitrate     int
	MinBitrate         int
	MaxBitrate         int
	KeyframeInterval   float64
	UseAutoBitrate     bool
	UsesBFrames        bool
	EnableTransparency bool
}

type AudioConfig struct {
	Bitrate  int
	Channels int
}

// Mixer slot names shared between the camera feed and the camera-off
// placeholder image. Exactly one of the two sources is bound at a time.
const (
	SlotCamera    = "camera"
	SlotCameraOff = "camera_off"
)

type AspectMode string

const (
	AspectFit  AspectMode = "fit"
	AspectFill AspectMode = "fill"
)

type SlotConfig struct {
	Name           string
	Aspect         AspectMode
	ZIndex         int
	FullScreen     bool
	PreferredVideo DeviceType
	PreferredAudio DeviceType
}

// SessionConfig is the immutable snapshot handed to the media engine when
// a session object is created.
type SessionConfig struct {
	Video VideoConfig
	Audio AudioConfig
	Slots []SlotConfig
}

// Recommendation is a single suggested encoder parameter set returned by
// the network quality probe.
type Recommendation struct {
	InitialBitrate  int // bps
	TargetFramerate int
	Width           int
	Height          int
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
