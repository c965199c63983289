package domain

type DeviceType string

const (
	DeviceTypeCamera     DeviceType = "camera"
	DeviceTypeMicrophone DeviceType = "microphone"
	DeviceTypeUserImage  DeviceType = "user_image"
	DeviceTypeUserAudio  DeviceType = "user_audio"
)

type DevicePosition string

const (
	PositionFront   DevicePosition = "front"
	PositionBack    DevicePosition = "back"
	PositionUnknown DevicePosition = "unknown"
)

func (p DevicePosition) Opposite() DevicePosition {
	switch p {
	case PositionFront:
		return PositionBack
	case PositionBack:
		return PositionFront
	}
	return PositionUnknown
}

// DeviceDescriptor is a read-only snapshot of a capture device as reported
// by the media engine. Availability changes at runtime, so listings are
// re-queried rather than cached.
type DeviceDescriptor struct {
	URN      string         `json:"urn"`
	Type     DeviceType     `json:"type"`
	Position DevicePosition `json:"position"`
	Name     string         `json:"name"`
}

// IsAudioInput reports whether the device feeds the microphone gain path.
func (d DeviceDescriptor) IsAudioInput() bool {
	return d.Type == DeviceTypeMicrophone || d.Type == DeviceTypeUserAudio
}
