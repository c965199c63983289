package services

import (
	"beamcast/internal/core/domain"
	"beamcast/internal/core/ports"

	"go.uber.org/zap"
)

// DeviceService enumerates capture devices. Listings are re-queried from
// the engine on every call because availability changes at runtime, for
// example when a Bluetooth microphone attaches.
type DeviceService struct {
	sdk    ports.SDK
	config *ConfigService
	logger *zap.SugaredLogger
}

func NewDeviceService(sdk ports.SDK, config *ConfigService, logger *zap.SugaredLogger) *DeviceService {
	return &DeviceService{sdk: sdk, config: config, logger: logger}
}

func (d *DeviceService) ListDevices() []domain.DeviceDescriptor {
	return d.sdk.ListDevices()
}

func (d *DeviceService) Cameras() []domain.DeviceDescriptor {
	var cams []domain.DeviceDescriptor
	for _, dev := range d.sdk.ListDevices() {
		if dev.Type == domain.DeviceTypeCamera {
			cams = append(cams, dev)
		}
	}
	return cams
}

func (d *DeviceService) FindByURN(urn string) (domain.DeviceDescriptor, bool) {
	for _, dev := range d.sdk.ListDevices() {
		if dev.URN == urn {
			return dev, true
		}
	}
	return domain.DeviceDescriptor{}, false
}

// SelectCamera picks a camera for the requested position. The configured
// default camera wins when its position matches; otherwise the last
// matching camera in listing order is used, which decides between
// multiple cameras at the same position.
func (d *DeviceService) SelectCamera(position domain.DevicePosition) (domain.DeviceDescriptor, bool) {
	devices := d.sdk.ListDevices()

	defaultURN := d.config.DefaultCameraURN()
	if defaultURN != "" {
		for _, dev := range devices {
			if dev.URN == defaultURN && dev.Position == position {
				return dev, true
			}
		}
	}

	var selected domain.DeviceDescriptor
	found := false
	for _, dev := range devices {
		if dev.Type == domain.DeviceTypeCamera && dev.Position == position {
			selected = dev
			found = true
		}
	}
	return selected, found
}

// SelectDefaultCamera resolves the configured default camera, falling
// back to any front camera.
func (d *DeviceService) SelectDefaultCamera() (domain.DeviceDescriptor, bool) {
	if defaultURN := d.config.DefaultCameraURN(); defaultURN != "" {
		if dev, ok := d.FindByURN(defaultURN); ok {
			return dev, true
		}
	}
	return d.SelectCamera(domain.PositionFront)
}

// SelectMicrophone returns the first microphone in listing order.
func (d *DeviceService) SelectMicrophone() (domain.DeviceDescriptor, bool) {
	for _, dev := range d.sdk.ListDevices() {
		if dev.Type == domain.DeviceTypeMicrophone {
			return dev, true
		}
	}
	return domain.DeviceDescriptor{}, false
}
