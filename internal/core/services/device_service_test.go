package services_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"beamcast/internal/core/domain"
	"beamcast/internal/core/ports"
	"beamcast/internal/core/services"
	"beamcast/internal/infrastructure/repositories/memory"
	"beamcast/internal/infrastructure/sdk/loopback"
)

func phoneDevices() []domain.DeviceDescriptor {
	return []domain.DeviceDescriptor{
		{URN: "cam:front:a", Type: domain.DeviceTypeCamera, Position: domain.PositionFront, Name: "Front A"},
		{URN: "cam:back:wide", Type: domain.DeviceTypeCamera, Position: domain.PositionBack, Name: "Back Wide"},
		{URN: "cam:back:tele", Type: domain.DeviceTypeCamera, Position: domain.PositionBack, Name: "Back Tele"},
		{URN: "mic:0", Type: domain.DeviceTypeMicrophone, Position: domain.PositionUnknown, Name: "Mic"},
	}
}

func newDeviceService(t *testing.T, devices []domain.DeviceDescriptor) (*services.DeviceService, *services.ConfigService) {
	t.Helper()
	logger := zaptest.NewLogger(t).Sugar()
	engine := loopback.NewDriver(logger, loopback.WithDevices(devices))
	cfg := newConfigService(t, memory.NewMemorySettingsRepository())
	return services.NewDeviceService(engine, cfg, logger), cfg
}

func TestDeviceService_Cameras(t *testing.T) {
	svc, _ := newDeviceService(t, phoneDevices())
	cams := svc.Cameras()
	require.Len(t, cams, 3)
	for _, cam := range cams {
		assert.Equal(t, domain.DeviceTypeCamera, cam.Type)
	}
}

func TestDeviceService_SelectCamera_LastMatchWins(t *testing.T) {
	svc, _ := newDeviceService(t, phoneDevices())

	dev, ok := svc.SelectCamera(domain.PositionBack)
	require.True(t, ok)
	assert.Equal(t, "cam:back:tele", dev.URN, "the last matching camera decides ties")
}

func TestDeviceService_SelectCamera_DefaultURNWins(t *testing.T) {
	svc, cfg := newDeviceService(t, phoneDevices())
	require.NoError(t, cfg.SetDefaultCameraURN(context.Background(), "cam:back:wide"))

	dev, ok := svc.SelectCamera(domain.PositionBack)
	require.True(t, ok)
	assert.Equal(t, "cam:back:wide", dev.URN)
}

func TestDeviceService_SelectCamera_DefaultIgnoredForOtherPosition(t *testing.T) {
	svc, cfg := newDeviceService(t, phoneDevices())
	require.NoError(t, cfg.SetDefaultCameraURN(context.Background(), "cam:back:wide"))

	dev, ok := svc.SelectCamera(domain.PositionFront)
	require.True(t, ok)
	assert.Equal(t, "cam:front:a", dev.URN)
}

func TestDeviceService_SelectCamera_NoMatch(t *testing.T) {
	svc, _ := newDeviceService(t, []domain.DeviceDescriptor{
		{URN: "mic:0", Type: domain.DeviceTypeMicrophone},
	})

	_, ok := svc.SelectCamera(domain.PositionFront)
	assert.False(t, ok)
}

func TestDeviceService_SelectDefaultCamera(t *testing.T) {
	svc, cfg := newDeviceService(t, phoneDevices())

	// No default configured: any front camera.
	dev, ok := svc.SelectDefaultCamera()
	require.True(t, ok)
	assert.Equal(t, domain.PositionFront, dev.Position)

	// Configured default is honored regardless of position.
	require.NoError(t, cfg.SetDefaultCameraURN(context.Background(), "cam:back:tele"))
	dev, ok = svc.SelectDefaultCamera()
	require.True(t, ok)
	assert.Equal(t, "cam:back:tele", dev.URN)

	// A stale default falls back to the front camera.
	require.NoError(t, cfg.SetDefaultCameraURN(context.Background(), "cam:gone"))
	dev, ok = svc.SelectDefaultCamera()
	require.True(t, ok)
	assert.Equal(t, "cam:front:a", dev.URN)
}

func TestDeviceService_SelectMicrophone(t *testing.T) {
	svc, _ := newDeviceService(t, phoneDevices())

	dev, ok := svc.SelectMicrophone()
	require.True(t, ok)
	assert.Equal(t, "mic:0", dev.URN)
}

var _ ports.SDK = (*loopback.Driver)(nil)
