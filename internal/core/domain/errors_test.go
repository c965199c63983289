package domain_test

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"beamcast/internal/core/domain"
)

func TestClassifyError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want domain.ErrorClass
	}{
		{
			"network unreachable waits for connectivity",
			domain.NewSessionError(domain.CodeNetworkUnreachable, "socket closed"),
			domain.ClassTransientNetwork,
		},
		{
			"unspecified code retries immediately",
			domain.NewSessionError(domain.CodeUnspecified, "stream reset"),
			domain.ClassGenericSession,
		},
		{
			"unknown code retries immediately",
			domain.NewSessionError(42, "mystery"),
			domain.ClassGenericSession,
		},
		{
			"wrapped session error is unwrapped",
			fmt.Errorf("engine: %w", domain.NewSessionError(domain.CodeNetworkUnreachable, "down")),
			domain.ClassTransientNetwork,
		},
		{
			"validation error",
			fmt.Errorf("framerate 5: %w", domain.ErrValueOutOfRange),
			domain.ClassValidation,
		},
		{
			"invalid ingest url",
			domain.ErrInvalidIngestURL,
			domain.ClassValidation,
		},
		{
			"device error",
			domain.ErrDeviceUnavailable,
			domain.ClassDevice,
		},
		{
			"plain error",
			fmt.Errorf("something broke"),
			domain.ClassGenericSession,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, domain.ClassifyError(tt.err))
		})
	}
}

func TestSessionErrorMessage(t *testing.T) {
	err := domain.NewSessionError(10405, "network unreachable")
	assert.Equal(t, "session error 10405: network unreachable", err.Error())
}
