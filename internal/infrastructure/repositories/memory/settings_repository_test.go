package memory

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSettingsRepository_MissingKeysReportNotFound(t *testing.T) {
	repo := NewMemorySettingsRepository()
	ctx := context.Background()

	_, found, err := repo.GetString(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, found)

	_, found, err = repo.GetInt(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, found)

	_, found, err = repo.GetFloat(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, found)

	_, found, err = repo.GetBool(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestSettingsRepository_RoundTrip(t *testing.T) {
	repo := NewMemorySettingsRepository()
	ctx := context.Background()

	require.NoError(t, repo.SetString(ctx, "ingest_server", "rtmps://a.example.com/live"))
	require.NoError(t, repo.SetInt(ctx, "video_bitrate", 2_500_000))
	require.NoError(t, repo.SetFloat(ctx, "keyframe_interval", 2.0))
	require.NoError(t, repo.SetBool(ctx, "use_auto_bitrate", true))

	s, found, err := repo.GetString(ctx, "ingest_server")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "rtmps://a.example.com/live", s)

	i, found, err := repo.GetInt(ctx, "video_bitrate")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, 2_500_000, i)

	fl, found, err := repo.GetFloat(ctx, "keyframe_interval")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, 2.0, fl)

	b, found, err := repo.GetBool(ctx, "use_auto_bitrate")
	require.NoError(t, err)
	assert.True(t, found)
	assert.True(t, b)
}

func TestSettingsRepository_TypesDoNotCollide(t *testing.T) {
	repo := NewMemorySettingsRepository()
	ctx := context.Background()

	// The same key can hold one value per type namespace.
	require.NoError(t, repo.SetString(ctx, "key", "text"))
	require.NoError(t, repo.SetInt(ctx, "key", 7))

	s, found, err := repo.GetString(ctx, "key")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "text", s)

	i, found, err := repo.GetInt(ctx, "key")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, 7, i)
}

func TestSettingsRepository_OverwriteReplaces(t *testing.T) {
	repo := NewMemorySettingsRepository()
	ctx := context.Background()

	require.NoError(t, repo.SetBool(ctx, "flag", true))
	require.NoError(t, repo.SetBool(ctx, "flag", false))

	b, found, err := repo.GetBool(ctx, "flag")
	require.NoError(t, err)
	assert.True(t, found)
	assert.False(t, b)
}

func TestSettingsRepository_ConcurrentAccess(t *testing.T) {
	repo := NewMemorySettingsRepository()
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				_ = repo.SetInt(ctx, "counter", n)
				_, _, _ = repo.GetInt(ctx, "counter")
			}
		}(i)
	}
	wg.Wait()

	_, found, err := repo.GetInt(ctx, "counter")
	require.NoError(t, err)
	assert.True(t, found)
}
