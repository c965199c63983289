package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"beamcast/internal/core/ports"
)

const settingsKeyPrefix = "beamcast:settings:"

// RedisSettingsRepository persists broadcast settings in Redis so that
// several processes (the daemon and the screencast agent) observe the
// same configuration.
type RedisSettingsRepository struct {
	client *redis.Client
	logger *zap.SugaredLogger
}

var _ ports.SettingsRepository = (*RedisSettingsRepository)(nil)

func NewRedisSettingsRepository(client *redis.Client, logger *zap.SugaredLogger) *RedisSettingsRepository {
	return &RedisSettingsRepository{
		client: client,
		logger: logger,
	}
}

func (r *RedisSettingsRepository) key(name string) string {
	return settingsKeyPrefix + name
}

func (r *RedisSettingsRepository) get(ctx context.Context, name string) (string, bool, error) {
	val, err := r.client.Get(ctx, r.key(name)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to read setting %s: %w", name, err)
	}
	return val, true, nil
}

func (r *RedisSettingsRepository) set(ctx context.Context, name, val string) error {
	if err := r.client.Set(ctx, r.key(name), val, 0).Err(); err != nil {
		return fmt.Errorf("failed to write setting %s: %w", name, err)
	}
	return nil
}

func (r *RedisSettingsRepository) GetString(ctx context.Context, name string) (string, bool, error) {
	return r.get(ctx, name)
}

func (r *RedisSettingsRepository) SetString(ctx context.Context, name, value string) error {
	return r.set(ctx, name, value)
}

func (r *RedisSettingsRepository) GetInt(ctx context.Context, name string) (int, bool, error) {
	raw, found, err := r.get(ctx, name)
	if err != nil || !found {
		return 0, found, err
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false, fmt.Errorf("setting %s is not an integer: %w", name, err)
	}
	return v, true, nil
}

func (r *RedisSettingsRepository) SetInt(ctx context.Context, name string, value int) error {
	return r.set(ctx, name, strconv.Itoa(value))
}

func (r *RedisSettingsRepository) GetFloat(ctx context.Context, name string) (float64, bool, error) {
	raw, found, err := r.get(ctx, name)
	if err != nil || !found {
		return 0, found, err
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, false, fmt.Errorf("setting %s is not a float: %w", name, err)
	}
	return v, true, nil
}

func (r *RedisSettingsRepository) SetFloat(ctx context.Context, name string, value float64) error {
	return r.set(ctx, name, strconv.FormatFloat(value, 'f', -1, 64))
}

func (r *RedisSettingsRepository) GetBool(ctx context.Context, name string) (bool, bool, error) {
	raw, found, err := r.get(ctx, name)
	if err != nil || !found {
		return false, found, err
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, false, fmt.Errorf("setting %s is not a bool: %w", name, err)
	}
	return v, true, nil
}

func (r *RedisSettingsRepository) SetBool(ctx context.Context, name string, value bool) error {
	return r.set(ctx, name, strconv.FormatBool(value))
}
