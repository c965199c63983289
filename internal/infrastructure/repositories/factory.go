package repositories

import (
	"context"

	"beamcast/internal/core/ports"
	"beamcast/internal/infrastructure/repositories/memory"
	redisrepo "beamcast/internal/infrastructure/repositories/redis"
	"beamcast/pkg/config"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RepositoryFactory creates repositories with fallback support
type RepositoryFactory struct {
	useRedis    bool
	redisClient *redis.Client
	logger      *zap.SugaredLogger
}

// NewRepositoryFactory creates a new repository factory
func NewRepositoryFactory(cfg *config.Config, logger *zap.SugaredLogger) (*RepositoryFactory, error) {
	factory := &RepositoryFactory{
		useRedis: cfg.Redis.Enabled,
		logger:   logger,
	}

	// Try to connect to Redis if enabled
	if cfg.Redis.Enabled {
		client, err := redisrepo.NewRedisClient(
			cfg.Redis.Address,
			cfg.Redis.Password,
			cfg.Redis.DB,
			cfg.Redis.PoolSize,
			logger,
		)
		if err != nil {
			logger.Warnw("failed to connect to Redis, falling back to memory repositories",
				"error", err,
			)
			factory.useRedis = false
		} else {
			factory.redisClient = client
			logger.Info("using Redis repositories")
		}
	}

	if !factory.useRedis {
		logger.Info("using memory repositories")
	}

	return factory, nil
}

// CreateSettingsRepository creates a settings repository (Redis or memory with fallback)
func (f *RepositoryFactory) CreateSettingsRepository() ports.SettingsRepository {
	if f.useRedis && f.redisClient != nil {
		return redisrepo.NewRedisSettingsRepository(f.redisClient, f.logger)
	}
	return memory.NewMemorySettingsRepository()
}

// RedisClient returns the underlying Redis client, or nil when running
// on memory repositories.
func (f *RepositoryFactory) RedisClient() *redis.Client {
	return f.redisClient
}

// HealthCheck verifies the backing store is reachable. Memory
// repositories are always healthy.
func (f *RepositoryFactory) HealthCheck(ctx context.Context) error {
	if f.redisClient != nil {
		return f.redisClient.Ping(ctx).Err()
	}
	return nil
}

// Close closes any underlying connections
func (f *RepositoryFactory) Close() error {
	if f.redisClient != nil {
		return f.redisClient.Close()
	}
	return nil
}
