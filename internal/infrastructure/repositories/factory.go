package repositories

import (
	"context"
	"errors"
	"fmt"
	"os"

	"interviewroom/internal/core/ports"
	"interviewroom/internal/infrastructure/backend"
	"interviewroom/internal/infrastructure/repositories/memory"
	redisrepo "interviewroom/internal/infrastructure/repositories/redis"
	"interviewroom/pkg/circuitbreaker"
	"interviewroom/pkg/config"
	"interviewroom/pkg/retry"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RepositoryFactory creates repositories with fallback support
type RepositoryFactory struct {
	cfg         *config.Config
	useRedis    bool
	redisClient *redis.Client
	logger      *zap.SugaredLogger

	backend *backend.MeetingClient
	cached  *CachedMeetingRepository
}

// NewRepositoryFactory connects to Redis when enabled. In development a failed connection
// falls back to memory stores; in production it is an error.
func NewRepositoryFactory(cfg *config.Config, logger *zap.SugaredLogger) (*RepositoryFactory, error) {
	factory := &RepositoryFactory{
		cfg:      cfg,
		useRedis: cfg.Redis.Enabled,
		logger:   logger,
	}

	if cfg.Redis.Enabled {
		client, err := redisrepo.Connect(context.Background(), redisrepo.ClientOptions{
			Address:  cfg.Redis.Address,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			PoolSize: cfg.Redis.PoolSize,
		}, logger)
		switch {
		case err != nil && cfg.IsProduction():
			return nil, err
		case err != nil:
			logger.Warnw("Failed to connect to Redis, falling back to memory stores",
				"error", err,
			)
			factory.useRedis = false
		default:
			factory.redisClient = client
		}
	}

	logger.Infow("Repository factory ready", "redis", factory.useRedis)
	return factory, nil
}

// RedisClient returns the shared client, nil when Redis is not in use.
func (f *RepositoryFactory) RedisClient() *redis.Client {
	return f.redisClient
}

// CreateKeyValueStore backs the session token store.
func (f *RepositoryFactory) CreateKeyValueStore() ports.KeyValueStore {
	if f.useRedis && f.redisClient != nil {
		return redisrepo.NewKeyValueStore(f.redisClient)
	}
	return memory.NewKeyValueStore()
}

// CreateMeetingRepository returns the backend client when a base URL is configured, otherwise
// an in-memory repository seeded from backend.seed_file. Either is wrapped in a TTL cache
// when cache.enabled is set.
func (f *RepositoryFactory) CreateMeetingRepository() (ports.MeetingRepository, error) {
	var repo ports.MeetingRepository

	if f.cfg.Backend.BaseURL != "" {
		retryCfg := retry.DefaultConfig()
		retryCfg.MaxAttempts = f.cfg.Backend.MaxRetries

		breakerCfg := circuitbreaker.DefaultConfig()
		breakerCfg.FailureThreshold = f.cfg.Backend.BreakerFailures
		breakerCfg.Timeout = f.cfg.Backend.BreakerTimeout

		client, err := backend.NewMeetingClient(backend.Options{
			BaseURL:  f.cfg.Backend.BaseURL,
			APIToken: f.cfg.Backend.APIToken,
			Timeout:  f.cfg.Backend.Timeout,
			Retry:    retryCfg,
			Breaker:  breakerCfg,
		}, f.logger)
		if err != nil {
			return nil, err
		}
		f.backend = client
		repo = client
	} else {
		mem, err := f.seededMemoryRepository()
		if err != nil {
			return nil, err
		}
		repo = mem
	}

	if f.cfg.Cache.Enabled {
		f.cached = NewCachedMeetingRepository(repo, f.cfg.Cache.TTL)
		return f.cached, nil
	}
	return repo, nil
}

func (f *RepositoryFactory) seededMemoryRepository() (*memory.MeetingRepository, error) {
	path := f.cfg.Backend.SeedFile
	if path == "" {
		return memory.NewMeetingRepository(), nil
	}

	meetings, err := memory.LoadSeedFile(path)
	if errors.Is(err, os.ErrNotExist) {
		f.logger.Warnw("Meeting seed file not found, starting with no meetings", "path", path)
		return memory.NewMeetingRepository(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("load meeting seed: %w", err)
	}

	f.logger.Infow("Serving meetings from seed file",
		"path", path,
		"meetings", len(meetings),
	)
	return memory.NewMeetingRepository(meetings...), nil
}

func (f *RepositoryFactory) Close() error {
	if f.cached != nil {
		f.cached.Close()
	}
	if f.redisClient != nil {
		return f.redisClient.Close()
	}
	return nil
}

// HealthCheck checks Redis and the meeting backend.
func (f *RepositoryFactory) HealthCheck(ctx context.Context) error {
	if f.useRedis && f.redisClient != nil {
		if err := f.redisClient.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("redis: %w", err)
		}
	}
	if f.backend != nil {
		return f.backend.HealthCheck(ctx)
	}
	return nil
}
