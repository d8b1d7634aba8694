package monitoring

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

func (h *HealthChecker) AddRedisCheck(client redis.UniversalClient, timeout time.Duration) {
	h.AddCheck("redis", func(ctx context.Context) error {
		return client.Ping(ctx).Err()
	}, timeout)
}

type healthReporter interface {
	HealthCheck(ctx context.Context) error
}

// AddDependencyCheck registers anything exposing HealthCheck, e.g. the repository factory.
func (h *HealthChecker) AddDependencyCheck(name string, dep healthReporter, timeout time.Duration) {
	h.AddCheck(name, dep.HealthCheck, timeout)
}
