package circuitbreaker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	errBackendDown = errors.New("backend down")
	errNotFound    = errors.New("not found")
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestBreaker(cfg Config) (*CircuitBreaker, *testClock) {
	clock := &testClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	cb := New("backend", cfg)
	cb.now = clock.Now
	cb.stateChangeTime = clock.Now()
	return cb, clock
}

func fail(err error) func(context.Context) error {
	return func(context.Context) error { return err }
}

func succeed(context.Context) error { return nil }

func TestCircuitBreaker_ReturnsErrorsUnchanged(t *testing.T) {
	cb, _ := newTestBreaker(DefaultConfig())

	err := cb.Execute(context.Background(), fail(errBackendDown))
	assert.Same(t, errBackendDown, err)
	assert.Equal(t, StateClosed, cb.State())
	assert.Equal(t, 1, cb.Stats().FailureCount)
}

func TestCircuitBreaker_OpensAfterThreshold(t *testing.T) {
	cb, _ := newTestBreaker(Config{FailureThreshold: 2, Timeout: time.Minute})
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_ = cb.Execute(ctx, fail(errBackendDown))
	}
	require.Equal(t, StateOpen, cb.State())

	called := false
	err := cb.Execute(ctx, func(context.Context) error {
		called = true
		return nil
	})
	assert.ErrorIs(t, err, ErrOpen)
	assert.False(t, called)
}

func TestCircuitBreaker_HalfOpenRecovery(t *testing.T) {
	cb, clock := newTestBreaker(Config{FailureThreshold: 1, SuccessThreshold: 2, Timeout: time.Minute, MaxRequestsHalfOpen: 3})
	ctx := context.Background()

	_ = cb.Execute(ctx, fail(errBackendDown))
	require.Equal(t, StateOpen, cb.State())

	clock.Advance(time.Minute)
	require.NoError(t, cb.Execute(ctx, succeed))
	assert.Equal(t, StateHalfOpen, cb.State())

	require.NoError(t, cb.Execute(ctx, succeed))
	assert.Equal(t, StateClosed, cb.State())
}

func TestCircuitBreaker_HalfOpenFailureReopens(t *testing.T) {
	cb, clock := newTestBreaker(Config{FailureThreshold: 1, Timeout: time.Minute})
	ctx := context.Background()

	_ = cb.Execute(ctx, fail(errBackendDown))
	clock.Advance(time.Minute)

	_ = cb.Execute(ctx, fail(errBackendDown))
	assert.Equal(t, StateOpen, cb.State())
	assert.ErrorIs(t, cb.Execute(ctx, succeed), ErrOpen)
}

func TestCircuitBreaker_HalfOpenLimitsRequests(t *testing.T) {
	cb, clock := newTestBreaker(Config{FailureThreshold: 1, SuccessThreshold: 5, Timeout: time.Minute, MaxRequestsHalfOpen: 2})
	ctx := context.Background()

	_ = cb.Execute(ctx, fail(errBackendDown))
	clock.Advance(time.Minute)

	require.NoError(t, cb.Execute(ctx, succeed))
	require.NoError(t, cb.Execute(ctx, succeed))
	assert.ErrorIs(t, cb.Execute(ctx, succeed), ErrOpen)
}

func TestCircuitBreaker_IsFailureFiltersErrors(t *testing.T) {
	cb, _ := newTestBreaker(Config{
		FailureThreshold: 1,
		IsFailure:        func(err error) bool { return !errors.Is(err, errNotFound) },
	})
	ctx := context.Background()

	err := cb.Execute(ctx, fail(errNotFound))
	assert.ErrorIs(t, err, errNotFound)
	assert.Equal(t, StateClosed, cb.State())

	_ = cb.Execute(ctx, fail(errBackendDown))
	assert.Equal(t, StateOpen, cb.State())
}

func TestCircuitBreaker_CallerCancellationIsNotAFailure(t *testing.T) {
	cb, _ := newTestBreaker(Config{FailureThreshold: 1})
	ctx, cancel := context.WithCancel(context.Background())

	err := cb.Execute(ctx, func(ctx context.Context) error {
		cancel()
		return ctx.Err()
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, StateClosed, cb.State())

	assert.ErrorIs(t, cb.Execute(ctx, succeed), context.Canceled)
}

func TestExecuteWithResult(t *testing.T) {
	cb, _ := newTestBreaker(DefaultConfig())

	v, err := ExecuteWithResult(context.Background(), cb, func(context.Context) (int, error) {
		return 42, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 42, v)
}

func TestCircuitBreaker_StateChangeCallbackAndReset(t *testing.T) {
	cb, _ := newTestBreaker(Config{FailureThreshold: 1})
	changes := make(chan State, 4)
	cb.OnStateChange(func(name string, _, to State) {
		assert.Equal(t, "backend", name)
		changes <- to
	})

	_ = cb.Execute(context.Background(), fail(errBackendDown))
	assert.Equal(t, StateOpen, <-changes)

	cb.Reset()
	assert.Equal(t, StateClosed, <-changes)
	assert.Equal(t, StateClosed, cb.State())
}

func TestCircuitBreaker_ConcurrentUse(t *testing.T) {
	cb, _ := newTestBreaker(Config{FailureThreshold: 1000})
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if i%2 == 0 {
				_ = cb.Execute(context.Background(), succeed)
				return
			}
			_ = cb.Execute(context.Background(), fail(errBackendDown))
		}(i)
	}
	wg.Wait()
	assert.Equal(t, StateClosed, cb.State())
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "closed", StateClosed.String())
	assert.Equal(t, "open", StateOpen.String())
	assert.Equal(t, "half-open", StateHalfOpen.String())
	assert.Equal(t, "unknown", State(9).String())
}
