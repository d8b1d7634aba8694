package redis

import (
	"context"
	"os"
	"testing"
	"time"

	"interviewroom/internal/core/domain"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// Needs a live server: INTERVIEWROOM_TEST_REDIS=localhost:6379 go test ./...
func newTestStore(t *testing.T) (*KeyValueStore, string) {
	t.Helper()
	addr := os.Getenv("INTERVIEWROOM_TEST_REDIS")
	if addr == "" {
		t.Skip("INTERVIEWROOM_TEST_REDIS not set")
	}

	client, err := Connect(context.Background(), ClientOptions{Address: addr, PoolSize: 2}, zap.NewNop().Sugar())
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	return NewKeyValueStore(client), "interviewroom:test:" + uuid.NewString() + ":"
}

func TestKeyValueStore_RoundTrip(t *testing.T) {
	kv, prefix := newTestStore(t)
	ctx := context.Background()
	key := prefix + "token"
	t.Cleanup(func() { _ = kv.Delete(ctx, key) })

	_, err := kv.Get(ctx, key)
	assert.ErrorIs(t, err, domain.ErrKeyNotFound)

	require.NoError(t, kv.Set(ctx, key, "abc", time.Minute))
	v, err := kv.Get(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, "abc", v)

	require.NoError(t, kv.Delete(ctx, key))
	_, err = kv.Get(ctx, key)
	assert.ErrorIs(t, err, domain.ErrKeyNotFound)
}

func TestKeyValueStore_ExpiresServerSide(t *testing.T) {
	kv, prefix := newTestStore(t)
	ctx := context.Background()
	key := prefix + "short"

	require.NoError(t, kv.Set(ctx, key, "abc", 100*time.Millisecond))
	assert.Eventually(t, func() bool {
		_, err := kv.Get(ctx, key)
		return err == domain.ErrKeyNotFound
	}, 2*time.Second, 50*time.Millisecond)
}
