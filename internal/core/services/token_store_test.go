package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"
)

var tokenNow = time.Date(2026, 5, 4, 8, 0, 0, 0, time.UTC)

func newTestTokenStore(t *testing.T) (*SessionTokenStore, *fakeKV, *fakeClock) {
	kv := newFakeKV()
	clock := newFakeClock(tokenNow)
	return NewSessionTokenStore(kv, clock, zaptest.NewLogger(t).Sugar()), kv, clock
}

func TestSessionTokenStore_ExpiresAfterTTL(t *testing.T) {
	store, kv, clock := newTestTokenStore(t)
	ctx := context.Background()

	store.Save(ctx, "abc", 60)

	clock.Advance(59 * time.Minute)
	token, ok := store.Get(ctx)
	require.True(t, ok)
	assert.Equal(t, "abc", token)
	assert.True(t, store.HasValid(ctx))

	clock.Advance(2 * time.Minute)
	_, ok = store.Get(ctx)
	assert.False(t, ok)
	assert.False(t, store.HasValid(ctx))
	assert.Zero(t, kv.Len(), "expired credential must be purged")
}

func TestSessionTokenStore_ExactExpiryInstantIsValid(t *testing.T) {
	store, _, clock := newTestTokenStore(t)
	ctx := context.Background()

	store.Save(ctx, "abc", 1)
	clock.Advance(time.Minute)
	assert.True(t, store.HasValid(ctx))

	clock.Advance(time.Nanosecond)
	assert.False(t, store.HasValid(ctx))
}

func TestSessionTokenStore_DefaultTTL(t *testing.T) {
	store, kv, _ := newTestTokenStore(t)
	ctx := context.Background()

	store.Save(ctx, "abc", 0)

	cred, ok := store.Credential(ctx)
	require.True(t, ok)
	assert.Equal(t, tokenNow.Add(60*time.Minute), cred.ExpiresAt)
	assert.Equal(t, tokenNow, cred.IssuedAt)
	assert.Equal(t, 60*time.Minute, kv.ttls[store.tokenKey()])
	assert.Equal(t, tokenNow.Add(time.Hour).Format(time.RFC3339Nano), kv.data[store.expiryKey()])
}

func TestSessionTokenStore_SaveOverwrites(t *testing.T) {
	store, _, _ := newTestTokenStore(t)
	ctx := context.Background()

	store.Save(ctx, "first", 60)
	store.Save(ctx, "second", 60)

	token, ok := store.Get(ctx)
	require.True(t, ok)
	assert.Equal(t, "second", token)
}

func TestSessionTokenStore_Clear(t *testing.T) {
	store, kv, _ := newTestTokenStore(t)
	ctx := context.Background()

	store.Save(ctx, "abc", 60)
	store.Clear(ctx)

	assert.False(t, store.HasValid(ctx))
	assert.Zero(t, kv.Len())
}

func TestSessionTokenStore_MalformedExpiryIsPurged(t *testing.T) {
	store, kv, _ := newTestTokenStore(t)
	ctx := context.Background()

	kv.data[store.tokenKey()] = "abc"
	kv.data[store.expiryKey()] = "tomorrow-ish"

	_, ok := store.Get(ctx)
	assert.False(t, ok)
	assert.Zero(t, kv.Len())
}

func TestSessionTokenStore_MissingExpiryIsPurged(t *testing.T) {
	store, kv, _ := newTestTokenStore(t)
	ctx := context.Background()

	kv.data[store.tokenKey()] = "abc"

	_, ok := store.Get(ctx)
	assert.False(t, ok)
	assert.Zero(t, kv.Len())
}

func TestSessionTokenStore_StorageErrorsDegradeToNoToken(t *testing.T) {
	store, kv, _ := newTestTokenStore(t)
	ctx := context.Background()

	store.Save(ctx, "abc", 60)
	kv.getErr = errors.New("connection refused")

	_, ok := store.Get(ctx)
	assert.False(t, ok)

	kv.getErr = nil
	assert.True(t, store.HasValid(ctx), "read errors must not purge the credential")
}

func TestSessionTokenStore_PartialWriteLeavesNothing(t *testing.T) {
	store, kv, _ := newTestTokenStore(t)
	ctx := context.Background()

	kv.setErr[expiryField] = errors.New("disk full")
	store.Save(ctx, "abc", 60)

	assert.False(t, store.HasValid(ctx))
	assert.Zero(t, kv.Len())
}

func TestSessionTokenStore_LogsExpiry(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	clock := newFakeClock(tokenNow)
	store := NewSessionTokenStore(newFakeKV(), clock, zap.New(core).Sugar())
	ctx := context.Background()

	store.Save(ctx, "abc", 1)
	clock.Advance(2 * time.Minute)
	assert.False(t, store.HasValid(ctx))

	expired := logs.FilterMessage("Session token expired").All()
	require.Len(t, expired, 1)
	assert.Equal(t, zap.InfoLevel, expired[0].Level)
}
