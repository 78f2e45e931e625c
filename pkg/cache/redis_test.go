package cache_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/m-mizutani/gt"
	"github.com/m-mizutani/murmur/pkg/cache"
	"github.com/m-mizutani/murmur/pkg/model"
)

func setupRedis(t *testing.T) *cache.Redis {
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("TEST_REDIS_ADDR must be set to run Redis tests")
	}

	store, err := cache.NewRedis(context.Background(), addr, os.Getenv("TEST_REDIS_PASSWORD"), 0)
	gt.NoError(t, err)
	t.Cleanup(func() {
		gt.NoError(t, store.Close())
	})

	return store
}

func TestRedisPutGet(t *testing.T) {
	store := setupRedis(t)
	ctx := context.Background()

	key := model.DeriveCacheKey("redis roundtrip "+time.Now().String(), "")
	entry := newEntry(key, "fb-rd-1", time.Minute)

	gt.NoError(t, store.Put(ctx, entry))
	t.Cleanup(func() { _ = store.Evict(ctx, key) })

	got, err := store.Get(ctx, key)
	gt.NoError(t, err)
	gt.V(t, got).NotNil()
	gt.Equal(t, got.Key, key)
	gt.Equal(t, got.FeedbackID, entry.FeedbackID)
}

func TestRedisTryClaim(t *testing.T) {
	store := setupRedis(t)
	ctx := context.Background()

	key := model.DeriveCacheKey("redis claim "+time.Now().String(), "")
	t.Cleanup(func() { _ = store.Release(ctx, key) })

	res, err := store.TryClaim(ctx, key, "holder-a", time.Minute)
	gt.NoError(t, err)
	gt.Equal(t, res.Status, cache.ClaimGranted)

	res, err = store.TryClaim(ctx, key, "holder-b", time.Minute)
	gt.NoError(t, err)
	gt.Equal(t, res.Status, cache.ClaimHeld)

	// Put stores the entry and clears the claim in one shot
	gt.NoError(t, store.Put(ctx, newEntry(key, "fb-rd-2", time.Minute)))
	t.Cleanup(func() { _ = store.Evict(ctx, key) })

	res, err = store.TryClaim(ctx, key, "holder-c", time.Minute)
	gt.NoError(t, err)
	gt.Equal(t, res.Status, cache.ClaimEntryExists)
}

func TestRedisTryClaimReturnsEntryOverFreshClaim(t *testing.T) {
	store := setupRedis(t)
	ctx := context.Background()

	// Once Put has landed, a claim attempt must see the entry, never win a
	// grant against the cleared claim key and recompute it.
	key := model.DeriveCacheKey("redis claim-vs-entry "+time.Now().String(), "")
	res, err := store.TryClaim(ctx, key, "holder-a", time.Minute)
	gt.NoError(t, err)
	gt.Equal(t, res.Status, cache.ClaimGranted)

	entry := newEntry(key, "fb-rd-3", time.Minute)
	gt.NoError(t, store.Put(ctx, entry))
	t.Cleanup(func() { _ = store.Evict(ctx, key) })

	for i := 0; i < 10; i++ {
		res, err = store.TryClaim(ctx, key, "holder-b", time.Minute)
		gt.NoError(t, err)
		gt.Equal(t, res.Status, cache.ClaimEntryExists)
		gt.V(t, res.Entry).NotNil()
		gt.Equal(t, res.Entry.FeedbackID, entry.FeedbackID)
	}
}

func TestRedisTryClaimReclaimsStaleEntry(t *testing.T) {
	store := setupRedis(t)
	ctx := context.Background()

	// An entry past its embedded expiry but not yet swept by the native TTL
	// counts as absent: the claim is granted, not blocked by the stale doc.
	key := model.DeriveCacheKey("redis stale entry "+time.Now().String(), "")
	gt.NoError(t, store.Put(ctx, newEntry(key, "fb-rd-4", -time.Minute)))
	t.Cleanup(func() { _ = store.Evict(ctx, key) })

	res, err := store.TryClaim(ctx, key, "holder-a", time.Minute)
	gt.NoError(t, err)
	gt.Equal(t, res.Status, cache.ClaimGranted)
	t.Cleanup(func() { _ = store.Release(ctx, key) })

	res, err = store.TryClaim(ctx, key, "holder-b", time.Minute)
	gt.NoError(t, err)
	gt.Equal(t, res.Status, cache.ClaimHeld)
}

func TestRedisGetByFeedbackID(t *testing.T) {
	store := setupRedis(t)
	ctx := context.Background()

	key := model.DeriveCacheKey("redis audit "+time.Now().String(), "")
	id := model.FeedbackID("fb-rd-audit-" + time.Now().Format("150405.000"))
	gt.NoError(t, store.Put(ctx, newEntry(key, id, time.Minute)))
	t.Cleanup(func() { _ = store.Evict(ctx, key) })

	got, err := store.GetByFeedbackID(ctx, id)
	gt.NoError(t, err)
	gt.V(t, got).NotNil()
	gt.Equal(t, got.Key, key)
}
