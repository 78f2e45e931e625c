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

func setupFirestore(t *testing.T) *cache.Firestore {
	projectID := os.Getenv("TEST_FIRESTORE_PROJECT_ID")
	databaseID := os.Getenv("TEST_FIRESTORE_DATABASE_ID")

	if projectID == "" || databaseID == "" {
		t.Skip("TEST_FIRESTORE_PROJECT_ID and TEST_FIRESTORE_DATABASE_ID must be set to run Firestore tests")
	}

	store, err := cache.NewFirestore(context.Background(), projectID, databaseID)
	gt.NoError(t, err)
	t.Cleanup(func() {
		gt.NoError(t, store.Close())
	})

	return store
}

func TestFirestorePutGet(t *testing.T) {
	store := setupFirestore(t)
	ctx := context.Background()

	key := model.DeriveCacheKey("firestore roundtrip "+time.Now().String(), "")
	entry := newEntry(key, "fb-fs-1", time.Minute)

	gt.NoError(t, store.Put(ctx, entry))
	t.Cleanup(func() { _ = store.Evict(ctx, key) })

	got, err := store.Get(ctx, key)
	gt.NoError(t, err)
	gt.V(t, got).NotNil()
	gt.Equal(t, got.Key, key)
	gt.Equal(t, got.FeedbackID, entry.FeedbackID)
	gt.A(t, got.ToolResults).Length(len(entry.ToolResults))
}

func TestFirestoreExpiredEntryAbsent(t *testing.T) {
	store := setupFirestore(t)
	ctx := context.Background()

	key := model.DeriveCacheKey("firestore expired "+time.Now().String(), "")
	entry := newEntry(key, "fb-fs-2", -time.Minute)

	gt.NoError(t, store.Put(ctx, entry))

	got, err := store.Get(ctx, key)
	gt.NoError(t, err)
	gt.Nil(t, got)
}

func TestFirestoreTryClaim(t *testing.T) {
	store := setupFirestore(t)
	ctx := context.Background()

	key := model.DeriveCacheKey("firestore claim "+time.Now().String(), "")
	t.Cleanup(func() { _ = store.Release(ctx, key) })

	res, err := store.TryClaim(ctx, key, "holder-a", time.Minute)
	gt.NoError(t, err)
	gt.Equal(t, res.Status, cache.ClaimGranted)

	res, err = store.TryClaim(ctx, key, "holder-b", time.Minute)
	gt.NoError(t, err)
	gt.Equal(t, res.Status, cache.ClaimHeld)

	gt.NoError(t, store.Release(ctx, key))

	res, err = store.TryClaim(ctx, key, "holder-b", time.Minute)
	gt.NoError(t, err)
	gt.Equal(t, res.Status, cache.ClaimGranted)
}

func TestFirestoreGetByFeedbackID(t *testing.T) {
	store := setupFirestore(t)
	ctx := context.Background()

	key := model.DeriveCacheKey("firestore audit "+time.Now().String(), "")
	id := model.FeedbackID("fb-fs-audit-" + time.Now().Format("150405.000"))
	gt.NoError(t, store.Put(ctx, newEntry(key, id, time.Minute)))
	t.Cleanup(func() { _ = store.Evict(ctx, key) })

	got, err := store.GetByFeedbackID(ctx, id)
	gt.NoError(t, err)
	gt.V(t, got).NotNil()
	gt.Equal(t, got.Key, key)
}
