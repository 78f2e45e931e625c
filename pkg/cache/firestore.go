package cache

import (
	"context"
	"encoding/json"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/murmur/pkg/model"
	"github.com/m-mizutani/murmur/pkg/utils/logging"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const (
	entryCollection = "feedback_cache"
	claimCollection = "feedback_cache_claims"
)

// Firestore is the durable Store backend. TryClaim runs as a Firestore
// transaction, which provides the conditional-write atomicity the
// single-flight gate requires. The `expiry` field doubles as the input to
// a backend-native TTL policy; native deletion is an optimization only and
// every read still checks expiry itself.
type Firestore struct {
	client *firestore.Client
}

// firestoreEntry is the persisted cache record shape. The assembled result
// is carried as a JSON string, with feedback_id indexed for audit lookup.
type firestoreEntry struct {
	CacheKey     string    `firestore:"cache_key"`
	FeedbackID   string    `firestore:"feedback_id"`
	CachedResult string    `firestore:"cached_result"`
	LastUpdated  time.Time `firestore:"last_updated"`
	Expiry       int64     `firestore:"expiry"`
}

// firestoreClaim marks an in-flight computation for a key
type firestoreClaim struct {
	Holder    string    `firestore:"holder"`
	ExpiresAt time.Time `firestore:"expires_at"`
}

// cachedPayload is the JSON carried in firestoreEntry.CachedResult
type cachedPayload struct {
	Plan        model.ToolPlan        `json:"plan"`
	ToolResults []model.ToolResult    `json:"tool_results"`
	Result      *model.AnalysisResult `json:"result"`
}

// NewFirestore creates a Firestore-backed store
func NewFirestore(ctx context.Context, projectID, databaseID string) (*Firestore, error) {
	client, err := firestore.NewClientWithDatabase(ctx, projectID, databaseID)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create firestore client")
	}

	return &Firestore{client: client}, nil
}

// Close releases the underlying client
func (f *Firestore) Close() error {
	return f.client.Close()
}

func (f *Firestore) entryRef(key model.CacheKey) *firestore.DocumentRef {
	return f.client.Collection(entryCollection).Doc(string(key))
}

func (f *Firestore) claimRef(key model.CacheKey) *firestore.DocumentRef {
	return f.client.Collection(claimCollection).Doc(string(key))
}

func (f *Firestore) Get(ctx context.Context, key model.CacheKey) (*model.CacheEntry, error) {
	snap, err := f.entryRef(key).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, nil
		}
		return nil, goerr.Wrap(err, "failed to get cache entry", goerr.V("key", key))
	}

	entry, err := decodeEntry(snap)
	if err != nil {
		return nil, err
	}

	if entry.Expired(time.Now()) {
		// Logical deletion on read; the native TTL sweep catches the rest
		if _, err := f.entryRef(key).Delete(ctx); err != nil {
			logging.From(ctx).Warn("failed to delete expired cache entry",
				"key", key, "error", err)
		}
		return nil, nil
	}

	return entry, nil
}

func decodeEntry(snap *firestore.DocumentSnapshot) (*model.CacheEntry, error) {
	var doc firestoreEntry
	if err := snap.DataTo(&doc); err != nil {
		return nil, goerr.Wrap(err, "failed to decode cache entry", goerr.V("doc", snap.Ref.ID))
	}

	var payload cachedPayload
	if err := json.Unmarshal([]byte(doc.CachedResult), &payload); err != nil {
		return nil, goerr.Wrap(err, "failed to unmarshal cached result", goerr.V("key", doc.CacheKey))
	}

	return &model.CacheEntry{
		Key:         model.CacheKey(doc.CacheKey),
		FeedbackID:  model.FeedbackID(doc.FeedbackID),
		Plan:        payload.Plan,
		ToolResults: payload.ToolResults,
		Result:      payload.Result,
		CreatedAt:   doc.LastUpdated,
		ExpiresAt:   time.Unix(doc.Expiry, 0),
	}, nil
}

func (f *Firestore) TryClaim(ctx context.Context, key model.CacheKey, holder string, lease time.Duration) (*ClaimResult, error) {
	result := &ClaimResult{}

	err := f.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		entrySnap, err := tx.Get(f.entryRef(key))
		if err != nil && status.Code(err) != codes.NotFound {
			return goerr.Wrap(err, "failed to read cache entry in claim transaction")
		}
		if err == nil {
			entry, err := decodeEntry(entrySnap)
			if err != nil {
				return err
			}
			if !entry.Expired(time.Now()) {
				result.Status = ClaimEntryExists
				result.Entry = entry
				return nil
			}
		}

		claimSnap, err := tx.Get(f.claimRef(key))
		if err != nil && status.Code(err) != codes.NotFound {
			return goerr.Wrap(err, "failed to read claim in claim transaction")
		}
		if err == nil {
			var claim firestoreClaim
			if err := claimSnap.DataTo(&claim); err != nil {
				return goerr.Wrap(err, "failed to decode claim", goerr.V("key", key))
			}
			// An elapsed lease means the holder crashed; reclaim it
			if claim.ExpiresAt.After(time.Now()) {
				result.Status = ClaimHeld
				return nil
			}
		}

		result.Status = ClaimGranted
		return tx.Set(f.claimRef(key), &firestoreClaim{
			Holder:    holder,
			ExpiresAt: time.Now().Add(lease),
		})
	})
	if err != nil {
		return nil, goerr.Wrap(err, "claim transaction failed", goerr.V("key", key))
	}

	return result, nil
}

func (f *Firestore) Put(ctx context.Context, entry *model.CacheEntry) error {
	payload, err := json.Marshal(&cachedPayload{
		Plan:        entry.Plan,
		ToolResults: entry.ToolResults,
		Result:      entry.Result,
	})
	if err != nil {
		return goerr.Wrap(err, "failed to marshal cached result", goerr.V("key", entry.Key))
	}

	doc := &firestoreEntry{
		CacheKey:     string(entry.Key),
		FeedbackID:   string(entry.FeedbackID),
		CachedResult: string(payload),
		LastUpdated:  entry.CreatedAt,
		Expiry:       entry.ExpiresAt.Unix(),
	}

	err = f.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		if err := tx.Set(f.entryRef(entry.Key), doc); err != nil {
			return err
		}
		return tx.Delete(f.claimRef(entry.Key))
	})
	if err != nil {
		return goerr.Wrap(err, "failed to put cache entry", goerr.V("key", entry.Key))
	}

	return nil
}

func (f *Firestore) Release(ctx context.Context, key model.CacheKey) error {
	if _, err := f.claimRef(key).Delete(ctx); err != nil {
		return goerr.Wrap(err, "failed to release claim", goerr.V("key", key))
	}
	return nil
}

func (f *Firestore) Evict(ctx context.Context, key model.CacheKey) error {
	if _, err := f.entryRef(key).Delete(ctx); err != nil {
		return goerr.Wrap(err, "failed to evict cache entry", goerr.V("key", key))
	}
	return nil
}

func (f *Firestore) GetByFeedbackID(ctx context.Context, id model.FeedbackID) (*model.CacheEntry, error) {
	iter := f.client.Collection(entryCollection).
		Where("feedback_id", "==", string(id)).
		Limit(1).
		Documents(ctx)
	defer iter.Stop()

	snap, err := iter.Next()
	if err == iterator.Done {
		return nil, nil
	}
	if err != nil {
		return nil, goerr.Wrap(err, "failed to query cache by feedback_id", goerr.V("feedback_id", id))
	}

	entry, err := decodeEntry(snap)
	if err != nil {
		return nil, err
	}
	if entry.Expired(time.Now()) {
		return nil, nil
	}
	return entry, nil
}
