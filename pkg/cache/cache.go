package cache

import (
	"context"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/murmur/pkg/model"
)

var ErrEntryNotFound = goerr.New("cache entry not found")

// ClaimStatus is the outcome of a TryClaim attempt
type ClaimStatus string

const (
	// ClaimGranted: no entry and no live claim existed; the caller now
	// holds the claim and must Put or Release it.
	ClaimGranted ClaimStatus = "granted"
	// ClaimHeld: another holder's claim is in flight and its lease has not
	// elapsed.
	ClaimHeld ClaimStatus = "already_claimed"
	// ClaimEntryExists: a live entry already exists; it is returned in
	// ClaimResult.Entry and no claim is installed.
	ClaimEntryExists ClaimStatus = "entry_exists"
)

// ClaimResult is returned by TryClaim
type ClaimResult struct {
	Status ClaimStatus
	Entry  *model.CacheEntry
}

// Store is the cache persistence contract. It is the single shared mutable
// resource in the system: all concurrent access is funneled through it.
//
// Get treats an entry past its TTL as absent (lazy expiry) and returns
// (nil, nil) for a missing key. TryClaim is the single-flight gate and must
// be atomic: exactly one caller wins a race for a given key. Put stores an
// entry and clears any claim; it is idempotent. Release clears a claim
// without storing, making the key immediately claimable again. Evict is for
// maintenance flows only, never the dispatch path.
type Store interface {
	Get(ctx context.Context, key model.CacheKey) (*model.CacheEntry, error)
	TryClaim(ctx context.Context, key model.CacheKey, holder string, lease time.Duration) (*ClaimResult, error)
	Put(ctx context.Context, entry *model.CacheEntry) error
	Release(ctx context.Context, key model.CacheKey) error
	Evict(ctx context.Context, key model.CacheKey) error

	// GetByFeedbackID looks up an entry by its originating record via the
	// secondary index. Audit and debug flows only, never the hot path.
	GetByFeedbackID(ctx context.Context, id model.FeedbackID) (*model.CacheEntry, error)
}
