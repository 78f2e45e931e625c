package model_test

import (
	"testing"
	"time"

	"github.com/m-mizutani/gt"
	"github.com/m-mizutani/murmur/pkg/model"
)

func TestDeriveCacheKeyDeterministic(t *testing.T) {
	k1 := model.DeriveCacheKey("The delivery was late", "focus on sentiment")
	k2 := model.DeriveCacheKey("The delivery was late", "focus on sentiment")
	gt.Equal(t, k1, k2)
}

func TestDeriveCacheKeyVariesWithInput(t *testing.T) {
	base := model.DeriveCacheKey("The delivery was late", "focus on sentiment")
	gt.NotEqual(t, base, model.DeriveCacheKey("The delivery was early", "focus on sentiment"))
	gt.NotEqual(t, base, model.DeriveCacheKey("The delivery was late", "summarize only"))
	gt.NotEqual(t, base, model.DeriveCacheKey("The delivery was late", ""))
}

func TestDeriveCacheKeyNormalization(t *testing.T) {
	// Surrounding whitespace never changes identity
	gt.Equal(t,
		model.DeriveCacheKey("  some feedback \n", "\tdo the usual  "),
		model.DeriveCacheKey("some feedback", "do the usual"),
	)

	// Blank instructions are canonicalized to the absent marker
	gt.Equal(t,
		model.DeriveCacheKey("some feedback", "   "),
		model.DeriveCacheKey("some feedback", ""),
	)
}

func TestDeriveCacheKeyFieldBoundary(t *testing.T) {
	// Length prefixes prevent concatenation ambiguity
	gt.NotEqual(t,
		model.DeriveCacheKey("ab", "c"),
		model.DeriveCacheKey("a", "bc"),
	)
}

func TestCacheEntryExpired(t *testing.T) {
	now := time.Now()
	entry := &model.CacheEntry{
		Key:       model.DeriveCacheKey("text", ""),
		CreatedAt: now,
		ExpiresAt: now.Add(time.Second),
	}

	gt.False(t, entry.Expired(now))
	gt.False(t, entry.Expired(now.Add(500*time.Millisecond)))
	gt.True(t, entry.Expired(now.Add(2*time.Second)))
}
