package model

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"strings"
	"time"
)

// CacheKey identifies a (normalized text, normalized instructions) pair.
// It is a hex-encoded SHA-256 digest, stable across process restarts.
type CacheKey string

// DeriveCacheKey computes the cache identity for a feedback text and its
// optional instructions. Both fields are trimmed; a blank instructions
// value is treated the same as an absent one. Each field is length-prefixed
// before hashing so ("ab", "c") and ("a", "bc") never collide.
func DeriveCacheKey(text, instructions string) CacheKey {
	text = strings.TrimSpace(text)
	instructions = strings.TrimSpace(instructions)

	h := sha256.New()
	var buf [binary.MaxVarintLen64]byte

	n := binary.PutUvarint(buf[:], uint64(len(text)))
	h.Write(buf[:n])
	h.Write([]byte(text))

	n = binary.PutUvarint(buf[:], uint64(len(instructions)))
	h.Write(buf[:n])
	h.Write([]byte(instructions))

	return CacheKey(hex.EncodeToString(h.Sum(nil)))
}

// CacheEntry is a stored computation result. Never mutated after creation;
// an entry past ExpiresAt is treated as absent on read.
type CacheEntry struct {
	Key         CacheKey        `json:"cache_key"`
	FeedbackID  FeedbackID      `json:"feedback_id"`
	Plan        ToolPlan        `json:"plan"`
	ToolResults []ToolResult    `json:"tool_results"`
	Result      *AnalysisResult `json:"result"`
	CreatedAt   time.Time       `json:"created_at"`
	ExpiresAt   time.Time       `json:"expires_at"`
}

// Expired reports whether the entry has passed its TTL at the given time
func (e *CacheEntry) Expired(now time.Time) bool {
	return !e.ExpiresAt.After(now)
}
