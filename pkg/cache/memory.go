package cache

import (
	"context"
	"sync"
	"time"

	"github.com/m-mizutani/murmur/pkg/model"
)

// Memory is a process-local Store. A single mutex covers both entries and
// claims so the compare-and-install in TryClaim is atomic.
type Memory struct {
	mu      sync.Mutex
	entries map[model.CacheKey]*model.CacheEntry
	claims  map[model.CacheKey]*memoryClaim
	now     func() time.Time
}

type memoryClaim struct {
	holder    string
	expiresAt time.Time
}

// MemoryOption is a functional option for Memory
type MemoryOption func(*Memory)

// WithClock overrides the time source, used by TTL tests
func WithClock(now func() time.Time) MemoryOption {
	return func(m *Memory) {
		m.now = now
	}
}

// NewMemory creates an empty in-process store
func NewMemory(opts ...MemoryOption) *Memory {
	m := &Memory{
		entries: make(map[model.CacheKey]*model.CacheEntry),
		claims:  make(map[model.CacheKey]*memoryClaim),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Memory) Get(ctx context.Context, key model.CacheKey) (*model.CacheEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.liveEntry(key), nil
}

// liveEntry returns the entry for key, deleting it if expired. Caller must
// hold the lock.
func (m *Memory) liveEntry(key model.CacheKey) *model.CacheEntry {
	entry, ok := m.entries[key]
	if !ok {
		return nil
	}
	if entry.Expired(m.now()) {
		delete(m.entries, key)
		return nil
	}
	return entry
}

func (m *Memory) TryClaim(ctx context.Context, key model.CacheKey, holder string, lease time.Duration) (*ClaimResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if entry := m.liveEntry(key); entry != nil {
		return &ClaimResult{Status: ClaimEntryExists, Entry: entry}, nil
	}

	now := m.now()
	if claim, ok := m.claims[key]; ok && claim.expiresAt.After(now) {
		return &ClaimResult{Status: ClaimHeld}, nil
	}

	m.claims[key] = &memoryClaim{
		holder:    holder,
		expiresAt: now.Add(lease),
	}
	return &ClaimResult{Status: ClaimGranted}, nil
}

func (m *Memory) Put(ctx context.Context, entry *model.CacheEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.entries[entry.Key] = entry
	delete(m.claims, entry.Key)
	return nil
}

func (m *Memory) Release(ctx context.Context, key model.CacheKey) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.claims, key)
	return nil
}

func (m *Memory) Evict(ctx context.Context, key model.CacheKey) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.entries, key)
	return nil
}

func (m *Memory) GetByFeedbackID(ctx context.Context, id model.FeedbackID) (*model.CacheEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for key, entry := range m.entries {
		if entry.FeedbackID == id {
			if live := m.liveEntry(key); live != nil {
				return live, nil
			}
		}
	}
	return nil, nil
}
