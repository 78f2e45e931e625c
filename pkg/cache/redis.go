package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/murmur/pkg/model"
	"github.com/redis/go-redis/v9"
)

const (
	redisEntryPrefix    = "murmur:cache:"
	redisClaimPrefix    = "murmur:claim:"
	redisFeedbackPrefix = "murmur:feedback:"
)

// Redis is a remote Store backend. SET NX with a lease TTL is the
// conditional-write primitive behind TryClaim; entry keys also carry the
// cache TTL natively so the backend sweeps expired entries, but reads still
// check the embedded expiry themselves.
type Redis struct {
	client *redis.Client
}

// NewRedis creates a Redis-backed store and verifies connectivity
func NewRedis(ctx context.Context, addr, password string, db int) (*Redis, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, goerr.Wrap(err, "failed to ping redis", goerr.V("addr", addr))
	}

	return &Redis{client: client}, nil
}

// Close releases the underlying client
func (r *Redis) Close() error {
	return r.client.Close()
}

func (r *Redis) Get(ctx context.Context, key model.CacheKey) (*model.CacheEntry, error) {
	data, err := r.client.Get(ctx, redisEntryPrefix+string(key)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, goerr.Wrap(err, "failed to get cache entry", goerr.V("key", key))
	}

	var entry model.CacheEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, goerr.Wrap(err, "failed to unmarshal cache entry", goerr.V("key", key))
	}

	if entry.Expired(time.Now()) {
		return nil, nil
	}
	return &entry, nil
}

// tryClaimScript is the single-flight gate as one atomic server-side step:
// return the live entry if one exists, otherwise install the claim with
// SET NX PX. Splitting this into separate round-trips would open a window
// where a peer's Put lands between the entry check and the claim install.
var tryClaimScript = redis.NewScript(`
local entry = redis.call("GET", KEYS[1])
if entry then
	return {"entry", entry}
end
if redis.call("SET", KEYS[2], ARGV[1], "NX", "PX", ARGV[2]) then
	return {"granted"}
end
return {"held"}
`)

func (r *Redis) TryClaim(ctx context.Context, key model.CacheKey, holder string, lease time.Duration) (*ClaimResult, error) {
	// One retry: the script may surface an entry that is past its embedded
	// expiry but not yet swept by the native TTL; it is deleted and the
	// claim attempted again.
	for attempt := 0; attempt < 2; attempt++ {
		res, err := tryClaimScript.Run(ctx, r.client,
			[]string{redisEntryPrefix + string(key), redisClaimPrefix + string(key)},
			holder, lease.Milliseconds(),
		).Slice()
		if err != nil {
			return nil, goerr.Wrap(err, "failed to run claim script", goerr.V("key", key))
		}
		if len(res) == 0 {
			return nil, goerr.New("empty claim script result", goerr.V("key", key))
		}

		verdict, _ := res[0].(string)
		switch verdict {
		case "granted":
			return &ClaimResult{Status: ClaimGranted}, nil
		case "held":
			return &ClaimResult{Status: ClaimHeld}, nil
		}

		if len(res) < 2 {
			return nil, goerr.New("malformed claim script result", goerr.V("key", key))
		}
		raw, _ := res[1].(string)
		var entry model.CacheEntry
		if err := json.Unmarshal([]byte(raw), &entry); err != nil {
			return nil, goerr.Wrap(err, "failed to unmarshal cache entry", goerr.V("key", key))
		}
		if !entry.Expired(time.Now()) {
			return &ClaimResult{Status: ClaimEntryExists, Entry: &entry}, nil
		}

		if err := r.client.Del(ctx, redisEntryPrefix+string(key)).Err(); err != nil {
			return nil, goerr.Wrap(err, "failed to delete expired cache entry", goerr.V("key", key))
		}
	}

	return &ClaimResult{Status: ClaimHeld}, nil
}

func (r *Redis) Put(ctx context.Context, entry *model.CacheEntry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return goerr.Wrap(err, "failed to marshal cache entry", goerr.V("key", entry.Key))
	}

	ttl := time.Until(entry.ExpiresAt)
	if ttl <= 0 {
		ttl = time.Second
	}

	pipe := r.client.TxPipeline()
	pipe.Set(ctx, redisEntryPrefix+string(entry.Key), data, ttl)
	pipe.Set(ctx, redisFeedbackPrefix+string(entry.FeedbackID), string(entry.Key), ttl)
	pipe.Del(ctx, redisClaimPrefix+string(entry.Key))
	if _, err := pipe.Exec(ctx); err != nil {
		return goerr.Wrap(err, "failed to put cache entry", goerr.V("key", entry.Key))
	}

	return nil
}

func (r *Redis) Release(ctx context.Context, key model.CacheKey) error {
	if err := r.client.Del(ctx, redisClaimPrefix+string(key)).Err(); err != nil {
		return goerr.Wrap(err, "failed to release claim", goerr.V("key", key))
	}
	return nil
}

func (r *Redis) Evict(ctx context.Context, key model.CacheKey) error {
	if err := r.client.Del(ctx, redisEntryPrefix+string(key)).Err(); err != nil {
		return goerr.Wrap(err, "failed to evict cache entry", goerr.V("key", key))
	}
	return nil
}

func (r *Redis) GetByFeedbackID(ctx context.Context, id model.FeedbackID) (*model.CacheEntry, error) {
	keyStr, err := r.client.Get(ctx, redisFeedbackPrefix+string(id)).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, goerr.Wrap(err, "failed to resolve feedback index", goerr.V("feedback_id", id))
	}

	return r.Get(ctx, model.CacheKey(keyStr))
}
