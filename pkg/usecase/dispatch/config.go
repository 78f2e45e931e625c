package dispatch

import (
	"os"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"gopkg.in/yaml.v3"
)

// Config carries the dispatch policy tunables. Zero fields are filled from
// defaults when the coordinator is built, so a partial YAML file or a
// hand-built Config only overrides what it sets.
type Config struct {
	// MaxBatchSize is the whole-batch precondition; a larger batch is
	// rejected before any record is touched.
	MaxBatchSize int

	// CacheTTL is the lifetime of a stored result.
	CacheTTL time.Duration

	// ClaimLease bounds how long a crashed holder can pin a key.
	ClaimLease time.Duration

	// ClaimWait bounds how long a record waits for a peer's in-flight
	// computation before computing independently.
	ClaimWait time.Duration

	// ClaimPollInterval is the re-check cadence while waiting.
	ClaimPollInterval time.Duration

	// WorkerLimit caps concurrent record tasks, bounding external-call
	// fan-out.
	WorkerLimit int

	// ResolveTimeout bounds one instruction-interpretation call.
	ResolveTimeout time.Duration

	// ToolTimeout bounds one tool call.
	ToolTimeout time.Duration
}

// DefaultConfig returns the standard dispatch policy
func DefaultConfig() Config {
	return Config{
		MaxBatchSize:      50,
		CacheTTL:          time.Hour,
		ClaimLease:        2 * time.Minute,
		ClaimWait:         30 * time.Second,
		ClaimPollInterval: 500 * time.Millisecond,
		WorkerLimit:       8,
		ResolveTimeout:    15 * time.Second,
		ToolTimeout:       30 * time.Second,
	}
}

// withDefaults fills zero fields from DefaultConfig. A zero WorkerLimit
// would otherwise make the errgroup refuse every task.
func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.MaxBatchSize <= 0 {
		c.MaxBatchSize = def.MaxBatchSize
	}
	if c.CacheTTL <= 0 {
		c.CacheTTL = def.CacheTTL
	}
	if c.ClaimLease <= 0 {
		c.ClaimLease = def.ClaimLease
	}
	if c.ClaimWait <= 0 {
		c.ClaimWait = def.ClaimWait
	}
	if c.ClaimPollInterval <= 0 {
		c.ClaimPollInterval = def.ClaimPollInterval
	}
	if c.WorkerLimit <= 0 {
		c.WorkerLimit = def.WorkerLimit
	}
	if c.ResolveTimeout <= 0 {
		c.ResolveTimeout = def.ResolveTimeout
	}
	if c.ToolTimeout <= 0 {
		c.ToolTimeout = def.ToolTimeout
	}
	return c
}

// fileConfig is the YAML shape; durations are strings like "30s"
type fileConfig struct {
	MaxBatchSize      int    `yaml:"max_batch_size"`
	CacheTTL          string `yaml:"cache_ttl"`
	ClaimLease        string `yaml:"claim_lease"`
	ClaimWait         string `yaml:"claim_wait"`
	ClaimPollInterval string `yaml:"claim_poll_interval"`
	WorkerLimit       int    `yaml:"worker_limit"`
	ResolveTimeout    string `yaml:"resolve_timeout"`
	ToolTimeout       string `yaml:"tool_timeout"`
}

// LoadConfig overlays a YAML tunables file on the defaults
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, goerr.Wrap(err, "failed to read config file", goerr.V("path", path))
	}

	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return cfg, goerr.Wrap(err, "failed to parse config file", goerr.V("path", path))
	}

	if fc.MaxBatchSize > 0 {
		cfg.MaxBatchSize = fc.MaxBatchSize
	}
	if fc.WorkerLimit > 0 {
		cfg.WorkerLimit = fc.WorkerLimit
	}

	for _, d := range []struct {
		raw  string
		dst  *time.Duration
		name string
	}{
		{fc.CacheTTL, &cfg.CacheTTL, "cache_ttl"},
		{fc.ClaimLease, &cfg.ClaimLease, "claim_lease"},
		{fc.ClaimWait, &cfg.ClaimWait, "claim_wait"},
		{fc.ClaimPollInterval, &cfg.ClaimPollInterval, "claim_poll_interval"},
		{fc.ResolveTimeout, &cfg.ResolveTimeout, "resolve_timeout"},
		{fc.ToolTimeout, &cfg.ToolTimeout, "tool_timeout"},
	} {
		if d.raw == "" {
			continue
		}
		parsed, err := time.ParseDuration(d.raw)
		if err != nil {
			return cfg, goerr.Wrap(err, "invalid duration in config file",
				goerr.V("field", d.name), goerr.V("value", d.raw))
		}
		*d.dst = parsed
	}

	return cfg, nil
}
