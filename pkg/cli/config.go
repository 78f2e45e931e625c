package cli

import (
	"context"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/murmur/pkg/adapter"
	"github.com/m-mizutani/murmur/pkg/cache"
	"github.com/m-mizutani/murmur/pkg/guardrail"
	"github.com/m-mizutani/murmur/pkg/telemetry"
	"github.com/m-mizutani/murmur/pkg/tool"
	"github.com/m-mizutani/murmur/pkg/usecase/dispatch"
	"github.com/urfave/cli/v3"
)

// config holds configuration values
type config struct {
	// Cache store
	cacheBackend  string
	project       string
	database      string
	redisAddr     string
	redisPassword string
	redisDB       int64

	// Gemini
	geminiProject  string
	geminiLocation string
	geminiModel    string

	// Guardrail
	policyDir string

	// Telemetry
	bigqueryDataset string
	bigqueryTable   string

	// Batch report archive
	bucket string

	// Dispatch tunables
	configPath string
}

// cacheFlags returns flags selecting and configuring the cache store
func cacheFlags(cfg *config) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "cache",
			Usage:       "Cache backend: memory, firestore or redis",
			Value:       "memory",
			Sources:     cli.EnvVars("MURMUR_CACHE_BACKEND"),
			Destination: &cfg.cacheBackend,
		},
		&cli.StringFlag{
			Name:        "project",
			Aliases:     []string{"p"},
			Usage:       "Google Cloud project ID",
			Sources:     cli.EnvVars("GOOGLE_CLOUD_PROJECT"),
			Destination: &cfg.project,
		},
		&cli.StringFlag{
			Name:        "database",
			Aliases:     []string{"d"},
			Usage:       "Firestore database ID",
			Value:       "(default)",
			Sources:     cli.EnvVars("FIRESTORE_DATABASE_ID"),
			Destination: &cfg.database,
		},
		&cli.StringFlag{
			Name:        "redis-addr",
			Usage:       "Redis address (host:port)",
			Sources:     cli.EnvVars("REDIS_ADDR"),
			Destination: &cfg.redisAddr,
		},
		&cli.StringFlag{
			Name:        "redis-password",
			Usage:       "Redis password",
			Sources:     cli.EnvVars("REDIS_PASSWORD"),
			Destination: &cfg.redisPassword,
		},
		&cli.IntFlag{
			Name:        "redis-db",
			Usage:       "Redis database number",
			Sources:     cli.EnvVars("REDIS_DB"),
			Destination: &cfg.redisDB,
		},
	}
}

// llmFlags returns flags for LLM-related configuration
func llmFlags(cfg *config) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "gemini-project",
			Usage:       "Google Cloud project ID for Gemini",
			Sources:     cli.EnvVars("GEMINI_PROJECT_ID"),
			Destination: &cfg.geminiProject,
		},
		&cli.StringFlag{
			Name:        "gemini-location",
			Usage:       "Google Cloud location for Gemini",
			Value:       "us-central1",
			Sources:     cli.EnvVars("GEMINI_LOCATION"),
			Destination: &cfg.geminiLocation,
		},
		&cli.StringFlag{
			Name:        "gemini-model",
			Usage:       "Generative model name",
			Sources:     cli.EnvVars("GEMINI_MODEL"),
			Destination: &cfg.geminiModel,
		},
	}
}

// dispatchFlags returns flags for the dispatch pipeline itself
func dispatchFlags(cfg *config) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "config",
			Aliases:     []string{"c"},
			Usage:       "Path to YAML tunables file",
			Sources:     cli.EnvVars("MURMUR_CONFIG"),
			Destination: &cfg.configPath,
		},
		&cli.StringFlag{
			Name:        "policy-dir",
			Usage:       "Directory of Rego guardrail policies (default: built-in policy)",
			Sources:     cli.EnvVars("MURMUR_POLICY_DIR"),
			Destination: &cfg.policyDir,
		},
		&cli.StringFlag{
			Name:        "bigquery-dataset",
			Usage:       "BigQuery dataset for telemetry (empty: log-only telemetry)",
			Sources:     cli.EnvVars("MURMUR_BIGQUERY_DATASET"),
			Destination: &cfg.bigqueryDataset,
		},
		&cli.StringFlag{
			Name:        "bigquery-table",
			Usage:       "BigQuery table for telemetry",
			Value:       "observations",
			Sources:     cli.EnvVars("MURMUR_BIGQUERY_TABLE"),
			Destination: &cfg.bigqueryTable,
		},
		&cli.StringFlag{
			Name:        "bucket",
			Usage:       "Cloud Storage bucket for batch report archive (empty: no archive)",
			Sources:     cli.EnvVars("MURMUR_REPORT_BUCKET"),
			Destination: &cfg.bucket,
		},
	}
}

// newStore creates the cache store selected by the cache flag
func (cfg *config) newStore(ctx context.Context) (cache.Store, error) {
	switch cfg.cacheBackend {
	case "memory", "":
		return cache.NewMemory(), nil

	case "firestore":
		if cfg.project == "" {
			return nil, goerr.New("project is required for the firestore cache")
		}
		if cfg.database == "" {
			return nil, goerr.New("database is required for the firestore cache")
		}
		store, err := cache.NewFirestore(ctx, cfg.project, cfg.database)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to create firestore cache")
		}
		return store, nil

	case "redis":
		if cfg.redisAddr == "" {
			return nil, goerr.New("redis-addr is required for the redis cache")
		}
		store, err := cache.NewRedis(ctx, cfg.redisAddr, cfg.redisPassword, int(cfg.redisDB))
		if err != nil {
			return nil, goerr.Wrap(err, "failed to create redis cache")
		}
		return store, nil

	default:
		return nil, goerr.New("unknown cache backend", goerr.V("backend", cfg.cacheBackend))
	}
}

// newGemini creates a new Gemini adapter instance
func (cfg *config) newGemini(ctx context.Context) (adapter.Gemini, error) {
	if cfg.geminiProject == "" {
		return nil, goerr.New("gemini-project is required")
	}
	if cfg.geminiLocation == "" {
		return nil, goerr.New("gemini-location is required")
	}

	var opts []adapter.GeminiOption
	if cfg.geminiModel != "" {
		opts = append(opts, adapter.WithGenerativeModel(cfg.geminiModel))
	}
	return adapter.NewGemini(ctx, cfg.geminiProject, cfg.geminiLocation, opts...)
}

// newSink creates the telemetry sink: BigQuery-backed when a dataset is
// configured, log-only otherwise. The returned closer flushes buffered rows.
func (cfg *config) newSink(ctx context.Context) (telemetry.Sink, func(), error) {
	if cfg.bigqueryDataset == "" {
		return telemetry.Logger{}, func() {}, nil
	}

	if cfg.project == "" {
		return nil, nil, goerr.New("project is required for bigquery telemetry")
	}
	bq, err := adapter.NewBigQuery(ctx, cfg.project)
	if err != nil {
		return nil, nil, goerr.Wrap(err, "failed to create bigquery client")
	}

	sink := telemetry.NewBigQuery(bq, cfg.bigqueryDataset, cfg.bigqueryTable)
	return sink, func() { sink.Close() }, nil
}

// newStorage creates the batch report archive, or nil when no bucket is set
func (cfg *config) newStorage(ctx context.Context) (adapter.Storage, error) {
	if cfg.bucket == "" {
		return nil, nil
	}
	store, err := adapter.NewStorage(ctx, cfg.bucket)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create storage")
	}
	return store, nil
}

// loadDispatchConfig returns the dispatch tunables, overlaid from the YAML
// file when one is given
func (cfg *config) loadDispatchConfig() (dispatch.Config, error) {
	if cfg.configPath == "" {
		return dispatch.DefaultConfig(), nil
	}
	return dispatch.LoadConfig(cfg.configPath)
}

// newCoordinator assembles the full dispatch pipeline. The returned closer
// releases the telemetry sink.
func (cfg *config) newCoordinator(ctx context.Context) (*dispatch.Coordinator, func(), error) {
	dispatchCfg, err := cfg.loadDispatchConfig()
	if err != nil {
		return nil, nil, err
	}

	store, err := cfg.newStore(ctx)
	if err != nil {
		return nil, nil, err
	}

	gemini, err := cfg.newGemini(ctx)
	if err != nil {
		return nil, nil, err
	}

	guard, err := guardrail.New(ctx, cfg.policyDir)
	if err != nil {
		return nil, nil, err
	}

	sink, closeSink, err := cfg.newSink(ctx)
	if err != nil {
		return nil, nil, err
	}

	registry := tool.NewAnalysis(gemini)
	resolver := dispatch.NewResolver(gemini, registry, dispatchCfg.ResolveTimeout, sink)
	dispatcher := dispatch.NewDispatcher(registry, dispatchCfg.ToolTimeout, sink)
	coordinator := dispatch.NewCoordinator(store, guard, resolver, dispatcher, sink, dispatchCfg)

	return coordinator, closeSink, nil
}
