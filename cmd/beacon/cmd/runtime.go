package cmd

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/instantcocoa/beacon/bridge"
	"github.com/instantcocoa/beacon/diag"
	"github.com/instantcocoa/beacon/pkg/cache"
	"github.com/instantcocoa/beacon/pkg/config"
	"github.com/instantcocoa/beacon/pkg/database"
	"github.com/instantcocoa/beacon/pkg/logging"
	"github.com/instantcocoa/beacon/queue"
)

// runtime holds the wired pipeline dependencies for one command run.
type runtime struct {
	cfg    *config.Config
	logger *slog.Logger

	db    *database.DB  // nil with the memory backend
	redis *cache.Client // nil when no redis URL is configured

	queueStore queue.Store
	letters    queue.DeadLetterStore
	sink       diag.Sink
}

// setup loads configuration and connects storage per the configured
// backend.
func setup(ctx context.Context) (*runtime, error) {
	cfg, err := config.Load("beacon")
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	level := cfg.LogLevel
	if verbose {
		level = "debug"
	}
	logger := logging.Setup(logging.Config{
		ServiceName: cfg.ServiceName,
		Version:     cfg.Version,
		Environment: cfg.Environment,
		Level:       level,
		Format:      cfg.LogFormat,
	})

	rt := &runtime{cfg: cfg, logger: logger}

	if cfg.UsePostgresStorage() {
		db, err := database.Connect(ctx, database.DefaultConfig(cfg.DatabaseDSN()))
		if err != nil {
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		rt.db = db.WithLogger(logger)
		rt.queueStore = queue.NewPostgresStore(db.DB)
		rt.letters = queue.NewPostgresDeadLetterStore(db.DB)
		rt.sink = diag.NewPostgresSink(db.DB, logger)
	} else {
		rt.queueStore = queue.NewMemoryStore()
		rt.letters = queue.NewMemoryDeadLetterStore()
		rt.sink = diag.NewSlogSink(logger)
	}

	if cfg.RedisURL != "" {
		client, err := cache.Connect(ctx, cfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		rt.redis = client.WithLogger(logger).WithKeyPrefix("beacon")
	}

	return rt, nil
}

func (rt *runtime) close() {
	if rt.redis != nil {
		rt.redis.Close()
	}
	if rt.db != nil {
		rt.db.Close()
	}
}

// exporter builds the protocol bridge from the loaded configuration.
func (rt *runtime) exporter() *bridge.Exporter {
	return bridge.New(bridge.Config{
		Resource: bridge.Resource{
			ServiceName:    rt.cfg.ServiceName,
			ServiceVersion: rt.cfg.Version,
			Environment:    rt.cfg.Environment,
			TenantID:       rt.cfg.TenantID,
		},
		TracesURL:  rt.cfg.SignalURL("traces"),
		MetricsURL: rt.cfg.SignalURL("metrics"),
		LogsURL:    rt.cfg.SignalURL("logs"),
		Timeout:    rt.cfg.HTTPTimeout,
		ParseMode:  string(rt.cfg.ParseMode),
	}, nil, rt.logger)
}

// workerConfig builds the worker settings, including the optional redis
// lease and counters.
func (rt *runtime) workerConfig(leaseToken string) queue.WorkerConfig {
	wcfg := queue.WorkerConfig{
		BatchSize:        rt.cfg.BatchSize,
		MaxAttempts:      rt.cfg.MaxAttempts,
		PollInterval:     rt.cfg.PollInterval,
		DeadLetterPolicy: rt.cfg.DeadLetterPolicy,
	}
	if rt.redis != nil {
		wcfg.Lease = cache.NewLease(rt.redis, "worker:lease", leaseToken, rt.cfg.PollInterval*2)
		wcfg.Counters = rt.redis
	}
	return wcfg
}
