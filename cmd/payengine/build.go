package main

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/iho/payengine/internal/adapter/repository/lru"
	"github.com/iho/payengine/internal/adapter/repository/memory"
	redisRepo "github.com/iho/payengine/internal/adapter/repository/redis"
	"github.com/iho/payengine/internal/infrastructure/config"
	"github.com/iho/payengine/internal/infrastructure/metrics"
	"github.com/iho/payengine/internal/infrastructure/redis"
	"github.com/iho/payengine/internal/usecase"
)

// newEngine builds a single sequential engine, bounded when requested.
func newEngine(bounded bool, cfg usecase.EngineConfig, logger zerolog.Logger, m *metrics.Metrics) (*usecase.Engine, error) {
	if !bounded {
		return usecase.NewEngine(
			memory.NewAccountRepository(),
			memory.NewTransactionRepository(),
			memory.NewProcessedIDSet(),
			usecase.WithLogger(logger),
			usecase.WithMetrics(m),
		), nil
	}

	store, err := lru.NewStore(cfg.Limits(), lru.WithLogger(logger), lru.WithMetrics(m))
	if err != nil {
		return nil, err
	}
	return usecase.NewEngine(store.Accounts, store.Transactions, store.ProcessedIDs,
		usecase.WithLogger(logger),
		usecase.WithMetrics(m),
		usecase.WithLimits(store.Limits()),
	), nil
}

// newProcessor builds the engine for a non-sharded variant.
func newProcessor(cfg usecase.EngineConfig, logger zerolog.Logger, m *metrics.Metrics) (*usecase.Engine, error) {
	if cfg.Variant == usecase.VariantSharded {
		return nil, fmt.Errorf("engine %q needs a scheduler", cfg.Variant)
	}
	return newEngine(cfg.UsesBoundedStore(), cfg, logger, m)
}

// newScheduler starts a sharded scheduler whose workers each own an engine.
func newScheduler(cfg usecase.EngineConfig, index usecase.TxIndex, releaseTimeout time.Duration, logger zerolog.Logger, m *metrics.Metrics) (*usecase.Scheduler, error) {
	bounded := cfg.UsesBoundedStore()
	factory := func(worker int) (usecase.Processor, error) {
		workerLogger := logger.With().Int("worker", worker).Logger()
		return newEngine(bounded, cfg, workerLogger, m)
	}

	return usecase.NewScheduler(
		usecase.SchedulerConfig{Workers: cfg.Workers, QueueSize: cfg.QueueSize},
		factory,
		index,
		usecase.WithSchedulerLogger(logger),
		usecase.WithSchedulerMetrics(m),
		usecase.WithReleaseTimeout(releaseTimeout),
	)
}

// newTxIndex returns the Redis index when REDIS_URL is set and the
// in-process one otherwise. The returned close func is never nil.
func newTxIndex(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (usecase.TxIndex, func(), error) {
	if cfg.RedisURL == "" {
		return memory.NewTxIndex(), func() {}, nil
	}

	client, err := redis.NewClient(ctx, redis.ClientConfig{URL: cfg.RedisURL, Timeout: cfg.RedisTimeout}, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("connect redis: %w", err)
	}
	return redisRepo.NewTxIndex(client, cfg.RedisTxTTL), closeRedis(client, logger), nil
}

func closeRedis(client *goredis.Client, logger zerolog.Logger) func() {
	return func() {
		if err := client.Close(); err != nil {
			logger.Warn().Err(err).Msg("failed to close redis client")
		}
	}
}
