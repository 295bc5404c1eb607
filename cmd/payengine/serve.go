package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	httpAdapter "github.com/iho/payengine/internal/adapter/http"
	"github.com/iho/payengine/internal/adapter/http/handler"
	postgresRepo "github.com/iho/payengine/internal/adapter/repository/postgres"
	redisRepo "github.com/iho/payengine/internal/adapter/repository/redis"
	"github.com/iho/payengine/internal/infrastructure/config"
	"github.com/iho/payengine/internal/infrastructure/metrics"
	"github.com/iho/payengine/internal/infrastructure/postgres"
	"github.com/iho/payengine/internal/infrastructure/redis"
	"github.com/iho/payengine/internal/usecase"
)

type serveOptions struct {
	engine           engineFlags
	port             string
	exportOnShutdown bool
}

func newServeCmd(root *rootOptions) *cobra.Command {
	opts := &serveOptions{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP ingest service",
		Long: `Serves one long-lived engine. CSV bodies posted to /api/v1/transactions are
applied in arrival order; /api/v1/accounts returns the current balances.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, root, opts)
		},
	}

	opts.engine.register(cmd)
	cmd.Flags().StringVarP(&opts.port, "port", "p", "", "HTTP port; overrides HTTP_PORT")
	cmd.Flags().BoolVar(&opts.exportOnShutdown, "export-on-shutdown", false, "Export the final snapshot to PostgreSQL on shutdown (requires DATABASE_URL)")

	return cmd
}

func runServe(cmd *cobra.Command, root *rootOptions, opts *serveOptions) error {
	cfg, engineCfg, log, err := opts.engine.engineConfig(cmd, root)
	if err != nil {
		return err
	}
	if opts.port != "" {
		cfg.HTTPPort = opts.port
	}
	if opts.exportOnShutdown && cfg.DatabaseURL == "" {
		return errors.New("--export-on-shutdown requires DATABASE_URL")
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New()

	processor, err := newProcessor(engineCfg, log, m)
	if err != nil {
		return fmt.Errorf("serve: %w", err)
	}
	engine := usecase.NewConcurrentEngine(processor)

	pool, redisClient, err := connectOptional(ctx, cfg, log)
	if err != nil {
		return err
	}
	if pool != nil {
		defer pool.Close()
	}
	if redisClient != nil {
		defer closeRedis(redisClient, log)()
	}

	routerCfg := httpAdapter.RouterConfig{
		EngineHandler: handler.NewEngineHandler(engine, log, m, cfg.HTTPMaxBodyBytes),
		HealthHandler: handler.NewHealthHandler(pool, redisClient),
		Logger:        log,
		Metrics:       m,
		Gatherer:      prometheus.DefaultGatherer,
	}
	if redisClient != nil {
		routerCfg.IdempotencyStore = redisRepo.NewIdempotencyStore(redisClient)
		routerCfg.IdempotencyTTL = cfg.IdempotencyTTL
	}
	router := httpAdapter.NewRouter(routerCfg)

	server := &http.Server{
		Addr:         net.JoinHostPort("", cfg.HTTPPort),
		Handler:      router,
		ReadTimeout:  cfg.HTTPReadTimeout,
		WriteTimeout: cfg.HTTPWriteTimeout,
		IdleTimeout:  cfg.HTTPIdleTimeout,
	}

	if err := serve(ctx, server, cfg, log); err != nil {
		return err
	}

	if opts.exportOnShutdown {
		exportCtx, cancel := context.WithTimeout(context.Background(), cfg.DatabaseTimeout)
		defer cancel()

		sink := postgresRepo.NewSnapshotRepository(pool,
			postgresRepo.WithSnapshotLogger(log),
			postgresRepo.WithSnapshotMetrics(m),
		)
		if _, err := exportSnapshot(exportCtx, sink, postgresRepo.NewULIDGenerator(), engine.Snapshot()); err != nil {
			return err
		}
	}

	log.Info().Msg("server stopped")
	return nil
}

// serve runs server until ctx is cancelled, then shuts it down gracefully.
func serve(ctx context.Context, server *http.Server, cfg *config.Config, log zerolog.Logger) error {
	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", server.Addr).Msg("starting server")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTPShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	return nil
}

// connectOptional opens the Postgres pool and Redis client that are
// configured. Either may be nil.
func connectOptional(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*pgxpool.Pool, *goredis.Client, error) {
	var pool *pgxpool.Pool
	if cfg.DatabaseURL != "" {
		p, err := openPool(ctx, cfg, log)
		if err != nil {
			return nil, nil, err
		}
		pool = p
	}

	var client *goredis.Client
	if cfg.RedisURL != "" {
		c, err := redis.NewClient(ctx, redis.ClientConfig{URL: cfg.RedisURL, Timeout: cfg.RedisTimeout}, log)
		if err != nil {
			if pool != nil {
				pool.Close()
			}
			return nil, nil, err
		}
		client = c
	}

	return pool, client, nil
}

// openPool applies pending migrations and connects to DATABASE_URL.
func openPool(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*pgxpool.Pool, error) {
	if err := postgres.RunMigrations(cfg.DatabaseURL, cfg.MigrationsPath, log); err != nil {
		return nil, err
	}
	pool, err := postgres.NewPoolWithConfig(ctx, postgres.PoolConfig{
		DatabaseURL:    cfg.DatabaseURL,
		MaxConns:       cfg.DatabaseMaxConns,
		MinConns:       cfg.DatabaseMinConns,
		ConnectTimeout: cfg.DatabaseTimeout,
	})
	if err != nil {
		return nil, err
	}
	log.Info().Msg("connected to postgres")
	return pool, nil
}
