package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	csvio "github.com/iho/payengine/internal/adapter/csv"
	postgresRepo "github.com/iho/payengine/internal/adapter/repository/postgres"
	"github.com/iho/payengine/internal/domain"
	"github.com/iho/payengine/internal/infrastructure/config"
	"github.com/iho/payengine/internal/infrastructure/metrics"
	"github.com/iho/payengine/internal/usecase"
)

// engineFlags mirror the engine settings of config.Config. Only flags set
// on the command line override the environment.
type engineFlags struct {
	engine                    string
	maxAccounts               int
	maxDisputableTransactions int
	maxProcessedIDs           int
	memoryLimitMB             int
	workers                   int
	queueSize                 int
	boundedWorkers            bool
}

func (f *engineFlags) register(cmd *cobra.Command) {
	fs := cmd.Flags()
	fs.StringVarP(&f.engine, "engine", "e", "sequential", "Engine variant: sequential, bounded or sharded")
	fs.IntVar(&f.maxAccounts, "max-accounts", usecase.DefaultMaxAccounts, "Resident accounts for bounded engines")
	fs.IntVar(&f.maxDisputableTransactions, "max-disputable-transactions", usecase.DefaultMaxDisputableTransactions, "Disputable transactions kept by bounded engines")
	fs.IntVar(&f.maxProcessedIDs, "max-processed-ids", usecase.DefaultMaxProcessedIDs, "Transaction ids remembered by bounded engines")
	fs.IntVar(&f.memoryLimitMB, "memory-limit-mb", 0, "Derive bounded capacities from a memory budget in MB")
	fs.IntVarP(&f.workers, "workers", "w", 0, "Sharded worker count (0 = one per CPU)")
	fs.IntVar(&f.queueSize, "queue-size", usecase.DefaultQueueSize, "Per-worker queue capacity")
	fs.BoolVar(&f.boundedWorkers, "bounded-workers", false, "Give each sharded worker a bounded engine")
}

func (f *engineFlags) apply(cmd *cobra.Command, cfg *config.Config) {
	fs := cmd.Flags()
	if fs.Changed("engine") {
		cfg.Engine = f.engine
	}
	if fs.Changed("max-accounts") {
		cfg.MaxAccounts = f.maxAccounts
	}
	if fs.Changed("max-disputable-transactions") {
		cfg.MaxDisputableTransactions = f.maxDisputableTransactions
	}
	if fs.Changed("max-processed-ids") {
		cfg.MaxProcessedIDs = f.maxProcessedIDs
	}
	if fs.Changed("memory-limit-mb") {
		cfg.MemoryLimitMB = f.memoryLimitMB
	}
	if fs.Changed("workers") {
		cfg.Workers = f.workers
	}
	if fs.Changed("queue-size") {
		cfg.QueueSize = f.queueSize
	}
	if fs.Changed("bounded-workers") {
		cfg.BoundedWorkers = f.boundedWorkers
	}
}

// engineConfig loads the environment, applies flag overrides and validates
// the resulting engine settings.
func (f *engineFlags) engineConfig(cmd *cobra.Command, root *rootOptions) (*config.Config, usecase.EngineConfig, zerolog.Logger, error) {
	cfg, log, err := loadConfig(root)
	if err != nil {
		return nil, usecase.EngineConfig{}, log, err
	}
	f.apply(cmd, cfg)

	engineCfg, err := cfg.EngineConfig()
	if err != nil {
		return nil, usecase.EngineConfig{}, log, err
	}
	if err := engineCfg.Validate(); err != nil {
		return nil, usecase.EngineConfig{}, log, fmt.Errorf("invalid engine configuration: %w", err)
	}
	return cfg, engineCfg, log, nil
}

type processOptions struct {
	engine engineFlags
	output string
	export bool
}

func newProcessCmd(root *rootOptions) *cobra.Command {
	opts := &processOptions{}

	cmd := &cobra.Command{
		Use:   "process <transactions.csv>",
		Short: "Process a transactions file and print the final account balances",
		Long: `Reads type,client,tx,amount records from a CSV file ("-" for stdin) and writes
client,available,held,total,locked rows to stdout or --output.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runProcess(cmd, root, opts, args[0])
		},
	}

	opts.engine.register(cmd)
	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "Output CSV file path (defaults to stdout)")
	cmd.Flags().BoolVar(&opts.export, "export", false, "Export the final snapshot to PostgreSQL (requires DATABASE_URL)")

	return cmd
}

func runProcess(cmd *cobra.Command, root *rootOptions, opts *processOptions, inputPath string) error {
	cfg, engineCfg, log, err := opts.engine.engineConfig(cmd, root)
	if err != nil {
		return err
	}
	if opts.export && cfg.DatabaseURL == "" {
		return errors.New("--export requires DATABASE_URL")
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	input, err := openInput(inputPath, cmd.InOrStdin())
	if err != nil {
		return err
	}
	defer input.Close()

	m := metrics.NewWithRegisterer(prometheus.NewRegistry())
	src := csvio.NewReader(bufio.NewReader(input))

	accounts, stats, err := processRecords(ctx, cfg, engineCfg, src, log, m)
	if err != nil {
		return err
	}

	log.Info().
		Str("engine", string(engineCfg.Variant)).
		Int("read", stats.Read).
		Int("applied", stats.Applied).
		Int("rejected", stats.Rejected).
		Int("malformed", stats.Malformed).
		Int("accounts", len(accounts)).
		Msg("processing completed")

	if err := writeOutput(opts.output, cmd.OutOrStdout(), accounts); err != nil {
		return err
	}

	if !opts.export {
		return nil
	}

	pool, err := openPool(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer pool.Close()

	sink := postgresRepo.NewSnapshotRepository(pool,
		postgresRepo.WithSnapshotLogger(log),
		postgresRepo.WithSnapshotMetrics(m),
	)
	_, err = exportSnapshot(ctx, sink, postgresRepo.NewULIDGenerator(), accounts)
	return err
}

// processRecords drains src through the engine selected by engineCfg and
// returns the sorted final snapshot.
func processRecords(
	ctx context.Context,
	cfg *config.Config,
	engineCfg usecase.EngineConfig,
	src usecase.RecordSource,
	log zerolog.Logger,
	m *metrics.Metrics,
) ([]domain.Account, usecase.RunStats, error) {
	if engineCfg.Variant != usecase.VariantSharded {
		engine, err := newProcessor(engineCfg, log, m)
		if err != nil {
			return nil, usecase.RunStats{}, err
		}
		pipeline := usecase.NewPipeline(engine,
			usecase.WithPipelineLogger(log),
			usecase.WithPipelineMetrics(m),
		)
		stats, err := pipeline.Run(ctx, src)
		if err != nil {
			return nil, stats, err
		}
		return engine.Snapshot(), stats, nil
	}

	index, closeIndex, err := newTxIndex(ctx, cfg, log)
	if err != nil {
		return nil, usecase.RunStats{}, err
	}
	defer closeIndex()

	scheduler, err := newScheduler(engineCfg, index, cfg.RedisTimeout, log, m)
	if err != nil {
		return nil, usecase.RunStats{}, err
	}
	stats, err := scheduler.Run(ctx, src)
	if err != nil {
		return nil, stats, err
	}
	accounts, err := scheduler.Snapshot()
	return accounts, stats, err
}

// exportSnapshot stores accounts under a fresh run id and returns the id.
func exportSnapshot(ctx context.Context, sink usecase.SnapshotSink, ids usecase.IDGenerator, accounts []domain.Account) (string, error) {
	runID := ids.Generate()
	if err := sink.Save(ctx, runID, accounts); err != nil {
		return "", fmt.Errorf("export snapshot %s: %w", runID, err)
	}
	return runID, nil
}

func openInput(path string, stdin io.Reader) (io.ReadCloser, error) {
	if path == "-" {
		return io.NopCloser(stdin), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open input: %w", err)
	}
	return f, nil
}

func writeOutput(path string, stdout io.Writer, accounts []domain.Account) error {
	if path == "" {
		w := bufio.NewWriter(stdout)
		if err := csvio.WriteAccounts(w, accounts); err != nil {
			return err
		}
		return w.Flush()
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create output: %w", err)
	}
	w := bufio.NewWriter(f)
	if err := csvio.WriteAccounts(w, accounts); err != nil {
		f.Close()
		return err
	}
	if err := w.Flush(); err != nil {
		f.Close()
		return fmt.Errorf("flush output: %w", err)
	}
	return f.Close()
}
