package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/iho/payengine/internal/domain"
	"github.com/iho/payengine/internal/infrastructure/metrics"
	"github.com/iho/payengine/internal/infrastructure/postgres/generated"
)

type snapshotPool interface {
	pgxPool
	generated.DBTX
}

// SnapshotRepository implements usecase.SnapshotSink. Each Save writes one
// export run and all of its account rows in a single transaction.
type SnapshotRepository struct {
	pool    snapshotPool
	tx      *TxManager
	retrier *Retrier
	policy  RetryPolicy
	metrics *metrics.Metrics
	logger  zerolog.Logger
	now     func() time.Time
}

// SnapshotOption configures a SnapshotRepository.
type SnapshotOption func(*SnapshotRepository)

// WithSnapshotMetrics records exported rows and failures.
func WithSnapshotMetrics(m *metrics.Metrics) SnapshotOption {
	return func(r *SnapshotRepository) { r.metrics = m }
}

// WithSnapshotLogger sets the logger.
func WithSnapshotLogger(logger zerolog.Logger) SnapshotOption {
	return func(r *SnapshotRepository) { r.logger = logger }
}

// WithRetryPolicy overrides DefaultRetryPolicy.
func WithRetryPolicy(policy RetryPolicy) SnapshotOption {
	return func(r *SnapshotRepository) { r.policy = policy }
}

// NewSnapshotRepository creates a new SnapshotRepository.
func NewSnapshotRepository(pool *pgxpool.Pool, opts ...SnapshotOption) *SnapshotRepository {
	return newSnapshotRepositoryWithPool(pool, opts...)
}

func newSnapshotRepositoryWithPool(pool snapshotPool, opts ...SnapshotOption) *SnapshotRepository {
	r := &SnapshotRepository{
		pool:   pool,
		tx:     newTxManagerWithPool(pool),
		policy: DefaultRetryPolicy(),
		logger: zerolog.Nop(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	r.retrier = NewRetrier(r.policy, func() {
		if r.metrics != nil {
			r.metrics.ExportRetries.Inc()
		}
	})
	return r
}

// Save stores accounts under runID.
func (r *SnapshotRepository) Save(ctx context.Context, runID string, accounts []domain.Account) error {
	rows := make([]generated.InsertAccountSnapshotsParams, 0, len(accounts))
	for _, acc := range accounts {
		rows = append(rows, generated.InsertAccountSnapshotsParams{
			RunID:     runID,
			Client:    int32(acc.Client),
			Available: decimalToNumeric(acc.Available),
			Held:      decimalToNumeric(acc.Held),
			Total:     decimalToNumeric(acc.Total),
			Locked:    acc.Locked,
		})
	}

	logger := r.logger.With().
		Str("run_id", runID).
		Int("accounts", len(rows)).
		Logger()

	var copied int64
	attempts, err := r.retrier.Retry(ctx, logger, func() error {
		return r.tx.WithTx(ctx, func(tx pgx.Tx) error {
			q := generated.New(tx)
			if err := q.CreateExportRun(ctx, generated.CreateExportRunParams{
				RunID:        runID,
				AccountCount: int32(len(rows)),
				CreatedAt:    timeToPgTimestamptz(r.now()),
			}); err != nil {
				return fmt.Errorf("create export run: %w", err)
			}

			if len(rows) == 0 {
				copied = 0
				return nil
			}

			n, err := q.InsertAccountSnapshots(ctx, rows)
			if err != nil {
				return fmt.Errorf("copy account snapshots: %w", err)
			}
			if n != int64(len(rows)) {
				return fmt.Errorf("copy account snapshots: wrote %d of %d rows", n, len(rows))
			}
			copied = n
			return nil
		})
	})
	if err != nil {
		if r.metrics != nil {
			r.metrics.ExportErrors.Inc()
		}
		logger.Error().Err(err).Int("attempts", attempts).Msg("account snapshot export failed")
		return err
	}

	if r.metrics != nil {
		r.metrics.ExportRows.Add(float64(copied))
	}
	logger.Info().
		Int64("rows", copied).
		Int("attempts", attempts).
		Msg("account snapshot exported")
	return nil
}

// Count returns the number of rows stored for runID.
func (r *SnapshotRepository) Count(ctx context.Context, runID string) (int64, error) {
	return generated.New(r.pool).CountAccountSnapshots(ctx, runID)
}

func decimalToNumeric(d decimal.Decimal) pgtype.Numeric {
	var n pgtype.Numeric

	_ = n.Scan(d.String())

	return n
}

func timeToPgTimestamptz(t time.Time) pgtype.Timestamptz {
	return pgtype.Timestamptz{Time: t, Valid: true}
}
