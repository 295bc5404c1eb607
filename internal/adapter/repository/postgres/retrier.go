package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/zerolog"
)

// PostgreSQL error codes for retryable errors.
const (
	pgErrDeadlock             = "40P01"
	pgErrSerializationFailure = "40001"
)

// RetryPolicy bounds how long an export transaction is retried.
type RetryPolicy struct {
	MaxRetries      int
	InitialInterval time.Duration
	MaxInterval     time.Duration
	MaxElapsedTime  time.Duration
}

// DefaultRetryPolicy retries three times within ten seconds.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries:      3,
		InitialInterval: 50 * time.Millisecond,
		MaxInterval:     time.Second,
		MaxElapsedTime:  10 * time.Second,
	}
}

// Retrier reruns a whole export transaction when PostgreSQL aborts it with
// a deadlock or serialization failure. Any other error is returned at once.
type Retrier struct {
	policy  RetryPolicy
	onRetry func()
}

// NewRetrier creates a Retrier. onRetry, when set, runs before every retry.
func NewRetrier(policy RetryPolicy, onRetry func()) *Retrier {
	return &Retrier{policy: policy, onRetry: onRetry}
}

// Retry runs operation until it succeeds, fails permanently or the policy
// is exhausted. Retries are logged on logger, which should carry the fields
// identifying the export. It returns the number of attempts made.
func (r *Retrier) Retry(ctx context.Context, logger zerolog.Logger, operation func() error) (int, error) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = r.policy.InitialInterval
	b.MaxInterval = r.policy.MaxInterval
	b.MaxElapsedTime = r.policy.MaxElapsedTime

	policy := backoff.WithContext(backoff.WithMaxRetries(b, uint64(r.policy.MaxRetries)), ctx)

	attempts := 0
	err := backoff.RetryNotify(func() error {
		attempts++
		err := operation()
		if err != nil && !isRetryableError(err) {
			return backoff.Permanent(err)
		}
		return err
	}, policy, func(err error, wait time.Duration) {
		if r.onRetry != nil {
			r.onRetry()
		}
		logger.Warn().
			Err(err).
			Int("attempt", attempts).
			Dur("backoff", wait).
			Msg("export transaction aborted, retrying")
	})
	return attempts, err
}

// isRetryableError checks if a PostgreSQL error should trigger a retry.
func isRetryableError(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgErrDeadlock, pgErrSerializationFailure:
			return true
		}
	}
	return false
}
