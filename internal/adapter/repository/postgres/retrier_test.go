package postgres

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/zerolog"
)

func fastRetrier(maxRetries int, onRetry func()) *Retrier {
	return NewRetrier(RetryPolicy{
		MaxRetries:      maxRetries,
		InitialInterval: time.Millisecond,
		MaxInterval:     2 * time.Millisecond,
		MaxElapsedTime:  time.Second,
	}, onRetry)
}

func TestRetrierRetriesOnRetryableError(t *testing.T) {
	retries := 0
	r := fastRetrier(2, func() { retries++ })

	calls := 0
	attempts, err := r.Retry(context.Background(), zerolog.Nop(), func() error {
		calls++
		if calls < 2 {
			return &pgconn.PgError{Code: pgErrDeadlock}
		}
		return nil
	})

	if err != nil {
		t.Fatalf("expected success after retry, got %v", err)
	}
	if attempts != 2 || calls != 2 {
		t.Fatalf("expected 2 attempts, got attempts=%d calls=%d", attempts, calls)
	}
	if retries != 1 {
		t.Fatalf("expected onRetry once, got %d", retries)
	}
}

func TestRetrierGivesUpAfterMaxRetries(t *testing.T) {
	r := fastRetrier(2, nil)

	attempts, err := r.Retry(context.Background(), zerolog.Nop(), func() error {
		return &pgconn.PgError{Code: pgErrSerializationFailure}
	})

	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		t.Fatalf("expected pg error, got %v", err)
	}
	if attempts != 3 {
		t.Fatalf("expected 3 attempts, got %d", attempts)
	}
}

func TestRetrierStopsOnPermanentError(t *testing.T) {
	r := NewRetrier(DefaultRetryPolicy(), nil)
	permanentErr := errors.New("permanent")

	attempts, err := r.Retry(context.Background(), zerolog.Nop(), func() error {
		return permanentErr
	})

	if !errors.Is(err, permanentErr) {
		t.Fatalf("expected permanent error, got %v", err)
	}
	if attempts != 1 {
		t.Fatalf("expected 1 attempt, got %d", attempts)
	}
}

func TestRetrierStopsWhenContextDone(t *testing.T) {
	r := fastRetrier(10, nil)
	ctx, cancel := context.WithCancel(context.Background())

	attempts, err := r.Retry(ctx, zerolog.Nop(), func() error {
		cancel()
		return &pgconn.PgError{Code: pgErrDeadlock}
	})

	if err == nil {
		t.Fatalf("expected error once the context is cancelled")
	}
	if attempts != 1 {
		t.Fatalf("expected 1 attempt, got %d", attempts)
	}
}

func TestRetrierLogsExportFields(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf).With().Str("run_id", "01JRUN").Logger()
	r := fastRetrier(1, nil)

	calls := 0
	if _, err := r.Retry(context.Background(), logger, func() error {
		calls++
		if calls == 1 {
			return &pgconn.PgError{Code: pgErrDeadlock}
		}
		return nil
	}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	out := buf.String()
	for _, want := range []string{`"run_id":"01JRUN"`, `"attempt":1`, `"backoff"`} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %s in retry log, got %s", want, out)
		}
	}
}

func TestIsRetryableError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"deadlock", &pgconn.PgError{Code: pgErrDeadlock}, true},
		{"serialization failure", &pgconn.PgError{Code: pgErrSerializationFailure}, true},
		{"unique violation", &pgconn.PgError{Code: "23505"}, false},
		{"generic", errors.New("other"), false},
	}

	for _, tt := range tests {
		if got := isRetryableError(tt.err); got != tt.want {
			t.Fatalf("%s: isRetryableError = %v, want %v", tt.name, got, tt.want)
		}
	}
}
