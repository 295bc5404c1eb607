package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/iho/payengine/internal/domain"
)

func TestNewRegistersMetrics(t *testing.T) {
	registry := prometheus.NewRegistry()

	m := NewWithRegisterer(registry)

	if m.TransactionsProcessed == nil || m.Evictions == nil || m.HTTPRequests == nil {
		t.Fatalf("expected key metrics to be initialized: %+v", m)
	}

	m.MalformedRecords.Inc()

	metricFamilies, err := registry.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}

	if len(metricFamilies) == 0 {
		t.Fatalf("expected registered metrics, got none")
	}
}

func TestObserveTransaction(t *testing.T) {
	m := NewWithRegisterer(prometheus.NewRegistry())

	m.ObserveTransaction(domain.TypeDeposit, nil, time.Microsecond)
	m.ObserveTransaction(domain.TypeDeposit, nil, time.Microsecond)
	m.ObserveTransaction(domain.TypeWithdrawal, domain.ErrInsufficientFunds, time.Microsecond)
	m.ObserveTransaction(domain.TypeDispute, errors.Join(errors.New("x"), domain.ErrTransactionNotFound), time.Microsecond)

	if got := testutil.ToFloat64(m.TransactionsProcessed.WithLabelValues("deposit")); got != 2 {
		t.Errorf("expected 2 deposits, got %v", got)
	}
	if got := testutil.ToFloat64(m.TransactionErrors.WithLabelValues("withdrawal", "insufficient_funds")); got != 1 {
		t.Errorf("expected 1 insufficient_funds error, got %v", got)
	}
	if got := testutil.ToFloat64(m.TransactionErrors.WithLabelValues("dispute", "transaction_not_found")); got != 1 {
		t.Errorf("expected 1 transaction_not_found error, got %v", got)
	}
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics

	m.ObserveTransaction(domain.TypeDeposit, nil, time.Second)
	if c := m.EvictionCounter("accounts"); c != nil {
		t.Fatalf("expected nil counter from nil metrics")
	}
}
