package lru_test

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iho/payengine/internal/adapter/repository/lru"
	"github.com/iho/payengine/internal/domain"
	"github.com/iho/payengine/internal/infrastructure/metrics"
	"github.com/iho/payengine/internal/usecase"
)

func newBoundedEngine(t *testing.T, limits domain.MemoryLimits, m *metrics.Metrics) *usecase.Engine {
	t.Helper()

	store, err := lru.NewStore(limits, lru.WithMetrics(m))
	require.NoError(t, err)

	return usecase.NewEngine(store.Accounts, store.Transactions, store.ProcessedIDs,
		usecase.WithLimits(store.Limits()),
		usecase.WithMetrics(m),
	)
}

func amount(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestNewStore_RejectsInvalidLimits(t *testing.T) {
	_, err := lru.NewStore(domain.MemoryLimits{MaxAccounts: 0, MaxDisputableTransactions: 1, MaxProcessedIDs: 1})
	if !errors.Is(err, domain.ErrInvalidLimits) {
		t.Fatalf("expected ErrInvalidLimits, got %v", err)
	}
}

func TestStore_AccountEviction(t *testing.T) {
	m := metrics.NewWithRegisterer(prometheus.NewRegistry())
	limits := domain.MemoryLimits{MaxAccounts: 3, MaxDisputableTransactions: 100, MaxProcessedIDs: 100}
	engine := newBoundedEngine(t, limits, m)

	for client := 1; client <= 4; client++ {
		require.NoError(t, engine.Process(domain.Deposit{
			Client: domain.ClientID(client),
			Tx:     domain.TxID(client),
			Amount: amount("10"),
		}))
	}

	snapshot := engine.Snapshot()
	require.Len(t, snapshot, 3)
	for _, acc := range snapshot {
		assert.NotEqual(t, domain.ClientID(1), acc.Client, "least recently used account should be evicted")
	}
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Evictions.WithLabelValues(lru.ContainerAccounts)))

	// An evicted account comes back with zero balances.
	err := engine.Process(domain.Withdrawal{Client: 1, Tx: 5, Amount: amount("1")})
	assert.ErrorIs(t, err, domain.ErrInsufficientFunds)

	acc, ok := engine.Account(1)
	require.True(t, ok)
	assert.True(t, acc.Total.IsZero())
}

func TestStore_TransactionEvictionMakesDisputeUnknown(t *testing.T) {
	limits := domain.MemoryLimits{MaxAccounts: 10, MaxDisputableTransactions: 2, MaxProcessedIDs: 100}
	engine := newBoundedEngine(t, limits, nil)

	for tx := 1; tx <= 3; tx++ {
		require.NoError(t, engine.Process(domain.Deposit{Client: 1, Tx: domain.TxID(tx), Amount: amount("1")}))
	}

	err := engine.Process(domain.Dispute{Client: 1, Tx: 1})
	assert.ErrorIs(t, err, domain.ErrTransactionNotFound)

	require.NoError(t, engine.Process(domain.Dispute{Client: 1, Tx: 3}))

	acc, _ := engine.Account(1)
	assert.True(t, acc.Held.Equal(amount("1")))
	assert.True(t, acc.Balanced())
}

func TestStore_ProcessedIDEvictionAllowsReuse(t *testing.T) {
	limits := domain.MemoryLimits{MaxAccounts: 10, MaxDisputableTransactions: 10, MaxProcessedIDs: 1}
	engine := newBoundedEngine(t, limits, nil)

	require.NoError(t, engine.Process(domain.Deposit{Client: 1, Tx: 1, Amount: amount("1")}))

	err := engine.Process(domain.Deposit{Client: 1, Tx: 1, Amount: amount("1")})
	require.ErrorIs(t, err, domain.ErrInvalidTransaction)

	require.NoError(t, engine.Process(domain.Deposit{Client: 1, Tx: 2, Amount: amount("1")}))
	require.NoError(t, engine.Process(domain.Deposit{Client: 1, Tx: 1, Amount: amount("1")}))

	acc, _ := engine.Account(1)
	assert.True(t, acc.Total.Equal(amount("3")))
}

func TestStore_InfoReportsBounded(t *testing.T) {
	limits := domain.MemoryLimits{MaxAccounts: 5, MaxDisputableTransactions: 5, MaxProcessedIDs: 5}
	engine := newBoundedEngine(t, limits, nil)

	require.NoError(t, engine.Process(domain.Deposit{Client: 1, Tx: 1, Amount: amount("1")}))

	info := engine.Info()
	assert.Equal(t, usecase.KindBounded, info.Kind)
	assert.True(t, info.MemoryBounded)
	require.NotNil(t, info.Limits)
	assert.Equal(t, limits, *info.Limits)
	assert.Equal(t, 1, info.AccountCount)
	assert.Equal(t, 1, info.TransactionCount)
	assert.Equal(t, 1, info.ProcessedIDCount)
}

func TestStore_ChargebackFreesTransactionSlot(t *testing.T) {
	limits := domain.MemoryLimits{MaxAccounts: 5, MaxDisputableTransactions: 5, MaxProcessedIDs: 5}
	store, err := lru.NewStore(limits)
	require.NoError(t, err)
	engine := usecase.NewEngine(store.Accounts, store.Transactions, store.ProcessedIDs)

	require.NoError(t, engine.Process(domain.Deposit{Client: 1, Tx: 1, Amount: amount("2")}))
	require.NoError(t, engine.Process(domain.Dispute{Client: 1, Tx: 1}))
	require.NoError(t, engine.Process(domain.Chargeback{Client: 1, Tx: 1}))

	assert.Equal(t, 0, store.Transactions.Len())
	assert.Equal(t, 1, store.ProcessedIDs.Len())
}
