package lru

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/iho/payengine/internal/domain"
	"github.com/iho/payengine/internal/infrastructure/metrics"
)

// Container names used in eviction metrics and logs.
const (
	ContainerAccounts     = "accounts"
	ContainerTransactions = "transactions"
	ContainerProcessedIDs = "processed_ids"
)

// Store bundles the three bounded containers of one engine.
type Store struct {
	Accounts     *AccountStore
	Transactions *TransactionStore
	ProcessedIDs *ProcessedIDStore
	limits       domain.MemoryLimits
}

type storeOptions struct {
	logger  zerolog.Logger
	metrics *metrics.Metrics
}

// StoreOption configures a Store.
type StoreOption func(*storeOptions)

// WithLogger logs evictions at debug level.
func WithLogger(logger zerolog.Logger) StoreOption {
	return func(o *storeOptions) {
		o.logger = logger
	}
}

// WithMetrics counts evictions per container.
func WithMetrics(m *metrics.Metrics) StoreOption {
	return func(o *storeOptions) {
		o.metrics = m
	}
}

// NewStore creates bounded containers sized by limits.
func NewStore(limits domain.MemoryLimits, opts ...StoreOption) (*Store, error) {
	if err := limits.Validate(); err != nil {
		return nil, fmt.Errorf("bounded store: %w", err)
	}

	o := storeOptions{logger: zerolog.Nop()}
	for _, opt := range opts {
		opt(&o)
	}

	accounts := NewCache[domain.ClientID, *domain.Account](limits.MaxAccounts)
	accounts.OnEvict(evictionHook[domain.ClientID, *domain.Account](o, ContainerAccounts))

	transactions := NewCache[domain.TxID, *domain.StoredTransaction](limits.MaxDisputableTransactions)
	transactions.OnEvict(evictionHook[domain.TxID, *domain.StoredTransaction](o, ContainerTransactions))

	processed := NewCache[domain.TxID, struct{}](limits.MaxProcessedIDs)
	processed.OnEvict(evictionHook[domain.TxID, struct{}](o, ContainerProcessedIDs))

	return &Store{
		Accounts:     &AccountStore{cache: accounts},
		Transactions: &TransactionStore{cache: transactions},
		ProcessedIDs: &ProcessedIDStore{cache: processed},
		limits:       limits,
	}, nil
}

// Limits returns the capacities the store was built with.
func (s *Store) Limits() domain.MemoryLimits {
	return s.limits
}

func evictionHook[K comparable, V any](o storeOptions, container string) func(K, V) {
	var counter prometheus.Counter
	if o.metrics != nil {
		counter = o.metrics.EvictionCounter(container)
	}
	logger := o.logger.With().Str("container", container).Logger()

	return func(key K, _ V) {
		if counter != nil {
			counter.Inc()
		}
		logger.Debug().Interface("key", key).Msg("entry evicted")
	}
}

// AccountStore implements usecase.AccountRepository on a Cache.
// An evicted account is forgotten and comes back with zero balances.
type AccountStore struct {
	cache *Cache[domain.ClientID, *domain.Account]
}

func (s *AccountStore) GetOrCreate(client domain.ClientID) *domain.Account {
	if acc, ok := s.cache.Get(client); ok {
		return acc
	}
	acc := domain.NewAccount(client)
	s.cache.Put(client, acc)
	return acc
}

func (s *AccountStore) Get(client domain.ClientID) (*domain.Account, bool) {
	return s.cache.Get(client)
}

func (s *AccountStore) Len() int {
	return s.cache.Len()
}

func (s *AccountStore) Range(fn func(*domain.Account) bool) {
	s.cache.Range(func(_ domain.ClientID, acc *domain.Account) bool {
		return fn(acc)
	})
}

// TransactionStore implements usecase.TransactionRepository on a Cache.
// An evicted transaction can no longer be disputed.
type TransactionStore struct {
	cache *Cache[domain.TxID, *domain.StoredTransaction]
}

func (s *TransactionStore) Get(id domain.TxID) (*domain.StoredTransaction, bool) {
	return s.cache.Get(id)
}

func (s *TransactionStore) Put(id domain.TxID, tx *domain.StoredTransaction) {
	s.cache.Put(id, tx)
}

func (s *TransactionStore) Delete(id domain.TxID) {
	s.cache.Remove(id)
}

func (s *TransactionStore) Len() int {
	return s.cache.Len()
}

// ProcessedIDStore implements usecase.ProcessedIDRepository on a Cache.
// An evicted id may be accepted again.
type ProcessedIDStore struct {
	cache *Cache[domain.TxID, struct{}]
}

func (s *ProcessedIDStore) Contains(id domain.TxID) bool {
	return s.cache.Contains(id)
}

func (s *ProcessedIDStore) Add(id domain.TxID) {
	s.cache.Put(id, struct{}{})
}

func (s *ProcessedIDStore) Len() int {
	return s.cache.Len()
}
