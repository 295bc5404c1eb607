package usecase

import (
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/iho/payengine/internal/domain"
	"github.com/iho/payengine/internal/infrastructure/metrics"
)

// Engine kinds reported by Info.
const (
	KindStandard = "standard"
	KindBounded  = "bounded"
	KindSharded  = "sharded"
)

// EngineInfo describes an engine's configuration and current size.
type EngineInfo struct {
	Kind             string               `json:"kind"`
	MemoryBounded    bool                 `json:"memory_bounded"`
	Concurrent       bool                 `json:"concurrent"`
	Workers          int                  `json:"workers,omitempty"`
	AccountCount     int                  `json:"account_count"`
	TransactionCount int                  `json:"transaction_count"`
	ProcessedIDCount int                  `json:"processed_id_count"`
	Limits           *domain.MemoryLimits `json:"limits,omitempty"`
}

// Engine applies transactions to one account table and one ledger.
// It is the sequential reference implementation and is not safe for
// concurrent use.
type Engine struct {
	accounts AccountRepository
	ledger   *Ledger
	limits   *domain.MemoryLimits
	logger   zerolog.Logger
	metrics  *metrics.Metrics
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithLogger sets the engine logger.
func WithLogger(logger zerolog.Logger) EngineOption {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithMetrics enables per-transaction metrics.
func WithMetrics(m *metrics.Metrics) EngineOption {
	return func(e *Engine) {
		e.metrics = m
	}
}

// WithLimits marks the engine as memory bounded by limits.
func WithLimits(limits domain.MemoryLimits) EngineOption {
	return func(e *Engine) {
		e.limits = &limits
	}
}

// NewEngine creates an Engine over the given containers.
func NewEngine(
	accounts AccountRepository,
	transactions TransactionRepository,
	processed ProcessedIDRepository,
	opts ...EngineOption,
) *Engine {
	e := &Engine{
		accounts: accounts,
		ledger:   NewLedger(transactions, processed),
		logger:   zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Process applies one transaction. Errors are per-transaction and leave
// the engine usable.
func (e *Engine) Process(tx domain.Transaction) error {
	start := time.Now()

	err := e.apply(tx)
	e.metrics.ObserveTransaction(tx.Kind(), err, time.Since(start))

	if err == nil {
		e.logger.Trace().
			Str("type", string(tx.Kind())).
			Uint16("client", uint16(tx.ClientID())).
			Uint32("tx", uint32(tx.ID())).
			Msg("transaction applied")
	}

	return err
}

func (e *Engine) apply(tx domain.Transaction) error {
	switch t := tx.(type) {
	case domain.Deposit:
		return e.deposit(t)
	case domain.Withdrawal:
		return e.withdraw(t)
	case domain.Dispute:
		return e.ledger.Dispute(t.Tx, t.Client, func(amount decimal.Decimal) error {
			return e.accounts.GetOrCreate(t.Client).Hold(amount)
		})
	case domain.Resolve:
		return e.ledger.Resolve(t.Tx, t.Client, func(amount decimal.Decimal) error {
			return e.accounts.GetOrCreate(t.Client).Release(amount)
		})
	case domain.Chargeback:
		return e.ledger.Chargeback(t.Tx, t.Client, func(amount decimal.Decimal) error {
			return e.accounts.GetOrCreate(t.Client).Chargeback(amount)
		})
	default:
		return fmt.Errorf("%w: unsupported transaction %T", domain.ErrInvalidTransaction, tx)
	}
}

func (e *Engine) deposit(t domain.Deposit) error {
	if err := domain.ValidateAmount(t.Amount); err != nil {
		return err
	}
	return e.ledger.Accept(t.Tx, t.Client, t.Amount, func() error {
		return e.accounts.GetOrCreate(t.Client).Deposit(t.Amount)
	})
}

func (e *Engine) withdraw(t domain.Withdrawal) error {
	if err := domain.ValidateAmount(t.Amount); err != nil {
		return err
	}
	return e.ledger.Accept(t.Tx, t.Client, t.Amount, func() error {
		return e.accounts.GetOrCreate(t.Client).Withdraw(t.Amount)
	})
}

// Account returns a copy of one account.
func (e *Engine) Account(client domain.ClientID) (domain.Account, bool) {
	acc, ok := e.accounts.Get(client)
	if !ok {
		return domain.Account{}, false
	}
	return *acc, true
}

// Snapshot returns a copy of every resident account ordered by client.
func (e *Engine) Snapshot() []domain.Account {
	out := make([]domain.Account, 0, e.accounts.Len())
	e.accounts.Range(func(acc *domain.Account) bool {
		out = append(out, *acc)
		return true
	})
	SortAccounts(out)
	return out
}

// Info reports the engine kind and current container sizes.
func (e *Engine) Info() EngineInfo {
	info := EngineInfo{
		Kind:             KindStandard,
		AccountCount:     e.accounts.Len(),
		TransactionCount: e.ledger.Len(),
		ProcessedIDCount: e.ledger.ProcessedLen(),
	}
	if e.limits != nil {
		limits := *e.limits
		info.Kind = KindBounded
		info.MemoryBounded = true
		info.Limits = &limits
	}
	return info
}

// SortAccounts orders accounts by client id.
func SortAccounts(accounts []domain.Account) {
	sort.Slice(accounts, func(i, j int) bool {
		return accounts[i].Client < accounts[j].Client
	})
}
