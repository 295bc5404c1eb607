package usecase

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/iho/payengine/internal/domain"
)

// Ledger owns the disputable-transaction index, the processed-id set and
// the dispute state machine. Each transition is committed only after the
// account-side effect passed to it succeeds.
type Ledger struct {
	transactions TransactionRepository
	processed    ProcessedIDRepository
}

// NewLedger creates a Ledger over the given containers.
func NewLedger(transactions TransactionRepository, processed ProcessedIDRepository) *Ledger {
	return &Ledger{
		transactions: transactions,
		processed:    processed,
	}
}

// Accept records a new deposit or withdrawal once apply succeeds.
// A reused id is rejected before apply runs.
func (l *Ledger) Accept(id domain.TxID, client domain.ClientID, amount decimal.Decimal, apply func() error) error {
	if l.processed.Contains(id) {
		return fmt.Errorf("%w: transaction id %d already exists", domain.ErrInvalidTransaction, id)
	}

	if err := apply(); err != nil {
		return err
	}

	l.transactions.Put(id, &domain.StoredTransaction{
		Client: client,
		Amount: amount,
	})
	l.processed.Add(id)

	return nil
}

// Dispute moves an active transaction to disputed once hold succeeds.
func (l *Ledger) Dispute(id domain.TxID, client domain.ClientID, hold func(decimal.Decimal) error) error {
	stored, err := l.lookup(id, client)
	if err != nil {
		return err
	}
	if stored.Disputed {
		return fmt.Errorf("%w: %d", domain.ErrTransactionAlreadyDisputed, id)
	}

	if err := hold(stored.Amount); err != nil {
		return err
	}

	stored.Disputed = true
	return nil
}

// Resolve moves a disputed transaction back to active once release succeeds.
// The transaction may be disputed again afterwards.
func (l *Ledger) Resolve(id domain.TxID, client domain.ClientID, release func(decimal.Decimal) error) error {
	stored, err := l.lookupDisputed(id, client)
	if err != nil {
		return err
	}

	if err := release(stored.Amount); err != nil {
		return err
	}

	stored.Disputed = false
	return nil
}

// Chargeback removes a disputed transaction for good once chargeback succeeds.
func (l *Ledger) Chargeback(id domain.TxID, client domain.ClientID, chargeback func(decimal.Decimal) error) error {
	stored, err := l.lookupDisputed(id, client)
	if err != nil {
		return err
	}

	if err := chargeback(stored.Amount); err != nil {
		return err
	}

	l.transactions.Delete(id)
	return nil
}

// Len returns the number of disputable transactions held.
func (l *Ledger) Len() int {
	return l.transactions.Len()
}

// ProcessedLen returns the number of remembered transaction ids.
func (l *Ledger) ProcessedLen() int {
	return l.processed.Len()
}

func (l *Ledger) lookup(id domain.TxID, client domain.ClientID) (*domain.StoredTransaction, error) {
	stored, ok := l.transactions.Get(id)
	if !ok {
		return nil, fmt.Errorf("%w: %d", domain.ErrTransactionNotFound, id)
	}
	if stored.Client != client {
		return nil, fmt.Errorf("%w: transaction %d belongs to client %d, not %d",
			domain.ErrClientIDMismatch, id, stored.Client, client)
	}
	return stored, nil
}

func (l *Ledger) lookupDisputed(id domain.TxID, client domain.ClientID) (*domain.StoredTransaction, error) {
	stored, err := l.lookup(id, client)
	if err != nil {
		return nil, err
	}
	if !stored.Disputed {
		return nil, fmt.Errorf("%w: %d", domain.ErrTransactionNotDisputed, id)
	}
	return stored, nil
}
