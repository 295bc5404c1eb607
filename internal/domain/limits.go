package domain

import (
	"errors"
	"fmt"
)

// Per-entry size estimates used to turn a memory budget into capacities.
const (
	AccountEntryBytes     = 200
	TransactionEntryBytes = 100
	TxIDEntryBytes        = 4
)

var ErrInvalidLimits = errors.New("invalid memory limits")

// MemoryLimits caps the three containers of a bounded engine.
type MemoryLimits struct {
	MaxAccounts               int
	MaxDisputableTransactions int
	MaxProcessedIDs           int
}

// LimitsForMemoryMB splits a budget 25% accounts, 50% transactions, 25% ids.
func LimitsForMemoryMB(mb int) MemoryLimits {
	const mib = 1024 * 1024

	return MemoryLimits{
		MaxAccounts:               (mb / 4) * mib / AccountEntryBytes,
		MaxDisputableTransactions: (mb / 2) * mib / TransactionEntryBytes,
		MaxProcessedIDs:           (mb / 4) * mib / TxIDEntryBytes,
	}
}

// Validate requires every capacity to be at least one.
func (l MemoryLimits) Validate() error {
	if l.MaxAccounts < 1 || l.MaxDisputableTransactions < 1 || l.MaxProcessedIDs < 1 {
		return fmt.Errorf("%w: accounts=%d transactions=%d ids=%d",
			ErrInvalidLimits, l.MaxAccounts, l.MaxDisputableTransactions, l.MaxProcessedIDs)
	}
	return nil
}

// EstimatedBytes is the approximate resident size at full capacity.
func (l MemoryLimits) EstimatedBytes() int64 {
	return int64(l.MaxAccounts)*AccountEntryBytes +
		int64(l.MaxDisputableTransactions)*TransactionEntryBytes +
		int64(l.MaxProcessedIDs)*TxIDEntryBytes
}
