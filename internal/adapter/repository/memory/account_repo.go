package memory

import (
	"github.com/iho/payengine/internal/domain"
)

// AccountRepository implements usecase.AccountRepository with an unbounded map.
type AccountRepository struct {
	accounts map[domain.ClientID]*domain.Account
}

// NewAccountRepository creates a new AccountRepository.
func NewAccountRepository() *AccountRepository {
	return &AccountRepository{
		accounts: make(map[domain.ClientID]*domain.Account),
	}
}

// GetOrCreate returns the account for client, creating it on first use.
func (r *AccountRepository) GetOrCreate(client domain.ClientID) *domain.Account {
	acc, ok := r.accounts[client]
	if !ok {
		acc = domain.NewAccount(client)
		r.accounts[client] = acc
	}
	return acc
}

// Get returns the account for client if it exists.
func (r *AccountRepository) Get(client domain.ClientID) (*domain.Account, bool) {
	acc, ok := r.accounts[client]
	return acc, ok
}

// Len returns the number of accounts.
func (r *AccountRepository) Len() int {
	return len(r.accounts)
}

// Range visits every account in unspecified order.
func (r *AccountRepository) Range(fn func(*domain.Account) bool) {
	for _, acc := range r.accounts {
		if !fn(acc) {
			return
		}
	}
}
