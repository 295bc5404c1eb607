package domain

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// ClientID identifies a client account.
type ClientID uint16

// Account is a client's balance record.
// Total always equals Available + Held and neither part goes negative.
type Account struct {
	Client    ClientID
	Available decimal.Decimal
	Held      decimal.Decimal
	Total     decimal.Decimal
	Locked    bool
}

// NewAccount returns an unlocked account with zero balances.
func NewAccount(client ClientID) *Account {
	return &Account{
		Client:    client,
		Available: decimal.Zero,
		Held:      decimal.Zero,
		Total:     decimal.Zero,
	}
}

// Deposit credits available funds.
func (a *Account) Deposit(amount decimal.Decimal) error {
	if a.Locked {
		return ErrAccountFrozen
	}

	a.Available = a.Available.Add(amount)
	a.Total = a.Total.Add(amount)
	return nil
}

// Withdraw debits available funds.
func (a *Account) Withdraw(amount decimal.Decimal) error {
	if a.Locked {
		return ErrAccountFrozen
	}
	if a.Available.LessThan(amount) {
		return ErrInsufficientFunds
	}

	a.Available = a.Available.Sub(amount)
	a.Total = a.Total.Sub(amount)
	return nil
}

// Hold moves funds from available to held while a dispute is open.
// Locked accounts refuse new holds.
func (a *Account) Hold(amount decimal.Decimal) error {
	if a.Locked {
		return ErrAccountFrozen
	}
	if a.Available.LessThan(amount) {
		return ErrInsufficientFunds
	}

	a.Available = a.Available.Sub(amount)
	a.Held = a.Held.Add(amount)
	return nil
}

// Release moves held funds back to available.
func (a *Account) Release(amount decimal.Decimal) error {
	if a.Held.LessThan(amount) {
		return ErrInsufficientFunds
	}

	a.Held = a.Held.Sub(amount)
	a.Available = a.Available.Add(amount)
	return nil
}

// Chargeback removes held funds for good and freezes the account.
// Nothing unlocks an account afterwards.
func (a *Account) Chargeback(amount decimal.Decimal) error {
	if a.Held.LessThan(amount) {
		return ErrInsufficientFunds
	}

	a.Held = a.Held.Sub(amount)
	a.Total = a.Total.Sub(amount)
	a.Locked = true
	return nil
}

// Balanced reports whether the balance invariant holds.
func (a *Account) Balanced() bool {
	return a.Total.Equal(a.Available.Add(a.Held)) &&
		!a.Available.IsNegative() &&
		!a.Held.IsNegative()
}

func (a Account) String() string {
	return fmt.Sprintf("client %d: available=%s held=%s total=%s locked=%t",
		a.Client, a.Available.StringFixed(4), a.Held.StringFixed(4), a.Total.StringFixed(4), a.Locked)
}
