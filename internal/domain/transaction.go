package domain

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// TxID identifies a deposit or withdrawal. Dispute, resolve and chargeback
// records reference an existing TxID without occupying the id space.
type TxID uint32

// Type is the wire name of a transaction kind.
type Type string

const (
	TypeDeposit    Type = "deposit"
	TypeWithdrawal Type = "withdrawal"
	TypeDispute    Type = "dispute"
	TypeResolve    Type = "resolve"
	TypeChargeback Type = "chargeback"
)

// AllTypes lists every transaction kind in wire order.
var AllTypes = []Type{TypeDeposit, TypeWithdrawal, TypeDispute, TypeResolve, TypeChargeback}

// ParseType parses a case-insensitive transaction kind.
func ParseType(s string) (Type, error) {
	t := Type(strings.ToLower(strings.TrimSpace(s)))
	switch t {
	case TypeDeposit, TypeWithdrawal, TypeDispute, TypeResolve, TypeChargeback:
		return t, nil
	default:
		return "", fmt.Errorf("%w: unknown transaction type %q", ErrMalformedRecord, s)
	}
}

// Transaction is implemented by exactly the five variants below.
type Transaction interface {
	Kind() Type
	ClientID() ClientID
	ID() TxID
	isTransaction()
}

// Deposit credits a client account.
type Deposit struct {
	Client ClientID
	Tx     TxID
	Amount decimal.Decimal
}

// Withdrawal debits a client account.
type Withdrawal struct {
	Client ClientID
	Tx     TxID
	Amount decimal.Decimal
}

// Dispute opens a claim against an earlier deposit or withdrawal.
type Dispute struct {
	Client ClientID
	Tx     TxID
}

// Resolve closes a dispute and releases the held funds.
type Resolve struct {
	Client ClientID
	Tx     TxID
}

// Chargeback closes a dispute by reversing it and freezes the account.
type Chargeback struct {
	Client ClientID
	Tx     TxID
}

func (Deposit) Kind() Type    { return TypeDeposit }
func (Withdrawal) Kind() Type { return TypeWithdrawal }
func (Dispute) Kind() Type    { return TypeDispute }
func (Resolve) Kind() Type    { return TypeResolve }
func (Chargeback) Kind() Type { return TypeChargeback }

func (t Deposit) ClientID() ClientID    { return t.Client }
func (t Withdrawal) ClientID() ClientID { return t.Client }
func (t Dispute) ClientID() ClientID    { return t.Client }
func (t Resolve) ClientID() ClientID    { return t.Client }
func (t Chargeback) ClientID() ClientID { return t.Client }

func (t Deposit) ID() TxID    { return t.Tx }
func (t Withdrawal) ID() TxID { return t.Tx }
func (t Dispute) ID() TxID    { return t.Tx }
func (t Resolve) ID() TxID    { return t.Tx }
func (t Chargeback) ID() TxID { return t.Tx }

func (Deposit) isTransaction()    {}
func (Withdrawal) isTransaction() {}
func (Dispute) isTransaction()    {}
func (Resolve) isTransaction()    {}
func (Chargeback) isTransaction() {}

// StoredTransaction is what the ledger keeps about an accepted deposit or
// withdrawal so it can later be held, released or charged back.
type StoredTransaction struct {
	Client   ClientID
	Amount   decimal.Decimal
	Disputed bool
}

// Record is the flat wire form of a transaction.
type Record struct {
	Type   Type
	Client ClientID
	Tx     TxID
	Amount decimal.NullDecimal
}

// Transaction converts the record into its typed variant.
func (r Record) Transaction() (Transaction, error) {
	switch r.Type {
	case TypeDeposit, TypeWithdrawal:
		if !r.Amount.Valid {
			return nil, fmt.Errorf("%w: %s %d requires an amount", ErrInvalidTransaction, r.Type, r.Tx)
		}
		if err := ValidateAmount(r.Amount.Decimal); err != nil {
			return nil, err
		}
		if r.Type == TypeDeposit {
			return Deposit{Client: r.Client, Tx: r.Tx, Amount: r.Amount.Decimal}, nil
		}
		return Withdrawal{Client: r.Client, Tx: r.Tx, Amount: r.Amount.Decimal}, nil
	case TypeDispute, TypeResolve, TypeChargeback:
		if r.Amount.Valid {
			return nil, fmt.Errorf("%w: %s %d must not carry an amount", ErrInvalidTransaction, r.Type, r.Tx)
		}
		switch r.Type {
		case TypeDispute:
			return Dispute{Client: r.Client, Tx: r.Tx}, nil
		case TypeResolve:
			return Resolve{Client: r.Client, Tx: r.Tx}, nil
		default:
			return Chargeback{Client: r.Client, Tx: r.Tx}, nil
		}
	default:
		return nil, fmt.Errorf("%w: unknown transaction type %q", ErrInvalidTransaction, r.Type)
	}
}
