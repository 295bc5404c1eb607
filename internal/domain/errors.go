package domain

import "errors"

var (
	// Account errors
	ErrAccountFrozen     = errors.New("account is frozen")
	ErrInsufficientFunds = errors.New("insufficient funds")

	// Dispute lifecycle errors
	ErrTransactionNotFound        = errors.New("transaction not found")
	ErrTransactionAlreadyDisputed = errors.New("transaction already disputed")
	ErrTransactionNotDisputed     = errors.New("transaction is not under dispute")
	ErrClientIDMismatch           = errors.New("client id does not match transaction")

	// Record errors
	ErrInvalidTransaction = errors.New("invalid transaction")
	ErrMalformedRecord    = errors.New("malformed record")
)

// ErrorKind returns a stable label for err, used in logs and metric labels.
func ErrorKind(err error) string {
	switch {
	case err == nil:
		return "none"
	case errors.Is(err, ErrAccountFrozen):
		return "account_frozen"
	case errors.Is(err, ErrInsufficientFunds):
		return "insufficient_funds"
	case errors.Is(err, ErrTransactionNotFound):
		return "transaction_not_found"
	case errors.Is(err, ErrTransactionAlreadyDisputed):
		return "transaction_already_disputed"
	case errors.Is(err, ErrTransactionNotDisputed):
		return "transaction_not_disputed"
	case errors.Is(err, ErrClientIDMismatch):
		return "client_id_mismatch"
	case errors.Is(err, ErrInvalidTransaction):
		return "invalid_transaction"
	case errors.Is(err, ErrMalformedRecord):
		return "malformed_record"
	default:
		return "internal"
	}
}
