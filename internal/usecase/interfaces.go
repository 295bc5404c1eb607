package usecase

import (
	"context"
	"time"

	"github.com/iho/payengine/internal/domain"
)

// AccountRepository holds the accounts owned by one engine.
// Implementations are not safe for concurrent use.
type AccountRepository interface {
	// GetOrCreate returns the account for client, creating a zero account
	// on first reference.
	GetOrCreate(client domain.ClientID) *domain.Account
	Get(client domain.ClientID) (*domain.Account, bool)
	Len() int
	// Range visits accounts without changing their recency.
	Range(fn func(*domain.Account) bool)
}

// TransactionRepository indexes disputable transactions by id.
type TransactionRepository interface {
	Get(id domain.TxID) (*domain.StoredTransaction, bool)
	Put(id domain.TxID, tx *domain.StoredTransaction)
	Delete(id domain.TxID)
	Len() int
}

// ProcessedIDRepository remembers accepted deposit and withdrawal ids.
type ProcessedIDRepository interface {
	Contains(id domain.TxID) bool
	Add(id domain.TxID)
	Len() int
}

// TxIndex is the id index shared by every worker of a scheduler.
// It must be safe for concurrent use.
type TxIndex interface {
	// Claim atomically registers id for client. When the id is already
	// registered it returns the owning client and claimed=false.
	Claim(ctx context.Context, id domain.TxID, client domain.ClientID) (owner domain.ClientID, claimed bool, err error)
	// Release drops the claim only if client still owns it.
	Release(ctx context.Context, id domain.TxID, client domain.ClientID) error
	// Owner returns the client holding id, if any.
	Owner(ctx context.Context, id domain.TxID) (owner domain.ClientID, ok bool, err error)
}

// Processor applies transactions and reports account state.
type Processor interface {
	Process(tx domain.Transaction) error
	Snapshot() []domain.Account
	Info() EngineInfo
}

// RecordSource yields parsed transactions. Next returns io.EOF at the end of
// input and an error wrapping domain.ErrMalformedRecord for skippable input.
type RecordSource interface {
	Next() (domain.Transaction, error)
}

// SnapshotSink receives a final account snapshot.
type SnapshotSink interface {
	Save(ctx context.Context, runID string, accounts []domain.Account) error
}

// IDGenerator generates unique IDs.
type IDGenerator interface {
	Generate() string
}

// IdempotencyStore remembers ingest responses by a client-supplied key so a
// retried upload is answered from the store instead of being applied again.
type IdempotencyStore interface {
	// Begin reserves key. started is true when the caller owns the key.
	// Otherwise response holds the stored reply, or is nil while the first
	// request is still running.
	Begin(ctx context.Context, key string, ttl time.Duration) (response []byte, started bool, err error)
	// Complete stores the reply for a reserved key.
	Complete(ctx context.Context, key string, response []byte, ttl time.Duration) error
	// Abort drops a reservation so the request can be retried.
	Abort(ctx context.Context, key string) error
}
