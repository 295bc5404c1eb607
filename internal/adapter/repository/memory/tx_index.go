package memory

import (
	"context"
	"sync"

	"github.com/iho/payengine/internal/domain"
)

// TxIndex implements usecase.TxIndex for workers inside one process.
// Claim is a single LoadOrStore, so two concurrent claims of the same id
// cannot both succeed.
type TxIndex struct {
	owners sync.Map // domain.TxID -> domain.ClientID
}

// NewTxIndex creates a new TxIndex.
func NewTxIndex() *TxIndex {
	return &TxIndex{}
}

// Claim registers id for client unless another client already holds it.
func (i *TxIndex) Claim(_ context.Context, id domain.TxID, client domain.ClientID) (domain.ClientID, bool, error) {
	owner, loaded := i.owners.LoadOrStore(id, client)
	if loaded {
		return owner.(domain.ClientID), false, nil
	}
	return client, true, nil
}

// Release removes the claim if client still owns id.
func (i *TxIndex) Release(_ context.Context, id domain.TxID, client domain.ClientID) error {
	i.owners.CompareAndDelete(id, client)
	return nil
}

// Owner returns the client holding id.
func (i *TxIndex) Owner(_ context.Context, id domain.TxID) (domain.ClientID, bool, error) {
	owner, ok := i.owners.Load(id)
	if !ok {
		return 0, false, nil
	}
	return owner.(domain.ClientID), true, nil
}
