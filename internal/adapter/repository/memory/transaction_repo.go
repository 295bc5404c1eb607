package memory

import (
	"github.com/iho/payengine/internal/domain"
)

// TransactionRepository implements usecase.TransactionRepository with an unbounded map.
type TransactionRepository struct {
	transactions map[domain.TxID]*domain.StoredTransaction
}

// NewTransactionRepository creates a new TransactionRepository.
func NewTransactionRepository() *TransactionRepository {
	return &TransactionRepository{
		transactions: make(map[domain.TxID]*domain.StoredTransaction),
	}
}

func (r *TransactionRepository) Get(id domain.TxID) (*domain.StoredTransaction, bool) {
	tx, ok := r.transactions[id]
	return tx, ok
}

func (r *TransactionRepository) Put(id domain.TxID, tx *domain.StoredTransaction) {
	r.transactions[id] = tx
}

func (r *TransactionRepository) Delete(id domain.TxID) {
	delete(r.transactions, id)
}

func (r *TransactionRepository) Len() int {
	return len(r.transactions)
}

// ProcessedIDSet implements usecase.ProcessedIDRepository with an unbounded set.
type ProcessedIDSet struct {
	ids map[domain.TxID]struct{}
}

// NewProcessedIDSet creates a new ProcessedIDSet.
func NewProcessedIDSet() *ProcessedIDSet {
	return &ProcessedIDSet{
		ids: make(map[domain.TxID]struct{}),
	}
}

func (s *ProcessedIDSet) Contains(id domain.TxID) bool {
	_, ok := s.ids[id]
	return ok
}

func (s *ProcessedIDSet) Add(id domain.TxID) {
	s.ids[id] = struct{}{}
}

func (s *ProcessedIDSet) Len() int {
	return len(s.ids)
}
