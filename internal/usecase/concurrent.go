package usecase

import (
	"sync"

	"github.com/iho/payengine/internal/domain"
)

// ConcurrentEngine serialises access to a Processor so several input
// streams can feed one account table.
type ConcurrentEngine struct {
	mu        sync.Mutex
	processor Processor
}

// NewConcurrentEngine wraps processor.
func NewConcurrentEngine(processor Processor) *ConcurrentEngine {
	return &ConcurrentEngine{processor: processor}
}

func (e *ConcurrentEngine) Process(tx domain.Transaction) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.processor.Process(tx)
}

func (e *ConcurrentEngine) Snapshot() []domain.Account {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.processor.Snapshot()
}

func (e *ConcurrentEngine) Info() EngineInfo {
	e.mu.Lock()
	defer e.mu.Unlock()

	info := e.processor.Info()
	info.Concurrent = true
	return info
}
