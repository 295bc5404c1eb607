package usecase

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/iho/payengine/internal/domain"
	"github.com/iho/payengine/internal/infrastructure/metrics"
)

var (
	ErrSchedulerRunning = errors.New("scheduler is still running")
	ErrSchedulerClosed  = errors.New("scheduler is closed")
)

// ProcessorFactory builds the private processor of one worker.
type ProcessorFactory func(worker int) (Processor, error)

// SchedulerConfig sizes the worker pool.
type SchedulerConfig struct {
	Workers   int
	QueueSize int
}

const defaultReleaseTimeout = 5 * time.Second

// WorkerReport is what one worker did before it exited.
type WorkerReport struct {
	Worker    int            `json:"worker"`
	Processed int            `json:"processed"`
	Failed    int            `json:"failed"`
	Errors    map[string]int `json:"errors,omitempty"`
}

// claimState tracks the deposits and withdrawals of one client that are
// queued under a single fresh claim of their id.
type claimState struct {
	pending  int
	accepted bool
}

type job struct {
	tx    domain.Transaction
	claim *claimState
}

type worker struct {
	id        int
	label     string
	queue     chan job
	processor Processor
	report    WorkerReport
}

// Scheduler shards transactions across workers by client id. Every
// transaction of one client goes to the same worker queue, so per-client
// order is submission order. Deposit and withdrawal ids are claimed in the
// shared TxIndex before dispatch, which keeps them unique across workers.
// A claim is dropped again once every queued transaction under it has failed.
type Scheduler struct {
	workers        []*worker
	index          TxIndex
	logger         zerolog.Logger
	metrics        *metrics.Metrics
	releaseTimeout time.Duration

	claimMu sync.Mutex
	claims  map[domain.TxID]*claimState

	mu      sync.RWMutex
	closed  bool
	group   *errgroup.Group
	reports []WorkerReport
}

// SchedulerOption configures a Scheduler.
type SchedulerOption func(*Scheduler)

// WithSchedulerLogger sets the scheduler logger.
func WithSchedulerLogger(logger zerolog.Logger) SchedulerOption {
	return func(s *Scheduler) {
		s.logger = logger
	}
}

// WithSchedulerMetrics enables queue and worker metrics.
func WithSchedulerMetrics(m *metrics.Metrics) SchedulerOption {
	return func(s *Scheduler) {
		s.metrics = m
	}
}

// WithReleaseTimeout bounds each TxIndex release issued by a worker.
func WithReleaseTimeout(d time.Duration) SchedulerOption {
	return func(s *Scheduler) {
		if d > 0 {
			s.releaseTimeout = d
		}
	}
}

// NewScheduler builds cfg.Workers processors with factory and starts the workers.
func NewScheduler(cfg SchedulerConfig, factory ProcessorFactory, index TxIndex, opts ...SchedulerOption) (*Scheduler, error) {
	if cfg.Workers < 1 {
		return nil, fmt.Errorf("workers must be positive, got %d", cfg.Workers)
	}
	if cfg.QueueSize < 1 {
		return nil, fmt.Errorf("queue size must be positive, got %d", cfg.QueueSize)
	}

	s := &Scheduler{
		index:          index,
		logger:         zerolog.Nop(),
		releaseTimeout: defaultReleaseTimeout,
		claims:         make(map[domain.TxID]*claimState),
		group:          &errgroup.Group{},
	}
	for _, opt := range opts {
		opt(s)
	}

	s.workers = make([]*worker, cfg.Workers)
	for i := range s.workers {
		processor, err := factory(i)
		if err != nil {
			return nil, fmt.Errorf("build worker %d: %w", i, err)
		}
		s.workers[i] = &worker{
			id:        i,
			label:     strconv.Itoa(i),
			queue:     make(chan job, cfg.QueueSize),
			processor: processor,
			report:    WorkerReport{Worker: i},
		}
	}

	for _, w := range s.workers {
		s.group.Go(func() error {
			s.work(w)
			return nil
		})
	}

	s.logger.Debug().
		Int("workers", cfg.Workers).
		Int("queue_size", cfg.QueueSize).
		Msg("scheduler started")

	return s, nil
}

// Workers returns the number of workers.
func (s *Scheduler) Workers() int {
	return len(s.workers)
}

// WorkerFor returns the worker index that owns client.
func (s *Scheduler) WorkerFor(client domain.ClientID) int {
	return int(client) % len(s.workers)
}

// Submit routes tx to its worker, blocking while the worker queue is full.
// A deposit or withdrawal whose id is held by another client is rejected with
// domain.ErrInvalidTransaction, and a dispute, resolve or chargeback naming an
// id held by another client with domain.ErrClientIDMismatch, before either
// reaches a worker. Reuse of an id by its own client is left to the worker.
// Submit must not be called after Close.
func (s *Scheduler) Submit(ctx context.Context, tx domain.Transaction) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return ErrSchedulerClosed
	}

	var claim *claimState
	if isDisputable(tx) {
		c, err := s.claim(ctx, tx)
		if err != nil {
			return err
		}
		claim = c
	} else {
		owner, ok, err := s.index.Owner(ctx, tx.ID())
		if err != nil {
			return fmt.Errorf("look up transaction %d: %w", tx.ID(), err)
		}
		if ok && owner != tx.ClientID() {
			return fmt.Errorf("%w: transaction %d belongs to client %d",
				domain.ErrClientIDMismatch, tx.ID(), owner)
		}
	}

	w := s.workers[s.WorkerFor(tx.ClientID())]
	select {
	case w.queue <- job{tx: tx, claim: claim}:
		s.observeQueue(w)
		return nil
	case <-ctx.Done():
		s.settle(tx, claim, false)
		return ctx.Err()
	}
}

// claim registers tx's id for its client. It returns the state the
// transaction is queued under, or nil when the id is already held by an
// accepted transaction of the same client.
func (s *Scheduler) claim(ctx context.Context, tx domain.Transaction) (*claimState, error) {
	s.claimMu.Lock()
	defer s.claimMu.Unlock()

	owner, claimed, err := s.index.Claim(ctx, tx.ID(), tx.ClientID())
	if err != nil {
		return nil, fmt.Errorf("claim transaction %d: %w", tx.ID(), err)
	}
	if !claimed && owner != tx.ClientID() {
		if s.metrics != nil {
			s.metrics.DuplicateRejections.Inc()
		}
		return nil, fmt.Errorf("%w: transaction id %d already claimed by client %d",
			domain.ErrInvalidTransaction, tx.ID(), owner)
	}

	state := s.claims[tx.ID()]
	if claimed {
		state = &claimState{}
		s.claims[tx.ID()] = state
	}
	if state != nil {
		state.pending++
	}
	return state, nil
}

// settle records the outcome of one transaction queued under claim and
// releases the id once nothing under it was accepted.
func (s *Scheduler) settle(tx domain.Transaction, claim *claimState, accepted bool) {
	if claim == nil {
		return
	}

	s.claimMu.Lock()
	defer s.claimMu.Unlock()

	claim.pending--
	claim.accepted = claim.accepted || accepted
	if claim.pending > 0 {
		return
	}
	if s.claims[tx.ID()] == claim {
		delete(s.claims, tx.ID())
	}
	if !claim.accepted {
		s.release(tx)
	}
}

// Close stops accepting transactions, waits for every worker to drain its
// queue and returns their reports. Calling Close again returns the same result.
func (s *Scheduler) Close() ([]WorkerReport, error) {
	s.mu.Lock()
	if !s.closed {
		s.closed = true
		for _, w := range s.workers {
			close(w.queue)
		}
	}
	s.mu.Unlock()

	if err := s.group.Wait(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.reports == nil {
		s.reports = make([]WorkerReport, len(s.workers))
		for i, w := range s.workers {
			s.reports[i] = w.report
		}
	}
	return s.reports, nil
}

// Run submits every record from src, closes the scheduler and returns the
// combined stats of the producer and all workers.
func (s *Scheduler) Run(ctx context.Context, src RecordSource) (RunStats, error) {
	stats, runErr := drain(ctx, src, s.logger, s.metrics, func(tx domain.Transaction) error {
		return s.Submit(ctx, tx)
	})

	reports, err := s.Close()
	if runErr != nil {
		return stats, runErr
	}
	if err != nil {
		return stats, err
	}

	// Applied so far counts dispatched transactions; replace it with what
	// the workers actually applied.
	stats.Applied = 0
	for _, r := range reports {
		stats.Applied += r.Processed
		stats.Rejected += r.Failed
		for kind, n := range r.Errors {
			if stats.Errors == nil {
				stats.Errors = make(map[string]int)
			}
			stats.Errors[kind] += n
		}
	}
	return stats, nil
}

// Snapshot merges the account tables of every worker, ordered by client.
// It fails with ErrSchedulerRunning until Close has returned.
func (s *Scheduler) Snapshot() ([]domain.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.reports == nil {
		return nil, ErrSchedulerRunning
	}

	var out []domain.Account
	for _, w := range s.workers {
		out = append(out, w.processor.Snapshot()...)
	}
	SortAccounts(out)
	return out, nil
}

// Info reports the pool shape. Container sizes are summed across workers
// once the scheduler is closed.
func (s *Scheduler) Info() EngineInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()

	info := EngineInfo{
		Kind:       KindSharded,
		Concurrent: true,
		Workers:    len(s.workers),
	}
	if s.reports == nil {
		return info
	}

	for _, w := range s.workers {
		wi := w.processor.Info()
		info.AccountCount += wi.AccountCount
		info.TransactionCount += wi.TransactionCount
		info.ProcessedIDCount += wi.ProcessedIDCount
		info.MemoryBounded = info.MemoryBounded || wi.MemoryBounded
		if info.Limits == nil {
			info.Limits = wi.Limits
		}
	}
	return info
}

func (s *Scheduler) work(w *worker) {
	logger := s.logger.With().Int("worker", w.id).Logger()

	for j := range w.queue {
		s.observeQueue(w)

		tx := j.tx
		err := s.apply(w, tx)
		s.settle(tx, j.claim, err == nil)
		if err == nil {
			w.report.Processed++
			if s.metrics != nil {
				s.metrics.WorkerProcessed.WithLabelValues(w.label).Inc()
			}
			continue
		}

		w.report.Failed++
		if w.report.Errors == nil {
			w.report.Errors = make(map[string]int)
		}
		w.report.Errors[domain.ErrorKind(err)]++

		logger.Warn().
			Err(err).
			Str("type", string(tx.Kind())).
			Uint16("client", uint16(tx.ClientID())).
			Uint32("tx", uint32(tx.ID())).
			Msg("transaction rejected")
	}

	logger.Debug().
		Int("processed", w.report.Processed).
		Int("failed", w.report.Failed).
		Msg("worker finished")
}

func (s *Scheduler) apply(w *worker, tx domain.Transaction) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("worker %d panicked: %v", w.id, r)
		}
	}()
	return w.processor.Process(tx)
}

func (s *Scheduler) release(tx domain.Transaction) {
	ctx, cancel := context.WithTimeout(context.Background(), s.releaseTimeout)
	defer cancel()

	if err := s.index.Release(ctx, tx.ID(), tx.ClientID()); err != nil {
		s.logger.Error().
			Err(err).
			Uint32("tx", uint32(tx.ID())).
			Msg("failed to release transaction id")
	}
}

func (s *Scheduler) observeQueue(w *worker) {
	if s.metrics != nil {
		s.metrics.QueueDepth.WithLabelValues(w.label).Set(float64(len(w.queue)))
	}
}

func isDisputable(tx domain.Transaction) bool {
	switch tx.(type) {
	case domain.Deposit, domain.Withdrawal:
		return true
	default:
		return false
	}
}
