package usecase

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/rs/zerolog"

	"github.com/iho/payengine/internal/domain"
	"github.com/iho/payengine/internal/infrastructure/metrics"
)

// RunStats summarises one pass over a record source.
// Read == Applied + Rejected + Malformed once the run completes.
type RunStats struct {
	Read      int            `json:"read"`
	Applied   int            `json:"applied"`
	Rejected  int            `json:"rejected"`
	Malformed int            `json:"malformed"`
	Errors    map[string]int `json:"errors,omitempty"`
}

func (s *RunStats) reject(err error) {
	s.Rejected++
	if s.Errors == nil {
		s.Errors = make(map[string]int)
	}
	s.Errors[domain.ErrorKind(err)]++
}

// Pipeline drains a RecordSource into a Processor.
type Pipeline struct {
	processor Processor
	logger    zerolog.Logger
	metrics   *metrics.Metrics
}

// PipelineOption configures a Pipeline.
type PipelineOption func(*Pipeline)

// WithPipelineLogger sets the logger for skipped and rejected records.
func WithPipelineLogger(logger zerolog.Logger) PipelineOption {
	return func(p *Pipeline) {
		p.logger = logger
	}
}

// WithPipelineMetrics counts malformed records.
func WithPipelineMetrics(m *metrics.Metrics) PipelineOption {
	return func(p *Pipeline) {
		p.metrics = m
	}
}

// NewPipeline creates a new Pipeline.
func NewPipeline(processor Processor, opts ...PipelineOption) *Pipeline {
	p := &Pipeline{
		processor: processor,
		logger:    zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run applies every record from src until io.EOF. Malformed records and
// rejected transactions are counted and logged; a source failure or a
// cancelled ctx stops the run.
func (p *Pipeline) Run(ctx context.Context, src RecordSource) (RunStats, error) {
	return drain(ctx, src, p.logger, p.metrics, p.processor.Process)
}

func drain(
	ctx context.Context,
	src RecordSource,
	logger zerolog.Logger,
	m *metrics.Metrics,
	process func(domain.Transaction) error,
) (RunStats, error) {
	var stats RunStats

	for {
		if err := ctx.Err(); err != nil {
			return stats, err
		}

		tx, err := src.Next()
		if errors.Is(err, io.EOF) {
			return stats, nil
		}
		if err != nil {
			if errors.Is(err, domain.ErrMalformedRecord) {
				stats.Read++
				stats.Malformed++
				if m != nil {
					m.MalformedRecords.Inc()
				}
				logger.Warn().Err(err).Msg("skipping malformed record")
				continue
			}
			if domain.ErrorKind(err) != "internal" {
				stats.Read++
				stats.reject(err)
				logger.Warn().Err(err).Msg("skipping invalid record")
				continue
			}
			return stats, fmt.Errorf("read record: %w", err)
		}

		stats.Read++
		if err := process(tx); err != nil {
			if domain.ErrorKind(err) == "internal" {
				return stats, err
			}
			stats.reject(err)
			logger.Warn().
				Err(err).
				Str("type", string(tx.Kind())).
				Uint16("client", uint16(tx.ClientID())).
				Uint32("tx", uint32(tx.ID())).
				Msg("transaction rejected")
			continue
		}
		stats.Applied++
	}
}
