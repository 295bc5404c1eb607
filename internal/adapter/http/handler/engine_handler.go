package handler

import (
	"mime"
	"net/http"
	"strings"

	"github.com/rs/zerolog"

	csvio "github.com/iho/payengine/internal/adapter/csv"
	"github.com/iho/payengine/internal/adapter/http/dto"
	"github.com/iho/payengine/internal/infrastructure/metrics"
	"github.com/iho/payengine/internal/usecase"
)

const contentTypeCSV = "text/csv"

// EngineHandler exposes one long-lived engine over HTTP. The engine must be
// safe for concurrent use, e.g. a usecase.ConcurrentEngine.
type EngineHandler struct {
	engine       usecase.Processor
	logger       zerolog.Logger
	metrics      *metrics.Metrics
	maxBodyBytes int64
}

// NewEngineHandler creates a new EngineHandler. A maxBodyBytes of zero or
// less leaves request bodies unbounded.
func NewEngineHandler(engine usecase.Processor, logger zerolog.Logger, m *metrics.Metrics, maxBodyBytes int64) *EngineHandler {
	return &EngineHandler{
		engine:       engine,
		logger:       logger,
		metrics:      m,
		maxBodyBytes: maxBodyBytes,
	}
}

// Ingest handles POST /api/v1/transactions. The body is a CSV stream with
// the type,client,tx,amount header.
//
// Records are applied as they are read, so a run that stops early (body too
// large, client gone) keeps what it applied; the error body carries the
// partial RunStats. A retry of the same body applies the earlier records
// again: deposits and withdrawals are rejected as duplicates but dispute,
// resolve and chargeback rows are not. Under an Idempotency-Key a 4xx is
// replayed instead of re-run; a 503 releases the key and is not protected.
func (h *EngineHandler) Ingest(w http.ResponseWriter, r *http.Request) {
	body := r.Body
	if h.maxBodyBytes > 0 {
		body = http.MaxBytesReader(w, r.Body, h.maxBodyBytes)
	}

	pipeline := usecase.NewPipeline(h.engine,
		usecase.WithPipelineLogger(h.logger),
		usecase.WithPipelineMetrics(h.metrics),
	)

	stats, err := pipeline.Run(r.Context(), csvio.NewReader(body))
	if err != nil {
		status := mapIngestError(err)
		h.logger.Error().
			Err(err).
			Int("status", status).
			Int("read", stats.Read).
			Int("applied", stats.Applied).
			Msg("ingest stopped")
		writeJSON(w, status, dto.IngestErrorResponse{
			ErrorResponse: dto.ErrorResponse{Error: "ingest failed", Message: err.Error()},
			Stats:         stats,
		})
		return
	}

	h.logger.Info().
		Int("read", stats.Read).
		Int("applied", stats.Applied).
		Int("rejected", stats.Rejected).
		Int("malformed", stats.Malformed).
		Msg("ingest completed")

	writeJSON(w, http.StatusOK, stats)
}

// Accounts handles GET /api/v1/accounts. Clients asking for text/csv get
// the same format the CLI prints.
func (h *EngineHandler) Accounts(w http.ResponseWriter, r *http.Request) {
	accounts := h.engine.Snapshot()

	if wantsCSV(r) {
		w.Header().Set("Content-Type", contentTypeCSV)
		w.WriteHeader(http.StatusOK)
		if err := csvio.WriteAccounts(w, accounts); err != nil {
			h.logger.Error().Err(err).Msg("failed to write accounts")
		}
		return
	}

	writeJSON(w, http.StatusOK, dto.AccountsFromDomain(accounts))
}

// Info handles GET /api/v1/engine.
func (h *EngineHandler) Info(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.engine.Info())
}

func wantsCSV(r *http.Request) bool {
	for _, part := range strings.Split(r.Header.Get("Accept"), ",") {
		mediaType, _, err := mime.ParseMediaType(strings.TrimSpace(part))
		if err == nil && mediaType == contentTypeCSV {
			return true
		}
	}
	return false
}
