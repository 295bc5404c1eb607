package handler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"

	"github.com/iho/payengine/internal/adapter/http/dto"
	"github.com/iho/payengine/internal/adapter/repository/memory"
	"github.com/iho/payengine/internal/infrastructure/metrics"
	"github.com/iho/payengine/internal/usecase"
)

const ingestBody = `type, client, tx, amount
deposit, 1, 1, 1.0
deposit, 2, 2, 2.0
deposit, 1, 3, 2.0
withdrawal, 1, 4, 1.5
withdrawal, 2, 5, 3.0
dispute, 1, 99,
bogus, 1, 6, 1.0
`

func newTestEngineHandler(t *testing.T, maxBody int64) (*EngineHandler, *metrics.Metrics) {
	t.Helper()
	m := metrics.NewWithRegisterer(prometheus.NewRegistry())
	engine := usecase.NewConcurrentEngine(usecase.NewEngine(
		memory.NewAccountRepository(),
		memory.NewTransactionRepository(),
		memory.NewProcessedIDSet(),
		usecase.WithMetrics(m),
	))
	return NewEngineHandler(engine, zerolog.Nop(), m, maxBody), m
}

func ingest(t *testing.T, h *EngineHandler, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/transactions", strings.NewReader(body))
	req.Header.Set("Content-Type", contentTypeCSV)
	rec := httptest.NewRecorder()
	h.Ingest(rec, req)
	return rec
}

func TestEngineHandler_Ingest(t *testing.T) {
	h, m := newTestEngineHandler(t, 0)

	rec := ingest(t, h, ingestBody)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var stats usecase.RunStats
	if err := json.Unmarshal(rec.Body.Bytes(), &stats); err != nil {
		t.Fatalf("failed to decode stats: %v", err)
	}
	if stats.Read != 7 || stats.Applied != 4 || stats.Rejected != 2 || stats.Malformed != 1 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
	if stats.Errors["insufficient_funds"] != 1 || stats.Errors["transaction_not_found"] != 1 {
		t.Fatalf("unexpected error breakdown: %+v", stats.Errors)
	}
	if got := testutil.ToFloat64(m.MalformedRecords); got != 1 {
		t.Fatalf("expected 1 malformed record metric, got %v", got)
	}
}

func TestEngineHandler_IngestAccumulatesAcrossRequests(t *testing.T) {
	h, _ := newTestEngineHandler(t, 0)

	if rec := ingest(t, h, "type,client,tx,amount\ndeposit,1,1,5\n"); rec.Code != http.StatusOK {
		t.Fatalf("first ingest failed: %d", rec.Code)
	}
	if rec := ingest(t, h, "type,client,tx,amount\nwithdrawal,1,2,2\ndeposit,1,1,5\n"); rec.Code != http.StatusOK {
		t.Fatalf("second ingest failed: %d", rec.Code)
	}

	accounts := h.engine.Snapshot()
	if len(accounts) != 1 {
		t.Fatalf("expected 1 account, got %d", len(accounts))
	}
	if got := accounts[0].Available.StringFixed(4); got != "3.0000" {
		t.Fatalf("expected available 3.0000 after duplicate deposit was rejected, got %s", got)
	}
}

func TestEngineHandler_IngestMissingHeader(t *testing.T) {
	h, _ := newTestEngineHandler(t, 0)

	rec := ingest(t, h, "deposit,1,1,1.0\n")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}

	var resp dto.ErrorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode error: %v", err)
	}
	if resp.Error != "ingest failed" {
		t.Fatalf("unexpected error response: %+v", resp)
	}
}

func TestEngineHandler_IngestBodyTooLarge(t *testing.T) {
	h, _ := newTestEngineHandler(t, 64)

	var body strings.Builder
	body.WriteString("type,client,tx,amount\n")
	for i := 1; i <= 20; i++ {
		fmt.Fprintf(&body, "deposit,1,%d,1.0\n", i)
	}

	rec := ingest(t, h, body.String())
	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected 413, got %d", rec.Code)
	}

	var resp dto.IngestErrorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode error: %v", err)
	}
	if resp.Error != "ingest failed" || resp.Stats.Applied == 0 {
		t.Fatalf("expected partial stats in error response, got %+v", resp)
	}

	accounts := h.engine.Snapshot()
	if len(accounts) != 1 || accounts[0].Available.IntPart() != int64(resp.Stats.Applied) {
		t.Fatalf("expected the reported rows to be applied, got %+v", accounts)
	}
}

func TestEngineHandler_AccountsJSON(t *testing.T) {
	h, _ := newTestEngineHandler(t, 0)
	ingest(t, h, ingestBody)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/accounts", nil)
	rec := httptest.NewRecorder()
	h.Accounts(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var accounts []dto.AccountResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &accounts); err != nil {
		t.Fatalf("failed to decode accounts: %v", err)
	}
	want := []dto.AccountResponse{
		{Client: 1, Available: "1.5000", Held: "0.0000", Total: "1.5000"},
		{Client: 2, Available: "2.0000", Held: "0.0000", Total: "2.0000"},
	}
	if len(accounts) != len(want) {
		t.Fatalf("expected %d accounts, got %+v", len(want), accounts)
	}
	for i := range want {
		if accounts[i] != want[i] {
			t.Fatalf("account %d: expected %+v, got %+v", i, want[i], accounts[i])
		}
	}
}

func TestEngineHandler_AccountsCSV(t *testing.T) {
	h, _ := newTestEngineHandler(t, 0)
	ingest(t, h, ingestBody)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/accounts", nil)
	req.Header.Set("Accept", "application/json;q=0.5, text/csv")
	rec := httptest.NewRecorder()
	h.Accounts(rec, req)

	if ct := rec.Header().Get("Content-Type"); ct != contentTypeCSV {
		t.Fatalf("expected text/csv, got %s", ct)
	}
	want := "client,available,held,total,locked\n" +
		"1,1.5000,0.0000,1.5000,false\n" +
		"2,2.0000,0.0000,2.0000,false\n"
	if rec.Body.String() != want {
		t.Fatalf("unexpected csv:\n%s", rec.Body.String())
	}
}

func TestEngineHandler_Info(t *testing.T) {
	h, _ := newTestEngineHandler(t, 0)
	ingest(t, h, ingestBody)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/engine", nil)
	rec := httptest.NewRecorder()
	h.Info(rec, req)

	var info usecase.EngineInfo
	if err := json.Unmarshal(rec.Body.Bytes(), &info); err != nil {
		t.Fatalf("failed to decode info: %v", err)
	}
	if info.Kind != usecase.KindStandard || !info.Concurrent || info.MemoryBounded {
		t.Fatalf("unexpected info: %+v", info)
	}
	if info.AccountCount != 2 {
		t.Fatalf("expected 2 accounts, got %d", info.AccountCount)
	}
}

func TestWantsCSV(t *testing.T) {
	tests := []struct {
		accept string
		want   bool
	}{
		{"", false},
		{"application/json", false},
		{"text/csv", true},
		{"text/csv; charset=utf-8", true},
		{"application/json, text/csv;q=0.9", true},
	}

	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Accept", tt.accept)
		if got := wantsCSV(req); got != tt.want {
			t.Fatalf("Accept %q: wantsCSV = %v, want %v", tt.accept, got, tt.want)
		}
	}
}
