package http

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/iho/payengine/internal/adapter/http/handler"
	apimiddleware "github.com/iho/payengine/internal/adapter/http/middleware"
	"github.com/iho/payengine/internal/adapter/repository/memory"
	redisRepo "github.com/iho/payengine/internal/adapter/repository/redis"
	"github.com/iho/payengine/internal/infrastructure/metrics"
	"github.com/iho/payengine/internal/usecase"
)

func newRouterConfig(t *testing.T, opts ...func(*RouterConfig)) RouterConfig {
	t.Helper()
	reg := prometheus.NewRegistry()
	m := metrics.NewWithRegisterer(reg)
	engine := usecase.NewConcurrentEngine(usecase.NewEngine(
		memory.NewAccountRepository(),
		memory.NewTransactionRepository(),
		memory.NewProcessedIDSet(),
		usecase.WithMetrics(m),
	))

	cfg := RouterConfig{
		EngineHandler: handler.NewEngineHandler(engine, zerolog.Nop(), m, 1<<20),
		HealthHandler: handler.NewHealthHandler(nil, nil),
		Logger:        zerolog.Nop(),
		Metrics:       m,
		Gatherer:      reg,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

func TestNewRouter_HealthEndpointAvailable(t *testing.T) {
	router := NewRouter(newRouterConfig(t))

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected /health to return 200, got %d", rec.Code)
	}
}

func TestNewRouter_ReadinessWithRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	router := NewRouter(newRouterConfig(t, func(cfg *RouterConfig) {
		cfg.HealthHandler = handler.NewHealthHandler(nil, client)
	}))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected ready, got %d: %s", rec.Code, rec.Body.String())
	}

	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to decode readiness: %v", err)
	}
	if body["redis"] != "ok" || body["postgres"] != "disabled" {
		t.Fatalf("unexpected readiness body: %+v", body)
	}

	mr.Close()
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 once redis is gone, got %d", rec.Code)
	}
}

func TestNewRouter_IngestThenReadAccounts(t *testing.T) {
	router := NewRouter(newRouterConfig(t))

	body := "type,client,tx,amount\ndeposit,2,1,3.0\ndeposit,1,2,1.25\ndispute,1,2,\n"
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/transactions", strings.NewReader(body)))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected ingest to succeed, got %d: %s", rec.Code, rec.Body.String())
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/accounts", nil)
	req.Header.Set("Accept", "text/csv")
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	want := "client,available,held,total,locked\n" +
		"1,0.0000,1.2500,1.2500,false\n" +
		"2,3.0000,0.0000,3.0000,false\n"
	if rec.Body.String() != want {
		t.Fatalf("unexpected accounts csv:\n%s", rec.Body.String())
	}
}

func TestNewRouter_IdempotentIngest(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	router := NewRouter(newRouterConfig(t, func(cfg *RouterConfig) {
		cfg.IdempotencyStore = redisRepo.NewIdempotencyStore(client)
		cfg.IdempotencyTTL = time.Minute
	}))

	post := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/transactions",
			strings.NewReader("type,client,tx,amount\ndeposit,1,1,2.0\n"))
		req.Header.Set(apimiddleware.IdempotencyKeyHeader, "upload-1")
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		return rec
	}

	first := post()
	if first.Code != http.StatusOK || first.Header().Get(apimiddleware.IdempotencyReplayHeader) != "" {
		t.Fatalf("unexpected first response: %d %v", first.Code, first.Header())
	}

	second := post()
	if second.Header().Get(apimiddleware.IdempotencyReplayHeader) != "true" {
		t.Fatalf("expected second upload to be replayed")
	}
	if second.Body.String() != first.Body.String() {
		t.Fatalf("expected identical stats, got %s then %s", first.Body.String(), second.Body.String())
	}

	var stats usecase.RunStats
	if err := json.Unmarshal(second.Body.Bytes(), &stats); err != nil {
		t.Fatalf("failed to decode stats: %v", err)
	}
	if stats.Applied != 1 || stats.Rejected != 0 {
		t.Fatalf("expected replay of the first run, got %+v", stats)
	}
}

func TestNewRouter_MetricsEndpoint(t *testing.T) {
	router := NewRouter(newRouterConfig(t))

	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/v1/engine", nil))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected /metrics to return 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `payengine_http_requests_total{method="GET",path="/api/v1/engine",status="200"} 1`) {
		t.Fatalf("expected request counter in metrics output:\n%s", rec.Body.String())
	}
}

func TestNewRouter_RegistersKeyRoutes(t *testing.T) {
	router := NewRouter(newRouterConfig(t))

	chiRoutes, ok := router.(chi.Routes)
	if !ok {
		t.Fatal("router does not implement chi.Routes")
	}

	expected := map[string]bool{
		"GET /health":               false,
		"GET /ready":                false,
		"POST /api/v1/transactions": false,
		"GET /api/v1/accounts":      false,
		"GET /api/v1/engine":        false,
	}

	err := chi.Walk(chiRoutes, func(method, route string, _ http.Handler, _ ...func(http.Handler) http.Handler) error {
		key := method + " " + route
		if _, ok := expected[key]; ok {
			expected[key] = true
		}
		return nil
	})
	if err != nil {
		t.Fatalf("walk failed: %v", err)
	}

	for route, seen := range expected {
		if !seen {
			t.Fatalf("expected route %s to be registered", route)
		}
	}
}
