package api_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/dinehall/dinehall/gateway/internal/agents"
	"github.com/dinehall/dinehall/gateway/internal/api"
	"github.com/dinehall/dinehall/gateway/internal/api/handlers"
	"github.com/dinehall/dinehall/gateway/internal/config"
	"github.com/dinehall/dinehall/gateway/internal/detect"
	"github.com/dinehall/dinehall/gateway/internal/fence"
	"github.com/dinehall/dinehall/gateway/internal/gateway"
	"github.com/dinehall/dinehall/gateway/internal/incident"
	"github.com/dinehall/dinehall/gateway/internal/limiter"
	"github.com/dinehall/dinehall/gateway/internal/policy"
	"github.com/dinehall/dinehall/gateway/internal/store"
	"github.com/dinehall/dinehall/gateway/internal/tools"
	"github.com/dinehall/dinehall/gateway/pkg/models"
)

type nullBackend struct{}

func (nullBackend) ExecuteTool(_ context.Context, _ string, input json.RawMessage, _ models.ClientContext) (json.RawMessage, error) {
	return json.RawMessage(`{}`), nil
}

func testRouter(t *testing.T) http.Handler {
	t.Helper()

	s := store.NewMemoryStore()
	ledger := incident.NewLedger(s)
	sessions := limiter.NewMemoryControl(600, 100)
	engine := policy.NewEngine(ledger, sessions, nil)
	gw := gateway.New(detect.MustNew(), engine, sessions, ledger, s)

	plugin, err := agents.NewPlugin("test")
	if err != nil {
		t.Fatalf("NewPlugin() error = %v", err)
	}
	registry := tools.NewRegistry(nullBackend{}, fence.New(fence.DefaultConfig()), plugin.Registry())
	gw.RegisterTools(registry)

	h := handlers.New(gw, plugin, registry, ledger, s)
	return api.NewRouter(config.Load(), h)
}

func TestRouter_PreflightBypassesAPIKeyAuth(t *testing.T) {
	t.Setenv("DINEHALL_API_KEYS", "secret-key-1")
	router := testRouter(t)

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/safety/check", nil)
	req.Header.Set("Origin", "https://admin.dinehall.example")
	req.Header.Set("Access-Control-Request-Method", "POST")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code == http.StatusUnauthorized {
		t.Fatalf("preflight OPTIONS got 401; cors must answer before auth")
	}
	if rec.Header().Get("Access-Control-Allow-Origin") == "" {
		t.Error("preflight response missing Access-Control-Allow-Origin")
	}
}

func TestRouter_APIKeyStillEnforcedForRealRequests(t *testing.T) {
	t.Setenv("DINEHALL_API_KEYS", "secret-key-1")
	router := testRouter(t)

	unauth := httptest.NewRequest(http.MethodPost, "/api/v1/safety/check",
		strings.NewReader(`{"text":"hello"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, unauth)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("unauthenticated POST = %d, want 401", rec.Code)
	}

	authed := httptest.NewRequest(http.MethodPost, "/api/v1/safety/check",
		strings.NewReader(`{"text":"hello"}`))
	authed.Header.Set("Authorization", "Bearer secret-key-1")
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, authed)
	if rec.Code != http.StatusOK {
		t.Errorf("authenticated POST = %d, want 200", rec.Code)
	}

	health := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, health)
	if rec.Code != http.StatusOK {
		t.Errorf("GET /health = %d, want 200 without credentials", rec.Code)
	}
}
