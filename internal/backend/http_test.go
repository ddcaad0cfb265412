package backend

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/dinehall/dinehall/gateway/pkg/models"
)

func TestExecuteTool(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/tools/execute" {
			t.Errorf("path = %s", r.URL.Path)
		}
		var req struct {
			Tool    string          `json:"tool"`
			Input   json.RawMessage `json:"input"`
			Context struct {
				TenantID string `json:"tenant_id"`
			} `json:"context"`
		}
		json.NewDecoder(r.Body).Decode(&req)
		if req.Tool != "menu.search" || req.Context.TenantID != "t1" {
			t.Errorf("request = %+v", req)
		}
		json.NewEncoder(w).Encode(map[string]interface{}{
			"result": map[string]interface{}{"items": []string{"margherita"}},
		})
	}))
	defer srv.Close()

	b := NewHTTPBackend(srv.URL)
	out, err := b.ExecuteTool(context.Background(), "menu.search",
		json.RawMessage(`{"query":"pizza"}`), models.ClientContext{TenantID: "t1"})
	if err != nil {
		t.Fatalf("ExecuteTool() error = %v", err)
	}

	var res struct {
		Items []string `json:"items"`
	}
	if err := json.Unmarshal(out, &res); err != nil {
		t.Fatalf("result is not JSON: %v", err)
	}
	if len(res.Items) != 1 {
		t.Errorf("items = %v", res.Items)
	}
}

func TestExecuteTool_BackendErrorField(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"error": "cart not found"})
	}))
	defer srv.Close()

	b := NewHTTPBackend(srv.URL)
	if _, err := b.ExecuteTool(context.Background(), "cart.view", nil, models.ClientContext{}); err == nil {
		t.Error("ExecuteTool() should surface the backend error field")
	}
}

func TestExecuteTool_HTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	b := NewHTTPBackend(srv.URL)
	if _, err := b.ExecuteTool(context.Background(), "menu.search", json.RawMessage(`{}`), models.ClientContext{}); err == nil {
		t.Error("ExecuteTool() should fail on HTTP 502")
	}
}
