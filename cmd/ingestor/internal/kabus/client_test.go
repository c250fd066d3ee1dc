package kabus_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"

	"github.com/takuya-f/kabu-recorder/cmd/ingestor/internal/kabus"
)

func TestClient_Token(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/kabusapi/token" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}

		var body map[string]string
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("decode body: %v", err)
		}
		if body["APIPassword"] != "secret" {
			t.Errorf("APIPassword = %q, want secret", body["APIPassword"])
		}

		json.NewEncoder(w).Encode(map[string]string{"Token": "tok-123"})
	}))
	defer server.Close()

	c := kabus.NewClient(server.URL+"/kabusapi", zap.NewNop())
	token, err := c.Token(context.Background(), "secret")
	if err != nil {
		t.Fatalf("Token: %v", err)
	}
	if token != "tok-123" {
		t.Errorf("token = %q, want tok-123", token)
	}
}

func TestClient_TokenRejected(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"Code":4001007,"Message":"bad password"}`, http.StatusUnauthorized)
	}))
	defer server.Close()

	c := kabus.NewClient(server.URL, zap.NewNop())
	if _, err := c.Token(context.Background(), "wrong"); err == nil {
		t.Error("expected error for rejected password")
	}
}

func TestClient_RegisterFlow(t *testing.T) {
	var gotUnregister bool
	var gotSymbols []map[string]any

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-API-KEY") != "tok-123" {
			t.Errorf("missing API key header on %s", r.URL.Path)
		}
		switch {
		case r.Method == http.MethodPut && r.URL.Path == "/unregister/all":
			gotUnregister = true
		case r.Method == http.MethodPut && r.URL.Path == "/register":
			var body map[string][]map[string]any
			json.NewDecoder(r.Body).Decode(&body)
			gotSymbols = body["Symbols"]
		default:
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		w.Write([]byte(`{}`))
	}))
	defer server.Close()

	c := kabus.NewClient(server.URL, zap.NewNop())
	ctx := context.Background()

	if err := c.UnregisterAll(ctx, "tok-123"); err != nil {
		t.Fatalf("UnregisterAll: %v", err)
	}
	err := c.Register(ctx, "tok-123", []kabus.RegisterSymbol{
		{Symbol: "6537", Exchange: 1},
		{Symbol: "7049", Exchange: 1},
	})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}

	if !gotUnregister {
		t.Error("unregister/all was never called")
	}
	if len(gotSymbols) != 2 || gotSymbols[0]["Symbol"] != "6537" {
		t.Errorf("register payload = %v", gotSymbols)
	}
}
