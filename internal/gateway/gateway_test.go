// ABOUTME: Tests for Gateway wiring and lifecycle
// ABOUTME: Drives the real HTTP handler against a fake Calibre server and a temp Anx directory

package gateway

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/2389/shelf-gateway/internal/config"
	"github.com/2389/shelf-gateway/internal/store"
)

// fakeCalibre answers the two AJAX calls a search needs.
func fakeCalibre(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/ajax/search", func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"total_num": 1, "book_ids": [7]}`)
	})
	mux.HandleFunc("/ajax/books", func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"7": {"title": "Dune", "authors": ["Frank Herbert"], "formats": ["EPUB"]}}`)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

// testConfig creates a minimal config with an available port.
func testConfig(t *testing.T) *config.Config {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to find available HTTP port: %v", err)
	}
	httpAddr := ln.Addr().String()
	ln.Close()

	dir := t.TempDir()
	return &config.Config{
		Server:   config.ServerConfig{HTTPAddr: httpAddr},
		Database: config.DatabaseConfig{Path: filepath.Join(dir, "shelf.db")},
		MCP: config.MCPConfig{
			ServerName:      "test-shelf",
			ServerVersion:   "9.9.9",
			ProtocolVersion: config.DefaultProtocolVersion,
			MaxBodyBytes:    config.DefaultMaxBodyBytes,
		},
		Calibre: config.CalibreConfig{URL: fakeCalibre(t).URL, Timeout: 5 * time.Second},
		Anx:     config.AnxConfig{DataDir: filepath.Join(dir, "anx")},
	}
}

// testLogger creates a silent logger for tests.
func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newTestGateway returns a gateway plus a valid token for user "alice".
func newTestGateway(t *testing.T) (*Gateway, string) {
	t.Helper()

	gw, err := New(testConfig(t), testLogger())
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	t.Cleanup(func() { _ = gw.Shutdown(context.Background()) })

	ctx := context.Background()
	user := &store.User{Username: "alice"}
	if err := gw.Store().CreateUser(ctx, user); err != nil {
		t.Fatalf("CreateUser() failed: %v", err)
	}
	tok := &store.MCPToken{UserID: user.ID, Name: "test"}
	if err := gw.Store().CreateMCPToken(ctx, tok); err != nil {
		t.Fatalf("CreateMCPToken() failed: %v", err)
	}
	return gw, tok.Token
}

func postMCP(t *testing.T, h http.Handler, token, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	target := "/mcp"
	if token != "" {
		target += "?token=" + token
	}
	req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var decoded map[string]any
	if rec.Body.Len() > 0 {
		if err := json.Unmarshal(rec.Body.Bytes(), &decoded); err != nil {
			t.Fatalf("response is not JSON: %v: %s", err, rec.Body.String())
		}
	}
	return rec, decoded
}

func TestGatewayNew(t *testing.T) {
	gw, _ := newTestGateway(t)

	if gw.store == nil {
		t.Error("store should not be nil")
	}
	if gw.calibre == nil || gw.anx == nil {
		t.Error("libraries should not be nil")
	}
	if got := gw.registry.Len(); got != 14 {
		t.Errorf("registry has %d tools, want 14", got)
	}
}

func TestGatewayNew_RequiresCalibreURL(t *testing.T) {
	cfg := testConfig(t)
	cfg.Calibre.URL = ""

	if _, err := New(cfg, testLogger()); err == nil || !strings.Contains(err.Error(), "calibre.url") {
		t.Errorf("New() error = %v, want calibre.url error", err)
	}
}

func TestHealthEndpoint(t *testing.T) {
	gw, _ := newTestGateway(t)

	rec := httptest.NewRecorder()
	gw.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
	if rec.Body.String() != "OK" {
		t.Errorf("body = %q, want OK", rec.Body.String())
	}
}

func TestMCP_RequiresToken(t *testing.T) {
	gw, _ := newTestGateway(t)

	rec, body := postMCP(t, gw.Handler(), "", `{"jsonrpc":"2.0","id":1,"method":"ping"}`)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
	if body["error"] != "Missing token" {
		t.Errorf("error = %v, want Missing token", body["error"])
	}

	rec, body = postMCP(t, gw.Handler(), "not-a-token", `{"jsonrpc":"2.0","id":1,"method":"ping"}`)
	if rec.Code != http.StatusForbidden {
		t.Errorf("status = %d, want 403", rec.Code)
	}
	if body["error"] != "Invalid token" {
		t.Errorf("error = %v, want Invalid token", body["error"])
	}
}

func TestMCP_Initialize(t *testing.T) {
	gw, token := newTestGateway(t)

	rec, body := postMCP(t, gw.Handler(), token, `{"jsonrpc":"2.0","id":1,"method":"initialize"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}
	result, _ := body["result"].(map[string]any)
	info, _ := result["serverInfo"].(map[string]any)
	if info["name"] != "test-shelf" || info["version"] != "9.9.9" {
		t.Errorf("serverInfo = %v", info)
	}
}

func TestMCP_ToolsCallEndToEnd(t *testing.T) {
	gw, token := newTestGateway(t)

	tests := []struct {
		name     string
		call     string
		contains string
	}{
		{
			name:     "calibre search",
			call:     `{"name":"search_calibre_books","arguments":{"search_expression":"title:Dune"}}`,
			contains: "Dune",
		},
		{
			name:     "empty anx library",
			call:     `{"name":"get_recent_books","arguments":{"library_type":"anx"}}`,
			contains: "[]",
		},
		{
			name:     "kindle without address",
			call:     `{"name":"send_calibre_book_to_kindle","arguments":{"book_id":7}}`,
			contains: `"success": false`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, body := postMCP(t, gw.Handler(), token,
				`{"jsonrpc":"2.0","id":"c1","method":"tools/call","params":`+tt.call+`}`)
			if rec.Code != http.StatusOK {
				t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
			}
			result, _ := body["result"].(map[string]any)
			if result["isError"] != false {
				t.Errorf("isError = %v, want false: %s", result["isError"], rec.Body.String())
			}
			content, _ := result["content"].([]any)
			if len(content) != 1 {
				t.Fatalf("content = %v, want one item", content)
			}
			text, _ := content[0].(map[string]any)["text"].(string)
			if !strings.Contains(text, tt.contains) {
				t.Errorf("text = %q, want it to contain %q", text, tt.contains)
			}
		})
	}
}

func TestGatewayRunAndShutdown(t *testing.T) {
	gw, token := newTestGateway(t)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		errCh <- gw.Run(ctx)
	}()

	url := "http://" + gw.config.Server.HTTPAddr
	var resp *http.Response
	var err error
	for range 50 {
		resp, err = http.Get(url + "/health")
		if err == nil {
			break
		}
		time.Sleep(20 * time.Millisecond)
	}
	if err != nil {
		t.Fatalf("server never came up: %v", err)
	}
	resp.Body.Close()

	resp, err = http.Post(url+"/mcp?token="+token, "application/json",
		strings.NewReader(`{"jsonrpc":"2.0","id":1,"method":"tools/list"}`))
	if err != nil {
		t.Fatalf("POST /mcp failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("tools/list status = %d, want 200", resp.StatusCode)
	}

	cancel()

	select {
	case err := <-errCh:
		if err != nil {
			t.Errorf("Run() returned unexpected error: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Error("gateway did not shutdown in time")
	}
}
