package infrastructure

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/krobus00/dashboard-sync/internal/config"
)

func TestHTTPServer_Probes(t *testing.T) {
	var notReady error = errors.New("waiting for first snapshot")

	server := NewHTTPServer(HTTPServerConfig{Readiness: func() error { return notReady }}, nil)

	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 before ready, got %d", rec.Code)
	}
	if _, err := uuid.Parse(rec.Header().Get("X-Request-Id")); err != nil {
		t.Fatalf("expected a generated uuid request id, got %q", rec.Header().Get("X-Request-Id"))
	}
	if rec.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Fatalf("expected nosniff header, got %v", rec.Header())
	}

	notReady = nil
	rec = httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 once ready, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("X-Request-Id", "abc")
	server.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK || rec.Header().Get("X-Request-Id") != "abc" {
		t.Fatalf("unexpected healthz response: %d %v", rec.Code, rec.Header())
	}
}

func TestHTTPServer_RecoversPanics(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/boom", func(http.ResponseWriter, *http.Request) {
		panic("boom")
	})

	rec := httptest.NewRecorder()
	NewHTTPServer(HTTPServerConfig{}, mux).Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/boom", nil))
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500 after panic, got %d", rec.Code)
	}
}

func TestHTTPServer_ShutdownWithoutDeadline(t *testing.T) {
	server := NewHTTPServer(HTTPServerConfig{Addr: "127.0.0.1:0"}, nil)
	if err := server.Shutdown(context.Background()); err != nil {
		t.Fatalf("unexpected shutdown error: %v", err)
	}
}

func TestResolvePortAddr(t *testing.T) {
	original := config.Env
	t.Cleanup(func() { config.Env = original })

	config.Env = &config.EnvConfig{Port: map[string]string{"http": "8081", "grpc": "127.0.0.1:9091"}}

	if got := resolvePortAddr("http", defaultHTTPAddr); got != ":8081" {
		t.Errorf("expected :8081, got %s", got)
	}
	if got := resolvePortAddr("grpc", defaultGRPCAddr); got != "127.0.0.1:9091" {
		t.Errorf("expected host:port passthrough, got %s", got)
	}
	if got := resolvePortAddr("metrics", ":2112"); got != ":2112" {
		t.Errorf("expected fallback, got %s", got)
	}
}
