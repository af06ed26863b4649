package server

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"testing"
	"time"

	"mercator-hq/custodian/pkg/config"
	"mercator-hq/custodian/pkg/server/middleware"
)

func testConfig() *config.ServerConfig {
	return &config.ServerConfig{
		ListenAddress:   "127.0.0.1:0",
		ReadTimeout:     5 * time.Second,
		WriteTimeout:    5 * time.Second,
		ShutdownTimeout: 5 * time.Second,
	}
}

// TestServer_StartAndShutdown tests serving a request and stopping on cancel.
func TestServer_StartAndShutdown(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /ping", func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, "pong")
	})
	s := New(testConfig(), mux)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Start(ctx) }()

	resp, err := http.Get(fmt.Sprintf("http://%s/ping", s.Addr()))
	if err != nil {
		t.Fatalf("GET failed: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if string(body) != "pong" {
		t.Errorf("Expected pong, got %q", body)
	}
	if resp.Header.Get(middleware.RequestIDHeader) == "" {
		t.Error("Expected request id header from middleware chain")
	}
	if !s.IsRunning() {
		t.Error("Expected server to be running")
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Start() returned %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Server did not stop")
	}
	if s.IsRunning() {
		t.Error("Expected server to be stopped")
	}
}

func TestServer_ListenError(t *testing.T) {
	cfg := testConfig()
	cfg.ListenAddress = "256.0.0.1:bad"
	if err := New(cfg, http.NewServeMux()).Start(context.Background()); err == nil {
		t.Fatal("Expected listen error")
	}
}
