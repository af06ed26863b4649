package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"mercator-hq/custodian/pkg/store/memory"
)

func TestChecker_Readiness(t *testing.T) {
	tests := []struct {
		name   string
		checks map[string]CheckFunc
		want   string
	}{
		{"no checks", nil, StatusReady},
		{"all ok", map[string]CheckFunc{
			"database": PingCheck(memory.New()),
		}, StatusReady},
		{"one failing", map[string]CheckFunc{
			"database": PingCheck(memory.New()),
			"other":    func(context.Context) error { return errors.New("down") },
		}, StatusDegraded},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := New(time.Second)
			for name, check := range tt.checks {
				c.Register(name, check)
			}
			report := c.Readiness(context.Background())
			if report.Status != tt.want {
				t.Errorf("Expected %s, got %s (%+v)", tt.want, report.Status, report.Checks)
			}
			if len(report.Checks) != len(tt.checks) {
				t.Errorf("Expected %d results, got %d", len(tt.checks), len(report.Checks))
			}
		})
	}
}

// TestChecker_Timeout tests that a hanging check is reported unhealthy.
func TestChecker_Timeout(t *testing.T) {
	c := New(20 * time.Millisecond)
	block := make(chan struct{})
	defer close(block)
	c.Register("slow", func(context.Context) error {
		<-block
		return nil
	})

	report := c.Readiness(context.Background())
	if report.Checks["slow"].Status != StatusUnhealthy {
		t.Errorf("Expected slow check to time out, got %+v", report.Checks["slow"])
	}
}

func TestHandlers(t *testing.T) {
	c := New(time.Second)
	c.Register("database", func(context.Context) error { return errors.New("connection refused") })

	rec := httptest.NewRecorder()
	c.LivenessHandler()(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("Expected liveness 200, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	c.ReadinessHandler()(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("Expected readiness 503, got %d", rec.Code)
	}
	var report Report
	if err := json.NewDecoder(rec.Body).Decode(&report); err != nil {
		t.Fatalf("Decode() failed: %v", err)
	}
	if report.Checks["database"].Message != "connection refused" {
		t.Errorf("Unexpected report %+v", report)
	}

	rec = httptest.NewRecorder()
	c.LivenessHandler()(rec, httptest.NewRequest(http.MethodPost, "/health", nil))
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("Expected 405 for POST, got %d", rec.Code)
	}
}
