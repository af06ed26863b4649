package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"mercator-hq/custodian/pkg/config"
)

func decode(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var m map[string]any
	if err := json.Unmarshal(buf.Bytes(), &m); err != nil {
		t.Fatalf("Failed to decode %q: %v", buf.String(), err)
	}
	return m
}

func TestNew_Levels(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(config.LoggingConfig{Level: "warn", Format: "json"}, &buf)
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}

	logger.Info("dropped")
	if buf.Len() != 0 {
		t.Errorf("Expected info to be filtered, got %q", buf.String())
	}
	logger.Warn("kept")
	if got := decode(t, &buf)["msg"]; got != "kept" {
		t.Errorf("Expected msg kept, got %v", got)
	}
}

func TestNew_Invalid(t *testing.T) {
	if _, err := New(config.LoggingConfig{Level: "trace"}, nil); err == nil {
		t.Error("Expected error for unknown level")
	}
	if _, err := New(config.LoggingConfig{Format: "xml"}, nil); err == nil {
		t.Error("Expected error for unknown format")
	}
}

func TestNew_TextFormat(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(config.LoggingConfig{Level: "info", Format: "text"}, &buf)
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	logger.Info("hello", "component", "test")
	if !strings.Contains(buf.String(), "component=test") {
		t.Errorf("Unexpected text output %q", buf.String())
	}
}

// TestRedaction tests that sensitive keys are masked and others are not.
func TestRedaction(t *testing.T) {
	var buf bytes.Buffer
	logger, _ := New(config.LoggingConfig{Level: "info", Format: "json"}, &buf)

	logger.Info("config",
		"trigger_secret", "super-secret-value",
		"database_dsn", "postgres://user:pw@db/app",
		"short_token", "abc",
		"org_id", "org-1",
	)

	m := decode(t, &buf)
	if m["trigger_secret"] != "su***" {
		t.Errorf("Expected secret masked, got %v", m["trigger_secret"])
	}
	if strings.Contains(m["database_dsn"].(string), "pw") {
		t.Errorf("Expected DSN masked, got %v", m["database_dsn"])
	}
	if m["short_token"] != "***" {
		t.Errorf("Expected short token masked, got %v", m["short_token"])
	}
	if m["org_id"] != "org-1" {
		t.Errorf("Expected org_id untouched, got %v", m["org_id"])
	}
}

func TestContextRequestID(t *testing.T) {
	var buf bytes.Buffer
	logger, _ := New(config.LoggingConfig{Level: "info", Format: "json"}, &buf)

	ctx := WithRequestID(context.Background(), "req-123")
	if GetRequestID(ctx) != "req-123" {
		t.Fatal("GetRequestID() did not return stored id")
	}

	logger.With("component", "test").InfoContext(ctx, "handled")
	m := decode(t, &buf)
	if m["request_id"] != "req-123" {
		t.Errorf("Expected request_id req-123, got %v", m["request_id"])
	}
	if m["component"] != "test" {
		t.Errorf("Expected component attribute to survive With, got %v", m["component"])
	}

	if GetRequestID(context.Background()) != "" {
		t.Error("Expected empty request id")
	}
}
