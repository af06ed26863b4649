package logging

import (
	"log/slog"
	"strings"
)

// sensitiveKeys are substrings of attribute keys whose values are never logged.
var sensitiveKeys = []string{
	"password", "passwd",
	"secret", "token",
	"authorization",
	"dsn",
	"private_key",
}

// isSensitiveKey checks if a key name indicates sensitive data.
func isSensitiveKey(key string) bool {
	lowerKey := strings.ToLower(key)
	for _, sensitive := range sensitiveKeys {
		if strings.Contains(lowerKey, sensitive) {
			return true
		}
	}
	return false
}

// redactAttr is a slog ReplaceAttr hook that masks sensitive values. Groups
// are visited by slog itself, so only leaf attributes reach it.
func redactAttr(_ []string, a slog.Attr) slog.Attr {
	if a.Value.Kind() == slog.KindGroup || !isSensitiveKey(a.Key) {
		return a
	}
	return slog.String(a.Key, redactValue(a.Value.String()))
}

// redactValue keeps a short prefix of long values for debugging.
func redactValue(v string) string {
	if v == "" {
		return ""
	}
	if len(v) <= 8 {
		return "***"
	}
	return v[:2] + "***"
}
