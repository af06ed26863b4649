package cli

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"mercator-hq/custodian/pkg/retention"
)

// TestConfigErrorMessage tests that the offending field leads the message.
func TestConfigErrorMessage(t *testing.T) {
	err := NewConfigError("retentionDays", "must be between 1 and 3650")

	want := "invalid retentionDays: must be between 1 and 3650"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
}

// TestCommandErrorWrapsPurgeError tests that a tenant failure stays reachable
// through the command wrapper.
func TestCommandErrorWrapsPurgeError(t *testing.T) {
	purgeErr := &retention.PurgeError{OrgID: "org-1", Collection: "messages", Cause: context.DeadlineExceeded}
	err := NewCommandError("purge", purgeErr)

	var got *retention.PurgeError
	if !errors.As(err, &got) {
		t.Fatal("errors.As() did not find the PurgeError")
	}
	if got.OrgID != "org-1" {
		t.Errorf("OrgID = %q, want %q", got.OrgID, "org-1")
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Error("errors.Is() should reach the purge cause")
	}
	if want := "purge: " + purgeErr.Error(); err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
}

func TestPartialErrorMessage(t *testing.T) {
	err := &PartialError{Failed: 2, Total: 5}
	if want := "2 of 5 tenants failed"; err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
}

// TestExitCode tests the mapping from command errors to exit codes.
func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, ExitOK},
		{"config", NewConfigError("database.driver", "unsupported"), ExitConfig},
		{"wrapped config", fmt.Errorf("load: %w", NewConfigError("config", "missing")), ExitConfig},
		{"partial", NewCommandError("purge", &PartialError{Failed: 1, Total: 3}), ExitPartial},
		{"purge failure", NewCommandError("purge", &retention.PurgeError{OrgID: "o", Collection: "audit", Cause: errors.New("boom")}), ExitFailure},
		{"plain", errors.New("boom"), ExitFailure},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ExitCode(tt.err); got != tt.want {
				t.Errorf("ExitCode() = %d, want %d", got, tt.want)
			}
		})
	}
}
