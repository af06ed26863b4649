package tenant

import (
	"context"
	"fmt"
	"log/slog"
)

// SettingsError wraps a failure to read an organization's settings.
type SettingsError struct {
	OrgID string
	Cause error
}

// Error implements the error interface.
func (e *SettingsError) Error() string {
	return fmt.Sprintf("load settings [org_id=%s]: %v", e.OrgID, e.Cause)
}

// Unwrap returns the underlying cause error.
func (e *SettingsError) Unwrap() error {
	return e.Cause
}

// Loader merges stored settings rows over defaults.
type Loader struct {
	reader   SettingsReader
	defaults *Settings
	logger   *slog.Logger
}

// NewLoader creates a loader. A nil defaults uses DefaultSettings.
func NewLoader(reader SettingsReader, defaults *Settings) *Loader {
	if defaults == nil {
		defaults = DefaultSettings()
	}
	return &Loader{
		reader:   reader,
		defaults: defaults.Clone(),
		logger:   slog.Default().With("component", "tenant.settings"),
	}
}

// Load returns the effective settings of orgID.
//
// Only recognized keys overwrite the defaults. Unknown keys are dropped, and a
// recognized key whose value does not decode keeps its default; neither is an
// error. Read failures are returned as *SettingsError.
func (l *Loader) Load(ctx context.Context, orgID string) (*Settings, error) {
	rows, err := l.reader.ListSettings(ctx, orgID)
	if err != nil {
		return nil, &SettingsError{OrgID: orgID, Cause: err}
	}

	s := l.defaults.Clone()
	for _, row := range rows {
		if !IsKnownKey(row.Key) {
			continue
		}
		if err := apply(s, row.Key, row.Value); err != nil {
			l.logger.Warn("ignoring malformed setting",
				"org_id", orgID,
				"key", row.Key,
				"error", err,
			)
		}
	}
	return s, nil
}
