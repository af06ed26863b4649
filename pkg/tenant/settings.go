package tenant

import (
	"context"
	"encoding/json"
	"fmt"
	"maps"
)

// Recognized settings keys. Any other key found in storage is ignored.
const (
	KeyModelEnabled  = "modelEnabled"
	KeyRetentionDays = "retentionDays"
	KeyLegalHold     = "legalHold"
)

// Bounds accepted for retentionDays on the write path.
const (
	MinStoredRetentionDays = 1
	MaxStoredRetentionDays = 3650
)

// DefaultRetentionDays applies when a tenant never set retentionDays.
const DefaultRetentionDays = 90

// Settings is the merged view of one organization's configuration.
type Settings struct {
	// ModelEnabled maps provider name to whether the tenant may use it.
	ModelEnabled map[string]bool `json:"modelEnabled"`

	// RetentionDays is the tenant's configured window, before the
	// retention engine applies its floor.
	RetentionDays int `json:"retentionDays"`

	// LegalHold suspends every deletion for the tenant while true.
	LegalHold bool `json:"legalHold"`
}

// DefaultSettings returns the built-in defaults. Provider enablement is a
// deployment concern; callers usually override ModelEnabled from config.
func DefaultSettings() *Settings {
	return &Settings{
		ModelEnabled: map[string]bool{
			"openai": true,
			"gemini": true,
			"claude": true,
		},
		RetentionDays: DefaultRetentionDays,
		LegalHold:     false,
	}
}

// Clone returns a deep copy.
func (s *Settings) Clone() *Settings {
	if s == nil {
		return nil
	}
	c := *s
	c.ModelEnabled = maps.Clone(s.ModelEnabled)
	if c.ModelEnabled == nil {
		c.ModelEnabled = map[string]bool{}
	}
	return &c
}

// Validate checks the settings against the bounds the settings API enforces.
func (s *Settings) Validate() error {
	if s.RetentionDays < MinStoredRetentionDays || s.RetentionDays > MaxStoredRetentionDays {
		return fmt.Errorf("retentionDays must be between %d and %d, got %d",
			MinStoredRetentionDays, MaxStoredRetentionDays, s.RetentionDays)
	}
	return nil
}

// Row is one stored (org_id, key) setting.
type Row struct {
	Key   string
	Value json.RawMessage
}

// SettingsReader reads the raw settings rows of an organization.
type SettingsReader interface {
	ListSettings(ctx context.Context, orgID string) ([]Row, error)
}

// SettingsWriter upserts one setting row.
type SettingsWriter interface {
	PutSetting(ctx context.Context, orgID, key string, value json.RawMessage) error
}

// IsKnownKey reports whether key is one of the recognized settings keys.
func IsKnownKey(key string) bool {
	switch key {
	case KeyModelEnabled, KeyRetentionDays, KeyLegalHold:
		return true
	}
	return false
}

// ValidateValue decodes value for key and applies the write-path bounds.
func ValidateValue(key string, value json.RawMessage) error {
	if !IsKnownKey(key) {
		return fmt.Errorf("unknown settings key %q", key)
	}
	s := DefaultSettings()
	if err := apply(s, key, value); err != nil {
		return err
	}
	return s.Validate()
}

// apply decodes value into the field named by key.
func apply(s *Settings, key string, value json.RawMessage) error {
	switch key {
	case KeyModelEnabled:
		var m map[string]bool
		if err := json.Unmarshal(value, &m); err != nil {
			return fmt.Errorf("decode %s: %w", key, err)
		}
		if m == nil {
			return fmt.Errorf("decode %s: null value", key)
		}
		s.ModelEnabled = m
	case KeyRetentionDays:
		var f float64
		if err := json.Unmarshal(value, &f); err != nil {
			return fmt.Errorf("decode %s: %w", key, err)
		}
		s.RetentionDays = floorDays(f)
	case KeyLegalHold:
		var b bool
		if err := json.Unmarshal(value, &b); err != nil {
			return fmt.Errorf("decode %s: %w", key, err)
		}
		s.LegalHold = b
	}
	return nil
}

// floorDays truncates toward negative infinity and clamps to the int range
// a day count can sensibly take.
func floorDays(f float64) int {
	const limit = 1 << 30
	switch {
	case f != f: // NaN
		return 0
	case f >= limit:
		return limit
	case f <= -limit:
		return -limit
	}
	i := int(f)
	if float64(i) > f {
		i--
	}
	return i
}
