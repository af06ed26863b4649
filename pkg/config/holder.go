package config

import (
	"fmt"
	"sync/atomic"
)

// Holder publishes the current configuration to concurrent readers.
// Readers always see a complete, validated configuration; a failed reload
// leaves the previous one in place.
type Holder struct {
	path    string
	current atomic.Pointer[Config]
}

// NewHolder returns a holder serving cfg. path is re-read by Reload; an
// empty path makes Reload re-apply environment overrides to the defaults.
func NewHolder(path string, cfg *Config) *Holder {
	h := &Holder{path: path}
	h.current.Store(cfg)
	return h
}

// Load returns the current configuration. Callers must not modify it.
func (h *Holder) Load() *Config {
	return h.current.Load()
}

// Store replaces the current configuration after validating it.
func (h *Holder) Store(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("configuration cannot be nil")
	}
	if err := Validate(cfg); err != nil {
		return err
	}
	h.current.Store(cfg)
	return nil
}

// Path returns the file the holder reloads from.
func (h *Holder) Path() string {
	return h.path
}

// Reload re-reads the configuration file with environment overrides and
// swaps it in when valid.
func (h *Holder) Reload() error {
	cfg, err := LoadConfigWithEnvOverrides(h.path)
	if err != nil {
		return fmt.Errorf("failed to reload configuration: %w", err)
	}
	h.current.Store(cfg)
	return nil
}
