package retention

import (
	"errors"
	"fmt"
)

// ErrNoStore is returned when a component was built without a store.
var ErrNoStore = errors.New("retention: no store configured")

// StorageError represents an error from a storage backend.
type StorageError struct {
	Backend   string // Storage backend type ("postgres", "sqlite", "memory")
	Operation string // Operation that failed ("list", "delete", "insert_audit", ...)
	Cause     error  // Underlying error
}

// Error implements the error interface.
func (e *StorageError) Error() string {
	return fmt.Sprintf("storage error [backend=%s, operation=%s]: %v", e.Backend, e.Operation, e.Cause)
}

// Unwrap returns the underlying cause error.
func (e *StorageError) Unwrap() error {
	return e.Cause
}

// NewStorageError creates a new StorageError.
func NewStorageError(backend, operation string, cause error) *StorageError {
	return &StorageError{
		Backend:   backend,
		Operation: operation,
		Cause:     cause,
	}
}

// PurgeError represents a failure that aborted one tenant's run.
type PurgeError struct {
	OrgID      string // Tenant being purged
	Collection string // Collection or step that failed ("settings", "messages", "audit", ...)
	Cause      error  // Underlying error
}

// Error implements the error interface.
func (e *PurgeError) Error() string {
	return fmt.Sprintf("purge failed [org_id=%s, collection=%s]: %v", e.OrgID, e.Collection, e.Cause)
}

// Unwrap returns the underlying cause error.
func (e *PurgeError) Unwrap() error {
	return e.Cause
}

// NewPurgeError creates a new PurgeError.
func NewPurgeError(orgID, collection string, cause error) *PurgeError {
	return &PurgeError{
		OrgID:      orgID,
		Collection: collection,
		Cause:      cause,
	}
}
