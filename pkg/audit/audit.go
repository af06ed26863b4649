// Package audit defines the audit record custodian writes after every
// completed retention run and the sink interface storage backends implement.
package audit

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Entry is a single audit log row.
type Entry struct {
	// ID is assigned by NewEntry; sinks keep a non-empty ID as given.
	ID string

	// OrgID is the tenant the entry belongs to.
	OrgID string

	// ActorID is the user that caused the action. Nil for system and
	// scheduler-triggered actions.
	ActorID *string

	Action     string
	TargetType string
	TargetID   string

	// Meta is stored as JSON.
	Meta any

	CreatedAt time.Time
}

// Sink persists audit entries.
type Sink interface {
	// Insert writes one entry. Entries are immutable once written.
	Insert(ctx context.Context, entry Entry) error
}

// NewEntry returns an entry with a fresh ID and the given creation time.
func NewEntry(orgID string, actorID *string, action, targetType, targetID string, meta any, at time.Time) Entry {
	return Entry{
		ID:         uuid.NewString(),
		OrgID:      orgID,
		ActorID:    actorID,
		Action:     action,
		TargetType: targetType,
		TargetID:   targetID,
		Meta:       meta,
		CreatedAt:  at.UTC(),
	}
}
