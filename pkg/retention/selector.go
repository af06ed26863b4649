package retention

import (
	"context"
	"fmt"
	"time"
)

// Mode selects how a Selector decides which rows are eligible.
type Mode int

const (
	// ModeCutoff selects rows with created_at at or before a cutoff.
	ModeCutoff Mode = iota

	// ModeOrphan selects threads that no message references.
	ModeOrphan
)

// String returns the mode name.
func (m Mode) String() string {
	switch m {
	case ModeCutoff:
		return "cutoff"
	case ModeOrphan:
		return "orphan"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// Selection describes one batch to select.
type Selection struct {
	Table  Table
	OrgID  string
	Mode   Mode
	Cutoff time.Time // ModeCutoff only
	After  *Cursor   // resume strictly after this position; nil starts at the oldest row
	Limit  int
}

// Batch is the result of one selection.
type Batch struct {
	// IDs are the selected row ids, oldest first.
	IDs []string

	// Next is the position to resume from. It is nil only when nothing was
	// examined.
	Next *Cursor

	// Exhausted is true when the store signalled that no rows remain past
	// Next.
	Exhausted bool
}

// Selector finds eligible row ids in keyset order.
type Selector struct {
	store    RowStore
	pageSize int
}

// NewSelector creates a selector reading pageSize rows per store query.
func NewSelector(store RowStore, pageSize int) *Selector {
	if pageSize <= 0 {
		pageSize = DefaultConfig().PageSize
	}
	return &Selector{store: store, pageSize: pageSize}
}

// SelectIDs returns up to sel.Limit eligible ids, querying the store one page
// at a time until the limit is reached or a short page ends the table.
func (s *Selector) SelectIDs(ctx context.Context, sel Selection) (Batch, error) {
	if s.store == nil {
		return Batch{}, ErrNoStore
	}
	if sel.Limit <= 0 {
		return Batch{Next: sel.After}, nil
	}

	switch sel.Mode {
	case ModeCutoff:
		cutoff := sel.Cutoff
		return s.selectPaged(ctx, sel, func(ctx context.Context, q RowQuery) ([]RowRef, error) {
			q.Before = &cutoff
			return s.store.ListRows(ctx, q)
		})
	case ModeOrphan:
		if ol, ok := s.store.(OrphanLister); ok {
			return s.selectPaged(ctx, sel, ol.ListOrphanThreads)
		}
		return s.selectOrphansTwoStep(ctx, sel)
	default:
		return Batch{}, fmt.Errorf("unknown selection mode %s", sel.Mode)
	}
}

// selectPaged fills a batch from a query that only returns eligible rows.
func (s *Selector) selectPaged(ctx context.Context, sel Selection, list func(context.Context, RowQuery) ([]RowRef, error)) (Batch, error) {
	batch := Batch{Next: sel.After, IDs: make([]string, 0, sel.Limit)}

	for len(batch.IDs) < sel.Limit {
		want := min(s.pageSize, sel.Limit-len(batch.IDs))
		rows, err := list(ctx, RowQuery{
			Table: sel.Table,
			OrgID: sel.OrgID,
			After: batch.Next,
			Limit: want,
		})
		if err != nil {
			return Batch{}, err
		}

		for _, r := range rows {
			batch.IDs = append(batch.IDs, r.ID)
		}
		if len(rows) > 0 {
			batch.Next = rows[len(rows)-1].Cursor()
		}
		if len(rows) < want {
			batch.Exhausted = true
			break
		}
	}
	return batch, nil
}

// selectOrphansTwoStep pages through the tenant's threads and drops the ones
// the store reports as referenced by a message.
func (s *Selector) selectOrphansTwoStep(ctx context.Context, sel Selection) (Batch, error) {
	batch := Batch{Next: sel.After, IDs: make([]string, 0, sel.Limit)}

	for len(batch.IDs) < sel.Limit {
		threads, err := s.store.ListRows(ctx, RowQuery{
			Table: TableThreads,
			OrgID: sel.OrgID,
			After: batch.Next,
			Limit: s.pageSize,
		})
		if err != nil {
			return Batch{}, err
		}
		if len(threads) == 0 {
			batch.Exhausted = true
			break
		}

		ids := make([]string, len(threads))
		for i, t := range threads {
			ids[i] = t.ID
		}
		used, err := s.store.ThreadsWithMessages(ctx, sel.OrgID, ids)
		if err != nil {
			return Batch{}, err
		}
		referenced := make(map[string]struct{}, len(used))
		for _, id := range used {
			referenced[id] = struct{}{}
		}

		full := false
		for _, t := range threads {
			batch.Next = t.Cursor()
			if _, ok := referenced[t.ID]; ok {
				continue
			}
			batch.IDs = append(batch.IDs, t.ID)
			if len(batch.IDs) == sel.Limit {
				full = true
				break
			}
		}
		if full {
			break
		}
		if len(threads) < s.pageSize {
			batch.Exhausted = true
			break
		}
	}
	return batch, nil
}
