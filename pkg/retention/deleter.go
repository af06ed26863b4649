package retention

import "context"

// Deleter removes rows by id in bounded chunks.
type Deleter struct {
	store     RowStore
	chunkSize int
}

// NewDeleter creates a deleter sending at most chunkSize ids per statement.
func NewDeleter(store RowStore, chunkSize int) *Deleter {
	if chunkSize <= 0 {
		chunkSize = DefaultConfig().DeleteChunkSize
	}
	return &Deleter{store: store, chunkSize: chunkSize}
}

// DeleteByIDs deletes ids from table and returns the number of rows the store
// reported as removed. Ids that no longer exist are not an error.
func (d *Deleter) DeleteByIDs(ctx context.Context, table Table, ids []string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	if d.store == nil {
		return 0, ErrNoStore
	}

	var total int64
	for start := 0; start < len(ids); start += d.chunkSize {
		end := min(start+d.chunkSize, len(ids))
		n, err := d.store.DeleteByIDs(ctx, table, ids[start:end])
		if err != nil {
			return total, err
		}
		total += n
	}
	return total, nil
}
