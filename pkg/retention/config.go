package retention

// Config contains configuration for the retention engine.
type Config struct {
	// BatchSize is the number of ids selected per loop iteration of a
	// collection. A batch shorter than this ends the collection.
	BatchSize int

	// PageSize is the number of rows read from the store per query while
	// filling a batch.
	PageSize int

	// DeleteChunkSize caps the number of ids sent in one delete statement.
	// 0 means PageSize.
	DeleteChunkSize int

	// OrgPageSize is the page size used to enumerate tenants.
	OrgPageSize int
}

// DefaultConfig returns the default retention configuration.
func DefaultConfig() *Config {
	return &Config{
		BatchSize:       500,
		PageSize:        1000,
		DeleteChunkSize: 1000,
		OrgPageSize:     1000,
	}
}

// normalized returns a copy with every unset field replaced by its default.
func (c *Config) normalized() *Config {
	d := DefaultConfig()
	if c == nil {
		return d
	}
	n := *c
	if n.BatchSize <= 0 {
		n.BatchSize = d.BatchSize
	}
	if n.PageSize <= 0 {
		n.PageSize = d.PageSize
	}
	if n.DeleteChunkSize <= 0 {
		n.DeleteChunkSize = n.PageSize
	}
	if n.OrgPageSize <= 0 {
		n.OrgPageSize = d.OrgPageSize
	}
	return &n
}
