// Package sqlite implements the custodian store on SQLite for single-node and
// development deployments.
//
// Two drivers are supported: "sqlite3" (github.com/mattn/go-sqlite3, cgo) and
// "sqlite" (modernc.org/sqlite, pure Go).
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
	_ "modernc.org/sqlite"

	"mercator-hq/custodian/pkg/audit"
	"mercator-hq/custodian/pkg/retention"
	"mercator-hq/custodian/pkg/tenant"
)

const backend = "sqlite"

// Config contains configuration for the SQLite store.
type Config struct {
	// Path is the database file path.
	Path string

	// Driver is the database/sql driver name: "sqlite3" or "sqlite".
	// Default: "sqlite3"
	Driver string

	// MaxOpenConns is the maximum number of open connections to the database.
	// Default: 1
	MaxOpenConns int

	// WALMode enables Write-Ahead Logging mode for better concurrency.
	// Default: true
	WALMode bool

	// BusyTimeout is the duration to wait when the database is locked.
	// Default: 5 seconds
	BusyTimeout time.Duration
}

// DefaultConfig returns the default SQLite configuration.
func DefaultConfig() *Config {
	return &Config{
		Path:         "data/custodian.db",
		Driver:       "sqlite3",
		MaxOpenConns: 1,
		WALMode:      true,
		BusyTimeout:  5 * time.Second,
	}
}

// Store implements the custodian store interfaces on SQLite.
type Store struct {
	db     *sql.DB
	config *Config
	logger *slog.Logger
}

// New opens the database and creates the schema.
func New(config *Config) (*Store, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if config.Driver == "" {
		config.Driver = "sqlite3"
	}
	if config.MaxOpenConns <= 0 {
		config.MaxOpenConns = 1
	}

	logger := slog.Default().With("component", "store.sqlite")

	db, err := sql.Open(config.Driver, config.Path)
	if err != nil {
		return nil, retention.NewStorageError(backend, "open", err)
	}
	db.SetMaxOpenConns(config.MaxOpenConns)

	s := &Store{db: db, config: config, logger: logger}
	if err := s.initialize(); err != nil {
		db.Close()
		return nil, err
	}

	logger.Info("SQLite store initialized",
		"path", config.Path,
		"driver", config.Driver,
		"wal_mode", config.WALMode,
	)
	return s, nil
}

// initialize sets up the database schema and enables WAL mode.
func (s *Store) initialize() error {
	if s.config.WALMode {
		if _, err := s.db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
			return retention.NewStorageError(backend, "enable_wal", err)
		}
	}

	busyTimeoutMs := s.config.BusyTimeout.Milliseconds()
	if _, err := s.db.Exec(fmt.Sprintf("PRAGMA busy_timeout=%d;", busyTimeoutMs)); err != nil {
		return retention.NewStorageError(backend, "set_busy_timeout", err)
	}

	if _, err := s.db.Exec(Schema); err != nil {
		return retention.NewStorageError(backend, "create_schema", err)
	}
	if _, err := s.db.Exec(InsertSchemaVersion, SchemaVersion); err != nil {
		return retention.NewStorageError(backend, "insert_schema_version", err)
	}

	var version int
	err := s.db.QueryRow(GetSchemaVersion).Scan(&version)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return retention.NewStorageError(backend, "get_schema_version", err)
	}
	if version != SchemaVersion {
		return retention.NewStorageError(backend, "schema_version_mismatch",
			fmt.Errorf("expected schema version %d, got %d", SchemaVersion, version))
	}
	return nil
}

// DB returns the underlying handle.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Ping verifies the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// ListRows implements retention.RowStore.
func (s *Store) ListRows(ctx context.Context, q retention.RowQuery) ([]retention.RowRef, error) {
	if !q.Table.Valid() {
		return nil, retention.NewStorageError(backend, "list", fmt.Errorf("unknown table %q", q.Table))
	}

	var (
		b    strings.Builder
		args = []any{q.OrgID}
	)
	fmt.Fprintf(&b, "SELECT id, created_at FROM %s WHERE org_id = ?", q.Table)
	if q.Before != nil {
		b.WriteString(" AND created_at <= ?")
		args = append(args, q.Before.UnixMilli())
	}
	args = appendKeyset(&b, args, "", q.After)
	args = appendOrderLimit(&b, args, "", q.Limit)

	return s.queryRefs(ctx, "list", b.String(), args...)
}

// ListOrphanThreads implements retention.OrphanLister with a NOT EXISTS
// anti-join.
func (s *Store) ListOrphanThreads(ctx context.Context, q retention.RowQuery) ([]retention.RowRef, error) {
	var (
		b    strings.Builder
		args = []any{q.OrgID}
	)
	b.WriteString(`SELECT t.id, t.created_at FROM threads t WHERE t.org_id = ?
		AND NOT EXISTS (SELECT 1 FROM messages m WHERE m.thread_id = t.id)`)
	args = appendKeyset(&b, args, "t.", q.After)
	args = appendOrderLimit(&b, args, "t.", q.Limit)

	return s.queryRefs(ctx, "list_orphans", b.String(), args...)
}

// ThreadsWithMessages implements retention.RowStore.
func (s *Store) ThreadsWithMessages(ctx context.Context, orgID string, threadIDs []string) ([]string, error) {
	if len(threadIDs) == 0 {
		return nil, nil
	}

	args := make([]any, 0, len(threadIDs)+1)
	args = append(args, orgID)
	for _, id := range threadIDs {
		args = append(args, id)
	}
	query := fmt.Sprintf("SELECT DISTINCT thread_id FROM messages WHERE org_id = ? AND thread_id IN (%s)",
		placeholders(len(threadIDs)))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, retention.NewStorageError(backend, "threads_with_messages", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, retention.NewStorageError(backend, "threads_with_messages", err)
		}
		out = append(out, id)
	}
	if err := rows.Err(); err != nil {
		return nil, retention.NewStorageError(backend, "threads_with_messages", err)
	}
	return out, nil
}

// DeleteByIDs implements retention.RowStore.
func (s *Store) DeleteByIDs(ctx context.Context, table retention.Table, ids []string) (int64, error) {
	if !table.Valid() {
		return 0, retention.NewStorageError(backend, "delete", fmt.Errorf("unknown table %q", table))
	}
	if len(ids) == 0 {
		return 0, nil
	}

	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	query := fmt.Sprintf("DELETE FROM %s WHERE id IN (%s)", table, placeholders(len(ids)))

	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, retention.NewStorageError(backend, "delete", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, retention.NewStorageError(backend, "delete", err)
	}
	return n, nil
}

// ListOrgs implements retention.RowStore.
func (s *Store) ListOrgs(ctx context.Context, after *retention.Cursor, limit int) ([]retention.RowRef, error) {
	var (
		b    strings.Builder
		args []any
	)
	b.WriteString("SELECT id, created_at FROM orgs WHERE 1 = 1")
	args = appendKeyset(&b, args, "", after)
	args = appendOrderLimit(&b, args, "", limit)

	return s.queryRefs(ctx, "list_orgs", b.String(), args...)
}

// OrgExists reports whether id names a row in orgs.
func (s *Store) OrgExists(ctx context.Context, id string) (bool, error) {
	var ok bool
	err := s.db.QueryRowContext(ctx, "SELECT EXISTS (SELECT 1 FROM orgs WHERE id = ?)", id).Scan(&ok)
	if err != nil {
		return false, retention.NewStorageError(backend, "org_exists", err)
	}
	return ok, nil
}

// CreateOrg registers a tenant. An existing id is left unchanged.
func (s *Store) CreateOrg(ctx context.Context, id, name string, createdAt time.Time) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO orgs (id, name, created_at) VALUES (?, ?, ?) ON CONFLICT(id) DO NOTHING",
		id, name, createdAt.UnixMilli())
	if err != nil {
		return retention.NewStorageError(backend, "create_org", err)
	}
	return nil
}

// ListSettings implements tenant.SettingsReader.
func (s *Store) ListSettings(ctx context.Context, orgID string) ([]tenant.Row, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT key, value FROM org_settings WHERE org_id = ? ORDER BY key", orgID)
	if err != nil {
		return nil, retention.NewStorageError(backend, "list_settings", err)
	}
	defer rows.Close()

	var out []tenant.Row
	for rows.Next() {
		var (
			key   string
			value string
		)
		if err := rows.Scan(&key, &value); err != nil {
			return nil, retention.NewStorageError(backend, "list_settings", err)
		}
		out = append(out, tenant.Row{Key: key, Value: json.RawMessage(value)})
	}
	if err := rows.Err(); err != nil {
		return nil, retention.NewStorageError(backend, "list_settings", err)
	}
	return out, nil
}

// PutSetting implements tenant.SettingsWriter.
func (s *Store) PutSetting(ctx context.Context, orgID, key string, value json.RawMessage) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO org_settings (org_id, key, value, updated_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(org_id, key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		orgID, key, string(value), time.Now().UnixMilli())
	if err != nil {
		return retention.NewStorageError(backend, "put_setting", err)
	}
	return nil
}

// Insert implements audit.Sink.
func (s *Store) Insert(ctx context.Context, entry audit.Entry) error {
	meta, err := json.Marshal(entry.Meta)
	if err != nil {
		return retention.NewStorageError(backend, "insert_audit", fmt.Errorf("encode meta: %w", err))
	}

	var actor sql.NullString
	if entry.ActorID != nil {
		actor = sql.NullString{String: *entry.ActorID, Valid: true}
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO audit_logs (id, org_id, actor_id, action, target_type, target_id, meta, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.ID, entry.OrgID, actor, entry.Action, entry.TargetType, entry.TargetID,
		string(meta), entry.CreatedAt.UnixMilli())
	if err != nil {
		return retention.NewStorageError(backend, "insert_audit", err)
	}
	return nil
}

func (s *Store) queryRefs(ctx context.Context, op, query string, args ...any) ([]retention.RowRef, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, retention.NewStorageError(backend, op, err)
	}
	defer rows.Close()

	var out []retention.RowRef
	for rows.Next() {
		var (
			id string
			ms int64
		)
		if err := rows.Scan(&id, &ms); err != nil {
			return nil, retention.NewStorageError(backend, op, err)
		}
		out = append(out, retention.RowRef{ID: id, CreatedAt: time.UnixMilli(ms).UTC()})
	}
	if err := rows.Err(); err != nil {
		return nil, retention.NewStorageError(backend, op, err)
	}
	return out, nil
}

// appendKeyset restricts the query to rows strictly after c.
func appendKeyset(b *strings.Builder, args []any, alias string, c *retention.Cursor) []any {
	if c == nil {
		return args
	}
	ms := c.CreatedAt.UnixMilli()
	fmt.Fprintf(b, " AND (%[1]screated_at > ? OR (%[1]screated_at = ? AND %[1]sid > ?))", alias)
	return append(args, ms, ms, c.ID)
}

func appendOrderLimit(b *strings.Builder, args []any, alias string, limit int) []any {
	fmt.Fprintf(b, " ORDER BY %[1]screated_at, %[1]sid", alias)
	if limit > 0 {
		b.WriteString(" LIMIT ?")
		args = append(args, limit)
	}
	return args
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}
