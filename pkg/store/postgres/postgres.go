// Package postgres implements the custodian store on PostgreSQL using a pgx
// connection pool.
//
// Ids are uuid columns; queries take them as text and cast server-side so
// callers can pass plain strings. Thread orphans are found with a NOT EXISTS
// anti-join.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"mercator-hq/custodian/pkg/audit"
	"mercator-hq/custodian/pkg/retention"
	"mercator-hq/custodian/pkg/tenant"
)

const backend = "postgres"

// Config contains configuration for the PostgreSQL store.
type Config struct {
	// DSN is the connection string (URL or key=value form).
	DSN string

	// MinConns is the minimum number of pooled connections.
	MinConns int

	// MaxConns is the maximum number of pooled connections.
	// Default: 4
	MaxConns int

	// Schema sets search_path on every new connection when not "public".
	Schema string

	// ConnectTimeout bounds the initial connection and ping.
	// Default: 10 seconds
	ConnectTimeout time.Duration
}

// DefaultConfig returns the default PostgreSQL configuration.
func DefaultConfig() *Config {
	return &Config{
		MinConns:       0,
		MaxConns:       4,
		Schema:         "public",
		ConnectTimeout: 10 * time.Second,
	}
}

// Store implements the custodian store interfaces on PostgreSQL.
type Store struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// Open creates a connection pool and verifies it with a ping.
func Open(ctx context.Context, config *Config) (*Store, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if config.DSN == "" {
		return nil, retention.NewStorageError(backend, "open", errors.New("dsn is required"))
	}

	poolCfg, err := pgxpool.ParseConfig(config.DSN)
	if err != nil {
		return nil, retention.NewStorageError(backend, "parse_config", err)
	}
	if config.MinConns > 0 {
		poolCfg.MinConns = clampInt32(config.MinConns)
	}
	if config.MaxConns > 0 {
		poolCfg.MaxConns = clampInt32(config.MaxConns)
	}
	if schema := config.Schema; schema != "" && schema != "public" {
		poolCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
			_, err := conn.Exec(ctx, "SET search_path TO "+pgx.Identifier{schema}.Sanitize())
			return err
		}
	}

	if config.ConnectTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, config.ConnectTimeout)
		defer cancel()
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, retention.NewStorageError(backend, "open", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, retention.NewStorageError(backend, "ping", err)
	}

	logger := slog.Default().With("component", "store.postgres")
	logger.Info("postgres pool created",
		"min_conns", poolCfg.MinConns,
		"max_conns", poolCfg.MaxConns,
		"schema", config.Schema,
	)

	return New(pool), nil
}

// New wraps an existing pool. The caller keeps ownership of the pool only if
// it never calls Close on the store.
func New(pool *pgxpool.Pool) *Store {
	return &Store{
		pool:   pool,
		logger: slog.Default().With("component", "store.postgres"),
	}
}

// Pool returns the underlying pool.
func (s *Store) Pool() *pgxpool.Pool {
	return s.pool
}

// Ping verifies the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close closes the pool.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

// ListRows implements retention.RowStore.
func (s *Store) ListRows(ctx context.Context, q retention.RowQuery) ([]retention.RowRef, error) {
	if !q.Table.Valid() {
		return nil, retention.NewStorageError(backend, "list", fmt.Errorf("unknown table %q", q.Table))
	}

	qb := newQuery(fmt.Sprintf("SELECT id::text, created_at FROM %s WHERE org_id = $1::uuid", q.Table), q.OrgID)
	if q.Before != nil {
		qb.where("created_at <= %s", *q.Before)
	}
	qb.keyset("", q.After)
	qb.orderLimit("", q.Limit)

	return s.queryRefs(ctx, "list", qb)
}

// ListOrphanThreads implements retention.OrphanLister.
func (s *Store) ListOrphanThreads(ctx context.Context, q retention.RowQuery) ([]retention.RowRef, error) {
	qb := newQuery(`SELECT t.id::text, t.created_at FROM threads t
		WHERE t.org_id = $1::uuid
		AND NOT EXISTS (SELECT 1 FROM messages m WHERE m.thread_id = t.id)`, q.OrgID)
	qb.keyset("t.", q.After)
	qb.orderLimit("t.", q.Limit)

	return s.queryRefs(ctx, "list_orphans", qb)
}

// ThreadsWithMessages implements retention.RowStore.
func (s *Store) ThreadsWithMessages(ctx context.Context, orgID string, threadIDs []string) ([]string, error) {
	if len(threadIDs) == 0 {
		return nil, nil
	}

	rows, err := s.pool.Query(ctx, `
		SELECT DISTINCT thread_id::text FROM messages
		WHERE org_id = $1::uuid AND thread_id = ANY($2::text[]::uuid[])`,
		orgID, threadIDs)
	if err != nil {
		return nil, retention.NewStorageError(backend, "threads_with_messages", err)
	}

	out, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
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

	tag, err := s.pool.Exec(ctx,
		fmt.Sprintf("DELETE FROM %s WHERE id = ANY($1::text[]::uuid[])", table), ids)
	if err != nil {
		return 0, retention.NewStorageError(backend, "delete", err)
	}
	return tag.RowsAffected(), nil
}

// ListOrgs implements retention.RowStore.
func (s *Store) ListOrgs(ctx context.Context, after *retention.Cursor, limit int) ([]retention.RowRef, error) {
	qb := newQuery("SELECT id::text, created_at FROM orgs WHERE true")
	qb.keyset("", after)
	qb.orderLimit("", limit)

	return s.queryRefs(ctx, "list_orgs", qb)
}

// OrgExists reports whether id names a row in orgs. The id is compared as
// text so a value that is not a uuid reports false instead of failing the cast.
func (s *Store) OrgExists(ctx context.Context, id string) (bool, error) {
	var ok bool
	err := s.pool.QueryRow(ctx,
		"SELECT EXISTS (SELECT 1 FROM orgs WHERE id::text = lower($1))", id).Scan(&ok)
	if err != nil {
		return false, retention.NewStorageError(backend, "org_exists", err)
	}
	return ok, nil
}

// CreateOrg registers a tenant. An existing id is left unchanged.
func (s *Store) CreateOrg(ctx context.Context, id, name string, createdAt time.Time) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO orgs (id, name, created_at) VALUES ($1::uuid, $2, $3)
		ON CONFLICT (id) DO NOTHING`, id, name, createdAt)
	if err != nil {
		return retention.NewStorageError(backend, "create_org", err)
	}
	return nil
}

// ListSettings implements tenant.SettingsReader.
func (s *Store) ListSettings(ctx context.Context, orgID string) ([]tenant.Row, error) {
	rows, err := s.pool.Query(ctx,
		"SELECT key, value::text FROM org_settings WHERE org_id = $1::uuid ORDER BY key", orgID)
	if err != nil {
		return nil, retention.NewStorageError(backend, "list_settings", err)
	}

	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (tenant.Row, error) {
		var (
			key   string
			value string
		)
		err := row.Scan(&key, &value)
		return tenant.Row{Key: key, Value: json.RawMessage(value)}, err
	})
	if err != nil {
		return nil, retention.NewStorageError(backend, "list_settings", err)
	}
	return out, nil
}

// PutSetting implements tenant.SettingsWriter.
func (s *Store) PutSetting(ctx context.Context, orgID, key string, value json.RawMessage) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO org_settings (org_id, key, value, updated_at) VALUES ($1::uuid, $2, $3::jsonb, now())
		ON CONFLICT (org_id, key) DO UPDATE SET value = EXCLUDED.value, updated_at = EXCLUDED.updated_at`,
		orgID, key, string(value))
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

	_, err = s.pool.Exec(ctx, `
		INSERT INTO audit_logs (id, org_id, actor_id, action, target_type, target_id, meta, created_at)
		VALUES ($1::uuid, $2::uuid, $3, $4, $5, $6, $7::jsonb, $8)`,
		entry.ID, entry.OrgID, entry.ActorID, entry.Action, entry.TargetType, entry.TargetID,
		string(meta), entry.CreatedAt)
	if err != nil {
		return retention.NewStorageError(backend, "insert_audit", err)
	}
	return nil
}

func (s *Store) queryRefs(ctx context.Context, op string, qb *query) ([]retention.RowRef, error) {
	rows, err := s.pool.Query(ctx, qb.sql.String(), qb.args...)
	if err != nil {
		return nil, retention.NewStorageError(backend, op, err)
	}

	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (retention.RowRef, error) {
		var ref retention.RowRef
		err := row.Scan(&ref.ID, &ref.CreatedAt)
		ref.CreatedAt = ref.CreatedAt.UTC()
		return ref, err
	})
	if err != nil {
		return nil, retention.NewStorageError(backend, op, err)
	}
	return out, nil
}

// query accumulates SQL text and its positional arguments.
type query struct {
	sql  strings.Builder
	args []any
}

func newQuery(base string, args ...any) *query {
	q := &query{args: args}
	q.sql.WriteString(base)
	return q
}

// next registers arg and returns its placeholder.
func (q *query) next(arg any) string {
	q.args = append(q.args, arg)
	return fmt.Sprintf("$%d", len(q.args))
}

// where appends an AND clause; %s in cond is replaced by the placeholder of arg.
func (q *query) where(cond string, arg any) {
	q.sql.WriteString(" AND ")
	q.sql.WriteString(fmt.Sprintf(cond, q.next(arg)))
}

func (q *query) keyset(alias string, c *retention.Cursor) {
	if c == nil {
		return
	}
	at := q.next(c.CreatedAt)
	id := q.next(c.ID)
	fmt.Fprintf(&q.sql, " AND (%[1]screated_at, %[1]sid) > (%[2]s, %[3]s::uuid)", alias, at, id)
}

func (q *query) orderLimit(alias string, limit int) {
	fmt.Fprintf(&q.sql, " ORDER BY %[1]screated_at, %[1]sid", alias)
	if limit > 0 {
		fmt.Fprintf(&q.sql, " LIMIT %s", q.next(limit))
	}
}

func clampInt32(v int) int32 {
	if v > math.MaxInt32 {
		return math.MaxInt32
	}
	if v < 0 {
		return 0
	}
	return int32(v)
}
