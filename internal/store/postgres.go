package store

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

//go:embed schema.sql
var schema string

const (
	pingTimeout       = 5 * time.Second
	uniqueViolation   = "23505"
	activePortIndex   = "instances_active_port_idx"
	instanceColumns   = `id::text, container_name, owner_id, challenge_slug, host_port, container_id, host_url, ttl_seconds, status, started_at, stopped_at, error_message`
	insertInstance    = `INSERT INTO instances (id, container_name, owner_id, challenge_slug, host_port, container_id, host_url, ttl_seconds, status, started_at, stopped_at, error_message) VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''), $7, $8, $9, $10, $11, NULLIF($12, ''))`
	selectInstance    = `SELECT ` + instanceColumns + ` FROM instances WHERE id = $1`
	selectByOwner     = `SELECT ` + instanceColumns + ` FROM instances WHERE owner_id = $1 AND ($2::text[] IS NULL OR status = ANY($2)) ORDER BY started_at`
	selectByStatus    = `SELECT ` + instanceColumns + ` FROM instances WHERE ($1::text[] IS NULL OR status = ANY($1)) ORDER BY started_at`
	selectExpired     = `SELECT ` + instanceColumns + ` FROM instances WHERE status = 'running' AND started_at + make_interval(secs => ttl_seconds) < $1 ORDER BY started_at`
	selectStatus      = `SELECT status FROM instances WHERE id = $1`
	updateStatusQuery = `UPDATE instances SET status = $2, container_id = COALESCE(NULLIF($3, ''), container_id), error_message = COALESCE(NULLIF($4, ''), error_message), stopped_at = COALESCE($5, stopped_at) WHERE id = $1 AND status = ANY($6) RETURNING ` + instanceColumns
	extendTTLQuery    = `UPDATE instances SET ttl_seconds = ttl_seconds + $2 WHERE id = $1 AND status = 'running' RETURNING ttl_seconds`
	statsQuery        = `SELECT status, COUNT(*), COALESCE(AVG(EXTRACT(EPOCH FROM (stopped_at - started_at))) FILTER (WHERE stopped_at IS NOT NULL), 0)::float8 FROM instances GROUP BY status`
)

// PostgresStore keeps records in the platform's PostgreSQL database.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore connects to url, verifies the connection and applies the schema.
func NewPostgresStore(ctx context.Context, url string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("create connection pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	s := &PostgresStore{pool: pool}
	if err := s.Migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

// Migrate applies the embedded schema. It is idempotent.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

// Pool exposes the connection pool for other readers of the same database.
func (s *PostgresStore) Pool() *pgxpool.Pool {
	return s.pool
}

func (s *PostgresStore) Create(ctx context.Context, rec *Record) error {
	_, err := s.pool.Exec(ctx, insertInstance,
		rec.ID, rec.ContainerName, rec.OwnerID, rec.ChallengeSlug, rec.HostPort, rec.ContainerID,
		rec.HostURL, rec.TTLSeconds, string(rec.Status), rec.StartedAt, rec.StoppedAt, rec.ErrorMessage)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			if pgErr.ConstraintName == activePortIndex {
				return fmt.Errorf("%w: %d", ErrPortConflict, rec.HostPort)
			}
			return fmt.Errorf("%w: %s", ErrAlreadyExists, pgErr.ConstraintName)
		}
		return fmt.Errorf("insert instance: %w", err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, id string) (*Record, error) {
	if !validID(id) {
		return nil, ErrNotFound
	}

	rows, err := s.pool.Query(ctx, selectInstance, id)
	if err != nil {
		return nil, fmt.Errorf("query instance: %w", err)
	}

	rec, err := pgx.CollectExactlyOneRow(rows, scanRecord)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scan instance: %w", err)
	}
	return &rec, nil
}

func (s *PostgresStore) ListByOwner(ctx context.Context, ownerID string, statuses ...Status) ([]Record, error) {
	return s.query(ctx, selectByOwner, ownerID, statusArray(statuses))
}

func (s *PostgresStore) ListByStatus(ctx context.Context, statuses ...Status) ([]Record, error) {
	return s.query(ctx, selectByStatus, statusArray(statuses))
}

func (s *PostgresStore) ListExpired(ctx context.Context, now time.Time) ([]Record, error) {
	return s.query(ctx, selectExpired, now)
}

func (s *PostgresStore) List(ctx context.Context, filter ListFilter) ([]Record, error) {
	var (
		where []string
		args  []any
	)
	if filter.Status != "" {
		args = append(args, string(filter.Status))
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	}
	if filter.OwnerContains != "" {
		args = append(args, filter.OwnerContains)
		where = append(where, fmt.Sprintf("strpos(owner_id, $%d) > 0", len(args)))
	}

	var b strings.Builder
	b.WriteString(`SELECT ` + instanceColumns + ` FROM instances`)
	if len(where) > 0 {
		b.WriteString(" WHERE " + strings.Join(where, " AND "))
	}
	b.WriteString(" ORDER BY started_at DESC")
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		fmt.Fprintf(&b, " LIMIT $%d", len(args))
	}

	return s.query(ctx, b.String(), args...)
}

func (s *PostgresStore) UpdateStatus(ctx context.Context, id string, upd StatusUpdate) (*Record, error) {
	// Resolve the precondition to concrete statuses so the transition rules
	// live in one place.
	var allowed []string
	for _, st := range allStatuses {
		if upd.allows(st) {
			allowed = append(allowed, string(st))
		}
	}
	if len(allowed) == 0 {
		return nil, fmt.Errorf("%w: no status may move to %s", ErrInvalidStatus, upd.To)
	}
	if !validID(id) {
		return nil, ErrNotFound
	}

	rows, err := s.pool.Query(ctx, updateStatusQuery,
		id, string(upd.To), upd.ContainerID, upd.ErrorMessage, upd.StoppedAt, allowed)
	if err != nil {
		return nil, fmt.Errorf("update instance status: %w", err)
	}

	rec, err := pgx.CollectExactlyOneRow(rows, scanRecord)
	if err == nil {
		return &rec, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("scan instance: %w", err)
	}

	return nil, s.missOrConflict(ctx, id)
}

func (s *PostgresStore) ExtendTTL(ctx context.Context, id string, seconds int) (int, error) {
	if !validID(id) {
		return 0, ErrNotFound
	}

	var ttl int
	err := s.pool.QueryRow(ctx, extendTTLQuery, id, seconds).Scan(&ttl)
	if err == nil {
		return ttl, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return 0, fmt.Errorf("extend instance ttl: %w", err)
	}
	return 0, s.missOrConflict(ctx, id)
}

// missOrConflict explains why a conditional update matched no rows.
func (s *PostgresStore) missOrConflict(ctx context.Context, id string) error {
	var current string
	if err := s.pool.QueryRow(ctx, selectStatus, id).Scan(&current); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		return fmt.Errorf("query instance status: %w", err)
	}
	return fmt.Errorf("%w: %s is %s", ErrStatusConflict, id, current)
}

func (s *PostgresStore) Stats(ctx context.Context) ([]StatusStat, error) {
	rows, err := s.pool.Query(ctx, statsQuery)
	if err != nil {
		return nil, fmt.Errorf("query instance stats: %w", err)
	}

	byStatus, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (StatusStat, error) {
		var (
			status string
			count  int64
			avg    float64
		)
		if err := row.Scan(&status, &count, &avg); err != nil {
			return StatusStat{}, err
		}
		return StatusStat{
			Status:      Status(status),
			Count:       int(count),
			AvgDuration: time.Duration(avg * float64(time.Second)),
		}, nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan instance stats: %w", err)
	}

	// Match the file store's lifecycle ordering.
	var result []StatusStat
	for _, st := range allStatuses {
		for _, stat := range byStatus {
			if stat.Status == st {
				result = append(result, stat)
			}
		}
	}
	return result, nil
}

// Close closes the connection pool.
func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) query(ctx context.Context, sql string, args ...any) ([]Record, error) {
	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("query instances: %w", err)
	}

	result, err := pgx.CollectRows(rows, scanRecord)
	if err != nil {
		return nil, fmt.Errorf("scan instances: %w", err)
	}
	return result, nil
}

func scanRecord(row pgx.CollectableRow) (Record, error) {
	var (
		r           Record
		status      string
		containerID *string
		errMsg      *string
	)
	err := row.Scan(&r.ID, &r.ContainerName, &r.OwnerID, &r.ChallengeSlug, &r.HostPort, &containerID,
		&r.HostURL, &r.TTLSeconds, &status, &r.StartedAt, &r.StoppedAt, &errMsg)
	if err != nil {
		return Record{}, err
	}

	if r.Status, err = ParseStatus(status); err != nil {
		return Record{}, err
	}
	if containerID != nil {
		r.ContainerID = *containerID
	}
	if errMsg != nil {
		r.ErrorMessage = *errMsg
	}
	return r, nil
}

// validID reports whether id can match the UUID primary key.
func validID(id string) bool {
	return uuid.Validate(id) == nil
}

// statusArray converts statuses for an ANY() comparison; nil matches all.
func statusArray(statuses []Status) []string {
	if len(statuses) == 0 {
		return nil
	}
	out := make([]string, len(statuses))
	for i, s := range statuses {
		out[i] = string(s)
	}
	return out
}
