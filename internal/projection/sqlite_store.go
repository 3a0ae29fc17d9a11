package projection

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"
)

// SQLiteStore is a Store backed by SQLite, suitable when operator tooling
// should survive process restarts alongside the instance store.
type SQLiteStore struct {
	db *sql.DB
}

var _ Store = (*SQLiteStore)(nil)

// NewSQLiteStore initializes the required schema in the given database
// and returns a new SQLiteStore.
func NewSQLiteStore(db *sql.DB) (*SQLiteStore, error) {
	s := &SQLiteStore{db: db}
	if err := s.initSchema(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) initSchema() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS search_attributes (
			instance_id TEXT PRIMARY KEY,
			is_blocked INTEGER NOT NULL,
			blocked_activity TEXT NOT NULL,
			blocked_error TEXT NOT NULL,
			blocked_at INTEGER NOT NULL,
			intervention_id TEXT NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_search_attributes_blocked
			ON search_attributes (is_blocked, blocked_activity);`,
	)
	return err
}

func (s *SQLiteStore) Upsert(ctx context.Context, attrs Attributes) error {
	blocked := 0
	if attrs.IsBlocked {
		blocked = 1
	}
	var blockedAt int64
	if !attrs.BlockedAt.IsZero() {
		blockedAt = attrs.BlockedAt.UnixNano()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO search_attributes (instance_id, is_blocked, blocked_activity, blocked_error, blocked_at, intervention_id)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(instance_id) DO UPDATE SET
			is_blocked = excluded.is_blocked,
			blocked_activity = excluded.blocked_activity,
			blocked_error = excluded.blocked_error,
			blocked_at = excluded.blocked_at,
			intervention_id = excluded.intervention_id`,
		attrs.InstanceID,
		blocked,
		attrs.BlockedActivity,
		attrs.BlockedError,
		blockedAt,
		attrs.InterventionID,
	)
	return err
}

func (s *SQLiteStore) Get(ctx context.Context, instanceID string) (Attributes, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT instance_id, is_blocked, blocked_activity, blocked_error, blocked_at, intervention_id
		FROM search_attributes WHERE instance_id = ?`, instanceID)

	attrs, err := scanAttributes(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return Attributes{}, ErrNotFound
	}
	return attrs, err
}

func (s *SQLiteStore) List(ctx context.Context, filter Filter) ([]Attributes, error) {
	query := `SELECT instance_id, is_blocked, blocked_activity, blocked_error, blocked_at, intervention_id FROM search_attributes`

	var (
		clauses []string
		args    []any
	)
	if filter.Blocked != nil {
		blocked := 0
		if *filter.Blocked {
			blocked = 1
		}
		clauses = append(clauses, "is_blocked = ?")
		args = append(args, blocked)
	}
	if filter.BlockedActivity != "" {
		clauses = append(clauses, "blocked_activity = ?")
		args = append(args, filter.BlockedActivity)
	}
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Attributes
	for rows.Next() {
		attrs, err := scanAttributes(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, attrs)
	}
	return out, rows.Err()
}

func scanAttributes(scan func(dest ...any) error) (Attributes, error) {
	var (
		attrs     Attributes
		blocked   int
		blockedAt int64
	)
	if err := scan(&attrs.InstanceID, &blocked, &attrs.BlockedActivity, &attrs.BlockedError, &blockedAt, &attrs.InterventionID); err != nil {
		return Attributes{}, err
	}
	attrs.IsBlocked = blocked != 0
	if blockedAt != 0 {
		attrs.BlockedAt = time.Unix(0, blockedAt)
	}
	return attrs, nil
}
