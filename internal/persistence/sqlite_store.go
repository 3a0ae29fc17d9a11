package persistence

import (
	"database/sql"
	"errors"
	"strings"

	"github.com/casaops/intervene/pkg/api"
)

// SQLiteInstanceStore is an InstanceStore backed by SQLite.
//
// It expects an *sql.DB that uses a SQLite driver (for example,
// "modernc.org/sqlite"). The caller is responsible for importing
// the driver, e.g.:
//
//	import _ "modernc.org/sqlite"
type SQLiteInstanceStore struct {
	db *sql.DB
}

var _ InstanceStore = (*SQLiteInstanceStore)(nil)

// NewSQLiteInstanceStore initializes the required schema in the given
// database and returns a new SQLiteInstanceStore.
func NewSQLiteInstanceStore(db *sql.DB) (*SQLiteInstanceStore, error) {
	s := &SQLiteInstanceStore{db: db}
	if err := s.initSchema(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *SQLiteInstanceStore) initSchema() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS instances (
			id TEXT PRIMARY KEY,
			run_id TEXT NOT NULL,
			workflow TEXT NOT NULL,
			status TEXT NOT NULL,
			input BLOB,
			output BLOB,
			error TEXT,
			history BLOB
		);`,
	)
	return err
}

func (s *SQLiteInstanceStore) encode(rec *InstanceRecord) (input, output, history []byte, err error) {
	if input, err = EncodeValue(rec.Input); err != nil {
		return nil, nil, nil, err
	}
	if output, err = EncodeValue(rec.Output); err != nil {
		return nil, nil, nil, err
	}
	if history, err = EncodeHistory(rec.History); err != nil {
		return nil, nil, nil, err
	}
	return input, output, history, nil
}

func (s *SQLiteInstanceStore) SaveInstance(rec *InstanceRecord) error {
	input, output, history, err := s.encode(rec)
	if err != nil {
		return err
	}

	_, err = s.db.Exec(`
		INSERT INTO instances (id, run_id, workflow, status, input, output, error, history)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID,
		rec.RunID,
		rec.Workflow,
		string(rec.Status),
		input,
		output,
		rec.Err,
		history,
	)
	return err
}

func (s *SQLiteInstanceStore) UpdateInstance(rec *InstanceRecord) error {
	input, output, history, err := s.encode(rec)
	if err != nil {
		return err
	}

	res, err := s.db.Exec(`
		UPDATE instances
		SET run_id = ?, workflow = ?, status = ?, input = ?, output = ?, error = ?, history = ?
		WHERE id = ?`,
		rec.RunID,
		rec.Workflow,
		string(rec.Status),
		input,
		output,
		rec.Err,
		history,
		rec.ID,
	)
	if err != nil {
		return err
	}

	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrInstanceNotFound
	}
	return nil
}

func (s *SQLiteInstanceStore) GetInstance(id string) (*InstanceRecord, error) {
	row := s.db.QueryRow(`
		SELECT id, run_id, workflow, status, input, output, error, history
		FROM instances WHERE id = ?`, id)

	rec, err := scanInstance(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrInstanceNotFound
	}
	return rec, err
}

func (s *SQLiteInstanceStore) ListInstances(filter InstanceFilter) ([]*InstanceRecord, error) {
	query := `SELECT id, run_id, workflow, status, input, output, error, history FROM instances`

	var (
		clauses []string
		args    []any
	)
	if filter.WorkflowName != "" {
		clauses = append(clauses, "workflow = ?")
		args = append(args, filter.WorkflowName)
	}
	if filter.Status != "" {
		clauses = append(clauses, "status = ?")
		args = append(args, string(filter.Status))
	}
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*InstanceRecord
	for rows.Next() {
		rec, err := scanInstance(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanInstance(row rowScanner) (*InstanceRecord, error) {
	var (
		rec     InstanceRecord
		status  string
		input   []byte
		output  []byte
		history []byte
	)
	if err := row.Scan(&rec.ID, &rec.RunID, &rec.Workflow, &status, &input, &output, &rec.Err, &history); err != nil {
		return nil, err
	}
	rec.Status = api.Status(status)

	var err error
	if rec.Input, err = DecodeValue(input); err != nil {
		return nil, err
	}
	if rec.Output, err = DecodeValue(output); err != nil {
		return nil, err
	}
	if rec.History, err = DecodeHistory(history); err != nil {
		return nil, err
	}
	return &rec, nil
}
