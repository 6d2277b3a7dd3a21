package pgstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/luislascano01/Stratvithor/core/task"
	"github.com/luislascano01/Stratvithor/providers/store"
)

const defaultTableName = "stratvithor_saved_tasks"

// Querier abstracts the pgx query methods the store needs. Both
// *pgxpool.Pool and pgx.Tx satisfy it.
type Querier interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store implements store.Store over PostgreSQL.
type Store struct {
	db        Querier
	tableName string
}

var _ store.Store = (*Store)(nil)

// Option configures a Store.
type Option func(*Store)

// WithTableName overrides the table name. The name is sanitized with
// pgx.Identifier since it is interpolated into the queries.
func WithTableName(name string) Option {
	return func(s *Store) {
		s.tableName = pgx.Identifier{name}.Sanitize()
	}
}

// New creates a store over db, typically a *pgxpool.Pool.
func New(db Querier, opts ...Option) *Store {
	s := &Store{db: db, tableName: defaultTableName}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Save upserts the record.
func (s *Store) Save(ctx context.Context, record *task.SavedTaskRecord) error {
	payload, err := record.Encode()
	if err != nil {
		return &store.PersistenceError{Op: "save", TaskID: record.TaskID, Err: err}
	}

	query := fmt.Sprintf(`INSERT INTO %s (task_id, definition_id, subject, record, record_timestamp)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (task_id) DO UPDATE SET
			definition_id = EXCLUDED.definition_id,
			subject = EXCLUDED.subject,
			record = EXCLUDED.record,
			record_timestamp = EXCLUDED.record_timestamp,
			saved_at = NOW()`, s.tableName)

	if _, err := s.db.Exec(ctx, query,
		record.TaskID,
		record.DefinitionID,
		record.Subject,
		payload,
		record.Timestamp,
	); err != nil {
		return &store.PersistenceError{Op: "save", TaskID: record.TaskID, Err: err}
	}
	return nil
}

// Get loads the record of a task.
func (s *Store) Get(ctx context.Context, taskID string) (*task.SavedTaskRecord, error) {
	query := fmt.Sprintf(`SELECT record FROM %s WHERE task_id = $1`, s.tableName)

	var payload []byte
	if err := s.db.QueryRow(ctx, query, taskID).Scan(&payload); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, &store.NotFoundError{TaskID: taskID}
		}
		return nil, &store.PersistenceError{Op: "get", TaskID: taskID, Err: err}
	}

	record, err := task.DecodeRecord(payload)
	if err != nil {
		return nil, &store.PersistenceError{Op: "get", TaskID: taskID, Err: err}
	}
	return record, nil
}

// List returns the saved task ids in ascending order.
func (s *Store) List(ctx context.Context) ([]string, error) {
	query := fmt.Sprintf(`SELECT task_id FROM %s ORDER BY task_id ASC`, s.tableName)

	rows, err := s.db.Query(ctx, query)
	if err != nil {
		return nil, &store.PersistenceError{Op: "list", Err: err}
	}
	defer rows.Close()

	taskIDs := make([]string, 0)
	for rows.Next() {
		var taskID string
		if err := rows.Scan(&taskID); err != nil {
			return nil, &store.PersistenceError{Op: "list", Err: err}
		}
		taskIDs = append(taskIDs, taskID)
	}
	if err := rows.Err(); err != nil {
		return nil, &store.PersistenceError{Op: "list", Err: err}
	}
	return taskIDs, nil
}
