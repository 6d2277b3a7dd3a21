package pgstore

import (
	"context"
	"fmt"
)

const createTableSQL = `CREATE TABLE IF NOT EXISTS %s (
    task_id          TEXT PRIMARY KEY,
    definition_id    TEXT NOT NULL DEFAULT '',
    subject          TEXT NOT NULL DEFAULT '',
    record           JSONB NOT NULL,
    record_timestamp TIMESTAMPTZ NOT NULL,
    saved_at         TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`

// createSubjectIndexSQL supports looking saved reports up by company.
const createSubjectIndexSQL = `CREATE INDEX IF NOT EXISTS idx_%s_subject
    ON %s (subject)`

// EnsureSchema creates the table and its index if they do not exist.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, fmt.Sprintf(createTableSQL, s.tableName)); err != nil {
		return fmt.Errorf("pgstore: create table: %w", err)
	}

	indexName := s.tableName
	if len(indexName) > 1 && indexName[0] == '"' {
		indexName = indexName[1 : len(indexName)-1]
	}
	if _, err := s.db.Exec(ctx, fmt.Sprintf(createSubjectIndexSQL, indexName, s.tableName)); err != nil {
		return fmt.Errorf("pgstore: create subject index: %w", err)
	}
	return nil
}
