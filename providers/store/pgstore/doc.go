// Package pgstore persists saved task records in PostgreSQL through pgx/v5.
//
// Each record is one row keyed by task id, with the full record in a JSONB
// column. Saving a task again overwrites its row. Use [Store.EnsureSchema]
// during development to create the table; production deployments should
// manage the schema with migration tooling.
package pgstore
