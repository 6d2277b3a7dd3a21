package pgstore

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"

	"github.com/luislascano01/Stratvithor/core/promptgraph"
	"github.com/luislascano01/Stratvithor/core/task"
	"github.com/luislascano01/Stratvithor/providers/store"
)

func sampleRecord() *task.SavedTaskRecord {
	at := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	return &task.SavedTaskRecord{
		TaskID:       "task-1",
		DefinitionID: "company",
		Subject:      "ACME",
		Graph: promptgraph.Visualization{
			Nodes: []promptgraph.VisualNode{{ID: "0", Label: "Overview"}},
			Links: []promptgraph.Edge{},
		},
		NodeStates: map[string]task.NodeState{
			"0": {Status: task.StatusComplete, Result: &task.Result{Title: "Overview", Text: "text"}},
		},
		Timestamp: at,
	}
}

func newMock(t *testing.T) pgxmock.PgxPoolIface {
	t.Helper()
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create pgxmock pool: %v", err)
	}
	t.Cleanup(mock.Close)
	return mock
}

func TestNew_WithTableName(t *testing.T) {
	s := New(newMock(t), WithTableName("reports"))
	if s.tableName != `"reports"` {
		t.Errorf("tableName = %q", s.tableName)
	}
}

func TestSave_Upserts(t *testing.T) {
	mock := newMock(t)
	s := New(mock)
	record := sampleRecord()
	payload, err := record.Encode()
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}

	mock.ExpectExec("INSERT INTO stratvithor_saved_tasks").
		WithArgs("task-1", "company", "ACME", payload, record.Timestamp).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	if err := s.Save(context.Background(), record); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestSave_WrapsBackendError(t *testing.T) {
	mock := newMock(t)
	s := New(mock)
	backendErr := errors.New("connection refused")

	mock.ExpectExec("INSERT INTO stratvithor_saved_tasks").WillReturnError(backendErr)

	err := s.Save(context.Background(), sampleRecord())
	var persistenceErr *store.PersistenceError
	if !errors.As(err, &persistenceErr) || !errors.Is(err, backendErr) {
		t.Fatalf("Save() error = %v, want *PersistenceError wrapping backend error", err)
	}
	if persistenceErr.Op != "save" || persistenceErr.TaskID != "task-1" {
		t.Errorf("PersistenceError = %+v", persistenceErr)
	}
}

func TestGet(t *testing.T) {
	mock := newMock(t)
	s := New(mock)
	record := sampleRecord()
	payload, _ := record.Encode()

	mock.ExpectQuery("SELECT record FROM stratvithor_saved_tasks").
		WithArgs("task-1").
		WillReturnRows(pgxmock.NewRows([]string{"record"}).AddRow(payload))

	got, err := s.Get(context.Background(), "task-1")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if !reflect.DeepEqual(got.NodeStates, record.NodeStates) || got.Subject != "ACME" {
		t.Errorf("Get() = %+v", got)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestGet_NotFound(t *testing.T) {
	mock := newMock(t)
	s := New(mock)

	mock.ExpectQuery("SELECT record FROM stratvithor_saved_tasks").
		WithArgs("missing").
		WillReturnError(pgx.ErrNoRows)

	_, err := s.Get(context.Background(), "missing")
	if !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("Get() error = %v, want ErrNotFound", err)
	}
}

func TestList(t *testing.T) {
	mock := newMock(t)
	s := New(mock)

	mock.ExpectQuery("SELECT task_id FROM stratvithor_saved_tasks").
		WillReturnRows(pgxmock.NewRows([]string{"task_id"}).AddRow("a").AddRow("b"))

	ids, err := s.List(context.Background())
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if !reflect.DeepEqual(ids, []string{"a", "b"}) {
		t.Errorf("List() = %v", ids)
	}
}

func TestEnsureSchema(t *testing.T) {
	mock := newMock(t)
	s := New(mock)

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS stratvithor_saved_tasks").
		WillReturnResult(pgxmock.NewResult("CREATE TABLE", 0))
	mock.ExpectExec("CREATE INDEX IF NOT EXISTS idx_stratvithor_saved_tasks_subject").
		WillReturnResult(pgxmock.NewResult("CREATE INDEX", 0))

	if err := s.EnsureSchema(context.Background()); err != nil {
		t.Fatalf("EnsureSchema() error = %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}
