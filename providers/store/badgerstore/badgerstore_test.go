package badgerstore

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/luislascano01/Stratvithor/core/promptgraph"
	"github.com/luislascano01/Stratvithor/core/task"
	"github.com/luislascano01/Stratvithor/providers/store"
)

func sampleRecord(taskID string) *task.SavedTaskRecord {
	at := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	return &task.SavedTaskRecord{
		TaskID:  taskID,
		Subject: "ACME",
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

func openInMemory(t *testing.T) *Store {
	t.Helper()
	s, err := Open(Config{InMemory: true})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestOpen_RequiresPath(t *testing.T) {
	if _, err := Open(Config{}); err == nil {
		t.Error("Open() without path or InMemory returned nil error")
	}
}

func TestStore_SaveGetList(t *testing.T) {
	ctx := context.Background()
	s := openInMemory(t)

	for _, taskID := range []string{"b", "a"} {
		if err := s.Save(ctx, sampleRecord(taskID)); err != nil {
			t.Fatalf("Save(%s) error = %v", taskID, err)
		}
	}
	if err := s.Save(ctx, sampleRecord("a")); err != nil {
		t.Fatalf("re-Save() error = %v", err)
	}

	got, err := s.Get(ctx, "a")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if want := sampleRecord("a"); !reflect.DeepEqual(got.NodeStates, want.NodeStates) || !got.Timestamp.Equal(want.Timestamp) {
		t.Errorf("Get() = %+v", got)
	}

	ids, err := s.List(ctx)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if !reflect.DeepEqual(ids, []string{"a", "b"}) {
		t.Errorf("List() = %v, want [a b]", ids)
	}
}

func TestStore_Persistent(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	s, err := Open(Config{Path: dir})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if err := s.Save(ctx, sampleRecord("task-1")); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	reopened, err := Open(Config{Path: dir})
	if err != nil {
		t.Fatalf("reopen error = %v", err)
	}
	defer reopened.Close()

	if _, err := reopened.Get(ctx, "task-1"); err != nil {
		t.Errorf("Get() after reopen error = %v", err)
	}
}

func TestStore_GetMissing(t *testing.T) {
	_, err := openInMemory(t).Get(context.Background(), "missing")
	if !errors.Is(err, store.ErrNotFound) {
		t.Errorf("Get() error = %v, want ErrNotFound", err)
	}
}
