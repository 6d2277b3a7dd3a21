package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/luislascano01/Stratvithor/core/promptgraph"
	"github.com/luislascano01/Stratvithor/core/report"
	"github.com/luislascano01/Stratvithor/core/task"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newTestService(t *testing.T) *report.Service {
	t.Helper()
	catalog, err := promptgraph.NewCatalog("")
	if err != nil {
		t.Fatalf("NewCatalog() error = %v", err)
	}
	err = catalog.Register(&promptgraph.Definition{
		ID: "company",
		Nodes: []promptgraph.NodeDefinition{
			{ID: "0", SectionName: "Persona", PromptText: "You are an analyst.", IsSystem: true},
			{ID: "1", SectionName: "Overview", PromptText: "Describe the company."},
			{ID: "2", SectionName: "Outlook", PromptText: "Give the outlook."},
		},
		Chains: []string{"0->1->2"},
	})
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	service := report.New(catalog)
	t.Cleanup(service.Close)
	return service
}

func perform(handler http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	var payload bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&payload).Encode(body)
	}
	request := httptest.NewRequest(method, path, &payload)
	request.Header.Set("Content-Type", "application/json")

	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, request)
	return recorder
}

func decode[T any](t *testing.T, recorder *httptest.ResponseRecorder) T {
	t.Helper()
	var value T
	if err := json.Unmarshal(recorder.Body.Bytes(), &value); err != nil {
		t.Fatalf("decoding %s: %v", recorder.Body.String(), err)
	}
	return value
}

func createMockTask(t *testing.T, service *report.Service, handler http.Handler) string {
	t.Helper()
	recorder := perform(handler, http.MethodPost, "/generate_report", GenerateReportRequest{
		CompanyName: "ACME",
		PromptName:  "company",
		Mock:        true,
	})
	if recorder.Code != http.StatusAccepted {
		t.Fatalf("POST /generate_report = %d %s", recorder.Code, recorder.Body.String())
	}
	taskID := decode[GenerateReportResponse](t, recorder).TaskID

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := service.Wait(ctx, taskID); err != nil {
		t.Fatalf("Wait() error = %v", err)
	}
	return taskID
}

func TestHealthAndPrompts(t *testing.T) {
	handler := New(newTestService(t)).Handler()

	if recorder := perform(handler, http.MethodGet, "/health", nil); recorder.Code != http.StatusOK {
		t.Errorf("GET /health = %d", recorder.Code)
	}

	recorder := perform(handler, http.MethodGet, "/get_prompts", nil)
	if recorder.Code != http.StatusOK {
		t.Fatalf("GET /get_prompts = %d", recorder.Code)
	}
	if prompts := decode[[]string](t, recorder); len(prompts) != 1 || prompts[0] != "company" {
		t.Errorf("prompts = %v, want [company]", prompts)
	}
}

func TestGenerateReport_Validation(t *testing.T) {
	handler := New(newTestService(t)).Handler()

	tests := []struct {
		name       string
		body       any
		wantStatus int
	}{
		{name: "missing company", body: map[string]any{"prompt_name": "company"}, wantStatus: http.StatusBadRequest},
		{name: "missing prompt", body: map[string]any{"company_name": "ACME"}, wantStatus: http.StatusBadRequest},
		{name: "unknown prompt", body: GenerateReportRequest{CompanyName: "ACME", PromptName: "nope"}, wantStatus: http.StatusBadRequest},
		{name: "blank company", body: GenerateReportRequest{CompanyName: "   ", PromptName: "company"}, wantStatus: http.StatusBadRequest},
		{name: "accepted", body: GenerateReportRequest{CompanyName: "ACME", PromptName: "company", Mock: true}, wantStatus: http.StatusAccepted},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			recorder := perform(handler, http.MethodPost, "/generate_report", tt.body)
			if recorder.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d (%s)", recorder.Code, tt.wantStatus, recorder.Body.String())
			}
		})
	}
}

func TestTaskLifecycle(t *testing.T) {
	service := newTestService(t)
	handler := New(service).Handler()
	taskID := createMockTask(t, service, handler)

	recorder := perform(handler, http.MethodGet, "/tasks/"+taskID, nil)
	if recorder.Code != http.StatusOK {
		t.Fatalf("GET /tasks/:id = %d", recorder.Code)
	}
	snapshot := decode[task.Snapshot](t, recorder)
	if !snapshot.Done || len(snapshot.States) != 3 {
		t.Errorf("snapshot = %+v", snapshot)
	}

	recorder = perform(handler, http.MethodGet, "/tasks/"+taskID+"?node=1", nil)
	if state := decode[task.NodeState](t, recorder); state.Status != task.StatusComplete {
		t.Errorf("node 1 = %+v", state)
	}

	recorder = perform(handler, http.MethodPost, "/tasks/"+taskID+"/save", nil)
	if recorder.Code != http.StatusOK {
		t.Fatalf("POST save = %d %s", recorder.Code, recorder.Body.String())
	}
	saved := decode[task.SavedTaskRecord](t, recorder)

	recorder = perform(handler, http.MethodGet, "/saved/"+taskID, nil)
	if recorder.Code != http.StatusOK {
		t.Fatalf("GET /saved/:id = %d", recorder.Code)
	}
	loaded := decode[task.SavedTaskRecord](t, recorder)
	if !loaded.Timestamp.Equal(saved.Timestamp) || len(loaded.NodeStates) != 3 {
		t.Errorf("loaded = %+v, saved = %+v", loaded, saved)
	}

	if recorder := perform(handler, http.MethodPost, "/tasks/"+taskID+"/cancel", nil); recorder.Code != http.StatusAccepted {
		t.Errorf("POST cancel = %d", recorder.Code)
	}
	if recorder := perform(handler, http.MethodDelete, "/tasks/"+taskID, nil); recorder.Code != http.StatusNoContent {
		t.Errorf("DELETE = %d", recorder.Code)
	}
	if recorder := perform(handler, http.MethodGet, "/tasks/"+taskID, nil); recorder.Code != http.StatusNotFound {
		t.Errorf("GET after release = %d, want 404", recorder.Code)
	}
	if recorder := perform(handler, http.MethodGet, "/saved/"+taskID, nil); recorder.Code != http.StatusOK {
		t.Errorf("saved record gone after release: %d", recorder.Code)
	}
}

func TestNotFound(t *testing.T) {
	handler := New(newTestService(t)).Handler()

	for _, request := range []struct{ method, path string }{
		{http.MethodGet, "/tasks/missing"},
		{http.MethodPost, "/tasks/missing/cancel"},
		{http.MethodPost, "/tasks/missing/save"},
		{http.MethodDelete, "/tasks/missing"},
		{http.MethodGet, "/saved/missing"},
	} {
		recorder := perform(handler, request.method, request.path, nil)
		if recorder.Code != http.StatusNotFound {
			t.Errorf("%s %s = %d, want 404", request.method, request.path, recorder.Code)
		}
	}
}

func TestMetricsRoute(t *testing.T) {
	metrics := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("stratvithor_up 1\n"))
	})
	handler := New(newTestService(t), WithMetricsHandler(metrics)).Handler()

	recorder := perform(handler, http.MethodGet, "/metrics", nil)
	if recorder.Code != http.StatusOK || recorder.Body.String() != "stratvithor_up 1\n" {
		t.Errorf("GET /metrics = %d %q", recorder.Code, recorder.Body.String())
	}

	withoutMetrics := New(newTestService(t)).Handler()
	if recorder := perform(withoutMetrics, http.MethodGet, "/metrics", nil); recorder.Code != http.StatusNotFound {
		t.Errorf("GET /metrics without handler = %d, want 404", recorder.Code)
	}
}

func TestErrorStatus(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{err: task.ErrTaskNotFound, want: http.StatusNotFound},
		{err: report.ErrInvalidRequest, want: http.StatusBadRequest},
		{err: &promptgraph.CycleError{NodeIDs: []string{"1", "2"}}, want: http.StatusUnprocessableEntity},
		{err: task.ErrRegistryClosed, want: http.StatusServiceUnavailable},
		{err: context.DeadlineExceeded, want: http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got := errorStatus(tt.err); got != tt.want {
			t.Errorf("errorStatus(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}
