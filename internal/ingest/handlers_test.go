package ingest

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/austindbirch/task_sync/internal/logging"
	"github.com/austindbirch/task_sync/internal/store"
)

func newTestRouter(t *testing.T) (*gin.Engine, *testEnv) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	env := newTestEnv(t)
	h := NewHandler(env.svc, env.store, logging.New("test"))

	router := gin.New()
	h.Register(router)
	admin := router.Group("/api")
	h.RegisterAdmin(admin)
	return router, env
}

func doJSON(t *testing.T, router *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(w.Body.Bytes(), v); err != nil {
		t.Fatalf("decode response %q: %v", w.Body.String(), err)
	}
}

func TestWebhookHandlerSuccess(t *testing.T) {
	router, env := newTestRouter(t)

	w := doJSON(t, router, http.MethodPost, IngestPath, validRequest())
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200; body %s", w.Code, w.Body.String())
	}

	var resp struct {
		Success bool   `json:"success"`
		TaskID  string `json:"taskId"`
		Action  string `json:"action"`
	}
	decodeBody(t, w, &resp)
	if !resp.Success || resp.Action != "created" || resp.TaskID == "" {
		t.Errorf("response = %+v, want success created with task id", resp)
	}
	if _, ok := env.store.Task(resp.TaskID); !ok {
		t.Error("reported task id not in store")
	}
}

func TestWebhookHandlerValidationFailure(t *testing.T) {
	router, _ := newTestRouter(t)

	req := validRequest()
	req.Status = "done"
	w := doJSON(t, router, http.MethodPost, IngestPath, req)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}

	var resp struct {
		Success bool              `json:"success"`
		Error   string            `json:"error"`
		Details map[string]string `json:"details"`
	}
	decodeBody(t, w, &resp)
	if resp.Success {
		t.Error("success = true on validation failure")
	}
	if resp.Error == "" {
		t.Error("error message empty")
	}
	if resp.Details["status"] == "" {
		t.Errorf("details = %v, want a status issue", resp.Details)
	}
}

func TestWebhookHandlerMalformedJSON(t *testing.T) {
	router, env := newTestRouter(t)

	req := httptest.NewRequest(http.MethodPost, IngestPath, bytes.NewReader([]byte("{not json")))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
	if env.store.TaskCount() != 0 {
		t.Error("task created from malformed JSON")
	}
}

func TestDashboardStatsHandler(t *testing.T) {
	router, _ := newTestRouter(t)
	doJSON(t, router, http.MethodPost, IngestPath, validRequest())

	w := doJSON(t, router, http.MethodGet, "/api/dashboard/stats", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}

	var stats store.DashboardStats
	decodeBody(t, w, &stats)
	if stats.ActiveWebhooks != 1 || stats.TasksProcessed != 1 {
		t.Errorf("stats = %+v, want 1 webhook and 1 task", stats)
	}
}

func TestTaskListHandlerFilters(t *testing.T) {
	router, _ := newTestRouter(t)

	reqs := []TaskEventRequest{
		{Title: "a", Status: "pending", ProjectName: "API", SourceSystem: "jira", ExternalID: "A-1"},
		{Title: "b", Status: "completed", ProjectName: "API", SourceSystem: "jira", ExternalID: "A-2"},
		{Title: "c", Status: "completed", ProjectName: "Web", SourceSystem: "github", ExternalID: "B-1"},
	}
	for _, r := range reqs {
		if w := doJSON(t, router, http.MethodPost, IngestPath, r); w.Code != http.StatusOK {
			t.Fatalf("seed event failed: %s", w.Body.String())
		}
	}

	tests := []struct {
		name string
		path string
		want int
	}{
		{name: "all", path: "/api/tasks", want: 3},
		{name: "by status", path: "/api/tasks?status=completed", want: 2},
		{name: "by project", path: "/api/tasks?project=Web", want: 1},
		{name: "limited", path: "/api/tasks?limit=2", want: 2},
		{name: "recent", path: "/api/tasks/recent?limit=1", want: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doJSON(t, router, http.MethodGet, tt.path, nil)
			if w.Code != http.StatusOK {
				t.Fatalf("status = %d, want 200", w.Code)
			}
			var tasks []store.Task
			decodeBody(t, w, &tasks)
			if len(tasks) != tt.want {
				t.Errorf("tasks = %d, want %d", len(tasks), tt.want)
			}
		})
	}
}

func TestWebhookCRUDHandlers(t *testing.T) {
	router, _ := newTestRouter(t)

	// Missing fields rejected with per-field details.
	w := doJSON(t, router, http.MethodPost, "/api/webhooks", map[string]any{"name": "only name"})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("create without endpoint: status = %d, want 400", w.Code)
	}

	w = doJSON(t, router, http.MethodPost, "/api/webhooks", map[string]any{
		"name":     "GitHub Tasks",
		"endpoint": "/api/webhook/github",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("create: status = %d, want 201; body %s", w.Code, w.Body.String())
	}
	var ep store.Endpoint
	decodeBody(t, w, &ep)
	if !ep.IsActive || ep.SuccessRate != 100 {
		t.Errorf("new endpoint = %+v, want active with 100%% success", ep)
	}

	// Duplicate path rejected.
	w = doJSON(t, router, http.MethodPost, "/api/webhooks", map[string]any{
		"name":     "dup",
		"endpoint": "/api/webhook/github",
	})
	if w.Code != http.StatusBadRequest {
		t.Errorf("duplicate create: status = %d, want 400", w.Code)
	}

	inactive := false
	w = doJSON(t, router, http.MethodPut, "/api/webhooks/"+ep.ID, map[string]any{"isActive": inactive})
	if w.Code != http.StatusOK {
		t.Fatalf("update: status = %d, want 200", w.Code)
	}
	decodeBody(t, w, &ep)
	if ep.IsActive {
		t.Error("endpoint still active after update")
	}

	w = doJSON(t, router, http.MethodPut, "/api/webhooks/missing", map[string]any{"name": "x"})
	if w.Code != http.StatusNotFound {
		t.Errorf("update missing: status = %d, want 404", w.Code)
	}

	w = doJSON(t, router, http.MethodDelete, "/api/webhooks/"+ep.ID, nil)
	if w.Code != http.StatusOK {
		t.Errorf("delete: status = %d, want 200", w.Code)
	}
	w = doJSON(t, router, http.MethodDelete, "/api/webhooks/"+ep.ID, nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("delete again: status = %d, want 404", w.Code)
	}
}

func TestTemplateHandlers(t *testing.T) {
	router, _ := newTestRouter(t)

	w := doJSON(t, router, http.MethodGet, "/api/email-templates", nil)
	var templates []store.EmailTemplate
	decodeBody(t, w, &templates)
	if len(templates) != 2 {
		t.Fatalf("seeded templates = %d, want 2", len(templates))
	}

	w = doJSON(t, router, http.MethodPost, "/api/email-templates", map[string]any{
		"name":    "Weekly Digest",
		"subject": "Digest",
		"body":    "...",
		"type":    "weekly_digest",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("create template: status = %d, want 201", w.Code)
	}
	var tpl store.EmailTemplate
	decodeBody(t, w, &tpl)

	w = doJSON(t, router, http.MethodPut, "/api/email-templates/"+tpl.ID, map[string]any{"subject": "Digest v2"})
	if w.Code != http.StatusOK {
		t.Fatalf("update template: status = %d, want 200", w.Code)
	}
	decodeBody(t, w, &tpl)
	if tpl.Subject != "Digest v2" {
		t.Errorf("subject = %q, want Digest v2", tpl.Subject)
	}
}

func TestLogsAndNotificationsHandlers(t *testing.T) {
	router, env := newTestRouter(t)

	doJSON(t, router, http.MethodPost, IngestPath, validRequest())
	bad := validRequest()
	bad.Title = ""
	doJSON(t, router, http.MethodPost, IngestPath, bad)
	env.notifier.Drain()

	w := doJSON(t, router, http.MethodGet, "/api/logs", nil)
	var logs []store.DeliveryLog
	decodeBody(t, w, &logs)
	if len(logs) != 2 {
		t.Errorf("logs = %d, want 2", len(logs))
	}

	w = doJSON(t, router, http.MethodGet, "/api/logs/errors", nil)
	logs = nil
	decodeBody(t, w, &logs)
	if len(logs) != 1 {
		t.Errorf("error logs = %d, want 1", len(logs))
	}

	w = doJSON(t, router, http.MethodGet, "/api/notifications", nil)
	var ns []store.Notification
	decodeBody(t, w, &ns)
	if len(ns) != 1 {
		t.Errorf("notifications = %d, want 1", len(ns))
	}
}

func TestTestWebhookHandler(t *testing.T) {
	router, env := newTestRouter(t)

	w := doJSON(t, router, http.MethodPost, "/api/test/webhook", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200; body %s", w.Code, w.Body.String())
	}
	env.notifier.Drain()

	if env.store.TaskCount() != 1 {
		t.Errorf("task count = %d, want 1", env.store.TaskCount())
	}
	// The synthetic event is completed, so the loopback exercises the
	// notification path too.
	if ns := env.store.Notifications(10); len(ns) != 1 {
		t.Errorf("notifications = %d, want 1", len(ns))
	}
	if got := env.syncer.dispatched(); len(got) != 1 {
		t.Errorf("dispatched = %v, want one task", got)
	}
}
