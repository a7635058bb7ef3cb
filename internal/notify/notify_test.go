package notify

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/austindbirch/task_sync/internal/logging"
	"github.com/austindbirch/task_sync/internal/mail"
	"github.com/austindbirch/task_sync/internal/store"
)

func newTestService(t *testing.T, rec *mail.Recorder) (*Service, *store.Store) {
	t.Helper()
	s := store.New()
	svc := NewService(s, rec, logging.New("test"), "user@example.com", "admin@example.com")
	return svc, s
}

func completedTask() store.Task {
	now := time.Now().UTC()
	return store.Task{
		ID:          "task-1",
		Title:       "Add auth",
		Status:      store.StatusCompleted,
		Priority:    store.PriorityMedium,
		ProjectName: "API",
		CompletedAt: &now,
	}
}

func TestTaskCompletedRendersAndSends(t *testing.T) {
	rec := &mail.Recorder{}
	svc, s := newTestService(t, rec)

	if err := svc.TaskCompleted(context.Background(), completedTask()); err != nil {
		t.Fatalf("TaskCompleted() error: %v", err)
	}
	svc.Drain()

	sent := rec.Sent()
	if len(sent) != 1 {
		t.Fatalf("sent %d messages, want 1", len(sent))
	}
	if sent[0].To != "user@example.com" {
		t.Errorf("recipient = %s, want user@example.com", sent[0].To)
	}
	if !strings.Contains(sent[0].Subject, "Add auth") {
		t.Errorf("subject not rendered: %q", sent[0].Subject)
	}
	if !strings.Contains(sent[0].Body, "API") {
		t.Errorf("body placeholder not substituted: %q", sent[0].Body)
	}
	if strings.Contains(sent[0].Body, "{{") {
		t.Errorf("unrendered placeholder left in body: %q", sent[0].Body)
	}

	ns := s.Notifications(10)
	if len(ns) != 1 {
		t.Fatalf("notifications = %d, want 1", len(ns))
	}
	if ns[0].Status != store.NotificationSent {
		t.Errorf("notification status = %s, want sent", ns[0].Status)
	}
	if ns[0].TaskID != "task-1" {
		t.Errorf("notification TaskID = %s, want task-1", ns[0].TaskID)
	}
	if ns[0].SentAt == nil {
		t.Error("SentAt not stamped")
	}
}

func TestTaskCompletedSendFailureMarksFailed(t *testing.T) {
	rec := &mail.Recorder{SendErr: errors.New("smtp refused")}
	svc, s := newTestService(t, rec)

	if err := svc.TaskCompleted(context.Background(), completedTask()); err != nil {
		t.Fatalf("TaskCompleted() error: %v", err)
	}
	svc.Drain()

	ns := s.Notifications(10)
	if len(ns) != 1 {
		t.Fatalf("notifications = %d, want 1", len(ns))
	}
	if ns[0].Status != store.NotificationFailed {
		t.Errorf("notification status = %s, want failed", ns[0].Status)
	}
	if ns[0].ErrorMessage != "smtp refused" {
		t.Errorf("ErrorMessage = %q, want smtp refused", ns[0].ErrorMessage)
	}
}

func TestTaskCompletedMissingTemplate(t *testing.T) {
	rec := &mail.Recorder{}
	svc, s := newTestService(t, rec)

	// Deactivate the seeded template so the lookup misses.
	for _, tmpl := range s.AllTemplates() {
		if tmpl.Type == store.TemplateTaskCompleted {
			s.UpdateTemplate(tmpl.ID, func(e *store.EmailTemplate) { e.IsActive = false })
		}
	}

	err := svc.TaskCompleted(context.Background(), completedTask())
	if !errors.Is(err, ErrTemplateMissing) {
		t.Fatalf("TaskCompleted() error = %v, want ErrTemplateMissing", err)
	}
	svc.Drain()

	if len(rec.Sent()) != 0 {
		t.Error("message sent despite missing template")
	}
	if len(s.Notifications(10)) != 0 {
		t.Error("notification recorded despite missing template")
	}
}

func TestErrorAlertGoesToAdmin(t *testing.T) {
	rec := &mail.Recorder{}
	svc, s := newTestService(t, rec)

	err := svc.ErrorAlert("Webhook Task Processing", "ProcessingError", errors.New("boom"))
	if err != nil {
		t.Fatalf("ErrorAlert() error: %v", err)
	}
	svc.Drain()

	sent := rec.Sent()
	if len(sent) != 1 {
		t.Fatalf("sent %d messages, want 1", len(sent))
	}
	if sent[0].To != "admin@example.com" {
		t.Errorf("recipient = %s, want admin@example.com", sent[0].To)
	}
	if !strings.Contains(sent[0].Body, "boom") {
		t.Errorf("error message not rendered into body: %q", sent[0].Body)
	}
	if !strings.Contains(sent[0].Body, "Webhook Task Processing") {
		t.Errorf("source not rendered into body: %q", sent[0].Body)
	}

	ns := s.Notifications(10)
	if len(ns) != 1 || ns[0].Status != store.NotificationSent {
		t.Errorf("notifications = %+v, want one sent", ns)
	}
}

func TestRender(t *testing.T) {
	tests := []struct {
		name string
		text string
		vars map[string]string
		want string
	}{
		{
			name: "single placeholder",
			text: "Task {{task.title}} done",
			vars: map[string]string{"{{task.title}}": "Add auth"},
			want: "Task Add auth done",
		},
		{
			name: "repeated placeholder",
			text: "{{x}} and {{x}}",
			vars: map[string]string{"{{x}}": "y"},
			want: "y and y",
		},
		{
			name: "unknown placeholders stay",
			text: "{{unknown}}",
			vars: map[string]string{"{{x}}": "y"},
			want: "{{unknown}}",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := render(tt.text, tt.vars); got != tt.want {
				t.Errorf("render() = %q, want %q", got, tt.want)
			}
		})
	}
}
