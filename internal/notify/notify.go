// Package notify owns the outbound alert lifecycle: deciding when a task
// event warrants an email, rendering the configured template, and recording
// the pending -> sent/failed transition. The transport itself is delegated
// to the mail.Sender collaborator and always runs off the request path.
package notify

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/austindbirch/task_sync/internal/logging"
	"github.com/austindbirch/task_sync/internal/mail"
	"github.com/austindbirch/task_sync/internal/metrics"
	"github.com/austindbirch/task_sync/internal/store"
)

// ErrTemplateMissing reports that a required notification template is not
// configured. Callers log it and move on; it never fails the surrounding
// operation.
var ErrTemplateMissing = errors.New("notification template not configured")

type Service struct {
	store          *store.Store
	sender         mail.Sender
	log            *logging.Logger
	recipient      string
	adminRecipient string

	wg sync.WaitGroup
}

func NewService(s *store.Store, sender mail.Sender, log *logging.Logger, recipient, adminRecipient string) *Service {
	return &Service{
		store:          s,
		sender:         sender,
		log:            log,
		recipient:      recipient,
		adminRecipient: adminRecipient,
	}
}

// TaskCompleted fires the task_completed notification for a task that just
// transitioned into the completed status. The notification record is created
// synchronously in pending state; the send and the status transition happen
// on a detached goroutine so the ingestion response never waits on email
// transport latency.
func (s *Service) TaskCompleted(ctx context.Context, task store.Task) error {
	tmpl, ok := s.store.TemplateByType(store.TemplateTaskCompleted)
	if !ok {
		s.log.WithContext(ctx).WithTask(task.ID).Error("task_completed email template not found")
		return ErrTemplateMissing
	}

	completedAt := time.Now().UTC()
	if task.CompletedAt != nil {
		completedAt = *task.CompletedAt
	}
	vars := map[string]string{
		"{{task.title}}":       task.Title,
		"{{task.projectName}}": task.ProjectName,
		"{{task.completedAt}}": completedAt.Format(time.RFC3339),
	}

	n := s.store.CreateNotification(store.Notification{
		Type:      "email",
		Recipient: s.recipient,
		Subject:   render(tmpl.Subject, vars),
		Message:   render(tmpl.Body, vars),
		TaskID:    task.ID,
	})
	s.log.WithContext(ctx).WithTask(task.ID).WithNotification(n.ID).Info("task completed notification queued")
	s.sendAsync(n)
	return nil
}

// ErrorAlert fires the error_alert notification to the administrative
// recipient after a systemic processing failure. Template gaps and send
// failures are logged and swallowed.
func (s *Service) ErrorAlert(source, errType string, procErr error) error {
	tmpl, ok := s.store.TemplateByType(store.TemplateErrorAlert)
	if !ok {
		s.log.Plain().WithField("alert_source", source).Error("error_alert email template not found")
		return ErrTemplateMissing
	}

	msg := "No message available"
	if procErr != nil {
		msg = procErr.Error()
	}
	vars := map[string]string{
		"{{source}}":          source,
		"{{error.type}}":      errType,
		"{{error.message}}":   msg,
		"{{error.timestamp}}": time.Now().UTC().Format(time.RFC3339),
	}

	n := s.store.CreateNotification(store.Notification{
		Type:      "email",
		Recipient: s.adminRecipient,
		Subject:   render(tmpl.Subject, vars),
		Message:   render(tmpl.Body, vars),
	})
	s.log.Plain().WithNotification(n.ID).WithField("alert_source", source).Info("error alert queued")
	s.sendAsync(n)
	return nil
}

// sendAsync delegates the transport and records the outcome on the exact
// notification created for this attempt.
func (s *Service) sendAsync(n store.Notification) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		err := s.sender.Send(context.Background(), mail.Message{
			To:      n.Recipient,
			Subject: n.Subject,
			Body:    n.Message,
		})
		if err != nil {
			s.store.SetNotificationStatus(n.ID, store.NotificationFailed, err.Error())
			metrics.RecordNotification(n.Type, string(store.NotificationFailed))
			s.log.Plain().WithNotification(n.ID).WithError(err).Error("notification send failed")
			return
		}
		s.store.SetNotificationStatus(n.ID, store.NotificationSent, "")
		metrics.RecordNotification(n.Type, string(store.NotificationSent))
	}()
}

// Drain blocks until all in-flight sends have recorded their outcome. Used
// on shutdown and by tests.
func (s *Service) Drain() {
	s.wg.Wait()
}

func render(text string, vars map[string]string) string {
	pairs := make([]string, 0, len(vars)*2)
	for k, v := range vars {
		pairs = append(pairs, k, v)
	}
	return strings.NewReplacer(pairs...).Replace(text)
}
