// Package ingest is the webhook boundary: it validates inbound task events,
// drives reconciliation, health accounting and notification triggering in
// order, and detaches the downstream sync once the synchronous outcome is
// decided.
package ingest

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/austindbirch/task_sync/internal/logging"
	"github.com/austindbirch/task_sync/internal/metrics"
	"github.com/austindbirch/task_sync/internal/notify"
	"github.com/austindbirch/task_sync/internal/reconcile"
	"github.com/austindbirch/task_sync/internal/store"
	"github.com/austindbirch/task_sync/internal/tracing"
)

// IngestPath is the fixed request path external systems post task events to.
const IngestPath = "/api/webhook/tasks"

// Syncer detaches downstream propagation for a reconciled task.
type Syncer interface {
	Dispatch(taskID string)
}

// Notifier records and sends outbound alerts.
type Notifier interface {
	TaskCompleted(ctx context.Context, task store.Task) error
	ErrorAlert(source, errType string, procErr error) error
}

// Result is the synchronous outcome reported to the webhook caller.
type Result struct {
	TaskID string
	Action string // "created" or "updated"
}

type Service struct {
	store    *store.Store
	engine   *reconcile.Engine
	notifier Notifier
	syncer   Syncer
	log      *logging.Logger
}

func NewService(s *store.Store, engine *reconcile.Engine, notifier Notifier, syncer Syncer, log *logging.Logger) *Service {
	return &Service{
		store:    s,
		engine:   engine,
		notifier: notifier,
		syncer:   syncer,
		log:      log,
	}
}

// ProcessEvent runs one ingestion attempt end to end. The returned error is
// either a *ValidationError or a *ProcessingError; in both cases exactly one
// error delivery log entry has been written and the endpoint counters have
// been moved. On success the sync dispatch has been enqueued but its outcome
// is deliberately not part of the result.
func (s *Service) ProcessEvent(ctx context.Context, req TaskEventRequest) (Result, error) {
	start := time.Now()
	ctx, span := tracing.StartSpan(ctx, "ingest.process_event",
		attribute.String("source_system", req.SourceSystem),
		attribute.String("external_id", req.ExternalID),
	)
	defer span.End()

	sourceSystem := req.SourceSystem
	if sourceSystem == "" {
		sourceSystem = "unknown"
	}
	ep := s.store.EnsureEndpoint(sourceSystem+" Tasks", IngestPath)

	s.log.WithContext(ctx).WithEndpoint(ep.ID).WithSource(sourceSystem).Info("received webhook task event")

	if verr := req.Validate(); verr != nil {
		s.recordFailure(ep.ID, req, start, verr.Error())
		metrics.RecordWebhookEvent("validation_error", "none", time.Since(start))
		tracing.SetSpanError(ctx, verr)
		s.log.WithContext(ctx).WithEndpoint(ep.ID).WithSource(sourceSystem).WithError(verr).Error("webhook payload rejected")
		return Result{}, verr
	}

	task, created, prior := s.engine.Apply(reconcile.Event{
		Title:        req.Title,
		Description:  req.Description,
		Status:       store.TaskStatus(req.Status),
		Priority:     store.TaskPriority(req.Priority),
		ProjectName:  req.ProjectName,
		Assignee:     req.Assignee,
		SourceSystem: req.SourceSystem,
		ExternalID:   req.ExternalID,
		Metadata:     req.Metadata,
	})
	action := "updated"
	if created {
		action = "created"
	}
	span.SetAttributes(
		attribute.String("task_id", task.ID),
		attribute.String("action", action),
	)

	if task.Status == store.StatusCompleted && (created || prior != store.StatusCompleted) {
		if err := s.notifier.TaskCompleted(ctx, task); err != nil && !errors.Is(err, notify.ErrTemplateMissing) {
			perr := &ProcessingError{Stage: "completion notification", Err: err}
			s.recordFailure(ep.ID, req, start, perr.Error())
			if aerr := s.notifier.ErrorAlert("Webhook Task Processing", "ProcessingError", perr); aerr != nil {
				s.log.WithContext(ctx).WithTask(task.ID).WithError(aerr).Error("error alert failed")
			}
			metrics.RecordWebhookEvent("processing_error", action, time.Since(start))
			tracing.SetSpanError(ctx, perr)
			return Result{}, perr
		}
	}

	elapsed := int(time.Since(start).Milliseconds())
	s.store.AppendDeliveryLog(store.DeliveryLog{
		EndpointID:     &ep.ID,
		Method:         "POST",
		Payload:        eventPayload(req),
		Status:         store.DeliverySuccess,
		ResponseTimeMS: &elapsed,
	})
	s.store.RecordAttempt(ep.ID, true, elapsed)
	metrics.RecordWebhookEvent("success", action, time.Since(start))

	// Enqueue is non-blocking; the dispatcher's retries and failures are
	// observable only through the delivery log.
	s.syncer.Dispatch(task.ID)

	s.log.WithContext(ctx).WithTask(task.ID).WithSource(sourceSystem).WithField("action", action).Info("webhook task event processed")
	return Result{TaskID: task.ID, Action: action}, nil
}

// recordFailure writes the single error log entry for a failed attempt and
// moves the endpoint counters.
func (s *Service) recordFailure(endpointID string, req TaskEventRequest, start time.Time, msg string) {
	elapsed := int(time.Since(start).Milliseconds())
	s.store.AppendDeliveryLog(store.DeliveryLog{
		EndpointID:     &endpointID,
		Method:         "POST",
		Payload:        eventPayload(req),
		Status:         store.DeliveryError,
		ErrorMessage:   msg,
		ResponseTimeMS: &elapsed,
	})
	s.store.RecordAttempt(endpointID, false, elapsed)
}

// eventPayload snapshots the request for the delivery log.
func eventPayload(req TaskEventRequest) map[string]any {
	p := map[string]any{
		"title":        req.Title,
		"status":       req.Status,
		"projectName":  req.ProjectName,
		"sourceSystem": req.SourceSystem,
	}
	if req.Description != "" {
		p["description"] = req.Description
	}
	if req.Priority != "" {
		p["priority"] = req.Priority
	}
	if req.Assignee != "" {
		p["assignee"] = req.Assignee
	}
	if req.ExternalID != "" {
		p["externalId"] = req.ExternalID
	}
	if req.Metadata != nil {
		p["metadata"] = req.Metadata
	}
	return p
}
