// Package dispatch propagates reconciled tasks to the downstream service.
// Dispatches are fire-and-forget: the caller enqueues a task id onto a
// bounded queue and a small worker pool runs the retry loop. Failures after
// the final attempt surface only through the delivery log, never to the
// caller that triggered the dispatch.
package dispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/austindbirch/task_sync/internal/config"
	"github.com/austindbirch/task_sync/internal/logging"
	"github.com/austindbirch/task_sync/internal/metrics"
	"github.com/austindbirch/task_sync/internal/store"
	"github.com/austindbirch/task_sync/internal/tracing"
)

// taskPayload is the normalized projection sent downstream.
type taskPayload struct {
	ID          string         `json:"id"`
	Title       string         `json:"title"`
	Description string         `json:"description,omitempty"`
	Status      string         `json:"status"`
	Priority    string         `json:"priority"`
	ProjectName string         `json:"projectName"`
	Assignee    string         `json:"assignee,omitempty"`
	ExternalID  string         `json:"externalId,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
	UpdatedAt   time.Time      `json:"updatedAt"`
}

// Status is the result of a downstream reachability probe.
type Status struct {
	Healthy        bool   `json:"healthy"`
	ResponseTimeMS int    `json:"responseTime"`
	LastError      string `json:"lastError,omitempty"`
}

type Dispatcher struct {
	cfg    config.Sync
	store  *store.Store
	log    *logging.Logger
	client *http.Client

	jobs chan string
	wg   sync.WaitGroup
	once sync.Once
}

// New builds a dispatcher. Start must be called before Dispatch.
func New(cfg config.Sync, s *store.Store, log *logging.Logger) *Dispatcher {
	if cfg.RetryAttempts <= 0 {
		cfg.RetryAttempts = 3
	}
	if cfg.RetryBaseDelay <= 0 {
		cfg.RetryBaseDelay = time.Second
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 256
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	return &Dispatcher{
		cfg:    cfg,
		store:  s,
		log:    log,
		client: &http.Client{Timeout: cfg.Timeout},
		jobs:   make(chan string, cfg.QueueSize),
	}
}

// Start launches the worker pool.
func (d *Dispatcher) Start() {
	for i := 0; i < d.cfg.Workers; i++ {
		d.wg.Add(1)
		go func() {
			defer d.wg.Done()
			for taskID := range d.jobs {
				metrics.UpdateQueueDepth(float64(len(d.jobs)))
				d.deliver(context.Background(), taskID)
			}
		}()
	}
}

// Dispatch enqueues a sync for the given task. It never blocks: when the
// queue is full the dispatch is dropped and recorded as a sync failure in
// the delivery log.
func (d *Dispatcher) Dispatch(taskID string) {
	select {
	case d.jobs <- taskID:
		metrics.UpdateQueueDepth(float64(len(d.jobs)))
	default:
		d.log.Plain().WithTask(taskID).Error("dispatch queue full, dropping sync")
		d.store.AppendDeliveryLog(store.DeliveryLog{
			Method:       "SYNC",
			Status:       store.DeliveryError,
			ErrorMessage: "dispatch queue full",
			Payload:      map[string]any{"taskId": taskID, "action": "sync_task"},
		})
		metrics.RecordSyncFailure()
	}
}

// Shutdown stops accepting work and waits for in-flight dispatches to run to
// completion, up to the context deadline.
func (d *Dispatcher) Shutdown(ctx context.Context) error {
	d.once.Do(func() { close(d.jobs) })
	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// deliver runs the retry state machine for one task: up to RetryAttempts
// downstream calls with a backoff of RetryBaseDelay * attempt between them.
// Exhausting all attempts writes exactly one delivery log entry with a nil
// endpoint reference; no further retries occur after that.
func (d *Dispatcher) deliver(ctx context.Context, taskID string) {
	ctx, span := tracing.StartSpan(ctx, "dispatch.sync_task",
		attribute.String("task_id", taskID),
	)
	defer span.End()

	task, ok := d.store.Task(taskID)
	if !ok {
		d.log.WithContext(ctx).WithTask(taskID).Error("task not found for sync")
		return
	}

	body, err := json.Marshal(taskPayload{
		ID:          task.ID,
		Title:       task.Title,
		Description: task.Description,
		Status:      string(task.Status),
		Priority:    string(task.Priority),
		ProjectName: task.ProjectName,
		Assignee:    task.Assignee,
		ExternalID:  task.ExternalID,
		Metadata:    task.Metadata,
		UpdatedAt:   task.UpdatedAt,
	})
	if err != nil {
		d.log.WithContext(ctx).WithTask(taskID).WithError(err).Error("marshal sync payload failed")
		return
	}

	var lastErr error
	for attempt := 1; attempt <= d.cfg.RetryAttempts; attempt++ {
		tracing.AddSpanEvent(ctx, "dispatch.attempt", attribute.Int("attempt", attempt))
		d.log.WithContext(ctx).WithTask(taskID).WithField("attempt", attempt).Info("syncing task to external service")

		err := d.postTask(ctx, body)
		if err == nil {
			metrics.RecordSyncAttempt("delivered")
			span.SetAttributes(attribute.Int("final_attempt", attempt))
			d.log.WithContext(ctx).WithTask(taskID).WithField("attempt", attempt).Info("task synced to external service")
			return
		}

		lastErr = err
		metrics.RecordSyncAttempt("failed")
		d.log.WithContext(ctx).WithTask(taskID).WithField("attempt", attempt).WithError(err).Error("sync attempt failed")
		if attempt < d.cfg.RetryAttempts {
			metrics.RecordSyncRetry(classifyReason(err))
			time.Sleep(d.cfg.RetryBaseDelay * time.Duration(attempt))
		}
	}

	tracing.SetSpanError(ctx, lastErr)
	metrics.RecordSyncFailure()
	d.log.WithContext(ctx).WithTask(taskID).WithError(lastErr).Error("all sync attempts failed")
	d.store.AppendDeliveryLog(store.DeliveryLog{
		Method:       "SYNC",
		Status:       store.DeliveryError,
		ErrorMessage: "failed to sync task to external service after all retry attempts: " + lastErr.Error(),
		Payload:      map[string]any{"taskId": taskID, "action": "sync_task"},
	})
}

// postTask performs one downstream call.
func (d *Dispatcher) postTask(ctx context.Context, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.cfg.BaseURL+"/tasks", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+d.cfg.APIKey)

	resp, err := d.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("HTTP %d: %s", resp.StatusCode, http.StatusText(resp.StatusCode))
	}
	return nil
}

// Probe checks downstream reachability with a single GET against the health
// path. It is independent of the retry state machine.
func (d *Dispatcher) Probe(ctx context.Context) Status {
	ctx, cancel := context.WithTimeout(ctx, d.cfg.Timeout)
	defer cancel()

	start := time.Now()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, d.cfg.BaseURL+"/health", nil)
	if err != nil {
		return Status{LastError: err.Error()}
	}
	req.Header.Set("Authorization", "Bearer "+d.cfg.APIKey)

	resp, err := d.client.Do(req)
	elapsed := int(time.Since(start).Milliseconds())
	if err != nil {
		return Status{ResponseTimeMS: elapsed, LastError: err.Error()}
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return Status{ResponseTimeMS: elapsed, LastError: fmt.Sprintf("HTTP %d", resp.StatusCode)}
	}
	return Status{Healthy: true, ResponseTimeMS: elapsed}
}

// classifyReason buckets a failed attempt for retry metrics.
func classifyReason(err error) string {
	if err == nil {
		return "other"
	}
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "timeout") || strings.Contains(msg, "deadline exceeded"):
		return "timeout"
	case strings.Contains(msg, "connection refused"):
		return "connection_refused"
	case strings.Contains(msg, "no such host") || strings.Contains(msg, "dns"):
		return "dns_error"
	case strings.HasPrefix(msg, "http 5"):
		return "http_5xx"
	case strings.HasPrefix(msg, "http 429"):
		return "http_429"
	case strings.HasPrefix(msg, "http 4"):
		return "http_4xx"
	default:
		return "network"
	}
}
