// Package store holds the in-memory event store shared by the ingestion
// pipeline: tasks, endpoint records, delivery logs, email templates, and
// notifications. A single RWMutex serializes all access; records handed out
// are copies, so callers never observe concurrent mutation.
package store

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrEndpointExists is returned when registering an endpoint on a path that
// already has one. Paths are unique.
var ErrEndpointExists = errors.New("endpoint path already registered")

type Store struct {
	mu sync.RWMutex

	tasks         map[string]*Task
	taskByKey     map[string]string // reconciliation key -> task id
	endpoints     map[string]*Endpoint
	logs          []*DeliveryLog
	templates     map[string]*EmailTemplate
	notifications map[string]*Notification
}

// New returns an empty store seeded with the default notification templates.
func New() *Store {
	s := &Store{
		tasks:         make(map[string]*Task),
		taskByKey:     make(map[string]string),
		endpoints:     make(map[string]*Endpoint),
		templates:     make(map[string]*EmailTemplate),
		notifications: make(map[string]*Notification),
	}
	s.seedDefaultTemplates()
	return s
}

func (s *Store) seedDefaultTemplates() {
	now := time.Now().UTC()
	defaults := []*EmailTemplate{
		{
			ID:      uuid.NewString(),
			Name:    "Task Completed",
			Subject: "Task '{{task.title}}' has been completed",
			Body: "The task '{{task.title}}' in project '{{task.projectName}}' has been marked as completed.\n\n" +
				"Task Details:\n- Title: {{task.title}}\n- Project: {{task.projectName}}\n- Completed At: {{task.completedAt}}\n\n" +
				"Best regards,\nTaskSync Team",
			Type:      TemplateTaskCompleted,
			IsActive:  true,
			CreatedAt: now,
			UpdatedAt: now,
		},
		{
			ID:      uuid.NewString(),
			Name:    "Error Alert",
			Subject: "Webhook Error: {{error.type}}",
			Body: "An error occurred while processing webhook data from {{source}}.\n\n" +
				"Error Details:\n- Type: {{error.type}}\n- Message: {{error.message}}\n- Timestamp: {{error.timestamp}}\n\n" +
				"Please check the system logs for more information.\n\nTaskSync Team",
			Type:      TemplateErrorAlert,
			IsActive:  true,
			CreatedAt: now,
			UpdatedAt: now,
		},
	}
	for _, t := range defaults {
		s.templates[t.ID] = t
	}
}

// reconciliationKey builds the map key for a (sourceSystem, externalId)
// pair. The NUL separator keeps distinct pairs from colliding.
func reconciliationKey(sourceSystem, externalID string) string {
	return sourceSystem + "\x00" + externalID
}

// --- tasks ---

// Task returns the task with the given id.
func (s *Store) Task(id string) (Task, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tasks[id]
	if !ok {
		return Task{}, false
	}
	return *t, true
}

// TaskByExternal resolves a task through the reconciliation key. It returns
// false when externalID is empty: without a key there is nothing to match.
func (s *Store) TaskByExternal(sourceSystem, externalID string) (Task, bool) {
	if externalID == "" {
		return Task{}, false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.taskByKey[reconciliationKey(sourceSystem, externalID)]
	if !ok {
		return Task{}, false
	}
	return *s.tasks[id], true
}

// CreateTask inserts t with a fresh identifier and creation timestamps.
// CompletedAt is set iff the initial status is completed. Callers creating
// keyed tasks must serialize through the reconciliation engine so that two
// concurrent events cannot both miss the index and double-create.
func (s *Store) CreateTask(t Task) Task {
	now := time.Now().UTC()
	t.ID = uuid.NewString()
	t.CreatedAt = now
	t.UpdatedAt = now
	if t.Status == StatusCompleted {
		t.CompletedAt = &now
	} else {
		t.CompletedAt = nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.tasks[t.ID] = &t
	if t.ExternalID != "" {
		s.taskByKey[reconciliationKey(t.SourceSystem, t.ExternalID)] = t.ID
	}
	return t
}

// UpdateTask applies fn to the task with the given id under the store lock
// and returns the resulting snapshot. UpdatedAt is stamped after fn runs.
func (s *Store) UpdateTask(id string, fn func(*Task)) (Task, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[id]
	if !ok {
		return Task{}, false
	}
	fn(t)
	t.UpdatedAt = time.Now().UTC()
	return *t, true
}

// DeleteTask removes a task. Administrative path only; ingestion never
// deletes.
func (s *Store) DeleteTask(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[id]
	if !ok {
		return false
	}
	if t.ExternalID != "" {
		delete(s.taskByKey, reconciliationKey(t.SourceSystem, t.ExternalID))
	}
	delete(s.tasks, id)
	return true
}

// AllTasks returns every task, most recently updated first.
func (s *Store) AllTasks() []Task {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Task, 0, len(s.tasks))
	for _, t := range s.tasks {
		out = append(out, *t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	return out
}

// TasksByStatus filters tasks on status.
func (s *Store) TasksByStatus(status TaskStatus) []Task {
	all := s.AllTasks()
	out := all[:0]
	for _, t := range all {
		if t.Status == status {
			out = append(out, t)
		}
	}
	return out
}

// TasksByProject filters tasks on project name.
func (s *Store) TasksByProject(project string) []Task {
	all := s.AllTasks()
	out := all[:0]
	for _, t := range all {
		if t.ProjectName == project {
			out = append(out, t)
		}
	}
	return out
}

// RecentTasks returns up to limit tasks, most recently updated first.
func (s *Store) RecentTasks(limit int) []Task {
	all := s.AllTasks()
	if limit > 0 && len(all) > limit {
		all = all[:limit]
	}
	return all
}

// TaskCount returns the number of stored tasks.
func (s *Store) TaskCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.tasks)
}

// --- endpoints ---

// Endpoint returns the endpoint record with the given id.
func (s *Store) Endpoint(id string) (Endpoint, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.endpoints[id]
	if !ok {
		return Endpoint{}, false
	}
	return *e, true
}

// EndpointByPath resolves an endpoint by its unique request path.
func (s *Store) EndpointByPath(path string) (Endpoint, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, e := range s.endpoints {
		if e.Endpoint == path {
			return *e, true
		}
	}
	return Endpoint{}, false
}

// CreateEndpoint registers a new inbound channel. A fresh endpoint starts
// with zero traffic and a 100% success rate per the accounting invariant.
func (s *Store) CreateEndpoint(name, path string, active bool) (Endpoint, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range s.endpoints {
		if e.Endpoint == path {
			return Endpoint{}, fmt.Errorf("%w: %s", ErrEndpointExists, path)
		}
	}
	e := &Endpoint{
		ID:          uuid.NewString(),
		Name:        name,
		Endpoint:    path,
		IsActive:    active,
		SuccessRate: 100,
		CreatedAt:   time.Now().UTC(),
	}
	s.endpoints[e.ID] = e
	return *e, nil
}

// EnsureEndpoint returns the endpoint for path, lazily registering it on
// first sight.
func (s *Store) EnsureEndpoint(name, path string) Endpoint {
	if e, ok := s.EndpointByPath(path); ok {
		return e
	}
	e, err := s.CreateEndpoint(name, path, true)
	if err != nil {
		// Lost the race to another creator; the record exists now.
		e, _ = s.EndpointByPath(path)
	}
	return e
}

// UpdateEndpoint applies fn to an endpoint under the store lock.
func (s *Store) UpdateEndpoint(id string, fn func(*Endpoint)) (Endpoint, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.endpoints[id]
	if !ok {
		return Endpoint{}, false
	}
	fn(e)
	return *e, true
}

// DeleteEndpoint removes an endpoint registration. Administrative path only.
func (s *Store) DeleteEndpoint(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.endpoints[id]; !ok {
		return false
	}
	delete(s.endpoints, id)
	return true
}

// AllEndpoints returns every registered endpoint.
func (s *Store) AllEndpoints() []Endpoint {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Endpoint, 0, len(s.endpoints))
	for _, e := range s.endpoints {
		out = append(out, *e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

// ActiveEndpoints returns endpoints with the active flag set.
func (s *Store) ActiveEndpoints() []Endpoint {
	all := s.AllEndpoints()
	out := all[:0]
	for _, e := range all {
		if e.IsActive {
			out = append(out, e)
		}
	}
	return out
}

// RecordAttempt updates an endpoint's health counters after one synchronous
// ingestion attempt: totalRequests always increments, failedRequests
// increments only on failure, and successRate is recomputed as
// round(100 * ok / total).
func (s *Store) RecordAttempt(endpointID string, succeeded bool, responseTimeMS int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.endpoints[endpointID]
	if !ok {
		return
	}
	e.TotalRequests++
	if !succeeded {
		e.FailedRequests++
	}
	e.SuccessRate = int(math.Round(float64(e.TotalRequests-e.FailedRequests) / float64(e.TotalRequests) * 100))
	now := time.Now().UTC()
	e.LastActivity = &now
	_ = responseTimeMS // response times live on the delivery log, not the endpoint
}

// --- delivery logs ---

// AppendDeliveryLog records one ingestion or sync attempt. Entries are
// append-only and never mutated.
func (s *Store) AppendDeliveryLog(l DeliveryLog) DeliveryLog {
	l.ID = uuid.NewString()
	l.CreatedAt = time.Now().UTC()
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := l
	s.logs = append(s.logs, &cp)
	return l
}

// DeliveryLogs returns up to limit entries, newest first, optionally
// filtered to one endpoint.
func (s *Store) DeliveryLogs(endpointID string, limit int) []DeliveryLog {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]DeliveryLog, 0, len(s.logs))
	for _, l := range s.logs {
		if endpointID != "" && (l.EndpointID == nil || *l.EndpointID != endpointID) {
			continue
		}
		out = append(out, *l)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// ErrorLogs returns up to limit error/warning entries, newest first.
func (s *Store) ErrorLogs(limit int) []DeliveryLog {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]DeliveryLog, 0)
	for _, l := range s.logs {
		if l.Status == DeliveryError || l.Status == DeliveryWarning {
			out = append(out, *l)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// --- email templates ---

// Template returns the template with the given id.
func (s *Store) Template(id string) (EmailTemplate, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.templates[id]
	if !ok {
		return EmailTemplate{}, false
	}
	return *t, true
}

// TemplateByType returns the active template of the given type.
func (s *Store) TemplateByType(typ string) (EmailTemplate, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, t := range s.templates {
		if t.Type == typ && t.IsActive {
			return *t, true
		}
	}
	return EmailTemplate{}, false
}

// AllTemplates returns every template.
func (s *Store) AllTemplates() []EmailTemplate {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]EmailTemplate, 0, len(s.templates))
	for _, t := range s.templates {
		out = append(out, *t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// CreateTemplate inserts a template with a fresh identifier.
func (s *Store) CreateTemplate(t EmailTemplate) EmailTemplate {
	now := time.Now().UTC()
	t.ID = uuid.NewString()
	t.CreatedAt = now
	t.UpdatedAt = now
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := t
	s.templates[t.ID] = &cp
	return t
}

// UpdateTemplate applies fn to a template under the store lock.
func (s *Store) UpdateTemplate(id string, fn func(*EmailTemplate)) (EmailTemplate, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.templates[id]
	if !ok {
		return EmailTemplate{}, false
	}
	fn(t)
	t.UpdatedAt = time.Now().UTC()
	return *t, true
}

// DeleteTemplate removes a template.
func (s *Store) DeleteTemplate(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.templates[id]; !ok {
		return false
	}
	delete(s.templates, id)
	return true
}

// --- notifications ---

// CreateNotification records an outbound alert in pending state. The
// notification trigger owns the subsequent status transition.
func (s *Store) CreateNotification(n Notification) Notification {
	n.ID = uuid.NewString()
	n.Status = NotificationPending
	n.SentAt = nil
	n.CreatedAt = time.Now().UTC()
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := n
	s.notifications[n.ID] = &cp
	return n
}

// SetNotificationStatus transitions a notification to sent or failed.
// SentAt is stamped only on the sent transition.
func (s *Store) SetNotificationStatus(id string, status NotificationStatus, errMsg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.notifications[id]
	if !ok {
		return
	}
	n.Status = status
	n.ErrorMessage = errMsg
	if status == NotificationSent {
		now := time.Now().UTC()
		n.SentAt = &now
	}
}

// Notification returns the notification with the given id.
func (s *Store) Notification(id string) (Notification, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n, ok := s.notifications[id]
	if !ok {
		return Notification{}, false
	}
	return *n, true
}

// Notifications returns up to limit notifications, newest first.
func (s *Store) Notifications(limit int) []Notification {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Notification, 0, len(s.notifications))
	for _, n := range s.notifications {
		out = append(out, *n)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// --- dashboard ---

// Stats aggregates the operator dashboard counters.
func (s *Store) Stats() DashboardStats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st := DashboardStats{TasksProcessed: len(s.tasks)}
	for _, e := range s.endpoints {
		if e.IsActive {
			st.ActiveWebhooks++
		}
	}
	var sum, n int
	for _, l := range s.logs {
		if l.Status == DeliveryError {
			st.FailedRequests++
		}
		if l.ResponseTimeMS != nil {
			sum += *l.ResponseTimeMS
			n++
		}
	}
	if n > 0 {
		st.AvgResponseTime = int(math.Round(float64(sum) / float64(n)))
	}
	return st
}
