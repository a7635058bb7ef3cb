// Package reconcile decides whether an incoming task event creates a new
// task or updates an existing one, matching on the (sourceSystem,
// externalId) reconciliation key.
package reconcile

import (
	"sync"
	"time"

	"github.com/austindbirch/task_sync/internal/store"
)

// Event is a validated task-state-change payload ready to be applied.
type Event struct {
	Title        string
	Description  string
	Status       store.TaskStatus
	Priority     store.TaskPriority
	ProjectName  string
	Assignee     string
	SourceSystem string
	ExternalID   string
	Metadata     map[string]any
}

// Engine applies events to the store. A single mutex serializes the
// match-then-apply sequence so two near-simultaneous events for the same
// reconciliation key cannot both observe "no match" and double-create.
type Engine struct {
	mu    sync.Mutex
	store *store.Store
}

func NewEngine(s *store.Store) *Engine {
	return &Engine{store: s}
}

// Apply reconciles ev against the store. It returns the resulting task, a
// flag saying whether it was newly created, and the task's status prior to
// this event (the new status when created, used by the notification trigger
// to detect completion transitions).
func (e *Engine) Apply(ev Event) (task store.Task, created bool, prior store.TaskStatus) {
	e.mu.Lock()
	defer e.mu.Unlock()

	// Events with a priority left unset fall back to medium on both paths,
	// matching the source behavior.
	if ev.Priority == "" {
		ev.Priority = store.PriorityMedium
	}

	if existing, ok := e.store.TaskByExternal(ev.SourceSystem, ev.ExternalID); ok {
		prior = existing.Status
		task, _ = e.store.UpdateTask(existing.ID, func(t *store.Task) {
			applyEvent(t, ev)
		})
		return task, false, prior
	}

	task = e.store.CreateTask(store.Task{
		Title:        ev.Title,
		Description:  ev.Description,
		Status:       ev.Status,
		Priority:     ev.Priority,
		ProjectName:  ev.ProjectName,
		Assignee:     ev.Assignee,
		SourceSystem: ev.SourceSystem,
		ExternalID:   ev.ExternalID,
		Metadata:     ev.Metadata,
	})
	return task, true, task.Status
}

// applyEvent overwrites the mutable task fields with the incoming values.
// The field list is explicit: every event carries the full task state, so an
// absent optional overwrites with its zero value rather than being skipped.
// CompletedAt is stamped whenever the incoming status is completed and left
// untouched otherwise; it is never cleared.
func applyEvent(t *store.Task, ev Event) {
	t.Title = ev.Title
	t.Description = ev.Description
	t.Status = ev.Status
	t.Priority = ev.Priority
	t.ProjectName = ev.ProjectName
	t.Assignee = ev.Assignee
	t.Metadata = ev.Metadata
	if ev.Status == store.StatusCompleted {
		now := time.Now().UTC()
		t.CompletedAt = &now
	}
}
