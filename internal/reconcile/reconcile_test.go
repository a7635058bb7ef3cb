package reconcile

import (
	"fmt"
	"sync"
	"testing"

	"github.com/austindbirch/task_sync/internal/store"
)

func testEvent() Event {
	return Event{
		Title:        "Add auth",
		Status:       store.StatusPending,
		Priority:     store.PriorityMedium,
		ProjectName:  "API",
		SourceSystem: "jira",
		ExternalID:   "PROJ-1",
	}
}

func TestApplyCreatesOnFreshKey(t *testing.T) {
	s := store.New()
	e := NewEngine(s)

	task, created, prior := e.Apply(testEvent())
	if !created {
		t.Fatal("Apply() created = false for a fresh reconciliation key")
	}
	if prior != store.StatusPending {
		t.Errorf("prior status on create = %s, want the new status", prior)
	}
	if task.SourceSystem != "jira" || task.ExternalID != "PROJ-1" {
		t.Errorf("reconciliation key not stored: %s/%s", task.SourceSystem, task.ExternalID)
	}
	if s.TaskCount() != 1 {
		t.Errorf("task count = %d, want 1", s.TaskCount())
	}
}

func TestApplyUpdatesOnMatchingKey(t *testing.T) {
	s := store.New()
	e := NewEngine(s)

	first, _, _ := e.Apply(testEvent())

	ev := testEvent()
	ev.Status = store.StatusInProgress
	ev.Title = "Add auth (revised)"
	second, created, prior := e.Apply(ev)

	if created {
		t.Fatal("Apply() created = true for a matching key")
	}
	if second.ID != first.ID {
		t.Errorf("update produced a different task: %s vs %s", second.ID, first.ID)
	}
	if prior != store.StatusPending {
		t.Errorf("prior = %s, want pending", prior)
	}
	if second.Status != store.StatusInProgress || second.Title != "Add auth (revised)" {
		t.Errorf("fields not overwritten: %+v", second)
	}
	if s.TaskCount() != 1 {
		t.Errorf("task count = %d after update, want 1", s.TaskCount())
	}
}

func TestApplyWithoutExternalIDAlwaysCreates(t *testing.T) {
	s := store.New()
	e := NewEngine(s)

	ev := testEvent()
	ev.ExternalID = ""

	for i := 0; i < 3; i++ {
		if _, created, _ := e.Apply(ev); !created {
			t.Fatalf("Apply() #%d without externalId created = false", i+1)
		}
	}
	if s.TaskCount() != 3 {
		t.Errorf("task count = %d, want 3", s.TaskCount())
	}
}

func TestApplyIdempotentReplay(t *testing.T) {
	s := store.New()
	e := NewEngine(s)

	ev := testEvent()
	ev.Status = store.StatusInProgress
	e.Apply(ev)
	first, _, _ := e.Apply(ev)
	second, created, _ := e.Apply(ev)

	if created {
		t.Fatal("replay created a new task")
	}
	if second.Status != first.Status || second.Priority != first.Priority || second.ProjectName != first.ProjectName {
		t.Errorf("replay changed fields: %+v vs %+v", second, first)
	}
}

func TestApplyDefaultsPriorityToMedium(t *testing.T) {
	s := store.New()
	e := NewEngine(s)

	ev := testEvent()
	ev.Priority = ""
	task, _, _ := e.Apply(ev)
	if task.Priority != store.PriorityMedium {
		t.Errorf("created priority = %s, want medium", task.Priority)
	}

	ev.Priority = ""
	ev.Status = store.StatusInProgress
	task, _, _ = e.Apply(ev)
	if task.Priority != store.PriorityMedium {
		t.Errorf("updated priority = %s, want medium", task.Priority)
	}
}

func TestApplyCompletedAtIsSticky(t *testing.T) {
	s := store.New()
	e := NewEngine(s)

	ev := testEvent()
	ev.Status = store.StatusCompleted
	task, _, _ := e.Apply(ev)
	if task.CompletedAt == nil {
		t.Fatal("CompletedAt not set when created as completed")
	}
	stamp := *task.CompletedAt

	// Moving away from completed keeps the stamp.
	ev.Status = store.StatusInProgress
	task, _, _ = e.Apply(ev)
	if task.CompletedAt == nil || !task.CompletedAt.Equal(stamp) {
		t.Errorf("CompletedAt changed on non-completed update: %v", task.CompletedAt)
	}
}

func TestApplyConcurrentSameKeyCreatesOnce(t *testing.T) {
	s := store.New()
	e := NewEngine(s)

	const goroutines = 16
	var wg sync.WaitGroup
	createdCount := make(chan bool, goroutines)

	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, created, _ := e.Apply(testEvent())
			createdCount <- created
		}()
	}
	wg.Wait()
	close(createdCount)

	creates := 0
	for created := range createdCount {
		if created {
			creates++
		}
	}
	if creates != 1 {
		t.Errorf("concurrent applies created %d tasks, want 1", creates)
	}
	if s.TaskCount() != 1 {
		t.Errorf("task count = %d, want 1", s.TaskCount())
	}
}

func TestApplyDistinctKeysStayDistinct(t *testing.T) {
	s := store.New()
	e := NewEngine(s)

	for i := 0; i < 5; i++ {
		ev := testEvent()
		ev.ExternalID = fmt.Sprintf("PROJ-%d", i)
		if _, created, _ := e.Apply(ev); !created {
			t.Errorf("event PROJ-%d did not create", i)
		}
	}
	if s.TaskCount() != 5 {
		t.Errorf("task count = %d, want 5", s.TaskCount())
	}
}
