package ingest

import (
	"fmt"
	"sort"
	"strings"

	"github.com/austindbirch/task_sync/internal/store"
)

// TaskEventRequest is the inbound webhook payload describing one
// task-state change in an external system.
type TaskEventRequest struct {
	Title        string         `json:"title"`
	Description  string         `json:"description"`
	Status       string         `json:"status"`
	Priority     string         `json:"priority"`
	ProjectName  string         `json:"projectName"`
	Assignee     string         `json:"assignee"`
	SourceSystem string         `json:"sourceSystem"`
	ExternalID   string         `json:"externalId"`
	Metadata     map[string]any `json:"metadata"`
}

// ValidationError reports a malformed event payload. It carries one message
// per offending field so callers can repair their integration without
// guessing.
type ValidationError struct {
	Issues map[string]string `json:"issues"`
}

func (e *ValidationError) Error() string {
	fields := make([]string, 0, len(e.Issues))
	for f := range e.Issues {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	return "invalid task event payload: " + strings.Join(fields, ", ")
}

// Validate checks required fields and enum values. A nil return means the
// payload is well formed.
func (r TaskEventRequest) Validate() *ValidationError {
	issues := make(map[string]string)
	if strings.TrimSpace(r.Title) == "" {
		issues["title"] = "title is required"
	}
	if strings.TrimSpace(r.ProjectName) == "" {
		issues["projectName"] = "projectName is required"
	}
	if strings.TrimSpace(r.SourceSystem) == "" {
		issues["sourceSystem"] = "sourceSystem is required"
	}
	if r.Status == "" {
		issues["status"] = "status is required"
	} else if !store.TaskStatus(r.Status).Valid() {
		issues["status"] = fmt.Sprintf("status %q is not one of pending, in-progress, completed, cancelled", r.Status)
	}
	if r.Priority != "" && !store.TaskPriority(r.Priority).Valid() {
		issues["priority"] = fmt.Sprintf("priority %q is not one of low, medium, high, urgent", r.Priority)
	}
	if len(issues) == 0 {
		return nil
	}
	return &ValidationError{Issues: issues}
}

// ProcessingError wraps a failure past validation: reconciliation, health
// accounting, or notification recording. It is surfaced to the caller and
// raises an administrative alert.
type ProcessingError struct {
	Stage string
	Err   error
}

func (e *ProcessingError) Error() string {
	return fmt.Sprintf("%s failed: %v", e.Stage, e.Err)
}

func (e *ProcessingError) Unwrap() error { return e.Err }
