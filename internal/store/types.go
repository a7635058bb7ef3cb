package store

import "time"

// TaskStatus is the lifecycle state reported by the source system.
type TaskStatus string

const (
	StatusPending    TaskStatus = "pending"
	StatusInProgress TaskStatus = "in-progress"
	StatusCompleted  TaskStatus = "completed"
	StatusCancelled  TaskStatus = "cancelled"
)

// Valid reports whether s is one of the recognized task statuses.
func (s TaskStatus) Valid() bool {
	switch s {
	case StatusPending, StatusInProgress, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

// TaskPriority is the urgency reported by the source system.
type TaskPriority string

const (
	PriorityLow    TaskPriority = "low"
	PriorityMedium TaskPriority = "medium"
	PriorityHigh   TaskPriority = "high"
	PriorityUrgent TaskPriority = "urgent"
)

// Valid reports whether p is one of the recognized priorities.
func (p TaskPriority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent:
		return true
	}
	return false
}

// Task is one unit of work tracked on behalf of an external system.
// The pair (SourceSystem, ExternalID) is the reconciliation key: when
// ExternalID is set, at most one task exists for that pair.
type Task struct {
	ID           string         `json:"id"`
	Title        string         `json:"title"`
	Description  string         `json:"description,omitempty"`
	Status       TaskStatus     `json:"status"`
	Priority     TaskPriority   `json:"priority"`
	ProjectName  string         `json:"projectName"`
	Assignee     string         `json:"assignee,omitempty"`
	SourceSystem string         `json:"sourceSystem"`
	ExternalID   string         `json:"externalId,omitempty"`
	Metadata     map[string]any `json:"metadata,omitempty"`
	CreatedAt    time.Time      `json:"createdAt"`
	UpdatedAt    time.Time      `json:"updatedAt"`
	CompletedAt  *time.Time     `json:"completedAt,omitempty"`
}

// Endpoint is one logical inbound channel with its own health statistics.
type Endpoint struct {
	ID             string     `json:"id"`
	Name           string     `json:"name"`
	Endpoint       string     `json:"endpoint"` // request path, unique
	IsActive       bool       `json:"isActive"`
	TotalRequests  int        `json:"totalRequests"`
	FailedRequests int        `json:"failedRequests"`
	SuccessRate    int        `json:"successRate"` // derived, integer percent
	LastActivity   *time.Time `json:"lastActivity,omitempty"`
	CreatedAt      time.Time  `json:"createdAt"`
}

// DeliveryStatus classifies a delivery log entry.
type DeliveryStatus string

const (
	DeliverySuccess DeliveryStatus = "success"
	DeliveryError   DeliveryStatus = "error"
	DeliveryWarning DeliveryStatus = "warning"
)

// DeliveryLog is the append-only record of one ingestion or sync attempt.
// EndpointID is nil for internally originated entries (background sync
// failures are not tied to an inbound request).
type DeliveryLog struct {
	ID             string         `json:"id"`
	EndpointID     *string        `json:"endpointId"`
	Method         string         `json:"method"`
	Payload        map[string]any `json:"payload,omitempty"`
	Status         DeliveryStatus `json:"status"`
	ErrorMessage   string         `json:"errorMessage,omitempty"`
	ResponseTimeMS *int           `json:"responseTime,omitempty"`
	CreatedAt      time.Time      `json:"createdAt"`
}

// EmailTemplate holds the subject/body skeleton for one notification type.
type EmailTemplate struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Subject   string    `json:"subject"`
	Body      string    `json:"body"`
	Type      string    `json:"type"` // task_completed, error_alert, ...
	IsActive  bool      `json:"isActive"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Template types consumed by the notification trigger.
const (
	TemplateTaskCompleted = "task_completed"
	TemplateErrorAlert    = "error_alert"
)

// NotificationStatus tracks the outbound alert lifecycle.
type NotificationStatus string

const (
	NotificationPending NotificationStatus = "pending"
	NotificationSent    NotificationStatus = "sent"
	NotificationFailed  NotificationStatus = "failed"
)

// Notification is a record of one attempted outbound alert.
type Notification struct {
	ID           string             `json:"id"`
	Type         string             `json:"type"` // email
	Recipient    string             `json:"recipient"`
	Subject      string             `json:"subject,omitempty"`
	Message      string             `json:"message"`
	Status       NotificationStatus `json:"status"`
	TaskID       string             `json:"taskId,omitempty"`
	SentAt       *time.Time         `json:"sentAt,omitempty"`
	ErrorMessage string             `json:"errorMessage,omitempty"`
	CreatedAt    time.Time          `json:"createdAt"`
}

// DashboardStats is the aggregate view served to operators.
type DashboardStats struct {
	ActiveWebhooks  int `json:"activeWebhooks"`
	TasksProcessed  int `json:"tasksProcessed"`
	FailedRequests  int `json:"failedRequests"`
	AvgResponseTime int `json:"avgResponseTime"`
}
