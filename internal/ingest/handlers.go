package ingest

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/austindbirch/task_sync/internal/logging"
	"github.com/austindbirch/task_sync/internal/store"
)

// Handler exposes the webhook boundary and the administrative read/CRUD API
// over gin.
type Handler struct {
	svc   *Service
	store *store.Store
	log   *logging.Logger
}

func NewHandler(svc *Service, s *store.Store, log *logging.Logger) *Handler {
	return &Handler{svc: svc, store: s, log: log}
}

// Register mounts the public webhook route.
func (h *Handler) Register(r gin.IRouter) {
	r.POST(IngestPath, h.handleWebhook)
}

// RegisterAdmin mounts the administrative API onto g, which the caller is
// expected to guard with auth middleware.
func (h *Handler) RegisterAdmin(g gin.IRouter) {
	g.GET("/dashboard/stats", h.handleDashboardStats)
	g.GET("/tasks", h.handleListTasks)
	g.GET("/tasks/recent", h.handleRecentTasks)
	g.GET("/webhooks", h.handleListWebhooks)
	g.POST("/webhooks", h.handleCreateWebhook)
	g.PUT("/webhooks/:id", h.handleUpdateWebhook)
	g.DELETE("/webhooks/:id", h.handleDeleteWebhook)
	g.GET("/logs", h.handleListLogs)
	g.GET("/logs/errors", h.handleErrorLogs)
	g.GET("/notifications", h.handleListNotifications)
	g.GET("/email-templates", h.handleListTemplates)
	g.POST("/email-templates", h.handleCreateTemplate)
	g.PUT("/email-templates/:id", h.handleUpdateTemplate)
	g.POST("/test/webhook", h.handleTestWebhook)
}

func (h *Handler) handleWebhook(c *gin.Context) {
	var req TaskEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   "invalid JSON payload: " + err.Error(),
		})
		return
	}

	res, err := h.svc.ProcessEvent(c.Request.Context(), req)
	if err != nil {
		var verr *ValidationError
		if errors.As(err, &verr) {
			c.JSON(http.StatusBadRequest, gin.H{
				"success": false,
				"error":   verr.Error(),
				"details": verr.Issues,
			})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"taskId":  res.TaskID,
		"action":  res.Action,
	})
}

func (h *Handler) handleDashboardStats(c *gin.Context) {
	c.JSON(http.StatusOK, h.store.Stats())
}

func (h *Handler) handleListTasks(c *gin.Context) {
	var tasks []store.Task
	switch {
	case c.Query("status") != "":
		tasks = h.store.TasksByStatus(store.TaskStatus(c.Query("status")))
	case c.Query("project") != "":
		tasks = h.store.TasksByProject(c.Query("project"))
	default:
		tasks = h.store.AllTasks()
	}
	if limit := queryInt(c, "limit", 0); limit > 0 && limit < len(tasks) {
		tasks = tasks[:limit]
	}
	c.JSON(http.StatusOK, tasks)
}

func (h *Handler) handleRecentTasks(c *gin.Context) {
	c.JSON(http.StatusOK, h.store.RecentTasks(queryInt(c, "limit", 10)))
}

func (h *Handler) handleListWebhooks(c *gin.Context) {
	c.JSON(http.StatusOK, h.store.AllEndpoints())
}

type webhookRequest struct {
	Name     string `json:"name"`
	Endpoint string `json:"endpoint"`
	IsActive *bool  `json:"isActive"`
}

func (h *Handler) handleCreateWebhook(c *gin.Context) {
	var req webhookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid JSON payload"})
		return
	}
	issues := make(map[string]string)
	if req.Name == "" {
		issues["name"] = "name is required"
	}
	if req.Endpoint == "" {
		issues["endpoint"] = "endpoint is required"
	}
	if len(issues) > 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Validation error", "details": issues})
		return
	}
	active := true
	if req.IsActive != nil {
		active = *req.IsActive
	}
	ep, err := h.store.CreateEndpoint(req.Name, req.Endpoint, active)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, ep)
}

func (h *Handler) handleUpdateWebhook(c *gin.Context) {
	var req webhookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid JSON payload"})
		return
	}
	ep, ok := h.store.UpdateEndpoint(c.Param("id"), func(e *store.Endpoint) {
		if req.Name != "" {
			e.Name = req.Name
		}
		if req.Endpoint != "" {
			e.Endpoint = req.Endpoint
		}
		if req.IsActive != nil {
			e.IsActive = *req.IsActive
		}
	})
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "Webhook not found"})
		return
	}
	c.JSON(http.StatusOK, ep)
}

func (h *Handler) handleDeleteWebhook(c *gin.Context) {
	if !h.store.DeleteEndpoint(c.Param("id")) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Webhook not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (h *Handler) handleListLogs(c *gin.Context) {
	c.JSON(http.StatusOK, h.store.DeliveryLogs(c.Query("webhookId"), queryInt(c, "limit", 50)))
}

func (h *Handler) handleErrorLogs(c *gin.Context) {
	c.JSON(http.StatusOK, h.store.ErrorLogs(queryInt(c, "limit", 20)))
}

func (h *Handler) handleListNotifications(c *gin.Context) {
	c.JSON(http.StatusOK, h.store.Notifications(queryInt(c, "limit", 50)))
}

func (h *Handler) handleListTemplates(c *gin.Context) {
	c.JSON(http.StatusOK, h.store.AllTemplates())
}

type templateRequest struct {
	Name     string `json:"name"`
	Subject  string `json:"subject"`
	Body     string `json:"body"`
	Type     string `json:"type"`
	IsActive *bool  `json:"isActive"`
}

func (h *Handler) handleCreateTemplate(c *gin.Context) {
	var req templateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid JSON payload"})
		return
	}
	issues := make(map[string]string)
	for field, val := range map[string]string{
		"name": req.Name, "subject": req.Subject, "body": req.Body, "type": req.Type,
	} {
		if val == "" {
			issues[field] = field + " is required"
		}
	}
	if len(issues) > 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Validation error", "details": issues})
		return
	}
	active := true
	if req.IsActive != nil {
		active = *req.IsActive
	}
	tpl := h.store.CreateTemplate(store.EmailTemplate{
		Name:     req.Name,
		Subject:  req.Subject,
		Body:     req.Body,
		Type:     req.Type,
		IsActive: active,
	})
	c.JSON(http.StatusCreated, tpl)
}

func (h *Handler) handleUpdateTemplate(c *gin.Context) {
	var req templateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid JSON payload"})
		return
	}
	tpl, ok := h.store.UpdateTemplate(c.Param("id"), func(t *store.EmailTemplate) {
		if req.Name != "" {
			t.Name = req.Name
		}
		if req.Subject != "" {
			t.Subject = req.Subject
		}
		if req.Body != "" {
			t.Body = req.Body
		}
		if req.Type != "" {
			t.Type = req.Type
		}
		if req.IsActive != nil {
			t.IsActive = *req.IsActive
		}
	})
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "Email template not found"})
		return
	}
	c.JSON(http.StatusOK, tpl)
}

// handleTestWebhook feeds a synthetic completed-task event through the real
// ingestion path.
func (h *Handler) handleTestWebhook(c *gin.Context) {
	now := time.Now()
	req := TaskEventRequest{
		Title:        "Test Task",
		Description:  "This is a test task created via webhook",
		Status:       string(store.StatusCompleted),
		Priority:     string(store.PriorityMedium),
		ProjectName:  "Test Project",
		Assignee:     "Test User",
		SourceSystem: "test-system",
		ExternalID:   fmt.Sprintf("test-%d", now.UnixMilli()),
		Metadata:     map[string]any{"test": true, "timestamp": now.UTC().Format(time.RFC3339)},
	}
	res, err := h.svc.ProcessEvent(c.Request.Context(), req)
	if err != nil {
		h.log.WithContext(c.Request.Context()).WithError(err).Error("test webhook failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Test webhook failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"webhookResponse": gin.H{
			"success": true,
			"taskId":  res.TaskID,
			"action":  res.Action,
		},
	})
}

func queryInt(c *gin.Context, key string, def int) int {
	raw := c.Query(key)
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return def
	}
	return n
}
