// Package health aggregates the liveness of the store, the mail transport
// and the downstream sync target into one operator-facing report.
package health

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/austindbirch/task_sync/internal/dispatch"
	"github.com/austindbirch/task_sync/internal/logging"
	"github.com/austindbirch/task_sync/internal/mail"
	"github.com/austindbirch/task_sync/internal/store"
)

// Prober checks downstream reachability.
type Prober interface {
	Probe(ctx context.Context) dispatch.Status
}

type serviceReport struct {
	Status       string `json:"status"`
	Message      string `json:"message"`
	ResponseTime int    `json:"responseTime,omitempty"`
	LastError    string `json:"lastError,omitempty"`
}

// Report is the aggregate health document. Status is "healthy" unless any
// service reports an error, in which case it degrades.
type Report struct {
	Status    string                   `json:"status"`
	Timestamp string                   `json:"timestamp"`
	Services  map[string]serviceReport `json:"services"`
}

type Checker struct {
	store  *store.Store
	sender mail.Sender
	prober Prober
	log    *logging.Logger
}

func NewChecker(s *store.Store, sender mail.Sender, prober Prober, log *logging.Logger) *Checker {
	return &Checker{store: s, sender: sender, prober: prober, log: log}
}

// Check runs all probes and assembles the report.
func (c *Checker) Check(ctx context.Context) Report {
	services := make(map[string]serviceReport, 3)

	services["database"] = serviceReport{
		Status:  "healthy",
		Message: "In-memory storage operational",
	}

	emailReport := serviceReport{Status: "healthy", Message: "SMTP connection successful"}
	if err := c.sender.Verify(ctx); err != nil {
		c.log.WithContext(ctx).WithError(err).Warn("mail transport verify failed")
		emailReport = serviceReport{Status: "error", Message: "SMTP connection failed"}
	}
	services["email"] = emailReport

	sync := c.prober.Probe(ctx)
	syncReport := serviceReport{
		Status:       "healthy",
		Message:      "External sync service responsive",
		ResponseTime: sync.ResponseTimeMS,
	}
	if !sync.Healthy {
		syncReport.Status = "warning"
		syncReport.Message = "External sync service issues"
		syncReport.LastError = sync.LastError
	}
	services["sync"] = syncReport

	status := "healthy"
	for _, svc := range services {
		if svc.Status == "error" {
			status = "degraded"
			break
		}
	}
	return Report{
		Status:    status,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Services:  services,
	}
}

// Handler serves the aggregate report over gin.
func (c *Checker) Handler(g *gin.Context) {
	g.JSON(http.StatusOK, c.Check(g.Request.Context()))
}
