package health

import (
	"context"
	"errors"
	"testing"

	"github.com/austindbirch/task_sync/internal/dispatch"
	"github.com/austindbirch/task_sync/internal/logging"
	"github.com/austindbirch/task_sync/internal/mail"
	"github.com/austindbirch/task_sync/internal/store"
)

type fakeProber struct {
	status dispatch.Status
}

func (f fakeProber) Probe(context.Context) dispatch.Status { return f.status }

func TestCheck(t *testing.T) {
	tests := []struct {
		name       string
		verifyErr  error
		sync       dispatch.Status
		wantStatus string
		wantEmail  string
		wantSync   string
	}{
		{
			name:       "all healthy",
			sync:       dispatch.Status{Healthy: true, ResponseTimeMS: 12},
			wantStatus: "healthy",
			wantEmail:  "healthy",
			wantSync:   "healthy",
		},
		{
			name:       "smtp down degrades",
			verifyErr:  errors.New("connection refused"),
			sync:       dispatch.Status{Healthy: true},
			wantStatus: "degraded",
			wantEmail:  "error",
			wantSync:   "healthy",
		},
		{
			name:       "sync unreachable is a warning only",
			sync:       dispatch.Status{Healthy: false, LastError: "connection refused"},
			wantStatus: "healthy",
			wantEmail:  "healthy",
			wantSync:   "warning",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			checker := NewChecker(
				store.New(),
				&mail.Recorder{VerifyErr: tt.verifyErr},
				fakeProber{status: tt.sync},
				logging.New("test"),
			)

			report := checker.Check(context.Background())
			if report.Status != tt.wantStatus {
				t.Errorf("status = %s, want %s", report.Status, tt.wantStatus)
			}
			if got := report.Services["database"].Status; got != "healthy" {
				t.Errorf("database status = %s, want healthy", got)
			}
			if got := report.Services["email"].Status; got != tt.wantEmail {
				t.Errorf("email status = %s, want %s", got, tt.wantEmail)
			}
			if got := report.Services["sync"].Status; got != tt.wantSync {
				t.Errorf("sync status = %s, want %s", got, tt.wantSync)
			}
			if report.Timestamp == "" {
				t.Error("timestamp empty")
			}
		})
	}
}
