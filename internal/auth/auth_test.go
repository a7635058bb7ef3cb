package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
)

func newProtectedRouter(v *Validator) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.GET("/api/tasks", v.Middleware(), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"subject": c.GetString(SubjectKey)})
	})
	return router
}

func TestValidateTokenRoundTrip(t *testing.T) {
	v := NewValidator("test-secret")

	token, err := v.IssueToken("ops", time.Minute)
	if err != nil {
		t.Fatalf("IssueToken() error: %v", err)
	}

	subject, err := v.ValidateToken(token)
	if err != nil {
		t.Fatalf("ValidateToken() error: %v", err)
	}
	if subject != "ops" {
		t.Errorf("subject = %q, want ops", subject)
	}
}

func TestValidateTokenRejectsWrongSecret(t *testing.T) {
	issuer := NewValidator("secret-a")
	verifier := NewValidator("secret-b")

	token, err := issuer.IssueToken("ops", time.Minute)
	if err != nil {
		t.Fatalf("IssueToken() error: %v", err)
	}
	if _, err := verifier.ValidateToken(token); err == nil {
		t.Error("ValidateToken() accepted a token signed with another secret")
	}
}

func TestValidateTokenRejectsExpired(t *testing.T) {
	v := NewValidator("test-secret")

	token, err := v.IssueToken("ops", -time.Minute)
	if err != nil {
		t.Fatalf("IssueToken() error: %v", err)
	}
	if _, err := v.ValidateToken(token); err == nil {
		t.Error("ValidateToken() accepted an expired token")
	}
}

func TestMiddleware(t *testing.T) {
	v := NewValidator("test-secret")
	token, err := v.IssueToken("ops", time.Minute)
	if err != nil {
		t.Fatalf("IssueToken() error: %v", err)
	}
	router := newProtectedRouter(v)

	tests := []struct {
		name       string
		authHeader string
		wantCode   int
	}{
		{name: "valid token", authHeader: "Bearer " + token, wantCode: http.StatusOK},
		{name: "missing header", authHeader: "", wantCode: http.StatusUnauthorized},
		{name: "not bearer", authHeader: "Basic abc", wantCode: http.StatusUnauthorized},
		{name: "garbage token", authHeader: "Bearer not.a.jwt", wantCode: http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/tasks", nil)
			if tt.authHeader != "" {
				req.Header.Set("Authorization", tt.authHeader)
			}
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)
			if w.Code != tt.wantCode {
				t.Errorf("status = %d, want %d", w.Code, tt.wantCode)
			}
		})
	}
}

func TestMiddlewareDisabledWithoutSecret(t *testing.T) {
	v := NewValidator("")
	if v.Enabled() {
		t.Fatal("Enabled() = true with empty secret")
	}
	router := newProtectedRouter(v)

	req := httptest.NewRequest(http.MethodGet, "/api/tasks", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200 when auth is disabled", w.Code)
	}
}
