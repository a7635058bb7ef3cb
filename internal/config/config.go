package config

import (
	"os"
	"strconv"
	"time"
)

// Sync configures the downstream propagation client and its retry loop.
type Sync struct {
	BaseURL        string        // downstream service base URL
	APIKey         string        // bearer token for downstream calls
	Timeout        time.Duration // per-request timeout
	RetryAttempts  int           // total attempts per dispatch
	RetryBaseDelay time.Duration // backoff is RetryBaseDelay * attempt
	QueueSize      int           // bounded dispatch queue capacity
	Workers        int           // dispatch worker count
}

// SMTP configures the outbound email transport.
type SMTP struct {
	Host string
	Port int
	User string
	Pass string
	From string
}

// Notify configures alert recipients.
type Notify struct {
	Recipient      string // task-completed notifications
	AdminRecipient string // systemic error alerts
}

type Config struct {
	AppName        string
	HTTPPort       string // :8080
	AdminJWTSecret string // empty disables admin API auth
	Sync           Sync
	SMTP           SMTP
	Notify         Notify
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func getenvDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func FromEnv() Config {
	return Config{
		AppName:        getenv("APP_NAME", "tasksync"),
		HTTPPort:       getenv("HTTP_PORT", ":8080"),
		AdminJWTSecret: getenv("ADMIN_JWT_SECRET", ""),
		Sync: Sync{
			BaseURL:        getenv("EXTERNAL_SYNC_URL", "https://api.external-service.com"),
			APIKey:         getenv("EXTERNAL_SYNC_API_KEY", "default-api-key"),
			Timeout:        getenvDuration("SYNC_TIMEOUT", 5*time.Second),
			RetryAttempts:  getenvInt("SYNC_RETRY_ATTEMPTS", 3),
			RetryBaseDelay: getenvDuration("SYNC_RETRY_BASE_DELAY", time.Second),
			QueueSize:      getenvInt("SYNC_QUEUE_SIZE", 256),
			Workers:        getenvInt("SYNC_WORKERS", 4),
		},
		SMTP: SMTP{
			Host: getenv("SMTP_HOST", "smtp.gmail.com"),
			Port: getenvInt("SMTP_PORT", 587),
			User: getenv("SMTP_USER", ""),
			Pass: getenv("SMTP_PASS", ""),
			From: getenv("FROM_EMAIL", "noreply@taskmaster.com"),
		},
		Notify: Notify{
			Recipient:      getenv("NOTIFICATION_EMAIL", "admin@taskmaster.com"),
			AdminRecipient: getenv("ADMIN_EMAIL", getenv("NOTIFICATION_EMAIL", "admin@taskmaster.com")),
		},
	}
}
