package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/austindbirch/task_sync/internal/auth"
	"github.com/austindbirch/task_sync/internal/config"
	"github.com/austindbirch/task_sync/internal/dispatch"
	"github.com/austindbirch/task_sync/internal/health"
	"github.com/austindbirch/task_sync/internal/ingest"
	"github.com/austindbirch/task_sync/internal/logging"
	"github.com/austindbirch/task_sync/internal/mail"
	"github.com/austindbirch/task_sync/internal/metrics"
	"github.com/austindbirch/task_sync/internal/notify"
	"github.com/austindbirch/task_sync/internal/reconcile"
	"github.com/austindbirch/task_sync/internal/store"
	"github.com/austindbirch/task_sync/internal/tracing"
)

func main() {
	cfg := config.FromEnv()
	log := logging.New(cfg.AppName)
	logging.SetDefaultService(cfg.AppName)
	ctx := context.Background()

	shutdownTracing, err := tracing.InitTracing(ctx, cfg.AppName)
	if err != nil {
		log.Plain().WithError(err).Warn("tracing init failed, continuing without traces")
	} else {
		defer shutdownTracing()
	}

	st := store.New()

	sender, err := mail.NewSMTPSender(cfg.SMTP)
	if err != nil {
		log.Plain().WithError(err).Fatal("smtp sender init failed")
	}

	notifier := notify.NewService(st, sender, log, cfg.Notify.Recipient, cfg.Notify.AdminRecipient)
	engine := reconcile.NewEngine(st)

	dispatcher := dispatch.New(cfg.Sync, st, log)
	dispatcher.Start()

	svc := ingest.NewService(st, engine, notifier, dispatcher, log)
	handler := ingest.NewHandler(svc, st, log)
	checker := health.NewChecker(st, sender, dispatcher, log)
	validator := auth.NewValidator(cfg.AdminJWTSecret)

	reg := prometheus.NewRegistry()
	metrics.MustRegister(reg)

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	handler.Register(router)
	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})))

	admin := router.Group("/api", validator.Middleware())
	handler.RegisterAdmin(admin)
	admin.GET("/health", checker.Handler)

	httpSrv := &http.Server{Addr: cfg.HTTPPort, Handler: router}
	go func() {
		log.Plain().WithField("addr", cfg.HTTPPort).Info("tasksync HTTP listening")
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Plain().WithError(err).Fatal("HTTP serve failed")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGTERM, syscall.SIGINT)
	<-stop

	log.Plain().Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		log.Plain().WithError(err).Error("HTTP shutdown failed")
	}
	if err := dispatcher.Shutdown(shutdownCtx); err != nil {
		log.Plain().WithError(err).Error("dispatcher drain interrupted")
	}
	notifier.Drain()
	log.Plain().Info("tasksync stopped")
}
