package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/medtrackhq/medtrack/internal/platform/config"
	"github.com/medtrackhq/medtrack/internal/platform/database"
	"github.com/medtrackhq/medtrack/internal/platform/logger"
	"github.com/medtrackhq/medtrack/internal/platform/messagebroker"

	"github.com/medtrackhq/medtrack/internal/reminder_service/adapters/notifier"
	"github.com/medtrackhq/medtrack/internal/reminder_service/app"
	"github.com/medtrackhq/medtrack/internal/reminder_service/repository/postgres"
)

const (
	serviceName     = "reminder-dispatch-service"
	shutdownTimeout = 10 * time.Second
)

func main() {
	_ = godotenv.Load() // optional local overrides

	mainCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(serviceName)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(serviceName, cfg.LogLevel)
	log.Info("Starting service...")

	dbPool, err := database.NewDBPool(mainCtx, cfg.PostgresDSN)
	if err != nil {
		log.Error("Failed to initialize database connection pool", "error", err)
		os.Exit(1)
	}
	defer dbPool.Close()
	log.Info("Database connection pool initialized")

	natsClient, err := messagebroker.NewNATSClient(cfg.NATSUrl, serviceName, log)
	if err != nil {
		log.Error("Failed to connect to NATS", "error", err)
		os.Exit(1)
	}
	defer natsClient.Close()
	log.Info("NATS connection initialized")

	reminderRepo := postgres.NewPgReminderRepository(dbPool, log)
	entitlementRepo := postgres.NewPgEntitlementRepository(dbPool, log)
	channelNotifier := notifier.NewNATSNotifier(natsClient, cfg.EmailSubject, cfg.SMSSubject, log)

	dispatcher := app.NewDispatcher(reminderRepo, entitlementRepo, channelNotifier, log, app.DispatcherConfig{
		Window:    cfg.DispatchWindow,
		BatchSize: cfg.DispatchBatchSize,
		MaxRetry:  cfg.DispatchMaxRetry,
	})

	g, groupCtx := errgroup.WithContext(mainCtx)

	g.Go(func() error {
		log.Info("Starting dispatch loop", "interval", cfg.DispatchInterval, "window", cfg.DispatchWindow)
		ticker := time.NewTicker(cfg.DispatchInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				summary, err := dispatcher.Dispatch(groupCtx)
				if err != nil {
					// A failed due-reminder query is worth surfacing but is
					// not fatal; the next tick retries.
					log.ErrorContext(groupCtx, "Dispatch run failed", "error", err)
					continue
				}
				if summary.Processed > 0 {
					log.InfoContext(groupCtx, "Dispatch tick done",
						"processed", summary.Processed, "sent", summary.Sent,
						"failed", summary.Failed, "skipped", summary.Skipped)
				}
			case <-groupCtx.Done():
				log.Info("Dispatch loop stopping")
				return groupCtx.Err()
			}
		}
	})

	metricsSrv := newMetricsServer(cfg.MetricsPort)
	g.Go(func() error {
		log.Info("Starting metrics server", "addr", metricsSrv.Addr)
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-groupCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return metricsSrv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		log.Error("Service exited with error", "error", err)
		os.Exit(1)
	}
	log.Info("Service stopped")
}

func newMetricsServer(port int) *http.Server {
	r := chi.NewRouter()
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.Handler())
	return &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: r,
	}
}
