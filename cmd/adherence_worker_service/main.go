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

	"github.com/medtrackhq/medtrack/internal/adherence_service/app"
	"github.com/medtrackhq/medtrack/internal/adherence_service/repository/postgres"
)

const (
	serviceName     = "adherence-worker-service"
	shutdownTimeout = 10 * time.Second

	medicationCreatedSubject = "medications.created"
	expansionQueueGroup      = "adherence_workers"

	// Pending doses this far past their slot are swept to missed.
	missedGrace = 24 * time.Hour
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

	scheduleRepo := postgres.NewPgMedicationScheduleRepository(dbPool, log)
	adherenceRepo := postgres.NewPgAdherenceRepository(dbPool, log)

	expander := app.NewExpander(scheduleRepo, adherenceRepo, log)
	adherenceService := app.NewAdherenceService(adherenceRepo, log)
	consumer := app.NewExpansionConsumer(expander, natsClient, log)

	g, groupCtx := errgroup.WithContext(mainCtx)

	// Expand newly created medications as their events arrive.
	if err := consumer.Start(groupCtx, medicationCreatedSubject, expansionQueueGroup); err != nil {
		log.Error("Failed to start expansion consumer", "error", err)
		os.Exit(1)
	}
	defer consumer.Stop()

	// Daily top-up keeps the forward horizon of occurrences filled and
	// sweeps long-overdue doses to missed. Both passes are idempotent.
	g.Go(func() error {
		log.Info("Starting top-up loop", "interval", cfg.TopUpInterval, "horizon_days", cfg.ExpansionHorizonDays)
		ticker := time.NewTicker(cfg.TopUpInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				summary, err := expander.TopUpActive(groupCtx, cfg.ExpansionHorizonDays)
				if err != nil {
					log.ErrorContext(groupCtx, "Top-up run failed", "error", err)
				} else if summary.Inserted > 0 {
					log.InfoContext(groupCtx, "Top-up run done", "inserted", summary.Inserted, "duplicates", summary.Duplicates)
				}
				if _, err := adherenceService.SweepMissed(groupCtx, missedGrace); err != nil {
					log.ErrorContext(groupCtx, "Missed-dose sweep failed", "error", err)
				}
			case <-groupCtx.Done():
				log.Info("Top-up loop stopping")
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
