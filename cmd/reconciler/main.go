package main

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/example/ride-dispatch/internal/config"
	"github.com/example/ride-dispatch/internal/events"
	"github.com/example/ride-dispatch/internal/logging"
	"github.com/example/ride-dispatch/internal/models"
	"github.com/example/ride-dispatch/internal/notify"
	"github.com/example/ride-dispatch/internal/observability"
	"github.com/example/ride-dispatch/internal/reconcile"
	"github.com/example/ride-dispatch/internal/storage"
)

func main() {
	cfg, err := config.LoadReconcilerConfig()
	if err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}
	logger := logging.NewLogger(cfg.LogLevel, "reconciler")

	var store storage.BookingStore
	if cfg.PGDSN != "" {
		pg, err := storage.NewPostgresStore(cfg.PGDSN)
		if err != nil {
			logger.Error("postgres unavailable", "error", err)
			os.Exit(1)
		}
		defer pg.Close()
		store = pg
	} else {
		// Without a shared store nothing this process writes would be
		// visible to the API; refuse to run on the in-memory store.
		logger.Error("PG_DSN is required for the reconciler")
		os.Exit(1)
	}

	var notifier reconcile.Notifier
	if cfg.NotifyEndpoint != "" {
		notifier = notify.NewHTTPNotifier(cfg.NotifyEndpoint)
	}

	rec := &reconcile.Reconciler{Store: store, Notifier: notifier, Logger: logger}

	// metrics and health server
	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200); w.Write([]byte("ok")) })
		logger.Info("metrics listening", "addr", cfg.MetricsAddr)
		if err := http.ListenAndServe(cfg.MetricsAddr, mux); err != nil {
			logger.Error("metrics server stopped", "error", err)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	r := events.NewReader(cfg.KafkaBrokers, cfg.Topic, cfg.Group)
	defer r.Close()

	logger.Info("reconciler consuming", "topic", cfg.Topic, "brokers", cfg.KafkaBrokers, "group", cfg.Group)

	backoff := time.Second
	const maxBackoff = 30 * time.Second

	for {
		// Fetch then commit manually: a decision only commits once Apply
		// settles it, preserving at-least-once delivery into the guard.
		m, err := r.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				logger.Info("shutting down")
				return
			}
			logger.Warn("kafka fetch error", "error", err, "backoff", backoff.String())
			time.Sleep(backoff)
			backoff *= 2
			if backoff > maxBackoff {
				backoff = maxBackoff
			}
			continue
		}
		backoff = time.Second

		var d models.RideDecision
		if err := json.Unmarshal(m.Value, &d); err != nil || d.BookingID == "" || d.DriverID == "" {
			observability.DecisionsProcessed.WithLabelValues("invalid").Inc()
			logger.Warn("invalid decision message", "error", err)
			if cerr := r.CommitMessages(ctx, m); cerr != nil {
				logger.Warn("commit failed", "error", cerr)
			}
			continue
		}

		if err := applyWithRetry(ctx, rec, d, 3, 200*time.Millisecond); err != nil {
			// Leave uncommitted; the group redelivers and the store guard
			// keeps reprocessing harmless.
			logger.Error("decision apply failed, will redeliver",
				"booking_id", d.BookingID, "driver_id", d.DriverID, "error", err)
			continue
		}
		if err := r.CommitMessages(ctx, m); err != nil {
			logger.Warn("commit failed", "error", err)
		}
	}
}

// applyWithRetry retries transient store failures with doubling backoff.
func applyWithRetry(ctx context.Context, rec *reconcile.Reconciler, d models.RideDecision, attempts int, delay time.Duration) error {
	var err error
	for i := 0; i < attempts; i++ {
		if err = rec.Apply(ctx, d); err == nil {
			return nil
		}
		if i == attempts-1 {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
	}
	return err
}
