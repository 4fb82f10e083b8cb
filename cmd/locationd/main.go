package main

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/example/ride-dispatch/internal/config"
	"github.com/example/ride-dispatch/internal/events"
	"github.com/example/ride-dispatch/internal/geo"
	"github.com/example/ride-dispatch/internal/logging"
	"github.com/example/ride-dispatch/internal/models"
	"github.com/example/ride-dispatch/internal/observability"
)

// locationd drains the driver-location feed into the shared Redis index.
func main() {
	cfg, err := config.LoadLocationdConfig()
	if err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}
	logger := logging.NewLogger(cfg.LogLevel, "locationd")

	rc := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
	index := geo.NewRedisGeoWithClient(rc, cfg.RedisGeoKey, 0)

	// metrics and health server
	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200); w.Write([]byte("ok")) })
		mux.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
			if err := rc.Ping(r.Context()).Err(); err != nil {
				http.Error(w, "redis not ready", 503)
				return
			}
			w.WriteHeader(200)
			w.Write([]byte("ready"))
		})
		logger.Info("metrics listening", "addr", cfg.MetricsAddr)
		if err := http.ListenAndServe(cfg.MetricsAddr, mux); err != nil {
			logger.Error("metrics server stopped", "error", err)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	r := events.NewReader(cfg.KafkaBrokers, cfg.Topic, cfg.Group)
	defer func() {
		_ = r.Close()
		_ = rc.Close()
	}()

	logger.Info("locationd consuming", "topic", cfg.Topic, "brokers", cfg.KafkaBrokers, "group", cfg.Group)

	backoff := time.Second
	const maxBackoff = 30 * time.Second

	for {
		m, err := r.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				logger.Info("shutting down")
				return
			}
			logger.Warn("kafka read error", "error", err, "backoff", backoff.String())
			time.Sleep(backoff)
			backoff *= 2
			if backoff > maxBackoff {
				backoff = maxBackoff
			}
			continue
		}
		backoff = time.Second

		var loc models.DriverLocation
		if err := json.Unmarshal(m.Value, &loc); err != nil || loc.DriverID == "" {
			logger.Warn("invalid location message", "error", err)
			continue
		}

		if err := upsertWithRetry(ctx, index, loc, 3, 200*time.Millisecond); err != nil {
			logger.Error("index update failed", "driver_id", loc.DriverID, "error", err)
			continue
		}
		observability.LocationUpdates.Inc()
	}
}

// Upserter is the subset of the index locationd needs; tests fake it.
type Upserter interface {
	Upsert(ctx context.Context, loc models.DriverLocation) error
}

// upsertWithRetry writes the position with retry and doubling backoff.
func upsertWithRetry(ctx context.Context, idx Upserter, loc models.DriverLocation, attempts int, delay time.Duration) error {
	var err error
	for i := 0; i < attempts; i++ {
		if err = idx.Upsert(ctx, loc); err == nil {
			return nil
		}
		if i == attempts-1 {
			break
		}
		time.Sleep(delay)
		delay *= 2
	}
	return err
}
