package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	_ "github.com/lib/pq"

	"github.com/example/ride-dispatch/internal/config"
	"github.com/example/ride-dispatch/internal/dispatch"
	"github.com/example/ride-dispatch/internal/events"
	"github.com/example/ride-dispatch/internal/geo"
	"github.com/example/ride-dispatch/internal/httpapi"
	"github.com/example/ride-dispatch/internal/logging"
	"github.com/example/ride-dispatch/internal/notify"
	"github.com/example/ride-dispatch/internal/reconcile"
	"github.com/example/ride-dispatch/internal/storage"
)

func main() {
	cfg, err := config.LoadServerConfig()
	if err != nil {
		logging.NewLogger("error", "dispatch-api").Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	log := logging.NewLogger(cfg.LogLevel, "dispatch-api")

	if cfg.PGDSN != "" && cfg.RunMigrations {
		if err := runMigrations(cfg.PGDSN); err != nil {
			log.Error("migrations failed", "error", err)
			os.Exit(1)
		}
		log.Info("migrations applied")
	}

	var driverIndex geo.Geo
	if cfg.RedisAddr != "" {
		driverIndex = geo.NewRedisGeo(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisGeoKey, cfg.MaxCandidates)
		log.Info("driver index: redis", "addr", cfg.RedisAddr, "key", cfg.RedisGeoKey)
	} else {
		driverIndex = geo.NewMemoryIndex(cfg.MaxCandidates)
		log.Info("driver index: in-memory")
	}

	var (
		bookings   storage.BookingStore
		passengers storage.PassengerStore
	)
	if cfg.PGDSN != "" {
		pg, err := storage.NewPostgresStore(cfg.PGDSN)
		if err != nil {
			log.Error("postgres unavailable", "error", err)
			os.Exit(1)
		}
		defer pg.Close()
		bookings, passengers = pg, pg
		log.Info("booking store: postgres")
	} else {
		mem := storage.NewMemoryStore()
		bookings, passengers = mem, mem
		log.Info("booking store: in-memory")
	}

	hub := notify.NewHub(log)

	var (
		decisions httpapi.DecisionSink
		locations httpapi.LocationSink
	)
	if len(cfg.KafkaBrokers) > 0 {
		dp := events.NewDecisionProducer(cfg.KafkaBrokers, cfg.DecisionTopic)
		defer dp.Close()
		lp := events.NewLocationProducer(cfg.KafkaBrokers, cfg.LocationTopic)
		defer lp.Close()
		decisions, locations = dp, lp
		log.Info("decision channel: kafka", "brokers", cfg.KafkaBrokers, "topic", cfg.DecisionTopic)
	} else {
		// Single-process mode: apply decisions in line with the request.
		rec := &reconcile.Reconciler{
			Store:    bookings,
			Notifier: &notify.HubNotifier{Hub: hub},
			Logger:   log,
		}
		decisions = reconcile.Inline{R: rec}
		log.Info("decision channel: in-process reconciler")
	}

	orch := &dispatch.Orchestrator{
		Bookings:       bookings,
		Passengers:     passengers,
		Geo:            driverIndex,
		Notify:         hub,
		Logger:         log,
		SearchRadiusKm: cfg.SearchRadiusKm,
		MatchTimeout:   cfg.MatchTimeout,
	}

	api := httpapi.NewServer(orch, bookings, passengers, driverIndex, hub,
		decisions, locations, cfg.SearchRadiusKm, log)

	srv := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      api,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		log.Info("dispatch api listening", "addr", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server stopped", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("shutdown incomplete", "error", err)
	}
}

func runMigrations(dsn string) error {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return err
	}
	defer db.Close()
	files, err := filepath.Glob(filepath.Join("migrations", "*.sql"))
	if err != nil {
		return err
	}
	for _, f := range files {
		b, err := os.ReadFile(f)
		if err != nil {
			return err
		}
		if _, err := db.Exec(string(b)); err != nil {
			return err
		}
	}
	return nil
}
