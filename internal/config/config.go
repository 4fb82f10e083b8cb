package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// ServerConfig captures all tunable parameters for the dispatch API
// process. Values load from environment variables with defaults that let
// the binary run locally without Redis, Kafka or Postgres.
type ServerConfig struct {
	HTTPAddr        string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	RedisAddr     string
	RedisPassword string
	RedisGeoKey   string

	KafkaBrokers  []string
	DecisionTopic string
	LocationTopic string

	PGDSN string

	SearchRadiusKm float64
	MaxCandidates  int
	MatchTimeout   time.Duration

	LogLevel      string
	RunMigrations bool
}

func defaultServerConfig() ServerConfig {
	return ServerConfig{
		HTTPAddr:        ":8080",
		ReadTimeout:     5 * time.Second,
		WriteTimeout:    10 * time.Second,
		IdleTimeout:     120 * time.Second,
		ShutdownTimeout: 15 * time.Second,
		RedisGeoKey:     "drivers_geo",
		DecisionTopic:   "ride-decisions",
		LocationTopic:   "driver-locations",
		SearchRadiusKm:  5,
		MaxCandidates:   25,
		MatchTimeout:    5 * time.Second,
		LogLevel:        "info",
	}
}

func LoadServerConfig() (ServerConfig, error) {
	cfg := defaultServerConfig()
	var errs []error

	setStringFromEnv(&cfg.HTTPAddr, "HTTP_ADDR")
	setDurationFromEnv(&cfg.ReadTimeout, "HTTP_READ_TIMEOUT", &errs)
	setDurationFromEnv(&cfg.WriteTimeout, "HTTP_WRITE_TIMEOUT", &errs)
	setDurationFromEnv(&cfg.IdleTimeout, "HTTP_IDLE_TIMEOUT", &errs)
	setDurationFromEnv(&cfg.ShutdownTimeout, "HTTP_SHUTDOWN_TIMEOUT", &errs)

	cfg.RedisAddr = strings.TrimSpace(os.Getenv("REDIS_ADDR"))
	cfg.RedisPassword = os.Getenv("REDIS_PASSWORD")
	setStringFromEnv(&cfg.RedisGeoKey, "REDIS_GEO_KEY")

	if brokers := os.Getenv("KAFKA_BROKERS"); brokers != "" {
		cfg.KafkaBrokers = splitAndTrim(brokers)
	}
	setStringFromEnv(&cfg.DecisionTopic, "DECISION_TOPIC")
	setStringFromEnv(&cfg.LocationTopic, "LOCATION_TOPIC")

	cfg.PGDSN = os.Getenv("PG_DSN")

	setFloatFromEnv(&cfg.SearchRadiusKm, "SEARCH_RADIUS_KM", &errs)
	setIntFromEnv(&cfg.MaxCandidates, "GEO_MAX_CANDIDATES", &errs)
	setDurationFromEnv(&cfg.MatchTimeout, "MATCH_TIMEOUT", &errs)

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.LogLevel = strings.ToLower(v)
	}

	cfg.RunMigrations = strings.EqualFold(os.Getenv("MIGRATE"), "true")

	if cfg.SearchRadiusKm <= 0 {
		errs = append(errs, fmt.Errorf("SEARCH_RADIUS_KM must be > 0"))
	}
	if cfg.MaxCandidates <= 0 {
		errs = append(errs, fmt.Errorf("GEO_MAX_CANDIDATES must be > 0"))
	}

	return cfg, errors.Join(errs...)
}

// ConsumerConfig covers both consumer binaries: the decision reconciler
// and the location feed consumer. Fields not relevant to a binary stay at
// their zero value there.
type ConsumerConfig struct {
	MetricsAddr string

	KafkaBrokers []string
	Topic        string
	Group        string

	PGDSN string

	RedisAddr     string
	RedisPassword string
	RedisGeoKey   string

	// NotifyEndpoint is the API process base URL the reconciler pushes
	// booking updates to. Empty disables the push.
	NotifyEndpoint string

	LogLevel string
}

func LoadReconcilerConfig() (ConsumerConfig, error) {
	cfg, errs := baseConsumerConfig(":2112", "ride-decisions", "booking-reconciler")
	cfg.PGDSN = os.Getenv("PG_DSN")
	cfg.NotifyEndpoint = strings.TrimRight(strings.TrimSpace(os.Getenv("NOTIFY_ENDPOINT")), "/")
	return cfg, errors.Join(errs...)
}

func LoadLocationdConfig() (ConsumerConfig, error) {
	cfg, errs := baseConsumerConfig(":2113", "driver-locations", "location-indexer")
	cfg.RedisAddr = strings.TrimSpace(os.Getenv("REDIS_ADDR"))
	cfg.RedisPassword = os.Getenv("REDIS_PASSWORD")
	cfg.RedisGeoKey = "drivers_geo"
	setStringFromEnv(&cfg.RedisGeoKey, "REDIS_GEO_KEY")
	if cfg.RedisAddr == "" {
		errs = append(errs, fmt.Errorf("REDIS_ADDR is required"))
	}
	return cfg, errors.Join(errs...)
}

func baseConsumerConfig(metricsAddr, topic, group string) (ConsumerConfig, []error) {
	cfg := ConsumerConfig{
		MetricsAddr: metricsAddr,
		Topic:       topic,
		Group:       group,
		LogLevel:    "info",
	}
	var errs []error

	setStringFromEnv(&cfg.MetricsAddr, "METRICS_ADDR")
	if brokers := os.Getenv("KAFKA_BROKERS"); brokers != "" {
		cfg.KafkaBrokers = splitAndTrim(brokers)
	} else {
		cfg.KafkaBrokers = []string{"localhost:9092"}
	}
	setStringFromEnv(&cfg.Topic, "KAFKA_TOPIC")
	setStringFromEnv(&cfg.Group, "KAFKA_GROUP")
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.LogLevel = strings.ToLower(v)
	}
	return cfg, errs
}

func setDurationFromEnv(target *time.Duration, key string, errs *[]error) {
	if v := os.Getenv(key); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			*errs = append(*errs, fmt.Errorf("invalid %s: %w", key, err))
			return
		}
		*target = d
	}
}

func setFloatFromEnv(target *float64, key string, errs *[]error) {
	if v := os.Getenv(key); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			*errs = append(*errs, fmt.Errorf("invalid %s: %w", key, err))
			return
		}
		*target = f
	}
}

func setIntFromEnv(target *int, key string, errs *[]error) {
	if v := os.Getenv(key); v != "" {
		i, err := strconv.Atoi(v)
		if err != nil {
			*errs = append(*errs, fmt.Errorf("invalid %s: %w", key, err))
			return
		}
		*target = i
	}
}

func setStringFromEnv(target *string, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		*target = v
	}
}

func splitAndTrim(v string) []string {
	raw := strings.Split(v, ",")
	out := make([]string, 0, len(raw))
	for _, r := range raw {
		r = strings.TrimSpace(r)
		if r == "" {
			continue
		}
		out = append(out, r)
	}
	return out
}
