package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/shawon2210/Online24Pharmacy-sub001/internal/database"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"

	BackendKafka = "kafka"
	BackendRedis = "redis"
	BackendNone  = "none"
)

type Config struct {
	Port      string
	DB        DB
	Notify    Notify
	Admins    []uuid.UUID
	Retention Retention
	Otel      Otel
}

type DB struct {
	Driver string
	// Path: файл SQLite при Driver == sqlite.
	Path string
	database.Config
}

type Notify struct {
	Backend       string
	KafkaBrokers  []string
	KafkaTopic    string
	Redis         Redis
	Stream        string
	RelayInterval time.Duration
}

type Redis struct {
	Addr     string
	Password string
	DB       int
}

type Retention struct {
	PrescriptionAudit time.Duration
}

type Otel struct {
	Endpoint string
}

func Load(log *zap.Logger) *Config {
	cfg := &Config{
		Port: getEnvDefault("APP_PORT", ":50061"),
		DB: DB{
			Driver: getEnvDefault("DB_DRIVER", DriverPostgres),
			Path:   getEnvDefault("DB_PATH", "pharmacy.db"),
		},
		Notify: Notify{
			Backend:       getEnvDefault("NOTIFY_BACKEND", BackendNone),
			Stream:        getEnvDefault("NOTIFY_STREAM", "pharmacy:notifications"),
			RelayInterval: time.Duration(getEnvInt("RELAY_INTERVAL_MS", 1000, log)) * time.Millisecond,
		},
		Admins: parseUUIDs(os.Getenv("ADMIN_USER_IDS"), log),
		Retention: Retention{
			PrescriptionAudit: time.Duration(getEnvInt("AUDIT_RETENTION_DAYS", 730, log)) * 24 * time.Hour,
		},
		Otel: Otel{Endpoint: os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")},
	}

	switch cfg.DB.Driver {
	case DriverPostgres:
		cfg.DB.Config = database.Config{
			Host:     getEnv("DB_HOST", log),
			Port:     getEnv("DB_PORT", log),
			User:     getEnv("DB_USER", log),
			Password: getEnv("DB_PASSWORD", log),
			Name:     getEnv("DB_NAME", log),
			SSLMode:  getEnvDefault("DB_SSLMODE", "disable"),
		}
	case DriverSQLite:
	default:
		log.Error("unknown DB_DRIVER", zap.String("value", cfg.DB.Driver))
		panic("unsupported DB_DRIVER: " + cfg.DB.Driver)
	}

	switch cfg.Notify.Backend {
	case BackendKafka:
		cfg.Notify.KafkaBrokers = splitAndTrim(getEnv("KAFKA_BROKERS", log))
		cfg.Notify.KafkaTopic = getEnvDefault("KAFKA_TOPIC_NOTIFICATIONS", "pharmacy.notifications")
	case BackendRedis:
		cfg.Notify.Redis = Redis{
			Addr:     getEnv("REDIS_ADDR", log),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       getEnvInt("REDIS_DB", 0, log),
		}
	case BackendNone:
	default:
		log.Error("unknown NOTIFY_BACKEND", zap.String("value", cfg.Notify.Backend))
		panic("unsupported NOTIFY_BACKEND: " + cfg.Notify.Backend)
	}

	return cfg
}

func getEnv(key string, log *zap.Logger) string {
	if val, exists := os.LookupEnv(key); exists {
		return val
	}
	log.Error("required environment variable is not set", zap.String("key", key))
	panic("missing required environment variable: " + key)
}

func getEnvDefault(key, def string) string {
	if val := strings.TrimSpace(os.Getenv(key)); val != "" {
		return val
	}
	return def
}

func getEnvInt(key string, def int, log *zap.Logger) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		log.Error("invalid integer environment variable", zap.String("key", key), zap.String("value", raw))
		panic(fmt.Sprintf("invalid %s: %q", key, raw))
	}
	return n
}

func splitAndTrim(s string) []string {
	if s == "" {
		return nil
	}
	parts := []string{}
	for _, p := range strings.Split(s, ",") {
		pt := strings.TrimSpace(p)
		if pt != "" {
			parts = append(parts, pt)
		}
	}
	return parts
}

func parseUUIDs(s string, log *zap.Logger) []uuid.UUID {
	var out []uuid.UUID
	for _, raw := range splitAndTrim(s) {
		id, err := uuid.Parse(raw)
		if err != nil {
			log.Error("invalid admin user id", zap.String("value", raw))
			panic("invalid ADMIN_USER_IDS entry: " + raw)
		}
		out = append(out, id)
	}
	return out
}
