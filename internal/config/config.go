package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config aggregates runtime configuration for the service.
type Config struct {
	App      AppConfig
	Postgres PostgresConfig
	Redis    RedisConfig
	Logger   LoggerConfig
	Sla      SlaConfig
	Cache    CacheConfig
}

// AppConfig controls server level behavior.
type AppConfig struct {
	Name                  string
	Env                   string
	Host                  string
	Port                  string
	Version               string
	RequestTimeoutSeconds int
}

// PostgresConfig holds DB connection values.
type PostgresConfig struct {
	DSN            string
	MaxConns       int32
	MinConns       int32
	RunMigrations  bool
	ConnMaxIdleSec int32
	ConnMaxLifeSec int32
}

// RedisConfig holds Redis connection values.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Enabled  bool
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level string
}

// SlaConfig controls the SLA accounting engine.
type SlaConfig struct {
	// Timezone is the IANA name of the business calendar's location.
	Timezone string
	// SchedulerIntervalMinutes is how often the batch pass runs; 0 disables
	// the internal ticker.
	SchedulerIntervalMinutes int
	// RecomputeTimeoutSeconds bounds one batch pass. An aborted pass
	// publishes nothing.
	RecomputeTimeoutSeconds int
	// AccountingStartDate excludes tickets opened before it (YYYY-MM-DD,
	// empty disables the cutoff).
	AccountingStartDate string
	// PausingStatuses are ticket statuses that automatically suspend accrual.
	PausingStatuses []string
	// RecentlyClosedDays bounds how far back closed tickets are included in
	// a batch pass.
	RecentlyClosedDays int
}

// CacheConfig holds cache slot TTLs, in seconds.
type CacheConfig struct {
	MetricsTTLSec   int
	ListTTLSec      int
	DashboardTTLSec int
	TicketTTLSec    int
}

// Load reads configuration from environment variables, applying defaults where possible.
func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	cfg := &Config{
		App: AppConfig{
			Name:                  getEnv("APP_NAME", "sla-service"),
			Env:                   getEnv("APP_ENV", "development"),
			Host:                  getEnv("APP_HOST", "0.0.0.0"),
			Port:                  getEnv("APP_PORT", "8080"),
			Version:               getEnv("APP_VERSION", "dev"),
			RequestTimeoutSeconds: getEnvAsInt("HTTP_REQUEST_TIMEOUT_SECONDS", 30),
		},
		Postgres: PostgresConfig{
			DSN:            os.Getenv("POSTGRES_DSN"),
			MaxConns:       int32(getEnvAsInt("POSTGRES_MAX_CONNS", 10)),
			MinConns:       int32(getEnvAsInt("POSTGRES_MIN_CONNS", 2)),
			RunMigrations:  getEnvAsBool("POSTGRES_RUN_MIGRATIONS", true),
			ConnMaxIdleSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_IDLE_SECONDS", 30)),
			ConnMaxLifeSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_LIFE_SECONDS", 300)),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "127.0.0.1:6379"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       redisDB,
			Enabled:  getEnvAsBool("REDIS_ENABLED", false),
		},
		Logger: LoggerConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Sla: SlaConfig{
			Timezone:                 getEnv("SLA_TIMEZONE", "America/Sao_Paulo"),
			SchedulerIntervalMinutes: getEnvAsInt("SLA_SCHEDULER_INTERVAL_MINUTES", 15),
			RecomputeTimeoutSeconds:  getEnvAsInt("SLA_RECOMPUTE_TIMEOUT_SECONDS", 120),
			AccountingStartDate:      getEnv("SLA_ACCOUNTING_START_DATE", ""),
			PausingStatuses:          getEnvAsList("SLA_PAUSING_STATUSES", []string{"PENDING_USER", "IN_REVIEW"}),
			RecentlyClosedDays:       getEnvAsInt("SLA_RECENTLY_CLOSED_DAYS", 90),
		},
		Cache: CacheConfig{
			MetricsTTLSec:   getEnvAsInt("SLA_CACHE_METRICS_TTL_SECONDS", 900),
			ListTTLSec:      getEnvAsInt("SLA_CACHE_LIST_TTL_SECONDS", 600),
			DashboardTTLSec: getEnvAsInt("SLA_CACHE_DASHBOARD_TTL_SECONDS", 900),
			TicketTTLSec:    getEnvAsInt("SLA_CACHE_TICKET_TTL_SECONDS", 900),
		},
	}

	return cfg, nil
}

// Addr returns the HTTP bind address.
func (a AppConfig) Addr() string {
	return fmt.Sprintf("%s:%s", a.Host, a.Port)
}

// RequestTimeout returns the configured request timeout duration.
func (a AppConfig) RequestTimeout() time.Duration {
	if a.RequestTimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(a.RequestTimeoutSeconds) * time.Second
}

// SchedulerInterval returns the batch recompute interval.
func (s SlaConfig) SchedulerInterval() time.Duration {
	if s.SchedulerIntervalMinutes <= 0 {
		return 0
	}
	return time.Duration(s.SchedulerIntervalMinutes) * time.Minute
}

// RecomputeTimeout returns the ceiling for one batch pass.
func (s SlaConfig) RecomputeTimeout() time.Duration {
	if s.RecomputeTimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(s.RecomputeTimeoutSeconds) * time.Second
}

// AccountingStart parses the accounting cutoff in the given location.
// A zero time means no cutoff.
func (s SlaConfig) AccountingStart(loc *time.Location) (time.Time, error) {
	if s.AccountingStartDate == "" {
		return time.Time{}, nil
	}
	return time.ParseInLocation("2006-01-02", s.AccountingStartDate, loc)
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsBool(key string, fallback bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsList(key string, fallback []string) []string {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parts := strings.Split(val, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}
