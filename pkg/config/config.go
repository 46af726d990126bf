package config

import (
	"errors"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

// Lock backends supported by the scheduling guard.
const (
	LockBackendMemory = "memory"
	LockBackendRedis  = "redis"
)

type Config struct {
	Env       string
	Port      int
	APIPrefix string

	Database   DatabaseConfig
	Redis      RedisConfig
	JWT        JWTConfig
	CORS       CORSConfig
	Log        LogConfig
	Scheduling SchedulingConfig
	Stats      StatsConfig
	Audit      AuditConfig
	Auth       AuthConfig
}

type DatabaseConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
}

type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Password string
	DB       int
}

type JWTConfig struct {
	Secret            string
	Issuer            string
	Expiration        time.Duration
	RefreshExpiration time.Duration
}

type CORSConfig struct {
	AllowedOrigins []string
	ExposedHeaders []string
}

type LogConfig struct {
	Level  string
	Format string
}

// SchedulingConfig controls how conflict checks are serialized and how periods are swept.
type SchedulingConfig struct {
	LockBackend   string
	LockTTL       time.Duration
	LockWait      time.Duration
	PeriodSweep   string
	SweepTimezone string
}

// StatsConfig governs caching of the aggregate stats endpoints.
type StatsConfig struct {
	CacheEnabled bool
	CacheTTL     time.Duration
}

// AuditConfig sizes the asynchronous audit writer.
type AuditConfig struct {
	Workers    int
	MaxRetries int
}

// AuthConfig holds login hardening knobs.
type AuthConfig struct {
	LoginRatePerMinute int
	SingleSession      bool
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}

	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")

	cfg.Database = DatabaseConfig{
		Host:         v.GetString("DB_HOST"),
		Port:         v.GetInt("DB_PORT"),
		User:         v.GetString("DB_USER"),
		Password:     v.GetString("DB_PASSWORD"),
		Name:         v.GetString("DB_NAME"),
		SSLMode:      v.GetString("DB_SSL_MODE"),
		MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),
	}

	cfg.Redis = RedisConfig{
		Enabled:  v.GetBool("REDIS_ENABLED"),
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.JWT = JWTConfig{
		Secret:            v.GetString("JWT_SECRET"),
		Issuer:            v.GetString("JWT_ISSUER"),
		Expiration:        parseDuration(v.GetString("JWT_EXPIRATION"), 24*time.Hour),
		RefreshExpiration: parseDuration(v.GetString("REFRESH_TOKEN_EXPIRATION"), 7*24*time.Hour),
	}

	cfg.CORS = CORSConfig{
		AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS")),
		ExposedHeaders: splitAndTrim(v.GetString("CORS_EXPOSED_HEADERS")),
	}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	backend := strings.ToLower(strings.TrimSpace(v.GetString("SCHEDULING_LOCK_BACKEND")))
	if backend != LockBackendRedis {
		backend = LockBackendMemory
	}
	cfg.Scheduling = SchedulingConfig{
		LockBackend:   backend,
		LockTTL:       parseDuration(v.GetString("SCHEDULING_LOCK_TTL"), 10*time.Second),
		LockWait:      parseDuration(v.GetString("SCHEDULING_LOCK_WAIT"), 3*time.Second),
		PeriodSweep:   v.GetString("PERIOD_SWEEP_CRON"),
		SweepTimezone: v.GetString("PERIOD_SWEEP_TZ"),
	}

	cfg.Stats = StatsConfig{
		CacheEnabled: v.GetBool("ENABLE_STATS_CACHE"),
		CacheTTL:     parseDuration(v.GetString("STATS_CACHE_TTL"), 5*time.Minute),
	}

	cfg.Audit = AuditConfig{
		Workers:    v.GetInt("AUDIT_WORKERS"),
		MaxRetries: v.GetInt("AUDIT_MAX_RETRIES"),
	}

	cfg.Auth = AuthConfig{
		LoginRatePerMinute: v.GetInt("LOGIN_RATE_PER_MINUTE"),
		SingleSession:      v.GetBool("AUTH_SINGLE_SESSION"),
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "school_scheduling")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("REDIS_ENABLED", false)
	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("JWT_SECRET", "dev_secret")
	v.SetDefault("JWT_ISSUER", "sma-scheduling-api")
	v.SetDefault("JWT_EXPIRATION", "24h")
	v.SetDefault("REFRESH_TOKEN_EXPIRATION", "168h")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("CORS_EXPOSED_HEADERS", "Content-Disposition,Retry-After,X-Request-ID")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("SCHEDULING_LOCK_BACKEND", LockBackendMemory)
	v.SetDefault("SCHEDULING_LOCK_TTL", "10s")
	v.SetDefault("SCHEDULING_LOCK_WAIT", "3s")
	v.SetDefault("PERIOD_SWEEP_CRON", "@daily")
	v.SetDefault("PERIOD_SWEEP_TZ", "")

	v.SetDefault("ENABLE_STATS_CACHE", false)
	v.SetDefault("STATS_CACHE_TTL", "5m")

	v.SetDefault("AUDIT_WORKERS", 1)
	v.SetDefault("AUDIT_MAX_RETRIES", 3)

	v.SetDefault("LOGIN_RATE_PER_MINUTE", 30)
	v.SetDefault("AUTH_SINGLE_SESSION", false)
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return d
}

func splitAndTrim(raw string) []string {
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}
