package config

import (
	"errors"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
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
	Admissions AdmissionsConfig
	Attendance AttendanceConfig
	Fees       FeesConfig
	Storage    StorageConfig
	Jobs       JobsConfig
	Cache      CacheConfig
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
	Host     string
	Port     int
	Password string
	DB       int
}

type JWTConfig struct {
	Secret            string
	Expiration        time.Duration
	RefreshExpiration time.Duration
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// AdmissionsConfig tunes the admission workflow.
type AdmissionsConfig struct {
	ReviewWindowDays int
	MaxDocumentBytes int64
	AllowedDocMIMEs  []string
}

// AttendanceConfig bounds attendance recording.
type AttendanceConfig struct {
	BackfillWindowDays int
	MaxBatchSize       int
}

// FeesConfig controls invoice due-date handling.
type FeesConfig struct {
	GraceDays int
}

// StorageConfig locates the admission document store.
type StorageConfig struct {
	Dir             string
	SignedURLSecret string
	SignedURLTTL    time.Duration
}

// JobsConfig drives the background maintenance scheduler.
type JobsConfig struct {
	Enabled       bool
	Workers       int
	Interval      time.Duration
	QueueCapacity int
}

// CacheConfig toggles redis-backed read caching.
type CacheConfig struct {
	Enabled    bool
	DefaultTTL time.Duration
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
		if !errors.As(err, &notFound) {
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
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.JWT = JWTConfig{
		Secret:            v.GetString("JWT_SECRET"),
		Expiration:        parseDuration(v.GetString("JWT_EXPIRATION"), 24*time.Hour),
		RefreshExpiration: parseDuration(v.GetString("REFRESH_TOKEN_EXPIRATION"), 7*24*time.Hour),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Admissions = AdmissionsConfig{
		ReviewWindowDays: v.GetInt("ADMISSION_REVIEW_WINDOW_DAYS"),
		MaxDocumentBytes: v.GetInt64("ADMISSION_MAX_DOCUMENT_BYTES"),
		AllowedDocMIMEs:  splitAndTrim(v.GetString("ADMISSION_ALLOWED_DOC_MIMES")),
	}

	cfg.Attendance = AttendanceConfig{
		BackfillWindowDays: v.GetInt("ATTENDANCE_BACKFILL_WINDOW_DAYS"),
		MaxBatchSize:       v.GetInt("ATTENDANCE_MAX_BATCH_SIZE"),
	}

	cfg.Fees = FeesConfig{GraceDays: v.GetInt("FEE_GRACE_DAYS")}

	cfg.Storage = StorageConfig{
		Dir:             v.GetString("STORAGE_DIR"),
		SignedURLSecret: v.GetString("STORAGE_SIGNED_URL_SECRET"),
		SignedURLTTL:    parseDuration(v.GetString("STORAGE_SIGNED_URL_TTL"), 15*time.Minute),
	}

	cfg.Jobs = JobsConfig{
		Enabled:       v.GetBool("JOBS_ENABLED"),
		Workers:       v.GetInt("JOBS_WORKERS"),
		Interval:      parseDuration(v.GetString("JOBS_INTERVAL"), time.Hour),
		QueueCapacity: v.GetInt("JOBS_QUEUE_CAPACITY"),
	}

	cfg.Cache = CacheConfig{
		Enabled:    v.GetBool("CACHE_ENABLED"),
		DefaultTTL: parseDuration(v.GetString("CACHE_DEFAULT_TTL"), 10*time.Minute),
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
	v.SetDefault("DB_NAME", "sims")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("JWT_SECRET", "dev_secret")
	v.SetDefault("JWT_EXPIRATION", "24h")
	v.SetDefault("REFRESH_TOKEN_EXPIRATION", "168h")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("ADMISSION_REVIEW_WINDOW_DAYS", 14)
	v.SetDefault("ADMISSION_MAX_DOCUMENT_BYTES", 5*1024*1024)
	v.SetDefault("ADMISSION_ALLOWED_DOC_MIMES", "application/pdf,image/jpeg,image/png")

	v.SetDefault("ATTENDANCE_BACKFILL_WINDOW_DAYS", 30)
	v.SetDefault("ATTENDANCE_MAX_BATCH_SIZE", 100)

	v.SetDefault("FEE_GRACE_DAYS", 0)

	v.SetDefault("STORAGE_DIR", "./data/documents")
	v.SetDefault("STORAGE_SIGNED_URL_SECRET", "dev_documents_secret")
	v.SetDefault("STORAGE_SIGNED_URL_TTL", "15m")

	v.SetDefault("JOBS_ENABLED", true)
	v.SetDefault("JOBS_WORKERS", 2)
	v.SetDefault("JOBS_INTERVAL", "1h")
	v.SetDefault("JOBS_QUEUE_CAPACITY", 16)

	v.SetDefault("CACHE_ENABLED", false)
	v.SetDefault("CACHE_DEFAULT_TTL", "10m")
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
