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

type Config struct {
	Env           string
	Port          int
	APIPrefix     string
	PublicBaseURL string

	Database  DatabaseConfig
	Redis     RedisConfig
	JWT       JWTConfig
	CORS      CORSConfig
	Log       LogConfig
	Storage   StorageConfig
	Ingestion IngestionConfig
	Scanner   ScannerConfig
	Payment   PaymentConfig
	Reports   ReportsConfig
	Events    EventsConfig
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
	Secret     string
	Expiration time.Duration
	Issuer     string
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// StorageConfig controls the blob store and its retention sweep.
type StorageConfig struct {
	Dir               string
	RetentionMaxAge   time.Duration
	RetentionInterval time.Duration
	SignedURLSecret   string
	SignedURLTTL      time.Duration
	RequireSignature  bool
}

// IngestionConfig holds upload validation limits.
type IngestionConfig struct {
	AllowedFileTypes []string
	MaxFileSizeBytes int64
}

// ScannerConfig selects the malware scanner. An empty address disables scanning.
type ScannerConfig struct {
	Address string
	Timeout time.Duration
}

// PaymentConfig holds process-level gateway settings. Merchant credentials live in the database.
type PaymentConfig struct {
	CallbackPath string
}

// ReportsConfig tunes report caching.
type ReportsConfig struct {
	CacheTTL time.Duration
}

// EventsConfig configures domain event publishing. No brokers means events are only logged.
type EventsConfig struct {
	Brokers    []string
	Topic      string
	Workers    int
	MaxRetries int
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
	cfg.PublicBaseURL = strings.TrimRight(v.GetString("PUBLIC_BASE_URL"), "/")

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
		Secret:     v.GetString("JWT_SECRET"),
		Expiration: parseDuration(v.GetString("JWT_EXPIRATION"), 24*time.Hour),
		Issuer:     v.GetString("JWT_ISSUER"),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Storage = StorageConfig{
		Dir:               v.GetString("STORAGE_DIR"),
		RetentionMaxAge:   parseDuration(v.GetString("RETENTION_MAX_AGE"), 24*time.Hour),
		RetentionInterval: parseDuration(v.GetString("RETENTION_INTERVAL"), time.Hour),
		SignedURLSecret:   v.GetString("FILES_SIGNED_URL_SECRET"),
		SignedURLTTL:      parseDuration(v.GetString("FILES_SIGNED_URL_TTL"), time.Hour),
		RequireSignature:  v.GetBool("FILES_REQUIRE_SIGNATURE"),
	}

	maxFileSize := v.GetInt64("MAX_FILE_SIZE")
	if maxFileSize <= 0 {
		maxFileSize = 25 * 1024 * 1024
	}
	cfg.Ingestion = IngestionConfig{
		AllowedFileTypes: normalizeExtensions(splitAndTrim(v.GetString("ALLOWED_FILE_TYPES"))),
		MaxFileSizeBytes: maxFileSize,
	}

	cfg.Scanner = ScannerConfig{
		Address: v.GetString("CLAMAV_ADDRESS"),
		Timeout: parseDuration(v.GetString("SCANNER_TIMEOUT"), 10*time.Second),
	}

	cfg.Payment = PaymentConfig{
		CallbackPath: v.GetString("PAYMENT_CALLBACK_PATH"),
	}

	cfg.Reports = ReportsConfig{
		CacheTTL: parseDuration(v.GetString("REPORT_CACHE_TTL"), 2*time.Minute),
	}

	cfg.Events = EventsConfig{
		Brokers:    splitAndTrim(v.GetString("KAFKA_BROKERS")),
		Topic:      v.GetString("KAFKA_TOPIC"),
		Workers:    v.GetInt("EVENTS_WORKERS"),
		MaxRetries: v.GetInt("EVENTS_MAX_RETRIES"),
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 5000)
	v.SetDefault("API_PREFIX", "/api")
	v.SetDefault("PUBLIC_BASE_URL", "http://localhost:5000")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "print_hub")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("REDIS_ENABLED", false)
	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("JWT_SECRET", "dev_secret")
	v.SetDefault("JWT_EXPIRATION", "24h")
	v.SetDefault("JWT_ISSUER", "print-hub-api")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("STORAGE_DIR", "./uploads")
	v.SetDefault("RETENTION_MAX_AGE", "24h")
	v.SetDefault("RETENTION_INTERVAL", "1h")
	v.SetDefault("FILES_SIGNED_URL_SECRET", "dev_files_secret")
	v.SetDefault("FILES_SIGNED_URL_TTL", "1h")
	v.SetDefault("FILES_REQUIRE_SIGNATURE", false)

	v.SetDefault("ALLOWED_FILE_TYPES", "pdf,doc,docx,jpg,jpeg,png")
	v.SetDefault("MAX_FILE_SIZE", 25*1024*1024)

	v.SetDefault("CLAMAV_ADDRESS", "")
	v.SetDefault("SCANNER_TIMEOUT", "10s")

	v.SetDefault("PAYMENT_CALLBACK_PATH", "/payment/callback")
	v.SetDefault("REPORT_CACHE_TTL", "2m")

	v.SetDefault("KAFKA_BROKERS", "")
	v.SetDefault("KAFKA_TOPIC", "print-hub.orders")
	v.SetDefault("EVENTS_WORKERS", 2)
	v.SetDefault("EVENTS_MAX_RETRIES", 3)
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

// normalizeExtensions lower-cases entries and strips a leading dot so ".PDF" and "pdf" match.
func normalizeExtensions(exts []string) []string {
	result := make([]string, 0, len(exts))
	for _, ext := range exts {
		ext = strings.TrimPrefix(strings.ToLower(ext), ".")
		if ext != "" {
			result = append(result, ext)
		}
	}
	return result
}

