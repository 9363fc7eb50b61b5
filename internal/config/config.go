// Package config provides configuration management for the application.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration for the application.
type Config struct {
	Server   ServerConfig
	Scraper  ScraperConfig
	Database DatabaseConfig
	Redis    RedisConfig
	NATS     NATSConfig
	Storage  StorageConfig
	Log      LogConfig
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port            int
	Environment     string
	ShutdownTimeout int
	AllowedOrigins  []string
	// SearchTimeout bounds a whole HTTP search request.
	SearchTimeout time.Duration
}

// ScraperConfig holds the gazette scraper settings.
type ScraperConfig struct {
	BaseURL         string
	OrgID           string
	UserAgent       string
	Headless        bool
	ChromePath      string
	EdgePath        string
	LaunchTimeout   time.Duration
	NavTimeout      time.Duration
	ResultsTimeout  time.Duration
	MaxConcurrency  int
	RateLimit       int
	ExclusionMarker string
	DiagnosticsDir  string
	// DiagnosticsSink is "local" or "minio".
	DiagnosticsSink string
}

// DatabaseConfig holds the record archive configuration. The archive is
// disabled when Enabled is false.
type DatabaseConfig struct {
	Enabled      bool
	Host         string
	Port         int
	User         string
	Password     string
	Database     string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
}

// RedisConfig holds the detail-page cache configuration.
type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Password string
	DB       int
	TTL      time.Duration
}

// NATSConfig holds the progress publisher configuration.
type NATSConfig struct {
	Enabled bool
	URL     string
	Name    string
}

// StorageConfig holds object storage configuration for diagnostics.
type StorageConfig struct {
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	BucketName      string
	UseSSL          bool
	Region          string
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level     string
	Format    string
	AddSource bool
}

const (
	defaultBaseURL   = "https://diariooficial.prefeitura.sp.gov.br/md_epubli_controlador.php?acao=materias_pesquisar"
	defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36 DiárioOficialScraper/1.0"
)

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port:            getEnvAsInt("PORT", 8085),
			Environment:     getEnv("ENVIRONMENT", "development"),
			ShutdownTimeout: getEnvAsInt("SHUTDOWN_TIMEOUT", 30),
			AllowedOrigins:  getEnvAsList("ALLOWED_ORIGINS", []string{"*"}),
			SearchTimeout:   getEnvAsDuration("SEARCH_TIMEOUT", 30*time.Minute),
		},
		Scraper: ScraperConfig{
			BaseURL:         getEnv("SCRAPER_BASE_URL", defaultBaseURL),
			OrgID:           getEnv("SCRAPER_ORG_ID", "68"),
			UserAgent:       getEnv("SCRAPER_USER_AGENT", defaultUserAgent),
			Headless:        getEnvAsBool("SCRAPER_HEADLESS", true),
			ChromePath:      getEnv("SCRAPER_CHROME_PATH", ""),
			EdgePath:        getEnv("SCRAPER_EDGE_PATH", ""),
			LaunchTimeout:   getEnvAsDuration("SCRAPER_LAUNCH_TIMEOUT", 30*time.Second),
			NavTimeout:      getEnvAsDuration("SCRAPER_NAV_TIMEOUT", 30*time.Second),
			ResultsTimeout:  getEnvAsDuration("SCRAPER_RESULTS_TIMEOUT", 10*time.Second),
			MaxConcurrency:  getEnvAsInt("SCRAPER_MAX_CONCURRENCY", 5),
			RateLimit:       getEnvAsInt("SCRAPER_RATE_LIMIT", 10),
			ExclusionMarker: getEnv("SCRAPER_EXCLUSION_MARKER", "GSU"),
			DiagnosticsDir:  getEnv("SCRAPER_DIAGNOSTICS_DIR", "logs"),
			DiagnosticsSink: getEnv("SCRAPER_DIAGNOSTICS_SINK", "local"),
		},
		Database: DatabaseConfig{
			Enabled:      getEnvAsBool("DB_ENABLED", false),
			Host:         getEnv("DB_HOST", "localhost"),
			Port:         getEnvAsInt("DB_PORT", 5432),
			User:         getEnv("DB_USER", "postgres"),
			Password:     getEnv("DB_PASSWORD", ""),
			Database:     getEnv("DB_NAME", "diario_oficial"),
			SSLMode:      getEnv("DB_SSL_MODE", "disable"),
			MaxOpenConns: getEnvAsInt("DB_MAX_OPEN_CONNS", 10),
			MaxIdleConns: getEnvAsInt("DB_MAX_IDLE_CONNS", 2),
		},
		Redis: RedisConfig{
			Enabled:  getEnvAsBool("REDIS_ENABLED", false),
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnvAsInt("REDIS_PORT", 6379),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
			TTL:      getEnvAsDuration("REDIS_TTL", 24*time.Hour),
		},
		NATS: NATSConfig{
			Enabled: getEnvAsBool("NATS_ENABLED", false),
			URL:     getEnv("NATS_URL", "nats://localhost:4222"),
			Name:    getEnv("NATS_CLIENT_NAME", "diario-scraper"),
		},
		Storage: StorageConfig{
			Endpoint:        getEnv("STORAGE_ENDPOINT", "localhost:9000"),
			AccessKeyID:     getEnv("STORAGE_ACCESS_KEY", "minioadmin"),
			SecretAccessKey: getEnv("STORAGE_SECRET_KEY", "minioadmin"),
			BucketName:      getEnv("STORAGE_BUCKET", "diario-diagnostics"),
			UseSSL:          getEnvAsBool("STORAGE_USE_SSL", false),
			Region:          getEnv("STORAGE_REGION", "us-east-1"),
		},
		Log: LogConfig{
			Level:     getEnv("LOG_LEVEL", "info"),
			Format:    getEnv("LOG_FORMAT", "json"),
			AddSource: getEnvAsBool("LOG_ADD_SOURCE", false),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	var errs []error
	if c.Scraper.BaseURL == "" {
		errs = append(errs, errors.New("SCRAPER_BASE_URL must not be empty"))
	}
	if c.Scraper.MaxConcurrency < 1 {
		errs = append(errs, fmt.Errorf("SCRAPER_MAX_CONCURRENCY must be positive, got %d", c.Scraper.MaxConcurrency))
	}
	switch c.Scraper.DiagnosticsSink {
	case "local", "minio":
	default:
		errs = append(errs, fmt.Errorf("SCRAPER_DIAGNOSTICS_SINK must be local or minio, got %q", c.Scraper.DiagnosticsSink))
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("PORT out of range: %d", c.Server.Port))
	}
	return errors.Join(errs...)
}

// DSN returns the database connection string.
func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

// Addr returns the Redis host:port pair.
func (c *RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// URL returns the Redis connection URL.
func (c *RedisConfig) URL() string {
	if c.Password != "" {
		return fmt.Sprintf("redis://:%s@%s:%d/%d", c.Password, c.Host, c.Port, c.DB)
	}
	return fmt.Sprintf("redis://%s:%d/%d", c.Host, c.Port, c.DB)
}

// Helper functions for environment variable parsing
func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value, exists := os.LookupEnv(key); exists {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value, exists := os.LookupEnv(key); exists {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value, exists := os.LookupEnv(key); exists {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getEnvAsList(key string, defaultValue []string) []string {
	value, exists := os.LookupEnv(key)
	if !exists {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
