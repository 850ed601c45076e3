package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	apperrors "github.com/policykeeper/policykeeper/internal/errors"
)

// Config holds all application configuration
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	FileStore FileStoreConfig
	Notifier  NotifierConfig
	Mailer    MailerConfig
	Logging   LoggingConfig
	Metrics   MetricsConfig
	Redis     RedisConfig
	Admin     AdminConfig
}

type ServerConfig struct {
	Host                    string
	Port                    int
	ReadTimeout             time.Duration
	WriteTimeout            time.Duration
	IdleTimeout             time.Duration
	GracefulShutdownTimeout time.Duration
}

type DatabaseConfig struct {
	URI            string
	Name           string
	ConnectTimeout time.Duration
	QueryTimeout   time.Duration
}

type FileStoreConfig struct {
	Path       string
	BackupsDir string
}

type NotifierConfig struct {
	Enabled  bool
	Interval time.Duration
}

type MailerConfig struct {
	Mode        string // console or smtp
	SMTPHost    string
	SMTPPort    int
	SMTPSecure  bool
	SMTPUser    string
	SMTPPass    string
	From        string
	To          string
	SendsPerMin float64
}

type LoggingConfig struct {
	Level  string
	Format string // json or text
}

type MetricsConfig struct {
	Enabled bool
	Port    int
	Path    string
}

type RedisConfig struct {
	URL      string
	Password string
	DB       int
	RPM      int
}

type AdminConfig struct {
	AdminSecret        string
	FallbackUser       string
	FallbackPass       string
	EmergencyResetCode string
}

// Load loads configuration from environment variables with sensible defaults
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Host:                    getEnv("SERVER_HOST", "0.0.0.0"),
			Port:                    getEnvInt("SERVER_PORT", 8080),
			ReadTimeout:             getEnvDuration("SERVER_READ_TIMEOUT", 30*time.Second),
			WriteTimeout:            getEnvDuration("SERVER_WRITE_TIMEOUT", 30*time.Second),
			IdleTimeout:             getEnvDuration("SERVER_IDLE_TIMEOUT", 120*time.Second),
			GracefulShutdownTimeout: getEnvDuration("SERVER_GRACEFUL_SHUTDOWN_TIMEOUT", 30*time.Second),
		},
		Database: DatabaseConfig{
			URI:            getEnv("MONGODB_URI", ""),
			Name:           getEnv("MONGODB_DATABASE", "policykeeper"),
			ConnectTimeout: getEnvDuration("MONGODB_CONNECT_TIMEOUT", 10*time.Second),
			QueryTimeout:   getEnvDuration("MONGODB_QUERY_TIMEOUT", 30*time.Second),
		},
		FileStore: FileStoreConfig{
			Path:       getEnv("DATA_FILE", "data.json"),
			BackupsDir: getEnv("DATA_BACKUPS_DIR", ""),
		},
		Notifier: NotifierConfig{
			Enabled:  getEnvBool("NOTIFIER_ENABLED", true),
			Interval: getEnvDuration("NOTIFIER_INTERVAL", 1*time.Hour),
		},
		Mailer: MailerConfig{
			Mode:        getEnv("MAIL_MODE", "console"),
			SMTPHost:    getEnv("SMTP_HOST", ""),
			SMTPPort:    getEnvInt("SMTP_PORT", 587),
			SMTPSecure:  getEnvBool("SMTP_SECURE", false),
			SMTPUser:    getEnv("SMTP_USER", ""),
			SMTPPass:    getEnv("SMTP_PASS", ""),
			From:        getEnv("MAIL_FROM", "no-reply@example.com"),
			To:          getEnv("MAIL_TO", ""),
			SendsPerMin: getEnvFloat("MAIL_SENDS_PER_MIN", 30.0),
		},
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
		Metrics: MetricsConfig{
			Enabled: getEnvBool("METRICS_ENABLED", true),
			Port:    getEnvInt("METRICS_PORT", 9090),
			Path:    getEnv("METRICS_PATH", "/metrics"),
		},
		Redis: RedisConfig{
			URL:      getEnv("REDIS_URL", ""),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
			RPM:      getEnvInt("RATE_LIMIT_RPM", 120),
		},
		Admin: AdminConfig{
			AdminSecret:        getEnv("ADMIN_SECRET", ""),
			FallbackUser:       getEnv("APP_USER", "admin"),
			FallbackPass:       getEnv("APP_PASS", "admin123"),
			EmergencyResetCode: getEnv("EMERGENCY_RESET_CODE", ""),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks the configuration and reports every problem at once,
// so a broken deployment surfaces all of its mistakes in one log line.
func (c *Config) Validate() error {
	var errs apperrors.MultiError
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errs.Add(fmt.Errorf("invalid server port: %d", c.Server.Port))
	}
	if c.FileStore.Path == "" {
		errs.Add(fmt.Errorf("data file path must not be empty"))
	}
	if c.Notifier.Interval < time.Minute {
		errs.Add(fmt.Errorf("notifier interval must be at least one minute"))
	}
	if c.Mailer.Mode != "console" && c.Mailer.Mode != "smtp" {
		errs.Add(fmt.Errorf("invalid mail mode: %s", c.Mailer.Mode))
	}
	if errs.HasErrors() {
		return errs
	}
	return nil
}

// Helper functions for environment variable parsing
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}
