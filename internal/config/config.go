package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"

	"github.com/MJE43/visual-replay-go/internal/logger"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Config holds the application configuration
type Config struct {
	Port            int           `validate:"min=1,max=65535"`
	LogLevel        string        `validate:"oneof=debug info warn warning error"`
	LogFormat       string        `validate:"oneof=json text"`
	Environment     string        `validate:"required"`
	Version         string        `validate:"required"`
	DBDriver        string        `validate:"oneof=sqlite postgres"`
	DBPath          string        `validate:"required_if=DBDriver sqlite"`
	DBURL           string        `validate:"required_if=DBDriver postgres"`
	RenderCacheSize int           `validate:"gte=0"`
	RenderCacheTTL  time.Duration `validate:"gte=0"`
	ScanMaxRange    int64         `validate:"gte=1"`
	ScriptTimeout   time.Duration `validate:"min=1ms"`
	AmbientBucket   time.Duration `validate:"min=1ms"`
	ShutdownTimeout time.Duration `validate:"min=1ms"`
}

// Load reads the configuration from the environment, after loading a .env
// file when one exists.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		LogLevel:    strings.ToLower(getEnv("LOG_LEVEL", "info")),
		LogFormat:   strings.ToLower(getEnv("LOG_FORMAT", "text")),
		Environment: getEnv("ENVIRONMENT", "dev"),
		Version:     getEnv("VERSION", "dev"),
		DBDriver:    strings.ToLower(getEnv("DB_DRIVER", DriverSQLite)),
		DBPath:      getEnv("DB_PATH", "visualrng.db"),
		DBURL:       getEnv("DB_URL", ""),
	}

	var errs []error
	cfg.Port = getInt("PORT", 8080, &errs)
	cfg.RenderCacheSize = getInt("RENDER_CACHE_SIZE", 1024, &errs)
	cfg.RenderCacheTTL = getDuration("RENDER_CACHE_TTL", 10*time.Minute, &errs)
	cfg.ScanMaxRange = int64(getInt("SCAN_MAX_RANGE", 1_000_000, &errs))
	cfg.ScriptTimeout = getDuration("SCRIPT_TIMEOUT", 250*time.Millisecond, &errs)
	cfg.AmbientBucket = getDuration("AMBIENT_BUCKET", time.Second, &errs)
	cfg.ShutdownTimeout = getDuration("SHUTDOWN_TIMEOUT", 10*time.Second, &errs)
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks field constraints and reports them by environment key.
func (c *Config) Validate() error {
	err := validator.New().Struct(c)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("invalid config: %w", err)
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fmt.Sprintf("%s failed %q", envKey(fe.Field()), fe.Tag()))
	}
	return fmt.Errorf("invalid config: %s", strings.Join(msgs, ", "))
}

// Logger derives the logger configuration.
func (c *Config) Logger() logger.Config {
	return logger.Config{
		Level:       c.LogLevel,
		Format:      c.LogFormat,
		ServiceName: logger.DefaultServiceName,
		Version:     c.Version,
		Environment: c.Environment,
		AddSource:   c.LogLevel == logger.LevelDebug,
	}
}

// Addr is the listen address for the HTTP server.
func (c *Config) Addr() string {
	return ":" + strconv.Itoa(c.Port)
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists && value != "" {
		return value
	}
	return defaultValue
}

func getInt(key string, def int, errs *[]error) int {
	raw := getEnv(key, "")
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("invalid %s value %q: %w", key, raw, err))
		return def
	}
	return n
}

func getDuration(key string, def time.Duration, errs *[]error) time.Duration {
	raw := getEnv(key, "")
	if raw == "" {
		return def
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("invalid %s value %q: %w", key, raw, err))
		return def
	}
	return d
}

var envKeys = map[string]string{
	"Port":            "PORT",
	"LogLevel":        "LOG_LEVEL",
	"LogFormat":       "LOG_FORMAT",
	"Environment":     "ENVIRONMENT",
	"Version":         "VERSION",
	"DBDriver":        "DB_DRIVER",
	"DBPath":          "DB_PATH",
	"DBURL":           "DB_URL",
	"RenderCacheSize": "RENDER_CACHE_SIZE",
	"RenderCacheTTL":  "RENDER_CACHE_TTL",
	"ScanMaxRange":    "SCAN_MAX_RANGE",
	"ScriptTimeout":   "SCRIPT_TIMEOUT",
	"AmbientBucket":   "AMBIENT_BUCKET",
	"ShutdownTimeout": "SHUTDOWN_TIMEOUT",
}

func envKey(field string) string {
	if k, ok := envKeys[field]; ok {
		return k
	}
	return field
}
