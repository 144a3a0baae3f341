package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// ConfigFileEnv names an optional YAML, TOML or JSON file whose values sit
// between the defaults and the environment.
const ConfigFileEnv = "EXPENSES_CONFIG"

// Backends lists the accepted BACKEND values.
var Backends = []string{"memory", "sqlite", "postgres", "redis", "sheets", "rest"}

type Config struct {
	// Backend selection
	Backend    string
	Collection string

	// Memory
	MemorySeedFile string

	// SQLite
	SQLiteDBPath string

	// Postgres
	DatabaseURL string

	// Redis
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RedisPrefix   string

	// Google Sheets
	GoogleSpreadsheetID      string
	GoogleServiceAccountFile string
	GoogleServiceAccountJSON string
	GoogleRowCacheTTL        time.Duration

	// REST client
	RemoteURL string
	IDToken   string

	// AMQP
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Worker
	ReportInterval time.Duration

	// Identity
	JWTSecret string
	JWTIssuer string

	// HTTP Server
	Port           string
	RateLimitRPS   float64
	RateLimitBurst int

	LogLevel       string
	RequestTimeout time.Duration
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("backend", "memory")
	v.SetDefault("collection", "expenses")
	v.SetDefault("memory_seed_file", "")
	v.SetDefault("sqlite_db_path", "./data/expenses.db")
	v.SetDefault("database_url", "")
	v.SetDefault("redis_addr", "localhost:6379")
	v.SetDefault("redis_password", "")
	v.SetDefault("redis_db", 0)
	v.SetDefault("redis_prefix", "expenses")
	v.SetDefault("google_spreadsheet_id", "")
	v.SetDefault("google_service_account_file", "")
	v.SetDefault("google_service_account_json", "")
	v.SetDefault("google_row_cache_ttl", 30*time.Second)
	v.SetDefault("remote_url", "")
	v.SetDefault("id_token", "")
	v.SetDefault("amqp_url", "")
	v.SetDefault("amqp_exchange", "expenses")
	v.SetDefault("amqp_queue", "expense_changes")
	v.SetDefault("report_interval", 5*time.Minute)
	v.SetDefault("jwt_secret", "")
	v.SetDefault("jwt_issuer", "expenses")
	v.SetDefault("port", "8081")
	v.SetDefault("rate_limit_rps", 10.0)
	v.SetDefault("rate_limit_burst", 20)
	v.SetDefault("log_level", "info")
	v.SetDefault("request_timeout", 15*time.Second)
}

// Load reads defaults, then the optional EXPENSES_CONFIG file, then the
// environment. Later sources win.
func Load() (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.AutomaticEnv()

	if path := strings.TrimSpace(os.Getenv(ConfigFileEnv)); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file %s: %w", path, err)
		}
	}

	return &Config{
		Backend:    strings.ToLower(strings.TrimSpace(v.GetString("backend"))),
		Collection: v.GetString("collection"),

		MemorySeedFile: v.GetString("memory_seed_file"),
		SQLiteDBPath:   v.GetString("sqlite_db_path"),
		DatabaseURL:    v.GetString("database_url"),

		RedisAddr:     v.GetString("redis_addr"),
		RedisPassword: v.GetString("redis_password"),
		RedisDB:       v.GetInt("redis_db"),
		RedisPrefix:   v.GetString("redis_prefix"),

		GoogleSpreadsheetID:      v.GetString("google_spreadsheet_id"),
		GoogleServiceAccountFile: v.GetString("google_service_account_file"),
		GoogleServiceAccountJSON: v.GetString("google_service_account_json"),
		GoogleRowCacheTTL:        v.GetDuration("google_row_cache_ttl"),

		RemoteURL: v.GetString("remote_url"),
		IDToken:   v.GetString("id_token"),

		AMQPURL:      v.GetString("amqp_url"),
		AMQPExchange: v.GetString("amqp_exchange"),
		AMQPQueue:    v.GetString("amqp_queue"),

		ReportInterval: v.GetDuration("report_interval"),

		JWTSecret: v.GetString("jwt_secret"),
		JWTIssuer: v.GetString("jwt_issuer"),

		Port:           v.GetString("port"),
		RateLimitRPS:   v.GetFloat64("rate_limit_rps"),
		RateLimitBurst: v.GetInt("rate_limit_burst"),

		LogLevel:       v.GetString("log_level"),
		RequestTimeout: v.GetDuration("request_timeout"),
	}, nil
}

// Validate reports every problem at once.
func (c *Config) Validate() error {
	var errs []string

	if port, err := strconv.Atoi(c.Port); err != nil {
		errs = append(errs, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errs = append(errs, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	if !slices.Contains(Backends, c.Backend) {
		errs = append(errs, fmt.Sprintf("invalid backend '%s': must be one of %v", c.Backend, Backends))
	}
	if strings.TrimSpace(c.Collection) == "" {
		errs = append(errs, "collection name cannot be empty")
	}

	switch c.Backend {
	case "sqlite":
		if c.SQLiteDBPath == "" {
			errs = append(errs, "SQLite database path cannot be empty when using sqlite backend")
		} else if dir := filepath.Dir(c.SQLiteDBPath); dir != "." && dir != "" {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				errs = append(errs, fmt.Sprintf("cannot create SQLite database directory '%s': %v", dir, err))
			}
		}

	case "postgres":
		if c.DatabaseURL == "" {
			errs = append(errs, "DATABASE_URL is required when using postgres backend")
		} else if u, err := url.Parse(c.DatabaseURL); err != nil || (u.Scheme != "postgres" && u.Scheme != "postgresql") {
			errs = append(errs, "invalid DATABASE_URL: scheme must be 'postgres' or 'postgresql'")
		}

	case "redis":
		if c.RedisAddr == "" {
			errs = append(errs, "REDIS_ADDR is required when using redis backend")
		}
		if c.RedisDB < 0 {
			errs = append(errs, fmt.Sprintf("invalid redis db %d: must not be negative", c.RedisDB))
		}

	case "sheets":
		if c.GoogleSpreadsheetID == "" {
			errs = append(errs, "Google Spreadsheet ID is required when using sheets backend")
		}
		if c.GoogleServiceAccountFile != "" {
			if _, err := os.Stat(c.GoogleServiceAccountFile); os.IsNotExist(err) {
				errs = append(errs, fmt.Sprintf("Google service account file does not exist: %s", c.GoogleServiceAccountFile))
			}
		}

	case "rest":
		if u, err := url.Parse(c.RemoteURL); c.RemoteURL == "" || err != nil || u.Host == "" {
			errs = append(errs, fmt.Sprintf("invalid REMOTE_URL '%s': required when using rest backend", c.RemoteURL))
		}
	}

	if c.AMQPURL != "" {
		if u, err := url.Parse(c.AMQPURL); err != nil {
			errs = append(errs, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if u.Scheme != "amqp" && u.Scheme != "amqps" {
			errs = append(errs, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", u.Scheme))
		}
		if c.AMQPExchange == "" {
			errs = append(errs, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
		if c.AMQPQueue == "" {
			errs = append(errs, "AMQP queue name cannot be empty when AMQP URL is provided")
		}
	}

	if c.RateLimitRPS < 0 {
		errs = append(errs, fmt.Sprintf("invalid rate limit %v: must not be negative", c.RateLimitRPS))
	}
	if c.RateLimitRPS > 0 && c.RateLimitBurst < 1 {
		errs = append(errs, fmt.Sprintf("invalid rate limit burst %d: must be at least 1", c.RateLimitBurst))
	}
	if c.RequestTimeout < time.Second || c.RequestTimeout > 5*time.Minute {
		errs = append(errs, fmt.Sprintf("invalid request timeout %v: must be between 1s and 5m", c.RequestTimeout))
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errs, "\n- "))
	}
	return nil
}

var ErrMissingSecret = errors.New("JWT_SECRET is required")

// ValidateServer adds the checks only the HTTP server needs.
func (c *Config) ValidateServer() error {
	if err := c.Validate(); err != nil {
		return err
	}
	if c.Backend == "rest" {
		return errors.New("the server cannot use the rest backend")
	}
	if len(c.JWTSecret) < 16 {
		return fmt.Errorf("%w: at least 16 characters", ErrMissingSecret)
	}
	return nil
}

var ErrMissingBroker = errors.New("AMQP_URL is required")

// ValidateWorker adds the checks only the totals worker needs.
func (c *Config) ValidateWorker() error {
	if err := c.Validate(); err != nil {
		return err
	}
	if c.Backend == "rest" {
		return errors.New("the worker cannot use the rest backend")
	}
	if c.AMQPURL == "" {
		return ErrMissingBroker
	}
	if c.ReportInterval <= 0 {
		return fmt.Errorf("invalid report interval %v: must be positive", c.ReportInterval)
	}
	return nil
}
