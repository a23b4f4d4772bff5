package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/site-autopilot/pkg/errors"
)

// EnvPrefix is prepended to every environment override
const EnvPrefix = "AUTOPILOT"

// Config represents the application configuration
type Config struct {
	Database  DatabaseConfig  `mapstructure:"database"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Sources   SourcesConfig   `mapstructure:"sources"`
	Anthropic AnthropicConfig `mapstructure:"anthropic"`
	Server    ServerConfig    `mapstructure:"server"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	DSN        string `mapstructure:"dsn" validate:"required"`
	ReplicaDSN string `mapstructure:"replica_dsn"` // optional read replica for candidate scans
}

// SchedulerConfig holds the automation loop settings
type SchedulerConfig struct {
	Interval    time.Duration `mapstructure:"interval" validate:"gt=0"`
	LockKey     string        `mapstructure:"lock_key" validate:"required"`
	LockMargin  time.Duration `mapstructure:"lock_margin" validate:"gte=0"`
	Backoff     time.Duration `mapstructure:"backoff" validate:"gt=0"`
	CallTimeout time.Duration `mapstructure:"call_timeout" validate:"gt=0"`
	Concurrency int           `mapstructure:"concurrency" validate:"gte=1,lte=64"`
}

// SourcesConfig holds upstream source settings
type SourcesConfig struct {
	FeedRequestsPerSecond   float64       `mapstructure:"feed_requests_per_second" validate:"gt=0"`
	FeedBurst               int           `mapstructure:"feed_burst" validate:"gte=1"`
	FeedTimeout             time.Duration `mapstructure:"feed_timeout" validate:"gt=0"`
	SheetsRequestsPerSecond float64       `mapstructure:"sheets_requests_per_second" validate:"gt=0"`
	RecentPostWindow        time.Duration `mapstructure:"recent_post_window" validate:"gt=0"`
	// OAuth client used to refresh per-site spreadsheet credentials
	GoogleClientID     string `mapstructure:"google_client_id"`
	GoogleClientSecret string `mapstructure:"google_client_secret"`
}

// AnthropicConfig holds Claude API settings
type AnthropicConfig struct {
	APIKey            string  `mapstructure:"api_key"`
	Model             string  `mapstructure:"model" validate:"required"`
	MaxTokens         int     `mapstructure:"max_tokens" validate:"gt=0"`
	Temperature       float64 `mapstructure:"temperature" validate:"gte=0,lte=1"`
	BaseURL           string  `mapstructure:"base_url" validate:"omitempty,url"`
	RequestsPerMinute int     `mapstructure:"requests_per_minute" validate:"gte=1"`
}

// ServerConfig holds the health/metrics listener settings
type ServerConfig struct {
	Port int `mapstructure:"port" validate:"gte=1,lte=65535"`
}

// LoggingConfig holds logging settings
type LoggingConfig struct {
	Level  string `mapstructure:"level" validate:"oneof=trace debug info warn error"`
	Format string `mapstructure:"format" validate:"oneof=json console"`
	Output string `mapstructure:"output" validate:"required"` // stdout or file path
}

var validate = validator.New()

// Load loads configuration from file and environment variables
func Load(configPath string) (*Config, error) {
	// Load .env file if present (ignore errors if not found)
	_ = godotenv.Load()
	_ = godotenv.Load(".env.local")

	v := viper.New()

	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")

		home, err := os.UserHomeDir()
		if err == nil {
			v.AddConfigPath(filepath.Join(home, ".site-autopilot"))
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()

	// Explicit bindings for nested keys (Viper doesn't auto-bind underscored nested keys)
	for _, key := range []string{
		"database.dsn",
		"database.replica_dsn",
		"scheduler.interval",
		"scheduler.lock_key",
		"scheduler.backoff",
		"scheduler.call_timeout",
		"scheduler.concurrency",
		"sources.google_client_id",
		"sources.google_client_secret",
		"anthropic.api_key",
		"anthropic.model",
		"anthropic.base_url",
		"server.port",
		"logging.level",
		"logging.format",
		"logging.output",
	} {
		_ = v.BindEnv(key, envName(key))
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, errors.Wrap(err, "error reading config file")
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, errors.Wrap(err, "error unmarshaling config")
	}

	return &config, nil
}

// envName maps a dotted key to its AUTOPILOT_ variable, e.g.
// scheduler.interval -> AUTOPILOT_SCHEDULER_INTERVAL
func envName(key string) string {
	return EnvPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	v.SetDefault("database.dsn", "./data/autopilot.db")
	v.SetDefault("database.replica_dsn", "")

	v.SetDefault("scheduler.interval", time.Minute)
	v.SetDefault("scheduler.lock_key", "automation-scheduler")
	v.SetDefault("scheduler.lock_margin", 5*time.Second)
	v.SetDefault("scheduler.backoff", time.Hour)
	v.SetDefault("scheduler.call_timeout", 20*time.Second)
	v.SetDefault("scheduler.concurrency", 4)

	v.SetDefault("sources.feed_requests_per_second", 2.0)
	v.SetDefault("sources.feed_burst", 10)
	v.SetDefault("sources.feed_timeout", 15*time.Second)
	v.SetDefault("sources.sheets_requests_per_second", 1.0)
	v.SetDefault("sources.recent_post_window", 24*time.Hour)

	v.SetDefault("anthropic.model", "claude-sonnet-4-20250514")
	v.SetDefault("anthropic.max_tokens", 2048)
	v.SetDefault("anthropic.temperature", 0.7)
	v.SetDefault("anthropic.requests_per_minute", 10)

	v.SetDefault("server.port", 8080)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
	v.SetDefault("logging.output", "stdout")
}

// Validate checks field rules and cross-field constraints
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return errors.Wrap(err, "invalid configuration")
	}
	if c.Scheduler.LockMargin >= c.Scheduler.Interval {
		return errors.Newf("scheduler.lock_margin (%s) must be shorter than scheduler.interval (%s)",
			c.Scheduler.LockMargin, c.Scheduler.Interval)
	}
	return nil
}

// RequireAnthropic reports a missing API key for commands that call Claude
func (c *Config) RequireAnthropic() error {
	if c.Anthropic.APIKey == "" {
		return errors.New("anthropic.api_key is required")
	}
	return nil
}
