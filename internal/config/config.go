package config

import (
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v2"
)

// Config represents the complete application configuration
type Config struct {
	Server    ServerConfig    `yaml:"server" envconfig:"SERVER"`
	Logging   LoggingConfig   `yaml:"logging" envconfig:"LOGGING"`
	Storage   StorageConfig   `yaml:"storage" envconfig:"STORAGE"`
	Scheduler SchedulerConfig `yaml:"scheduler" envconfig:"SCHEDULER"`
	PingFed   PingFedConfig   `yaml:"pingfed" envconfig:"PINGFED"`
	Notify    NotifyConfig    `yaml:"notify" envconfig:"NOTIFY"`
	Inventory string          `yaml:"inventory" envconfig:"INVENTORY" default:"inventory.yml"`
}

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Port            int           `yaml:"port" envconfig:"PORT" default:"8081"`
	ReadTimeout     time.Duration `yaml:"read_timeout" envconfig:"READ_TIMEOUT" default:"15s"`
	WriteTimeout    time.Duration `yaml:"write_timeout" envconfig:"WRITE_TIMEOUT" default:"15s"`
	IdleTimeout     time.Duration `yaml:"idle_timeout" envconfig:"IDLE_TIMEOUT" default:"60s"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" envconfig:"SHUTDOWN_TIMEOUT" default:"30s"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level    string `yaml:"level" envconfig:"LEVEL" default:"info" validate:"oneof=debug info warn error"`
	Output   string `yaml:"output" envconfig:"OUTPUT" default:"console" validate:"oneof=console file both"`
	FilePath string `yaml:"file_path" envconfig:"FILE_PATH" default:"logs/pfagent.log"`
}

// StorageConfig selects and configures the cache/audit backend. The backend
// is chosen once at startup; there is no runtime fallback between backends.
type StorageConfig struct {
	Backend string      `yaml:"backend" envconfig:"BACKEND" default:"file" validate:"oneof=file mongo"`
	DataDir string      `yaml:"data_dir" envconfig:"DATA_DIR" default:"data"`
	Mongo   MongoConfig `yaml:"mongo" envconfig:"MONGO"`
}

// MongoConfig contains MongoDB connection settings
type MongoConfig struct {
	URI            string        `yaml:"uri" envconfig:"URI" default:"mongodb://localhost:27017"`
	Database       string        `yaml:"database" envconfig:"DATABASE" default:"pf_agent"`
	ConnectTimeout time.Duration `yaml:"connect_timeout" envconfig:"CONNECT_TIMEOUT" default:"10s"`
}

// SchedulerConfig contains the daily refresh schedule
type SchedulerConfig struct {
	Enabled   bool   `yaml:"enabled" envconfig:"ENABLED" default:"true"`
	RefreshAt string `yaml:"refresh_at" envconfig:"REFRESH_AT" default:"07:00" validate:"required,refresh_time"`
}

// PingFedConfig contains admin API credentials shared by all instances
type PingFedConfig struct {
	Username string        `yaml:"username" envconfig:"USERNAME" default:"Administrator"`
	Password string        `yaml:"password" envconfig:"PASSWORD" default:"2FederateM0re"`
	Timeout  time.Duration `yaml:"timeout" envconfig:"TIMEOUT" default:"30s"`
}

// NotifyConfig contains alerting configuration
type NotifyConfig struct {
	SlackWebhook string `yaml:"slack_webhook" envconfig:"SLACK_WEBHOOK"`
}

// Load loads configuration from environment variables layered over an
// optional YAML config file.
func Load() (*Config, error) {
	return LoadFrom(os.Getenv("PFAGENT_CONFIG_FILE"))
}

// LoadFrom loads configuration with precedence env > config file > defaults.
// envconfig runs first and fills every field from the environment or its
// default tag; file values are then merged on top of the defaults, but never
// over an explicitly set environment variable.
func LoadFrom(configFile string) (*Config, error) {
	var cfg Config

	if err := envconfig.Process("PFAGENT", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from env: %w", err)
	}

	if configFile != "" {
		if _, err := os.Stat(configFile); err == nil {
			fileCfg, schedulerEnabled, err := loadFromFile(configFile)
			if err != nil {
				return nil, err
			}
			cfg = mergeConfigs(*fileCfg, cfg)
			if schedulerEnabled != nil && !envSet("PFAGENT_SCHEDULER_ENABLED") {
				cfg.Scheduler.Enabled = *schedulerEnabled
			}
		}
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// loadFromFile parses the YAML config file. scheduler.enabled comes back as
// a separate pointer because a plain bool cannot tell an explicit
// "enabled: false" apart from the key being absent.
func loadFromFile(path string) (*Config, *bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	var probe struct {
		Scheduler struct {
			Enabled *bool `yaml:"enabled"`
		} `yaml:"scheduler"`
	}
	if err := yaml.Unmarshal(data, &probe); err != nil {
		return nil, nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return &cfg, probe.Scheduler.Enabled, nil
}

// mergeConfigs merges file config with env config. A file value applies only
// when set and when its environment variable is not, so env always wins and
// file values still replace envconfig defaults.
func mergeConfigs(fileConfig, envConfig Config) Config {
	merged := envConfig

	mergeInt(&merged.Server.Port, fileConfig.Server.Port, "PFAGENT_SERVER_PORT")
	mergeDuration(&merged.Server.ReadTimeout, fileConfig.Server.ReadTimeout, "PFAGENT_SERVER_READ_TIMEOUT")
	mergeDuration(&merged.Server.WriteTimeout, fileConfig.Server.WriteTimeout, "PFAGENT_SERVER_WRITE_TIMEOUT")
	mergeDuration(&merged.Server.IdleTimeout, fileConfig.Server.IdleTimeout, "PFAGENT_SERVER_IDLE_TIMEOUT")
	mergeDuration(&merged.Server.ShutdownTimeout, fileConfig.Server.ShutdownTimeout, "PFAGENT_SERVER_SHUTDOWN_TIMEOUT")

	mergeString(&merged.Logging.Level, fileConfig.Logging.Level, "PFAGENT_LOGGING_LEVEL")
	mergeString(&merged.Logging.Output, fileConfig.Logging.Output, "PFAGENT_LOGGING_OUTPUT")
	mergeString(&merged.Logging.FilePath, fileConfig.Logging.FilePath, "PFAGENT_LOGGING_FILE_PATH")

	mergeString(&merged.Storage.Backend, fileConfig.Storage.Backend, "PFAGENT_STORAGE_BACKEND")
	mergeString(&merged.Storage.DataDir, fileConfig.Storage.DataDir, "PFAGENT_STORAGE_DATA_DIR")
	mergeString(&merged.Storage.Mongo.URI, fileConfig.Storage.Mongo.URI, "PFAGENT_STORAGE_MONGO_URI")
	mergeString(&merged.Storage.Mongo.Database, fileConfig.Storage.Mongo.Database, "PFAGENT_STORAGE_MONGO_DATABASE")
	mergeDuration(&merged.Storage.Mongo.ConnectTimeout, fileConfig.Storage.Mongo.ConnectTimeout, "PFAGENT_STORAGE_MONGO_CONNECT_TIMEOUT")

	mergeString(&merged.Scheduler.RefreshAt, fileConfig.Scheduler.RefreshAt, "PFAGENT_SCHEDULER_REFRESH_AT")

	mergeString(&merged.PingFed.Username, fileConfig.PingFed.Username, "PFAGENT_PINGFED_USERNAME")
	mergeString(&merged.PingFed.Password, fileConfig.PingFed.Password, "PFAGENT_PINGFED_PASSWORD")
	mergeDuration(&merged.PingFed.Timeout, fileConfig.PingFed.Timeout, "PFAGENT_PINGFED_TIMEOUT")

	mergeString(&merged.Notify.SlackWebhook, fileConfig.Notify.SlackWebhook, "PFAGENT_NOTIFY_SLACK_WEBHOOK")
	mergeString(&merged.Inventory, fileConfig.Inventory, "PFAGENT_INVENTORY")

	return merged
}

func envSet(key string) bool {
	_, ok := os.LookupEnv(key)
	return ok
}

func mergeString(dst *string, fileVal, envKey string) {
	if fileVal != "" && !envSet(envKey) {
		*dst = fileVal
	}
}

func mergeInt(dst *int, fileVal int, envKey string) {
	if fileVal != 0 && !envSet(envKey) {
		*dst = fileVal
	}
}

func mergeDuration(dst *time.Duration, fileVal time.Duration, envKey string) {
	if fileVal != 0 && !envSet(envKey) {
		*dst = fileVal
	}
}

// validate runs struct-level validation over the loaded configuration
func (c *Config) validate() error {
	v := validator.New()
	if err := v.RegisterValidation("refresh_time", validateRefreshTime); err != nil {
		return err
	}
	return v.Struct(c)
}

// validateRefreshTime accepts wall-clock times in HH:MM form
func validateRefreshTime(fl validator.FieldLevel) bool {
	_, err := time.Parse("15:04", fl.Field().String())
	return err == nil
}
