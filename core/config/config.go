package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net"
	"os"
	"strconv"
	"time"

	apperrors "docworker/core/errors"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// ConnectionParameters identifies the Redis instance holding the job list.
// It is built once at startup and passed by value; nothing mutates it afterwards.
type ConnectionParameters struct {
	Address  string `mapstructure:"address"`
	Port     int    `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
}

// Addr returns the host:port dial address.
func (p ConnectionParameters) Addr() string {
	return net.JoinHostPort(p.Address, strconv.Itoa(p.Port))
}

// String masks the credential so parameters can be logged.
func (p ConnectionParameters) String() string {
	masked := ""
	if p.Password != "" {
		masked = "****"
	}
	return fmt.Sprintf("redis://%s@%s (password=%s)", p.Username, p.Addr(), masked)
}

// WorkerConfig tunes the consumption loop.
type WorkerConfig struct {
	Queue             string        `mapstructure:"queue"`
	PopTimeout        time.Duration `mapstructure:"pop_timeout"`
	ReconnectAttempts int           `mapstructure:"reconnect_attempts"`
	ReconnectBackoff  time.Duration `mapstructure:"reconnect_backoff"`
}

// OpsConfig configures the optional health/metrics HTTP listener.
type OpsConfig struct {
	Address string `mapstructure:"address"` // empty disables the listener
}

// LogConfig selects the zap encoder and level.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Config holds the application's configuration settings.
type Config struct {
	Environment string               `mapstructure:"environment"`
	Redis       ConnectionParameters `mapstructure:"redis"`
	Worker      WorkerConfig         `mapstructure:"worker"`
	Ops         OpsConfig            `mapstructure:"ops"`
	Log         LogConfig            `mapstructure:"log"`
}

// envBindings maps configuration keys to the environment variables that set them.
var envBindings = []struct{ key, env string }{
	{"environment", "DOCWORKER_ENVIRONMENT"},
	{"redis.address", "REDIS_ADDRESS"},
	{"redis.port", "REDIS_PORT"},
	{"redis.username", "REDIS_USERNAME"},
	{"redis.password", "REDIS_PASSWORD"},
	{"worker.queue", "WORKER_QUEUE"},
	{"worker.pop_timeout", "WORKER_POP_TIMEOUT"},
	{"worker.reconnect_attempts", "WORKER_RECONNECT_ATTEMPTS"},
	{"worker.reconnect_backoff", "WORKER_RECONNECT_BACKOFF"},
	{"ops.address", "OPS_ADDRESS"},
	{"log.level", "LOG_LEVEL"},
	{"log.format", "LOG_FORMAT"},
}

// Defaults applied before the config file and environment are read.
const (
	DefaultQueue      = "document_jobs"
	DefaultPort       = 6379
	DefaultPopTimeout = time.Second
)

// LoadConfig loads configuration from a .env file, an optional YAML file and the
// environment, in increasing order of precedence. configFile may be empty, in which
// case docworker.yaml is looked up in the usual places and is not required.
func LoadConfig(configFile string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, apperrors.Kind(apperrors.ErrConfiguration, fmt.Errorf("failed to read .env: %w", err))
	}

	v := viper.New()
	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("docworker")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.AddConfigPath("/etc/docworker")
	}

	for _, b := range envBindings {
		if err := v.BindEnv(b.key, b.env); err != nil {
			return nil, fmt.Errorf("failed to bind %s: %w", b.env, err)
		}
	}

	v.SetDefault("environment", "development")
	v.SetDefault("redis.port", DefaultPort)
	v.SetDefault("worker.queue", DefaultQueue)
	v.SetDefault("worker.pop_timeout", DefaultPopTimeout.String())
	v.SetDefault("worker.reconnect_attempts", 1)
	v.SetDefault("worker.reconnect_backoff", "1s")
	v.SetDefault("ops.address", "")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, apperrors.Kind(apperrors.ErrConfiguration, fmt.Errorf("failed to read config file: %w", err))
		}
		// No config file; defaults and environment only.
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, apperrors.Kind(apperrors.ErrConfiguration, fmt.Errorf("failed to unmarshal config: %w", err))
	}

	if err := cfg.Validate(); err != nil {
		return nil, apperrors.Wrap(err, "invalid configuration")
	}
	return &cfg, nil
}

// Validate checks the configuration for required fields and valid values.
// Every missing required field is reported at once.
func (c *Config) Validate() error {
	var missing []string
	if c.Redis.Address == "" {
		missing = append(missing, "REDIS_ADDRESS")
	}
	if c.Redis.Username == "" {
		missing = append(missing, "REDIS_USERNAME")
	}
	if c.Redis.Password == "" {
		missing = append(missing, "REDIS_PASSWORD")
	}
	if len(missing) > 0 {
		return &apperrors.MissingFieldsError{Fields: missing}
	}

	invalid := func(format string, args ...any) error {
		return apperrors.Kind(apperrors.ErrConfiguration, fmt.Errorf(format, args...))
	}
	switch c.Environment {
	case "development", "staging", "production":
	default:
		return invalid("invalid environment: %q", c.Environment)
	}
	if c.Redis.Port < 1 || c.Redis.Port > 65535 {
		return invalid("invalid redis port: %d", c.Redis.Port)
	}
	if c.Worker.Queue == "" {
		return invalid("worker queue name must not be empty")
	}
	if c.Worker.PopTimeout < time.Second {
		return invalid("worker pop timeout must be at least 1s, got %s", c.Worker.PopTimeout)
	}
	if c.Worker.ReconnectAttempts < 1 {
		return invalid("worker reconnect attempts must be at least 1, got %d", c.Worker.ReconnectAttempts)
	}
	if c.Worker.ReconnectBackoff < 0 {
		return invalid("worker reconnect backoff must not be negative")
	}
	return nil
}

// GenerateDefault returns a configuration with every default filled in and the
// credentials left blank; they are expected to come from the environment.
func GenerateDefault() *Config {
	return &Config{
		Environment: "development",
		Redis: ConnectionParameters{
			Address: "localhost",
			Port:    DefaultPort,
		},
		Worker: WorkerConfig{
			Queue:             DefaultQueue,
			PopTimeout:        DefaultPopTimeout,
			ReconnectAttempts: 1,
			ReconnectBackoff:  time.Second,
		},
		Log: LogConfig{Level: "info", Format: "console"},
	}
}

// SaveGeneratedConfig writes cfg as YAML. The password is never written.
func SaveGeneratedConfig(cfg *Config, filename string) error {
	doc := map[string]any{
		"environment": cfg.Environment,
		"redis": map[string]any{
			"address":  cfg.Redis.Address,
			"port":     cfg.Redis.Port,
			"username": cfg.Redis.Username,
		},
		"worker": map[string]any{
			"queue":              cfg.Worker.Queue,
			"pop_timeout":        cfg.Worker.PopTimeout.String(),
			"reconnect_attempts": cfg.Worker.ReconnectAttempts,
			"reconnect_backoff":  cfg.Worker.ReconnectBackoff.String(),
		},
		"ops": map[string]any{"address": cfg.Ops.Address},
		"log": map[string]any{"level": cfg.Log.Level, "format": cfg.Log.Format},
	}

	data, err := yaml.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(filename, data, 0o600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}
