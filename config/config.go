package config

import (
	"bytes"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	LogFormatConsole = "console"
	LogFormatJSON    = "json"
)

// Config is the complete service configuration
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Log       LogConfig       `yaml:"log"`
	Fetch     FetchConfig     `yaml:"fetch"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Redis     RedisConfig     `yaml:"redis"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	Stats     StatsConfig     `yaml:"stats"`
}

type ServerConfig struct {
	Port            string        `yaml:"port"`
	GinMode         string        `yaml:"gin_mode"`
	DevMode         bool          `yaml:"dev_mode"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

type LogConfig struct {
	Level      string `yaml:"level"`
	Format     string `yaml:"format"`
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
	Compress   bool   `yaml:"compress"`
}

type FetchConfig struct {
	Timeout           time.Duration `yaml:"timeout"`
	MaxBodyBytes      int64         `yaml:"max_body_bytes"`
	MaxRedirects      int           `yaml:"max_redirects"`
	UserAgent         string        `yaml:"user_agent"`
	AllowPrivateHosts bool          `yaml:"allow_private_hosts"`
}

// RateLimitConfig is a per-client token bucket
type RateLimitConfig struct {
	RPS   float64 `yaml:"rps"`
	Burst float64 `yaml:"burst"`
}

// RedisConfig enables the shared rate limit store when Addr is set
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

type StatsConfig struct {
	DataDir      string `yaml:"data_dir"`
	RetainMonths int    `yaml:"retain_months"`
}

// Default returns the configuration used when nothing is overridden
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            "8082",
			GinMode:         "release",
			ShutdownTimeout: 10 * time.Second,
		},
		Log: LogConfig{
			Level:      "info",
			Format:     LogFormatConsole,
			MaxSizeMB:  100,
			MaxBackups: 5,
			MaxAgeDays: 30,
		},
		Fetch: FetchConfig{
			Timeout:      15 * time.Second,
			MaxBodyBytes: 5 * 1024 * 1024,
			MaxRedirects: 10,
		},
		RateLimit: RateLimitConfig{
			RPS:   2,
			Burst: 5,
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Path:    "/metrics",
		},
		Stats: StatsConfig{
			DataDir:      "data",
			RetainMonths: 2,
		},
	}
}

// Load reads .env files, the optional YAML file named by CONFIG_FILE and
// finally the environment, in increasing order of precedence.
func Load() (*Config, error) {
	loadEnvFiles()

	cfg := Default()
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFile reads a YAML file over the defaults without consulting the environment
func LoadFile(path string) (*Config, error) {
	cfg := Default()
	if err := cfg.loadFile(path); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadEnvFiles prefers .env.development for local runs and falls back to .env
func loadEnvFiles() {
	if err := godotenv.Load(".env.development"); err != nil {
		_ = godotenv.Load()
	}
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := unmarshalStrict(data, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

// unmarshalStrict rejects fields the config structs do not declare
func unmarshalStrict(data []byte, v interface{}) error {
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)

	if err := decoder.Decode(v); err != nil {
		errStr := err.Error()
		if strings.Contains(errStr, "field") && strings.Contains(errStr, "not found") {
			return fmt.Errorf("unknown configuration field (check for typos): %w", err)
		}
		return err
	}
	return nil
}

func (c *Config) applyEnv() error {
	setString("PORT", &c.Server.Port)
	setString("GIN_MODE", &c.Server.GinMode)
	setString("DATA_DIR", &c.Stats.DataDir)
	setString("LOG_LEVEL", &c.Log.Level)
	setString("LOG_FORMAT", &c.Log.Format)
	setString("LOG_FILE", &c.Log.File)
	setString("REDIS_ADDR", &c.Redis.Addr)
	setString("REDIS_PASSWORD", &c.Redis.Password)
	setString("METRICS_PATH", &c.Metrics.Path)

	if v, ok := os.LookupEnv("DEV_MODE"); ok {
		c.Server.DevMode = v == "true"
	}

	parsers := []func() error{
		func() error { return setBool("FETCH_ALLOW_PRIVATE", &c.Fetch.AllowPrivateHosts) },
		func() error { return setBool("METRICS_ENABLED", &c.Metrics.Enabled) },
		func() error { return setDuration("FETCH_TIMEOUT", &c.Fetch.Timeout) },
		func() error { return setInt64("FETCH_MAX_BYTES", &c.Fetch.MaxBodyBytes) },
		func() error { return setFloat("RATE_LIMIT_RPS", &c.RateLimit.RPS) },
		func() error { return setFloat("RATE_LIMIT_BURST", &c.RateLimit.Burst) },
		func() error { return setInt("REDIS_DB", &c.Redis.DB) },
	}
	for _, parse := range parsers {
		if err := parse(); err != nil {
			return err
		}
	}
	return nil
}

// Validate rejects values the service cannot run with
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("server.port is required")
	}
	if _, err := strconv.Atoi(c.Server.Port); err != nil {
		return fmt.Errorf("server.port must be numeric, got %q", c.Server.Port)
	}
	switch c.Server.GinMode {
	case "debug", "release", "test":
	default:
		return fmt.Errorf("server.gin_mode must be debug, release or test, got %q", c.Server.GinMode)
	}
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level must be debug, info, warn or error, got %q", c.Log.Level)
	}
	if c.Log.Format != LogFormatConsole && c.Log.Format != LogFormatJSON {
		return fmt.Errorf("log.format must be %s or %s, got %q", LogFormatConsole, LogFormatJSON, c.Log.Format)
	}
	if c.Fetch.Timeout <= 0 {
		return fmt.Errorf("fetch.timeout must be positive")
	}
	if c.Fetch.MaxBodyBytes <= 0 {
		return fmt.Errorf("fetch.max_body_bytes must be positive")
	}
	if c.Fetch.MaxRedirects < 1 {
		return fmt.Errorf("fetch.max_redirects must be at least 1")
	}
	if c.RateLimit.RPS <= 0 || c.RateLimit.Burst < 1 {
		return fmt.Errorf("rate_limit requires rps > 0 and burst >= 1")
	}
	if c.Metrics.Enabled && !strings.HasPrefix(c.Metrics.Path, "/") {
		return fmt.Errorf("metrics.path must start with /, got %q", c.Metrics.Path)
	}
	if c.Stats.DataDir == "" {
		return fmt.Errorf("stats.data_dir is required")
	}
	if c.Stats.RetainMonths < 1 {
		return fmt.Errorf("stats.retain_months must be at least 1")
	}
	return nil
}

func setString(key string, dst *string) {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		*dst = v
	}
}

func setBool(key string, dst *bool) error {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = b
	return nil
}

func setInt(key string, dst *int) error {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = n
	return nil
}

func setInt64(key string, dst *int64) error {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = n
	return nil
}

func setFloat(key string, dst *float64) error {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = f
	return nil
}

func setDuration(key string, dst *time.Duration) error {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = d
	return nil
}
