package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds the storefront API configuration.
type Config struct {
	HTTP     HTTPConfig     `yaml:"http"`
	Database DatabaseConfig `yaml:"database"`
	Storage  StorageConfig  `yaml:"storage"`
	Catalog  CatalogConfig  `yaml:"catalog"`
	Search   SearchConfig   `yaml:"search"`
	OTP      OTPConfig      `yaml:"otp"`
	Vision   VisionConfig   `yaml:"vision"`
	Auth     AuthConfig     `yaml:"auth"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error (default: determined by env)
}

// AuthConfig holds admin API authentication settings.
type AuthConfig struct {
	APIKeys []string `yaml:"api_keys"`
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Port            int `yaml:"port"`
	ReadTimeoutSec  int `yaml:"read_timeout_sec"`
	WriteTimeoutSec int `yaml:"write_timeout_sec"`
	ShutdownSec     int `yaml:"shutdown_timeout_sec"`
}

// DatabaseConfig holds key-value store connection settings.
type DatabaseConfig struct {
	Driver           string   `yaml:"driver"` // valkey, redis (default: valkey)
	Addrs            []string `yaml:"addrs"`
	Username         string   `yaml:"username"`
	Password         string   `yaml:"password"`
	DB               int      `yaml:"db"`
	ReadinessTimeout int      `yaml:"readiness_timeout_sec"`
}

// StorageConfig holds storage settings.
type StorageConfig struct {
	KeyPrefix string `yaml:"key_prefix"`
}

// CatalogConfig selects where search candidates come from.
type CatalogConfig struct {
	Source   string         `yaml:"source"` // redis, postgres (default: redis)
	Postgres PostgresConfig `yaml:"postgres"`
}

// PostgresConfig holds the read-only product database settings.
type PostgresConfig struct {
	DSN                string `yaml:"dsn"`
	MaxConns           int32  `yaml:"max_conns"`
	MinConns           int32  `yaml:"min_conns"`
	MaxConnLifetimeSec int    `yaml:"max_conn_lifetime_sec"`
	ConnectTimeoutSec  int    `yaml:"connect_timeout_sec"`
	MaxRows            int    `yaml:"max_rows"` // 0 = unlimited
}

// SearchConfig holds ranking limits.
type SearchConfig struct {
	ImageKeywords   int  `yaml:"image_keywords"`
	ImageResultCap  int  `yaml:"image_result_cap"`
	SuggestionLimit int  `yaml:"suggestion_limit"`
	ExpandFallback  bool `yaml:"expand_fallback"`
}

// OTPConfig holds one-time passcode settings.
type OTPConfig struct {
	Store            string                     `yaml:"store"` // memory, redis (default: memory)
	ExposeCode       bool                       `yaml:"expose_code"`
	SweepIntervalSec int                        `yaml:"sweep_interval_sec"`
	RetentionSec     int                        `yaml:"retention_sec"`
	Purposes         map[string]OTPPolicyConfig `yaml:"purposes"`
}

// OTPPolicyConfig overrides a purpose's issuance defaults. Zero values keep the default.
type OTPPolicyConfig struct {
	Type              string `yaml:"type"` // numeric, alphanumeric
	Length            int    `yaml:"length"`
	ExpiresInMin      int    `yaml:"expires_in_min"`
	MaxAttempts       int    `yaml:"max_attempts"`
	ResendCooldownSec int    `yaml:"resend_cooldown_sec"`
}

// VisionConfig holds image analysis provider settings.
type VisionConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Provider    string `yaml:"provider"`
	APIKey      string `yaml:"api_key"`
	BaseURL     string `yaml:"base_url"`
	Model       string `yaml:"model"`
	MaxTokens   int    `yaml:"max_tokens"`
	TimeoutSec  int    `yaml:"timeout_sec"`
	CacheTTLSec int    `yaml:"cache_ttl_sec"` // 0 disables the cache
}

// Load reads configuration from a YAML file by environment name (local, dev, prod).
func Load(env string) (Config, error) {
	configPath := findConfigPath(env)

	data, err := os.ReadFile(filepath.Clean(configPath))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", configPath, err)
	}

	// Substitute env variables of the form ${VAR}
	data = expandEnvVars(data)

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}
	if env == "prod" && cfg.OTP.ExposeCode {
		return Config{}, fmt.Errorf("invalid config: otp.expose_code must be false in prod")
	}

	return cfg, nil
}

// MustLoad loads configuration or panics.
func MustLoad(env string) Config {
	cfg, err := Load(env)
	if err != nil {
		panic(err)
	}
	return cfg
}

// GetEnv returns the current environment from the ENV variable, defaulting to "local".
func GetEnv() string {
	if env := os.Getenv("ENV"); env != "" {
		return env
	}
	return "local"
}

// ApplyDefaults fills empty fields with default values.
func (c *Config) ApplyDefaults() {
	if c.HTTP.ReadTimeoutSec <= 0 {
		c.HTTP.ReadTimeoutSec = 10
	}
	if c.HTTP.WriteTimeoutSec <= 0 {
		c.HTTP.WriteTimeoutSec = 30
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 10
	}
	if c.Database.Driver == "" {
		c.Database.Driver = "valkey"
	}
	if c.Database.ReadinessTimeout <= 0 {
		c.Database.ReadinessTimeout = 10
	}
	if c.Storage.KeyPrefix == "" {
		c.Storage.KeyPrefix = "storefront:"
	}
	if c.Catalog.Source == "" {
		c.Catalog.Source = "redis"
	}
	if c.Catalog.Postgres.MaxConns <= 0 {
		c.Catalog.Postgres.MaxConns = 4
	}
	if c.Catalog.Postgres.ConnectTimeoutSec <= 0 {
		c.Catalog.Postgres.ConnectTimeoutSec = 5
	}
	if c.Search.ImageKeywords <= 0 {
		c.Search.ImageKeywords = 3
	}
	if c.Search.ImageResultCap <= 0 {
		c.Search.ImageResultCap = 20
	}
	if c.Search.SuggestionLimit <= 0 {
		c.Search.SuggestionLimit = 8
	}
	if c.OTP.Store == "" {
		c.OTP.Store = "memory"
	}
	if c.OTP.SweepIntervalSec <= 0 {
		c.OTP.SweepIntervalSec = 60
	}
	if c.OTP.RetentionSec <= 0 {
		c.OTP.RetentionSec = 3600
	}
	if c.Vision.Provider == "" {
		c.Vision.Provider = "openai"
	}
	if c.Vision.MaxTokens <= 0 {
		c.Vision.MaxTokens = 300
	}
	if c.Vision.TimeoutSec <= 0 {
		c.Vision.TimeoutSec = 20
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}
	if len(c.Database.Addrs) == 0 {
		return fmt.Errorf("database.addrs is required")
	}
	if err := oneOf("database.driver", c.Database.Driver, "valkey", "redis"); err != nil {
		return err
	}
	if err := oneOf("catalog.source", c.Catalog.Source, "redis", "postgres"); err != nil {
		return err
	}
	if c.Catalog.Source == "postgres" && c.Catalog.Postgres.DSN == "" {
		return fmt.Errorf("catalog.postgres.dsn is required when catalog.source is postgres")
	}
	if c.Catalog.Postgres.MinConns > c.Catalog.Postgres.MaxConns {
		return fmt.Errorf("catalog.postgres.min_conns must not exceed max_conns")
	}
	if err := oneOf("otp.store", c.OTP.Store, "memory", "redis"); err != nil {
		return err
	}
	for purpose, p := range c.OTP.Purposes {
		if err := p.validate(); err != nil {
			return fmt.Errorf("otp.purposes.%s: %w", purpose, err)
		}
	}
	if c.Vision.Enabled {
		if c.Vision.APIKey == "" {
			return fmt.Errorf("vision.api_key is required when vision is enabled")
		}
		if c.Vision.Model == "" {
			return fmt.Errorf("vision.model is required when vision is enabled")
		}
	}
	return nil
}

func (p OTPPolicyConfig) validate() error {
	if p.Type != "" {
		if err := oneOf("type", p.Type, "numeric", "alphanumeric"); err != nil {
			return err
		}
	}
	if p.Length != 0 && (p.Length < 4 || p.Length > 16) {
		return fmt.Errorf("length must be between 4 and 16, got %d", p.Length)
	}
	if p.ExpiresInMin < 0 || p.MaxAttempts < 0 || p.ResendCooldownSec < 0 {
		return fmt.Errorf("expires_in_min, max_attempts and resend_cooldown_sec must not be negative")
	}
	return nil
}

func oneOf(name, val string, allowed ...string) error {
	for _, a := range allowed {
		if val == a {
			return nil
		}
	}
	return fmt.Errorf("%s must be one of %s, got %q", name, strings.Join(allowed, ", "), val)
}

// findConfigPath locates the config file.
func findConfigPath(env string) string {
	filename := fmt.Sprintf("%s.yaml", env)

	// 1. Check ./config/
	if path := filepath.Join("config", filename); fileExists(path) {
		return path
	}

	// 2. Check relative to the source file
	_, b, _, _ := runtime.Caller(0)
	projectRoot := filepath.Dir(filepath.Dir(filepath.Dir(b))) // internal/config -> project root
	if path := filepath.Join(projectRoot, "config", filename); fileExists(path) {
		return path
	}

	// 3. Fallback to ./config/
	return filepath.Join("config", filename)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// expandEnvVars replaces ${VAR} and ${VAR:-default} with environment variable values.
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

func expandEnvVars(data []byte) []byte {
	return envVarRegex.ReplaceAllFunc(data, func(match []byte) []byte {
		expr := string(match[2 : len(match)-1]) // strip ${ and }
		varName, defaultVal, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(varName)
		if val == "" && hasDefault {
			val = defaultVal
		}
		return []byte(val)
	})
}
