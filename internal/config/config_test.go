package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func validConfig() Config {
	cfg := Config{
		HTTP:     HTTPConfig{Port: 8080},
		Database: DatabaseConfig{Addrs: []string{"localhost:6379"}},
	}
	cfg.ApplyDefaults()
	return cfg
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{"valid", func(*Config) {}, ""},
		{"invalid port", func(c *Config) { c.HTTP.Port = 0 }, "http.port"},
		{"missing addrs", func(c *Config) { c.Database.Addrs = nil }, "database.addrs is required"},
		{"unknown driver", func(c *Config) { c.Database.Driver = "memcached" }, "database.driver must be one of valkey, redis"},
		{"unknown catalog source", func(c *Config) { c.Catalog.Source = "mongo" }, "catalog.source"},
		{"postgres without dsn", func(c *Config) { c.Catalog.Source = "postgres" }, "catalog.postgres.dsn is required"},
		{"postgres with dsn", func(c *Config) {
			c.Catalog.Source = "postgres"
			c.Catalog.Postgres.DSN = "postgres://localhost/shop"
		}, ""},
		{"min conns above max", func(c *Config) { c.Catalog.Postgres.MinConns = 10 }, "min_conns"},
		{"unknown otp store", func(c *Config) { c.OTP.Store = "disk" }, "otp.store"},
		{"bad otp type", func(c *Config) {
			c.OTP.Purposes = map[string]OTPPolicyConfig{"admin-access": {Type: "hex"}}
		}, "otp.purposes.admin-access: type must be one of numeric, alphanumeric"},
		{"bad otp length", func(c *Config) {
			c.OTP.Purposes = map[string]OTPPolicyConfig{"password-reset": {Length: 32}}
		}, "length must be between 4 and 16"},
		{"negative cooldown", func(c *Config) {
			c.OTP.Purposes = map[string]OTPPolicyConfig{"password-reset": {ResendCooldownSec: -1}}
		}, "must not be negative"},
		{"vision without key", func(c *Config) {
			c.Vision.Enabled = true
			c.Vision.Model = "gpt-4o-mini"
		}, "vision.api_key is required"},
		{"vision without model", func(c *Config) {
			c.Vision.Enabled = true
			c.Vision.APIKey = "sk-test"
		}, "vision.model is required"},
		{"disabled vision needs nothing", func(c *Config) { c.Vision.Enabled = false }, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("expected error containing %q", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error %q does not contain %q", err.Error(), tt.wantErr)
			}
		})
	}
}

func TestApplyDefaults(t *testing.T) {
	cfg := Config{}
	cfg.ApplyDefaults()

	if cfg.HTTP.ReadTimeoutSec != 10 {
		t.Errorf("expected ReadTimeoutSec=10, got %d", cfg.HTTP.ReadTimeoutSec)
	}
	if cfg.HTTP.WriteTimeoutSec != 30 {
		t.Errorf("expected WriteTimeoutSec=30, got %d", cfg.HTTP.WriteTimeoutSec)
	}
	if cfg.HTTP.ShutdownSec != 10 {
		t.Errorf("expected ShutdownSec=10, got %d", cfg.HTTP.ShutdownSec)
	}
	if cfg.Database.Driver != "valkey" || cfg.Database.ReadinessTimeout != 10 {
		t.Errorf("unexpected database defaults: %+v", cfg.Database)
	}
	if cfg.Storage.KeyPrefix != "storefront:" {
		t.Errorf("expected KeyPrefix='storefront:', got %q", cfg.Storage.KeyPrefix)
	}
	if cfg.Catalog.Source != "redis" {
		t.Errorf("expected catalog source redis, got %q", cfg.Catalog.Source)
	}
	if cfg.Search.ImageKeywords != 3 || cfg.Search.ImageResultCap != 20 || cfg.Search.SuggestionLimit != 8 {
		t.Errorf("unexpected search defaults: %+v", cfg.Search)
	}
	if cfg.OTP.Store != "memory" || cfg.OTP.ExposeCode {
		t.Errorf("unexpected otp defaults: %+v", cfg.OTP)
	}
	if cfg.Vision.Enabled || cfg.Vision.Provider != "openai" {
		t.Errorf("unexpected vision defaults: %+v", cfg.Vision)
	}
}

func TestApplyDefaults_NoOverride(t *testing.T) {
	cfg := Config{
		HTTP:     HTTPConfig{ReadTimeoutSec: 30, WriteTimeoutSec: 60, ShutdownSec: 5},
		Database: DatabaseConfig{Driver: "redis", ReadinessTimeout: 15},
		Storage:  StorageConfig{KeyPrefix: "custom:"},
		Search:   SearchConfig{ImageKeywords: 5, ImageResultCap: 50},
		OTP:      OTPConfig{Store: "redis", RetentionSec: 60},
	}
	cfg.ApplyDefaults()

	if cfg.HTTP.ReadTimeoutSec != 30 {
		t.Errorf("expected ReadTimeoutSec=30, got %d", cfg.HTTP.ReadTimeoutSec)
	}
	if cfg.HTTP.WriteTimeoutSec != 60 {
		t.Errorf("expected WriteTimeoutSec=60, got %d", cfg.HTTP.WriteTimeoutSec)
	}
	if cfg.Database.Driver != "redis" {
		t.Errorf("expected driver redis, got %q", cfg.Database.Driver)
	}
	if cfg.Storage.KeyPrefix != "custom:" {
		t.Errorf("expected KeyPrefix='custom:', got %q", cfg.Storage.KeyPrefix)
	}
	if cfg.Search.ImageKeywords != 5 || cfg.Search.ImageResultCap != 50 {
		t.Errorf("search overrides lost: %+v", cfg.Search)
	}
	if cfg.OTP.Store != "redis" || cfg.OTP.RetentionSec != 60 {
		t.Errorf("otp overrides lost: %+v", cfg.OTP)
	}
}

func TestExpandEnvVars(t *testing.T) {
	t.Setenv("STOREFRONT_TEST_ADDR", "valkey:6379")

	got := string(expandEnvVars([]byte("a: ${STOREFRONT_TEST_ADDR}\nb: ${STOREFRONT_TEST_UNSET:-fallback}\nc: ${STOREFRONT_TEST_UNSET}")))
	want := "a: valkey:6379\nb: fallback\nc: "
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func writeConfig(t *testing.T, env, body string) {
	t.Helper()
	dir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(dir, "config"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "config", env+".yaml"), []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Chdir(dir)
}

func TestLoad(t *testing.T) {
	t.Setenv("STOREFRONT_TEST_KEY", "admin-1")
	writeConfig(t, "unit", `
http:
  port: 9090
database:
  addrs: ["localhost:6379"]
auth:
  api_keys: ["${STOREFRONT_TEST_KEY}"]
otp:
  expose_code: true
  purposes:
    password-reset:
      resend_cooldown_sec: 30
`)

	cfg, err := Load("unit")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.HTTP.Port != 9090 {
		t.Errorf("port: got %d", cfg.HTTP.Port)
	}
	if len(cfg.Auth.APIKeys) != 1 || cfg.Auth.APIKeys[0] != "admin-1" {
		t.Errorf("api keys: got %v", cfg.Auth.APIKeys)
	}
	if cfg.OTP.Purposes["password-reset"].ResendCooldownSec != 30 {
		t.Errorf("purpose override lost: %+v", cfg.OTP.Purposes)
	}
	if cfg.Search.ImageResultCap != 20 {
		t.Errorf("defaults not applied: %+v", cfg.Search)
	}
}

func TestLoad_ProdRejectsExposedCode(t *testing.T) {
	writeConfig(t, "prod", `
http:
  port: 8080
database:
  addrs: ["localhost:6379"]
otp:
  expose_code: true
`)

	_, err := Load("prod")
	if err == nil || !strings.Contains(err.Error(), "expose_code") {
		t.Fatalf("expected expose_code error, got %v", err)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	t.Chdir(t.TempDir())

	if _, err := Load("does-not-exist"); err == nil {
		t.Fatal("expected error for missing config")
	}
}
