package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	if cfg.Server.Port != 8080 {
		t.Errorf("server.port = %d, want 8080", cfg.Server.Port)
	}
	if cfg.Database.SSLMode != "require" {
		t.Errorf("database.ssl_mode = %s, want require", cfg.Database.SSLMode)
	}
	if cfg.Auth.TokenTTL != 8*time.Hour {
		t.Errorf("auth.token_ttl = %v, want 8h", cfg.Auth.TokenTTL)
	}
	if cfg.Auth.BcryptCost != 12 {
		t.Errorf("auth.bcrypt_cost = %d, want 12", cfg.Auth.BcryptCost)
	}
	if cfg.Redis.Enabled {
		t.Error("redis.enabled defaults to true, want false")
	}
	if !cfg.Audit.Enabled {
		t.Error("audit.enabled defaults to false, want true")
	}
	if cfg.Audit.QueueSize != 1024 {
		t.Errorf("audit.queue_size = %d, want 1024", cfg.Audit.QueueSize)
	}
	if cfg.Audit.MaxBodyBytes != 65536 {
		t.Errorf("audit.max_body_bytes = %d, want 65536", cfg.Audit.MaxBodyBytes)
	}
	if cfg.Security.RateLimiting.AuthRequestsPerMinute != 10 {
		t.Errorf("auth_requests_per_minute = %d, want 10", cfg.Security.RateLimiting.AuthRequestsPerMinute)
	}
	if cfg.Logging.Level != "info" {
		t.Errorf("logging.level = %s, want info", cfg.Logging.Level)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("EMS_SERVER_PORT", "9999")
	t.Setenv("EMS_DATABASE_HOST", "pg.internal")
	t.Setenv("EMS_AUDIT_QUEUE_SIZE", "64")
	t.Setenv("EMS_SECURITY_RATE_LIMITING_ENABLED", "false")

	cfg, err := Load("")
	require.NoError(t, err)

	if cfg.Server.Port != 9999 {
		t.Errorf("server.port = %d, want 9999 from env", cfg.Server.Port)
	}
	if cfg.Database.Host != "pg.internal" {
		t.Errorf("database.host = %s, want pg.internal from env", cfg.Database.Host)
	}
	if cfg.Audit.QueueSize != 64 {
		t.Errorf("audit.queue_size = %d, want 64 from env", cfg.Audit.QueueSize)
	}
	if cfg.Security.RateLimiting.Enabled {
		t.Error("rate_limiting.enabled = true, want false from env")
	}
}

func TestLoad_ConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	yaml := `
server:
  port: 8443
audit:
  max_body_bytes: 1024
logging:
  level: debug
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	if cfg.Server.Port != 8443 {
		t.Errorf("server.port = %d, want 8443 from file", cfg.Server.Port)
	}
	if cfg.Audit.MaxBodyBytes != 1024 {
		t.Errorf("audit.max_body_bytes = %d, want 1024 from file", cfg.Audit.MaxBodyBytes)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("logging.level = %s, want debug from file", cfg.Logging.Level)
	}
	// Untouched keys keep their defaults.
	if cfg.Database.Port != 5432 {
		t.Errorf("database.port = %d, want default 5432", cfg.Database.Port)
	}
}

func TestLoad_PasswordExpansion(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	yaml := `
database:
  password: ${TEST_DB_SECRET}
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o600))
	t.Setenv("TEST_DB_SECRET", "s3cret")

	cfg, err := Load(path)
	require.NoError(t, err)
	if cfg.Database.Password != "s3cret" {
		t.Errorf("database.password = %q, want expanded env value", cfg.Database.Password)
	}
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		cfg, err := Load("")
		require.NoError(t, err)
		return cfg
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid defaults", func(c *Config) {}, ""},
		{"bad port", func(c *Config) { c.Server.Port = 0 }, "invalid server port"},
		{"missing db host", func(c *Config) { c.Database.Host = "" }, "database.host"},
		{"redis enabled without addr", func(c *Config) {
			c.Redis.Enabled = true
			c.Redis.Addr = ""
		}, "redis.addr"},
		{"tls without cert", func(c *Config) { c.Security.TLS.Enabled = true }, "cert_file"},
		{"zero audit queue", func(c *Config) { c.Audit.QueueSize = 0 }, "queue_size"},
		{"zero body cap", func(c *Config) { c.Audit.MaxBodyBytes = 0 }, "max_body_bytes"},
		{"bad log level", func(c *Config) { c.Logging.Level = "verbose" }, "logging level"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() = %v, want error containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestGetDSN(t *testing.T) {
	db := DatabaseConfig{
		Host: "localhost", Port: 5432, User: "ems", Password: "pw",
		Name: "ems", SSLMode: "disable",
	}
	want := "host=localhost port=5432 user=ems password=pw dbname=ems sslmode=disable"
	if got := db.GetDSN(); got != want {
		t.Errorf("GetDSN() = %q, want %q", got, want)
	}
}

func TestGetAddress(t *testing.T) {
	s := ServerConfig{Host: "0.0.0.0", Port: 8080}
	if got := s.GetAddress(); got != "0.0.0.0:8080" {
		t.Errorf("GetAddress() = %q, want 0.0.0.0:8080", got)
	}
}
