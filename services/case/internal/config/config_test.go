package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("CONFIG_FILE", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8085", cfg.Service.HTTPPort)
	assert.Equal(t, 45*time.Second, cfg.Monitor.Cooldown)
	assert.Equal(t, 50, cfg.Monitor.LogCapacity)
	assert.Equal(t, 30*time.Second, cfg.Monitor.ScanInterval)
	assert.Equal(t, "Village Tunis", cfg.Monitor.Programme)
	assert.Equal(t, 8*time.Hour, cfg.Auth.TokenTTL)
	assert.True(t, cfg.Seed.Enabled)
	assert.Equal(t, "json", cfg.Logging.Format)
}

func TestLoadFileOverlayAndEnvPrecedence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "case.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
service:
  http_port: "9000"
monitor:
  cooldown: 1m
  programme: Village Akouda
seed:
  enabled: false
`), 0o600))

	t.Setenv("CONFIG_FILE", path)
	t.Setenv("HTTP_PORT", "9100")
	t.Setenv("MONITOR_LOG_CAPACITY", "20")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9100", cfg.Service.HTTPPort, "env overrides file")
	assert.Equal(t, time.Minute, cfg.Monitor.Cooldown)
	assert.Equal(t, "Village Akouda", cfg.Monitor.Programme)
	assert.Equal(t, 20, cfg.Monitor.LogCapacity)
	assert.False(t, cfg.Seed.Enabled)
	assert.Equal(t, "case", cfg.Service.Name, "defaults survive a partial file")
}

func TestLoadMissingFile(t *testing.T) {
	t.Setenv("CONFIG_FILE", filepath.Join(t.TempDir(), "absent.yaml"))
	_, err := Load()
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{name: "defaults", mutate: func(*Config) {}},
		{name: "missing port", mutate: func(c *Config) { c.Service.HTTPPort = "" }, wantErr: true},
		{name: "zero cooldown", mutate: func(c *Config) { c.Monitor.Cooldown = 0 }, wantErr: true},
		{name: "negative log capacity", mutate: func(c *Config) { c.Monitor.LogCapacity = -1 }, wantErr: true},
		{name: "production without secret", mutate: func(c *Config) { c.Service.Environment = "production" }, wantErr: true},
		{name: "production with secret", mutate: func(c *Config) {
			c.Service.Environment = "production"
			c.Auth.JWTSecret = "s3cret"
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
