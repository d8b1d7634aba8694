package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// validBaseConfig returns a config with every optional section switched on.
func validBaseConfig() *Config {
	cfg := DefaultConfig()
	cfg.RateLimiting.Enabled = true
	cfg.RateLimiting.HTTP.RequestsPerSecond = 10
	cfg.RateLimiting.HTTP.Burst = 20
	cfg.RateLimiting.HTTP.MaxConcurrent = 5
	cfg.RateLimiting.WebSocket.ConnectionsPerMinute = 60
	cfg.RateLimiting.WebSocket.MaxConcurrent = 10
	cfg.RateLimiting.WebSocket.MaxMessageSizeBytes = 65536
	cfg.Backend.BaseURL = "https://backend.example.com"
	cfg.Tracing.Enabled = true
	return cfg
}

func TestDefaultConfig_IsValid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 20*time.Second, cfg.Call.JoinTimeout)
	assert.Equal(t, 60, cfg.Call.CredentialTTLMinutes)
	assert.True(t, cfg.Call.FuzzyParticipantMatch)
	assert.False(t, cfg.IsProduction())
}

func TestValidate_RateLimitingDisabled_AllowsZeroValues(t *testing.T) {
	cfg := DefaultConfig()
	cfg.RateLimiting.Enabled = false
	cfg.RateLimiting.HTTP.RequestsPerSecond = 0
	cfg.RateLimiting.HTTP.Burst = 0
	cfg.RateLimiting.WebSocket.ConnectionsPerMinute = 0

	assert.NoError(t, cfg.Validate())
}

func TestValidate_InvalidValues(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"unknown environment", func(c *Config) { c.Environment = "staging" }},
		{"empty server address", func(c *Config) { c.Server.Address = "" }},
		{"unknown log format", func(c *Config) { c.Logging.Format = "xml" }},
		{"backend retries", func(c *Config) { c.Backend.MaxRetries = 0 }},
		{"backend timeout", func(c *Config) { c.Backend.Timeout = 0 }},
		{"port range half set", func(c *Config) { c.Transport.PortRange.Min = 10000 }},
		{"port range inverted", func(c *Config) {
			c.Transport.PortRange.Min = 20000
			c.Transport.PortRange.Max = 10000
		}},
		{"join timeout", func(c *Config) { c.Call.JoinTimeout = 0 }},
		{"credential ttl above a day", func(c *Config) { c.Call.CredentialTTLMinutes = 1441 }},
		{"redis without address", func(c *Config) {
			c.Redis.Enabled = true
			c.Redis.Address = ""
		}},
		{"empty jwt secret", func(c *Config) { c.Auth.JWTSecret = "" }},
		{"sampling rate", func(c *Config) { c.Tracing.SamplingRate = 1.5 }},
		{"http rps", func(c *Config) { c.RateLimiting.HTTP.RequestsPerSecond = 0 }},
		{"http burst", func(c *Config) { c.RateLimiting.HTTP.Burst = 0 }},
		{"http max concurrent", func(c *Config) { c.RateLimiting.HTTP.MaxConcurrent = -1 }},
		{"ws connections per minute", func(c *Config) { c.RateLimiting.WebSocket.ConnectionsPerMinute = 0 }},
		{"ws max message size", func(c *Config) { c.RateLimiting.WebSocket.MaxMessageSizeBytes = -1 }},
		{"cache ttl", func(c *Config) { c.Cache.TTL = 0 }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := validBaseConfig()
			require.NoError(t, cfg.Validate())
			tc.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestValidate_ProductionRequiresBackendAndSecret(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Environment = EnvProduction
	assert.ErrorContains(t, cfg.Validate(), "backend.base_url")

	cfg.Backend.BaseURL = "https://backend.example.com"
	assert.ErrorContains(t, cfg.Validate(), "jwt_secret")

	cfg.Auth.JWTSecret = "s3cret"
	assert.NoError(t, cfg.Validate())
}

func TestLoad_MissingFileFallsBackToDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig().Server.Address, cfg.Server.Address)
}

func TestLoad_FileAndEnvOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := `
server:
  address: ":9000"
call:
  join_timeout: 5s
  credential_ttl_minutes: 30
  fuzzy_participant_match: true
logging:
  level: debug
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o600))

	t.Setenv("INTERVIEWROOM_LOG_LEVEL", "warn")
	t.Setenv("INTERVIEWROOM_FUZZY_PARTICIPANT_MATCH", "false")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":9000", cfg.Server.Address)
	assert.Equal(t, 5*time.Second, cfg.Call.JoinTimeout)
	assert.Equal(t, 30, cfg.Call.CredentialTTLMinutes)
	assert.Equal(t, "warn", cfg.Logging.Level)
	assert.False(t, cfg.Call.FuzzyParticipantMatch)
	// untouched sections keep defaults
	assert.Equal(t, 64, cfg.Call.InboxSize)
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server: [unterminated"), 0o600))

	_, err := Load(path)
	assert.ErrorContains(t, err, "unmarshal")
}

func TestLoad_RedisAddressEnvEnablesRedis(t *testing.T) {
	t.Setenv("INTERVIEWROOM_REDIS_ADDRESS", "redis:6379")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.True(t, cfg.Redis.Enabled)
	assert.Equal(t, "redis:6379", cfg.Redis.Address)
}
