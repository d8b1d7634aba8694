package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v2"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

type ICEServer struct {
	URLs       []string `yaml:"urls"`
	Username   string   `yaml:"username,omitempty"`
	Credential string   `yaml:"credential,omitempty"`
}

type Config struct {
	Environment string `yaml:"environment"`

	Server struct {
		Address         string        `yaml:"address"`
		ReadTimeout     time.Duration `yaml:"read_timeout"`
		WriteTimeout    time.Duration `yaml:"write_timeout"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
		AllowedOrigins  []string      `yaml:"allowed_origins"`
	} `yaml:"server"`

	Logging struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
		File   string `yaml:"file"`
	} `yaml:"logging"`

	Backend struct {
		// BaseURL empty means meetings are served from SeedFile in memory.
		BaseURL         string        `yaml:"base_url"`
		APIToken        string        `yaml:"api_token"`
		Timeout         time.Duration `yaml:"timeout"`
		SeedFile        string        `yaml:"seed_file"`
		MaxRetries      int           `yaml:"max_retries"`
		BreakerFailures int           `yaml:"breaker_failures"`
		BreakerTimeout  time.Duration `yaml:"breaker_timeout"`
	} `yaml:"backend"`

	Transport struct {
		SignalURL  string      `yaml:"signal_url"`
		AppID      string      `yaml:"app_id"`
		ICEServers []ICEServer `yaml:"ice_servers"`
		PortRange  struct {
			Min uint16 `yaml:"min"`
			Max uint16 `yaml:"max"`
		} `yaml:"port_range"`
		AudioFile string `yaml:"audio_file"`
		VideoFile string `yaml:"video_file"`
	} `yaml:"transport"`

	Call struct {
		JoinTimeout            time.Duration `yaml:"join_timeout"`
		OperationTimeout       time.Duration `yaml:"operation_timeout"`
		NotifyTimeout          time.Duration `yaml:"notify_timeout"`
		CredentialTTLMinutes   int           `yaml:"credential_ttl_minutes"`
		InboxSize              int           `yaml:"inbox_size"`
		FuzzyParticipantMatch  bool          `yaml:"fuzzy_participant_match"`
		RenderRetryAttempts    int           `yaml:"render_retry_attempts"`
		RenderRetryDelay       time.Duration `yaml:"render_retry_delay"`
		NotifyRetryAttempts    int           `yaml:"notify_retry_attempts"`
		NotifyRetryDelay       time.Duration `yaml:"notify_retry_delay"`
		// AutoMountRenderTargets attaches remote tracks without waiting for the UI to mount a view.
		AutoMountRenderTargets bool          `yaml:"auto_mount_render_targets"`
	} `yaml:"call"`

	Display struct {
		// Language is a BCP 47 tag for time-remaining and duration strings.
		Language string `yaml:"language"`
		TimeZone string `yaml:"time_zone"`
	} `yaml:"display"`

	Redis struct {
		Enabled  bool   `yaml:"enabled"`
		Address  string `yaml:"address"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		PoolSize int    `yaml:"pool_size"`
		// StatusChannel is the pub/sub channel call status changes are published to.
		StatusChannel string `yaml:"status_channel"`
	} `yaml:"redis"`

	Auth struct {
		JWTSecret   string        `yaml:"jwt_secret"`
		Issuer      string        `yaml:"issuer"`
		IdentityTTL time.Duration `yaml:"identity_ttl"`
		// CredentialSecret signs development call credentials.
		CredentialSecret string        `yaml:"credential_secret"`
		CredentialTTL    time.Duration `yaml:"credential_ttl"`
	} `yaml:"auth"`

	Monitoring struct {
		PrometheusEnabled bool `yaml:"prometheus_enabled"`
	} `yaml:"monitoring"`

	Tracing struct {
		Enabled        bool    `yaml:"enabled"`
		JaegerEndpoint string  `yaml:"jaeger_endpoint"`
		SamplingRate   float64 `yaml:"sampling_rate"`
	} `yaml:"tracing"`

	RateLimiting struct {
		Enabled bool `yaml:"enabled"`

		HTTP struct {
			RequestsPerSecond float64 `yaml:"requests_per_second"`
			Burst             int     `yaml:"burst"`
			MaxConcurrent     int     `yaml:"max_concurrent"`
		} `yaml:"http"`

		WebSocket struct {
			ConnectionsPerMinute int   `yaml:"connections_per_minute"`
			MaxConcurrent        int   `yaml:"max_concurrent_connections"`
			MaxMessageSizeBytes  int64 `yaml:"max_message_size_bytes"`
		} `yaml:"websocket"`
	} `yaml:"rate_limiting"`

	Cache struct {
		Enabled bool          `yaml:"enabled"`
		TTL     time.Duration `yaml:"ttl"`
	} `yaml:"cache"`
}

func (c *Config) IsProduction() bool {
	return c.Environment == EnvProduction
}

// Validate checks that configuration values are within acceptable ranges.
func (c *Config) Validate() error {
	switch c.Environment {
	case EnvDevelopment, EnvProduction:
	default:
		return fmt.Errorf("environment must be %q or %q, got %q", EnvDevelopment, EnvProduction, c.Environment)
	}

	if c.Server.Address == "" {
		return fmt.Errorf("server.address must not be empty")
	}
	if c.Server.ReadTimeout <= 0 {
		return fmt.Errorf("server.read_timeout must be > 0")
	}
	if c.Server.WriteTimeout <= 0 {
		return fmt.Errorf("server.write_timeout must be > 0")
	}
	if c.Server.ShutdownTimeout <= 0 {
		return fmt.Errorf("server.shutdown_timeout must be > 0")
	}

	if c.Logging.Level == "" {
		return fmt.Errorf("logging.level must not be empty")
	}
	switch c.Logging.Format {
	case "json", "console":
	default:
		return fmt.Errorf("logging.format must be json or console")
	}

	if c.Backend.BaseURL == "" && c.IsProduction() {
		return fmt.Errorf("backend.base_url must be set in production")
	}
	if c.Backend.BaseURL != "" {
		if c.Backend.Timeout <= 0 {
			return fmt.Errorf("backend.timeout must be > 0")
		}
		if c.Backend.MaxRetries < 1 {
			return fmt.Errorf("backend.max_retries must be >= 1")
		}
		if c.Backend.BreakerFailures <= 0 {
			return fmt.Errorf("backend.breaker_failures must be > 0")
		}
	}

	if c.Transport.PortRange.Min > 0 || c.Transport.PortRange.Max > 0 {
		if c.Transport.PortRange.Min == 0 || c.Transport.PortRange.Max == 0 {
			return fmt.Errorf("transport.port_range.min and max must both be set when one is set")
		}
		if c.Transport.PortRange.Min >= c.Transport.PortRange.Max {
			return fmt.Errorf("transport.port_range.min must be < max")
		}
	}

	if c.Call.JoinTimeout <= 0 {
		return fmt.Errorf("call.join_timeout must be > 0")
	}
	if c.Call.CredentialTTLMinutes < 0 || c.Call.CredentialTTLMinutes > 24*60 {
		return fmt.Errorf("call.credential_ttl_minutes must be between 0 and 1440")
	}
	if c.Call.InboxSize < 0 {
		return fmt.Errorf("call.inbox_size must be >= 0")
	}
	if c.Call.RenderRetryAttempts < 0 || c.Call.NotifyRetryAttempts < 0 {
		return fmt.Errorf("call retry attempts must be >= 0")
	}

	if c.Redis.Enabled {
		if c.Redis.Address == "" {
			return fmt.Errorf("redis.address must not be empty when redis.enabled=true")
		}
		if c.Redis.PoolSize <= 0 {
			return fmt.Errorf("redis.pool_size must be > 0 when redis.enabled=true")
		}
	}

	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("auth.jwt_secret must not be empty")
	}
	if c.IsProduction() && c.Auth.JWTSecret == defaultJWTSecret {
		return fmt.Errorf("auth.jwt_secret must be changed in production")
	}
	if c.Auth.IdentityTTL <= 0 {
		return fmt.Errorf("auth.identity_ttl must be > 0")
	}
	if c.Auth.CredentialTTL <= 0 {
		return fmt.Errorf("auth.credential_ttl must be > 0")
	}

	if c.Tracing.Enabled {
		if c.Tracing.JaegerEndpoint == "" {
			return fmt.Errorf("tracing.jaeger_endpoint must not be empty when tracing is enabled")
		}
		if c.Tracing.SamplingRate < 0 || c.Tracing.SamplingRate > 1 {
			return fmt.Errorf("tracing.sampling_rate must be between 0 and 1")
		}
	}

	if c.RateLimiting.Enabled {
		if c.RateLimiting.HTTP.RequestsPerSecond <= 0 {
			return fmt.Errorf("rate_limiting.http.requests_per_second must be > 0 when rate limiting is enabled")
		}
		if c.RateLimiting.HTTP.Burst <= 0 {
			return fmt.Errorf("rate_limiting.http.burst must be > 0 when rate limiting is enabled")
		}
		if c.RateLimiting.HTTP.MaxConcurrent < 0 {
			return fmt.Errorf("rate_limiting.http.max_concurrent must be >= 0 when rate limiting is enabled")
		}
		if c.RateLimiting.WebSocket.ConnectionsPerMinute <= 0 {
			return fmt.Errorf("rate_limiting.websocket.connections_per_minute must be > 0 when rate limiting is enabled")
		}
		if c.RateLimiting.WebSocket.MaxConcurrent < 0 {
			return fmt.Errorf("rate_limiting.websocket.max_concurrent_connections must be >= 0 when rate limiting is enabled")
		}
		if c.RateLimiting.WebSocket.MaxMessageSizeBytes < 0 {
			return fmt.Errorf("rate_limiting.websocket.max_message_size_bytes must be >= 0 when rate limiting is enabled")
		}
	}

	if c.Cache.Enabled && c.Cache.TTL <= 0 {
		return fmt.Errorf("cache.ttl must be > 0 when cache is enabled")
	}

	return nil
}

// Load reads configuration from YAML file, applies defaults and env overrides.
func Load(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	if configPath != "" {
		data, err := os.ReadFile(configPath)
		switch {
		case os.IsNotExist(err):
			// defaults only
		case err != nil:
			return nil, fmt.Errorf("failed to read config file %s: %w", configPath, err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to unmarshal config yaml: %w", err)
			}
		}
	}

	cfg.applyEnvOverrides()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

const defaultJWTSecret = "change-me-in-production"

// DefaultConfig returns configuration with sane defaults.
func DefaultConfig() *Config {
	cfg := &Config{}

	cfg.Environment = EnvDevelopment

	cfg.Server.Address = ":8080"
	cfg.Server.ReadTimeout = 30 * time.Second
	cfg.Server.WriteTimeout = 30 * time.Second
	cfg.Server.ShutdownTimeout = 30 * time.Second
	cfg.Server.AllowedOrigins = []string{"*"}

	cfg.Logging.Level = "info"
	cfg.Logging.Format = "json"

	cfg.Backend.Timeout = 10 * time.Second
	cfg.Backend.SeedFile = "configs/meetings.yaml"
	cfg.Backend.MaxRetries = 3
	cfg.Backend.BreakerFailures = 5
	cfg.Backend.BreakerTimeout = 30 * time.Second

	cfg.Transport.SignalURL = "ws://localhost:8081/ws"
	cfg.Transport.AppID = "interviewroom-dev"
	cfg.Transport.ICEServers = []ICEServer{{URLs: []string{"stun:stun.l.google.com:19302"}}}

	cfg.Call.JoinTimeout = 20 * time.Second
	cfg.Call.OperationTimeout = 10 * time.Second
	cfg.Call.NotifyTimeout = 15 * time.Second
	cfg.Call.CredentialTTLMinutes = 60
	cfg.Call.InboxSize = 64
	cfg.Call.FuzzyParticipantMatch = true
	cfg.Call.RenderRetryAttempts = 10
	cfg.Call.RenderRetryDelay = 50 * time.Millisecond
	cfg.Call.NotifyRetryAttempts = 3
	cfg.Call.NotifyRetryDelay = 200 * time.Millisecond
	cfg.Call.AutoMountRenderTargets = true

	cfg.Display.Language = "en"

	cfg.Redis.Enabled = false
	cfg.Redis.Address = "localhost:6379"
	cfg.Redis.DB = 0
	cfg.Redis.PoolSize = 10
	cfg.Redis.StatusChannel = "interviewroom:call-status"

	cfg.Auth.JWTSecret = defaultJWTSecret
	cfg.Auth.Issuer = "interviewroom"
	cfg.Auth.IdentityTTL = 24 * time.Hour
	cfg.Auth.CredentialSecret = defaultJWTSecret
	cfg.Auth.CredentialTTL = 60 * time.Minute

	cfg.Monitoring.PrometheusEnabled = true

	cfg.Tracing.Enabled = false
	cfg.Tracing.JaegerEndpoint = "http://localhost:14268/api/traces"
	cfg.Tracing.SamplingRate = 1.0

	// Rate limiting defaults (disabled by default)
	cfg.RateLimiting.Enabled = false
	cfg.RateLimiting.HTTP.RequestsPerSecond = 50
	cfg.RateLimiting.HTTP.Burst = 100
	cfg.RateLimiting.HTTP.MaxConcurrent = 0
	cfg.RateLimiting.WebSocket.ConnectionsPerMinute = 60
	cfg.RateLimiting.WebSocket.MaxConcurrent = 0
	cfg.RateLimiting.WebSocket.MaxMessageSizeBytes = 64 * 1024

	cfg.Cache.Enabled = true
	cfg.Cache.TTL = 30 * time.Second

	return cfg
}

func (c *Config) applyEnvOverrides() {
	if env := os.Getenv("INTERVIEWROOM_ENV"); env != "" {
		c.Environment = env
	}
	if addr := os.Getenv("INTERVIEWROOM_SERVER_ADDRESS"); addr != "" {
		c.Server.Address = addr
	}
	if level := os.Getenv("INTERVIEWROOM_LOG_LEVEL"); level != "" {
		c.Logging.Level = level
	}
	if file := os.Getenv("INTERVIEWROOM_LOG_FILE"); file != "" {
		c.Logging.File = file
	}
	if url := os.Getenv("INTERVIEWROOM_BACKEND_URL"); url != "" {
		c.Backend.BaseURL = url
	}
	if token := os.Getenv("INTERVIEWROOM_BACKEND_TOKEN"); token != "" {
		c.Backend.APIToken = token
	}
	if url := os.Getenv("INTERVIEWROOM_SIGNAL_URL"); url != "" {
		c.Transport.SignalURL = url
	}
	if appID := os.Getenv("INTERVIEWROOM_APP_ID"); appID != "" {
		c.Transport.AppID = appID
	}
	if addr := os.Getenv("INTERVIEWROOM_REDIS_ADDRESS"); addr != "" {
		c.Redis.Address = addr
		c.Redis.Enabled = true
	}
	if secret := os.Getenv("INTERVIEWROOM_JWT_SECRET"); secret != "" {
		c.Auth.JWTSecret = secret
	}
	if secret := os.Getenv("INTERVIEWROOM_CREDENTIAL_SECRET"); secret != "" {
		c.Auth.CredentialSecret = secret
	}
	if tz := os.Getenv("INTERVIEWROOM_TIME_ZONE"); tz != "" {
		c.Display.TimeZone = tz
	}
	if v := os.Getenv("INTERVIEWROOM_FUZZY_PARTICIPANT_MATCH"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.Call.FuzzyParticipantMatch = b
		}
	}
}
