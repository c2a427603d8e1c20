package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v2"
)

type Config struct {
	Server struct {
		Address         string        `yaml:"address"`
		BasePath        string        `yaml:"base_path"`
		ReadTimeout     time.Duration `yaml:"read_timeout"`
		WriteTimeout    time.Duration `yaml:"write_timeout"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
		// LegacyNotFoundErrors answers every failure with 404, as the first
		// deployment of the API did.
		LegacyNotFoundErrors bool     `yaml:"legacy_not_found_errors"`
		AllowedOrigins       []string `yaml:"allowed_origins"`
	} `yaml:"server"`

	LiveKit struct {
		Host            string        `yaml:"host"`
		APIKey          string        `yaml:"api_key"`
		APISecret       string        `yaml:"api_secret"`
		TokenTTL        time.Duration `yaml:"token_ttl"`
		ServiceTokenTTL time.Duration `yaml:"service_token_ttl"`
		RequestTimeout  time.Duration `yaml:"request_timeout"`
		Breaker         struct {
			FailureThreshold int           `yaml:"failure_threshold"`
			SuccessThreshold int           `yaml:"success_threshold"`
			OpenTimeout      time.Duration `yaml:"open_timeout"`
		} `yaml:"breaker"`
	} `yaml:"livekit"`

	SSO struct {
		ProviderURL     string        `yaml:"provider_url"`
		ProfilePath     string        `yaml:"profile_path"`
		CallbackBaseURL string        `yaml:"callback_base_url"`
		AppBaseURL      string        `yaml:"app_base_url"`
		APIKey          string        `yaml:"api_key"`
		FormHash        string        `yaml:"form_hash"`
		SharedSecret    string        `yaml:"shared_secret"`
		LegalEntity     string        `yaml:"legal_entity"`
		RequestTimeout  time.Duration `yaml:"request_timeout"`
	} `yaml:"sso"`

	Results struct {
		Driver string `yaml:"driver"` // sqlite (default), redis, or memory for tests
		DSN    string `yaml:"dsn"`    // sqlite file path or file: URI for driver=sqlite
	} `yaml:"results"`

	SelfTest struct {
		WarmUp            time.Duration `yaml:"warm_up"`
		ObservationWindow time.Duration `yaml:"observation_window"`
		SampleInterval    time.Duration `yaml:"sample_interval"`
	} `yaml:"self_test"`

	Monitoring struct {
		PrometheusEnabled bool `yaml:"prometheus_enabled"`
	} `yaml:"monitoring"`

	Tracing struct {
		Enabled     bool    `yaml:"enabled"`
		JaegerURL   string  `yaml:"jaeger_url"`
		Environment string  `yaml:"environment"`
		SampleRate  float64 `yaml:"sample_rate"`
	} `yaml:"tracing"`

	Logging struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"logging"`

	Redis struct {
		Enabled  bool   `yaml:"enabled"`
		Address  string `yaml:"address"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		PoolSize int    `yaml:"pool_size"`
		// ConnectAttempts bounds startup pings before falling back to memory.
		ConnectAttempts int `yaml:"connect_attempts"`
	} `yaml:"redis"`

	RateLimiting struct {
		Enabled bool `yaml:"enabled"`

		HTTP struct {
			RequestsPerSecond float64 `yaml:"requests_per_second"`
			Burst             int     `yaml:"burst"`
			MaxConcurrent     int     `yaml:"max_concurrent"` // global concurrent HTTP requests
		} `yaml:"http"`
	} `yaml:"rate_limiting"`
}

// Validate checks that configuration values are within acceptable ranges.
func (c *Config) Validate() error {
	// Server
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
	if c.Server.BasePath != "" && c.Server.BasePath[0] != '/' {
		return fmt.Errorf("server.base_path must start with '/'")
	}

	// LiveKit
	if c.LiveKit.Host == "" {
		return fmt.Errorf("livekit.host must not be empty")
	}
	if u, err := url.Parse(c.LiveKit.Host); err != nil || u.Host == "" {
		return fmt.Errorf("livekit.host must be an absolute URL")
	}
	if c.LiveKit.APIKey == "" {
		return fmt.Errorf("livekit.api_key must not be empty")
	}
	if c.LiveKit.APISecret == "" {
		return fmt.Errorf("livekit.api_secret must not be empty")
	}
	if c.LiveKit.TokenTTL <= 0 {
		return fmt.Errorf("livekit.token_ttl must be > 0")
	}
	if c.LiveKit.ServiceTokenTTL <= 0 {
		return fmt.Errorf("livekit.service_token_ttl must be > 0")
	}
	if c.LiveKit.RequestTimeout <= 0 {
		return fmt.Errorf("livekit.request_timeout must be > 0")
	}
	if c.LiveKit.Breaker.FailureThreshold <= 0 {
		return fmt.Errorf("livekit.breaker.failure_threshold must be > 0")
	}
	if c.LiveKit.Breaker.SuccessThreshold <= 0 {
		return fmt.Errorf("livekit.breaker.success_threshold must be > 0")
	}
	if c.LiveKit.Breaker.OpenTimeout <= 0 {
		return fmt.Errorf("livekit.breaker.open_timeout must be > 0")
	}

	// SSO
	if c.SSO.ProviderURL == "" {
		return fmt.Errorf("sso.provider_url must not be empty")
	}
	if c.SSO.AppBaseURL == "" {
		return fmt.Errorf("sso.app_base_url must not be empty")
	}
	if c.SSO.SharedSecret == "" {
		return fmt.Errorf("sso.shared_secret must not be empty")
	}
	if c.SSO.RequestTimeout <= 0 {
		return fmt.Errorf("sso.request_timeout must be > 0")
	}

	// Results
	switch c.Results.Driver {
	case "memory", "redis":
	case "sqlite":
		if c.Results.DSN == "" {
			return fmt.Errorf("results.dsn must not be empty when results.driver=sqlite")
		}
	default:
		return fmt.Errorf("results.driver must be one of memory, redis, sqlite (got %q)", c.Results.Driver)
	}
	if c.Results.Driver == "redis" && !c.Redis.Enabled {
		return fmt.Errorf("redis.enabled must be true when results.driver=redis")
	}

	// Self test
	if c.SelfTest.WarmUp <= 0 {
		return fmt.Errorf("self_test.warm_up must be > 0")
	}
	if c.SelfTest.SampleInterval <= 0 {
		return fmt.Errorf("self_test.sample_interval must be > 0")
	}
	if c.SelfTest.ObservationWindow < c.SelfTest.SampleInterval {
		return fmt.Errorf("self_test.observation_window must be >= self_test.sample_interval")
	}

	// Tracing
	if c.Tracing.Enabled {
		if c.Tracing.JaegerURL == "" {
			return fmt.Errorf("tracing.jaeger_url must not be empty when tracing.enabled=true")
		}
		if c.Tracing.SampleRate < 0 || c.Tracing.SampleRate > 1 {
			return fmt.Errorf("tracing.sample_rate must be within [0, 1]")
		}
	}

	// Logging
	if c.Logging.Level == "" {
		return fmt.Errorf("logging.level must not be empty")
	}

	// Redis
	if c.Redis.Enabled {
		if c.Redis.Address == "" {
			return fmt.Errorf("redis.address must not be empty when redis.enabled=true")
		}
		if c.Redis.PoolSize <= 0 {
			return fmt.Errorf("redis.pool_size must be > 0 when redis.enabled=true")
		}
		if c.Redis.ConnectAttempts <= 0 {
			return fmt.Errorf("redis.connect_attempts must be > 0 when redis.enabled=true")
		}
	}

	// Rate limiting
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
	}

	return nil
}

// Load reads configuration from YAML file, applies defaults and env overrides.
// A .env file in the working directory is loaded first; variables already
// present in the process environment win over it.
func Load(configPath string) (*Config, error) {
	_ = godotenv.Load()

	cfg := DefaultConfig()

	if _, err := os.Stat(configPath); err == nil {
		data, err := os.ReadFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", configPath, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to unmarshal config yaml: %w", err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to stat config file %s: %w", configPath, err)
	}

	cfg.applyEnvOverrides()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// DefaultConfig returns configuration with development defaults.
func DefaultConfig() *Config {
	cfg := &Config{}

	cfg.Server.Address = ":5000"
	cfg.Server.BasePath = "/livekit"
	cfg.Server.ReadTimeout = 30 * time.Second
	cfg.Server.WriteTimeout = 30 * time.Second
	cfg.Server.ShutdownTimeout = 30 * time.Second
	cfg.Server.AllowedOrigins = []string{"*"}

	cfg.LiveKit.Host = "ws://localhost:7880"
	cfg.LiveKit.APIKey = "devkey"
	cfg.LiveKit.APISecret = "secret"
	cfg.LiveKit.TokenTTL = 6 * time.Hour
	cfg.LiveKit.ServiceTokenTTL = 10 * time.Minute
	cfg.LiveKit.RequestTimeout = 10 * time.Second
	cfg.LiveKit.Breaker.FailureThreshold = 5
	cfg.LiveKit.Breaker.SuccessThreshold = 2
	cfg.LiveKit.Breaker.OpenTimeout = 30 * time.Second

	cfg.SSO.ProviderURL = "http://localhost:8090"
	cfg.SSO.ProfilePath = "/api/profile"
	cfg.SSO.CallbackBaseURL = "http://localhost:5000"
	cfg.SSO.AppBaseURL = "http://localhost:3000"
	cfg.SSO.SharedSecret = "change-me-in-production"
	cfg.SSO.LegalEntity = "IFINC"
	cfg.SSO.RequestTimeout = 10 * time.Second

	cfg.Results.Driver = "sqlite"
	cfg.Results.DSN = "results.db"

	cfg.SelfTest.WarmUp = 15 * time.Second
	cfg.SelfTest.ObservationWindow = 20 * time.Second
	cfg.SelfTest.SampleInterval = time.Second

	cfg.Monitoring.PrometheusEnabled = true

	cfg.Tracing.Enabled = false
	cfg.Tracing.JaegerURL = "http://localhost:14268/api/traces"
	cfg.Tracing.Environment = "development"
	cfg.Tracing.SampleRate = 1.0

	cfg.Logging.Level = "info"
	cfg.Logging.Format = "json"

	cfg.Redis.Enabled = false
	cfg.Redis.Address = "localhost:6379"
	cfg.Redis.DB = 0
	cfg.Redis.PoolSize = 10
	cfg.Redis.ConnectAttempts = 3

	// Rate limiting defaults (disabled by default)
	cfg.RateLimiting.Enabled = false
	cfg.RateLimiting.HTTP.RequestsPerSecond = 50
	cfg.RateLimiting.HTTP.Burst = 100
	cfg.RateLimiting.HTTP.MaxConcurrent = 0

	return cfg
}

func (c *Config) applyEnvOverrides() {
	if addr := os.Getenv("LIVEGRID_SERVER_ADDRESS"); addr != "" {
		c.Server.Address = addr
	}
	if level := os.Getenv("LIVEGRID_LOG_LEVEL"); level != "" {
		c.Logging.Level = level
	}
	if v := os.Getenv("LIVEGRID_LEGACY_ERRORS"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.Server.LegacyNotFoundErrors = b
		}
	}

	// Unprefixed names kept for existing deployments.
	if key := os.Getenv("API_KEY"); key != "" {
		c.LiveKit.APIKey = key
	}
	if secret := os.Getenv("API_SECRET"); secret != "" {
		c.LiveKit.APISecret = secret
	}
	if host := os.Getenv("WEBRTC_HOST"); host != "" {
		c.LiveKit.Host = host
	}

	if v := os.Getenv("SSO_URL"); v != "" {
		c.SSO.ProviderURL = v
	}
	if v := os.Getenv("SSO_SECRET"); v != "" {
		c.SSO.SharedSecret = v
	}
	if v := os.Getenv("SSO_API_KEY"); v != "" {
		c.SSO.APIKey = v
	}
	if v := os.Getenv("SSO_FORM_HASH"); v != "" {
		c.SSO.FormHash = v
	}
	if v := os.Getenv("SSO_CALLBACK_URL"); v != "" {
		c.SSO.CallbackBaseURL = v
	}
	if v := os.Getenv("APP_BASE_URL"); v != "" {
		c.SSO.AppBaseURL = v
	}

	// DATABASE_URL selects the sqlite store unless RESULTS_DRIVER says otherwise.
	if dsn := os.Getenv("DATABASE_URL"); dsn != "" {
		c.Results.DSN = dsn
		c.Results.Driver = "sqlite"
	}
	if driver := os.Getenv("RESULTS_DRIVER"); driver != "" {
		c.Results.Driver = driver
	}
	if addr := os.Getenv("REDIS_ADDRESS"); addr != "" {
		c.Redis.Address = addr
		c.Redis.Enabled = true
	}
}
