// Package config provides configuration management for the case service.
package config

import (
	"fmt"
	"time"

	pkgconfig "github.com/sos-echo/platform/pkg/config"
)

// Config holds all configuration for the case service.
type Config struct {
	Service ServiceConfig `yaml:"service"`
	Auth    AuthConfig    `yaml:"auth"`
	Monitor MonitorConfig `yaml:"monitor"`
	Seed    SeedConfig    `yaml:"seed"`
	CORS    CORSConfig    `yaml:"cors"`
	Logging LoggingConfig `yaml:"logging"`
}

// ServiceConfig holds service-level configuration.
type ServiceConfig struct {
	Name        string `yaml:"name"`
	HTTPPort    string `yaml:"http_port"`
	MetricsPort string `yaml:"metrics_port"`
	Environment string `yaml:"environment"`
	Debug       bool   `yaml:"debug"`

	// Timeouts
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// AuthConfig holds session token settings.
type AuthConfig struct {
	JWTSecret string        `yaml:"jwt_secret"`
	Issuer    string        `yaml:"issuer"`
	TokenTTL  time.Duration `yaml:"token_ttl"`
}

// MonitorConfig holds vision gateway and capture settings.
type MonitorConfig struct {
	GeminiAPIKey   string        `yaml:"gemini_api_key"`
	GeminiEndpoint string        `yaml:"gemini_endpoint"`
	GeminiModel    string        `yaml:"gemini_model"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
	Cooldown       time.Duration `yaml:"cooldown"`
	LogCapacity    int           `yaml:"log_capacity"`
	ScanInterval   time.Duration `yaml:"scan_interval"`
	SnapshotURL    string        `yaml:"snapshot_url"`
	Programme      string        `yaml:"programme"`
}

// SeedConfig controls demo data.
type SeedConfig struct {
	Enabled bool `yaml:"enabled"`
	Count   int  `yaml:"count"`
}

// CORSConfig holds CORS configuration.
type CORSConfig struct {
	AllowedOrigins   []string `yaml:"allowed_origins"`
	AllowedMethods   []string `yaml:"allowed_methods"`
	AllowedHeaders   []string `yaml:"allowed_headers"`
	AllowCredentials bool     `yaml:"allow_credentials"`
	MaxAge           int      `yaml:"max_age"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // json, text
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Service: ServiceConfig{
			Name:            "case",
			HTTPPort:        "8085",
			MetricsPort:     "9085",
			Environment:     "development",
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    60 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 30 * time.Second,
		},
		Auth: AuthConfig{
			Issuer:   "sos-echo",
			TokenTTL: 8 * time.Hour,
		},
		Monitor: MonitorConfig{
			GeminiEndpoint: "https://generativelanguage.googleapis.com/v1beta",
			GeminiModel:    "gemini-2.0-flash",
			RequestTimeout: 30 * time.Second,
			Cooldown:       45 * time.Second,
			LogCapacity:    50,
			ScanInterval:   30 * time.Second,
			Programme:      "Village Tunis",
		},
		Seed: SeedConfig{
			Enabled: true,
			Count:   50,
		},
		CORS: CORSConfig{
			AllowedOrigins:   []string{"*"},
			AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "If-Match", "X-Request-ID"},
			AllowCredentials: true,
			MaxAge:           86400,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load builds the configuration from defaults, the optional CONFIG_FILE YAML
// overlay and environment variables, in that order of precedence.
func Load() (*Config, error) {
	cfg := Default()

	if err := pkgconfig.LoadFile(pkgconfig.String("CONFIG_FILE", ""), cfg); err != nil {
		return nil, err
	}

	cfg.Service = ServiceConfig{
		Name:            pkgconfig.String("SERVICE_NAME", cfg.Service.Name),
		HTTPPort:        pkgconfig.String("HTTP_PORT", cfg.Service.HTTPPort),
		MetricsPort:     pkgconfig.String("METRICS_PORT", cfg.Service.MetricsPort),
		Environment:     pkgconfig.String("ENVIRONMENT", cfg.Service.Environment),
		Debug:           pkgconfig.Bool("DEBUG", cfg.Service.Debug),
		ReadTimeout:     pkgconfig.Duration("READ_TIMEOUT", cfg.Service.ReadTimeout),
		WriteTimeout:    pkgconfig.Duration("WRITE_TIMEOUT", cfg.Service.WriteTimeout),
		IdleTimeout:     pkgconfig.Duration("IDLE_TIMEOUT", cfg.Service.IdleTimeout),
		ShutdownTimeout: pkgconfig.Duration("SHUTDOWN_TIMEOUT", cfg.Service.ShutdownTimeout),
	}
	cfg.Auth = AuthConfig{
		JWTSecret: pkgconfig.String("JWT_SECRET", cfg.Auth.JWTSecret),
		Issuer:    pkgconfig.String("JWT_ISSUER", cfg.Auth.Issuer),
		TokenTTL:  pkgconfig.Duration("JWT_TOKEN_TTL", cfg.Auth.TokenTTL),
	}
	cfg.Monitor = MonitorConfig{
		GeminiAPIKey:   pkgconfig.String("GEMINI_API_KEY", cfg.Monitor.GeminiAPIKey),
		GeminiEndpoint: pkgconfig.String("GEMINI_ENDPOINT", cfg.Monitor.GeminiEndpoint),
		GeminiModel:    pkgconfig.String("GEMINI_MODEL", cfg.Monitor.GeminiModel),
		RequestTimeout: pkgconfig.Duration("GEMINI_TIMEOUT", cfg.Monitor.RequestTimeout),
		Cooldown:       pkgconfig.Duration("MONITOR_COOLDOWN", cfg.Monitor.Cooldown),
		LogCapacity:    pkgconfig.Int("MONITOR_LOG_CAPACITY", cfg.Monitor.LogCapacity),
		ScanInterval:   pkgconfig.Duration("MONITOR_SCAN_INTERVAL", cfg.Monitor.ScanInterval),
		SnapshotURL:    pkgconfig.String("MONITOR_SNAPSHOT_URL", cfg.Monitor.SnapshotURL),
		Programme:      pkgconfig.String("MONITOR_PROGRAMME", cfg.Monitor.Programme),
	}
	cfg.Seed = SeedConfig{
		Enabled: pkgconfig.Bool("SEED_ENABLED", cfg.Seed.Enabled),
		Count:   pkgconfig.Int("SEED_COUNT", cfg.Seed.Count),
	}
	cfg.CORS = CORSConfig{
		AllowedOrigins:   pkgconfig.Slice("CORS_ALLOWED_ORIGINS", cfg.CORS.AllowedOrigins),
		AllowedMethods:   pkgconfig.Slice("CORS_ALLOWED_METHODS", cfg.CORS.AllowedMethods),
		AllowedHeaders:   pkgconfig.Slice("CORS_ALLOWED_HEADERS", cfg.CORS.AllowedHeaders),
		AllowCredentials: pkgconfig.Bool("CORS_ALLOW_CREDENTIALS", cfg.CORS.AllowCredentials),
		MaxAge:           pkgconfig.Int("CORS_MAX_AGE", cfg.CORS.MaxAge),
	}
	cfg.Logging = LoggingConfig{
		Level:  pkgconfig.String("LOG_LEVEL", cfg.Logging.Level),
		Format: pkgconfig.String("LOG_FORMAT", cfg.Logging.Format),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Service.HTTPPort == "" {
		return fmt.Errorf("HTTP port is required")
	}

	if c.Monitor.Cooldown <= 0 {
		return fmt.Errorf("monitor cool-down must be positive")
	}

	if c.Monitor.LogCapacity <= 0 {
		return fmt.Errorf("monitor log capacity must be positive")
	}

	if c.Auth.JWTSecret == "" && c.IsProduction() {
		return fmt.Errorf("JWT secret is required in production")
	}

	return nil
}

// IsProduction reports whether the service runs in production.
func (c *Config) IsProduction() bool {
	return c.Service.Environment == "production"
}
