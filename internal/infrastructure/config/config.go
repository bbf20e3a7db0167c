// Package config provides centralized configuration management
// using Viper for configuration loading and validation
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/alchemorsel/recipeview/internal/application/recipeview"
	"github.com/fsnotify/fsnotify"
	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	App        AppConfig        `mapstructure:"app"`
	Server     ServerConfig     `mapstructure:"server"`
	API        APIConfig        `mapstructure:"api"`
	Session    SessionConfig    `mapstructure:"session"`
	Redis      RedisConfig      `mapstructure:"redis"`
	RateLimit  RateLimitConfig  `mapstructure:"rate_limit"`
	Monitoring MonitoringConfig `mapstructure:"monitoring"`
	View       ViewConfig       `mapstructure:"view"`
}

// AppConfig contains application-level configuration
type AppConfig struct {
	Name        string `mapstructure:"name" validate:"required"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment" validate:"oneof=development staging production test"`
	Debug       bool   `mapstructure:"debug"`
	LogLevel    string `mapstructure:"log_level" validate:"oneof=debug info warn error"`
	LogFormat   string `mapstructure:"log_format" validate:"oneof=json console"`
}

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Host              string        `mapstructure:"host"`
	Port              int           `mapstructure:"port" validate:"min=1,max=65535"`
	BaseURL           string        `mapstructure:"base_url"`
	ReadTimeout       time.Duration `mapstructure:"read_timeout"`
	WriteTimeout      time.Duration `mapstructure:"write_timeout"`
	IdleTimeout       time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout   time.Duration `mapstructure:"shutdown_timeout"`
	EnableCompression bool          `mapstructure:"enable_compression"`
}

// APIConfig points the frontend at the recipe API backend
type APIConfig struct {
	BaseURL string        `mapstructure:"base_url" validate:"required,url"`
	Timeout time.Duration `mapstructure:"timeout" validate:"gt=0"`
}

// SessionConfig contains session storage configuration
type SessionConfig struct {
	Store           string        `mapstructure:"store" validate:"oneof=memory redis"`
	CookieName      string        `mapstructure:"cookie_name" validate:"required"`
	TTL             time.Duration `mapstructure:"ttl" validate:"gt=0"`
	SecureCookie    bool          `mapstructure:"secure_cookie"`
	CleanupInterval time.Duration `mapstructure:"cleanup_interval" validate:"gt=0"`
	ViewIdleTTL     time.Duration `mapstructure:"view_idle_ttl" validate:"gt=0"`
}

// RedisConfig contains Redis configuration
type RedisConfig struct {
	Host        string        `mapstructure:"host"`
	Port        int           `mapstructure:"port"`
	Password    string        `mapstructure:"password"`
	Database    int           `mapstructure:"database"`
	PoolSize    int           `mapstructure:"pool_size"`
	DialTimeout time.Duration `mapstructure:"dial_timeout"`
	KeyPrefix   string        `mapstructure:"key_prefix"`
}

// RateLimitConfig contains rate limiting configuration
type RateLimitConfig struct {
	Enable         bool `mapstructure:"enable"`
	RequestsPerMin int  `mapstructure:"requests_per_min" validate:"min=1"`
	BurstSize      int  `mapstructure:"burst_size" validate:"min=1"`

	// Draft autosaves have their own per-IP bucket
	DraftRequestsPerMin int `mapstructure:"draft_requests_per_min" validate:"min=1"`
	DraftBurstSize      int `mapstructure:"draft_burst_size" validate:"min=1"`

	CleanupInterval time.Duration `mapstructure:"cleanup_interval"`
}

// MonitoringConfig contains monitoring configuration
type MonitoringConfig struct {
	EnableMetrics  bool          `mapstructure:"enable_metrics"`
	EnableTracing  bool          `mapstructure:"enable_tracing"`
	OTLPEndpoint   string        `mapstructure:"otlp_endpoint"`
	SamplingRate   float64       `mapstructure:"sampling_rate" validate:"min=0,max=1"`
	HealthCacheTTL time.Duration `mapstructure:"health_cache_ttl"`
}

// ViewConfig contains the recipe full view's behavior knobs
type ViewConfig struct {
	DeletedMessage   string        `mapstructure:"deleted_message" validate:"required"`
	RedirectPath     string        `mapstructure:"redirect_path" validate:"required,startswith=/"`
	RedirectDelay    time.Duration `mapstructure:"redirect_delay" validate:"min=0"`
	ConfirmPrompt    string        `mapstructure:"confirm_prompt" validate:"required"`
	PlaceholderImage string        `mapstructure:"placeholder_image"`
}

// Load loads configuration from file and environment variables
func Load(configPath string) (*Config, error) {
	v, err := newViper(configPath)
	if err != nil {
		return nil, err
	}
	return decode(v)
}

// Watch loads the configuration and calls onChange with the reloaded
// configuration every time the config file changes on disk.
func Watch(configPath string, onChange func(*Config, error)) (*Config, error) {
	v, err := newViper(configPath)
	if err != nil {
		return nil, err
	}

	cfg, err := decode(v)
	if err != nil {
		return nil, err
	}

	if v.ConfigFileUsed() != "" {
		v.OnConfigChange(func(e fsnotify.Event) {
			if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
				return
			}
			onChange(decode(v))
		})
		v.WatchConfig()
	}

	return cfg, nil
}

func newViper(configPath string) (*viper.Viper, error) {
	v := viper.New()

	// Set default values
	setDefaults(v)

	// Set config file
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("/etc/recipeview")
	}

	// Enable environment variable override
	v.SetEnvPrefix("RECIPEVIEW")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Read config file
	if err := v.ReadInConfig(); err != nil {
		// It's okay if config file doesn't exist, we have defaults
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	return v, nil
}

func decode(v *viper.Viper) (*Config, error) {
	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// App defaults
	v.SetDefault("app.name", "Alchemorsel Recipe View")
	v.SetDefault("app.version", "1.0.0")
	v.SetDefault("app.environment", "development")
	v.SetDefault("app.debug", false)
	v.SetDefault("app.log_level", "info")
	v.SetDefault("app.log_format", "json")

	// Server defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.base_url", "http://localhost:8080")
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "15s")
	v.SetDefault("server.idle_timeout", "60s")
	v.SetDefault("server.shutdown_timeout", "30s")
	v.SetDefault("server.enable_compression", true)

	// API defaults
	v.SetDefault("api.base_url", "http://localhost:3000")
	v.SetDefault("api.timeout", "30s")

	// Session defaults
	v.SetDefault("session.store", "memory")
	v.SetDefault("session.cookie_name", "recipeview-session")
	v.SetDefault("session.ttl", "24h")
	v.SetDefault("session.cleanup_interval", "1h")
	v.SetDefault("session.view_idle_ttl", "30m")

	// Redis defaults
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.database", 0)
	v.SetDefault("redis.pool_size", 10)
	v.SetDefault("redis.dial_timeout", "5s")
	v.SetDefault("redis.key_prefix", "recipeview:session:")

	// Rate limit defaults
	v.SetDefault("rate_limit.enable", true)
	v.SetDefault("rate_limit.requests_per_min", 60)
	v.SetDefault("rate_limit.burst_size", 10)
	v.SetDefault("rate_limit.draft_requests_per_min", 600)
	v.SetDefault("rate_limit.draft_burst_size", 60)
	v.SetDefault("rate_limit.cleanup_interval", "1m")

	// Monitoring defaults
	v.SetDefault("monitoring.enable_metrics", true)
	v.SetDefault("monitoring.sampling_rate", 0.1)
	v.SetDefault("monitoring.health_cache_ttl", "5s")

	// View defaults
	v.SetDefault("view.deleted_message", "Your Recipe has been deleted!")
	v.SetDefault("view.redirect_path", "/my-recipes")
	v.SetDefault("view.redirect_delay", "2s")
	v.SetDefault("view.confirm_prompt", "Are you sure you want to delete this recipe?")
	v.SetDefault("view.placeholder_image", "https://mui.com/static/images/cards/paella.jpg")
}

var validate = validator.New()

// Validate validates the configuration
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return err
	}

	if c.Session.Store == "redis" && c.Redis.Host == "" {
		return fmt.Errorf("redis.host is required when session.store is redis")
	}

	if c.Monitoring.EnableTracing && c.Monitoring.OTLPEndpoint == "" {
		return fmt.Errorf("monitoring.otlp_endpoint is required when tracing is enabled")
	}

	return nil
}

// IsProduction returns true if running in production
func (c *Config) IsProduction() bool {
	return c.App.Environment == "production"
}

// IsDevelopment returns true if running in development
func (c *Config) IsDevelopment() bool {
	return c.App.Environment == "development"
}

// RedisAddr returns the host:port of the Redis server
func (c *Config) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Redis.Host, c.Redis.Port)
}

// ListenAddr returns the address the web server binds to
func (c *Config) ListenAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// ViewSettings returns the recipe view settings described by the view section
func (c *Config) ViewSettings() recipeview.Settings {
	settings := recipeview.DefaultSettings()
	settings.DeletedMessage = c.View.DeletedMessage
	settings.RedirectPath = c.View.RedirectPath
	settings.RedirectDelay = c.View.RedirectDelay
	settings.ConfirmPrompt = c.View.ConfirmPrompt
	if c.View.PlaceholderImage != "" {
		settings.PlaceholderImage = c.View.PlaceholderImage
	}
	return settings
}
