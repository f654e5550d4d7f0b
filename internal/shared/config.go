package shared

import (
	_ "embed"
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

//go:embed config.example.toml
var exampleConf []byte

// Config represents the application configuration loaded from a TOML file.
type Config struct {
	Server    ServerConfig    `toml:"server"`
	Database  DatabaseConfig  `toml:"database"`
	Redis     RedisConfig     `toml:"redis"`
	Store     StoreConfig     `toml:"store"`
	Auth      AuthConfig      `toml:"auth"`
	Throttle  ThrottleConfig  `toml:"throttle"`
	Cache     CacheConfig     `toml:"cache"`
	Providers ProvidersConfig `toml:"providers"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Host                   string `toml:"host"`
	Port                   int    `toml:"port"`
	AllowedOrigin          string `toml:"allowed_origin"`
	ReadTimeoutSeconds     int    `toml:"read_timeout_seconds"`
	WriteTimeoutSeconds    int    `toml:"write_timeout_seconds"`
	ShutdownTimeoutSeconds int    `toml:"shutdown_timeout_seconds"`
}

// Addr returns the listen address in host:port form.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// DatabaseConfig contains database connection settings.
type DatabaseConfig struct {
	Path         string `toml:"path"`
	MaxOpenConns int    `toml:"max_open_conns"`
	MaxIdleConns int    `toml:"max_idle_conns"`
}

// RedisConfig contains connection settings for the shared counter and cache store.
type RedisConfig struct {
	Addr               string `toml:"addr"`
	Password           string `toml:"password"`
	DB                 int    `toml:"db"`
	DialTimeoutSeconds int    `toml:"dial_timeout_seconds"`
}

// StoreConfig selects the counter/cache backend: "redis" or "memory".
type StoreConfig struct {
	Backend string `toml:"backend"`
}

// AuthConfig contains session token settings.
type AuthConfig struct {
	SecretKey          string `toml:"secret_key"`
	AccessTokenMinutes int    `toml:"access_token_minutes"`
	RefreshTokenDays   int    `toml:"refresh_token_days"`
	SecureCookies      bool   `toml:"secure_cookies"`
}

// AccessTTL is the access token lifetime.
func (a AuthConfig) AccessTTL() time.Duration {
	return time.Duration(a.AccessTokenMinutes) * time.Minute
}

// RefreshTTL is the refresh token lifetime.
func (a AuthConfig) RefreshTTL() time.Duration {
	return time.Duration(a.RefreshTokenDays) * 24 * time.Hour
}

// ThrottleConfig contains fixed-window rate limiter settings.
//
// FailOpen admits requests when the counter store cannot be reached.
type ThrottleConfig struct {
	Limit         int  `toml:"limit"`
	WindowSeconds int  `toml:"window_seconds"`
	FailOpen      bool `toml:"fail_open"`
}

// Window is the fixed window length.
func (t ThrottleConfig) Window() time.Duration {
	return time.Duration(t.WindowSeconds) * time.Second
}

// CacheConfig contains search cache settings.
type CacheConfig struct {
	TTLSeconds int `toml:"ttl_seconds"`
}

// TTL is the lifetime of a cached search result.
func (c CacheConfig) TTL() time.Duration {
	return time.Duration(c.TTLSeconds) * time.Second
}

// ProvidersConfig contains settings for external search providers.
type ProvidersConfig struct {
	MailRu  MailRuConfig  `toml:"mailru"`
	Spotify SpotifyConfig `toml:"spotify"`
}

// MailRuConfig contains settings for the Mail.ru music search.
type MailRuConfig struct {
	Enabled           bool    `toml:"enabled"`
	BaseURL           string  `toml:"base_url"`
	TimeoutSeconds    int     `toml:"timeout_seconds"`
	RequestsPerSecond float64 `toml:"requests_per_second"`
}

// SpotifyConfig contains Spotify Web API client credentials.
type SpotifyConfig struct {
	Enabled           bool    `toml:"enabled"`
	ClientID          string  `toml:"client_id"`
	ClientSecret      string  `toml:"client_secret"`
	TokenURL          string  `toml:"token_url"`
	BaseURL           string  `toml:"base_url"`
	Market            string  `toml:"market"`
	TimeoutSeconds    int     `toml:"timeout_seconds"`
	RequestsPerSecond float64 `toml:"requests_per_second"`
}

// LoadConfig reads and parses a TOML configuration file from the specified path.
//
// Keys missing from the file keep the values from [DefaultConfig].
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := toml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	return config, nil
}

// DefaultConfig returns a Config with sensible defaults loaded from the embedded example config.
func DefaultConfig() *Config {
	var config Config
	if err := toml.Unmarshal(exampleConf, &config); err != nil {
		panic(fmt.Sprintf("failed to parse embedded default config: %v", err))
	}
	return &config
}

// CreateConfigFile creates a config.toml file at the specified path using the embedded example config.
func CreateConfigFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := os.WriteFile(path, exampleConf, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// ApplyEnv overrides secrets and endpoints from TUNEGATE_* environment variables.
func (c *Config) ApplyEnv() {
	if v := os.Getenv("TUNEGATE_SECRET_KEY"); v != "" {
		c.Auth.SecretKey = v
	}
	if v := os.Getenv("TUNEGATE_SPOTIFY_CLIENT_ID"); v != "" {
		c.Providers.Spotify.ClientID = v
	}
	if v := os.Getenv("TUNEGATE_SPOTIFY_CLIENT_SECRET"); v != "" {
		c.Providers.Spotify.ClientSecret = v
	}
	if v := os.Getenv("TUNEGATE_REDIS_ADDR"); v != "" {
		c.Redis.Addr = v
	}
}

// Validate checks the settings required to serve requests.
func (c *Config) Validate() error {
	switch {
	case c.Auth.SecretKey == "":
		return fmt.Errorf("%w: auth.secret_key is required", ErrInvalidConfig)
	case c.Auth.AccessTokenMinutes <= 0:
		return fmt.Errorf("%w: auth.access_token_minutes must be positive", ErrInvalidConfig)
	case c.Auth.RefreshTokenDays <= 0:
		return fmt.Errorf("%w: auth.refresh_token_days must be positive", ErrInvalidConfig)
	case c.Throttle.Limit <= 0:
		return fmt.Errorf("%w: throttle.limit must be positive", ErrInvalidConfig)
	case c.Throttle.WindowSeconds <= 0:
		return fmt.Errorf("%w: throttle.window_seconds must be positive", ErrInvalidConfig)
	case c.Cache.TTLSeconds <= 0:
		return fmt.Errorf("%w: cache.ttl_seconds must be positive", ErrInvalidConfig)
	}

	switch c.Store.Backend {
	case "redis", "memory":
	default:
		return fmt.Errorf("%w: store.backend must be redis or memory, got %q", ErrInvalidConfig, c.Store.Backend)
	}

	return nil
}
