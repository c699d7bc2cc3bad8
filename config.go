package sessionx

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	defaultWarningWindowMinutes = 10
	defaultGraceMinutes         = 2
	defaultLocale               = "en_US"
	defaultExpiryLayout         = "Jan 2, 2006, 3:04:05 PM"
	defaultTokenKey             = "fraudguard_token"
	defaultStoreDriver          = DriverMemory
	defaultStoreScope           = "http://localhost:3000"
	defaultSQLiteDSN            = "file:sessionx.db?cache=shared"
	defaultAPIBaseURL           = "http://localhost:8000/api/v1"
	defaultHTTPTimeout          = 10 * time.Second
	defaultLandingRoute         = "/dashboard"
	defaultSignInRoute          = "/login"
	defaultLogLevel             = "info"

	envPrefix = "SESSIONX"
)

// Config groups every setting the session manager consumes.
type Config struct {
	Policy PolicyConfig `mapstructure:"policy"`
	Store  StoreConfig  `mapstructure:"store"`
	API    APIConfig    `mapstructure:"api"`
	Routes RouteConfig  `mapstructure:"routes"`
	Log    LogConfig    `mapstructure:"log"`
}

// PolicyConfig holds the expiry thresholds and display settings.
type PolicyConfig struct {
	WarningWindowMinutes int            `mapstructure:"warning_window_minutes"`
	GraceMinutes         int            `mapstructure:"grace_minutes"`
	Locale               string         `mapstructure:"locale"`
	ExpiryLayout         string         `mapstructure:"expiry_layout"`
	TimeZone             string         `mapstructure:"time_zone"`
	Location             *time.Location `mapstructure:"-"`
}

// StoreConfig selects and configures the persistence backend.
type StoreConfig struct {
	Driver    string `mapstructure:"driver"`
	TokenKey  string `mapstructure:"token_key"`
	Scope     string `mapstructure:"scope"`
	SQLiteDSN string `mapstructure:"sqlite_dsn"`
	RedisAddr string `mapstructure:"redis_addr"`
	RedisDB   int    `mapstructure:"redis_db"`
	RedisPass string `mapstructure:"redis_password"`
}

// APIConfig points at the backend auth API.
type APIConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// RouteConfig names the navigation targets used after auth transitions.
type RouteConfig struct {
	Landing string        `mapstructure:"landing"`
	SignIn  string        `mapstructure:"sign_in"`
	Delay   time.Duration `mapstructure:"delay"`
}

// DefaultPolicyConfig returns the thresholds used when nothing is configured.
func DefaultPolicyConfig() PolicyConfig {
	cfg := PolicyConfig{}
	cfg.normalize()
	return cfg
}

// normalize sets default values for optional fields.
func (c *PolicyConfig) normalize() {
	// A zero grace window is legal once a warning window is set explicitly.
	if c.WarningWindowMinutes == 0 {
		c.WarningWindowMinutes = defaultWarningWindowMinutes
		if c.GraceMinutes == 0 {
			c.GraceMinutes = defaultGraceMinutes
		}
	}
	if c.Locale == "" {
		c.Locale = defaultLocale
	}
	if c.ExpiryLayout == "" {
		c.ExpiryLayout = defaultExpiryLayout
	}
	if c.Location == nil {
		c.Location = time.Local
		if c.TimeZone != "" {
			if loc, err := time.LoadLocation(c.TimeZone); err == nil {
				c.Location = loc
			}
		}
	}
}

// Validate ensures the thresholds produce consistent signals and that the
// display time zone exists.
func (c PolicyConfig) Validate() error {
	if c.TimeZone != "" {
		if _, err := time.LoadLocation(c.TimeZone); err != nil {
			return newError(ErrCodeInvalidConfig, fmt.Errorf("time_zone %q: %w", c.TimeZone, err))
		}
	}
	switch {
	case c.WarningWindowMinutes <= 0:
		return newError(ErrCodeInvalidConfig, errors.New("warning_window_minutes must be positive"))
	case c.GraceMinutes < 0:
		return newError(ErrCodeInvalidConfig, errors.New("grace_minutes must not be negative"))
	case c.GraceMinutes >= c.WarningWindowMinutes:
		return newError(ErrCodeInvalidConfig, fmt.Errorf(
			"grace_minutes (%d) must be less than warning_window_minutes (%d)",
			c.GraceMinutes, c.WarningWindowMinutes,
		))
	}
	return nil
}

func (c *StoreConfig) normalize() {
	if c.Driver == "" {
		c.Driver = defaultStoreDriver
	}
	c.Driver = strings.ToLower(c.Driver)
	if c.TokenKey == "" {
		c.TokenKey = defaultTokenKey
	}
	if c.Scope == "" {
		c.Scope = defaultStoreScope
	}
	if c.SQLiteDSN == "" {
		c.SQLiteDSN = defaultSQLiteDSN
	}
}

func (c StoreConfig) validate() error {
	switch c.Driver {
	case DriverMemory, DriverSQLite:
		return nil
	case DriverRedis:
		if c.RedisAddr == "" {
			return errors.New("redis_addr is required for the redis driver")
		}
		return nil
	}
	return fmt.Errorf("unknown store driver %q", c.Driver)
}

func (c *APIConfig) normalize() {
	if c.BaseURL == "" {
		c.BaseURL = defaultAPIBaseURL
	}
	if c.Timeout <= 0 {
		c.Timeout = defaultHTTPTimeout
	}
}

func (c *RouteConfig) normalize() {
	if c.Landing == "" {
		c.Landing = defaultLandingRoute
	}
	if c.SignIn == "" {
		c.SignIn = defaultSignInRoute
	}
}

// Normalize fills every unset field with its default.
func (c *Config) Normalize() {
	c.Policy.normalize()
	c.Store.normalize()
	c.API.normalize()
	c.Routes.normalize()
	c.Log.normalize()
}

// Validate ensures the configuration is usable.
func (c Config) Validate() error {
	if err := c.Policy.Validate(); err != nil {
		return err
	}
	if err := c.Store.validate(); err != nil {
		return newError(ErrCodeInvalidConfig, fmt.Errorf("store: %w", err))
	}
	return nil
}

// LoadConfig reads an optional YAML file at path, overlays SESSIONX_* environment
// variables and returns a normalized, validated configuration.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, newError(ErrCodeInvalidConfig, fmt.Errorf("read %s: %w", path, err))
		}
	}

	v.SetDefault("policy.warning_window_minutes", defaultWarningWindowMinutes)
	v.SetDefault("policy.grace_minutes", defaultGraceMinutes)
	v.SetDefault("policy.locale", defaultLocale)
	v.SetDefault("policy.expiry_layout", defaultExpiryLayout)
	v.SetDefault("policy.time_zone", "")

	v.SetDefault("store.driver", defaultStoreDriver)
	v.SetDefault("store.token_key", defaultTokenKey)
	v.SetDefault("store.scope", defaultStoreScope)
	v.SetDefault("store.sqlite_dsn", defaultSQLiteDSN)
	v.SetDefault("store.redis_addr", "")
	v.SetDefault("store.redis_db", 0)
	v.SetDefault("store.redis_password", "")

	v.SetDefault("api.base_url", defaultAPIBaseURL)
	v.SetDefault("api.timeout", defaultHTTPTimeout.String())

	v.SetDefault("routes.landing", defaultLandingRoute)
	v.SetDefault("routes.sign_in", defaultSignInRoute)
	v.SetDefault("routes.delay", "0s")

	v.SetDefault("log.level", defaultLogLevel)
	v.SetDefault("log.pretty", false)
	v.SetDefault("log.file_path", "")
	v.SetDefault("log.max_size", 10)
	v.SetDefault("log.max_backups", 3)
	v.SetDefault("log.max_age", 28)
	v.SetDefault("log.compress", false)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, newError(ErrCodeInvalidConfig, err)
	}
	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
