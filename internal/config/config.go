package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Roles accepted by the backend. The console refuses to start with an
// unknown role so that audit entries never carry a junk actor role.
var validRoles = map[string]bool{
	"admin":   true,
	"doctor":  true,
	"nurse":   true,
	"patient": true,
}

type Config struct {
	Env        string `mapstructure:"ENV"`
	APIBaseURL string `mapstructure:"API_BASE_URL"`

	ActorName string `mapstructure:"ACTOR_NAME"`
	ActorRole string `mapstructure:"ACTOR_ROLE"`

	// Bearer token, either inline or read from a file. The session
	// provider re-reads file-backed tokens per request so external
	// rotation is picked up without a restart.
	Token     string `mapstructure:"TOKEN"`
	TokenFile string `mapstructure:"TOKEN_FILE"`

	HTTPTimeout        time.Duration `mapstructure:"HTTP_TIMEOUT"`
	TrustPollInterval  time.Duration `mapstructure:"TRUST_POLL_INTERVAL"`
	ActivityInterval   time.Duration `mapstructure:"ACTIVITY_POLL_INTERVAL"`
	PrecheckDebounce   time.Duration `mapstructure:"PRECHECK_DEBOUNCE"`
	LogPageSize        int           `mapstructure:"LOG_PAGE_SIZE"`
	SandboxAddr        string        `mapstructure:"SANDBOX_ADDR"`
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("ENV", "development")
	v.SetDefault("API_BASE_URL", "http://localhost:5000")
	v.SetDefault("ACTOR_ROLE", "doctor")
	v.SetDefault("HTTP_TIMEOUT", "15s")
	v.SetDefault("TRUST_POLL_INTERVAL", "30s")
	v.SetDefault("ACTIVITY_POLL_INTERVAL", "40s")
	v.SetDefault("PRECHECK_DEBOUNCE", "600ms")
	v.SetDefault("LOG_PAGE_SIZE", 10)
	v.SetDefault("SANDBOX_ADDR", ":5000")

	// Bind env vars explicitly so Unmarshal picks them up
	v.BindEnv("ENV")
	v.BindEnv("API_BASE_URL")
	v.BindEnv("ACTOR_NAME")
	v.BindEnv("ACTOR_ROLE")
	v.BindEnv("TOKEN")
	v.BindEnv("TOKEN_FILE")
	v.BindEnv("HTTP_TIMEOUT")
	v.BindEnv("TRUST_POLL_INTERVAL")
	v.BindEnv("ACTIVITY_POLL_INTERVAL")
	v.BindEnv("PRECHECK_DEBOUNCE")
	v.BindEnv("LOG_PAGE_SIZE")
	v.BindEnv("SANDBOX_ADDR")

	// Try reading .env file, but don't fail if missing
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	return cfg, nil
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// Validate checks that the configuration can drive the console. The base
// URL must be a single absolute http(s) URL: every endpoint, including the
// justification pre-check, resolves against it.
func (c *Config) Validate() error {
	u, err := url.Parse(c.APIBaseURL)
	if err != nil {
		return fmt.Errorf("API_BASE_URL is not a valid URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("API_BASE_URL must be http or https, got %q", c.APIBaseURL)
	}
	if u.Host == "" {
		return fmt.Errorf("API_BASE_URL has no host: %q", c.APIBaseURL)
	}

	role := strings.ToLower(strings.TrimSpace(c.ActorRole))
	if !validRoles[role] {
		return fmt.Errorf("ACTOR_ROLE must be admin, doctor, nurse, or patient, got %q", c.ActorRole)
	}

	if c.LogPageSize < 10 || c.LogPageSize > 15 {
		return fmt.Errorf("LOG_PAGE_SIZE must be between 10 and 15, got %d", c.LogPageSize)
	}

	if c.HTTPTimeout <= 0 {
		return fmt.Errorf("HTTP_TIMEOUT must be positive")
	}
	if c.TrustPollInterval <= 0 || c.ActivityInterval <= 0 {
		return fmt.Errorf("poll intervals must be positive")
	}

	return nil
}

// BaseURL returns the API base URL without a trailing slash so callers can
// join paths with a plain "+".
func (c *Config) BaseURL() string {
	return strings.TrimRight(c.APIBaseURL, "/")
}
