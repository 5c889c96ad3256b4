package config

import (
	"fmt"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config holds all configuration for the engine.
// Configuration can come from a YAML file (config.yaml) or environment
// variables; environment variables always override YAML values. Secrets
// (API keys, signing secrets) must only come from environment variables.
type Config struct {
	BindAddr string `yaml:"bind_addr" env:"BIND_ADDR" env-default:"127.0.0.1"`
	Port     string `yaml:"port" env:"PORT" env-default:"8080"`
	Env      string `yaml:"env" env:"ENVIRONMENT" env-default:"local"`
	Version  string `yaml:"-"` // Set at load time, not from config

	// Database configuration. If Host is empty the engine runs in
	// local-only mode with in-memory storage.
	Database DatabaseConfig `yaml:"database"`

	// AI completion service configuration. If Endpoint and APIKey are both
	// empty, suggestion features are disabled and resolve empty.
	AI AIConfig `yaml:"ai"`

	// Coaching loop tuning.
	Coaching CoachingConfig `yaml:"coaching"`

	// Auth configuration.
	Auth AuthConfig `yaml:"auth"`

	// PromptOverridesPath points at an optional YAML file of per-kind
	// prompt template overrides merged over the compiled defaults.
	PromptOverridesPath string `yaml:"prompt_overrides_path" env:"PROMPT_OVERRIDES_PATH" env-default:""`

	// SignInWebhookURL receives a best-effort notification on successful
	// sign-in. Empty disables the side channel.
	SignInWebhookURL string `yaml:"signin_webhook_url" env:"SIGNIN_WEBHOOK_URL" env-default:""`
}

// DatabaseConfig holds PostgreSQL configuration.
type DatabaseConfig struct {
	Host           string `yaml:"host" env:"PGHOST" env-default:""`
	Port           int    `yaml:"port" env:"PGPORT" env-default:"5432"`
	User           string `yaml:"user" env:"PGUSER" env-default:"synthesis"`
	Password       string `yaml:"-" env:"PGPASSWORD"` // Secret - not in YAML
	Database       string `yaml:"database" env:"PGDATABASE" env-default:"synthesis"`
	SSLMode        string `yaml:"ssl_mode" env:"PGSSLMODE" env-default:"disable"`
	MaxConnections int32  `yaml:"max_connections" env:"PGMAX_CONNECTIONS" env-default:"25"`
	MigrationsPath string `yaml:"migrations_path" env:"PGMIGRATIONS_PATH" env-default:"migrations"`
}

// Configured reports whether a database host was provided.
func (d DatabaseConfig) Configured() bool { return d.Host != "" }

// URL builds a postgres connection URL from the parts.
func (d DatabaseConfig) URL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.Database, d.SSLMode)
}

// AIConfig holds completion-service configuration.
type AIConfig struct {
	// Provider selects the client implementation: "openai" (any
	// OpenAI-compatible endpoint) or "anthropic".
	Provider    string  `yaml:"provider" env:"AI_PROVIDER" env-default:"openai"`
	// Endpoint left empty uses the provider's public API URL.
	Endpoint    string  `yaml:"endpoint" env:"AI_ENDPOINT" env-default:""`
	Model       string  `yaml:"model" env:"AI_MODEL" env-default:"gpt-4o-mini"`
	APIKey      string  `yaml:"-" env:"AI_API_KEY"` // Secret - not in YAML
	Temperature float64 `yaml:"temperature" env:"AI_TEMPERATURE" env-default:"0.7"`
}

// Configured reports whether the completion service can be reached.
func (a AIConfig) Configured() bool { return a.APIKey != "" || a.Endpoint != "" }

// CoachingConfig tunes the observation coaching loop.
type CoachingConfig struct {
	DebounceMS int `yaml:"debounce_ms" env:"COACHING_DEBOUNCE_MS" env-default:"1500"`
	MinLength  int `yaml:"min_length" env:"COACHING_MIN_LENGTH" env-default:"20"`
}

// Debounce returns the debounce interval as a duration.
func (c CoachingConfig) Debounce() time.Duration {
	return time.Duration(c.DebounceMS) * time.Millisecond
}

// AuthConfig holds authentication configuration.
type AuthConfig struct {
	// EnableVerification controls whether bearer tokens are validated.
	// Set to false for local development; requests then identify via the
	// X-User-ID header.
	EnableVerification bool `yaml:"enable_verification" env:"AUTH_ENABLE_VERIFICATION" env-default:"true"`

	// TokenSecret is the HS256 signing secret shared with the auth provider.
	TokenSecret string `yaml:"-" env:"AUTH_TOKEN_SECRET"` // Secret - not in YAML

	// SessionSecret signs the sign-in session cookie.
	SessionSecret string `yaml:"-" env:"SESSION_SECRET"` // Secret - not in YAML
}

// Load reads configuration from config.yaml (if present) and the
// environment.
func Load(version string) (*Config, error) {
	var cfg Config

	if _, err := os.Stat("config.yaml"); err == nil {
		if err := cleanenv.ReadConfig("config.yaml", &cfg); err != nil {
			return nil, fmt.Errorf("failed to read config.yaml: %w", err)
		}
	} else {
		if err := cleanenv.ReadEnv(&cfg); err != nil {
			return nil, fmt.Errorf("failed to read environment: %w", err)
		}
	}

	cfg.Version = version

	if cfg.Auth.EnableVerification && cfg.Auth.TokenSecret == "" {
		return nil, fmt.Errorf("AUTH_TOKEN_SECRET is required when auth verification is enabled")
	}

	if cfg.AI.Configured() && cfg.AI.Provider == "anthropic" && cfg.AI.APIKey == "" {
		return nil, fmt.Errorf("AI_API_KEY is required when AI_PROVIDER is anthropic")
	}

	return &cfg, nil
}
