// ABOUTME: Configuration loading and parsing for missionlink-gateway
// ABOUTME: Supports YAML or TOML files with environment variable expansion and duration parsing

package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// Inactive account policies.
const (
	InactivePolicyReject = "reject"
	InactivePolicyWarn   = "warn"
)

// Directory backends.
const (
	DirectorySQLite   = "sqlite"
	DirectoryPostgres = "postgres"
)

// Defaults applied when a field is left empty.
const (
	DefaultModel          = "gpt-4o"
	DefaultStepCap        = 5
	DefaultToolTimeout    = 10 * time.Second
	DefaultRetryBackoff   = 500 * time.Millisecond
	DefaultTimezone       = "Asia/Seoul"
	DefaultSessionCookie  = "missionlink_session"
	DefaultTokenTTL       = 7 * 24 * time.Hour
	DefaultAuditQueueSize = 256
	DefaultAuditTimeout   = 5 * time.Second
	DefaultCacheTTL       = 5 * time.Minute
)

// Config represents the complete missionlink-gateway configuration
type Config struct {
	Server    ServerConfig    `yaml:"server" toml:"server"`
	Database  DatabaseConfig  `yaml:"database" toml:"database"`
	Directory DirectoryConfig `yaml:"directory" toml:"directory"`
	Auth      AuthConfig      `yaml:"auth" toml:"auth"`
	Model     ModelConfig     `yaml:"model" toml:"model"`
	Tools     ToolsConfig     `yaml:"tools" toml:"tools"`
	Prompt    PromptConfig    `yaml:"prompt" toml:"prompt"`
	Audit     AuditConfig     `yaml:"audit" toml:"audit"`
	Logging   LoggingConfig   `yaml:"logging" toml:"logging"`
}

// ServerConfig holds server address configuration
type ServerConfig struct {
	HTTPAddr string `yaml:"http_addr" toml:"http_addr"`
}

// DatabaseConfig holds the account and chat log database configuration
type DatabaseConfig struct {
	Path string `yaml:"path" toml:"path"`
}

// DirectoryConfig selects the tabular store that backs the retrieval tools.
type DirectoryConfig struct {
	Driver   string        `yaml:"driver" toml:"driver"` // sqlite or postgres
	Path     string        `yaml:"path" toml:"path"`     // sqlite file
	DSN      string        `yaml:"dsn" toml:"dsn"`       // postgres connection string
	CacheTTL time.Duration `yaml:"-" toml:"-"`

	CacheTTLRaw string `yaml:"cache_ttl" toml:"cache_ttl"`
}

// AuthConfig holds authentication configuration
type AuthConfig struct {
	JWTSecret      string        `yaml:"jwt_secret" toml:"jwt_secret"`
	SessionCookie  string        `yaml:"session_cookie" toml:"session_cookie"`
	InactivePolicy string        `yaml:"inactive_policy" toml:"inactive_policy"`
	TokenTTL       time.Duration `yaml:"-" toml:"-"`

	TokenTTLRaw string `yaml:"token_ttl" toml:"token_ttl"`
}

// ModelConfig holds the language model provider configuration
type ModelConfig struct {
	Provider     string        `yaml:"provider" toml:"provider"`
	APIKey       string        `yaml:"api_key" toml:"api_key"`
	BaseURL      string        `yaml:"base_url" toml:"base_url"`
	Model        string        `yaml:"model" toml:"model"`
	MaxTokens    int           `yaml:"max_tokens" toml:"max_tokens"`
	StepCap      int           `yaml:"step_cap" toml:"step_cap"`
	RetryBackoff time.Duration `yaml:"-" toml:"-"`

	RetryBackoffRaw string `yaml:"retry_backoff" toml:"retry_backoff"`
}

// ToolsConfig holds tool execution limits
type ToolsConfig struct {
	Timeout     time.Duration `yaml:"-" toml:"-"`
	MaxParallel int           `yaml:"max_parallel" toml:"max_parallel"`

	TimeoutRaw string `yaml:"timeout" toml:"timeout"`
}

// PromptConfig holds system prompt settings
type PromptConfig struct {
	Timezone     string         `yaml:"timezone" toml:"timezone"`
	TemplateFile string         `yaml:"template_file" toml:"template_file"`
	DailyContent bool           `yaml:"daily_content" toml:"daily_content"`
	Location     *time.Location `yaml:"-" toml:"-"`
}

// AuditConfig holds chat log writer settings
type AuditConfig struct {
	QueueSize    int           `yaml:"queue_size" toml:"queue_size"`
	WriteTimeout time.Duration `yaml:"-" toml:"-"`

	WriteTimeoutRaw string `yaml:"write_timeout" toml:"write_timeout"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level" toml:"level"`
	Format string `yaml:"format" toml:"format"`
}

// Load reads a configuration file from the given path and returns a parsed Config.
// Files ending in .toml are decoded as TOML, everything else as YAML.
// Environment variables in the format ${VAR_NAME} are expanded.
// Duration strings are parsed into time.Duration values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	expandedData := expandEnvVars(string(data))

	var cfg Config
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		if err := toml.Unmarshal([]byte(expandedData), &cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	} else {
		if err := yaml.Unmarshal([]byte(expandedData), &cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	if err := parseDurations(&cfg); err != nil {
		return nil, fmt.Errorf("parsing durations: %w", err)
	}

	applyDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// expandEnvVars replaces ${VAR_NAME} patterns with the corresponding environment variable values.
// If the environment variable is not set, it is replaced with an empty string.
func expandEnvVars(s string) string {
	re := regexp.MustCompile(`\$\{([^}]+)\}`)

	return re.ReplaceAllStringFunc(s, func(match string) string {
		varName := re.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}

// applyDefaults fills in optional fields left empty by the file.
func applyDefaults(cfg *Config) {
	if cfg.Directory.Driver == "" {
		cfg.Directory.Driver = DirectorySQLite
	}
	if cfg.Directory.Driver == DirectorySQLite && cfg.Directory.Path == "" {
		cfg.Directory.Path = cfg.Database.Path
	}
	if cfg.Directory.CacheTTL == 0 {
		cfg.Directory.CacheTTL = DefaultCacheTTL
	}
	if cfg.Auth.SessionCookie == "" {
		cfg.Auth.SessionCookie = DefaultSessionCookie
	}
	if cfg.Auth.InactivePolicy == "" {
		cfg.Auth.InactivePolicy = InactivePolicyReject
	}
	if cfg.Auth.TokenTTL == 0 {
		cfg.Auth.TokenTTL = DefaultTokenTTL
	}
	if cfg.Model.Provider == "" {
		cfg.Model.Provider = "openai"
	}
	if cfg.Model.Model == "" {
		cfg.Model.Model = DefaultModel
	}
	if cfg.Model.StepCap == 0 {
		cfg.Model.StepCap = DefaultStepCap
	}
	if cfg.Model.RetryBackoff == 0 {
		cfg.Model.RetryBackoff = DefaultRetryBackoff
	}
	if cfg.Tools.Timeout == 0 {
		cfg.Tools.Timeout = DefaultToolTimeout
	}
	if cfg.Prompt.Timezone == "" {
		cfg.Prompt.Timezone = DefaultTimezone
	}
	if cfg.Audit.QueueSize == 0 {
		cfg.Audit.QueueSize = DefaultAuditQueueSize
	}
	if cfg.Audit.WriteTimeout == 0 {
		cfg.Audit.WriteTimeout = DefaultAuditTimeout
	}
}

// Validate checks that all required configuration fields are present and valid.
// Returns an error describing the first validation failure encountered.
// On success the prompt time zone is resolved into Prompt.Location.
func (c *Config) Validate() error {
	if c.Server.HTTPAddr == "" {
		return fmt.Errorf("server.http_addr is required")
	}

	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}

	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("auth.jwt_secret is required")
	}

	switch c.Auth.InactivePolicy {
	case InactivePolicyReject, InactivePolicyWarn:
	default:
		return fmt.Errorf("auth.inactive_policy must be %q or %q, got %q",
			InactivePolicyReject, InactivePolicyWarn, c.Auth.InactivePolicy)
	}

	switch c.Directory.Driver {
	case DirectorySQLite:
		if c.Directory.Path == "" {
			return fmt.Errorf("directory.path is required for the sqlite driver")
		}
	case DirectoryPostgres:
		if c.Directory.DSN == "" {
			return fmt.Errorf("directory.dsn is required for the postgres driver")
		}
	default:
		return fmt.Errorf("unknown directory.driver %q", c.Directory.Driver)
	}

	if c.Model.Provider != "openai" {
		return fmt.Errorf("unsupported model.provider %q", c.Model.Provider)
	}

	if c.Model.StepCap < 1 {
		return fmt.Errorf("model.step_cap must be at least 1")
	}

	if c.Tools.MaxParallel < 0 {
		return fmt.Errorf("tools.max_parallel cannot be negative")
	}

	loc, err := time.LoadLocation(c.Prompt.Timezone)
	if err != nil {
		return fmt.Errorf("prompt.timezone %q: %w", c.Prompt.Timezone, err)
	}
	c.Prompt.Location = loc

	return nil
}

// parseDurations converts the raw duration strings into time.Duration values
func parseDurations(cfg *Config) error {
	fields := []struct {
		name string
		raw  string
		dst  *time.Duration
	}{
		{"directory.cache_ttl", cfg.Directory.CacheTTLRaw, &cfg.Directory.CacheTTL},
		{"auth.token_ttl", cfg.Auth.TokenTTLRaw, &cfg.Auth.TokenTTL},
		{"model.retry_backoff", cfg.Model.RetryBackoffRaw, &cfg.Model.RetryBackoff},
		{"tools.timeout", cfg.Tools.TimeoutRaw, &cfg.Tools.Timeout},
		{"audit.write_timeout", cfg.Audit.WriteTimeoutRaw, &cfg.Audit.WriteTimeout},
	}

	for _, f := range fields {
		if f.raw == "" {
			continue
		}
		d, err := time.ParseDuration(f.raw)
		if err != nil {
			return fmt.Errorf("parsing %s %q: %w", f.name, f.raw, err)
		}
		*f.dst = d
	}

	return nil
}
