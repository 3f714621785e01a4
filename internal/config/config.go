// ABOUTME: Configuration loading and parsing for prism-gateway.
// ABOUTME: Supports YAML files with environment variable expansion and env fallbacks.

package config

import (
	"fmt"
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the complete prism-gateway configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Gateway   GatewayConfig   `yaml:"gateway"`
	Providers ProvidersConfig `yaml:"providers"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// ServerConfig holds the HTTP listen address.
type ServerConfig struct {
	HTTPAddr string `yaml:"http_addr"`
}

// GatewayConfig holds routing defaults and the size/token budgets.
//
// MaxInputTokens bounds an estimate derived from a 4-characters-per-token
// heuristic, not a real tokenizer count; providers' actual tokenizers differ.
type GatewayConfig struct {
	Environment     string `yaml:"environment"`
	DefaultProvider string `yaml:"default_provider"`

	RequestTimeout time.Duration `yaml:"-"`

	MaxRequestBytes   int   `yaml:"max_request_bytes"`
	MaxInputTokens    int   `yaml:"max_input_tokens"`
	DefaultMaxTokens  int   `yaml:"default_max_tokens"`
	StreamBufferBytes int   `yaml:"stream_buffer_bytes"`
	StreamByteBudget  int64 `yaml:"stream_byte_budget"`
	MailboxDepth      int   `yaml:"mailbox_depth"`

	// Raw string value for YAML unmarshaling
	RequestTimeoutRaw string `yaml:"request_timeout"`
}

// ProvidersConfig holds per-upstream credentials. Each key falls back to its
// conventional environment variable when unset in YAML, so a plain .env file
// is enough to configure the gateway.
type ProvidersConfig struct {
	OpenAIKey string `yaml:"openai_key"`
	GeminiKey string `yaml:"gemini_key"`
	ClaudeKey string `yaml:"claude_key"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Defaults mirror the original deployment values.
const (
	DefaultHTTPAddr          = "127.0.0.1:8000"
	DefaultRequestTimeout    = 120 * time.Second
	DefaultMaxRequestBytes   = 256_000
	DefaultMaxInputTokens    = 6_000
	DefaultMaxOutputTokens   = 2_048
	DefaultStreamBufferBytes = 65_536
	DefaultMailboxDepth      = 100
)

// Default returns a configuration with all defaults applied and credentials
// resolved from the environment.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	cfg.applyEnvFallbacks()
	return cfg
}

// Load reads a configuration file from the given path and returns a parsed
// Config. Environment variables in the format ${VAR_NAME} are expanded. A
// missing file is not an error: the defaults plus environment fallbacks
// apply, matching the original env-only deployment style.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return Default(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	expanded := expandEnvVars(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if err := parseDurations(&cfg); err != nil {
		return nil, fmt.Errorf("parsing durations: %w", err)
	}

	cfg.applyDefaults()
	cfg.applyEnvFallbacks()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// expandEnvVars replaces ${VAR_NAME} patterns with the corresponding
// environment variable values. Unset variables become empty strings.
func expandEnvVars(s string) string {
	re := regexp.MustCompile(`\$\{([^}]+)\}`)

	return re.ReplaceAllStringFunc(s, func(match string) string {
		varName := re.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}

func (c *Config) applyDefaults() {
	if c.Server.HTTPAddr == "" {
		c.Server.HTTPAddr = DefaultHTTPAddr
	}
	if c.Gateway.Environment == "" {
		c.Gateway.Environment = "development"
	}
	if c.Gateway.RequestTimeout == 0 {
		c.Gateway.RequestTimeout = DefaultRequestTimeout
	}
	if c.Gateway.MaxRequestBytes == 0 {
		c.Gateway.MaxRequestBytes = DefaultMaxRequestBytes
	}
	if c.Gateway.MaxInputTokens == 0 {
		c.Gateway.MaxInputTokens = DefaultMaxInputTokens
	}
	if c.Gateway.DefaultMaxTokens == 0 {
		c.Gateway.DefaultMaxTokens = DefaultMaxOutputTokens
	}
	if c.Gateway.StreamBufferBytes == 0 {
		c.Gateway.StreamBufferBytes = DefaultStreamBufferBytes
	}
	if c.Gateway.StreamByteBudget == 0 {
		// Generous relative to the request ceiling; streams are larger than
		// the prompts that trigger them.
		c.Gateway.StreamByteBudget = int64(c.Gateway.MaxRequestBytes) * 4
	}
	if c.Gateway.MailboxDepth == 0 {
		c.Gateway.MailboxDepth = DefaultMailboxDepth
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "text"
	}
}

// applyEnvFallbacks resolves credentials and the default provider from the
// environment when the YAML left them unset.
func (c *Config) applyEnvFallbacks() {
	if c.Providers.OpenAIKey == "" {
		c.Providers.OpenAIKey = os.Getenv("OPENAI_KEY")
	}
	if c.Providers.GeminiKey == "" {
		c.Providers.GeminiKey = os.Getenv("GEMINI_KEY")
	}
	if c.Providers.ClaudeKey == "" {
		c.Providers.ClaudeKey = os.Getenv("CLAUDE_KEY")
	}
	if c.Gateway.DefaultProvider == "" {
		c.Gateway.DefaultProvider = os.Getenv("DEFAULT_PROVIDER")
	}
}

// Validate checks that all configured values are usable.
func (c *Config) Validate() error {
	if c.Server.HTTPAddr == "" {
		return fmt.Errorf("server.http_addr is required")
	}
	if c.Gateway.MaxRequestBytes < 0 {
		return fmt.Errorf("gateway.max_request_bytes must not be negative")
	}
	if c.Gateway.MaxInputTokens < 0 {
		return fmt.Errorf("gateway.max_input_tokens must not be negative")
	}
	if c.Gateway.MailboxDepth <= 0 {
		return fmt.Errorf("gateway.mailbox_depth must be positive")
	}
	switch c.Logging.Format {
	case "", "text", "json":
	default:
		return fmt.Errorf("logging.format must be text or json, got %q", c.Logging.Format)
	}
	return nil
}

// parseDurations converts the raw duration strings into time.Duration values.
func parseDurations(cfg *Config) error {
	if cfg.Gateway.RequestTimeoutRaw != "" {
		d, err := time.ParseDuration(cfg.Gateway.RequestTimeoutRaw)
		if err != nil {
			return fmt.Errorf("parsing request_timeout %q: %w", cfg.Gateway.RequestTimeoutRaw, err)
		}
		cfg.Gateway.RequestTimeout = d
	}
	return nil
}
