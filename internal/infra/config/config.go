package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config is the top-level application configuration. It is read once at
// start-up and passed explicitly; nothing mutates it afterwards.
type Config struct {
	Server ServerConfig `yaml:"server"`
	Search SearchConfig `yaml:"search"`
	LLM    LLMConfig    `yaml:"llm"`
	Agent  AgentConfig  `yaml:"agent"`
	Logger LoggerConfig `yaml:"logger"`
	Tracer TracerConfig `yaml:"tracer"`
}

// ServerConfig holds HTTP API settings.
type ServerConfig struct {
	Addr              string          `yaml:"addr"`
	StrictStatus      bool            `yaml:"strict_status"` // map search failures to 502/503/504 instead of 500
	ReadHeaderTimeout time.Duration   `yaml:"read_header_timeout"`
	WriteTimeout      time.Duration   `yaml:"write_timeout"`
	RateLimit         RateLimitConfig `yaml:"rate_limit"`
}

// RateLimitConfig holds per-client rate limiting settings.
type RateLimitConfig struct {
	Enabled        bool     `yaml:"enabled"`
	RequestsPerMin int      `yaml:"requests_per_min"`
	Burst          int      `yaml:"burst"`
	TrustedProxies []string `yaml:"trusted_proxies,omitempty"`
}

// SearchConfig holds settings for the downstream search service.
type SearchConfig struct {
	BaseURL string        `yaml:"base_url"`
	Timeout time.Duration `yaml:"timeout"`
}

// LLMConfig holds model settings. Model uses the "provider/model" form,
// e.g. "azure/gpt40" (Azure deployment) or "openai/gpt-4o-mini".
type LLMConfig struct {
	Model          string               `yaml:"model"`
	APIKey         string               `yaml:"api_key"`
	APIBase        string               `yaml:"api_base"`
	APIVersion     string               `yaml:"api_version"`
	MaxTokens      int                  `yaml:"max_tokens,omitempty"`
	Temperature    float64              `yaml:"temperature,omitempty"`
	ConnTimeout    time.Duration        `yaml:"conn_timeout"`
	RespTimeout    time.Duration        `yaml:"resp_timeout"`
	Pool           PoolConfig           `yaml:"pool"`
	CircuitBreaker CircuitBreakerConfig `yaml:"circuit_breaker"`
}

// Provider returns the provider prefix of Model ("openai" when there is none).
func (c LLMConfig) Provider() string {
	if p, _, ok := strings.Cut(c.Model, "/"); ok {
		return strings.ToLower(p)
	}
	return "openai"
}

// ModelName returns Model without its provider prefix. For Azure this is
// the deployment name.
func (c LLMConfig) ModelName() string {
	if _, m, ok := strings.Cut(c.Model, "/"); ok {
		return m
	}
	return c.Model
}

// CircuitBreakerConfig holds circuit breaker settings for the LLM provider.
type CircuitBreakerConfig struct {
	Enabled     bool          `yaml:"enabled"`
	MaxFailures uint32        `yaml:"max_failures"`
	Timeout     time.Duration `yaml:"timeout"`
	Interval    time.Duration `yaml:"interval"`
}

// PoolConfig holds HTTP connection pool settings for the LLM provider.
type PoolConfig struct {
	MaxIdleConns        int           `yaml:"max_idle_conns"`
	MaxIdleConnsPerHost int           `yaml:"max_idle_conns_per_host"`
	MaxConnsPerHost     int           `yaml:"max_conns_per_host"`
	IdleConnTimeout     time.Duration `yaml:"idle_conn_timeout"`
}

// AgentConfig holds the agent persona and loop bounds.
type AgentConfig struct {
	Role          string        `yaml:"role"`
	Goal          string        `yaml:"goal"`
	Backstory     string        `yaml:"backstory"`
	MaxIterations int           `yaml:"max_iterations"`
	Timeout       time.Duration `yaml:"timeout"`
}

// LoggerConfig holds logging settings.
type LoggerConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// TracerConfig holds tracing settings.
type TracerConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Exporter string `yaml:"exporter"`
}

// Default values that are part of the service contract.
const (
	DefaultSearchURL = "http://localhost:8001"
	DefaultModel     = "azure/gpt40"
)

// Defaults returns a Config with sensible defaults.
func Defaults() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:              ":8000",
			ReadHeaderTimeout: 10 * time.Second,
			WriteTimeout:      150 * time.Second,
			RateLimit: RateLimitConfig{
				Enabled:        false,
				RequestsPerMin: 60,
				Burst:          10,
			},
		},
		Search: SearchConfig{
			BaseURL: DefaultSearchURL,
			Timeout: 30 * time.Second,
		},
		LLM: LLMConfig{
			Model:       DefaultModel,
			ConnTimeout: 30 * time.Second,
			RespTimeout: 120 * time.Second,
			CircuitBreaker: CircuitBreakerConfig{
				Enabled:     false,
				MaxFailures: 5,
				Timeout:     30 * time.Second,
				Interval:    60 * time.Second,
			},
		},
		Agent: AgentConfig{
			Role:          "Generative AI Researcher",
			Goal:          "Summarize the latest generative AI news",
			Backstory:     "Fetch raw search results via http_search then synthesize them.",
			MaxIterations: 10,
			Timeout:       120 * time.Second,
		},
		Logger: LoggerConfig{
			Level:  "info",
			Format: "text",
			Output: "stderr",
		},
		Tracer: TracerConfig{
			Enabled:  false,
			Exporter: "noop",
		},
	}
}

// Load builds the configuration: defaults, then the YAML file at path (a
// missing file is not an error), then the environment. A .env file in the
// working directory is loaded first; variables already set win over it.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	cfg := Defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse config: %w", err)
			}
		case os.IsNotExist(err):
		default:
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	if err := ApplyEnvOverrides(cfg); err != nil {
		return nil, err
	}

	if err := Validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// ApplyEnvOverrides maps environment variables to config fields. The
// SEARCH_SERVICE_URL and AZURE_* names are the service's public contract;
// AGENT_SERVICE_* cover the remaining settings.
func ApplyEnvOverrides(cfg *Config) error {
	if v := os.Getenv("SEARCH_SERVICE_URL"); v != "" {
		cfg.Search.BaseURL = v
	}
	if v := os.Getenv("AZURE_OPENAI_DEPLOYMENT"); v != "" {
		cfg.LLM.Model = v
	}
	if v := os.Getenv("AZURE_API_KEY"); v != "" {
		cfg.LLM.APIKey = v
	}
	if v := os.Getenv("AZURE_API_BASE"); v != "" {
		cfg.LLM.APIBase = v
	}
	if v := os.Getenv("AZURE_API_VERSION"); v != "" {
		cfg.LLM.APIVersion = v
	}

	if v := os.Getenv("AGENT_SERVICE_ADDR"); v != "" {
		cfg.Server.Addr = v
	}
	if v := os.Getenv("AGENT_SERVICE_STRICT_STATUS"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("AGENT_SERVICE_STRICT_STATUS: %w", err)
		}
		cfg.Server.StrictStatus = b
	}
	if v := os.Getenv("AGENT_SERVICE_SEARCH_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("AGENT_SERVICE_SEARCH_TIMEOUT: %w", err)
		}
		cfg.Search.Timeout = d
	}
	if v := os.Getenv("AGENT_SERVICE_LOG_LEVEL"); v != "" {
		cfg.Logger.Level = v
	}
	if v := os.Getenv("AGENT_SERVICE_LOG_FORMAT"); v != "" {
		cfg.Logger.Format = v
	}
	if v := os.Getenv("AGENT_SERVICE_TRACER_ENABLED"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("AGENT_SERVICE_TRACER_ENABLED: %w", err)
		}
		cfg.Tracer.Enabled = b
	}
	if v := os.Getenv("AGENT_SERVICE_TRACER_EXPORTER"); v != "" {
		cfg.Tracer.Exporter = v
	}
	return nil
}
