package config

import (
	"fmt"
	"net"
	"net/url"
	"strings"
)

// ValidationError accumulates config validation errors.
type ValidationError struct {
	Errors []string
}

func (v *ValidationError) Error() string {
	return "config validation failed:\n  - " + strings.Join(v.Errors, "\n  - ")
}

// HasErrors reports whether any validation errors have been recorded.
func (v *ValidationError) HasErrors() bool {
	return len(v.Errors) > 0
}

// Add records a formatted validation error.
func (v *ValidationError) Add(format string, args ...interface{}) {
	v.Errors = append(v.Errors, fmt.Sprintf(format, args...))
}

// Validate checks cfg for structural correctness. It returns a *ValidationError
// when one or more problems are found, allowing callers to inspect all issues.
//
// Missing LLM credentials are not an error here: the service must start with
// an empty environment, and the provider reports them per request.
func Validate(cfg *Config) error {
	ve := &ValidationError{}
	validateServer(cfg, ve)
	validateSearch(cfg, ve)
	validateLLM(cfg, ve)
	validateAgent(cfg, ve)
	validateLogger(cfg, ve)
	validateTracer(cfg, ve)
	if ve.HasErrors() {
		return ve
	}
	return nil
}

func validateServer(cfg *Config, ve *ValidationError) {
	if cfg.Server.Addr == "" {
		ve.Add("server.addr must not be empty")
	} else if _, _, err := net.SplitHostPort(cfg.Server.Addr); err != nil {
		ve.Add("server.addr %q is not a valid host:port", cfg.Server.Addr)
	}
	// net/http drops the connection once WriteTimeout passes, so a run that
	// outlives it would never get its error envelope.
	if cfg.Server.WriteTimeout != 0 && cfg.Server.WriteTimeout <= cfg.Agent.Timeout {
		ve.Add("server.write_timeout (%s) must exceed agent.timeout (%s)", cfg.Server.WriteTimeout, cfg.Agent.Timeout)
	}
	if cfg.Server.RateLimit.Enabled {
		if cfg.Server.RateLimit.RequestsPerMin <= 0 {
			ve.Add("server.rate_limit.requests_per_min must be > 0 when rate limiting is enabled")
		}
		if cfg.Server.RateLimit.Burst <= 0 {
			ve.Add("server.rate_limit.burst must be > 0 when rate limiting is enabled")
		}
	}
}

func validateSearch(cfg *Config, ve *ValidationError) {
	if err := validateHTTPURL(cfg.Search.BaseURL); err != nil {
		ve.Add("search.base_url: %v", err)
	}
	if cfg.Search.Timeout <= 0 {
		ve.Add("search.timeout must be > 0")
	}
}

var validProviders = map[string]bool{
	"azure":  true,
	"openai": true,
}

func validateLLM(cfg *Config, ve *ValidationError) {
	if cfg.LLM.Model == "" || cfg.LLM.ModelName() == "" {
		ve.Add("llm.model must not be empty")
	}
	if !validProviders[cfg.LLM.Provider()] {
		ve.Add("llm.model %q has unknown provider %q (want: azure, openai)", cfg.LLM.Model, cfg.LLM.Provider())
	}
	if cfg.LLM.APIBase != "" {
		if err := validateHTTPURL(cfg.LLM.APIBase); err != nil {
			ve.Add("llm.api_base: %v", err)
		}
	}
	if cfg.LLM.Temperature < 0 || cfg.LLM.Temperature > 2 {
		ve.Add("llm.temperature must be between 0 and 2")
	}
	if cfg.LLM.MaxTokens < 0 {
		ve.Add("llm.max_tokens must be >= 0")
	}
}

func validateAgent(cfg *Config, ve *ValidationError) {
	if cfg.Agent.MaxIterations <= 0 {
		ve.Add("agent.max_iterations must be > 0")
	}
	if cfg.Agent.Timeout <= 0 {
		ve.Add("agent.timeout must be > 0")
	}
	if cfg.Agent.Role == "" {
		ve.Add("agent.role must not be empty")
	}
	if cfg.Agent.Goal == "" {
		ve.Add("agent.goal must not be empty")
	}
}

var validLogFormats = map[string]bool{
	"text": true,
	"json": true,
}

func validateLogger(cfg *Config, ve *ValidationError) {
	if !validLogFormats[strings.ToLower(cfg.Logger.Format)] {
		ve.Add("logger.format %q is invalid (want: text, json)", cfg.Logger.Format)
	}
}

var validExporters = map[string]bool{
	"":       true,
	"noop":   true,
	"stdout": true,
}

func validateTracer(cfg *Config, ve *ValidationError) {
	if !validExporters[cfg.Tracer.Exporter] {
		ve.Add("tracer.exporter %q is invalid (want: noop, stdout)", cfg.Tracer.Exporter)
	}
}

func validateHTTPURL(raw string) error {
	if raw == "" {
		return fmt.Errorf("must not be empty")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%q: scheme must be http or https", raw)
	}
	if u.Host == "" {
		return fmt.Errorf("%q: missing host", raw)
	}
	return nil
}
