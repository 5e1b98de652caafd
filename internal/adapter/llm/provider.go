package llm

import (
	"fmt"
	"log/slog"

	"agent-service/internal/domain"
	"agent-service/internal/infra/config"
)

// NewProvider builds the provider selected by the "provider/model" prefix of
// cfg.Model and wraps it in a circuit breaker when enabled.
func NewProvider(cfg config.LLMConfig, logger *slog.Logger) (domain.LLMProvider, error) {
	var p domain.LLMProvider
	switch cfg.Provider() {
	case "azure":
		p = NewAzureOpenAIProvider(cfg, logger)
	case "openai":
		p = NewOpenAIProvider(cfg, logger)
	default:
		return nil, fmt.Errorf("unknown llm provider %q in model %q", cfg.Provider(), cfg.Model)
	}

	if cfg.CircuitBreaker.Enabled {
		p = NewCircuitBreakerProvider(p, cfg.CircuitBreaker, logger)
	}
	return p, nil
}

// Endpoint returns the URL a provider built by NewProvider talks to, or "".
func Endpoint(p domain.LLMProvider) string {
	if u, ok := p.(interface{ Unwrap() domain.LLMProvider }); ok {
		p = u.Unwrap()
	}
	if e, ok := p.(interface{ Endpoint() string }); ok {
		return e.Endpoint()
	}
	return ""
}

var (
	_ domain.LLMProvider = (*OpenAIProvider)(nil)
	_ domain.LLMProvider = (*AzureOpenAIProvider)(nil)
)
