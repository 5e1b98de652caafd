package llm

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"agent-service/internal/domain"
	"agent-service/internal/infra/config"
)

// AzureOpenAIProvider implements domain.LLMProvider for an Azure OpenAI
// deployment:
//
//	POST {api_base}/openai/deployments/{deployment}/chat/completions?api-version={v}
//
// Missing credentials do not prevent construction; Chat reports them.
type AzureOpenAIProvider struct {
	deployment string
	apiKey     string
	apiBase    string
	apiVersion string
	client     *http.Client
	logger     *slog.Logger
}

// NewAzureOpenAIProvider creates a provider for the deployment named by
// cfg.ModelName().
func NewAzureOpenAIProvider(cfg config.LLMConfig, logger *slog.Logger) *AzureOpenAIProvider {
	return &AzureOpenAIProvider{
		deployment: cfg.ModelName(),
		apiKey:     cfg.APIKey,
		apiBase:    strings.TrimRight(cfg.APIBase, "/"),
		apiVersion: cfg.APIVersion,
		client:     NewHTTPClient(cfg),
		logger:     logger,
	}
}

// Chat implements domain.LLMProvider. The deployment selects the model, so
// req.Model is not sent.
func (p *AzureOpenAIProvider) Chat(ctx context.Context, req domain.ChatRequest) (*domain.ChatResponse, error) {
	endpoint, err := p.endpoint()
	if err != nil {
		return nil, err
	}
	if p.apiKey == "" {
		return nil, domain.NewDomainError("AzureOpenAIProvider.Chat", domain.ErrAuthInvalid, "AZURE_API_KEY is not configured")
	}

	req.Model = ""
	headers := map[string]string{"api-key": p.apiKey}
	return chatCompletion(ctx, p.client, p.logger, p.Name(), endpoint, headers, req)
}

// Name implements domain.LLMProvider.
func (p *AzureOpenAIProvider) Name() string { return "azure" }

// endpoint builds the chat completions URL, or names the missing setting.
func (p *AzureOpenAIProvider) endpoint() (string, error) {
	const op = "AzureOpenAIProvider.Chat"
	switch {
	case p.apiBase == "":
		return "", domain.NewDomainError(op, domain.ErrProviderError, "AZURE_API_BASE is not configured")
	case p.apiVersion == "":
		return "", domain.NewDomainError(op, domain.ErrProviderError, "AZURE_API_VERSION is not configured")
	case p.deployment == "":
		return "", domain.NewDomainError(op, domain.ErrProviderError, "deployment name is empty")
	}
	return fmt.Sprintf("%s/openai/deployments/%s/chat/completions?api-version=%s",
		p.apiBase, url.PathEscape(p.deployment), url.QueryEscape(p.apiVersion)), nil
}

// Endpoint returns the chat completions URL, or "" when it cannot be built.
func (p *AzureOpenAIProvider) Endpoint() string {
	u, err := p.endpoint()
	if err != nil {
		return ""
	}
	return u
}
