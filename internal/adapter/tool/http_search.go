package tool

import (
	"context"
	"encoding/json"
	"log/slog"

	"go.opentelemetry.io/otel/trace"

	"agent-service/internal/domain"
	"agent-service/internal/infra/tracer"
)

// HTTPSearchDescriptor identifies the search capability to the model.
var HTTPSearchDescriptor = domain.ToolDescriptor{
	Name:        "http_search",
	Description: "Fetch raw search results via HTTP from the local Search Service",
}

var httpSearchSchema = json.RawMessage(`{
	"type": "object",
	"properties": {
		"q": {
			"type": "string",
			"minLength": 1,
			"description": "The search query"
		}
	},
	"required": ["q"]
}`)

// HTTPSearchTool exposes a SearchFetcher to the model as "http_search".
type HTTPSearchTool struct {
	fetcher domain.SearchFetcher
	logger  *slog.Logger
}

// NewHTTPSearchTool creates the http_search tool.
func NewHTTPSearchTool(fetcher domain.SearchFetcher, logger *slog.Logger) *HTTPSearchTool {
	return &HTTPSearchTool{fetcher: fetcher, logger: logger}
}

func (t *HTTPSearchTool) Name() string        { return HTTPSearchDescriptor.Name }
func (t *HTTPSearchTool) Description() string { return HTTPSearchDescriptor.Description }

func (t *HTTPSearchTool) Schema() domain.ToolSchema {
	return domain.ToolSchema{
		Name:        t.Name(),
		Description: t.Description(),
		Parameters:  httpSearchSchema,
	}
}

type httpSearchParams struct {
	Q string `json:"q"`
}

// Execute fetches results for params.q and returns them as text. Fetch
// failures are returned as errors so the whole run fails.
func (t *HTTPSearchTool) Execute(ctx context.Context, params json.RawMessage) (*domain.ToolResult, error) {
	return Execute(ctx, "tool.http_search", t.logger, params,
		func(ctx context.Context, span trace.Span, p httpSearchParams) (any, error) {
			if err := RequireField("q", p.Q); err != nil {
				return nil, err
			}
			span.SetAttributes(tracer.StringAttr("search.query", p.Q))

			result, err := t.fetcher.Fetch(ctx, p.Q)
			if err != nil {
				return nil, Fatal(err)
			}
			return result.Text(), nil
		},
	)
}
