package tool

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel/trace"

	"agent-service/internal/domain"
	"agent-service/internal/infra/tracer"
)

const (
	maxSearchBodySize   = 4 << 20 // 4 MiB
	maxErrorBodySnippet = 512
)

// HTTPSearchFetcher retrieves raw results from the Search Service with
// GET {base}/search?q=<query>. It never caches, retries or rewrites results.
type HTTPSearchFetcher struct {
	client  *http.Client
	baseURL string
	logger  *slog.Logger
}

// NewHTTPSearchFetcher creates a fetcher for the service at baseURL. A
// timeout <= 0 leaves the client unbounded; the request context still applies.
func NewHTTPSearchFetcher(baseURL string, timeout time.Duration, logger *slog.Logger) *HTTPSearchFetcher {
	if timeout < 0 {
		timeout = 0
	}
	return &HTTPSearchFetcher{
		client:  &http.Client{Timeout: timeout},
		baseURL: strings.TrimRight(baseURL, "/"),
		logger:  logger,
	}
}

// BaseURL returns the configured Search Service base URL.
func (f *HTTPSearchFetcher) BaseURL() string { return f.baseURL }

// Fetch implements domain.SearchFetcher.
func (f *HTTPSearchFetcher) Fetch(ctx context.Context, query string) (domain.SearchResult, error) {
	if strings.TrimSpace(query) == "" {
		return domain.SearchResult{}, domain.NewDomainError("HTTPSearchFetcher.Fetch", domain.ErrInvalidInput, "query must not be empty")
	}

	endpoint := f.baseURL + "/search"
	ctx, span := tracer.StartSpan(ctx, "search.fetch",
		trace.WithAttributes(
			tracer.StringAttr("search.url", endpoint),
			tracer.IntAttr("search.query_len", len(query)),
		),
	)
	defer span.End()

	result, err := f.fetch(ctx, endpoint, query)
	if err != nil {
		tracer.RecordError(span, err)
		f.logger.WarnContext(ctx, "search fetch failed", "url", endpoint, "error", err)
		return domain.SearchResult{}, err
	}
	tracer.SetOK(span)
	return result, nil
}

func (f *HTTPSearchFetcher) fetch(ctx context.Context, endpoint, query string) (domain.SearchResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return domain.SearchResult{}, &domain.SearchError{Kind: domain.ErrSearchUnavailable, URL: endpoint, Err: err}
	}
	req.URL.RawQuery = url.Values{"q": {query}}.Encode()
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := f.client.Do(req)
	if err != nil {
		// The caller's deadline is not a property of the search service.
		if ctxErr := ctx.Err(); ctxErr != nil {
			return domain.SearchResult{}, domain.WrapOp("search.fetch", ctxErr)
		}
		return domain.SearchResult{}, &domain.SearchError{Kind: domain.ErrSearchUnavailable, URL: endpoint, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodySnippet))
		var cause error
		if s := strings.TrimSpace(string(snippet)); s != "" {
			cause = errors.New(s)
		}
		return domain.SearchResult{}, &domain.SearchError{
			Kind:       domain.ErrSearchStatus,
			StatusCode: resp.StatusCode,
			URL:        endpoint,
			Err:        cause,
		}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxSearchBodySize+1))
	if err != nil {
		return domain.SearchResult{}, &domain.SearchError{Kind: domain.ErrSearchUnavailable, URL: endpoint, Err: fmt.Errorf("read response: %w", err)}
	}
	if len(body) > maxSearchBodySize {
		return domain.SearchResult{}, &domain.SearchError{
			Kind: domain.ErrMalformedResponse,
			URL:  endpoint,
			Err:  fmt.Errorf("response body exceeds %d bytes", maxSearchBodySize),
		}
	}

	raw, err := extractResults(body)
	if err != nil {
		return domain.SearchResult{}, &domain.SearchError{Kind: domain.ErrMalformedResponse, URL: endpoint, Err: err}
	}

	f.logger.DebugContext(ctx, "search fetch completed",
		"url", endpoint,
		"status", resp.StatusCode,
		"bytes", len(body),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return domain.NewSearchResult(raw), nil
}

// extractResults returns the raw value at the top-level "results" key.
func extractResults(body []byte) (json.RawMessage, error) {
	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, fmt.Errorf("decode body: %w", err)
	}
	raw, ok := envelope["results"]
	if !ok {
		return nil, errors.New(`missing "results" field`)
	}
	return raw, nil
}
