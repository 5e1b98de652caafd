package domain

import (
	"bytes"
	"context"
	"encoding/json"
)

// SearchResult is the opaque value found under "results" in a search service
// response. It is passed through untouched.
type SearchResult struct {
	raw json.RawMessage
}

// NewSearchResult wraps a raw JSON value.
func NewSearchResult(raw json.RawMessage) SearchResult {
	return SearchResult{raw: raw}
}

// Raw returns the JSON value as received.
func (r SearchResult) Raw() json.RawMessage { return r.raw }

// Text returns a JSON string value unquoted and any other value as compact JSON.
func (r SearchResult) Text() string {
	trimmed := bytes.TrimSpace(r.raw)
	if len(trimmed) == 0 {
		return ""
	}
	if trimmed[0] == '"' {
		var s string
		if err := json.Unmarshal(trimmed, &s); err == nil {
			return s
		}
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, trimmed); err != nil {
		return string(trimmed)
	}
	return buf.String()
}

// SearchFetcher retrieves raw search results for a query from a search service.
type SearchFetcher interface {
	Fetch(ctx context.Context, query string) (SearchResult, error)
}
