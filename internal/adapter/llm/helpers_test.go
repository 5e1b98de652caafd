package llm

import (
	"errors"
	"net/http"
	"strings"
	"testing"

	"agent-service/internal/domain"
)

func TestMapHTTPError(t *testing.T) {
	tests := []struct {
		status int
		want   error
	}{
		{http.StatusTooManyRequests, domain.ErrRateLimit},
		{http.StatusUnauthorized, domain.ErrAuthInvalid},
		{http.StatusForbidden, domain.ErrAuthInvalid},
		{http.StatusRequestEntityTooLarge, domain.ErrContextOverflow},
		{http.StatusInternalServerError, domain.ErrProviderError},
		{http.StatusBadGateway, domain.ErrProviderError},
		{http.StatusServiceUnavailable, domain.ErrProviderError},
		{http.StatusBadRequest, domain.ErrProviderError},
		{http.StatusNotFound, domain.ErrProviderError},
	}
	for _, tt := range tests {
		err := mapHTTPError(tt.status, []byte(`{"error":"x"}`))
		if !errors.Is(err, tt.want) {
			t.Errorf("status %d: got %v, want %v", tt.status, err, tt.want)
		}
	}
}

func TestMapHTTPErrorIncludesBody(t *testing.T) {
	err := mapHTTPError(http.StatusBadRequest, []byte(`  {"error":"deployment not found"}  `))
	if !strings.Contains(err.Error(), `API error 400: {"error":"deployment not found"}`) {
		t.Errorf("error = %q", err)
	}
}

func TestMapHTTPErrorTruncatesBody(t *testing.T) {
	err := mapHTTPError(http.StatusInternalServerError, []byte(strings.Repeat("x", 10*maxErrorDetail)))
	if len(err.Error()) > 2*maxErrorDetail {
		t.Errorf("error message too long: %d bytes", len(err.Error()))
	}
}
