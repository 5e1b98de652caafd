package tool

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"agent-service/internal/domain"
)

func newSearchServer(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv
}

func TestHTTPSearchFetcher_Success(t *testing.T) {
	srv := newSearchServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			t.Errorf("method = %s, want GET", r.Method)
		}
		if r.URL.Path != "/search" {
			t.Errorf("path = %q, want /search", r.URL.Path)
		}
		if got := r.URL.Query().Get("q"); got != "generative AI news" {
			t.Errorf("q = %q", got)
		}
		if got := r.Header.Get("Accept"); got != "application/json" {
			t.Errorf("Accept = %q", got)
		}
		fmt.Fprint(w, `{"results":"foo bar baz"}`)
	})

	f := NewHTTPSearchFetcher(srv.URL+"/", 5*time.Second, nopLogger())
	if f.BaseURL() != srv.URL {
		t.Errorf("BaseURL = %q, want trailing slash trimmed", f.BaseURL())
	}

	res, err := f.Fetch(context.Background(), "generative AI news")
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if res.Text() != "foo bar baz" {
		t.Errorf("Text = %q, want %q", res.Text(), "foo bar baz")
	}
}

func TestHTTPSearchFetcher_ResultShapes(t *testing.T) {
	tests := []struct {
		name, body, want string
	}{
		{"list", `{"results":[{"title":"a"},{"title":"b"}],"took":3}`, `[{"title":"a"},{"title":"b"}]`},
		{"object", `{"results":{"count":2}}`, `{"count":2}`},
		{"null", `{"results":null}`, "null"},
		{"empty string", `{"results":""}`, ""},
		{"unicode", `{"results":"café"}`, "café"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newSearchServer(t, func(w http.ResponseWriter, r *http.Request) {
				fmt.Fprint(w, tt.body)
			})
			res, err := NewHTTPSearchFetcher(srv.URL, time.Second, nopLogger()).Fetch(context.Background(), "x")
			if err != nil {
				t.Fatalf("Fetch: %v", err)
			}
			if res.Text() != tt.want {
				t.Errorf("Text = %q, want %q", res.Text(), tt.want)
			}
		})
	}
}

func TestHTTPSearchFetcher_Malformed(t *testing.T) {
	tests := []struct {
		name, body string
	}{
		{"missing results", `{"items":[]}`},
		{"not json", `<html>oops</html>`},
		{"array body", `["a","b"]`},
		{"null body", `null`},
		{"empty body", ``},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newSearchServer(t, func(w http.ResponseWriter, r *http.Request) {
				fmt.Fprint(w, tt.body)
			})
			_, err := NewHTTPSearchFetcher(srv.URL, time.Second, nopLogger()).Fetch(context.Background(), "x")
			if !errors.Is(err, domain.ErrMalformedResponse) {
				t.Fatalf("err = %v, want ErrMalformedResponse", err)
			}
			var se *domain.SearchError
			if !errors.As(err, &se) || se.URL != srv.URL+"/search" {
				t.Errorf("SearchError = %+v", se)
			}
		})
	}
}

func TestHTTPSearchFetcher_Non2xx(t *testing.T) {
	srv := newSearchServer(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	})

	_, err := NewHTTPSearchFetcher(srv.URL, time.Second, nopLogger()).Fetch(context.Background(), "x")
	if !errors.Is(err, domain.ErrSearchStatus) {
		t.Fatalf("err = %v, want ErrSearchStatus", err)
	}
	var se *domain.SearchError
	if !errors.As(err, &se) {
		t.Fatalf("err type = %T", err)
	}
	if se.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("StatusCode = %d, want 503", se.StatusCode)
	}
	if !strings.Contains(err.Error(), "overloaded") {
		t.Errorf("error should carry the body snippet: %v", err)
	}
}

func TestHTTPSearchFetcher_ConnectionRefused(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := NewHTTPSearchFetcher(url, time.Second, nopLogger()).Fetch(context.Background(), "x")
	if !errors.Is(err, domain.ErrSearchUnavailable) {
		t.Fatalf("err = %v, want ErrSearchUnavailable", err)
	}
}

func TestHTTPSearchFetcher_Timeout(t *testing.T) {
	release := make(chan struct{})
	srv := newSearchServer(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	})
	defer close(release)

	start := time.Now()
	_, err := NewHTTPSearchFetcher(srv.URL, 50*time.Millisecond, nopLogger()).Fetch(context.Background(), "x")
	if !errors.Is(err, domain.ErrSearchUnavailable) {
		t.Fatalf("err = %v, want ErrSearchUnavailable", err)
	}
	if time.Since(start) > 2*time.Second {
		t.Error("fetch was not bounded by the client timeout")
	}
}

func TestHTTPSearchFetcher_ContextCancel(t *testing.T) {
	release := make(chan struct{})
	srv := newSearchServer(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	})
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := NewHTTPSearchFetcher(srv.URL, 0, nopLogger()).Fetch(ctx, "x")
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("err = %v, want to wrap context.DeadlineExceeded", err)
	}
	if errors.Is(err, domain.ErrSearchUnavailable) {
		t.Errorf("err = %v, caller deadline must not be reported as ErrSearchUnavailable", err)
	}
	if code := domain.ErrorCodeOf(err); code != domain.CodeTimeout {
		t.Errorf("ErrorCodeOf = %s, want %s", code, domain.CodeTimeout)
	}
}

func TestHTTPSearchFetcher_BlankQuery(t *testing.T) {
	var hits atomic.Int32
	srv := newSearchServer(t, func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
	})

	_, err := NewHTTPSearchFetcher(srv.URL, time.Second, nopLogger()).Fetch(context.Background(), "  ")
	if !errors.Is(err, domain.ErrInvalidInput) {
		t.Errorf("err = %v, want ErrInvalidInput", err)
	}
	if hits.Load() != 0 {
		t.Error("blank query must not reach the search service")
	}
}

func TestHTTPSearchFetcher_OneRequestPerFetch(t *testing.T) {
	var hits atomic.Int32
	srv := newSearchServer(t, func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	})

	_, _ = NewHTTPSearchFetcher(srv.URL, time.Second, nopLogger()).Fetch(context.Background(), "x")
	if hits.Load() != 1 {
		t.Errorf("hits = %d, want exactly 1 (no retries)", hits.Load())
	}
}

func TestHTTPSearchFetcher_BodyTooLarge(t *testing.T) {
	srv := newSearchServer(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"results":"`)
		fmt.Fprint(w, strings.Repeat("a", maxSearchBodySize))
		fmt.Fprint(w, `"}`)
	})

	_, err := NewHTTPSearchFetcher(srv.URL, 5*time.Second, nopLogger()).Fetch(context.Background(), "x")
	if !errors.Is(err, domain.ErrMalformedResponse) {
		t.Errorf("err = %v, want ErrMalformedResponse", err)
	}
}
