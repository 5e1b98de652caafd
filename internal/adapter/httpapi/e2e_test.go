package httpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agent-service/internal/adapter/llm"
	"agent-service/internal/adapter/tool"
	"agent-service/internal/domain"
	"agent-service/internal/infra/config"
	"agent-service/internal/usecase"
)

// fakeAzure plays a deployment that first asks for http_search and then
// answers with summary once a tool message is present.
func fakeAzure(t *testing.T, summary string) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		if r.URL.Path != "/openai/deployments/gpt40/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.Header.Get("api-key") != "test-key" {
			t.Errorf("missing api-key header")
		}
		var req struct {
			Messages []struct {
				Role    string `json:"role"`
				Content string `json:"content"`
			} `json:"messages"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}

		var toolContent string
		var userQuery string
		for _, m := range req.Messages {
			switch m.Role {
			case "tool":
				toolContent = m.Content
			case "user":
				userQuery = m.Content
			}
		}

		w.Header().Set("Content-Type", "application/json")
		if toolContent == "" {
			args, _ := json.Marshal(map[string]string{"q": userQuery})
			fmt.Fprintf(w, `{"id":"c1","choices":[{"index":0,"finish_reason":"tool_calls","message":{"role":"assistant","content":null,"tool_calls":[{"id":"call_1","type":"function","function":{"name":"http_search","arguments":%q}}]}}],"usage":{"prompt_tokens":50,"completion_tokens":10,"total_tokens":60}}`, string(args))
			return
		}
		if toolContent != "foo bar baz" {
			t.Errorf("tool content = %q", toolContent)
		}
		fmt.Fprintf(w, `{"id":"c2","choices":[{"index":0,"finish_reason":"stop","message":{"role":"assistant","content":%q}}],"usage":{"prompt_tokens":70,"completion_tokens":5,"total_tokens":75}}`, summary)
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

func buildStack(t *testing.T, searchURL, llmURL string, strict bool) (*Server, *Metrics) {
	t.Helper()
	logger := testLogger()

	fetcher := tool.NewHTTPSearchFetcher(searchURL, 2*time.Second, logger)
	registry := tool.NewRegistry(logger)
	require.NoError(t, registry.Register(tool.NewHTTPSearchTool(fetcher, logger)))

	provider, err := llm.NewProvider(config.LLMConfig{
		Model:      "azure/gpt40",
		APIKey:     "test-key",
		APIBase:    llmURL,
		APIVersion: "2024-02-01",
	}, logger)
	require.NoError(t, err)

	metrics := &Metrics{}
	runner := usecase.NewRunner(usecase.RunnerDeps{
		LLM:      provider,
		Tools:    registry,
		Persona:  domain.AgentPersona{Role: "Generative AI Researcher", Goal: "Summarize the latest generative AI news"},
		Logger:   logger,
		Recorder: metrics,
	})

	srv := NewServer(Deps{
		Runner:       runner,
		Tools:        registry,
		Metrics:      metrics,
		Logger:       logger,
		Config:       config.ServerConfig{Addr: "127.0.0.1:0", StrictStatus: strict},
		AgentTimeout: 5 * time.Second,
	})
	return srv, metrics
}

func startServer(t *testing.T, srv *Server) string {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, srv.Start(ctx))
	t.Cleanup(func() {
		cancel()
		assert.NoError(t, srv.Stop(context.Background()))
		assert.NoError(t, srv.Wait())
	})
	return "http://" + srv.BoundAddr()
}

func getJSON(t *testing.T, url string) (int, map[string]any) {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	var out map[string]any
	require.NoError(t, json.Unmarshal(body, &out), "body: %s", body)
	return resp.StatusCode, out
}

func TestE2E_SearchAndSummarize(t *testing.T) {
	search := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/search", r.URL.Path)
		assert.Equal(t, "generative AI news", r.URL.Query().Get("q"))
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"results":"foo bar baz"}`)
	}))
	defer search.Close()
	azure, llmCalls := fakeAzure(t, "Foo Bar Baz happened.")

	srv, metrics := buildStack(t, search.URL, azure.URL, false)
	base := startServer(t, srv)

	resp, err := http.Get(base + "/agent?q=generative%20AI%20news")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"query":"generative AI news","summary":"Foo Bar Baz happened."}`, string(body))
	assert.EqualValues(t, 2, llmCalls.Load())
	assert.EqualValues(t, 1, metrics.ToolCallsTotal.Load())
	assert.EqualValues(t, 135, metrics.TokensTotal.Load())
}

func refusedURL(t *testing.T) string {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := l.Addr().String()
	require.NoError(t, l.Close())
	return "http://" + addr
}

func TestE2E_SearchRefused(t *testing.T) {
	azure, _ := fakeAzure(t, "unused")
	srv, metrics := buildStack(t, refusedURL(t), azure.URL, false)
	base := startServer(t, srv)

	start := time.Now()
	status, body := getJSON(t, base+"/agent?q=generative%20AI%20news")

	assert.Less(t, time.Since(start), 5*time.Second)
	assert.Equal(t, http.StatusInternalServerError, status)
	assert.Contains(t, body["detail"], "search service unavailable")
	assert.Equal(t, string(domain.CodeSearchUnavailable), body["code"])
	assert.EqualValues(t, 1, metrics.SearchFailures.Load())
}

func TestE2E_SearchRefusedStrict(t *testing.T) {
	azure, _ := fakeAzure(t, "unused")
	srv, _ := buildStack(t, refusedURL(t), azure.URL, true)
	base := startServer(t, srv)

	status, body := getJSON(t, base+"/agent?q=news")

	assert.Equal(t, http.StatusServiceUnavailable, status)
	assert.Equal(t, string(domain.CodeSearchUnavailable), body["code"])
}

func TestE2E_SearchDownstreamError(t *testing.T) {
	search := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	}))
	defer search.Close()
	azure, _ := fakeAzure(t, "unused")
	srv, _ := buildStack(t, search.URL, azure.URL, true)
	base := startServer(t, srv)

	status, body := getJSON(t, base+"/agent?q=news")

	assert.Equal(t, http.StatusBadGateway, status)
	assert.Equal(t, string(domain.CodeSearchStatus), body["code"])
	assert.Contains(t, body["detail"], "HTTP 503")
}

func TestE2E_AgentDeadlineDuringSearch(t *testing.T) {
	release := make(chan struct{})
	search := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer search.Close()
	defer close(release)
	azure, _ := fakeAzure(t, "unused")
	srv, metrics := buildStack(t, search.URL, azure.URL, true)
	srv.deps.AgentTimeout = 150 * time.Millisecond
	base := startServer(t, srv)

	status, body := getJSON(t, base+"/agent?q=news")

	assert.Equal(t, http.StatusGatewayTimeout, status)
	assert.Equal(t, string(domain.CodeTimeout), body["code"])
	assert.Zero(t, metrics.SearchFailures.Load())
}

func TestE2E_MissingQuery(t *testing.T) {
	azure, calls := fakeAzure(t, "unused")
	srv, _ := buildStack(t, refusedURL(t), azure.URL, false)
	base := startServer(t, srv)

	status, body := getJSON(t, base+"/agent")

	assert.Equal(t, http.StatusUnprocessableEntity, status)
	assert.Equal(t, missingQueryDetail, body["detail"])
	assert.Zero(t, calls.Load())
}

func TestServer_StopWithoutStart(t *testing.T) {
	srv := NewServer(Deps{Runner: &stubRunner{}, Tools: stubTools{}})
	assert.NoError(t, srv.Stop(context.Background()))
}

func TestServer_StartBadAddr(t *testing.T) {
	srv := NewServer(Deps{Runner: &stubRunner{}, Tools: stubTools{}, Logger: testLogger(), Config: config.ServerConfig{Addr: "256.0.0.1:http-nope"}})
	assert.Error(t, srv.Start(context.Background()))
}
