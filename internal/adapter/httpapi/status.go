package httpapi

import (
	"net/http"
	"time"

	"agent-service/internal/domain"
)

// StatusResponse is the JSON body returned by GET /api/v1/status.
type StatusResponse struct {
	Service  ServiceStatus `json:"service"`
	LLM      LLMStatus     `json:"llm"`
	Search   SearchStatus  `json:"search"`
	Requests RequestStatus `json:"requests"`
	Tools    ToolStatus    `json:"tools"`
}

// ServiceStatus holds service overview info.
type ServiceStatus struct {
	Name          string `json:"name"`
	Version       string `json:"version"`
	UptimeSeconds int64  `json:"uptime_seconds"`
}

// LLMStatus identifies the configured model.
type LLMStatus struct {
	Provider string `json:"provider"`
	Model    string `json:"model"`
}

// SearchStatus identifies the downstream search service.
type SearchStatus struct {
	BaseURL  string `json:"base_url"`
	Failures int64  `json:"failures"`
}

// RequestStatus holds /agent request counts.
type RequestStatus struct {
	Total  int64 `json:"total"`
	Errors int64 `json:"errors"`
}

// ToolStatus holds tool usage stats.
type ToolStatus struct {
	Registered  []string `json:"registered"`
	CallsTotal  int64    `json:"calls_total"`
	ErrorsTotal int64    `json:"errors_total"`
}

// statusHandler returns an HTTP handler for GET /api/v1/status.
func statusHandler(info Info, startTime time.Time, metrics *Metrics, tools domain.ToolExecutor) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed", domain.CodeInvalidInput)
			return
		}

		schemas := tools.Schemas()
		names := make([]string, 0, len(schemas))
		for _, s := range schemas {
			names = append(names, s.Name)
		}

		writeJSON(w, http.StatusOK, StatusResponse{
			Service: ServiceStatus{
				Name:          info.Name,
				Version:       info.Version,
				UptimeSeconds: int64(time.Since(startTime).Seconds()),
			},
			LLM: LLMStatus{
				Provider: info.Provider,
				Model:    info.Model,
			},
			Search: SearchStatus{
				BaseURL:  info.SearchURL,
				Failures: metrics.SearchFailures.Load(),
			},
			Requests: RequestStatus{
				Total:  metrics.RequestsTotal.Load(),
				Errors: metrics.RequestErrors.Load(),
			},
			Tools: ToolStatus{
				Registered:  names,
				CallsTotal:  metrics.ToolCallsTotal.Load(),
				ErrorsTotal: metrics.ToolErrorsTotal.Load(),
			},
		})
	}
}
