package httpapi

import (
	"errors"
	"fmt"
	"net/http"
	"runtime"
	"sync/atomic"
	"time"

	"agent-service/internal/domain"
)

// Metrics tracks counters for the status API and Prometheus metrics. It also
// serves as the runner's RunRecorder.
type Metrics struct {
	RequestsTotal   atomic.Int64
	RequestErrors   atomic.Int64
	RunsTotal       atomic.Int64
	RunErrors       atomic.Int64
	SearchFailures  atomic.Int64
	ToolCallsTotal  atomic.Int64
	ToolErrorsTotal atomic.Int64
	TokensTotal     atomic.Int64
	runNanos        atomic.Int64
}

// RecordRun implements usecase.RunRecorder.
func (m *Metrics) RecordRun(d time.Duration, usage domain.Usage, err error) {
	m.RunsTotal.Add(1)
	m.runNanos.Add(int64(d))
	m.TokensTotal.Add(int64(usage.TotalTokens))
	if err != nil {
		m.RunErrors.Add(1)
		if isSearchFailure(err) {
			m.SearchFailures.Add(1)
		}
	}
}

// RecordToolCall implements usecase.RunRecorder.
func (m *Metrics) RecordToolCall(_ string, err error) {
	m.ToolCallsTotal.Add(1)
	if err != nil {
		m.ToolErrorsTotal.Add(1)
	}
}

// RunSeconds returns the cumulative time spent in agent runs.
func (m *Metrics) RunSeconds() float64 {
	return time.Duration(m.runNanos.Load()).Seconds()
}

func isSearchFailure(err error) bool {
	return errors.Is(err, domain.ErrSearchUnavailable) ||
		errors.Is(err, domain.ErrSearchStatus) ||
		errors.Is(err, domain.ErrMalformedResponse)
}

// metricsHandler returns an HTTP handler for GET /metrics in Prometheus text format.
// This uses the lightweight text format to avoid pulling in the full prometheus client.
func metricsHandler(startTime time.Time, metrics *Metrics, tools domain.ToolExecutor) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed", domain.CodeInvalidInput)
			return
		}

		w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")

		writeMetric(w, "agent_service_http_requests_total", "counter", "Total /agent requests.", metrics.RequestsTotal.Load())
		writeMetric(w, "agent_service_http_request_errors_total", "counter", "Total /agent requests answered with an error.", metrics.RequestErrors.Load())
		writeMetric(w, "agent_service_runs_total", "counter", "Total agent runs.", metrics.RunsTotal.Load())
		writeMetric(w, "agent_service_run_errors_total", "counter", "Total failed agent runs.", metrics.RunErrors.Load())
		writeMetric(w, "agent_service_search_failures_total", "counter", "Agent runs aborted by a search service failure.", metrics.SearchFailures.Load())
		writeMetric(w, "agent_service_tool_calls_total", "counter", "Total tool invocations.", metrics.ToolCallsTotal.Load())
		writeMetric(w, "agent_service_tool_errors_total", "counter", "Total tool errors.", metrics.ToolErrorsTotal.Load())
		writeMetric(w, "agent_service_llm_tokens_total", "counter", "Total LLM tokens consumed.", metrics.TokensTotal.Load())

		fmt.Fprintf(w, "# HELP agent_service_run_seconds_total Cumulative agent run time.\n")
		fmt.Fprintf(w, "# TYPE agent_service_run_seconds_total counter\n")
		fmt.Fprintf(w, "agent_service_run_seconds_total %f\n", metrics.RunSeconds())

		writeMetric(w, "agent_service_tools_registered", "gauge", "Number of registered tools.", int64(len(tools.Schemas())))

		fmt.Fprintf(w, "# HELP agent_service_uptime_seconds Seconds since the service started.\n")
		fmt.Fprintf(w, "# TYPE agent_service_uptime_seconds gauge\n")
		fmt.Fprintf(w, "agent_service_uptime_seconds %.0f\n", time.Since(startTime).Seconds())

		// Go runtime metrics.
		var mem runtime.MemStats
		runtime.ReadMemStats(&mem)

		writeMetric(w, "go_goroutines", "gauge", "Number of goroutines.", int64(runtime.NumGoroutine()))
		writeMetric(w, "go_memstats_alloc_bytes", "gauge", "Bytes of allocated heap objects.", int64(mem.Alloc))
		writeMetric(w, "go_memstats_sys_bytes", "gauge", "Total bytes of memory obtained from the OS.", int64(mem.Sys))

		fmt.Fprintf(w, "# HELP go_gc_duration_seconds Total GC pause duration.\n")
		fmt.Fprintf(w, "# TYPE go_gc_duration_seconds gauge\n")
		fmt.Fprintf(w, "go_gc_duration_seconds %f\n", float64(mem.PauseTotalNs)/1e9)
	}
}

func writeMetric(w http.ResponseWriter, name, kind, help string, v int64) {
	fmt.Fprintf(w, "# HELP %s %s\n", name, help)
	fmt.Fprintf(w, "# TYPE %s %s\n", name, kind)
	fmt.Fprintf(w, "%s %d\n", name, v)
}
