package httpapi

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel/trace"

	"agent-service/internal/domain"
	"agent-service/internal/infra/tracer"
)

// ErrorResponse is the JSON body of every failed request.
type ErrorResponse struct {
	Detail string           `json:"detail"`
	Code   domain.ErrorCode `json:"code"`
}

const missingQueryDetail = "query parameter 'q' is required"

// agentHandler serves GET /agent?q=.
type agentHandler struct {
	runner  domain.AgentRunner
	timeout time.Duration
	strict  bool
	metrics *Metrics
	logger  *slog.Logger
}

func (h *agentHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		writeError(w, http.StatusMethodNotAllowed, "method not allowed", domain.CodeInvalidInput)
		return
	}

	ctx, span := tracer.StartSpan(r.Context(), "http.agent")
	defer span.End()

	h.metrics.RequestsTotal.Add(1)

	query := r.URL.Query().Get("q")
	if strings.TrimSpace(query) == "" {
		h.metrics.RequestErrors.Add(1)
		tracer.RecordError(span, domain.ErrInvalidInput)
		writeError(w, http.StatusUnprocessableEntity, missingQueryDetail, domain.CodeInvalidInput)
		return
	}
	span.SetAttributes(tracer.IntAttr("agent.query_len", len(query)))

	if h.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.timeout)
		defer cancel()
	}

	resp, err := h.runner.Run(ctx, query)
	if err != nil {
		h.metrics.RequestErrors.Add(1)
		tracer.RecordError(span, err)
		status := domain.HTTPStatusOf(err, h.strict)
		code := domain.ErrorCodeOf(err)
		span.SetAttributes(tracer.StringAttr("error.code", string(code)))
		h.logger.ErrorContext(ctx, "agent request failed",
			"error", err,
			"code", code,
			"status", status,
		)
		writeError(w, status, err.Error(), code)
		return
	}

	tracer.SetOK(span)
	span.AddEvent("agent.completed", trace.WithAttributes(tracer.IntAttr("summary_len", len(resp.Summary))))
	writeJSON(w, http.StatusOK, resp)
}

// healthHandler serves GET /health.
func healthHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed", domain.CodeInvalidInput)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// notFoundHandler answers unknown paths with the error envelope.
func notFoundHandler(w http.ResponseWriter, _ *http.Request) {
	writeError(w, http.StatusNotFound, "not found", domain.CodeNotFound)
}

func writeError(w http.ResponseWriter, status int, detail string, code domain.ErrorCode) {
	writeJSON(w, status, ErrorResponse{Detail: detail, Code: code})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
