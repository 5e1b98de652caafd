package domain

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// Category sentinels.
var (
	ErrTimeout       = fmt.Errorf("operation timed out")
	ErrInvalidInput  = fmt.Errorf("invalid input")
	ErrProviderError = fmt.Errorf("provider error")
)

// Sentinel errors for the domain layer.
var (
	ErrToolNotFound    = fmt.Errorf("tool not found")
	ErrMaxIterations   = fmt.Errorf("agent reached max iterations")
	ErrConfigLoad      = fmt.Errorf("failed to load configuration")
	ErrEmptyCompletion = fmt.Errorf("model returned an empty completion")

	// Search service errors.
	ErrSearchUnavailable = fmt.Errorf("search service unavailable")
	ErrSearchStatus      = fmt.Errorf("search service error")
	ErrMalformedResponse = fmt.Errorf("malformed search response")

	// Agent errors.
	ErrAgentExecution = fmt.Errorf("agent execution failed")

	// Resilience errors.
	ErrContextOverflow = fmt.Errorf("context window exceeded")
	ErrRateLimit       = fmt.Errorf("rate limit exceeded")
	ErrAuthInvalid     = fmt.Errorf("authentication failed")
)

// DomainError wraps a sentinel error with context.
type DomainError struct {
	Op     string // operation name (e.g., "Runner.Run")
	Err    error  // underlying sentinel or wrapped error
	Detail string // human-readable detail
}

func (e *DomainError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s: %s: %s", e.Op, e.Detail, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Err)
}

func (e *DomainError) Unwrap() error { return e.Err }

// NewDomainError creates a new DomainError.
func NewDomainError(op string, err error, detail string) *DomainError {
	return &DomainError{Op: op, Err: err, Detail: detail}
}

// WrapOp adds operation context to an error using fmt.Errorf wrapping.
// Returns nil if err is nil, enabling idiomatic use: return domain.WrapOp("op", err)
func WrapOp(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", op, err)
}

// SearchError is returned by a SearchFetcher. Kind is one of
// ErrSearchUnavailable, ErrSearchStatus or ErrMalformedResponse.
type SearchError struct {
	Kind       error
	StatusCode int // set when Kind is ErrSearchStatus
	URL        string
	Err        error // underlying transport or decode error, may be nil
}

func (e *SearchError) Error() string {
	msg := e.Kind.Error()
	if e.StatusCode != 0 {
		msg = fmt.Sprintf("%s: HTTP %d", msg, e.StatusCode)
	}
	if e.URL != "" {
		msg = fmt.Sprintf("%s (%s)", msg, e.URL)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

// Unwrap exposes both the kind sentinel and the underlying cause.
func (e *SearchError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// AgentExecutionError is the single error kind surfaced by the agent runner.
// The cause stays reachable through errors.Is/As.
type AgentExecutionError struct {
	Err error
}

func (e *AgentExecutionError) Error() string {
	return fmt.Sprintf("%s: %v", ErrAgentExecution, e.Err)
}

func (e *AgentExecutionError) Unwrap() error { return e.Err }

// Is makes errors.Is(err, ErrAgentExecution) hold for every AgentExecutionError.
func (e *AgentExecutionError) Is(target error) bool { return target == ErrAgentExecution }

// NewAgentExecutionError wraps err, returning nil for nil and err itself when
// it is already an AgentExecutionError.
func NewAgentExecutionError(err error) error {
	if err == nil {
		return nil
	}
	var ae *AgentExecutionError
	if errors.As(err, &ae) {
		return err
	}
	return &AgentExecutionError{Err: err}
}

// ErrorCode is a machine-parseable error category for responses and logs.
type ErrorCode string

const (
	CodeUnknown           ErrorCode = "UNKNOWN"
	CodeNotFound          ErrorCode = "NOT_FOUND"
	CodeTimeout           ErrorCode = "TIMEOUT"
	CodeInvalidInput      ErrorCode = "INVALID_INPUT"
	CodeProviderError     ErrorCode = "PROVIDER_ERROR"
	CodeToolNotFound      ErrorCode = "TOOL_NOT_FOUND"
	CodeMaxIterations     ErrorCode = "MAX_ITERATIONS"
	CodeConfigLoad        ErrorCode = "CONFIG_LOAD"
	CodeEmptyCompletion   ErrorCode = "EMPTY_COMPLETION"
	CodeSearchUnavailable ErrorCode = "SEARCH_UNAVAILABLE"
	CodeSearchStatus      ErrorCode = "SEARCH_SERVICE_ERROR"
	CodeMalformedResponse ErrorCode = "MALFORMED_RESPONSE"
	CodeAgentExecution    ErrorCode = "AGENT_EXECUTION_FAILURE"
	CodeContextOverflow   ErrorCode = "CONTEXT_OVERFLOW"
	CodeRateLimit         ErrorCode = "RATE_LIMIT"
	CodeAuthInvalid       ErrorCode = "AUTH_INVALID"
)

// errorCodes is checked in order: specific causes before categories, and the
// agent wrapper last so that a wrapped search failure keeps its own code.
var errorCodes = []struct {
	sentinel error
	code     ErrorCode
}{
	{ErrSearchUnavailable, CodeSearchUnavailable},
	{ErrSearchStatus, CodeSearchStatus},
	{ErrMalformedResponse, CodeMalformedResponse},
	{ErrToolNotFound, CodeToolNotFound},
	{ErrMaxIterations, CodeMaxIterations},
	{ErrEmptyCompletion, CodeEmptyCompletion},
	{ErrConfigLoad, CodeConfigLoad},
	{ErrContextOverflow, CodeContextOverflow},
	{ErrRateLimit, CodeRateLimit},
	{ErrAuthInvalid, CodeAuthInvalid},
	{ErrTimeout, CodeTimeout},
	{context.DeadlineExceeded, CodeTimeout},
	{ErrInvalidInput, CodeInvalidInput},
	{ErrProviderError, CodeProviderError},
	{ErrAgentExecution, CodeAgentExecution},
}

// ErrorCodeOf returns the machine-parseable error code for the given error.
// Returns CodeUnknown if no matching sentinel is found.
func ErrorCodeOf(err error) ErrorCode {
	if err == nil {
		return CodeUnknown
	}
	for _, ec := range errorCodes {
		if errors.Is(err, ec.sentinel) {
			return ec.code
		}
	}
	return CodeUnknown
}

// HTTPStatusOf maps err to an HTTP status code. Without strict, every failure
// is reported as 500 except invalid input. With strict, search failures map to
// gateway statuses.
func HTTPStatusOf(err error, strict bool) int {
	if err == nil {
		return http.StatusOK
	}
	if errors.Is(err, ErrInvalidInput) && !errors.Is(err, ErrAgentExecution) {
		return http.StatusUnprocessableEntity
	}
	if !strict {
		return http.StatusInternalServerError
	}
	switch {
	case errors.Is(err, ErrSearchUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, ErrSearchStatus), errors.Is(err, ErrMalformedResponse):
		return http.StatusBadGateway
	case errors.Is(err, ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}
