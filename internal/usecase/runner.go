package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"strings"
	"time"

	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"agent-service/internal/domain"
	"agent-service/internal/infra/tracer"
)

// LLM retry constants.
const (
	maxLLMRetries  = 3
	baseRetryDelay = 500 * time.Millisecond
	maxRetryDelay  = 10 * time.Second

	defaultMaxIterations = 10
)

// RunRecorder receives per-run outcomes. Implementations must be safe for
// concurrent use.
type RunRecorder interface {
	RecordRun(d time.Duration, usage domain.Usage, err error)
	RecordToolCall(name string, err error)
}

// RunnerDeps holds injected dependencies for the runner.
type RunnerDeps struct {
	LLM           domain.LLMProvider
	Tools         domain.ToolExecutor
	Persona       domain.AgentPersona
	Model         string // sent as ChatRequest.Model, may be empty
	MaxIterations int
	MaxTokens     int
	Temperature   float64
	Logger        *slog.Logger
	Recorder      RunRecorder // optional, nil = no recording
}

// Runner drives the tool-calling loop for a single query. It holds no
// per-request state and is safe for concurrent use.
type Runner struct {
	deps         RunnerDeps
	systemPrompt string
	retryDelay   func(attempt int) time.Duration
}

var _ domain.AgentRunner = (*Runner)(nil)

// NewRunner creates a runner with the given dependencies.
func NewRunner(deps RunnerDeps) *Runner {
	if deps.MaxIterations <= 0 {
		deps.MaxIterations = defaultMaxIterations
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	return &Runner{
		deps:         deps,
		systemPrompt: BuildSystemPrompt(deps.Persona, deps.Tools.Schemas()),
		retryDelay:   retryBackoff,
	}
}

// BuildSystemPrompt renders the persona and the available tools.
func BuildSystemPrompt(p domain.AgentPersona, tools []domain.ToolSchema) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "You are a %s.\n", p.Role)
	fmt.Fprintf(&sb, "Your goal: %s\n", p.Goal)
	if p.Backstory != "" {
		fmt.Fprintf(&sb, "Background: %s\n", p.Backstory)
	}
	if len(tools) > 0 {
		sb.WriteString("\n## Available Tools\n")
		for _, t := range tools {
			fmt.Fprintf(&sb, "- %s: %s\n", t.Name, t.Description)
		}
		sb.WriteString("\nCall a tool to gather information before answering. ")
	} else {
		sb.WriteString("\n")
	}
	sb.WriteString("Reply with a concise summary once you have what you need.")
	return sb.String()
}

// Run answers query. Every failure is returned as a *domain.AgentExecutionError
// wrapping the cause.
func (r *Runner) Run(ctx context.Context, query string) (resp *domain.AgentResponse, err error) {
	ctx, span := tracer.StartSpan(ctx, "agent.run")
	defer span.End()

	start := time.Now()
	var total domain.Usage
	defer func() {
		if r.deps.Recorder != nil {
			r.deps.Recorder.RecordRun(time.Since(start), total, err)
		}
		if err != nil {
			tracer.RecordError(span, err)
			r.deps.Logger.WarnContext(ctx, "agent run failed",
				"error", err,
				"code", domain.ErrorCodeOf(err),
				"duration", time.Since(start),
			)
			return
		}
		tracer.SetOK(span)
	}()

	if strings.TrimSpace(query) == "" {
		return nil, domain.NewAgentExecutionError(
			domain.NewDomainError("Runner.Run", domain.ErrInvalidInput, "query is empty"))
	}

	messages := []domain.Message{
		{Role: domain.RoleSystem, Content: r.systemPrompt, Timestamp: time.Now()},
		{Role: domain.RoleUser, Content: query, Timestamp: time.Now()},
	}
	schemas := r.deps.Tools.Schemas()

	for i := 0; i < r.deps.MaxIterations; i++ {
		if err := ctx.Err(); err != nil {
			return nil, domain.NewAgentExecutionError(err)
		}
		span.AddEvent("agent.iteration", trace.WithAttributes(tracer.IntAttr("iteration", i)))

		chatReq := domain.ChatRequest{
			Model:       r.deps.Model,
			Messages:    messages,
			Tools:       schemas,
			MaxTokens:   r.deps.MaxTokens,
			Temperature: r.deps.Temperature,
		}
		chatResp, err := r.callLLMWithRetry(ctx, chatReq)
		if err != nil {
			return nil, domain.NewAgentExecutionError(err)
		}
		total.Add(chatResp.Usage)

		msg := chatResp.Message
		if msg.Role == "" {
			msg.Role = domain.RoleAssistant
		}
		messages = append(messages, msg)

		r.deps.Logger.DebugContext(ctx, "llm response",
			"iteration", i,
			"tool_calls", len(msg.ToolCalls),
			"tokens", chatResp.Usage.TotalTokens,
		)

		// No tool calls = final answer.
		if len(msg.ToolCalls) == 0 {
			summary := strings.TrimSpace(msg.Content)
			if summary == "" {
				return nil, domain.NewAgentExecutionError(domain.ErrEmptyCompletion)
			}
			r.deps.Logger.InfoContext(ctx, "agent run completed",
				"iterations", i+1,
				"total_tokens", total.TotalTokens,
				"duration", time.Since(start),
			)
			span.SetAttributes(tracer.IntAttr("agent.iterations", i+1))
			return &domain.AgentResponse{Query: query, Summary: summary}, nil
		}

		toolMsgs, err := r.executeTools(ctx, msg.ToolCalls)
		if err != nil {
			return nil, domain.NewAgentExecutionError(err)
		}
		messages = append(messages, toolMsgs...)
	}

	return nil, domain.NewAgentExecutionError(domain.ErrMaxIterations)
}

// executeTools runs calls concurrently. Results keep the original call order.
// The first fatal tool error cancels the remaining calls.
func (r *Runner) executeTools(ctx context.Context, calls []domain.ToolCall) ([]domain.Message, error) {
	out := make([]domain.Message, len(calls))
	g, gctx := errgroup.WithContext(ctx)
	for i, call := range calls {
		g.Go(func() error {
			msg, err := r.executeTool(gctx, call)
			if err != nil {
				return err
			}
			out[i] = msg
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// executeTool runs a single call. Problems the model can fix come back as
// tool message content; a returned error aborts the run.
func (r *Runner) executeTool(ctx context.Context, call domain.ToolCall) (domain.Message, error) {
	ctx, span := tracer.StartSpan(ctx, "agent.execute_tool",
		trace.WithAttributes(tracer.StringAttr("tool.name", call.Name)),
	)
	defer span.End()

	msg := domain.Message{
		Role:       domain.RoleTool,
		Name:       call.Name,
		ToolCallID: call.ID,
		Timestamp:  time.Now(),
	}

	tool, err := r.deps.Tools.Get(call.Name)
	if err != nil {
		r.deps.Logger.WarnContext(ctx, "model requested unknown tool", "tool", call.Name)
		r.record(call.Name, err)
		tracer.RecordError(span, err)
		msg.Content = err.Error()
		return msg, nil
	}

	result, err := tool.Execute(ctx, call.Arguments)
	r.record(call.Name, err)
	if err != nil {
		tracer.RecordError(span, err)
		return domain.Message{}, err
	}
	if result == nil {
		tracer.SetOK(span)
		return msg, nil
	}

	span.SetAttributes(tracer.BoolAttr("tool.is_error", result.IsError))
	if result.IsError {
		r.deps.Logger.DebugContext(ctx, "tool returned error result", "tool", call.Name, "content", result.Content)
	}
	tracer.SetOK(span)
	msg.Content = result.Content
	return msg, nil
}

func (r *Runner) record(name string, err error) {
	if r.deps.Recorder != nil {
		r.deps.Recorder.RecordToolCall(name, err)
	}
}

// callLLMWithRetry retries rate-limited calls with exponential backoff.
// Any other error is returned immediately.
func (r *Runner) callLLMWithRetry(ctx context.Context, req domain.ChatRequest) (*domain.ChatResponse, error) {
	var lastErr error
	for attempt := 0; attempt < maxLLMRetries; attempt++ {
		llmCtx, llmSpan := tracer.StartSpan(ctx, "agent.llm_call",
			trace.WithAttributes(tracer.IntAttr("llm.attempt", attempt)),
		)
		resp, err := r.deps.LLM.Chat(llmCtx, req)
		if err == nil {
			tracer.SetOK(llmSpan)
			llmSpan.End()
			return resp, nil
		}
		tracer.RecordError(llmSpan, err)
		llmSpan.End()

		lastErr = err
		if !errors.Is(err, domain.ErrRateLimit) || attempt == maxLLMRetries-1 {
			break
		}

		delay := r.retryDelay(attempt)
		r.deps.Logger.WarnContext(ctx, "llm rate limited, retrying",
			"attempt", attempt+1,
			"delay", delay,
			"error", err,
		)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
	}
	return nil, lastErr
}

// retryBackoff computes exponential backoff with jitter.
func retryBackoff(attempt int) time.Duration {
	delay := baseRetryDelay * time.Duration(1<<uint(attempt))
	if delay > maxRetryDelay {
		delay = maxRetryDelay
	}
	// Add 0-25% jitter.
	jitter := time.Duration(rand.Int64N(int64(delay/4) + 1))
	return delay + jitter
}
