package main

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"agent-service/internal/adapter/httpapi"
	"agent-service/internal/adapter/llm"
	"agent-service/internal/adapter/tool"
	"agent-service/internal/domain"
	"agent-service/internal/infra/config"
	"agent-service/internal/infra/logger"
	"agent-service/internal/infra/tracer"
	"agent-service/internal/usecase"
)

const stopTimeout = 10 * time.Second

// components are the wired collaborators behind the HTTP API.
type components struct {
	Registry *tool.Registry
	Provider domain.LLMProvider
	Runner   *usecase.Runner
	Metrics  *httpapi.Metrics
}

func runServe(ctx context.Context, opts *rootOptions) error {
	// 1. Config
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if opts.addr != "" {
		cfg.Server.Addr = opts.addr
	}

	// 2. Logger & Tracer
	log, logCloser, err := logger.New(cfg.Logger)
	if err != nil {
		return fmt.Errorf("logger: %w", err)
	}
	defer logCloser()

	if ctx == nil {
		ctx = context.Background()
	}
	tracerShutdown, err := tracer.Setup(ctx, cfg.Tracer)
	if err != nil {
		return fmt.Errorf("tracer: %w", err)
	}
	defer tracerShutdown(context.WithoutCancel(ctx))

	// 3. Components
	comp, err := buildComponents(cfg, log)
	if err != nil {
		return err
	}

	// 4. Graceful shutdown
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// 5. HTTP API
	srv := httpapi.NewServer(httpapi.Deps{
		Runner:       comp.Runner,
		Tools:        comp.Registry,
		Metrics:      comp.Metrics,
		Logger:       log,
		Config:       cfg.Server,
		AgentTimeout: cfg.Agent.Timeout,
		Info: httpapi.Info{
			Name:      logger.ServiceName,
			Version:   version,
			Provider:  comp.Provider.Name(),
			Model:     cfg.LLM.Model,
			SearchURL: cfg.Search.BaseURL,
		},
	})
	if err := srv.Start(ctx); err != nil {
		return err
	}

	log.Info("agent-service ready",
		"addr", srv.BoundAddr(),
		"model", cfg.LLM.Model,
		"search_url", cfg.Search.BaseURL,
		"strict_status", cfg.Server.StrictStatus,
		"version", version,
	)

	serveErr := make(chan error, 1)
	go func() { serveErr <- srv.Wait() }()

	select {
	case <-ctx.Done():
		log.Info("shutting down")
	case err := <-serveErr:
		return err
	}

	stopCtx, stopCancel := context.WithTimeout(context.Background(), stopTimeout)
	defer stopCancel()
	if err := srv.Stop(stopCtx); err != nil {
		log.Error("http api shutdown error", "error", err)
		return err
	}
	return <-serveErr
}

// buildComponents wires the search tool, the LLM provider and the runner.
func buildComponents(cfg *config.Config, log *slog.Logger) (*components, error) {
	fetcher := tool.NewHTTPSearchFetcher(cfg.Search.BaseURL, cfg.Search.Timeout, log)
	registry := tool.NewRegistry(log)
	if err := registry.Register(tool.NewHTTPSearchTool(fetcher, log)); err != nil {
		return nil, domain.WrapOp("tools", err)
	}

	provider, err := llm.NewProvider(cfg.LLM, log)
	if err != nil {
		return nil, domain.WrapOp("llm", err)
	}

	metrics := &httpapi.Metrics{}
	runner := usecase.NewRunner(usecase.RunnerDeps{
		LLM:   provider,
		Tools: registry,
		Persona: domain.AgentPersona{
			Role:      cfg.Agent.Role,
			Goal:      cfg.Agent.Goal,
			Backstory: cfg.Agent.Backstory,
		},
		Model:         cfg.LLM.ModelName(),
		MaxIterations: cfg.Agent.MaxIterations,
		MaxTokens:     cfg.LLM.MaxTokens,
		Temperature:   cfg.LLM.Temperature,
		Logger:        log,
		Recorder:      metrics,
	})

	return &components{
		Registry: registry,
		Provider: provider,
		Runner:   runner,
		Metrics:  metrics,
	}, nil
}
