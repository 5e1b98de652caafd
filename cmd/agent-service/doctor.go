package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"agent-service/internal/adapter/llm"
	"agent-service/internal/infra/config"
)

// CheckStatus represents the result of a health check.
type CheckStatus string

const (
	StatusPass CheckStatus = "PASS"
	StatusWarn CheckStatus = "WARN"
	StatusFail CheckStatus = "FAIL"
)

// CheckResult holds the outcome of a single health check.
type CheckResult struct {
	Name    string
	Status  CheckStatus
	Message string
	Fix     string // optional fix suggestion
}

// Check is a named health check function.
type Check struct {
	Name string
	Fn   func(ctx context.Context, cfg *config.Config) CheckResult
}

const doctorProbeTimeout = 5 * time.Second

func newDoctorClient() *http.Client {
	return &http.Client{Timeout: doctorProbeTimeout}
}

// runDoctor executes all health checks and reports results to out.
func runDoctor(ctx context.Context, out io.Writer, cfgPath string, client *http.Client) error {
	if ctx == nil {
		ctx = context.Background()
	}

	// Some checks still run when the config fails to load.
	cfg, cfgErr := config.Load(cfgPath)

	checks := []Check{
		{Name: "Config", Fn: checkConfig(cfgPath, cfgErr)},
		{Name: "LLM credentials", Fn: checkLLMCredentials},
		{Name: "LLM connectivity", Fn: checkLLMConnectivity(client)},
		{Name: "Search service", Fn: checkSearchService(client)},
	}

	fmt.Fprintln(out, "agent-service doctor")
	fmt.Fprintln(out, strings.Repeat("=", 50))
	fmt.Fprintln(out)

	var pass, warn, fail int
	for _, check := range checks {
		result := check.Fn(ctx, cfg)
		result.Name = check.Name

		fmt.Fprintf(out, "  %s %s: %s\n", statusIcon(result.Status), result.Name, result.Message)
		if result.Fix != "" {
			fmt.Fprintf(out, "      Fix: %s\n", result.Fix)
		}

		switch result.Status {
		case StatusPass:
			pass++
		case StatusWarn:
			warn++
		case StatusFail:
			fail++
		}
	}

	fmt.Fprintln(out)
	fmt.Fprintln(out, strings.Repeat("-", 50))
	fmt.Fprintf(out, "Results: %d passed, %d warnings, %d failed\n", pass, warn, fail)

	if fail > 0 {
		return fmt.Errorf("%d check(s) failed", fail)
	}
	return nil
}

func statusIcon(s CheckStatus) string {
	switch s {
	case StatusPass:
		return "[PASS]"
	case StatusWarn:
		return "[WARN]"
	case StatusFail:
		return "[FAIL]"
	default:
		return "[????]"
	}
}

// checkConfig reports whether the configuration loaded. A missing file is
// only a warning since defaults and the environment are enough to run.
func checkConfig(cfgPath string, cfgErr error) func(context.Context, *config.Config) CheckResult {
	return func(_ context.Context, _ *config.Config) CheckResult {
		if cfgErr != nil {
			var ve *config.ValidationError
			fix := "Check the config file syntax and AGENT_SERVICE_* variables"
			if errors.As(cfgErr, &ve) {
				fix = "Correct the values listed above"
			}
			return CheckResult{
				Status:  StatusFail,
				Message: fmt.Sprintf("config error: %v", cfgErr),
				Fix:     fix,
			}
		}

		if _, err := os.Stat(cfgPath); os.IsNotExist(err) {
			return CheckResult{
				Status:  StatusWarn,
				Message: fmt.Sprintf("no config file at %s, using defaults and environment", cfgPath),
			}
		}

		return CheckResult{
			Status:  StatusPass,
			Message: fmt.Sprintf("config loaded from %s", cfgPath),
		}
	}
}

// checkLLMCredentials verifies the settings the selected provider needs.
func checkLLMCredentials(_ context.Context, cfg *config.Config) CheckResult {
	if cfg == nil {
		return CheckResult{Status: StatusFail, Message: "cannot check, config not loaded"}
	}

	var missing []string
	switch cfg.LLM.Provider() {
	case "azure":
		if cfg.LLM.APIKey == "" {
			missing = append(missing, "AZURE_API_KEY")
		}
		if cfg.LLM.APIBase == "" {
			missing = append(missing, "AZURE_API_BASE")
		}
		if cfg.LLM.APIVersion == "" {
			missing = append(missing, "AZURE_API_VERSION")
		}
	default:
		if cfg.LLM.APIKey == "" {
			missing = append(missing, "llm.api_key")
		}
	}

	if len(missing) > 0 {
		return CheckResult{
			Status:  StatusFail,
			Message: fmt.Sprintf("%s: missing %s", cfg.LLM.Model, strings.Join(missing, ", ")),
			Fix:     "Set the listed variables in the environment or a .env file",
		}
	}
	return CheckResult{
		Status:  StatusPass,
		Message: fmt.Sprintf("credentials configured for %s", cfg.LLM.Model),
	}
}

// checkLLMConnectivity tests whether the provider endpoint answers at all.
// Any HTTP response counts as reachable.
func checkLLMConnectivity(client *http.Client) func(context.Context, *config.Config) CheckResult {
	return func(ctx context.Context, cfg *config.Config) CheckResult {
		if cfg == nil {
			return CheckResult{Status: StatusFail, Message: "cannot check, config not loaded"}
		}

		provider, err := llm.NewProvider(cfg.LLM, slog.New(slog.DiscardHandler))
		if err != nil {
			return CheckResult{Status: StatusFail, Message: err.Error()}
		}
		endpoint := llm.Endpoint(provider)
		if endpoint == "" {
			return CheckResult{
				Status:  StatusWarn,
				Message: "skipped, endpoint is not fully configured",
			}
		}

		latency, err := probe(ctx, client, endpoint)
		if err != nil {
			return CheckResult{
				Status:  StatusFail,
				Message: fmt.Sprintf("cannot reach %s: %v", redactQuery(endpoint), err),
				Fix:     "Check AZURE_API_BASE and your network",
			}
		}
		return CheckResult{
			Status:  StatusPass,
			Message: fmt.Sprintf("%s reachable (latency: %dms)", provider.Name(), latency.Milliseconds()),
		}
	}
}

// checkSearchService tests whether the search service answers at all.
func checkSearchService(client *http.Client) func(context.Context, *config.Config) CheckResult {
	return func(ctx context.Context, cfg *config.Config) CheckResult {
		if cfg == nil {
			return CheckResult{Status: StatusWarn, Message: "cannot check, config not loaded"}
		}

		base := strings.TrimRight(cfg.Search.BaseURL, "/")
		latency, err := probe(ctx, client, base)
		if err != nil {
			return CheckResult{
				Status:  StatusFail,
				Message: fmt.Sprintf("search service not reachable at %s: %v", base, err),
				Fix:     "Start the search service or set SEARCH_SERVICE_URL",
			}
		}
		return CheckResult{
			Status:  StatusPass,
			Message: fmt.Sprintf("search service reachable at %s (latency: %dms)", base, latency.Milliseconds()),
		}
	}
}

// probe issues a GET to target. A transport error is returned without the
// *url.Error wrapper so that the request URL, query included, stays out of
// the report.
func probe(ctx context.Context, client *http.Client, target string) (time.Duration, error) {
	ctx, cancel := context.WithTimeout(ctx, doctorProbeTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return 0, err
	}
	start := time.Now()
	resp, err := client.Do(req)
	if err != nil {
		var ue *url.Error
		if errors.As(err, &ue) {
			return 0, ue.Err
		}
		return 0, err
	}
	resp.Body.Close()
	return time.Since(start), nil
}

func redactQuery(u string) string {
	if i := strings.IndexByte(u, '?'); i >= 0 {
		return u[:i]
	}
	return u
}
