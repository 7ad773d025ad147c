package app

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"sync"

	"github.com/empathlabs/aingest/internal/adapter/metrics"
	"github.com/empathlabs/aingest/internal/adapter/parser"
	"github.com/empathlabs/aingest/internal/adapter/sse"
	"github.com/empathlabs/aingest/internal/config"
	"github.com/empathlabs/aingest/internal/core/domain"
	"github.com/empathlabs/aingest/internal/logger"
	"github.com/empathlabs/aingest/pkg/format"
)

// Application wires the ingestion pipeline together and drives one prompt
// through it from the command line.
type Application struct {
	configMu  sync.RWMutex
	config    *config.Config
	service   *parser.Service
	collector *metrics.Collector
	logger    logger.StyledLogger
}

// New builds the pipeline from configuration and subscribes to config file
// changes so a running process picks up endpoint edits without a restart.
func New(cfg *config.Config, log logger.StyledLogger) *Application {
	app := &Application{
		collector: metrics.NewCollector(log),
		logger:    log,
	}
	app.rebuild(cfg)

	config.Watch(func(newCfg *config.Config) {
		app.rebuild(newCfg)
		log.Info("configuration reloaded",
			"endpoint", newCfg.Endpoint.URL,
			"model", newCfg.Endpoint.Model)
	})

	return app
}

// rebuild swaps in a pipeline built from cfg. The metrics collector survives
// reloads so telemetry spans the whole process lifetime.
func (a *Application) rebuild(cfg *config.Config) {
	client := &http.Client{Timeout: cfg.Endpoint.RequestTimeout}
	reader := sse.NewReader(client, cfg.Parser.FallbackThreshold, a.logger)
	completions := parser.NewCompletionsClient(client, a.logger)
	service := parser.NewService(reader, completions, a.collector, cfg.Repair.Options(), a.logger)

	a.configMu.Lock()
	a.config = cfg
	a.service = service
	a.configMu.Unlock()
}

// Run sends one prompt through the pipeline, streaming deltas to stdout as
// they arrive, and reports pipeline telemetry before returning.
func (a *Application) Run(ctx context.Context, promptPath string) error {
	prompt, err := readPrompt(promptPath)
	if err != nil {
		return err
	}

	a.configMu.RLock()
	cfg := a.config
	service := a.service
	a.configMu.RUnlock()

	body, err := buildRequestBody(cfg.Endpoint.Model, prompt)
	if err != nil {
		return fmt.Errorf("build request body: %w", err)
	}

	a.logger.Info("sending prompt",
		"endpoint", cfg.Endpoint.URL,
		"model", cfg.Endpoint.Model,
		"prompt_bytes", len(prompt))

	outcome, err := service.Parse(ctx, parser.Request{
		OperationType: cfg.Parser.OperationType,
		Model:         cfg.Endpoint.Model,
		URL:           cfg.Endpoint.URL,
		Headers:       requestHeaders(cfg.Endpoint),
		Body:          body,
		OnDelta:       printDelta,
	})

	a.reportTelemetry()

	if err != nil {
		return err
	}

	fmt.Println()
	if outcome.UsedFallback {
		a.logger.Warn("streaming was unavailable, response fetched non-streaming",
			"request_id", outcome.RequestID)
		fmt.Println(outcome.Text)
	}
	if outcome.Usage != nil {
		a.logger.Info("token usage",
			"prompt_tokens", outcome.Usage.PromptTokens,
			"completion_tokens", outcome.Usage.CompletionTokens,
			"total_tokens", outcome.Usage.TotalTokens)
	}
	return nil
}

func (a *Application) reportTelemetry() {
	summary := a.collector.PerformanceSummary()
	health := a.collector.HealthStatus()

	a.logger.InfoWithCount("requests processed", int(summary.TotalRequests),
		"successful", summary.SuccessfulRequests,
		"failed", summary.FailedRequests,
		"avg_duration", format.Latency(int64(summary.AverageDurationMs)))
	a.logger.InfoHealthStatus("pipeline health", health.State,
		"success_rate", format.Percentage(health.SuccessRate))
}

func printDelta(chunk domain.Chunk) {
	switch chunk.Kind {
	case domain.ChunkTextDelta, domain.ChunkThinkingDelta:
		fmt.Print(chunk.Text)
	}
}

// readPrompt takes the prompt from the named file, or from stdin when no
// file is given.
func readPrompt(path string) (string, error) {
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return "", fmt.Errorf("read prompt file: %w", err)
		}
		return strings.TrimSpace(string(raw)), nil
	}

	raw, err := io.ReadAll(bufio.NewReader(os.Stdin))
	if err != nil {
		return "", fmt.Errorf("read prompt from stdin: %w", err)
	}
	prompt := strings.TrimSpace(string(raw))
	if prompt == "" {
		return "", fmt.Errorf("prompt is empty")
	}
	return prompt, nil
}

func buildRequestBody(model, prompt string) ([]byte, error) {
	return json.Marshal(map[string]any{
		"model": model,
		"messages": []map[string]string{
			{"role": "user", "content": prompt},
		},
		"stream": true,
	})
}

func requestHeaders(endpoint config.EndpointConfig) map[string]string {
	headers := make(map[string]string, len(endpoint.Headers)+1)
	for key, value := range endpoint.Headers {
		headers[key] = value
	}
	if endpoint.APIKey != "" {
		headers["Authorization"] = "Bearer " + endpoint.APIKey
	}
	return headers
}
