package parser

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/empathlabs/aingest/internal/adapter/sse"
	"github.com/empathlabs/aingest/internal/core/domain"
	"github.com/empathlabs/aingest/internal/core/ports"
	"github.com/empathlabs/aingest/internal/logger"
)

// Completion is the result of one non-streaming chat-completion call.
type Completion struct {
	Text     string
	Thinking string
	Usage    *domain.TokenUsage
}

// CompletionsClient performs single-shot chat-completion requests against the
// same endpoint the streaming reader talks to. It is the fallback transport.
type CompletionsClient struct {
	client *http.Client
	logger logger.StyledLogger
}

func NewCompletionsClient(client *http.Client, log logger.StyledLogger) *CompletionsClient {
	if client == nil {
		client = http.DefaultClient
	}
	return &CompletionsClient{client: client, logger: log}
}

type completionResponse struct {
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
	Choices []struct {
		Message struct {
			Content          string `json:"content"`
			ReasoningContent string `json:"reasoning_content,omitempty"`
		} `json:"message"`
	} `json:"choices"`
	Usage *domain.TokenUsage `json:"usage,omitempty"`
}

// Complete sends the logical request as a single POST and extracts the full
// message. The request body is reused from the streaming leg with streaming
// switched off.
func (c *CompletionsClient) Complete(ctx context.Context, req ports.StreamRequest) (*Completion, error) {
	body, err := disableStreaming(req.Body)
	if err != nil {
		return nil, fmt.Errorf("prepare completion body: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, req.URL, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	for key, value := range req.Headers {
		httpReq.Header.Set(key, value)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, sse.Classify(0, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return nil, sse.Classify(resp.StatusCode, fmt.Errorf("unexpected status %d", resp.StatusCode))
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, sse.Classify(0, err)
	}

	var parsed completionResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("decode completion response: %w", err)
	}
	if parsed.Error != nil {
		return nil, &domain.UpstreamError{Message: parsed.Error.Message}
	}
	if len(parsed.Choices) == 0 {
		return nil, fmt.Errorf("completion response has no choices")
	}

	return &Completion{
		Text:     parsed.Choices[0].Message.Content,
		Thinking: parsed.Choices[0].Message.ReasoningContent,
		Usage:    parsed.Usage,
	}, nil
}

// disableStreaming rewrites the caller-built request body so the endpoint
// answers with one full response instead of an event stream.
func disableStreaming(body []byte) ([]byte, error) {
	var payload map[string]any
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, err
	}
	payload["stream"] = false
	return json.Marshal(payload)
}
