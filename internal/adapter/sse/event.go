package sse

import (
	"encoding/json"

	"github.com/empathlabs/aingest/internal/core/domain"
)

// eventPayload is the OpenAI-compatible chat-completion streaming shape.
type eventPayload struct {
	Error   *upstreamErrorBody `json:"error"`
	Usage   *domain.TokenUsage `json:"usage"`
	Choices []eventChoice      `json:"choices"`
}

type upstreamErrorBody struct {
	Message string `json:"message"`
}

type eventChoice struct {
	Delta        eventDelta `json:"delta"`
	FinishReason string     `json:"finish_reason"`
}

type eventDelta struct {
	Content          string `json:"content"`
	ReasoningContent string `json:"reasoning_content"`
}

// parseEvent maps one SSE data payload onto a chunk. Payloads that match no
// known shape are skipped silently rather than failing the stream.
func parseEvent(data []byte) (domain.Chunk, bool) {
	var payload eventPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return domain.Chunk{}, false
	}

	if payload.Error != nil {
		return domain.ErrorChunk(&domain.UpstreamError{Message: payload.Error.Message}), true
	}

	if len(payload.Choices) == 0 {
		return domain.Chunk{}, false
	}

	choice := payload.Choices[0]

	if choice.FinishReason == "stop" || choice.FinishReason == "length" {
		return domain.CompleteChunk("", payload.Usage), true
	}

	// DeepSeek R1 style reasoning stream
	if choice.Delta.ReasoningContent != "" {
		return domain.ThinkingDeltaChunk(choice.Delta.ReasoningContent), true
	}

	if choice.Delta.Content != "" {
		return domain.TextDeltaChunk(choice.Delta.Content), true
	}

	return domain.Chunk{}, false
}
