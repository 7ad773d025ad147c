package ports

import (
	"context"

	"github.com/empathlabs/aingest/internal/core/domain"
)

// StreamRequest describes one streaming call to an LLM endpoint. The body is
// caller-constructed JSON; headers carry any authorisation the caller needs.
type StreamRequest struct {
	Headers map[string]string
	URL     string
	Body    []byte
}

// ChunkStreamer drives one streaming connection per call and translates it
// into an ordered, cancellable sequence of chunks. Cancelling the context
// must close the underlying transport promptly.
type ChunkStreamer interface {
	Stream(ctx context.Context, req StreamRequest) <-chan domain.Chunk
}
