package sse

/*
			Streaming Response Reader
	Drives one SSE connection per request and translates it into an ordered,
	cancellable sequence of chunks. Each Reader owns a consecutive-failure
	counter: transport failures increment it, a successful connect resets it,
	and once it reaches the fallback threshold the failure chunk carries a
	FallbackError so the facade can retry over the non-streaming transport.

	The counter is deliberately per-Reader, not global. One Reader serves one
	logical session; sharing the counter across unrelated sessions would let
	one session's failures degrade another's fallback decision.
*/

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/empathlabs/aingest/internal/core/domain"
	"github.com/empathlabs/aingest/internal/core/ports"
	"github.com/empathlabs/aingest/internal/logger"
	"github.com/empathlabs/aingest/pkg/pool"
)

const (
	// DefaultFallbackThreshold is the number of back-to-back transport
	// failures that triggers the streaming to non-streaming fallback.
	DefaultFallbackThreshold = 3

	doneSignal = "[DONE]"

	scanInitialBufferSize = 64 * 1024
	scanMaxBufferSize     = 1024 * 1024
)

// Scan buffers are reused across requests; most events fit the initial size
// and the scanner grows past it on its own when one does not.
var scanBuffers = newScanBufferPool()

func newScanBufferPool() *pool.Pool[*[]byte] {
	p, err := pool.NewLitePool(func() *[]byte {
		buf := make([]byte, 0, scanInitialBufferSize)
		return &buf
	})
	if err != nil {
		panic(err)
	}
	return p
}

// Reader streams chat-completion events from an OpenAI-compatible endpoint.
// One Reader per logical session; safe for sequential reuse across requests.
type Reader struct {
	client              *http.Client
	logger              logger.StyledLogger
	fallbackThreshold   int64
	consecutiveFailures atomic.Int64
}

func NewReader(client *http.Client, fallbackThreshold int, log logger.StyledLogger) *Reader {
	if client == nil {
		client = http.DefaultClient
	}
	if fallbackThreshold <= 0 {
		fallbackThreshold = DefaultFallbackThreshold
	}
	return &Reader{
		client:            client,
		logger:            log,
		fallbackThreshold: int64(fallbackThreshold),
	}
}

// ConsecutiveFailures returns the current failure run length, mostly for
// observability and tests.
func (r *Reader) ConsecutiveFailures() int {
	return int(r.consecutiveFailures.Load())
}

// Stream opens the SSE connection and returns a cold, single-subscriber
// channel of chunks. The channel closes on stream end, terminal error or
// context cancellation; cancelling the context closes the transport.
func (r *Reader) Stream(ctx context.Context, req ports.StreamRequest) <-chan domain.Chunk {
	out := make(chan domain.Chunk)
	go r.run(ctx, req, out)
	return out
}

func (r *Reader) run(ctx context.Context, req ports.StreamRequest, out chan<- domain.Chunk) {
	defer close(out)

	started := time.Now()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, req.URL, bytes.NewReader(req.Body))
	if err != nil {
		r.emitFailure(ctx, out, 0, err)
		return
	}

	for key, value := range req.Headers {
		httpReq.Header.Set(key, value)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "text/event-stream")
	httpReq.Header.Set("Cache-Control", "no-cache")

	resp, err := r.client.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		r.emitFailure(ctx, out, 0, err)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		r.emitFailure(ctx, out, resp.StatusCode, fmt.Errorf("unexpected status %d", resp.StatusCode))
		return
	}

	// Connected: the failure run is over
	r.consecutiveFailures.Store(0)
	if !r.send(ctx, out, domain.StartedChunk()) {
		return
	}

	buf := scanBuffers.Get()
	defer scanBuffers.Put(buf)

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(*buf, scanMaxBufferSize)

	for scanner.Scan() {
		if ctx.Err() != nil {
			return
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" || !strings.HasPrefix(line, "data:") {
			continue
		}

		payload := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if payload == doneSignal {
			continue
		}

		chunk, ok := parseEvent([]byte(payload))
		if !ok {
			// Not every event carries user-visible content
			continue
		}

		if !r.send(ctx, out, chunk) {
			return
		}

		if chunk.Kind == domain.ChunkComplete {
			r.logger.Debug("stream completed",
				"duration_ms", time.Since(started).Milliseconds())
			return
		}
	}

	if err := scanner.Err(); err != nil && ctx.Err() == nil {
		r.emitFailure(ctx, out, 0, err)
		return
	}

	// Transport end-of-stream without a finish_reason; the closed channel is
	// the completion signal.
	r.logger.Debug("stream closed by transport",
		"duration_ms", time.Since(started).Milliseconds())
}

// emitFailure classifies the failure, advances the consecutive-failure run
// and emits either a plain stream error or the distinguished fallback error.
func (r *Reader) emitFailure(ctx context.Context, out chan<- domain.Chunk, statusCode int, cause error) {
	failures := r.consecutiveFailures.Add(1)
	streamErr := Classify(statusCode, cause)

	if failures >= r.fallbackThreshold {
		r.logger.Warn("stream failure threshold reached",
			"failures", failures,
			"category", streamErr.Category.String())
		r.send(ctx, out, domain.ErrorChunk(domain.NewFallbackError(int(failures), streamErr)))
		return
	}

	r.logger.Warn("stream failed",
		"failures", failures,
		"status", statusCode,
		"category", streamErr.Category.String(),
		"error", cause)
	r.send(ctx, out, domain.ErrorChunk(streamErr))
}

func (r *Reader) send(ctx context.Context, out chan<- domain.Chunk, chunk domain.Chunk) bool {
	select {
	case out <- chunk:
		return true
	case <-ctx.Done():
		return false
	}
}
