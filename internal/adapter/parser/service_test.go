package parser

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/empathlabs/aingest/internal/adapter/metrics"
	"github.com/empathlabs/aingest/internal/adapter/repair"
	"github.com/empathlabs/aingest/internal/core/domain"
	"github.com/empathlabs/aingest/internal/core/ports"
	"github.com/empathlabs/aingest/internal/logger"
)

func createTestLogger() logger.StyledLogger {
	return logger.NewPlainStyledLogger(slog.New(slog.DiscardHandler))
}

type fakeStreamer struct {
	scripts [][]domain.Chunk
	calls   int
	lastReq ports.StreamRequest
}

func (f *fakeStreamer) Stream(ctx context.Context, req ports.StreamRequest) <-chan domain.Chunk {
	f.lastReq = req
	script := f.scripts[f.calls]
	f.calls++

	out := make(chan domain.Chunk)
	go func() {
		defer close(out)
		for _, chunk := range script {
			select {
			case out <- chunk:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}

type fakeCompletions struct {
	result *Completion
	err    error
	calls  int
}

func (f *fakeCompletions) Complete(_ context.Context, _ ports.StreamRequest) (*Completion, error) {
	f.calls++
	return f.result, f.err
}

type fakeDecoder struct {
	got    string
	result any
	err    error
}

func (d *fakeDecoder) Decode(json string) (any, error) {
	d.got = json
	return d.result, d.err
}

func createTestService(streamer *fakeStreamer, completions *fakeCompletions) (*Service, *metrics.Collector) {
	collector := metrics.NewCollector(createTestLogger())
	svc := NewService(streamer, completions, collector, repair.DefaultOptions(), createTestLogger())
	return svc, collector
}

func TestService_StreamingSuccessAggregatesDeltas(t *testing.T) {
	streamer := &fakeStreamer{scripts: [][]domain.Chunk{{
		domain.StartedChunk(),
		domain.TextDeltaChunk(`{"answer`),
		domain.TextDeltaChunk(`":42}`),
		domain.CompleteChunk("", &domain.TokenUsage{PromptTokens: 10, CompletionTokens: 5, TotalTokens: 15}),
	}}}
	completions := &fakeCompletions{}
	svc, collector := createTestService(streamer, completions)

	var seen []domain.ChunkKind
	outcome, err := svc.Parse(context.Background(), Request{
		OperationType: "chat",
		Model:         "gpt-4",
		URL:           "http://example.test/v1/chat/completions",
		Body:          []byte(`{"stream":true}`),
		OnDelta:       func(c domain.Chunk) { seen = append(seen, c.Kind) },
	})
	require.NoError(t, err)

	assert.Equal(t, `{"answer":42}`, outcome.JSON)
	assert.Equal(t, `{"answer":42}`, outcome.Text)
	assert.False(t, outcome.UsedFallback)
	require.NotNil(t, outcome.Usage)
	assert.Equal(t, 15, outcome.Usage.TotalTokens)

	_, uuidErr := uuid.Parse(outcome.RequestID)
	assert.NoError(t, uuidErr)

	assert.Equal(t, []domain.ChunkKind{
		domain.ChunkStarted,
		domain.ChunkTextDelta,
		domain.ChunkTextDelta,
		domain.ChunkComplete,
	}, seen)

	overall := collector.Overall()
	assert.Equal(t, int64(1), overall.TotalRequests)
	assert.Equal(t, int64(1), overall.SuccessfulRequests)
	assert.Equal(t, 0, completions.calls)
}

func TestService_ThinkingAggregatedSeparately(t *testing.T) {
	streamer := &fakeStreamer{scripts: [][]domain.Chunk{{
		domain.StartedChunk(),
		domain.ThinkingDeltaChunk("let me "),
		domain.ThinkingDeltaChunk("think"),
		domain.TextDeltaChunk("the answer"),
		domain.CompleteChunk("", nil),
	}}}
	svc, _ := createTestService(streamer, &fakeCompletions{})

	outcome, err := svc.Parse(context.Background(), Request{OperationType: "chat", Model: "gpt-4"})
	require.NoError(t, err)

	assert.Equal(t, "let me think", outcome.Thinking)
	assert.Equal(t, "the answer", outcome.Text)
}

func TestService_StreamErrorSurfacesMappedMessage(t *testing.T) {
	streamer := &fakeStreamer{scripts: [][]domain.Chunk{{
		domain.ErrorChunk(domain.NewStreamError(domain.TransportAuth, 401, errors.New("unexpected status 401"))),
	}}}
	completions := &fakeCompletions{}
	svc, collector := createTestService(streamer, completions)

	_, err := svc.Parse(context.Background(), Request{OperationType: "chat", Model: "gpt-4"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "API key")

	assert.Equal(t, 0, completions.calls)
	assert.Equal(t, int64(1), collector.Overall().FailedRequests)
	assert.Equal(t, int64(1), collector.ByErrorKind("auth").Count)
}

func TestService_FallbackRetriesNonStreaming(t *testing.T) {
	cause := domain.NewStreamError(domain.TransportConnectivity, 0, errors.New("connection refused"))
	streamer := &fakeStreamer{scripts: [][]domain.Chunk{{
		domain.ErrorChunk(domain.NewFallbackError(3, cause)),
	}}}
	completions := &fakeCompletions{result: &Completion{
		Text:  "```json\n{\"a\":1}\n```",
		Usage: &domain.TokenUsage{TotalTokens: 7},
	}}
	svc, collector := createTestService(streamer, completions)

	outcome, err := svc.Parse(context.Background(), Request{OperationType: "chat", Model: "gpt-4"})
	require.NoError(t, err)

	assert.True(t, outcome.UsedFallback)
	assert.Equal(t, `{"a":1}`, outcome.JSON)
	assert.Equal(t, 7, outcome.Usage.TotalTokens)
	assert.Equal(t, 1, completions.calls)

	overall := collector.Overall()
	assert.Equal(t, int64(2), overall.TotalRequests)
	assert.Equal(t, int64(1), overall.SuccessfulRequests)
	assert.Equal(t, int64(1), overall.FailedRequests)
	assert.Equal(t, int64(1), collector.ByErrorKind("fallback").Count)
}

func TestService_FallbackFailureSurfaces(t *testing.T) {
	streamer := &fakeStreamer{scripts: [][]domain.Chunk{{
		domain.ErrorChunk(domain.NewFallbackError(3, errors.New("connection refused"))),
	}}}
	completions := &fakeCompletions{err: domain.NewStreamError(domain.TransportUpstreamUnavailable, 503, nil)}
	svc, collector := createTestService(streamer, completions)

	_, err := svc.Parse(context.Background(), Request{OperationType: "chat", Model: "gpt-4"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "temporarily unavailable")

	overall := collector.Overall()
	assert.Equal(t, int64(2), overall.TotalRequests)
	assert.Equal(t, int64(2), overall.FailedRequests)
	assert.Equal(t, int64(1), collector.ByErrorKind("upstream_unavailable").Count)
}

func TestService_DecoderReceivesRepairedJSON(t *testing.T) {
	streamer := &fakeStreamer{scripts: [][]domain.Chunk{{
		domain.StartedChunk(),
		domain.TextDeltaChunk(`{"a":1`),
		domain.CompleteChunk("", nil),
	}}}
	decoder := &fakeDecoder{result: map[string]int{"a": 1}}
	svc, _ := createTestService(streamer, &fakeCompletions{})

	outcome, err := svc.Parse(context.Background(), Request{
		OperationType: "chat",
		Model:         "gpt-4",
		Decoder:       decoder,
	})
	require.NoError(t, err)

	assert.Equal(t, `{"a":1}`, decoder.got)
	assert.Equal(t, map[string]int{"a": 1}, outcome.Structured)
}

func TestService_DecoderFailureIsUserVisible(t *testing.T) {
	streamer := &fakeStreamer{scripts: [][]domain.Chunk{{
		domain.StartedChunk(),
		domain.TextDeltaChunk("not json at all"),
		domain.CompleteChunk("", nil),
	}}}
	decoder := &fakeDecoder{err: fmt.Errorf("missing field")}
	svc, collector := createTestService(streamer, &fakeCompletions{})

	_, err := svc.Parse(context.Background(), Request{
		OperationType: "chat",
		Model:         "gpt-4",
		Decoder:       decoder,
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "response could not be understood")

	// The transport attempt itself succeeded; only the decode failed.
	assert.Equal(t, int64(1), collector.Overall().SuccessfulRequests)
}

func TestErrorKind(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected string
	}{
		{"nil", nil, ""},
		{"fallback", domain.NewFallbackError(3, errors.New("x")), "fallback"},
		{"stream auth", domain.NewStreamError(domain.TransportAuth, 401, nil), "auth"},
		{"stream timeout", domain.NewStreamError(domain.TransportTimeout, 0, nil), "timeout"},
		{"upstream", &domain.UpstreamError{Message: "boom"}, "upstream_error"},
		{"cancelled", context.Canceled, "cancelled"},
		{"other", errors.New("boom"), "request_failed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, errorKind(tt.err))
		})
	}
}
