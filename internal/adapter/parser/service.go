package parser

/*
			Response Parser Facade
	Single entry point for callers. Hides the streaming/non-streaming choice:
	the streaming reader is tried first, and when it reports the distinguished
	fallback error the same logical request is retried over the single-shot
	completion client without the caller noticing. Every transport attempt,
	success or failure, lands in the metrics collector as one record.
*/

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/empathlabs/aingest/internal/adapter/repair"
	"github.com/empathlabs/aingest/internal/core/domain"
	"github.com/empathlabs/aingest/internal/core/ports"
	"github.com/empathlabs/aingest/internal/logger"
)

// Request is one logical parse request. Body is the caller-constructed
// chat-completion JSON; OnDelta, when set, receives every chunk as it
// arrives so a UI can render incrementally.
type Request struct {
	OperationType string
	Model         string
	URL           string
	Headers       map[string]string
	Body          []byte
	OnDelta       func(domain.Chunk)
	Decoder       ports.StructuredDecoder
}

// Outcome is the parsed result. Text is the cleaned plain-text reply, JSON
// the repaired JSON form of the same reply, Structured the decoder output
// when a decoder was supplied.
type Outcome struct {
	RequestID    string
	Text         string
	Thinking     string
	JSON         string
	Structured   any
	Usage        *domain.TokenUsage
	UsedFallback bool
}

// CompletionDoer is the non-streaming transport the facade falls back to.
type CompletionDoer interface {
	Complete(ctx context.Context, req ports.StreamRequest) (*Completion, error)
}

type Service struct {
	reader      ports.ChunkStreamer
	completions CompletionDoer
	collector   ports.MetricsCollector
	logger      logger.StyledLogger
	repairOpts  repair.Options
}

func NewService(reader ports.ChunkStreamer, completions CompletionDoer, collector ports.MetricsCollector, repairOpts repair.Options, log logger.StyledLogger) *Service {
	return &Service{
		reader:      reader,
		completions: completions,
		collector:   collector,
		logger:      log,
		repairOpts:  repairOpts,
	}
}

// Parse runs one logical request end to end: stream, aggregate, fall back if
// the reader asks for it, repair the text and optionally decode it.
func (s *Service) Parse(ctx context.Context, req Request) (*Outcome, error) {
	requestID := uuid.NewString()
	log := s.logger.WithRequestID(requestID)

	outcome := &Outcome{RequestID: requestID}

	text, thinking, usage, err := s.streamOnce(ctx, req, log)
	if err != nil {
		var fallbackErr *domain.FallbackError
		if !errors.As(err, &fallbackErr) {
			return nil, err
		}

		log.Info("falling back to non-streaming transport",
			"failures", fallbackErr.Failures,
			"operation", req.OperationType)
		text, thinking, usage, err = s.completeOnce(ctx, req, log)
		if err != nil {
			return nil, err
		}
		outcome.UsedFallback = true
	}

	outcome.Text = repair.CleanText(text)
	outcome.Thinking = thinking
	outcome.JSON = repair.RepairWith(text, s.repairOpts)
	outcome.Usage = usage

	if req.Decoder != nil {
		decoded, err := req.Decoder.Decode(outcome.JSON)
		if err != nil {
			log.Warn("structured decode failed", "error", err)
			return nil, fmt.Errorf("response could not be understood: %w", err)
		}
		outcome.Structured = decoded
	}

	return outcome, nil
}

// streamOnce drives one streaming attempt and aggregates its chunks. Exactly
// one parsing record is emitted regardless of how the attempt ends.
func (s *Service) streamOnce(ctx context.Context, req Request, log logger.StyledLogger) (string, string, *domain.TokenUsage, error) {
	start := time.Now()

	var text, thinking strings.Builder
	var usage *domain.TokenUsage
	var streamErr error

	chunks := s.reader.Stream(ctx, ports.StreamRequest{
		URL:     req.URL,
		Headers: req.Headers,
		Body:    req.Body,
	})
	for chunk := range chunks {
		if req.OnDelta != nil {
			req.OnDelta(chunk)
		}

		switch chunk.Kind {
		case domain.ChunkTextDelta:
			text.WriteString(chunk.Text)
		case domain.ChunkThinkingDelta:
			thinking.WriteString(chunk.Text)
		case domain.ChunkComplete:
			text.WriteString(chunk.Text)
			if chunk.Usage != nil {
				usage = chunk.Usage
			}
		case domain.ChunkError:
			streamErr = chunk.Err
		}
	}
	if streamErr == nil && ctx.Err() != nil {
		streamErr = ctx.Err()
	}

	s.collector.Record(req.OperationType, req.Model, streamErr == nil, time.Since(start), errorKind(streamErr))

	if streamErr != nil {
		log.Debug("streaming attempt failed", "error_kind", errorKind(streamErr))
		return "", "", nil, streamErr
	}
	return text.String(), thinking.String(), usage, nil
}

// completeOnce is the non-streaming leg. It emits its own parsing record so
// a fallback request shows up as two attempts in the telemetry.
func (s *Service) completeOnce(ctx context.Context, req Request, log logger.StyledLogger) (string, string, *domain.TokenUsage, error) {
	start := time.Now()

	completion, err := s.completions.Complete(ctx, ports.StreamRequest{
		URL:     req.URL,
		Headers: req.Headers,
		Body:    req.Body,
	})

	s.collector.Record(req.OperationType, req.Model, err == nil, time.Since(start), errorKind(err))

	if err != nil {
		log.Warn("non-streaming attempt failed", "error_kind", errorKind(err))
		return "", "", nil, err
	}
	return completion.Text, completion.Thinking, completion.Usage, nil
}

// errorKind tags a failed attempt for the per-error-kind telemetry buckets.
func errorKind(err error) string {
	if err == nil {
		return ""
	}

	var fallbackErr *domain.FallbackError
	if errors.As(err, &fallbackErr) {
		return "fallback"
	}
	var streamErr *domain.StreamError
	if errors.As(err, &streamErr) {
		return streamErr.Category.String()
	}
	var upstreamErr *domain.UpstreamError
	if errors.As(err, &upstreamErr) {
		return "upstream_error"
	}
	if errors.Is(err, context.Canceled) {
		return "cancelled"
	}
	return "request_failed"
}
