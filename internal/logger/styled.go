package logger

import (
	"fmt"
	"log/slog"

	"github.com/pterm/pterm"

	"github.com/empathlabs/aingest/internal/core/domain"
	"github.com/empathlabs/aingest/theme"
)

// StyledLogger is the logging surface the pipeline components take. The
// pretty implementation colours output for TTYs; the plain one is for
// JSON/file logging and tests.
type StyledLogger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)

	InfoWithCount(msg string, count int, args ...any)
	InfoHealthStatus(msg string, state domain.HealthState, args ...any)

	With(args ...any) StyledLogger
	WithRequestID(requestID string) StyledLogger
	GetUnderlying() *slog.Logger
}

// PrettyStyledLogger implements StyledLogger with pterm formatting
type PrettyStyledLogger struct {
	logger *slog.Logger
	Theme  *theme.Theme
}

func NewPrettyStyledLogger(logger *slog.Logger, theme *theme.Theme) *PrettyStyledLogger {
	return &PrettyStyledLogger{
		logger: logger,
		Theme:  theme,
	}
}

func (sl *PrettyStyledLogger) Debug(msg string, args ...any) {
	sl.logger.Debug(msg, args...)
}

func (sl *PrettyStyledLogger) Info(msg string, args ...any) {
	sl.logger.Info(msg, args...)
}

func (sl *PrettyStyledLogger) Warn(msg string, args ...any) {
	sl.logger.Warn(msg, args...)
}

func (sl *PrettyStyledLogger) Error(msg string, args ...any) {
	sl.logger.Error(msg, args...)
}

func (sl *PrettyStyledLogger) InfoWithCount(msg string, count int, args ...any) {
	styledMsg := fmt.Sprintf("%s %s", msg, sl.Theme.Highlight.Sprint("(", count, ")"))
	sl.logger.Info(styledMsg, args...)
}

func (sl *PrettyStyledLogger) InfoHealthStatus(msg string, state domain.HealthState, args ...any) {
	var statusColor pterm.Color

	switch state {
	case domain.HealthHealthy:
		statusColor = sl.Theme.Healthy
	case domain.HealthDegraded:
		statusColor = sl.Theme.Degraded
	case domain.HealthUnhealthy:
		statusColor = sl.Theme.Unhealthy
	}

	styledMsg := fmt.Sprintf("%s %s", msg, pterm.Style{statusColor}.Sprint(state.String()))
	sl.logger.Info(styledMsg, args...)
}

func (sl *PrettyStyledLogger) With(args ...any) StyledLogger {
	return &PrettyStyledLogger{
		logger: sl.logger.With(args...),
		Theme:  sl.Theme,
	}
}

func (sl *PrettyStyledLogger) WithRequestID(requestID string) StyledLogger {
	return sl.With("request_id", requestID)
}

func (sl *PrettyStyledLogger) GetUnderlying() *slog.Logger {
	return sl.logger
}
