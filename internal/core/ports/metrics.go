package ports

import (
	"time"

	"github.com/empathlabs/aingest/internal/core/domain"
)

// MetricsCollector accumulates parse outcomes process-wide and derives
// aggregate and health views. Implementations must be safe for concurrent
// recording from independent readers and facades.
type MetricsCollector interface {
	Record(operationType, model string, success bool, duration time.Duration, errorKind string)

	Overall() OverallMetrics
	ByOperationType(operationType string) OverallMetrics
	ByModel(model string) OverallMetrics
	ByErrorKind(errorKind string) ErrorMetrics
	InTimeRange(start, end time.Time) OverallMetrics
	PerformanceSummary() PerformanceSummary
	HealthStatus() HealthStatus
	Reset()
}

// OverallMetrics is the aggregate view over a set of parsing records.
type OverallMetrics struct {
	TotalRequests      int64   `json:"total_requests"`
	SuccessfulRequests int64   `json:"successful_requests"`
	FailedRequests     int64   `json:"failed_requests"`
	AverageDurationMs  float64 `json:"avg_duration_ms"`
	SuccessRate        float64 `json:"success_rate_percent"`
}

// ErrorMetrics is the aggregate view filtered by error kind.
type ErrorMetrics struct {
	Count           int64   `json:"count"`
	AverageDuration float64 `json:"avg_duration_ms"`
}

// PerformanceSummary extends the overall view with per-key request counts.
type PerformanceSummary struct {
	OperationTypeDistribution map[string]int64 `json:"operation_type_distribution"`
	ModelDistribution         map[string]int64 `json:"model_distribution"`
	OverallMetrics
}

// HealthStatus is the derived health classification of the pipeline.
type HealthStatus struct {
	State             domain.HealthState `json:"-"`
	Status            string             `json:"status"`
	SuccessRate       float64            `json:"success_rate_percent"`
	AverageDurationMs float64            `json:"avg_duration_ms"`
	TotalRequests     int64              `json:"total_requests"`
	IsHealthy         bool               `json:"is_healthy"`
}
