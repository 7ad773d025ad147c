package metrics

/*
			Parse Telemetry Collector
	Every parse attempt - streaming or single-shot, success or failure -
	lands here as one immutable record. The collector keeps cheap atomic
	aggregates for the hot overall view, per-key buckets for the filtered
	views, and the raw record log for time-range queries.

	Recording is hit concurrently by every in-flight request, so the write
	path is lock-light: atomic counters plus xsync buckets, with a read lock
	only to fence against Reset swapping the state out underneath a writer.
	Recording never does I/O and never propagates a failure to the caller.
*/

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/puzpuzpuz/xsync/v4"

	"github.com/empathlabs/aingest/internal/core/domain"
	"github.com/empathlabs/aingest/internal/core/ports"
	"github.com/empathlabs/aingest/internal/logger"
)

const (
	healthyMinSuccessRate = 95.0
	healthyMaxDurationMs  = 1000.0

	// Clearly bad on both axes is UNHEALTHY; bad on one axis is DEGRADED.
	unhealthyMaxSuccessRate   = 50.0
	unhealthyMinDurationMs    = 2000.0
	unhealthyMixedSuccessRate = 75.0
)

// Collector is the process-wide MetricsCollector implementation. Construct
// one per process and inject it; tests get isolated instances for free.
type Collector struct {
	logger logger.StyledLogger

	operations *xsync.Map[string, *bucket]
	models     *xsync.Map[string, *bucket]
	errorKinds *xsync.Map[string, *errorBucket]

	records []domain.ParsingRecord

	totalRequests      int64
	successfulRequests int64
	failedRequests     int64
	totalDurationMs    int64

	mu sync.RWMutex
}

type bucket struct {
	totalRequests      *xsync.Counter
	successfulRequests *xsync.Counter
	failedRequests     *xsync.Counter
	totalDurationMs    *xsync.Counter
}

type errorBucket struct {
	count           *xsync.Counter
	totalDurationMs *xsync.Counter
}

func NewCollector(log logger.StyledLogger) *Collector {
	return &Collector{
		logger:     log,
		operations: xsync.NewMap[string, *bucket](),
		models:     xsync.NewMap[string, *bucket](),
		errorKinds: xsync.NewMap[string, *errorBucket](),
	}
}

// Record appends one parsing outcome. It never fails the caller: internal
// problems are logged and swallowed.
func (c *Collector) Record(operationType, model string, success bool, duration time.Duration, errorKind string) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("metrics recording failed", "panic", r)
		}
	}()

	durationMs := duration.Milliseconds()
	record := domain.ParsingRecord{
		OperationType: operationType,
		Model:         model,
		Success:       success,
		DurationMs:    durationMs,
		ErrorKind:     errorKind,
		Timestamp:     time.Now(),
	}

	// Read lock fences against Reset; writers still scale via atomics.
	c.mu.RLock()
	atomic.AddInt64(&c.totalRequests, 1)
	atomic.AddInt64(&c.totalDurationMs, durationMs)
	if success {
		atomic.AddInt64(&c.successfulRequests, 1)
	} else {
		atomic.AddInt64(&c.failedRequests, 1)
	}

	c.getOrInitBucket(c.operations, operationType).add(success, durationMs)
	c.getOrInitBucket(c.models, model).add(success, durationMs)

	if errorKind != "" {
		eb, _ := c.errorKinds.LoadOrCompute(errorKind, func() (*errorBucket, bool) {
			return &errorBucket{
				count:           xsync.NewCounter(),
				totalDurationMs: xsync.NewCounter(),
			}, false
		})
		eb.count.Inc()
		eb.totalDurationMs.Add(durationMs)
	}
	c.mu.RUnlock()

	c.mu.Lock()
	c.records = append(c.records, record)
	c.mu.Unlock()
}

// Overall returns the aggregate view across every recorded attempt.
func (c *Collector) Overall() ports.OverallMetrics {
	total := atomic.LoadInt64(&c.totalRequests)
	successful := atomic.LoadInt64(&c.successfulRequests)
	failed := atomic.LoadInt64(&c.failedRequests)
	totalDuration := atomic.LoadInt64(&c.totalDurationMs)

	return makeMetrics(total, successful, failed, totalDuration)
}

// ByOperationType returns the aggregate view filtered to one operation type.
func (c *Collector) ByOperationType(operationType string) ports.OverallMetrics {
	if b, ok := c.operations.Load(operationType); ok {
		return b.metrics()
	}
	return ports.OverallMetrics{}
}

// ByModel returns the aggregate view filtered to one model.
func (c *Collector) ByModel(model string) ports.OverallMetrics {
	if b, ok := c.models.Load(model); ok {
		return b.metrics()
	}
	return ports.OverallMetrics{}
}

// ByErrorKind returns count and average duration for one error kind.
func (c *Collector) ByErrorKind(errorKind string) ports.ErrorMetrics {
	eb, ok := c.errorKinds.Load(errorKind)
	if !ok {
		return ports.ErrorMetrics{}
	}

	count := eb.count.Value()
	avg := 0.0
	if count > 0 {
		avg = float64(eb.totalDurationMs.Value()) / float64(count)
	}
	return ports.ErrorMetrics{Count: count, AverageDuration: avg}
}

// InTimeRange aggregates the records whose timestamp falls in [start, end].
func (c *Collector) InTimeRange(start, end time.Time) ports.OverallMetrics {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var total, successful, failed, totalDuration int64
	for _, record := range c.records {
		if record.Timestamp.Before(start) || record.Timestamp.After(end) {
			continue
		}
		total++
		totalDuration += record.DurationMs
		if record.Success {
			successful++
		} else {
			failed++
		}
	}

	return makeMetrics(total, successful, failed, totalDuration)
}

// PerformanceSummary adds per-operation-type and per-model request counts to
// the overall view.
func (c *Collector) PerformanceSummary() ports.PerformanceSummary {
	summary := ports.PerformanceSummary{
		OverallMetrics:            c.Overall(),
		OperationTypeDistribution: make(map[string]int64),
		ModelDistribution:         make(map[string]int64),
	}

	c.operations.Range(func(key string, b *bucket) bool {
		summary.OperationTypeDistribution[key] = b.totalRequests.Value()
		return true
	})
	c.models.Range(func(key string, b *bucket) bool {
		summary.ModelDistribution[key] = b.totalRequests.Value()
		return true
	})

	return summary
}

// HealthStatus classifies the overall aggregate. With no traffic yet there
// is nothing wrong to report, so the pipeline counts as healthy.
func (c *Collector) HealthStatus() ports.HealthStatus {
	overall := c.Overall()

	state := domain.HealthDegraded
	switch {
	case overall.TotalRequests == 0:
		state = domain.HealthHealthy
	case overall.SuccessRate >= healthyMinSuccessRate && overall.AverageDurationMs <= healthyMaxDurationMs:
		state = domain.HealthHealthy
	case overall.SuccessRate < unhealthyMaxSuccessRate:
		state = domain.HealthUnhealthy
	case overall.AverageDurationMs > unhealthyMinDurationMs && overall.SuccessRate < unhealthyMixedSuccessRate:
		state = domain.HealthUnhealthy
	}

	return ports.HealthStatus{
		State:             state,
		Status:            state.String(),
		IsHealthy:         state == domain.HealthHealthy,
		SuccessRate:       overall.SuccessRate,
		AverageDurationMs: overall.AverageDurationMs,
		TotalRequests:     overall.TotalRequests,
	}
}

// Reset clears all accumulated state. Used by tests and periodic telemetry
// rollover.
func (c *Collector) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()

	atomic.StoreInt64(&c.totalRequests, 0)
	atomic.StoreInt64(&c.successfulRequests, 0)
	atomic.StoreInt64(&c.failedRequests, 0)
	atomic.StoreInt64(&c.totalDurationMs, 0)

	c.operations = xsync.NewMap[string, *bucket]()
	c.models = xsync.NewMap[string, *bucket]()
	c.errorKinds = xsync.NewMap[string, *errorBucket]()
	c.records = nil
}

func (c *Collector) getOrInitBucket(m *xsync.Map[string, *bucket], key string) *bucket {
	b, _ := m.LoadOrCompute(key, func() (*bucket, bool) {
		return &bucket{
			totalRequests:      xsync.NewCounter(),
			successfulRequests: xsync.NewCounter(),
			failedRequests:     xsync.NewCounter(),
			totalDurationMs:    xsync.NewCounter(),
		}, false
	})
	return b
}

func (b *bucket) add(success bool, durationMs int64) {
	b.totalRequests.Inc()
	b.totalDurationMs.Add(durationMs)
	if success {
		b.successfulRequests.Inc()
	} else {
		b.failedRequests.Inc()
	}
}

func (b *bucket) metrics() ports.OverallMetrics {
	return makeMetrics(
		b.totalRequests.Value(),
		b.successfulRequests.Value(),
		b.failedRequests.Value(),
		b.totalDurationMs.Value(),
	)
}

func makeMetrics(total, successful, failed, totalDurationMs int64) ports.OverallMetrics {
	metrics := ports.OverallMetrics{
		TotalRequests:      total,
		SuccessfulRequests: successful,
		FailedRequests:     failed,
	}
	if total > 0 {
		metrics.AverageDurationMs = float64(totalDurationMs) / float64(total)
		metrics.SuccessRate = float64(successful) / float64(total) * 100
	}
	return metrics
}
