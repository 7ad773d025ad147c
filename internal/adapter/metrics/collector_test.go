package metrics

import (
	"fmt"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/empathlabs/aingest/internal/core/domain"
	"github.com/empathlabs/aingest/internal/logger"
)

func createTestCollector() *Collector {
	return NewCollector(logger.NewPlainStyledLogger(slog.New(slog.DiscardHandler)))
}

func TestCollector_RecordSuccess(t *testing.T) {
	c := createTestCollector()

	c.Record("chat", "gpt-4", true, 150*time.Millisecond, "")

	overall := c.Overall()
	assert.Equal(t, int64(1), overall.TotalRequests)
	assert.Equal(t, int64(1), overall.SuccessfulRequests)
	assert.Equal(t, int64(0), overall.FailedRequests)
	assert.InDelta(t, 150.0, overall.AverageDurationMs, 0.01)
	assert.InDelta(t, 100.0, overall.SuccessRate, 0.01)
}

func TestCollector_RecordFailure(t *testing.T) {
	c := createTestCollector()

	c.Record("chat", "gpt-4", false, 300*time.Millisecond, "timeout")

	overall := c.Overall()
	assert.Equal(t, int64(1), overall.TotalRequests)
	assert.Equal(t, int64(0), overall.SuccessfulRequests)
	assert.Equal(t, int64(1), overall.FailedRequests)
	assert.InDelta(t, 0.0, overall.SuccessRate, 0.01)

	errMetrics := c.ByErrorKind("timeout")
	assert.Equal(t, int64(1), errMetrics.Count)
	assert.InDelta(t, 300.0, errMetrics.AverageDuration, 0.01)
}

func TestCollector_AverageIncludesFailures(t *testing.T) {
	c := createTestCollector()

	c.Record("chat", "gpt-4", true, 100*time.Millisecond, "")
	c.Record("chat", "gpt-4", false, 300*time.Millisecond, "timeout")

	overall := c.Overall()
	assert.Equal(t, int64(2), overall.TotalRequests)
	assert.InDelta(t, 200.0, overall.AverageDurationMs, 0.01)
	assert.InDelta(t, 50.0, overall.SuccessRate, 0.01)
}

func TestCollector_ByOperationType(t *testing.T) {
	c := createTestCollector()

	c.Record("chat", "gpt-4", true, 100*time.Millisecond, "")
	c.Record("chat", "gpt-4", true, 200*time.Millisecond, "")
	c.Record("completion", "gpt-4", false, 400*time.Millisecond, "parse_error")

	chat := c.ByOperationType("chat")
	assert.Equal(t, int64(2), chat.TotalRequests)
	assert.Equal(t, int64(2), chat.SuccessfulRequests)
	assert.InDelta(t, 150.0, chat.AverageDurationMs, 0.01)
	assert.InDelta(t, 100.0, chat.SuccessRate, 0.01)

	completion := c.ByOperationType("completion")
	assert.Equal(t, int64(1), completion.TotalRequests)
	assert.Equal(t, int64(1), completion.FailedRequests)

	unknown := c.ByOperationType("embedding")
	assert.Equal(t, int64(0), unknown.TotalRequests)
	assert.InDelta(t, 0.0, unknown.SuccessRate, 0.01)
}

func TestCollector_ByModel(t *testing.T) {
	c := createTestCollector()

	c.Record("chat", "gpt-4", true, 100*time.Millisecond, "")
	c.Record("chat", "claude-3", true, 300*time.Millisecond, "")
	c.Record("chat", "claude-3", false, 500*time.Millisecond, "stream_error")

	claude := c.ByModel("claude-3")
	assert.Equal(t, int64(2), claude.TotalRequests)
	assert.Equal(t, int64(1), claude.SuccessfulRequests)
	assert.Equal(t, int64(1), claude.FailedRequests)
	assert.InDelta(t, 400.0, claude.AverageDurationMs, 0.01)
	assert.InDelta(t, 50.0, claude.SuccessRate, 0.01)

	assert.Equal(t, int64(0), c.ByModel("nonexistent").TotalRequests)
}

func TestCollector_ByErrorKindAveragesAcrossOccurrences(t *testing.T) {
	c := createTestCollector()

	c.Record("chat", "gpt-4", false, 100*time.Millisecond, "timeout")
	c.Record("chat", "gpt-4", false, 300*time.Millisecond, "timeout")
	c.Record("chat", "gpt-4", false, 50*time.Millisecond, "auth")

	timeout := c.ByErrorKind("timeout")
	assert.Equal(t, int64(2), timeout.Count)
	assert.InDelta(t, 200.0, timeout.AverageDuration, 0.01)

	auth := c.ByErrorKind("auth")
	assert.Equal(t, int64(1), auth.Count)

	assert.Equal(t, int64(0), c.ByErrorKind("never_seen").Count)
}

func TestCollector_PerformanceSummary(t *testing.T) {
	c := createTestCollector()

	c.Record("chat", "gpt-4", true, 100*time.Millisecond, "")
	c.Record("chat", "claude-3", true, 150*time.Millisecond, "")
	c.Record("completion", "gpt-4", false, 200*time.Millisecond, "parse_error")

	summary := c.PerformanceSummary()
	assert.Equal(t, int64(3), summary.TotalRequests)
	assert.Equal(t, int64(2), summary.OperationTypeDistribution["chat"])
	assert.Equal(t, int64(1), summary.OperationTypeDistribution["completion"])
	assert.Equal(t, int64(2), summary.ModelDistribution["gpt-4"])
	assert.Equal(t, int64(1), summary.ModelDistribution["claude-3"])
}

func TestCollector_HealthStatus(t *testing.T) {
	t.Run("no traffic is healthy", func(t *testing.T) {
		c := createTestCollector()

		status := c.HealthStatus()
		assert.Equal(t, domain.HealthHealthy, status.State)
		assert.True(t, status.IsHealthy)
		assert.Equal(t, int64(0), status.TotalRequests)
	})

	t.Run("fast successes are healthy", func(t *testing.T) {
		c := createTestCollector()
		for range 20 {
			c.Record("chat", "gpt-4", true, 100*time.Millisecond, "")
		}

		status := c.HealthStatus()
		assert.Equal(t, domain.HealthHealthy, status.State)
		assert.Equal(t, "HEALTHY", status.Status)
		assert.True(t, status.IsHealthy)
	})

	t.Run("all failures are unhealthy", func(t *testing.T) {
		c := createTestCollector()
		for range 10 {
			c.Record("chat", "gpt-4", false, 2*time.Second, "timeout")
		}

		status := c.HealthStatus()
		assert.Equal(t, domain.HealthUnhealthy, status.State)
		assert.Equal(t, "UNHEALTHY", status.Status)
		assert.False(t, status.IsHealthy)
	})

	t.Run("half failing at moderate latency is degraded", func(t *testing.T) {
		c := createTestCollector()
		for range 5 {
			c.Record("chat", "gpt-4", true, 1*time.Second, "")
		}
		for range 5 {
			c.Record("chat", "gpt-4", false, 1*time.Second, "stream_error")
		}

		status := c.HealthStatus()
		assert.Equal(t, domain.HealthDegraded, status.State)
		assert.Equal(t, "DEGRADED", status.Status)
		assert.False(t, status.IsHealthy)
	})

	t.Run("slow but mostly succeeding is degraded", func(t *testing.T) {
		c := createTestCollector()
		for range 19 {
			c.Record("chat", "gpt-4", true, 3*time.Second, "")
		}
		c.Record("chat", "gpt-4", false, 3*time.Second, "timeout")

		status := c.HealthStatus()
		assert.Equal(t, domain.HealthDegraded, status.State)
	})
}

func TestCollector_InTimeRange(t *testing.T) {
	c := createTestCollector()

	before := time.Now().Add(-time.Minute)
	c.Record("chat", "gpt-4", true, 100*time.Millisecond, "")
	c.Record("chat", "gpt-4", false, 200*time.Millisecond, "timeout")
	after := time.Now().Add(time.Minute)

	inRange := c.InTimeRange(before, after)
	assert.Equal(t, int64(2), inRange.TotalRequests)
	assert.Equal(t, int64(1), inRange.SuccessfulRequests)
	assert.InDelta(t, 150.0, inRange.AverageDurationMs, 0.01)

	past := c.InTimeRange(before.Add(-time.Hour), before)
	assert.Equal(t, int64(0), past.TotalRequests)
}

func TestCollector_Reset(t *testing.T) {
	c := createTestCollector()

	c.Record("chat", "gpt-4", true, 100*time.Millisecond, "")
	c.Record("chat", "gpt-4", false, 200*time.Millisecond, "timeout")
	require.Equal(t, int64(2), c.Overall().TotalRequests)

	c.Reset()

	overall := c.Overall()
	assert.Equal(t, int64(0), overall.TotalRequests)
	assert.Equal(t, int64(0), overall.SuccessfulRequests)
	assert.Equal(t, int64(0), overall.FailedRequests)
	assert.Equal(t, int64(0), c.ByOperationType("chat").TotalRequests)
	assert.Equal(t, int64(0), c.ByModel("gpt-4").TotalRequests)
	assert.Equal(t, int64(0), c.ByErrorKind("timeout").Count)
	assert.Equal(t, int64(0), c.InTimeRange(time.Now().Add(-time.Hour), time.Now()).TotalRequests)
}

func TestCollector_ConcurrentRecording(t *testing.T) {
	c := createTestCollector()

	const goroutines = 10
	const perGoroutine = 10

	var wg sync.WaitGroup
	for g := range goroutines {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := range perGoroutine {
				success := i%2 == 0
				errorKind := ""
				if !success {
					errorKind = "stream_error"
				}
				model := fmt.Sprintf("model-%d", g%3)
				c.Record("chat", model, success, time.Duration(i+1)*time.Millisecond, errorKind)
			}
		}(g)
	}
	wg.Wait()

	overall := c.Overall()
	assert.Equal(t, int64(goroutines*perGoroutine), overall.TotalRequests)
	assert.Equal(t, int64(50), overall.SuccessfulRequests)
	assert.Equal(t, int64(50), overall.FailedRequests)
	assert.Equal(t, int64(50), c.ByErrorKind("stream_error").Count)
}

func TestCollector_PartitionSumsMatchOverall(t *testing.T) {
	c := createTestCollector()

	ops := []string{"chat", "completion", "chat", "chat", "completion"}
	models := []string{"gpt-4", "gpt-4", "claude-3", "claude-3", "llama-3"}
	for i := range ops {
		c.Record(ops[i], models[i], i%2 == 0, time.Duration(50*(i+1))*time.Millisecond, "")
	}

	overall := c.Overall()

	var byOp int64
	for _, op := range []string{"chat", "completion"} {
		byOp += c.ByOperationType(op).TotalRequests
	}
	assert.Equal(t, overall.TotalRequests, byOp)

	var byModel int64
	for _, m := range []string{"gpt-4", "claude-3", "llama-3"} {
		byModel += c.ByModel(m).TotalRequests
	}
	assert.Equal(t, overall.TotalRequests, byModel)
}
