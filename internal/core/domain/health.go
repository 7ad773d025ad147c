package domain

// HealthState classifies aggregate parse telemetry.
type HealthState int

const (
	HealthHealthy HealthState = iota
	HealthDegraded
	HealthUnhealthy
)

func (s HealthState) String() string {
	switch s {
	case HealthHealthy:
		return "HEALTHY"
	case HealthDegraded:
		return "DEGRADED"
	case HealthUnhealthy:
		return "UNHEALTHY"
	default:
		return "UNKNOWN"
	}
}
