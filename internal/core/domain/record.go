package domain

import "time"

// ParsingRecord is the unit of parse telemetry. Records are created once per
// parse attempt, handed to the collector and never mutated afterwards.
type ParsingRecord struct {
	Timestamp     time.Time
	OperationType string
	Model         string
	ErrorKind     string
	DurationMs    int64
	Success       bool
}
