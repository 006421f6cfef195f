package metrics

import "time"

// ResultLabel enumerates operation result categories for counters.
type ResultLabel string

const (
	ResultSuccess      ResultLabel = "success"
	ResultConflict     ResultLabel = "conflict"
	ResultUnauthorized ResultLabel = "unauthorized"
	ResultNotFound     ResultLabel = "not_found"
	ResultFailed       ResultLabel = "failed"
)

// Recorder defines observability hooks for registry operations and record counts.
type Recorder interface {
	ObserveOperation(op string, d time.Duration)
	IncOperationResult(op string, result ResultLabel)
	SetRecords(state string, n int)
	IncObserverFailure(observer string)
}

// NoopRecorder is a Recorder that does nothing (default when metrics not configured).
type NoopRecorder struct{}

func (NoopRecorder) ObserveOperation(string, time.Duration) {}
func (NoopRecorder) IncOperationResult(string, ResultLabel) {}
func (NoopRecorder) SetRecords(string, int)                 {}
func (NoopRecorder) IncObserverFailure(string)              {}
