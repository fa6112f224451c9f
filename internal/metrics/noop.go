package metrics

import "time"

// NoopMetrics is a no-operation implementation of Recorder.
// All methods are empty and do nothing, providing zero overhead when metrics are disabled.
type NoopMetrics struct{}

// Ensure NoopMetrics implements Recorder interface at compile time
var _ Recorder = (*NoopMetrics)(nil)

// NewNoopMetrics creates a new no-operation metrics recorder
func NewNoopMetrics() Recorder {
	return &NoopMetrics{}
}

// Token refresh - noop implementations
func (n *NoopMetrics) RecordRefreshAttempt(outcome string, duration time.Duration) {}
func (n *NoopMetrics) RecordRefreshDeduplicated()                                  {}
func (n *NoopMetrics) RecordRefreshRejected(reason string)                         {}

// Token validation - noop implementations
func (n *NoopMetrics) RecordTokenValidation(reason string) {}

// Session lifecycle - noop implementations
func (n *NoopMetrics) RecordSessionCreated()                                     {}
func (n *NoopMetrics) RecordSessionEnded(reason string, duration time.Duration)  {}
func (n *NoopMetrics) RecordSessionWarning()                                     {}
func (n *NoopMetrics) RecordManagerTransition(state string)                      {}
func (n *NoopMetrics) SetActiveSessionsCount(count int)                          {}

// Cache - noop implementations
func (n *NoopMetrics) RecordCacheHit(cacheType string)  {}
func (n *NoopMetrics) RecordCacheMiss(cacheType string) {}

// Database - noop implementations
func (n *NoopMetrics) RecordDatabaseQueryError(operation string) {}
