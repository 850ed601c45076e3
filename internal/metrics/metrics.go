package metrics

import (
	"net/http"
	"time"
)

// Metrics interface for dependency injection
type Metrics interface {
	RecordHTTPRequest(method, endpoint string, statusCode int, duration time.Duration)
	RecordStoreOp(entity, op, status string)
	RecordNotifierScan(duration time.Duration, sent int)
	RecordMailSent(status string)
	Handler() http.Handler
}

// NoOpMetrics provides a no-op implementation
type NoOpMetrics struct{}

func (m *NoOpMetrics) RecordHTTPRequest(method, endpoint string, statusCode int, duration time.Duration) {
}
func (m *NoOpMetrics) RecordStoreOp(entity, op, status string)               {}
func (m *NoOpMetrics) RecordNotifierScan(duration time.Duration, sent int)   {}
func (m *NoOpMetrics) RecordMailSent(status string)                          {}
func (m *NoOpMetrics) Handler() http.Handler                                 { return http.NotFoundHandler() }

// Global metrics instance
var globalMetrics Metrics = &NoOpMetrics{}

// Init initializes metrics (no-op for now, can be extended with Prometheus)
func Init() {
	// For now, keep using no-op metrics
}

// Handler returns the metrics handler
func Handler() http.Handler {
	return globalMetrics.Handler()
}

// RecordHTTPRequest records HTTP request metrics
func RecordHTTPRequest(method, endpoint string, statusCode int, duration time.Duration) {
	globalMetrics.RecordHTTPRequest(method, endpoint, statusCode, duration)
}

// RecordStoreOp records a persistence operation
func RecordStoreOp(entity, op, status string) {
	globalMetrics.RecordStoreOp(entity, op, status)
}

// RecordNotifierScan records one notifier scan
func RecordNotifierScan(duration time.Duration, sent int) {
	globalMetrics.RecordNotifierScan(duration, sent)
}

// RecordMailSent records an outbound mail attempt
func RecordMailSent(status string) {
	globalMetrics.RecordMailSent(status)
}
