package relay

import (
	"context"
	"errors"
	"log"

	"github.com/dhvani-ai/dhvani/internal/observability"
)

// LogSink records provider failures that are never surfaced to the client:
// a log line for the operator and a labeled counter for dashboards.
type LogSink struct {
	metrics *observability.Metrics
}

func NewLogSink(metrics *observability.Metrics) *LogSink {
	return &LogSink{metrics: metrics}
}

func (s *LogSink) Report(sessionID, stage string, err error) {
	code := "error"
	if errors.Is(err, context.DeadlineExceeded) {
		code = "timeout"
	}
	log.Printf("session=%s stage=%s provider error (%s): %v", sessionID, stage, code, err)
	if s.metrics != nil {
		s.metrics.ProviderErrors.WithLabelValues(stage, code).Inc()
	}
}
