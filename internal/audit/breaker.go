package audit

import (
	"context"
	"fmt"
	"log/slog"

	"eventpass/pkg/platform/circuit"
	"eventpass/pkg/platform/sentinel"
)

// BreakerSink stops calling a failing sink until its breaker allows a probe.
// Skipped events are reported as ErrUnavailable; other sinks in a MultiSink
// still receive them.
type BreakerSink struct {
	sink    Sink
	breaker *circuit.Breaker
	logger  *slog.Logger
}

func NewBreakerSink(sink Sink, breaker *circuit.Breaker, logger *slog.Logger) *BreakerSink {
	return &BreakerSink{sink: sink, breaker: breaker, logger: logger}
}

func (s *BreakerSink) Write(ctx context.Context, e Event) error {
	if !s.breaker.Allow() {
		return fmt.Errorf("%s circuit open: %w", s.breaker.Name(), sentinel.ErrUnavailable)
	}

	if err := s.sink.Write(ctx, e); err != nil {
		if _, change := s.breaker.RecordFailure(); change.Opened {
			s.logger.WarnContext(ctx, "audit sink circuit opened",
				"sink", s.breaker.Name(),
				"error", err,
			)
		}
		return err
	}

	if _, change := s.breaker.RecordSuccess(); change.Closed {
		s.logger.InfoContext(ctx, "audit sink circuit closed", "sink", s.breaker.Name())
	}
	return nil
}
