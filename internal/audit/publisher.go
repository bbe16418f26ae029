// Package audit records what happened to each registration. Emitting never
// fails the calling operation; sink errors are logged and dropped.
package audit

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"eventpass/pkg/requestcontext"
)

// Sink persists or forwards audit events.
type Sink interface {
	Write(ctx context.Context, event Event) error
}

// Publisher stamps events and hands them to a sink, either inline or
// through a buffered worker.
type Publisher struct {
	sink   Sink
	logger *slog.Logger
	clock  func() time.Time

	inbox  chan Event
	wg     sync.WaitGroup
	closed sync.Once
}

type Option func(*Publisher)

func WithLogger(logger *slog.Logger) Option {
	return func(p *Publisher) {
		p.logger = logger
	}
}

// WithAsyncBuffer makes Emit non-blocking. Events beyond the buffer are
// dropped and logged.
func WithAsyncBuffer(size int) Option {
	return func(p *Publisher) {
		if size > 0 {
			p.inbox = make(chan Event, size)
		}
	}
}

func WithClock(clock func() time.Time) Option {
	return func(p *Publisher) {
		p.clock = clock
	}
}

func NewPublisher(sink Sink, opts ...Option) *Publisher {
	p := &Publisher{sink: sink, logger: slog.Default(), clock: time.Now}
	for _, opt := range opts {
		opt(p)
	}
	if p.inbox != nil {
		w := NewWorker(sink, p.inbox, p.logger)
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			w.Run()
		}()
	}
	return p
}

// Emit fills in timestamp and request id from ctx and publishes.
func (p *Publisher) Emit(ctx context.Context, event Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = p.clock()
	}
	if event.RequestID == "" {
		event.RequestID = requestcontext.RequestID(ctx)
	}

	if p.inbox == nil {
		if err := p.sink.Write(ctx, event); err != nil {
			p.logger.WarnContext(ctx, "audit sink write failed",
				"action", string(event.Action),
				"identity_id", event.IdentityID.String(),
				"error", err,
			)
		}
		return
	}

	select {
	case p.inbox <- event:
	default:
		p.logger.WarnContext(ctx, "audit buffer full, dropping event",
			"action", string(event.Action),
			"identity_id", event.IdentityID.String(),
		)
	}
}

// Close drains buffered events. Emit must not be called afterwards.
func (p *Publisher) Close() {
	p.closed.Do(func() {
		if p.inbox != nil {
			close(p.inbox)
			p.wg.Wait()
		}
	})
}
