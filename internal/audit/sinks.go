package audit

import (
	"context"
	"log/slog"
	"sync"

	id "eventpass/pkg/domain"
)

// LogSink writes events as structured log lines.
type LogSink struct {
	logger *slog.Logger
}

func NewLogSink(logger *slog.Logger) *LogSink {
	return &LogSink{logger: logger}
}

func (s *LogSink) Write(ctx context.Context, e Event) error {
	s.logger.InfoContext(ctx, "audit",
		"action", string(e.Action),
		"identity_id", e.IdentityID.String(),
		"credential_id", e.CredentialID,
		"request_id", e.RequestID,
		"detail", e.Detail,
		"timestamp", e.Timestamp,
	)
	return nil
}

// MemorySink keeps events per identity. Used by tests and the memory profile.
type MemorySink struct {
	mu     sync.RWMutex
	events map[id.IdentityID][]Event
}

func NewMemorySink() *MemorySink {
	return &MemorySink{events: make(map[id.IdentityID][]Event)}
}

func (s *MemorySink) Write(_ context.Context, e Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events[e.IdentityID] = append(s.events[e.IdentityID], e)
	return nil
}

// ListByIdentity returns a copy of the events recorded for identity.
func (s *MemorySink) ListByIdentity(identity id.IdentityID) []Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Event{}, s.events[identity]...)
}

// Actions returns the recorded actions for identity in order.
func (s *MemorySink) Actions(identity id.IdentityID) []Action {
	events := s.ListByIdentity(identity)
	out := make([]Action, len(events))
	for i, e := range events {
		out[i] = e.Action
	}
	return out
}

// MultiSink writes to every sink and returns the first error.
type MultiSink []Sink

func (m MultiSink) Write(ctx context.Context, e Event) error {
	var first error
	for _, s := range m {
		if err := s.Write(ctx, e); err != nil && first == nil {
			first = err
		}
	}
	return first
}
