package audit

import (
	"context"
	"log/slog"
	"time"
)

const writeTimeout = 5 * time.Second

// Worker drains an event channel into a sink until the channel closes.
type Worker struct {
	sink   Sink
	inbox  <-chan Event
	logger *slog.Logger
}

func NewWorker(sink Sink, inbox <-chan Event, logger *slog.Logger) *Worker {
	return &Worker{sink: sink, inbox: inbox, logger: logger}
}

func (w *Worker) Run() {
	for event := range w.inbox {
		ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
		if err := w.sink.Write(ctx, event); err != nil {
			w.logger.Warn("audit sink write failed",
				"action", string(event.Action),
				"identity_id", event.IdentityID.String(),
				"error", err,
			)
		}
		cancel()
	}
}
