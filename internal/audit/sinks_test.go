package audit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"eventpass/internal/platform/database"
	id "eventpass/pkg/domain"
	"eventpass/pkg/platform/circuit"
	"eventpass/pkg/platform/sentinel"
)

type flakySink struct {
	calls int
	err   error
}

func (s *flakySink) Write(context.Context, Event) error {
	s.calls++
	return s.err
}

func TestBreakerSinkStopsCallingFailingSink(t *testing.T) {
	now := time.Date(2025, 8, 24, 9, 0, 0, 0, time.UTC)
	inner := &flakySink{err: errors.New("broker down")}
	breaker := circuit.New("kafka",
		circuit.WithFailureThreshold(2),
		circuit.WithCooldown(time.Minute),
		circuit.WithClock(func() time.Time { return now }),
	)
	sink := NewBreakerSink(inner, breaker, discard)
	ctx := context.Background()
	e := Event{Action: ActionProfileLocked, IdentityID: id.NewIdentityID()}

	assert.Error(t, sink.Write(ctx, e))
	assert.Error(t, sink.Write(ctx, e))
	assert.True(t, breaker.IsOpen())

	err := sink.Write(ctx, e)
	assert.ErrorIs(t, err, sentinel.ErrUnavailable)
	assert.Equal(t, 2, inner.calls, "open breaker skips the sink")

	now = now.Add(time.Minute)
	inner.err = nil
	require.NoError(t, sink.Write(ctx, e))
	assert.Equal(t, 3, inner.calls)
	assert.False(t, breaker.IsOpen())
}

func TestMultiSinkKeepsWritingAfterFailure(t *testing.T) {
	failing := &flakySink{err: errors.New("boom")}
	mem := NewMemorySink()
	identity := id.NewIdentityID()

	err := MultiSink{failing, mem}.Write(context.Background(), Event{Action: ActionDraftSaved, IdentityID: identity})
	assert.Error(t, err)
	assert.Equal(t, []Action{ActionDraftSaved}, mem.Actions(identity))
}

func TestSQLSinkRoundTrip(t *testing.T) {
	ctx := context.Background()
	db, err := database.OpenSQLite(ctx, database.MemorySQLiteDSN(t.Name()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, database.MigrateSQLite(db))

	sink := NewSQLiteSink(db)
	identity := id.NewIdentityID()
	base := time.Date(2025, 8, 24, 9, 0, 0, 0, time.UTC)

	require.NoError(t, sink.Write(ctx, Event{Action: ActionDraftSaved, IdentityID: identity, RequestID: "r1", Timestamp: base}))
	require.NoError(t, sink.Write(ctx, Event{
		Action:       ActionProfileLocked,
		IdentityID:   identity,
		CredentialID: "AP-JLN20250007",
		Timestamp:    base.Add(500 * time.Millisecond),
	}))
	require.NoError(t, sink.Write(ctx, Event{Action: ActionDraftSaved, IdentityID: id.NewIdentityID(), Timestamp: base}))

	events, err := sink.ListByIdentity(ctx, identity)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, ActionDraftSaved, events[0].Action)
	assert.Equal(t, "r1", events[0].RequestID)
	assert.Equal(t, ActionProfileLocked, events[1].Action)
	assert.Equal(t, "AP-JLN20250007", events[1].CredentialID)
	assert.True(t, events[1].Timestamp.Equal(base.Add(500*time.Millisecond)))
}
