package models

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"eventpass/internal/registration/asset"
	id "eventpass/pkg/domain"
	dErrors "eventpass/pkg/domain-errors"
)

func TestDraftState(t *testing.T) {
	now := time.Date(2025, time.August, 20, 10, 0, 0, 0, time.UTC)
	d := NewDraft(id.NewIdentityID(), now)
	assert.Equal(t, StateUnregistered, d.State())

	d.AttachPhoto("owner/1.png", now)
	assert.Equal(t, StateDraft, d.State())
}

func TestDraftLock(t *testing.T) {
	now := time.Date(2025, time.August, 20, 10, 0, 0, 0, time.UTC)

	t.Run("incomplete draft cannot lock", func(t *testing.T) {
		d := NewDraft(id.NewIdentityID(), now)
		f := completeFields()
		f.District = ""
		d.Apply(f, now)
		d.AttachPhoto("owner/1.png", now)

		_, err := d.Lock("AP-JLN20250001", 1, now)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeIncompleteProfile))
	})

	t.Run("draft without photo cannot lock", func(t *testing.T) {
		d := NewDraft(id.NewIdentityID(), now)
		d.Apply(completeFields(), now)

		assert.Equal(t, []string{"photo"}, d.Missing())
		_, err := d.Lock("AP-JLN20250001", 1, now)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeIncompleteProfile))
	})

	t.Run("complete draft locks with identifiers", func(t *testing.T) {
		d := NewDraft(id.NewIdentityID(), now)
		d.Apply(completeFields(), now)
		d.AttachPhoto("owner/1.png", now)

		locked, err := d.Lock("AP-JLN20250001", 1, now)
		require.NoError(t, err)
		assert.Equal(t, StateLocked, locked.State())
		assert.Equal(t, "AP-JLN20250001", locked.CredentialID())
		assert.Equal(t, int64(1), locked.SequenceNumber())
		assert.Equal(t, d.Fields(), locked.Fields())
	})

	t.Run("lock requires both identifiers", func(t *testing.T) {
		d := NewDraft(id.NewIdentityID(), now)
		d.Apply(completeFields(), now)
		d.AttachPhoto("owner/1.png", now)

		_, err := d.Lock("", 1, now)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvariantViolation))
		_, err = d.Lock("AP-JLN20250001", 0, now)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvariantViolation))
	})
}

func TestRecordRoundTrip(t *testing.T) {
	now := time.Date(2025, time.August, 20, 10, 0, 0, 0, time.UTC)
	d := NewDraft(id.NewIdentityID(), now)
	d.Apply(completeFields(), now)
	d.AttachPhoto(asset.Ref("owner/1.png"), now)

	t.Run("draft", func(t *testing.T) {
		p, err := FromRecord(d.Record())
		require.NoError(t, err)
		if diff := cmp.Diff(d.Record(), p.Record()); diff != "" {
			t.Fatalf("draft record mismatch (-want +got):\n%s", diff)
		}
		_, isDraft := p.(*Draft)
		assert.True(t, isDraft)
	})

	t.Run("locked", func(t *testing.T) {
		locked, err := d.Lock("AP-JLN20250003", 3, now.Add(time.Hour))
		require.NoError(t, err)

		p, err := FromRecord(locked.Record())
		require.NoError(t, err)
		if diff := cmp.Diff(locked.Record(), p.Record()); diff != "" {
			t.Fatalf("locked record mismatch (-want +got):\n%s", diff)
		}
		_, isLocked := p.(*Locked)
		assert.True(t, isLocked)
	})
}

func TestFromRecordRejectsBrokenInvariants(t *testing.T) {
	t.Run("locked without credential id", func(t *testing.T) {
		_, err := FromRecord(Record{IdentityID: id.NewIdentityID(), Locked: true, SequenceNumber: 4})
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvariantViolation))
	})

	t.Run("draft carrying a sequence number", func(t *testing.T) {
		_, err := FromRecord(Record{IdentityID: id.NewIdentityID(), SequenceNumber: 4})
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvariantViolation))
	})
}
