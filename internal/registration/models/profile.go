package models

import (
	"time"

	"eventpass/internal/registration/asset"
	id "eventpass/pkg/domain"
	dErrors "eventpass/pkg/domain-errors"
)

// State is the position of a profile in the registration lifecycle.
type State string

const (
	StateUnregistered State = "unregistered"
	StateDraft        State = "draft"
	StateLocked       State = "locked"
)

// Profile is the per-identity registration record. It is a closed sum of
// *Draft and *Locked: only Draft exposes mutators, so a locked profile
// cannot be edited through this type.
//
// Invariants:
//   - exactly one profile exists per identity
//   - CredentialID and SequenceNumber exist only on Locked and are set together
//   - Locked never transitions back to Draft
type Profile interface {
	IdentityID() id.IdentityID
	Fields() Fields
	PhotoRef() asset.Ref
	State() State
	Record() Record
	sealed()
}

// Draft is an editable, not yet submitted profile.
type Draft struct {
	identityID id.IdentityID
	fields     Fields
	photoRef   asset.Ref
	createdAt  time.Time
	updatedAt  time.Time
}

// NewDraft returns an empty draft for identity.
func NewDraft(identityID id.IdentityID, now time.Time) *Draft {
	return &Draft{identityID: identityID, createdAt: now, updatedAt: now}
}

func (d *Draft) IdentityID() id.IdentityID { return d.identityID }
func (d *Draft) Fields() Fields            { return d.fields }
func (d *Draft) PhotoRef() asset.Ref       { return d.photoRef }
func (d *Draft) sealed()                   {}

// State is Unregistered until the first field or photo is saved.
func (d *Draft) State() State {
	if d.fields.IsZero() && d.photoRef == "" {
		return StateUnregistered
	}
	return StateDraft
}

// Apply overwrites every field. Callers normalise and validate first.
func (d *Draft) Apply(f Fields, now time.Time) {
	d.fields = f
	d.updatedAt = now
}

// AttachPhoto swaps the stored photo reference.
func (d *Draft) AttachPhoto(ref asset.Ref, now time.Time) {
	d.photoRef = ref
	d.updatedAt = now
}

// Missing lists everything that blocks submission, including the photo.
func (d *Draft) Missing() []string {
	missing := d.fields.Missing()
	if d.photoRef == "" {
		missing = append(missing, "photo")
	}
	return missing
}

// CanLock checks the draft is complete enough to be submitted.
func (d *Draft) CanLock() error {
	if missing := d.Missing(); len(missing) > 0 {
		return dErrors.New(dErrors.CodeIncompleteProfile, "profile is incomplete")
	}
	return nil
}

// Lock builds the terminal variant. It does not persist anything; the
// repository's conditional update is what makes the transition real.
func (d *Draft) Lock(credentialID string, sequence int64, at time.Time) (*Locked, error) {
	if err := d.CanLock(); err != nil {
		return nil, err
	}
	if credentialID == "" || sequence <= 0 {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "credential id and sequence number are required to lock")
	}
	return &Locked{
		identityID:     d.identityID,
		fields:         d.fields,
		photoRef:       d.photoRef,
		credentialID:   credentialID,
		sequenceNumber: sequence,
		createdAt:      d.createdAt,
		lockedAt:       at,
	}, nil
}

func (d *Draft) Record() Record {
	return Record{
		IdentityID:    d.identityID,
		Name:          d.fields.Name,
		ContactNumber: d.fields.ContactNumber,
		DateOfBirth:   d.fields.DateOfBirth,
		Gender:        string(d.fields.Gender),
		Category:      string(d.fields.Category),
		District:      string(d.fields.District),
		Qualification: d.fields.Qualification,
		PhotoRef:      string(d.photoRef),
		CreatedAt:     d.createdAt,
		UpdatedAt:     d.updatedAt,
	}
}

// Locked is a submitted profile with its credential identifiers.
type Locked struct {
	identityID     id.IdentityID
	fields         Fields
	photoRef       asset.Ref
	credentialID   string
	sequenceNumber int64
	createdAt      time.Time
	lockedAt       time.Time
}

func (l *Locked) IdentityID() id.IdentityID { return l.identityID }
func (l *Locked) Fields() Fields            { return l.fields }
func (l *Locked) PhotoRef() asset.Ref       { return l.photoRef }
func (l *Locked) State() State              { return StateLocked }
func (l *Locked) CredentialID() string      { return l.credentialID }
func (l *Locked) SequenceNumber() int64     { return l.sequenceNumber }
func (l *Locked) LockedAt() time.Time       { return l.lockedAt }
func (l *Locked) sealed()                   {}

func (l *Locked) Record() Record {
	return Record{
		IdentityID:     l.identityID,
		Name:           l.fields.Name,
		ContactNumber:  l.fields.ContactNumber,
		DateOfBirth:    l.fields.DateOfBirth,
		Gender:         string(l.fields.Gender),
		Category:       string(l.fields.Category),
		District:       string(l.fields.District),
		Qualification:  l.fields.Qualification,
		PhotoRef:       string(l.photoRef),
		SequenceNumber: l.sequenceNumber,
		CredentialID:   l.credentialID,
		Locked:         true,
		CreatedAt:      l.createdAt,
		UpdatedAt:      l.lockedAt,
		LockedAt:       l.lockedAt,
	}
}

// Record is the flat persisted shape of a profile.
type Record struct {
	IdentityID     id.IdentityID
	Name           string
	ContactNumber  string
	DateOfBirth    string
	Gender         string
	Category       string
	District       string
	Qualification  string
	PhotoRef       string
	SequenceNumber int64
	CredentialID   string
	Locked         bool
	CreatedAt      time.Time
	UpdatedAt      time.Time
	LockedAt       time.Time
}

func (r Record) fields() Fields {
	return Fields{
		Name:          r.Name,
		ContactNumber: r.ContactNumber,
		DateOfBirth:   r.DateOfBirth,
		Gender:        Gender(r.Gender),
		Category:      Category(r.Category),
		District:      District(r.District),
		Qualification: r.Qualification,
	}
}

// FromRecord rebuilds the profile variant from a stored row.
func FromRecord(r Record) (Profile, error) {
	if !r.Locked {
		if r.CredentialID != "" || r.SequenceNumber != 0 {
			return nil, dErrors.New(dErrors.CodeInvariantViolation, "unlocked profile carries credential identifiers")
		}
		return &Draft{
			identityID: r.IdentityID,
			fields:     r.fields(),
			photoRef:   asset.Ref(r.PhotoRef),
			createdAt:  r.CreatedAt,
			updatedAt:  r.UpdatedAt,
		}, nil
	}
	if r.CredentialID == "" || r.SequenceNumber <= 0 {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "locked profile is missing credential identifiers")
	}
	return &Locked{
		identityID:     r.IdentityID,
		fields:         r.fields(),
		photoRef:       asset.Ref(r.PhotoRef),
		credentialID:   r.CredentialID,
		sequenceNumber: r.SequenceNumber,
		createdAt:      r.CreatedAt,
		lockedAt:       r.LockedAt,
	}, nil
}
