package service

import (
	"time"

	"eventpass/internal/registration/models"
	id "eventpass/pkg/domain"
)

// View is the read model returned to callers.
type View struct {
	IdentityID     id.IdentityID `json:"identity_id"`
	State          models.State  `json:"state"`
	Fields         models.Fields `json:"fields"`
	Age            *int          `json:"age,omitempty"`
	HasPhoto       bool          `json:"has_photo"`
	Completeness   Completeness  `json:"completeness"`
	CredentialID   string        `json:"credential_id,omitempty"`
	SequenceNumber int64         `json:"sequence_number,omitempty"`
	LockedAt       *time.Time    `json:"locked_at,omitempty"`
}

// Completeness reports whether a profile can be submitted.
type Completeness struct {
	Complete bool     `json:"complete"`
	Missing  []string `json:"missing"`
}

// CompletenessOf checks every required field and the photo.
func CompletenessOf(p models.Profile) Completeness {
	missing := p.Fields().Missing()
	if p.PhotoRef() == "" {
		missing = append(missing, "photo")
	}
	if missing == nil {
		missing = []string{}
	}
	return Completeness{Complete: len(missing) == 0, Missing: missing}
}

// NewView derives age and completeness at read time.
func NewView(p models.Profile, now time.Time) View {
	v := View{
		IdentityID:   p.IdentityID(),
		State:        p.State(),
		Fields:       p.Fields(),
		HasPhoto:     p.PhotoRef() != "",
		Completeness: CompletenessOf(p),
	}
	if age, ok := p.Fields().AgeAt(now); ok {
		v.Age = &age
	}
	if l, ok := p.(*models.Locked); ok {
		v.CredentialID = l.CredentialID()
		v.SequenceNumber = l.SequenceNumber()
		lockedAt := l.LockedAt()
		v.LockedAt = &lockedAt
	}
	return v
}
