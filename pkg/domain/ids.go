package domain

import (
	"github.com/google/uuid"

	dErrors "eventpass/pkg/domain-errors"
)

// maxIDLength bounds input before parsing; the longest accepted form is
// the braced/URN variant uuid.Parse understands.
const maxIDLength = 45

// IdentityID references a person in the external identity provider.
// It is opaque to this service and never minted here.
type IdentityID uuid.UUID

// ParseIdentityID parses and validates an identity reference at a trust boundary.
func ParseIdentityID(s string) (IdentityID, error) {
	u, err := parseUUID(s, "identity ID")
	if err != nil {
		return IdentityID{}, err
	}
	return IdentityID(u), nil
}

// NewIdentityID returns a random identity reference. Intended for tests and seed data.
func NewIdentityID() IdentityID {
	return IdentityID(uuid.New())
}

func (id IdentityID) String() string {
	return uuid.UUID(id).String()
}

func (id IdentityID) IsNil() bool {
	return uuid.UUID(id) == uuid.Nil
}

// MarshalText encodes the canonical UUID form so JSON carries a string.
func (id IdentityID) MarshalText() ([]byte, error) {
	return []byte(id.String()), nil
}

func (id *IdentityID) UnmarshalText(b []byte) error {
	parsed, err := ParseIdentityID(string(b))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

func parseUUID(s, label string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, label+" is required")
	}
	if len(s) > maxIDLength {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "invalid "+label)
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "invalid "+label)
	}
	if u == uuid.Nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, label+" cannot be nil")
	}
	return u, nil
}
