package service

import (
	"context"
	"errors"
	"time"

	"eventpass/internal/audit"
	"eventpass/internal/registration/credential"
	dErrors "eventpass/pkg/domain-errors"
	"eventpass/pkg/platform/sentinel"
)

// Verification is what a credential check discloses: enough to match the
// holder, nothing more.
type Verification struct {
	CredentialID string    `json:"credential_id"`
	Name         string    `json:"name"`
	IssuedAt     time.Time `json:"issued_at"`
}

// VerifyCredential confirms a credential ID was issued.
func (s *Service) VerifyCredential(ctx context.Context, credentialID string) (Verification, error) {
	parsed, err := credential.Parse(credentialID)
	if err != nil {
		return Verification{}, err
	}
	l, err := s.repo.FindByCredentialID(ctx, parsed.String())
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return Verification{}, dErrors.New(dErrors.CodeNotFound, "credential not found")
		}
		return Verification{}, fromRepository(err, "failed to look up credential")
	}
	s.emit(ctx, audit.ActionCredentialCheck, l.IdentityID(), l.CredentialID(), "")
	return Verification{
		CredentialID: l.CredentialID(),
		Name:         l.Fields().Name,
		IssuedAt:     l.LockedAt(),
	}, nil
}
