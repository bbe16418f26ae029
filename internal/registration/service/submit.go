package service

import (
	"context"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"eventpass/internal/audit"
	"eventpass/internal/registration/credential"
	"eventpass/internal/registration/models"
	id "eventpass/pkg/domain"
	dErrors "eventpass/pkg/domain-errors"
	"eventpass/pkg/requestcontext"
)

// Submit locks a complete draft after the registrant confirms. The draft
// is read again inside the lock transaction and the lock only lands on
// that exact field state. The sequence number is allocated inside the
// same transaction; if anything after allocation fails the profile stays
// a draft and the number is abandoned.
func (s *Service) Submit(ctx context.Context, identity id.IdentityID, confirmer Confirmer) (locked *models.Locked, err error) {
	ctx, span := s.tracer.Start(ctx, "registration.Submit")
	span.SetAttributes(attribute.String("identity_id", identity.String()))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, dErrors.MessageOf(err))
		}
		span.End()
	}()

	if _, err := s.submittable(ctx, identity); err != nil {
		s.metrics.IncrementSubmission(submissionOutcome(err))
		return nil, err
	}

	confirmed, err := confirmer.Confirm(ctx, ConfirmationWarning)
	if err != nil {
		s.metrics.IncrementSubmission("failed")
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "confirmation failed")
	}
	if !confirmed {
		s.metrics.IncrementSubmission("declined")
		s.emit(ctx, audit.ActionSubmitDeclined, identity, "", "")
		return nil, dErrors.New(dErrors.CodeNotConfirmed, "submission was not confirmed")
	}

	now := requestcontext.Now(ctx)
	err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
		// The draft may have been edited while the registrant was confirming.
		d, err := s.submittable(ctx, identity)
		if err != nil {
			return err
		}
		seq, err := s.allocator.Next(ctx)
		if err != nil {
			return fromRepository(err, "failed to allocate sequence number")
		}
		s.metrics.IncrementSequenceAllocated()

		credentialID := credential.Generate(d.Fields().Name, now, seq)
		if _, err := d.Lock(credentialID, seq, now); err != nil {
			return err
		}
		locked, err = s.repo.Lock(ctx, d, credentialID, seq, now)
		if err != nil {
			return fromRepository(err, "failed to lock profile")
		}
		return nil
	})
	if err != nil {
		err = fromRepository(err, "failed to lock profile")
		s.metrics.IncrementSubmission(submissionOutcome(err))
		s.logger.WarnContext(ctx, "submission failed",
			"identity_id", identity.String(),
			"request_id", requestcontext.RequestID(ctx),
			"error", err,
		)
		return nil, err
	}

	span.SetAttributes(attribute.String("credential_id", locked.CredentialID()))
	s.metrics.IncrementSubmission("locked")
	s.emit(ctx, audit.ActionProfileLocked, identity, locked.CredentialID(), "")
	s.logger.InfoContext(ctx, "profile locked",
		"identity_id", identity.String(),
		"credential_id", locked.CredentialID(),
		"request_id", requestcontext.RequestID(ctx),
	)
	return locked, nil
}

// submittable loads the profile and checks it can be locked as stored.
func (s *Service) submittable(ctx context.Context, identity id.IdentityID) (*models.Draft, error) {
	p, err := s.load(ctx, identity)
	if err != nil {
		return nil, err
	}
	d, ok := p.(*models.Draft)
	if !ok {
		return nil, dErrors.New(dErrors.CodeAlreadyLocked, "profile has already been submitted")
	}
	if missing := d.Missing(); len(missing) > 0 {
		return nil, dErrors.New(dErrors.CodeIncompleteProfile,
			"please complete all required fields: "+strings.Join(missing, ", "))
	}
	return d, nil
}

func submissionOutcome(err error) string {
	if dErrors.HasCode(err, dErrors.CodeIncompleteProfile) {
		return "incomplete"
	}
	return "failed"
}
