package service

import (
	"context"

	"eventpass/internal/audit"
	"eventpass/internal/registration/asset"
	"eventpass/internal/registration/models"
	id "eventpass/pkg/domain"
	dErrors "eventpass/pkg/domain-errors"
	"eventpass/pkg/requestcontext"
)

// Load returns the profile for identity, creating an empty draft on first
// access.
func (s *Service) Load(ctx context.Context, identity id.IdentityID) (View, error) {
	p, err := s.load(ctx, identity)
	if err != nil {
		return View{}, err
	}
	return NewView(p, requestcontext.Now(ctx)), nil
}

// Profile returns the stored variant for callers that need more than the view.
func (s *Service) Profile(ctx context.Context, identity id.IdentityID) (models.Profile, error) {
	return s.load(ctx, identity)
}

// Completeness reports what still blocks submission.
func (s *Service) Completeness(ctx context.Context, identity id.IdentityID) (Completeness, error) {
	p, err := s.load(ctx, identity)
	if err != nil {
		return Completeness{}, err
	}
	return CompletenessOf(p), nil
}

// SaveFields normalises, validates and overwrites every draft field.
func (s *Service) SaveFields(ctx context.Context, identity id.IdentityID, f models.Fields) (View, error) {
	now := requestcontext.Now(ctx)
	f = f.Normalize()
	if err := f.Validate(now); err != nil {
		return View{}, err
	}

	d, err := s.loadDraft(ctx, identity)
	if err != nil {
		return View{}, err
	}
	d.Apply(f, now)

	saved, err := s.repo.SaveDraft(ctx, d)
	if err != nil {
		return View{}, fromRepository(err, "failed to save profile")
	}

	s.metrics.IncrementDraftsSaved()
	s.emit(ctx, audit.ActionDraftSaved, identity, "", "")
	return NewView(saved, now), nil
}

// UploadPhoto validates the file, uploads it and only then swaps the
// stored reference. A failed upload keeps the previous photo.
func (s *Service) UploadPhoto(ctx context.Context, identity id.IdentityID, f asset.File) (View, error) {
	if err := asset.Validate(f); err != nil {
		s.metrics.IncrementUpload("rejected")
		return View{}, err
	}

	d, err := s.loadDraft(ctx, identity)
	if err != nil {
		return View{}, err
	}

	ref, err := s.assets.Upload(ctx, identity, f)
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeValidation) {
			s.metrics.IncrementUpload("rejected")
			return View{}, err
		}
		s.metrics.IncrementUpload("failed")
		s.logger.ErrorContext(ctx, "photo upload failed",
			"identity_id", identity.String(),
			"request_id", requestcontext.RequestID(ctx),
			"error", err,
		)
		return View{}, fromAssetStore(err, "failed to upload photo, please try again")
	}

	now := requestcontext.Now(ctx)
	d.AttachPhoto(ref, now)
	saved, err := s.repo.SaveDraft(ctx, d)
	if err != nil {
		return View{}, fromRepository(err, "failed to save photo reference")
	}

	s.metrics.IncrementUpload("ok")
	s.emit(ctx, audit.ActionPhotoUploaded, identity, "", ref.String())
	return NewView(saved, now), nil
}

// PhotoURL signs a fresh link to the stored photo.
func (s *Service) PhotoURL(ctx context.Context, identity id.IdentityID) (string, error) {
	p, err := s.load(ctx, identity)
	if err != nil {
		return "", err
	}
	if p.PhotoRef() == "" {
		return "", dErrors.New(dErrors.CodeAssetNotFound, "no photo uploaded")
	}
	url, err := s.assets.SignedURL(ctx, p.PhotoRef())
	if err != nil {
		return "", fromAssetStore(err, "failed to sign photo link")
	}
	return url, nil
}

func (s *Service) load(ctx context.Context, identity id.IdentityID) (models.Profile, error) {
	if identity.IsNil() {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "identity is required")
	}
	p, err := s.repo.GetOrInit(ctx, identity)
	if err != nil {
		return nil, fromRepository(err, "failed to load profile")
	}
	return p, nil
}

func (s *Service) loadDraft(ctx context.Context, identity id.IdentityID) (*models.Draft, error) {
	p, err := s.load(ctx, identity)
	if err != nil {
		return nil, err
	}
	d, ok := p.(*models.Draft)
	if !ok {
		return nil, dErrors.New(dErrors.CodeLockedProfile, "profile is locked and can no longer be edited")
	}
	return d, nil
}
