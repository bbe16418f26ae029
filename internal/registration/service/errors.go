package service

import (
	"context"
	"errors"

	dErrors "eventpass/pkg/domain-errors"
	"eventpass/pkg/platform/sentinel"
)

// fromRepository translates store facts into domain codes. Errors that
// already carry a code pass through.
func fromRepository(err error, msg string) error {
	var de *dErrors.Error
	switch {
	case errors.As(err, &de):
		return err
	case errors.Is(err, sentinel.ErrInvalidState):
		return dErrors.Wrap(err, dErrors.CodeLockedProfile, "profile is locked and can no longer be edited")
	case errors.Is(err, sentinel.ErrAlreadyUsed):
		return dErrors.Wrap(err, dErrors.CodeAlreadyLocked, "profile has already been submitted")
	case errors.Is(err, sentinel.ErrConflict):
		return dErrors.Wrap(err, dErrors.CodeConflict, "profile changed during submission, please review it and submit again")
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.Wrap(err, dErrors.CodeNotFound, "profile not found")
	case errors.Is(err, context.DeadlineExceeded):
		return dErrors.Wrap(err, dErrors.CodeTimeout, msg)
	default:
		return dErrors.Wrap(err, dErrors.CodeRepositoryUnavailable, msg)
	}
}

// fromAssetStore translates asset store failures.
func fromAssetStore(err error, msg string) error {
	var de *dErrors.Error
	switch {
	case errors.As(err, &de):
		return err
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.Wrap(err, dErrors.CodeAssetNotFound, "photo not found")
	default:
		return dErrors.Wrap(err, dErrors.CodeStoreUnavailable, msg)
	}
}
