// Package service is the registration state machine:
//
//	Unregistered -> Draft -> Locked
//
// Drafts are edited freely; submission asks the registrant to confirm,
// then allocates a sequence number, mints the credential ID and locks the
// profile in one transaction. Locked is terminal.
package service

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"eventpass/internal/audit"
	"eventpass/internal/platform/metrics"
	"eventpass/internal/registration/asset"
	"eventpass/internal/registration/models"
	id "eventpass/pkg/domain"
	"eventpass/pkg/platform/tx"
	"eventpass/pkg/requestcontext"
)

//go:generate mockgen -source=service.go -destination=mocks/mocks.go -package=mocks Repository,Allocator,AssetStore,Confirmer

// ConfirmationWarning is shown to the registrant before the one-way lock.
const ConfirmationWarning = "You cannot edit the form once submitted!!"

// Repository persists profiles.
type Repository interface {
	GetOrInit(ctx context.Context, identity id.IdentityID) (models.Profile, error)
	SaveDraft(ctx context.Context, d *models.Draft) (models.Profile, error)
	// Lock stamps the identifiers only if the stored row is still unlocked
	// and holds exactly d's fields and photo.
	Lock(ctx context.Context, d *models.Draft, credentialID string, sequence int64, lockedAt time.Time) (*models.Locked, error)
	FindByCredentialID(ctx context.Context, credentialID string) (*models.Locked, error)
}

// Allocator hands out strictly increasing sequence numbers.
type Allocator interface {
	Next(ctx context.Context) (int64, error)
}

// AssetStore uploads photos and signs links to them.
type AssetStore interface {
	Upload(ctx context.Context, identity id.IdentityID, f asset.File) (asset.Ref, error)
	SignedURL(ctx context.Context, ref asset.Ref) (string, error)
}

// Confirmer asks the registrant to acknowledge the warning. It is called
// once per submission; false means the registrant declined.
type Confirmer interface {
	Confirm(ctx context.Context, warning string) (bool, error)
}

// ConfirmFunc adapts a function to Confirmer.
type ConfirmFunc func(ctx context.Context, warning string) (bool, error)

func (f ConfirmFunc) Confirm(ctx context.Context, warning string) (bool, error) {
	return f(ctx, warning)
}

// TxRunner runs fn so that every store call inside it commits or rolls
// back together.
type TxRunner interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// AuditPublisher records workflow events. It never fails the caller.
type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event)
}

// Service implements the registration workflow.
type Service struct {
	repo      Repository
	allocator Allocator
	assets    AssetStore
	tx        TxRunner
	auditor   AuditPublisher
	metrics   *metrics.Metrics
	logger    *slog.Logger
	tracer    trace.Tracer
}

type Option func(*Service)

func WithTxRunner(runner TxRunner) Option {
	return func(s *Service) {
		s.tx = runner
	}
}

func WithAuditor(auditor AuditPublisher) Option {
	return func(s *Service) {
		s.auditor = auditor
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithTracer(tracer trace.Tracer) Option {
	return func(s *Service) {
		s.tracer = tracer
	}
}

func New(repo Repository, allocator Allocator, assets AssetStore, opts ...Option) *Service {
	s := &Service{
		repo:      repo,
		allocator: allocator,
		assets:    assets,
		tx:        tx.NopRunner{},
		logger:    slog.Default(),
		tracer:    otel.Tracer("eventpass/registration"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) emit(ctx context.Context, action audit.Action, identity id.IdentityID, credentialID, detail string) {
	if s.auditor == nil {
		return
	}
	s.auditor.Emit(ctx, audit.Event{
		Action:       action,
		IdentityID:   identity,
		CredentialID: credentialID,
		Detail:       detail,
		Timestamp:    requestcontext.Now(ctx),
	})
}
