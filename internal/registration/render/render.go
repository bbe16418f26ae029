// Package render turns a locked profile into a printable event pass.
//
// The pass is built from a fixed HTML layout and exported to a single-page
// PDF whose paper size matches the rendered layout. The photo link is
// signed at render time and never stored; when it cannot be resolved the
// pass falls back to a placeholder rather than failing.
package render

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"eventpass/internal/audit"
	"eventpass/internal/platform/metrics"
	"eventpass/internal/registration/asset"
	"eventpass/internal/registration/models"
	id "eventpass/pkg/domain"
	dErrors "eventpass/pkg/domain-errors"
	"eventpass/pkg/platform/sentinel"
	"eventpass/pkg/requestcontext"
)

// FallbackFilename is used when a pass has no credential ID.
const FallbackFilename = "event_pass_Event_Pass.pdf"

// ProfileFinder reads a profile without creating one.
type ProfileFinder interface {
	Find(ctx context.Context, identity id.IdentityID) (models.Profile, error)
}

// URLSigner issues short-lived links to stored photos.
type URLSigner interface {
	SignedURL(ctx context.Context, ref asset.Ref) (string, error)
}

// Exporter prints an HTML document to PDF.
type Exporter interface {
	Export(ctx context.Context, html []byte) ([]byte, error)
}

// AuditPublisher records render events.
type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event)
}

// Artifact is a rendered pass ready for download.
type Artifact struct {
	Filename     string
	ContentType  string
	CredentialID string
	Data         []byte
}

// Renderer builds passes for locked profiles.
type Renderer struct {
	profiles ProfileFinder
	signer   URLSigner
	exporter Exporter
	event    Event
	auditor  AuditPublisher
	metrics  *metrics.Metrics
	logger   *slog.Logger
	tracer   trace.Tracer
}

type Option func(*Renderer)

func WithEvent(e Event) Option {
	return func(r *Renderer) {
		r.event = e
	}
}

func WithAuditor(auditor AuditPublisher) Option {
	return func(r *Renderer) {
		r.auditor = auditor
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Renderer) {
		r.metrics = m
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(r *Renderer) {
		r.logger = logger
	}
}

func WithTracer(tracer trace.Tracer) Option {
	return func(r *Renderer) {
		r.tracer = tracer
	}
}

func New(profiles ProfileFinder, signer URLSigner, exporter Exporter, opts ...Option) *Renderer {
	r := &Renderer{
		profiles: profiles,
		signer:   signer,
		exporter: exporter,
		event:    DefaultEvent,
		logger:   slog.Default(),
		tracer:   otel.Tracer("eventpass/render"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Render produces the PDF pass for identity. Only locked profiles have a pass.
func (r *Renderer) Render(ctx context.Context, identity id.IdentityID) (a Artifact, err error) {
	ctx, span := r.tracer.Start(ctx, "render.Render")
	span.SetAttributes(attribute.String("identity_id", identity.String()))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, dErrors.MessageOf(err))
		}
		span.End()
	}()

	l, err := r.locked(ctx, identity)
	if err != nil {
		return Artifact{}, err
	}
	doc, err := r.document(ctx, l)
	if err != nil {
		return Artifact{}, err
	}

	start := time.Now()
	pdf, err := r.exporter.Export(ctx, doc)
	if err != nil {
		r.logger.ErrorContext(ctx, "pass export failed",
			"identity_id", identity.String(),
			"credential_id", l.CredentialID(),
			"error", err,
		)
		if errors.Is(err, context.DeadlineExceeded) {
			return Artifact{}, dErrors.Wrap(err, dErrors.CodeTimeout, "rendering the pass timed out")
		}
		return Artifact{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to render pass")
	}
	r.metrics.ObserveRender("pdf", time.Since(start))

	r.emit(ctx, l)
	return Artifact{
		Filename:     Filename(l.CredentialID()),
		ContentType:  "application/pdf",
		CredentialID: l.CredentialID(),
		Data:         pdf,
	}, nil
}

// HTML returns the pass layout without exporting it.
func (r *Renderer) HTML(ctx context.Context, identity id.IdentityID) ([]byte, error) {
	l, err := r.locked(ctx, identity)
	if err != nil {
		return nil, err
	}
	start := time.Now()
	doc, err := r.document(ctx, l)
	if err != nil {
		return nil, err
	}
	r.metrics.ObserveRender("html", time.Since(start))
	return doc, nil
}

// Filename names the downloaded pass.
func Filename(credentialID string) string {
	if credentialID == "" {
		return FallbackFilename
	}
	return credentialID + "_Event_Pass.pdf"
}

func (r *Renderer) locked(ctx context.Context, identity id.IdentityID) (*models.Locked, error) {
	if identity.IsNil() {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "identity is required")
	}
	p, err := r.profiles.Find(ctx, identity)
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		return nil, dErrors.New(dErrors.CodeInvalidState, "the pass is available once registration is submitted")
	case err != nil:
		return nil, dErrors.Wrap(err, dErrors.CodeRepositoryUnavailable, "failed to load profile")
	}
	l, ok := p.(*models.Locked)
	if !ok {
		return nil, dErrors.New(dErrors.CodeInvalidState, "the pass is available once registration is submitted")
	}
	return l, nil
}

func (r *Renderer) document(ctx context.Context, l *models.Locked) ([]byte, error) {
	f := l.Fields()
	data := passData{
		Event:        r.event,
		Name:         f.Name,
		DateOfBirth:  f.DateOfBirth,
		Age:          formatAge(f.AgeAt(requestcontext.Now(ctx))),
		CredentialID: l.CredentialID(),
		PhotoURL:     r.photoURL(ctx, l),
	}
	doc, err := executePass(data)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to build pass layout")
	}
	return doc, nil
}

// photoURL degrades to the placeholder on any failure.
func (r *Renderer) photoURL(ctx context.Context, l *models.Locked) string {
	if l.PhotoRef() == "" || r.signer == nil {
		return ""
	}
	url, err := r.signer.SignedURL(ctx, l.PhotoRef())
	if err != nil {
		r.logger.WarnContext(ctx, "photo link unavailable, using placeholder",
			"identity_id", l.IdentityID().String(),
			"credential_id", l.CredentialID(),
			"error", err,
		)
		return ""
	}
	return url
}

func (r *Renderer) emit(ctx context.Context, l *models.Locked) {
	if r.auditor == nil {
		return
	}
	r.auditor.Emit(ctx, audit.Event{
		Action:       audit.ActionPassRendered,
		IdentityID:   l.IdentityID(),
		CredentialID: l.CredentialID(),
		Timestamp:    requestcontext.Now(ctx),
	})
}
