// Package handler exposes the registration workflow over HTTP.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"eventpass/internal/platform/metrics"
	"eventpass/internal/platform/middleware"
	"eventpass/internal/registration/asset"
	"eventpass/internal/registration/models"
	"eventpass/internal/registration/render"
	"eventpass/internal/registration/service"
	id "eventpass/pkg/domain"
	dErrors "eventpass/pkg/domain-errors"
	"eventpass/pkg/platform/httputil"
	"eventpass/pkg/requestcontext"
)

// multipartOverhead is the slack allowed above asset.MaxSize for form framing.
const multipartOverhead = 64 << 10

// Service is the registration workflow.
type Service interface {
	Load(ctx context.Context, identity id.IdentityID) (service.View, error)
	SaveFields(ctx context.Context, identity id.IdentityID, f models.Fields) (service.View, error)
	UploadPhoto(ctx context.Context, identity id.IdentityID, f asset.File) (service.View, error)
	PhotoURL(ctx context.Context, identity id.IdentityID) (string, error)
	Submit(ctx context.Context, identity id.IdentityID, confirmer service.Confirmer) (*models.Locked, error)
	VerifyCredential(ctx context.Context, credentialID string) (service.Verification, error)
}

// Renderer builds passes for locked profiles.
type Renderer interface {
	Render(ctx context.Context, identity id.IdentityID) (render.Artifact, error)
	HTML(ctx context.Context, identity id.IdentityID) ([]byte, error)
}

type Handler struct {
	registration Service
	renderer     Renderer
	validator    middleware.TokenValidator
	metrics      *metrics.Metrics
	logger       *slog.Logger
	timeout      time.Duration
}

func New(
	registration Service,
	renderer Renderer,
	validator middleware.TokenValidator,
	logger *slog.Logger,
	m *metrics.Metrics,
	timeout time.Duration) *Handler {
	return &Handler{
		registration: registration,
		renderer:     renderer,
		validator:    validator,
		metrics:      m,
		logger:       logger,
		timeout:      timeout,
	}
}

// Register mounts the registration routes. Credential verification is
// public; everything under /registration needs a bearer token.
func (h *Handler) Register(r chi.Router) {
	r.Group(func(router chi.Router) {
		router.Use(middleware.Recovery(h.logger))
		router.Use(middleware.RequestID)
		router.Use(middleware.RequestTime)
		router.Use(middleware.Logger(h.logger))
		router.Use(middleware.Timeout(h.timeout))
		router.Use(middleware.Latency(h.metrics))

		router.Get("/credentials/{credentialID}", h.handleVerify)

		router.Group(func(r chi.Router) {
			r.Use(middleware.RequireIdentity(h.validator, h.logger))
			r.Get("/registration", h.handleGet)
			r.Put("/registration", h.handleSave)
			r.Post("/registration/photo", h.handleUpload)
			r.Get("/registration/photo-url", h.handlePhotoURL)
			r.Post("/registration/submit", h.handleSubmit)
			r.Get("/registration/pass", h.handlePass)
			r.Get("/registration/pass/preview", h.handlePreview)
		})
	})
}

type submitRequest struct {
	Confirmed bool `json:"confirmed"`
}

type submitResponse struct {
	CredentialID   string    `json:"credential_id"`
	SequenceNumber int64     `json:"sequence_number"`
	LockedAt       time.Time `json:"locked_at"`
}

type photoURLResponse struct {
	URL string `json:"url"`
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	v, err := h.registration.Load(ctx, requestcontext.IdentityID(ctx))
	if err != nil {
		h.fail(ctx, w, "failed to load profile", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, v)
}

func (h *Handler) handleSave(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var f models.Fields
	if err := json.NewDecoder(r.Body).Decode(&f); err != nil {
		h.logger.WarnContext(ctx, "invalid save request",
			"request_id", requestcontext.RequestID(ctx),
			"error", err.Error(),
		)
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	v, err := h.registration.SaveFields(ctx, requestcontext.IdentityID(ctx), f)
	if err != nil {
		h.fail(ctx, w, "failed to save profile", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, v)
}

func (h *Handler) handleUpload(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if r.ContentLength > asset.MaxSize+multipartOverhead {
		httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "file must be 1MB or smaller"))
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, asset.MaxSize+multipartOverhead)
	if err := r.ParseMultipartForm(asset.MaxSize + multipartOverhead); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "file must be 1MB or smaller"))
			return
		}
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "expected a multipart form with a photo field"))
		return
	}
	defer func() {
		if r.MultipartForm != nil {
			_ = r.MultipartForm.RemoveAll()
		}
	}()

	file, header, err := r.FormFile("photo")
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "photo is required"))
		return
	}
	defer file.Close()

	f, err := asset.Sniff(asset.File{
		Filename:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Size:        header.Size,
		Body:        file,
	})
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "could not read photo"))
		return
	}

	v, err := h.registration.UploadPhoto(ctx, requestcontext.IdentityID(ctx), f)
	if err != nil {
		h.fail(ctx, w, "failed to upload photo", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, v)
}

func (h *Handler) handlePhotoURL(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	url, err := h.registration.PhotoURL(ctx, requestcontext.IdentityID(ctx))
	if err != nil {
		h.fail(ctx, w, "failed to sign photo link", err)
		return
	}
	w.Header().Set("Cache-Control", "no-store")
	httputil.WriteJSON(w, http.StatusOK, photoURLResponse{URL: url})
}

func (h *Handler) handleSubmit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req submitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	// The client shows the warning before posting; the body carries the answer.
	confirmer := service.ConfirmFunc(func(context.Context, string) (bool, error) {
		return req.Confirmed, nil
	})
	locked, err := h.registration.Submit(ctx, requestcontext.IdentityID(ctx), confirmer)
	if err != nil {
		h.fail(ctx, w, "failed to submit profile", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, submitResponse{
		CredentialID:   locked.CredentialID(),
		SequenceNumber: locked.SequenceNumber(),
		LockedAt:       locked.LockedAt(),
	})
}

func (h *Handler) handlePass(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	a, err := h.renderer.Render(ctx, requestcontext.IdentityID(ctx))
	if err != nil {
		h.fail(ctx, w, "failed to render pass", err)
		return
	}
	w.Header().Set("Content-Type", a.ContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+a.Filename+`"`)
	w.Header().Set("Content-Length", strconv.Itoa(len(a.Data)))
	w.Header().Set("Cache-Control", "private, no-store")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(a.Data)
}

func (h *Handler) handlePreview(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	doc, err := h.renderer.HTML(ctx, requestcontext.IdentityID(ctx))
	if err != nil {
		h.fail(ctx, w, "failed to render pass preview", err)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "private, no-store")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(doc)
}

func (h *Handler) handleVerify(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	v, err := h.registration.VerifyCredential(ctx, chi.URLParam(r, "credentialID"))
	if err != nil {
		h.fail(ctx, w, "failed to verify credential", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, v)
}

// fail logs server-side failures loudly and client mistakes quietly.
func (h *Handler) fail(ctx context.Context, w http.ResponseWriter, msg string, err error) {
	status := httputil.StatusFor(dErrors.CodeOf(err))
	attrs := []any{
		"request_id", requestcontext.RequestID(ctx),
		"identity_id", requestcontext.IdentityID(ctx).String(),
		"error", err.Error(),
	}
	if status >= http.StatusInternalServerError {
		h.logger.ErrorContext(ctx, msg, attrs...)
	} else {
		h.logger.WarnContext(ctx, msg, attrs...)
	}
	httputil.WriteError(w, err)
}
