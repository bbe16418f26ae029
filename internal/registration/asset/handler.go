package asset

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	dErrors "eventpass/pkg/domain-errors"
	"eventpass/pkg/platform/httputil"
	"eventpass/pkg/platform/sentinel"
)

// Handler serves objects behind signed URLs. The token is the only
// credential; no identity is required.
type Handler struct {
	store  *LocalStore
	logger *slog.Logger
}

func NewHandler(store *LocalStore, logger *slog.Logger) *Handler {
	return &Handler{store: store, logger: logger}
}

// Register mounts GET /assets/signed/{token}.
func (h *Handler) Register(r chi.Router) {
	r.Get(SignedPath+"{token}", h.handleSigned)
}

func (h *Handler) handleSigned(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	obj, err := h.store.Open(ctx, chi.URLParam(r, "token"))
	if err != nil {
		switch {
		case errors.Is(err, sentinel.ErrExpired):
			httputil.WriteError(w, dErrors.New(dErrors.CodeForbidden, "link has expired"))
		case errors.Is(err, sentinel.ErrNotFound):
			httputil.WriteError(w, dErrors.New(dErrors.CodeAssetNotFound, "asset not found"))
		case errors.Is(err, sentinel.ErrUnavailable):
			h.logger.ErrorContext(ctx, "failed to open asset", "error", err)
			httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeStoreUnavailable, "asset store unavailable"))
		default:
			h.logger.WarnContext(ctx, "rejected asset token", "error", err)
			httputil.WriteError(w, dErrors.New(dErrors.CodeForbidden, "invalid link"))
		}
		return
	}
	defer obj.Body.Close()

	w.Header().Set("Content-Type", obj.ContentType)
	w.Header().Set("Cache-Control", "private, no-store")
	http.ServeContent(w, r, "", obj.ModTime, obj.Body)
}
