// Package httptransport exposes document ingestion, the live document feed,
// profiles and account deletion over HTTP.
package httptransport

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"healthpass/internal/documents/models"
	"healthpass/internal/platform/logger"
	"healthpass/internal/profile"
	dErrors "healthpass/pkg/domain-errors"
	"healthpass/pkg/platform/httputil"
	"healthpass/pkg/requestcontext"
)

// maxBodyBytes bounds request bodies; scanned codes are a few KiB at most.
const maxBodyBytes = 64 << 10

type DocumentService interface {
	Ingest(ctx context.Context, raw string) (models.Document, error)
	List(ctx context.Context) ([]models.Document, error)
	Remove(ctx context.Context, id models.Identifier) error
	Feed(ctx context.Context) <-chan []models.Document
	DeleteAccount(ctx context.Context) error
}

type Revalidator interface {
	RevalidateIfNeeded(ctx context.Context) (int, error)
	Revalidate(ctx context.Context) (int, error)
}

type ProfileService interface {
	Owner(ctx context.Context) (profile.Person, bool, error)
	SetOwner(ctx context.Context, p profile.Person) (profile.Person, error)
	Children(ctx context.Context) ([]profile.Person, error)
	AddChild(ctx context.Context, p profile.Person) (profile.Person, error)
	RemoveChild(ctx context.Context, id uuid.UUID) error
}

type Handler struct {
	documents   DocumentService
	revalidator Revalidator
	profiles    ProfileService
	logger      *slog.Logger
}

type Option func(*Handler)

func WithLogger(l *slog.Logger) Option {
	return func(h *Handler) {
		if l != nil {
			h.logger = l
		}
	}
}

func New(documents DocumentService, revalidator Revalidator, profiles ProfileService, opts ...Option) *Handler {
	h := &Handler{
		documents:   documents,
		revalidator: revalidator,
		profiles:    profiles,
		logger:      logger.Discard(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Register mounts every route on r.
func (h *Handler) Register(r chi.Router) {
	r.Route("/documents", func(r chi.Router) {
		r.Post("/", h.handleIngest)
		r.Get("/", h.handleList)
		r.Get("/stream", h.handleStream)
		r.Post("/revalidate", h.handleRevalidate)
		r.Delete("/{id}", h.handleRemove)
	})
	r.Route("/profile", func(r chi.Router) {
		r.Get("/", h.handleGetProfile)
		r.Put("/owner", h.handleSetOwner)
		r.Post("/children", h.handleAddChild)
		r.Delete("/children/{id}", h.handleRemoveChild)
	})
	r.Delete("/account", h.handleDeleteAccount)
}

// decode reads a JSON body into v, rejecting unknown fields.
func decode(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return dErrors.Wrap(err, dErrors.CodeBadRequest, "invalid request body")
	}
	return nil
}

// fail writes err and logs it at a level matching its severity.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, msg string, err error) {
	ctx := r.Context()
	attrs := []any{
		"request_id", requestcontext.RequestID(ctx),
		"code", string(dErrors.CodeOf(err)),
		"error", err,
	}
	if httputil.StatusFor(dErrors.CodeOf(err)) >= http.StatusInternalServerError {
		h.logger.ErrorContext(ctx, msg, attrs...)
	} else {
		h.logger.InfoContext(ctx, msg, attrs...)
	}
	httputil.WriteError(w, err)
}
