package httptransport

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"healthpass/internal/documents/models"
	dErrors "healthpass/pkg/domain-errors"
	"healthpass/pkg/platform/httputil"
)

type ingestRequest struct {
	Code string `json:"code"`
}

type documentResponse struct {
	ID            string         `json:"id"`
	Kind          string         `json:"kind"`
	ExpiresAt     time.Time      `json:"expires_at"`
	IssuedBy      string         `json:"issued_by,omitempty"`
	EffectiveDate *time.Time     `json:"effective_date,omitempty"`
	Details       map[string]any `json:"details,omitempty"`
}

type documentsResponse struct {
	Documents []documentResponse `json:"documents"`
}

type revalidateResponse struct {
	Removed int `json:"removed"`
}

func toDocumentResponse(doc models.Document) documentResponse {
	resp := documentResponse{
		ID:        doc.ID().String(),
		Kind:      string(doc.Kind()),
		ExpiresAt: doc.ExpiresAt().UTC(),
	}
	if issued, ok := doc.(models.Issued); ok {
		resp.IssuedBy = issued.Issuer()
	}
	if dated, ok := doc.(models.Dated); ok {
		d := dated.EffectiveDate().UTC()
		resp.EffectiveDate = &d
	}
	switch d := doc.(type) {
	case *models.CoronaTest:
		resp.Details = map[string]any{
			"test_type":  string(d.TestType),
			"negative":   d.Negative,
			"laboratory": d.Laboratory,
		}
	case *models.Vaccination:
		resp.Details = map[string]any{
			"dose_number": d.DoseNumber,
			"doses_total": d.DosesTotalNumber,
			"complete":    d.IsComplete(),
			"product":     d.Product,
			"country":     d.Country,
			"certificate": d.CertificateID,
		}
	case *models.Recovery:
		resp.Details = map[string]any{
			"valid_from":  d.ValidFromDate.UTC(),
			"country":     d.Country,
			"certificate": d.CertificateID,
		}
	case *models.Appointment:
		resp.Details = map[string]any{
			"timestamp": d.Timestamp.UTC(),
			"lab":       d.Lab,
			"address":   d.Address,
		}
	}
	return resp
}

func toDocumentsResponse(docs []models.Document) documentsResponse {
	out := documentsResponse{Documents: make([]documentResponse, 0, len(docs))}
	for _, doc := range docs {
		out.Documents = append(out.Documents, toDocumentResponse(doc))
	}
	return out
}

func (h *Handler) handleIngest(w http.ResponseWriter, r *http.Request) {
	var req ingestRequest
	if err := decode(r, &req); err != nil {
		h.fail(w, r, "invalid ingest request", err)
		return
	}
	if strings.TrimSpace(req.Code) == "" {
		h.fail(w, r, "invalid ingest request", dErrors.New(dErrors.CodeBadRequest, "code is required"))
		return
	}

	doc, err := h.documents.Ingest(r.Context(), req.Code)
	if err != nil {
		h.fail(w, r, "ingest rejected", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, toDocumentResponse(doc))
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	docs, err := h.documents.List(r.Context())
	if err != nil {
		h.fail(w, r, "failed to list documents", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toDocumentsResponse(docs))
}

func (h *Handler) handleRemove(w http.ResponseWriter, r *http.Request) {
	id, err := models.ParseIdentifier(chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, "invalid document id", dErrors.Wrap(err, dErrors.CodeBadRequest, "invalid document id"))
		return
	}
	if err := h.documents.Remove(r.Context(), id); err != nil {
		h.fail(w, r, "failed to remove document", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleRevalidate runs the daily pass; ?force=true runs it regardless of
// the last run.
func (h *Handler) handleRevalidate(w http.ResponseWriter, r *http.Request) {
	run := h.revalidator.RevalidateIfNeeded
	if r.URL.Query().Get("force") == "true" {
		run = h.revalidator.Revalidate
	}
	removed, err := run(r.Context())
	if err != nil {
		h.fail(w, r, "revalidation failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, revalidateResponse{Removed: removed})
}

func (h *Handler) handleDeleteAccount(w http.ResponseWriter, r *http.Request) {
	if err := h.documents.DeleteAccount(r.Context()); err != nil {
		h.fail(w, r, "account deletion failed", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
