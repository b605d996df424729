package httptransport

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"healthpass/internal/profile"
	dErrors "healthpass/pkg/domain-errors"
	"healthpass/pkg/platform/httputil"
)

const dateLayout = "2006-01-02"

type personRequest struct {
	FirstName   string `json:"first_name"`
	LastName    string `json:"last_name"`
	DateOfBirth string `json:"date_of_birth,omitempty"`
}

func (p personRequest) toPerson() (profile.Person, error) {
	person := profile.Person{FirstName: p.FirstName, LastName: p.LastName}
	if p.DateOfBirth != "" {
		dob, err := time.Parse(dateLayout, p.DateOfBirth)
		if err != nil {
			return profile.Person{}, dErrors.Wrap(err, dErrors.CodeBadRequest, "date_of_birth must be YYYY-MM-DD")
		}
		person.DateOfBirth = dob
	}
	return person, nil
}

type personResponse struct {
	ID          string `json:"id"`
	FirstName   string `json:"first_name"`
	LastName    string `json:"last_name"`
	DateOfBirth string `json:"date_of_birth,omitempty"`
}

func toPersonResponse(p profile.Person) personResponse {
	resp := personResponse{ID: p.ID.String(), FirstName: p.FirstName, LastName: p.LastName}
	if !p.DateOfBirth.IsZero() {
		resp.DateOfBirth = p.DateOfBirth.Format(dateLayout)
	}
	return resp
}

type profileResponse struct {
	Owner    *personResponse  `json:"owner"`
	Children []personResponse `json:"children"`
}

func (h *Handler) handleGetProfile(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	owner, ok, err := h.profiles.Owner(ctx)
	if err != nil {
		h.fail(w, r, "failed to load owner", err)
		return
	}
	children, err := h.profiles.Children(ctx)
	if err != nil {
		h.fail(w, r, "failed to load children", err)
		return
	}

	resp := profileResponse{Children: make([]personResponse, 0, len(children))}
	if ok {
		o := toPersonResponse(owner)
		resp.Owner = &o
	}
	for _, c := range children {
		resp.Children = append(resp.Children, toPersonResponse(c))
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleSetOwner(w http.ResponseWriter, r *http.Request) {
	person, ok := h.decodePerson(w, r)
	if !ok {
		return
	}
	owner, err := h.profiles.SetOwner(r.Context(), person)
	if err != nil {
		h.fail(w, r, "failed to set owner", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toPersonResponse(owner))
}

func (h *Handler) handleAddChild(w http.ResponseWriter, r *http.Request) {
	person, ok := h.decodePerson(w, r)
	if !ok {
		return
	}
	child, err := h.profiles.AddChild(r.Context(), person)
	if err != nil {
		h.fail(w, r, "failed to add child", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, toPersonResponse(child))
}

func (h *Handler) handleRemoveChild(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, "invalid child id", dErrors.Wrap(err, dErrors.CodeBadRequest, "invalid child id"))
		return
	}
	if err := h.profiles.RemoveChild(r.Context(), id); err != nil {
		h.fail(w, r, "failed to remove child", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) decodePerson(w http.ResponseWriter, r *http.Request) (profile.Person, bool) {
	var req personRequest
	if err := decode(r, &req); err != nil {
		h.fail(w, r, "invalid profile request", err)
		return profile.Person{}, false
	}
	person, err := req.toPerson()
	if err != nil {
		h.fail(w, r, "invalid profile request", err)
		return profile.Person{}, false
	}
	return person, true
}
