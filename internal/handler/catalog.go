package handler

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ecoterra/siteapi/internal/domain"
	"github.com/ecoterra/siteapi/internal/service"
)

// CatalogHandler serves the REST surface of one record kind (team, projects)
type CatalogHandler[T any, U domain.Patch[T]] struct {
	svc *service.CatalogService[T, U]
	rs  *Responder
}

type (
	TeamHandler    = CatalogHandler[domain.TeamMember, domain.TeamMemberPatch]
	ProjectHandler = CatalogHandler[domain.Project, domain.ProjectPatch]
)

func NewCatalogHandler[T any, U domain.Patch[T]](svc *service.CatalogService[T, U], rs *Responder) *CatalogHandler[T, U] {
	return &CatalogHandler[T, U]{svc: svc, rs: rs}
}

// List handles GET /
func (h *CatalogHandler[T, U]) List(w http.ResponseWriter, r *http.Request) {
	items, err := h.svc.List(r.Context())
	if err != nil {
		h.rs.Fail(w, r, err)
		return
	}
	h.rs.JSON(w, http.StatusOK, items)
}

// Get handles GET /{id}
func (h *CatalogHandler[T, U]) Get(w http.ResponseWriter, r *http.Request) {
	item, err := h.svc.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.rs.Fail(w, r, err)
		return
	}
	h.rs.JSON(w, http.StatusOK, item)
}

// Create handles POST /
func (h *CatalogHandler[T, U]) Create(w http.ResponseWriter, r *http.Request) {
	var item T
	if err := decodeJSON(w, r, &item); err != nil {
		h.rs.Fail(w, r, err)
		return
	}
	created, err := h.svc.Create(r.Context(), item)
	if err != nil {
		h.rs.Fail(w, r, err)
		return
	}
	h.rs.JSON(w, http.StatusCreated, created)
}

// Update handles PUT /{id}; only fields present in the body change
func (h *CatalogHandler[T, U]) Update(w http.ResponseWriter, r *http.Request) {
	var patch U
	if err := decodeJSON(w, r, &patch); err != nil {
		h.rs.Fail(w, r, err)
		return
	}
	updated, err := h.svc.Update(r.Context(), chi.URLParam(r, "id"), patch)
	if err != nil {
		h.rs.Fail(w, r, err)
		return
	}
	h.rs.JSON(w, http.StatusOK, updated)
}

// Delete handles DELETE /{id}
func (h *CatalogHandler[T, U]) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.rs.Fail(w, r, err)
		return
	}
	h.rs.Message(w, http.StatusOK, fmt.Sprintf("%s deleted", h.svc.Kind()))
}
