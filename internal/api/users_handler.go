package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/lukeharris/trackd/internal/user"
)

// usersHandler groups admin user management handlers.
type usersHandler struct {
	store *user.Store
	audit *auditor
}

func newUsersHandler(store *user.Store, audit *auditor) *usersHandler {
	return &usersHandler{store: store, audit: audit}
}

// List handles GET /api/v1/admin/users.
func (h *usersHandler) List(w http.ResponseWriter, r *http.Request) {
	users, err := h.store.List(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to list users")
		return
	}
	if users == nil {
		users = []*user.User{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"users": users})
}

// Get handles GET /api/v1/admin/users/{id}.
func (h *usersHandler) Get(w http.ResponseWriter, r *http.Request) {
	u, err := h.store.GetByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			writeError(w, http.StatusNotFound, "not_found", "user not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to load user")
		return
	}

	memberships, err := h.store.ListMemberships(r.Context(), u.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to load memberships")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"user":        u,
		"memberships": memberships,
	})
}

// UpdateRole handles PUT /api/v1/admin/users/{id}/role. The role replaces
// the previous one; users hold a single primary role.
func (h *usersHandler) UpdateRole(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Role string `json:"role"`
	}
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", "failed to parse request body")
		return
	}
	if !user.ValidRole(req.Role) {
		writeError(w, http.StatusUnprocessableEntity, "validation_error", "unknown role")
		return
	}

	u, err := h.store.UpdateRole(r.Context(), chi.URLParam(r, "id"), req.Role)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			writeError(w, http.StatusNotFound, "not_found", "user not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to update role")
		return
	}

	h.audit.log(r, "user.role_update", "user", u.ID, "role", u.Role)
	writeJSON(w, http.StatusOK, u)
}
