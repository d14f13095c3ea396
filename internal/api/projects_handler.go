package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/lukeharris/trackd/internal/auth"
	"github.com/lukeharris/trackd/internal/project"
)

// projectsHandler groups project and bug HTTP handlers.
type projectsHandler struct {
	store *project.Store
	audit *auditor
}

func newProjectsHandler(store *project.Store, audit *auditor) *projectsHandler {
	return &projectsHandler{store: store, audit: audit}
}

// ListProjects handles GET /api/v1/projects?team_id=...
func (h *projectsHandler) ListProjects(w http.ResponseWriter, r *http.Request) {
	projects, err := h.store.ListProjects(r.Context(), r.URL.Query().Get("team_id"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to list projects")
		return
	}
	if projects == nil {
		projects = []*project.Project{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"projects": projects})
}

// CreateProject handles POST /api/v1/projects.
func (h *projectsHandler) CreateProject(w http.ResponseWriter, r *http.Request) {
	p, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "not authenticated")
		return
	}

	var in project.CreateProjectInput
	if err := readJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", "failed to parse request body")
		return
	}

	created, err := h.store.CreateProject(r.Context(), in, p.UserID)
	if err != nil {
		h.writeStoreError(w, err)
		return
	}

	h.audit.log(r, "project.create", "project", created.ID, "team_id", created.TeamID)
	writeJSON(w, http.StatusCreated, created)
}

// GetProject handles GET /api/v1/projects/{id}.
func (h *projectsHandler) GetProject(w http.ResponseWriter, r *http.Request) {
	prj, err := h.store.GetProject(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, prj)
}

// UpdateProject handles PUT /api/v1/projects/{id}.
func (h *projectsHandler) UpdateProject(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name        string `json:"name"`
		Description string `json:"description"`
	}
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", "failed to parse request body")
		return
	}

	prj, err := h.store.UpdateProject(r.Context(), chi.URLParam(r, "id"), req.Name, req.Description)
	if err != nil {
		h.writeStoreError(w, err)
		return
	}

	h.audit.log(r, "project.update", "project", prj.ID)
	writeJSON(w, http.StatusOK, prj)
}

// DeleteProject handles DELETE /api/v1/projects/{id}.
func (h *projectsHandler) DeleteProject(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.store.DeleteProject(r.Context(), id); err != nil {
		h.writeStoreError(w, err)
		return
	}
	h.audit.log(r, "project.delete", "project", id)
	w.WriteHeader(http.StatusNoContent)
}

// ListBugs handles GET /api/v1/projects/{id}/bugs?status=...
func (h *projectsHandler) ListBugs(w http.ResponseWriter, r *http.Request) {
	bugs, err := h.store.ListBugs(r.Context(), chi.URLParam(r, "id"), r.URL.Query().Get("status"))
	if err != nil {
		h.writeStoreError(w, err)
		return
	}
	if bugs == nil {
		bugs = []*project.Bug{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"bugs": bugs})
}

// CreateBug handles POST /api/v1/projects/{id}/bugs.
func (h *projectsHandler) CreateBug(w http.ResponseWriter, r *http.Request) {
	p, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "not authenticated")
		return
	}

	var in project.CreateBugInput
	if err := readJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", "failed to parse request body")
		return
	}
	in.ProjectID = chi.URLParam(r, "id")

	bug, err := h.store.CreateBug(r.Context(), in, p.UserID)
	if err != nil {
		h.writeStoreError(w, err)
		return
	}

	h.audit.log(r, "bug.create", "bug", bug.ID, "project_id", bug.ProjectID, "severity", bug.Severity)
	writeJSON(w, http.StatusCreated, bug)
}

// GetBug handles GET /api/v1/bugs/{id}.
func (h *projectsHandler) GetBug(w http.ResponseWriter, r *http.Request) {
	bug, err := h.store.GetBug(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, bug)
}

// UpdateBug handles PATCH /api/v1/bugs/{id}.
func (h *projectsHandler) UpdateBug(w http.ResponseWriter, r *http.Request) {
	var in project.UpdateBugInput
	if err := readJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", "failed to parse request body")
		return
	}

	bug, err := h.store.UpdateBug(r.Context(), chi.URLParam(r, "id"), in)
	if err != nil {
		h.writeStoreError(w, err)
		return
	}

	h.audit.log(r, "bug.update", "bug", bug.ID, "status", bug.Status)
	writeJSON(w, http.StatusOK, bug)
}

// DeleteBug handles DELETE /api/v1/bugs/{id}.
func (h *projectsHandler) DeleteBug(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.store.DeleteBug(r.Context(), id); err != nil {
		h.writeStoreError(w, err)
		return
	}
	h.audit.log(r, "bug.delete", "bug", id)
	w.WriteHeader(http.StatusNoContent)
}

func (h *projectsHandler) writeStoreError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, project.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", "resource not found")
	case errors.Is(err, project.ErrInvalidInput):
		writeError(w, http.StatusUnprocessableEntity, "validation_error", err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", "project operation failed")
	}
}
