package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/lukeharris/trackd/internal/user"
)

// teamsHandler groups team HTTP handlers.
type teamsHandler struct {
	store *user.Store
	audit *auditor
}

func newTeamsHandler(store *user.Store, audit *auditor) *teamsHandler {
	return &teamsHandler{store: store, audit: audit}
}

// List handles GET /api/v1/teams.
func (h *teamsHandler) List(w http.ResponseWriter, r *http.Request) {
	teams, err := h.store.ListTeams(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to list teams")
		return
	}
	if teams == nil {
		teams = []*user.Team{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"teams": teams})
}

// Create handles POST /api/v1/teams.
func (h *teamsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name string `json:"name"`
	}
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", "failed to parse request body")
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		writeError(w, http.StatusUnprocessableEntity, "validation_error", "name is required")
		return
	}

	t, err := h.store.CreateTeam(r.Context(), req.Name)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to create team")
		return
	}

	h.audit.log(r, "team.create", "team", t.ID, "name", t.Name)
	writeJSON(w, http.StatusCreated, t)
}

// Get handles GET /api/v1/teams/{teamID}.
func (h *teamsHandler) Get(w http.ResponseWriter, r *http.Request) {
	t, err := h.store.GetTeam(r.Context(), chi.URLParam(r, "teamID"))
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			writeError(w, http.StatusNotFound, "not_found", "team not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to load team")
		return
	}
	writeJSON(w, http.StatusOK, t)
}

// Members handles GET /api/v1/teams/{teamID}/members.
func (h *teamsHandler) Members(w http.ResponseWriter, r *http.Request) {
	members, err := h.store.ListTeamMembers(r.Context(), chi.URLParam(r, "teamID"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to list team members")
		return
	}
	if members == nil {
		members = []user.Membership{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"members": members})
}
