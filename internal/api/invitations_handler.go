package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/lukeharris/trackd/internal/auth"
	"github.com/lukeharris/trackd/internal/invite"
	"github.com/lukeharris/trackd/internal/metrics"
	"github.com/lukeharris/trackd/internal/user"
)

// invitationsHandler groups invitation HTTP handlers.
type invitationsHandler struct {
	svc     *invite.Service
	metrics *metrics.Metrics
	audit   *auditor
}

func newInvitationsHandler(svc *invite.Service, m *metrics.Metrics, audit *auditor) *invitationsHandler {
	return &invitationsHandler{svc: svc, metrics: m, audit: audit}
}

// Create handles POST /api/v1/teams/{teamID}/invitations.
func (h *invitationsHandler) Create(w http.ResponseWriter, r *http.Request) {
	p, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "not authenticated")
		return
	}

	var req struct {
		Email      string `json:"email"`
		Role       string `json:"role"`
		ExpiryDays int    `json:"expiry_days"`
	}
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", "failed to parse request body")
		return
	}

	inv, err := h.svc.Create(r.Context(), p, chi.URLParam(r, "teamID"), req.Email, req.Role, req.ExpiryDays)
	if err != nil {
		if errors.Is(err, invite.ErrRateLimited) {
			h.metrics.IncRateLimitRejection("invitations")
		}
		h.writeServiceError(w, err)
		return
	}

	h.metrics.IncInvitation("created")
	h.audit.log(r, "invitation.create", "invitation", inv.ID,
		"team_id", inv.TeamID, "invited_email", inv.InvitedEmail, "role", inv.Role)
	writeJSON(w, http.StatusCreated, inv)
}

// List handles GET /api/v1/teams/{teamID}/invitations.
func (h *invitationsHandler) List(w http.ResponseWriter, r *http.Request) {
	p, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "not authenticated")
		return
	}

	invs, err := h.svc.ListByTeam(r.Context(), p, chi.URLParam(r, "teamID"))
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	if invs == nil {
		invs = []*invite.Invitation{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"invitations": invs})
}

// Accept handles POST /api/v1/invitations/{id}/accept. Any authenticated
// user may attempt redemption; the service enforces the email match.
func (h *invitationsHandler) Accept(w http.ResponseWriter, r *http.Request) {
	p, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "not authenticated")
		return
	}

	res, err := h.svc.Redeem(r.Context(), p, chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, invite.ErrExpired) {
			h.metrics.IncInvitation("expired")
		}
		h.writeServiceError(w, err)
		return
	}

	h.metrics.IncInvitation("accepted")
	h.audit.log(r, "invitation.accept", "invitation", chi.URLParam(r, "id"),
		"team_id", res.TeamID, "granted_role", res.Role)
	writeJSON(w, http.StatusOK, res)
}

// Revoke handles DELETE /api/v1/invitations/{id}.
func (h *invitationsHandler) Revoke(w http.ResponseWriter, r *http.Request) {
	p, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "not authenticated")
		return
	}

	inv, err := h.svc.Revoke(r.Context(), p, chi.URLParam(r, "id"))
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	h.metrics.IncInvitation("revoked")
	h.audit.log(r, "invitation.revoke", "invitation", inv.ID, "team_id", inv.TeamID)
	writeJSON(w, http.StatusOK, inv)
}

// writeServiceError maps invitation service errors onto the error envelope.
func (h *invitationsHandler) writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, invite.ErrNotFound), errors.Is(err, user.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", "invitation or team not found")
	case errors.Is(err, invite.ErrForbidden):
		writeError(w, http.StatusForbidden, "forbidden", err.Error())
	case errors.Is(err, invite.ErrAlreadyUsed),
		errors.Is(err, invite.ErrRevoked),
		errors.Is(err, invite.ErrExpired):
		writeError(w, http.StatusGone, "invitation_unusable", err.Error())
	case errors.Is(err, invite.ErrEmailMismatch):
		writeError(w, http.StatusForbidden, "forbidden", err.Error())
	case errors.Is(err, invite.ErrRateLimited):
		writeError(w, http.StatusTooManyRequests, "rate_limited", err.Error())
	case errors.Is(err, invite.ErrInvalidInput):
		writeError(w, http.StatusUnprocessableEntity, "validation_error", err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", "invitation operation failed")
	}
}
