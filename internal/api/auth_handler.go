package api

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/lukeharris/trackd/internal/auth"
	"github.com/lukeharris/trackd/internal/metrics"
	"github.com/lukeharris/trackd/internal/session"
	"github.com/lukeharris/trackd/internal/user"
)

// membershipLister is the slice of the user store the /me endpoint needs.
type membershipLister interface {
	ListMemberships(ctx context.Context, userID string) ([]user.Membership, error)
}

// authHandler groups authentication HTTP handlers.
type authHandler struct {
	svc           *auth.Service
	memberships   membershipLister
	metrics       *metrics.Metrics
	audit         *auditor
	secureCookies bool
}

func newAuthHandler(svc *auth.Service, memberships membershipLister, m *metrics.Metrics, audit *auditor, secureCookies bool) *authHandler {
	return &authHandler{
		svc:           svc,
		memberships:   memberships,
		metrics:       m,
		audit:         audit,
		secureCookies: secureCookies,
	}
}

// Signup handles POST /api/v1/auth/signup. Registration never signs the
// caller in; the client follows up with a signin request.
func (h *authHandler) Signup(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email           string `json:"email"`
		Password        string `json:"password"`
		ConfirmPassword string `json:"confirm_password"`
		FullName        string `json:"full_name"`
	}
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", "failed to parse request body")
		return
	}

	u, err := h.svc.Register(r.Context(), auth.RegisterInput{
		Email:           req.Email,
		Password:        req.Password,
		ConfirmPassword: req.ConfirmPassword,
		FullName:        req.FullName,
	})
	if err != nil {
		switch {
		case errors.Is(err, user.ErrEmailTaken):
			writeError(w, http.StatusConflict, "conflict", err.Error())
		case errors.Is(err, auth.ErrEmailRequired),
			errors.Is(err, auth.ErrPasswordMismatch),
			errors.Is(err, user.ErrWeakPassword):
			writeError(w, http.StatusUnprocessableEntity, "validation_error", err.Error())
		default:
			writeError(w, http.StatusInternalServerError, "internal_error", "failed to create account")
		}
		return
	}

	h.audit.log(r, "user.signup", "user", u.ID, "email", u.Email)
	writeJSON(w, http.StatusCreated, u)
}

// Signin handles POST /api/v1/auth/signin. A success sets the refresh
// cookie and returns the access token in the body.
func (h *authHandler) Signin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", "failed to parse request body")
		return
	}
	if strings.TrimSpace(req.Email) == "" || req.Password == "" {
		writeError(w, http.StatusUnprocessableEntity, "validation_error", "email and password are required")
		return
	}

	res, err := h.svc.SignIn(r.Context(), req.Email, req.Password)
	if err != nil {
		h.metrics.IncAuthFailure("signin")
		switch {
		case errors.Is(err, auth.ErrUnknownEmail), errors.Is(err, auth.ErrInvalidCredentials):
			writeError(w, http.StatusUnauthorized, "unauthorized", err.Error())
		default:
			writeError(w, http.StatusInternalServerError, "internal_error", "sign-in failed")
		}
		return
	}

	h.metrics.IncAuthSuccess("signin")
	h.metrics.IncSessionRotated()
	http.SetCookie(w, session.NewCookie(res.RefreshToken, res.RefreshExpiresAt, h.secureCookies))
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"access_token": res.AccessToken,
		"user":         res.User,
	})
}

// Refresh handles POST /api/v1/auth/refresh. The prior access token may be
// expired; the cookie-borne refresh token must be current. A success
// rotates both.
func (h *authHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	prior := extractBearerToken(r)
	if prior == "" {
		h.metrics.IncAuthFailure("refresh")
		writeError(w, http.StatusUnauthorized, "unauthorized", "missing or malformed authorization header")
		return
	}

	res, err := h.svc.Refresh(r.Context(), prior, session.ReadCookie(r))
	if err != nil {
		h.metrics.IncAuthFailure("refresh")
		switch {
		case errors.Is(err, auth.ErrTokenInvalid),
			errors.Is(err, auth.ErrTokenExpired),
			errors.Is(err, session.ErrInvalidToken):
			// An invalid or stale refresh cookie is cleared so the client
			// falls back to a fresh sign-in.
			http.SetCookie(w, session.ClearCookie(h.secureCookies))
			writeError(w, http.StatusUnauthorized, "unauthorized", "session is no longer valid")
		default:
			writeError(w, http.StatusInternalServerError, "internal_error", "refresh failed")
		}
		return
	}

	h.metrics.IncAuthSuccess("refresh")
	h.metrics.IncSessionRotated()
	http.SetCookie(w, session.NewCookie(res.RefreshToken, res.RefreshExpiresAt, h.secureCookies))
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"access_token": res.AccessToken,
		"user":         res.User,
	})
}

// Logout handles POST /api/v1/auth/logout.
func (h *authHandler) Logout(w http.ResponseWriter, r *http.Request) {
	p, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "not authenticated")
		return
	}

	if err := h.svc.SignOut(r.Context(), p); err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to sign out")
		return
	}

	h.audit.log(r, "user.logout", "user", p.UserID)
	http.SetCookie(w, session.ClearCookie(h.secureCookies))
	w.WriteHeader(http.StatusNoContent)
}

// Me handles GET /api/v1/auth/me.
func (h *authHandler) Me(w http.ResponseWriter, r *http.Request) {
	p, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "not authenticated")
		return
	}

	u, err := h.svc.GetUser(r.Context(), p.UserID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to load user")
		return
	}

	memberships := []user.Membership{}
	if h.memberships != nil {
		memberships, err = h.memberships.ListMemberships(r.Context(), p.UserID)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "internal_error", "failed to load memberships")
			return
		}
		if memberships == nil {
			memberships = []user.Membership{}
		}
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"user":        u,
		"memberships": memberships,
	})
}

// extractBearerToken extracts the bearer token from the Authorization header.
func extractBearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if len(h) > 7 && strings.EqualFold(h[:7], "Bearer ") {
		return h[7:]
	}
	return ""
}
