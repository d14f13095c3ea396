package invite

import (
	"errors"
	"time"
)

// Invitation statuses. A pending invitation becomes accepted exactly once;
// it becomes expired when read after its expiry while still pending.
const (
	StatusPending  = "pending"
	StatusAccepted = "accepted"
	StatusExpired  = "expired"
	StatusRevoked  = "revoked"
)

var (
	// ErrNotFound is returned when no invitation matches the id.
	ErrNotFound = errors.New("invitation not found")
	// ErrAlreadyUsed is returned for an invitation that was already accepted.
	ErrAlreadyUsed = errors.New("invitation already accepted")
	// ErrRevoked is returned for a revoked invitation.
	ErrRevoked = errors.New("invitation revoked")
	// ErrExpired is returned when the invitation is past its expiry.
	ErrExpired = errors.New("invitation expired")
	// ErrEmailMismatch is returned when the redeeming account's email does
	// not match the invited email.
	ErrEmailMismatch = errors.New("invitation was issued to a different email")
	// ErrForbidden is returned when the inviter lacks the required role.
	ErrForbidden = errors.New("insufficient role to issue invitations")
	// ErrRateLimited is returned when the inviter's daily cap is exceeded.
	ErrRateLimited = errors.New("daily invitation limit reached")
	// ErrInvalidInput is returned for malformed create parameters.
	ErrInvalidInput = errors.New("invalid invitation input")
)

// Invitation is a single-use, expiring token granting a role within a team.
type Invitation struct {
	ID           string    `json:"id"`
	InvitedEmail string    `json:"invited_email"`
	TeamID       string    `json:"team_id"`
	Role         string    `json:"role"`
	Status       string    `json:"status"`
	CreatedBy    string    `json:"created_by"`
	CreatedAt    time.Time `json:"created_at"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// GrantResult describes a successful redemption.
type GrantResult struct {
	Invitation *Invitation `json:"invitation"`
	TeamID     string      `json:"team_id"`
	UserID     string      `json:"user_id"`
	Role       string      `json:"role"`
}
