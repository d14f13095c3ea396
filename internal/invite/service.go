// Package invite implements the invitation token service: privileged
// issuance, single-use redemption with an atomic membership grant, and
// best-effort confirmation messages.
package invite

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/lukeharris/trackd/internal/auth"
	"github.com/lukeharris/trackd/internal/notify"
	"github.com/lukeharris/trackd/internal/ratelimit"
	"github.com/lukeharris/trackd/internal/user"
)

// InvitationStore is the persistence surface the service needs.
type InvitationStore interface {
	Create(ctx context.Context, invitedEmail, teamID, role, createdBy string, expiresAt time.Time) (*Invitation, error)
	GetByID(ctx context.Context, id string) (*Invitation, error)
	ListByTeam(ctx context.Context, teamID string) ([]*Invitation, error)
	Redeem(ctx context.Context, id string, u *user.User) (*GrantResult, error)
	Revoke(ctx context.Context, id string) (*Invitation, error)
}

// UserLookup resolves the redeeming user and the target team.
type UserLookup interface {
	GetByID(ctx context.Context, id string) (*user.User, error)
	GetTeam(ctx context.Context, id string) (*user.Team, error)
}

// Service issues and redeems invitations.
type Service struct {
	store      InvitationStore
	users      UserLookup
	limiter    *ratelimit.Limiter
	notifier   notify.Notifier
	logger     *slog.Logger
	expiryDays int
	now        func() time.Time // injectable clock for testing
}

// NewService creates the invitation service. limiter caps invitations per
// inviter per day; expiryDays is the default invitation lifetime.
func NewService(store InvitationStore, users UserLookup, limiter *ratelimit.Limiter, notifier notify.Notifier, logger *slog.Logger, expiryDays int) *Service {
	return &Service{
		store:      store,
		users:      users,
		limiter:    limiter,
		notifier:   notifier,
		logger:     logger,
		expiryDays: expiryDays,
		now:        time.Now,
	}
}

// Create issues a pending invitation. The inviter's verified identity is an
// explicit argument; only admins and managers may invite.
func (s *Service) Create(ctx context.Context, inviter auth.Principal, teamID, invitedEmail, role string, expiryDays int) (*Invitation, error) {
	if inviter.Role != user.RoleAdmin && inviter.Role != user.RoleManager {
		return nil, ErrForbidden
	}

	invitedEmail = user.NormalizeEmail(invitedEmail)
	if invitedEmail == "" || !strings.Contains(invitedEmail, "@") {
		return nil, fmt.Errorf("%w: invited email is required", ErrInvalidInput)
	}
	if role == "" {
		role = user.RoleMember
	}
	if !user.ValidRole(role) || role == user.RoleUnassigned || role == user.RoleAdmin {
		return nil, fmt.Errorf("%w: role must be manager or member", ErrInvalidInput)
	}
	if expiryDays <= 0 {
		expiryDays = s.expiryDays
	}

	team, err := s.users.GetTeam(ctx, teamID)
	if err != nil {
		return nil, err
	}

	if !s.limiter.Allow(inviter.UserID) {
		return nil, ErrRateLimited
	}

	expiresAt := s.now().UTC().Add(time.Duration(expiryDays) * 24 * time.Hour)
	inv, err := s.store.Create(ctx, invitedEmail, team.ID, role, inviter.UserID, expiresAt)
	if err != nil {
		return nil, err
	}

	s.logger.Info("invitation created",
		"invitation_id", inv.ID,
		"team_id", team.ID,
		"invited_email", inv.InvitedEmail,
		"role", inv.Role,
		"created_by", inviter.UserID,
	)

	// Best-effort notification; the invitation stands regardless.
	s.sendMessage(ctx, notify.Message{
		Recipient: inv.InvitedEmail,
		Subject:   fmt.Sprintf("You have been invited to join %s", team.Name),
		Body:      fmt.Sprintf("Accept invitation %s before %s to join %s as %s.", inv.ID, inv.ExpiresAt.Format(time.RFC3339), team.Name, inv.Role),
	})

	return inv, nil
}

// Redeem accepts an invitation on behalf of the acting user. The status
// transition and the membership grant commit in one transaction; the
// confirmation message is sent only after the commit and never rolls it
// back.
func (s *Service) Redeem(ctx context.Context, actor auth.Principal, invitationID string) (*GrantResult, error) {
	// The token's claims may predate a role or email change; load the
	// current record before granting anything.
	u, err := s.users.GetByID(ctx, actor.UserID)
	if err != nil {
		return nil, err
	}

	res, err := s.store.Redeem(ctx, invitationID, u)
	if err != nil {
		return nil, err
	}

	s.logger.Info("invitation redeemed",
		"invitation_id", invitationID,
		"team_id", res.TeamID,
		"user_id", res.UserID,
		"role", res.Role,
	)

	s.sendMessage(ctx, notify.Message{
		Recipient: u.Email,
		Subject:   "Team membership confirmed",
		Body:      fmt.Sprintf("Your invitation was accepted; you joined team %s as %s.", res.TeamID, res.Role),
	})

	return res, nil
}

// Revoke cancels a pending invitation. Only admins, managers, or the
// original issuer may revoke.
func (s *Service) Revoke(ctx context.Context, actor auth.Principal, invitationID string) (*Invitation, error) {
	inv, err := s.store.GetByID(ctx, invitationID)
	if err != nil {
		return nil, err
	}
	if actor.Role != user.RoleAdmin && actor.Role != user.RoleManager && actor.UserID != inv.CreatedBy {
		return nil, ErrForbidden
	}
	return s.store.Revoke(ctx, invitationID)
}

// ListByTeam returns a team's invitations for privileged viewers.
func (s *Service) ListByTeam(ctx context.Context, actor auth.Principal, teamID string) ([]*Invitation, error) {
	if actor.Role != user.RoleAdmin && actor.Role != user.RoleManager {
		return nil, ErrForbidden
	}
	return s.store.ListByTeam(ctx, teamID)
}

func (s *Service) sendMessage(ctx context.Context, msg notify.Message) {
	if err := s.notifier.Send(ctx, msg); err != nil {
		s.logger.Warn("notification send failed", "recipient", msg.Recipient, "error", err)
	}
}
