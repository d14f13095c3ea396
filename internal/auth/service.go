// Package auth implements credential verification, access token issuance,
// and the refresh flow. It depends on narrow store interfaces so the flows
// can be exercised without a database.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/lukeharris/trackd/internal/session"
	"github.com/lukeharris/trackd/internal/user"
)

var (
	// ErrUnknownEmail is returned at sign-in when no account matches. It is
	// surfaced as a user-facing message, never an HTTP 404.
	ErrUnknownEmail = errors.New("no account registered for that email")
	// ErrInvalidCredentials is returned when the password does not verify.
	ErrInvalidCredentials = errors.New("invalid email or password")
	// ErrPasswordMismatch is returned when the confirmation is empty or
	// differs from the password.
	ErrPasswordMismatch = errors.New("password confirmation does not match")
	// ErrEmailRequired is returned for a blank or malformed email.
	ErrEmailRequired = errors.New("a valid email address is required")
)

// UserStore is the slice of the credential store the auth flows need.
type UserStore interface {
	Create(ctx context.Context, in user.CreateUserInput) (*user.User, error)
	GetByEmail(ctx context.Context, email string) (*user.User, error)
	GetByID(ctx context.Context, id string) (*user.User, error)
}

// SessionStore manages the single rotating refresh token per user.
type SessionStore interface {
	IssueOrRotate(ctx context.Context, userID string) (string, *session.RefreshToken, error)
	Validate(ctx context.Context, userID, plaintext string) error
	DeleteByUser(ctx context.Context, userID string) error
}

// Service wires credential verification to token issuance.
type Service struct {
	users    UserStore
	sessions SessionStore
	issuer   *TokenIssuer
	logger   *slog.Logger
}

// NewService creates the auth service. The logger must not be nil.
func NewService(users UserStore, sessions SessionStore, issuer *TokenIssuer, logger *slog.Logger) *Service {
	return &Service{
		users:    users,
		sessions: sessions,
		issuer:   issuer,
		logger:   logger,
	}
}

// RegisterInput holds the sign-up fields.
type RegisterInput struct {
	Email           string
	Password        string
	ConfirmPassword string
	FullName        string
}

// SignInResult carries everything a successful sign-in or refresh produces.
// RefreshToken is the plaintext value destined for the session cookie.
type SignInResult struct {
	User             *user.User
	AccessToken      string
	RefreshToken     string
	RefreshExpiresAt time.Time
}

// Register validates the sign-up input and creates the account with the
// unassigned role. No tokens are issued; sign-in is a separate step.
func (s *Service) Register(ctx context.Context, in RegisterInput) (*user.User, error) {
	email := user.NormalizeEmail(in.Email)
	if email == "" || !strings.Contains(email, "@") {
		return nil, ErrEmailRequired
	}
	if err := user.ValidatePassword(in.Password); err != nil {
		return nil, err
	}
	if in.ConfirmPassword == "" || in.ConfirmPassword != in.Password {
		return nil, ErrPasswordMismatch
	}

	u, err := s.users.Create(ctx, user.CreateUserInput{
		Email:    email,
		Password: in.Password,
		FullName: in.FullName,
		Role:     user.RoleUnassigned,
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("user registered", "user_id", u.ID, "email", u.Email)
	return u, nil
}

// SignIn verifies credentials, rotates the refresh token, and mints an
// access token. The refresh token is persisted before this returns, so the
// cookie the caller sets never references an unpersisted token.
func (s *Service) SignIn(ctx context.Context, email, password string) (*SignInResult, error) {
	u, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return nil, ErrUnknownEmail
		}
		return nil, fmt.Errorf("looking up user: %w", err)
	}

	if !user.CheckPassword(u, password) {
		s.logger.Info("sign-in rejected", "email", user.NormalizeEmail(email))
		return nil, ErrInvalidCredentials
	}

	return s.issueTokens(ctx, u)
}

// Refresh exchanges a (possibly expired) access token plus the cookie-borne
// refresh token for a fresh pair. The refresh token rotates on use.
func (s *Service) Refresh(ctx context.Context, priorAccessToken, refreshToken string) (*SignInResult, error) {
	if refreshToken == "" {
		return nil, session.ErrInvalidToken
	}

	p, err := s.issuer.VerifyAllowExpired(priorAccessToken)
	if err != nil {
		return nil, err
	}

	if err := s.sessions.Validate(ctx, p.UserID, refreshToken); err != nil {
		return nil, err
	}

	// Re-read the user so a role change since the last mint takes effect.
	u, err := s.users.GetByID(ctx, p.UserID)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return nil, session.ErrInvalidToken
		}
		return nil, fmt.Errorf("loading user for refresh: %w", err)
	}

	return s.issueTokens(ctx, u)
}

// SignOut deletes the caller's refresh token.
func (s *Service) SignOut(ctx context.Context, p Principal) error {
	return s.sessions.DeleteByUser(ctx, p.UserID)
}

// GetUser loads a user by id.
func (s *Service) GetUser(ctx context.Context, id string) (*user.User, error) {
	return s.users.GetByID(ctx, id)
}

func (s *Service) issueTokens(ctx context.Context, u *user.User) (*SignInResult, error) {
	plaintext, rt, err := s.sessions.IssueOrRotate(ctx, u.ID)
	if err != nil {
		return nil, fmt.Errorf("rotating session: %w", err)
	}

	access, err := s.issuer.Mint(Principal{UserID: u.ID, Email: u.Email, Role: u.Role})
	if err != nil {
		return nil, err
	}

	return &SignInResult{
		User:             u,
		AccessToken:      access,
		RefreshToken:     plaintext,
		RefreshExpiresAt: rt.ExpiresAt,
	}, nil
}
