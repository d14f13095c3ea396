package auth

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/lukeharris/trackd/internal/session"
	"github.com/lukeharris/trackd/internal/user"
)

// --- in-memory stores ---

type memUserStore struct {
	byEmail map[string]*user.User
	nextID  int
}

func newMemUserStore() *memUserStore {
	return &memUserStore{byEmail: make(map[string]*user.User)}
}

func (m *memUserStore) Create(_ context.Context, in user.CreateUserInput) (*user.User, error) {
	email := user.NormalizeEmail(in.Email)
	if _, ok := m.byEmail[email]; ok {
		return nil, user.ErrEmailTaken
	}
	hash, err := user.HashPassword(in.Password)
	if err != nil {
		return nil, err
	}
	m.nextID++
	u := &user.User{
		ID:           string(rune('a' + m.nextID - 1)),
		Email:        email,
		PasswordHash: hash,
		FullName:     in.FullName,
		Role:         in.Role,
		CreatedAt:    time.Now(),
	}
	m.byEmail[email] = u
	return u, nil
}

func (m *memUserStore) GetByEmail(_ context.Context, email string) (*user.User, error) {
	u, ok := m.byEmail[user.NormalizeEmail(email)]
	if !ok {
		return nil, user.ErrNotFound
	}
	return u, nil
}

func (m *memUserStore) GetByID(_ context.Context, id string) (*user.User, error) {
	for _, u := range m.byEmail {
		if u.ID == id {
			return u, nil
		}
	}
	return nil, user.ErrNotFound
}

type memSessionRow struct {
	hash      string
	expiresAt time.Time
}

type memSessionStore struct {
	rows    map[string]memSessionRow // keyed by user id: at most one row each
	rotates int
	now     func() time.Time
}

func newMemSessionStore() *memSessionStore {
	return &memSessionStore{rows: make(map[string]memSessionRow), now: time.Now}
}

func (m *memSessionStore) IssueOrRotate(_ context.Context, userID string) (string, *session.RefreshToken, error) {
	plaintext, err := session.NewToken()
	if err != nil {
		return "", nil, err
	}
	expires := m.now().Add(7 * 24 * time.Hour)
	m.rows[userID] = memSessionRow{hash: session.HashToken(plaintext), expiresAt: expires}
	m.rotates++
	return plaintext, &session.RefreshToken{UserID: userID, ExpiresAt: expires}, nil
}

func (m *memSessionStore) Validate(_ context.Context, userID, plaintext string) error {
	row, ok := m.rows[userID]
	if !ok || row.hash != session.HashToken(plaintext) {
		return session.ErrInvalidToken
	}
	if m.now().After(row.expiresAt) {
		return session.ErrInvalidToken
	}
	return nil
}

func (m *memSessionStore) DeleteByUser(_ context.Context, userID string) error {
	delete(m.rows, userID)
	return nil
}

func newTestService() (*Service, *memUserStore, *memSessionStore, *TokenIssuer) {
	users := newMemUserStore()
	sessions := newMemSessionStore()
	issuer := testIssuer(time.Minute)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewService(users, sessions, issuer, logger), users, sessions, issuer
}

// --- Register ---

func TestRegister_PasswordPolicy(t *testing.T) {
	svc, _, _, _ := newTestService()

	tests := []struct {
		name     string
		email    string
		password string
		confirm  string
		wantErr  error
	}{
		{"valid", "alice@x.com", "Passw0rd!", "Passw0rd!", nil},
		{"no digit", "b@x.com", "Password!", "Password!", user.ErrWeakPassword},
		{"no letter", "c@x.com", "1234567!", "1234567!", user.ErrWeakPassword},
		{"no symbol", "d@x.com", "Password1", "Password1", user.ErrWeakPassword},
		{"empty confirm", "e@x.com", "Passw0rd!", "", ErrPasswordMismatch},
		{"mismatched confirm", "f@x.com", "Passw0rd!", "Passw0rd?", ErrPasswordMismatch},
		{"blank email", "", "Passw0rd!", "Passw0rd!", ErrEmailRequired},
		{"not an email", "nope", "Passw0rd!", "Passw0rd!", ErrEmailRequired},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Register(context.Background(), RegisterInput{
				Email:           tt.email,
				Password:        tt.password,
				ConfirmPassword: tt.confirm,
			})
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Register() = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestRegister_DefaultsToUnassigned(t *testing.T) {
	svc, _, _, _ := newTestService()

	u, err := svc.Register(context.Background(), RegisterInput{
		Email:           "Alice@X.com",
		Password:        "Passw0rd!",
		ConfirmPassword: "Passw0rd!",
		FullName:        "Alice",
	})
	if err != nil {
		t.Fatalf("Register error: %v", err)
	}
	if u.Role != user.RoleUnassigned {
		t.Errorf("expected role unassigned, got %q", u.Role)
	}
	if u.Email != "alice@x.com" {
		t.Errorf("expected normalized email, got %q", u.Email)
	}
}

func TestRegister_DuplicateEmail(t *testing.T) {
	svc, users, _, _ := newTestService()

	in := RegisterInput{Email: "alice@x.com", Password: "Passw0rd!", ConfirmPassword: "Passw0rd!"}
	if _, err := svc.Register(context.Background(), in); err != nil {
		t.Fatalf("first Register error: %v", err)
	}
	if _, err := svc.Register(context.Background(), in); !errors.Is(err, user.ErrEmailTaken) {
		t.Errorf("expected ErrEmailTaken, got %v", err)
	}
	if len(users.byEmail) != 1 {
		t.Errorf("expected exactly 1 user row, got %d", len(users.byEmail))
	}
}

// --- SignIn ---

func TestSignIn_Success(t *testing.T) {
	svc, _, sessions, issuer := newTestService()
	mustRegister(t, svc, "alice@x.com", "Passw0rd!")

	res, err := svc.SignIn(context.Background(), "alice@x.com", "Passw0rd!")
	if err != nil {
		t.Fatalf("SignIn error: %v", err)
	}
	if res.AccessToken == "" {
		t.Fatal("expected non-empty access token")
	}
	if res.RefreshToken == "" {
		t.Fatal("expected non-empty refresh token")
	}

	p, err := issuer.Verify(res.AccessToken)
	if err != nil {
		t.Fatalf("minted token does not verify: %v", err)
	}
	if p.Email != "alice@x.com" {
		t.Errorf("expected email claim alice@x.com, got %q", p.Email)
	}
	if len(sessions.rows) != 1 {
		t.Errorf("expected 1 refresh token row, got %d", len(sessions.rows))
	}
}

func TestSignIn_WrongPassword(t *testing.T) {
	svc, _, sessions, _ := newTestService()
	mustRegister(t, svc, "alice@x.com", "Passw0rd!")

	res, err := svc.SignIn(context.Background(), "alice@x.com", "nope")
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("expected ErrInvalidCredentials, got %v", err)
	}
	if res != nil {
		t.Error("expected no result on failed sign-in")
	}
	if len(sessions.rows) != 0 {
		t.Error("failed sign-in must not create a session")
	}
}

func TestSignIn_UnknownEmail(t *testing.T) {
	svc, _, _, _ := newTestService()

	if _, err := svc.SignIn(context.Background(), "ghost@x.com", "Passw0rd!"); !errors.Is(err, ErrUnknownEmail) {
		t.Errorf("expected ErrUnknownEmail, got %v", err)
	}
}

func TestSignIn_RotationKeepsOneRow(t *testing.T) {
	svc, _, sessions, _ := newTestService()
	mustRegister(t, svc, "alice@x.com", "Passw0rd!")

	var last string
	for i := 0; i < 5; i++ {
		res, err := svc.SignIn(context.Background(), "alice@x.com", "Passw0rd!")
		if err != nil {
			t.Fatalf("SignIn #%d error: %v", i, err)
		}
		if res.RefreshToken == last {
			t.Fatal("refresh token must rotate on every sign-in")
		}
		last = res.RefreshToken
	}
	if len(sessions.rows) != 1 {
		t.Errorf("expected exactly 1 refresh token row after 5 sign-ins, got %d", len(sessions.rows))
	}
}

// --- Refresh ---

func TestRefresh_RotatesAndReturnsNewPair(t *testing.T) {
	svc, _, sessions, issuer := newTestService()
	mustRegister(t, svc, "alice@x.com", "Passw0rd!")

	first, err := svc.SignIn(context.Background(), "alice@x.com", "Passw0rd!")
	if err != nil {
		t.Fatalf("SignIn error: %v", err)
	}

	res, err := svc.Refresh(context.Background(), first.AccessToken, first.RefreshToken)
	if err != nil {
		t.Fatalf("Refresh error: %v", err)
	}
	if res.AccessToken == "" {
		t.Fatal("expected new access token")
	}
	if res.RefreshToken == first.RefreshToken {
		t.Error("refresh token must rotate on use")
	}
	if len(sessions.rows) != 1 {
		t.Errorf("expected 1 refresh token row after refresh, got %d", len(sessions.rows))
	}

	p, err := issuer.Verify(res.AccessToken)
	if err != nil {
		t.Fatalf("refreshed token does not verify: %v", err)
	}
	if p.Email != "alice@x.com" {
		t.Errorf("expected email alice@x.com, got %q", p.Email)
	}

	// The prior refresh token is dead after rotation.
	if _, err := svc.Refresh(context.Background(), res.AccessToken, first.RefreshToken); !errors.Is(err, session.ErrInvalidToken) {
		t.Errorf("expected ErrInvalidToken for replayed refresh token, got %v", err)
	}
}

func TestRefresh_WithExpiredAccessToken(t *testing.T) {
	svc, _, _, issuer := newTestService()
	mustRegister(t, svc, "alice@x.com", "Passw0rd!")

	first, err := svc.SignIn(context.Background(), "alice@x.com", "Passw0rd!")
	if err != nil {
		t.Fatalf("SignIn error: %v", err)
	}

	// Push the verifier clock past the access token expiry.
	issuer.now = func() time.Time { return time.Now().Add(time.Hour) }

	res, err := svc.Refresh(context.Background(), first.AccessToken, first.RefreshToken)
	if err != nil {
		t.Fatalf("Refresh with expired access token should succeed: %v", err)
	}
	if res.AccessToken == "" {
		t.Fatal("expected new access token")
	}
}

func TestRefresh_MismatchedToken(t *testing.T) {
	svc, _, _, _ := newTestService()
	mustRegister(t, svc, "alice@x.com", "Passw0rd!")

	first, err := svc.SignIn(context.Background(), "alice@x.com", "Passw0rd!")
	if err != nil {
		t.Fatalf("SignIn error: %v", err)
	}

	other, _ := session.NewToken()
	if _, err := svc.Refresh(context.Background(), first.AccessToken, other); !errors.Is(err, session.ErrInvalidToken) {
		t.Errorf("expected ErrInvalidToken for mismatched value, got %v", err)
	}
	if _, err := svc.Refresh(context.Background(), first.AccessToken, ""); !errors.Is(err, session.ErrInvalidToken) {
		t.Errorf("expected ErrInvalidToken for missing cookie, got %v", err)
	}
}

func TestRefresh_ExpiredRefreshToken(t *testing.T) {
	svc, _, sessions, _ := newTestService()
	mustRegister(t, svc, "alice@x.com", "Passw0rd!")

	first, err := svc.SignIn(context.Background(), "alice@x.com", "Passw0rd!")
	if err != nil {
		t.Fatalf("SignIn error: %v", err)
	}

	// Stored expiry is honored: a matching but stale token is rejected.
	sessions.now = func() time.Time { return time.Now().Add(8 * 24 * time.Hour) }

	if _, err := svc.Refresh(context.Background(), first.AccessToken, first.RefreshToken); !errors.Is(err, session.ErrInvalidToken) {
		t.Errorf("expected ErrInvalidToken for expired refresh token, got %v", err)
	}
}

func TestSignOut(t *testing.T) {
	svc, _, sessions, _ := newTestService()
	mustRegister(t, svc, "alice@x.com", "Passw0rd!")

	first, err := svc.SignIn(context.Background(), "alice@x.com", "Passw0rd!")
	if err != nil {
		t.Fatalf("SignIn error: %v", err)
	}

	p := Principal{UserID: first.User.ID, Email: first.User.Email, Role: first.User.Role}
	if err := svc.SignOut(context.Background(), p); err != nil {
		t.Fatalf("SignOut error: %v", err)
	}
	if len(sessions.rows) != 0 {
		t.Error("expected refresh token deleted on sign-out")
	}
	if _, err := svc.Refresh(context.Background(), first.AccessToken, first.RefreshToken); !errors.Is(err, session.ErrInvalidToken) {
		t.Errorf("expected refresh to fail after sign-out, got %v", err)
	}
}

func mustRegister(t *testing.T, svc *Service, email, password string) {
	t.Helper()
	if _, err := svc.Register(context.Background(), RegisterInput{
		Email:           email,
		Password:        password,
		ConfirmPassword: password,
	}); err != nil {
		t.Fatalf("Register(%s) error: %v", email, err)
	}
}
