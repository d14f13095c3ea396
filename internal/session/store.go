package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Store persists refresh tokens, one row per user.
type Store struct {
	pool *pgxpool.Pool
	ttl  time.Duration
	now  func() time.Time // injectable clock for testing
}

// NewStore creates a refresh token store. ttlDays is the refresh token
// lifetime in days.
func NewStore(pool *pgxpool.Pool, ttlDays int) *Store {
	return &Store{
		pool: pool,
		ttl:  time.Duration(ttlDays) * 24 * time.Hour,
		now:  time.Now,
	}
}

// IssueOrRotate generates a fresh opaque token for the user and upserts the
// single row keyed by user id. The unique constraint on user_id makes
// concurrent rotations last-write-wins rather than accumulating rows. The
// row is committed before the caller sets any cookie.
func (s *Store) IssueOrRotate(ctx context.Context, userID string) (string, *RefreshToken, error) {
	plaintext, err := NewToken()
	if err != nil {
		return "", nil, err
	}

	now := s.now().UTC()
	rt := &RefreshToken{}
	err = s.pool.QueryRow(ctx,
		`INSERT INTO refresh_tokens (id, user_id, token_hash, created_at, expires_at)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (user_id) DO UPDATE
		 SET token_hash = EXCLUDED.token_hash,
		     created_at = EXCLUDED.created_at,
		     expires_at = EXCLUDED.expires_at
		 RETURNING id, user_id, token_hash, created_at, expires_at`,
		uuid.NewString(), userID, HashToken(plaintext), now, now.Add(s.ttl),
	).Scan(&rt.ID, &rt.UserID, &rt.TokenHash, &rt.CreatedAt, &rt.ExpiresAt)
	if err != nil {
		return "", nil, fmt.Errorf("rotating refresh token: %w", err)
	}

	return plaintext, rt, nil
}

// Validate checks that the presented plaintext token matches the stored row
// for the user and has not expired. Expired tokens are rejected even though
// a row still exists.
func (s *Store) Validate(ctx context.Context, userID, plaintext string) error {
	var expiresAt time.Time
	err := s.pool.QueryRow(ctx,
		`SELECT expires_at FROM refresh_tokens
		 WHERE user_id = $1 AND token_hash = $2`,
		userID, HashToken(plaintext),
	).Scan(&expiresAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrInvalidToken
		}
		return fmt.Errorf("validating refresh token: %w", err)
	}
	if s.now().UTC().After(expiresAt) {
		return ErrInvalidToken
	}
	return nil
}

// DeleteByUser removes the user's refresh token, ending the session.
func (s *Store) DeleteByUser(ctx context.Context, userID string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM refresh_tokens WHERE user_id = $1`, userID)
	if err != nil {
		return fmt.Errorf("deleting refresh token: %w", err)
	}
	return nil
}

// CleanExpired deletes all refresh tokens past their expiry.
func (s *Store) CleanExpired(ctx context.Context) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM refresh_tokens WHERE expires_at < now()`)
	if err != nil {
		return 0, fmt.Errorf("cleaning expired refresh tokens: %w", err)
	}
	return tag.RowsAffected(), nil
}
