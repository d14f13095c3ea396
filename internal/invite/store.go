package invite

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lukeharris/trackd/internal/user"
)

// Store persists invitations and performs the transactional redemption.
type Store struct {
	pool *pgxpool.Pool
	now  func() time.Time // injectable clock for testing
}

// NewStore creates an invitation store backed by the given pool.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool, now: time.Now}
}

const invitationColumns = `id, invited_email, team_id, role, status, created_by, created_at, expires_at`

func scanInvitation(scan func(dest ...any) error) (*Invitation, error) {
	inv := &Invitation{}
	err := scan(&inv.ID, &inv.InvitedEmail, &inv.TeamID, &inv.Role, &inv.Status,
		&inv.CreatedBy, &inv.CreatedAt, &inv.ExpiresAt)
	if err != nil {
		return nil, err
	}
	return inv, nil
}

// Create persists a pending invitation.
func (s *Store) Create(ctx context.Context, invitedEmail, teamID, role, createdBy string, expiresAt time.Time) (*Invitation, error) {
	inv, err := scanInvitation(func(dest ...any) error {
		return s.pool.QueryRow(ctx,
			`INSERT INTO invitations (id, invited_email, team_id, role, status, created_by, expires_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7)
			 RETURNING `+invitationColumns,
			uuid.NewString(), user.NormalizeEmail(invitedEmail), teamID, role,
			StatusPending, createdBy, expiresAt,
		).Scan(dest...)
	})
	if err != nil {
		return nil, fmt.Errorf("creating invitation: %w", err)
	}
	return inv, nil
}

// GetByID retrieves an invitation.
func (s *Store) GetByID(ctx context.Context, id string) (*Invitation, error) {
	inv, err := scanInvitation(func(dest ...any) error {
		return s.pool.QueryRow(ctx,
			`SELECT `+invitationColumns+` FROM invitations WHERE id = $1`, id,
		).Scan(dest...)
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("getting invitation: %w", err)
	}
	return inv, nil
}

// ListByTeam returns a team's invitations, newest first.
func (s *Store) ListByTeam(ctx context.Context, teamID string) ([]*Invitation, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+invitationColumns+` FROM invitations
		 WHERE team_id = $1 ORDER BY created_at DESC`, teamID)
	if err != nil {
		return nil, fmt.Errorf("listing invitations: %w", err)
	}
	defer rows.Close()

	var invs []*Invitation
	for rows.Next() {
		inv, err := scanInvitation(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scanning invitation row: %w", err)
		}
		invs = append(invs, inv)
	}
	return invs, rows.Err()
}

// Redeem atomically marks a pending invitation accepted and grants the team
// membership (and primary role, when the user is still unassigned) to the
// given user. The row lock serializes concurrent redemptions: the second
// caller observes the accepted status and fails without a second grant.
// An invitation found pending but past expiry is flipped to expired and
// reported as such.
func (s *Store) Redeem(ctx context.Context, id string, u *user.User) (*GrantResult, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("beginning redeem tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	inv, err := scanInvitation(func(dest ...any) error {
		return tx.QueryRow(ctx,
			`SELECT `+invitationColumns+` FROM invitations WHERE id = $1 FOR UPDATE`, id,
		).Scan(dest...)
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("locking invitation: %w", err)
	}

	switch inv.Status {
	case StatusAccepted:
		return nil, ErrAlreadyUsed
	case StatusRevoked:
		return nil, ErrRevoked
	case StatusExpired:
		return nil, ErrExpired
	}

	if s.now().UTC().After(inv.ExpiresAt) {
		// Expired-on-read: record the transition even though the redeem fails.
		if _, err := tx.Exec(ctx,
			`UPDATE invitations SET status = $2 WHERE id = $1`, id, StatusExpired); err != nil {
			return nil, fmt.Errorf("expiring invitation: %w", err)
		}
		if err := tx.Commit(ctx); err != nil {
			return nil, fmt.Errorf("committing expiry: %w", err)
		}
		return nil, ErrExpired
	}

	if user.NormalizeEmail(u.Email) != inv.InvitedEmail {
		return nil, ErrEmailMismatch
	}

	if _, err := tx.Exec(ctx,
		`UPDATE invitations SET status = $2 WHERE id = $1`, id, StatusAccepted); err != nil {
		return nil, fmt.Errorf("accepting invitation: %w", err)
	}

	if _, err := tx.Exec(ctx,
		`INSERT INTO team_members (team_id, user_id, role) VALUES ($1, $2, $3)
		 ON CONFLICT (team_id, user_id) DO UPDATE SET role = EXCLUDED.role`,
		inv.TeamID, u.ID, inv.Role); err != nil {
		return nil, fmt.Errorf("granting membership: %w", err)
	}

	// First membership also assigns the primary role; an established role
	// is replaced only by an explicit admin update.
	if u.Role == user.RoleUnassigned {
		if _, err := tx.Exec(ctx,
			`UPDATE users SET role = $2 WHERE id = $1 AND role = $3`,
			u.ID, inv.Role, user.RoleUnassigned); err != nil {
			return nil, fmt.Errorf("assigning primary role: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("committing redeem: %w", err)
	}

	inv.Status = StatusAccepted
	return &GrantResult{
		Invitation: inv,
		TeamID:     inv.TeamID,
		UserID:     u.ID,
		Role:       inv.Role,
	}, nil
}

// Revoke marks a pending invitation revoked.
func (s *Store) Revoke(ctx context.Context, id string) (*Invitation, error) {
	inv, err := scanInvitation(func(dest ...any) error {
		return s.pool.QueryRow(ctx,
			`UPDATE invitations SET status = $2 WHERE id = $1 AND status = $3
			 RETURNING `+invitationColumns,
			id, StatusRevoked, StatusPending,
		).Scan(dest...)
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// Distinguish a missing invitation from one in a terminal state.
			existing, getErr := s.GetByID(ctx, id)
			if getErr != nil {
				return nil, getErr
			}
			switch existing.Status {
			case StatusAccepted:
				return nil, ErrAlreadyUsed
			case StatusRevoked:
				return nil, ErrRevoked
			default:
				return nil, ErrExpired
			}
		}
		return nil, fmt.Errorf("revoking invitation: %w", err)
	}
	return inv, nil
}
