package project

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Store provides database operations for projects and bugs.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore creates a new project store backed by the given connection pool.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

const projectColumns = `id, team_id, name, description, created_by, created_at, updated_at`

func scanProject(scan func(dest ...any) error) (*Project, error) {
	p := &Project{}
	err := scan(&p.ID, &p.TeamID, &p.Name, &p.Description, &p.CreatedBy, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return p, nil
}

const bugColumns = `id, project_id, title, description, status, severity, reported_by, assigned_to, created_at, updated_at`

func scanBug(scan func(dest ...any) error) (*Bug, error) {
	b := &Bug{}
	err := scan(&b.ID, &b.ProjectID, &b.Title, &b.Description, &b.Status, &b.Severity, &b.ReportedBy, &b.AssignedTo, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return b, nil
}

// CreateProject inserts a new project for a team.
func (s *Store) CreateProject(ctx context.Context, in CreateProjectInput, createdBy string) (*Project, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	p, err := scanProject(func(dest ...any) error {
		return s.pool.QueryRow(ctx,
			`INSERT INTO projects (id, team_id, name, description, created_by)
			 VALUES ($1, $2, $3, $4, $5)
			 RETURNING `+projectColumns,
			uuid.NewString(), in.TeamID, in.Name, in.Description, createdBy,
		).Scan(dest...)
	})
	if err != nil {
		return nil, fmt.Errorf("creating project: %w", err)
	}
	return p, nil
}

// GetProject retrieves a project by id.
func (s *Store) GetProject(ctx context.Context, id string) (*Project, error) {
	p, err := scanProject(func(dest ...any) error {
		return s.pool.QueryRow(ctx,
			`SELECT `+projectColumns+` FROM projects WHERE id = $1`, id,
		).Scan(dest...)
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("getting project: %w", err)
	}
	return p, nil
}

// ListProjects returns projects, optionally filtered by team.
func (s *Store) ListProjects(ctx context.Context, teamID string) ([]*Project, error) {
	query := `SELECT ` + projectColumns + ` FROM projects ORDER BY created_at DESC`
	args := []any{}
	if teamID != "" {
		query = `SELECT ` + projectColumns + ` FROM projects WHERE team_id = $1 ORDER BY created_at DESC`
		args = append(args, teamID)
	}
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing projects: %w", err)
	}
	defer rows.Close()

	var projects []*Project
	for rows.Next() {
		p, err := scanProject(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scanning project row: %w", err)
		}
		projects = append(projects, p)
	}
	return projects, rows.Err()
}

// UpdateProject updates a project's name and description.
func (s *Store) UpdateProject(ctx context.Context, id, name, description string) (*Project, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: name is required", ErrInvalidInput)
	}
	if len(name) > 200 {
		return nil, fmt.Errorf("%w: name exceeds 200 characters", ErrInvalidInput)
	}
	p, err := scanProject(func(dest ...any) error {
		return s.pool.QueryRow(ctx,
			`UPDATE projects SET name = $2, description = $3, updated_at = now()
			 WHERE id = $1
			 RETURNING `+projectColumns,
			id, name, description,
		).Scan(dest...)
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("updating project: %w", err)
	}
	return p, nil
}

// DeleteProject removes a project and, via FK cascade, its bugs.
func (s *Store) DeleteProject(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM projects WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("deleting project: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// CreateBug files a new bug against a project. Status starts open.
func (s *Store) CreateBug(ctx context.Context, in CreateBugInput, reportedBy string) (*Bug, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	b, err := scanBug(func(dest ...any) error {
		return s.pool.QueryRow(ctx,
			`INSERT INTO bugs (id, project_id, title, description, status, severity, reported_by)
			 VALUES ($1, $2, $3, $4, $5, $6, $7)
			 RETURNING `+bugColumns,
			uuid.NewString(), in.ProjectID, in.Title, in.Description, BugOpen, in.Severity, reportedBy,
		).Scan(dest...)
	})
	if err != nil {
		return nil, fmt.Errorf("creating bug: %w", err)
	}
	return b, nil
}

// GetBug retrieves a bug by id.
func (s *Store) GetBug(ctx context.Context, id string) (*Bug, error) {
	b, err := scanBug(func(dest ...any) error {
		return s.pool.QueryRow(ctx,
			`SELECT `+bugColumns+` FROM bugs WHERE id = $1`, id,
		).Scan(dest...)
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("getting bug: %w", err)
	}
	return b, nil
}

// ListBugs returns a project's bugs, optionally filtered by status.
func (s *Store) ListBugs(ctx context.Context, projectID, status string) ([]*Bug, error) {
	query := `SELECT ` + bugColumns + ` FROM bugs WHERE project_id = $1 ORDER BY created_at DESC`
	args := []any{projectID}
	if status != "" {
		if !ValidBugStatus(status) {
			return nil, fmt.Errorf("%w: unknown status %q", ErrInvalidInput, status)
		}
		query = `SELECT ` + bugColumns + ` FROM bugs WHERE project_id = $1 AND status = $2 ORDER BY created_at DESC`
		args = append(args, status)
	}
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing bugs: %w", err)
	}
	defer rows.Close()

	var bugs []*Bug
	for rows.Next() {
		b, err := scanBug(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scanning bug row: %w", err)
		}
		bugs = append(bugs, b)
	}
	return bugs, rows.Err()
}

// UpdateBug applies a partial update; only non-nil fields change.
func (s *Store) UpdateBug(ctx context.Context, id string, in UpdateBugInput) (*Bug, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	b, err := scanBug(func(dest ...any) error {
		return s.pool.QueryRow(ctx,
			`UPDATE bugs SET
			   title       = COALESCE($2, title),
			   description = COALESCE($3, description),
			   status      = COALESCE($4, status),
			   severity    = COALESCE($5, severity),
			   assigned_to = COALESCE($6, assigned_to),
			   updated_at  = now()
			 WHERE id = $1
			 RETURNING `+bugColumns,
			id, in.Title, in.Description, in.Status, in.Severity, in.AssignedTo,
		).Scan(dest...)
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("updating bug: %w", err)
	}
	return b, nil
}

// DeleteBug removes a bug.
func (s *Store) DeleteBug(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM bugs WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("deleting bug: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// CountOpenBugs returns the number of open bugs per project for a team.
func (s *Store) CountOpenBugs(ctx context.Context, teamID string) (map[string]int, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT b.project_id, count(*)
		 FROM bugs b JOIN projects p ON p.id = b.project_id
		 WHERE p.team_id = $1 AND b.status IN ($2, $3)
		 GROUP BY b.project_id`,
		teamID, BugOpen, BugInProgress)
	if err != nil {
		return nil, fmt.Errorf("counting open bugs: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var projectID string
		var n int
		if err := rows.Scan(&projectID, &n); err != nil {
			return nil, fmt.Errorf("scanning bug count: %w", err)
		}
		counts[projectID] = n
	}
	return counts, rows.Err()
}
