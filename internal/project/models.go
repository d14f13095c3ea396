// Package project holds the tracking domain: projects owned by teams and
// the bugs filed against them.
package project

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	ErrNotFound     = errors.New("project: not found")
	ErrInvalidInput = errors.New("project: invalid input")
)

// Bug statuses.
const (
	BugOpen       = "open"
	BugInProgress = "in_progress"
	BugResolved   = "resolved"
	BugClosed     = "closed"
)

// Bug severities.
const (
	SeverityLow      = "low"
	SeverityMedium   = "medium"
	SeverityHigh     = "high"
	SeverityCritical = "critical"
)

// Project is a unit of work owned by a team.
type Project struct {
	ID          string    `json:"id"`
	TeamID      string    `json:"team_id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	CreatedBy   string    `json:"created_by"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Bug is a defect report filed against a project.
type Bug struct {
	ID          string    `json:"id"`
	ProjectID   string    `json:"project_id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Status      string    `json:"status"`
	Severity    string    `json:"severity"`
	ReportedBy  string    `json:"reported_by"`
	AssignedTo  *string   `json:"assigned_to,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// CreateProjectInput is the validated input for creating a project.
type CreateProjectInput struct {
	TeamID      string `json:"team_id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// Validate checks required fields and length limits.
func (in *CreateProjectInput) Validate() error {
	in.Name = strings.TrimSpace(in.Name)
	if in.TeamID == "" {
		return fmt.Errorf("%w: team_id is required", ErrInvalidInput)
	}
	if in.Name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidInput)
	}
	if len(in.Name) > 200 {
		return fmt.Errorf("%w: name exceeds 200 characters", ErrInvalidInput)
	}
	if len(in.Description) > 4000 {
		return fmt.Errorf("%w: description exceeds 4000 characters", ErrInvalidInput)
	}
	return nil
}

// CreateBugInput is the validated input for filing a bug.
type CreateBugInput struct {
	ProjectID   string `json:"project_id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Severity    string `json:"severity"`
}

// Validate checks required fields and normalizes the severity.
func (in *CreateBugInput) Validate() error {
	in.Title = strings.TrimSpace(in.Title)
	if in.ProjectID == "" {
		return fmt.Errorf("%w: project_id is required", ErrInvalidInput)
	}
	if in.Title == "" {
		return fmt.Errorf("%w: title is required", ErrInvalidInput)
	}
	if len(in.Title) > 200 {
		return fmt.Errorf("%w: title exceeds 200 characters", ErrInvalidInput)
	}
	if len(in.Description) > 8000 {
		return fmt.Errorf("%w: description exceeds 8000 characters", ErrInvalidInput)
	}
	if in.Severity == "" {
		in.Severity = SeverityMedium
	}
	if !ValidSeverity(in.Severity) {
		return fmt.Errorf("%w: unknown severity %q", ErrInvalidInput, in.Severity)
	}
	return nil
}

// UpdateBugInput carries a partial bug update; nil fields are untouched.
type UpdateBugInput struct {
	Title       *string `json:"title,omitempty"`
	Description *string `json:"description,omitempty"`
	Status      *string `json:"status,omitempty"`
	Severity    *string `json:"severity,omitempty"`
	AssignedTo  *string `json:"assigned_to,omitempty"`
}

// Validate checks any fields that are present.
func (in *UpdateBugInput) Validate() error {
	if in.Title != nil {
		t := strings.TrimSpace(*in.Title)
		if t == "" {
			return fmt.Errorf("%w: title cannot be empty", ErrInvalidInput)
		}
		if len(t) > 200 {
			return fmt.Errorf("%w: title exceeds 200 characters", ErrInvalidInput)
		}
		in.Title = &t
	}
	if in.Status != nil && !ValidBugStatus(*in.Status) {
		return fmt.Errorf("%w: unknown status %q", ErrInvalidInput, *in.Status)
	}
	if in.Severity != nil && !ValidSeverity(*in.Severity) {
		return fmt.Errorf("%w: unknown severity %q", ErrInvalidInput, *in.Severity)
	}
	return nil
}

// ValidBugStatus reports whether s is a known bug status.
func ValidBugStatus(s string) bool {
	switch s {
	case BugOpen, BugInProgress, BugResolved, BugClosed:
		return true
	}
	return false
}

// ValidSeverity reports whether s is a known severity.
func ValidSeverity(s string) bool {
	switch s {
	case SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical:
		return true
	}
	return false
}
