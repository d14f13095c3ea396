package user

import "time"

// Role values for a user's single primary role. Assigning a new role
// replaces the old one.
const (
	RoleAdmin      = "admin"
	RoleManager    = "manager"
	RoleMember     = "member"
	RoleUnassigned = "unassigned"
)

// ValidRole reports whether s is a known role string.
func ValidRole(s string) bool {
	switch s {
	case RoleAdmin, RoleManager, RoleMember, RoleUnassigned:
		return true
	}
	return false
}

// User represents a registered account.
type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	FullName     string    `json:"full_name"`
	Role         string    `json:"role"`
	CreatedAt    time.Time `json:"created_at"`
}

// Membership represents a user's membership in a team with a team-scoped role.
type Membership struct {
	TeamID    string    `json:"team_id"`
	TeamName  string    `json:"team_name"`
	UserID    string    `json:"user_id"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}

// Team is a named group that owns projects and memberships.
type Team struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// CreateUserInput holds the fields required to create a new user.
type CreateUserInput struct {
	Email    string
	Password string
	FullName string
	Role     string
}
