package session

import (
	"strings"
	"time"

	"golang.org/x/text/cases"
)

// Role is one of the four fixed authorization classes.
type Role string

const (
	RoleAdmin          Role = "admin"
	RoleProjectManager Role = "project_manager"
	RoleTeamLead       Role = "team_lead"
	RoleEmployee       Role = "employee"
)

var folder = cases.Fold()

// NormalizeRole canonicalises a role label for comparison: surrounding
// whitespace is dropped and the value is case folded.
func NormalizeRole(raw string) Role {
	return Role(folder.String(strings.TrimSpace(raw)))
}

// Equals compares two role labels under case/whitespace-insensitive rules.
func (r Role) Equals(other Role) bool {
	return NormalizeRole(string(r)) == NormalizeRole(string(other))
}

// Known reports whether the role is one of the four supported classes.
func (r Role) Known() bool {
	switch NormalizeRole(string(r)) {
	case RoleAdmin, RoleProjectManager, RoleTeamLead, RoleEmployee:
		return true
	}
	return false
}

// User is the authenticated identity as reported by the auth collaborator.
type User struct {
	ID       int64  `json:"id"`
	Email    string `json:"email"`
	FullName string `json:"full_name"`
	Role     Role   `json:"role"`
}

// Session pairs the auth token with the user record. Both are set and
// cleared together; no observable state holds one without the other.
type Session struct {
	ID        string
	Token     string
	User      *User
	CreatedAt time.Time
}

// IsAuthenticated derives the authorization state. It is computed on every
// call rather than cached so a background logout is visible immediately.
func (s Session) IsAuthenticated() bool {
	return s.Token != "" && s.User != nil
}

// HasRole reports whether the session user's role equals the argument under
// case/whitespace-insensitive comparison. Total: false without a user.
func (s Session) HasRole(role Role) bool {
	if s.User == nil {
		return false
	}
	return s.User.Role.Equals(role)
}
