package auth

import (
	"fmt"
	"time"
)

// Role is the account role carried in the session claim.
type Role string

const (
	RoleDoctor  Role = "doctor"
	RolePatient Role = "patient"
)

// ParseRole accepts "doctor" or "patient". An empty string defaults to patient.
func ParseRole(s string) (Role, error) {
	switch Role(s) {
	case "":
		return RolePatient, nil
	case RoleDoctor, RolePatient:
		return Role(s), nil
	}
	return "", fmt.Errorf("invalid role: %s", s)
}

// Dashboard returns the landing page for the role.
func (r Role) Dashboard() string {
	if r == RoleDoctor {
		return DoctorDashboardPath
	}
	return PatientDashboardPath
}

// SessionState is the resolution state of the caller's session.
type SessionState int

const (
	// SessionUnresolved means the session could not be checked yet, for
	// example because the revocation store did not answer in time.
	SessionUnresolved SessionState = iota
	SessionAuthenticated
	SessionUnauthenticated
)

func (s SessionState) String() string {
	switch s {
	case SessionAuthenticated:
		return "authenticated"
	case SessionUnauthenticated:
		return "unauthenticated"
	default:
		return "unresolved"
	}
}

// Session is the resolved identity of the current caller.
type Session struct {
	State     SessionState `json:"-"`
	AccountID string       `json:"account_id,omitempty"`
	Email     string       `json:"email,omitempty"`
	Role      Role         `json:"role,omitempty"`
	TokenID   string       `json:"-"`
	ExpiresAt time.Time    `json:"expires_at,omitempty"`
}

func Unresolved() Session      { return Session{State: SessionUnresolved} }
func Unauthenticated() Session { return Session{State: SessionUnauthenticated} }

// Authenticated builds a session from verified token claims.
func Authenticated(c *Claims) Session {
	s := Session{
		State:     SessionAuthenticated,
		AccountID: c.Subject,
		Email:     c.Email,
		Role:      c.Role,
		TokenID:   c.ID,
	}
	if c.ExpiresAt != nil {
		s.ExpiresAt = c.ExpiresAt.Time
	}
	return s
}

func (s Session) IsAuthenticated() bool { return s.State == SessionAuthenticated }
