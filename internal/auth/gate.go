// ABOUTME: The single authenticated/anonymous permission check guarding mutations
// ABOUTME: RequireAuthenticated for normal deployments, AllowAll for auth.mode disabled

package auth

import "github.com/2389/folio/internal/session"

// DeniedMessage is shown to anonymous visitors who reach a protected page.
const DeniedMessage = "You must be signed in to do that."

// DeniedRedirect is where denied visitors are sent.
const DeniedRedirect = "/"

// Decision is the outcome of a gate check.
type Decision struct {
	Allowed  bool
	Message  string // set when denied
	Redirect string // set when denied
}

// Gate decides whether a session may perform a protected operation.
// Implementations must not have side effects.
type Gate interface {
	Check(s *session.Session) Decision
}

// RequireAuthenticated allows signed-in sessions only.
type RequireAuthenticated struct{}

// Check implements Gate.
func (RequireAuthenticated) Check(s *session.Session) Decision {
	if s != nil {
		if _, ok := s.CurrentUser(); ok {
			return Decision{Allowed: true}
		}
	}
	return Decision{Message: DeniedMessage, Redirect: DeniedRedirect}
}

// AllowAll lets every session through.
type AllowAll struct{}

// Check implements Gate.
func (AllowAll) Check(*session.Session) Decision {
	return Decision{Allowed: true}
}

// GateForMode maps the auth.mode setting onto a Gate.
func GateForMode(mode string) Gate {
	if mode == "disabled" {
		return AllowAll{}
	}
	return RequireAuthenticated{}
}
