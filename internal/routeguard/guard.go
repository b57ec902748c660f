// Package routeguard gates protected routes on the hydrated session. Each
// request resolves to exactly one of: serve, redirect to login carrying the
// original path, or redirect to the user's own dashboard. A role mismatch is
// never sent to login — that would disguise a wrong destination as an auth
// failure — and the redirect target is always a route the same role is
// authorized for, so redirects cannot loop.
package routeguard

import (
	"net/http"
	"net/url"

	"github.com/crewboard/crewboard/internal/rolepolicy"
	"github.com/crewboard/crewboard/internal/session"
)

// LoginPath is where unauthenticated requests are sent.
const LoginPath = "/auth/login"

// Outcome identifies the gate result.
type Outcome int

const (
	// OutcomeServe renders the protected resource.
	OutcomeServe Outcome = iota
	// OutcomeLogin redirects to the login route with a return path.
	OutcomeLogin
	// OutcomeDashboard redirects to the session user's default dashboard.
	OutcomeDashboard
)

// Decision is the resolved gate state for one request.
type Decision struct {
	Outcome  Outcome
	Location string
}

// Decide evaluates the gate for a session against an optionally required
// role. requestPath is captured as the post-login return destination.
func Decide(sess session.Session, required session.Role, requestPath string) Decision {
	if !sess.IsAuthenticated() {
		loc := LoginPath
		if requestPath != "" {
			loc += "?next=" + url.QueryEscape(requestPath)
		}
		return Decision{Outcome: OutcomeLogin, Location: loc}
	}
	if required == "" || sess.HasRole(required) {
		return Decision{Outcome: OutcomeServe}
	}
	return Decision{Outcome: OutcomeDashboard, Location: rolepolicy.DashboardRoute(sess.User.Role)}
}

// Require builds middleware enforcing the given role.
func Require(role session.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			decision := Decide(session.FromContext(r.Context()), role, r.URL.RequestURI())
			if decision.Outcome == OutcomeServe {
				next.ServeHTTP(w, r)
				return
			}
			http.Redirect(w, r, decision.Location, http.StatusSeeOther)
		})
	}
}

// RequireAuthenticated builds middleware that only checks authentication.
func RequireAuthenticated() func(http.Handler) http.Handler {
	return Require("")
}
