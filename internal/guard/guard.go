// Package guard decides whether navigation into a protected route is
// allowed given the current session. Guards are pure over the session
// snapshot plus per-route requirements; the only side effect is
// remembering the originally requested destination.
package guard

import (
	"github.com/rs/zerolog/log"

	"github.com/mlaakso/clusterdash/internal/auth"
	"github.com/mlaakso/clusterdash/internal/session"
)

// Requirement is the per-route access requirement.
type Requirement struct {
	Roles        []string
	Permissions  []string
	RequireAdmin bool
}

// Action is the guard's verdict.
type Action int

const (
	Allow Action = iota
	RedirectLogin
	RedirectForbidden
)

func (a Action) String() string {
	switch a {
	case Allow:
		return "Allow"
	case RedirectLogin:
		return "RedirectLogin"
	case RedirectForbidden:
		return "RedirectForbidden"
	default:
		return "Unknown"
	}
}

// Decision is the verdict plus the redirect target when denied.
type Decision struct {
	Action Action
	Target string
}

// Allowed is a convenience accessor.
func (d Decision) Allowed() bool { return d.Action == Allow }

// ReturnURLStore remembers the route to resume after login. The credential
// store satisfies this.
type ReturnURLStore interface {
	SaveReturnURL(url string) error
	TakeReturnURL() (string, error)
}

// Guard evaluates route requirements against the session.
type Guard struct {
	sessions  session.Viewer
	returnURL ReturnURLStore
	routes    auth.Routes

	// headless disables guarding during non-interactive rendering, where
	// there is no session to consult and blocking would stall static
	// output. The interactive guard re-evaluates once a real session
	// context exists.
	headless bool
}

// New creates a guard over the given session view.
func New(sessions session.Viewer, returnURL ReturnURLStore, routes auth.Routes) *Guard {
	if routes == (auth.Routes{}) {
		routes = auth.DefaultRoutes
	}
	return &Guard{sessions: sessions, returnURL: returnURL, routes: routes}
}

// NewHeadless creates a guard that always allows, for non-interactive
// rendering contexts.
func NewHeadless() *Guard {
	return &Guard{headless: true}
}

// Check evaluates access to route under req.
//
// Not authenticated: the requested route is remembered and the user is
// sent to login. Authenticated but missing a role, permission, or the
// admin flag: sent to the forbidden page instead of login, so an
// already-authenticated user is not pushed into a re-authentication loop.
func (g *Guard) Check(route string, req Requirement) Decision {
	if g.headless {
		return Decision{Action: Allow}
	}

	snap := g.sessions.Snapshot()
	if snap.Status != session.Authenticated {
		if g.returnURL != nil && route != "" {
			if err := g.returnURL.SaveReturnURL(route); err != nil {
				log.Warn().Err(err).Str("route", route).Msg("failed to remember return url")
			}
		}
		return Decision{Action: RedirectLogin, Target: g.routes.Login}
	}

	if !g.satisfies(snap.User, req) {
		log.Debug().Str("route", route).Msg("access denied by route requirement")
		return Decision{Action: RedirectForbidden, Target: g.routes.Forbidden}
	}
	return Decision{Action: Allow}
}

// ResumeTarget pops the remembered destination, falling back to the
// post-login landing route.
func (g *Guard) ResumeTarget() string {
	if g.returnURL != nil {
		if url, err := g.returnURL.TakeReturnURL(); err == nil && url != "" {
			return url
		}
	}
	return g.routes.PostLogin
}

func (g *Guard) satisfies(user *session.User, req Requirement) bool {
	if req.RequireAdmin || len(req.Roles) > 0 || len(req.Permissions) > 0 {
		if user == nil {
			return false
		}
	}
	if req.RequireAdmin && !user.IsAdmin() {
		return false
	}
	for _, role := range req.Roles {
		if !user.HasRole(role) {
			return false
		}
	}
	for _, perm := range req.Permissions {
		if !user.HasPermission(perm) {
			return false
		}
	}
	return true
}
