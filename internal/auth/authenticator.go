package auth

import (
	"context"

	"github.com/mlaakso/clusterdash/internal/session"
)

// Authenticator exchanges credentials for tokens. Two variants exist: the
// in-memory mock for demos and tests, and the OIDC adapter for a real
// provider. The variant is chosen once at startup by configuration, never
// per call.
type Authenticator interface {
	// Login exchanges email/password for a token set and the user profile.
	// Failures resolve to *AuthError, never a raw transport error.
	Login(ctx context.Context, email, password string) (*session.TokenSet, *session.User, error)

	// Refresh exchanges a refresh token for a new token set.
	Refresh(ctx context.Context, refreshToken string) (*session.TokenSet, error)

	// Profile fetches the user profile for an access token. Used for lazy
	// profile loads after a cookie-based callback.
	Profile(ctx context.Context, accessToken string) (*session.User, error)
}

// CookieSession is implemented by authenticators whose provider manages the
// session through an HTTP-only cookie set by its reverse-proxy companion.
// The cookie's presence alone is evidence of a live session.
type CookieSession interface {
	// HasSessionCookie reports whether the provider session cookie is present.
	HasSessionCookie() bool

	// ClearSessionCookie expires the cookie. Best effort; never fails.
	ClearSessionCookie()
}
