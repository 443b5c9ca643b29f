package auth

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/mlaakso/clusterdash/internal/credstore"
	"github.com/mlaakso/clusterdash/internal/session"
)

// Routes are the navigation targets the auth service and guards hand to the
// embedding UI layer.
type Routes struct {
	Login      string
	Callback   string
	Forbidden  string
	PostLogin  string
	PostLogout string
}

// DefaultRoutes match the dashboard's route surface.
var DefaultRoutes = Routes{
	Login:      "/auth/login",
	Callback:   "/auth/callback",
	Forbidden:  "/auth/forbidden",
	PostLogin:  "/",
	PostLogout: "/auth/login",
}

// ServiceOpts configures the auth service.
type ServiceOpts struct {
	Sessions *session.Store
	Creds    credstore.Store
	// Authenticator is the variant selected at startup: the mock for demo
	// deployments, the OIDC adapter otherwise.
	Authenticator Authenticator
	// DemoEmail/DemoPassword, when both set alongside an OIDC primary,
	// route logins that exactly match them to a mock authenticator. This
	// is a narrow routing rule for the advertised demo identity, not a
	// general capability switch.
	DemoEmail    string
	DemoPassword string
	Routes       Routes
	// Navigate is called with a route after logout. Navigation is owned by
	// the embedding UI; nil is fine.
	Navigate func(route string)
	// SyntheticLifetime is the expiry given to token sets re-issued for
	// provider-managed cookie sessions. Defaults to one hour.
	SyntheticLifetime time.Duration
}

// Service owns login, logout, callback handling, and refresh. It is the
// only writer of the session store and the credential store; everything
// else reads the session through its Viewer.
type Service struct {
	sessions *session.Store
	creds    credstore.Store
	authn    Authenticator
	demo     *MockAuthenticator
	opts     ServiceOpts

	// gen guards against stale completions: a second login issued while
	// one is pending supersedes it, and only the most recent generation
	// may commit its result.
	mu  sync.Mutex
	gen uint64
}

// NewService wires the auth service.
func NewService(opts ServiceOpts) *Service {
	if opts.Routes == (Routes{}) {
		opts.Routes = DefaultRoutes
	}
	if opts.SyntheticLifetime <= 0 {
		opts.SyntheticLifetime = time.Hour
	}
	s := &Service{
		sessions: opts.Sessions,
		creds:    opts.Creds,
		authn:    opts.Authenticator,
		opts:     opts,
	}
	if opts.DemoEmail != "" && opts.DemoPassword != "" {
		if _, isMock := opts.Authenticator.(*MockAuthenticator); !isMock {
			s.demo = NewMockAuthenticator(nil)
		}
	}
	return s
}

// Sessions returns the read-only session view for gateways and guards.
func (s *Service) Sessions() session.Viewer {
	return s.sessions
}

// Routes returns the configured route surface.
func (s *Service) Routes() Routes {
	return s.opts.Routes
}

func (s *Service) nextGen() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gen++
	return s.gen
}

func (s *Service) isCurrent(gen uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gen == gen
}

// pickAuthenticator returns the mock for an exact demo credential match,
// the primary authenticator otherwise.
func (s *Service) pickAuthenticator(email, password string) Authenticator {
	if s.demo != nil && email == s.opts.DemoEmail && password == s.opts.DemoPassword {
		return s.demo
	}
	return s.authn
}

// Login exchanges credentials for a session. On success the session is
// Authenticated and the credentials are persisted; on failure the session
// is in Error and previously stored credentials are untouched.
func (s *Service) Login(ctx context.Context, email, password string) error {
	gen := s.nextGen()
	s.sessions.SetAuthenticating()

	tokens, user, err := s.pickAuthenticator(email, password).Login(ctx, email, password)

	if !s.isCurrent(gen) {
		log.Debug().Str("email", email).Msg("discarding superseded login result")
		return NewError(KindUnknown, "superseded", "login superseded by a newer operation")
	}
	if err != nil {
		ae := AsAuthError(err)
		s.sessions.SetError(ae)
		log.Warn().Str("email", email).Str("kind", ae.Kind.String()).Msg("login failed")
		return ae
	}

	s.sessions.SetAuthenticated(user, tokens)
	if err := s.creds.SaveSession(tokens, user); err != nil {
		log.Warn().Err(err).Msg("failed to persist session")
	}
	log.Info().Str("email", email).Msg("login succeeded")
	return nil
}

// HandleCallback completes a redirect-based provider flow. Presence of the
// provider session cookie is the success signal; the profile is fetched
// lazily via EnsureProfile.
func (s *Service) HandleCallback(ctx context.Context) error {
	cs, ok := s.authn.(CookieSession)
	if !ok || !cs.HasSessionCookie() {
		ae := NewError(KindProviderError, "no_session_cookie",
			"Sign-in did not complete, please try again")
		s.sessions.SetError(ae)
		return ae
	}

	tokens := s.syntheticTokens(nil)
	s.sessions.SetAuthenticated(nil, tokens)
	if err := s.creds.SaveSession(tokens, nil); err != nil {
		log.Warn().Err(err).Msg("failed to persist session")
	}
	log.Info().Msg("provider callback accepted via session cookie")
	return nil
}

// Refresh replaces the current token set. A failed refresh leaves the
// session in Error; invoking Logout afterwards is the caller's
// responsibility (the request gateway does exactly that).
func (s *Service) Refresh(ctx context.Context) error {
	gen := s.nextGen()
	current := s.sessions.Tokens()
	s.sessions.SetRefreshing()

	// Provider-managed sessions carry no local refresh token; the cookie's
	// continued presence is the refresh signal.
	if current == nil || current.RefreshToken == "" {
		if cs, ok := s.authn.(CookieSession); ok && cs.HasSessionCookie() {
			tokens := s.syntheticTokens(current)
			if !s.isCurrent(gen) {
				return NewError(KindUnknown, "superseded", "refresh superseded by a newer operation")
			}
			s.sessions.SetAuthenticated(s.sessions.User(), tokens)
			if err := s.creds.SaveSession(tokens, s.sessions.User()); err != nil {
				log.Warn().Err(err).Msg("failed to persist session")
			}
			return nil
		}
		ae := NewError(KindTokenExpired, "no_refresh_token",
			"Session has expired, please sign in again")
		s.sessions.SetError(ae)
		return ae
	}

	tokens, err := s.authn.Refresh(ctx, current.RefreshToken)

	if !s.isCurrent(gen) {
		log.Debug().Msg("discarding superseded refresh result")
		return NewError(KindUnknown, "superseded", "refresh superseded by a newer operation")
	}
	if err != nil {
		ae := AsAuthError(err)
		s.sessions.SetError(ae)
		log.Warn().Str("kind", ae.Kind.String()).Msg("token refresh failed")
		return ae
	}

	s.sessions.SetAuthenticated(s.sessions.User(), tokens)
	if err := s.creds.SaveSession(tokens, s.sessions.User()); err != nil {
		log.Warn().Err(err).Msg("failed to persist session")
	}
	log.Debug().Time("expiresAt", tokens.ExpiresAt).Msg("token refresh succeeded")
	return nil
}

// Logout clears the credential store, resets the session, clears the
// provider cookie if present, and navigates to the post-logout route. It
// always succeeds from the caller's perspective.
func (s *Service) Logout(ctx context.Context) {
	s.nextGen() // supersede any pending login/refresh

	if err := s.creds.Clear(); err != nil {
		log.Warn().Err(err).Msg("failed to clear credential store on logout")
	}
	if cs, ok := s.authn.(CookieSession); ok {
		cs.ClearSessionCookie()
	}
	s.sessions.Reset()
	if s.opts.Navigate != nil {
		s.opts.Navigate(s.opts.Routes.PostLogout)
	}
	log.Info().Msg("logged out")
}

// RestoreSession resumes a persisted session at startup. Expired tokens
// with a refresh credential trigger one silent refresh; an unrecoverable
// session is cleared.
func (s *Service) RestoreSession(ctx context.Context) {
	tokens, err := s.creds.LoadTokens()
	if err != nil {
		log.Warn().Err(err).Msg("failed to load persisted tokens")
		return
	}
	if tokens == nil {
		return
	}
	// Tokens without a user row are recoverable: the profile is refetched
	// lazily, same as after a cookie callback.
	user, err := s.creds.LoadUser()
	if err != nil {
		log.Warn().Err(err).Msg("failed to load persisted user")
	}

	if !tokens.IsExpired() {
		s.sessions.SetAuthenticated(user, tokens)
		log.Info().Time("expiresAt", tokens.ExpiresAt).Msg("session restored from storage")
		return
	}
	if tokens.RefreshToken == "" {
		log.Info().Msg("persisted session expired and not refreshable")
		if err := s.creds.Clear(); err != nil {
			log.Warn().Err(err).Msg("failed to clear stale credentials")
		}
		return
	}

	s.sessions.SetAuthenticated(user, tokens)
	if err := s.Refresh(ctx); err != nil {
		log.Info().Msg("silent session restore failed, clearing session")
		s.Logout(ctx)
	}
}

// EnsureProfile fetches the user profile when a provider-managed session
// was established without one.
func (s *Service) EnsureProfile(ctx context.Context) (*session.User, error) {
	if u := s.sessions.User(); u != nil {
		return u, nil
	}
	tokens := s.sessions.Tokens()
	if tokens == nil {
		return nil, NewError(KindUnauthorized, "not_authenticated", "not authenticated")
	}
	user, err := s.authn.Profile(ctx, tokens.AccessToken)
	if err != nil {
		return nil, AsAuthError(err)
	}
	s.sessions.SetUser(user)
	if err := s.creds.SaveSession(tokens, user); err != nil {
		log.Warn().Err(err).Msg("failed to persist profile")
	}
	return user, nil
}

// syntheticTokens re-issues the current token set with a fresh expiry for
// cookie-managed sessions.
func (s *Service) syntheticTokens(current *session.TokenSet) *session.TokenSet {
	tokens := &session.TokenSet{ExpiresAt: time.Now().Add(s.opts.SyntheticLifetime)}
	if current != nil {
		tokens.AccessToken = current.AccessToken
		tokens.IDToken = current.IDToken
	}
	if tokens.AccessToken == "" {
		tokens.AccessToken = "cookie-session"
	}
	return tokens
}
