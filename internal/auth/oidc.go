package auth

import (
	"context"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog/log"

	"github.com/mlaakso/clusterdash/internal/session"
)

// OIDCOpts configures the real authenticator adapter.
type OIDCOpts struct {
	// ProviderURL is the identity provider base URL.
	ProviderURL string
	// ClientID sent with every token request.
	ClientID string
	// Scope requested at login. Defaults to "openid profile email".
	Scope string
	// SessionCookieName is the cookie set by the provider's reverse-proxy
	// companion. Empty when the deployment does not use cookie sessions.
	SessionCookieName string
}

// OIDCAuthenticator talks to an OIDC-compatible provider's token endpoint
// and produces the same token shape as the mock authenticator. The
// provider's protocol internals are a black box: only the token endpoint,
// the userinfo endpoint, and the session cookie contract are relied on.
type OIDCAuthenticator struct {
	httpClient *resty.Client
	jar        http.CookieJar
	opts       OIDCOpts
}

var (
	_ Authenticator = (*OIDCAuthenticator)(nil)
	_ CookieSession = (*OIDCAuthenticator)(nil)
)

// NewOIDCAuthenticator creates the adapter. The cookie jar holds the
// provider session cookie across the redirect round-trip.
func NewOIDCAuthenticator(opts OIDCOpts) (*OIDCAuthenticator, error) {
	if opts.ProviderURL == "" {
		return nil, fmt.Errorf("provider URL is required")
	}
	if opts.Scope == "" {
		opts.Scope = "openid profile email"
	}
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create cookie jar: %w", err)
	}
	client := resty.New().
		SetBaseURL(opts.ProviderURL).
		SetCookieJar(jar).
		SetHeader("Accept", "application/json")
	return &OIDCAuthenticator{httpClient: client, jar: jar, opts: opts}, nil
}

// tokenResponse is the provider's token endpoint payload.
type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	IDToken      string `json:"id_token"`
	ExpiresIn    int    `json:"expires_in"`
	ErrorCode    string `json:"error"`
	ErrorDesc    string `json:"error_description"`
}

func (r *tokenResponse) toTokenSet() *session.TokenSet {
	expiresIn := r.ExpiresIn
	if expiresIn <= 0 {
		expiresIn = 3600
	}
	return &session.TokenSet{
		AccessToken:  r.AccessToken,
		RefreshToken: r.RefreshToken,
		IDToken:      r.IDToken,
		ExpiresAt:    time.Now().Add(time.Duration(expiresIn) * time.Second),
	}
}

// Login exchanges credentials at the token endpoint with the password grant.
func (a *OIDCAuthenticator) Login(ctx context.Context, email, password string) (*session.TokenSet, *session.User, error) {
	result := &tokenResponse{}
	resp, err := a.httpClient.R().
		SetContext(ctx).
		SetFormData(map[string]string{
			"grant_type": "password",
			"username":   email,
			"password":   password,
			"client_id":  a.opts.ClientID,
			"scope":      a.opts.Scope,
		}).
		SetResult(result).
		SetError(result).
		Post("/oauth/token")
	if err != nil {
		return nil, nil, WrapError(KindNetwork, "token_endpoint_unreachable", "Could not reach the identity provider", err)
	}
	if resp.IsError() {
		return nil, nil, tokenEndpointError(resp, result)
	}

	tokens := result.toTokenSet()
	user, err := a.Profile(ctx, tokens.AccessToken)
	if err != nil {
		// Token exchange succeeded; profile is recoverable later.
		log.Warn().Err(err).Msg("profile fetch after login failed, continuing without user")
		user = nil
	}
	return tokens, user, nil
}

// Refresh exchanges the refresh token for a new token set.
func (a *OIDCAuthenticator) Refresh(ctx context.Context, refreshToken string) (*session.TokenSet, error) {
	result := &tokenResponse{}
	resp, err := a.httpClient.R().
		SetContext(ctx).
		SetFormData(map[string]string{
			"grant_type":    "refresh_token",
			"refresh_token": refreshToken,
			"client_id":     a.opts.ClientID,
		}).
		SetResult(result).
		SetError(result).
		Post("/oauth/token")
	if err != nil {
		return nil, WrapError(KindNetwork, "token_endpoint_unreachable", "Could not reach the identity provider", err)
	}
	if resp.IsError() {
		if resp.StatusCode() == http.StatusBadRequest || resp.StatusCode() == http.StatusUnauthorized {
			return nil, NewError(KindTokenExpired, "refresh_rejected", "Session has expired, please sign in again")
		}
		return nil, tokenEndpointError(resp, result)
	}
	return result.toTokenSet(), nil
}

// userinfoResponse holds the profile claims this system consumes.
type userinfoResponse struct {
	Subject     string   `json:"sub"`
	Email       string   `json:"email"`
	Name        string   `json:"name"`
	Roles       []string `json:"roles"`
	Permissions []string `json:"permissions"`
}

// Profile fetches the user profile from the userinfo endpoint.
func (a *OIDCAuthenticator) Profile(ctx context.Context, accessToken string) (*session.User, error) {
	result := &userinfoResponse{}
	resp, err := a.httpClient.R().
		SetContext(ctx).
		SetAuthToken(accessToken).
		SetResult(result).
		Get("/userinfo")
	if err != nil {
		return nil, WrapError(KindNetwork, "userinfo_unreachable", "Could not reach the identity provider", err)
	}
	if resp.IsError() {
		if resp.StatusCode() == http.StatusUnauthorized {
			return nil, NewError(KindUnauthorized, "userinfo_unauthorized", "Access token was rejected")
		}
		return nil, NewError(KindProviderError, "userinfo_failed",
			fmt.Sprintf("userinfo failed with status %d", resp.StatusCode()))
	}
	return &session.User{
		ID:          result.Subject,
		Email:       result.Email,
		DisplayName: result.Name,
		Roles:       result.Roles,
		Permissions: result.Permissions,
	}, nil
}

// HasSessionCookie reports whether the provider session cookie is in the jar.
func (a *OIDCAuthenticator) HasSessionCookie() bool {
	if a.opts.SessionCookieName == "" {
		return false
	}
	u, err := url.Parse(a.opts.ProviderURL)
	if err != nil {
		return false
	}
	for _, c := range a.jar.Cookies(u) {
		if c.Name == a.opts.SessionCookieName && c.Value != "" {
			return true
		}
	}
	return false
}

// ClearSessionCookie overwrites the provider session cookie with an
// immediately expired one. Best effort.
func (a *OIDCAuthenticator) ClearSessionCookie() {
	if a.opts.SessionCookieName == "" {
		return
	}
	u, err := url.Parse(a.opts.ProviderURL)
	if err != nil {
		return
	}
	a.jar.SetCookies(u, []*http.Cookie{{
		Name:    a.opts.SessionCookieName,
		Value:   "",
		MaxAge:  -1,
		Expires: time.Unix(0, 0),
	}})
}

func tokenEndpointError(resp *resty.Response, result *tokenResponse) *AuthError {
	status := resp.StatusCode()
	switch {
	case status == http.StatusBadRequest || status == http.StatusUnauthorized:
		msg := "Invalid email or password"
		if result.ErrorDesc != "" {
			msg = result.ErrorDesc
		}
		e := NewError(KindInvalidCredentials, nonEmpty(result.ErrorCode, "invalid_grant"), msg)
		e.Status = status
		e.Body = string(resp.Body())
		return e
	default:
		e := NewError(KindProviderError, nonEmpty(result.ErrorCode, "provider_error"),
			fmt.Sprintf("identity provider returned status %d", status))
		e.UserMessage = "The identity provider is unavailable, please try again later"
		e.Status = status
		e.Body = string(resp.Body())
		return e
	}
}

func nonEmpty(s, fallback string) string {
	if s != "" {
		return s
	}
	return fallback
}
