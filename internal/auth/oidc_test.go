package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTokenServer(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	ts := httptest.NewServer(handler)
	t.Cleanup(ts.Close)
	return ts
}

func TestOIDCLogin(t *testing.T) {
	var tokenReq *http.Request
	var form url.Values
	ts := newTokenServer(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/oauth/token":
			tokenReq = r
			r.ParseForm()
			form = r.PostForm
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"access_token":"at-1","refresh_token":"rt-1","id_token":"idt-1","expires_in":1800}`))
		case "/userinfo":
			assert.Equal(t, "Bearer at-1", r.Header.Get("Authorization"))
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"sub":"u1","email":"a@b.com","name":"A B","roles":["operator"],"permissions":["pods:read"]}`))
		default:
			http.NotFound(w, r)
		}
	})

	a, err := NewOIDCAuthenticator(OIDCOpts{ProviderURL: ts.URL, ClientID: "dash"})
	require.NoError(t, err)

	tokens, user, err := a.Login(context.Background(), "a@b.com", "pw")
	require.NoError(t, err)

	assert.Equal(t, "POST", tokenReq.Method)
	assert.Equal(t, "password", form.Get("grant_type"))
	assert.Equal(t, "a@b.com", form.Get("username"))
	assert.Equal(t, "pw", form.Get("password"))
	assert.Equal(t, "dash", form.Get("client_id"))
	assert.Equal(t, "openid profile email", form.Get("scope"))

	assert.Equal(t, "at-1", tokens.AccessToken)
	assert.Equal(t, "rt-1", tokens.RefreshToken)
	assert.Equal(t, "idt-1", tokens.IDToken)
	assert.WithinDuration(t, time.Now().Add(30*time.Minute), tokens.ExpiresAt, 5*time.Second)

	require.NotNil(t, user)
	assert.Equal(t, "u1", user.ID)
	assert.Equal(t, []string{"operator"}, user.Roles)
}

func TestOIDCLoginInvalidCredentials(t *testing.T) {
	ts := newTokenServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		json.NewEncoder(w).Encode(map[string]string{
			"error":             "invalid_grant",
			"error_description": "bad credentials",
		})
	})

	a, err := NewOIDCAuthenticator(OIDCOpts{ProviderURL: ts.URL})
	require.NoError(t, err)

	_, _, err = a.Login(context.Background(), "a@b.com", "wrong")
	ae := AsAuthError(err)
	assert.Equal(t, KindInvalidCredentials, ae.Kind)
	assert.Equal(t, "invalid_grant", ae.Code)
	assert.Equal(t, "bad credentials", ae.Message)
	assert.Equal(t, http.StatusUnauthorized, ae.Status)
}

func TestOIDCLoginProviderError(t *testing.T) {
	ts := newTokenServer(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream melted", http.StatusBadGateway)
	})

	a, err := NewOIDCAuthenticator(OIDCOpts{ProviderURL: ts.URL})
	require.NoError(t, err)

	_, _, err = a.Login(context.Background(), "a@b.com", "pw")
	ae := AsAuthError(err)
	assert.Equal(t, KindProviderError, ae.Kind)
	assert.Equal(t, http.StatusBadGateway, ae.Status)
	assert.Contains(t, ae.Body, "upstream melted")
}

func TestOIDCLoginUnreachable(t *testing.T) {
	a, err := NewOIDCAuthenticator(OIDCOpts{ProviderURL: "http://127.0.0.1:1"})
	require.NoError(t, err)

	_, _, err = a.Login(context.Background(), "a@b.com", "pw")
	ae := AsAuthError(err)
	assert.Equal(t, KindNetwork, ae.Kind)
}

func TestOIDCRefresh(t *testing.T) {
	var form url.Values
	ts := newTokenServer(t, func(w http.ResponseWriter, r *http.Request) {
		r.ParseForm()
		form = r.PostForm
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"access_token":"at-2","refresh_token":"rt-2","expires_in":3600}`))
	})

	a, err := NewOIDCAuthenticator(OIDCOpts{ProviderURL: ts.URL, ClientID: "dash"})
	require.NoError(t, err)

	tokens, err := a.Refresh(context.Background(), "rt-1")
	require.NoError(t, err)
	assert.Equal(t, "refresh_token", form.Get("grant_type"))
	assert.Equal(t, "rt-1", form.Get("refresh_token"))
	assert.Equal(t, "at-2", tokens.AccessToken)
	assert.Equal(t, "rt-2", tokens.RefreshToken)
}

func TestOIDCRefreshRejected(t *testing.T) {
	ts := newTokenServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":"invalid_grant"}`))
	})

	a, err := NewOIDCAuthenticator(OIDCOpts{ProviderURL: ts.URL})
	require.NoError(t, err)

	_, err = a.Refresh(context.Background(), "rt-stale")
	ae := AsAuthError(err)
	assert.Equal(t, KindTokenExpired, ae.Kind)
}

func TestOIDCSessionCookie(t *testing.T) {
	a, err := NewOIDCAuthenticator(OIDCOpts{
		ProviderURL:       "https://login.example.com",
		SessionCookieName: "_proxy_session",
	})
	require.NoError(t, err)

	assert.False(t, a.HasSessionCookie())

	u, _ := url.Parse("https://login.example.com")
	a.jar.SetCookies(u, []*http.Cookie{{Name: "_proxy_session", Value: "opaque"}})
	assert.True(t, a.HasSessionCookie())

	a.ClearSessionCookie()
	assert.False(t, a.HasSessionCookie())

	// Clearing again is harmless.
	a.ClearSessionCookie()
	assert.False(t, a.HasSessionCookie())
}

func TestOIDCWithoutCookieName(t *testing.T) {
	a, err := NewOIDCAuthenticator(OIDCOpts{ProviderURL: "https://login.example.com"})
	require.NoError(t, err)
	assert.False(t, a.HasSessionCookie())
	a.ClearSessionCookie() // no-op, must not panic
}
