package auth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mlaakso/clusterdash/internal/session"
)

func TestMockLoginAdmin(t *testing.T) {
	m := NewMockAuthenticator(nil)

	tokens, user, err := m.Login(context.Background(), "admin@admin.com", "password")
	require.NoError(t, err)
	require.NotNil(t, tokens)
	require.NotNil(t, user)

	assert.WithinDuration(t, time.Now().Add(MockAccessLifetime), tokens.ExpiresAt, 5*time.Second)
	assert.NotEmpty(t, tokens.AccessToken)
	assert.NotEmpty(t, tokens.RefreshToken)
	assert.Contains(t, user.Roles, session.AdminRole)
	assert.True(t, user.IsAdmin())
}

func TestMockLoginInvalidCredentials(t *testing.T) {
	m := NewMockAuthenticator(nil)

	cases := []struct {
		name, email, password string
	}{
		{"wrong password", "admin@admin.com", "hunter2"},
		{"unknown user", "nobody@example.com", "password"},
		{"empty", "", ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			tokens, user, err := m.Login(context.Background(), tc.email, tc.password)
			assert.Nil(t, tokens)
			assert.Nil(t, user)
			ae := AsAuthError(err)
			assert.Equal(t, KindInvalidCredentials, ae.Kind)
		})
	}
}

func TestMockRefresh(t *testing.T) {
	m := NewMockAuthenticator(nil)
	tokens, _, err := m.Login(context.Background(), "admin@admin.com", "password")
	require.NoError(t, err)

	refreshed, err := m.Refresh(context.Background(), tokens.RefreshToken)
	require.NoError(t, err)
	assert.NotEmpty(t, refreshed.AccessToken)
	assert.WithinDuration(t, time.Now().Add(MockAccessLifetime), refreshed.ExpiresAt, 5*time.Second)

	// The refreshed access token still carries the user claims.
	user, err := m.Profile(context.Background(), refreshed.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "admin@admin.com", user.Email)
	assert.True(t, user.IsAdmin())
}

func TestMockRefreshRejectsAccessToken(t *testing.T) {
	m := NewMockAuthenticator(nil)
	tokens, _, err := m.Login(context.Background(), "admin@admin.com", "password")
	require.NoError(t, err)

	// An access token in the refresh slot has the wrong token_use claim.
	_, err = m.Refresh(context.Background(), tokens.AccessToken)
	ae := AsAuthError(err)
	assert.Equal(t, KindTokenExpired, ae.Kind)
}

func TestMockRefreshExpired(t *testing.T) {
	m := NewMockAuthenticator(nil)
	user := &session.User{ID: "u1", Email: "a@b.com"}

	expired, err := encodeMockToken(user, "refresh", time.Now().Add(-time.Minute))
	require.NoError(t, err)

	_, err = m.Refresh(context.Background(), expired)
	ae := AsAuthError(err)
	assert.Equal(t, KindTokenExpired, ae.Kind)
	assert.Equal(t, "refresh_token_expired", ae.Code)
}

func TestMockRefreshGarbage(t *testing.T) {
	m := NewMockAuthenticator(nil)
	_, err := m.Refresh(context.Background(), "not-a-token")
	ae := AsAuthError(err)
	assert.Equal(t, KindTokenExpired, ae.Kind)
}

func TestMockTokenClaims(t *testing.T) {
	user := &session.User{
		ID:          "u1",
		Email:       "a@b.com",
		DisplayName: "A",
		Roles:       []string{"viewer"},
		Permissions: []string{"pods:read"},
	}
	token, err := encodeMockToken(user, "access", time.Now().Add(time.Hour))
	require.NoError(t, err)

	claims, err := decodeMockToken(token)
	require.NoError(t, err)
	assert.Equal(t, "u1", claims.Subject)
	assert.Equal(t, "access", claims.TokenUse)
	assert.Equal(t, []string{"viewer"}, claims.Roles)
	assert.Equal(t, []string{"pods:read"}, claims.Permissions)
}

func TestCustomUserTable(t *testing.T) {
	m := NewMockAuthenticator([]MockUser{{
		Email:    "solo@example.com",
		Password: "pw",
		User:     session.User{ID: "solo", Email: "solo@example.com"},
	}})

	_, _, err := m.Login(context.Background(), "solo@example.com", "pw")
	assert.NoError(t, err)

	// The default table is not consulted when a custom one is given.
	_, _, err = m.Login(context.Background(), "admin@admin.com", "password")
	assert.Error(t, err)
}
