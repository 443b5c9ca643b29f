package auth

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/mlaakso/clusterdash/internal/session"
)

// Token lifetimes issued by the mock authenticator.
const (
	MockAccessLifetime  = time.Hour
	MockRefreshLifetime = 24 * time.Hour
)

// MockUser is one entry in the fixed demo user table.
type MockUser struct {
	Email    string
	Password string
	User     session.User
}

// DefaultMockUsers is the demo user table. The admin entry doubles as the
// demo identity the login form advertises.
var DefaultMockUsers = []MockUser{
	{
		Email:    "admin@admin.com",
		Password: "password",
		User: session.User{
			ID:          "mock-admin",
			Email:       "admin@admin.com",
			DisplayName: "Demo Admin",
			Roles:       []string{session.AdminRole, "operator"},
			Permissions: []string{"pods:read", "pods:write", "nodes:read", "alerts:read", "tuning:write"},
		},
	},
	{
		Email:    "viewer@demo.com",
		Password: "password",
		User: session.User{
			ID:          "mock-viewer",
			Email:       "viewer@demo.com",
			DisplayName: "Demo Viewer",
			Roles:       []string{"viewer"},
			Permissions: []string{"pods:read", "nodes:read"},
		},
	},
}

// MockAuthenticator validates credentials against a fixed user table and
// issues self-describing but unsigned tokens. The tokens carry real claims
// (subject, roles, expiry) purely so the rest of the stack exercises the
// same code paths as with a real provider; they are not cryptographically
// meaningful.
type MockAuthenticator struct {
	users []MockUser
}

var _ Authenticator = (*MockAuthenticator)(nil)

// NewMockAuthenticator creates a mock authenticator with the given user
// table, or DefaultMockUsers when the table is empty.
func NewMockAuthenticator(users []MockUser) *MockAuthenticator {
	if len(users) == 0 {
		users = DefaultMockUsers
	}
	return &MockAuthenticator{users: users}
}

// mockClaims is the payload encoded into mock tokens.
type mockClaims struct {
	Subject     string   `json:"sub"`
	Email       string   `json:"email"`
	Name        string   `json:"name"`
	Roles       []string `json:"roles"`
	Permissions []string `json:"permissions"`
	TokenUse    string   `json:"token_use"` // "access" or "refresh"
	ExpiresAt   int64    `json:"exp"`
}

// Login checks the credentials against the user table. On match it
// synthesizes a fresh token set; on mismatch it fails with
// InvalidCredentials.
func (m *MockAuthenticator) Login(ctx context.Context, email, password string) (*session.TokenSet, *session.User, error) {
	for _, u := range m.users {
		if u.Email == email && u.Password == password {
			user := u.User
			tokens, err := m.issueTokens(&user)
			if err != nil {
				return nil, nil, WrapError(KindProviderError, "mock_issue_failed", "failed to issue mock tokens", err)
			}
			log.Debug().Str("email", email).Msg("mock login succeeded")
			return tokens, &user, nil
		}
	}
	return nil, nil, NewError(KindInvalidCredentials, "invalid_credentials", "Invalid email or password")
}

// Refresh validates the refresh token's own claims and issues a new set.
func (m *MockAuthenticator) Refresh(ctx context.Context, refreshToken string) (*session.TokenSet, error) {
	claims, err := decodeMockToken(refreshToken)
	if err != nil {
		return nil, WrapError(KindTokenExpired, "invalid_refresh_token", "Session has expired, please sign in again", err)
	}
	if claims.TokenUse != "refresh" {
		return nil, NewError(KindTokenExpired, "wrong_token_use", "Session has expired, please sign in again")
	}
	if time.Now().Unix() > claims.ExpiresAt {
		return nil, NewError(KindTokenExpired, "refresh_token_expired", "Session has expired, please sign in again")
	}

	user := claims.toUser()
	tokens, err := m.issueTokens(user)
	if err != nil {
		return nil, WrapError(KindProviderError, "mock_issue_failed", "failed to issue mock tokens", err)
	}
	return tokens, nil
}

// Profile decodes the user out of the access token claims.
func (m *MockAuthenticator) Profile(ctx context.Context, accessToken string) (*session.User, error) {
	claims, err := decodeMockToken(accessToken)
	if err != nil {
		return nil, WrapError(KindUnauthorized, "invalid_access_token", "invalid access token", err)
	}
	return claims.toUser(), nil
}

func (c *mockClaims) toUser() *session.User {
	return &session.User{
		ID:          c.Subject,
		Email:       c.Email,
		DisplayName: c.Name,
		Roles:       c.Roles,
		Permissions: c.Permissions,
	}
}

func (m *MockAuthenticator) issueTokens(user *session.User) (*session.TokenSet, error) {
	now := time.Now()
	access, err := encodeMockToken(user, "access", now.Add(MockAccessLifetime))
	if err != nil {
		return nil, err
	}
	refresh, err := encodeMockToken(user, "refresh", now.Add(MockRefreshLifetime))
	if err != nil {
		return nil, err
	}
	id, err := encodeMockToken(user, "id", now.Add(MockAccessLifetime))
	if err != nil {
		return nil, err
	}
	return &session.TokenSet{
		AccessToken:  access,
		RefreshToken: refresh,
		IDToken:      id,
		ExpiresAt:    now.Add(MockAccessLifetime),
	}, nil
}

// encodeMockToken produces "header.claims." with base64url JSON segments
// and an empty signature slot.
func encodeMockToken(user *session.User, use string, expiresAt time.Time) (string, error) {
	header := map[string]string{"alg": "none", "typ": "mock+jwt"}
	headerJSON, err := json.Marshal(header)
	if err != nil {
		return "", err
	}
	claims := mockClaims{
		Subject:     user.ID,
		Email:       user.Email,
		Name:        user.DisplayName,
		Roles:       user.Roles,
		Permissions: user.Permissions,
		TokenUse:    use,
		ExpiresAt:   expiresAt.Unix(),
	}
	claimsJSON, err := json.Marshal(claims)
	if err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(headerJSON) + "." +
		base64.RawURLEncoding.EncodeToString(claimsJSON) + ".", nil
}

func decodeMockToken(token string) (*mockClaims, error) {
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		return nil, fmt.Errorf("malformed mock token: %d segments", len(parts))
	}
	payload, err := base64.RawURLEncoding.DecodeString(parts[1])
	if err != nil {
		return nil, fmt.Errorf("failed to decode claims: %w", err)
	}
	var claims mockClaims
	if err := json.Unmarshal(payload, &claims); err != nil {
		return nil, fmt.Errorf("failed to unmarshal claims: %w", err)
	}
	return &claims, nil
}
