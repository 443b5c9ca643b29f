package session

import "time"

// TokenSet holds the credentials obtained from an authenticator.
type TokenSet struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token,omitempty"`
	IDToken      string    `json:"id_token,omitempty"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// IsExpired returns true if the access token has expired.
func (t *TokenSet) IsExpired() bool {
	if t.ExpiresAt.IsZero() {
		return false
	}
	return time.Now().After(t.ExpiresAt)
}

// ExpiresWithin returns true if the access token expires within d.
// Used by the keep-alive loop to refresh ahead of expiry.
func (t *TokenSet) ExpiresWithin(d time.Duration) bool {
	if t.ExpiresAt.IsZero() {
		return false
	}
	return time.Now().Add(d).After(t.ExpiresAt)
}
