package auth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mlaakso/clusterdash/internal/session"
)

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met in time")
}

func TestKeepAliveRefreshesNearExpiry(t *testing.T) {
	authn := &scriptedAuthn{refreshToken: freshTokens("renewed")}
	svc, sessions := newTestService(authn, &memStore{})
	sessions.SetAuthenticated(nil, &session.TokenSet{
		AccessToken:  "about-to-expire",
		RefreshToken: "rt",
		ExpiresAt:    time.Now().Add(30 * time.Second),
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.KeepAlive(ctx, 10*time.Millisecond, time.Minute) }()

	waitFor(t, func() bool {
		tokens := sessions.Tokens()
		return tokens != nil && tokens.AccessToken == "renewed"
	})
	cancel()
	require.ErrorIs(t, <-done, context.Canceled)
	assert.Equal(t, session.Authenticated, sessions.Status())
}

func TestKeepAliveLeavesFreshSessionAlone(t *testing.T) {
	authn := &scriptedAuthn{refreshToken: freshTokens("renewed")}
	svc, sessions := newTestService(authn, &memStore{})
	sessions.SetAuthenticated(nil, freshTokens("hours-left"))

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Millisecond)
	defer cancel()
	require.ErrorIs(t, svc.KeepAlive(ctx, 10*time.Millisecond, time.Minute), context.DeadlineExceeded)

	assert.Equal(t, 0, authn.refreshCalls)
	assert.Equal(t, "hours-left", sessions.Tokens().AccessToken)
}

func TestKeepAliveLogsOutOnRefreshFailure(t *testing.T) {
	authn := &scriptedAuthn{refreshErr: NewError(KindTokenExpired, "refresh_rejected", "expired")}
	creds := &memStore{}
	svc, sessions := newTestService(authn, creds)
	sessions.SetAuthenticated(nil, &session.TokenSet{
		AccessToken:  "about-to-expire",
		RefreshToken: "rt",
		ExpiresAt:    time.Now().Add(30 * time.Second),
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.KeepAlive(ctx, 10*time.Millisecond, time.Minute) }()

	waitFor(t, func() bool { return sessions.Status() == session.Unauthenticated })
	cancel()
	<-done

	creds.mu.Lock()
	defer creds.mu.Unlock()
	assert.Nil(t, creds.tokens)
}
