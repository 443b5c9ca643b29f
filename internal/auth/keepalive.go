package auth

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/mlaakso/clusterdash/internal/session"
)

// KeepAlive periodically refreshes the session ahead of token expiry so
// dashboard panels never see a stale credential mid-poll. A failed refresh
// logs the session out, per the refresh failure policy.
func (s *Service) KeepAlive(ctx context.Context, interval, leeway time.Duration) error {
	if interval <= 0 {
		interval = time.Minute
	}
	if leeway <= 0 {
		leeway = 5 * time.Minute
	}

	check := func() {
		snap := s.sessions.Snapshot()
		if snap.Status != session.Authenticated || snap.Tokens == nil {
			return
		}
		if !snap.Tokens.ExpiresWithin(leeway) {
			return
		}
		log.Info().Time("expiresAt", snap.Tokens.ExpiresAt).Msg("refreshing session ahead of expiry")
		if err := s.Refresh(ctx); err != nil {
			log.Warn().Err(err).Msg("keep-alive refresh failed, logging out")
			s.Logout(ctx)
		}
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("stopping session keep-alive")
			return ctx.Err()
		case <-ticker.C:
			check()
		}
	}
}
