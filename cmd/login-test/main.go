// Command login-test exercises the auth service interactively: it logs in
// with the given credentials, prints the resulting session, refreshes it
// once, and logs out. Useful for checking provider configuration without
// starting the dashboard.
package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/lithammer/dedent"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/mlaakso/clusterdash/config"
	"github.com/mlaakso/clusterdash/internal/auth"
	"github.com/mlaakso/clusterdash/internal/credstore"
	"github.com/mlaakso/clusterdash/internal/session"
)

var usage = strings.TrimSpace(dedent.Dedent(`
	usage: login-test <email> <password>

	Logs in through the configured authenticator, refreshes the session
	once, and logs out. Set CLUSTERDASH_DEMO_MODE=true to exercise the
	mock authenticator, or CLUSTERDASH_PROVIDER_URL to exercise a real
	provider.
`))

func main() {
	zerolog.SetGlobalLevel(zerolog.WarnLevel)
	config.LoadEnvFile()

	if len(os.Args) != 3 {
		fmt.Fprintln(os.Stderr, usage)
		os.Exit(2)
	}
	email, password := os.Args[1], os.Args[2]

	var authenticator auth.Authenticator
	if os.Getenv("CLUSTERDASH_DEMO_MODE") == "true" || os.Getenv("CLUSTERDASH_PROVIDER_URL") == "" {
		authenticator = auth.NewMockAuthenticator(nil)
		fmt.Println("using mock authenticator")
	} else {
		var err error
		authenticator, err = auth.NewOIDCAuthenticator(auth.OIDCOpts{
			ProviderURL:       os.Getenv("CLUSTERDASH_PROVIDER_URL"),
			ClientID:          os.Getenv("CLUSTERDASH_CLIENT_ID"),
			SessionCookieName: os.Getenv("CLUSTERDASH_SESSION_COOKIE"),
		})
		if err != nil {
			log.Fatal().Err(err).Msg("failed to build authenticator")
		}
	}

	sessions := session.NewStore()
	svc := auth.NewService(auth.ServiceOpts{
		Sessions:      sessions,
		Creds:         credstore.NewNullStore(),
		Authenticator: authenticator,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := svc.Login(ctx, email, password); err != nil {
		fmt.Printf("login failed: %v\n", err)
		os.Exit(1)
	}
	printSession("after login", sessions.Snapshot())

	if err := svc.Refresh(ctx); err != nil {
		fmt.Printf("refresh failed: %v\n", err)
		os.Exit(1)
	}
	printSession("after refresh", sessions.Snapshot())

	svc.Logout(ctx)
	printSession("after logout", sessions.Snapshot())
}

func printSession(label string, snap session.Snapshot) {
	fmt.Printf("--- %s ---\n", label)
	fmt.Printf("status: %s\n", snap.Status)
	if snap.User != nil {
		fmt.Printf("user: %s (%s) roles=%v\n", snap.User.DisplayName, snap.User.Email, snap.User.Roles)
	}
	if snap.Tokens != nil {
		fmt.Printf("expires: %s (in %s)\n", snap.Tokens.ExpiresAt.Format(time.RFC3339),
			time.Until(snap.Tokens.ExpiresAt).Round(time.Second))
	}
}
