package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/mlaakso/clusterdash/config"
	"github.com/mlaakso/clusterdash/internal/api"
	"github.com/mlaakso/clusterdash/internal/auth"
	"github.com/mlaakso/clusterdash/internal/credstore"
	"github.com/mlaakso/clusterdash/internal/gateway"
	"github.com/mlaakso/clusterdash/internal/session"
)

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	config.LoadEnvFile()
	cfg, err := config.FromEnv()
	if err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}

	creds := credstore.Open(cfg.DBPath, credstore.DeriveKey(cfg.TokenKey))
	defer creds.Close()

	authenticator, err := buildAuthenticator(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to build authenticator")
	}

	sessions := session.NewStore()
	svc := auth.NewService(auth.ServiceOpts{
		Sessions:      sessions,
		Creds:         creds,
		Authenticator: authenticator,
		DemoEmail:     cfg.DemoEmail,
		DemoPassword:  cfg.DemoPassword,
	})

	registry := prometheus.NewRegistry()
	gw := gateway.New(gateway.Opts{
		BaseURL:    cfg.APIBaseURL,
		Sessions:   svc.Sessions(),
		Auth:       svc,
		MaxRetries: cfg.MaxRetries,
		Metrics:    gateway.NewMetrics(registry),
	})
	client := api.NewClient(gw)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	svc.RestoreSession(ctx)
	log.Info().Str("status", sessions.Status().String()).Msg("session layer ready")

	if sessions.Status() == session.Authenticated {
		if nodes, err := client.ListNodes(ctx); err != nil {
			log.Warn().Err(err).Msg("startup probe failed")
		} else {
			log.Info().Int("nodes", len(nodes)).Msg("connected to cluster API")
		}
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return svc.KeepAlive(ctx, cfg.KeepAliveInterval, cfg.KeepAliveLeeway)
	})

	if cfg.MetricsAddr != "" {
		g.Go(func() error {
			return serveMetrics(ctx, cfg.MetricsAddr, registry)
		})
	}

	if err := g.Wait(); err != nil && err != context.Canceled {
		log.Error().Err(err).Msg("shutdown with error")
	} else {
		log.Info().Msg("shutdown complete")
	}
}

func buildAuthenticator(cfg *config.Config) (auth.Authenticator, error) {
	if cfg.DemoMode {
		log.Info().Msg("demo mode: using mock authenticator")
		return auth.NewMockAuthenticator(nil), nil
	}
	return auth.NewOIDCAuthenticator(auth.OIDCOpts{
		ProviderURL:       cfg.ProviderURL,
		ClientID:          cfg.ClientID,
		Scope:             cfg.Scope,
		SessionCookieName: cfg.SessionCookieName,
	})
}

func serveMetrics(ctx context.Context, addr string, registry *prometheus.Registry) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	log.Info().Str("addr", addr).Msg("serving metrics")
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}
