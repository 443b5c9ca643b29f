// Package gateway mediates every outgoing API request through the current
// session: it attaches the access token at send time, retries transient
// failures with backoff, and coordinates token refresh so a burst of
// concurrently rejected requests shares a single refresh.
package gateway

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"

	"github.com/mlaakso/clusterdash/internal/auth"
	"github.com/mlaakso/clusterdash/internal/session"
)

// SessionControl is what the gateway needs from the auth service: one
// refresh path and one logout path.
type SessionControl interface {
	Refresh(ctx context.Context) error
	Logout(ctx context.Context)
}

// DefaultBypassPrefixes never receive the bearer header and never
// participate in refresh coordination.
var DefaultBypassPrefixes = []string{
	"/auth/",
	"/oauth/",
	"/static/",
	"/assets/",
	"/locales/",
	"/proxy/",
}

const (
	defaultMaxRetries = 3
	backoffBase       = time.Second
	backoffCap        = 10 * time.Second
)

// Opts configures a Gateway.
type Opts struct {
	BaseURL  string
	Sessions session.Viewer
	Auth     SessionControl
	// BypassPrefixes overrides DefaultBypassPrefixes when non-nil.
	BypassPrefixes []string
	// MaxRetries bounds retries of transient failures per request.
	MaxRetries int
	Metrics    *Metrics
}

// Gateway is the authenticated HTTP client every data-access call goes
// through.
type Gateway struct {
	httpClient *resty.Client
	sessions   session.Viewer
	auth       SessionControl
	bypass     []string
	maxRetries int
	metrics    *Metrics

	refreshGate singleflight.Group

	// sleep is swapped out in tests to observe backoff without waiting.
	sleep func(ctx context.Context, d time.Duration) error
}

// New creates a gateway.
func New(opts Opts) *Gateway {
	bypass := opts.BypassPrefixes
	if bypass == nil {
		bypass = DefaultBypassPrefixes
	}
	maxRetries := opts.MaxRetries
	if maxRetries <= 0 {
		maxRetries = defaultMaxRetries
	}
	return &Gateway{
		httpClient: resty.New().
			SetBaseURL(opts.BaseURL).
			SetHeader("Accept", "application/json"),
		sessions:   opts.Sessions,
		auth:       opts.Auth,
		bypass:     bypass,
		maxRetries: maxRetries,
		metrics:    opts.Metrics,
		sleep:      sleepCtx,
	}
}

// Request describes one outgoing API call.
type Request struct {
	Method string
	Path   string
	Query  map[string]string
	Body   any
	// Result, when non-nil, receives the decoded JSON success body.
	Result any
}

// Response preserves the raw outcome for callers that need more than the
// decoded result.
type Response struct {
	StatusCode int
	Body       []byte
	Duration   time.Duration
}

// Do sends the request through the session boundary. Failures come back as
// *auth.AuthError with the original status and body attached.
func (g *Gateway) Do(ctx context.Context, req *Request) (*Response, error) {
	bypassed := g.bypassed(req.Path)
	refreshed := false

	for attempt := 0; ; attempt++ {
		resp, err := g.send(ctx, req, bypassed)

		if err != nil {
			// Transport-level failure: transient by definition.
			if attempt < g.maxRetries {
				if serr := g.backoff(ctx, attempt); serr != nil {
					return nil, auth.WrapError(auth.KindNetwork, "request_cancelled", "request cancelled", serr)
				}
				continue
			}
			return nil, auth.WrapError(auth.KindNetwork, "network_error",
				"Could not reach the server, please check your connection", err)
		}

		status := resp.StatusCode()
		out := &Response{StatusCode: status, Body: resp.Body(), Duration: resp.Time()}
		g.observe(req.Method, status, resp.Time())

		switch {
		case status < http.StatusBadRequest:
			return out, nil

		case status == http.StatusUnauthorized && !bypassed && !refreshed:
			if err := g.coordinateRefresh(ctx); err != nil {
				return out, err
			}
			// Retried exactly once with the new credential.
			refreshed = true
			continue

		case status >= http.StatusInternalServerError && status < 600:
			if attempt < g.maxRetries {
				if serr := g.backoff(ctx, attempt); serr != nil {
					return out, auth.WrapError(auth.KindNetwork, "request_cancelled", "request cancelled", serr)
				}
				continue
			}
			return out, classify(status, resp.Body())

		default:
			return out, classify(status, resp.Body())
		}
	}
}

// send issues the HTTP call, reading the access token fresh from the
// session store at send time.
func (g *Gateway) send(ctx context.Context, req *Request, bypassed bool) (*resty.Response, error) {
	r := g.httpClient.R().SetContext(ctx)
	if req.Query != nil {
		r.SetQueryParams(req.Query)
	}
	if req.Body != nil {
		r.SetBody(req.Body)
	}
	if req.Result != nil {
		r.SetResult(req.Result)
	}
	if !bypassed {
		if tokens := g.sessions.Tokens(); tokens != nil && tokens.AccessToken != "" {
			r.SetAuthToken(tokens.AccessToken)
		}
	}

	resp, err := r.Execute(req.Method, req.Path)
	if err != nil {
		log.Warn().Str("method", req.Method).Str("path", req.Path).Err(err).Msg("request failed")
		return nil, err
	}
	log.Debug().
		Str("method", req.Method).
		Str("path", req.Path).
		Int("status", resp.StatusCode()).
		Dur("duration", resp.Time()).
		Msg("request completed")
	return resp, nil
}

// coordinateRefresh runs the single-flight refresh protocol: the first
// request that hits 401 starts the refresh, every request that hits 401
// while it is in flight waits for the same outcome. On failure the auth
// service is logged out exactly once and every waiter receives the
// refresh's error.
func (g *Gateway) coordinateRefresh(ctx context.Context) error {
	_, err, shared := g.refreshGate.Do("refresh", func() (any, error) {
		if g.metrics != nil {
			g.metrics.refreshes.Inc()
		}
		if err := g.auth.Refresh(ctx); err != nil {
			log.Warn().Err(err).Msg("refresh after 401 failed, logging out")
			g.auth.Logout(ctx)
			return nil, auth.AsAuthError(err)
		}
		return nil, nil
	})
	if shared {
		log.Debug().Msg("request joined in-flight refresh")
	}
	if err != nil {
		return auth.AsAuthError(err)
	}
	return nil
}

func (g *Gateway) bypassed(path string) bool {
	for _, prefix := range g.bypass {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}

func (g *Gateway) backoff(ctx context.Context, attempt int) error {
	delay := backoffDelay(attempt)
	if g.metrics != nil {
		g.metrics.retries.Inc()
	}
	log.Debug().Int("attempt", attempt+1).Dur("delay", delay).Msg("retrying after transient failure")
	return g.sleep(ctx, delay)
}

func (g *Gateway) observe(method string, status int, d time.Duration) {
	if g.metrics != nil {
		g.metrics.observe(method, status, d)
	}
}

// backoffDelay returns the delay before retry attempt+1, doubling from
// backoffBase and capped at backoffCap.
func backoffDelay(attempt int) time.Duration {
	if attempt > 30 {
		return backoffCap
	}
	d := backoffBase << uint(attempt)
	if d > backoffCap {
		return backoffCap
	}
	return d
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
