package middleware

import (
	"context"
	"errors"
	"net/http"
	"time"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/codes"

	"github.com/2beens/contactdesk/internal/auth"
	"github.com/2beens/contactdesk/internal/telemetry/tracing"
)

//go:generate mockgen -source=auth.go -destination=mock_auth_test.go -package=middleware_test

type sessionResolver interface {
	Resolve(ctx context.Context, id string) (*auth.Identity, error)
}

const defaultResolveTimeout = 5 * time.Second

type AuthGate struct {
	cookieCodec    *auth.CookieCodec
	sessions       sessionResolver
	loginPath      string
	resolveTimeout time.Duration
}

// NewAuthGate creates the gate; resolveTimeout bounds each session store
// lookup (a non-positive value falls back to defaultResolveTimeout).
func NewAuthGate(
	cookieCodec *auth.CookieCodec,
	sessions sessionResolver,
	loginPath string,
	resolveTimeout time.Duration,
) *AuthGate {
	if resolveTimeout <= 0 {
		resolveTimeout = defaultResolveTimeout
	}
	return &AuthGate{
		cookieCodec:    cookieCodec,
		sessions:       sessions,
		loginPath:      loginPath,
		resolveTimeout: resolveTimeout,
	}
}

// Require lets the request through only with a live admin session,
// otherwise the client is sent to the login page.
func (g *AuthGate) Require() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, span := tracing.GlobalTracer.Start(r.Context(), "middleware.authGate")
			defer span.End()

			sessionID, err := g.cookieCodec.SessionID(r)
			if err != nil {
				log.Tracef("[no session cookie] [auth gate] => %s: %s", r.URL.Path, err)
				span.SetStatus(codes.Error, "no-session-cookie")
				http.Redirect(w, r, g.loginPath, http.StatusSeeOther)
				return
			}

			resolveCtx, cancel := context.WithTimeout(ctx, g.resolveTimeout)
			identity, err := g.sessions.Resolve(resolveCtx, sessionID)
			cancel()
			if err != nil {
				if errors.Is(err, auth.ErrNoSession) {
					log.Tracef("[no session] [auth gate] => %s", r.URL.Path)
					span.SetStatus(codes.Error, "no-session")
				} else {
					log.Errorf("[failed session check] => %s: %s", r.URL.Path, err)
					span.SetStatus(codes.Error, "resolve-session-err")
					span.RecordError(err)
				}
				http.Redirect(w, r, g.loginPath, http.StatusSeeOther)
				return
			}

			span.SetStatus(codes.Ok, "ok")
			next.ServeHTTP(w, r.WithContext(auth.ContextWithIdentity(ctx, identity)))
		})
	}
}
