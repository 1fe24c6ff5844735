package middleware

import (
	"net/http"
	"runtime/debug"

	log "github.com/sirupsen/logrus"

	"github.com/2beens/contactdesk/internal/telemetry/metrics"
	"github.com/2beens/contactdesk/pkg"
)

// PanicRecovery turns a handler panic into a plain 500 response. The panic
// value and stack go to the error log (and Sentry, when enabled), never to
// the client.
func PanicRecovery(metricsManager *metrics.Manager) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			defer func() {
				recovered := recover()
				if recovered == nil {
					return
				}

				log.WithFields(log.Fields{
					"method": req.Method,
					"path":   req.URL.Path,
					"panic":  recovered,
				}).Errorf("handler panic:\n%s", debug.Stack())

				if metricsManager != nil {
					metricsManager.CounterHandleRequestPanic.Inc()
				}
				pkg.WriteResponse(w, pkg.ContentType.Text, "Server error", http.StatusInternalServerError)
			}()

			next.ServeHTTP(w, req)
		})
	}
}
