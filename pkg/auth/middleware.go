package auth

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/engram-dev/engram/pkg/authz"
	"github.com/engram-dev/engram/pkg/observability"
	"github.com/engram-dev/engram/pkg/routes"
)

// Middleware creates HTTP middleware gating every request behind the
// credential chain and the authorization decision engine. Only on
// double approval does the request reach its handler; the classified
// route match and the verified identity are injected into the context
// for the handler's use.
func Middleware(chain *Chain, engine *authz.Engine, realm string, bypassEndpoints []string, logger *slog.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}

	bypass := make(map[string]bool, len(bypassEndpoints))
	for _, ep := range bypassEndpoints {
		bypass[ep] = true
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if bypass[r.URL.Path] {
				next.ServeHTTP(w, r)
				return
			}

			logger.Info("endpoint call attempt",
				"method", r.Method,
				"path", r.URL.Path,
			)

			result := chain.Authenticate(r.Context(), r)

			if result.Decision != Yes || result.Identity == nil || result.Identity.Subject == "" {
				// No usable credentials at all warrants a challenge, not
				// a denial.
				if result.Err == ErrUnauthenticated {
					observability.AuthAttemptsTotal.WithLabelValues("challenge").Inc()
					w.Header().Set("WWW-Authenticate", fmt.Sprintf("Basic realm=%q", realm))
					writeFailure(w, http.StatusUnauthorized, "Authentication required.")
					return
				}

				logger.Warn("authentication failed",
					"path", r.URL.Path,
					"remote_addr", r.RemoteAddr,
					"error", result.Err,
				)
				observability.AuthAttemptsTotal.WithLabelValues("rejected").Inc()
				writeFailure(w, http.StatusForbidden, "Forbidden")
				return
			}

			observability.AuthAttemptsTotal.WithLabelValues("ok").Inc()

			match := routes.Classify(r.URL.Path)
			op := authz.OperationFromMethod(r.Method)

			if !engine.Permitted(r.Context(), result.Identity.Subject, authz.Category(match.Category), op, match.GPTID) {
				logger.Warn("operation not permitted",
					"user", result.Identity.Subject,
					"method", r.Method,
					"path", r.URL.Path,
				)
				writeFailure(w, http.StatusForbidden, "Forbidden")
				return
			}

			logger.Info("endpoint call authorized",
				"user", result.Identity.Subject,
				"method", r.Method,
				"path", r.URL.Path,
			)

			ctx := SetIdentity(r.Context(), result.Identity)
			ctx = routes.SetMatch(ctx, match)

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// writeFailure emits the failure envelope without pulling in the
// transport package (which depends on this one).
func writeFailure(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	fmt.Fprintf(w, `{"success":false,"message":%q}`+"\n", message)
}

// DefaultBypassEndpoints lists endpoints that skip authentication.
var DefaultBypassEndpoints = []string{"/healthz", "/metrics"}
