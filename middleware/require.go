package middleware

import (
	"context"
	"log/slog"
	"net/http"

	goGate "github.com/MrEthical07/goGate"
	"github.com/MrEthical07/goGate/cookie"
)

// Authorizer is the part of the Engine that Require needs.
type Authorizer interface {
	Authorize(ctx context.Context, sessionID string, req goGate.Requirement) (goGate.Decision, error)
}

type userContextKey struct{}

// UserFromContext returns the account Require admitted.
func UserFromContext(ctx context.Context) (goGate.UserRecord, bool) {
	user, ok := ctx.Value(userContextKey{}).(goGate.UserRecord)
	return user, ok
}

// Require admits requests whose session cookie satisfies req and redirects
// everything else to loginURL.
func Require(engine Authorizer, codec *cookie.Codec, req goGate.Requirement, loginURL string) func(http.Handler) http.Handler {
	return RequireWithLogger(engine, codec, req, loginURL, slog.Default())
}

// RequireWithLogger is Require with an explicit logger for store errors.
func RequireWithLogger(engine Authorizer, codec *cookie.Codec, req goGate.Requirement, loginURL string, logger *slog.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if engine == nil || codec == nil {
				redirect(w, r, loginURL)
				return
			}

			sid, err := codec.Read(r)
			if err != nil {
				redirect(w, r, loginURL)
				return
			}

			decision, err := engine.Authorize(r.Context(), sid, req)
			if err != nil {
				logger.Error("authorization failed",
					"path", r.URL.Path,
					"request_id", goGate.RequestIDFromContext(r.Context()),
					"error", err,
				)
			}
			if !decision.Allowed {
				redirect(w, r, loginURL)
				return
			}

			ctx := context.WithValue(r.Context(), userContextKey{}, decision.User)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func redirect(w http.ResponseWriter, r *http.Request, url string) {
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Location", url)
	w.WriteHeader(http.StatusFound)
}
