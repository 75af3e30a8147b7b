package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	goGate "github.com/MrEthical07/goGate"
	"github.com/MrEthical07/goGate/cookie"
)

// Authenticator is the part of the Engine the login and logout handlers need.
type Authenticator interface {
	Login(ctx context.Context, username, password string) (string, error)
	Logout(ctx context.Context, sessionID string) error
}

// LoginConfig configures LoginHandler.
type LoginConfig struct {
	LoginURL   string
	SuccessURL string
	// CookieMaxAge of zero issues a browser-session cookie.
	CookieMaxAge time.Duration
	Logger       *slog.Logger
}

// LoginHandler reads the username and password form fields, starts a
// session and redirects to SuccessURL. Any failure redirects to LoginURL
// with the same response.
func LoginHandler(engine Authenticator, codec *cookie.Codec, cfg LoginConfig) http.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	successURL := cfg.SuccessURL
	if successURL == "" {
		successURL = "/"
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.Header().Set("Allow", http.MethodPost)
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		if err := r.ParseForm(); err != nil {
			redirect(w, r, cfg.LoginURL)
			return
		}

		ctx := r.Context()
		sid, err := engine.Login(ctx, r.PostForm.Get("username"), r.PostForm.Get("password"))
		if err != nil {
			redirect(w, r, cfg.LoginURL)
			return
		}

		value, err := codec.Encode(sid)
		if err != nil {
			logger.Error("encode session cookie",
				"request_id", goGate.RequestIDFromContext(ctx),
				"error", err,
			)
			_ = engine.Logout(ctx, sid)
			redirect(w, r, cfg.LoginURL)
			return
		}

		codec.Set(w, value, cfg.CookieMaxAge)
		redirect(w, r, successURL)
	})
}

// LogoutHandler ends the session named by the cookie, if any, clears the
// cookie and redirects to redirectURL. Failures are logged to slog.Default.
func LogoutHandler(engine Authenticator, codec *cookie.Codec, redirectURL string) http.Handler {
	return LogoutHandlerWithLogger(engine, codec, redirectURL, slog.Default())
}

// LogoutHandlerWithLogger is LogoutHandler logging to logger.
func LogoutHandlerWithLogger(engine Authenticator, codec *cookie.Codec, redirectURL string, logger *slog.Logger) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if sid, err := codec.Read(r); err == nil {
			if err := engine.Logout(r.Context(), sid); err != nil {
				logger.Warn("logout failed",
					"request_id", goGate.RequestIDFromContext(r.Context()),
					"error", err,
				)
			}
		}
		codec.Clear(w)
		redirect(w, r, redirectURL)
	})
}
