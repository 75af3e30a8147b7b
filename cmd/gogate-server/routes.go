package main

import (
	"context"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	goGate "github.com/MrEthical07/goGate"
	"github.com/MrEthical07/goGate/cookie"
	"github.com/MrEthical07/goGate/internal/logger"
	promexport "github.com/MrEthical07/goGate/metrics/export/prometheus"
	"github.com/MrEthical07/goGate/middleware"
)

const loginURL = "/login"

var loginPage = template.Must(template.New("login").Parse(`<!doctype html>
<title>Sign in</title>
<form method="post" action="/login">
<input name="username" placeholder="username">
<input name="password" type="password" placeholder="password">
<button>Sign in</button>
</form>
`))

// server holds what the HTTP handlers share.
type server struct {
	engine       *goGate.Engine
	codec        *cookie.Codec
	log          *logger.Logger
	cookieMaxAge time.Duration
	now          func() time.Time
}

func (s *server) router() *mux.Router {
	r := mux.NewRouter()
	r.Use(middleware.RequestContext)

	r.HandleFunc(loginURL, s.loginForm).Methods(http.MethodGet)
	r.Handle(loginURL, middleware.LoginHandler(s.engine, s.codec, middleware.LoginConfig{
		LoginURL:     loginURL,
		SuccessURL:   "/",
		CookieMaxAge: s.cookieMaxAge,
		Logger:       s.log.Logger,
	})).Methods(http.MethodPost)
	r.Handle("/logout", middleware.LogoutHandlerWithLogger(s.engine, s.codec, loginURL, s.log.Logger)).Methods(http.MethodGet, http.MethodPost)

	r.Handle("/", s.require(goGate.Requirement{})(http.HandlerFunc(s.index))).Methods(http.MethodGet)
	r.Handle("/admin", s.require(goGate.Requirement{Role: "admin"})(http.HandlerFunc(s.admin))).Methods(http.MethodGet)
	r.Handle("/my_role", s.require(goGate.Requirement{})(http.HandlerFunc(s.myRole))).Methods(http.MethodGet)

	r.HandleFunc("/register", s.register).Methods(http.MethodPost)
	r.HandleFunc("/validate_registration/{token}", s.validateRegistration).Methods(http.MethodGet)

	registry := prom.NewRegistry()
	registry.MustRegister(promexport.NewCollector(s.engine))
	r.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{})).Methods(http.MethodGet)

	return r
}

func (s *server) require(req goGate.Requirement) func(http.Handler) http.Handler {
	return middleware.RequireWithLogger(s.engine, s.codec, req, loginURL, s.log.Logger)
}

func (s *server) loginForm(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_ = loginPage.Execute(w, nil)
}

func (s *server) index(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.UserFromContext(r.Context())
	fmt.Fprintf(w, "Welcome, %s\n", user.Username)
}

func (s *server) admin(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.UserFromContext(r.Context())
	fmt.Fprintf(w, "Welcome to the admin area, %s\n", user.Username)
}

func (s *server) myRole(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.UserFromContext(r.Context())
	fmt.Fprintf(w, "%s\n", user.Role)
}

func (s *server) register(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	_, err := s.engine.Register(r.Context(), goGate.Registration{
		Username:    r.PostForm.Get("username"),
		Password:    r.PostForm.Get("password"),
		Email:       r.PostForm.Get("email"),
		Role:        r.PostForm.Get("role"),
		Description: r.PostForm.Get("description"),
	})
	switch {
	case err == nil:
		w.WriteHeader(http.StatusAccepted)
		fmt.Fprintln(w, "registration pending confirmation")
	case errors.Is(err, goGate.ErrUserExists):
		http.Error(w, "username taken", http.StatusConflict)
	case errors.Is(err, goGate.ErrRegistrationDisabled):
		http.Error(w, "registration disabled", http.StatusForbidden)
	case errors.Is(err, goGate.ErrStoreUnavailable):
		http.Error(w, "service unavailable", http.StatusServiceUnavailable)
	default:
		http.Error(w, "invalid registration", http.StatusBadRequest)
	}
}

func (s *server) validateRegistration(w http.ResponseWriter, r *http.Request) {
	token := mux.Vars(r)["token"]

	_, err := s.engine.ConfirmRegistration(r.Context(), token, s.now())
	switch {
	case err == nil:
		w.Header().Set("Location", loginURL)
		w.WriteHeader(http.StatusFound)
	case errors.Is(err, goGate.ErrRegistrationExpired):
		http.Error(w, "registration expired", http.StatusGone)
	case errors.Is(err, goGate.ErrRegistrationNotFound):
		http.NotFound(w, r)
	case errors.Is(err, goGate.ErrUserExists):
		http.Error(w, "username taken", http.StatusConflict)
	default:
		http.Error(w, "service unavailable", http.StatusServiceUnavailable)
	}
}

// registrationMailer stands in for an email sender and logs the link.
func registrationMailer(log *logger.Logger) goGate.Notifier {
	return goGate.NotifierFunc(func(_ context.Context, n goGate.Notification) error {
		switch n.Kind {
		case goGate.NotifyRegistration:
			log.Info("registration pending",
				"username", n.Username,
				"email", n.Email,
				"link", "/validate_registration/"+n.Token,
				"expires_at", n.ExpiresAt,
			)
		case goGate.NotifyPasswordReset:
			log.Info("password reset requested", "username", n.Username, "email", n.Email)
		}
		return nil
	})
}
