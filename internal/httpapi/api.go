package httpapi

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"pursekeep.org/internal/auth"
	"pursekeep.org/internal/obs"
	"pursekeep.org/internal/users"
)

const serviceName = "pursekeep"

// PasswordAuthenticator checks a username/password pair.
type PasswordAuthenticator interface {
	Authenticate(ctx context.Context, username, password string) (auth.Identity, error)
}

// IdentityResolver turns a bearer token into an identity.
type IdentityResolver interface {
	Resolve(ctx context.Context, token string) (auth.Identity, error)
}

// TokenIssuer mints access tokens.
type TokenIssuer interface {
	Issue(subject string, ttl time.Duration) (string, time.Time, error)
	TTL() time.Duration
}

// Deps are the collaborators the HTTP layer is built from.
type Deps struct {
	Users         *users.Service
	Authenticator PasswordAuthenticator
	Resolver      IdentityResolver
	Tokens        TokenIssuer
	Logger        *slog.Logger
	Version       string
	MaxBodyBytes  int64
}

// API is the HTTP layer.
type API struct {
	users    *users.Service
	authn    PasswordAuthenticator
	resolver IdentityResolver
	tokens   TokenIssuer
	logger   *slog.Logger
	version  string
	maxBody  int64
	router   chi.Router
}

func New(d Deps) *API {
	logger := d.Logger
	if logger == nil {
		logger = obs.Logger()
	}
	maxBody := d.MaxBodyBytes
	if maxBody <= 0 {
		maxBody = 1 << 20
	}
	a := &API{
		users:    d.Users,
		authn:    d.Authenticator,
		resolver: d.Resolver,
		tokens:   d.Tokens,
		logger:   logger,
		version:  d.Version,
		maxBody:  maxBody,
	}
	a.router = a.routes()
	return a
}

func (a *API) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(RequestID)
	r.Use(Logging(a.logger))
	r.Use(Recover(a.logger))
	r.Use(SecurityHeaders)
	r.Use(CORS)
	r.Use(func(next http.Handler) http.Handler { return MaxBodyBytes(next, a.maxBody) })
	r.Use(middleware.StripSlashes)

	r.Get("/health", a.handleHealth)
	r.Get("/readyz", a.handleReady)
	r.Handle("/metrics", obs.Handler())
	r.Post("/token", a.handleToken)

	r.Route("/users", func(r chi.Router) {
		r.Post("/create", a.handleCreateUser)

		r.Group(func(r chi.Router) {
			r.Use(a.withAuth)
			r.Get("/me", a.handleMe)
			r.Put("/update", a.handleSelfUpdate)

			r.Group(func(r chi.Router) {
				r.Use(a.requireAdmin)
				r.Put("/update/{id}", a.handleAdminUpdate)
				r.Delete("/delete/{id}", a.handleDeleteUser)
			})
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, http.StatusNotFound, "not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, http.StatusMethodNotAllowed, "method not allowed")
	})
	return r
}

// Handler returns the instrumented router.
func (a *API) Handler() http.Handler {
	return obs.Instrument(a.router)
}

func (a *API) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"state": "API is currently running. Please proceed",
	})
}

func (a *API) handleReady(w http.ResponseWriter, r *http.Request) {
	if a.users != nil {
		if err := a.users.Ready(r.Context()); err != nil {
			a.logger.WarnContext(r.Context(), "readiness check failed", "err", err)
			writeJSON(w, http.StatusServiceUnavailable, map[string]any{
				"status": "not_ready",
			})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ready",
		"service": serviceName,
		"version": a.version,
	})
}
