package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/boovboyz/azurerag/internal/config"
	ragmiddleware "github.com/boovboyz/azurerag/internal/middleware"
)

// RouterOptions controls construction of the HTTP router. The zero value
// is not valid: Chain and Cfg are required, Validator is required unless
// the auth section is unconfigured.
type RouterOptions struct {
	Chain       Answerer
	Validator   ragmiddleware.TokenValidator
	Cfg         *config.Config
	CORSOptions *cors.Options
	Middleware  []func(http.Handler) http.Handler
	ExtraRoutes func(chi.Router)
}

// DefaultCORSOptions returns the permissive policy for browser clients.
func DefaultCORSOptions() cors.Options {
	return cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
		MaxAge:           300,
	}
}

// NewRouter assembles the chi router with shared middleware and the
// query endpoints mounted.
func NewRouter(opts RouterOptions) chi.Router {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)

	corsCfg := DefaultCORSOptions()
	if opts.CORSOptions != nil {
		corsCfg = *opts.CORSOptions
	}
	r.Use(cors.Handler(corsCfg))

	for _, mw := range opts.Middleware {
		if mw != nil {
			r.Use(mw)
		}
	}

	h := &Handlers{chain: opts.Chain}

	r.Get("/health", h.Health)
	r.Post("/ask", h.Ask)

	// The secure endpoint either demands a bearer token or, in
	// anonymous-degrade mode, lets credential-less callers through with
	// no principals at all.
	secure := ragmiddleware.RequireAuth(opts.Validator)
	if opts.Cfg != nil && opts.Cfg.Auth.AllowAnonymous {
		secure = ragmiddleware.AllowAnonymous(opts.Validator)
	}

	r.Group(func(r chi.Router) {
		r.Use(secure)
		r.Post("/ask/secure", h.AskSecure)
	})

	// Identity introspection always requires a credential.
	r.Group(func(r chi.Router) {
		r.Use(ragmiddleware.RequireAuth(opts.Validator))
		r.Get("/me", h.Me)
	})

	if opts.ExtraRoutes != nil {
		opts.ExtraRoutes(r)
	}

	return r
}
