// Package api exposes the HTTP surface of the atelier backend: the
// verification service, the gated admin mutation service, the image upload
// service, and the public portfolio reads.
package api

import (
	_ "embed"
	"log/slog"
	"net/http"
	"net/netip"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/go-openapi/runtime/middleware"

	"github.com/nkomarek/atelier/auth"
	"github.com/nkomarek/atelier/blob"
	"github.com/nkomarek/atelier/content"
	"github.com/nkomarek/atelier/storage"
)

// API holds the dependencies needed by the REST handlers.
type API struct {
	auth           *auth.Service
	content        *content.Service
	blobs          blob.Store
	audit          *auditLogger
	trustedProxies []netip.Prefix
}

//go:embed openapi.yaml
var openapiSpec []byte

// Option configures the API instance.
type Option func(*API)

// WithLogger sets the structured logger for audit events. If not set, a
// default JSON logger writing to stderr is used.
func WithLogger(logger *slog.Logger) Option {
	return func(a *API) {
		a.audit = newAuditLogger(logger)
	}
}

// WithTrustedProxies sets the CIDR ranges whose forwarded-for headers are
// honored when deriving the rate-limit client identity. With no trusted
// proxies configured, headers are ignored and the direct peer address is
// always used.
func WithTrustedProxies(prefixes []netip.Prefix) Option {
	return func(a *API) {
		a.trustedProxies = prefixes
	}
}

// WithClock overrides the time source of the underlying services. Intended
// for tests.
func WithClock(now func() time.Time) Option {
	return func(a *API) {
		auth.WithClock(now)(a.auth)
		a.content.WithClock(now)
	}
}

// New creates a new API instance over the given store and blob store.
func New(store storage.Store, blobs blob.Store, opts ...Option) *API {
	a := &API{
		auth:    auth.NewService(store),
		content: content.NewService(store),
		blobs:   blobs,
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.audit == nil {
		a.audit = newAuditLogger(slog.New(slog.NewJSONHandler(os.Stderr, nil)))
	}
	return a
}

// Router returns a chi.Router with all API routes mounted. The API has no
// same-origin assumption: every origin is allowed and all preflights are
// accepted.
func (a *API) Router() chi.Router {
	r := chi.NewRouter()

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"*"},
		MaxAge:         300,
	}))

	r.Get("/openapi.yaml", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/yaml")
		w.Write(openapiSpec)
	})

	r.Handle("/docs*", middleware.SwaggerUI(middleware.SwaggerUIOpts{
		SpecURL: "/api/v1/openapi.yaml",
		Path:    "api/v1/docs",
	}, nil))

	r.Handle("/redoc*", middleware.Redoc(middleware.RedocOpts{
		SpecURL: "/api/v1/openapi.yaml",
		Path:    "api/v1/redoc",
	}, nil))

	r.Post("/auth", a.HandleAuth)
	r.Post("/admin", a.HandleAdmin)
	r.Post("/upload", a.HandleUpload)

	r.Get("/projects", a.ListProjects)
	r.Get("/projects/{slug}", a.GetProject)
	r.Get("/products", a.ListProducts)
	r.Post("/orders", a.CreateOrder)
	r.Get("/settings", a.GetSettings)

	return r
}
