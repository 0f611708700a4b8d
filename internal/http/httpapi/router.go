package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"novelforge/internal/http/handlers"
	"novelforge/internal/middleware"
)

// Options configures the cross-cutting middleware.
type Options struct {
	JWTSecret       string
	CORSOrigins     []string
	RateLimitPerMin int
	CountryLookup   middleware.CountryLookup
	Logger          zerolog.Logger
	// StaticDir, when set, is served under /static for exported manuscripts.
	StaticDir string
}

func NewRouter(app *handlers.App, opts Options) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.RequestID,
		chimw.RealIP,
		middleware.Logger(opts.Logger),
		chimw.Recoverer,
		middleware.CORS(opts.CORSOrigins),
		middleware.I18N("en", opts.CountryLookup),
	)

	if opts.StaticDir != "" {
		r.Handle("/static/*", http.StripPrefix("/static/", http.FileServer(http.Dir(opts.StaticDir))))
	}

	r.Route("/v1", func(r chi.Router) {
		r.Get("/healthz", app.Health)
		r.Get("/openapi.json", app.OpenAPIJSON)
		r.Get("/docs", app.OpenAPIDocs)

		r.Group(func(r chi.Router) {
			r.Use(
				middleware.AuthJWT(opts.JWTSecret),
				middleware.RateLimit(opts.RateLimitPerMin, time.Minute),
			)
			app.Mount(r)
		})
	})

	return r
}
