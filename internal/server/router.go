package server

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ecoterra/siteapi/internal/domain"
	"github.com/ecoterra/siteapi/internal/handler"
	"github.com/ecoterra/siteapi/internal/observability/metrics"
	"github.com/ecoterra/siteapi/internal/security/audit"
	"github.com/ecoterra/siteapi/internal/security/middleware"
)

// RouterConfig carries the handlers and middleware the router composes
type RouterConfig struct {
	Logger    *slog.Logger
	Responder *handler.Responder
	Verifier  middleware.TokenVerifier
	Audit     *audit.Logger

	Health   *handler.HealthHandler
	Auth     *handler.AuthHandler
	Company  *handler.CompanyHandler
	Images   *handler.ImageHandler
	Team     *handler.TeamHandler
	Projects *handler.ProjectHandler

	// UploadDir is served under /uploads/ when set (local upload backend)
	UploadDir   string
	CORSOrigins []string
	IPRateLimit func(http.Handler) http.Handler
	// RealIP resolves the client address behind trusted proxies; nil keeps RemoteAddr
	RealIP      func(http.Handler) http.Handler
	Development bool
	Metrics     bool
}

// NewRouter builds the HTTP surface. Reads are public; every mutation goes
// through RequireAuth and is audited.
func NewRouter(cfg RouterConfig) http.Handler {
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	rs := cfg.Responder

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	if cfg.RealIP != nil {
		r.Use(cfg.RealIP)
	}
	r.Use(middleware.Recoverer(log, cfg.Development))
	r.Use(middleware.RequestLogger(log))
	if cfg.Metrics {
		r.Use(metrics.HTTPMetricsMiddleware)
	}
	r.Use(middleware.NewSecure(middleware.SecureOptions(cfg.Development)))
	r.Use(middleware.CORS(cfg.CORSOrigins))
	if cfg.IPRateLimit != nil {
		r.Use(cfg.IPRateLimit)
	}

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		rs.Error(w, http.StatusNotFound, "route not found", "not_found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		rs.Error(w, http.StatusMethodNotAllowed, "method not allowed", "method_not_allowed")
	})

	protect := func(next http.Handler) http.Handler {
		return middleware.RequireAuth(cfg.Verifier, cfg.Audit, log)(middleware.AuditMiddleware(cfg.Audit)(next))
	}
	jsonOnly := middleware.ValidateJSONContentType(log)

	r.Get("/api/health", cfg.Health.Health)
	r.Get("/api/ready", cfg.Health.Ready)
	if cfg.Metrics {
		r.Handle("/metrics", promhttp.Handler())
	}

	r.Route("/api/auth", func(r chi.Router) {
		r.With(jsonOnly).Post("/login", cfg.Auth.Login)
		r.Group(func(r chi.Router) {
			r.Use(protect)
			r.Get("/me", cfg.Auth.Me)
			r.With(jsonOnly).Put("/change-password", cfg.Auth.ChangePassword)
		})
	})

	r.Route("/api/company", func(r chi.Router) {
		r.Get("/", cfg.Company.Get)
		r.With(protect, jsonOnly).Put("/", cfg.Company.Update)
	})

	r.Route("/api/images", func(r chi.Router) {
		r.Get("/", cfg.Images.List)
		r.Get("/url/{key}", cfg.Images.URL)
		r.Group(func(r chi.Router) {
			r.Use(protect)
			r.Post("/upload", cfg.Images.Upload)
			r.Delete("/{key}", cfg.Images.Delete)
		})
	})

	r.Route("/api/team", func(r chi.Router) {
		mountCatalog(r, cfg.Team, protect, jsonOnly)
	})
	r.Route("/api/projects", func(r chi.Router) {
		mountCatalog(r, cfg.Projects, protect, jsonOnly)
	})

	if cfg.UploadDir != "" {
		r.Handle("/uploads/*", uploadsHandler(cfg.UploadDir, rs))
	}

	return r
}

func mountCatalog[T any, U domain.Patch[T]](r chi.Router, h *handler.CatalogHandler[T, U], protect, jsonOnly func(http.Handler) http.Handler) {
	r.Get("/", h.List)
	r.Get("/{id}", h.Get)
	r.Group(func(r chi.Router) {
		r.Use(protect)
		r.With(jsonOnly).Post("/", h.Create)
		r.With(jsonOnly).Put("/{id}", h.Update)
		r.Delete("/{id}", h.Delete)
	})
}

// uploadsHandler serves files from dir without directory listings
func uploadsHandler(dir string, rs *handler.Responder) http.Handler {
	files := http.StripPrefix("/uploads/", http.FileServer(http.Dir(dir)))
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/") {
			rs.Error(w, http.StatusNotFound, "route not found", "not_found")
			return
		}
		files.ServeHTTP(w, r)
	})
}
